package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventSource  = "lms-service"
	EventVersion = "1.0"
	TopicPrefix  = "lms."
)

type EventType string

const (
	QuizSubmitted       EventType = "quiz.submitted"
	LessonCompleted     EventType = "lesson.completed"
	ModuleCompleted     EventType = "module.completed"
	ModuleAssigned      EventType = "module.assigned"
	MembershipRequested EventType = "membership.requested"
	MembershipDecided   EventType = "membership.decided"
)

// Event is the envelope published for every domain event
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

func NewEvent(eventType EventType, data interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    EventSource,
		Version:   EventVersion,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Topic is the broker topic the event is published on
func (e *Event) Topic() string {
	return TopicPrefix + string(e.Type)
}

// ===== PAYLOADS =====

type QuizSubmittedData struct {
	StudentID      string `json:"student_id"`
	LessonID       uint   `json:"lesson_id"`
	ModuleID       uint   `json:"module_id"`
	CorrectCount   int    `json:"correct_count"`
	TotalQuestions int    `json:"total_questions"`
}

type LessonCompletedData struct {
	StudentID string `json:"student_id"`
	LessonID  uint   `json:"lesson_id"`
	ModuleID  uint   `json:"module_id"`
}

type ModuleCompletedData struct {
	StudentID   string    `json:"student_id"`
	ModuleID    uint      `json:"module_id"`
	CompletedAt time.Time `json:"completed_at"`
}

type ModuleAssignedData struct {
	ModuleID   uint     `json:"module_id"`
	TeacherID  string   `json:"teacher_id"`
	ClassIDs   []uint   `json:"class_ids"`
	StudentIDs []string `json:"student_ids"`
	Added      int      `json:"added"`
	Updated    int      `json:"updated"`
	Removed    int      `json:"removed"`
}

type MembershipData struct {
	MembershipID uint   `json:"membership_id"`
	ClassID      uint   `json:"class_id"`
	StudentID    string `json:"student_id"`
	Status       string `json:"status"`
}
