package models

import "time"

// ===== STUDENT VIEWS =====

// QuizQuestionView is a question as shown to a student, without the correct answer
type QuizQuestionView struct {
	ID         uint         `json:"id"`
	Question   string       `json:"question"`
	Type       QuestionType `json:"type"`
	OrderIndex int          `json:"order_index"`
	Options    []string     `json:"options,omitempty"`
}

// StudentView builds the answer-free view of q
func (q *QuizQuestion) StudentView() (QuizQuestionView, error) {
	view := QuizQuestionView{
		ID:         q.ID,
		Question:   q.Question,
		Type:       q.Type,
		OrderIndex: q.OrderIndex,
	}
	content, err := q.DecodeContent()
	if err != nil {
		return view, err
	}
	if mc, ok := content.(MultipleChoiceContent); ok {
		view.Options = mc.Options
	}
	return view, nil
}

type LessonSummary struct {
	ID          uint       `json:"id"`
	Title       string     `json:"title"`
	OrderIndex  int        `json:"order_index"`
	HasQuiz     bool       `json:"has_quiz"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type StudentLessonView struct {
	ID          uint               `json:"id"`
	ModuleID    uint               `json:"module_id"`
	Title       string             `json:"title"`
	Content     string             `json:"content"`
	OrderIndex  int                `json:"order_index"`
	Completed   bool               `json:"completed"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	Questions   []QuizQuestionView `json:"questions"`
	Attempts    []*QuizAttempt     `json:"attempts"`
}

type StudentModuleView struct {
	ModuleID         uint       `json:"module_id"`
	Title            string     `json:"title"`
	Subject          string     `json:"subject"`
	Description      string     `json:"description"`
	Progress         float64    `json:"progress"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	DueDate          *time.Time `json:"due_date,omitempty"`
	LessonCount      int        `json:"lesson_count"`
	CompletedLessons int        `json:"completed_lessons"`
}

type StudentModuleDetail struct {
	StudentModuleView
	Lessons []LessonSummary `json:"lessons"`
}

// ===== QUIZ RESULTS =====

type QuestionResult struct {
	QuestionID    uint    `json:"question_id"`
	IsCorrect     bool    `json:"is_correct"`
	CorrectIndex  *int    `json:"correct_index,omitempty"`
	CorrectAnswer *string `json:"correct_answer,omitempty"`
}

type QuizResult struct {
	LessonID        uint             `json:"lesson_id"`
	Results         []QuestionResult `json:"results"`
	CorrectCount    int              `json:"correct_count"`
	TotalQuestions  int              `json:"total_questions"`
	LessonCompleted bool             `json:"lesson_completed"`
	ModuleProgress  float64          `json:"module_progress"`
	ModuleCompleted bool             `json:"module_completed"`
}

// ===== TEACHER VIEWS =====

type ClassSummary struct {
	*Class
	MemberCount  int64 `json:"member_count"`
	PendingCount int64 `json:"pending_count"`
}

// ProgressRow is one student x module line of a teacher progress report
type ProgressRow struct {
	StudentID   string     `json:"student_id"`
	StudentName string     `json:"student_name"`
	Email       string     `json:"email"`
	ModuleID    uint       `json:"module_id"`
	ModuleTitle string     `json:"module_title"`
	Progress    float64    `json:"progress"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Overdue     bool       `json:"overdue"`
}

// TeacherDirectoryEntry is a teacher as listed to students looking for a class
type TeacherDirectoryEntry struct {
	ID       string   `json:"id"`
	FullName string   `json:"full_name"`
	Email    string   `json:"email"`
	Classes  []*Class `json:"classes"`
}
