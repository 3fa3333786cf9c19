package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
	"github.com/alexrendlerCS/aicademy-sub000/internal/repositories"
)

const (
	progressSheet = "Progress"
	summarySheet  = "Summary"
)

var (
	progressHeader = []interface{}{"Student", "Email", "Module", "Progress (%)", "Completed At", "Due Date", "Overdue"}
	summaryHeader  = []interface{}{"Module", "Students", "Average Progress (%)", "Completed"}
)

type reportService struct {
	repo   repositories.Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewReportService(repo repositories.Repository, logger *slog.Logger) ReportService {
	return &reportService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// ClassProgress lists every approved member against every module of this teacher
// assigned to the class or to the member directly
func (s *reportService) ClassProgress(ctx context.Context, teacherID string, classID uint) ([]models.ProgressRow, error) {
	if _, err := loadOwnedClass(ctx, s.repo, classID, teacherID, "view_progress"); err != nil {
		return nil, err
	}
	return s.classRows(ctx, teacherID, classID)
}

func (s *reportService) classRows(ctx context.Context, teacherID string, classID uint) ([]models.ProgressRow, error) {
	approved := models.MembershipApproved
	members, err := s.repo.Membership().ListByClass(ctx, classID, repositories.MembershipFilters{Status: &approved})
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	if len(members) == 0 {
		return []models.ProgressRow{}, nil
	}

	students := make(map[string]*models.User, len(members))
	studentIDs := make([]string, 0, len(members))
	for _, m := range members {
		studentIDs = append(studentIDs, m.StudentID)
		if m.Student != nil {
			students[m.StudentID] = m.Student
		}
	}

	classAssignments, err := s.repo.Assignment().ListByClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("failed to list class assignments: %w", err)
	}
	directAssignments, err := s.repo.Assignment().ListByStudents(ctx, studentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list student assignments: %w", err)
	}

	// student -> module -> earliest due date
	due := make(map[string]map[uint]*time.Time, len(studentIDs))
	var moduleIDs []uint
	seenModule := make(map[uint]bool)
	add := func(studentID string, a *models.ModuleAssignment) {
		if due[studentID] == nil {
			due[studentID] = make(map[uint]*time.Time)
		}
		due[studentID][a.ModuleID] = earliest(due[studentID][a.ModuleID], a.DueDate)
		if !seenModule[a.ModuleID] {
			seenModule[a.ModuleID] = true
			moduleIDs = append(moduleIDs, a.ModuleID)
		}
	}
	for _, a := range classAssignments {
		for _, id := range studentIDs {
			add(id, a)
		}
	}
	for _, a := range directAssignments {
		if a.StudentID != nil {
			add(*a.StudentID, a)
		}
	}
	if len(moduleIDs) == 0 {
		return []models.ProgressRow{}, nil
	}

	modules, err := s.teacherModules(ctx, teacherID, moduleIDs)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.Progress().ListStudentModules(ctx, repositories.StudentModuleFilters{StudentIDs: studentIDs, ModuleIDs: moduleIDs})
	if err != nil {
		return nil, fmt.Errorf("failed to list student modules: %w", err)
	}
	progress := make(map[string]*models.StudentModule, len(rows))
	for _, r := range rows {
		progress[progressKey(r.StudentID, r.ModuleID)] = r
	}

	now := s.now()
	report := make([]models.ProgressRow, 0, len(studentIDs)*len(modules))
	for _, studentID := range studentIDs {
		for moduleID, dueDate := range due[studentID] {
			module, ok := modules[moduleID]
			if !ok {
				continue
			}
			report = append(report, progressRow(students[studentID], studentID, module, progress[progressKey(studentID, moduleID)], dueDate, now))
		}
	}
	sortProgressRows(report)
	return report, nil
}

// ModuleProgress lists every student holding a progress row for the module
func (s *reportService) ModuleProgress(ctx context.Context, teacherID string, moduleID uint) ([]models.ProgressRow, error) {
	module, err := loadOwnedModule(ctx, s.repo, moduleID, teacherID, "view_progress")
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.Progress().ListStudentModules(ctx, repositories.StudentModuleFilters{ModuleIDs: []uint{moduleID}})
	if err != nil {
		return nil, fmt.Errorf("failed to list student modules: %w", err)
	}

	assignments, err := s.repo.Assignment().ListByModule(ctx, moduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	due := make(map[string]*time.Time)
	for _, a := range assignments {
		var ids []string
		if a.StudentID != nil {
			ids = []string{*a.StudentID}
		} else if a.ClassID != nil {
			ids, err = s.repo.Membership().ApprovedStudentIDs(ctx, []uint{*a.ClassID})
			if err != nil {
				return nil, fmt.Errorf("failed to list class members: %w", err)
			}
		}
		for _, id := range ids {
			due[id] = earliest(due[id], a.DueDate)
		}
	}

	now := s.now()
	report := make([]models.ProgressRow, 0, len(rows))
	for _, r := range rows {
		report = append(report, progressRow(r.Student, r.StudentID, module, r, due[r.StudentID], now))
	}
	sortProgressRows(report)
	return report, nil
}

// ExportClassProgress renders ClassProgress as an xlsx workbook
func (s *reportService) ExportClassProgress(ctx context.Context, teacherID string, classID uint) (*ClassExport, error) {
	class, err := loadOwnedClass(ctx, s.repo, classID, teacherID, "export_progress")
	if err != nil {
		return nil, err
	}
	rows, err := s.classRows(ctx, teacherID, classID)
	if err != nil {
		return nil, err
	}

	content, err := renderProgressWorkbook(rows)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Class progress exported", "class_id", classID, "rows", len(rows), "bytes", len(content))
	return &ClassExport{
		Filename: fmt.Sprintf("class-%s-progress-%s.xlsx", strings.ToLower(class.Code), s.now().UTC().Format("20060102")),
		Content:  content,
	}, nil
}

func renderProgressWorkbook(rows []models.ProgressRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", progressSheet); err != nil {
		return nil, fmt.Errorf("failed to name progress sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeSheet(f, progressSheet, header, progressHeader, progressCells(rows)); err != nil {
		return nil, err
	}
	if err := writeSheet(f, summarySheet, header, summaryHeader, summaryCells(rows)); err != nil {
		return nil, err
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, headerStyle int, header []interface{}, rows [][]interface{}) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 20); err != nil {
		return fmt.Errorf("failed to size %s columns: %w", sheet, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

func progressCells(rows []models.ProgressRow) [][]interface{} {
	cells := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		overdue := "No"
		if r.Overdue {
			overdue = "Yes"
		}
		cells = append(cells, []interface{}{
			r.StudentName, r.Email, r.ModuleTitle, r.Progress,
			formatDate(r.CompletedAt), formatDate(r.DueDate), overdue,
		})
	}
	return cells
}

func summaryCells(rows []models.ProgressRow) [][]interface{} {
	type tally struct {
		title     string
		students  int
		total     float64
		completed int
	}
	var order []uint
	byModule := make(map[uint]*tally)
	for _, r := range rows {
		t, ok := byModule[r.ModuleID]
		if !ok {
			t = &tally{title: r.ModuleTitle}
			byModule[r.ModuleID] = t
			order = append(order, r.ModuleID)
		}
		t.students++
		t.total += r.Progress
		if r.CompletedAt != nil {
			t.completed++
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return byModule[order[i]].title < byModule[order[j]].title
	})

	cells := make([][]interface{}, 0, len(order))
	for _, id := range order {
		t := byModule[id]
		cells = append(cells, []interface{}{t.title, t.students, roundPercent(t.total / float64(t.students)), t.completed})
	}
	return cells
}

func (s *reportService) teacherModules(ctx context.Context, teacherID string, moduleIDs []uint) (map[uint]*models.Module, error) {
	modules, err := s.repo.Module().GetByIDs(ctx, moduleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load modules: %w", err)
	}
	owned := make(map[uint]*models.Module, len(modules))
	for _, m := range modules {
		if m.TeacherID == teacherID {
			owned[m.ID] = m
		}
	}
	return owned, nil
}

func progressRow(student *models.User, studentID string, module *models.Module, sm *models.StudentModule, due *time.Time, now time.Time) models.ProgressRow {
	row := models.ProgressRow{
		StudentID:   studentID,
		ModuleID:    module.ID,
		ModuleTitle: module.Title,
		DueDate:     due,
	}
	if student != nil {
		row.StudentName = student.FullName
		row.Email = student.Email
	}
	if sm != nil {
		row.Progress = roundPercent(sm.Progress * 100)
		row.CompletedAt = sm.CompletedAt
	}
	row.Overdue = due != nil && now.After(*due) && row.CompletedAt == nil
	return row
}

func sortProgressRows(rows []models.ProgressRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.StudentName != b.StudentName {
			return a.StudentName < b.StudentName
		}
		if a.StudentID != b.StudentID {
			return a.StudentID < b.StudentID
		}
		return a.ModuleTitle < b.ModuleTitle
	})
}

// earliest returns the earlier due date, a missing date never replaces a set one
func earliest(current, candidate *time.Time) *time.Time {
	if current == nil {
		return candidate
	}
	if candidate != nil && candidate.Before(*current) {
		return candidate
	}
	return current
}

func roundPercent(v float64) float64 {
	return math.Round(v*10) / 10
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

func progressKey(studentID string, moduleID uint) string {
	return fmt.Sprintf("%s:%d", studentID, moduleID)
}
