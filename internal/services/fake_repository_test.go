package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
	"github.com/alexrendlerCS/aicademy-sub000/internal/repositories"
)

// memStore keeps rows by value so a transaction snapshot is a map copy
type memStore struct {
	nextID uint

	users          map[string]models.User
	identities     map[string]models.Identity
	classes        map[uint]models.Class
	memberships    map[uint]models.ClassMembership
	modules        map[uint]models.Module
	lessons        map[uint]models.Lesson
	questions      map[uint]models.QuizQuestion
	assignments    map[uint]models.ModuleAssignment
	lessonProgress map[string]models.LessonProgress
	studentModules map[string]models.StudentModule
	attempts       map[string]models.QuizAttempt
}

func newMemStore() *memStore {
	return &memStore{
		nextID:         100,
		users:          map[string]models.User{},
		identities:     map[string]models.Identity{},
		classes:        map[uint]models.Class{},
		memberships:    map[uint]models.ClassMembership{},
		modules:        map[uint]models.Module{},
		lessons:        map[uint]models.Lesson{},
		questions:      map[uint]models.QuizQuestion{},
		assignments:    map[uint]models.ModuleAssignment{},
		lessonProgress: map[string]models.LessonProgress{},
		studentModules: map[string]models.StudentModule{},
		attempts:       map[string]models.QuizAttempt{},
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) clone() *memStore {
	return &memStore{
		nextID:         s.nextID,
		users:          copyMap(s.users),
		identities:     copyMap(s.identities),
		classes:        copyMap(s.classes),
		memberships:    copyMap(s.memberships),
		modules:        copyMap(s.modules),
		lessons:        copyMap(s.lessons),
		questions:      copyMap(s.questions),
		assignments:    copyMap(s.assignments),
		lessonProgress: copyMap(s.lessonProgress),
		studentModules: copyMap(s.studentModules),
		attempts:       copyMap(s.attempts),
	}
}

func (s *memStore) id() uint {
	s.nextID++
	return s.nextID
}

func pairKey(studentID string, id uint) string {
	return fmt.Sprintf("%s:%d", studentID, id)
}

func notFound(what string, id interface{}) error {
	return fmt.Errorf("%s %v: %w", what, id, repositories.ErrNotFound)
}

// fakeRepository is an in-memory repositories.Repository.
// WithTransaction rolls every write back when fn fails.
type fakeRepository struct {
	store *memStore
	fail  map[string]error
	txs   int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{store: newMemStore(), fail: map[string]error{}}
}

// failOn makes the named operation, e.g. "Progress.SaveStudentModule", return err
func (r *fakeRepository) failOn(op string, err error) {
	r.fail[op] = err
}

func (r *fakeRepository) check(op string) error {
	return r.fail[op]
}

func (r *fakeRepository) User() repositories.UserRepository             { return &fakeUsers{r} }
func (r *fakeRepository) Identity() repositories.IdentityRepository     { return &fakeIdentities{r} }
func (r *fakeRepository) Class() repositories.ClassRepository           { return &fakeClasses{r} }
func (r *fakeRepository) Membership() repositories.MembershipRepository { return &fakeMemberships{r} }
func (r *fakeRepository) Module() repositories.ModuleRepository         { return &fakeModules{r} }
func (r *fakeRepository) Lesson() repositories.LessonRepository         { return &fakeLessons{r} }
func (r *fakeRepository) Question() repositories.QuestionRepository     { return &fakeQuestions{r} }
func (r *fakeRepository) Assignment() repositories.AssignmentRepository { return &fakeAssignments{r} }
func (r *fakeRepository) Progress() repositories.ProgressRepository     { return &fakeProgress{r} }

func (r *fakeRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	r.txs++
	snapshot := r.store.clone()
	if err := fn(r); err != nil {
		r.store = snapshot
		return err
	}
	return nil
}

func (r *fakeRepository) Ping(ctx context.Context) error { return r.check("Ping") }
func (r *fakeRepository) Close() error                   { return nil }

// ===== SEED HELPERS =====

func (r *fakeRepository) addUser(id, name string, role models.UserRole) *models.User {
	u := models.User{ID: id, Email: id + "@school.test", FullName: name, Role: role}
	if role == models.RoleStudent {
		grade := 5
		u.GradeLevel = &grade
	}
	r.store.users[id] = u
	return &u
}

func (r *fakeRepository) addClass(teacherID, name, code string) *models.Class {
	c := models.Class{ID: r.store.id(), Name: name, Code: code, TeacherID: teacherID}
	r.store.classes[c.ID] = c
	return &c
}

func (r *fakeRepository) addMembership(classID uint, studentID string, status models.MembershipStatus) *models.ClassMembership {
	m := models.ClassMembership{ID: r.store.id(), ClassID: classID, StudentID: studentID, Status: status}
	r.store.memberships[m.ID] = m
	return &m
}

func (r *fakeRepository) addModule(teacherID, title string) *models.Module {
	m := models.Module{ID: r.store.id(), Title: title, Subject: "Science", TeacherID: teacherID, Status: models.ModuleDraft}
	r.store.modules[m.ID] = m
	return &m
}

func (r *fakeRepository) addPublishedModule(teacherID, title string) *models.Module {
	m := r.addModule(teacherID, title)
	published := fixedNow
	m.Status, m.PublishedAt = models.ModulePublished, &published
	r.store.modules[m.ID] = *m
	return m
}

func (r *fakeRepository) addLesson(moduleID uint, title string, order int) *models.Lesson {
	l := models.Lesson{ID: r.store.id(), ModuleID: moduleID, Title: title, Content: "<p>" + title + "</p>", OrderIndex: order}
	r.store.lessons[l.ID] = l
	return &l
}

func (r *fakeRepository) addMCQuestion(lessonID uint, question string, options []string, correct int) *models.QuizQuestion {
	q := models.QuizQuestion{ID: r.store.id(), LessonID: lessonID, Question: question}
	if err := q.SetContent(models.MultipleChoiceContent{Options: options, CorrectIndex: correct}); err != nil {
		panic(err)
	}
	r.store.questions[q.ID] = q
	return &q
}

func (r *fakeRepository) addFRQuestion(lessonID uint, question, answer string) *models.QuizQuestion {
	q := models.QuizQuestion{ID: r.store.id(), LessonID: lessonID, Question: question}
	if err := q.SetContent(models.FreeResponseContent{CorrectAnswer: answer}); err != nil {
		panic(err)
	}
	r.store.questions[q.ID] = q
	return &q
}

func (r *fakeRepository) addAssignment(moduleID uint, classID *uint, studentID *string, due *time.Time) *models.ModuleAssignment {
	a := models.ModuleAssignment{ID: r.store.id(), ModuleID: moduleID, ClassID: classID, StudentID: studentID, DueDate: due}
	r.store.assignments[a.ID] = a
	return &a
}

func (r *fakeRepository) addStudentModule(studentID string, moduleID uint, progress float64) {
	r.store.studentModules[pairKey(studentID, moduleID)] = models.StudentModule{
		ID: r.store.id(), StudentID: studentID, ModuleID: moduleID, Progress: progress,
	}
}

func (r *fakeRepository) studentModule(studentID string, moduleID uint) (models.StudentModule, bool) {
	row, ok := r.store.studentModules[pairKey(studentID, moduleID)]
	return row, ok
}

func (r *fakeRepository) questionsOf(lessonID uint) []models.QuizQuestion {
	var out []models.QuizQuestion
	for _, q := range r.store.questions {
		if q.LessonID == lessonID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderIndex != out[j].OrderIndex {
			return out[i].OrderIndex < out[j].OrderIndex
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *fakeRepository) lessonsOf(moduleID uint) []models.Lesson {
	var out []models.Lesson
	for _, l := range r.store.lessons {
		if l.ModuleID == moduleID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderIndex != out[j].OrderIndex {
			return out[i].OrderIndex < out[j].OrderIndex
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *fakeRepository) deleteLessonData(lessonID uint) {
	for id, q := range r.store.questions {
		if q.LessonID == lessonID {
			delete(r.store.questions, id)
		}
	}
	for k, p := range r.store.lessonProgress {
		if p.LessonID == lessonID {
			delete(r.store.lessonProgress, k)
		}
	}
	for k, a := range r.store.attempts {
		if a.LessonID == lessonID {
			delete(r.store.attempts, k)
		}
	}
	delete(r.store.lessons, lessonID)
}

// ===== USERS =====

type fakeUsers struct{ r *fakeRepository }

func (f *fakeUsers) Create(ctx context.Context, user *models.User) error {
	if err := f.r.check("User.Create"); err != nil {
		return err
	}
	if _, ok := f.r.store.users[user.ID]; ok {
		return fmt.Errorf("create user: %w", repositories.ErrDuplicate)
	}
	for _, u := range f.r.store.users {
		if u.Email == user.Email {
			return fmt.Errorf("create user: %w", repositories.ErrDuplicate)
		}
	}
	f.r.store.users[user.ID] = *user
	return nil
}

func (f *fakeUsers) Update(ctx context.Context, user *models.User) error {
	if _, ok := f.r.store.users[user.ID]; !ok {
		return notFound("user", user.ID)
	}
	f.r.store.users[user.ID] = *user
	return nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := f.r.store.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	return &u, nil
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range f.r.store.users {
		if strings.EqualFold(u.Email, email) {
			u := u
			return &u, nil
		}
	}
	return nil, notFound("user", email)
}

func (f *fakeUsers) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	out := []*models.User{}
	for _, id := range ids {
		if u, ok := f.r.store.users[id]; ok {
			u := u
			out = append(out, &u)
		}
	}
	return out, nil
}

func (f *fakeUsers) Search(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error) {
	query := strings.ToLower(filters.Query)
	var matched []*models.User
	for _, u := range f.r.store.users {
		if filters.Role != nil && u.Role != *filters.Role {
			continue
		}
		if filters.IsDemo != nil && u.IsDemo != *filters.IsDemo {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(u.FullName), query) && !strings.Contains(strings.ToLower(u.Email), query) {
			continue
		}
		u := u
		matched = append(matched, &u)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].FullName < matched[j].FullName })

	total := int64(len(matched))
	start := filters.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if filters.Limit > 0 && start+filters.Limit < end {
		end = start + filters.Limit
	}
	return append([]*models.User{}, matched[start:end]...), total, nil
}

func (f *fakeUsers) Delete(ctx context.Context, id string) error {
	if _, ok := f.r.store.users[id]; !ok {
		return notFound("user", id)
	}
	s := f.r.store
	delete(s.users, id)
	for k, m := range s.memberships {
		if m.StudentID == id {
			delete(s.memberships, k)
		}
	}
	for k, row := range s.studentModules {
		if row.StudentID == id {
			delete(s.studentModules, k)
		}
	}
	for k, p := range s.lessonProgress {
		if p.StudentID == id {
			delete(s.lessonProgress, k)
		}
	}
	for k, a := range s.attempts {
		if a.StudentID == id {
			delete(s.attempts, k)
		}
	}
	return nil
}

// ===== IDENTITIES =====

type fakeIdentities struct{ r *fakeRepository }

func (f *fakeIdentities) ParseToken(token string) (*models.Identity, error) {
	i, ok := f.r.store.identities[token]
	if !ok {
		return nil, fmt.Errorf("invalid token")
	}
	return &i, nil
}

func (f *fakeIdentities) GetByID(ctx context.Context, id string) (*models.Identity, error) {
	i, ok := f.r.store.identities[id]
	if !ok {
		return nil, notFound("identity", id)
	}
	return &i, nil
}

func (f *fakeIdentities) GetByEmail(ctx context.Context, email string) (*models.Identity, error) {
	if err := f.r.check("Identity.GetByEmail"); err != nil {
		return nil, err
	}
	for _, i := range f.r.store.identities {
		if strings.EqualFold(i.Email, email) {
			i := i
			return &i, nil
		}
	}
	return nil, notFound("identity", email)
}

func (f *fakeIdentities) List(ctx context.Context) ([]*models.Identity, error) {
	out := []*models.Identity{}
	for _, i := range f.r.store.identities {
		i := i
		out = append(out, &i)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (f *fakeIdentities) Create(ctx context.Context, identity *models.Identity, password string) (*models.Identity, error) {
	if err := f.r.check("Identity.Create"); err != nil {
		return nil, err
	}
	created := *identity
	created.ID = fmt.Sprintf("idp-%d", f.r.store.id())
	created.Metadata = copyMap(identity.Metadata)
	f.r.store.identities[created.ID] = created
	return &created, nil
}

func (f *fakeIdentities) UpdateMetadata(ctx context.Context, id string, metadata map[string]string) error {
	if err := f.r.check("Identity.UpdateMetadata"); err != nil {
		return err
	}
	i, ok := f.r.store.identities[id]
	if !ok {
		return notFound("identity", id)
	}
	merged := copyMap(i.Metadata)
	for k, v := range metadata {
		merged[k] = v
	}
	i.Metadata = merged
	f.r.store.identities[id] = i
	return nil
}

func (f *fakeIdentities) Delete(ctx context.Context, id string) error {
	if _, ok := f.r.store.identities[id]; !ok {
		return notFound("identity", id)
	}
	delete(f.r.store.identities, id)
	return nil
}

// ===== CLASSES =====

type fakeClasses struct{ r *fakeRepository }

func (f *fakeClasses) Create(ctx context.Context, class *models.Class) error {
	for _, c := range f.r.store.classes {
		if c.Code == class.Code {
			return fmt.Errorf("create class: %w", repositories.ErrDuplicate)
		}
	}
	class.ID = f.r.store.id()
	f.r.store.classes[class.ID] = *class
	return nil
}

func (f *fakeClasses) GetByID(ctx context.Context, id uint) (*models.Class, error) {
	c, ok := f.r.store.classes[id]
	if !ok {
		return nil, notFound("class", id)
	}
	return &c, nil
}

func (f *fakeClasses) GetByCode(ctx context.Context, code string) (*models.Class, error) {
	for _, c := range f.r.store.classes {
		if c.Code == code {
			c := c
			return &c, nil
		}
	}
	return nil, notFound("class", code)
}

func (f *fakeClasses) GetByIDs(ctx context.Context, ids []uint) ([]*models.Class, error) {
	out := []*models.Class{}
	for _, id := range ids {
		if c, ok := f.r.store.classes[id]; ok {
			c := c
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeClasses) Update(ctx context.Context, class *models.Class) error {
	if _, ok := f.r.store.classes[class.ID]; !ok {
		return notFound("class", class.ID)
	}
	f.r.store.classes[class.ID] = *class
	return nil
}

func (f *fakeClasses) Delete(ctx context.Context, id uint) error {
	if _, ok := f.r.store.classes[id]; !ok {
		return notFound("class", id)
	}
	delete(f.r.store.classes, id)
	for k, m := range f.r.store.memberships {
		if m.ClassID == id {
			delete(f.r.store.memberships, k)
		}
	}
	for k, a := range f.r.store.assignments {
		if a.ClassID != nil && *a.ClassID == id {
			delete(f.r.store.assignments, k)
		}
	}
	return nil
}

func (f *fakeClasses) ExistsByCode(ctx context.Context, code string) (bool, error) {
	_, err := f.GetByCode(ctx, code)
	return err == nil, nil
}

func (f *fakeClasses) ListByTeacher(ctx context.Context, teacherID string) ([]*models.Class, error) {
	return f.ListByTeachers(ctx, []string{teacherID})
}

func (f *fakeClasses) ListByTeachers(ctx context.Context, teacherIDs []string) ([]*models.Class, error) {
	want := make(map[string]bool, len(teacherIDs))
	for _, id := range teacherIDs {
		want[id] = true
	}
	out := []*models.Class{}
	for _, c := range f.r.store.classes {
		if want[c.TeacherID] {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ===== MEMBERSHIPS =====

type fakeMemberships struct{ r *fakeRepository }

func (f *fakeMemberships) CreateIfAbsent(ctx context.Context, m *models.ClassMembership) (bool, error) {
	for _, existing := range f.r.store.memberships {
		if existing.ClassID == m.ClassID && existing.StudentID == m.StudentID {
			return false, nil
		}
	}
	m.ID = f.r.store.id()
	f.r.store.memberships[m.ID] = *m
	return true, nil
}

func (f *fakeMemberships) GetByID(ctx context.Context, id uint) (*models.ClassMembership, error) {
	m, ok := f.r.store.memberships[id]
	if !ok {
		return nil, notFound("membership", id)
	}
	if c, ok := f.r.store.classes[m.ClassID]; ok {
		m.Class = &c
	}
	return &m, nil
}

func (f *fakeMemberships) Get(ctx context.Context, classID uint, studentID string) (*models.ClassMembership, error) {
	for _, m := range f.r.store.memberships {
		if m.ClassID == classID && m.StudentID == studentID {
			m := m
			return &m, nil
		}
	}
	return nil, notFound("membership", pairKey(studentID, classID))
}

func (f *fakeMemberships) Update(ctx context.Context, m *models.ClassMembership) error {
	if _, ok := f.r.store.memberships[m.ID]; !ok {
		return notFound("membership", m.ID)
	}
	stored := *m
	stored.Class, stored.Student = nil, nil
	f.r.store.memberships[m.ID] = stored
	return nil
}

func (f *fakeMemberships) Delete(ctx context.Context, classID uint, studentID string) error {
	m, err := f.Get(ctx, classID, studentID)
	if err != nil {
		return err
	}
	delete(f.r.store.memberships, m.ID)
	return nil
}

func (f *fakeMemberships) sorted(keep func(models.ClassMembership) bool) []*models.ClassMembership {
	out := []*models.ClassMembership{}
	for _, m := range f.r.store.memberships {
		if keep(m) {
			m := m
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeMemberships) ListByClass(ctx context.Context, classID uint, filters repositories.MembershipFilters) ([]*models.ClassMembership, error) {
	out := f.sorted(func(m models.ClassMembership) bool {
		return m.ClassID == classID && (filters.Status == nil || m.Status == *filters.Status)
	})
	for _, m := range out {
		if u, ok := f.r.store.users[m.StudentID]; ok {
			m.Student = &u
		}
	}
	return out, nil
}

func (f *fakeMemberships) ListByStudent(ctx context.Context, studentID string) ([]*models.ClassMembership, error) {
	out := f.sorted(func(m models.ClassMembership) bool { return m.StudentID == studentID })
	for _, m := range out {
		if c, ok := f.r.store.classes[m.ClassID]; ok {
			if t, ok := f.r.store.users[c.TeacherID]; ok {
				c.Teacher = &t
			}
			m.Class = &c
		}
	}
	return out, nil
}

func (f *fakeMemberships) ApprovedStudentIDs(ctx context.Context, classIDs []uint) ([]string, error) {
	want := make(map[uint]bool, len(classIDs))
	for _, id := range classIDs {
		want[id] = true
	}
	var ids []string
	for _, m := range f.sorted(func(m models.ClassMembership) bool {
		return want[m.ClassID] && m.Status == models.MembershipApproved
	}) {
		ids = append(ids, m.StudentID)
	}
	return uniqueStrings(ids), nil
}

func (f *fakeMemberships) ApprovedClassIDs(ctx context.Context, studentID string) ([]uint, error) {
	ids := []uint{}
	for _, m := range f.sorted(func(m models.ClassMembership) bool {
		return m.StudentID == studentID && m.Status == models.MembershipApproved
	}) {
		ids = append(ids, m.ClassID)
	}
	return ids, nil
}

func (f *fakeMemberships) CountByClass(ctx context.Context, classIDs []uint) (map[uint]repositories.MembershipCounts, error) {
	counts := make(map[uint]repositories.MembershipCounts, len(classIDs))
	want := make(map[uint]bool, len(classIDs))
	for _, id := range classIDs {
		want[id] = true
	}
	for _, m := range f.r.store.memberships {
		if !want[m.ClassID] {
			continue
		}
		c := counts[m.ClassID]
		switch m.Status {
		case models.MembershipApproved:
			c.Approved++
		case models.MembershipPending:
			c.Pending++
		}
		counts[m.ClassID] = c
	}
	return counts, nil
}

// ===== MODULES =====

type fakeModules struct{ r *fakeRepository }

func (f *fakeModules) Create(ctx context.Context, module *models.Module) error {
	module.ID = f.r.store.id()
	stored := *module
	stored.Lessons = nil
	f.r.store.modules[module.ID] = stored
	return nil
}

func (f *fakeModules) GetByID(ctx context.Context, id uint) (*models.Module, error) {
	m, ok := f.r.store.modules[id]
	if !ok {
		return nil, notFound("module", id)
	}
	return &m, nil
}

func (f *fakeModules) GetByIDWithLessons(ctx context.Context, id uint) (*models.Module, error) {
	m, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Lessons = f.r.lessonsOf(id)
	for i := range m.Lessons {
		m.Lessons[i].Questions = f.r.questionsOf(m.Lessons[i].ID)
	}
	return m, nil
}

func (f *fakeModules) GetByIDs(ctx context.Context, ids []uint) ([]*models.Module, error) {
	out := []*models.Module{}
	for _, id := range ids {
		if m, ok := f.r.store.modules[id]; ok {
			m := m
			out = append(out, &m)
		}
	}
	return out, nil
}

func (f *fakeModules) Update(ctx context.Context, module *models.Module) error {
	if err := f.r.check("Module.Update"); err != nil {
		return err
	}
	if _, ok := f.r.store.modules[module.ID]; !ok {
		return notFound("module", module.ID)
	}
	stored := *module
	stored.Lessons = nil
	f.r.store.modules[module.ID] = stored
	return nil
}

func (f *fakeModules) Delete(ctx context.Context, id uint) error {
	if _, ok := f.r.store.modules[id]; !ok {
		return notFound("module", id)
	}
	for _, l := range f.r.lessonsOf(id) {
		f.r.deleteLessonData(l.ID)
	}
	for k, a := range f.r.store.assignments {
		if a.ModuleID == id {
			delete(f.r.store.assignments, k)
		}
	}
	for k, row := range f.r.store.studentModules {
		if row.ModuleID == id {
			delete(f.r.store.studentModules, k)
		}
	}
	delete(f.r.store.modules, id)
	return nil
}

func (f *fakeModules) List(ctx context.Context, filters repositories.ModuleFilters) ([]*models.Module, int64, error) {
	query := strings.ToLower(filters.Query)
	var matched []*models.Module
	for _, m := range f.r.store.modules {
		if filters.TeacherID != nil && m.TeacherID != *filters.TeacherID {
			continue
		}
		if filters.Status != nil && m.Status != *filters.Status {
			continue
		}
		if filters.Subject != nil && m.Subject != *filters.Subject {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(m.Title), query) {
			continue
		}
		m := m
		matched = append(matched, &m)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := int64(len(matched))
	start := filters.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if filters.Limit > 0 && start+filters.Limit < end {
		end = start + filters.Limit
	}
	return append([]*models.Module{}, matched[start:end]...), total, nil
}

// ===== LESSONS =====

type fakeLessons struct{ r *fakeRepository }

func (f *fakeLessons) Create(ctx context.Context, lesson *models.Lesson) error {
	lesson.ID = f.r.store.id()
	stored := *lesson
	stored.Questions, stored.Module = nil, nil
	f.r.store.lessons[lesson.ID] = stored
	return nil
}

func (f *fakeLessons) GetByID(ctx context.Context, id uint) (*models.Lesson, error) {
	l, ok := f.r.store.lessons[id]
	if !ok {
		return nil, notFound("lesson", id)
	}
	return &l, nil
}

func (f *fakeLessons) GetByIDWithQuestions(ctx context.Context, id uint) (*models.Lesson, error) {
	l, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	l.Questions = f.r.questionsOf(id)
	if m, ok := f.r.store.modules[l.ModuleID]; ok {
		l.Module = &m
	}
	return l, nil
}

func (f *fakeLessons) Update(ctx context.Context, lesson *models.Lesson) error {
	if _, ok := f.r.store.lessons[lesson.ID]; !ok {
		return notFound("lesson", lesson.ID)
	}
	stored := *lesson
	stored.Questions, stored.Module = nil, nil
	f.r.store.lessons[lesson.ID] = stored
	return nil
}

func (f *fakeLessons) Delete(ctx context.Context, id uint) error {
	if _, ok := f.r.store.lessons[id]; !ok {
		return notFound("lesson", id)
	}
	f.r.deleteLessonData(id)
	return nil
}

func (f *fakeLessons) ListByModule(ctx context.Context, moduleID uint) ([]*models.Lesson, error) {
	out := []*models.Lesson{}
	for _, l := range f.r.lessonsOf(moduleID) {
		l := l
		l.Questions = f.r.questionsOf(l.ID)
		out = append(out, &l)
	}
	return out, nil
}

func (f *fakeLessons) CountByModule(ctx context.Context, moduleID uint) (int64, error) {
	return int64(len(f.r.lessonsOf(moduleID))), nil
}

func (f *fakeLessons) CountByModules(ctx context.Context, moduleIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(moduleIDs))
	for _, id := range moduleIDs {
		counts[id] = int64(len(f.r.lessonsOf(id)))
	}
	return counts, nil
}

func (f *fakeLessons) NextOrderIndex(ctx context.Context, moduleID uint) (int, error) {
	next := 0
	for _, l := range f.r.lessonsOf(moduleID) {
		if l.OrderIndex >= next {
			next = l.OrderIndex + 1
		}
	}
	return next, nil
}

func (f *fakeLessons) UpdateOrder(ctx context.Context, moduleID uint, orders []repositories.LessonOrder) error {
	for _, o := range orders {
		l, ok := f.r.store.lessons[o.LessonID]
		if !ok || l.ModuleID != moduleID {
			return notFound("lesson", o.LessonID)
		}
		l.OrderIndex = o.OrderIndex
		f.r.store.lessons[o.LessonID] = l
	}
	return nil
}

// ===== QUESTIONS =====

type fakeQuestions struct{ r *fakeRepository }

func (f *fakeQuestions) Create(ctx context.Context, question *models.QuizQuestion) error {
	question.ID = f.r.store.id()
	f.r.store.questions[question.ID] = *question
	return nil
}

func (f *fakeQuestions) GetByID(ctx context.Context, id uint) (*models.QuizQuestion, error) {
	q, ok := f.r.store.questions[id]
	if !ok {
		return nil, notFound("question", id)
	}
	return &q, nil
}

func (f *fakeQuestions) Update(ctx context.Context, question *models.QuizQuestion) error {
	if _, ok := f.r.store.questions[question.ID]; !ok {
		return notFound("question", question.ID)
	}
	f.r.store.questions[question.ID] = *question
	return nil
}

func (f *fakeQuestions) Delete(ctx context.Context, id uint) error {
	if _, ok := f.r.store.questions[id]; !ok {
		return notFound("question", id)
	}
	delete(f.r.store.questions, id)
	for k, a := range f.r.store.attempts {
		if a.QuestionID == id {
			delete(f.r.store.attempts, k)
		}
	}
	return nil
}

func (f *fakeQuestions) ListByLesson(ctx context.Context, lessonID uint) ([]*models.QuizQuestion, error) {
	out := []*models.QuizQuestion{}
	for _, q := range f.r.questionsOf(lessonID) {
		q := q
		out = append(out, &q)
	}
	return out, nil
}

func (f *fakeQuestions) NextOrderIndex(ctx context.Context, lessonID uint) (int, error) {
	next := 0
	for _, q := range f.r.questionsOf(lessonID) {
		if q.OrderIndex >= next {
			next = q.OrderIndex + 1
		}
	}
	return next, nil
}

// ===== ASSIGNMENTS =====

type fakeAssignments struct{ r *fakeRepository }

func (f *fakeAssignments) Create(ctx context.Context, a *models.ModuleAssignment) error {
	key := a.TargetKey()
	for _, existing := range f.r.store.assignments {
		if existing.ModuleID == a.ModuleID && existing.TargetKey() == key {
			return fmt.Errorf("create assignment: %w", repositories.ErrDuplicate)
		}
	}
	a.ID = f.r.store.id()
	stored := *a
	stored.Module = nil
	f.r.store.assignments[a.ID] = stored
	return nil
}

func (f *fakeAssignments) UpdateDueDate(ctx context.Context, id uint, dueDate *time.Time) error {
	a, ok := f.r.store.assignments[id]
	if !ok {
		return notFound("assignment", id)
	}
	a.DueDate = dueDate
	f.r.store.assignments[id] = a
	return nil
}

func (f *fakeAssignments) DeleteByIDs(ctx context.Context, ids []uint) error {
	if err := f.r.check("Assignment.DeleteByIDs"); err != nil {
		return err
	}
	for _, id := range ids {
		delete(f.r.store.assignments, id)
	}
	return nil
}

func (f *fakeAssignments) list(keep func(models.ModuleAssignment) bool) []*models.ModuleAssignment {
	out := []*models.ModuleAssignment{}
	for _, a := range f.r.store.assignments {
		if keep(a) {
			a := a
			if m, ok := f.r.store.modules[a.ModuleID]; ok {
				a.Module = &m
			}
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeAssignments) ListByModule(ctx context.Context, moduleID uint) ([]*models.ModuleAssignment, error) {
	out := f.list(func(a models.ModuleAssignment) bool { return a.ModuleID == moduleID })
	for _, a := range out {
		a.Module = nil
	}
	return out, nil
}

func (f *fakeAssignments) ListByClass(ctx context.Context, classID uint) ([]*models.ModuleAssignment, error) {
	return f.list(func(a models.ModuleAssignment) bool { return a.ClassID != nil && *a.ClassID == classID }), nil
}

func (f *fakeAssignments) ListByStudents(ctx context.Context, studentIDs []string) ([]*models.ModuleAssignment, error) {
	want := make(map[string]bool, len(studentIDs))
	for _, id := range studentIDs {
		want[id] = true
	}
	return f.list(func(a models.ModuleAssignment) bool { return a.StudentID != nil && want[*a.StudentID] }), nil
}

func (f *fakeAssignments) ListForStudent(ctx context.Context, studentID string, classIDs []uint) ([]repositories.StudentAssignment, error) {
	inClass := make(map[uint]bool, len(classIDs))
	for _, id := range classIDs {
		inClass[id] = true
	}
	due := map[uint]*time.Time{}
	var order []uint
	for _, a := range f.list(func(a models.ModuleAssignment) bool {
		return (a.StudentID != nil && *a.StudentID == studentID) || (a.ClassID != nil && inClass[*a.ClassID])
	}) {
		current, seen := due[a.ModuleID]
		if !seen {
			order = append(order, a.ModuleID)
		}
		due[a.ModuleID] = earliest(current, a.DueDate)
	}
	out := make([]repositories.StudentAssignment, 0, len(order))
	for _, id := range order {
		out = append(out, repositories.StudentAssignment{ModuleID: id, DueDate: due[id]})
	}
	return out, nil
}

// ===== PROGRESS =====

type fakeProgress struct{ r *fakeRepository }

func (f *fakeProgress) UpsertAttempts(ctx context.Context, attempts []*models.QuizAttempt) error {
	if err := f.r.check("Progress.UpsertAttempts"); err != nil {
		return err
	}
	for _, a := range attempts {
		key := pairKey(a.StudentID, a.QuestionID)
		stored := *a
		stored.Question = nil
		if existing, ok := f.r.store.attempts[key]; ok {
			stored.ID = existing.ID
		} else {
			stored.ID = f.r.store.id()
		}
		a.ID = stored.ID
		f.r.store.attempts[key] = stored
	}
	return nil
}

func (f *fakeProgress) ListAttempts(ctx context.Context, filters repositories.AttemptFilters) ([]*models.QuizAttempt, error) {
	lessonFilter := make(map[uint]bool, len(filters.LessonIDs))
	for _, id := range filters.LessonIDs {
		lessonFilter[id] = true
	}
	out := []*models.QuizAttempt{}
	for _, a := range f.r.store.attempts {
		if a.StudentID != filters.StudentID {
			continue
		}
		if filters.ModuleID != nil {
			l, ok := f.r.store.lessons[a.LessonID]
			if !ok || l.ModuleID != *filters.ModuleID {
				continue
			}
		}
		if len(lessonFilter) > 0 && !lessonFilter[a.LessonID] {
			continue
		}
		if filters.Since != nil && a.AttemptedAt.Before(*filters.Since) {
			continue
		}
		a := a
		if q, ok := f.r.store.questions[a.QuestionID]; ok {
			a.Question = &q
		}
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AttemptedAt.Equal(out[j].AttemptedAt) {
			return out[i].AttemptedAt.After(out[j].AttemptedAt)
		}
		return out[i].ID > out[j].ID
	})
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}

func (f *fakeProgress) UpsertLessonProgress(ctx context.Context, progress *models.LessonProgress) error {
	if err := f.r.check("Progress.UpsertLessonProgress"); err != nil {
		return err
	}
	key := pairKey(progress.StudentID, progress.LessonID)
	stored := *progress
	if existing, ok := f.r.store.lessonProgress[key]; ok {
		stored.ID = existing.ID
	} else {
		stored.ID = f.r.store.id()
	}
	progress.ID = stored.ID
	f.r.store.lessonProgress[key] = stored
	return nil
}

func (f *fakeProgress) ListLessonProgress(ctx context.Context, studentID string, lessonIDs []uint) ([]*models.LessonProgress, error) {
	out := []*models.LessonProgress{}
	for _, id := range lessonIDs {
		if p, ok := f.r.store.lessonProgress[pairKey(studentID, id)]; ok {
			p := p
			out = append(out, &p)
		}
	}
	return out, nil
}

func (f *fakeProgress) CountCompletedLessons(ctx context.Context, studentID string, moduleID uint) (int64, error) {
	var n int64
	for _, p := range f.r.store.lessonProgress {
		if p.StudentID != studentID || !p.Completed {
			continue
		}
		if l, ok := f.r.store.lessons[p.LessonID]; ok && l.ModuleID == moduleID {
			n++
		}
	}
	return n, nil
}

func (f *fakeProgress) EnsureStudentModules(ctx context.Context, rows []*models.StudentModule) error {
	for _, row := range rows {
		key := pairKey(row.StudentID, row.ModuleID)
		if _, ok := f.r.store.studentModules[key]; ok {
			continue
		}
		stored := *row
		stored.ID = f.r.store.id()
		stored.Module, stored.Student = nil, nil
		f.r.store.studentModules[key] = stored
	}
	return nil
}

func (f *fakeProgress) GetStudentModule(ctx context.Context, studentID string, moduleID uint) (*models.StudentModule, error) {
	row, ok := f.r.store.studentModules[pairKey(studentID, moduleID)]
	if !ok {
		return nil, notFound("student module", pairKey(studentID, moduleID))
	}
	return &row, nil
}

func (f *fakeProgress) SaveStudentModule(ctx context.Context, row *models.StudentModule) error {
	if err := f.r.check("Progress.SaveStudentModule"); err != nil {
		return err
	}
	key := pairKey(row.StudentID, row.ModuleID)
	stored := *row
	stored.Module, stored.Student = nil, nil
	if existing, ok := f.r.store.studentModules[key]; ok {
		stored.ID = existing.ID
	} else {
		stored.ID = f.r.store.id()
	}
	row.ID = stored.ID
	f.r.store.studentModules[key] = stored
	return nil
}

func (f *fakeProgress) ListStudentModules(ctx context.Context, filters repositories.StudentModuleFilters) ([]*models.StudentModule, error) {
	students := make(map[string]bool, len(filters.StudentIDs))
	for _, id := range filters.StudentIDs {
		students[id] = true
	}
	modules := make(map[uint]bool, len(filters.ModuleIDs))
	for _, id := range filters.ModuleIDs {
		modules[id] = true
	}
	out := []*models.StudentModule{}
	for _, row := range f.r.store.studentModules {
		if len(students) > 0 && !students[row.StudentID] {
			continue
		}
		if len(modules) > 0 && !modules[row.ModuleID] {
			continue
		}
		row := row
		if m, ok := f.r.store.modules[row.ModuleID]; ok {
			row.Module = &m
		}
		if u, ok := f.r.store.users[row.StudentID]; ok {
			row.Student = &u
		}
		out = append(out, &row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ModuleID != out[j].ModuleID {
			return out[i].ModuleID < out[j].ModuleID
		}
		return out[i].StudentID < out[j].StudentID
	})
	return out, nil
}

var _ repositories.Repository = (*fakeRepository)(nil)
