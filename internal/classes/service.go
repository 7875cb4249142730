package classes

import (
	"context"
	"time"

	"github.com/google/uuid"

	"classtrack/internal/apperr"
	"classtrack/internal/auth"
	"classtrack/internal/users"
)

// Store is the persistence surface the service needs.
type Store interface {
	CreateClass(ctx context.Context, c Class) error
	GetClass(ctx context.Context, id string) (Class, error)
	ListClasses(ctx context.Context, teacherID string) ([]Class, error)
	UpdateClass(ctx context.Context, c Class) error
	DeleteClass(ctx context.Context, id string) error
	CreateEnrollment(ctx context.Context, e Enrollment) error
	DeleteEnrollment(ctx context.Context, classID, studentID string) error
	ListClassEnrollments(ctx context.Context, classID string) ([]Enrollment, error)
	ListStudentClasses(ctx context.Context, studentID string) ([]Class, error)
}

// Directory looks up user records for role validation.
type Directory interface {
	GetUser(ctx context.Context, id string) (users.User, error)
}

// Service coordinates class and enrollment changes with ownership checks.
type Service struct {
	store Store
	dir   Directory
	now   func() time.Time
}

// NewService creates a service backed by a store and a user directory.
func NewService(store Store, dir Directory) *Service {
	return &Service{store: store, dir: dir, now: time.Now}
}

// Input carries the fields for creating or updating a class.
type Input struct {
	Name      string
	Subject   string
	Grade     string
	Section   string
	TeacherID string
	Schedule  Schedule
}

func canManage(requester auth.Identity, c Class) bool {
	return requester.Role == string(users.RoleAdmin) || requester.ID == c.TeacherID
}

// Create adds a class. Teachers may only create classes they own; admins may
// assign any teacher.
func (s *Service) Create(ctx context.Context, in Input, requester auth.Identity) (Class, error) {
	if in.Name == "" {
		return Class{}, apperr.Validation("missing_fields", "name is required")
	}
	teacherID := in.TeacherID
	switch requester.Role {
	case string(users.RoleTeacher):
		if teacherID == "" {
			teacherID = requester.ID
		}
		if teacherID != requester.ID {
			return Class{}, apperr.Authorization("not_owner", "teachers may only create their own classes")
		}
	case string(users.RoleAdmin):
		if teacherID == "" {
			return Class{}, apperr.Validation("missing_fields", "teacher_id is required")
		}
	default:
		return Class{}, apperr.Authorization("forbidden", "only teachers and admins create classes")
	}

	owner, err := s.dir.GetUser(ctx, teacherID)
	if err != nil {
		return Class{}, err
	}
	if owner.Role != users.RoleTeacher {
		return Class{}, apperr.Validation("not_a_teacher", "class owner must be a teacher")
	}

	c := Class{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Subject:   in.Subject,
		Grade:     in.Grade,
		Section:   in.Section,
		TeacherID: teacherID,
		Schedule:  in.Schedule,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateClass(ctx, c); err != nil {
		return Class{}, err
	}
	return c, nil
}

// Get returns one class.
func (s *Service) Get(ctx context.Context, id string) (Class, error) {
	return s.store.GetClass(ctx, id)
}

// List returns classes visible to the requester: admins see all, teachers
// see their own, students see their enrollments.
func (s *Service) List(ctx context.Context, requester auth.Identity) ([]Class, error) {
	switch requester.Role {
	case string(users.RoleAdmin):
		return s.store.ListClasses(ctx, "")
	case string(users.RoleTeacher):
		return s.store.ListClasses(ctx, requester.ID)
	default:
		return s.store.ListStudentClasses(ctx, requester.ID)
	}
}

// Update rewrites a class. Reassigning the owning teacher does not
// retroactively validate existing enrollments.
func (s *Service) Update(ctx context.Context, id string, in Input, requester auth.Identity) (Class, error) {
	c, err := s.store.GetClass(ctx, id)
	if err != nil {
		return Class{}, err
	}
	if !canManage(requester, c) {
		return Class{}, apperr.Authorization("not_owner", "only the owning teacher or an admin may update a class")
	}
	if in.Name != "" {
		c.Name = in.Name
	}
	if in.Subject != "" {
		c.Subject = in.Subject
	}
	if in.Grade != "" {
		c.Grade = in.Grade
	}
	if in.Section != "" {
		c.Section = in.Section
	}
	if in.Schedule != nil {
		c.Schedule = in.Schedule
	}
	if in.TeacherID != "" && in.TeacherID != c.TeacherID {
		if requester.Role != string(users.RoleAdmin) {
			return Class{}, apperr.Authorization("forbidden", "only admins may reassign a class")
		}
		owner, err := s.dir.GetUser(ctx, in.TeacherID)
		if err != nil {
			return Class{}, err
		}
		if owner.Role != users.RoleTeacher {
			return Class{}, apperr.Validation("not_a_teacher", "class owner must be a teacher")
		}
		c.TeacherID = in.TeacherID
	}
	if err := s.store.UpdateClass(ctx, c); err != nil {
		return Class{}, err
	}
	return c, nil
}

// Delete removes a class and its dependents.
func (s *Service) Delete(ctx context.Context, id string, requester auth.Identity) error {
	c, err := s.store.GetClass(ctx, id)
	if err != nil {
		return err
	}
	if !canManage(requester, c) {
		return apperr.Authorization("not_owner", "only the owning teacher or an admin may delete a class")
	}
	return s.store.DeleteClass(ctx, id)
}

// Enroll adds a student to a class.
func (s *Service) Enroll(ctx context.Context, classID, studentID string, requester auth.Identity) (Enrollment, error) {
	c, err := s.store.GetClass(ctx, classID)
	if err != nil {
		return Enrollment{}, err
	}
	if !canManage(requester, c) {
		return Enrollment{}, apperr.Authorization("not_owner", "only the owning teacher or an admin may enroll students")
	}
	student, err := s.dir.GetUser(ctx, studentID)
	if err != nil {
		return Enrollment{}, err
	}
	if student.Role != users.RoleStudent {
		return Enrollment{}, apperr.Validation("not_a_student", "only students can be enrolled")
	}
	e := Enrollment{
		ID:        uuid.NewString(),
		StudentID: studentID,
		ClassID:   classID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateEnrollment(ctx, e); err != nil {
		return Enrollment{}, err
	}
	return e, nil
}

// Unenroll removes a student from a class.
func (s *Service) Unenroll(ctx context.Context, classID, studentID string, requester auth.Identity) error {
	c, err := s.store.GetClass(ctx, classID)
	if err != nil {
		return err
	}
	if !canManage(requester, c) {
		return apperr.Authorization("not_owner", "only the owning teacher or an admin may unenroll students")
	}
	return s.store.DeleteEnrollment(ctx, classID, studentID)
}

// Roster lists a class's enrollments.
func (s *Service) Roster(ctx context.Context, classID string, requester auth.Identity) ([]Enrollment, error) {
	c, err := s.store.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if !canManage(requester, c) {
		return nil, apperr.Authorization("not_owner", "only the owning teacher or an admin may view the roster")
	}
	return s.store.ListClassEnrollments(ctx, classID)
}
