package classes

import "time"

// TimeSlot is one scheduled block within a day, "15:04" wall-clock strings.
type TimeSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Schedule maps a weekday name to its time slots.
type Schedule map[string][]TimeSlot

// Class is a subject/grade/section owned by one teacher.
type Class struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject"`
	Grade     string    `json:"grade"`
	Section   string    `json:"section"`
	TeacherID string    `json:"teacher_id"`
	Schedule  Schedule  `json:"schedule"`
	CreatedAt time.Time `json:"created_at"`
}

// Enrollment joins a student to a class; at most one per (student, class).
type Enrollment struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	ClassID     string    `json:"class_id"`
	StudentName string    `json:"student_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
