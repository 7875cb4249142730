package users

import "time"

// Role tags a user as student, teacher or admin.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleTeacher Role = "TEACHER"
	RoleAdmin   Role = "ADMIN"
)

// Valid returns true when the role is a supported value.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	default:
		return false
	}
}

// Profile is the role-specific attribute set attached to exactly one user.
// It is a closed union: StudentProfile, TeacherProfile or AdminProfile.
type Profile interface {
	Role() Role
	profile()
}

// StudentProfile holds student attributes.
type StudentProfile struct {
	GradeLevel    string `json:"grade_level"`
	Section       string `json:"section"`
	GuardianPhone string `json:"guardian_phone"`
}

func (StudentProfile) Role() Role { return RoleStudent }
func (StudentProfile) profile()   {}

// TeacherProfile holds teacher attributes.
type TeacherProfile struct {
	Subject    string `json:"subject"`
	Department string `json:"department"`
}

func (TeacherProfile) Role() Role { return RoleTeacher }
func (TeacherProfile) profile()   {}

// AdminProfile holds admin attributes.
type AdminProfile struct {
	Title string `json:"title"`
}

func (AdminProfile) Role() Role { return RoleAdmin }
func (AdminProfile) profile()   {}

// User is an account with credentials and its role profile.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	Profile      Profile   `json:"profile"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RefreshToken is a stored refresh token for rotation checks.
type RefreshToken struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	Revoked   bool
}
