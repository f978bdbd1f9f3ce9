package models

import "time"

// Role values recognised by the service. They are attached to the JWT by the
// identity provider and trusted as-is.
const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// User represents an account in the school, either a teacher or a student.
type User struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"size:255;not null" json:"name"`
	Email         string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Role          string    `gorm:"size:32;not null" json:"role"`
	StudentNumber string    `gorm:"size:64" json:"student_number"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsTeacher reports whether the user holds the teacher role.
func (u User) IsTeacher() bool {
	return u.Role == RoleTeacher
}

// IsStudent reports whether the user holds the student role.
func (u User) IsStudent() bool {
	return u.Role == RoleStudent
}
