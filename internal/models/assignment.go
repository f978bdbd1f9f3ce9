package models

import "time"

// Assignment represents a unit of work a teacher publishes to a group. The
// submission workflow reads assignments but never mutates them; assignment
// CRUD is owned by the registry service.
type Assignment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	GroupID     uint      `gorm:"not null" json:"group_id"`
	OwnerID     uint      `gorm:"not null;index" json:"owner_id"`
	Deadline    time.Time `gorm:"not null" json:"deadline"`
	MaxScore    float64   `gorm:"not null" json:"max_score"`
	FileURL     string    `gorm:"size:512" json:"file_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Group       Group     `json:"group"`
}

// IsPastDue returns true when the deadline has already passed at the given
// reference instant. The deadline instant itself still counts as on time.
func (a Assignment) IsPastDue(reference time.Time) bool {
	return reference.After(a.Deadline)
}

// IsOwnedBy reports whether the given teacher created this assignment.
func (a Assignment) IsOwnedBy(teacherID uint) bool {
	return a.OwnerID == teacherID
}
