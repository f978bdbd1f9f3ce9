package models

import "time"

// Group is a class group owned by a teacher. Roster management lives in a
// separate service; this core only reads group names for display joins.
type Group struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Code      string    `gorm:"size:64" json:"code"`
	TeacherID uint      `gorm:"not null" json:"teacher_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
