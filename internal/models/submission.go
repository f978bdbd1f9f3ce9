package models

import "time"

// SubmissionStatus is the explicit lifecycle state of a submission. It is
// stored as its own column rather than inferred from nullable fields so the
// state machine stays exhaustively checkable.
type SubmissionStatus string

const (
	// SubmissionStatusSubmitted indicates the work arrived before the deadline and has not been graded.
	SubmissionStatusSubmitted SubmissionStatus = "submitted"
	// SubmissionStatusLate indicates the first submission arrived after the deadline.
	SubmissionStatusLate SubmissionStatus = "late"
	// SubmissionStatusGraded indicates a teacher has recorded a grade. Terminal for student edits.
	SubmissionStatusGraded SubmissionStatus = "graded"
)

// Submission is a student's single current response to one assignment. The
// composite unique index on (assignment_id, student_id) is the sole
// concurrency safeguard for first submissions.
type Submission struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	AssignmentID   uint             `gorm:"not null;uniqueIndex:idx_submission_pair" json:"assignment_id"`
	StudentID      uint             `gorm:"not null;uniqueIndex:idx_submission_pair" json:"student_id"`
	ArtifactURL    string           `gorm:"size:512" json:"artifact_url"`
	StudentComment string           `gorm:"type:text" json:"student_comment"`
	SubmittedAt    time.Time        `gorm:"not null" json:"submitted_at"`
	Grade          *float64         `json:"grade"`
	TeacherComment string           `gorm:"type:text" json:"teacher_comment"`
	Status         SubmissionStatus `gorm:"size:32;not null" json:"status"`
	GradedBy       *uint            `json:"graded_by"`
	GradedAt       *time.Time       `json:"graded_at"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	Assignment     Assignment       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"assignment"`
	Student        User             `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
}

// IsGraded reports whether the submission has a final grade.
func (s Submission) IsGraded() bool {
	return s.Status == SubmissionStatusGraded
}

// ClassifyStatus determines the lateness status for work submitted at the
// given instant. Strictly after the deadline is late; the deadline instant
// itself is still on time.
func ClassifyStatus(submittedAt, deadline time.Time) SubmissionStatus {
	if submittedAt.After(deadline) {
		return SubmissionStatusLate
	}
	return SubmissionStatusSubmitted
}

// SubmissionGradeHistory records every grade call, including overwrites.
// Re-grading is allowed and simply appends another entry.
type SubmissionGradeHistory struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubmissionID uint      `gorm:"not null;index" json:"submission_id"`
	Score        float64   `gorm:"not null" json:"score"`
	Feedback     string    `gorm:"type:text" json:"feedback"`
	GradedBy     uint      `gorm:"not null" json:"graded_by"`
	GradedAt     time.Time `gorm:"not null" json:"graded_at"`
}
