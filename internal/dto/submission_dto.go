package dto

import (
	"time"

	"github.com/aulaworks/aula-go-api/internal/models"
)

// SubmitRequest describes the multipart payload for handing in work. The
// student identity comes from the authenticated caller, never from the form.
type SubmitRequest struct {
	AssignmentID uint   `form:"assignment_id" validate:"required,gt=0"`
	Comment      string `form:"comment" validate:"omitempty,max=2000"`
}

// GradeRequest is the payload a teacher sends to grade a submission. The
// upper score bound depends on the assignment and is enforced in the service.
type GradeRequest struct {
	Score   *float64 `json:"score" validate:"required,gte=0"`
	Comment string   `json:"comment" validate:"omitempty,max=2000"`
}

// AssignmentLite summarizes an assignment in submission responses.
type AssignmentLite struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	GroupName string    `json:"group_name"`
	Deadline  time.Time `json:"deadline"`
	MaxScore  float64   `json:"max_score"`
}

// StudentLite summarizes a student without exposing full profile data.
type StudentLite struct {
	ID            uint   `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	StudentNumber string `json:"student_number,omitempty"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID             uint                    `json:"id"`
	AssignmentID   uint                    `json:"assignment_id"`
	StudentID      uint                    `json:"student_id"`
	ArtifactURL    string                  `json:"artifact_url"`
	StudentComment string                  `json:"student_comment"`
	SubmittedAt    time.Time               `json:"submitted_at"`
	Grade          *float64                `json:"grade"`
	TeacherComment string                  `json:"teacher_comment"`
	Status         models.SubmissionStatus `json:"status"`
	GradedBy       *uint                   `json:"graded_by"`
	GradedAt       *time.Time              `json:"graded_at"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
	Assignment     AssignmentLite          `json:"assignment"`
	Student        StudentLite             `json:"student"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:             model.ID,
		AssignmentID:   model.AssignmentID,
		StudentID:      model.StudentID,
		ArtifactURL:    model.ArtifactURL,
		StudentComment: model.StudentComment,
		SubmittedAt:    model.SubmittedAt,
		Grade:          model.Grade,
		TeacherComment: model.TeacherComment,
		Status:         model.Status,
		GradedBy:       model.GradedBy,
		GradedAt:       model.GradedAt,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}

	if model.Assignment.ID != 0 {
		response.Assignment = AssignmentLite{
			ID:        model.Assignment.ID,
			Title:     model.Assignment.Title,
			GroupName: model.Assignment.Group.Name,
			Deadline:  model.Assignment.Deadline,
			MaxScore:  model.Assignment.MaxScore,
		}
	}

	if model.Student.ID != 0 {
		response.Student = StudentLite{
			ID:            model.Student.ID,
			Name:          model.Student.Name,
			Email:         model.Student.Email,
			StudentNumber: model.Student.StudentNumber,
		}
	}

	return response
}

// NewSubmissionResponseSlice converts submission models into DTOs.
func NewSubmissionResponseSlice(submissions []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, NewSubmissionResponse(submission))
	}

	return responses
}
