package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClassifyStatus(t *testing.T) {
	deadline := time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC)

	require.Equal(t, SubmissionStatusSubmitted, ClassifyStatus(deadline.Add(-time.Hour), deadline))
	require.Equal(t, SubmissionStatusLate, ClassifyStatus(deadline.Add(time.Nanosecond), deadline))
	require.Equal(t, SubmissionStatusLate, ClassifyStatus(deadline.Add(48*time.Hour), deadline))

	// the deadline instant itself is still on time
	require.Equal(t, SubmissionStatusSubmitted, ClassifyStatus(deadline, deadline))
}

func TestIsGraded(t *testing.T) {
	require.False(t, Submission{Status: SubmissionStatusSubmitted}.IsGraded())
	require.False(t, Submission{Status: SubmissionStatusLate}.IsGraded())
	require.True(t, Submission{Status: SubmissionStatusGraded}.IsGraded())
}

func TestAssignmentIsPastDue(t *testing.T) {
	deadline := time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC)
	assignment := Assignment{Deadline: deadline}

	require.False(t, assignment.IsPastDue(deadline.Add(-time.Minute)))
	require.False(t, assignment.IsPastDue(deadline))
	require.True(t, assignment.IsPastDue(deadline.Add(time.Minute)))
}
