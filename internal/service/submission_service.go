package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/aulaworks/aula-go-api/internal/dto"
	"github.com/aulaworks/aula-go-api/internal/models"
	"github.com/aulaworks/aula-go-api/internal/observability"
	"github.com/aulaworks/aula-go-api/internal/repository"
)

var (
	// ErrAssignmentNotFound indicates the referenced assignment does not exist.
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrSubmissionNotFound indicates a submission could not be found.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrNotAStudent indicates a non-student caller tried to submit work.
	ErrNotAStudent = errors.New("only students can submit work")
	// ErrNotATeacher indicates a non-teacher caller tried a grading operation.
	ErrNotATeacher = errors.New("only teachers can perform this operation")
	// ErrNotAssignmentOwner indicates the teacher does not own the assignment.
	ErrNotAssignmentOwner = errors.New("assignment was not created by this teacher")
	// ErrSubmissionGraded indicates an edit was attempted on a graded submission.
	ErrSubmissionGraded = errors.New("submission already graded, cannot edit")
	// ErrDeadlinePassed indicates an edit was attempted after the deadline.
	ErrDeadlinePassed = errors.New("deadline passed, cannot edit")
	// ErrScoreOutOfRange indicates a grade outside [0, assignment max score].
	ErrScoreOutOfRange = errors.New("score is outside the assignment score range")
)

// Caller is the authenticated identity and role an operation executes under.
// It is populated by the session middleware and trusted as-is; this service
// only performs cross-entity ownership checks on top of it.
type Caller struct {
	ID   uint
	Role string
}

// SubmissionService is the submission workflow engine: it owns the lifecycle
// of the single submission record per (assignment, student) pair, including
// lateness classification, edit locking, and grading authorization.
type SubmissionService interface {
	Submit(ctx context.Context, caller Caller, payload dto.SubmitRequest, file *multipart.FileHeader) (dto.SubmissionResponse, error)
	ListByAssignment(ctx context.Context, caller Caller, assignmentID uint) ([]dto.SubmissionResponse, error)
	ListMine(ctx context.Context, caller Caller) ([]dto.SubmissionResponse, error)
	Grade(ctx context.Context, caller Caller, submissionID uint, payload dto.GradeRequest) (dto.SubmissionResponse, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	assignments repository.AssignmentRepository
	validator   *validator.Validate
	storage     FileStorage
	events      EventPublisher
	activity    ActivityRecorder
	cache       *redis.Client
	cacheTTL    time.Duration
	maxUpload   int64
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// SubmissionServiceOptions bundles the optional collaborators of the engine.
// Cache, events, and activity may be left nil; the workflow degrades to
// store-only behaviour without them.
type SubmissionServiceOptions struct {
	Cache     *redis.Client
	CacheTTL  time.Duration
	Events    EventPublisher
	Activity  ActivityRecorder
	MaxSizeMB int
}

// NewSubmissionService constructs the workflow engine.
func NewSubmissionService(subRepo repository.SubmissionRepository, assignmentRepo repository.AssignmentRepository, validate *validator.Validate, storage FileStorage, opts SubmissionServiceOptions, logger zerolog.Logger) SubmissionService {
	maxSizeMB := opts.MaxSizeMB
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}

	return &submissionService{
		submissions: subRepo,
		assignments: assignmentRepo,
		validator:   validate,
		storage:     storage,
		events:      opts.Events,
		activity:    opts.Activity,
		cache:       opts.Cache,
		cacheTTL:    opts.CacheTTL,
		maxUpload:   int64(maxSizeMB) * 1024 * 1024,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "submission_service").Logger(),
		tracer:      otel.Tracer("github.com/aulaworks/aula-go-api/internal/service/submission"),
		now:         time.Now,
	}
}

// Submit creates the caller's submission for an assignment, or replaces it
// while the edit window is still open. The very first submission is accepted
// even after the deadline and lands directly in the late state.
func (s *submissionService) Submit(ctx context.Context, caller Caller, payload dto.SubmitRequest, file *multipart.FileHeader) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.submit")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("submission.assignment_id", int64(payload.AssignmentID)),
		attribute.Int64("submission.student_id", int64(caller.ID)),
	)

	if caller.Role != models.RoleStudent {
		observability.SubmissionsRejected().WithLabelValues("role").Inc()
		span.SetStatus(codes.Error, "caller_not_student")
		return dto.SubmissionResponse{}, ErrNotAStudent
	}

	if err := s.validator.Struct(payload); err != nil {
		observability.SubmissionsRejected().WithLabelValues("validation").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.SubmissionResponse{}, err
	}

	art, err := readArtifact(file, s.maxUpload)
	if err != nil {
		observability.SubmissionsRejected().WithLabelValues("artifact").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "artifact_rejected")
		return dto.SubmissionResponse{}, err
	}

	assignment, err := s.assignments.GetByID(ctx, payload.AssignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.SubmissionsRejected().WithLabelValues("not_found").Inc()
			span.SetStatus(codes.Error, "assignment_not_found")
			return dto.SubmissionResponse{}, ErrAssignmentNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "assignment_lookup_failed")
		return dto.SubmissionResponse{}, err
	}

	comment := s.sanitizer.Sanitize(payload.Comment)

	existing, err := s.submissions.GetByAssignmentAndStudent(ctx, assignment.ID, caller.ID)
	switch {
	case err == nil:
		return s.resubmit(ctx, span, assignment, existing, art, comment, "")
	case errors.Is(err, gorm.ErrRecordNotFound):
		// first submission for this pair
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_lookup_failed")
		return dto.SubmissionResponse{}, err
	}

	now := s.now()
	status := models.ClassifyStatus(now, assignment.Deadline)

	// The blob upload must complete before any store mutation. If the store
	// write fails afterwards the blob is orphaned; there is no compensating
	// delete.
	url, err := s.storage.Upload(ctx, art.Name, art.Reader())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload_failed")
		return dto.SubmissionResponse{}, fmt.Errorf("failed to store artifact: %w", err)
	}

	submission := models.Submission{
		AssignmentID:   assignment.ID,
		StudentID:      caller.ID,
		ArtifactURL:    url,
		StudentComment: comment,
		SubmittedAt:    now,
		Status:         status,
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost a concurrent first-submission race. The uniqueness
			// constraint is the only safeguard here; retry as an update
			// against the winning record.
			existing, getErr := s.submissions.GetByAssignmentAndStudent(ctx, assignment.ID, caller.ID)
			if getErr != nil {
				span.RecordError(getErr)
				span.SetStatus(codes.Error, "conflict_refetch_failed")
				return dto.SubmissionResponse{}, getErr
			}
			return s.resubmit(ctx, span, assignment, existing, art, comment, url)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_create_failed")
		return dto.SubmissionResponse{}, err
	}

	created, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_reload_failed")
		return dto.SubmissionResponse{}, err
	}

	s.afterSubmit(ctx, caller, created)
	span.SetAttributes(attribute.String("submission.status", string(created.Status)))
	span.SetStatus(codes.Ok, "created")

	s.logger.Info().
		Uint("submission_id", created.ID).
		Uint("assignment_id", assignment.ID).
		Str("status", string(created.Status)).
		Msg("submission created")

	return dto.NewSubmissionResponse(created), nil
}

// resubmit replaces an existing unlocked submission. uploadedURL carries a
// blob URL from a create attempt that lost the uniqueness race, so the same
// artifact is not uploaded twice.
func (s *submissionService) resubmit(ctx context.Context, span trace.Span, assignment models.Assignment, existing models.Submission, art artifact, comment, uploadedURL string) (dto.SubmissionResponse, error) {
	if existing.IsGraded() {
		observability.SubmissionsRejected().WithLabelValues("graded").Inc()
		span.SetStatus(codes.Error, "locked_graded")
		return dto.SubmissionResponse{}, ErrSubmissionGraded
	}

	now := s.now()
	if !now.Before(assignment.Deadline) {
		observability.SubmissionsRejected().WithLabelValues("deadline").Inc()
		span.SetStatus(codes.Error, "locked_deadline")
		return dto.SubmissionResponse{}, ErrDeadlinePassed
	}

	url := uploadedURL
	if url == "" {
		var err error
		url, err = s.storage.Upload(ctx, art.Name, art.Reader())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "upload_failed")
			return dto.SubmissionResponse{}, fmt.Errorf("failed to store artifact: %w", err)
		}
	}

	existing.ArtifactURL = url
	existing.StudentComment = comment
	existing.SubmittedAt = now
	existing.Status = models.ClassifyStatus(now, assignment.Deadline)

	if err := s.submissions.Update(ctx, &existing); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_update_failed")
		return dto.SubmissionResponse{}, err
	}

	updated, err := s.submissions.GetByID(ctx, existing.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_reload_failed")
		return dto.SubmissionResponse{}, err
	}

	s.afterSubmit(ctx, Caller{ID: existing.StudentID, Role: models.RoleStudent}, updated)
	span.SetAttributes(attribute.String("submission.status", string(updated.Status)))
	span.SetStatus(codes.Ok, "replaced")

	s.logger.Info().
		Uint("submission_id", updated.ID).
		Uint("assignment_id", assignment.ID).
		Str("status", string(updated.Status)).
		Msg("submission replaced")

	return dto.NewSubmissionResponse(updated), nil
}

// ListByAssignment returns every submission for an assignment, joined with
// student identity. Only the assignment owner may call it.
func (s *submissionService) ListByAssignment(ctx context.Context, caller Caller, assignmentID uint) ([]dto.SubmissionResponse, error) {
	if caller.Role != models.RoleTeacher {
		return nil, ErrNotATeacher
	}

	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}

	if !assignment.IsOwnedBy(caller.ID) {
		return nil, ErrNotAssignmentOwner
	}

	submissions, err := s.submissions.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

// ListMine returns all of the caller's submissions joined with assignment
// context. Results are cached per student and invalidated on every write.
func (s *submissionService) ListMine(ctx context.Context, caller Caller) ([]dto.SubmissionResponse, error) {
	if caller.Role != models.RoleStudent {
		return nil, ErrNotAStudent
	}

	cacheKey := studentCacheKey(caller.ID)
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey).Result()
		if err == nil {
			var responses []dto.SubmissionResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &responses); unmarshalErr == nil {
				observability.CacheOperations().WithLabelValues("read", "hit").Inc()
				return responses, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read submission cache")
		}
		observability.CacheOperations().WithLabelValues("read", "miss").Inc()
	}

	submissions, err := s.submissions.ListByStudent(ctx, caller.ID)
	if err != nil {
		return nil, err
	}

	responses := dto.NewSubmissionResponseSlice(submissions)

	if s.cache != nil {
		if payload, err := json.Marshal(responses); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store submission cache")
			}
		}
	}

	return responses, nil
}

// Grade records a score and feedback for a submission and locks it. Only the
// teacher who created the assignment may grade; re-grading overwrites the
// previous score and appends to the grade history.
func (s *submissionService) Grade(ctx context.Context, caller Caller, submissionID uint, payload dto.GradeRequest) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.grade")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("submission.id", int64(submissionID)),
		attribute.Int64("submission.grader_id", int64(caller.ID)),
	)

	start := time.Now()
	defer func() {
		observability.GradingLatency().Observe(time.Since(start).Seconds())
	}()

	if caller.Role != models.RoleTeacher {
		span.SetStatus(codes.Error, "caller_not_teacher")
		return dto.SubmissionResponse{}, ErrNotATeacher
	}

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "submission_not_found")
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_lookup_failed")
		return dto.SubmissionResponse{}, err
	}

	if !submission.Assignment.IsOwnedBy(caller.ID) {
		span.SetStatus(codes.Error, "not_assignment_owner")
		return dto.SubmissionResponse{}, ErrNotAssignmentOwner
	}

	score := *payload.Score
	if score < 0 || score > submission.Assignment.MaxScore+1e-9 {
		span.SetStatus(codes.Error, "score_out_of_range")
		return dto.SubmissionResponse{}, ErrScoreOutOfRange
	}

	feedback := s.sanitizer.Sanitize(payload.Comment)
	gradedAt := s.now()
	gradedBy := caller.ID

	submission.Grade = &score
	submission.TeacherComment = feedback
	submission.Status = models.SubmissionStatusGraded
	submission.GradedAt = &gradedAt
	submission.GradedBy = &gradedBy

	if err := s.submissions.Update(ctx, &submission); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_update_failed")
		return dto.SubmissionResponse{}, err
	}

	history := models.SubmissionGradeHistory{
		SubmissionID: submission.ID,
		Score:        score,
		Feedback:     feedback,
		GradedBy:     gradedBy,
		GradedAt:     gradedAt,
	}
	if err := s.submissions.CreateHistory(ctx, &history); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to persist grade history")
		span.RecordError(err)
	}

	observability.GradesRecorded().Inc()
	s.invalidateStudentCache(ctx, submission.StudentID)

	if s.events != nil {
		s.events.Publish(ctx, SubmissionEvent{
			Type:         EventSubmissionGraded,
			SubmissionID: submission.ID,
			AssignmentID: submission.AssignmentID,
			StudentID:    submission.StudentID,
			Status:       submission.Status,
			Score:        &score,
			OccurredAt:   gradedAt,
		})
	}

	if s.activity != nil {
		entityID := submission.ID
		_ = s.activity.Record(ctx, ActivityEntry{
			Actor:      caller,
			Action:     "submission.graded",
			EntityType: "submission",
			EntityID:   &entityID,
			Metadata: map[string]interface{}{
				"assignment_id": submission.AssignmentID,
				"student_id":    submission.StudentID,
				"score":         score,
			},
		})
	}

	span.SetAttributes(attribute.Float64("submission.score", score))
	span.SetStatus(codes.Ok, "graded")

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Uint("graded_by", gradedBy).
		Float64("score", score).
		Msg("submission graded")

	return dto.NewSubmissionResponse(submission), nil
}

// afterSubmit runs the write side effects shared by create and replace:
// metrics, cache invalidation, the received event, and the audit entry.
func (s *submissionService) afterSubmit(ctx context.Context, caller Caller, submission models.Submission) {
	observability.Submissions().WithLabelValues(string(submission.Status)).Inc()
	s.invalidateStudentCache(ctx, submission.StudentID)

	if s.events != nil {
		s.events.Publish(ctx, SubmissionEvent{
			Type:         EventSubmissionReceived,
			SubmissionID: submission.ID,
			AssignmentID: submission.AssignmentID,
			StudentID:    submission.StudentID,
			Status:       submission.Status,
			OccurredAt:   submission.SubmittedAt,
		})
	}

	if s.activity != nil {
		entityID := submission.ID
		_ = s.activity.Record(ctx, ActivityEntry{
			Actor:      caller,
			Action:     "submission.received",
			EntityType: "submission",
			EntityID:   &entityID,
			Metadata: map[string]interface{}{
				"assignment_id": submission.AssignmentID,
				"status":        string(submission.Status),
			},
		})
	}
}

func (s *submissionService) invalidateStudentCache(ctx context.Context, studentID uint) {
	if s.cache == nil {
		return
	}

	if err := s.cache.Del(ctx, studentCacheKey(studentID)).Err(); err != nil {
		observability.CacheOperations().WithLabelValues("invalidate", "error").Inc()
		s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to invalidate submission cache")
		return
	}
	observability.CacheOperations().WithLabelValues("invalidate", "ok").Inc()
}

func studentCacheKey(studentID uint) string {
	return fmt.Sprintf("submissions:student:%d", studentID)
}
