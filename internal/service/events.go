package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/aulaworks/aula-go-api/internal/models"
)

// Submission event types published to the message bus. The notification
// service consumes them; delivery is best effort and never fails the
// originating operation.
const (
	EventSubmissionReceived = "submission.received"
	EventSubmissionGraded   = "submission.graded"
)

// SubmissionEvent is the wire payload for submission lifecycle events.
type SubmissionEvent struct {
	Type         string                  `json:"type"`
	SubmissionID uint                    `json:"submission_id"`
	AssignmentID uint                    `json:"assignment_id"`
	StudentID    uint                    `json:"student_id"`
	Status       models.SubmissionStatus `json:"status"`
	Score        *float64                `json:"score,omitempty"`
	OccurredAt   time.Time               `json:"occurred_at"`
}

// EventPublisher pushes submission lifecycle events to interested consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event SubmissionEvent)
}

type natsPublisher struct {
	conn        *nats.Conn
	subjectBase string
	logger      zerolog.Logger
}

// NewEventPublisher wraps a NATS connection. A nil connection yields a
// publisher that drops every event, so callers never need to nil-check.
func NewEventPublisher(conn *nats.Conn, subjectBase string, logger zerolog.Logger) EventPublisher {
	if subjectBase == "" {
		subjectBase = "aula.submissions"
	}

	return &natsPublisher{
		conn:        conn,
		subjectBase: subjectBase,
		logger:      logger.With().Str("component", "event_publisher").Logger(),
	}
}

func (p *natsPublisher) Publish(_ context.Context, event SubmissionEvent) {
	if p.conn == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn().Err(err).Str("type", event.Type).Msg("failed to encode submission event")
		return
	}

	subject := p.subjectBase + "." + event.Type
	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish submission event")
	}
}
