package webhook

import (
	"context"
	"log"
	"time"

	"github.com/jpvieirapereira/running-club-backend/internal/domain"
	"github.com/jpvieirapereira/running-club-backend/internal/observability"
	"github.com/jpvieirapereira/running-club-backend/libs/go/events"
)

// Status is the acknowledgement returned to Strava. Every status is sent with HTTP 200.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusIgnored    Status = "ignored"
	StatusInvalid    Status = "invalid"
	StatusUnresolved Status = "unresolved"
	StatusError      Status = "error"
)

// AthleteResolver maps a Strava athlete to the customer holding its grant.
type AthleteResolver interface {
	GetByAthleteID(ctx context.Context, athleteID int64) (*domain.StravaConnection, error)
}

// Reconciler brings an activity named by a push event up to date.
type Reconciler interface {
	Reconcile(ctx context.Context, evt events.StravaWebhookReceived) error
}

// Intake validates, classifies and resolves push events.
type Intake struct {
	validator  *Validator
	resolver   AthleteResolver
	reconciler Reconciler
	timeout    time.Duration
	now        func() time.Time
	logger     *log.Logger
}

// DefaultReconcileTimeout bounds the reconcile hand-off inside one push request. Strava
// expects an acknowledgement within two seconds.
const DefaultReconcileTimeout = time.Second

// IntakeOption customises an Intake.
type IntakeOption func(*Intake)

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) IntakeOption {
	return func(i *Intake) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) IntakeOption {
	return func(i *Intake) {
		if now != nil {
			i.now = now
		}
	}
}

// WithReconcileTimeout overrides DefaultReconcileTimeout.
func WithReconcileTimeout(d time.Duration) IntakeOption {
	return func(i *Intake) {
		if d > 0 {
			i.timeout = d
		}
	}
}

// NewIntake constructs an Intake.
func NewIntake(validator *Validator, resolver AthleteResolver, reconciler Reconciler, opts ...IntakeOption) *Intake {
	i := &Intake{
		validator:  validator,
		resolver:   resolver,
		reconciler: reconciler,
		timeout:    DefaultReconcileTimeout,
		now:        time.Now,
		logger:     log.New(log.Writer(), "[webhook] ", log.LstdFlags|log.Lshortfile),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Handle processes one push body. It never fails; problems are logged and reported as a status.
func (i *Intake) Handle(ctx context.Context, body []byte) Status {
	status := i.handle(ctx, body)
	observability.RecordWebhookEvent(string(status))
	return status
}

func (i *Intake) handle(ctx context.Context, body []byte) Status {
	evt, err := i.validator.Decode(body)
	if err != nil {
		i.logger.Printf("rejecting webhook body: %v", err)
		return StatusInvalid
	}

	decision := Classify(evt)
	if !decision.Actionable {
		i.logger.Printf("ignoring webhook for %s %d: %s", evt.ObjectType, evt.ObjectID, decision.Reason)
		return StatusIgnored
	}

	conn, err := i.resolver.GetByAthleteID(ctx, evt.OwnerID)
	if err != nil {
		i.logger.Printf("resolve athlete %d: %v", evt.OwnerID, err)
		return StatusError
	}
	if conn == nil {
		i.logger.Printf("no customer holds athlete %d; acknowledging activity %d", evt.OwnerID, evt.ObjectID)
		return StatusUnresolved
	}

	msg := events.StravaWebhookReceived{
		CustomerID:     conn.CustomerID,
		AthleteID:      evt.OwnerID,
		ActivityID:     evt.ObjectID,
		AspectType:     evt.AspectType,
		EventTime:      evt.EventTime,
		SubscriptionID: evt.SubscriptionID,
		ReceivedAt:     i.now().UTC(),
	}
	rctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()
	if err := i.reconciler.Reconcile(rctx, msg); err != nil {
		i.logger.Printf("reconcile activity %d for customer %s: %v", evt.ObjectID, conn.CustomerID, err)
		return StatusError
	}
	return StatusQueued
}
