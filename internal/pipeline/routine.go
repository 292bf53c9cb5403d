// Package pipeline drives the report-processing loop: dequeue, decide,
// update reputation, aggregate.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/denisplanner/backend/internal/aggregator"
	"github.com/denisplanner/backend/internal/core"
	"github.com/denisplanner/backend/internal/database"
	"github.com/denisplanner/backend/internal/decider"
	"github.com/denisplanner/backend/internal/reputation"
)

// Queue is the consumer-side port of the report queue. Shutdown is
// cooperative: BlockingPop must return once the context is cancelled.
type Queue interface {
	BlockingPop(ctx context.Context) ([]byte, error)
	Close() error
}

// Routine is the single consumer of report_queue. It owns all writes to the
// store; the HTTP ingress only touches the queue.
type Routine struct {
	queue      Queue
	db         *database.DB
	decider    *decider.Decider
	engine     *reputation.Engine
	aggregator *aggregator.Aggregator
	metrics    *Metrics

	// Backoff after a queue transport error.
	retryDelay time.Duration
}

// NewRoutine wires the pipeline together.
func NewRoutine(queue Queue, db *database.DB, d *decider.Decider, e *reputation.Engine, agg *aggregator.Aggregator, m *Metrics) *Routine {
	return &Routine{
		queue:      queue,
		db:         db,
		decider:    d,
		engine:     e,
		aggregator: agg,
		metrics:    m,
		retryDelay: time.Second,
	}
}

// Run consumes messages until the context is cancelled. The only error it
// returns besides nil is schema drift (core.ErrUnknownType), which is fatal.
func (r *Routine) Run(ctx context.Context) error {
	slog.Info("pipeline consumer started")
	for {
		payload, err := r.queue.BlockingPop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("pipeline consumer stopped")
				return nil
			}
			slog.Error("queue pop failed", "err", err)
			select {
			case <-time.After(r.retryDelay):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		if err := r.handle(ctx, payload); err != nil {
			if errors.Is(err, core.ErrUnknownType) {
				slog.Error("report type set has drifted, exiting", "err", err)
				return err
			}
			// Per-message failures are logged inside handle.
		}

		if ctx.Err() != nil {
			slog.Info("pipeline consumer stopped")
			return nil
		}
	}
}

// handle processes a single dequeued payload end to end.
func (r *Routine) handle(ctx context.Context, payload []byte) error {
	start := time.Now()
	defer func() { r.metrics.ProcessDuration.Observe(time.Since(start).Seconds()) }()

	msgID := uuid.NewString()
	log := slog.With("msg_id", msgID)

	msg, err := core.ParseReportMessage(payload)
	if err != nil {
		r.metrics.ReportsProcessed.WithLabelValues(OutcomeDropped).Inc()
		log.Warn("report dropped: invalid payload", "err", err)
		return nil
	}
	log = log.With("user", msg.UserName, "location", msg.LocationName, "type", msg.ReportType.String())

	user, err := r.db.GetUserByName(ctx, msg.UserName)
	if err != nil {
		r.metrics.ReportsProcessed.WithLabelValues(OutcomeDropped).Inc()
		if errors.Is(err, core.ErrUnknownUser) {
			log.Warn("report dropped: unknown user")
		} else {
			log.Error("report dropped: user lookup failed", "err", err)
		}
		return nil
	}

	accept, prob, err := r.decider.Decide(msg, user)
	if err != nil {
		r.metrics.ReportsProcessed.WithLabelValues(OutcomeDropped).Inc()
		log.Warn("report dropped: decide failed", "err", err)
		return nil
	}
	r.metrics.DecideProbability.Observe(prob)

	// Reputation moves on every decision, accept or reject. The update is a
	// separate transaction from the report insert; a failure here is a soft
	// signal loss, not a reason to drop the report.
	newScore := r.engine.NextScore(user, accept)
	if err := r.db.UpdateTrustScore(ctx, user.ID, newScore); err != nil {
		log.Error("trust score update failed", "err", err)
	}

	if !accept {
		r.metrics.ReportsProcessed.WithLabelValues(OutcomeRejected).Inc()
		log.Info("report rejected", "prob", prob, "trust_score", newScore)
		return nil
	}

	incident, err := r.aggregator.Process(ctx, msg)
	if err != nil {
		if errors.Is(err, core.ErrUnknownType) {
			return err
		}
		r.metrics.ReportsProcessed.WithLabelValues(OutcomeDropped).Inc()
		log.Error("report dropped: aggregation failed", "err", err)
		return nil
	}

	r.metrics.ReportsProcessed.WithLabelValues(OutcomeAccepted).Inc()
	log.Info("report accepted", "prob", prob, "incident_id", incident.ID, "incident_status", incident.Status)
	return nil
}
