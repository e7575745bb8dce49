package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/agrifed/agrifed/pkg/fl"
	"github.com/agrifed/agrifed/pkg/modelstore"
	"github.com/agrifed/agrifed/pkg/storage"
	"github.com/agrifed/agrifed/round"
)

// terminalEvent is handed to the owner when a round reaches a terminal
// state. Model is non-nil only for completed rounds.
type terminalEvent struct {
	Round round.Round
	Model *fl.GlobalModel
}

// roundManager owns the round lifecycle. Every transition of the
// current round — submission bookkeeping, the threshold check, timeout
// firing, aggregation, publication — happens under one mutex, so the
// collecting→aggregating transition is triggered exactly once no matter
// how submissions and the timeout interleave.
type roundManager struct {
	mu sync.Mutex

	current     *round.Round
	submissions map[string]fl.Submission
	timer       *time.Timer

	nextID    uint64
	version   uint64
	minCohort int
	timeout   time.Duration

	aggregator fl.Aggregator
	history    storage.Storage
	models     *modelstore.Store
	logger     *slog.Logger
	onTerminal func(terminalEvent)

	completed uint64
	failed    uint64
}

func newRoundManager(history storage.Storage, models *modelstore.Store, aggregator fl.Aggregator, minCohort int, timeout time.Duration, logger *slog.Logger) (*roundManager, error) {
	m := &roundManager{
		submissions: make(map[string]fl.Submission),
		nextID:      1,
		minCohort:   minCohort,
		timeout:     timeout,
		aggregator:  aggregator,
		history:     history,
		models:      models,
		logger:      logger,
	}

	// Round history is not durable, but the model history is. Resume
	// versioning where the store left off so versions stay strictly
	// increasing across restarts.
	current, err := models.Current(context.Background())
	switch {
	case err == nil:
		m.version = current.Version
		m.nextID = current.Version + 1
	case errors.Is(err, modelstore.ErrNoModel):
	default:
		return nil, err
	}

	return m, nil
}

func roundKey(id uint64) string {
	return fmt.Sprintf("%020d", id)
}

// Open starts a new round with the given fixed cohort and arms its
// timeout. Fails if a round is already non-terminal.
func (m *roundManager) Open(ctx context.Context, cohort []string) (round.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return round.Round{}, ErrRoundInProgress
	}

	now := time.Now()
	r := round.Round{
		ID:        m.nextID,
		State:     round.Collecting,
		Cohort:    append([]string(nil), cohort...),
		StartTime: now,
		Deadline:  now.Add(m.timeout),
	}
	m.nextID++
	m.current = &r
	m.submissions = make(map[string]fl.Submission, len(cohort))

	id := r.ID
	m.timer = time.AfterFunc(m.timeout, func() {
		m.FireTimeout(id)
	})

	m.logger.Info("round opened",
		slog.Uint64("round_id", r.ID),
		slog.Int("cohort_size", len(r.Cohort)),
		slog.Time("deadline", r.Deadline))

	return r, nil
}

// Submit records one cohort member's parameters. A resubmission while
// still collecting replaces the earlier one (last write wins). Reaching
// full cohort triggers aggregation before Submit returns.
func (m *roundManager) Submit(ctx context.Context, sub fl.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || m.current.ID != sub.RoundID {
		return m.rejectAbsent(ctx, sub)
	}

	if !m.current.Participant(sub.ClientID) {
		return ErrNotParticipant
	}
	if m.current.State != round.Collecting {
		return ErrStale
	}

	// All submissions aggregated together must agree on the parameter
	// schema; checking at the door beats failing the round later.
	for id, existing := range m.submissions {
		if id == sub.ClientID {
			continue
		}
		if !existing.Params.SameSchema(sub.Params) {
			return fmt.Errorf("%w: client %s", fl.ErrSchemaMismatch, sub.ClientID)
		}

		break
	}

	if _, resubmitted := m.submissions[sub.ClientID]; !resubmitted {
		m.current.Submitted = append(m.current.Submitted, sub.ClientID)
	}
	m.submissions[sub.ClientID] = sub

	m.logger.Info("submission received",
		slog.Uint64("round_id", sub.RoundID),
		slog.String("client_id", sub.ClientID),
		slog.Int("received", len(m.submissions)),
		slog.Int("cohort_size", len(m.current.Cohort)))

	if len(m.submissions) == len(m.current.Cohort) {
		m.aggregate(ctx)
	}

	return nil
}

// rejectAbsent classifies a submission for a round that is not the
// current one. A known historical round answers by cohort membership;
// an unknown round ID was never opened.
func (m *roundManager) rejectAbsent(ctx context.Context, sub fl.Submission) error {
	data, err := m.history.Get(ctx, roundKey(sub.RoundID))
	if err != nil {
		return ErrRoundNotActive
	}
	r, ok := data.(round.Round)
	if !ok {
		return storage.ErrInvalidData
	}
	if !r.Participant(sub.ClientID) {
		return ErrNotParticipant
	}

	return ErrStale
}

// FireTimeout resolves the round's deadline. Firing after the round has
// already left collecting is a no-op, so a timeout racing the final
// submission yields exactly one aggregation trigger.
func (m *roundManager) FireTimeout(roundID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || m.current.ID != roundID || m.current.State != round.Collecting {
		return
	}

	ctx := context.Background()
	if len(m.submissions) >= m.minCohort {
		m.logger.Warn("round timed out, aggregating partial cohort",
			slog.Uint64("round_id", roundID),
			slog.Int("received", len(m.submissions)),
			slog.Int("cohort_size", len(m.current.Cohort)))
		m.aggregate(ctx)

		return
	}

	m.fail(ctx, fmt.Sprintf("timed out with %d of %d submissions, below minimum %d",
		len(m.submissions), len(m.current.Cohort), m.minCohort))
}

// aggregate runs the collecting→aggregating→terminal leg. Caller holds
// the lock.
func (m *roundManager) aggregate(ctx context.Context) {
	m.current.State = round.Aggregating

	subs := make([]fl.Submission, 0, len(m.submissions))
	for _, s := range m.submissions {
		subs = append(subs, s)
	}

	params, metrics, err := m.aggregator.Aggregate(subs)
	if err != nil {
		m.fail(ctx, err.Error())

		return
	}

	model := fl.GlobalModel{
		Version:   m.version + 1,
		Params:    params,
		Metrics:   metrics,
		CreatedAt: time.Now(),
	}
	if err := m.models.Append(ctx, model); err != nil {
		m.fail(ctx, fmt.Sprintf("failed to persist global model: %s", err))

		return
	}
	m.version = model.Version

	m.current.State = round.Completed
	m.current.ModelVersion = model.Version
	m.current.FinishTime = time.Now()
	m.completed++

	m.logger.Info("round completed",
		slog.Uint64("round_id", m.current.ID),
		slog.Uint64("model_version", model.Version),
		slog.Int("submissions", len(subs)))

	m.retire(ctx, &model)
}

// fail moves the current round to Failed with the cause recorded.
// Caller holds the lock.
func (m *roundManager) fail(ctx context.Context, reason string) {
	m.current.State = round.Failed
	m.current.FailReason = reason
	m.current.FinishTime = time.Now()
	m.failed++

	m.logger.Warn("round failed",
		slog.Uint64("round_id", m.current.ID),
		slog.String("reason", reason))

	m.retire(ctx, nil)
}

// retire moves the terminal round into history, drops its submissions,
// and notifies the owner outside the lock. Caller holds the lock.
func (m *roundManager) retire(ctx context.Context, model *fl.GlobalModel) {
	r := *m.current
	if err := m.history.Create(ctx, roundKey(r.ID), r); err != nil {
		m.logger.Error("failed to record round history",
			slog.Uint64("round_id", r.ID), slog.Any("error", err))
	}

	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.current = nil
	m.submissions = make(map[string]fl.Submission)

	if m.onTerminal != nil {
		go m.onTerminal(terminalEvent{Round: r, Model: model})
	}
}

// Current returns a snapshot of the non-terminal round, if any.
func (m *roundManager) Current() (round.Round, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return round.Round{}, false
	}

	return *m.current, true
}

// PollFor reports round participation from one client's point of view.
func (m *roundManager) PollFor(clientID string) (roundID *uint64, participant, submitted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil, false, false
	}

	id := m.current.ID
	_, submitted = m.submissions[clientID]

	return &id, m.current.Participant(clientID), submitted
}

// Get returns a round by ID, current or historical.
func (m *roundManager) Get(ctx context.Context, roundID uint64) (round.Round, error) {
	m.mu.Lock()
	if m.current != nil && m.current.ID == roundID {
		r := *m.current
		m.mu.Unlock()

		return r, nil
	}
	m.mu.Unlock()

	data, err := m.history.Get(ctx, roundKey(roundID))
	if errors.Is(err, storage.ErrNotFound) {
		return round.Round{}, ErrRoundNotActive
	}
	if err != nil {
		return round.Round{}, err
	}
	r, ok := data.(round.Round)
	if !ok {
		return round.Round{}, storage.ErrInvalidData
	}

	return r, nil
}

// List pages over terminal rounds, oldest first; the current round is
// appended at the end of the last page.
func (m *roundManager) List(ctx context.Context, offset, limit uint64) (round.Page, error) {
	data, total, err := m.history.List(ctx, offset, limit)
	if err != nil {
		return round.Page{}, err
	}
	rounds := make([]round.Round, len(data))
	for i := range data {
		r, ok := data[i].(round.Round)
		if !ok {
			return round.Page{}, storage.ErrInvalidData
		}
		rounds[i] = r
	}

	if cur, ok := m.Current(); ok {
		// The current round sits at the index right after the stored
		// history, so it belongs on the page whose history portion
		// ends there with room to spare. limit == 0 is a count-only
		// query and returns no rounds.
		idx := total
		total++
		if limit > 0 && offset+uint64(len(rounds)) == idx && uint64(len(rounds)) < limit {
			rounds = append(rounds, cur)
		}
	}

	return round.Page{
		Offset: offset,
		Limit:  limit,
		Total:  total,
		Rounds: rounds,
	}, nil
}

// Stats returns terminal round counters and the current model version.
func (m *roundManager) Stats() (completed, failed, version uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.completed, m.failed, m.version
}
