package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/agrifed/agrifed/pkg/fl"
	"github.com/agrifed/agrifed/pkg/mqtt"
)

const (
	syncMaxRetries  = 3
	syncHTTPTimeout = 30 * time.Second

	roundOpenTopic = "rounds/open"
	roundNextTopic = "rounds/next"
)

// syncBridge mirrors round status and published models to the external
// system of record, and announces round events over MQTT. Everything
// here is best-effort and at-least-once: a failed push is logged and
// retried on the next cycle, and round progression never waits on it.
type syncBridge struct {
	backendURL string
	httpClient *http.Client
	pubsub     mqtt.PubSub
	baseTopic  string
	interval   time.Duration
	logger     *slog.Logger

	status func(ctx context.Context) (Summary, error)

	events chan terminalEvent

	// pendingModel is retried on the next cycle after a failed push.
	// Only touched by the Run goroutine.
	pendingModel *fl.GlobalModel
}

func newSyncBridge(backendURL string, pubsub mqtt.PubSub, baseTopic string, interval time.Duration, status func(ctx context.Context) (Summary, error), logger *slog.Logger) *syncBridge {
	return &syncBridge{
		backendURL: backendURL,
		httpClient: &http.Client{Timeout: syncHTTPTimeout},
		pubsub:     pubsub,
		baseTopic:  baseTopic,
		interval:   interval,
		logger:     logger,
		status:     status,
		events:     make(chan terminalEvent, 16),
	}
}

// NotifyTerminal hands a finished round to the bridge without blocking
// the round pipeline. If the bridge is backed up the event is dropped;
// the periodic status push still carries the totals.
func (sb *syncBridge) NotifyTerminal(ev terminalEvent) {
	select {
	case sb.events <- ev:
	default:
		sb.logger.Warn("sync bridge event queue full, dropping round event",
			slog.Uint64("round_id", ev.Round.ID))
	}
}

// NotifyRoundOpen announces the cohort of a freshly opened round.
func (sb *syncBridge) NotifyRoundOpen(ctx context.Context, roundID uint64, cohort []string) {
	sb.announce(ctx, roundOpenTopic, map[string]any{
		"round_id": roundID,
		"cohort":   cohort,
	})
}

func (sb *syncBridge) Run(ctx context.Context) error {
	ticker := time.NewTicker(sb.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-sb.events:
			sb.handleTerminal(ctx, ev)
		case <-ticker.C:
			sb.pushStatus(ctx)
			if sb.pendingModel != nil {
				sb.pushModel(ctx, *sb.pendingModel)
			}
		}
	}
}

func (sb *syncBridge) handleTerminal(ctx context.Context, ev terminalEvent) {
	if ev.Model != nil {
		sb.announce(ctx, roundNextTopic, map[string]any{
			"round_id":          ev.Round.ID,
			"new_model_version": ev.Model.Version,
			"status":            ev.Round.State.String(),
			"timestamp":         time.Now().UTC().Format(time.RFC3339),
		})
		sb.pushModel(ctx, *ev.Model)
	}
	sb.pushStatus(ctx)
}

func (sb *syncBridge) pushStatus(ctx context.Context) {
	if sb.backendURL == "" {
		return
	}

	summary, err := sb.status(ctx)
	if err != nil {
		sb.logger.Error("failed to collect status for backend sync", slog.Any("error", err))

		return
	}

	if err := sb.post(ctx, sb.backendURL+"/api/fl/status", summary); err != nil {
		sb.logger.Warn("failed to sync status with backend, will retry next cycle",
			slog.Any("error", err))

		return
	}

	sb.logger.Debug("synced training status with backend")
}

func (sb *syncBridge) pushModel(ctx context.Context, model fl.GlobalModel) {
	if sb.backendURL == "" {
		sb.pendingModel = nil

		return
	}

	if err := sb.post(ctx, sb.backendURL+"/api/fl/model", model); err != nil {
		sb.pendingModel = &model
		sb.logger.Warn("failed to sync global model with backend, will retry next cycle",
			slog.Uint64("version", model.Version),
			slog.Any("error", err))

		return
	}

	sb.pendingModel = nil
	sb.logger.Info("synced global model with backend", slog.Uint64("version", model.Version))
}

func (sb *syncBridge) post(ctx context.Context, url string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal sync payload: %w", err)
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := sb.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("backend returned status %d", resp.StatusCode)
		}

		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), syncMaxRetries), ctx)

	return backoff.Retry(operation, bo)
}

// announce publishes a best-effort MQTT notification. Agents that miss
// it pick the change up on their next poll.
func (sb *syncBridge) announce(ctx context.Context, topic string, msg map[string]any) {
	if sb.pubsub == nil {
		return
	}

	full := sb.baseTopic + "/" + topic
	if err := sb.pubsub.Publish(ctx, full, msg); err != nil {
		sb.logger.Warn("failed to publish notification",
			slog.String("topic", full), slog.Any("error", err))

		return
	}

	sb.logger.Debug("published notification", slog.String("topic", full))
}
