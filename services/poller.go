package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/vocalcoach/backend/models"
	"github.com/vocalcoach/backend/repository"
	ws "github.com/vocalcoach/backend/websocket"
)

const DefaultPollInterval = 5 * time.Minute

// CallLister is the slice of the voice platform API the poller needs.
type CallLister interface {
	ListCalls(ctx context.Context) ([]ProviderCall, error)
}

// CallSyncPoller periodically mirrors the voice platform's call list into
// local storage. It runs one sync at start, then on a fixed interval until
// stopped during shutdown.
type CallSyncPoller struct {
	repo     *repository.GORMRepository
	provider CallLister
	hub      *ws.Hub
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewCallSyncPoller(repo *repository.GORMRepository, provider CallLister, hub *ws.Hub, interval time.Duration) *CallSyncPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &CallSyncPoller{
		repo:     repo,
		provider: provider,
		hub:      hub,
		interval: interval,
	}
}

// Start launches the background sync loop.
func (p *CallSyncPoller) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.run(ctx)
	slog.Info("Call sync poller started", "interval", p.interval)
}

// Stop cancels the sync loop and waits for it to exit.
func (p *CallSyncPoller) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	slog.Info("Call sync poller stopped")
}

func (p *CallSyncPoller) run(ctx context.Context) {
	defer close(p.done)

	if _, err := p.SyncOnce(ctx); err != nil {
		slog.Error("Initial call sync failed", "error", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.SyncOnce(ctx); err != nil {
				slog.Error("Call sync failed", "error", err)
			}
		}
	}
}

// SyncOnce fetches the provider's call list and upserts each entry keyed by
// external id. Entries are upserted independently so one bad row does not
// abort the rest; a top-level fetch failure skips the whole tick.
func (p *CallSyncPoller) SyncOnce(ctx context.Context) (int, error) {
	providerCalls, err := p.provider.ListCalls(ctx)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, pc := range providerCalls {
		if pc.ID == "" {
			slog.Warn("Skipping provider call without id")
			continue
		}

		call := normalizeProviderCall(pc)
		if err := p.repo.UpsertCall(ctx, &call); err != nil {
			slog.Error("Failed to upsert call", "error", err, "external_id", pc.ID)
			continue
		}
		synced++
	}

	if synced > 0 && p.hub != nil {
		p.hub.BroadcastEvent("calls_synced", map[string]interface{}{
			"count": synced,
		})
	}

	slog.Info("Call sync completed", "fetched", len(providerCalls), "synced", synced)
	return synced, nil
}

// normalizeProviderCall flattens a provider entry into the local call shape.
// Duration is derived from the end/start timestamps when both are present,
// falling back to the provider's own duration field.
func normalizeProviderCall(pc ProviderCall) models.Call {
	duration := int(pc.Duration)
	if pc.StartedAt != nil && pc.EndedAt != nil {
		duration = int(pc.EndedAt.Sub(*pc.StartedAt).Seconds())
	}

	var startedAt time.Time
	if pc.StartedAt != nil {
		startedAt = *pc.StartedAt
	}

	return models.Call{
		ExternalID:   pc.ID,
		Duration:     duration,
		RecordingURL: pc.RecordingURL,
		Cost:         pc.Cost,
		StartedAt:    startedAt,
	}
}
