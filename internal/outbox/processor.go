package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"wedding-rsvp/internal/metrics"
)

// Repository persists outbox entries
type Repository interface {
	SaveEntry(ctx context.Context, entry *Entry) error
	FindDue(ctx context.Context, now time.Time, limit int) ([]*Entry, error)
	FindEntry(ctx context.Context, id string) (*Entry, error)
	UpdateEntry(ctx context.Context, entry *Entry) error
	ListEntries(ctx context.Context, status Status, limit int) ([]*Entry, error)
	DeleteSentBefore(ctx context.Context, before time.Time) (int64, error)
}

// Handler delivers one kind of entry
type Handler func(ctx context.Context, entry *Entry) error

// Config holds processor settings
type Config struct {
	BatchSize    int
	PollInterval time.Duration
	MaxAttempts  int
	Retention    time.Duration
}

// Processor enqueues follow-up intents and delivers them in the background
type Processor struct {
	repo     Repository
	cfg      Config
	handlers map[string]Handler
	logger   zerolog.Logger
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProcessor creates an outbox processor
func NewProcessor(repo Repository, cfg Config, logger zerolog.Logger) *Processor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 30 * 24 * time.Hour
	}
	return &Processor{
		repo:     repo,
		cfg:      cfg,
		handlers: make(map[string]Handler),
		logger:   logger.With().Str("component", "outbox").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Handle registers the handler for a kind
func (p *Processor) Handle(kind string, h Handler) {
	p.handlers[kind] = h
}

// Enqueue records an intent for later delivery
func (p *Processor) Enqueue(ctx context.Context, kind string, payload any) error {
	entry, err := NewEntry(kind, payload, p.cfg.MaxAttempts)
	if err != nil {
		return err
	}
	if err := p.repo.SaveEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", kind, err)
	}
	p.logger.Debug().Str("entry_id", entry.ID).Str("kind", kind).Msg("Enqueued outbox entry")
	return nil
}

// Start begins polling in the background until Stop is called or ctx ends
func (p *Processor) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(1)
	go p.loop(ctx)

	p.logger.Info().
		Int("batch_size", p.cfg.BatchSize).
		Dur("poll_interval", p.cfg.PollInterval).
		Msg("Outbox processor started")
}

// Stop stops polling and waits for the current batch
func (p *Processor) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
	p.logger.Info().Msg("Outbox processor stopped")
}

func (p *Processor) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Drain(ctx); err != nil {
				p.logger.Error().Err(err).Msg("Outbox pass failed")
			}
			p.cleanup(ctx)
		}
	}
}

// Drain delivers every entry that is due once and returns how many were attempted
func (p *Processor) Drain(ctx context.Context) (int, error) {
	entries, err := p.repo.FindDue(ctx, p.now(), p.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to find due entries: %w", err)
	}
	for _, entry := range entries {
		p.Deliver(ctx, entry)
	}
	return len(entries), nil
}

// Deliver runs the handler for one entry and stores the outcome
func (p *Processor) Deliver(ctx context.Context, entry *Entry) {
	log := p.logger.With().Str("entry_id", entry.ID).Str("kind", entry.Kind).Logger()

	err := p.dispatch(ctx, entry)
	if err != nil {
		entry.MarkFailed(err, p.now())
		if entry.Status == StatusDead {
			log.Warn().Err(err).Int("attempts", entry.Attempts).Msg("Outbox entry is dead")
		} else {
			log.Error().Err(err).Int("attempts", entry.Attempts).Time("next_attempt_at", *entry.NextAttemptAt).Msg("Outbox delivery failed")
		}
	} else {
		entry.MarkSent(p.now())
		log.Info().Msg("Outbox entry delivered")
	}
	metrics.OutboxProcessedTotal.WithLabelValues(entry.Kind, string(entry.Status)).Inc()

	if err := p.repo.UpdateEntry(ctx, entry); err != nil {
		log.Error().Err(err).Msg("Failed to update outbox entry")
	}
}

func (p *Processor) dispatch(ctx context.Context, entry *Entry) error {
	h, ok := p.handlers[entry.Kind]
	if !ok {
		return fmt.Errorf("no handler registered for %q", entry.Kind)
	}
	return h(ctx, entry)
}

// Retry resets a failed or dead entry and delivers it immediately
func (p *Processor) Retry(ctx context.Context, id string) (*Entry, error) {
	entry, err := p.repo.FindEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := entry.ResetForRetry(p.now()); err != nil {
		return nil, err
	}
	p.Deliver(ctx, entry)
	return entry, nil
}

// List returns entries, optionally filtered by status
func (p *Processor) List(ctx context.Context, status Status, limit int) ([]*Entry, error) {
	return p.repo.ListEntries(ctx, status, limit)
}

func (p *Processor) cleanup(ctx context.Context) {
	deleted, err := p.repo.DeleteSentBefore(ctx, p.now().Add(-p.cfg.Retention))
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to clean up outbox entries")
		return
	}
	if deleted > 0 {
		p.logger.Info().Int64("deleted", deleted).Msg("Cleaned up delivered outbox entries")
	}
}
