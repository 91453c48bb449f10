package outbox

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	mu      sync.Mutex
	entries map[string]*Entry
	saveErr error
}

func newMemRepo() *memRepo {
	return &memRepo{entries: make(map[string]*Entry)}
}

func (r *memRepo) SaveEntry(ctx context.Context, entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	cp := *entry
	r.entries[entry.ID] = &cp
	return nil
}

func (r *memRepo) FindDue(ctx context.Context, now time.Time, limit int) ([]*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []*Entry
	for _, e := range r.entries {
		if e.Status == StatusPending || (e.Status == StatusFailed && !e.NextAttemptAt.After(now)) {
			cp := *e
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *memRepo) FindEntry(ctx context.Context, id string) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *e
	return &cp, nil
}

func (r *memRepo) UpdateEntry(ctx context.Context, entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *entry
	r.entries[entry.ID] = &cp
	return nil
}

func (r *memRepo) ListEntries(ctx context.Context, status Status, limit int) ([]*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Entry
	for _, e := range r.entries {
		if status == "" || e.Status == status {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memRepo) DeleteSentBefore(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, e := range r.entries {
		if e.Status == StatusSent && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(r.entries, id)
			n++
		}
	}
	return n, nil
}

func (r *memRepo) only(t *testing.T) *Entry {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.Len(t, r.entries, 1)
	for _, e := range r.entries {
		return e
	}
	return nil
}

func newTestProcessor(repo Repository, clock *time.Time) *Processor {
	p := NewProcessor(repo, Config{MaxAttempts: 3}, zerolog.Nop())
	p.now = func() time.Time { return *clock }
	return p
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Duration(0), Backoff(0))
	assert.Equal(t, time.Second, Backoff(1))
	assert.Equal(t, 2*time.Second, Backoff(2))
	assert.Equal(t, 8*time.Second, Backoff(4))
}

func TestEntry_MarkFailedUntilDead(t *testing.T) {
	e, err := NewEntry(KindPlaylistAdd, PlaylistAdd{TrackURI: "spotify:track:abc"}, 2)
	require.NoError(t, err)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	e.MarkFailed(errors.New("timeout"), now)
	assert.Equal(t, StatusFailed, e.Status)
	require.NotNil(t, e.NextAttemptAt)
	assert.Equal(t, now.Add(time.Second), *e.NextAttemptAt)

	e.MarkFailed(errors.New("timeout again"), now)
	assert.Equal(t, StatusDead, e.Status)
	assert.Nil(t, e.NextAttemptAt)
	assert.Equal(t, "timeout again", e.LastError)

	require.NoError(t, e.ResetForRetry(now))
	assert.Equal(t, StatusPending, e.Status)
	assert.Zero(t, e.Attempts)
	assert.Empty(t, e.LastError)
}

func TestEntry_ResetRejectsPendingAndSent(t *testing.T) {
	e, err := NewEntry(KindPlaylistAdd, PlaylistAdd{}, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxAttempts, e.MaxAttempts)
	assert.Error(t, e.ResetForRetry(time.Now()))

	e.MarkSent(time.Now())
	assert.Error(t, e.ResetForRetry(time.Now()))
}

func TestProcessor_DeliversAndMarksSent(t *testing.T) {
	repo := newMemRepo()
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := newTestProcessor(repo, &clock)

	var got []string
	p.Handle(KindPlaylistAdd, func(ctx context.Context, entry *Entry) error {
		var payload PlaylistAdd
		if err := entry.Decode(&payload); err != nil {
			return err
		}
		got = append(got, payload.TrackURI)
		return nil
	})

	require.NoError(t, p.Enqueue(context.Background(), KindPlaylistAdd, PlaylistAdd{TrackURI: "spotify:track:abc"}))

	n, err := p.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"spotify:track:abc"}, got)

	e := repo.only(t)
	assert.Equal(t, StatusSent, e.Status)
	require.NotNil(t, e.ProcessedAt)

	n, err = p.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessor_FailureIsRetriedAfterBackoff(t *testing.T) {
	repo := newMemRepo()
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := newTestProcessor(repo, &clock)

	calls := 0
	p.Handle(KindPlaylistAdd, func(ctx context.Context, entry *Entry) error {
		calls++
		if calls == 1 {
			return errors.New("spotify unavailable")
		}
		return nil
	})
	require.NoError(t, p.Enqueue(context.Background(), KindPlaylistAdd, PlaylistAdd{TrackURI: "spotify:track:abc"}))

	_, err := p.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, repo.only(t).Status)

	n, err := p.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "not due before the backoff elapses")

	clock = clock.Add(2 * time.Second)
	n, err = p.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, StatusSent, repo.only(t).Status)
	assert.Equal(t, 2, calls)
}

func TestProcessor_UnknownKindGoesDead(t *testing.T) {
	repo := newMemRepo()
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := newTestProcessor(repo, &clock)

	require.NoError(t, p.Enqueue(context.Background(), "unknown.kind", map[string]string{}))
	for i := 0; i < 3; i++ {
		_, err := p.Drain(context.Background())
		require.NoError(t, err)
		clock = clock.Add(time.Minute)
	}

	e := repo.only(t)
	assert.Equal(t, StatusDead, e.Status)
	assert.Equal(t, 3, e.Attempts)
	assert.Contains(t, e.LastError, "no handler registered")
}

func TestProcessor_Retry(t *testing.T) {
	repo := newMemRepo()
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := newTestProcessor(repo, &clock)

	fail := true
	p.Handle(KindWhatsAppConfirmation, func(ctx context.Context, entry *Entry) error {
		if fail {
			return errors.New("not paired")
		}
		return nil
	})
	require.NoError(t, p.Enqueue(context.Background(), KindWhatsAppConfirmation, WhatsAppConfirmation{Phone: "15551234567"}))
	_, err := p.Drain(context.Background())
	require.NoError(t, err)
	id := repo.only(t).ID

	fail = false
	e, err := p.Retry(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, e.Status)
	assert.Equal(t, StatusSent, repo.only(t).Status)

	_, err = p.Retry(context.Background(), id)
	assert.Error(t, err)
}

func TestProcessor_EnqueueFailure(t *testing.T) {
	repo := newMemRepo()
	repo.saveErr = errors.New("database is locked")
	p := NewProcessor(repo, Config{}, zerolog.Nop())

	err := p.Enqueue(context.Background(), KindPlaylistAdd, PlaylistAdd{TrackURI: "spotify:track:abc"})
	require.Error(t, err)
	assert.ErrorIs(t, err, repo.saveErr)
}

func TestProcessor_StartStop(t *testing.T) {
	repo := newMemRepo()
	p := NewProcessor(repo, Config{PollInterval: 10 * time.Millisecond}, zerolog.Nop())

	delivered := make(chan struct{}, 1)
	p.Handle(KindPlaylistAdd, func(ctx context.Context, entry *Entry) error {
		select {
		case delivered <- struct{}{}:
		default:
		}
		return nil
	})
	require.NoError(t, p.Enqueue(context.Background(), KindPlaylistAdd, PlaylistAdd{TrackURI: "spotify:track:abc"}))

	p.Start(context.Background())
	p.Start(context.Background())
	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("entry was not delivered")
	}
	p.Stop()
	p.Stop()
}
