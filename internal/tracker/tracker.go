package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lovendo/analytics-service/common/logging"
	"github.com/lovendo/analytics-service/internal/metrics"
	"github.com/lovendo/analytics-service/internal/models"
)

// Store is the slice of the durable store the tracker needs.
type Store interface {
	InsertEvents(ctx context.Context, events []*models.Event) error
	IncrementEventCounts(ctx context.Context, counts map[string]int, now time.Time) error
	UpsertProfile(ctx context.Context, userID string, traits map[string]interface{}, now time.Time) error
	UpsertGroupMembership(ctx context.Context, m *models.GroupMembership) error
}

// Publisher receives events after they have been committed to the store.
// Delivery is best-effort and must not block the flush path for long.
type Publisher interface {
	EventsCommitted(ctx context.Context, events []*models.Event)
}

// criticalEvents flush the buffer immediately instead of waiting for the
// next tick, so purchases and errors reach the store with minimal delay.
var criticalEvents = map[string]struct{}{
	"purchase": {},
	"signup":   {},
	"error":    {},
}

// Tracker buffers incoming events and flushes them to the store in
// batches. Track, Identify and Group never return errors to the caller:
// analytics must not break the host application.
type Tracker struct {
	store     Store
	publisher Publisher
	logger    *logging.Logger

	flushInterval time.Duration
	maxRetries    int

	mu       sync.Mutex
	queue    []*models.Event
	flushing bool
	// failCount counts consecutive failed flushes of the current batch.
	failCount int

	stop chan struct{}
	wg   sync.WaitGroup
	now  func() time.Time
}

// New creates a tracker flushing every flushInterval. A batch that fails
// maxRetries consecutive flushes is dropped. publisher may be nil.
func New(store Store, publisher Publisher, flushInterval time.Duration, maxRetries int, logger *logging.Logger) *Tracker {
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Tracker{
		store:         store,
		publisher:     publisher,
		logger:        logger,
		flushInterval: flushInterval,
		maxRetries:    maxRetries,
		stop:          make(chan struct{}),
		now:           time.Now,
	}
}

// Start launches the periodic flush loop.
func (t *Tracker) Start() {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ticker := time.NewTicker(t.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := t.Flush(context.Background()); err != nil {
					t.logger.Warn("periodic flush failed", logging.Error(err))
				}
			case <-t.stop:
				return
			}
		}
	}()
}

// Stop halts the flush loop and drains the remaining buffer.
func (t *Tracker) Stop(ctx context.Context) {
	close(t.stop)
	t.wg.Wait()
	if err := t.Flush(ctx); err != nil {
		t.logger.Error("final flush failed", logging.Error(err))
	}
}

// Track queues an event. Critical events trigger an immediate flush in
// the background.
func (t *Tracker) Track(ctx context.Context, event *models.Event) {
	if event.ID == "" {
		if id, err := uuid.NewV7(); err == nil {
			event.ID = id.String()
		} else {
			event.ID = uuid.NewString()
		}
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = t.now().UTC()
	}

	t.mu.Lock()
	t.queue = append(t.queue, event)
	depth := len(t.queue)
	t.mu.Unlock()

	metrics.EventsTracked.WithLabelValues(event.Name).Inc()
	metrics.QueueDepth.Set(float64(depth))

	if _, critical := criticalEvents[event.Name]; critical {
		metrics.CriticalFlushes.Inc()
		go func() {
			if err := t.Flush(context.Background()); err != nil {
				t.logger.Warn("critical flush failed",
					logging.Event(event.Name), logging.Error(err))
			}
		}()
	}
}

// Identify merges traits into the user's profile and queues a synthetic
// $identify event so identify calls are queryable like any other event.
// Errors are logged, never propagated.
func (t *Tracker) Identify(ctx context.Context, userID string, traits map[string]interface{}) {
	if userID == "" {
		return
	}
	if err := t.store.UpsertProfile(ctx, userID, traits, t.now().UTC()); err != nil {
		t.logger.Error("identify failed", logging.UserID(userID), logging.Error(err))
		return
	}
	metrics.ProfilesIdentified.Inc()

	t.Track(ctx, &models.Event{
		Name:       "$identify",
		UserID:     userID,
		Properties: traits,
	})
}

// Group records the user's membership in a group (company, team).
func (t *Tracker) Group(ctx context.Context, userID, groupID string, traits map[string]interface{}) {
	if userID == "" || groupID == "" {
		return
	}
	m := &models.GroupMembership{
		UserID:    userID,
		GroupID:   groupID,
		Traits:    traits,
		UpdatedAt: t.now().UTC(),
	}
	if err := t.store.UpsertGroupMembership(ctx, m); err != nil {
		t.logger.Error("group failed", logging.UserID(userID), logging.Error(err))
	}
}

// QueueDepth reports the number of buffered events.
func (t *Tracker) QueueDepth() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// Flush writes the buffered batch to the store. Only one flush runs at a
// time; an overlapping call is a no-op. On failure the batch is put back
// at the head of the queue so event order is preserved, and dropped once
// it has failed maxRetries consecutive flushes.
func (t *Tracker) Flush(ctx context.Context) error {
	t.mu.Lock()
	if t.flushing {
		t.mu.Unlock()
		metrics.FlushesSkipped.Inc()
		return nil
	}
	if len(t.queue) == 0 {
		t.mu.Unlock()
		return nil
	}
	batch := t.queue
	t.queue = nil
	t.flushing = true
	t.mu.Unlock()

	start := t.now()
	err := t.persist(ctx, batch)
	metrics.FlushDuration.Observe(time.Since(start).Seconds())

	t.mu.Lock()
	t.flushing = false
	if err != nil {
		metrics.FlushErrors.Inc()
		t.failCount++
		if t.failCount >= t.maxRetries {
			metrics.BatchesDropped.Inc()
			t.failCount = 0
			t.mu.Unlock()
			t.logger.Error("dropping batch after repeated flush failures",
				logging.Count(len(batch)), logging.Error(err))
			return err
		}
		t.queue = append(batch, t.queue...)
		metrics.QueueDepth.Set(float64(len(t.queue)))
		t.mu.Unlock()
		return err
	}
	t.failCount = 0
	metrics.QueueDepth.Set(float64(len(t.queue)))
	t.mu.Unlock()

	metrics.EventsPersisted.Add(float64(len(batch)))
	if t.publisher != nil {
		t.publisher.EventsCommitted(ctx, batch)
	}
	return nil
}

func (t *Tracker) persist(ctx context.Context, batch []*models.Event) error {
	if err := t.store.InsertEvents(ctx, batch); err != nil {
		return err
	}

	counts := make(map[string]int)
	for _, e := range batch {
		if e.UserID != "" {
			counts[e.UserID]++
		}
	}
	if len(counts) > 0 {
		if err := t.store.IncrementEventCounts(ctx, counts, t.now().UTC()); err != nil {
			// Events are already committed; a stale counter is acceptable.
			t.logger.Warn("event count update failed", logging.Error(err))
		}
	}
	return nil
}
