// Package history keeps the most recent generated artifacts (tailored
// resumes and cover letters) so the user can revisit them after the page
// that produced them is gone.
package history

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/jobscan/internal/logging"
	"github.com/GriffinCanCode/jobscan/internal/shared/id"
	"github.com/GriffinCanCode/jobscan/internal/storage"
)

// DefaultCapacity is the number of artifacts retained.
const DefaultCapacity = 20

// Kind names what was generated.
type Kind string

const (
	KindResume      Kind = "resume"
	KindCoverLetter Kind = "cover_letter"
)

// Artifact is one generated document.
type Artifact struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	JobID     string    `json:"job_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Company   string    `json:"company,omitempty"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// History is a newest-first capped list persisted under
// storage.KeyArtifactHistory.
type History struct {
	store    storage.Store
	logger   *logging.Logger
	capacity int
	now      func() time.Time

	mu sync.Mutex
}

// Option configures a History.
type Option func(*History)

// WithCapacity overrides DefaultCapacity.
func WithCapacity(n int) Option {
	return func(h *History) {
		if n > 0 {
			h.capacity = n
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(h *History) { h.now = now } }

// New creates a History over store.
func New(store storage.Store, logger *logging.Logger, opts ...Option) *History {
	h := &History{
		store:    store,
		logger:   logging.OrNop(logger).Named("history"),
		capacity: DefaultCapacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Add stamps a and prepends it, dropping the oldest entries past capacity.
// Artifacts with no content are ignored.
func (h *History) Add(ctx context.Context, a Artifact) (Artifact, error) {
	if a.Content == "" {
		return a, nil
	}
	if a.ID == "" {
		a.ID = id.NewArtifactID().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = h.now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	items := h.load(ctx)
	items = append([]Artifact{a}, items...)
	if len(items) > h.capacity {
		items = items[:h.capacity]
	}
	if err := h.store.Put(ctx, storage.KeyArtifactHistory, items); err != nil {
		h.logger.Warn("failed to save artifact history", zap.Error(err))
		return a, err
	}

	h.logger.Debug("artifact recorded",
		zap.String("id", a.ID),
		zap.String("kind", string(a.Kind)),
		zap.String("job_id", a.JobID))
	return a, nil
}

// List returns the artifacts, newest first.
func (h *History) List(ctx context.Context) []Artifact {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.load(ctx)
}

// Get returns the artifact with the given id.
func (h *History) Get(ctx context.Context, artifactID string) (Artifact, bool) {
	for _, a := range h.List(ctx) {
		if a.ID == artifactID {
			return a, true
		}
	}
	return Artifact{}, false
}

// Clear removes every artifact.
func (h *History) Clear(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.store.Delete(ctx, storage.KeyArtifactHistory)
}

func (h *History) load(ctx context.Context) []Artifact {
	var items []Artifact
	if _, err := h.store.Get(ctx, storage.KeyArtifactHistory, &items); err != nil {
		h.logger.Warn("failed to load artifact history", zap.Error(err))
		return []Artifact{}
	}
	if items == nil {
		items = []Artifact{}
	}
	return items
}
