// Package tabs tracks which browser tabs currently show an overlay.
//
// The registry is owned by whoever serves the extension glue (the HTTP
// server); nothing else holds per-tab state. An overlay is dropped as soon
// as its tab navigates or closes, so a stale overlay is never shown on the
// next page.
package tabs

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/jobscan/internal/logging"
)

// Overlay is the UI attached to one tab.
type Overlay struct {
	TabID     string    `json:"tab_id"`
	SessionID string    `json:"session_id,omitempty"`
	Kind      string    `json:"kind"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// Registry maps tab ids to their active overlay.
type Registry struct {
	mu       sync.RWMutex
	overlays map[string]Overlay
	logger   *logging.Logger
	now      func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *logging.Logger) *Registry {
	return &Registry{
		overlays: make(map[string]Overlay),
		logger:   logging.OrNop(logger).Named("tabs"),
		now:      time.Now,
	}
}

// Attach sets the overlay of a tab, replacing any previous one.
func (r *Registry) Attach(o Overlay) Overlay {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = r.now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.overlays[o.TabID] = o
	return o
}

// Get returns the overlay of a tab.
func (r *Registry) Get(tabID string) (Overlay, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.overlays[tabID]
	return o, ok
}

// Navigate drops the tab's overlay because the tab moved to url. It
// returns the dropped overlay.
func (r *Registry) Navigate(tabID, url string) (Overlay, bool) {
	o, ok := r.remove(tabID)
	if ok {
		r.logger.Debug("overlay cleared on navigation",
			zap.String("tab_id", tabID),
			zap.String("from", o.URL),
			zap.String("to", url))
	}
	return o, ok
}

// Close drops the tab's overlay because the tab closed.
func (r *Registry) Close(tabID string) bool {
	_, ok := r.remove(tabID)
	return ok
}

// List returns every overlay ordered by tab id.
func (r *Registry) List() []Overlay {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Overlay, 0, len(r.overlays))
	for _, o := range r.overlays {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TabID < out[j].TabID })
	return out
}

// Len returns the number of tabs with an overlay.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.overlays)
}

func (r *Registry) remove(tabID string) (Overlay, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.overlays[tabID]
	if ok {
		delete(r.overlays, tabID)
	}
	return o, ok
}
