package session

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/jobscan/internal/domains"
	"github.com/GriffinCanCode/jobscan/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jobscan/internal/logging"
	"github.com/GriffinCanCode/jobscan/internal/storage"
	"github.com/GriffinCanCode/jobscan/internal/types"
)

const (
	DefaultTTL            = 2 * time.Hour
	DefaultCapacity       = 50
	DefaultDispatchWindow = 30 * time.Second
)

// Config bounds session lifetime and the dispatch hand-off.
type Config struct {
	TTL            time.Duration `yaml:"ttl"`
	Capacity       int           `yaml:"capacity"`
	DispatchWindow time.Duration `yaml:"dispatch_window"`
}

// DefaultConfig returns the stock limits.
func DefaultConfig() Config {
	return Config{
		TTL:            DefaultTTL,
		Capacity:       DefaultCapacity,
		DispatchWindow: DefaultDispatchWindow,
	}
}

func (c *Config) defaults() {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	if c.DispatchWindow <= 0 {
		c.DispatchWindow = DefaultDispatchWindow
	}
}

// HostPolicy decides whether a host may be tracked.
type HostPolicy interface {
	Allowed(host string) bool
}

// Outcome describes what Track did with a scan.
type Outcome string

const (
	OutcomeCreated     Outcome = "created"
	OutcomeUpdated     Outcome = "updated"
	OutcomeEmpty       Outcome = "skipped_empty"
	OutcomeListing     Outcome = "skipped_listing"
	OutcomeSessionless Outcome = "skipped_sessionless"
	OutcomeNoForm      Outcome = "skipped_no_form"
	OutcomeBlocked     Outcome = "skipped_blocked"
)

// Tracked reports whether the outcome stored a session.
func (o Outcome) Tracked() bool {
	return o == OutcomeCreated || o == OutcomeUpdated
}

// Manager owns persisted session state. Read-modify-write cycles are
// serialized within the process; across processes the last writer wins.
type Manager struct {
	store   storage.Store
	policy  HostPolicy
	logger  *logging.Logger
	metrics *monitoring.Metrics
	cfg     Config
	now     func() time.Time

	mu sync.Mutex
}

// Option customizes a Manager.
type Option func(*Manager)

// WithPolicy installs a host policy consulted by Track.
func WithPolicy(p HostPolicy) Option { return func(m *Manager) { m.policy = p } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// WithMetrics records session and dispatch events.
func WithMetrics(metrics *monitoring.Metrics) Option { return func(m *Manager) { m.metrics = metrics } }

// NewManager creates a Manager over store.
func NewManager(store storage.Store, cfg Config, logger *logging.Logger, opts ...Option) *Manager {
	cfg.defaults()
	m := &Manager{
		store:  store,
		logger: logging.OrNop(logger).Named("session"),
		cfg:    cfg,
		now:    time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Qualify reports whether scan may create or update a session.
func (m *Manager) Qualify(scan *types.PageScan) Outcome {
	switch {
	case scan == nil || scan.Empty():
		return OutcomeEmpty
	case scan.Listing.IsListing:
		return OutcomeListing
	case len(scan.Fields) == 0 && !scan.MultiPage && !scan.HasPrevious():
		if len(scan.DescriptionCandidates) > 0 {
			return OutcomeSessionless
		}
		return OutcomeNoForm
	case m.policy != nil && !m.policy.Allowed(HostOf(scan.URL)):
		return OutcomeBlocked
	}
	return OutcomeCreated
}

// Track creates or updates the session for a qualifying scan and consumes a
// pending dispatch on the same root domain. It returns nil with a skip
// outcome for pages that do not qualify.
func (m *Manager) Track(ctx context.Context, scan *types.PageScan) (*types.Session, Outcome) {
	if outcome := m.Qualify(scan); !outcome.Tracked() {
		m.metrics.IncSessionEvent(string(outcome))
		m.logger.Debug("scan not tracked", zap.String("url", urlOf(scan)), zap.String("outcome", string(outcome)))
		return nil, outcome
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	sessions := m.load(ctx, now)
	sess, outcome := upsert(&sessions, scan, now)

	if d, ok := m.loadDispatch(ctx); ok {
		m.consumeDispatch(ctx, d, sess, sessions, now)
	}

	sessions = m.promote(sessions, sess.ID)
	m.save(ctx, sessions)

	m.metrics.IncSessionEvent(string(outcome))
	m.logger.Info("session tracked",
		zap.String("session", sess.ID),
		zap.String("domain", sess.Domain),
		zap.String("outcome", string(outcome)),
		zap.String("parent", sess.ParentID))
	return clone(sess), outcome
}

// Create stores a session for scan without the qualifying checks and
// without consuming a dispatch. An existing session with the same id is
// merged into.
func (m *Manager) Create(ctx context.Context, scan *types.PageScan) *types.Session {
	if scan == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	sessions := m.load(ctx, now)
	sess, outcome := upsert(&sessions, scan, now)
	sessions = m.promote(sessions, sess.ID)
	m.save(ctx, sessions)
	m.metrics.IncSessionEvent(string(outcome))
	return clone(sess)
}

// Get returns the live session with id.
func (m *Manager) Get(ctx context.Context, id string) (*types.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.load(ctx, m.now()) {
		if s.ID == id {
			return clone(s), true
		}
	}
	return nil, false
}

// GetByDomain returns the most recently used session on host, preferring
// an exact host match over a root-domain match.
func (m *Manager) GetByDomain(ctx context.Context, host string) (*types.Session, bool) {
	host = domains.NormalizeHost(host)
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions := m.load(ctx, m.now())
	for _, s := range sessions {
		if s.Domain == host {
			return clone(s), true
		}
	}
	for _, s := range sessions {
		if RootDomainMatch(s.Domain, host) {
			return clone(s), true
		}
	}
	return nil, false
}

// List returns the live sessions, most recently used first.
func (m *Manager) List(ctx context.Context) []*types.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions := m.load(ctx, m.now())
	out := make([]*types.Session, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, clone(s))
	}
	return out
}

// Delete removes the session with id and reports whether it existed.
func (m *Manager) Delete(ctx context.Context, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions := m.load(ctx, m.now())
	i := slices.IndexFunc(sessions, func(s *types.Session) bool { return s.ID == id })
	if i < 0 {
		return false
	}
	sessions = slices.Delete(sessions, i, i+1)
	m.save(ctx, sessions)
	m.metrics.IncSessionEvent("deleted")
	return true
}

// SaveDispatch records that the user activated an application-flow control
// in session sessionID on host. A pending dispatch is overwritten.
func (m *Manager) SaveDispatch(ctx context.Context, host, sessionID string) types.SpaDispatch {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := types.SpaDispatch{Domain: domains.NormalizeHost(host), SessionID: sessionID, Timestamp: m.now()}
	if err := m.store.Put(ctx, storage.KeyDispatch, d); err != nil {
		m.logger.Warn("failed to save dispatch", zap.Error(err))
	}
	m.metrics.IncDispatch("saved")
	return d
}

// GetDispatch returns the pending dispatch when it is inside the window and
// its domain shares a root with host. Expired or mismatched dispatches are
// cleared. The dispatch is not consumed.
func (m *Manager) GetDispatch(ctx context.Context, host string) (*types.SpaDispatch, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.loadDispatch(ctx)
	if !ok {
		return nil, false
	}
	if reason := m.dispatchRejection(d, host, m.now()); reason != "" {
		m.clearDispatch(ctx)
		m.metrics.IncDispatch(reason)
		return nil, false
	}
	return &d, true
}

// ClearDispatch discards any pending dispatch.
func (m *Manager) ClearDispatch(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearDispatch(ctx)
}

func (m *Manager) consumeDispatch(ctx context.Context, d types.SpaDispatch, sess *types.Session, sessions []*types.Session, now time.Time) {
	if reason := m.dispatchRejection(d, sess.Domain, now); reason != "" {
		m.clearDispatch(ctx)
		m.metrics.IncDispatch(reason)
		return
	}
	// A re-scan of the dispatching page leaves the hand-off for the next
	// session.
	if d.SessionID == sess.ID {
		return
	}
	m.clearDispatch(ctx)
	m.metrics.IncDispatch("consumed")

	sess.ParentID = d.SessionID
	for _, parent := range sessions {
		if parent.ID == d.SessionID {
			parent.VisitedURLs = appendUnique(parent.VisitedURLs, urlOf(sess.LastScan))
			break
		}
	}
	m.logger.Info("session linked", zap.String("session", sess.ID), zap.String("parent", d.SessionID))
}

func (m *Manager) dispatchRejection(d types.SpaDispatch, host string, now time.Time) string {
	if now.Sub(d.Timestamp) > m.cfg.DispatchWindow {
		return "expired"
	}
	if !RootDomainMatch(d.Domain, host) {
		return "mismatch"
	}
	return ""
}

// upsert merges scan into its session in sessions, creating it if absent.
func upsert(sessions *[]*types.Session, scan *types.PageScan, now time.Time) (*types.Session, Outcome) {
	host := HostOf(scan.URL)
	jobID := JobIdentifier(scan.URL)
	id := DeriveID(host, scan.Company(), scan.JobTitle(), jobID)

	for _, s := range *sessions {
		if s.ID == id {
			merge(s, scan, now)
			return s, OutcomeUpdated
		}
	}

	s := &types.Session{
		ID:              id,
		Domain:          host,
		JobIdentifier:   jobID,
		Company:         scan.Company(),
		Title:           scan.JobTitle(),
		Description:     scan.Description(),
		Fields:          slices.Clone(scan.Fields),
		LastScan:        scan,
		NavigationLinks: slices.Clone(scan.NavigationLinks),
		VisitedURLs:     appendUnique(nil, scan.URL),
		CreatedAt:       now,
		LastAccessedAt:  now,
	}
	if s.Fields == nil {
		s.Fields = []types.FieldDescriptor{}
	}
	if s.NavigationLinks == nil {
		s.NavigationLinks = []string{}
	}
	*sessions = append(*sessions, s)
	return s, OutcomeCreated
}

// merge applies scan over s: non-empty incoming values win, fields are
// unioned by id, links are unioned and the URL is recorded once.
func merge(s *types.Session, scan *types.PageScan, now time.Time) {
	if host := HostOf(scan.URL); host != "" {
		s.Domain = host
	}
	if c := scan.Company(); c != "" {
		s.Company = c
	}
	if t := scan.JobTitle(); t != "" {
		s.Title = t
	}
	if d := scan.Description(); d != "" {
		s.Description = d
	}

	for _, f := range scan.Fields {
		if i := slices.IndexFunc(s.Fields, func(e types.FieldDescriptor) bool { return e.ID == f.ID }); i >= 0 {
			s.Fields[i] = f
			continue
		}
		s.Fields = append(s.Fields, f)
	}
	for _, link := range scan.NavigationLinks {
		s.NavigationLinks = appendUnique(s.NavigationLinks, link)
	}
	s.VisitedURLs = appendUnique(s.VisitedURLs, scan.URL)
	s.LastScan = scan
	s.LastAccessedAt = now
}

// promote moves id to the front and evicts beyond capacity.
func (m *Manager) promote(sessions []*types.Session, id string) []*types.Session {
	if i := slices.IndexFunc(sessions, func(s *types.Session) bool { return s.ID == id }); i > 0 {
		s := sessions[i]
		copy(sessions[1:i+1], sessions[:i])
		sessions[0] = s
	}
	if over := len(sessions) - m.cfg.Capacity; over > 0 {
		for _, s := range sessions[m.cfg.Capacity:] {
			m.logger.Debug("session evicted", zap.String("session", s.ID))
		}
		sessions = sessions[:m.cfg.Capacity]
		for i := 0; i < over; i++ {
			m.metrics.IncSessionEvent("evicted")
		}
	}
	return sessions
}

// load reads the session list and drops expired entries, persisting the
// pruned list when anything expired. Storage errors yield an empty list.
func (m *Manager) load(ctx context.Context, now time.Time) []*types.Session {
	var sessions []*types.Session
	if _, err := m.store.Get(ctx, storage.KeySessions, &sessions); err != nil {
		m.logger.Warn("failed to load sessions", zap.Error(err))
		return nil
	}

	live := sessions[:0]
	for _, s := range sessions {
		if s == nil {
			continue
		}
		if now.Sub(s.LastAccessedAt) > m.cfg.TTL {
			m.logger.Debug("session expired", zap.String("session", s.ID))
			m.metrics.IncSessionEvent("expired")
			continue
		}
		live = append(live, s)
	}
	if len(live) != len(sessions) {
		m.save(ctx, live)
	}
	m.metrics.SetSessionsActive(len(live))
	return live
}

func (m *Manager) save(ctx context.Context, sessions []*types.Session) {
	if sessions == nil {
		sessions = []*types.Session{}
	}
	if err := m.store.Put(ctx, storage.KeySessions, sessions); err != nil {
		m.logger.Warn("failed to save sessions", zap.Error(err))
		return
	}
	m.metrics.SetSessionsActive(len(sessions))
}

func (m *Manager) loadDispatch(ctx context.Context) (types.SpaDispatch, bool) {
	var d types.SpaDispatch
	ok, err := m.store.Get(ctx, storage.KeyDispatch, &d)
	if err != nil {
		m.logger.Warn("failed to load dispatch", zap.Error(err))
		return d, false
	}
	return d, ok
}

func (m *Manager) clearDispatch(ctx context.Context) {
	if err := m.store.Delete(ctx, storage.KeyDispatch); err != nil {
		m.logger.Warn("failed to clear dispatch", zap.Error(err))
	}
}

func appendUnique(list []string, v string) []string {
	if v == "" || slices.Contains(list, v) {
		if list == nil {
			return []string{}
		}
		return list
	}
	return append(list, v)
}

func urlOf(scan *types.PageScan) string {
	if scan == nil {
		return ""
	}
	return scan.URL
}

// clone returns a copy safe to hand to callers.
func clone(s *types.Session) *types.Session {
	c := *s
	c.Fields = slices.Clone(s.Fields)
	c.NavigationLinks = slices.Clone(s.NavigationLinks)
	c.VisitedURLs = slices.Clone(s.VisitedURLs)
	return &c
}
