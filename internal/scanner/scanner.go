package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/jobscan/internal/dom"
	"github.com/GriffinCanCode/jobscan/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jobscan/internal/logging"
	"github.com/GriffinCanCode/jobscan/internal/types"
)

// ErrNoData is returned when every attempt produced an empty scan.
var ErrNoData = errors.New("scanner: no usable data found")

// Source yields the current document of a page or frame. Each call should
// observe the live state, so retries can see content rendered since the last
// call.
type Source interface {
	Document(ctx context.Context) (*dom.Document, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (*dom.Document, error)

func (f SourceFunc) Document(ctx context.Context) (*dom.Document, error) { return f(ctx) }

// StaticSource always returns the same document.
type StaticSource struct {
	Doc *dom.Document
}

func (s StaticSource) Document(context.Context) (*dom.Document, error) {
	if s.Doc == nil {
		return nil, dom.ErrEmptyDocument
	}
	return s.Doc, nil
}

// Frame is one frame of a tab.
type Frame struct {
	ID     string
	Top    bool
	Source Source
}

// FrameResult is the reply of one frame. Frames that failed or timed out
// are left out before aggregation.
type FrameResult struct {
	FrameID string
	Top     bool
	Scan    *types.PageScan
}

// Scanner runs the extractors over documents.
type Scanner struct {
	logger  *logging.Logger
	metrics *monitoring.Metrics
	opts    Options
	meta    *metadataExtractor

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New creates a Scanner. logger and metrics may be nil.
func New(opts Options, logger *logging.Logger, metrics *monitoring.Metrics) *Scanner {
	opts.defaults()
	logger = logging.OrNop(logger).Named("scanner")
	return &Scanner{
		logger:  logger,
		metrics: metrics,
		opts:    opts,
		meta:    newMetadataExtractor(logger),
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// Options returns the effective options.
func (s *Scanner) Options() Options {
	return s.opts
}

// ScanDocument runs one extraction pass over doc. It never fails; a page
// with nothing recognizable yields an empty scan.
func (s *Scanner) ScanDocument(doc *dom.Document) *types.PageScan {
	fields := extractFields(doc)
	actions, triggers := classifyActions(doc)
	multi, step := detectMultiPage(doc, actions, dom.ComposedText(doc))
	meta := s.meta.extract(doc)

	scan := &types.PageScan{
		Title:                 doc.Title(),
		CompanyCandidates:     meta.companies,
		TitleCandidates:       meta.titles,
		DescriptionCandidates: meta.descriptions,
		Fields:                fields,
		Actions:               orEmpty(actions),
		FlowTriggers:          triggers,
		MultiPage:             multi,
		EstimatedStep:         step,
		Listing:               classifyListing(doc, s.opts.Heuristics),
		NavigationLinks:       navigationLinks(doc),
		ScannedAt:             s.now(),
	}
	if doc.URL != nil {
		scan.URL = doc.URL.String()
	}
	return scan
}

// Scan scans src, retrying while the page shows no form fields, and returns
// the best result seen. It returns ErrNoData when no attempt found anything.
func (s *Scanner) Scan(ctx context.Context, src Source) (*types.PageScan, error) {
	start := s.now()
	var best *types.PageScan
	var lastErr error

	for attempt := 1; attempt <= s.opts.Attempts; attempt++ {
		doc, err := src.Document(ctx)
		if err != nil {
			lastErr = err
			s.logger.Debug("document unavailable", zap.Int("attempt", attempt), zap.Error(err))
		} else {
			scan := s.ScanDocument(doc)
			best = better(best, scan)
			if len(scan.Fields) > 0 {
				break
			}
		}

		if attempt == s.opts.Attempts {
			break
		}
		s.metrics.IncScanRetry()
		if err := s.sleep(ctx, s.opts.Delay); err != nil {
			lastErr = err
			break
		}
	}

	if best == nil || best.Empty() {
		s.metrics.RecordScan("empty", 0, s.now().Sub(start))
		if lastErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoData, lastErr)
		}
		return nil, ErrNoData
	}

	s.metrics.RecordScan("ok", len(best.Fields), s.now().Sub(start))
	s.logger.Debug("page scanned",
		zap.String("url", best.URL),
		zap.Int("fields", len(best.Fields)),
		zap.Int("actions", len(best.Actions)),
		zap.Bool("listing", best.Listing.IsListing))
	return best, nil
}

// ScanFrames scans every frame concurrently and aggregates the replies.
// A frame that errors or exceeds the frame timeout is skipped. It returns
// nil when no frame produced data.
func (s *Scanner) ScanFrames(ctx context.Context, frames []Frame) *types.PageScan {
	results := make([]*FrameResult, len(frames))

	var wg sync.WaitGroup
	for i, f := range frames {
		wg.Add(1)
		go func(i int, f Frame) {
			defer wg.Done()
			fctx, cancel := context.WithTimeout(ctx, s.opts.FrameTimeout)
			defer cancel()

			scan, err := s.Scan(fctx, f.Source)
			if err != nil {
				s.metrics.IncFrameSkipped()
				s.logger.Debug("frame skipped", zap.String("frame", f.ID), zap.Error(err))
				return
			}
			results[i] = &FrameResult{FrameID: f.ID, Top: f.Top, Scan: scan}
		}(i, f)
	}
	wg.Wait()

	replies := make([]FrameResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			replies = append(replies, *r)
		}
	}
	return Aggregate(replies)
}

// Aggregate merges per-frame scans into one. Fields are deduplicated by
// (id, name, label) and actions by id. Page metadata comes from the top
// frame when it has data, otherwise from the first frame that does.
// MultiPage is set when any frame shows a previous-style control.
func Aggregate(frames []FrameResult) *types.PageScan {
	var primary *types.PageScan
	for _, f := range frames {
		if f.Top && f.Scan != nil && !f.Scan.Empty() {
			primary = f.Scan
			break
		}
	}
	if primary == nil {
		for _, f := range frames {
			if f.Scan != nil && !f.Scan.Empty() {
				primary = f.Scan
				break
			}
		}
	}
	if primary == nil {
		return nil
	}

	out := &types.PageScan{
		URL:                   primary.URL,
		Title:                 primary.Title,
		CompanyCandidates:     primary.CompanyCandidates,
		TitleCandidates:       primary.TitleCandidates,
		DescriptionCandidates: primary.DescriptionCandidates,
		Fields:                []types.FieldDescriptor{},
		Actions:               []types.ActionDescriptor{},
		MultiPage:             primary.MultiPage,
		EstimatedStep:         primary.EstimatedStep,
		Listing:               primary.Listing,
		NavigationLinks:       primary.NavigationLinks,
		ScannedAt:             primary.ScannedAt,
	}

	seenFields := make(map[string]bool)
	seenActions := make(map[string]bool)
	seenTriggers := make(map[string]bool)
	for _, f := range frames {
		if f.Scan == nil {
			continue
		}
		for _, field := range f.Scan.Fields {
			key := strings.Join([]string{field.ID, field.Name, field.Label}, "\x00")
			if !seenFields[key] {
				seenFields[key] = true
				out.Fields = append(out.Fields, field)
			}
		}
		for _, a := range f.Scan.Actions {
			if !seenActions[a.ID] {
				seenActions[a.ID] = true
				out.Actions = append(out.Actions, a)
			}
		}
		for _, a := range f.Scan.FlowTriggers {
			if !seenTriggers[a.ID] {
				seenTriggers[a.ID] = true
				out.FlowTriggers = append(out.FlowTriggers, a)
			}
		}
		if f.Scan.HasPrevious() {
			out.MultiPage = true
		}
	}
	return out
}

// better prefers the scan with more fields, then any non-empty scan.
func better(cur, next *types.PageScan) *types.PageScan {
	switch {
	case cur == nil:
		return next
	case len(next.Fields) > len(cur.Fields):
		return next
	case len(next.Fields) == len(cur.Fields) && cur.Empty() && !next.Empty():
		return next
	default:
		return cur
	}
}

func orEmpty(actions []types.ActionDescriptor) []types.ActionDescriptor {
	if actions == nil {
		return []types.ActionDescriptor{}
	}
	return actions
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
