package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/jobscan/internal/dom"
	"github.com/GriffinCanCode/jobscan/internal/scanner"
	"github.com/GriffinCanCode/jobscan/internal/session"
	"github.com/GriffinCanCode/jobscan/internal/types"
)

// pageReport is printed for every scanned page.
type pageReport struct {
	Source  string          `json:"source"`
	Scan    *types.PageScan `json:"scan,omitempty"`
	Session *types.Session  `json:"session,omitempty"`
	Outcome session.Outcome `json:"outcome,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func newScanCmd(a *app) *cobra.Command {
	var (
		track   bool
		pageURL string
	)

	cmd := &cobra.Command{
		Use:   "scan <file|glob>...",
		Short: "Scan saved HTML pages",
		Long: `Scan saved HTML pages and print one JSON report per page.

Arguments may be files or doublestar globs ("saved/**/*.html"). With --track
each page goes through the session correlator, persisted in --db.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := expandPatterns(args)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return errors.New("no files matched")
			}

			s, err := a.newScanner(nil)
			if err != nil {
				return err
			}

			var t *tracker
			if track {
				if t, err = a.newTracker(); err != nil {
					return err
				}
				defer t.close()
			}

			failed := 0
			for _, file := range files {
				report := scanFile(s, file, pageURL)
				if report.Scan != nil && t != nil {
					report.Session, report.Outcome = t.sessions.Track(cmd.Context(), report.Scan)
				}
				if report.Error != "" {
					failed++
					a.logger.Warn("scan failed", zap.String("file", file), zap.String("error", report.Error))
				}
				if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			}
			if failed == len(files) {
				return fmt.Errorf("%w in %d file(s)", scanner.ErrNoData, failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&track, "track", false, "Track qualifying pages as application sessions")
	cmd.Flags().StringVar(&pageURL, "url", "", "Page URL to attribute the scans to (default: file URL)")
	return cmd
}

// scanFile loads and scans one saved page.
func scanFile(s *scanner.Scanner, file, pageURL string) pageReport {
	report := pageReport{Source: file}

	data, err := os.ReadFile(file)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	if pageURL == "" {
		pageURL = fileURL(file)
	}
	doc, err := dom.Load(data, pageURL)
	if err != nil {
		report.Error = err.Error()
		return report
	}

	scan := s.ScanDocument(doc)
	if scan.Empty() {
		report.Error = scanner.ErrNoData.Error()
		return report
	}
	report.Scan = scan
	return report
}

// expandPatterns resolves globs, keeps plain paths as given, and drops
// duplicates while preserving order.
func expandPatterns(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(f string) {
		if !seen[f] {
			seen[f] = true
			files = append(files, f)
		}
	}

	for _, p := range patterns {
		if !hasMeta(p) {
			add(p)
			continue
		}
		if !doublestar.ValidatePathPattern(p) {
			return nil, fmt.Errorf("invalid pattern %q", p)
		}
		matches, err := doublestar.FilepathGlob(p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", p, err)
		}
		for _, m := range matches {
			add(m)
		}
	}
	return files, nil
}

func hasMeta(p string) bool {
	for _, c := range p {
		switch c {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}

func fileURL(file string) string {
	abs, err := filepath.Abs(file)
	if err != nil {
		abs = file
	}
	return "file://" + filepath.ToSlash(abs)
}
