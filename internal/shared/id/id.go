// Package id generates the sortable identifiers used by jobscan.
//
// Identifiers are ULIDs with a short type prefix (art_*, req_*, scan_*), so
// history listings sort by creation time and log lines say what an id
// refers to. Session ids are not generated here: they are derived from page
// content by the session package.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ArtifactID identifies a generated resume or cover letter record.
type ArtifactID string

// RequestID identifies an API request.
type RequestID string

// ScanID identifies one stored scan.
type ScanID string

const (
	ArtifactPrefix = "art"
	RequestPrefix  = "req"
	ScanPrefix     = "scan"
)

// Generator generates ULIDs with optional prefixes.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
	now       func() time.Time
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand.
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(rand.Reader)
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Tests use it with a deterministic reader.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy, now: time.Now}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
}

// GenerateString creates a new ULID as a string.
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewArtifactID generates an artifact id.
func NewArtifactID() ArtifactID {
	return ArtifactID(Default().GenerateWithPrefix(ArtifactPrefix))
}

// NewRequestID generates a request id.
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

// NewScanID generates a scan id.
func NewScanID() ScanID {
	return ScanID(Default().GenerateWithPrefix(ScanPrefix))
}

func (id ArtifactID) String() string { return string(id) }
func (id RequestID) String() string  { return string(id) }
func (id ScanID) String() string     { return string(id) }

// IsValid reports whether id is a ULID, with or without a type prefix.
func IsValid(id string) bool {
	_, err := Parse(id)
	return err == nil
}

// Parse parses a ULID, stripping a type prefix if present.
func Parse(id string) (ulid.ULID, error) {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	return ulid.Parse(id)
}

// Timestamp extracts the creation time of an id.
func Timestamp(id string) (time.Time, error) {
	parsed, err := Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
