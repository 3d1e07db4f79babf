// Package domains decides which hosts jobscan may track.
//
// Rules are doublestar glob patterns matched against the lower-case
// hostname ("*.greenhouse.io", "jobs.*.com"). A pattern of the form
// "*.example.com" also matches "example.com" itself. Deny rules win over
// allow rules; with no allow rules every host not denied is allowed.
package domains

import (
	"fmt"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// Decision explains a policy check.
type Decision struct {
	Host    string `json:"host"`
	Allowed bool   `json:"allowed"`
	Rule    string `json:"rule,omitempty"`
	Reason  string `json:"reason"`
}

// Policy is a concurrency-safe allow/deny list.
type Policy struct {
	mu    sync.RWMutex
	allow []string
	deny  []string
}

// NewPolicy validates and installs the given rules.
func NewPolicy(allow, deny []string) (*Policy, error) {
	p := &Policy{}
	if err := p.Set(allow, deny); err != nil {
		return nil, err
	}
	return p, nil
}

// Set replaces both rule lists atomically.
func (p *Policy) Set(allow, deny []string) error {
	a, err := normalize(allow)
	if err != nil {
		return err
	}
	d, err := normalize(deny)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.allow, p.deny = a, d
	p.mu.Unlock()
	return nil
}

// Rules returns copies of the allow and deny lists.
func (p *Policy) Rules() (allow, deny []string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.allow...), append([]string(nil), p.deny...)
}

// Allowed reports whether host may be tracked.
func (p *Policy) Allowed(host string) bool {
	return p.Check(host).Allowed
}

// Check evaluates host against the rules.
func (p *Policy) Check(host string) Decision {
	host = NormalizeHost(host)
	if p == nil {
		return Decision{Host: host, Allowed: true, Reason: "no policy"}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if rule, ok := firstMatch(p.deny, host); ok {
		return Decision{Host: host, Allowed: false, Rule: rule, Reason: "denied"}
	}
	if len(p.allow) == 0 {
		return Decision{Host: host, Allowed: true, Reason: "no allow list"}
	}
	if rule, ok := firstMatch(p.allow, host); ok {
		return Decision{Host: host, Allowed: true, Rule: rule, Reason: "allowed"}
	}
	return Decision{Host: host, Allowed: false, Reason: "not in allow list"}
}

// NormalizeHost lower-cases host and strips any port and trailing dot.
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if i := strings.LastIndexByte(host, ':'); i >= 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	return strings.TrimSuffix(host, ".")
}

func normalize(patterns []string) ([]string, error) {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("domains: invalid pattern %q", p)
		}
		out = append(out, p)
	}
	return out, nil
}

func firstMatch(patterns []string, host string) (string, bool) {
	if host == "" {
		return "", false
	}
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, host); ok {
			return p, true
		}
		if bare, found := strings.CutPrefix(p, "*."); found && bare == host {
			return p, true
		}
	}
	return "", false
}
