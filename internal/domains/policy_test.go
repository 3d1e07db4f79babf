package domains

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyCheck(t *testing.T) {
	p, err := NewPolicy(
		[]string{"*.greenhouse.io", "*.lever.co", "careers.*.com"},
		[]string{"internal.greenhouse.io"},
	)
	require.NoError(t, err)

	tests := []struct {
		host    string
		allowed bool
		reason  string
	}{
		{"boards.greenhouse.io", true, "allowed"},
		{"greenhouse.io", true, "allowed"},
		{"JOBS.LEVER.CO:443", true, "allowed"},
		{"careers.acme.com", true, "allowed"},
		{"internal.greenhouse.io", false, "denied"},
		{"example.org", false, "not in allow list"},
		{"", false, "not in allow list"},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			d := p.Check(tt.host)
			assert.Equal(t, tt.allowed, d.Allowed)
			assert.Equal(t, tt.reason, d.Reason)
			assert.Equal(t, tt.allowed, p.Allowed(tt.host))
		})
	}
}

func TestEmptyAllowListAllowsEverythingNotDenied(t *testing.T) {
	p, err := NewPolicy(nil, []string{"*.bank.com"})
	require.NoError(t, err)

	assert.True(t, p.Allowed("jobs.example.com"))
	assert.False(t, p.Allowed("www.bank.com"))
	assert.False(t, p.Allowed("bank.com"))
}

func TestNilPolicyAllows(t *testing.T) {
	var p *Policy
	assert.True(t, p.Allowed("anything.example"))
}

func TestInvalidPattern(t *testing.T) {
	_, err := NewPolicy([]string{"[unclosed"}, nil)
	assert.Error(t, err)
}

func TestSetReplacesRules(t *testing.T) {
	p, err := NewPolicy([]string{"a.com"}, nil)
	require.NoError(t, err)
	require.NoError(t, p.Set([]string{"b.com"}, []string{" C.com "}))

	allow, deny := p.Rules()
	assert.Equal(t, []string{"b.com"}, allow)
	assert.Equal(t, []string{"c.com"}, deny)
	assert.False(t, p.Allowed("a.com"))
}

func TestNormalizeHost(t *testing.T) {
	assert.Equal(t, "jobs.example.com", NormalizeHost(" Jobs.Example.com.:8080 "))
}
