package session

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/GriffinCanCode/jobscan/internal/domains"
)

// DeriveID returns the session id for a job. It is a pure function of its
// inputs: a 32-bit rolling hash rendered in base 36.
func DeriveID(domain, company, title, jobIdentifier string) string {
	var h int32
	for _, part := range []string{domain, company, title, jobIdentifier} {
		for _, r := range part {
			h = h*31 + int32(r)
		}
		h = h*31 + '|'
	}
	return strconv.FormatUint(uint64(uint32(h)), 36)
}

// JobIdentifier is the path, sorted query and fragment of rawURL, so that
// parameter order does not change the identifier but parameter values do.
func JobIdentifier(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}

	var b strings.Builder
	b.WriteString(u.EscapedPath())
	if q := sortedQuery(u.Query()); q != "" {
		b.WriteByte('?')
		b.WriteString(q)
	}
	if u.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(u.Fragment)
	}
	return b.String()
}

func sortedQuery(values url.Values) string {
	pairs := make([]string, 0, len(values))
	for key, vs := range values {
		for _, v := range vs {
			pairs = append(pairs, url.QueryEscape(key)+"="+url.QueryEscape(v))
		}
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "&")
}

// HostOf returns the normalized hostname of rawURL, or "".
func HostOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return domains.NormalizeHost(u.Host)
}

// twoPartSuffixes are public suffixes spanning two labels; registrable
// domains under them keep three labels.
var twoPartSuffixes = map[string]bool{
	"co.uk": true, "org.uk": true, "ac.uk": true, "gov.uk": true, "me.uk": true, "ltd.uk": true, "plc.uk": true,
	"com.au": true, "net.au": true, "org.au": true, "edu.au": true, "gov.au": true,
	"co.jp": true, "ne.jp": true, "or.jp": true,
	"co.nz": true, "org.nz": true,
	"co.in": true, "net.in": true, "org.in": true,
	"co.za": true, "org.za": true,
	"co.kr": true, "or.kr": true,
	"com.br": true, "com.mx": true, "com.ar": true, "com.cn": true, "com.hk": true,
	"com.sg": true, "com.tw": true, "com.tr": true, "com.my": true, "com.ph": true,
	"co.il": true, "co.id": true, "co.th": true,
}

// RootDomain returns the registrable part of host: the last two labels, or
// the last three under a two-part public suffix.
func RootDomain(host string) string {
	host = domains.NormalizeHost(host)
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	n := 2
	if twoPartSuffixes[strings.Join(labels[len(labels)-2:], ".")] {
		n = 3
	}
	if len(labels) < n {
		return host
	}
	return strings.Join(labels[len(labels)-n:], ".")
}

// RootDomainMatch reports whether two hosts share a root domain.
func RootDomainMatch(a, b string) bool {
	ra, rb := RootDomain(a), RootDomain(b)
	return ra != "" && ra == rb
}
