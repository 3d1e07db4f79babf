package scanner

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func repeat(n int, format string) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, format, i, i)
	}
	return b.String()
}

func TestListingWithRepeatedCards(t *testing.T) {
	doc := load(t, `<main><ul class="results">`+
		repeat(10, `<li class="job-card"><h3>Role %d</h3><a href="/jobs/%d">Apply</a></li>`)+
		`</ul></main>`)

	listing := classifyListing(doc, DefaultHeuristics())
	assert.True(t, listing.IsListing)
	assert.Equal(t, 10, listing.EstimatedCount)
	assert.InDelta(t, 0.8, listing.Confidence, 1e-9)
}

func TestListingFromApplyButtonsLinksAndPagination(t *testing.T) {
	doc := load(t, `<div>`+
		repeat(5, `<button data-i="%d">Apply now</button><a href="/careers/eng-%d">Engineer</a>`)+
		`<p>Showing 1-20 of 143 jobs</p></div>`)

	signals := collectListingSignals(doc)
	assert.Equal(t, 5, signals.applyCTAs)
	assert.Equal(t, 5, signals.jobLinks)
	assert.True(t, signals.pagination)
	assert.Zero(t, signals.keywords)

	listing := scoreListing(signals, DefaultHeuristics())
	assert.GreaterOrEqual(t, listing.Confidence, 0.4)
	assert.True(t, listing.IsListing)
	assert.Equal(t, 5, listing.EstimatedCount)
}

func TestSingleJobDetailIsNotListing(t *testing.T) {
	doc := load(t, `
		<h1>Backend Engineer</h1>
		<h3>Responsibilities</h3><p>Own services.</p>
		<h3>Qualifications</h3><p>Go experience.</p>
		<h3>Benefits</h3><p>Remote.</p>
		<button>Apply now</button>`)

	listing := classifyListing(doc, DefaultHeuristics())
	assert.False(t, listing.IsListing)
	assert.Zero(t, listing.Confidence)
}

func TestRepeatedDetailKeywordsCountTowardListing(t *testing.T) {
	doc := load(t, `<section>`+
		repeat(3, `<article class="posting"><h2>Role %d</h2><p>Responsibilities: ship code %d.</p></article>`)+
		`</section>`)

	signals := collectListingSignals(doc)
	assert.Equal(t, 3, signals.keywordMax)
	assert.Equal(t, 3, signals.cards)

	listing := scoreListing(signals, DefaultHeuristics())
	assert.InDelta(t, 0.55, listing.Confidence, 1e-9)
	assert.True(t, listing.IsListing)
}

func TestNavigationChromeIsNotCards(t *testing.T) {
	doc := load(t, `<nav><ul>`+repeat(6, `<li class="item"><a href="/p/%d">Page %d</a></li>`)+`</ul></nav>`)

	assert.Zero(t, countStructuralCards(doc))
}

func TestSearchAndPaginationMarkup(t *testing.T) {
	doc := load(t, `<form role="search"><input name="keywords"></form><ul class="Pagination"><li><a href="?page=2">2</a></li></ul>`)

	signals := collectListingSignals(doc)
	assert.True(t, signals.search)
	assert.True(t, signals.pagination)
}

func TestScoreListingIsClamped(t *testing.T) {
	h := DefaultHeuristics()
	cases := []listingSignals{
		{},
		{keywords: 5},
		{applyCTAs: 50, jobLinks: 50, cards: 50, pagination: true, search: true, keywordMax: 9},
		{applyCTAs: 3, keywords: 1},
		{jobLinks: 3, cards: 2, keywords: 2},
	}
	for _, s := range cases {
		l := scoreListing(s, h)
		assert.GreaterOrEqual(t, l.Confidence, 0.0, "%+v", s)
		assert.LessOrEqual(t, l.Confidence, 1.0, "%+v", s)
		assert.Equal(t, l.Confidence >= h.ListingThreshold, l.IsListing)
	}
	assert.Equal(t, 1.0, scoreListing(cases[2], h).Confidence)
}
