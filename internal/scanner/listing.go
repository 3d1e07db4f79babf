package scanner

import (
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/jobscan/internal/dom"
	"github.com/GriffinCanCode/jobscan/internal/types"
)

var (
	applyCTA = regexp.MustCompile(`(?i)^\W*(apply|apply now|easy apply|quick apply|apply for( this)?( job| position| role)?|apply to( this)? (job|position|role))\W*$`)
	jobPath  = regexp.MustCompile(`(?i)/(jobs?|careers?|positions?|openings?|vacanc(y|ies)|postings?|requisitions?|opportunit(y|ies))/[^/?#]+`)

	ctaSelector  = dom.Selector(`a, button, [role="button"], input[type="submit"], input[type="button"]`)
	cardSelector = dom.Selector(`[class*="job-card"], [class*="jobcard"], [class*="jobCard"], [class*="job-listing"], [class*="job-item"], [class*="job-result"], [class*="job-tile"], [class*="posting-item"], [class*="opening-item"], [class*="vacancy"], [data-job-id], [data-jobid], [data-testid*="job-card"]`)
	listParents  = dom.Selector(`ul, ol, div, section, main, tbody, article`)
	chrome       = dom.Selector(`nav, header, footer, [role="navigation"], [role="banner"], [role="contentinfo"]`)

	resultsText = regexp.MustCompile(`(?i)\b(showing\s+\d[\d,]*(\s*(-|–|to)\s*\d[\d,]*)?\s+(of\s+\d[\d,]*\s+)?(results|jobs|positions|openings|roles)|\d[\d,]*\s+(jobs|results|positions|openings|roles)\s+(found|available|matching|open))\b`)

	detailKeywords = []string{
		"responsibilities", "qualifications", "requirements", "about the role",
		"about the job", "what you'll do", "what you will do", "who you are",
		"job description", "benefits", "nice to have", "about you",
	}
)

const (
	lower = "abcdefghijklmnopqrstuvwxyz"
	upper = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	paginationXPath = `//*[contains(translate(@class,'` + upper + `','` + lower + `'),'pagination') or contains(translate(@class,'` + upper + `','` + lower + `'),'pager') or contains(translate(@aria-label,'` + upper + `','` + lower + `'),'pagination')] | //a[@rel='next'] | //link[@rel='next']`
	searchXPath     = `//input[@type='search'] | //*[@role='search'] | //input[contains(translate(@placeholder,'` + upper + `','` + lower + `'),'search') or contains(translate(@name,'` + upper + `','` + lower + `'),'keyword') or contains(translate(@name,'` + upper + `','` + lower + `'),'search')] | //select[contains(translate(@name,'` + upper + `','` + lower + `'),'location') or contains(translate(@name,'` + upper + `','` + lower + `'),'department') or contains(translate(@name,'` + upper + `','` + lower + `'),'category')] | //*[contains(translate(@class,'` + upper + `','` + lower + `'),'job-filter') or contains(translate(@class,'` + upper + `','` + lower + `'),'search-filters')]`
)

// listingSignals are the raw counts the score is computed from.
type listingSignals struct {
	applyCTAs  int
	jobLinks   int
	cards      int
	pagination bool
	search     bool
	keywordMax int
	keywords   int
}

// classifyListing scores whether doc lists many jobs rather than one.
func classifyListing(doc *dom.Document, h Heuristics) types.Listing {
	return scoreListing(collectListingSignals(doc), h)
}

func collectListingSignals(doc *dom.Document) listingSignals {
	text := dom.ComposedText(doc)
	s := listingSignals{
		applyCTAs:  countApplyCTAs(doc),
		jobLinks:   countJobLinks(doc),
		cards:      max(countConventionCards(doc), countStructuralCards(doc)),
		pagination: len(xpathMatches(doc, paginationXPath)) > 0 || resultsText.MatchString(text),
		search:     len(xpathMatches(doc, searchXPath)) > 0,
	}
	s.keywordMax, s.keywords = detailKeywordStats(text)
	return s
}

func scoreListing(s listingSignals, h Heuristics) types.Listing {
	score := 0.0
	estimate := 0

	if s.applyCTAs >= h.MinRepeats {
		score += h.ApplyWeight
		estimate = s.applyCTAs
	}
	if s.jobLinks >= h.MinRepeats {
		score += h.LinkWeight
		estimate = max(estimate, s.jobLinks)
	}
	if s.cards >= h.MinRepeats {
		score += h.CardWeight
		estimate = max(estimate, s.cards)
	}
	if s.pagination {
		score += h.PaginationWeight
	}
	if s.search {
		score += h.SearchWeight
	}

	switch {
	case s.keywordMax >= h.KeywordRepeatThreshold:
		score += h.KeywordRepeatBonus
	case s.keywords >= 3:
		score -= h.DetailPenaltyMany
	case s.keywords == 2:
		score -= h.DetailPenaltySome
	case s.keywords == 1:
		score -= h.DetailPenaltyOne
	}

	score = min(max(score, 0), 1)
	return types.Listing{
		IsListing:      score >= h.ListingThreshold,
		Confidence:     score,
		EstimatedCount: estimate,
	}
}

func countApplyCTAs(doc *dom.Document) int {
	count := 0
	for _, n := range doc.Filter(ctaSelector) {
		if applyCTA.MatchString(clickableText(n)) {
			count++
		}
	}
	return count
}

// countJobLinks counts distinct hrefs whose path looks like a job detail page.
func countJobLinks(doc *dom.Document) int {
	seen := make(map[string]bool)
	for _, n := range doc.Filter(dom.Selector(`a[href]`)) {
		href := resolveHref(doc, dom.Attr(n, "href"))
		if href == "" || !jobPath.MatchString(href) {
			continue
		}
		seen[href] = true
	}
	return len(seen)
}

// countConventionCards counts outermost elements matching card conventions.
func countConventionCards(doc *dom.Document) int {
	matched := doc.Filter(cardSelector)
	set := make(map[*html.Node]bool, len(matched))
	for _, n := range matched {
		set[n] = true
	}
	count := 0
	for _, n := range matched {
		nested := false
		for p := dom.ParentElement(n); p != nil; p = dom.ParentElement(p) {
			if set[p] {
				nested = true
				break
			}
		}
		if !nested {
			count++
		}
	}
	return count
}

// countStructuralCards returns the largest group of same tag and class
// siblings inside a list container where each member carries a link or
// heading. Page chrome is ignored.
func countStructuralCards(doc *dom.Document) int {
	best := 0
	for _, parent := range doc.Filter(listParents) {
		if insideChrome(parent) {
			continue
		}
		groups := make(map[string]int)
		for c := dom.FirstElement(parent); c != nil; c = dom.NextElement(c) {
			class := strings.TrimSpace(dom.Attr(c, "class"))
			if class == "" && !dom.IsTag(c, "li", "article", "tr") {
				continue
			}
			if !hasLinkOrHeading(c) {
				continue
			}
			groups[dom.Tag(c)+"."+class]++
		}
		for _, n := range groups {
			best = max(best, n)
		}
	}
	return best
}

func insideChrome(n *html.Node) bool {
	for p := n; p != nil; p = dom.ParentElement(p) {
		if chrome(p) {
			return true
		}
	}
	return false
}

func hasLinkOrHeading(n *html.Node) bool {
	return dom.Query(n, func(c *html.Node) bool {
		return dom.IsTag(c, "a", "h2", "h3", "h4", "h5")
	}) != nil
}

// xpathMatches evaluates expr over the light DOM and every open shadow root,
// keeping only nodes the document indexes (inert templates are dropped).
func xpathMatches(doc *dom.Document, expr string) []*html.Node {
	nodes, err := htmlquery.QueryAll(doc.Root, expr)
	if err != nil {
		return nil
	}
	out := nodes[:0]
	for _, n := range nodes {
		if doc.Position(n) >= 0 {
			out = append(out, n)
		}
	}
	return out
}

// detailKeywordStats returns the count of the most repeated detail keyword
// and the number of distinct keywords present.
func detailKeywordStats(text string) (most, distinct int) {
	lowerText := strings.ToLower(text)
	for _, kw := range detailKeywords {
		n := strings.Count(lowerText, kw)
		if n > 0 {
			distinct++
		}
		most = max(most, n)
	}
	return most, distinct
}
