package scanner

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/bytedance/sonic"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/jobscan/internal/dom"
	"github.com/GriffinCanCode/jobscan/internal/logging"
)

const (
	maxCompanies      = 5
	maxTitles         = 5
	maxDescriptions   = 8
	maxTitleLength    = 200
	maxDescription    = 3000
	minPhraseBlock    = 50
	maxPhraseBlock    = 2000
	maxSectionSibling = 5
)

var (
	companySelectors = dom.Selector(`[class*="company-name"], [class*="companyName"], [class*="employer-name"], [class*="hiring-company"], [data-company], [data-testid*="company"], [data-automation*="company"], .company, .employer`)
	titleSelectors   = dom.Selector(`[class*="job-title"], [class*="jobTitle"], [class*="posting-title"], [class*="position-title"], [data-testid*="job-title"], [data-automation*="job-title"], [data-automation="jobTitle"], .posting-headline h2, .app-title`)
	descSelectors    = dom.Selector(`[class*="job-description"], [class*="jobDescription"], [class*="description__text"], [class*="posting-description"], #job-description, #jobDescriptionText, [data-automation="jobDescription"], [data-testid*="description"], .job-details, .description`)

	headingSelector = dom.Selector(`h1, h2, h3, h4, h5, h6, [role="heading"]`)
	h1Selector      = dom.Selector(`h1`)

	requirementHeading = regexp.MustCompile(`(?i)\b(requirements?|qualifications?|responsibilities|what you('|’)?ll do|what you will do|what we('|’)?re looking for|what we are looking for|who you are|about the (role|job|position|team)|the role|your role|skills|experience|nice to have|preferred|must have|duties|job summary|overview)\b`)

	descriptionPhrases = []string{
		"we are seeking", "we're seeking", "we are looking for", "we're looking for",
		"ideal candidate", "the successful candidate", "you will be responsible",
		"responsibilities include", "in this role", "in this position", "as a member of",
		"you will work", "you'll work", "join our team", "join us", "we are hiring",
		"we're hiring", "the role", "your responsibilities", "key responsibilities",
		"you will have", "you'll have", "required skills", "years of experience",
		"about the role", "about you", "what you will do", "what you'll do",
	}

	blockTags = map[string]bool{
		"p": true, "div": true, "section": true, "article": true, "li": true, "ul": true,
		"ol": true, "td": true, "main": true, "aside": true, "blockquote": true, "dd": true,
	}

	titleSeparators = regexp.MustCompile(`\s+[|\-–—·:]\s+|\s+at\s+`)
	companyNoise    = regexp.MustCompile(`(?i)^(careers|jobs)\s+(at|@)\s+|\s*[-|:·]?\s*\b(careers?|jobs|job board|hiring|recruiting)\b\s*$`)
	blockBoundary   = regexp.MustCompile(`(?i)<\s*/?\s*(br|p|div|li|ul|ol|h[1-6]|tr|td|section|article)\b[^>]*>`)
)

// metadataExtractor infers company, title and description candidates.
type metadataExtractor struct {
	logger    *logging.Logger
	sanitizer *bluemonday.Policy
}

func newMetadataExtractor(logger *logging.Logger) *metadataExtractor {
	return &metadataExtractor{
		logger:    logging.OrNop(logger),
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// jobPosting holds the fields read from embedded structured data.
type jobPosting struct {
	title       string
	company     string
	description string
}

type metadata struct {
	companies    []string
	titles       []string
	descriptions []string
}

func (m *metadataExtractor) extract(doc *dom.Document) metadata {
	companies := newCandidates(maxCompanies, cleanCompany)
	titles := newCandidates(maxTitles, cleanTitle)
	descriptions := newCandidates(maxDescriptions, m.cleanDescription)

	sel := doc.Selection()

	// Structured data.
	for _, p := range append(m.jsonLD(sel), microdata(sel)...) {
		companies.add(p.company)
		titles.add(p.title)
		descriptions.add(p.description)
	}

	// Meta tags.
	companies.add(metaContent(sel, "og:site_name", "application-name"))
	if t := metaContent(sel, "og:title", "twitter:title"); t != "" {
		title, company := parseTitle(t)
		titles.add(title)
		companies.add(company)
	}
	descriptions.add(metaContent(sel, "description"))
	descriptions.add(metaContent(sel, "og:description", "twitter:description"))

	// Selector conventions.
	for _, n := range doc.Filter(companySelectors) {
		companies.add(firstNonEmpty(dom.Attr(n, "data-company"), dom.Text(n)))
	}
	for _, n := range doc.Filter(titleSelectors) {
		titles.add(dom.Text(n))
	}
	for _, n := range doc.Filter(h1Selector) {
		titles.add(dom.Text(n))
	}
	for _, n := range doc.Filter(descSelectors) {
		descriptions.add(dom.Text(n))
	}

	for _, block := range requirementBlocks(doc) {
		descriptions.add(block)
	}
	for _, block := range phraseBlocks(doc) {
		descriptions.add(block)
	}

	// Page title.
	if t := doc.Title(); t != "" {
		title, company := parseTitle(t)
		titles.add(title)
		companies.add(company)
	}

	return metadata{
		companies:    companies.list(),
		titles:       titles.list(),
		descriptions: descriptions.list(),
	}
}

// jsonLD reads JobPosting objects from ld+json scripts, including @graph
// containers and arrays. Malformed scripts are skipped.
func (m *metadataExtractor) jsonLD(sel *goquery.Document) []jobPosting {
	var out []jobPosting
	sel.Find(`script[type="application/ld+json"]`).Each(func(i int, s *goquery.Selection) {
		content := strings.TrimSpace(s.Text())
		if content == "" {
			return
		}
		var data any
		if err := sonic.UnmarshalString(content, &data); err != nil {
			m.logger.Debug("skipping malformed structured data", zap.Int("script", i), zap.Error(err))
			return
		}
		collectPostings(data, &out)
	})
	return out
}

func collectPostings(v any, out *[]jobPosting) {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			collectPostings(item, out)
		}
	case map[string]any:
		if isJobPosting(t["@type"]) {
			*out = append(*out, jobPosting{
				title:       firstNonEmpty(stringValue(t["title"]), stringValue(t["name"])),
				company:     organizationName(t["hiringOrganization"]),
				description: stringValue(t["description"]),
			})
		}
		if graph, ok := t["@graph"]; ok {
			collectPostings(graph, out)
		}
	}
}

func isJobPosting(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.EqualFold(t, "JobPosting")
	case []any:
		for _, item := range t {
			if isJobPosting(item) {
				return true
			}
		}
	}
	return false
}

func organizationName(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		return stringValue(t["name"])
	case []any:
		for _, item := range t {
			if name := organizationName(item); name != "" {
				return name
			}
		}
	}
	return ""
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

// microdata reads schema.org JobPosting items declared with itemscope.
func microdata(sel *goquery.Document) []jobPosting {
	var out []jobPosting
	sel.Find(`[itemscope][itemtype*="JobPosting"]`).Each(func(_ int, item *goquery.Selection) {
		org := item.Find(`[itemprop="hiringOrganization"]`).First()
		company := itemValue(org.Find(`[itemprop="name"]`).First())
		if company == "" && !org.Is("[itemscope]") {
			company = itemValue(org)
		}
		out = append(out, jobPosting{
			title:       itemValue(item.Find(`[itemprop="title"]`).First()),
			company:     company,
			description: itemValue(item.Find(`[itemprop="description"]`).First()),
		})
	})
	return out
}

func itemValue(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	if content, ok := s.Attr("content"); ok && strings.TrimSpace(content) != "" {
		return content
	}
	return strings.TrimSpace(s.Text())
}

// metaContent returns the content of the first meta tag whose property or
// name matches one of keys, in key order.
func metaContent(sel *goquery.Document, keys ...string) string {
	for _, key := range keys {
		for _, attr := range []string{"property", "name"} {
			content := sel.Find(`meta[` + attr + `="` + key + `"]`).First().AttrOr("content", "")
			if strings.TrimSpace(content) != "" {
				return content
			}
		}
	}
	return ""
}

// requirementBlocks joins each requirement-style heading with the content of
// up to five following siblings, stopping at the next heading.
func requirementBlocks(doc *dom.Document) []string {
	var out []string
	for _, h := range doc.Filter(headingSelector) {
		heading := dom.Text(h)
		if heading == "" || len(heading) > maxLabelLength || !requirementHeading.MatchString(heading) {
			continue
		}
		var parts []string
		for sib, i := dom.NextElement(h), 0; sib != nil && i < maxSectionSibling; sib, i = dom.NextElement(sib), i+1 {
			if headingSelector(sib) {
				break
			}
			if t := dom.Text(sib); t != "" {
				parts = append(parts, t)
			}
		}
		if len(parts) == 0 {
			continue
		}
		out = append(out, normalizeLabel(heading)+": "+strings.Join(parts, " "))
	}
	return out
}

// phraseBlocks finds text nodes containing recruiting phrases and returns the
// smallest enclosing block whose text length is plausible for a description.
// Each block is reported once.
func phraseBlocks(doc *dom.Document) []string {
	seen := make(map[*html.Node]bool)
	var out []string
	dom.Walk(doc.Root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && dom.IsTag(n, "script", "style", "noscript", "head") {
			return false
		}
		if n.Type != html.TextNode || !containsPhrase(n.Data) {
			return true
		}
		for p := dom.ParentElement(n); p != nil; p = dom.ParentElement(p) {
			if !blockTags[dom.Tag(p)] {
				continue
			}
			text := dom.Text(p)
			if len(text) < minPhraseBlock {
				continue
			}
			if len(text) <= maxPhraseBlock && !seen[p] {
				seen[p] = true
				out = append(out, text)
			}
			break
		}
		return true
	})
	return out
}

func containsPhrase(s string) bool {
	lower := strings.ToLower(s)
	for _, phrase := range descriptionPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// parseTitle splits a page or og title such as "Engineer at Acme" or
// "Engineer | Acme Careers" into a title and a company.
func parseTitle(s string) (title, company string) {
	s = dom.NormalizeSpace(s)
	parts := titleSeparators.Split(s, -1)
	var segments []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			segments = append(segments, p)
		}
	}
	switch len(segments) {
	case 0:
		return "", ""
	case 1:
		return segments[0], ""
	default:
		return segments[0], segments[len(segments)-1]
	}
}

func cleanTitle(s string) string {
	return truncate(dom.NormalizeSpace(s), maxTitleLength)
}

func cleanCompany(s string) string {
	s = dom.NormalizeSpace(s)
	for {
		cleaned := strings.TrimSpace(companyNoise.ReplaceAllString(s, ""))
		if cleaned == s {
			break
		}
		s = cleaned
	}
	if len(s) > maxLabelLength {
		return ""
	}
	return s
}

// cleanDescription strips markup and entities, collapses whitespace and
// truncates overlong text.
func (m *metadataExtractor) cleanDescription(s string) string {
	if strings.Contains(s, "&lt;") {
		s = html.UnescapeString(s)
	}
	s = blockBoundary.ReplaceAllString(s, " ")
	s = m.sanitizer.Sanitize(s)
	s = html.UnescapeString(s)
	return truncate(dom.NormalizeSpace(s), maxDescription)
}
