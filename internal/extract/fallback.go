package extract

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/vendor-research/internal/model"
	"github.com/sells-group/vendor-research/internal/normalize"
)

const (
	minSectionLen = 20
	maxNotesLen   = 500
)

var (
	sectionStartRe = regexp.MustCompile(`^(?:\d+\.|\*\*|##)`)
	boldLabelRe    = regexp.MustCompile(`^\*\*([^*\n]+?)\*\*`)
	listMarkerRe   = regexp.MustCompile(`^(?:#+\s*|\d+[.)]\s*|[-•]\s+)+`)
	citationRe     = regexp.MustCompile(`\s*\[\d+\]`)

	labeledPhoneRe = regexp.MustCompile(`(?i)\b(?:phone|tel|call)\b[ \t*:.]*(\+?[\d \t\-().]{10,})`)
	barePhoneRe    = regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	emailRe        = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	addressRe      = regexp.MustCompile(`(?i)\b(?:address|location)\b[ \t*]*:[ \t*]*([^\n]+)`)
	labeledRateRe  = regexp.MustCompile(`(?i)\b(?:rating|stars?)\b[ \t*:]*(\d+(?:\.\d+)?)`)
	suffixRateRe   = regexp.MustCompile(`(?i)(\d(?:\.\d+)?)\s*(?:/\s*5|stars?\b|out of 5)`)
	reviewsRe      = regexp.MustCompile(`(?i)(?:^|[^\d.,])(\d[\d,]*)\s*(?:reviews?|ratings?)\b`)
	websiteRe      = regexp.MustCompile(`https?://[^\s)\]>"'<*]+`)
	costRangeRe    = regexp.MustCompile(`\$\s?(\d[\d,]*(?:\.\d+)?)\s*(?:([kKmM])\b)?\s*(?:-|\x{2013}|\x{2014}|to)\s*\$?\s?(\d[\d,]*(?:\.\d+)?)\s*(?:([kKmM])\b)?`)
)

// fieldLabels are words that introduce a field inside a vendor entry. They
// are never business names and a bold label line never starts a new section.
var fieldLabels = map[string]bool{
	"phone": true, "tel": true, "telephone": true, "email": true, "e-mail": true,
	"website": true, "web": true, "address": true, "location": true,
	"rating": true, "ratings": true, "reviews": true, "contact": true,
	"notes": true, "specialties": true, "specialization": true, "services": true,
	"cost": true, "costs": true, "price": true, "pricing": true, "hours": true,
	"license": true, "licensing": true, "experience": true,
}

// FallbackStrategy is the pattern-based extractor used when no language
// model is available or the model response cannot be used. It never fails.
type FallbackStrategy struct{}

// NewFallbackStrategy returns the pattern-based strategy.
func NewFallbackStrategy() *FallbackStrategy { return &FallbackStrategy{} }

// Name implements Strategy.
func (f *FallbackStrategy) Name() string { return "fallback" }

// Extract implements Strategy.
func (f *FallbackStrategy) Extract(_ context.Context, text string) ([]model.VendorCandidate, error) {
	return Validate(Parse(text)), nil
}

// Parse runs SplitSections and ParseSection over text. The result is not
// validated.
func Parse(text string) []model.VendorCandidate {
	out := []model.VendorCandidate{}
	for _, section := range SplitSections(text) {
		if c, ok := ParseSection(section); ok {
			out = append(out, c)
		}
	}
	return out
}

// SplitSections splits research text into per-vendor sections. A section
// starts at a line beginning with a numbered list marker, a bold marker or a
// markdown heading. Bold field labels ("**Phone:**") stay inside the current
// section. Sections shorter than 20 characters after trimming are dropped, as
// is unmarked intro text ahead of the first marked section.
func SplitSections(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var (
		sections []string
		cur      []string
	)
	flush := func() {
		s := strings.Join(cur, "\n")
		if utf8.RuneCountInString(strings.TrimSpace(s)) >= minSectionLen {
			sections = append(sections, s)
		}
		cur = nil
	}

	for i, line := range lines {
		if i > 0 && startsSection(line) {
			flush()
		}
		cur = append(cur, line)
	}
	flush()

	if len(sections) > 1 && !startsSection(firstLine(sections[0])) {
		sections = sections[1:]
	}
	return sections
}

func firstLine(section string) string {
	for _, l := range strings.Split(section, "\n") {
		if strings.TrimSpace(l) != "" {
			return l
		}
	}
	return ""
}

func startsSection(line string) bool {
	if !sectionStartRe.MatchString(line) {
		return false
	}
	if m := boldLabelRe.FindStringSubmatch(line); m != nil {
		return !isFieldLabel(m[1])
	}
	return true
}

func isFieldLabel(s string) bool {
	s = strings.ToLower(strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s), ":")))
	return fieldLabels[s]
}

// ParseSection extracts a single candidate from a section. It reports false
// when the section has no business name.
func ParseSection(section string) (model.VendorCandidate, bool) {
	name := sectionName(section)
	if name == "" {
		return model.VendorCandidate{}, false
	}

	c := model.VendorCandidate{
		BusinessName: name,
		Phone:        sectionPhone(section),
		Email:        emailRe.FindString(section),
		Website:      sectionWebsite(section),
		Address:      sectionAddress(section),
		Rating:       sectionRating(section),
		ReviewCount:  sectionReviews(section),
		Notes:        truncateRunes(strings.TrimSpace(section), maxNotesLen),
		Source:       model.SourceAI,
	}
	c.CostEstimateLow, c.CostEstimateAvg, c.CostEstimateHigh = sectionCost(section)
	return c, true
}

// sectionName returns the first label-like token of the section: the bold
// text or the text before a ":" or " - " separator on the first non-blank
// line, stripped of list markers and citation references. A lone line with
// no separator is a sentence, not a name.
func sectionName(section string) string {
	var (
		line string
		more bool
	)
	for _, l := range strings.Split(section, "\n") {
		if strings.TrimSpace(l) == "" {
			continue
		}
		if line != "" {
			more = true
			break
		}
		line = strings.TrimSpace(l)
	}
	line = listMarkerRe.ReplaceAllString(line, "")

	var name string
	if strings.HasPrefix(line, "**") {
		rest := line[2:]
		if end := strings.Index(rest, "**"); end >= 0 {
			name = rest[:end]
		}
	}
	if name == "" {
		name = line
		cut := false
		if i := strings.Index(name, ":"); i >= 0 {
			name, cut = name[:i], true
		}
		for _, sep := range []string{" - ", " \u2013 ", " \u2014 ", " | "} {
			if i := strings.Index(name, sep); i >= 0 {
				name, cut = name[:i], true
			}
		}
		if !cut && !more {
			return ""
		}
	}

	name = citationRe.ReplaceAllString(name, "")
	name = strings.Trim(name, " \t*#:-")
	if isFieldLabel(name) {
		return ""
	}
	return name
}

func sectionPhone(section string) string {
	if m := labeledPhoneRe.FindStringSubmatch(section); m != nil {
		if digits := normalize.Phone(m[1]); len(digits) >= normalize.MinPhoneDigits {
			return digits
		}
	}
	if m := barePhoneRe.FindString(section); m != "" {
		return normalize.Phone(m)
	}
	return ""
}

func sectionWebsite(section string) string {
	return strings.TrimRight(websiteRe.FindString(section), ".,;:")
}

func sectionAddress(section string) string {
	m := addressRe.FindStringSubmatch(section)
	if m == nil {
		return ""
	}
	addr := citationRe.ReplaceAllString(m[1], "")
	return strings.Trim(addr, " \t*")
}

func sectionRating(section string) *float64 {
	for _, re := range []*regexp.Regexp{labeledRateRe, suffixRateRe} {
		m := re.FindStringSubmatch(section)
		if m == nil {
			continue
		}
		r, err := strconv.ParseFloat(m[1], 64)
		if err == nil && r >= 1 && r <= 5 {
			return &r
		}
	}
	return nil
}

func sectionReviews(section string) *int {
	m := reviewsRe.FindStringSubmatch(section)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return nil
	}
	return &n
}

// sectionCost parses a "$X - $Y" range, honoring k/m suffixes. The average
// is the midpoint of the range.
func sectionCost(section string) (low, avg, high *float64) {
	m := costRangeRe.FindStringSubmatch(section)
	if m == nil {
		return nil, nil, nil
	}
	lo, ok1 := parseAmount(m[1], m[2])
	hi, ok2 := parseAmount(m[3], m[4])
	if !ok1 || !ok2 {
		return nil, nil, nil
	}
	// "$5-10k" means both ends are in thousands.
	if m[2] == "" && m[4] != "" && lo < hi/1000 {
		lo, _ = parseAmount(m[1], m[4])
	}
	mid := (lo + hi) / 2
	return &lo, &mid, &hi
}

func parseAmount(num, suffix string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(suffix) {
	case "k":
		v *= 1_000
	case "m":
		v *= 1_000_000
	}
	return v, true
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
