package research

import (
	"fmt"
	"strings"
)

// Query describes what to research: a vendor category near a location.
type Query struct {
	Category       string `json:"category"`
	Specialization string `json:"specialization,omitempty"`
	Location       string `json:"location"`
	ZipCode        string `json:"zip_code,omitempty"`
	Context        string `json:"context,omitempty"`
}

const queryTemplate = `Find qualified %s in %s area for construction projects.

RESEARCH REQUIREMENTS:
- Focus on licensed, insured, and bonded contractors
- Include established businesses with professional credentials
- Prioritize companies with positive customer reviews and ratings
- Look for businesses with relevant project portfolios
- Include contact information (phone, email, website)
- Find cost estimates and pricing information where available
- Include business addresses and service areas

QUALITY CRITERIA:
- Valid business licenses and certifications
- Insurance coverage and bonding information
- Professional certifications and associations
- Years in business and experience level
- Customer reviews and BBB ratings
- Notable projects and specializations

%s
OUTPUT FORMAT:
For each vendor found, provide:
1. Business name and contact person
2. Complete contact information (phone, email, website)
3. Business address and service areas
4. Licenses, certifications, and insurance status
5. Customer ratings and review counts
6. Cost estimates and pricing ranges
7. Notable projects, specializations, and experience
8. Years in business and professional associations

Focus on finding real, verifiable businesses with established reputations in the %s area.`

// BuildQuery composes the long-form research prompt sent to the research
// provider and recorded on the staging row.
func BuildQuery(q Query) string {
	subject := q.Category
	if q.Specialization != "" {
		subject += " specializing in " + q.Specialization
	}
	place := joinNonEmpty(q.Location, q.ZipCode)

	var extra string
	if q.Context != "" {
		extra = fmt.Sprintf("Additional requirements: %s.\n", strings.TrimSuffix(strings.TrimSpace(q.Context), "."))
	}

	return fmt.Sprintf(queryTemplate, subject, place, extra, q.Location)
}

// SearchTerms is the short keyword form of q used by search and crawl
// providers: "<specialization> <category> near <location> <zip> <context>".
func SearchTerms(q Query) string {
	base := joinNonEmpty(q.Specialization, q.Category)
	near := joinNonEmpty(q.Location, q.ZipCode)
	terms := base
	if near != "" {
		terms += " near " + near
	}
	return joinNonEmpty(terms, q.Context)
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
