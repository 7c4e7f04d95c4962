package dedupe

import "strings"

var (
	architectIndicators = []string{
		"architect", "architectural", "design", "aia", "licensed architect",
		"registered architect", "architectural firm", "architecture",
		"architectural design", "architectural services",
	}
	builderIndicators = []string{
		"builder", "building", "construction", "contractor", "homes", "custom homes",
		"home builder", "residential builder", "general contractor", "gc ",
		"construction company", "construction services", "building company",
		"home construction",
	}
)

// IsBuilderNotArchitect reports whether a vendor listed under an architect
// category looks like a builder. Any architect keyword in the name or notes
// wins over builder keywords. It is a keyword heuristic and will misjudge
// firms such as design-build companies.
func IsBuilderNotArchitect(name, notes string) bool {
	text := strings.ToLower(name) + " " + strings.ToLower(notes)
	for _, kw := range architectIndicators {
		if strings.Contains(text, kw) {
			return false
		}
	}
	for _, kw := range builderIndicators {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// isArchitectCategory reports whether the builder heuristic applies to a
// category.
func isArchitectCategory(name string) bool {
	return strings.Contains(strings.ToLower(name), "architect")
}
