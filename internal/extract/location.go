package extract

import (
	"strings"

	"github.com/sells-group/vendor-research/internal/model"
)

// SplitLocation splits a "City, State" location on its commas. The state is
// the text after the first comma, up to any second one; a trailing zip
// ("Austin, TX 78701") is dropped.
func SplitLocation(location string) (city, state string) {
	city, rest, found := strings.Cut(location, ",")
	city = strings.TrimSpace(city)
	if !found {
		return city, ""
	}
	rest, _, _ = strings.Cut(rest, ",")
	fields := strings.Fields(rest)
	if n := len(fields); n > 1 && isZip(fields[n-1]) {
		fields = fields[:n-1]
	}
	return city, strings.Join(fields, " ")
}

func isZip(s string) bool {
	digits := strings.ReplaceAll(s, "-", "")
	if digits == "" {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ApplyLocationDefaults fills empty city, state and zip fields from the
// request location and zip. Values the extractor found are kept.
func ApplyLocationDefaults(cands []model.VendorCandidate, location, zip string) {
	city, state := SplitLocation(location)
	for i := range cands {
		if cands[i].City == "" {
			cands[i].City = city
		}
		if cands[i].State == "" {
			cands[i].State = state
		}
		if cands[i].ZipCode == "" {
			cands[i].ZipCode = strings.TrimSpace(zip)
		}
	}
}
