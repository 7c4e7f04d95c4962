// Package dedupe decides which vendor records describe the same business.
package dedupe

import (
	"github.com/sells-group/vendor-research/internal/model"
	"github.com/sells-group/vendor-research/internal/normalize"
)

// Reason names the field that made two records match.
type Reason string

const (
	ReasonName    Reason = "Same business name"
	ReasonPhone   Reason = "Same phone number"
	ReasonEmail   Reason = "Same email"
	ReasonAddress Reason = "Same address"
	ReasonBuilder Reason = "Builder/contractor in architect category"
)

// Dropped is a candidate rejected by Deduplicate or Unique.
type Dropped struct {
	Candidate model.VendorCandidate `json:"candidate"`
	Reason    Reason                `json:"reason"`
	// MatchedID is the id of the stored vendor that was matched. It is empty
	// when the match was against an earlier candidate in the same batch.
	MatchedID string `json:"matched_id,omitempty"`
}

// Duplicate is a stored vendor flagged by FindDuplicates.
type Duplicate struct {
	Vendor    model.Vendor `json:"vendor"`
	Reason    Reason       `json:"reason"`
	MatchedID string       `json:"matched_id"`
}

type keys struct {
	name    string
	phone   string
	email   string
	address string
}

func keysOf(c *model.VendorCandidate) keys {
	return keys{
		name:    normalize.BusinessName(c.BusinessName),
		phone:   normalize.Phone(c.Phone),
		email:   normalize.Email(c.Email),
		address: normalize.Address(c.Address),
	}
}

// match applies the rules in order; the first hit wins. Empty or short keys
// never take part.
func (k keys) match(o keys) (Reason, bool) {
	switch {
	case k.name != "" && k.name == o.name:
		return ReasonName, true
	case normalize.PhoneComparable(k.phone) && k.phone == o.phone:
		return ReasonPhone, true
	case k.email != "" && k.email == o.email:
		return ReasonEmail, true
	case normalize.AddressComparable(k.address) && k.address == o.address:
		return ReasonAddress, true
	}
	return "", false
}

// Match reports whether a and b describe the same business, and why.
func Match(a, b model.VendorCandidate) (Reason, bool) {
	return keysOf(&a).match(keysOf(&b))
}

// Deduplicate drops every candidate that matches any existing vendor. Kept
// candidates retain their input order. Candidates are not compared with each
// other; use Unique for that.
func Deduplicate(candidates []model.VendorCandidate, existing []model.Vendor) ([]model.VendorCandidate, []Dropped) {
	if len(existing) == 0 {
		return candidates, nil
	}

	existingKeys := make([]keys, len(existing))
	for i := range existing {
		existingKeys[i] = keysOf(&existing[i].VendorCandidate)
	}

	kept := make([]model.VendorCandidate, 0, len(candidates))
	var dropped []Dropped
	for i := range candidates {
		k := keysOf(&candidates[i])
		matched := false
		for j, ek := range existingKeys {
			if reason, ok := k.match(ek); ok {
				dropped = append(dropped, Dropped{Candidate: candidates[i], Reason: reason, MatchedID: existing[j].ID})
				matched = true
				break
			}
		}
		if !matched {
			kept = append(kept, candidates[i])
		}
	}
	return kept, dropped
}

// Unique removes within-batch duplicates: candidate i is compared with
// candidates 0..i-1 only, so the earliest of a group survives.
func Unique(candidates []model.VendorCandidate) ([]model.VendorCandidate, []Dropped) {
	seen := make([]keys, 0, len(candidates))
	kept := make([]model.VendorCandidate, 0, len(candidates))
	var dropped []Dropped
	for i := range candidates {
		k := keysOf(&candidates[i])
		if reason, _, ok := firstMatch(k, seen); ok {
			dropped = append(dropped, Dropped{Candidate: candidates[i], Reason: reason})
		} else {
			kept = append(kept, candidates[i])
		}
		seen = append(seen, k)
	}
	return kept, dropped
}

// FindDuplicates flags stored vendors that match an earlier vendor in the
// slice. Callers pass vendors ordered oldest first so the oldest record of
// each group is the one that survives.
func FindDuplicates(vendors []model.Vendor) []Duplicate {
	seen := make([]keys, 0, len(vendors))
	var dups []Duplicate
	for i := range vendors {
		k := keysOf(&vendors[i].VendorCandidate)
		if reason, j, ok := firstMatch(k, seen); ok {
			dups = append(dups, Duplicate{Vendor: vendors[i], Reason: reason, MatchedID: vendors[j].ID})
		}
		seen = append(seen, k)
	}
	return dups
}

func firstMatch(k keys, prior []keys) (Reason, int, bool) {
	for j, pk := range prior {
		if reason, ok := k.match(pk); ok {
			return reason, j, true
		}
	}
	return "", -1, false
}
