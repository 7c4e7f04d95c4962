package extract

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/sells-group/vendor-research/internal/model"
)

// cleanJSON extracts a JSON object from text that may be wrapped in markdown
// code fences or surrounding prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// flexFloat accepts a JSON number, a numeric string ("4.5", "$1,200") or null.
type flexFloat struct {
	v *float64
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
		if s == "" {
			return nil
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			// Non-numeric strings ("N/A") are treated as absent.
			return nil
		}
		f.v = &n
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	f.v = &n
	return nil
}

// flexString accepts a JSON string, number or null.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(strings.TrimSpace(v))
		return nil
	}
	*s = flexString(string(b))
	return nil
}

// wireVendor mirrors the output schema given to the model; it tolerates the
// loose typing language models tend to produce.
type wireVendor struct {
	BusinessName     flexString `json:"business_name"`
	ContactName      flexString `json:"contact_name"`
	Phone            flexString `json:"phone"`
	Email            flexString `json:"email"`
	Website          flexString `json:"website"`
	Address          flexString `json:"address"`
	City             flexString `json:"city"`
	State            flexString `json:"state"`
	ZipCode          flexString `json:"zip_code"`
	Rating           flexFloat  `json:"rating"`
	ReviewCount      flexFloat  `json:"review_count"`
	CostEstimateLow  flexFloat  `json:"cost_estimate_low"`
	CostEstimateAvg  flexFloat  `json:"cost_estimate_avg"`
	CostEstimateHigh flexFloat  `json:"cost_estimate_high"`
	Notes            flexString `json:"notes"`
}

type wirePayload struct {
	Vendors []wireVendor `json:"vendors"`
}

func (w wireVendor) candidate() model.VendorCandidate {
	c := model.VendorCandidate{
		BusinessName:     string(w.BusinessName),
		ContactName:      string(w.ContactName),
		Phone:            string(w.Phone),
		Email:            string(w.Email),
		Website:          string(w.Website),
		Address:          string(w.Address),
		City:             string(w.City),
		State:            string(w.State),
		ZipCode:          string(w.ZipCode),
		Rating:           w.Rating.v,
		CostEstimateLow:  w.CostEstimateLow.v,
		CostEstimateAvg:  w.CostEstimateAvg.v,
		CostEstimateHigh: w.CostEstimateHigh.v,
		Notes:            string(w.Notes),
		Source:           model.SourceAI,
	}
	if w.ReviewCount.v != nil && *w.ReviewCount.v >= 0 {
		c.ReviewCount = model.Ptr(int(*w.ReviewCount.v))
	}
	return c
}
