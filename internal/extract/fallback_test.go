package extract

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const austinResearch = `Here are qualified architects in the Austin area:

1. **Austin Design Group**
- Phone: (512) 555-0101
- Email: info@austindesigngroup.com
- Website: https://austindesigngroup.com
- Address: 100 Congress Ave, Austin, TX 78701
- Rating: 4.8 stars (127 reviews)
- Cost: $5,000 - $15,000 per project

2. **Hill Country Architecture, LLC**
- Phone: 512-555-0202
- Rating: 4.6/5 based on 89 reviews

3. **Apex Contractor Services**
- Phone: 512-555-0303
`

func TestParse_AustinResearch(t *testing.T) {
	cands := Parse(austinResearch)
	require.Len(t, cands, 3)

	first := cands[0]
	assert.Equal(t, "Austin Design Group", first.BusinessName)
	assert.Equal(t, "5125550101", first.Phone)
	assert.Equal(t, "info@austindesigngroup.com", first.Email)
	assert.Equal(t, "https://austindesigngroup.com", first.Website)
	assert.Equal(t, "100 Congress Ave, Austin, TX 78701", first.Address)
	require.NotNil(t, first.Rating)
	assert.InDelta(t, 4.8, *first.Rating, 0.001)
	require.NotNil(t, first.ReviewCount)
	assert.Equal(t, 127, *first.ReviewCount)
	require.NotNil(t, first.CostEstimateLow)
	assert.InDelta(t, 5000, *first.CostEstimateLow, 0.001)
	assert.InDelta(t, 10000, *first.CostEstimateAvg, 0.001)
	assert.InDelta(t, 15000, *first.CostEstimateHigh, 0.001)
	assert.True(t, strings.HasPrefix(first.Notes, "1. **Austin Design Group**"))

	second := cands[1]
	assert.Equal(t, "Hill Country Architecture, LLC", second.BusinessName)
	assert.Equal(t, "5125550202", second.Phone)
	require.NotNil(t, second.Rating)
	assert.InDelta(t, 4.6, *second.Rating, 0.001)
	require.NotNil(t, second.ReviewCount)
	assert.Equal(t, 89, *second.ReviewCount)
	assert.Nil(t, second.CostEstimateLow)

	assert.Equal(t, "Apex Contractor Services", cands[2].BusinessName)
}

func TestFallbackStrategy_ValidatesCandidates(t *testing.T) {
	f := NewFallbackStrategy()
	cands, err := f.Extract(context.Background(), austinResearch)
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.Equal(t, "Austin Design Group", cands[0].BusinessName)
	assert.Equal(t, "Hill Country Architecture, LLC", cands[1].BusinessName)
	assert.Equal(t, "fallback", f.Name())
}

func TestFallbackStrategy_NoSections(t *testing.T) {
	for _, text := range []string{"", "short", "   \n\n  ", "No vendors could be located for this request."} {
		cands, err := NewFallbackStrategy().Extract(context.Background(), text)
		require.NoError(t, err)
		assert.NotNil(t, cands)
		assert.Empty(t, cands, text)
	}
}

func TestSplitSections(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"numbered entries", "1. First Vendor Design Studio\n2. Second Vendor Design Studio", 2},
		{"headings", "## Alpha Architects of Austin\ntext\n## Beta Architects of Austin\ntext", 2},
		{"bold field labels stay in section", "1. **Acme Architects**\n**Phone:** 512-555-1234\n**Email:** a@acme.com", 1},
		{"bold names split", "**Acme Architects Studio**\nPhone 5125551234\n**Zenith Architects Studio**\nPhone 5125554321", 2},
		{"short sections dropped", "1. A\n2. Real Vendor Architects LLC\nPhone: 5125551234", 1},
		{"indented markers do not split", "1. Acme Architects Studio\n   2. nested list item text", 1},
		{"empty", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, SplitSections(tt.text), tt.want)
		})
	}
}

func TestSplitSections_Intro(t *testing.T) {
	sections := SplitSections("Here are qualified architects in the Austin area:\n\n1. **Acme Architects**\nPhone: 5125551234")
	require.Len(t, sections, 1)
	assert.True(t, strings.HasPrefix(sections[0], "1. **Acme Architects**"))

	sections = SplitSections("Acme Architects Studio\nPhone: 5125551234")
	require.Len(t, sections, 1)
}

func TestParse_NameOnlySection(t *testing.T) {
	cands := Parse("1. **Hill Country Architects**\nRated 4.8 stars with 120 reviews, modern homes, $5,000 - $15,000\n")
	require.Len(t, cands, 1)

	c := cands[0]
	assert.Equal(t, "Hill Country Architects", c.BusinessName)
	assert.Empty(t, c.Phone)
	assert.Empty(t, c.Email)
	require.NotNil(t, c.Rating)
	assert.InDelta(t, 4.8, *c.Rating, 0.001)
	require.NotNil(t, c.ReviewCount)
	assert.Equal(t, 120, *c.ReviewCount)
	require.NotNil(t, c.CostEstimateAvg)
	assert.InDelta(t, 10000, *c.CostEstimateAvg, 0.001)
}

func TestSplitSections_CRLF(t *testing.T) {
	sections := SplitSections("1. Alpha Architects Austin\r\nPhone: 5125550000\r\n2. Beta Architects Austin\r\nPhone: 5125551111")
	require.Len(t, sections, 2)
	assert.NotContains(t, sections[0], "\r")
}

func TestParseSection(t *testing.T) {
	t.Run("field label is not a name", func(t *testing.T) {
		_, ok := ParseSection("**Phone:** 512-555-1234 and some more text")
		assert.False(t, ok)
	})

	t.Run("name without contact detail", func(t *testing.T) {
		c, ok := ParseSection("1. **Nice Firm Name**\nGreat work on custom homes.")
		require.True(t, ok)
		assert.Equal(t, "Nice Firm Name", c.BusinessName)
		assert.Empty(t, c.Phone)
	})

	t.Run("single sentence has no name", func(t *testing.T) {
		_, ok := ParseSection("No qualified vendors could be verified for this area.")
		assert.False(t, ok)
	})

	t.Run("unlabeled phone", func(t *testing.T) {
		c, ok := ParseSection("1. Lone Star Studio - modern homes\nReach them at (512) 555-7788 today")
		require.True(t, ok)
		assert.Equal(t, "Lone Star Studio", c.BusinessName)
		assert.Equal(t, "5125557788", c.Phone)
	})

	t.Run("name before colon", func(t *testing.T) {
		c, ok := ParseSection("3. Smith Design Studio: residential specialists, phone 512 555 1234")
		require.True(t, ok)
		assert.Equal(t, "Smith Design Studio", c.BusinessName)
		assert.Equal(t, "5125551234", c.Phone)
	})

	t.Run("citations and trailing punctuation", func(t *testing.T) {
		c, ok := ParseSection("1. **Pease Architects** [1]\nSee (https://pease.example.com).")
		require.True(t, ok)
		assert.Equal(t, "Pease Architects", c.BusinessName)
		assert.Equal(t, "https://pease.example.com", c.Website)
	})

	t.Run("bold address label", func(t *testing.T) {
		c, ok := ParseSection("## Cedar Park Architects\n**Address:** 45 Stone Drive, Cedar Park, TX [2]")
		require.True(t, ok)
		assert.Equal(t, "45 Stone Drive, Cedar Park, TX", c.Address)
	})

	t.Run("rating outside scale ignored", func(t *testing.T) {
		c, ok := ParseSection("1. Big Number Architects\nPhone: 5125550000\nRating: 9.5")
		require.True(t, ok)
		assert.Nil(t, c.Rating)
	})

	t.Run("rating with stars suffix", func(t *testing.T) {
		c, ok := ParseSection("1. Star Architects Group\nPhone: 5125550000\nCustomers give them 4.9 stars")
		require.True(t, ok)
		require.NotNil(t, c.Rating)
		assert.InDelta(t, 4.9, *c.Rating, 0.001)
	})

	t.Run("decimal rating is not a review count", func(t *testing.T) {
		c, ok := ParseSection("1. Decimal Architects\nPhone: 5125550000\n4.8 rating, 1,204 reviews")
		require.True(t, ok)
		require.NotNil(t, c.ReviewCount)
		assert.Equal(t, 1204, *c.ReviewCount)
	})

	t.Run("notes truncated", func(t *testing.T) {
		c, ok := ParseSection("1. Long Notes Architects\nPhone: 5125550000\n" + strings.Repeat("é", 700))
		require.True(t, ok)
		assert.Len(t, []rune(c.Notes), maxNotesLen)
	})
}

func TestSectionCost(t *testing.T) {
	tests := []struct {
		name           string
		text           string
		low, avg, high float64
	}{
		{"dollar range", "Cost: $5,000 - $15,000", 5000, 10000, 15000},
		{"k suffix both", "$2k to $4k", 2000, 3000, 4000},
		{"k suffix on high only", "$5-10k per project", 5000, 7500, 10000},
		{"en dash", "$1,000–$3,000", 1000, 2000, 3000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			low, avg, high := sectionCost(tt.text)
			require.NotNil(t, low)
			assert.InDelta(t, tt.low, *low, 0.001)
			assert.InDelta(t, tt.avg, *avg, 0.001)
			assert.InDelta(t, tt.high, *high, 0.001)
		})
	}

	low, avg, high := sectionCost("Pricing available on request")
	assert.Nil(t, low)
	assert.Nil(t, avg)
	assert.Nil(t, high)
}
