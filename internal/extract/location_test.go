package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/vendor-research/internal/model"
)

func TestSplitLocation(t *testing.T) {
	tests := []struct {
		in, city, state string
	}{
		{"Austin, TX", "Austin", "TX"},
		{"  Round Rock ,  TX 78664", "Round Rock", "TX"},
		{"Austin", "Austin", ""},
		{"", "", ""},
		{"Austin,", "Austin", ""},
		{"New York, New York", "New York", "New York"},
		{"Raleigh, North Carolina", "Raleigh", "North Carolina"},
		{"Raleigh, North Carolina 27601-1234", "Raleigh", "North Carolina"},
		{"Austin, TX, USA", "Austin", "TX"},
	}
	for _, tt := range tests {
		city, state := SplitLocation(tt.in)
		assert.Equal(t, tt.city, city, tt.in)
		assert.Equal(t, tt.state, state, tt.in)
	}
}

func TestApplyLocationDefaults(t *testing.T) {
	cands := []model.VendorCandidate{
		{BusinessName: "Austin Design Group"},
		{BusinessName: "Georgetown Studio", City: "Georgetown", ZipCode: "78626"},
	}
	ApplyLocationDefaults(cands, "Austin, TX", "78701")

	assert.Equal(t, "Austin", cands[0].City)
	assert.Equal(t, "TX", cands[0].State)
	assert.Equal(t, "78701", cands[0].ZipCode)

	assert.Equal(t, "Georgetown", cands[1].City)
	assert.Equal(t, "TX", cands[1].State)
	assert.Equal(t, "78626", cands[1].ZipCode)
}
