package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const planning = "Pre-Construction Planning & Design"

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.Len(t, c.Phases, 1)

	p, ok := c.Phase(planning)
	require.True(t, ok)
	require.Len(t, p.Groups, 3)

	cats := p.Categories()
	require.Len(t, cats, 9)
	assert.Equal(t, "architects", cats[0].Key)
	assert.Equal(t, "site_analysis", cats[len(cats)-1].Key)
}

func TestPhase_CaseInsensitive(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	_, ok := c.Phase("pre-construction planning & design")
	assert.True(t, ok)
	_, ok = c.Phase("Framing")
	assert.False(t, ok)
}

func TestCategoryName(t *testing.T) {
	assert.Equal(t, "Land Surveyors", Category{Key: "land_surveyors"}.Name())
	assert.Equal(t, "Architects", Category{Key: "architects"}.Name())
}

func TestFind(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	byKey, ok := c.Find(planning, "interior_designers")
	require.True(t, ok)
	byName, ok := c.Find(planning, "Interior Designers")
	require.True(t, ok)
	assert.Equal(t, byKey.Key, byName.Key)

	_, ok = c.Find(planning, "plumbers")
	assert.False(t, ok)
	_, ok = c.Find("Framing", "architects")
	assert.False(t, ok)
}

func TestSpecialization(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	arch, ok := c.Find(planning, "architects")
	require.True(t, ok)

	assert.Equal(t, "Custom Home Architects", arch.Specialization("custom_home"))
	assert.Equal(t, "Modern Design Architects", arch.Specialization("MODERN_DESIGN"))
	assert.Equal(t, "timber frame", arch.Specialization("timber frame"))
	assert.Len(t, arch.Specializations, 7)
}

func TestVendorCategory(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	eng, ok := c.Find(planning, "engineers")
	require.True(t, ok)

	vc := eng.VendorCategory(planning)
	assert.Equal(t, "Engineers", vc.Name)
	assert.Equal(t, "engineers", vc.Category)
	assert.Equal(t, planning, vc.Phase)
	assert.Equal(t, "$100-$200 per hour", vc.TypicalCost)
	assert.Equal(t, "Structural, civil, and MEP engineering", vc.Description)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"malformed", "phases: [", "parse"},
		{"no phase name", "phases:\n  - groups: []\n", "phase without name"},
		{"no key", "phases:\n  - name: P\n    groups:\n      - key: g\n        categories:\n          - description: x\n", "without key"},
		{"duplicate", "phases:\n  - name: P\n    groups:\n      - key: g\n        categories:\n          - key: a\n          - key: a\n", "duplicate category"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("phases:\n  - name: Framing\n    groups:\n      - key: trades\n        categories:\n          - key: framers\n"), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	cat, ok := c.Find("Framing", "framers")
	require.True(t, ok)
	assert.Equal(t, "Framers", cat.Name())

	def, err := Load("")
	require.NoError(t, err)
	_, ok = def.Phase(planning)
	assert.True(t, ok)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
