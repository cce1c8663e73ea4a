package effect

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	require.Equal(t, 7, c.Len())

	spin, ok := c.Lookup("spin_canvas")
	require.True(t, ok)
	assert.True(t, spin.Timed())
	assert.Equal(t, 1800, spin.Ticks)
	assert.Equal(t, time.Second/60, spin.Interval)

	nudge, ok := c.Lookup("nudge_canvas_cw")
	require.True(t, ok)
	assert.False(t, nudge.Timed())

	_, ok = c.Lookup("missing")
	assert.False(t, ok)

	codes := make([]string, 0, c.Len())
	for _, d := range c.All() {
		codes = append(codes, d.Code)
	}
	assert.Equal(t, []string{
		"spin_canvas", "spin_slow_chaotic", "nudge_canvas_cw", "nudge_canvas_ccw",
		"vertical_flip", "horizontal_flip", "rainbow_paint",
	}, codes)
}

func TestNewCatalog_Rejects(t *testing.T) {
	tests := []struct {
		name string
		defs []Definition
	}{
		{"empty code", []Definition{{Action: ActionMirror}}},
		{"unknown action", []Definition{{Code: "x", Action: "explode"}}},
		{"preset without name", []Definition{{Code: "x", Action: ActionPreset}}},
		{"timed without interval", []Definition{{Code: "x", Action: ActionRotate, Ticks: 3}}},
		{"negative ticks", []Definition{{Code: "x", Action: ActionRotate, Ticks: -1}}},
		{"duplicate", []Definition{{Code: "x", Action: ActionMirror}, {Code: "x", Action: ActionMirror}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.defs)
			assert.Error(t, err)
		})
	}
}

func TestParseCatalog(t *testing.T) {
	data := []byte(`
effects:
  - code: spin_canvas
    name: Spin Canvas
    category: Canvas
    price: 50
    action: rotate
    degrees: 2
    ticks: 90
    interval: 20ms
  - code: mirror
    name: Mirror
    category: Canvas
    action: mirror
`)

	c, err := ParseCatalog(data)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	spin, _ := c.Lookup("spin_canvas")
	assert.Equal(t, 90, spin.Ticks)
	assert.Equal(t, 20*time.Millisecond, spin.Interval)
	assert.Equal(t, 2.0, spin.Degrees)
}

func TestParseCatalog_Errors(t *testing.T) {
	_, err := ParseCatalog([]byte("effects: []\n"))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte("effects:\n  - code: x\n    action: mirror\n    colour: red\n"))
	assert.Error(t, err)

	_, err = ParseCatalog(nil)
	assert.Error(t, err)
}

func TestCatalog_YAMLRoundTrip(t *testing.T) {
	out, err := yaml.Marshal(DefaultCatalog())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, out, 0o600))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultCatalog().All(), c.All())
}
