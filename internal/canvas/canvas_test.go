package canvas_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/crowd-canvas/internal/canvas"
)

func TestMemory_ImplementsInterface(t *testing.T) {
	var _ canvas.Canvas = (*canvas.Memory)(nil)
}

func TestMemory_RotationIsNormalised(t *testing.T) {
	tests := []struct {
		name string
		set  float64
		want float64
	}{
		{"within range", 90, 90},
		{"full turn", 360, 0},
		{"over a turn", 725, 5},
		{"negative", -5, 355},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := canvas.NewMemory()
			c.SetRotation(tt.set)
			assert.InDelta(t, tt.want, c.Rotation(), 1e-9)
		})
	}
}

func TestMemory_Mirror(t *testing.T) {
	c := canvas.NewMemory()
	assert.False(t, c.Mirror())
	c.SetMirror(true)
	assert.True(t, c.Mirror())
}

func TestMemory_SelectBrushPreset(t *testing.T) {
	c := canvas.NewMemory("rainbow01", "basic")

	require.NoError(t, c.SelectBrushPreset("rainbow01"))
	assert.Equal(t, "rainbow01", c.BrushPreset())

	err := c.SelectBrushPreset("missing")
	assert.ErrorIs(t, err, canvas.ErrPresetNotFound)
	assert.Equal(t, "rainbow01", c.BrushPreset())

	assert.Equal(t, []string{"basic", "rainbow01"}, c.Presets())
}

func TestMemory_OnChange(t *testing.T) {
	c := canvas.NewMemory()
	var got []canvas.Change
	c.OnChange(func(ch canvas.Change) { got = append(got, ch) })

	c.SetRotation(10)
	c.SetMirror(true)

	require.Len(t, got, 2)
	assert.Equal(t, canvas.Change{Rotation: 10}, got[0])
	assert.Equal(t, canvas.Change{Rotation: 10, Mirror: true}, got[1])
}
