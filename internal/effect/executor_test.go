package effect

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/crowd-canvas/internal/canvas"
)

func testCatalog(t *testing.T, ticks int, interval time.Duration) *Catalog {
	t.Helper()
	defs := DefaultDefinitions()
	for i := range defs {
		if defs[i].Timed() {
			defs[i].Ticks = ticks
			defs[i].Interval = interval
		}
	}
	c, err := NewCatalog(defs)
	require.NoError(t, err)
	return c
}

func TestExecutor_InstantEffects(t *testing.T) {
	tests := []struct {
		code     string
		rotation float64
		mirror   bool
		preset   string
	}{
		{code: "nudge_canvas_cw", rotation: 5},
		{code: "nudge_canvas_ccw", rotation: 355},
		{code: "vertical_flip", rotation: 180},
		{code: "horizontal_flip", mirror: true},
		{code: "rainbow_paint", preset: "rainbow01"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			c := canvas.NewMemory("rainbow01")
			e := NewExecutor(DefaultCatalog(), c)

			h, err := e.Trigger(context.Background(), tt.code)
			require.NoError(t, err)
			assert.Nil(t, h)

			assert.InDelta(t, tt.rotation, c.Rotation(), 1e-9)
			assert.Equal(t, tt.mirror, c.Mirror())
			assert.Equal(t, tt.preset, c.BrushPreset())
		})
	}
}

func TestExecutor_UnknownCode(t *testing.T) {
	e := NewExecutor(DefaultCatalog(), canvas.NewMemory())
	_, err := e.Trigger(context.Background(), "explode_canvas")
	assert.ErrorIs(t, err, ErrUnknownEffect)
}

func TestExecutor_MissingPreset(t *testing.T) {
	e := NewExecutor(DefaultCatalog(), canvas.NewMemory())
	_, err := e.Trigger(context.Background(), "rainbow_paint")
	assert.ErrorIs(t, err, canvas.ErrPresetNotFound)
}

func TestExecutor_CancelledContext(t *testing.T) {
	e := NewExecutor(DefaultCatalog(), canvas.NewMemory())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Trigger(ctx, "nudge_canvas_cw")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecutor_TimedEffectRunsAllTicks(t *testing.T) {
	c := canvas.NewMemory()
	e := NewExecutor(testCatalog(t, 30, time.Millisecond), c)

	h, err := e.Trigger(context.Background(), "spin_canvas")
	require.NoError(t, err)
	require.NotNil(t, h)

	code, active := e.Active()
	assert.True(t, active)
	assert.Equal(t, "spin_canvas", code)

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("timed effect did not finish")
	}
	assert.Equal(t, Result{Ticks: 30}, h.Result())
	assert.InDelta(t, 30, c.Rotation(), 1e-9)

	require.Eventually(t, func() bool {
		_, active := e.Active()
		return !active
	}, time.Second, time.Millisecond)
}

func TestExecutor_SecondTimedEffectIsRejected(t *testing.T) {
	e := NewExecutor(testCatalog(t, 1000, 5*time.Millisecond), canvas.NewMemory())

	first, err := e.Trigger(context.Background(), "spin_canvas")
	require.NoError(t, err)

	second, err := e.Trigger(context.Background(), "spin_slow_chaotic")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Nil(t, second)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, e.Stop(ctx))
	assert.True(t, first.Result().Cancelled)
}

func TestExecutor_SlotReusableAfterCompletion(t *testing.T) {
	e := NewExecutor(testCatalog(t, 2, time.Millisecond), canvas.NewMemory())

	first, err := e.Trigger(context.Background(), "spin_canvas")
	require.NoError(t, err)
	<-first.Done()

	second, err := e.Trigger(context.Background(), "spin_slow_chaotic")
	require.NoError(t, err)
	<-second.Done()
	assert.False(t, second.Result().Cancelled)
}

func TestExecutor_StopWaitsForLoopExit(t *testing.T) {
	c := canvas.NewMemory()
	e := NewExecutor(testCatalog(t, 10000, time.Millisecond), c)

	h, err := e.Trigger(context.Background(), "spin_canvas")
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, e.Stop(context.Background()))

	select {
	case <-h.Done():
	default:
		t.Fatal("Stop returned before the runner exited")
	}
	rotation := c.Rotation()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, rotation, c.Rotation(), "canvas mutated after Stop")
}

func TestExecutor_StopWithoutActiveEffect(t *testing.T) {
	e := NewExecutor(DefaultCatalog(), canvas.NewMemory())
	assert.NoError(t, e.Stop(context.Background()))
}

func TestExecutor_InstantEffectsDuringTimedEffect(t *testing.T) {
	c := canvas.NewMemory()
	e := NewExecutor(testCatalog(t, 200, 100*time.Microsecond), c)

	h, err := e.Trigger(context.Background(), "spin_canvas")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Trigger(context.Background(), "nudge_canvas_cw")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	<-h.Done()

	// 200 ticks of 1 degree plus 20 nudges of 5 degrees.
	assert.InDelta(t, 300, c.Rotation(), 1e-6)
}
