// Package canvas defines the host drawing surface effects act upon.
package canvas

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

// ErrPresetNotFound is returned when a brush preset name is not installed.
var ErrPresetNotFound = errors.New("brush preset not found")

// Canvas is the subset of the host application's view that effects mutate.
// Implementations need not be safe for concurrent use; the effect executor
// serializes every call.
type Canvas interface {
	Rotation() float64
	SetRotation(degrees float64)
	Mirror() bool
	SetMirror(mirrored bool)
	SelectBrushPreset(name string) error
}

// Change describes a single mutation, reported to an optional observer.
type Change struct {
	Rotation float64
	Mirror   bool
	Preset   string
}

// Memory is an in-process canvas used when no host application is attached.
type Memory struct {
	mu       sync.Mutex
	rotation float64
	mirror   bool
	preset   string
	presets  map[string]struct{}
	onChange func(Change)
}

// NewMemory creates a canvas with the given installed brush presets.
func NewMemory(presets ...string) *Memory {
	m := &Memory{presets: make(map[string]struct{}, len(presets))}
	for _, p := range presets {
		m.presets[p] = struct{}{}
	}
	return m
}

// OnChange registers fn to be called after every mutation.
func (m *Memory) OnChange(fn func(Change)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// Rotation returns the view rotation in degrees, normalised to [0, 360).
func (m *Memory) Rotation() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rotation
}

func (m *Memory) SetRotation(degrees float64) {
	m.mu.Lock()
	m.rotation = normalize(degrees)
	c := m.snapshot()
	fn := m.onChange
	m.mu.Unlock()
	notify(fn, c)
}

func (m *Memory) Mirror() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mirror
}

func (m *Memory) SetMirror(mirrored bool) {
	m.mu.Lock()
	m.mirror = mirrored
	c := m.snapshot()
	fn := m.onChange
	m.mu.Unlock()
	notify(fn, c)
}

func (m *Memory) SelectBrushPreset(name string) error {
	m.mu.Lock()
	if _, ok := m.presets[name]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrPresetNotFound, name)
	}
	m.preset = name
	c := m.snapshot()
	fn := m.onChange
	m.mu.Unlock()
	notify(fn, c)
	return nil
}

// BrushPreset returns the currently selected preset, empty if none.
func (m *Memory) BrushPreset() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.preset
}

// Presets lists installed presets in name order.
func (m *Memory) Presets() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.presets))
	for p := range m.presets {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (m *Memory) snapshot() Change {
	return Change{Rotation: m.rotation, Mirror: m.mirror, Preset: m.preset}
}

func notify(fn func(Change), c Change) {
	if fn != nil {
		fn(c)
	}
}

func normalize(degrees float64) float64 {
	d := math.Mod(degrees, 360)
	if d < 0 {
		d += 360
	}
	return d
}
