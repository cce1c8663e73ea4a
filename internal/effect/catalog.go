package effect

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Action names the canvas operation an effect performs.
type Action string

const (
	ActionRotate Action = "rotate" // add Degrees to the view rotation
	ActionMirror Action = "mirror" // toggle horizontal mirroring
	ActionPreset Action = "preset" // select the brush preset named Preset
)

// Definition describes one effect offered to the controller.
// An effect with Ticks > 0 is timed: Action is applied once per tick, every Interval.
type Definition struct {
	Code        string        `yaml:"code"`
	Name        string        `yaml:"name"`
	Category    string        `yaml:"category"`
	Description string        `yaml:"description,omitempty"`
	Price       int           `yaml:"price"`
	Duration    time.Duration `yaml:"duration,omitempty"`

	Action   Action        `yaml:"action"`
	Degrees  float64       `yaml:"degrees,omitempty"`
	Preset   string        `yaml:"preset,omitempty"`
	Ticks    int           `yaml:"ticks,omitempty"`
	Interval time.Duration `yaml:"interval,omitempty"`
}

// Timed reports whether the effect runs over several ticks.
func (d Definition) Timed() bool {
	return d.Ticks > 0
}

func (d Definition) validate() error {
	if d.Code == "" {
		return errors.New("effect code must not be empty")
	}
	switch d.Action {
	case ActionRotate, ActionMirror:
	case ActionPreset:
		if d.Preset == "" {
			return fmt.Errorf("effect %q: preset action needs a preset name", d.Code)
		}
	default:
		return fmt.Errorf("effect %q: unknown action %q", d.Code, d.Action)
	}
	if d.Ticks < 0 {
		return fmt.Errorf("effect %q: ticks must not be negative", d.Code)
	}
	if d.Timed() && d.Interval <= 0 {
		return fmt.Errorf("effect %q: timed effects need a positive interval", d.Code)
	}
	return nil
}

// Catalog is an immutable, ordered set of effect definitions keyed by code.
type Catalog struct {
	defs  map[string]Definition
	order []string
}

// NewCatalog validates defs and rejects duplicate codes.
func NewCatalog(defs []Definition) (*Catalog, error) {
	c := &Catalog{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		if err := d.validate(); err != nil {
			return nil, err
		}
		if _, dup := c.defs[d.Code]; dup {
			return nil, fmt.Errorf("duplicate effect code %q", d.Code)
		}
		c.defs[d.Code] = d
		c.order = append(c.order, d.Code)
	}
	return c, nil
}

// Lookup returns the definition registered for code.
func (c *Catalog) Lookup(code string) (Definition, bool) {
	d, ok := c.defs[code]
	return d, ok
}

// All returns the definitions in registration order.
func (c *Catalog) All() []Definition {
	out := make([]Definition, 0, len(c.order))
	for _, code := range c.order {
		out = append(out, c.defs[code])
	}
	return out
}

// Len returns the number of effects.
func (c *Catalog) Len() int {
	return len(c.order)
}

const (
	spinTicks    = 5 * 360
	spinInterval = time.Second / 60
	nudgeDegrees = 5
	packPrice    = 100
	packDuration = 10 * time.Second
)

// DefaultDefinitions mirrors the effects published by the Krita game pack.
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			Code: "spin_canvas", Name: "Spin Canvas", Category: "Canvas",
			Description: "Give the canvas a speeen", Price: packPrice, Duration: packDuration,
			Action: ActionRotate, Degrees: 1, Ticks: spinTicks, Interval: spinInterval,
		},
		{
			Code: "spin_slow_chaotic", Name: "Spin Slow Chaotic", Category: "Canvas",
			Description: "Give the canvas a slow chaotic speeen", Price: packPrice, Duration: packDuration,
			Action: ActionRotate, Degrees: 0.1, Ticks: spinTicks, Interval: spinInterval,
		},
		{
			Code: "nudge_canvas_cw", Name: "Nudge Clockwise", Category: "Canvas",
			Description: "Nudge Clockwise", Price: packPrice,
			Action: ActionRotate, Degrees: nudgeDegrees,
		},
		{
			Code: "nudge_canvas_ccw", Name: "Nudge Counter Clockwise", Category: "Canvas",
			Description: "Nudge Counter Clockwise", Price: packPrice,
			Action: ActionRotate, Degrees: -nudgeDegrees,
		},
		{
			Code: "vertical_flip", Name: "Vertical Flip", Category: "Canvas",
			Description: "Vertical Flip", Price: packPrice,
			Action: ActionRotate, Degrees: 180,
		},
		{
			Code: "horizontal_flip", Name: "Horizontal Flip", Category: "Canvas",
			Description: "Horizontal Flip", Price: packPrice,
			Action: ActionMirror,
		},
		{
			Code: "rainbow_paint", Name: "Rainbow Paint", Category: "Brush",
			Description: "Rainbow paint!", Price: packPrice,
			Action: ActionPreset, Preset: "rainbow01",
		},
	}
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultDefinitions())
	if err != nil {
		panic(fmt.Sprintf("built-in effect catalog is invalid: %v", err))
	}
	return c
}

type catalogFile struct {
	Effects []Definition `yaml:"effects"`
}

// LoadCatalog reads a YAML catalog of the form `effects: [...]`.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML catalog strictly.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(f.Effects) == 0 {
		return nil, errors.New("parse catalog: no effects defined")
	}
	return NewCatalog(f.Effects)
}

// MarshalYAML renders the catalog in the format accepted by ParseCatalog.
func (c *Catalog) MarshalYAML() (any, error) {
	return catalogFile{Effects: c.All()}, nil
}
