// Package curve provides the piecewise response curves used for aerodynamic
// coefficient lookups. A Curve is an ordered list of control points plus an
// interpolation rule; it is validated once at construction and is read-only
// afterwards, so a single Curve may be evaluated from any goroutine.
package curve

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
)

// Mode selects how a curve interpolates between control points.
type Mode string

const (
	// Linear interpolates on straight segments between keys.
	Linear Mode = "linear"
	// Smooth interpolates with cubic Hermite segments whose tangents are
	// derived from neighbouring keys (Catmull-Rom style).
	Smooth Mode = "smooth"
)

var (
	ErrNoKeys    = errors.New("curve has no keys")
	ErrUnsorted  = errors.New("curve keys must have strictly increasing inputs")
	ErrNonFinite = errors.New("curve key is not finite")
	ErrBadMode   = errors.New("unknown curve mode")
)

// Key is a single (input, output) control point.
type Key struct {
	In  float64
	Out float64
}

// Curve maps a scalar input to a scalar output.
type Curve struct {
	mode     Mode
	keys     []Key
	tangents []float64
}

// New validates the keys and builds a curve. The keys slice is copied.
func New(mode Mode, keys ...Key) (*Curve, error) {
	if mode == "" {
		mode = Linear
	}
	if mode != Linear && mode != Smooth {
		return nil, fmt.Errorf("%w: %q", ErrBadMode, mode)
	}
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}

	for i, k := range keys {
		if !finite(k.In) || !finite(k.Out) {
			return nil, fmt.Errorf("%w: key %d (%v, %v)", ErrNonFinite, i, k.In, k.Out)
		}
		if i > 0 && k.In <= keys[i-1].In {
			return nil, fmt.Errorf("%w: key %d input %v follows %v", ErrUnsorted, i, k.In, keys[i-1].In)
		}
	}

	c := &Curve{
		mode: mode,
		keys: append([]Key(nil), keys...),
	}
	if mode == Smooth {
		c.tangents = autoTangents(c.keys)
	}
	return c, nil
}

// MustNew is like New but panics on invalid input. Intended for
// package-level defaults and tests.
func MustNew(mode Mode, keys ...Key) *Curve {
	c, err := New(mode, keys...)
	if err != nil {
		panic(err)
	}
	return c
}

// Constant returns a single-key curve that evaluates to v everywhere.
func Constant(v float64) *Curve {
	return MustNew(Linear, Key{In: 0, Out: v})
}

// Mode returns the interpolation mode.
func (c *Curve) Mode() Mode {
	return c.mode
}

// Keys returns a copy of the control points.
func (c *Curve) Keys() []Key {
	return append([]Key(nil), c.keys...)
}

// Validate reports ErrNoKeys for a nil or zero-value curve. Curves built by
// New or decoded from JSON always pass.
func (c *Curve) Validate() error {
	if c == nil || len(c.keys) == 0 {
		return ErrNoKeys
	}
	return nil
}

// Domain returns the input range covered by the keys, or NaN for a curve
// without keys.
func (c *Curve) Domain() (min, max float64) {
	if len(c.keys) == 0 {
		return math.NaN(), math.NaN()
	}
	return c.keys[0].In, c.keys[len(c.keys)-1].In
}

// Evaluate returns the curve output at x. Inputs outside the key range are
// clamped to the first or last key. A NaN input, or a curve without keys,
// yields NaN.
func (c *Curve) Evaluate(x float64) float64 {
	n := len(c.keys)
	if n == 0 || math.IsNaN(x) {
		return math.NaN()
	}
	if n == 1 || x <= c.keys[0].In {
		return c.keys[0].Out
	}
	if x >= c.keys[n-1].In {
		return c.keys[n-1].Out
	}

	// first key strictly greater than x; guaranteed in [1, n-1]
	i := sort.Search(n, func(i int) bool { return c.keys[i].In > x })
	a, b := c.keys[i-1], c.keys[i]
	span := b.In - a.In
	t := (x - a.In) / span

	if c.mode == Smooth {
		return hermite(a.Out, b.Out, c.tangents[i-1]*span, c.tangents[i]*span, t)
	}
	return a.Out + (b.Out-a.Out)*t
}

// Sample returns n evenly spaced points across the curve domain.
func (c *Curve) Sample(n int) []Key {
	if n < 2 {
		n = 2
	}
	lo, hi := c.Domain()
	if lo == hi {
		lo, hi = lo-1, hi+1
	}
	out := make([]Key, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		x := lo + float64(i)*step
		out[i] = Key{In: x, Out: c.Evaluate(x)}
	}
	return out
}

type curveJSON struct {
	Mode Mode         `json:"mode,omitempty"`
	Keys [][2]float64 `json:"keys"`
}

// MarshalJSON encodes the curve as {"mode": ..., "keys": [[in, out], ...]}.
func (c *Curve) MarshalJSON() ([]byte, error) {
	doc := curveJSON{Mode: c.mode, Keys: make([][2]float64, len(c.keys))}
	for i, k := range c.keys {
		doc.Keys[i] = [2]float64{k.In, k.Out}
	}
	return json.Marshal(doc)
}

// UnmarshalJSON decodes and validates a curve.
func (c *Curve) UnmarshalJSON(data []byte) error {
	var doc curveJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse curve: %w", err)
	}
	keys := make([]Key, len(doc.Keys))
	for i, k := range doc.Keys {
		keys[i] = Key{In: k[0], Out: k[1]}
	}
	parsed, err := New(doc.Mode, keys...)
	if err != nil {
		return err
	}
	*c = *parsed
	return nil
}

// autoTangents computes per-key slopes. End keys use the one-sided slope.
func autoTangents(keys []Key) []float64 {
	n := len(keys)
	tangents := make([]float64, n)
	if n < 2 {
		return tangents
	}
	slope := func(a, b Key) float64 { return (b.Out - a.Out) / (b.In - a.In) }

	tangents[0] = slope(keys[0], keys[1])
	tangents[n-1] = slope(keys[n-2], keys[n-1])
	for i := 1; i < n-1; i++ {
		tangents[i] = slope(keys[i-1], keys[i+1])
	}
	return tangents
}

func hermite(p0, p1, m0, m1, t float64) float64 {
	t2 := t * t
	t3 := t2 * t
	return (2*t3-3*t2+1)*p0 + (t3-2*t2+t)*m0 + (-2*t3+3*t2)*p1 + (t3-t2)*m1
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
