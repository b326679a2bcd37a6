package extent

import (
	"encoding/json"
	"math"
	"reflect"

	"github.com/paulmach/orb"
)

// Node is one node of a geometry coordinate tree: either a Coord leaf or a
// Seq of child nodes. Parse is the only place that inspects untyped input;
// everything downstream works on this closed set.
type Node interface {
	node()
}

// Coord is a leaf coordinate. Any elements after the second are dropped.
type Coord struct {
	X float64
	Y float64
}

// Seq is a nested sequence of nodes. Malformed input parses to an empty Seq.
type Seq []Node

func (Coord) node() {}
func (Seq) node()   {}

// Parse converts a decoded coordinate value into a Node.
//
// A sequence whose first two entries are finite numbers is a Coord, whatever
// its depth. Every other sequence is a Seq of its parsed elements. Values that
// are not sequences parse to an empty Seq. A one-element sequence such as [x]
// is therefore never a coordinate and contributes nothing.
func Parse(v any) Node {
	switch t := v.(type) {
	case nil:
		return Seq(nil)
	case []any:
		if len(t) >= 2 {
			x, okX := number(t[0])
			y, okY := number(t[1])
			if okX && okY {
				return Coord{X: x, Y: y}
			}
		}
		seq := make(Seq, 0, len(t))
		for _, child := range t {
			seq = append(seq, Parse(child))
		}
		return seq
	case []float64:
		if len(t) >= 2 && finite(t[0]) && finite(t[1]) {
			return Coord{X: t[0], Y: t[1]}
		}
		return Seq(nil)
	case Node:
		return t
	case orb.Bound:
		return Seq{Parse(t.Min[:]), Parse(t.Max[:])}
	}
	return parseReflect(reflect.ValueOf(v))
}

// parseReflect handles typed slices and arrays such as [2]float64, orb.Ring
// or [][]float64 built by Go callers instead of a JSON decoder.
func parseReflect(rv reflect.Value) Node {
	for rv.Kind() == reflect.Interface || rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return Seq(nil)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return Seq(nil)
	}
	n := rv.Len()
	if n >= 2 {
		x, okX := number(rv.Index(0).Interface())
		y, okY := number(rv.Index(1).Interface())
		if okX && okY {
			return Coord{X: x, Y: y}
		}
	}
	seq := make(Seq, 0, n)
	for i := 0; i < n; i++ {
		seq = append(seq, Parse(rv.Index(i).Interface()))
	}
	return seq
}

// Walk calls fn for every Coord in the tree, depth first.
func Walk(n Node, fn func(Coord)) {
	switch t := n.(type) {
	case Coord:
		fn(t)
	case Seq:
		for _, child := range t {
			Walk(child, fn)
		}
	}
}

// number reports whether v is a finite numeric value.
func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	return f, finite(f)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
