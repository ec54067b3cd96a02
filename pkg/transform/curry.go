// Package transform implements the reference transformer set: map, filter,
// tap, grep, take, drop, slice, channel, channel_map, dup, batch/unbatch,
// preload, shuffle, select_channels and constant. Each is a small value
// type implementing chain.Transformer. Those taking only plain-data
// arguments also implement chain.Serializable for round-tripping through a
// pipeline definition; Map, Filter, Tap and ChannelMap, which carry a Go
// function, do not.
package transform

// Hole marks the slot in a curried function's argument list where the
// record's active value should be inserted. It replaces the original
// implementation's "insert value at the Ellipsis position" convention
// (DESIGN NOTES: "Curry placeholder") with an explicit sentinel value a
// caller places in the args list passed to Map/Filter/Tap/ChannelMap.
//
//	replace := func(a ...any) any {
//		return strings.Replace(a[0].(string), a[1].(string), a[2].(string), a[3].(int))
//	}
//	transform.NewMap(replace, transform.Hole, "a", "b", 1)
//	// => strings.Replace(value, "a", "b", 1)
var Hole = new(struct{})

// curried builds the closure a curriable transformer invokes per record,
// reproducing base_curriable's _simple_curry/_insertion_curry split: when
// no Hole is present the value is prepended as the first argument,
// otherwise it is spliced in at the Hole's position.
type curried struct {
	fn       func(args ...any) any
	args     []any
	holeAt   int
	hasHole  bool
}

func newCurried(fn func(args ...any) any, args []any) curried {
	c := curried{fn: fn, holeAt: -1}
	for i, a := range args {
		if a == Hole {
			c.holeAt = i
			c.hasHole = true
			continue
		}
		c.args = append(c.args, a)
	}
	return c
}

func (c curried) call(value any) any {
	if !c.hasHole {
		full := make([]any, 0, len(c.args)+1)
		full = append(full, value)
		full = append(full, c.args...)
		return c.fn(full...)
	}
	full := make([]any, 0, len(c.args)+1)
	full = append(full, c.args[:c.holeAt]...)
	full = append(full, value)
	full = append(full, c.args[c.holeAt:]...)
	return c.fn(full...)
}

// hashArgs returns the args slice (including the Hole marker rendered as a
// fixed token) in a form suitable for chain.Hash, so two curried
// transformers with identical fn/args hash identically regardless of
// argument evaluation order.
func hashArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		if a == Hole {
			out[i] = "<hole>"
			continue
		}
		out[i] = a
	}
	return out
}
