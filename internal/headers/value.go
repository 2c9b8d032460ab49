package headers

import "strings"

// Value is the value stored under a header name.
//
// A Value is either a scalar built with [One] or an ordered sequence built
// with [Many]. The zero Value holds nothing and reports neither form.
type Value struct {
	values []string
	many   bool
}

// One returns a scalar Value.
func One(v string) Value {
	return Value{values: []string{v}}
}

// Many returns a sequence Value. The input slice is copied.
func Many(vs ...string) Value {
	return Value{values: append([]string(nil), vs...), many: true}
}

// IsMany reports whether v is a sequence.
func (v Value) IsMany() bool {
	return v.many
}

// Single returns the scalar held by v. ok is false for sequences and for
// the zero Value.
func (v Value) Single() (s string, ok bool) {
	if v.many || len(v.values) == 0 {
		return "", false
	}
	return v.values[0], true
}

// Values returns every value held by v in order. The returned slice is a
// copy.
func (v Value) Values() []string {
	return append([]string(nil), v.values...)
}

// Len returns the number of values held by v.
func (v Value) Len() int {
	return len(v.values)
}

// String joins the values with ", ", the way a folded header line reads.
func (v Value) String() string {
	return strings.Join(v.values, ", ")
}

// with returns v extended by s: a scalar becomes a two-element sequence,
// a sequence grows by one.
func (v Value) with(s string) Value {
	if len(v.values) == 0 {
		return One(s)
	}
	next := make([]string, 0, len(v.values)+1)
	next = append(next, v.values...)
	return Value{values: append(next, s), many: true}
}

func (v Value) clone() Value {
	return Value{values: v.Values(), many: v.many}
}
