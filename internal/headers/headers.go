package headers

import (
	"net/http"
	"sort"
	"strings"
)

// Well-known header names, in the lowercased form used as store keys.
const (
	SetCookie    = "set-cookie"
	CookieHeader = "cookie"
)

type entry struct {
	name  string
	value Value
}

// Headers is an ordered, case-insensitive mapping from header name to
// [Value].
//
// Names are lowercased on the way in. The order in which names were first
// set is preserved, as is the order of values under a single name. The zero
// value is an empty store ready for use.
type Headers struct {
	entries []entry
}

// New builds a store from a flat name/value sequence:
//
//	headers.New("Content-Type", "application/json", "Set-Cookie", "a=1")
//
// Every pair goes through [Headers.Set], so repeated names accumulate. A
// trailing name without a value is ignored.
func New(raw ...string) *Headers {
	h := &Headers{}
	for i := 1; i < len(raw); i += 2 {
		h.Set(raw[i-1], raw[i])
	}
	return h
}

// FromHTTP builds a store from a Go header map.
//
// Names are visited in sorted order so the result does not depend on map
// iteration. A Cookie header line carries several cookies separated by
// "; "; each of them is stored as its own value under [CookieHeader] so that
// [Headers.Cookies] sees every cookie the client sent.
func FromHTTP(src http.Header) *Headers {
	names := make([]string, 0, len(src))
	for name := range src {
		names = append(names, name)
	}
	sort.Strings(names)

	h := &Headers{}
	for _, name := range names {
		for _, v := range src[name] {
			if strings.EqualFold(name, CookieHeader) {
				for _, part := range strings.Split(v, ";") {
					if part = strings.TrimSpace(part); part != "" {
						h.Set(CookieHeader, part)
					}
				}
				continue
			}
			h.Set(name, v)
		}
	}
	return h
}

func (h *Headers) index(name string) int {
	if h == nil {
		return -1
	}
	key := strings.ToLower(name)
	for i, e := range h.entries {
		if e.name == key {
			return i
		}
	}
	return -1
}

// Set adds value under name.
//
// An unset name stores value as a scalar. A scalar is converted to the
// sequence [existing, value]. A sequence is appended to. Set returns h so
// calls can be chained.
func (h *Headers) Set(name, value string) *Headers {
	if i := h.index(name); i >= 0 {
		h.entries[i].value = h.entries[i].value.with(value)
		return h
	}
	h.entries = append(h.entries, entry{name: strings.ToLower(name), value: One(value)})
	return h
}

// put replaces whatever is stored under name, keeping its position.
func (h *Headers) put(name string, v Value) {
	if i := h.index(name); i >= 0 {
		h.entries[i].value = v
		return
	}
	h.entries = append(h.entries, entry{name: strings.ToLower(name), value: v})
}

// Get returns the value stored under name.
func (h *Headers) Get(name string) (Value, bool) {
	i := h.index(name)
	if i < 0 {
		return Value{}, false
	}
	return h.entries[i].value, true
}

// Has reports whether name is set.
func (h *Headers) Has(name string) bool {
	return h.index(name) >= 0
}

// Remove deletes name. Removing an unset name is a no-op.
func (h *Headers) Remove(name string) {
	i := h.index(name)
	if i < 0 {
		return
	}
	h.entries = append(h.entries[:i], h.entries[i+1:]...)
}

// Len returns the number of distinct names.
func (h *Headers) Len() int {
	if h == nil {
		return 0
	}
	return len(h.entries)
}

// Names returns the stored names in insertion order.
func (h *Headers) Names() []string {
	names := make([]string, 0, h.Len())
	for i := 0; i < h.Len(); i++ {
		names = append(names, h.entries[i].name)
	}
	return names
}

// Clone returns a deep copy of h. Sequence values are copied, nothing
// mutable is shared with the original.
func (h *Headers) Clone() *Headers {
	c := &Headers{entries: make([]entry, 0, h.Len())}
	for i := 0; i < h.Len(); i++ {
		e := h.entries[i]
		c.entries = append(c.entries, entry{name: e.name, value: e.value.clone()})
	}
	return c
}

// Printable renders h for logs, one "name: value" line per value. The
// output starts with a newline so it reads well after a log message.
func (h *Headers) Printable() string {
	var b strings.Builder
	for i := 0; i < h.Len(); i++ {
		e := h.entries[i]
		for _, v := range e.value.values {
			b.WriteByte('\n')
			b.WriteString(e.name)
			b.WriteString(": ")
			b.WriteString(v)
		}
	}
	return b.String()
}

// WriteTo copies h into dst. Scalars replace any existing value, sequences
// are written as one header line per value.
func (h *Headers) WriteTo(dst http.Header) {
	for i := 0; i < h.Len(); i++ {
		e := h.entries[i]
		if s, ok := e.value.Single(); ok {
			dst.Set(e.name, s)
			continue
		}
		dst.Del(e.name)
		for _, v := range e.value.values {
			dst.Add(e.name, v)
		}
	}
}
