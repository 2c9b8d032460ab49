package headers

import "strings"

// Cookie is a single entry of a [CookieSet].
type Cookie struct {
	// Name is the part of the fragment before the first "=".
	Name string

	// Fragment is the raw "name=value" segment, attributes stripped.
	Fragment string
}

// CookieSet is an ordered mapping from cookie name to its raw fragment.
//
// Names are unique within a set. The nil set is empty.
type CookieSet []Cookie

// CookieSource is anything cookies can be merged from. headerName tells a
// store which of its headers holds the cookies; other sources ignore it.
type CookieSource interface {
	Cookies(headerName string) CookieSet
}

// CookieList is a raw sequence of cookie header values, for example the
// Set-Cookie lines of a response.
type CookieList []string

// Cookies parses every entry of l.
func (l CookieList) Cookies(string) CookieSet {
	return ParseCookies(l...)
}

// ParseCookie extracts the fragment and name from a single cookie string.
// Everything after the first ";" is dropped. ok is false when no name can
// be found.
func ParseCookie(raw string) (c Cookie, ok bool) {
	fragment, _, _ := strings.Cut(raw, ";")
	fragment = strings.TrimSpace(fragment)
	name, _, _ := strings.Cut(fragment, "=")
	name = strings.TrimSpace(name)
	if name == "" {
		return Cookie{}, false
	}
	return Cookie{Name: name, Fragment: fragment}, true
}

// ParseCookies builds a set from cookie strings. A later cookie with the
// same name replaces an earlier one.
func ParseCookies(raw ...string) CookieSet {
	var s CookieSet
	for _, r := range raw {
		if c, ok := ParseCookie(r); ok {
			s = s.with(c)
		}
	}
	return s
}

// Cookies returns s unchanged, so a set can be used as a [CookieSource].
func (s CookieSet) Cookies(string) CookieSet {
	return s
}

// Get returns the fragment stored for name.
func (s CookieSet) Get(name string) (string, bool) {
	for _, c := range s {
		if c.Name == name {
			return c.Fragment, true
		}
	}
	return "", false
}

// Fragments returns the fragments in order.
func (s CookieSet) Fragments() []string {
	out := make([]string, 0, len(s))
	for _, c := range s {
		out = append(out, c.Fragment)
	}
	return out
}

// with returns a copy of s where c replaces the entry of the same name in
// place, or is appended when the name is new.
func (s CookieSet) with(c Cookie) CookieSet {
	out := make(CookieSet, len(s), len(s)+1)
	copy(out, s)
	for i := range out {
		if out[i].Name == c.Name {
			out[i] = c
			return out
		}
	}
	return append(out, c)
}

// Merge returns s overlaid with other. Entries of other win on name
// collision; names keep the position they first had in s.
func (s CookieSet) Merge(other CookieSet) CookieSet {
	out := append(CookieSet(nil), s...)
	for _, c := range other {
		out = out.with(c)
	}
	return out
}

// Cookies returns the cookies held by headerName. The set is empty when
// the header is absent or has no parseable cookies.
func (h *Headers) Cookies(headerName string) CookieSet {
	v, ok := h.Get(headerName)
	if !ok {
		return nil
	}
	return ParseCookies(v.values...)
}

// WithNewCookies merges src into the cookies held by headerName, the
// incoming cookies taking precedence. An empty headerName means
// [SetCookie]. Nothing changes when src holds no cookies. Otherwise the
// header becomes a sequence of the merged fragments.
func (h *Headers) WithNewCookies(headerName string, src CookieSource) *Headers {
	headerName = cookieHeader(headerName)
	incoming := cookiesOf(src, headerName)
	if len(incoming) == 0 {
		return h
	}
	merged := h.Cookies(headerName).Merge(incoming)
	h.put(headerName, Many(merged.Fragments()...))
	return h
}

// WithPreviousCookies merges src into the cookies held by headerName, the
// store's own cookies taking precedence. It lets a response keep what it
// already sets while carrying forward cookies it has not overridden.
func (h *Headers) WithPreviousCookies(headerName string, src CookieSource) *Headers {
	headerName = cookieHeader(headerName)
	previous := cookiesOf(src, headerName)
	if len(previous) == 0 {
		return h
	}
	merged := previous.Merge(h.Cookies(headerName))
	h.put(headerName, Many(merged.Fragments()...))
	return h
}

func cookieHeader(name string) string {
	if name == "" {
		return SetCookie
	}
	return name
}

func cookiesOf(src CookieSource, headerName string) CookieSet {
	if src == nil {
		return nil
	}
	return src.Cookies(headerName)
}
