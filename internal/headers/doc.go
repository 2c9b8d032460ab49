// Package headers provides an ordered, case-insensitive multi-value header
// model and the cookie reconciliation helpers built on top of it.
//
// HTTP allows a header name to appear more than once in a message, most
// notably Set-Cookie. [Headers] keeps a name with exactly one value as a
// scalar and switches to an ordered sequence once a second value is set for
// the same name. The distinction is carried by [Value] and is visible in the
// rendered form of a store.
//
// The main components are:
//
//   - [Headers]: ordered name -> [Value] store, lowercased keys
//   - [Value]: tagged variant, either [One] or [Many]
//   - [CookieSet]: ordered cookie name -> raw "name=value" fragment view
//   - [CookieSource]: anything cookies can be merged from
//
// Stores are meant to be created per request or response and are not safe
// for concurrent use. Use [Headers.Clone] to hand a copy to another goroutine.
package headers
