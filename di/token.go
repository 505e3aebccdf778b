// Package di provides the dependency-injection core: typed tokens,
// provider recipes, and the scoped resolution container.
//
// Tokens identify injectable values, providers describe how to produce
// them, and containers resolve tokens to singleton instances with
// parent-scope fallback. The module and app packages build the module
// graph and application lifecycle on top of this package.
package di

import "github.com/google/uuid"

// Key is the opaque identity behind a Token or Capability. Two keys are
// equal only when they are the same allocation; the label is display-only
// and never participates in equality.
type Key struct {
	id    string
	label string
}

func newKey(prefix, label string) *Key {
	return &Key{
		id:    prefix + ":" + uuid.New().String(),
		label: label,
	}
}

// ID returns the unique identifier of the key.
func (k *Key) ID() string { return k.id }

// Label returns the human-readable label, or "" if none was given.
func (k *Key) Label() string { return k.label }

// String returns the label when present, otherwise the identifier. Error
// messages and graph snapshots use this form.
func (k *Key) String() string {
	if k.label != "" {
		return k.label
	}
	return k.id
}

// AnyToken is the untyped view of a Token, used wherever tokens of
// different value types mix: dependency lists, export lists, lookups.
type AnyToken interface {
	Key() *Key
	String() string
}

// Token identifies an injectable value of type T. The type parameter is
// phantom: it exists for static checking only and two tokens are never
// equal just because they share a type. Create one token per capability
// and share it between the providing and the consuming side.
type Token[T any] struct {
	key *Key
}

// NewToken mints a fresh token identity. The optional label appears in
// error messages and graph output; it has no effect on identity.
func NewToken[T any](label ...string) Token[T] {
	return Token[T]{key: newKey("tok", firstLabel(label))}
}

// Key returns the token's identity key.
func (t Token[T]) Key() *Key { return t.key }

func (t Token[T]) String() string { return t.key.String() }

// AnyCapability is the untyped view of a Capability.
type AnyCapability interface {
	Key() *Key
	String() string
}

// Capability identifies a protocol rather than a concrete value: providers
// tag themselves with a capability, and consumers discover every tagged
// provider through the module registry. Capabilities never influence
// resolution.
type Capability[T any] struct {
	key *Key
}

// NewCapability mints a fresh capability identity.
func NewCapability[T any](label ...string) Capability[T] {
	return Capability[T]{key: newKey("cap", firstLabel(label))}
}

// Key returns the capability's identity key.
func (c Capability[T]) Key() *Key { return c.key }

func (c Capability[T]) String() string { return c.key.String() }

func firstLabel(label []string) string {
	if len(label) > 0 {
		return label[0]
	}
	return ""
}
