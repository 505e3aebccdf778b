// Package module groups providers into named modules with explicit
// imports and exports, and builds them into a tree of scoped containers
// with visibility enforcement and capability-tag discovery.
package module

import (
	"errors"
	"fmt"

	"github.com/tascaenzo/trinacria/di"
)

// Config declares a module. It is consumed by New and carries no
// behavior of its own.
type Config struct {
	// Name identifies the module. It must be unique within a registry;
	// duplicate detection and build memoization both key on it.
	Name string

	// Imports lists the modules whose exports this module's providers
	// may depend on. Only direct imports grant visibility.
	Imports []*Definition

	// Providers lists the providers registered into the module's own
	// container, in registration order.
	Providers []*di.Provider

	// Exports lists the tokens re-published to the root scope. Each
	// must be the token of a provider declared in this module.
	Exports []di.AnyToken
}

// Validate checks the declaration shape before freezing it.
func (c Config) Validate() error {
	if c.Name == "" {
		return errors.New("module name is required")
	}
	for i, imp := range c.Imports {
		if imp == nil {
			return fmt.Errorf("module %s: import %d is nil", c.Name, i)
		}
	}
	for i, p := range c.Providers {
		if p == nil {
			return fmt.Errorf("module %s: provider %d is nil", c.Name, i)
		}
	}
	for i, tok := range c.Exports {
		if tok == nil {
			return fmt.Errorf("module %s: export %d is nil", c.Name, i)
		}
	}
	return nil
}

// Definition is a frozen module declaration. Build one with New and hand
// it to a registry or an application; definitions themselves never touch
// a container.
type Definition struct {
	name      string
	imports   []*Definition
	providers []*di.Provider
	exports   []di.AnyToken
}

// New validates and freezes a module declaration. The slices in cfg are
// copied; mutating them afterwards does not affect the definition.
func New(cfg Config) (*Definition, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Definition{
		name:      cfg.Name,
		imports:   append([]*Definition(nil), cfg.Imports...),
		providers: append([]*di.Provider(nil), cfg.Providers...),
		exports:   append([]di.AnyToken(nil), cfg.Exports...),
	}, nil
}

// MustNew is New that panics on an invalid declaration. Intended for
// package-level module variables, where the declaration is static.
func MustNew(cfg Config) *Definition {
	def, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return def
}

// Name returns the module name.
func (d *Definition) Name() string { return d.name }

// Imports returns the directly imported definitions. Callers must not
// mutate the returned slice.
func (d *Definition) Imports() []*Definition { return d.imports }

// Providers returns the local providers in declaration order.
func (d *Definition) Providers() []*di.Provider { return d.providers }

// Exports returns the exported tokens.
func (d *Definition) Exports() []di.AnyToken { return d.exports }

func (d *Definition) String() string { return "module " + d.name }
