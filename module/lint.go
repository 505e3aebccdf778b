package module

import "fmt"

// Severity classifies a lint finding. All findings are advisory; none of
// them fail a build.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Issue is one advisory finding over a graph snapshot.
type Issue struct {
	Severity Severity `json:"severity"`
	Module   string   `json:"module,omitempty"`
	Token    string   `json:"token,omitempty"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	if i.Module != "" {
		return fmt.Sprintf("[%s] %s: %s", i.Severity, i.Module, i.Message)
	}
	return fmt.Sprintf("[%s] %s", i.Severity, i.Message)
}

// Lint inspects a graph snapshot for structural smells: exported tokens
// nothing consumes, providers nothing depends on and no consumer can
// reach, and modules imported but never referenced. It cannot see
// resolution through the application context, so findings are advisory.
func Lint(g *Graph) []Issue {
	if g == nil {
		return nil
	}
	var issues []Issue

	consumed := make(map[string]bool)
	for _, m := range g.Modules {
		for _, p := range m.Providers {
			for _, dep := range p.Dependencies {
				consumed[dep] = true
			}
		}
	}
	for _, p := range g.Globals {
		for _, dep := range p.Dependencies {
			consumed[dep] = true
		}
	}

	for _, m := range g.Modules {
		exported := make(map[string]bool, len(m.Exports))
		for _, tok := range m.Exports {
			exported[tok] = true
			if !consumed[tok] {
				issues = append(issues, Issue{
					Severity: SeverityInfo,
					Module:   m.Name,
					Token:    tok,
					Message:  fmt.Sprintf("export %s is not consumed by any provider", tok),
				})
			}
		}
		for _, p := range m.Providers {
			if consumed[p.Token] || exported[p.Token] || p.Capability != "" {
				continue
			}
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Module:   m.Name,
				Token:    p.Token,
				Message: fmt.Sprintf("provider %s is neither depended on, exported, nor tagged with a capability",
					p.Token),
			})
		}
	}

	for _, m := range g.Modules {
		for _, imp := range m.Imports {
			if !importUsed(g, m, imp) {
				issues = append(issues, Issue{
					Severity: SeverityInfo,
					Module:   m.Name,
					Message:  fmt.Sprintf("import %s grants no dependency used by this module", imp),
				})
			}
		}
	}
	return issues
}

// importUsed reports whether any provider of m depends on a token the
// imported module exports.
func importUsed(g *Graph, m ModuleNode, imported string) bool {
	var exports []string
	for _, other := range g.Modules {
		if other.Name == imported {
			exports = other.Exports
			break
		}
	}
	for _, p := range m.Providers {
		for _, dep := range p.Dependencies {
			for _, tok := range exports {
				if dep == tok {
					return true
				}
			}
		}
	}
	return false
}
