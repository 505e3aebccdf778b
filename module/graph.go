package module

import "github.com/tascaenzo/trinacria/di"

// Graph is a JSON-serializable snapshot of a registry: every module, its
// providers with their dependency edges, the exported tokens, and the
// global providers registered directly on the root. It backs the
// application's describe-graph surface and the devtools endpoints.
type Graph struct {
	Modules []ModuleNode   `json:"modules"`
	Globals []ProviderNode `json:"globals,omitempty"`
}

// ModuleNode describes one built module.
type ModuleNode struct {
	Name      string         `json:"name"`
	Imports   []string       `json:"imports,omitempty"`
	Providers []ProviderNode `json:"providers,omitempty"`
	Exports   []string       `json:"exports,omitempty"`
}

// ProviderNode describes one provider registration. Tokens appear by
// their display name: the label when one was given, the opaque id
// otherwise.
type ProviderNode struct {
	Token        string   `json:"token"`
	Kind         string   `json:"kind"`
	Eager        bool     `json:"eager"`
	Lifecycle    string   `json:"lifecycle"`
	Capability   string   `json:"capability,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// Graph returns a point-in-time snapshot of the registry. The snapshot
// is detached: later builds and unregisters do not affect it.
func (r *Registry) Graph() *Graph {
	r.mu.Lock()
	defer r.mu.Unlock()

	g := &Graph{Modules: make([]ModuleNode, 0, len(r.order))}
	for _, name := range r.order {
		e := r.entries[name]
		node := ModuleNode{
			Name:      name,
			Providers: providerNodes(e.def.providers),
		}
		for _, imp := range e.def.imports {
			node.Imports = append(node.Imports, imp.name)
		}
		for _, tok := range e.def.exports {
			node.Exports = append(node.Exports, tok.String())
		}
		g.Modules = append(g.Modules, node)
	}
	g.Globals = providerNodes(r.globals)
	return g
}

func providerNodes(providers []*di.Provider) []ProviderNode {
	if len(providers) == 0 {
		return nil
	}
	nodes := make([]ProviderNode, 0, len(providers))
	for _, p := range providers {
		node := ProviderNode{
			Token:     p.Key().String(),
			Kind:      p.Kind().String(),
			Eager:     p.Eager(),
			Lifecycle: p.Lifecycle().String(),
		}
		if cap := p.Capability(); cap != nil {
			node.Capability = cap.String()
		}
		for _, dep := range p.Dependencies() {
			node.Dependencies = append(node.Dependencies, dep.String())
		}
		nodes = append(nodes, node)
	}
	return nodes
}
