package notify

// Registry is the closed lookup table of channel plugins. It is built
// once at process start and injected wherever dispatch happens; there is
// no package-level registration.
type Registry struct {
	plugins map[string]Plugin
	order   []string
}

func NewRegistry(plugins ...Plugin) *Registry {
	r := &Registry{plugins: make(map[string]Plugin, len(plugins))}
	for _, p := range plugins {
		if _, dup := r.plugins[p.ID()]; dup {
			continue
		}
		r.plugins[p.ID()] = p
		r.order = append(r.order, p.ID())
	}
	return r
}

func (r *Registry) Get(id string) (Plugin, bool) {
	p, ok := r.plugins[id]
	return p, ok
}

func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
