package template

// Source resolves campaign references to loaded templates. Implementations
// own loading and caching; the core only reads.
type Source interface {
	Campaign(ref string) (*Template, bool)
}

// StaticSource serves templates from a fixed map, for tests and scripted
// scenarios.
type StaticSource map[string]*Template

// Campaign returns the template registered under ref.
func (s StaticSource) Campaign(ref string) (*Template, bool) {
	tpl, ok := s[ref]
	return tpl, ok
}
