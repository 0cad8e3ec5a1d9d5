package scraper

import (
	"igbackend/pkg/instagram"
)

// SessionSource hands out the adapter a run should use.
// *session.Manager implements it.
type SessionSource interface {
	Adapter() instagram.Adapter
}

// staticSource always returns the same adapter
type staticSource struct {
	adapter instagram.Adapter
}

func (s staticSource) Adapter() instagram.Adapter {
	return s.adapter
}

// FromAdapter wraps a single adapter as a SessionSource
func FromAdapter(a instagram.Adapter) SessionSource {
	return staticSource{adapter: a}
}
