package host

import (
	"github.com/bjaus/plugin"
)

// Source turns one host payload format into a plugin.Event.
//
// Sources are added to a Host and matched by their Discriminator before
// Parse is called, so detection stays cheap when several formats share a
// transport.
//
// Example:
//
//	type legacySource struct{}
//
//	func (legacySource) Name() string { return "legacy" }
//
//	func (legacySource) Discriminator() host.Discriminator {
//	    return host.HasFields("step", "msg")
//	}
//
//	func (legacySource) Parse(raw []byte) (*plugin.Event, error) {
//	    // decode raw into an Event
//	}
type Source interface {
	// Name identifies the source in logs and errors.
	Name() string

	// Discriminator returns the predicate checked before Parse.
	Discriminator() Discriminator

	// Parse decodes raw into an event. The event is validated by the
	// dispatcher, so Parse only reports format errors.
	Parse(raw []byte) (*plugin.Event, error)
}

// SourceFunc creates a Source from a name, discriminator, and parse function.
//
//	h := host.New(d, factory, host.WithSource(host.SourceFunc(
//	    "legacy",
//	    host.HasFields("step", "msg"),
//	    parseLegacy,
//	)))
func SourceFunc(name string, disc Discriminator, parse func([]byte) (*plugin.Event, error)) Source {
	return &sourceFunc{name: name, disc: disc, parse: parse}
}

type sourceFunc struct {
	name  string
	disc  Discriminator
	parse func([]byte) (*plugin.Event, error)
}

func (s *sourceFunc) Name() string                            { return s.name }
func (s *sourceFunc) Discriminator() Discriminator            { return s.disc }
func (s *sourceFunc) Parse(raw []byte) (*plugin.Event, error) { return s.parse(raw) }
