package plugin

import (
	"context"
	"fmt"
	"strings"
)

// EventKey identifies the events a handler is registered for. An empty
// Message or Entity matches any value for that field.
type EventKey struct {
	Stage   Stage
	Message string
	Entity  string
}

// On is shorthand for building an EventKey.
func On(stage Stage, message, entity string) EventKey {
	return EventKey{Stage: stage, Message: message, Entity: entity}
}

// Matches reports whether the key selects an event raised at stage for the
// given message and entity. Names compare case-insensitively.
func (k EventKey) Matches(stage Stage, message, entity string) bool {
	if k.Stage != stage {
		return false
	}
	if k.Message != "" && !strings.EqualFold(k.Message, message) {
		return false
	}
	if k.Entity != "" && !strings.EqualFold(k.Entity, entity) {
		return false
	}
	return true
}

func (k EventKey) String() string {
	message, entity := k.Message, k.Entity
	if message == "" {
		message = "*"
	}
	if entity == "" {
		entity = "*"
	}
	return k.Stage.String() + "/" + message + "/" + entity
}

// StepConfig holds the configuration strings a step is registered with.
// Secure carries values that must not be exported with the step's
// definition, such as credentials; the dispatcher treats both as opaque.
type StepConfig struct {
	Unsecure string
	Secure   string
}

// Registration binds a handler to an EventKey.
type Registration struct {
	Key     EventKey
	Name    string
	Handler Handler
	Config  StepConfig
}

// Registry is an ordered list of registrations. Build it once at startup and
// hand it to New; Match is safe for concurrent use as long as Register is no
// longer being called.
type Registry struct {
	regs []Registration
}

// NewRegistry creates a Registry holding regs in the given order.
func NewRegistry(regs ...Registration) *Registry {
	r := &Registry{}
	for _, reg := range regs {
		r.add(reg)
	}
	return r
}

// Register appends a handler for key. Registrations are not deduplicated;
// registering the same handler twice runs it twice.
//
// Register panics if the key's stage is unknown or h is nil, since both are
// programming errors that would otherwise surface only when an event arrives.
//
// Example:
//
//	reg := plugin.NewRegistry()
//	reg.Register(plugin.On(plugin.PostOperation, "Update", "account"), statusHandler)
//	reg.Register(plugin.On(plugin.PostOperation, "", ""), auditHandler)
func (r *Registry) Register(key EventKey, h Handler) {
	r.add(Registration{Key: key, Handler: h})
}

// RegisterWithConfig appends a handler for key that sees cfg through
// Invocation.UnsecureConfig and Invocation.SecureConfig while it runs.
func (r *Registry) RegisterWithConfig(key EventKey, cfg StepConfig, h Handler) {
	r.add(Registration{Key: key, Handler: h, Config: cfg})
}

// RegisterFunc is a convenience wrapper for registering a HandlerFunc.
func (r *Registry) RegisterFunc(key EventKey, fn func(ctx context.Context, inv *Invocation) error) {
	r.Register(key, HandlerFunc(fn))
}

func (r *Registry) add(reg Registration) {
	if !reg.Key.Stage.Valid() {
		panic(fmt.Sprintf("plugin: invalid stage %d in registration", int(reg.Key.Stage)))
	}
	if reg.Handler == nil {
		panic("plugin: nil handler for " + reg.Key.String())
	}
	if reg.Name == "" {
		reg.Name = handlerName(reg.Handler)
	}
	r.regs = append(r.regs, reg)
}

// Match returns, in registration order, every registration whose key selects
// the event. It returns nil when nothing matches.
func (r *Registry) Match(stage Stage, message, entity string) []Registration {
	var out []Registration
	for _, reg := range r.regs {
		if reg.Key.Matches(stage, message, entity) {
			out = append(out, reg)
		}
	}
	return out
}

// Len returns the number of registrations.
func (r *Registry) Len() int {
	return len(r.regs)
}

// Registrations returns a copy of the registrations in order.
func (r *Registry) Registrations() []Registration {
	out := make([]Registration, len(r.regs))
	copy(out, r.regs)
	return out
}
