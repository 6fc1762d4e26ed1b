package plugin

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// Handler reacts to a matched event. The Invocation is only valid for the
// duration of the call and must not be retained.
//
// Example:
//
//	type AuditHandler struct{}
//
//	func (AuditHandler) Handle(ctx context.Context, inv *plugin.Invocation) error {
//	    inv.Tracef("audit %s on %s", inv.MessageName(), inv.PrimaryEntityName())
//	    return nil
//	}
type Handler interface {
	Handle(ctx context.Context, inv *Invocation) error
}

// HandlerFunc is a function adapter for Handler:
//
//	reg.Register(plugin.On(plugin.PostOperation, "Update", "account"),
//	    plugin.HandlerFunc(func(ctx context.Context, inv *plugin.Invocation) error {
//	        return nil
//	    }))
type HandlerFunc func(ctx context.Context, inv *Invocation) error

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, inv *Invocation) error {
	return f(ctx, inv)
}

// Named is an optional interface a Handler can implement to control the name
// used in traces, hooks, and metrics.
type Named interface {
	Name() string
}

// handlerName resolves the display name of h.
func handlerName(h Handler) string {
	if n, ok := h.(Named); ok {
		return n.Name()
	}
	if f, ok := h.(HandlerFunc); ok {
		if fn := runtime.FuncForPC(reflect.ValueOf(f).Pointer()); fn != nil {
			name := fn.Name()
			if i := strings.LastIndex(name, "/"); i >= 0 {
				name = name[i+1:]
			}
			return name
		}
	}
	return fmt.Sprintf("%T", h)
}
