package plugin

import (
	"fmt"
	"strings"
)

// TargetParameter is the input parameter holding the record an operation acts on.
const TargetParameter = "Target"

// Common message names. The host defines many more; handlers may use any
// string, these are only the ones this module refers to.
const (
	MessageCreate = "Create"
	MessageUpdate = "Update"
	MessageDelete = "Delete"
	MessageAssign = "Assign"
)

// Event is the execution context the host raises for one pipeline step.
// It is valid for a single dispatch and must not be retained after Execute
// returns.
type Event struct {
	Stage             Stage
	MessageName       string
	PrimaryEntityName string
	CorrelationID     string
	InitiatingUserID  string
	UserID            string
	Depth             int

	// InputParameters holds the request parameters. The Target parameter is a
	// *Record or a Reference depending on the message.
	InputParameters map[string]any
	PreImages       Images
	PostImages      Images
}

// Validate checks the fields every event must carry.
func (e *Event) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: event is nil", ErrInvalidEvent)
	}
	if !e.Stage.Valid() {
		return fmt.Errorf("%w: unknown stage %d", ErrInvalidEvent, int(e.Stage))
	}
	if strings.TrimSpace(e.MessageName) == "" {
		return fmt.Errorf("%w: message name is required", ErrInvalidEvent)
	}
	return nil
}

// Parameter returns an input parameter and whether it was present.
func (e *Event) Parameter(name string) (any, bool) {
	if e.InputParameters == nil {
		return nil, false
	}
	v, ok := e.InputParameters[name]
	return v, ok
}

// actingUser is the user the data service acts as.
func (e *Event) actingUser() string {
	if e.UserID != "" {
		return e.UserID
	}
	return e.InitiatingUserID
}
