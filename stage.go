package plugin

import (
	"fmt"
	"strconv"
	"strings"
)

// Stage is the pipeline stage an event is raised in. The numeric values are
// the ordinals the host uses on the wire.
type Stage int

const (
	PreValidation Stage = 10
	PreOperation  Stage = 20
	PostOperation Stage = 40
)

// Valid reports whether s is one of the three known stages.
func (s Stage) Valid() bool {
	switch s {
	case PreValidation, PreOperation, PostOperation:
		return true
	}
	return false
}

func (s Stage) String() string {
	switch s {
	case PreValidation:
		return "PreValidation"
	case PreOperation:
		return "PreOperation"
	case PostOperation:
		return "PostOperation"
	}
	return "Stage(" + strconv.Itoa(int(s)) + ")"
}

// ParseStage accepts either a stage name (case-insensitive) or its ordinal.
func ParseStage(s string) (Stage, error) {
	s = strings.TrimSpace(s)
	for _, st := range []Stage{PreValidation, PreOperation, PostOperation} {
		if strings.EqualFold(s, st.String()) {
			return st, nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && Stage(n).Valid() {
		return Stage(n), nil
	}
	return 0, fmt.Errorf("unknown stage %q", s)
}
