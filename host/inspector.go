package host

import (
	"errors"
	"math"

	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is returned when an event payload is not valid JSON.
var ErrInvalidJSON = errors.New("host: invalid JSON")

// Inspector turns a raw event payload into a View. The host inspects every
// payload once and hands the same View to each source's discriminator, so a
// payload is only decoded in full by the source that claims it.
type Inspector interface {
	Inspect(raw []byte) (View, error)
}

// View answers the envelope questions discriminators ask: is the message
// name present, what stage ordinal was sent, which entity is involved.
// Paths use gjson syntax, so nested fields such as "input_parameters.Target"
// and "InputParameters.#.key" work.
type View interface {
	HasField(path string) bool

	// GetString returns the string at path. Numbers and objects are not
	// converted.
	GetString(path string) (string, bool)

	// GetInt returns the integral number at path, such as a stage ordinal.
	// Fractional numbers and numeric strings report false.
	GetInt(path string) (int64, bool)
}

// JSONInspector returns the Inspector for JSON envelopes.
func JSONInspector() Inspector {
	return jsonInspector{}
}

type jsonInspector struct{}

func (jsonInspector) Inspect(raw []byte) (View, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalidJSON
	}
	return envelope{root: gjson.ParseBytes(raw)}, nil
}

// envelope keeps the parsed root so repeated lookups do not rescan the
// payload from the first byte.
type envelope struct {
	root gjson.Result
}

func (e envelope) HasField(path string) bool {
	return e.root.Get(path).Exists()
}

func (e envelope) GetString(path string) (string, bool) {
	r := e.root.Get(path)
	if r.Type != gjson.String {
		return "", false
	}
	return r.Str, true
}

func (e envelope) GetInt(path string) (int64, bool) {
	r := e.root.Get(path)
	if r.Type != gjson.Number || r.Num != math.Trunc(r.Num) {
		return 0, false
	}
	return r.Int(), true
}
