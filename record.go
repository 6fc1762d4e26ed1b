package plugin

import (
	"fmt"
	"sort"

	"github.com/bytedance/sonic"
	"github.com/go-viper/mapstructure/v2"
)

// Attributes maps attribute logical names to values. Values are whatever the
// host decoded: strings, float64 numbers, bools, References, or nested maps.
type Attributes map[string]any

// Record is a snapshot of a record: its logical name, primary id, and the
// attributes that were sent with the event. A Record may carry a typed value
// it was built from (see ToRecord), in which case As returns that value as-is.
type Record struct {
	LogicalName string
	ID          string
	Attributes  Attributes

	typed any
}

// NewRecord creates an empty record.
func NewRecord(logicalName, id string) *Record {
	return &Record{LogicalName: logicalName, ID: id, Attributes: Attributes{}}
}

// Get returns the attribute value and whether it was present.
func (r *Record) Get(name string) (any, bool) {
	if r == nil || r.Attributes == nil {
		return nil, false
	}
	v, ok := r.Attributes[name]
	return v, ok
}

// Set assigns an attribute value. Setting an attribute drops any typed value
// the record was built from, since the two would no longer agree.
func (r *Record) Set(name string, value any) {
	if r.Attributes == nil {
		r.Attributes = Attributes{}
	}
	r.Attributes[name] = value
	r.typed = nil
}

// Reference returns a lightweight reference to the record.
func (r *Record) Reference() Reference {
	return Reference{LogicalName: r.LogicalName, ID: r.ID}
}

// Clone returns a copy with its own attribute map. The typed value is not
// carried over.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{LogicalName: r.LogicalName, ID: r.ID, Attributes: make(Attributes, len(r.Attributes))}
	for k, v := range r.Attributes {
		out.Attributes[k] = v
	}
	return out
}

// Reference points at a record without carrying its attributes.
type Reference struct {
	LogicalName string `json:"logical_name"`
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
}

// Entity is implemented by strongly typed record shapes.
type Entity interface {
	EntityLogicalName() string
	EntityID() string
}

// idSetter is implemented by typed records that want the snapshot's primary
// id copied in during projection.
type idSetter interface {
	SetEntityID(id string)
}

// ToRecord builds a Record from a typed entity. Fields are taken from the
// entity's json tags; fields tagged omitempty and left empty are not sent,
// which is how partial updates are expressed.
func ToRecord(e Entity) (*Record, error) {
	raw, err := sonic.ConfigStd.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.EntityLogicalName(), err)
	}
	attrs := Attributes{}
	if err := sonic.ConfigStd.Unmarshal(raw, &attrs); err != nil {
		return nil, fmt.Errorf("decode %s attributes: %w", e.EntityLogicalName(), err)
	}
	return &Record{
		LogicalName: e.EntityLogicalName(),
		ID:          e.EntityID(),
		Attributes:  attrs,
		typed:       e,
	}, nil
}

// As views the record as *T. When the record was built from a *T it is
// returned unchanged; otherwise the attributes are copied into a new T by
// json tag name. Unknown attributes are dropped and missing ones stay zero.
func As[T any](r *Record) (*T, error) {
	if r == nil {
		return nil, nil
	}
	if v, ok := r.typed.(*T); ok {
		return v, nil
	}

	out := new(T)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(map[string]any(r.Attributes)); err != nil {
		return nil, fmt.Errorf("project %s record: %w", r.LogicalName, err)
	}
	if s, ok := any(out).(idSetter); ok && r.ID != "" {
		s.SetEntityID(r.ID)
	}
	return out, nil
}

// Images maps image names to snapshots registered on the step.
type Images map[string]*Record

// First returns the image with the lexicographically smallest name, or nil
// when there are none. Steps normally register a single image; ordering by
// name keeps the choice stable when more are present.
func (im Images) First() *Record {
	if len(im) == 0 {
		return nil
	}
	names := make([]string, 0, len(im))
	for name := range im {
		names = append(names, name)
	}
	sort.Strings(names)
	return im[names[0]]
}
