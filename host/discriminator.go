package host

import "strings"

// Discriminator decides whether a source understands a payload. It only
// looks at a View, so it is cheap compared to a full Parse.
type Discriminator interface {
	Match(v View) bool
}

// HasFields matches when every path exists.
func HasFields(paths ...string) Discriminator {
	return hasFields{paths: paths}
}

type hasFields struct {
	paths []string
}

func (d hasFields) Match(v View) bool {
	for _, p := range d.paths {
		if !v.HasField(p) {
			return false
		}
	}
	return true
}

// FieldEquals matches when the path holds exactly the given string.
func FieldEquals(path, value string) Discriminator {
	return fieldEquals{path: path, value: value}
}

type fieldEquals struct {
	path  string
	value string
}

func (d fieldEquals) Match(v View) bool {
	s, ok := v.GetString(d.path)
	return ok && s == d.value
}

// FieldEqualsFold is FieldEquals ignoring case, for message and entity names.
func FieldEqualsFold(path, value string) Discriminator {
	return fieldEqualsFold{path: path, value: value}
}

type fieldEqualsFold struct {
	path  string
	value string
}

func (d fieldEqualsFold) Match(v View) bool {
	s, ok := v.GetString(d.path)
	return ok && strings.EqualFold(s, d.value)
}

// IntIn matches when the path holds one of the given numbers. Use it to
// pick payloads by stage ordinal.
func IntIn(path string, values ...int64) Discriminator {
	return intIn{path: path, values: values}
}

type intIn struct {
	path   string
	values []int64
}

func (d intIn) Match(v View) bool {
	n, ok := v.GetInt(d.path)
	if !ok {
		return false
	}
	for _, want := range d.values {
		if n == want {
			return true
		}
	}
	return false
}

// Not inverts a discriminator.
func Not(d Discriminator) Discriminator {
	return not{d: d}
}

type not struct {
	d Discriminator
}

func (n not) Match(v View) bool { return !n.d.Match(v) }

// And matches when all discriminators match.
func And(ds ...Discriminator) Discriminator {
	return and{ds: ds}
}

type and struct {
	ds []Discriminator
}

func (d and) Match(v View) bool {
	for _, disc := range d.ds {
		if !disc.Match(v) {
			return false
		}
	}
	return true
}

// Or matches when any discriminator matches.
func Or(ds ...Discriminator) Discriminator {
	return or{ds: ds}
}

type or struct {
	ds []Discriminator
}

func (d or) Match(v View) bool {
	for _, disc := range d.ds {
		if disc.Match(v) {
			return true
		}
	}
	return false
}
