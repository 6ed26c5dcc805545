package prereqs

import (
	"strings"

	"github.com/mailru/easyjson/jwriter"
)

// Version is an opaque version constraint. The zero value, Any, means no
// constraint and is rendered as the literal 0.
type Version string

// Any is the unconstrained version.
const Any Version = ""

// NewVersion returns the constraint written as s. Empty input and a bare
// "0" both mean Any.
func NewVersion(s string) Version {
	s = strings.TrimSpace(s)
	if s == "0" {
		return Any
	}
	return Version(s)
}

// IsAny reports whether v places no constraint on the module version.
func (v Version) IsAny() bool {
	return v == Any || v == "0"
}

func (v Version) String() string {
	if v.IsAny() {
		return "0"
	}
	return string(v)
}

// MarshalJSON encodes Any as the number 0 and everything else as a string.
func (v Version) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{NoEscapeHTML: true}
	v.writeJSON(&w)
	return w.BuildBytes()
}

func (v Version) writeJSON(w *jwriter.Writer) {
	if v.IsAny() {
		w.RawByte('0')
		return
	}
	w.String(string(v))
}

// MarshalYAML mirrors MarshalJSON for gopkg.in/yaml.v3.
func (v Version) MarshalYAML() (interface{}, error) {
	if v.IsAny() {
		return 0, nil
	}
	return string(v), nil
}
