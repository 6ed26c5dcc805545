package prereqs

import (
	"github.com/mailru/easyjson/jwriter"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

type bucket = orderedmap.OrderedMap[string, Version]

// Model maps phase to relation to module to version constraint. Modules
// keep the order they were first added in.
type Model struct {
	buckets map[Phase]map[Relation]*bucket
}

// New creates a model with an empty bucket set for every phase.
func New() *Model {
	m := &Model{buckets: make(map[Phase]map[Relation]*bucket, len(phases))}
	for _, p := range phases {
		m.buckets[p] = make(map[Relation]*bucket, len(relations))
	}
	return m
}

// Add records req. A module already present in the same phase and relation
// keeps its position and takes the new version. Requirements with an
// unknown phase or relation, or an empty module name, are not added.
func (m *Model) Add(req Requirement) bool {
	if req.Module == "" {
		return false
	}
	if _, ok := ParseRelation(string(req.Relation)); !ok {
		return false
	}
	rels, ok := m.buckets[req.Phase]
	if !ok {
		return false
	}
	b, ok := rels[req.Relation]
	if !ok {
		b = orderedmap.New[string, Version]()
		rels[req.Relation] = b
	}
	b.Set(req.Module, req.Version)
	return true
}

// Get looks up the version constraint for a module.
func (m *Model) Get(phase Phase, rel Relation, module string) (Version, bool) {
	b := m.bucket(phase, rel)
	if b == nil {
		return Any, false
	}
	return b.Get(module)
}

// Requirements returns one bucket in insertion order.
func (m *Model) Requirements(phase Phase, rel Relation) []Requirement {
	b := m.bucket(phase, rel)
	if b == nil {
		return nil
	}
	reqs := make([]Requirement, 0, b.Len())
	for pair := b.Oldest(); pair != nil; pair = pair.Next() {
		reqs = append(reqs, Requirement{
			Phase:    phase,
			Relation: rel,
			Module:   pair.Key,
			Version:  pair.Value,
		})
	}
	return reqs
}

// All returns every requirement, phases and relations in canonical order.
func (m *Model) All() []Requirement {
	var reqs []Requirement
	for _, p := range phases {
		for _, r := range relations {
			reqs = append(reqs, m.Requirements(p, r)...)
		}
	}
	return reqs
}

// Len returns the number of requirements across all buckets.
func (m *Model) Len() int {
	n := 0
	for _, rels := range m.buckets {
		for _, b := range rels {
			n += b.Len()
		}
	}
	return n
}

// IsEmpty reports whether the model holds no requirements.
func (m *Model) IsEmpty() bool {
	return m.Len() == 0
}

// PhaseIsEmpty reports whether a phase holds no requirements.
func (m *Model) PhaseIsEmpty(phase Phase) bool {
	for _, b := range m.buckets[phase] {
		if b.Len() > 0 {
			return false
		}
	}
	return true
}

// Merge adds every requirement of other to m; other wins on conflicts.
func (m *Model) Merge(other *Model) {
	for _, req := range other.All() {
		m.Add(req)
	}
}

// Map returns a plain copy of the non-empty buckets.
func (m *Model) Map() map[Phase]map[Relation]map[string]Version {
	out := make(map[Phase]map[Relation]map[string]Version)
	for _, req := range m.All() {
		rels, ok := out[req.Phase]
		if !ok {
			rels = make(map[Relation]map[string]Version)
			out[req.Phase] = rels
		}
		mods, ok := rels[req.Relation]
		if !ok {
			mods = make(map[string]Version)
			rels[req.Relation] = mods
		}
		mods[req.Module] = req.Version
	}
	return out
}

func (m *Model) bucket(phase Phase, rel Relation) *bucket {
	rels, ok := m.buckets[phase]
	if !ok {
		return nil
	}
	return rels[rel]
}

type (
	relationTree = orderedmap.OrderedMap[string, *bucket]
	phaseTree    = orderedmap.OrderedMap[string, *relationTree]
)

// tree builds the ordered serialization form, skipping empty buckets.
func (m *Model) tree() *phaseTree {
	out := orderedmap.New[string, *relationTree]()
	for _, p := range phases {
		rels := orderedmap.New[string, *bucket]()
		for _, r := range relations {
			if b := m.bucket(p, r); b != nil && b.Len() > 0 {
				rels.Set(string(r), b)
			}
		}
		if rels.Len() > 0 {
			out.Set(string(p), rels)
		}
	}
	return out
}

// MarshalJSON encodes the model as {phase: {relation: {module: version}}}.
// Range operators such as < and > are written unescaped.
func (m *Model) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{NoEscapeHTML: true}
	w.RawByte('{')
	for p := m.tree().Oldest(); p != nil; p = p.Next() {
		if p.Prev() != nil {
			w.RawByte(',')
		}
		w.String(p.Key)
		w.RawByte(':')
		w.RawByte('{')
		for r := p.Value.Oldest(); r != nil; r = r.Next() {
			if r.Prev() != nil {
				w.RawByte(',')
			}
			w.String(r.Key)
			w.RawByte(':')
			w.RawByte('{')
			for mod := r.Value.Oldest(); mod != nil; mod = mod.Next() {
				if mod.Prev() != nil {
					w.RawByte(',')
				}
				w.String(mod.Key)
				w.RawByte(':')
				mod.Value.writeJSON(&w)
			}
			w.RawByte('}')
		}
		w.RawByte('}')
	}
	w.RawByte('}')
	return w.BuildBytes()
}

// MarshalYAML encodes the model in the same shape as MarshalJSON.
func (m *Model) MarshalYAML() (interface{}, error) {
	return m.tree(), nil
}
