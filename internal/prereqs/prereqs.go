package prereqs

import "strings"

// Phase represents a dependency phase (runtime, test, develop, etc).
type Phase string

const (
	PhaseConfigure Phase = "configure"
	PhaseBuild     Phase = "build"
	PhaseRuntime   Phase = "runtime"
	PhaseTest      Phase = "test"
	PhaseDevelop   Phase = "develop"
)

// DefaultPhase applies to statements outside any phase block.
const DefaultPhase = PhaseRuntime

var phases = []Phase{PhaseConfigure, PhaseBuild, PhaseRuntime, PhaseTest, PhaseDevelop}

// Phases returns every phase in CPAN::Meta order.
func Phases() []Phase {
	return append([]Phase(nil), phases...)
}

// ParsePhase maps a phase name to a Phase, ignoring case.
func ParsePhase(s string) (Phase, bool) {
	p := Phase(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range phases {
		if p == known {
			return p, true
		}
	}
	return "", false
}

// Relation is the kind of dependency relationship.
type Relation string

const (
	RelationRequires   Relation = "requires"
	RelationRecommends Relation = "recommends"
	RelationConflicts  Relation = "conflicts"
	RelationSuggests   Relation = "suggests"
)

var relations = []Relation{RelationRequires, RelationRecommends, RelationConflicts, RelationSuggests}

// Relations returns every relation in canonical order.
func Relations() []Relation {
	return append([]Relation(nil), relations...)
}

// ParseRelation maps a relation keyword to a Relation.
func ParseRelation(s string) (Relation, bool) {
	r := Relation(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range relations {
		if r == known {
			return r, true
		}
	}
	return "", false
}

// Requirement is one parsed declaration.
type Requirement struct {
	Phase    Phase
	Relation Relation
	Module   string
	Version  Version // e.g., "> 5.8000, < 5.9"
}
