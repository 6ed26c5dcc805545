package snapshot

import (
	"fmt"

	"github.com/frederic-klein/cpanfile/internal/prereqs"
	"github.com/frederic-klein/cpanfile/internal/version"
)

// ProblemKind classifies a requirement the snapshot does not meet.
type ProblemKind string

const (
	ProblemMissing     ProblemKind = "missing"
	ProblemUnsatisfied ProblemKind = "unsatisfied"
)

// Problem is a requirement the snapshot does not meet.
type Problem struct {
	Kind        ProblemKind
	Requirement prereqs.Requirement
	Dist        string // providing distribution, empty when missing
	Have        string // provided version, empty when missing
}

func (p Problem) String() string {
	req := p.Requirement
	if p.Kind == ProblemMissing {
		return fmt.Sprintf("%s (%s) is not in the snapshot", req.Module, req.Phase)
	}
	return fmt.Sprintf("%s (%s) wants %s, %s provides %s", req.Module, req.Phase, req.Version, p.Dist, p.Have)
}

// Check compares the requires of the given phases (runtime when none are
// given) against what the snapshot distributions provide. The perl
// interpreter itself is never looked up.
func Check(m *prereqs.Model, dists []*Dist, phases ...prereqs.Phase) []Problem {
	if len(phases) == 0 {
		phases = []prereqs.Phase{prereqs.PhaseRuntime}
	}

	providers := make(map[string]*Dist)
	for _, d := range dists {
		for mod := range d.Provides {
			if _, ok := providers[mod]; !ok {
				providers[mod] = d
			}
		}
	}

	var problems []Problem
	for _, phase := range phases {
		for _, req := range m.Requirements(phase, prereqs.RelationRequires) {
			if req.Module == "perl" {
				continue
			}
			d, ok := providers[req.Module]
			if !ok {
				problems = append(problems, Problem{Kind: ProblemMissing, Requirement: req})
				continue
			}
			have := d.Provides[req.Module]
			if !version.Satisfies(have, req.Version) {
				problems = append(problems, Problem{
					Kind:        ProblemUnsatisfied,
					Requirement: req,
					Dist:        d.Name,
					Have:        have,
				})
			}
		}
	}
	return problems
}
