package prereqs

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

func TestModel_Add(t *testing.T) {
	m := New()
	m.Add(Requirement{Phase: PhaseRuntime, Relation: RelationRequires, Module: "JSON", Version: "2.0"})
	m.Add(Requirement{Phase: PhaseRuntime, Relation: RelationRequires, Module: "Moo"})
	m.Add(Requirement{Phase: PhaseRuntime, Relation: RelationRequires, Module: "JSON", Version: "4.0"})

	got := m.Requirements(PhaseRuntime, RelationRequires)
	want := []Requirement{
		{Phase: PhaseRuntime, Relation: RelationRequires, Module: "JSON", Version: "4.0"},
		{Phase: PhaseRuntime, Relation: RelationRequires, Module: "Moo", Version: Any},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Requirements() mismatch (-want +got):\n%s", diff)
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
}

func TestModel_AddRejects(t *testing.T) {
	tests := []struct {
		name string
		req  Requirement
	}{
		{"empty module", Requirement{Phase: PhaseRuntime, Relation: RelationRequires}},
		{"unknown phase", Requirement{Phase: "deploy", Relation: RelationRequires, Module: "JSON"}},
		{"unknown relation", Requirement{Phase: PhaseRuntime, Relation: "wants", Module: "JSON"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			if m.Add(tt.req) {
				t.Errorf("Add(%+v) = true, want false", tt.req)
			}
			if !m.IsEmpty() {
				t.Errorf("model not empty after rejected Add")
			}
		})
	}
}

func TestModel_Get(t *testing.T) {
	m := New()
	m.Add(Requirement{Phase: PhaseTest, Relation: RelationRecommends, Module: "Test::Deep", Version: "1.0"})

	if v, ok := m.Get(PhaseTest, RelationRecommends, "Test::Deep"); !ok || v != "1.0" {
		t.Errorf("Get() = %q, %v, want 1.0, true", v, ok)
	}
	if _, ok := m.Get(PhaseRuntime, RelationRecommends, "Test::Deep"); ok {
		t.Error("Get() found module in wrong phase")
	}
	if _, ok := m.Get("bogus", RelationRequires, "Test::Deep"); ok {
		t.Error("Get() found module in unknown phase")
	}
}

func TestModel_AllOrder(t *testing.T) {
	m := New()
	m.Add(Requirement{Phase: PhaseDevelop, Relation: RelationRequires, Module: "D"})
	m.Add(Requirement{Phase: PhaseRuntime, Relation: RelationConflicts, Module: "C"})
	m.Add(Requirement{Phase: PhaseRuntime, Relation: RelationRequires, Module: "B"})
	m.Add(Requirement{Phase: PhaseConfigure, Relation: RelationRequires, Module: "A"})

	var got []string
	for _, req := range m.All() {
		got = append(got, req.Module)
	}
	want := []string{"A", "B", "C", "D"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("All() order mismatch (-want +got):\n%s", diff)
	}
}

func TestModel_Merge(t *testing.T) {
	a := New()
	a.Add(Requirement{Phase: PhaseRuntime, Relation: RelationRequires, Module: "JSON", Version: "1.0"})
	b := New()
	b.Add(Requirement{Phase: PhaseRuntime, Relation: RelationRequires, Module: "JSON", Version: "2.0"})
	b.Add(Requirement{Phase: PhaseTest, Relation: RelationRequires, Module: "Test::More"})

	a.Merge(b)

	want := map[Phase]map[Relation]map[string]Version{
		PhaseRuntime: {RelationRequires: {"JSON": "2.0"}},
		PhaseTest:    {RelationRequires: {"Test::More": Any}},
	}
	if diff := cmp.Diff(want, a.Map()); diff != "" {
		t.Errorf("Map() after Merge mismatch (-want +got):\n%s", diff)
	}
}

func TestModel_PhaseIsEmpty(t *testing.T) {
	m := New()
	for _, p := range Phases() {
		if !m.PhaseIsEmpty(p) {
			t.Errorf("PhaseIsEmpty(%s) = false on new model", p)
		}
	}
	m.Add(Requirement{Phase: PhaseBuild, Relation: RelationSuggests, Module: "X"})
	if m.PhaseIsEmpty(PhaseBuild) {
		t.Error("PhaseIsEmpty(build) = true after Add")
	}
}

func TestModel_MarshalJSON(t *testing.T) {
	m := New()
	m.Add(Requirement{Phase: PhaseTest, Relation: RelationRequires, Module: "Test::More"})
	m.Add(Requirement{Phase: PhaseRuntime, Relation: RelationRequires, Module: "Plack", Version: "0.9970"})
	m.Add(Requirement{Phase: PhaseRuntime, Relation: RelationRequires, Module: "DBI"})
	m.Add(Requirement{Phase: PhaseRuntime, Relation: RelationConflicts, Module: "Moose", Version: "< 0.8"})

	want := `{"runtime":{"requires":{"Plack":"0.9970","DBI":0},"conflicts":{"Moose":"< 0.8"}},"test":{"requires":{"Test::More":0}}}`

	got, err := m.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if string(got) != want {
		t.Errorf("MarshalJSON() =\n%s\nwant:\n%s", got, want)
	}

	if got := encodeJSON(t, m); got != want {
		t.Errorf("Encode() =\n%s\nwant:\n%s", got, want)
	}
}

// encodeJSON encodes v the way the CLI does, without HTML escaping.
func encodeJSON(t *testing.T, v any) string {
	t.Helper()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func TestModel_MarshalJSONValid(t *testing.T) {
	m := New()
	m.Add(Requirement{Phase: PhaseDevelop, Relation: RelationRequires, Module: "Catalyst::Runtime", Version: "> 5.8000, < 5.9"})
	m.Add(Requirement{Phase: PhaseDevelop, Relation: RelationRecommends, Module: `Odd"Name`, Version: `>= 1 & "2"`})

	got, err := m.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}

	var decoded map[string]map[string]map[string]string
	if err := json.Unmarshal(got, &decoded); err != nil {
		t.Fatalf("Unmarshal(%s) error = %v", got, err)
	}
	want := map[string]map[string]map[string]string{
		"develop": {
			"requires":   {"Catalyst::Runtime": "> 5.8000, < 5.9"},
			"recommends": {`Odd"Name`: `>= 1 & "2"`},
		},
	}
	if diff := cmp.Diff(want, decoded); diff != "" {
		t.Errorf("MarshalJSON() round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestVersion_MarshalJSON(t *testing.T) {
	tests := []struct {
		v    Version
		want string
	}{
		{Any, `0`},
		{"0.9970", `"0.9970"`},
		{"< 0.8", `"< 0.8"`},
	}

	for _, tt := range tests {
		got, err := tt.v.MarshalJSON()
		if err != nil {
			t.Fatalf("MarshalJSON(%q) error = %v", tt.v, err)
		}
		if string(got) != tt.want {
			t.Errorf("MarshalJSON(%q) = %s, want %s", tt.v, got, tt.want)
		}
	}
}

func TestModel_MarshalJSONEmpty(t *testing.T) {
	if got := encodeJSON(t, New()); got != "{}" {
		t.Errorf("Encode() = %s, want {}", got)
	}
}

func TestModel_MarshalYAML(t *testing.T) {
	m := New()
	m.Add(Requirement{Phase: PhaseConfigure, Relation: RelationRequires, Module: "ExtUtils::MakeMaker", Version: "5.5"})
	m.Add(Requirement{Phase: PhaseRuntime, Relation: RelationRequires, Module: "DBI"})

	got, err := yaml.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `configure:
    requires:
        ExtUtils::MakeMaker: "5.5"
runtime:
    requires:
        DBI: 0
`
	if string(got) != want {
		t.Errorf("Marshal() =\n%s\nwant:\n%s", got, want)
	}
}

func TestParsePhase(t *testing.T) {
	tests := []struct {
		input string
		want  Phase
		ok    bool
	}{
		{"runtime", PhaseRuntime, true},
		{"Test", PhaseTest, true},
		{" develop ", PhaseDevelop, true},
		{"configure", PhaseConfigure, true},
		{"build", PhaseBuild, true},
		{"deploy", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParsePhase(tt.input)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ParsePhase(%q) = %q, %v, want %q, %v", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestNewVersion(t *testing.T) {
	tests := []struct {
		input  string
		want   Version
		string string
	}{
		{"", Any, "0"},
		{"0", Any, "0"},
		{" 1.0 ", "1.0", "1.0"},
		{">= 2.0, < 3.0", ">= 2.0, < 3.0", ">= 2.0, < 3.0"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := NewVersion(tt.input)
			if got != tt.want {
				t.Errorf("NewVersion(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if got.String() != tt.string {
				t.Errorf("String() = %q, want %q", got.String(), tt.string)
			}
		})
	}
}
