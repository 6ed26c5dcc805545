// Package meta reads the prerequisites of a CPAN distribution from its
// META.json or META.yml, either on disk or inside a release tarball.
package meta

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/frederic-klein/cpanfile/internal/prereqs"
)

// ErrNoMeta is returned when a tarball holds no META file.
var ErrNoMeta = errors.New("no META.json or META.yml found")

// FlexVersion handles JSON/YAML values that can be string or number.
type FlexVersion string

func (v *FlexVersion) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = FlexVersion(s)
		return nil
	}
	// Keep numbers as written: 1.10 must not become 1.1.
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*v = FlexVersion(n.String())
		return nil
	}
	*v = "0"
	return nil
}

func (v *FlexVersion) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.ShortTag() != "!!null" {
		*v = FlexVersion(node.Value)
		return nil
	}
	*v = "0"
	return nil
}

type relationMap = map[string]map[string]FlexVersion

// metaFile is the subset of CPAN::Meta 1.x and 2 fields that carry
// prerequisites.
type metaFile struct {
	Name    string                 `json:"name" yaml:"name"`
	Version FlexVersion            `json:"version" yaml:"version"`
	Prereqs map[string]relationMap `json:"prereqs" yaml:"prereqs"`

	// META 1.x
	Requires          map[string]FlexVersion `json:"requires" yaml:"requires"`
	BuildRequires     map[string]FlexVersion `json:"build_requires" yaml:"build_requires"`
	ConfigureRequires map[string]FlexVersion `json:"configure_requires" yaml:"configure_requires"`
	Recommends        map[string]FlexVersion `json:"recommends" yaml:"recommends"`
	Conflicts         map[string]FlexVersion `json:"conflicts" yaml:"conflicts"`
}

// Meta is a decoded META file.
type Meta struct {
	Name    string
	Version string
	Prereqs *prereqs.Model
}

// ParseJSON decodes META.json or MYMETA.json content.
func ParseJSON(data []byte) (*Meta, error) {
	var f metaFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing META.json: %w", err)
	}
	return f.meta(), nil
}

// ParseYAML decodes META.yml or MYMETA.yml content.
func ParseYAML(data []byte) (*Meta, error) {
	var f metaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing META.yml: %w", err)
	}
	return f.meta(), nil
}

func (f *metaFile) meta() *Meta {
	m := prereqs.New()

	legacy := []struct {
		phase    prereqs.Phase
		relation prereqs.Relation
		modules  map[string]FlexVersion
	}{
		{prereqs.PhaseConfigure, prereqs.RelationRequires, f.ConfigureRequires},
		{prereqs.PhaseBuild, prereqs.RelationRequires, f.BuildRequires},
		{prereqs.PhaseRuntime, prereqs.RelationRequires, f.Requires},
		{prereqs.PhaseRuntime, prereqs.RelationRecommends, f.Recommends},
		{prereqs.PhaseRuntime, prereqs.RelationConflicts, f.Conflicts},
	}
	for _, l := range legacy {
		addModules(m, l.phase, l.relation, l.modules)
	}

	for _, phase := range prereqs.Phases() {
		rels, ok := f.Prereqs[string(phase)]
		if !ok {
			continue
		}
		for _, rel := range prereqs.Relations() {
			addModules(m, phase, rel, rels[string(rel)])
		}
	}

	return &Meta{Name: f.Name, Version: string(f.Version), Prereqs: m}
}

// addModules adds modules in name order so output is stable.
func addModules(m *prereqs.Model, phase prereqs.Phase, rel prereqs.Relation, modules map[string]FlexVersion) {
	names := make([]string, 0, len(modules))
	for name := range modules {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		m.Add(prereqs.Requirement{
			Phase:    phase,
			Relation: rel,
			Module:   name,
			Version:  prereqs.NewVersion(string(modules[name])),
		})
	}
}

// ReadFile reads a META.json, META.yml or distribution tarball.
func ReadFile(path string) (*Meta, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz"):
		return ReadDist(path)
	case strings.HasSuffix(lower, ".json"):
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
		}
		return ParseJSON(data)
	case strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".yaml"):
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
		}
		return ParseYAML(data)
	}
	return nil, fmt.Errorf("unsupported META source %s", path)
}

// metaFiles lists the top-level files ReadDist looks for, most preferred
// first. MYMETA files carry resolved dynamic prerequisites.
var metaFiles = []string{"MYMETA.json", "MYMETA.yml", "META.json", "META.yml"}

// ReadDist reads the META file from a .tar.gz distribution. Configure
// scripts are never run.
func ReadDist(tarballPath string) (*Meta, error) {
	file, err := os.Open(tarballPath)
	if err != nil {
		return nil, fmt.Errorf("opening tarball: %w", err)
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("decompressing tarball: %w", err)
	}
	defer gzReader.Close()

	found := make(map[string][]byte)
	tarReader := tar.NewReader(gzReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading tarball: %w", err)
		}

		// Only top-level files (one directory deep)
		parts := strings.Split(header.Name, "/")
		if len(parts) != 2 {
			continue
		}
		name := parts[1]
		for _, want := range metaFiles {
			if name != want {
				continue
			}
			data, err := io.ReadAll(tarReader)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", name, err)
			}
			found[name] = data
		}
	}

	for _, name := range metaFiles {
		data, ok := found[name]
		if !ok {
			continue
		}
		if strings.HasSuffix(name, ".json") {
			return ParseJSON(data)
		}
		return ParseYAML(data)
	}

	return nil, fmt.Errorf("%s: %w", filepath.Base(tarballPath), ErrNoMeta)
}
