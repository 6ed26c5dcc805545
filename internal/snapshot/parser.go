package snapshot

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// Dist is one distribution entry of a snapshot.
type Dist struct {
	Name         string            // e.g., "Module-Name-1.23"
	Pathname     string            // e.g., "A/AU/AUTHOR/Module-Name-1.23.tar.gz"
	Provides     map[string]string // module -> version
}

var (
	distNameRe  = regexp.MustCompile(`^  (\S+)$`)
	pathnameRe  = regexp.MustCompile(`^    pathname: (.+)$`)
	providesRe  = regexp.MustCompile(`^    provides:$`)
	requiresRe  = regexp.MustCompile(`^    requirements:$`)
	moduleVerRe = regexp.MustCompile(`^      (\S+) (.+)$`)
)

type section int

const (
	sectionNone section = iota
	sectionProvides
	sectionSkipped
)

// Parser reads cpanfile.snapshot files in Carton v1.0 format.
type Parser struct {
	r io.Reader
}

// NewParser creates a new snapshot parser.
func NewParser(r io.Reader) *Parser {
	return &Parser{r: r}
}

// ParseFile reads the snapshot at path.
func ParseFile(path string) ([]*Dist, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer file.Close()

	return NewParser(file).Parse()
}

// Parse reads every distribution from the snapshot.
func (p *Parser) Parse() ([]*Dist, error) {
	var dists []*Dist
	var current *Dist
	in := sectionNone

	scanner := bufio.NewScanner(p.r)
	for scanner.Scan() {
		line := scanner.Text()

		if line == "" || line == "DISTRIBUTIONS" || strings.HasPrefix(line, "#") {
			continue
		}

		if m := distNameRe.FindStringSubmatch(line); m != nil {
			current = &Dist{
				Name:     m[1],
				Provides: make(map[string]string),
			}
			dists = append(dists, current)
			in = sectionNone
			continue
		}
		if current == nil {
			continue
		}

		switch {
		case pathnameRe.MatchString(line):
			current.Pathname = pathnameRe.FindStringSubmatch(line)[1]
		case providesRe.MatchString(line):
			in = sectionProvides
		case requiresRe.MatchString(line):
			// A distribution's own requirements are not needed to
			// check what the snapshot provides.
			in = sectionSkipped
		default:
			m := moduleVerRe.FindStringSubmatch(line)
			if m != nil && in == sectionProvides {
				current.Provides[m[1]] = m[2]
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	return dists, nil
}
