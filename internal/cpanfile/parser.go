package cpanfile

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/frederic-klein/cpanfile/internal/prereqs"
)

// ErrDiagnostics is returned by Result.Err when text was skipped.
var ErrDiagnostics = errors.New("cpanfile contains unrecognized text")

type keywordRule struct {
	phase    prereqs.Phase
	relation prereqs.Relation
}

// keywordRules gives the phase and relation each statement keyword implies
// outside of a phase block.
var keywordRules = map[string]keywordRule{
	"requires":           {prereqs.DefaultPhase, prereqs.RelationRequires},
	"recommends":         {prereqs.DefaultPhase, prereqs.RelationRecommends},
	"conflicts":          {prereqs.DefaultPhase, prereqs.RelationConflicts},
	"suggests":           {prereqs.DefaultPhase, prereqs.RelationSuggests},
	"configure_requires": {prereqs.PhaseConfigure, prereqs.RelationRequires},
	"build_requires":     {prereqs.PhaseBuild, prereqs.RelationRequires},
	"test_requires":      {prereqs.PhaseTest, prereqs.RelationRequires},
	"author_requires":    {prereqs.PhaseDevelop, prereqs.RelationRequires},
}

// Parser parses cpanfile DSL.
type Parser struct {
	logger *slog.Logger
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithLogger makes the parser log every skipped construct as a warning.
func WithLogger(logger *slog.Logger) ParserOption {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewParser creates a new cpanfile parser.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result contains the parsed requirements and everything that was skipped
// while producing them.
type Result struct {
	Model       *prereqs.Model
	Diagnostics []Diagnostic
}

// Err returns nil when nothing was skipped and an error wrapping
// ErrDiagnostics otherwise.
func (r *Result) Err() error {
	if len(r.Diagnostics) == 0 {
		return nil
	}
	first := r.Diagnostics[0]
	return fmt.Errorf("%w: %d construct(s) skipped, first at %s", ErrDiagnostics, len(r.Diagnostics), first)
}

// Parse parses cpanfile text with a default Parser.
func Parse(text string) *Result {
	return NewParser().ParseString(text)
}

// ParseString parses cpanfile text. It never fails: text that matches no
// grammar rule is skipped and reported in Result.Diagnostics.
func (p *Parser) ParseString(text string) *Result {
	tree, diags := ParseTree(text)

	b := &builder{model: prereqs.New(), diags: diags}
	for _, n := range tree.Nodes {
		b.visit(n, "")
	}

	sort.SliceStable(b.diags, func(i, j int) bool {
		return b.diags[i].Pos.Offset < b.diags[j].Pos.Offset
	})
	for _, d := range b.diags {
		p.logger.Warn("skipped cpanfile text",
			slog.String("pos", d.Pos.String()),
			slog.String("reason", d.Msg),
			slog.String("text", d.Text))
	}

	return &Result{Model: b.model, Diagnostics: b.diags}
}

// ParseReader parses cpanfile text read from r.
func (p *Parser) ParseReader(r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading cpanfile: %w", err)
	}
	return p.ParseString(string(data)), nil
}

// ParseFile parses the cpanfile at path.
func (p *Parser) ParseFile(path string) (*Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening cpanfile: %w", err)
	}
	defer file.Close()

	p.logger.Debug("parsing cpanfile", slog.String("path", path))
	fp := *p
	fp.logger = p.logger.With(slog.String("file", path))
	return fp.ParseReader(file)
}

// builder folds a parse tree into a model.
type builder struct {
	model *prereqs.Model
	diags []Diagnostic
}

// visit adds the requirements of n. blockPhase is empty at top level.
func (b *builder) visit(n Node, blockPhase prereqs.Phase) {
	switch n := n.(type) {
	case *Statement:
		b.model.Add(requirement(n, blockPhase))
	case *Block:
		phase, ok := prereqs.ParsePhase(n.Phase)
		if !ok {
			b.diags = append(b.diags, Diagnostic{
				Pos: n.Pos,
				Msg: fmt.Sprintf("unknown phase %q", n.Phase),
			})
			return
		}
		for _, inner := range n.Body {
			b.visit(inner, phase)
		}
	}
}

// requirement converts a statement; a block phase overrides the phase the
// keyword implies.
func requirement(st *Statement, blockPhase prereqs.Phase) prereqs.Requirement {
	rule := keywordRules[st.Keyword]
	phase := rule.phase
	if blockPhase != "" {
		phase = blockPhase
	}

	version := prereqs.Any
	if st.HasVersion {
		version = prereqs.NewVersion(st.Version)
	}

	return prereqs.Requirement{
		Phase:    phase,
		Relation: rule.relation,
		Module:   st.Module,
		Version:  version,
	}
}
