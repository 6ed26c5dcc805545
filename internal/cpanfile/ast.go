package cpanfile

import "fmt"

// Pos is a location in the cpanfile source. Line and Column start at 1.
type Pos struct {
	Offset int
	Line   int
	Column int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Node is one construct of a cpanfile: *Statement, *Block or *Comment.
type Node interface {
	Position() Pos
	node()
}

// File is the parse tree of a whole cpanfile.
type File struct {
	Nodes []Node
}

// Arg is a trailing key/value argument of a statement, such as
// dist => 'A/AU/AUTHOR/Dist-1.0.tar.gz'.
type Arg struct {
	Key   string
	Value string
}

// Statement is a single dependency declaration, e.g. requires 'JSON', '2.0';
type Statement struct {
	Keyword    string
	Module     string
	Version    string
	HasVersion bool
	Args       []Arg
	Pos        Pos
}

// Block is an on '<phase>' => sub { ... }; construct.
type Block struct {
	Phase string
	Body  []Node
	Pos   Pos
}

// Comment is a # comment running to the end of its line.
type Comment struct {
	Text string
	Pos  Pos
}

func (s *Statement) Position() Pos { return s.Pos }
func (b *Block) Position() Pos     { return b.Pos }
func (c *Comment) Position() Pos   { return c.Pos }

func (*Statement) node() {}
func (*Block) node()     {}
func (*Comment) node()   {}

// Diagnostic reports source text that was skipped because no grammar rule
// matched it. Diagnostics never stop a parse.
type Diagnostic struct {
	Pos  Pos
	Msg  string
	Text string
}

func (d Diagnostic) String() string {
	if d.Text == "" {
		return fmt.Sprintf("%s: %s", d.Pos, d.Msg)
	}
	return fmt.Sprintf("%s: %s: %q", d.Pos, d.Msg, d.Text)
}
