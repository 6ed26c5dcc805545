package cpanfile

import (
	"fmt"
	"strings"
)

// Grammar of the supported cpanfile subset. Whitespace and newlines may
// appear between any two tokens.
//
//	file         := { statement | block | comment }
//	statement    := keyword moduleClause { sep value } terminator
//	keyword      := 'requires' | 'recommends' | 'conflicts' | 'suggests'
//	              | 'configure_requires' | 'build_requires'
//	              | 'test_requires' | 'author_requires'
//	moduleClause := moduleName [ sep version ]
//	moduleName   := quoted | bare
//	version      := number | quoted
//	sep          := ',' | '=>'
//	block        := 'on' phaseName sep 'sub' '{' { statement | comment } '}' terminator
//	phaseName    := quoted | bare
//	comment      := '#' { any character except newline }
//	terminator   := ';'
//
// Arguments after the module name follow Module::CPANfile: with an odd
// count the first one is the version and the rest are key/value options.
// Constructs that match no rule are skipped and reported as diagnostics.
// A block whose body holds anything but statements and comments does not
// match; its body is then read at top level like any other text.

var statementKeywords = map[string]bool{
	"requires":           true,
	"recommends":         true,
	"conflicts":          true,
	"suggests":           true,
	"configure_requires": true,
	"build_requires":     true,
	"test_requires":      true,
	"author_requires":    true,
}

const blockKeyword = "on"

type syntaxError struct {
	pos Pos
	msg string

	// resume is set when a block failed after its opening brace.
	resume *mark
}

func (e *syntaxError) Error() string {
	return fmt.Sprintf("%s: %s", e.pos, e.msg)
}

type grammar struct {
	s     *scanner
	diags []Diagnostic
}

// ParseTree parses src into a tree of statements, blocks and comments.
// Unrecognized text is skipped; each skip is returned as a Diagnostic.
func ParseTree(src string) (*File, []Diagnostic) {
	g := &grammar{s: newScanner(src)}
	return g.parseFile(), g.diags
}

func (g *grammar) parseFile() *File {
	f := &File{}
	for {
		g.s.skipSpace()
		if g.s.eof() {
			return f
		}

		start := g.s.mark()
		startPos := g.s.position()

		n, err := g.parseTopLevel()
		if err != nil {
			g.recover(start, startPos, err)
			continue
		}
		f.Nodes = append(f.Nodes, n)
	}
}

// recover reports a failed top-level construct and moves past it. A block
// that failed after its opening brace resumes right after the brace.
func (g *grammar) recover(start mark, pos Pos, err error) {
	se, ok := err.(*syntaxError)
	if ok && se.resume != nil {
		text := strings.TrimSpace(g.s.input[start.pos:se.resume.pos])
		g.s.reset(*se.resume)
		g.diags = append(g.diags, Diagnostic{Pos: pos, Msg: se.msg, Text: text})
		return
	}
	g.s.reset(start)
	g.skip(pos, err)
}

func (g *grammar) parseTopLevel() (Node, error) {
	tok := g.s.next()
	switch {
	case tok.kind == tokComment:
		return commentNode(tok), nil
	case tok.kind == tokWord && tok.text == blockKeyword:
		return g.parseBlock(tok)
	case tok.kind == tokWord && statementKeywords[tok.text]:
		return g.parseStatement(tok)
	}
	return nil, unexpected(tok, "statement")
}

func (g *grammar) parseStatement(kw token) (*Statement, error) {
	st := &Statement{Keyword: kw.text, Pos: kw.pos}

	module, args, err := g.parseModuleClause()
	if err != nil {
		return nil, err
	}
	st.Module = module

	if len(args)%2 == 1 {
		version, err := parseVersion(args[0])
		if err != nil {
			return nil, err
		}
		st.Version = version
		st.HasVersion = true
		args = args[1:]
	}
	for i := 0; i+1 < len(args); i += 2 {
		st.Args = append(st.Args, Arg{Key: args[i].text, Value: args[i+1].text})
	}

	return st, nil
}

// parseModuleClause reads the module name and every separated argument up
// to and including the statement terminator.
func (g *grammar) parseModuleClause() (string, []token, error) {
	module, err := parseModuleName(g.nextSignificant())
	if err != nil {
		return "", nil, err
	}

	var args []token
	for {
		tok := g.peekSignificant()
		if tok.kind != tokComma && tok.kind != tokFatComma {
			return module, args, g.parseTerminator("statement")
		}
		g.nextSignificant()

		// Perl tolerates a trailing separator before the terminator.
		switch next := g.peekSignificant(); next.kind {
		case tokSemicolon:
			return module, args, g.parseTerminator("statement")
		case tokWord, tokString:
			args = append(args, g.nextSignificant())
		default:
			return "", nil, unexpected(next, "value")
		}
	}
}

func parseModuleName(tok token) (string, error) {
	if (tok.kind != tokWord && tok.kind != tokString) || tok.text == "" {
		return "", unexpected(tok, "module name")
	}
	return tok.text, nil
}

func parseVersion(tok token) (string, error) {
	if tok.kind == tokString || (tok.kind == tokWord && isNumber(tok.text)) {
		return tok.text, nil
	}
	return "", unexpected(tok, "version")
}

func (g *grammar) parseBlock(on token) (*Block, error) {
	phase := g.nextSignificant()
	if (phase.kind != tokWord && phase.kind != tokString) || phase.text == "" {
		return nil, unexpected(phase, "phase name")
	}
	if sep := g.nextSignificant(); sep.kind != tokComma && sep.kind != tokFatComma {
		return nil, unexpected(sep, "'=>'")
	}
	if sub := g.nextSignificant(); sub.kind != tokWord || sub.text != "sub" {
		return nil, unexpected(sub, "'sub'")
	}
	if lb := g.nextSignificant(); lb.kind != tokLBrace {
		return nil, unexpected(lb, "'{'")
	}

	body := g.s.mark()
	blk := &Block{Phase: phase.text, Pos: on.pos}
	for {
		g.s.skipSpace()
		if g.s.eof() {
			return nil, &syntaxError{pos: on.pos, msg: "unterminated block", resume: &body}
		}
		if g.s.peek() == '}' {
			g.s.advance()
			break
		}

		n, err := g.parseBlockItem()
		if err != nil {
			return nil, bodyError(err, body, "invalid block body: ")
		}
		blk.Body = append(blk.Body, n)
	}

	if err := g.parseTerminator("block"); err != nil {
		return nil, bodyError(err, body, "")
	}
	return blk, nil
}

func bodyError(err error, body mark, prefix string) error {
	se, ok := err.(*syntaxError)
	if !ok {
		se = &syntaxError{msg: err.Error()}
	}
	return &syntaxError{pos: se.pos, msg: prefix + se.msg, resume: &body}
}

func (g *grammar) parseBlockItem() (Node, error) {
	tok := g.s.next()
	switch {
	case tok.kind == tokComment:
		return commentNode(tok), nil
	case tok.kind == tokWord && statementKeywords[tok.text]:
		return g.parseStatement(tok)
	}
	return nil, unexpected(tok, "statement")
}

// parseTerminator consumes the ';' that ends a statement or block.
func (g *grammar) parseTerminator(what string) error {
	tok := g.peekSignificant()
	if tok.kind != tokSemicolon {
		return unexpected(tok, fmt.Sprintf("';' after %s", what))
	}
	g.nextSignificant()
	return nil
}

// nextSignificant returns the next token that is not a comment.
func (g *grammar) nextSignificant() token {
	for {
		tok := g.s.next()
		if tok.kind != tokComment {
			return tok
		}
	}
}

func (g *grammar) peekSignificant() token {
	m := g.s.mark()
	tok := g.nextSignificant()
	g.s.reset(m)
	return tok
}

func (g *grammar) skip(pos Pos, err error) {
	msg := err.Error()
	if se, ok := err.(*syntaxError); ok {
		msg = se.msg
	}
	text := g.s.skipConstruct()
	g.diags = append(g.diags, Diagnostic{Pos: pos, Msg: msg, Text: text})
}

func commentNode(tok token) *Comment {
	return &Comment{Text: tok.text[1:], Pos: tok.pos}
}

func unexpected(tok token, want string) error {
	if tok.kind == tokInvalid {
		return &syntaxError{pos: tok.pos, msg: tok.text}
	}
	found := tok.kind.String()
	if tok.kind == tokWord || tok.kind == tokString {
		found = fmt.Sprintf("%q", tok.text)
	}
	return &syntaxError{pos: tok.pos, msg: fmt.Sprintf("expected %s, found %s", want, found)}
}

// isNumber reports whether s is a bare version number such as 5.5, 0.9970,
// 1.23_01 or v5.10.1.
func isNumber(s string) bool {
	if len(s) > 1 && s[0] == 'v' {
		s = s[1:]
	}
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.' || r == '_':
		default:
			return false
		}
	}
	return digits > 0
}
