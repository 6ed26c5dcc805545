package cpanfile

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokString
	tokComma
	tokFatComma
	tokSemicolon
	tokLBrace
	tokRBrace
	tokComment
	tokInvalid
)

var tokenNames = map[tokenKind]string{
	tokEOF:       "end of input",
	tokWord:      "word",
	tokString:    "quoted string",
	tokComma:     "','",
	tokFatComma:  "'=>'",
	tokSemicolon: "';'",
	tokLBrace:    "'{'",
	tokRBrace:    "'}'",
	tokComment:   "comment",
	tokInvalid:   "invalid token",
}

func (k tokenKind) String() string { return tokenNames[k] }

// token is one lexical unit. For strings, text holds the unquoted value.
type token struct {
	kind tokenKind
	text string
	pos  Pos
}

// scanner splits cpanfile source into tokens. It tracks line and column
// and can be rewound to any earlier mark.
type scanner struct {
	input string
	pos   int
	line  int
	col   int
}

func newScanner(src string) *scanner {
	return &scanner{input: src, line: 1, col: 1}
}

type mark struct {
	pos, line, col int
}

func (s *scanner) mark() mark { return mark{s.pos, s.line, s.col} }

func (s *scanner) reset(m mark) { s.pos, s.line, s.col = m.pos, m.line, m.col }

func (s *scanner) position() Pos {
	return Pos{Offset: s.pos, Line: s.line, Column: s.col}
}

func (s *scanner) eof() bool { return s.pos >= len(s.input) }

func (s *scanner) peek() rune {
	if s.eof() {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(s.input[s.pos:])
	return r
}

func (s *scanner) peekN(n int) string {
	if s.pos+n > len(s.input) {
		return s.input[s.pos:]
	}
	return s.input[s.pos : s.pos+n]
}

func (s *scanner) advance() {
	if s.eof() {
		return
	}
	r, size := utf8.DecodeRuneInString(s.input[s.pos:])
	s.pos += size
	if r == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
}

func (s *scanner) skipSpace() {
	for !s.eof() && unicode.IsSpace(s.peek()) {
		s.advance()
	}
}

// next returns the next token, skipping leading whitespace.
func (s *scanner) next() token {
	s.skipSpace()
	pos := s.position()
	if s.eof() {
		return token{kind: tokEOF, pos: pos}
	}

	switch ch := s.peek(); {
	case ch == '#':
		start := s.pos
		for !s.eof() && s.peek() != '\n' {
			s.advance()
		}
		return token{kind: tokComment, text: s.input[start:s.pos], pos: pos}
	case ch == '\'' || ch == '"':
		text, ok := s.scanString(ch)
		if !ok {
			return token{kind: tokInvalid, text: "unterminated string", pos: pos}
		}
		return token{kind: tokString, text: text, pos: pos}
	case ch == ',':
		s.advance()
		return token{kind: tokComma, text: ",", pos: pos}
	case ch == ';':
		s.advance()
		return token{kind: tokSemicolon, text: ";", pos: pos}
	case ch == '{':
		s.advance()
		return token{kind: tokLBrace, text: "{", pos: pos}
	case ch == '}':
		s.advance()
		return token{kind: tokRBrace, text: "}", pos: pos}
	case s.peekN(2) == "=>":
		s.advance()
		s.advance()
		return token{kind: tokFatComma, text: "=>", pos: pos}
	}

	start := s.pos
	for !s.eof() && isWordRune(s.peek()) && s.peekN(2) != "=>" {
		s.advance()
	}
	return token{kind: tokWord, text: s.input[start:s.pos], pos: pos}
}

// scanString reads a quoted run. A backslash escapes the next character.
func (s *scanner) scanString(quote rune) (string, bool) {
	m := s.mark()
	s.advance() // opening quote

	var sb strings.Builder
	for !s.eof() {
		ch := s.peek()
		if ch == '\\' {
			s.advance()
			if s.eof() {
				break
			}
			next := s.peek()
			if next != quote && next != '\\' {
				sb.WriteRune('\\')
			}
			sb.WriteRune(next)
			s.advance()
			continue
		}
		if ch == quote {
			s.advance()
			return sb.String(), true
		}
		sb.WriteRune(ch)
		s.advance()
	}

	s.reset(m)
	return "", false
}

// skipConstruct consumes input up to and including the next ';' or newline
// and returns the skipped text. Quoted runs closed on the same line are
// stepped over.
func (s *scanner) skipConstruct() string {
	start := s.pos
	for !s.eof() {
		ch := s.peek()
		switch {
		case ch == '\n' || ch == ';':
			text := s.input[start:s.pos]
			s.advance()
			return strings.TrimSpace(text)
		case ch == '\'' || ch == '"':
			if end := strings.IndexAny(s.input[s.pos+1:], string(ch)+"\n"); end >= 0 && s.input[s.pos+1+end] == byte(ch) {
				for target := s.pos + end + 2; s.pos < target; {
					s.advance()
				}
				continue
			}
		}
		s.advance()
	}
	return strings.TrimSpace(s.input[start:s.pos])
}

func isWordRune(r rune) bool {
	if unicode.IsSpace(r) {
		return false
	}
	switch r {
	case '\'', '"', ',', ';', '{', '}', '#':
		return false
	}
	return true
}
