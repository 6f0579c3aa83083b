package imports

import (
	"unicode"
	"unicode/utf8"
)

// tokenKind classifies a lexical token.
type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokTemplate
	tokPunct
)

// token is a lexical unit with its byte span in the source.
type token struct {
	kind  tokenKind
	value string // identifier text, unquoted string contents, or punctuation
	start int
	end   int
}

// tokenizer is a small state machine over JavaScript/TypeScript source text.
// It only understands enough of the language to find import statements:
// identifiers, quoted strings, template literals, comments and punctuation.
type tokenizer struct {
	src string
	pos int
	// substitutions holds the brace depth of each open ${...}, innermost last.
	substitutions []int
}

func newTokenizer(src string) *tokenizer {
	return &tokenizer{src: src}
}

// tokenize returns all tokens in the source. Comments and whitespace are dropped.
func (t *tokenizer) tokenize() []token {
	var toks []token
	for {
		tok, ok := t.next()
		if !ok {
			return toks
		}
		toks = append(toks, tok)
	}
}

func (t *tokenizer) peekRune(offset int) rune {
	p := t.pos + offset
	if p >= len(t.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(t.src[p:])
	return r
}

func (t *tokenizer) next() (token, bool) {
	for t.pos < len(t.src) {
		r, size := utf8.DecodeRuneInString(t.src[t.pos:])
		switch {
		case unicode.IsSpace(r):
			t.pos += size
		case r == '/' && t.peekRune(1) == '/':
			t.skipLineComment()
		case r == '/' && t.peekRune(1) == '*':
			t.skipBlockComment()
		case r == '\'' || r == '"':
			if tok, ok := t.readString(r); ok {
				return tok, true
			}
		case r == '`':
			return t.readTemplate(), true
		case isIdentStart(r):
			return t.readIdent(), true
		default:
			return t.punct(size), true
		}
	}
	return token{}, false
}

func (t *tokenizer) skipLineComment() {
	for t.pos < len(t.src) && t.src[t.pos] != '\n' {
		t.pos++
	}
}

func (t *tokenizer) skipBlockComment() {
	t.pos += 2
	for t.pos < len(t.src) {
		if t.src[t.pos] == '*' && t.pos+1 < len(t.src) && t.src[t.pos+1] == '/' {
			t.pos += 2
			return
		}
		t.pos++
	}
}

// readString consumes a single- or double-quoted literal. Such literals cannot
// span lines, so an unterminated string ends at the newline and yields no token.
func (t *tokenizer) readString(quote rune) (token, bool) {
	start := t.pos
	t.pos++
	var buf []byte
	for t.pos < len(t.src) {
		c := t.src[t.pos]
		switch {
		case c == '\\' && t.pos+1 < len(t.src):
			if t.src[t.pos+1] == '\n' {
				t.pos += 2
				continue
			}
			buf = append(buf, t.src[t.pos+1])
			t.pos += 2
		case c == '\n':
			return token{}, false
		case rune(c) == quote:
			t.pos++
			return token{kind: tokString, value: string(buf), start: start, end: t.pos}, true
		default:
			buf = append(buf, c)
			t.pos++
		}
	}
	return token{}, false
}

// readTemplate consumes the text of a template literal up to its closing
// backtick or its first ${ substitution. The substitution body is tokenized
// like ordinary code; its closing brace resumes the template text.
func (t *tokenizer) readTemplate() token {
	start := t.pos
	t.pos++
	return t.scanTemplate(start)
}

func (t *tokenizer) scanTemplate(start int) token {
	for t.pos < len(t.src) {
		c := t.src[t.pos]
		switch {
		case c == '\\':
			t.pos += 2
		case c == '`':
			t.pos++
			return token{kind: tokTemplate, start: start, end: t.pos}
		case c == '$' && t.pos+1 < len(t.src) && t.src[t.pos+1] == '{':
			t.pos += 2
			t.substitutions = append(t.substitutions, 0)
			return token{kind: tokTemplate, start: start, end: t.pos}
		default:
			t.pos++
		}
	}
	if t.pos > len(t.src) {
		t.pos = len(t.src)
	}
	return token{kind: tokTemplate, start: start, end: t.pos}
}

// punct emits a punctuation token, tracking brace depth inside an open
// template substitution.
func (t *tokenizer) punct(size int) token {
	start := t.pos
	t.pos += size
	if n := len(t.substitutions); n > 0 {
		switch t.src[start] {
		case '{':
			t.substitutions[n-1]++
		case '}':
			if t.substitutions[n-1] == 0 {
				t.substitutions = t.substitutions[:n-1]
				return t.scanTemplate(start)
			}
			t.substitutions[n-1]--
		}
	}
	return token{kind: tokPunct, value: t.src[start:t.pos], start: start, end: t.pos}
}

func (t *tokenizer) readIdent() token {
	start := t.pos
	for t.pos < len(t.src) {
		r, size := utf8.DecodeRuneInString(t.src[t.pos:])
		if !IsIdentRune(r) {
			break
		}
		t.pos += size
	}
	return token{kind: tokIdent, value: t.src[start:t.pos], start: start, end: t.pos}
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

// IsIdentRune reports whether r may appear inside a JavaScript identifier.
func IsIdentRune(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}
