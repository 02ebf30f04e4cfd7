package rustsrc

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Lexer turns source text into a flat slice of Tokens. Whitespace is
// skipped; every line or block comment is lexed as a Doc token, and
// Tokenize drops those, so its result carries no comments.
type Lexer struct {
	src  string
	pos  int
	line int
	col  int
}

// NewLexer returns a Lexer positioned at the start of src.
func NewLexer(src string) *Lexer {
	return &Lexer{src: src, line: 1, col: 1}
}

// Tokenize lexes the entire source and returns the resulting tokens,
// terminated by a single EOF token.
func Tokenize(src string) ([]Token, error) {
	l := NewLexer(src)
	var toks []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == Doc {
			continue
		}
		toks = append(toks, tok)
		if tok.Kind == EOF {
			break
		}
	}
	return toks, nil
}

func (l *Lexer) position() Position {
	return Position{Offset: l.pos, Line: l.line, Col: l.col}
}

func (l *Lexer) peekByte() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekByteAt(n int) byte {
	if l.pos+n >= len(l.src) {
		return 0
	}
	return l.src[l.pos+n]
}

func (l *Lexer) advance() byte {
	b := l.src[l.pos]
	l.pos++
	if b == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return b
}

func (l *Lexer) eof() bool { return l.pos >= len(l.src) }

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }
func isIdentCont(r rune) bool  { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }

func (l *Lexer) skipWhitespaceAndComments() (Token, bool, error) {
	for !l.eof() {
		switch {
		case l.peekByte() == ' ' || l.peekByte() == '\t' || l.peekByte() == '\n' || l.peekByte() == '\r':
			l.advance()
		case l.peekByte() == '/' && l.peekByteAt(1) == '/':
			start := l.position()
			for !l.eof() && l.peekByte() != '\n' {
				l.advance()
			}
			return Token{Kind: Doc, Pos: start, End: l.position()}, true, nil
		case l.peekByte() == '/' && l.peekByteAt(1) == '*':
			start := l.position()
			l.advance()
			l.advance()
			depth := 1
			for !l.eof() && depth > 0 {
				if l.peekByte() == '/' && l.peekByteAt(1) == '*' {
					l.advance()
					l.advance()
					depth++
				} else if l.peekByte() == '*' && l.peekByteAt(1) == '/' {
					l.advance()
					l.advance()
					depth--
				} else {
					l.advance()
				}
			}
			if depth > 0 {
				return Token{}, false, fmt.Errorf("unterminated block comment at %d:%d", start.Line, start.Col)
			}
			return Token{Kind: Doc, Pos: start, End: l.position()}, true, nil
		default:
			return Token{}, false, nil
		}
	}
	return Token{}, false, nil
}

func (l *Lexer) next() (Token, error) {
	for {
		tok, isComment, err := l.skipWhitespaceAndComments()
		if err != nil {
			return Token{}, err
		}
		if isComment {
			return tok, nil
		}
		break
	}

	start := l.position()
	if l.eof() {
		return Token{Kind: EOF, Pos: start, End: start}, nil
	}

	r, _ := utf8.DecodeRuneInString(l.src[l.pos:])

	// Raw identifier / raw string: r#ident, r"...", r#"..."#.
	if r == 'r' && (l.peekByteAt(1) == '#' || l.peekByteAt(1) == '"') {
		if tok, ok, err := l.lexRawPrefixed(start); ok || err != nil {
			return tok, err
		}
	}
	// byte string b"...", byte char b'...'
	if r == 'b' && (l.peekByteAt(1) == '"' || l.peekByteAt(1) == '\'') {
		return l.lexByteLiteral(start)
	}

	switch {
	case isIdentStart(r):
		return l.lexIdent(start)
	case r == '\'':
		return l.lexQuoteOrLifetime(start)
	case r == '"':
		return l.lexString(start)
	case unicode.IsDigit(r):
		return l.lexNumber(start)
	default:
		return l.lexPunct(start)
	}
}

func (l *Lexer) lexIdent(start Position) (Token, error) {
	var b strings.Builder
	for !l.eof() {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !isIdentCont(r) {
			break
		}
		b.WriteRune(r)
		for i := 0; i < size; i++ {
			l.advance()
		}
	}
	return Token{Kind: Ident, Text: b.String(), Pos: start, End: l.position()}, nil
}

// lexRawPrefixed attempts r#ident / r"..." / r#"..."#. Returns ok=false if
// the 'r' turns out to start a plain identifier (e.g. "result").
func (l *Lexer) lexRawPrefixed(start Position) (Token, bool, error) {
	save := *l
	l.advance() // 'r'
	if l.peekByte() == '#' {
		// Could be r#ident (raw identifier) or r#"..."# (raw string).
		afterHash := save
		afterHash.advance()
		afterHash.advance()
		if afterHash.pos < len(afterHash.src) && (isIdentStart(rune(afterHash.src[afterHash.pos])) ) {
			// r#ident
			l.advance() // '#'
			var b strings.Builder
			for !l.eof() {
				r, size := utf8.DecodeRuneInString(l.src[l.pos:])
				if !isIdentCont(r) {
					break
				}
				b.WriteRune(r)
				for i := 0; i < size; i++ {
					l.advance()
				}
			}
			return Token{Kind: Ident, Text: b.String(), Raw: true, Pos: start, End: l.position()}, true, nil
		}
	}
	if l.peekByte() == '"' || l.peekByte() == '#' {
		// raw string: r"...", r#"..."#, r##"..."##, ...
		*l = save
		l.advance() // 'r'
		hashes := 0
		for l.peekByte() == '#' {
			l.advance()
			hashes++
		}
		if l.peekByte() != '"' {
			*l = save
			return Token{}, false, nil
		}
		l.advance() // opening quote
		var b strings.Builder
		for {
			if l.eof() {
				return Token{}, false, fmt.Errorf("unterminated raw string at %d:%d", start.Line, start.Col)
			}
			if l.peekByte() == '"' {
				// check for matching number of trailing hashes
				tmp := *l
				tmp.advance()
				n := 0
				for n < hashes && tmp.peekByte() == '#' {
					tmp.advance()
					n++
				}
				if n == hashes {
					*l = tmp
					break
				}
			}
			b.WriteByte(l.advance())
		}
		return Token{Kind: RawStr, Text: b.String(), Pos: start, End: l.position()}, true, nil
	}
	*l = save
	return Token{}, false, nil
}

func (l *Lexer) lexByteLiteral(start Position) (Token, error) {
	l.advance() // 'b'
	if l.peekByte() == '"' {
		tok, err := l.lexString(start)
		tok.Kind = ByteStr
		return tok, err
	}
	// byte char b'x' - treat like a char literal.
	return l.lexQuoteOrLifetime(start)
}

func (l *Lexer) lexQuoteOrLifetime(start Position) (Token, error) {
	save := *l
	l.advance() // opening quote
	// Disambiguate 'a (lifetime) from 'a' (char literal) by lookahead: a
	// lifetime's identifier is not immediately followed by a closing quote,
	// unless it's the reserved 'static.
	if !l.eof() {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if isIdentStart(r) {
			identStart := l.pos
			for !l.eof() {
				rr, sz := utf8.DecodeRuneInString(l.src[l.pos:])
				if !isIdentCont(rr) {
					break
				}
				for i := 0; i < sz; i++ {
					l.advance()
				}
			}
			name := l.src[identStart:l.pos]
			if l.peekByte() == '\'' {
				// char literal like 'a'
				l.advance()
				return Token{Kind: Char, Text: name, Pos: start, End: l.position()}, nil
			}
			return Token{Kind: Lifetime, Text: name, Pos: start, End: l.position()}, nil
		}
		// escaped char literal '\n', '\'' etc, or plain punctuation char.
		*l = save
		l.advance()
		if l.peekByte() == '\\' {
			l.advance()
			if !l.eof() {
				l.advance()
			}
		} else if !l.eof() {
			for i := 0; i < size; i++ {
				l.advance()
			}
		}
		if l.peekByte() == '\'' {
			l.advance()
		}
		return Token{Kind: Char, Pos: start, End: l.position()}, nil
	}
	return Token{Kind: Char, Pos: start, End: l.position()}, nil
}

func (l *Lexer) lexString(start Position) (Token, error) {
	l.advance() // opening quote
	var b strings.Builder
	for {
		if l.eof() {
			return Token{}, fmt.Errorf("unterminated string at %d:%d", start.Line, start.Col)
		}
		c := l.peekByte()
		if c == '"' {
			l.advance()
			break
		}
		if c == '\\' {
			l.advance()
			if l.eof() {
				return Token{}, fmt.Errorf("unterminated escape at %d:%d", start.Line, start.Col)
			}
			esc := l.advance()
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '0':
				b.WriteByte(0)
			case '\\', '"', '\'':
				b.WriteByte(esc)
			default:
				b.WriteByte(esc)
			}
			continue
		}
		b.WriteByte(l.advance())
	}
	return Token{Kind: Str, Text: b.String(), Pos: start, End: l.position()}, nil
}

func (l *Lexer) lexNumber(start Position) (Token, error) {
	isFloat := false
	for !l.eof() {
		c := l.peekByte()
		if c >= '0' && c <= '9' || c == '_' {
			l.advance()
			continue
		}
		if c == '.' && l.peekByteAt(1) != '.' {
			isFloat = true
			l.advance()
			continue
		}
		if c == 'x' || c == 'X' || c == 'o' || c == 'O' || c == 'b' || c == 'B' ||
			(c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') {
			l.advance()
			continue
		}
		if c == 'e' || c == 'E' {
			isFloat = true
			l.advance()
			if l.peekByte() == '+' || l.peekByte() == '-' {
				l.advance()
			}
			continue
		}
		// numeric suffix, e.g. u32, i64, f64
		if isIdentStart(rune(c)) {
			l.advance()
			continue
		}
		break
	}
	k := Int
	if isFloat {
		k = Float
	}
	return Token{Kind: k, Text: l.src[start.Offset:l.pos], Pos: start, End: l.position()}, nil
}

// multi-rune punctuation, longest match first.
var multiPunct = []string{
	"::", "->", "=>", "..=", "...", "..", "&&", "||", "==", "!=", "<=", ">=",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "<<=", ">>=", "<<", ">>",
}

func (l *Lexer) lexPunct(start Position) (Token, error) {
	rest := l.src[l.pos:]
	for _, p := range multiPunct {
		if strings.HasPrefix(rest, p) {
			for range p {
				l.advance()
			}
			return Token{Kind: Punct, Text: p, Pos: start, End: l.position()}, nil
		}
	}
	b := l.advance()
	return Token{Kind: Punct, Text: string(b), Pos: start, End: l.position()}, nil
}
