package rustsrc

import "fmt"

// Delim identifies the kind of bracket that opened a Group.
type Delim int

const (
	Paren   Delim = iota // ( )
	Bracket              // [ ]
	Brace                // { }
	NoDelim              // implicit grouping, e.g. a macro_rules arm body with no enclosing delimiter
)

// TokenTree mirrors proc_macro2::TokenTree: either a leaf token or a
// delimited Group containing a nested sequence of TokenTrees. Building
// macro argument streams (and function/block bodies) into TokenTrees
// up front is what lets the macro scanner and statement splitter operate
// on already-balanced nested structure instead of re-tracking depth.
type TokenTree struct {
	Leaf  *Token
	Group *Group
}

// Group is a delimited run of TokenTrees, e.g. the "(a, b::c)" in a
// function call or macro invocation.
type Group struct {
	Delim  Delim
	Open   Token
	Close  Token
	Tokens []TokenTree
}

func leaf(t Token) TokenTree { return TokenTree{Leaf: &t} }

// IsIdent reports whether this tree is a leaf identifier with text s.
func (tt TokenTree) IsIdent(s string) bool {
	return tt.Leaf != nil && tt.Leaf.IsIdent(s)
}

// IsPunct reports whether this tree is a leaf punctuation token with text s.
func (tt TokenTree) IsPunct(s string) bool {
	return tt.Leaf != nil && tt.Leaf.Kind == Punct && tt.Leaf.Text == s
}

var openToClose = map[string]string{"(": ")", "[": "]", "{": "}"}
var openToDelim = map[string]Delim{"(": Paren, "[": Bracket, "{": Brace}

// BuildTokenTrees groups a flat token slice (as produced by Tokenize, sans
// the trailing EOF) into a sequence of TokenTrees, recursively nesting
// parenthesized/bracketed/braced runs into Groups.
func BuildTokenTrees(toks []Token) ([]TokenTree, error) {
	trees, rest, err := buildUntil(toks, "")
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("unexpected trailing tokens at %d:%d", rest[0].Pos.Line, rest[0].Pos.Col)
	}
	return trees, nil
}

// buildUntil consumes toks until it sees closeWant (a closing delimiter) at
// depth 0, or until toks is exhausted if closeWant == "".
func buildUntil(toks []Token, closeWant string) ([]TokenTree, []Token, error) {
	var out []TokenTree
	for len(toks) > 0 {
		t := toks[0]
		if t.Kind == EOF {
			if closeWant != "" {
				return nil, nil, fmt.Errorf("unexpected EOF, expected %q", closeWant)
			}
			return out, toks[1:], nil
		}
		if t.Kind == Punct {
			if t.Text == closeWant {
				return out, toks[1:], nil
			}
			if want, ok := openToClose[t.Text]; ok {
				inner, rest, err := buildUntil(toks[1:], want)
				if err != nil {
					return nil, nil, err
				}
				closeTok := Token{Kind: Punct, Text: want, Pos: t.End, End: t.End}
				out = append(out, TokenTree{Group: &Group{
					Delim:  openToDelim[t.Text],
					Open:   t,
					Close:  closeTok,
					Tokens: inner,
				}})
				toks = rest
				continue
			}
		}
		out = append(out, leaf(t))
		toks = toks[1:]
	}
	if closeWant != "" {
		return nil, nil, fmt.Errorf("unexpected end of input, expected %q", closeWant)
	}
	return out, nil, nil
}

// Flatten returns every leaf token tree in trees, depth-first, skipping
// group delimiters. Used by callers that want a flat identifier scan
// without caring about nesting (e.g. split-on-commas' "starts with ident"
// check).
func Flatten(trees []TokenTree) []Token {
	var out []Token
	var walk func([]TokenTree)
	walk = func(ts []TokenTree) {
		for _, t := range ts {
			if t.Leaf != nil {
				out = append(out, *t.Leaf)
			} else {
				walk(t.Group.Tokens)
			}
		}
	}
	walk(trees)
	return out
}
