package parser

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoIdentifier        = errors.New("declarator has no identifier")
	ErrMultipleIdentifiers = errors.New("declarator has more than one identifier")
	ErrUnbalanced          = errors.New("unbalanced parenthesis or bracket in declarator")
	ErrNotFunction         = errors.New("declarator does not declare a function")
	ErrTrailingTokens      = errors.New("unexpected tokens after declarator")
)

// Declarator is one layer of C declarator syntax. The concrete types are
// Identifier, Pointer, Array, Function and Parenthesized.
type Declarator interface {
	declarator()
}

type Identifier struct {
	Name string
}

type Pointer struct {
	Inner Declarator
}

type Array struct {
	Inner Declarator
	Size  string
}

type Function struct {
	Inner  Declarator
	Params string
}

type Parenthesized struct {
	Inner Declarator
}

func (Identifier) declarator()    {}
func (Pointer) declarator()       {}
func (Array) declarator()         {}
func (Function) declarator()      {}
func (Parenthesized) declarator() {}

// Unwrap returns the layer directly inside d, or nil for an Identifier.
func Unwrap(d Declarator) Declarator {
	switch v := d.(type) {
	case Identifier:
		return nil
	case Pointer:
		return v.Inner
	case Array:
		return v.Inner
	case Function:
		return v.Inner
	case Parenthesized:
		return v.Inner
	default:
		panic(fmt.Sprintf("parser: unknown declarator %T", d))
	}
}

// DeclaredName peels layers off d until it reaches the identifier leaf.
func DeclaredName(d Declarator) (string, error) {
	for d != nil {
		if id, ok := d.(Identifier); ok {
			return id.Name, nil
		}
		d = Unwrap(d)
	}
	return "", ErrNoIdentifier
}

// declaresFunction reports whether the identifier leaf is applied directly to a
// parameter list, ignoring grouping parentheses. This is what separates
// `int (*make(void))(int)` from the function pointer `int (*fp)(int)`.
func declaresFunction(d Declarator) bool {
	for d != nil {
		if _, ok := d.(Identifier); ok {
			return false
		}
		inner := stripParens(Unwrap(d))
		if _, ok := inner.(Identifier); ok {
			_, isFunc := d.(Function)
			return isFunc
		}
		d = inner
	}
	return false
}

func stripParens(d Declarator) Declarator {
	for {
		p, ok := d.(Parenthesized)
		if !ok {
			return d
		}
		d = p.Inner
	}
}

// ResolveName returns the name declared by a function header such as
// `static int *(*make_table(void))[10]`.
func ResolveName(header string) (string, error) {
	d, err := ParseHeader(header)
	if err != nil {
		return "", err
	}
	if !declaresFunction(d) {
		return "", ErrNotFunction
	}
	return DeclaredName(d)
}

// ParseHeader strips the declaration specifiers from header and parses the
// remaining declarator.
func ParseHeader(header string) (Declarator, error) {
	toks, err := lexHeader(header)
	if err != nil {
		return nil, err
	}
	start, err := skipSpecifiers(toks)
	if err != nil {
		return nil, err
	}
	d, err := parseDeclarator(header, toks, start)
	if errors.Is(err, ErrMultipleIdentifiers) {
		// `EXPORT(x) int f(void)`: a macro call in front of the real header.
		if retry, ok := afterMacroPrefix(toks, start); ok {
			if d, err := parseDeclarator(header, toks, retry); err == nil {
				return d, nil
			}
		}
	}
	return d, err
}

func parseDeclarator(header string, toks []hdrToken, start int) (Declarator, error) {
	p := &declParser{src: header, toks: toks, pos: start}
	d, err := p.declarator()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.toks) {
		if p.toks[p.pos].kind == hdrWord {
			return nil, ErrMultipleIdentifiers
		}
		return nil, ErrTrailingTokens
	}
	return d, nil
}

// afterMacroPrefix finds where the declarator starts when a parenthesized
// macro call precedes the specifiers: the last word before the final
// parameter list, together with any '*' and qualifiers in front of it.
func afterMacroPrefix(toks []hdrToken, start int) (int, bool) {
	n := len(toks)
	if n == 0 || !toks[n-1].is(")") {
		return 0, false
	}
	name := toks[n-1].match - 1
	if name <= start || toks[name].kind != hdrWord || isKeyword(toks[name].text) {
		return 0, false
	}
	sawCall := false
	for i := start; i < name; i++ {
		if toks[i].is(")") {
			sawCall = true
			break
		}
	}
	if !sawCall {
		return 0, false
	}
	i := name
	for i-1 > start {
		prev := toks[i-1]
		if !prev.is("*") && !(prev.kind == hdrWord && qualifierWords[prev.text] && !attributeWords[prev.text]) {
			break
		}
		i--
	}
	return i, true
}

type hdrKind int

const (
	hdrWord hdrKind = iota
	hdrPunct
	hdrLiteral
)

type hdrToken struct {
	kind  hdrKind
	text  string
	start int
	end   int
	// match is the index of the balancing token for ( [ {, -1 otherwise.
	match int
}

func (t hdrToken) is(p string) bool {
	return t.kind == hdrPunct && t.text == p
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// lexHeader splits header text into words, punctuation and opaque literals,
// dropping whitespace, comments and directives, and pairs every bracket.
func lexHeader(src string) ([]hdrToken, error) {
	b := []byte(src)
	var toks []hdrToken
	var stack []int
	for i := 0; i < len(b); {
		if isSpace(b[i]) {
			i++
			continue
		}
		if st, ok := spanOpener(b, i); ok {
			end, closed := scanSpan(b, i, st)
			if st == stateString || st == stateChar {
				if !closed {
					return nil, ErrUnbalanced
				}
				toks = append(toks, hdrToken{kind: hdrLiteral, text: src[i:end], start: i, end: end, match: -1})
			}
			i = end
			continue
		}
		if isWordByte(b[i]) {
			j := i
			for j < len(b) && isWordByte(b[j]) {
				j++
			}
			toks = append(toks, hdrToken{kind: hdrWord, text: src[i:j], start: i, end: j, match: -1})
			i = j
			continue
		}
		tok := hdrToken{kind: hdrPunct, text: src[i : i+1], start: i, end: i + 1, match: -1}
		switch b[i] {
		case '(', '[', '{':
			stack = append(stack, len(toks))
		case ')', ']', '}':
			if len(stack) == 0 {
				return nil, ErrUnbalanced
			}
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if closerFor(toks[open].text) != tok.text {
				return nil, ErrUnbalanced
			}
			toks[open].match = len(toks)
			tok.match = open
		}
		toks = append(toks, tok)
		i++
	}
	if len(stack) != 0 {
		return nil, ErrUnbalanced
	}
	return toks, nil
}

func closerFor(open string) string {
	switch open {
	case "(":
		return ")"
	case "[":
		return "]"
	case "{":
		return "}"
	}
	return ""
}

// skipSpecifiers returns the index of the first declarator token.
func skipSpecifiers(toks []hdrToken) (int, error) {
	i := 0
	lastWord := -1
	for i < len(toks) {
		t := toks[i]
		if t.kind != hdrWord {
			break
		}
		if attributeWords[t.text] {
			i++
			if i < len(toks) && toks[i].is("(") {
				i = toks[i].match + 1
			}
			lastWord = -1
			continue
		}
		if tagWords[t.text] {
			i++
			if i < len(toks) && toks[i].kind == hdrWord && !isKeyword(toks[i].text) {
				i++
			}
			if i < len(toks) && toks[i].is("{") {
				i = toks[i].match + 1
			}
			lastWord = -1
			continue
		}
		lastWord = i
		i++
	}
	if i == len(toks) {
		return 0, ErrNoIdentifier
	}
	switch {
	case toks[i].is("*"):
		return i, nil
	case toks[i].is("("):
		// `int foo(void)`: the last plain word before the parameter list is the name.
		if lastWord >= 0 && !isKeyword(toks[lastWord].text) {
			return lastWord, nil
		}
		return i, nil
	}
	return 0, ErrTrailingTokens
}

type declParser struct {
	src  string
	toks []hdrToken
	pos  int
}

func (p *declParser) peek() (hdrToken, bool) {
	if p.pos >= len(p.toks) {
		return hdrToken{}, false
	}
	return p.toks[p.pos], true
}

// declarator parses pointer prefixes, a grouped or bare direct declarator and
// its suffixes. Suffixes bind tighter than the pointer prefix.
func (p *declParser) declarator() (Declarator, error) {
	for {
		t, ok := p.peek()
		if !ok || t.kind != hdrWord || !qualifierWords[t.text] {
			break
		}
		p.pos++
		if attributeWords[t.text] {
			if n, ok := p.peek(); ok && n.is("(") {
				p.pos = n.match + 1
			}
		}
	}
	t, ok := p.peek()
	if !ok {
		return nil, ErrNoIdentifier
	}
	switch {
	case t.is("*"):
		p.pos++
		inner, err := p.declarator()
		if err != nil {
			return nil, err
		}
		return Pointer{Inner: inner}, nil
	case t.is("("):
		end := t.match
		p.pos++
		inner, err := p.declarator()
		if err != nil {
			return nil, err
		}
		if p.pos != end {
			if p.toks[p.pos].kind == hdrWord {
				return nil, ErrMultipleIdentifiers
			}
			return nil, ErrTrailingTokens
		}
		p.pos = end + 1
		return p.suffixes(Parenthesized{Inner: inner})
	case t.kind == hdrWord:
		if isKeyword(t.text) {
			return nil, ErrNoIdentifier
		}
		p.pos++
		return p.suffixes(Identifier{Name: t.text})
	default:
		return nil, ErrNoIdentifier
	}
}

func (p *declParser) suffixes(d Declarator) (Declarator, error) {
	for {
		t, ok := p.peek()
		if !ok {
			return d, nil
		}
		switch {
		case t.is("["):
			closer := p.toks[t.match]
			d = Array{Inner: d, Size: strings.TrimSpace(p.src[t.end:closer.start])}
			p.pos = t.match + 1
		case t.is("("):
			closer := p.toks[t.match]
			d = Function{Inner: d, Params: strings.TrimSpace(p.src[t.end:closer.start])}
			p.pos = t.match + 1
		default:
			return d, nil
		}
	}
}

var storageWords = map[string]bool{
	"auto": true, "register": true, "static": true, "extern": true, "typedef": true,
	"_Thread_local": true, "thread_local": true, "__thread": true,
	"inline": true, "__inline": true, "__inline__": true, "_Noreturn": true, "noreturn": true,
	"__extension__": true,
}

var typeWords = map[string]bool{
	"void": true, "char": true, "short": true, "int": true, "long": true,
	"float": true, "double": true, "signed": true, "unsigned": true,
	"__signed__": true, "__unsigned__": true,
	"_Bool": true, "bool": true, "_Complex": true, "_Imaginary": true,
	"__int128": true, "__int64": true, "__int32": true, "__int16": true, "__int8": true,
}

var qualifierWords = map[string]bool{
	"const": true, "volatile": true, "restrict": true, "_Atomic": true,
	"__const": true, "__const__": true, "__volatile": true, "__volatile__": true,
	"__restrict": true, "__restrict__": true,
	"_Nonnull": true, "_Nullable": true, "__cdecl": true, "__stdcall": true, "__fastcall": true,
	"__attribute__": true, "__attribute": true,
}

var tagWords = map[string]bool{
	"struct": true, "union": true, "enum": true,
}

var attributeWords = map[string]bool{
	"__attribute__": true, "__attribute": true, "__declspec": true,
	"__asm__": true, "__asm": true, "asm": true,
	"_Alignas": true, "alignas": true, "__typeof__": true, "typeof": true,
}

func isKeyword(w string) bool {
	if storageWords[w] || typeWords[w] || tagWords[w] || attributeWords[w] {
		return true
	}
	switch w {
	case "const", "volatile", "restrict", "_Atomic",
		"if", "else", "for", "while", "do", "switch", "case", "default",
		"return", "goto", "break", "continue", "sizeof":
		return true
	}
	return false
}
