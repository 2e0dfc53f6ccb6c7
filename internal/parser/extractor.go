package parser

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	ErrUnterminatedBody   = errors.New("unterminated brace block at end of input")
	ErrUnterminatedHeader = errors.New("unterminated parenthesis at end of input")
)

// RegionError reports a function-shaped region that was skipped because its
// name could not be resolved.
type RegionError struct {
	Line   int
	Header string
	Err    error
}

func (e *RegionError) Error() string {
	return fmt.Sprintf("%v at line %d", e.Err, e.Line)
}

func (e *RegionError) Unwrap() error {
	return e.Err
}

// CParser implements LanguageParser for C.
type CParser struct{}

// NewCParser creates a new C parser
func NewCParser() *CParser {
	return &CParser{}
}

// Language returns the language name
func (p *CParser) Language() string {
	return string(LanguageC)
}

// ExtractFunctions extracts function definitions from C source code. The
// returned records are valid even when err is non-nil: they are every
// function that could be extracted before or around the problem.
func (p *CParser) ExtractFunctions(filePath string, code []byte) ([]FunctionRecord, error) {
	funcs, err := Extract(code)
	if err != nil {
		return funcs, fmt.Errorf("extract %s: %w", filePath, err)
	}
	return funcs, nil
}

// ExtractFunctions returns the function definitions in code in source order.
// Malformed input never fails: unresolvable regions are left out and a
// truncated file yields whatever was closed before the cut.
func ExtractFunctions(code []byte) []FunctionRecord {
	funcs, _ := Extract(code)
	return funcs
}

// Extract is ExtractFunctions with diagnostics. The error joins one
// *RegionError per skipped region and, when the input ends inside a block,
// ErrUnterminatedBody or ErrUnterminatedHeader.
func Extract(code []byte) ([]FunctionRecord, error) {
	e := &extractor{
		src:   code,
		lines: lineCounter{src: code, line: 1},
	}
	if err := e.run(); err != nil {
		e.errs = append(e.errs, err)
	}
	return e.records, errors.Join(e.errs...)
}

type extractor struct {
	src     []byte
	lines   lineCounter
	records []FunctionRecord
	errs    []error
}

// run walks the top level of the file. stmt is where the current top-level
// statement began: after the previous ';' or '}' or at the start of the file.
func (e *extractor) run() error {
	stmt, pos := 0, 0
	for {
		tok := Next(e.src, pos)
		switch tok.Kind {
		case TokenEOF:
			return nil
		case TokenSpan:
			pos = tok.End
			continue
		}

		switch tok.Char {
		case ';', '}':
			stmt, pos = tok.End, tok.End
		case '{':
			// Struct, union and enum bodies or initializers: not a function.
			end := matchClose(e.src, tok.Start)
			if end < 0 {
				return ErrUnterminatedBody
			}
			// A tagged body may still be the return type of a definition
			// (`struct s {...} make(void) {...}`); any other block ends the statement.
			if !opensAggregate(e.src[stmt:tok.Start]) {
				stmt = end
			}
			pos = end
		case '(':
			headerEnd, body, err := e.header(tok.Start)
			if err != nil {
				return err
			}
			if body < 0 {
				pos = headerEnd
				continue
			}
			end := matchClose(e.src, body)
			if end < 0 {
				return ErrUnterminatedBody
			}
			e.emit(SourceRegion{Start: skipTrivia(e.src, stmt), End: end}, headerEnd)
			stmt, pos = end, end
		default:
			pos = tok.End
		}
	}
}

// header consumes the parenthesized group at open plus any further (...) or
// [...] suffix groups. body is the offset of the '{' that follows, directly or
// after K&R parameter declarations, or -1 when this is a prototype,
// declaration or expression.
func (e *extractor) header(open int) (headerEnd, body int, err error) {
	headerEnd = matchClose(e.src, open)
	if headerEnd < 0 {
		return 0, -1, ErrUnterminatedHeader
	}
	params := headerEnd
	for {
		next := skipTrivia(e.src, headerEnd)
		if next >= len(e.src) {
			return headerEnd, -1, nil
		}
		switch e.src[next] {
		case '{':
			return headerEnd, next, nil
		case '(', '[':
			end := matchClose(e.src, next)
			if end < 0 {
				return 0, -1, ErrUnterminatedHeader
			}
			headerEnd = end
		default:
			if headerEnd != params {
				return headerEnd, -1, nil
			}
			return headerEnd, e.oldStyleBody(open, headerEnd, next), nil
		}
	}
}

// oldStyleBody recognizes a K&R definition, `int f(a, b) int a; char *b; {`,
// where the identifier list in the group open..headerEnd is followed by one
// ';'-terminated parameter declaration per name at most and then the body.
// It returns the offset of the body's '{' or -1.
func (e *extractor) oldStyleBody(open, headerEnd, from int) int {
	if !isWordByte(e.src[from]) {
		return -1
	}
	names := identifierList(e.src[open+1 : headerEnd-1])
	if names == 0 {
		return -1
	}
	decls := 0
	for pos := from; ; {
		tok := Next(e.src, pos)
		switch {
		case tok.Kind == TokenEOF:
			return -1
		case tok.Kind == TokenSpan:
			if tok.Span == SpanString || tok.Span == SpanChar {
				return -1
			}
			pos = tok.End
			continue
		}
		switch tok.Char {
		case ';':
			decls++
			if decls > names {
				return -1
			}
			if next := skipTrivia(e.src, tok.End); next < len(e.src) && e.src[next] == '{' {
				return next
			}
			pos = tok.End
		case '[':
			end := matchClose(e.src, tok.Start)
			if end < 0 {
				return -1
			}
			pos = end
		case '*':
			pos = tok.End
		default:
			// A '(' here is more likely a macro call than a function pointer
			// parameter, so leave it to the regular header scan.
			return -1
		}
	}
}

// identifierList returns how many names a K&R parameter list such as `a, b`
// holds, or 0 when params is anything else.
func identifierList(params []byte) int {
	toks, err := lexHeader(string(params))
	if err != nil || len(toks)%2 == 0 {
		return 0
	}
	for i, t := range toks {
		if i%2 == 1 {
			if !t.is(",") {
				return 0
			}
			continue
		}
		if t.kind != hdrWord || isKeyword(t.text) || t.text[0] >= '0' && t.text[0] <= '9' {
			return 0
		}
	}
	return (len(toks) + 1) / 2
}

// opensAggregate reports whether the statement text before a top-level '{'
// makes that block a struct, union or enum body or an initializer.
func opensAggregate(stmt []byte) bool {
	toks, err := lexHeader(string(stmt))
	if err != nil {
		return false
	}
	for _, t := range toks {
		if (t.kind == hdrWord && tagWords[t.text]) || t.is("=") {
			return true
		}
	}
	return false
}

func (e *extractor) emit(region SourceRegion, headerEnd int) {
	region.Line = e.lines.at(region.Start)
	header := string(e.src[region.Start:headerEnd])
	name, err := ResolveName(header)
	if err != nil {
		e.errs = append(e.errs, &RegionError{Line: region.Line, Header: header, Err: err})
		return
	}
	e.records = append(e.records, FunctionRecord{
		Name:      name,
		Code:      string(e.src[region.Start:region.End]),
		StartLine: region.Line,
		EndLine:   e.lines.at(region.End - 1),
		StartByte: region.Start,
		EndByte:   region.End,
	})
}

var newline = []byte{'\n'}

// lineCounter maps offsets to 1-based line numbers. Offsets are expected to
// grow between calls so each byte is counted once.
type lineCounter struct {
	src  []byte
	off  int
	line int
}

func (lc *lineCounter) at(off int) int {
	if off < lc.off {
		lc.off, lc.line = 0, 1
	}
	if off > len(lc.src) {
		off = len(lc.src)
	}
	lc.line += bytes.Count(lc.src[lc.off:off], newline)
	lc.off = off
	return lc.line
}
