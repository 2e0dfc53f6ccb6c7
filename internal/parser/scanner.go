package parser

// TokenKind classifies what Next found.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	// TokenPunct is a single structural character outside any literal or comment.
	TokenPunct
	// TokenSpan is an opaque literal, comment or directive that must be skipped whole.
	TokenSpan
)

// SpanKind says which kind of opaque span a TokenSpan covers.
type SpanKind int

const (
	SpanNone SpanKind = iota
	SpanString
	SpanChar
	SpanLineComment
	SpanBlockComment
	SpanDirective
)

func (k SpanKind) String() string {
	switch k {
	case SpanString:
		return "string"
	case SpanChar:
		return "char"
	case SpanLineComment:
		return "line-comment"
	case SpanBlockComment:
		return "block-comment"
	case SpanDirective:
		return "directive"
	default:
		return "none"
	}
}

// Token is one step of the scanner. Start and End are byte offsets, End exclusive.
type Token struct {
	Kind  TokenKind
	Span  SpanKind
	Char  byte
	Start int
	End   int
	// Closed is false for a span cut short by end of input (or, for string and
	// char literals, by a raw newline).
	Closed bool
}

type lexState int

const (
	stateNormal lexState = iota
	stateString
	stateChar
	stateLineComment
	stateBlockComment
	stateDirective
)

func isStructural(c byte) bool {
	switch c {
	case '{', '}', '(', ')', '[', ']', ';', '*':
		return true
	}
	return false
}

// Next returns the first structural character or opaque span at or after pos.
// Bytes that are neither (identifiers, numbers, operators, whitespace) are
// passed over silently.
func Next(src []byte, pos int) Token {
	if pos < 0 {
		pos = 0
	}
	for i := pos; i < len(src); i++ {
		if st, ok := spanOpener(src, i); ok {
			end, closed := scanSpan(src, i, st)
			return Token{Kind: TokenSpan, Span: spanKind(st), Start: i, End: end, Closed: closed}
		}
		if isStructural(src[i]) {
			return Token{Kind: TokenPunct, Char: src[i], Start: i, End: i + 1, Closed: true}
		}
	}
	return Token{Kind: TokenEOF, Start: len(src), End: len(src), Closed: true}
}

// spanOpener reports whether an opaque span starts at i, and in which state.
func spanOpener(src []byte, i int) (lexState, bool) {
	switch src[i] {
	case '"':
		return stateString, true
	case '\'':
		if digitSeparator(src, i) {
			return stateNormal, false
		}
		return stateChar, true
	case '/':
		switch peek(src, i+1) {
		case '/':
			return stateLineComment, true
		case '*':
			return stateBlockComment, true
		}
	case '#':
		if atLineStart(src, i) {
			return stateDirective, true
		}
	}
	return stateNormal, false
}

func spanKind(st lexState) SpanKind {
	switch st {
	case stateString:
		return SpanString
	case stateChar:
		return SpanChar
	case stateLineComment:
		return SpanLineComment
	case stateBlockComment:
		return SpanBlockComment
	case stateDirective:
		return SpanDirective
	}
	return SpanNone
}

// scanSpan runs the state machine from the opener at start until the span
// closes, returning the exclusive end offset.
func scanSpan(src []byte, start int, st lexState) (int, bool) {
	i := start + 1
	if st == stateLineComment || st == stateBlockComment {
		i = start + 2
	}
	for i < len(src) {
		c := src[i]
		switch st {
		case stateString, stateChar:
			quote := byte('"')
			if st == stateChar {
				quote = '\''
			}
			switch c {
			case '\\':
				i += 2
				continue
			case quote:
				return i + 1, true
			case '\n':
				return i, false
			}
		case stateLineComment:
			if c == '\\' && peek(src, i+1) == '\n' {
				i += 2
				continue
			}
			if c == '\n' {
				return i, true
			}
		case stateBlockComment:
			if c == '*' && peek(src, i+1) == '/' {
				return i + 2, true
			}
		case stateDirective:
			switch {
			case c == '\\' && peek(src, i+1) == '\n':
				i += 2
				continue
			case c == '\n':
				return i, true
			case c == '"' || c == '\'' || (c == '/' && (peek(src, i+1) == '*' || peek(src, i+1) == '/')):
				inner, ok := spanOpener(src, i)
				if !ok {
					break
				}
				end, closed := scanSpan(src, i, inner)
				if !closed && end >= len(src) {
					return len(src), false
				}
				i = end
				continue
			}
		}
		i++
	}
	if i > len(src) {
		i = len(src)
	}
	// A directive or line comment ending at EOF is complete.
	return i, st == stateDirective || st == stateLineComment
}

// digitSeparator reports whether the quote at i sits inside a number, as in
// C23 `1'000'000`, rather than opening a character constant. Prefixed
// constants such as L'x' and u8'x' start with a letter and still open one.
func digitSeparator(src []byte, i int) bool {
	j := i
	for j > 0 && isWordByte(src[j-1]) {
		j--
	}
	return j < i && src[j] >= '0' && src[j] <= '9'
}

func peek(src []byte, i int) byte {
	if i < 0 || i >= len(src) {
		return 0
	}
	return src[i]
}

// atLineStart reports whether only blanks separate i from the previous newline.
func atLineStart(src []byte, i int) bool {
	for j := i - 1; j >= 0; j-- {
		switch src[j] {
		case ' ', '\t', '\r', '\f', '\v':
			continue
		case '\n':
			return true
		default:
			return false
		}
	}
	return true
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

// skipTrivia moves past whitespace, comments and preprocessor directives,
// returning the offset of the first byte that belongs to real code.
func skipTrivia(src []byte, pos int) int {
	for pos < len(src) {
		if isSpace(src[pos]) {
			pos++
			continue
		}
		st, ok := spanOpener(src, pos)
		if !ok || st == stateString || st == stateChar {
			return pos
		}
		pos, _ = scanSpan(src, pos, st)
	}
	return pos
}

// matchClose returns the offset just past the closer that balances the opener
// at src[open], or -1 when input ends first. Only the opener's own bracket type
// is counted; literals and comments are skipped.
func matchClose(src []byte, open int) int {
	var closer byte
	switch src[open] {
	case '(':
		closer = ')'
	case '[':
		closer = ']'
	case '{':
		closer = '}'
	default:
		return -1
	}
	opener := src[open]
	depth := 0
	for pos := open; ; {
		tok := Next(src, pos)
		switch tok.Kind {
		case TokenEOF:
			return -1
		case TokenPunct:
			switch tok.Char {
			case opener:
				depth++
			case closer:
				depth--
				if depth == 0 {
					return tok.End
				}
			}
		}
		pos = tok.End
	}
}
