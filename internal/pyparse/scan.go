package pyparse

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"pyrite/internal/pysrc"
)

// tokKind classifies scanner output.
type tokKind uint8

const (
	tokEOF     tokKind = iota
	tokNewline         // end of a logical line
	tokIndent          // block opened
	tokDedent          // block closed
	tokName
	tokNumber
	tokString
	tokOp
)

func (k tokKind) String() string {
	switch k {
	case tokEOF:
		return "end of file"
	case tokNewline:
		return "end of line"
	case tokIndent:
		return "indent"
	case tokDedent:
		return "dedent"
	case tokName:
		return "name"
	case tokNumber:
		return "number"
	case tokString:
		return "string"
	case tokOp:
		return "operator"
	default:
		return "token"
	}
}

// token is one lexical unit. Strings carry their cooked content, names are
// NFKC-normalized, operators carry their spelling.
type token struct {
	kind tokKind
	text string
	line int // 1-based physical line
	col  int // 1-based byte column
}

// markers accumulates the comment-level facts the checker consumes:
// suppression comments, type-ignore lines and the per-file checking mode.
type markers struct {
	mode    pysrc.TypedMode
	modeSet bool
	ignores []int
	fixmes  map[int]int
}

var (
	modeRe   = regexp.MustCompile(`^#+\s*pyre-(strict|unsafe|do-not-check|ignore-all-errors)\s*$`)
	fixmeRe  = regexp.MustCompile(`#\s*pyre-(?:fixme|ignore)(?:\[(\d+)\])?(?::|\s|$)`)
	ignoreRe = regexp.MustCompile(`#\s*type:\s*ignore`)
)

// note inspects one comment. ownLine is true when the comment is the whole
// physical line; mode markers only count there, suppressions count anywhere.
func (m *markers) note(text string, line int, ownLine bool) {
	if ownLine && !m.modeSet {
		if match := modeRe.FindStringSubmatch(text); match != nil {
			switch match[1] {
			case "strict":
				m.mode = pysrc.ModeStrict
			case "unsafe":
				m.mode = pysrc.ModeUnsafe
			case "do-not-check":
				m.mode = pysrc.ModeDeclare
			case "ignore-all-errors":
				m.mode = pysrc.ModeIgnoreAll
			}
			m.modeSet = true
			return
		}
	}
	if match := fixmeRe.FindStringSubmatch(text); match != nil {
		code := 0
		for _, c := range match[1] {
			code = code*10 + int(c-'0')
		}
		if m.fixmes == nil {
			m.fixmes = make(map[int]int)
		}
		m.fixmes[line] = code
		return
	}
	if ignoreRe.MatchString(text) {
		m.ignores = append(m.ignores, line)
	}
}

// scanner turns file content into a token stream with INDENT/DEDENT
// structure, suppressing newlines inside brackets and after backslash
// continuations the way the language does.
type scanner struct {
	path      string
	src       []byte
	pos       int
	line      int
	lineStart int
	parens    int
	indents   []int
	atStart   bool
	toks      []token
	errs      []*pysrc.SyntaxError
	marks     *markers
}

func newScanner(path string, src []byte, marks *markers) *scanner {
	src = stripBOM(src)
	return &scanner{
		path:    path,
		src:     src,
		line:    1,
		indents: []int{0},
		atStart: true,
		marks:   marks,
	}
}

func stripBOM(src []byte) []byte {
	if len(src) >= 3 && src[0] == 0xEF && src[1] == 0xBB && src[2] == 0xBF {
		return src[3:]
	}
	return src
}

func (s *scanner) col() int { return s.pos - s.lineStart + 1 }

func (s *scanner) emit(kind tokKind, text string, line, col int) {
	s.toks = append(s.toks, token{kind: kind, text: text, line: line, col: col})
}

func (s *scanner) errorf(line, col int, msg string) {
	s.errs = append(s.errs, &pysrc.SyntaxError{Path: s.path, Line: line, Col: col, Message: msg})
}

// newlineAt records the line break at src[i].
func (s *scanner) newlineAt(i int) {
	s.line++
	s.lineStart = i + 1
}

// scan tokenizes the whole file. The stream always ends with tokEOF, with
// every open block closed by dedents first.
func (s *scanner) scan() ([]token, []*pysrc.SyntaxError) {
	for {
		if s.atStart && s.parens == 0 {
			if !s.scanLineStart() {
				break
			}
			continue
		}
		if s.pos >= len(s.src) {
			break
		}
		c := s.src[s.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			s.pos++
		case c == '\n':
			s.pos++
			s.newlineAt(s.pos - 1)
			if s.parens == 0 {
				s.emit(tokNewline, "", s.line-1, 1)
				s.atStart = true
			}
		case c == '#':
			s.scanComment(false)
		case c == '\\' && s.peekByte(1) == '\n':
			s.pos += 2
			s.newlineAt(s.pos - 1)
		case c == '\\' && s.peekByte(1) == '\r' && s.peekByte(2) == '\n':
			s.pos += 3
			s.newlineAt(s.pos - 1)
		case isNameStart(c):
			s.scanNameOrString()
		case c >= '0' && c <= '9':
			s.scanNumber()
		case c == '.' && s.peekByte(1) >= '0' && s.peekByte(1) <= '9':
			s.scanNumber()
		case c == '\'' || c == '"':
			s.scanString("")
		default:
			s.scanOp()
		}
	}
	// Unfinished logical line at EOF still terminates.
	if !s.atStart {
		s.emit(tokNewline, "", s.line, s.col())
	}
	for len(s.indents) > 1 {
		s.indents = s.indents[:len(s.indents)-1]
		s.emit(tokDedent, "", s.line, 1)
	}
	s.emit(tokEOF, "", s.line, s.col())
	return s.toks, s.errs
}

// scanLineStart measures indentation and emits INDENT/DEDENT tokens.
// Returns false at end of input.
func (s *scanner) scanLineStart() bool {
	for {
		if s.pos >= len(s.src) {
			return false
		}
		width := 0
		for s.pos < len(s.src) {
			switch s.src[s.pos] {
			case ' ':
				width++
			case '\t':
				width += 8 - width%8 // таб добивает до кратного восьми
			default:
				goto measured
			}
			s.pos++
		}
	measured:
		if s.pos >= len(s.src) {
			return false
		}
		switch s.src[s.pos] {
		case '\n':
			s.pos++
			s.newlineAt(s.pos - 1)
			continue // blank line, no tokens
		case '\r':
			s.pos++
			continue
		case '#':
			s.scanComment(true)
			continue
		}
		top := s.indents[len(s.indents)-1]
		switch {
		case width > top:
			s.indents = append(s.indents, width)
			s.emit(tokIndent, "", s.line, 1)
		case width < top:
			for len(s.indents) > 1 && width < s.indents[len(s.indents)-1] {
				s.indents = s.indents[:len(s.indents)-1]
				s.emit(tokDedent, "", s.line, 1)
			}
			if width != s.indents[len(s.indents)-1] {
				s.errorf(s.line, 1, "unindent does not match any outer indentation level")
				s.indents = append(s.indents, width)
			}
		}
		s.atStart = false
		return true
	}
}

// scanComment consumes a comment to end of line and records its markers.
func (s *scanner) scanComment(ownLine bool) {
	start := s.pos
	for s.pos < len(s.src) && s.src[s.pos] != '\n' {
		s.pos++
	}
	text := strings.TrimRight(string(s.src[start:s.pos]), "\r")
	s.marks.note(text, s.line, ownLine)
}

func (s *scanner) peekByte(k int) byte {
	if s.pos+k >= len(s.src) {
		return 0
	}
	return s.src[s.pos+k]
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= utf8.RuneSelf
}

// scanNameOrString reads an identifier; when the identifier is a string
// prefix (r, b, f, u and их сочетания) directly followed by a quote, the
// whole thing is a string literal instead.
func (s *scanner) scanNameOrString() {
	line, col := s.line, s.col()
	start := s.pos
	ascii := true
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			s.pos++
			continue
		}
		if c < utf8.RuneSelf {
			break
		}
		r, size := utf8.DecodeRune(s.src[s.pos:])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		ascii = false
		s.pos += size
	}
	if s.pos == start {
		// A multibyte rune that is not a letter cannot start a name.
		_, size := utf8.DecodeRune(s.src[s.pos:])
		s.errorf(line, col, "invalid character in source")
		s.pos += size
		return
	}
	name := string(s.src[start:s.pos])
	if s.pos < len(s.src) && (s.src[s.pos] == '\'' || s.src[s.pos] == '"') && isStringPrefix(name) {
		s.scanStringAt(line, col, name)
		return
	}
	if !ascii {
		name = norm.NFKC.String(name) // PEP 3131: identifiers compare NFKC-normalized
	}
	s.emit(tokName, name, line, col)
}

func isStringPrefix(name string) bool {
	if len(name) == 0 || len(name) > 2 {
		return false
	}
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case 'r', 'R', 'b', 'B', 'f', 'F', 'u', 'U':
		default:
			return false
		}
	}
	return true
}

func (s *scanner) scanString(prefix string) {
	s.scanStringAt(s.line, s.col(), prefix)
}

// scanStringAt reads a string literal starting at the current quote. The
// emitted token text is the cooked content: quotes stripped, backslash
// escapes reduced to the escaped character.
func (s *scanner) scanStringAt(line, col int, prefix string) {
	raw := strings.ContainsAny(prefix, "rR")
	quote := s.src[s.pos]
	triple := s.peekByte(1) == quote && s.peekByte(2) == quote
	if triple {
		s.pos += 3
	} else {
		s.pos++
	}
	var sb strings.Builder
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '\\' && !raw && s.pos+1 < len(s.src):
			next := s.src[s.pos+1]
			if next == '\n' {
				s.newlineAt(s.pos + 1)
			} else {
				sb.WriteByte(next)
			}
			s.pos += 2
		case c == quote:
			if !triple {
				s.pos++
				s.emit(tokString, sb.String(), line, col)
				return
			}
			if s.peekByte(1) == quote && s.peekByte(2) == quote {
				s.pos += 3
				s.emit(tokString, sb.String(), line, col)
				return
			}
			sb.WriteByte(c)
			s.pos++
		case c == '\n':
			if !triple {
				s.errorf(line, col, "unterminated string literal")
				s.emit(tokString, sb.String(), line, col)
				return
			}
			sb.WriteByte(c)
			s.pos++
			s.newlineAt(s.pos - 1)
		default:
			sb.WriteByte(c)
			s.pos++
		}
	}
	s.errorf(line, col, "unterminated string literal")
	s.emit(tokString, sb.String(), line, col)
}

// scanNumber consumes a numeric literal. Numbers carry no structure for
// this grammar, so the rule is deliberately loose.
func (s *scanner) scanNumber() {
	line, col := s.line, s.col()
	start := s.pos
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if c == '.' || c == '_' || (c >= '0' && c <= '9') ||
			(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			s.pos++
			continue
		}
		break
	}
	s.emit(tokNumber, string(s.src[start:s.pos]), line, col)
}

const opChars = "+-*/%&|^~<>=!@:;,.()[]{}`$?"

// scanOp emits one operator token, folding the two- and three-character
// spellings the parser must not see split ("==" is not two assigns).
func (s *scanner) scanOp() {
	line, col := s.line, s.col()
	c := s.src[s.pos]
	if strings.IndexByte(opChars, c) < 0 {
		s.errorf(line, col, "invalid character in source")
		s.pos++
		return
	}
	text := string(c)
	next := s.peekByte(1)
	switch c {
	case '(', '[', '{':
		s.parens++
	case ')', ']', '}':
		if s.parens > 0 {
			s.parens--
		}
	case '-':
		if next == '>' {
			text = "->"
		}
	case '*':
		if next == '*' {
			text = "**"
		}
	case '/':
		if next == '/' {
			text = "//"
		}
	case '<':
		if next == '<' {
			text = "<<"
		} else if next == '>' {
			text = "<>"
		}
	case '>':
		if next == '>' {
			text = ">>"
		}
	case '.':
		if next == '.' && s.peekByte(2) == '.' {
			text = "..."
		}
	}
	s.pos += len(text)
	// Augmented and comparison spellings: a trailing '=' glues on.
	if s.pos < len(s.src) && s.src[s.pos] == '=' && text != "==" {
		switch text {
		case ",", ";", ".", "...", "(", ")", "[", "]", "{", "}", "`", "$", "?", "~", "@":
			// '=' does not combine with these
		default:
			text += "="
			s.pos++
		}
	}
	s.emit(tokOp, text, line, col)
}
