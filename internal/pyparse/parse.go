package pyparse

import (
	"fmt"

	"pyrite/internal/pysrc"
)

// exprStop selects the top-level tokens a balanced expression skip halts
// on. Closing brackets and line ends always halt.
type exprStop uint8

const (
	stopComma exprStop = 1 << iota
	stopEq
	stopColon
)

// parser consumes the token stream into a statement tree. Statement-level
// recovery: on error the rest of the logical line (and any block hanging
// off it) is dropped and parsing resumes at the same nesting level.
type parser struct {
	path   string
	toks   []token
	pos    int
	maxErr int
	errs   []*pysrc.SyntaxError
	legacy *pysrc.SkipError
}

func newParser(path string, toks []token, maxErrors uint) *parser {
	maxErr := int(maxErrors)
	if maxErr <= 0 {
		maxErr = 1
	}
	return &parser{path: path, toks: toks, maxErr: maxErr}
}

func (p *parser) cur() token { return p.toks[p.pos] }

func (p *parser) peek(k int) token {
	idx := p.pos + k
	if idx >= len(p.toks) {
		idx = len(p.toks) - 1 // the stream always ends with tokEOF
	}
	return p.toks[idx]
}

func (p *parser) advance() {
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
}

func (p *parser) at(kind tokKind) bool { return p.cur().kind == kind }

func (p *parser) atOp(text string) bool {
	t := p.cur()
	return t.kind == tokOp && t.text == text
}

func (p *parser) atName(text string) bool {
	t := p.cur()
	return t.kind == tokName && t.text == text
}

func (p *parser) failed() bool {
	return p.legacy != nil || len(p.errs) >= p.maxErr
}

func (p *parser) errorf(tok token, format string, args ...any) {
	if len(p.errs) >= p.maxErr {
		return
	}
	p.errs = append(p.errs, &pysrc.SyntaxError{
		Path:    p.path,
		Line:    tok.line,
		Col:     tok.col,
		Message: fmt.Sprintf(format, args...),
	})
}

func describe(t token) string {
	if t.kind == tokOp || t.kind == tokName {
		return fmt.Sprintf("'%s'", t.text)
	}
	return t.kind.String()
}

// expectOp consumes the operator or reports an error.
func (p *parser) expectOp(text string) bool {
	if p.atOp(text) {
		p.advance()
		return true
	}
	p.errorf(p.cur(), "expected '%s', found %s", text, describe(p.cur()))
	return false
}

// parseIdent consumes a name token or reports what was expected instead.
func (p *parser) parseIdent(what string) (string, bool) {
	if p.at(tokName) {
		name := p.cur().text
		p.advance()
		return name, true
	}
	p.errorf(p.cur(), "expected %s, found %s", what, describe(p.cur()))
	return "", false
}

// syncLine drops everything through the end of the logical line, along
// with any block that follows it.
func (p *parser) syncLine() {
	for {
		switch p.cur().kind {
		case tokEOF, tokDedent:
			return
		case tokNewline:
			p.advance()
			p.skipBlock()
			return
		}
		p.advance()
	}
}

// skipBlock consumes a whole indented block when sitting on its INDENT.
func (p *parser) skipBlock() {
	if !p.at(tokIndent) {
		return
	}
	depth := 0
	for {
		switch p.cur().kind {
		case tokIndent:
			depth++
		case tokDedent:
			depth--
			if depth == 0 {
				p.advance()
				return
			}
		case tokEOF:
			return
		}
		p.advance()
	}
}

// skipExpr performs a balanced skip over an expression. It halts before
// line ends, before closing brackets of the enclosing level, and before
// the requested top-level stop tokens.
func (p *parser) skipExpr(stops exprStop) {
	depth := 0
	for {
		t := p.cur()
		switch t.kind {
		case tokEOF, tokNewline, tokIndent, tokDedent:
			return
		case tokOp:
			switch t.text {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				if depth == 0 {
					return
				}
				depth--
			case ",":
				if depth == 0 && stops&stopComma != 0 {
					return
				}
			case "=":
				if depth == 0 && stops&stopEq != 0 {
					return
				}
			case ":":
				if depth == 0 && stops&stopColon != 0 {
					return
				}
			case ";":
				if depth == 0 {
					return
				}
			}
		}
		p.advance()
	}
}

// endStatement closes a simple statement: a ';' is consumed, a line end is
// left for the enclosing loop, anything else is an error.
func (p *parser) endStatement() {
	switch {
	case p.atOp(";"):
		p.advance()
	case p.at(tokNewline), p.at(tokEOF), p.at(tokDedent):
	default:
		p.errorf(p.cur(), "unexpected %s", describe(p.cur()))
		p.syncLine()
	}
}

// parseModule consumes statements until end of input.
func (p *parser) parseModule() []pysrc.Statement {
	var stmts []pysrc.Statement
	for !p.at(tokEOF) && !p.failed() {
		switch {
		case p.at(tokNewline), p.at(tokDedent):
			p.advance()
		case p.at(tokIndent):
			p.errorf(p.cur(), "unexpected indent")
			p.skipBlock()
		default:
			stmts = append(stmts, p.parseStatement()...)
		}
	}
	return stmts
}

// parseStatement dispatches one statement. It returns a slice because the
// bodies of conditional blocks are spliced into the enclosing level.
func (p *parser) parseStatement() []pysrc.Statement {
	tok := p.cur()
	if tok.kind == tokOp && tok.text == "@" {
		// Decorators carry no binding of their own; drop the line.
		p.syncToLineEnd()
		return nil
	}
	if tok.kind != tokName {
		return p.parseSimple()
	}
	switch tok.text {
	case "import":
		return p.parseImport()
	case "from":
		return p.parseFromImport()
	case "def":
		return p.parseDef(false)
	case "async":
		if next := p.peek(1); next.kind == tokName {
			switch next.text {
			case "def":
				p.advance()
				return p.parseDef(true)
			case "for", "with":
				p.advance()
				return p.parseCompound()
			}
		}
		// `async` as a plain name
		return p.parseSimple()
	case "class":
		return p.parseClass()
	case "if", "elif", "else", "while", "for", "try", "except", "finally", "with":
		return p.parseCompound()
	case "print", "exec":
		if p.looksLegacy() {
			p.legacy = &pysrc.SkipError{Path: p.path, Line: tok.line, Reason: pysrc.SkipLegacy}
			return nil
		}
		return p.parseSimple()
	default:
		return p.parseSimple()
	}
}

// syncToLineEnd skips the current logical line without treating it as an
// error (decorators, отброшенные конструкции).
func (p *parser) syncToLineEnd() {
	for {
		switch p.cur().kind {
		case tokEOF, tokDedent:
			return
		case tokNewline:
			p.advance()
			return
		}
		p.advance()
	}
}

// looksLegacy spots the statement form of print/exec: the canonical
// pre-3 source marker. A following string, number, name or '>>' cannot
// start a valid call in current syntax.
func (p *parser) looksLegacy() bool {
	next := p.peek(1)
	switch next.kind {
	case tokString, tokNumber, tokName:
		return true
	case tokOp:
		return next.text == ">>"
	}
	return false
}

// parseImport handles `import a.b as c, d`.
func (p *parser) parseImport() []pysrc.Statement {
	line := p.cur().line
	p.advance()
	var names []pysrc.Alias
	for {
		mod, ok := p.parseDottedName("module name")
		if !ok {
			p.syncLine()
			return nil
		}
		alias := pysrc.Alias{Name: mod}
		if p.atName("as") {
			p.advance()
			as, ok := p.parseIdent("alias name")
			if !ok {
				p.syncLine()
				return nil
			}
			alias.As = as
		}
		names = append(names, alias)
		if p.atOp(",") {
			p.advance()
			continue
		}
		break
	}
	p.endStatement()
	return []pysrc.Statement{{Kind: pysrc.StmtImport, Line: line, Names: names}}
}

// parseFromImport handles `from ..a.b import x as y, z`, the parenthesized
// name list, and the wildcard form.
func (p *parser) parseFromImport() []pysrc.Statement {
	line := p.cur().line
	p.advance()
	dots := 0
	for p.atOp(".") || p.atOp("...") {
		if p.cur().text == "..." {
			dots += 3
		} else {
			dots++
		}
		p.advance()
	}
	var mod string
	if !p.atName("import") {
		m, ok := p.parseDottedName("module name")
		if !ok {
			p.syncLine()
			return nil
		}
		mod = m
	}
	if dots == 0 && mod == "" {
		p.errorf(p.cur(), "expected module name after 'from'")
		p.syncLine()
		return nil
	}
	if !p.atName("import") {
		p.errorf(p.cur(), "expected 'import', found %s", describe(p.cur()))
		p.syncLine()
		return nil
	}
	p.advance()

	st := pysrc.Statement{Kind: pysrc.StmtFromImport, Line: line, Module: pysrc.Quali(mod), Dots: dots}
	if p.atOp("*") {
		p.advance()
		st.Wildcard = true
		p.endStatement()
		return []pysrc.Statement{st}
	}

	paren := p.atOp("(")
	if paren {
		p.advance()
	}
	for {
		if paren && p.atOp(")") {
			break
		}
		name, ok := p.parseIdent("imported name")
		if !ok {
			p.syncLine()
			return nil
		}
		alias := pysrc.Alias{Name: name}
		if p.atName("as") {
			p.advance()
			as, ok := p.parseIdent("alias name")
			if !ok {
				p.syncLine()
				return nil
			}
			alias.As = as
		}
		st.Names = append(st.Names, alias)
		if p.atOp(",") {
			p.advance()
			continue
		}
		break
	}
	if paren && !p.expectOp(")") {
		p.syncLine()
		return nil
	}
	p.endStatement()
	return []pysrc.Statement{st}
}

// parseDottedName consumes IDENT ('.' IDENT)*.
func (p *parser) parseDottedName(what string) (string, bool) {
	name, ok := p.parseIdent(what)
	if !ok {
		return "", false
	}
	for p.atOp(".") {
		p.advance()
		part, ok := p.parseIdent(what)
		if !ok {
			return "", false
		}
		name += "." + part
	}
	return name, true
}

// parseDef handles a function definition header and its suite.
func (p *parser) parseDef(async bool) []pysrc.Statement {
	line := p.cur().line
	p.advance()
	name, ok := p.parseIdent("function name")
	if !ok {
		p.syncLine()
		return nil
	}
	st := pysrc.Statement{Kind: pysrc.StmtDef, Line: line, Name: name, Async: async}
	if !p.expectOp("(") {
		p.syncLine()
		return nil
	}
	// A line end here means the parens never closed: the scanner only
	// passes newlines through outside brackets.
	for !p.atOp(")") && !p.at(tokEOF) && !p.at(tokNewline) && !p.failed() {
		if p.atOp("*") || p.atOp("**") || p.atOp("/") {
			p.advance()
			if p.atOp(",") {
				p.advance()
			}
			continue
		}
		if !p.at(tokName) {
			p.errorf(p.cur(), "expected parameter name, found %s", describe(p.cur()))
			p.syncLine()
			return nil
		}
		param := pysrc.Param{Name: p.cur().text}
		p.advance()
		if p.atOp(":") {
			p.advance()
			p.skipExpr(stopComma | stopEq)
			param.Annotated = true
		}
		if p.atOp("=") {
			p.advance()
			p.skipExpr(stopComma)
		}
		st.Params = append(st.Params, param)
		if p.atOp(",") {
			p.advance()
			continue
		}
		break
	}
	if !p.expectOp(")") {
		p.syncLine()
		return nil
	}
	if p.atOp("->") {
		p.advance()
		p.skipExpr(stopColon)
		st.ReturnsAnn = true
	}
	body, ok := p.parseSuite()
	if !ok {
		return nil
	}
	st.Body = body
	return []pysrc.Statement{st}
}

// parseClass handles a class header (bases recorded, keyword arguments
// skipped) and its suite.
func (p *parser) parseClass() []pysrc.Statement {
	line := p.cur().line
	p.advance()
	name, ok := p.parseIdent("class name")
	if !ok {
		p.syncLine()
		return nil
	}
	st := pysrc.Statement{Kind: pysrc.StmtClass, Line: line, Name: name}
	if p.atOp("(") {
		p.advance()
		for !p.atOp(")") && !p.at(tokEOF) && !p.at(tokNewline) && !p.failed() {
			if p.at(tokName) {
				base, ok := p.parseDottedName("base class")
				if !ok {
					p.syncLine()
					return nil
				}
				if p.atOp("=") {
					// keyword argument (metaclass=...): value skipped
					p.advance()
					p.skipExpr(stopComma)
				} else {
					if !p.atOp(",") && !p.atOp(")") {
						p.skipExpr(stopComma) // subscripted base: Generic[T]
					}
					st.Bases = append(st.Bases, base)
				}
			} else {
				p.skipExpr(stopComma)
			}
			if p.atOp(",") {
				p.advance()
			}
		}
		if !p.expectOp(")") {
			p.syncLine()
			return nil
		}
	}
	body, ok := p.parseSuite()
	if !ok {
		return nil
	}
	st.Body = body
	return []pysrc.Statement{st}
}

// parseCompound handles conditional and looping headers. Their bodies are
// spliced into the enclosing statement list: a module-level `if` guard
// contributes its imports and bindings at module level.
func (p *parser) parseCompound() []pysrc.Statement {
	p.advance() // keyword
	p.skipExpr(stopColon)
	body, ok := p.parseSuite()
	if !ok {
		return nil
	}
	return body
}

// parseSuite parses the statements after a ':' header, inline or indented.
func (p *parser) parseSuite() ([]pysrc.Statement, bool) {
	if !p.expectOp(":") {
		p.syncLine()
		return nil, false
	}
	if !p.at(tokNewline) {
		var stmts []pysrc.Statement
		for !p.at(tokNewline) && !p.at(tokEOF) && !p.at(tokDedent) && !p.failed() {
			stmts = append(stmts, p.parseStatement()...)
		}
		return stmts, true
	}
	p.advance()
	if !p.at(tokIndent) {
		p.errorf(p.cur(), "expected an indented block")
		return nil, false
	}
	p.advance()
	var stmts []pysrc.Statement
	for !p.at(tokDedent) && !p.at(tokEOF) && !p.failed() {
		switch {
		case p.at(tokNewline):
			p.advance()
		case p.at(tokIndent):
			p.errorf(p.cur(), "unexpected indent")
			p.skipBlock()
		default:
			stmts = append(stmts, p.parseStatement()...)
		}
	}
	if p.at(tokDedent) {
		p.advance()
	}
	return stmts, true
}

// parseSimple handles one simple statement: module-level name assignments
// become StmtAssign nodes, every other expression is consumed without a
// node.
func (p *parser) parseSimple() []pysrc.Statement {
	line := p.cur().line
	save := p.pos
	targets, annotated, isAssign := p.tryTargets()
	if !isAssign {
		p.pos = save
		p.skipExpr(0)
		p.endStatement()
		return nil
	}
	st := pysrc.Statement{Kind: pysrc.StmtAssign, Line: line, Targets: targets, Annotated: annotated}
	st.Strings = p.scanStringList()
	if st.Strings == nil {
		p.skipExpr(0)
	}
	p.endStatement()
	return []pysrc.Statement{st}
}

// tryTargets reads an assignment target list: NAME (',' NAME)* '=' chains
// and the annotated single-target form. Attribute and subscript targets
// are not module bindings and fall back to the expression path.
func (p *parser) tryTargets() (targets []string, annotated, ok bool) {
	for {
		if len(targets) > 0 && p.atOp("=") {
			// trailing comma form: `x, = value`
			p.advance()
			return targets, false, true
		}
		if !p.at(tokName) {
			return nil, false, false
		}
		name := p.cur().text
		p.advance()
		if p.atOp(".") || p.atOp("[") {
			return nil, false, false
		}
		targets = append(targets, name)
		switch {
		case p.atOp(":"):
			if len(targets) != 1 {
				return nil, false, false
			}
			p.advance()
			p.skipExpr(stopEq)
			if p.atOp("=") {
				p.advance()
			}
			return targets, true, true
		case p.atOp("="):
			p.advance()
			if p.chainAhead() {
				continue
			}
			return targets, false, true
		case p.atOp(","):
			p.advance()
			continue
		default:
			return nil, false, false
		}
	}
}

// chainAhead reports whether another target list follows: NAME (',' NAME)*
// '='. Plain `a = b == c` must not read b as a target, so the '=' has to
// be seen directly.
func (p *parser) chainAhead() bool {
	i := p.pos
	for {
		if p.toks[i].kind != tokName {
			return false
		}
		i++
		t := p.toks[i]
		if t.kind != tokOp {
			return false
		}
		switch t.text {
		case ",":
			i++
		case "=":
			return true
		default:
			return false
		}
	}
}

// scanStringList consumes the value when it is a literal list or tuple of
// strings and returns the contents; otherwise the stream is left where it
// was and nil comes back.
func (p *parser) scanStringList() []string {
	open := p.cur()
	if open.kind != tokOp || (open.text != "[" && open.text != "(") {
		return nil
	}
	closing := "]"
	if open.text == "(" {
		closing = ")"
	}
	save := p.pos
	p.advance()
	out := []string{}
	for {
		if p.atOp(closing) {
			p.advance()
			if p.at(tokNewline) || p.at(tokEOF) || p.at(tokDedent) || p.atOp(";") {
				return out
			}
			break
		}
		if p.at(tokString) {
			s := p.cur().text
			p.advance()
			for p.at(tokString) { // adjacent literals concatenate
				s += p.cur().text
				p.advance()
			}
			out = append(out, s)
			if p.atOp(",") {
				p.advance()
			}
			continue
		}
		break
	}
	p.pos = save
	return nil
}
