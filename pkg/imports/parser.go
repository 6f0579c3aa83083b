package imports

// statementParser walks the token stream and recognises import statements.
type statementParser struct {
	toks  []token
	decls []Declaration
}

func (p *statementParser) parse() []Declaration {
	for i := 0; i < len(p.toks); {
		tok := p.toks[i]
		if tok.kind != tokIdent || p.isMemberAccess(i) {
			i++
			continue
		}

		var next int
		var ok bool
		switch tok.value {
		case "import":
			next, ok = p.parseImport(i)
		case "require":
			next, ok = p.parseCall(i, KindCall)
		case "export":
			next, ok = p.parseExport(i)
		}
		if ok {
			i = next
			continue
		}
		i++
	}
	return p.decls
}

func (p *statementParser) at(i int) token {
	if i < 0 || i >= len(p.toks) {
		return token{kind: tokPunct, value: ""}
	}
	return p.toks[i]
}

func (p *statementParser) isPunct(i int, v string) bool {
	t := p.at(i)
	return t.kind == tokPunct && t.value == v
}

func (p *statementParser) isIdent(i int, v string) bool {
	t := p.at(i)
	return t.kind == tokIdent && t.value == v
}

// isMemberAccess reports whether the identifier at i follows a dot, as in
// obj.require(...) or import.meta.
func (p *statementParser) isMemberAccess(i int) bool {
	return i > 0 && p.isPunct(i-1, ".")
}

// finish records a declaration spanning toks[first..last] plus an optional
// trailing semicolon, and returns the index after the statement.
func (p *statementParser) finish(first, last int, kind Kind, path string, bindings []string) (int, bool) {
	end := p.toks[last].end
	next := last + 1
	if p.isPunct(next, ";") {
		end = p.toks[next].end
		next++
	}
	if bindings == nil {
		bindings = []string{}
	}
	p.decls = append(p.decls, Declaration{
		ModulePath: path,
		Bindings:   bindings,
		Kind:       kind,
		Start:      p.toks[first].start,
		End:        end,
	})
	return next, true
}

// parseCall recognises name("path") where the string is the sole argument.
func (p *statementParser) parseCall(i int, kind Kind) (int, bool) {
	if !p.isPunct(i+1, "(") || p.at(i+2).kind != tokString || !p.isPunct(i+3, ")") {
		return 0, false
	}
	end := p.toks[i+3].end
	p.decls = append(p.decls, Declaration{
		ModulePath: p.toks[i+2].value,
		Bindings:   []string{},
		Kind:       kind,
		Start:      p.toks[i].start,
		End:        end,
	})
	return i + 4, true
}

func (p *statementParser) parseImport(i int) (int, bool) {
	j := i + 1
	switch {
	case p.at(j).kind == tokString:
		return p.finish(i, j, KindStatic, p.toks[j].value, nil)
	case p.isPunct(j, "("):
		return p.parseCall(i, KindCall)
	case p.isPunct(j, "."):
		return 0, false
	}

	// import x = require("y")
	if p.at(j).kind == tokIdent && p.isPunct(j+1, "=") && p.isIdent(j+2, "require") &&
		p.isPunct(j+3, "(") && p.at(j+4).kind == tokString && p.isPunct(j+5, ")") {
		return p.finish(i, j+5, KindStatic, p.toks[j+4].value, []string{p.toks[j].value})
	}

	if p.isIdent(j, "type") && p.isTypeModifier(j) {
		j++
	}

	var bindings []string
	if t := p.at(j); t.kind == tokIdent && !p.isFromClause(j) {
		bindings = append(bindings, t.value)
		j++
		if !p.isPunct(j, ",") {
			return p.expectFrom(i, j, KindStatic, bindings)
		}
		j++
	}

	switch {
	case p.isPunct(j, "*"):
		name, next, ok := p.parseNamespace(j)
		if !ok {
			return 0, false
		}
		bindings = append(bindings, name)
		j = next
	case p.isPunct(j, "{"):
		named, next, ok := p.parseNamedList(j)
		if !ok {
			return 0, false
		}
		bindings = append(bindings, named...)
		j = next
	}

	if len(bindings) == 0 && !p.isPunct(j-1, "}") {
		return 0, false
	}
	return p.expectFrom(i, j, KindStatic, bindings)
}

// isFromClause reports whether the identifier at j is the `from` keyword that
// closes an import clause rather than a default binding named "from".
func (p *statementParser) isFromClause(j int) bool {
	return p.isIdent(j, "from") && p.at(j+1).kind == tokString
}

// isTypeModifier reports whether `type` at j modifies the clause that follows
// instead of being a binding named "type".
func (p *statementParser) isTypeModifier(j int) bool {
	next := p.at(j + 1)
	if next.kind == tokIdent {
		return !p.isFromClause(j + 1)
	}
	return p.isPunct(j+1, "{") || p.isPunct(j+1, "*")
}

func (p *statementParser) expectFrom(first, j int, kind Kind, bindings []string) (int, bool) {
	if !p.isIdent(j, "from") || p.at(j+1).kind != tokString {
		return 0, false
	}
	return p.finish(first, j+1, kind, p.toks[j+1].value, bindings)
}

// parseNamespace parses `* as name` starting at the star.
func (p *statementParser) parseNamespace(j int) (string, int, bool) {
	if !p.isIdent(j+1, "as") || p.at(j+2).kind != tokIdent {
		return "", 0, false
	}
	return p.toks[j+2].value, j + 3, true
}

// parseNamedList parses `{ a, b as c, type D }` starting at the opening brace
// and returns the local names it binds.
func (p *statementParser) parseNamedList(j int) ([]string, int, bool) {
	names := []string{}
	j++
	for {
		if p.isPunct(j, "}") {
			return names, j + 1, true
		}

		if p.isIdent(j, "type") && p.at(j+1).kind == tokIdent && !p.isIdent(j+1, "as") {
			j++
		}

		orig := p.at(j)
		if orig.kind != tokIdent && orig.kind != tokString {
			return nil, 0, false
		}
		j++

		local := ""
		if orig.kind == tokIdent {
			local = orig.value
		}
		if p.isIdent(j, "as") {
			alias := p.at(j + 1)
			if alias.kind != tokIdent {
				return nil, 0, false
			}
			local = alias.value
			j += 2
		}
		if local == "" || local == "default" {
			return nil, 0, false
		}
		names = append(names, local)

		switch {
		case p.isPunct(j, ","):
			j++
		case p.isPunct(j, "}"):
		default:
			return nil, 0, false
		}
	}
}

// parseExport recognises re-exports: export * from "x", export * as ns from "x",
// export { a, b } from "x". Re-exports bind nothing locally.
func (p *statementParser) parseExport(i int) (int, bool) {
	j := i + 1
	if p.isIdent(j, "type") && (p.isPunct(j+1, "{") || p.isPunct(j+1, "*")) {
		j++
	}
	switch {
	case p.isPunct(j, "*"):
		j++
		if p.isIdent(j, "as") {
			if p.at(j+1).kind != tokIdent {
				return 0, false
			}
			j += 2
		}
	case p.isPunct(j, "{"):
		if _, next, ok := p.parseNamedList(j); ok {
			j = next
		} else if next, ok := p.skipBraces(j); ok {
			j = next
		} else {
			return 0, false
		}
	default:
		return 0, false
	}
	return p.expectFrom(i, j, KindReexport, nil)
}

// skipBraces advances past a balanced { ... } group starting at j.
func (p *statementParser) skipBraces(j int) (int, bool) {
	depth := 0
	for ; j < len(p.toks); j++ {
		switch {
		case p.isPunct(j, "{"):
			depth++
		case p.isPunct(j, "}"):
			depth--
			if depth == 0 {
				return j + 1, true
			}
		case p.isPunct(j, ";"):
			return 0, false
		}
	}
	return 0, false
}
