package muql

import (
	"fmt"
	"strconv"
	"strings"
)

// SyntaxError reports a parse failure with the 1-based line/column of the
// offending token (spec.md §4.4 "syntactic errors are caught at parse
// time with line/column").
type SyntaxError struct {
	Line, Column int
	Msg          string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("muql: syntax error at line %d, column %d: %s", e.Line, e.Column, e.Msg)
}

// Parser turns MUQL source into a Statement via one token of lookahead.
type Parser struct {
	lex  *Lexer
	tok  Token
	peek *Token
}

// Parse parses a single MUQL statement.
func Parse(src string) (Statement, error) {
	p := &Parser{lex: NewLexer(src)}
	if err := p.next(); err != nil {
		return nil, err
	}
	return p.parseStatement()
}

func (p *Parser) next() error {
	if p.peek != nil {
		p.tok = *p.peek
		p.peek = nil
		return nil
	}
	t, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *Parser) expectKeyword(kw string) error {
	if p.tok.Kind != TokKeyword || p.tok.Text != kw {
		return p.errorf("expected %s, got %q", kw, p.tok.Text)
	}
	return p.next()
}

func (p *Parser) errorf(format string, args ...any) error {
	return &SyntaxError{Line: p.tok.Line, Column: p.tok.Column, Msg: fmt.Sprintf(format, args...)}
}

func (p *Parser) parseStatement() (Statement, error) {
	if p.tok.Kind != TokKeyword {
		return nil, p.errorf("expected a statement keyword (SELECT, SHOW, FIND, PATH, ANALYZE), got %q", p.tok.Text)
	}
	switch p.tok.Text {
	case "SELECT":
		return p.parseSelect()
	case "SHOW":
		return p.parseShow()
	case "FIND":
		return p.parseFind()
	case "PATH":
		return p.parsePath()
	case "ANALYZE":
		return p.parseAnalyze()
	default:
		return nil, p.errorf("unknown statement keyword %q", p.tok.Text)
	}
}

// --- SELECT ---

func (p *Parser) parseSelect() (Statement, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}

	var fields []string
	if p.tok.Kind == TokStar {
		fields = []string{"*"}
		if err := p.next(); err != nil {
			return nil, err
		}
	} else {
		for {
			if p.tok.Kind != TokIdent && p.tok.Kind != TokKeyword {
				return nil, p.errorf("expected a field name, got %q", p.tok.Text)
			}
			field := p.tok.Text
			if p.tok.Kind == TokKeyword {
				field = strings.ToLower(field)
			}
			fields = append(fields, field)
			if err := p.next(); err != nil {
				return nil, err
			}
			if p.tok.Kind != TokComma {
				break
			}
			if err := p.next(); err != nil {
				return nil, err
			}
		}
	}

	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	if p.tok.Kind != TokIdent && p.tok.Kind != TokKeyword {
		return nil, p.errorf("expected a table name after FROM, got %q", p.tok.Text)
	}
	from := strings.ToLower(p.tok.Text)
	if err := p.next(); err != nil {
		return nil, err
	}

	stmt := &SelectStmt{Fields: fields, From: from}

	if p.tok.Kind == TokKeyword && p.tok.Text == "WHERE" {
		if err := p.next(); err != nil {
			return nil, err
		}
		cond, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		stmt.Where = cond
	}

	if p.tok.Kind == TokKeyword && p.tok.Text == "ORDER" {
		if err := p.next(); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			if p.tok.Kind != TokIdent && p.tok.Kind != TokKeyword {
				return nil, p.errorf("expected a field name in ORDER BY, got %q", p.tok.Text)
			}
			term := OrderTerm{Field: p.tok.Text}
			if p.tok.Kind == TokKeyword {
				term.Field = strings.ToLower(term.Field)
			}
			if err := p.next(); err != nil {
				return nil, err
			}
			if p.tok.Kind == TokKeyword && (p.tok.Text == "ASC" || p.tok.Text == "DESC") {
				term.Desc = p.tok.Text == "DESC"
				if err := p.next(); err != nil {
					return nil, err
				}
			}
			stmt.OrderBy = append(stmt.OrderBy, term)
			if p.tok.Kind != TokComma {
				break
			}
			if err := p.next(); err != nil {
				return nil, err
			}
		}
	}

	if p.tok.Kind == TokKeyword && p.tok.Text == "LIMIT" {
		if err := p.next(); err != nil {
			return nil, err
		}
		n, err := p.parseIntLiteral()
		if err != nil {
			return nil, err
		}
		stmt.Limit = &n
	}

	if p.tok.Kind != TokEOF {
		return nil, p.errorf("unexpected trailing input %q", p.tok.Text)
	}
	return stmt, nil
}

func (p *Parser) parseCondition() (*Condition, error) {
	if p.tok.Kind != TokIdent && p.tok.Kind != TokKeyword {
		return nil, p.errorf("expected a field name in WHERE, got %q", p.tok.Text)
	}
	field := p.tok.Text
	if p.tok.Kind == TokKeyword {
		field = strings.ToLower(field)
	}
	if err := p.next(); err != nil {
		return nil, err
	}

	op := "="
	if p.tok.Kind == TokOp {
		op = p.tok.Text
		if err := p.next(); err != nil {
			return nil, err
		}
	} else if (p.tok.Kind == TokKeyword || p.tok.Kind == TokIdent) && strings.ToUpper(p.tok.Text) == "CONTAINS" {
		op = "CONTAINS"
		if err := p.next(); err != nil {
			return nil, err
		}
	} else {
		return nil, p.errorf("expected a comparison operator, got %q", p.tok.Text)
	}

	val, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return &Condition{Field: field, Op: op, Value: val}, nil
}

func (p *Parser) parseValue() (any, error) {
	switch p.tok.Kind {
	case TokString:
		v := p.tok.Text
		return v, p.next()
	case TokNumber:
		v, err := strconv.ParseFloat(p.tok.Text, 64)
		if err != nil {
			return nil, p.errorf("invalid number %q", p.tok.Text)
		}
		return v, p.next()
	case TokIdent:
		v := p.tok.Text
		return v, p.next()
	default:
		return nil, p.errorf("expected a value, got %q", p.tok.Text)
	}
}

func (p *Parser) parseIntLiteral() (int, error) {
	if p.tok.Kind != TokNumber {
		return 0, p.errorf("expected a number, got %q", p.tok.Text)
	}
	n, err := strconv.Atoi(p.tok.Text)
	if err != nil {
		return 0, p.errorf("invalid integer %q", p.tok.Text)
	}
	return n, p.next()
}

// --- SHOW ---

func (p *Parser) parseShow() (Statement, error) {
	if err := p.expectKeyword("SHOW"); err != nil {
		return nil, err
	}
	if p.tok.Kind != TokKeyword {
		return nil, p.errorf("expected dependencies|dependents|callers|callees, got %q", p.tok.Text)
	}
	kind := strings.ToLower(p.tok.Text)
	switch kind {
	case "dependencies", "dependents", "callers", "callees":
	default:
		return nil, p.errorf("unknown SHOW kind %q", p.tok.Text)
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("OF"); err != nil {
		return nil, err
	}
	if p.tok.Kind != TokIdent && p.tok.Kind != TokString {
		return nil, p.errorf("expected a name or id after OF, got %q", p.tok.Text)
	}
	of := p.tok.Text
	if err := p.next(); err != nil {
		return nil, err
	}

	stmt := &ShowStmt{Kind: kind, Of: of, Depth: 1}
	if p.tok.Kind == TokKeyword && p.tok.Text == "DEPTH" {
		if err := p.next(); err != nil {
			return nil, err
		}
		n, err := p.parseIntLiteral()
		if err != nil {
			return nil, err
		}
		stmt.Depth = n
	}
	if p.tok.Kind != TokEOF {
		return nil, p.errorf("unexpected trailing input %q", p.tok.Text)
	}
	return stmt, nil
}

// --- FIND ---

func (p *Parser) parseFind() (Statement, error) {
	if err := p.expectKeyword("FIND"); err != nil {
		return nil, err
	}
	if p.tok.Kind != TokKeyword {
		return nil, p.errorf("expected modules|classes|functions, got %q", p.tok.Text)
	}
	kind := strings.ToLower(p.tok.Text)
	if err := p.next(); err != nil {
		return nil, err
	}

	var relation string
	switch {
	case p.tok.Kind == TokKeyword && p.tok.Text == "CALLING":
		relation = "CALLING"
		if err := p.next(); err != nil {
			return nil, err
		}
	case p.tok.Kind == TokKeyword && p.tok.Text == "CALLED":
		if err := p.next(); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		relation = "CALLED_BY"
	case p.tok.Kind == TokKeyword && p.tok.Text == "IMPLEMENTING":
		relation = "IMPLEMENTING"
		if err := p.next(); err != nil {
			return nil, err
		}
	case p.tok.Kind == TokKeyword && p.tok.Text == "INHERITING":
		if err := p.next(); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("FROM"); err != nil {
			return nil, err
		}
		relation = "INHERITING_FROM"
	case p.tok.Kind == TokKeyword && p.tok.Text == "WITH":
		if err := p.next(); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("DECORATOR"); err != nil {
			return nil, err
		}
		relation = "WITH_DECORATOR"
	default:
		return nil, p.errorf("expected CALLING, CALLED BY, IMPLEMENTING, INHERITING FROM, or WITH DECORATOR, got %q", p.tok.Text)
	}

	if p.tok.Kind != TokIdent && p.tok.Kind != TokString {
		return nil, p.errorf("expected a value, got %q", p.tok.Text)
	}
	value := p.tok.Text
	if err := p.next(); err != nil {
		return nil, err
	}
	if p.tok.Kind != TokEOF {
		return nil, p.errorf("unexpected trailing input %q", p.tok.Text)
	}
	return &FindStmt{Kind: kind, Relation: relation, Value: value}, nil
}

// --- PATH ---

func (p *Parser) parsePath() (Statement, error) {
	if err := p.expectKeyword("PATH"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	if p.tok.Kind != TokIdent && p.tok.Kind != TokString {
		return nil, p.errorf("expected a node name or id, got %q", p.tok.Text)
	}
	from := p.tok.Text
	if err := p.next(); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("TO"); err != nil {
		return nil, err
	}
	if p.tok.Kind != TokIdent && p.tok.Kind != TokString {
		return nil, p.errorf("expected a node name or id, got %q", p.tok.Text)
	}
	to := p.tok.Text
	if err := p.next(); err != nil {
		return nil, err
	}

	stmt := &PathStmt{From: from, To: to}
	if p.tok.Kind == TokKeyword && p.tok.Text == "MAX" {
		if err := p.next(); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("DEPTH"); err != nil {
			return nil, err
		}
		n, err := p.parseIntLiteral()
		if err != nil {
			return nil, err
		}
		stmt.MaxDepth = n
	}
	if p.tok.Kind != TokEOF {
		return nil, p.errorf("unexpected trailing input %q", p.tok.Text)
	}
	return stmt, nil
}

// --- ANALYZE ---

func (p *Parser) parseAnalyze() (Statement, error) {
	if err := p.expectKeyword("ANALYZE"); err != nil {
		return nil, err
	}
	if p.tok.Kind != TokKeyword {
		return nil, p.errorf("expected circular|complexity|coupling|unused|hotspots, got %q", p.tok.Text)
	}
	kind := strings.ToLower(p.tok.Text)
	switch kind {
	case "circular", "complexity", "coupling", "unused", "hotspots":
	default:
		return nil, p.errorf("unknown ANALYZE kind %q", p.tok.Text)
	}
	if err := p.next(); err != nil {
		return nil, err
	}

	stmt := &AnalyzeStmt{Kind: kind}
	if p.tok.Kind == TokKeyword && p.tok.Text == "THRESHOLD" {
		if err := p.next(); err != nil {
			return nil, err
		}
		n, err := p.parseIntLiteral()
		if err != nil {
			return nil, err
		}
		stmt.Threshold = n
		stmt.HasThresh = true
	}
	if p.tok.Kind != TokEOF {
		return nil, p.errorf("unexpected trailing input %q", p.tok.Text)
	}
	return stmt, nil
}
