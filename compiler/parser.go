package compiler

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser for the JavaScript subset
// ---------------------------------------------------------------------------

// Parser converts a token stream into an AST. It reports the first error it
// encounters and does not attempt recovery.
type Parser struct {
	tokens []Token
	pos    int
	eof    Token // sentinel returned past the end of the stream
}

// NewParser creates a parser over the fully tokenized input.
func NewParser(input string) *Parser {
	tokens := NewLexer(input).Tokenize()
	return &Parser{
		tokens: tokens,
		eof:    Token{Type: TokenEOF, Span: EmptySpan(len(input))},
	}
}

// current returns the token at the cursor.
func (p *Parser) current() Token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return p.eof
}

// advance consumes the current token and returns it.
func (p *Parser) advance() Token {
	tok := p.current()
	p.pos++
	return tok
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.current().Type == t
}

// expect consumes the current token if it matches, otherwise errors.
func (p *Parser) expect(t TokenType) (Token, error) {
	if p.curTokenIs(t) {
		return p.advance(), nil
	}
	return Token{}, p.unexpected(t.String())
}

// unexpected builds the error for a token that does not fit the grammar.
func (p *Parser) unexpected(expected string) error {
	tok := p.current()
	if tok.Type == TokenEOF {
		return &UnexpectedEOFError{}
	}
	return &UnexpectedTokenError{
		Expected: expected,
		Found:    tok.Type.String(),
		Span:     tok.Span,
	}
}

// prevSpan returns the span of the most recently consumed token.
func (p *Parser) prevSpan() Span {
	idx := p.pos - 1
	if idx < 0 {
		return EmptySpan(0)
	}
	if idx >= len(p.tokens) {
		idx = len(p.tokens) - 1
	}
	return p.tokens[idx].Span
}

// Parse parses the entire program.
func (p *Parser) Parse() (*Program, error) {
	var stmts []Stmt

	start := p.current().Span
	for !p.curTokenIs(TokenEOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}

	span := start
	if len(stmts) > 0 {
		span = stmts[0].Span().Merge(stmts[len(stmts)-1].Span())
	}
	return &Program{SpanVal: span, Statements: stmts}, nil
}

// parseStatement dispatches on the current token.
func (p *Parser) parseStatement() (Stmt, error) {
	switch p.current().Type {
	case TokenLet:
		return p.parseLetDecl()
	case TokenFunction:
		return p.parseFunctionDecl()
	case TokenIf:
		return p.parseIfStmt()
	case TokenFor:
		return p.parseForStmt()
	case TokenReturn:
		return p.parseReturnStmt()
	case TokenLBrace:
		return p.parseBlockStmt()
	default:
		// Expression statement with an optional trailing semicolon.
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if p.curTokenIs(TokenSemicolon) {
			p.advance()
		}
		return expr, nil
	}
}

// parseLetDecl parses: let x = expr;
func (p *Parser) parseLetDecl() (Stmt, error) {
	letTok, err := p.expect(TokenLet)
	if err != nil {
		return nil, err
	}

	nameTok, err := p.expect(TokenIdentifier)
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(TokenEqual); err != nil {
		return nil, err
	}

	init, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if p.curTokenIs(TokenSemicolon) {
		p.advance()
	}

	return &LetDecl{
		SpanVal: letTok.Span.Merge(p.prevSpan()),
		Name:    nameTok.Literal,
		Init:    init,
	}, nil
}

// parseFunctionDecl parses: function name(params) { body }
func (p *Parser) parseFunctionDecl() (Stmt, error) {
	fnTok, err := p.expect(TokenFunction)
	if err != nil {
		return nil, err
	}

	nameTok, err := p.expect(TokenIdentifier)
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(TokenLParen); err != nil {
		return nil, err
	}

	var params []string
	for !p.curTokenIs(TokenRParen) {
		paramTok, err := p.expect(TokenIdentifier)
		if err != nil {
			return nil, err
		}
		params = append(params, paramTok.Literal)

		if p.curTokenIs(TokenComma) {
			p.advance()
		}
	}

	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}

	body, err := p.parseBlockStmt()
	if err != nil {
		return nil, err
	}

	return &FunctionDecl{
		SpanVal: fnTok.Span.Merge(p.prevSpan()),
		Name:    nameTok.Literal,
		Params:  params,
		Body:    body.(*BlockStmt),
	}, nil
}

// parseIfStmt parses: if (cond) { then } else { else }
func (p *Parser) parseIfStmt() (Stmt, error) {
	ifTok, err := p.expect(TokenIf)
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(TokenLParen); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}

	then, err := p.parseBlockStmt()
	if err != nil {
		return nil, err
	}

	var elseBlock *BlockStmt
	if p.curTokenIs(TokenElse) {
		p.advance()
		eb, err := p.parseBlockStmt()
		if err != nil {
			return nil, err
		}
		elseBlock = eb.(*BlockStmt)
	}

	return &IfStmt{
		SpanVal: ifTok.Span.Merge(p.prevSpan()),
		Cond:    cond,
		Then:    then.(*BlockStmt),
		Else:    elseBlock,
	}, nil
}

// parseForStmt parses: for (init; cond; update) { body }
// The init statement consumes its own semicolon.
func (p *Parser) parseForStmt() (Stmt, error) {
	forTok, err := p.expect(TokenFor)
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(TokenLParen); err != nil {
		return nil, err
	}

	init, err := p.parseStatement()
	if err != nil {
		return nil, err
	}

	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenSemicolon); err != nil {
		return nil, err
	}

	update, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}

	body, err := p.parseBlockStmt()
	if err != nil {
		return nil, err
	}

	return &ForStmt{
		SpanVal: forTok.Span.Merge(p.prevSpan()),
		Init:    init,
		Cond:    cond,
		Update:  update,
		Body:    body.(*BlockStmt),
	}, nil
}

// parseReturnStmt parses: return expr;
func (p *Parser) parseReturnStmt() (Stmt, error) {
	retTok, err := p.expect(TokenReturn)
	if err != nil {
		return nil, err
	}

	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if p.curTokenIs(TokenSemicolon) {
		p.advance()
	}

	return &ReturnStmt{
		SpanVal: retTok.Span.Merge(p.prevSpan()),
		Value:   value,
	}, nil
}

// parseBlockStmt parses: { statements }
func (p *Parser) parseBlockStmt() (Stmt, error) {
	lbrace, err := p.expect(TokenLBrace)
	if err != nil {
		return nil, err
	}

	var stmts []Stmt
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}

	rbrace, err := p.expect(TokenRBrace)
	if err != nil {
		return nil, err
	}

	return &BlockStmt{
		SpanVal:    lbrace.Span.Merge(rbrace.Span),
		Statements: stmts,
	}, nil
}

// ---------------------------------------------------------------------------
// Expression parsing: precedence climbing, lowest level first
// ---------------------------------------------------------------------------

func (p *Parser) parseExpression() (Expr, error) {
	return p.parseAdditive()
}

// parseAdditive parses: term ((+|-) term)*
func (p *Parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}

	for p.curTokenIs(TokenPlus) || p.curTokenIs(TokenMinus) {
		op := BinAdd
		if p.curTokenIs(TokenMinus) {
			op = BinSub
		}
		p.advance()

		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}

		left = &BinaryExpr{
			SpanVal: left.Span().Merge(right.Span()),
			Op:      op,
			Left:    left,
			Right:   right,
		}
	}

	return left, nil
}

// parseMultiplicative parses: call ((*|/) call)*
func (p *Parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseCall()
	if err != nil {
		return nil, err
	}

	for p.curTokenIs(TokenStar) || p.curTokenIs(TokenSlash) {
		op := BinMul
		if p.curTokenIs(TokenSlash) {
			op = BinDiv
		}
		p.advance()

		right, err := p.parseCall()
		if err != nil {
			return nil, err
		}

		left = &BinaryExpr{
			SpanVal: left.Span().Merge(right.Span()),
			Op:      op,
			Left:    left,
			Right:   right,
		}
	}

	return left, nil
}

// parseCall parses a primary expression followed by any number of call
// suffixes: f(a, b), f()().
func (p *Parser) parseCall() (Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for p.curTokenIs(TokenLParen) {
		p.advance()

		var args []Expr
		for !p.curTokenIs(TokenRParen) {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)

			if p.curTokenIs(TokenComma) {
				p.advance()
			}
		}

		rparen, err := p.expect(TokenRParen)
		if err != nil {
			return nil, err
		}

		expr = &CallExpr{
			SpanVal: expr.Span().Merge(rparen.Span),
			Callee:  expr,
			Args:    args,
		}
	}

	return expr, nil
}

// parsePrimary parses: number | identifier | (expr)
func (p *Parser) parsePrimary() (Expr, error) {
	switch p.current().Type {
	case TokenNumber:
		tok := p.advance()
		return &NumberLiteral{SpanVal: tok.Span, Value: tok.Value}, nil

	case TokenIdentifier:
		tok := p.advance()
		return &Identifier{SpanVal: tok.Span, Name: tok.Literal}, nil

	case TokenLParen:
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return expr, nil

	default:
		return nil, p.unexpected("expression")
	}
}
