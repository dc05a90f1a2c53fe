package compiler

import (
	"fmt"
	"strconv"

	"vela-lang/internal/chunk"
	"vela-lang/internal/token"
	"vela-lang/internal/value"
)

// compileExpression compiles one expression, leaving its value on top
// of the VM stack.
func (c *Compiler) compileExpression() error {
	return c.compilePrecedence(PrecAssignment)
}

// compilePrecedence is the Pratt loop: it compiles one prefix
// expression, then keeps folding in infix operators at or above p.
func (c *Compiler) compilePrecedence(p Precedence) error {
	canAssign := p <= PrecAssignment

	tok, ok, err := c.advance()
	if err != nil {
		return err
	}
	if !ok {
		return c.eofError("Expected expression")
	}
	if err := c.compilePrefix(tok, canAssign); err != nil {
		return err
	}

	for {
		nt, ok := c.tokens.peek()
		if !ok || nt.Type == token.Error {
			break
		}
		if precedenceOf(nt.Type) < p {
			break
		}
		opTok, _ := c.tokens.next()
		if err := c.compileInfix(opTok); err != nil {
			return err
		}
	}

	if canAssign {
		if eq, matched := c.advanceIfMatch(token.Equal); matched {
			return c.tokenError(eq, "Invalid assignment target")
		}
	}
	return nil
}

func (c *Compiler) compilePrefix(tok token.Token, canAssign bool) error {
	switch tok.Type {
	case token.LParen:
		return c.compileGrouping()
	case token.Minus, token.Bang:
		return c.compileUnary(tok)
	case token.Number:
		return c.compileNumber(tok)
	case token.Str:
		return c.compileStringLiteral(tok)
	case token.StrInterp:
		return c.compileStringInterp(tok)
	case token.True, token.False, token.Nil:
		return c.compileLiteral(tok)
	case token.Ident:
		return c.compileVariable(tok, canAssign)
	default:
		return c.tokenError(tok, "Expected expression")
	}
}

func (c *Compiler) compileInfix(tok token.Token) error {
	switch tok.Type {
	case token.Minus, token.Plus, token.Star, token.Slash,
		token.EqualEqual, token.BangEqual,
		token.Greater, token.GreaterEqual, token.Less, token.LessEqual:
		return c.compileBinary(tok)
	case token.And:
		return c.compileAnd(tok)
	case token.Or:
		return c.compileOr(tok)
	case token.QuestionColon:
		return c.compileElvis(tok)
	default:
		return c.tokenError(tok, "Unexpected token in expression")
	}
}

func (c *Compiler) compileNumber(tok token.Token) error {
	n, err := strconv.ParseFloat(tok.Lexeme, 64)
	if err != nil {
		return c.tokenError(tok, "Invalid number literal")
	}
	c.chunk.EmitConstant(value.Number(n), tok.Line)
	return nil
}

func (c *Compiler) compileStringLiteral(tok token.Token) error {
	c.chunk.EmitConstant(value.Str(tok.Lexeme), tok.Line)
	return nil
}

func (c *Compiler) compileLiteral(tok token.Token) error {
	switch tok.Type {
	case token.Nil:
		c.chunk.Write(chunk.OpNil, tok.Line)
	case token.True:
		c.chunk.Write(chunk.OpTrue, tok.Line)
	case token.False:
		c.chunk.Write(chunk.OpFalse, tok.Line)
	}
	return nil
}

func (c *Compiler) compileGrouping() error {
	if err := c.compileExpression(); err != nil {
		return err
	}
	_, err := c.consumeToken(token.RParen, "Expected ')' after expression")
	return err
}

func (c *Compiler) compileUnary(op token.Token) error {
	if err := c.compilePrecedence(PrecUnary); err != nil {
		return err
	}
	switch op.Type {
	case token.Minus:
		c.chunk.Write(chunk.OpNegate, op.Line)
	case token.Bang:
		c.chunk.Write(chunk.OpNot, op.Line)
	}
	return nil
}

func (c *Compiler) compileBinary(op token.Token) error {
	if err := c.compilePrecedence(precedenceOf(op.Type).next()); err != nil {
		return err
	}
	switch op.Type {
	case token.Plus:
		c.chunk.Write(chunk.OpAdd, op.Line)
	case token.Minus:
		c.chunk.Write(chunk.OpSub, op.Line)
	case token.Star:
		c.chunk.Write(chunk.OpMul, op.Line)
	case token.Slash:
		c.chunk.Write(chunk.OpDiv, op.Line)
	case token.EqualEqual, token.BangEqual:
		c.chunk.Write(chunk.OpEq, op.Line)
	case token.Greater, token.LessEqual:
		c.chunk.Write(chunk.OpGt, op.Line)
	case token.Less, token.GreaterEqual:
		c.chunk.Write(chunk.OpLt, op.Line)
	}
	switch op.Type {
	case token.BangEqual, token.GreaterEqual, token.LessEqual:
		c.chunk.Write(chunk.OpNot, op.Line)
	}
	return nil
}

// compileAnd lowers a and b as: a; JumpF short; Pop; b; short:
func (c *Compiler) compileAnd(op token.Token) error {
	short := c.chunk.AllocateNewLabel()
	c.chunk.PushMonkeyPatch(chunk.OpJumpF, op.Line, short)
	c.chunk.Write(chunk.OpPop, op.Line)
	if err := c.compilePrecedence(precedenceOf(token.And).next()); err != nil {
		return err
	}
	c.chunk.PushLabel(short)
	return nil
}

// compileOr lowers a or b as:
// a; JumpF rhs; JumpRelative short; rhs: Pop; b; short:
func (c *Compiler) compileOr(op token.Token) error {
	rhs := c.chunk.AllocateNewLabel()
	short := c.chunk.AllocateNewLabel()
	c.chunk.PushMonkeyPatch(chunk.OpJumpF, op.Line, rhs)
	c.chunk.PushMonkeyPatch(chunk.OpJumpRelative, op.Line, short)
	c.chunk.PushLabel(rhs)
	c.chunk.Write(chunk.OpPop, op.Line)
	if err := c.compilePrecedence(precedenceOf(token.Or).next()); err != nil {
		return err
	}
	c.chunk.PushLabel(short)
	return nil
}

// compileElvis lowers a ?: b as:
// a; Dup; Nil; Eq; JumpF short; Pop; Pop; b; JumpRelative end; short: Pop; end:
func (c *Compiler) compileElvis(op token.Token) error {
	short := c.chunk.AllocateNewLabel()
	end := c.chunk.AllocateNewLabel()
	c.chunk.Write(chunk.OpDup, op.Line)
	c.chunk.Write(chunk.OpNil, op.Line)
	c.chunk.Write(chunk.OpEq, op.Line)
	c.chunk.PushMonkeyPatch(chunk.OpJumpF, op.Line, short)
	c.chunk.Write(chunk.OpPop, op.Line)
	c.chunk.Write(chunk.OpPop, op.Line)
	if err := c.compilePrecedence(precedenceOf(token.QuestionColon).next()); err != nil {
		return err
	}
	c.chunk.PushMonkeyPatch(chunk.OpJumpRelative, op.Line, end)
	c.chunk.PushLabel(short)
	c.chunk.Write(chunk.OpPop, op.Line)
	c.chunk.PushLabel(end)
	return nil
}

func (c *Compiler) compileVariable(tok token.Token, canAssign bool) error {
	name := tok.Lexeme

	if slot, mutable, ok := c.scope.resolve(name); ok {
		if canAssign {
			if eq, matched := c.advanceIfMatch(token.Equal); matched {
				if !mutable {
					return c.tokenError(eq, fmt.Sprintf("Variable %s is not mutable", name))
				}
				if err := c.compileExpression(); err != nil {
					return err
				}
				c.chunk.WriteSlot(chunk.OpSetLocal, uint32(slot), tok.Line)
				return nil
			}
		}
		c.chunk.WriteSlot(chunk.OpGetLocal, uint32(slot), tok.Line)
		return nil
	}

	if canAssign {
		if _, matched := c.advanceIfMatch(token.Equal); matched {
			if err := c.compileExpression(); err != nil {
				return err
			}
			slot := c.globals.use(name)
			c.chunk.WriteSlot(chunk.OpSetGlobal, slot, tok.Line)
			return nil
		}
	}

	slot := c.globals.use(name)
	c.chunk.WriteSlot(chunk.OpGetGlobal, slot, tok.Line)
	return nil
}

// compileStringInterp compiles an interpolated string literal, folding
// every fragment and embedded expression together with Add.
// "x=${1+2}y" tokenizes as StrInterp("x="), <expr tokens>, RBrace,
// Str("y"), so the first fragment is pushed bare and every later
// fragment (plain Str or a further StrInterp hole) is pushed then
// immediately added.
func (c *Compiler) compileStringInterp(tok token.Token) error {
	fragment := tok
	first := true

	for {
		c.chunk.EmitConstant(value.Str(fragment.Lexeme), fragment.Line)
		if !first {
			c.chunk.Write(chunk.OpAdd, fragment.Line)
		}
		first = false

		if err := c.compileExpression(); err != nil {
			return err
		}
		c.chunk.Write(chunk.OpAdd, fragment.Line)

		if _, err := c.consumeToken(token.RBrace, "Expected '}' after interpolated expression"); err != nil {
			return err
		}

		nt, ok, err := c.advance()
		if err != nil {
			return err
		}
		if !ok {
			return c.eofError("Expected string fragment after interpolation")
		}

		switch nt.Type {
		case token.Str:
			c.chunk.EmitConstant(value.Str(nt.Lexeme), nt.Line)
			c.chunk.Write(chunk.OpAdd, nt.Line)
			return nil
		case token.StrInterp:
			fragment = nt
		default:
			return c.tokenError(nt, "Expected string continuation after interpolation")
		}
	}
}
