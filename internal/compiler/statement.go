package compiler

import (
	"fmt"

	"vela-lang/internal/chunk"
	"vela-lang/internal/token"
)

func (c *Compiler) compileDecl() error {
	if tok, ok := c.advanceIfMatch(token.Var); ok {
		return c.compileVarDecl(tok, true)
	}
	if tok, ok := c.advanceIfMatch(token.Val); ok {
		return c.compileVarDecl(tok, false)
	}
	return c.compileStatement()
}

func (c *Compiler) compileVarDecl(kw token.Token, mutable bool) error {
	nameTok, err := c.consumeToken(token.Ident, fmt.Sprintf("Expected identifier after '%s'", kw.Lexeme))
	if err != nil {
		return err
	}
	name := nameTok.Lexeme

	if _, matched := c.advanceIfMatch(token.Equal); matched {
		if err := c.compileExpression(); err != nil {
			return err
		}
	} else {
		c.chunk.Write(chunk.OpNil, nameTok.Line)
	}

	isLocal := c.scope.depth > 0
	var slot uint32

	if isLocal {
		s, ok := c.scope.addLocal(name, mutable)
		if !ok {
			return c.tokenError(nameTok, fmt.Sprintf("Variable '%s' is already declared in this scope", name))
		}
		slot = uint32(s)
	} else {
		if !mutable {
			return c.tokenError(nameTok, "Immutable ('val') global variables are not allowed")
		}
		s, ok := c.globals.declare(name)
		if !ok {
			return c.tokenError(nameTok, fmt.Sprintf("Variable '%s' is already declared", name))
		}
		slot = s
	}

	if _, err := c.consumeToken(token.Semi, "Expected ';' after variable declaration"); err != nil {
		return err
	}

	if !isLocal {
		c.chunk.WriteSlot(chunk.OpSetGlobal, slot, nameTok.Line)
		c.chunk.Write(chunk.OpPop, nameTok.Line)
	}
	return nil
}

func (c *Compiler) compileStatement() error {
	if tok, ok := c.advanceIfMatch(token.Print); ok {
		return c.compilePrintStatement(tok)
	}
	if tok, ok := c.advanceIfMatch(token.If); ok {
		return c.compileIfStatement(tok)
	}
	if tok, ok := c.advanceIfMatch(token.While); ok {
		return c.compileWhileStatement(tok)
	}
	if tok, ok := c.advanceIfMatch(token.For); ok {
		return c.compileForStatement(tok)
	}
	if tok, ok := c.advanceIfMatch(token.Match); ok {
		return c.compileMatchStatement(tok)
	}
	if tok, ok := c.advanceIfMatch(token.LBrace); ok {
		c.scope.enter()
		if err := c.compileBlock(); err != nil {
			return err
		}
		n := c.scope.leave()
		for i := 0; i < n; i++ {
			c.chunk.Write(chunk.OpPop, tok.Line)
		}
		return nil
	}
	return c.compileExpressionStatement()
}

func (c *Compiler) compileBlock() error {
	for {
		tok, ok := c.tokens.peek()
		if !ok {
			return c.eofError("Expected '}' after block")
		}
		if tok.Type == token.RBrace {
			break
		}
		if err := c.compileDecl(); err != nil {
			return err
		}
	}
	_, err := c.consumeToken(token.RBrace, "Expected '}' after block")
	return err
}

func (c *Compiler) compileExpressionStatement() error {
	if err := c.compileExpression(); err != nil {
		return err
	}
	semi, err := c.consumeToken(token.Semi, "Expected ';' after expression")
	if err != nil {
		return err
	}
	c.chunk.Write(chunk.OpPop, semi.Line)
	return nil
}

func (c *Compiler) compilePrintStatement(kw token.Token) error {
	if err := c.compileExpression(); err != nil {
		return err
	}
	if _, err := c.consumeToken(token.Semi, "Expected ';' after value"); err != nil {
		return err
	}
	c.chunk.Write(chunk.OpPrint, kw.Line)
	return nil
}

// compileIfStatement lowers if (c) s [else e] as:
// c; JumpF else; Pop; s; JumpRelative end; else: Pop; [e]; end:
func (c *Compiler) compileIfStatement(kw token.Token) error {
	if _, err := c.consumeToken(token.LParen, "Expected '(' after 'if'"); err != nil {
		return err
	}
	if err := c.compileExpression(); err != nil {
		return err
	}
	if _, err := c.consumeToken(token.RParen, "Expected ')' after if condition"); err != nil {
		return err
	}

	elseLabel := c.chunk.AllocateNewLabel()
	endLabel := c.chunk.AllocateNewLabel()

	c.chunk.PushMonkeyPatch(chunk.OpJumpF, kw.Line, elseLabel)
	c.chunk.Write(chunk.OpPop, kw.Line)
	if err := c.compileStatement(); err != nil {
		return err
	}
	c.chunk.PushMonkeyPatch(chunk.OpJumpRelative, kw.Line, endLabel)

	c.chunk.PushLabel(elseLabel)
	c.chunk.Write(chunk.OpPop, kw.Line)
	if _, ok := c.advanceIfMatch(token.Else); ok {
		if err := c.compileStatement(); err != nil {
			return err
		}
	}

	c.chunk.PushLabel(endLabel)
	return nil
}

// compileWhileStatement lowers while (c) s as:
// cond: c; JumpF end; Pop; s; JumpRelative cond; end: Pop;
func (c *Compiler) compileWhileStatement(kw token.Token) error {
	condLabel := c.chunk.AllocateNewLabel()
	endLabel := c.chunk.AllocateNewLabel()

	if _, err := c.consumeToken(token.LParen, "Expected '(' after 'while'"); err != nil {
		return err
	}
	c.chunk.PushLabel(condLabel)
	if err := c.compileExpression(); err != nil {
		return err
	}
	if _, err := c.consumeToken(token.RParen, "Expected ')' after while condition"); err != nil {
		return err
	}

	c.chunk.PushMonkeyPatch(chunk.OpJumpF, kw.Line, endLabel)
	c.chunk.Write(chunk.OpPop, kw.Line)
	if err := c.compileStatement(); err != nil {
		return err
	}
	c.chunk.PushMonkeyPatch(chunk.OpJumpRelative, kw.Line, condLabel)

	c.chunk.PushLabel(endLabel)
	c.chunk.Write(chunk.OpPop, kw.Line)
	return nil
}

// compileForStatement lowers for (init; c; post) s, with any clause
// elidable (missing c behaves as true), as:
//
//	init; cond: c; JumpF end; JumpRelative body;
//	post: post; Pop; JumpRelative cond;
//	body: Pop; s; JumpRelative post;
//	end: Pop;
func (c *Compiler) compileForStatement(kw token.Token) error {
	condLabel := c.chunk.AllocateNewLabel()
	postLabel := c.chunk.AllocateNewLabel()
	bodyLabel := c.chunk.AllocateNewLabel()
	endLabel := c.chunk.AllocateNewLabel()

	if _, err := c.consumeToken(token.LParen, "Expected '(' after 'for'"); err != nil {
		return err
	}

	if _, ok := c.advanceIfMatch(token.Semi); !ok {
		if err := c.compileDecl(); err != nil {
			return err
		}
	}

	c.chunk.PushLabel(condLabel)
	if semiTok, ok := c.advanceIfMatch(token.Semi); ok {
		c.chunk.Write(chunk.OpTrue, semiTok.Line)
	} else {
		if err := c.compileExpression(); err != nil {
			return err
		}
		if _, err := c.consumeToken(token.Semi, "Expected ';' after for condition"); err != nil {
			return err
		}
	}
	c.chunk.PushMonkeyPatch(chunk.OpJumpF, kw.Line, endLabel)
	c.chunk.PushMonkeyPatch(chunk.OpJumpRelative, kw.Line, bodyLabel)

	c.chunk.PushLabel(postLabel)
	if _, ok := c.advanceIfMatch(token.RParen); !ok {
		if err := c.compileExpression(); err != nil {
			return err
		}
		c.chunk.Write(chunk.OpPop, kw.Line)
		if _, err := c.consumeToken(token.RParen, "Expected ')' after for clauses"); err != nil {
			return err
		}
	}
	c.chunk.PushMonkeyPatch(chunk.OpJumpRelative, kw.Line, condLabel)

	c.chunk.PushLabel(bodyLabel)
	c.chunk.Write(chunk.OpPop, kw.Line)
	if err := c.compileStatement(); err != nil {
		return err
	}
	c.chunk.PushMonkeyPatch(chunk.OpJumpRelative, kw.Line, postLabel)

	c.chunk.PushLabel(endLabel)
	c.chunk.Write(chunk.OpPop, kw.Line)
	return nil
}

// compileMatchStatement lowers:
//
//	match (e) { p1 | p2 => s1  p3 => s2  else => s3 }
//
// Each arm pushes a fresh "next branch" label before testing its own
// patterns, so that falling through every arm lands on a single
// trailing Pop shared with the normal end-of-match fallthrough: that
// one Pop removes the match subject in both the "some arm matched and
// jumped to end" and the "no arm matched" cases, since both paths
// converge on the same instruction.
func (c *Compiler) compileMatchStatement(kw token.Token) error {
	if _, err := c.consumeToken(token.LParen, "Expected '(' after 'match'"); err != nil {
		return err
	}
	if err := c.compileExpression(); err != nil {
		return err
	}
	if _, err := c.consumeToken(token.RParen, "Expected ')' after match expression"); err != nil {
		return err
	}
	if _, err := c.consumeToken(token.LBrace, "Expected '{' after match expression"); err != nil {
		return err
	}

	// The subject stays on the stack while the arms run; reserve its slot
	// with an unnamed local so locals declared inside an arm resolve to
	// their real stack index.
	c.scope.locals = append(c.scope.locals, local{depth: c.scope.depth})

	endLabel := c.chunk.AllocateNewLabel()
	nextBranch := c.chunk.AllocateNewLabel()

	for {
		if _, ok := c.advanceIfMatch(token.RBrace); ok {
			break
		}

		thisStatement := c.chunk.AllocateNewLabel()
		c.chunk.PushLabel(nextBranch)
		nextBranch = c.chunk.AllocateNewLabel()

		for {
			if _, ok := c.advanceIfMatch(token.Else); ok {
				c.chunk.Write(chunk.OpDup, kw.Line)
				c.chunk.PushMonkeyPatch(chunk.OpJumpRelative, kw.Line, thisStatement)
				break
			}

			c.chunk.Write(chunk.OpDup, kw.Line)
			if err := c.compileExpression(); err != nil {
				return err
			}
			c.chunk.Write(chunk.OpEq, kw.Line)
			c.chunk.Write(chunk.OpNot, kw.Line)
			c.chunk.PushMonkeyPatch(chunk.OpJumpF, kw.Line, thisStatement)
			c.chunk.Write(chunk.OpPop, kw.Line)

			if _, ok := c.advanceIfMatch(token.Bar); !ok {
				break
			}
		}

		if _, err := c.consumeToken(token.FatArrow, "Expected '=>' after match pattern"); err != nil {
			return err
		}

		c.chunk.PushMonkeyPatch(chunk.OpJumpRelative, kw.Line, nextBranch)

		c.chunk.PushLabel(thisStatement)
		c.chunk.Write(chunk.OpPop, kw.Line)
		if err := c.compileStatement(); err != nil {
			return err
		}
		c.chunk.PushMonkeyPatch(chunk.OpJumpRelative, kw.Line, endLabel)
	}

	c.chunk.PushLabel(endLabel)
	c.chunk.PushLabel(nextBranch)
	c.chunk.Write(chunk.OpPop, kw.Line)
	c.scope.locals = c.scope.locals[:len(c.scope.locals)-1]
	return nil
}
