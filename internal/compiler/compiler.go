// Package compiler implements Vela's single-pass Pratt-parsing
// compiler: it reads tokens from a scanner and emits bytecode directly,
// with no intermediate AST.
package compiler

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"vela-lang/internal/chunk"
	"vela-lang/internal/scanner"
	"vela-lang/internal/token"

	"golang.org/x/exp/maps"
)

// Error is a compile-time diagnostic. It renders as either
// "Error at line L, token 'T': MSG" or "Error at end of file: MSG".
type Error struct {
	EOF   bool
	Line  int
	Token string
	Msg   string
}

func (e *Error) Error() string {
	if e.EOF {
		return fmt.Sprintf("Error at end of file: %s", e.Msg)
	}
	return fmt.Sprintf("Error at line %d, token '%s': %s", e.Line, e.Token, e.Msg)
}

// Precedence orders Vela's operators from loosest to tightest binding.
type Precedence int

const (
	PrecNone Precedence = iota
	PrecAssignment
	PrecOr
	PrecAnd
	PrecEquality
	PrecComparison
	PrecElvis
	PrecTerm
	PrecFactor
	PrecUnary
	PrecCall
	PrecPrimary
)

func (p Precedence) next() Precedence {
	if p == PrecPrimary {
		return PrecPrimary
	}
	return p + 1
}

func precedenceOf(t token.Type) Precedence {
	switch t {
	case token.Or:
		return PrecOr
	case token.And:
		return PrecAnd
	case token.EqualEqual, token.BangEqual:
		return PrecEquality
	case token.Less, token.LessEqual, token.Greater, token.GreaterEqual:
		return PrecComparison
	case token.QuestionColon:
		return PrecElvis
	case token.Plus, token.Minus:
		return PrecTerm
	case token.Star, token.Slash:
		return PrecFactor
	default:
		return PrecNone
	}
}

// tokenStream is a previous-peekable wrapper around the scanner, the
// only shape the rest of the compiler needs to drive parsing.
type tokenStream struct {
	sc       *scanner.Scanner
	peeked   *token.Token
	havePeek bool
	prev     token.Token
	havePrev bool
}

func newTokenStream(sc *scanner.Scanner) *tokenStream {
	return &tokenStream{sc: sc}
}

func (ts *tokenStream) peek() (token.Token, bool) {
	if !ts.havePeek {
		t, ok := ts.sc.Next()
		if !ok {
			return token.Token{}, false
		}
		ts.peeked = &t
		ts.havePeek = true
	}
	return *ts.peeked, true
}

func (ts *tokenStream) next() (token.Token, bool) {
	var t token.Token
	var ok bool
	if ts.havePeek {
		t, ok = *ts.peeked, true
		ts.peeked = nil
		ts.havePeek = false
	} else {
		t, ok = ts.sc.Next()
	}
	if ok {
		ts.prev = t
		ts.havePrev = true
	}
	return t, ok
}

func (ts *tokenStream) prevUnwrap() token.Token { return ts.prev }

// local is one entry of the compile-time scope stack. Its index in
// scope.locals is also the absolute VM stack slot it lives in.
type local struct {
	name    string
	depth   int
	mutable bool
}

type scope struct {
	locals []local
	depth  int
}

func (s *scope) enter() { s.depth++ }

// leave pops every local declared at the current depth and returns how
// many were popped, so the caller can emit that many Pop instructions.
func (s *scope) leave() int {
	n := 0
	for len(s.locals) > 0 && s.locals[len(s.locals)-1].depth == s.depth {
		s.locals = s.locals[:len(s.locals)-1]
		n++
	}
	s.depth--
	return n
}

func (s *scope) addLocal(name string, mutable bool) (int, bool) {
	for i := len(s.locals) - 1; i >= 0 && s.locals[i].depth == s.depth; i-- {
		if s.locals[i].name == name {
			return 0, false
		}
	}
	s.locals = append(s.locals, local{name: name, depth: s.depth, mutable: mutable})
	return len(s.locals) - 1, true
}

func (s *scope) resolve(name string) (slot int, mutable bool, ok bool) {
	for i := len(s.locals) - 1; i >= 0; i-- {
		if s.locals[i].name == name {
			return i, s.locals[i].mutable, true
		}
	}
	return 0, false, false
}

// globalBindings assigns dense slots to global names in first-use
// order and tracks which ones were only used, never declared, so a
// typo'd global can be reported once at the end of compilation instead
// of forcing declare-before-use everywhere.
type globalBindings struct {
	order    []string
	slots    map[string]uint32
	declared map[string]bool
}

func newGlobalBindings() *globalBindings {
	return &globalBindings{slots: map[string]uint32{}, declared: map[string]bool{}}
}

func (g *globalBindings) ensureSlot(name string) uint32 {
	if slot, ok := g.slots[name]; ok {
		return slot
	}
	slot := uint32(len(g.order))
	g.order = append(g.order, name)
	g.slots[name] = slot
	return slot
}

func (g *globalBindings) declare(name string) (uint32, bool) {
	if g.declared[name] {
		return 0, false
	}
	slot := g.ensureSlot(name)
	g.declared[name] = true
	return slot, true
}

func (g *globalBindings) use(name string) uint32 {
	return g.ensureSlot(name)
}

func (g *globalBindings) count() int { return len(g.order) }

// undeclaredNames returns, sorted, every global that was referenced but
// never declared by the end of compilation.
func (g *globalBindings) undeclaredNames() []string {
	pending := make(map[string]struct{})
	for _, name := range g.order {
		if !g.declared[name] {
			pending[name] = struct{}{}
		}
	}
	names := slices.Collect(maps.Keys(pending))
	sort.Strings(names)
	return names
}

// Compiler drives the single-pass Pratt parse and owns the chunk being
// assembled.
type Compiler struct {
	tokens  *tokenStream
	chunk   *chunk.Chunk
	scope   *scope
	globals *globalBindings
}

// Compile compiles source into a ready-to-run Chunk, or returns the
// first compile error encountered. There is no error recovery: the
// first bad token or statement aborts the whole compile.
func Compile(source string) (*chunk.Chunk, error) {
	c := &Compiler{
		tokens:  newTokenStream(scanner.New(source)),
		chunk:   chunk.New(),
		scope:   &scope{},
		globals: newGlobalBindings(),
	}

	for {
		if _, ok := c.tokens.peek(); !ok {
			break
		}
		if err := c.compileDecl(); err != nil {
			return nil, err
		}
	}

	c.chunk.Write(chunk.OpReturn, c.lastLine())
	c.chunk.GlobalsCount = uint32(c.globals.count())

	if names := c.globals.undeclaredNames(); len(names) > 0 {
		return nil, &Error{EOF: true, Msg: fmt.Sprintf("Undeclared global variable(s): %s", strings.Join(names, ", "))}
	}

	if err := c.chunk.ResolveMonkeyPatches(); err != nil {
		return nil, &Error{EOF: true, Msg: err.Error()}
	}

	return c.chunk, nil
}

func (c *Compiler) lastLine() int {
	if c.tokens.havePrev {
		return c.tokens.prev.Line
	}
	return 1
}

// advance pulls the next token off the stream, turning a scanner Error
// token into an immediate compile error.
func (c *Compiler) advance() (token.Token, bool, error) {
	tok, ok := c.tokens.next()
	if !ok {
		return token.Token{}, false, nil
	}
	if tok.Type == token.Error {
		return token.Token{}, false, c.tokenError(tok, fmt.Sprintf("Unexpected token '%s'", tok.Lexeme))
	}
	return tok, true, nil
}

// advanceIfMatch consumes and returns the next token only if it has
// type t, leaving the stream untouched otherwise. It never reports an
// Error token itself; that happens on a later genuine advance.
func (c *Compiler) advanceIfMatch(t token.Type) (token.Token, bool) {
	tok, ok := c.tokens.peek()
	if !ok || tok.Type != t {
		return token.Token{}, false
	}
	return c.tokens.next()
}

func (c *Compiler) consumeToken(expected token.Type, msg string) (token.Token, error) {
	tok, ok, err := c.advance()
	if err != nil {
		return token.Token{}, err
	}
	if !ok {
		return token.Token{}, c.eofError(msg)
	}
	if tok.Type != expected {
		return token.Token{}, c.tokenError(tok, msg)
	}
	return tok, nil
}

func (c *Compiler) tokenError(tok token.Token, msg string) error {
	return &Error{Line: tok.Line, Token: tok.Lexeme, Msg: msg}
}

func (c *Compiler) eofError(msg string) error {
	return &Error{EOF: true, Msg: msg}
}
