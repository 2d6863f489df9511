// Package compiler implements a single-pass recursive-descent compiler: it
// walks the token stream exactly once, emitting bytecode directly as it
// recognizes each grammar production. There is no intermediate syntax tree.
package compiler

import (
	"fmt"

	"loxvm/bytecode"
	"loxvm/token"
	"loxvm/value"
)

const maxLocals = 255

// local mirrors one declared name at compile time: its name, for resolution
// by lexical lookup, and its scope depth. A scope of -1 means the local has
// been reserved but its initializer has not finished compiling yet; reading
// it in that state is a reflexive-initializer error ("var a = a;").
type local struct {
	name  string
	scope int
}

// funcState holds everything the compiler tracks per function being
// compiled: its output record, its locals table, and its current scope
// depth. Compiling a nested function declaration pushes a new funcState and
// chains it to the one it interrupts.
type funcState struct {
	function   *value.Function
	locals     []local
	scopeDepth int
	enclosing  *funcState
}

// Compiler turns a token stream into a single top-level Function named
// "__main__", whose body is every top-level declaration in the program.
// Nested `fun` declarations compile into their own Function records,
// referenced from the enclosing function's constant pool.
type Compiler struct {
	tokens   []token.Token
	pos      int
	previous token.Token
	fn       *funcState

	// lastIdentSlot records the local slot referenced by the most recently
	// emitted OP_GET, so that assignment() can retarget a bare-identifier
	// read as a write without re-resolving the name.
	lastIdentSlot int
}

// Compile compiles the full token stream (as produced by lexer.Scan, ending
// in an EOF token) into the top-level function.
func Compile(tokens []token.Token) (fn *value.Function, err error) {
	c := &Compiler{
		tokens: tokens,
		fn:     &funcState{function: value.NewFunction("__main__")},
	}

	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case CompileError:
				err = v
			case DeveloperError:
				err = v
			default:
				panic(r)
			}
		}
	}()

	for !c.reachedEOF() {
		c.declaration()
	}
	return c.fn.function, nil
}

// --- token cursor -----------------------------------------------------
//
// Grounded on the eatToken/peekToken/matchAndEatToken/reachedEOF cursor
// used by the reference recursive-descent parser this compiler replaces.

func (c *Compiler) peekToken() token.Token {
	return c.tokens[c.pos]
}

func (c *Compiler) reachedEOF() bool {
	return c.tokens[c.pos].TokenType == token.EOF
}

func (c *Compiler) eatToken() token.Token {
	tok := c.tokens[c.pos]
	if tok.TokenType != token.EOF {
		c.pos++
	}
	c.previous = tok
	return tok
}

func (c *Compiler) check(tt token.TokenType) bool {
	return c.peekToken().TokenType == tt
}

func (c *Compiler) matchAndEat(tt token.TokenType) bool {
	if !c.check(tt) {
		return false
	}
	c.eatToken()
	return true
}

func (c *Compiler) expect(tt token.TokenType, message string) token.Token {
	if c.matchAndEat(tt) {
		return c.previous
	}
	panic(c.errorAt(c.peekToken(), message))
}

func (c *Compiler) errorAt(tok token.Token, message string) CompileError {
	return CompileError{Line: tok.Line, Message: message}
}

func (c *Compiler) errorf(format string, args ...any) CompileError {
	return c.errorAt(c.peekToken(), fmt.Sprintf(format, args...))
}

// --- scopes and locals --------------------------------------------------

func (c *Compiler) beginScope() { c.fn.scopeDepth++ }

func (c *Compiler) endScope() {
	c.fn.scopeDepth--
	locals := c.fn.locals
	for len(locals) > 0 && locals[len(locals)-1].scope > c.fn.scopeDepth {
		locals = locals[:len(locals)-1]
		c.emit(bytecode.OP_POP)
	}
	c.fn.locals = locals
}

// declareLocal reserves a slot for name in the current function and scope.
// A name already declared in the same scope is a compile error; the walk
// stops at the first local belonging to an enclosing scope, so shadowing
// across scopes is allowed.
func (c *Compiler) declareLocal(name string, line int32) {
	locals := c.fn.locals
	for i := len(locals) - 1; i >= 0; i-- {
		l := locals[i]
		if l.scope != -1 && l.scope < c.fn.scopeDepth {
			break
		}
		if l.name == name {
			panic(CompileError{Line: line, Message: fmt.Sprintf("variable %q already declared in this scope", name)})
		}
	}
	if len(locals) >= maxLocals {
		panic(CompileError{Line: line, Message: fmt.Sprintf("too many local variables in function %q", c.fn.function.Name)})
	}
	c.fn.locals = append(locals, local{name: name, scope: -1})
}

// defineLocal marks the most recently declared local initialized, once its
// initializer expression has finished compiling.
func (c *Compiler) defineLocal() {
	c.fn.locals[len(c.fn.locals)-1].scope = c.fn.scopeDepth
}

// resolveLocal looks up name from the innermost scope outward. It reports
// whether the match's scope is still -1 (uninitialized), which the caller
// treats as a reflexive-initializer error.
func (c *Compiler) resolveLocal(name string) (slot int, found bool, uninitialized bool) {
	locals := c.fn.locals
	for i := len(locals) - 1; i >= 0; i-- {
		if locals[i].name == name {
			return i, true, locals[i].scope == -1
		}
	}
	return -1, false, false
}

// --- declarations and statements ----------------------------------------

func (c *Compiler) declaration() {
	switch {
	case c.matchAndEat(token.FUNC):
		c.funDeclaration()
	case c.matchAndEat(token.VAR):
		c.varDeclaration()
	default:
		c.statement()
	}
}

func (c *Compiler) funDeclaration() {
	nameTok := c.expect(token.IDENTIFIER, "expected a function name after 'fun'")

	fn := value.NewFunction(nameTok.Lexeme)
	c.fn = &funcState{function: fn, enclosing: c.fn}

	c.expect(token.LPA, "expected '(' after function name")
	if !c.check(token.RPA) {
		for {
			paramTok := c.expect(token.IDENTIFIER, "expected a parameter name")
			c.declareLocal(paramTok.Lexeme, paramTok.Line)
			c.defineLocal()
			fn.Arity++
			if !c.matchAndEat(token.COMMA) {
				break
			}
		}
	}
	c.expect(token.RPA, "expected ')' after parameters")
	c.expect(token.LCUR, "expected '{' before function body")
	c.block()

	c.fn = c.fn.enclosing

	c.emitValue(value.Fn(fn))
	c.declareLocal(nameTok.Lexeme, nameTok.Line)
	c.defineLocal()
}

func (c *Compiler) varDeclaration() {
	nameTok := c.expect(token.IDENTIFIER, "expected a variable name after 'var'")
	c.declareLocal(nameTok.Lexeme, nameTok.Line)

	if c.matchAndEat(token.ASSIGN) {
		c.expression()
	} else {
		c.emitValue(value.NilValue())
	}
	c.expect(token.SEMICOLON, "expected ';' after variable declaration")

	c.defineLocal()
}

func (c *Compiler) statement() {
	switch {
	case c.matchAndEat(token.LCUR):
		c.block()
	case c.matchAndEat(token.IF):
		c.ifStatement()
	case c.matchAndEat(token.WHILE):
		c.whileStatement()
	case c.matchAndEat(token.FOR):
		c.forStatement()
	case c.matchAndEat(token.PRINT):
		c.printStatement()
	case c.matchAndEat(token.CLASS):
		panic(c.errorAt(c.previous, "'class' is tokenized but has no compiler support"))
	case c.matchAndEat(token.RETURN):
		panic(c.errorAt(c.previous, "'return' is tokenized but has no compiler support"))
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) block() {
	c.beginScope()
	for !c.check(token.RCUR) && !c.reachedEOF() {
		c.declaration()
	}
	c.expect(token.RCUR, "expected '}' after block")
	c.endScope()
}

// ifStatement compiles: emit cond, OP_JUMP_IF_FALSE J1, then-stmt,
// OP_JUMP J2, patch J1 here, else-stmt (or nothing), patch J2 here.
// OP_JUMP_IF_FALSE already pops the condition, so no extra pop is needed.
func (c *Compiler) ifStatement() {
	c.expect(token.LPA, "expected '(' after 'if'")
	c.expression()
	c.expect(token.RPA, "expected ')' after if condition")

	jThen := c.emitJump(bytecode.OP_JUMP_IF_FALSE)
	c.statement()

	if c.matchAndEat(token.ELSE) {
		jEnd := c.emitJump(bytecode.OP_JUMP)
		c.patchJump(jThen)
		c.statement()
		c.patchJump(jEnd)
	} else {
		c.patchJump(jThen)
	}
}

// whileStatement compiles: remember loop-start, emit cond,
// OP_JUMP_IF_FALSE Jexit, body, OP_JUMP_BACKWARD to loop-start, patch Jexit.
func (c *Compiler) whileStatement() {
	loopStart := len(c.fn.function.Chunk)

	c.expect(token.LPA, "expected '(' after 'while'")
	c.expression()
	c.expect(token.RPA, "expected ')' after while condition")

	jExit := c.emitJump(bytecode.OP_JUMP_IF_FALSE)
	c.statement()
	c.emitLoop(loopStart)
	c.patchJump(jExit)
}

// forStatement desugars for (init; cond; incr) body using the same
// condition/increment interleaving as a while loop: the increment is
// emitted before the body and reached by looping back to it, while the
// first pass jumps straight over it into the body.
func (c *Compiler) forStatement() {
	c.beginScope()
	c.expect(token.LPA, "expected '(' after 'for'")

	switch {
	case c.matchAndEat(token.SEMICOLON):
		// no initializer
	case c.matchAndEat(token.VAR):
		c.varDeclaration()
	default:
		c.expressionStatement()
	}

	condStart := len(c.fn.function.Chunk)
	hasCond := !c.check(token.SEMICOLON)
	if hasCond {
		c.expression()
	}
	c.expect(token.SEMICOLON, "expected ';' after loop condition")

	var jExit int
	if hasCond {
		jExit = c.emitJump(bytecode.OP_JUMP_IF_FALSE)
	}
	jBody := c.emitJump(bytecode.OP_JUMP)

	incrStart := len(c.fn.function.Chunk)
	if !c.check(token.RPA) {
		c.expression()
		c.emit(bytecode.OP_POP)
	}
	c.expect(token.RPA, "expected ')' after for clauses")
	c.emitLoop(condStart)

	c.patchJump(jBody)
	c.statement()
	c.emitLoop(incrStart)

	if hasCond {
		c.patchJump(jExit)
	}
	c.endScope()
}

func (c *Compiler) printStatement() {
	c.expression()
	c.expect(token.SEMICOLON, "expected ';' after value")
	c.emit(bytecode.OP_PRINT)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.expect(token.SEMICOLON, "expected ';' after expression")
	c.emit(bytecode.OP_POP)
}

// --- expressions ----------------------------------------------------
//
// Every production below returns can-assign: true only when the entire
// sub-expression it parsed was a single bare identifier. assignment() is
// the only consumer that acts on it.

func (c *Compiler) expression() bool {
	return c.assignment()
}

// assignment retargets a just-compiled bare-identifier read as a write.
// Since canAssign is true only when nothing but that one OP_GET was
// emitted since markPos, those bytes are discarded and rebuilt as an
// OP_ASSIGN to the same slot once the right-hand side compiles.
func (c *Compiler) assignment() bool {
	markPos := len(c.fn.function.Chunk)
	canAssign := c.orExpr()

	if c.matchAndEat(token.ASSIGN) {
		if !canAssign {
			panic(c.errorAt(c.previous, "invalid assignment target"))
		}
		slot := c.lastIdentSlot
		c.fn.function.Chunk = c.fn.function.Chunk[:markPos]
		c.fn.function.Lines = c.fn.function.Lines[:markPos]
		c.assignment()
		c.emitSlotRef(bytecode.OP_ASSIGN, slot)
		return false
	}
	return canAssign
}

// orExpr: lhs ( "or" assignment )?. OP_JUMP_IF_FALSE always pops its
// operand, so the short-circuit path (lhs truthy) would otherwise leave
// zero values on the stack where every expression must leave exactly one.
// A literal `true` is pushed at the short-circuit landing point to replace
// it before falling through to rhs's jump target, restoring the one-value
// invariant every caller (if/while/an enclosing expression-statement's
// OP_POP) relies on.
func (c *Compiler) orExpr() bool {
	canAssign := c.andExpr()
	if c.matchAndEat(token.OR) {
		jRhs := c.emitJump(bytecode.OP_JUMP_IF_FALSE)
		c.emitValue(value.Bool(true))
		jEnd := c.emitJump(bytecode.OP_JUMP)
		c.patchJump(jRhs)
		c.assignment()
		c.patchJump(jEnd)
		return false
	}
	return canAssign
}

// andExpr: lhs ( "and" assignment )?. Symmetric to orExpr: when lhs is
// falsy, OP_JUMP_IF_FALSE pops it and skips rhs, so a literal `false` is
// pushed at the jump landing to stand in for the value it consumed.
func (c *Compiler) andExpr() bool {
	canAssign := c.equality()
	if c.matchAndEat(token.AND) {
		jFalse := c.emitJump(bytecode.OP_JUMP_IF_FALSE)
		c.assignment()
		jEnd := c.emitJump(bytecode.OP_JUMP)
		c.patchJump(jFalse)
		c.emitValue(value.Bool(false))
		c.patchJump(jEnd)
		return false
	}
	return canAssign
}

func (c *Compiler) equality() bool {
	canAssign := c.comparison()
	for c.check(token.EQUAL_EQUAL) || c.check(token.NOT_EQUAL) {
		canAssign = false
		op := c.eatToken()
		c.comparison()
		if op.TokenType == token.EQUAL_EQUAL {
			c.emit(bytecode.OP_EQUAL_EQUAL)
		} else {
			c.emit(bytecode.OP_BANG_EQUAL)
		}
	}
	return canAssign
}

func (c *Compiler) comparison() bool {
	canAssign := c.term()
	for c.check(token.LESS) || c.check(token.LESS_EQUAL) || c.check(token.LARGER) || c.check(token.LARGER_EQUAL) {
		canAssign = false
		op := c.eatToken()
		c.term()
		switch op.TokenType {
		case token.LESS:
			c.emit(bytecode.OP_LESS)
		case token.LESS_EQUAL:
			c.emit(bytecode.OP_LESS_EQUAL)
		case token.LARGER:
			c.emit(bytecode.OP_GREATER)
		case token.LARGER_EQUAL:
			c.emit(bytecode.OP_GREATER_EQUAL)
		}
	}
	return canAssign
}

func (c *Compiler) term() bool {
	canAssign := c.factor()
	for c.check(token.ADD) || c.check(token.SUB) {
		canAssign = false
		op := c.eatToken()
		c.factor()
		if op.TokenType == token.ADD {
			c.emit(bytecode.OP_ADD)
		} else {
			c.emit(bytecode.OP_SUBSTRACT)
		}
	}
	return canAssign
}

func (c *Compiler) factor() bool {
	canAssign := c.unary()
	for c.check(token.MULT) || c.check(token.DIV) {
		canAssign = false
		op := c.eatToken()
		c.unary()
		if op.TokenType == token.MULT {
			c.emit(bytecode.OP_MULTIPLY)
		} else {
			c.emit(bytecode.OP_DIVIDE)
		}
	}
	return canAssign
}

func (c *Compiler) unary() bool {
	if c.check(token.BANG) || c.check(token.SUB) {
		op := c.eatToken()
		c.unary()
		if op.TokenType == token.BANG {
			c.emit(bytecode.OP_NOT)
		} else {
			c.emit(bytecode.OP_NEGATE)
		}
		return false
	}
	return c.call()
}

// call: primary ( "(" args? ")" )?
func (c *Compiler) call() bool {
	canAssign := c.primary()
	if c.matchAndEat(token.LPA) {
		canAssign = false
		arity := 0
		if !c.check(token.RPA) {
			c.expression()
			arity++
			for c.matchAndEat(token.COMMA) {
				c.expression()
				arity++
			}
		}
		c.expect(token.RPA, "expected ')' after arguments")
		if arity > 255 {
			panic(c.errorAt(c.previous, fmt.Sprintf("too many arguments: %d exceeds 255", arity)))
		}
		c.emit(bytecode.OP_CALL, arity)
	}
	return canAssign
}

func (c *Compiler) primary() bool {
	switch {
	case c.matchAndEat(token.LPA):
		c.expression()
		c.expect(token.RPA, "expected ')' after expression")
		return false
	case c.matchAndEat(token.NUMBER):
		c.emitValue(value.Num(c.previous.Literal.(float64)))
		return false
	case c.matchAndEat(token.STRING):
		c.emitValue(value.Str(c.previous.Literal.(string)))
		return false
	case c.matchAndEat(token.TRUE):
		c.emitValue(value.Bool(true))
		return false
	case c.matchAndEat(token.FALSE):
		c.emitValue(value.Bool(false))
		return false
	case c.matchAndEat(token.NIL):
		c.emitValue(value.NilValue())
		return false
	case c.matchAndEat(token.IDENTIFIER):
		c.namedVariable(c.previous)
		return true
	default:
		panic(c.errorAt(c.peekToken(), "expected an expression"))
	}
}

func (c *Compiler) namedVariable(nameTok token.Token) {
	slot, found, uninitialized := c.resolveLocal(nameTok.Lexeme)
	if !found {
		panic(CompileError{Line: nameTok.Line, Message: fmt.Sprintf("undefined variable %q", nameTok.Lexeme)})
	}
	if uninitialized {
		panic(CompileError{Line: nameTok.Line, Message: fmt.Sprintf("cannot read variable %q in its own initializer", nameTok.Lexeme)})
	}
	c.lastIdentSlot = slot
	c.emitSlotRef(bytecode.OP_GET, slot)
}
