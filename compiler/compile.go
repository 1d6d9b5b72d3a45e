package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/tliron/commonlog"

	"github.com/tmbasic-lang/tmbasic-sub000/pkg/bytecode"
	"github.com/tmbasic-lang/tmbasic-sub000/pkg/decimal"
)

var log = commonlog.GetLogger("tmbasic.compiler")

// ---------------------------------------------------------------------------
// Compile: whole-program driver
// ---------------------------------------------------------------------------

// CompiledGlobalVariable describes one global slot.
type CompiledGlobalVariable struct {
	LowercaseName string
	IsValue       bool
	Index         int
	Type          *TypeNode
	Node          *GlobalVariable
}

// CompiledProcedure describes one user procedure of the program.
type CompiledProcedure struct {
	SourceMemberIndex int
	ProcedureIndex    int
	Name              string
	NameLowercase     string
	Node              *Procedure
}

// CompiledProgram is the result of compiling a SourceProgram. Program is
// runnable only when Errors is empty.
type CompiledProgram struct {
	Program    *bytecode.Program
	Globals    []*CompiledGlobalVariable
	Procedures []*CompiledProcedure
	Types      *TypeRegistry
	// User types by the index of the member that declares them.
	TypesByMember map[int]*TypeDeclaration
	Errors        []*CompilerError
}

// OK reports whether every member compiled.
func (p *CompiledProgram) OK() bool { return len(p.Errors) == 0 }

// ProcedureNames returns display names indexed like Program.Procedures.
// The last entry is the synthesized startup procedure.
func (p *CompiledProgram) ProcedureNames() []string {
	names := make([]string, 0, len(p.Procedures)+1)
	for _, proc := range p.Procedures {
		names = append(names, proc.Name)
	}
	return append(names, startupName)
}

// GlobalNames returns the global names in declaration order.
func (p *CompiledProgram) GlobalNames() []string {
	names := make([]string, len(p.Globals))
	for i, g := range p.Globals {
		names[i] = g.Node.Name
	}
	return names
}

// LookupProcedure finds the first user procedure with the given name.
func (p *CompiledProgram) LookupProcedure(name string) (*CompiledProcedure, bool) {
	key := strings.ToLower(name)
	for _, proc := range p.Procedures {
		if proc.NameLowercase == key {
			return proc, true
		}
	}
	return nil, false
}

const startupName = "<startup>"

// ErrorList is returned by Compile when any member failed.
type ErrorList []*CompilerError

func (l ErrorList) Error() string {
	if len(l) == 1 {
		return l[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", l[0].Error(), len(l)-1)
}

// Compiler holds the grammar shared by every compile.
type Compiler struct {
	grammar *Grammar
}

// NewCompiler creates a compiler with a fresh grammar.
func NewCompiler() *Compiler {
	return &Compiler{grammar: NewGrammar()}
}

// Grammar returns the grammar used for parsing.
func (c *Compiler) Grammar() *Grammar { return c.grammar }

// compilation is the state of one Compile call.
type compilation struct {
	compiler *Compiler
	source   *SourceProgram
	result   *CompiledProgram
	table    *SymbolTable
	globals  *Scope

	procedures    []*Procedure
	procMember    map[*Procedure]int
	globalNodes   []*GlobalVariable
	failed        map[*Procedure]bool
	typeErrors    bool
	numGlobalVals int
	numGlobalObjs int
}

func (c *compilation) fail(err error) {
	var ce *CompilerError
	if !errors.As(err, &ce) {
		ce = newError(ErrInternal, Token{}, "%v", err)
	}
	c.result.Errors = append(c.result.Errors, ce)
}

// Compile parses and compiles every member of src. The returned program
// is always non-nil so that callers can report every diagnostic; the
// error is an ErrorList when any member failed.
func (c *Compiler) Compile(src *SourceProgram) (*CompiledProgram, error) {
	comp := &compilation{
		compiler:   c,
		source:     src,
		result:     &CompiledProgram{Types: NewTypeRegistry(), TypesByMember: make(map[int]*TypeDeclaration)},
		table:      NewSymbolTable(),
		procMember: make(map[*Procedure]int),
		failed:     make(map[*Procedure]bool),
	}
	comp.globals = NewScope(NewBuiltinScope(comp.table))

	comp.parseMembers()
	comp.compileTypes()
	comp.compileGlobals()
	comp.compileProcedures()
	comp.build()

	if len(comp.result.Errors) > 0 {
		log.Debugf("compile failed with %d errors", len(comp.result.Errors))
		return comp.result, ErrorList(comp.result.Errors)
	}
	log.Debugf("compiled %d procedures and %d globals", len(comp.procedures), len(comp.globalNodes))
	return comp.result, nil
}

// CompileText compiles program text in either source format.
func (c *Compiler) CompileText(text string) (*CompiledProgram, error) {
	return c.Compile(LoadSourceProgram(text))
}

func (c *compilation) parseMembers() {
	for i, m := range c.source.Members {
		if m.MemberType == MemberDesign || m.MemberType == MemberPicture {
			continue
		}
		node, err := c.parseMember(m)
		if err != nil {
			c.fail(err)
			continue
		}
		if MemberKind(node) != m.MemberType {
			c.fail(newError(ErrWrongMemberType, node.Token(),
				"This %s member contains a %s.", m.MemberType, MemberKind(node)))
			continue
		}
		switch n := node.(type) {
		case *Procedure:
			n.Index = len(c.procedures)
			c.procedures = append(c.procedures, n)
			c.procMember[n] = i
			c.globals.AddProcedure(n)
		case *GlobalVariable:
			c.globalNodes = append(c.globalNodes, n)
		case *TypeDeclaration:
			if err := c.result.Types.Add(n); err != nil {
				c.fail(err)
				c.typeErrors = true
				continue
			}
			c.result.TypesByMember[i] = n
		}
	}
}

func (c *compilation) parseMember(m *SourceMember) (node Node, err error) {
	defer recoverInternal(&err)
	return Parse(c.compiler.grammar, RootMember, Tokenize(m.Source, TokenizeCompile, m))
}

func (c *compilation) compileTypes() {
	reg := c.result.Types
	if err := reg.CheckRecursiveTypes(); err != nil {
		c.fail(err)
		c.typeErrors = true
	}
	for _, decl := range reg.Declarations() {
		if err := reg.ResolveDeclaration(decl); err != nil {
			c.fail(err)
			c.typeErrors = true
		}
	}
}

// isLiteral reports whether a global initializer is a constant literal.
func isLiteral(e Expr) bool {
	switch e := e.(type) {
	case *BooleanLiteral, *NumberLiteral, *StringLiteral, *NoExpr:
		return true
	case *ListLiteral:
		for _, el := range e.Elements {
			if !isLiteral(el) {
				return false
			}
		}
		return true
	case *RecordLiteral:
		for _, f := range e.Fields {
			if !isLiteral(f.Value) {
				return false
			}
		}
		return true
	}
	return false
}

func (c *compilation) compileGlobals() {
	for _, g := range c.globalNodes {
		if err := c.compileGlobal(g); err != nil {
			c.fail(err)
		}
	}
}

func (c *compilation) compileGlobal(g *GlobalVariable) (err error) {
	defer recoverInternal(&err)
	t := g.Type
	if t != nil {
		if err := c.result.Types.ResolveType(t); err != nil {
			return err
		}
	}
	if g.Value != nil {
		if !isLiteral(g.Value) {
			return newError(ErrInvalidGlobalVariableType, g.Value.Token(),
				"The initial value of a global must be a literal.")
		}
		var resolveErr error
		WalkExpr(g.Value, func(e Expr) {
			if no, ok := e.(*NoExpr); ok && resolveErr == nil {
				resolveErr = c.result.Types.ResolveType(no.Target)
			}
		})
		if resolveErr != nil {
			return resolveErr
		}
		ck := &checker{table: c.table, globals: c.globals, yields: make(map[*DimCollectionStmt]int)}
		vt, err := ck.expr(g.Value)
		if err != nil {
			return err
		}
		if t == nil {
			t = vt
		} else if !CanImplicitlyConvert(vt, t) {
			return newError(ErrTypeMismatch, g.Value.Token(), "Cannot assign %s to %s.", vt, t)
		}
	}

	if t == nil {
		internalf(g.Tok, "global %q has neither a type nor a value", g.Name)
	}
	kind := SymbolGlobal
	if g.IsConst {
		kind = SymbolGlobalConstant
	}
	sym := &Symbol{Name: g.Name, Kind: kind, Decl: g, Token: g.Tok, Type: t}
	if t.IsValueType() {
		sym.Slot = c.numGlobalVals
		c.numGlobalVals++
	} else {
		sym.Slot = c.numGlobalObjs
		c.numGlobalObjs++
	}
	if sym.Slot >= maxSlots {
		return newError(ErrTooManyLocalVariables, g.Tok, "There are more than %d globals.", maxSlots)
	}
	g.ID = c.table.Add(sym)
	if err := c.globals.Declare(c.table, g.Name, g.Tok, g.ID); err != nil {
		return err
	}
	c.result.Globals = append(c.result.Globals, &CompiledGlobalVariable{
		LowercaseName: strings.ToLower(g.Name),
		IsValue:       t.IsValueType(),
		Index:         sym.Slot,
		Type:          t,
		Node:          g,
	})
	return nil
}

func (c *compilation) compileProcedures() {
	// Signatures must be resolved before any body is checked against them.
	for _, p := range c.procedures {
		if err := c.result.Types.ResolveProcedure(p); err != nil {
			c.fail(err)
			c.failed[p] = true
		}
	}
	c.checkDuplicateSignatures()
	for _, p := range c.procedures {
		c.result.Procedures = append(c.result.Procedures, &CompiledProcedure{
			SourceMemberIndex: c.procMember[p],
			ProcedureIndex:    p.Index,
			Name:              p.Name,
			NameLowercase:     strings.ToLower(p.Name),
			Node:              p,
		})
		if c.failed[p] {
			continue
		}
		if err := c.checkProcedure(p); err != nil {
			c.fail(err)
			c.failed[p] = true
		}
	}
}

// checkDuplicateSignatures rejects a procedure whose name and parameter
// types repeat an earlier one; call resolution could never reach it.
func (c *compilation) checkDuplicateSignatures() {
	seen := make(map[string][]*Procedure)
	for _, p := range c.procedures {
		if c.failed[p] {
			continue
		}
		key := strings.ToLower(p.Name)
		for _, prev := range seen[key] {
			if sameParameterTypes(prev, p) {
				c.fail(newError(ErrDuplicateSymbolName, p.Token(),
					"A procedure named %q with these parameter types is already declared.", p.Name))
				c.failed[p] = true
				break
			}
		}
		if !c.failed[p] {
			seen[key] = append(seen[key], p)
		}
	}
}

func sameParameterTypes(a, b *Procedure) bool {
	if len(a.Parameters) != len(b.Parameters) {
		return false
	}
	for i := range a.Parameters {
		if !EqualTypes(a.Parameters[i].Type, b.Parameters[i].Type) {
			return false
		}
	}
	return true
}

func (c *compilation) checkProcedure(p *Procedure) (err error) {
	defer recoverInternal(&err)
	if err := BindProcedure(c.table, c.globals, p); err != nil {
		return err
	}
	if err := CheckProcedure(c.table, c.globals, p); err != nil {
		return err
	}
	if err := CheckReturns(p); err != nil {
		return err
	}
	return IndexProcedure(c.table, p)
}

func (c *compilation) findMain() *Procedure {
	for _, p := range c.procedures {
		if strings.EqualFold(p.Name, "main") && !p.IsFunction() && len(p.Parameters) == 0 {
			return p
		}
	}
	return nil
}

// globalInitialState returns the serialized initial state of a global and
// whether the startup procedure must compute it instead.
func globalInitialState(g *GlobalVariable, t *TypeNode) (value *apd.Decimal, object bytecode.GlobalObject, needsInit bool) {
	if t.IsValueType() {
		switch v := g.Value.(type) {
		case *NumberLiteral:
			return v.Value, object, false
		case *BooleanLiteral:
			if v.Value {
				return decimal.One(), object, false
			}
		}
		return decimal.Zero(), object, false
	}
	switch t.Kind {
	case KindString:
		object.Type = bytecode.ObjectString
		switch v := g.Value.(type) {
		case nil:
			return nil, object, false
		case *StringLiteral:
			object.Text = v.Value
			return nil, object, false
		}
	case KindTimeZone:
		if g.Value == nil {
			return nil, bytecode.GlobalObject{Type: bytecode.ObjectTimeZone, Text: "UTC"}, false
		}
	}
	return nil, bytecode.GlobalObject{Type: objectTypeOf(t)}, true
}

// objectTypeOf maps an object-stored type to its run-time tag.
func objectTypeOf(t *TypeNode) bytecode.ObjectType {
	switch t.Kind {
	case KindString:
		return bytecode.ObjectString
	case KindList:
		if t.Item.IsValueType() {
			return bytecode.ObjectValueList
		}
		return bytecode.ObjectObjectList
	case KindMap, KindSet:
		key, value := t.Key, t.Value
		if t.Kind == KindSet {
			key, value = t.Item, tNumber
		}
		switch {
		case key.IsValueType() && value.IsValueType():
			return bytecode.ObjectValueToValueMap
		case key.IsValueType():
			return bytecode.ObjectValueToObjectMap
		case value.IsValueType():
			return bytecode.ObjectObjectToValueMap
		}
		return bytecode.ObjectObjectToObjectMap
	case KindOptional:
		if t.Item.IsValueType() {
			return bytecode.ObjectValueOptional
		}
		return bytecode.ObjectObjectOptional
	case KindTimeZone:
		return bytecode.ObjectTimeZone
	}
	return bytecode.ObjectRecord
}

// build emits every procedure that checked cleanly plus the startup
// procedure and assembles the bytecode program.
func (c *compilation) build() {
	prog := &bytecode.Program{
		StartupProcedureIndex: uint32(len(c.procedures)),
		Procedures:            make([][]byte, len(c.procedures)+1),
		GlobalValues:          make([]*apd.Decimal, c.numGlobalVals),
		GlobalObjects:         make([]bytecode.GlobalObject, c.numGlobalObjs),
	}
	c.result.Program = prog

	main := c.findMain()
	if main == nil {
		c.fail(newError(ErrMissingMainSub, Token{}, "There must be a \"sub Main()\"."))
	}
	if c.typeErrors {
		return
	}

	for _, p := range c.procedures {
		if c.failed[p] {
			continue
		}
		code, err := c.emit(p)
		if err != nil {
			c.fail(err)
			continue
		}
		prog.Procedures[p.Index] = code
		log.Debugf("emitted %s: %d bytes", p.Name, len(code))
	}

	needsInit := make(map[*GlobalVariable]bool)
	for _, g := range c.result.Globals {
		value, object, init := globalInitialState(g.Node, g.Type)
		if g.IsValue {
			prog.GlobalValues[g.Index] = value
		} else {
			prog.GlobalObjects[g.Index] = object
		}
		needsInit[g.Node] = init
	}
	if main == nil {
		return
	}
	var declared []*GlobalVariable
	for _, g := range c.result.Globals {
		declared = append(declared, g.Node)
	}
	code, err := c.emitStartup(declared, needsInit, main)
	if err != nil {
		c.fail(err)
		return
	}
	prog.Procedures[prog.StartupProcedureIndex] = code
}

func (c *compilation) emit(p *Procedure) (code []byte, err error) {
	defer recoverInternal(&err)
	code, err = EmitProcedure(c.table, p)
	if err != nil {
		var ce *CompilerError
		if !errors.As(err, &ce) {
			err = newError(ErrInternal, p.Tok, "%v", err)
		}
	}
	return code, err
}

func (c *compilation) emitStartup(globals []*GlobalVariable, needsInit map[*GlobalVariable]bool, main *Procedure) (code []byte, err error) {
	defer recoverInternal(&err)
	return EmitStartup(c.table, globals, func(g *GlobalVariable) bool { return needsInit[g] }, main)
}
