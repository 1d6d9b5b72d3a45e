package compiler

import "github.com/cockroachdb/apd/v3"

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for TMBASIC
// ---------------------------------------------------------------------------

// Node is the interface implemented by all AST nodes.
type Node interface {
	Token() Token
	node() // marker method
}

// nodeBase carries the source token shared by every node.
type nodeBase struct {
	Tok Token
}

func (n *nodeBase) Token() Token { return n.Tok }
func (n *nodeBase) node()        {}

// SymbolID is a handle into a SymbolTable. Zero means unbound.
type SymbolID int

// NoSymbol is the unbound SymbolID.
const NoSymbol SymbolID = 0

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// TypeKind enumerates the kinds of TypeNode.
type TypeKind int

const (
	KindBoolean TypeKind = iota
	KindNumber
	KindString
	KindDate
	KindDateTime
	KindDateTimeOffset
	KindTimeSpan
	KindTimeZone
	KindRecord
	KindList
	KindMap
	KindSet
	KindOptional
	// Generic placeholders appear only in built-in signatures.
	KindGeneric1
	KindGeneric2
)

// TypeNode is a type expression. Records either carry Fields directly or
// name a record type through RecordName, which named-type resolution
// fills in.
type TypeNode struct {
	nodeBase
	Kind       TypeKind
	RecordName string       // KindRecord: named type reference
	Fields     []*Parameter // KindRecord: field list
	Item       *TypeNode    // KindList, KindSet, KindOptional
	Key        *TypeNode    // KindMap
	Value      *TypeNode    // KindMap
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	EvaluatedType() *TypeNode
	setEvaluatedType(*TypeNode)
	expr() // marker method
}

type exprBase struct {
	nodeBase
	Type *TypeNode // set by the type checker
}

func (e *exprBase) EvaluatedType() *TypeNode     { return e.Type }
func (e *exprBase) setEvaluatedType(t *TypeNode) { e.Type = t }
func (e *exprBase) expr()                        {}

// BinaryOperator enumerates binary operators.
type BinaryOperator int

const (
	OpOr BinaryOperator = iota
	OpAnd
	OpEquals
	OpNotEquals
	OpLessThan
	OpLessThanEquals
	OpGreaterThan
	OpGreaterThanEquals
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpModulus
	OpPower
)

var binaryOperatorText = [...]string{
	OpOr: "or", OpAnd: "and", OpEquals: "=", OpNotEquals: "<>", OpLessThan: "<",
	OpLessThanEquals: "<=", OpGreaterThan: ">", OpGreaterThanEquals: ">=", OpAdd: "+",
	OpSubtract: "-", OpMultiply: "*", OpDivide: "/", OpModulus: "mod", OpPower: "^",
}

func (op BinaryOperator) String() string { return binaryOperatorText[op] }

// BinaryExpr is a left-associated chain: Left op1 R1 op2 R2 ...
type BinaryExpr struct {
	exprBase
	Left     Expr
	Suffixes []*BinarySuffix
}

// BinarySuffix is one "op operand" step of a BinaryExpr.
type BinarySuffix struct {
	nodeBase
	Op    BinaryOperator
	Right Expr
	// Type of the chain after applying this suffix.
	Type *TypeNode
	// Operand type used by the emitter (the left side's type before this step).
	LeftType *TypeNode
}

// CallTarget is the resolved callee of a call.
type CallTarget struct {
	Procedure *Procedure // user procedure, or nil
	Builtin   *Builtin   // built-in procedure, or nil
	// Generic bindings for built-in signatures.
	Generics [2]*TypeNode
}

// CallExpr calls a function and produces its value.
type CallExpr struct {
	exprBase
	Name   string
	Args   []Expr
	Target *CallTarget
}

// BooleanLiteral is true or false.
type BooleanLiteral struct {
	exprBase
	Value bool
}

// NumberLiteral is a decimal literal.
type NumberLiteral struct {
	exprBase
	Value *apd.Decimal
}

// StringLiteral is an unescaped string literal.
type StringLiteral struct {
	exprBase
	Value string
}

// ListLiteral is [a, b, c].
type ListLiteral struct {
	exprBase
	Elements []Expr
}

// RecordField is "name: value" inside a RecordLiteral.
type RecordField struct {
	nodeBase
	Name  string
	Value Expr
}

// RecordLiteral is { a: 1, b: "x" }.
type RecordLiteral struct {
	exprBase
	Fields []*RecordField
}

// ConvertExpr is "value as Type".
type ConvertExpr struct {
	exprBase
	Value  Expr
	Target *TypeNode
}

// SuffixKind distinguishes member access from parenthesized arguments.
type SuffixKind int

const (
	SuffixMember SuffixKind = iota
	SuffixIndex
)

// DottedSuffix is ".name" or "(args)" after a dotted base.
type DottedSuffix struct {
	nodeBase
	Kind SuffixKind
	Name string
	Args []Expr
	// Resolved by the type checker.
	Type       *TypeNode // type after this suffix
	Container  *TypeNode // type before this suffix
	FieldIndex int       // value or object slot for member access
}

// DottedExpr is base.member(index).member...
type DottedExpr struct {
	exprBase
	Base     Expr
	Suffixes []*DottedSuffix
}

// NotExpr is "not value".
type NotExpr struct {
	exprBase
	Value Expr
}

// SymbolReference names a variable, constant or procedure.
type SymbolReference struct {
	exprBase
	Name  string
	Bound SymbolID
}

// NoExpr is "no Type", a missing optional.
type NoExpr struct {
	exprBase
	Target *TypeNode
}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

type stmtBase struct {
	nodeBase
	// Scratch slots assigned by the indexer.
	TempValues  []int
	TempObjects []int
}

func (s *stmtBase) stmt() {}

// Body is an ordered list of statements.
type Body struct {
	nodeBase
	Statements []Stmt
}

// AssignStmt is "target = value".
type AssignStmt struct {
	stmtBase
	Target Expr
	Value  Expr
}

// CallStmt calls a subroutine.
type CallStmt struct {
	stmtBase
	Name   string
	Args   []Expr
	Target *CallTarget
}

// ConstStmt declares a local or global constant.
type ConstStmt struct {
	stmtBase
	Name  string
	Value Expr
	ID    SymbolID
}

// LoopKind names the construct targeted by Exit and Continue.
type LoopKind int

const (
	LoopDo LoopKind = iota
	LoopFor
	LoopWhile
	LoopSelectCase
	LoopTry
)

var loopKindText = [...]string{LoopDo: "Do", LoopFor: "For", LoopWhile: "While", LoopSelectCase: "Select Case", LoopTry: "Try"}

func (k LoopKind) String() string { return loopKindText[k] }

// ContinueStmt is "continue do|for|while".
type ContinueStmt struct {
	stmtBase
	Scope  LoopKind
	Target Stmt // enclosing loop, set by the type checker
}

// ExitStmt is "exit do|for|while".
type ExitStmt struct {
	stmtBase
	Scope  LoopKind
	Target Stmt
}

// DimStmt declares a variable with a type or an initial value.
type DimStmt struct {
	stmtBase
	Name   string
	Shared bool
	Type   *TypeNode
	Value  Expr
	ID     SymbolID
}

// CollectionKind is the kind of collection built by a DimCollectionStmt.
type CollectionKind int

const (
	CollectionList CollectionKind = iota
	CollectionMap
	CollectionSet
)

// DimCollectionStmt is "dim list|map|set name ... end dim", whose body
// yields the elements.
type DimCollectionStmt struct {
	stmtBase
	Kind CollectionKind
	Name string
	Body *Body
	ID   SymbolID
	Type *TypeNode // inferred from the first yield
}

// DoStmt is "do ... loop while condition".
type DoStmt struct {
	stmtBase
	Body      *Body
	Condition Expr
}

// ForStmt is "for i = a to b step s ... next".
type ForStmt struct {
	stmtBase
	VarName string
	VarTok  Token
	From    Expr
	To      Expr
	Step    Expr
	Body    *Body
	ID      SymbolID
}

// ForEachStmt is "for each x in list ... next".
type ForEachStmt struct {
	stmtBase
	VarName string
	VarTok  Token
	Source  Expr
	Body    *Body
	ID      SymbolID
}

// GroupStmt is "group item by key into name ... end group".
type GroupStmt struct {
	stmtBase
	Item  Expr
	Key   Expr
	Name  string
	Body  *Body
	ID    SymbolID
}

// JoinStmt is "join name in source on condition ... end join".
type JoinStmt struct {
	stmtBase
	Name      string
	Source    Expr
	Condition Expr
	Body      *Body
	ID        SymbolID
}

// SelectStmt is the query form "select value".
type SelectStmt struct {
	stmtBase
	Value Expr
}

// ElseIf is one "else if condition then" branch.
type ElseIf struct {
	nodeBase
	Condition Expr
	Body      *Body
}

// IfStmt is "if ... then ... else if ... else ... end if".
type IfStmt struct {
	stmtBase
	Condition Expr
	Body      *Body
	ElseIfs   []*ElseIf
	Else      *Body
}

// RethrowStmt re-raises the current error inside a catch block.
type RethrowStmt struct {
	stmtBase
}

// ReturnStmt returns from a procedure.
type ReturnStmt struct {
	stmtBase
	Value Expr
}

// CaseValue is "value" or "value to value" in a case list.
type CaseValue struct {
	nodeBase
	Value Expr
	To    Expr
}

// CaseBlock is one case of a SelectCaseStmt. Values is nil for Case Else.
type CaseBlock struct {
	nodeBase
	Values []*CaseValue
	Body   *Body
}

// SelectCaseStmt is "select case value ... end select".
type SelectCaseStmt struct {
	stmtBase
	Value Expr
	Cases []*CaseBlock
}

// ThrowStmt is "throw message" or "throw code, message".
type ThrowStmt struct {
	stmtBase
	Code    Expr
	Message Expr
}

// TryStmt is "try ... catch ... end try".
type TryStmt struct {
	stmtBase
	Body  *Body
	Catch *Body
}

// WhileStmt is "while condition ... wend".
type WhileStmt struct {
	stmtBase
	Condition Expr
	Body      *Body
}

// PrintStmt prints values, with a newline unless a trailing semicolon.
type PrintStmt struct {
	stmtBase
	Values            []Expr
	TrailingSemicolon bool
}

// InputStmt reads a line into a variable.
type InputStmt struct {
	stmtBase
	Target Expr
}

// YieldStmt adds an element to the enclosing dim collection.
type YieldStmt struct {
	stmtBase
	Value      Expr
	To         Expr
	Collection *DimCollectionStmt // set by the type checker
}

// ---------------------------------------------------------------------------
// Member nodes
// ---------------------------------------------------------------------------

// Parameter is a procedure parameter or a record field.
type Parameter struct {
	nodeBase
	Name string
	Type *TypeNode
	ID   SymbolID
	// Argument or field slot, split by value/object storage.
	Index int
}

// Procedure is a sub (Return nil) or function.
type Procedure struct {
	nodeBase
	Name       string
	Parameters []*Parameter
	Return     *TypeNode
	Body       *Body
	// Assigned by the indexer.
	NumLocalValues  int
	NumLocalObjects int
	NumArgValues    int
	NumArgObjects   int
	// Index in the compiled program.
	Index int
}

// IsFunction reports whether the procedure returns a value.
func (p *Procedure) IsFunction() bool { return p.Return != nil }

// TypeDeclaration is "type Name ... end type".
type TypeDeclaration struct {
	nodeBase
	Name   string
	Fields []*Parameter
}

// GlobalVariable is a top-level dim or const.
type GlobalVariable struct {
	nodeBase
	Name    string
	Type    *TypeNode
	Value   Expr
	IsConst bool
	ID      SymbolID
}

// Program is a whole source file of members.
type Program struct {
	nodeBase
	Members []Node
}

// Statement marker methods.
func (*AssignStmt) stmt()        {}
func (*CallStmt) stmt()          {}
func (*ConstStmt) stmt()         {}
func (*ContinueStmt) stmt()      {}
func (*ExitStmt) stmt()          {}
func (*DimStmt) stmt()           {}
func (*DimCollectionStmt) stmt() {}
func (*DoStmt) stmt()            {}
func (*ForStmt) stmt()           {}
func (*ForEachStmt) stmt()       {}
func (*GroupStmt) stmt()         {}
func (*JoinStmt) stmt()          {}
func (*SelectStmt) stmt()        {}
func (*IfStmt) stmt()            {}
func (*RethrowStmt) stmt()       {}
func (*ReturnStmt) stmt()        {}
func (*SelectCaseStmt) stmt()    {}
func (*ThrowStmt) stmt()         {}
func (*TryStmt) stmt()           {}
func (*WhileStmt) stmt()         {}
func (*PrintStmt) stmt()         {}
func (*InputStmt) stmt()         {}
func (*YieldStmt) stmt()         {}

// ---------------------------------------------------------------------------
// Node capabilities
// ---------------------------------------------------------------------------

// DeclaredSymbol returns the name a statement declares into its scope.
func DeclaredSymbol(s Stmt) (string, bool) {
	switch s := s.(type) {
	case *DimStmt:
		return s.Name, true
	case *ConstStmt:
		return s.Name, true
	case *DimCollectionStmt:
		return s.Name, true
	case *GroupStmt:
		return s.Name, true
	case *JoinStmt:
		return s.Name, true
	}
	return "", false
}

// ChildSymbol returns the loop variable a statement declares for its own
// body only.
func ChildSymbol(s Stmt) (string, Token, bool) {
	switch s := s.(type) {
	case *ForStmt:
		return s.VarName, s.VarTok, true
	case *ForEachStmt:
		return s.VarName, s.VarTok, true
	}
	return "", Token{}, false
}

// IsVisibleToSiblings reports whether the statement's declaration is
// visible to the statements that follow it in the same body.
func IsVisibleToSiblings(s Stmt) bool {
	switch s.(type) {
	case *DimStmt, *ConstStmt, *DimCollectionStmt:
		return true
	}
	return false
}

// ChildBodies returns the nested bodies of a statement in source order.
func ChildBodies(s Stmt) []*Body {
	switch s := s.(type) {
	case *DimCollectionStmt:
		return []*Body{s.Body}
	case *DoStmt:
		return []*Body{s.Body}
	case *ForStmt:
		return []*Body{s.Body}
	case *ForEachStmt:
		return []*Body{s.Body}
	case *GroupStmt:
		return []*Body{s.Body}
	case *JoinStmt:
		return []*Body{s.Body}
	case *WhileStmt:
		return []*Body{s.Body}
	case *IfStmt:
		bodies := []*Body{s.Body}
		for _, e := range s.ElseIfs {
			bodies = append(bodies, e.Body)
		}
		if s.Else != nil {
			bodies = append(bodies, s.Else)
		}
		return bodies
	case *SelectCaseStmt:
		var bodies []*Body
		for _, c := range s.Cases {
			bodies = append(bodies, c.Body)
		}
		return bodies
	case *TryStmt:
		return []*Body{s.Body, s.Catch}
	}
	return nil
}

// ChildType returns the explicit type node owned by a statement, if any.
func ChildType(s Stmt) *TypeNode {
	if d, ok := s.(*DimStmt); ok {
		return d.Type
	}
	return nil
}

// MemberKind reports which source member type a top-level node belongs in.
func MemberKind(n Node) SourceMemberType {
	switch n.(type) {
	case *Procedure:
		return MemberProcedure
	case *GlobalVariable:
		return MemberGlobal
	case *TypeDeclaration:
		return MemberType
	}
	return MemberProcedure
}

// WalkStatements calls fn for every statement in body, depth first, in
// source order. Returning false from fn skips that statement's children.
func WalkStatements(body *Body, fn func(Stmt) bool) {
	if body == nil {
		return
	}
	for _, s := range body.Statements {
		if fn(s) {
			for _, child := range ChildBodies(s) {
				WalkStatements(child, fn)
			}
		}
	}
}
