package compiler

import (
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// ---------------------------------------------------------------------------
// Symbols and scopes
// ---------------------------------------------------------------------------

// SymbolKind classifies what a symbol names.
type SymbolKind int

const (
	SymbolLocal SymbolKind = iota
	SymbolLocalConstant
	SymbolParameter
	SymbolGlobal
	SymbolGlobalConstant
	SymbolBuiltinConstant
)

// Symbol is one declared name. Storage fields are filled by later passes.
type Symbol struct {
	Name  string
	Kind  SymbolKind
	Decl  Node
	Token Token
	Type  *TypeNode

	// Slot in the value or object space of the symbol's storage class.
	Slot int
	// Constant value of SymbolBuiltinConstant.
	Constant *apd.Decimal
}

// IsConstant reports whether assignments to the symbol are rejected.
func (s *Symbol) IsConstant() bool {
	switch s.Kind {
	case SymbolLocalConstant, SymbolGlobalConstant, SymbolBuiltinConstant:
		return true
	}
	return false
}

// SymbolTable is the arena that SymbolIDs index.
type SymbolTable struct {
	symbols []*Symbol
}

// NewSymbolTable creates an empty arena. ID zero is reserved.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{symbols: []*Symbol{nil}}
}

// Add stores sym and returns its handle.
func (t *SymbolTable) Add(sym *Symbol) SymbolID {
	t.symbols = append(t.symbols, sym)
	return SymbolID(len(t.symbols) - 1)
}

// Get resolves a handle. Unbound or unknown handles are internal errors.
func (t *SymbolTable) Get(id SymbolID) *Symbol {
	if id <= NoSymbol || int(id) >= len(t.symbols) {
		internalf(Token{}, "invalid symbol handle %d", id)
	}
	return t.symbols[id]
}

// Scope is one level of the singly linked scope chain. Variables and
// procedures live in separate namespaces.
type Scope struct {
	parent     *Scope
	variables  map[string]SymbolID
	procedures map[string][]*Procedure
	builtins   map[string][]*Builtin
}

// NewScope creates a scope nested in parent (nil for the root).
func NewScope(parent *Scope) *Scope {
	return &Scope{parent: parent, variables: make(map[string]SymbolID)}
}

// Declare binds name in this scope. A name already declared at this level
// is a DuplicateSymbolName error naming the earlier declaration.
func (s *Scope) Declare(table *SymbolTable, name string, tok Token, id SymbolID) error {
	key := strings.ToLower(name)
	if prev, ok := s.variables[key]; ok {
		p := table.Get(prev)
		return newError(ErrDuplicateSymbolName, tok,
			"The name %q is already declared at %s.", name, p.Token.Position())
	}
	s.variables[key] = id
	return nil
}

// LookupVariable walks the chain from innermost to outermost.
func (s *Scope) LookupVariable(name string) (SymbolID, bool) {
	key := strings.ToLower(name)
	for sc := s; sc != nil; sc = sc.parent {
		if id, ok := sc.variables[key]; ok {
			return id, true
		}
	}
	return NoSymbol, false
}

// AddProcedure registers a user procedure.
func (s *Scope) AddProcedure(p *Procedure) {
	if s.procedures == nil {
		s.procedures = make(map[string][]*Procedure)
	}
	key := strings.ToLower(p.Name)
	s.procedures[key] = append(s.procedures[key], p)
}

// AddBuiltin registers a built-in procedure.
func (s *Scope) AddBuiltin(b *Builtin) {
	if s.builtins == nil {
		s.builtins = make(map[string][]*Builtin)
	}
	key := strings.ToLower(b.Name)
	s.builtins[key] = append(s.builtins[key], b)
}

// LookupProcedures returns the user procedures and built-ins visible under
// name, user procedures first, each in declaration order.
func (s *Scope) LookupProcedures(name string) ([]*Procedure, []*Builtin) {
	key := strings.ToLower(name)
	var procs []*Procedure
	var builtins []*Builtin
	for sc := s; sc != nil; sc = sc.parent {
		procs = append(procs, sc.procedures[key]...)
		builtins = append(builtins, sc.builtins[key]...)
	}
	return procs, builtins
}

// HasProcedure reports whether name names any procedure.
func (s *Scope) HasProcedure(name string) bool {
	procs, builtins := s.LookupProcedures(name)
	return len(procs) > 0 || len(builtins) > 0
}

// NewBuiltinScope creates the outermost scope holding built-in procedures
// and constants.
func NewBuiltinScope(table *SymbolTable) *Scope {
	s := NewScope(nil)
	for _, b := range Builtins {
		s.AddBuiltin(b)
	}
	for _, c := range BuiltinConstants {
		id := table.Add(&Symbol{Name: c.Name, Kind: SymbolBuiltinConstant, Type: tNumber, Constant: c.Value})
		s.variables[strings.ToLower(c.Name)] = id
	}
	return s
}
