package compiler

import (
	"strings"
)

// ---------------------------------------------------------------------------
// Named-type resolution and the recursive-type check
// ---------------------------------------------------------------------------

// TypeRegistry holds the user record types of a program by lowercase name.
type TypeRegistry struct {
	types map[string]*TypeDeclaration
	order []*TypeDeclaration
}

// NewTypeRegistry creates an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{types: make(map[string]*TypeDeclaration)}
}

// Add registers a declaration. Names of built-in records and earlier
// declarations are DuplicateTypeName errors.
func (r *TypeRegistry) Add(decl *TypeDeclaration) error {
	key := strings.ToLower(decl.Name)
	if _, ok := builtinRecords[key]; ok {
		return newError(ErrDuplicateTypeName, decl.Tok, "The type %q is a built-in type.", decl.Name)
	}
	if prev, ok := r.types[key]; ok {
		return newError(ErrDuplicateTypeName, decl.Tok,
			"The type %q is already declared at %s.", decl.Name, prev.Tok.Position())
	}
	r.types[key] = decl
	r.order = append(r.order, decl)
	return nil
}

// Lookup finds a record type by case-insensitive name, built-ins first.
func (r *TypeRegistry) Lookup(name string) (*TypeDeclaration, bool) {
	key := strings.ToLower(name)
	if decl, ok := builtinRecords[key]; ok {
		return decl, true
	}
	decl, ok := r.types[key]
	return decl, ok
}

// Declarations returns the user types in declaration order.
func (r *TypeRegistry) Declarations() []*TypeDeclaration {
	return r.order
}

// ResolveType fills the fields of every named record reference inside t.
func (r *TypeRegistry) ResolveType(t *TypeNode) error {
	return walkTypeNode(t, func(n *TypeNode) error {
		if n.Kind != KindRecord || n.RecordName == "" {
			return nil
		}
		decl, ok := r.Lookup(n.RecordName)
		if !ok {
			return newError(ErrTypeNotFound, n.Tok, "The type %q was not found.", n.RecordName)
		}
		n.RecordName = decl.Name
		n.Fields = decl.Fields
		return nil
	})
}

// ResolveDeclaration resolves the field types of a user type.
func (r *TypeRegistry) ResolveDeclaration(decl *TypeDeclaration) error {
	seen := make(map[string]bool)
	for _, f := range decl.Fields {
		key := strings.ToLower(f.Name)
		if seen[key] {
			return newError(ErrDuplicateSymbolName, f.Tok, "The field %q is already declared.", f.Name)
		}
		seen[key] = true
		if err := r.ResolveType(f.Type); err != nil {
			return err
		}
	}
	return nil
}

// ResolveProcedure resolves every type expression written in proc.
func (r *TypeRegistry) ResolveProcedure(proc *Procedure) error {
	for _, t := range procedureTypeNodes(proc) {
		if err := r.ResolveType(t); err != nil {
			return err
		}
	}
	return nil
}

// directRecordNames lists the user record names that t embeds directly.
// List, Map, Set and Optional break the chain.
func directRecordNames(t *TypeNode) []string {
	if t == nil || t.Kind != KindRecord {
		return nil
	}
	if t.RecordName != "" {
		return []string{t.RecordName}
	}
	var out []string
	for _, f := range t.Fields {
		out = append(out, directRecordNames(f.Type)...)
	}
	return out
}

// CheckRecursiveTypes rejects user types that contain themselves through
// direct record fields. It runs on unresolved declarations.
func (r *TypeRegistry) CheckRecursiveTypes() error {
	done := make(map[string]bool)
	var visit func(decl *TypeDeclaration, path []string) error
	visit = func(decl *TypeDeclaration, path []string) error {
		key := strings.ToLower(decl.Name)
		for i, p := range path {
			if strings.ToLower(p) == key {
				cycle := append(append([]string(nil), path[i:]...), decl.Name)
				return newError(ErrRecursiveRecordType, decl.Tok,
					"The type %q contains itself: %s.", decl.Name, strings.Join(cycle, " -> "))
			}
		}
		if done[key] {
			return nil
		}
		path = append(path, decl.Name)
		for _, f := range decl.Fields {
			for _, name := range directRecordNames(f.Type) {
				next, ok := r.types[strings.ToLower(name)]
				if !ok {
					continue // built-in or unknown; resolution reports the latter
				}
				if err := visit(next, path); err != nil {
					return err
				}
			}
		}
		done[key] = true
		return nil
	}
	for _, decl := range r.order {
		if err := visit(decl, nil); err != nil {
			return err
		}
	}
	return nil
}
