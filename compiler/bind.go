package compiler

// ---------------------------------------------------------------------------
// Symbol binding
// ---------------------------------------------------------------------------

// binder resolves every SymbolReference in a procedure and declares the
// procedure's parameters and locals in the symbol table.
type binder struct {
	table *SymbolTable
}

// BindProcedure binds proc against the global scope. Bare identifiers and
// dotted bases that name a procedure instead of a variable are rewritten
// into calls.
func BindProcedure(table *SymbolTable, globals *Scope, proc *Procedure) error {
	b := &binder{table: table}
	scope := NewScope(globals)
	for _, p := range proc.Parameters {
		p.ID = table.Add(&Symbol{Name: p.Name, Kind: SymbolParameter, Decl: p, Token: p.Tok, Type: p.Type})
		if err := scope.Declare(table, p.Name, p.Tok, p.ID); err != nil {
			return err
		}
	}
	return b.body(scope, proc.Body)
}

func (b *binder) declare(scope *Scope, name string, tok Token, kind SymbolKind, decl Node) (SymbolID, error) {
	id := b.table.Add(&Symbol{Name: name, Kind: kind, Decl: decl, Token: tok})
	return id, scope.Declare(b.table, name, tok, id)
}

func (b *binder) body(parent *Scope, body *Body) error {
	if body == nil {
		return nil
	}
	scope := NewScope(parent)
	for _, s := range body.Statements {
		if err := b.stmt(scope, s); err != nil {
			return err
		}
	}
	return nil
}

func (b *binder) exprs(scope *Scope, list []Expr) error {
	for i, e := range list {
		bound, err := b.expr(scope, e)
		if err != nil {
			return err
		}
		list[i] = bound
	}
	return nil
}

// exprInto binds *slot in place.
func (b *binder) exprInto(scope *Scope, slot *Expr) error {
	if *slot == nil {
		return nil
	}
	bound, err := b.expr(scope, *slot)
	if err != nil {
		return err
	}
	*slot = bound
	return nil
}

func (b *binder) stmt(scope *Scope, s Stmt) error {
	var err error
	switch s := s.(type) {
	case *AssignStmt:
		if err = b.exprInto(scope, &s.Target); err == nil {
			err = b.exprInto(scope, &s.Value)
		}
	case *CallStmt:
		err = b.exprs(scope, s.Args)
	case *ConstStmt:
		if err = b.exprInto(scope, &s.Value); err == nil {
			s.ID, err = b.declare(scope, s.Name, s.Tok, SymbolLocalConstant, s)
		}
	case *DimStmt:
		if err = b.exprInto(scope, &s.Value); err == nil {
			s.ID, err = b.declare(scope, s.Name, s.Tok, SymbolLocal, s)
		}
	case *DimCollectionStmt:
		if err = b.body(scope, s.Body); err == nil {
			s.ID, err = b.declare(scope, s.Name, s.Tok, SymbolLocal, s)
		}
	case *DoStmt:
		if err = b.body(scope, s.Body); err == nil {
			err = b.exprInto(scope, &s.Condition)
		}
	case *ForStmt:
		for _, e := range []*Expr{&s.From, &s.To, &s.Step} {
			if err = b.exprInto(scope, e); err != nil {
				return err
			}
		}
		child := NewScope(scope)
		if s.ID, err = b.declare(child, s.VarName, s.VarTok, SymbolLocal, s); err == nil {
			err = b.body(child, s.Body)
		}
	case *ForEachStmt:
		if err = b.exprInto(scope, &s.Source); err != nil {
			return err
		}
		child := NewScope(scope)
		if s.ID, err = b.declare(child, s.VarName, s.VarTok, SymbolLocal, s); err == nil {
			err = b.body(child, s.Body)
		}
	case *IfStmt:
		if err = b.exprInto(scope, &s.Condition); err != nil {
			return err
		}
		if err = b.body(scope, s.Body); err != nil {
			return err
		}
		for _, e := range s.ElseIfs {
			if err = b.exprInto(scope, &e.Condition); err != nil {
				return err
			}
			if err = b.body(scope, e.Body); err != nil {
				return err
			}
		}
		err = b.body(scope, s.Else)
	case *SelectCaseStmt:
		if err = b.exprInto(scope, &s.Value); err != nil {
			return err
		}
		for _, c := range s.Cases {
			for _, v := range c.Values {
				if err = b.exprInto(scope, &v.Value); err != nil {
					return err
				}
				if err = b.exprInto(scope, &v.To); err != nil {
					return err
				}
			}
			if err = b.body(scope, c.Body); err != nil {
				return err
			}
		}
	case *ThrowStmt:
		if err = b.exprInto(scope, &s.Code); err == nil {
			err = b.exprInto(scope, &s.Message)
		}
	case *TryStmt:
		if err = b.body(scope, s.Body); err == nil {
			err = b.body(scope, s.Catch)
		}
	case *WhileStmt:
		if err = b.exprInto(scope, &s.Condition); err == nil {
			err = b.body(scope, s.Body)
		}
	case *PrintStmt:
		err = b.exprs(scope, s.Values)
	case *InputStmt:
		err = b.exprInto(scope, &s.Target)
	case *ReturnStmt:
		err = b.exprInto(scope, &s.Value)
	case *YieldStmt:
		if err = b.exprInto(scope, &s.Value); err == nil {
			err = b.exprInto(scope, &s.To)
		}
	case *ContinueStmt, *ExitStmt, *RethrowStmt:
	case *GroupStmt, *JoinStmt, *SelectStmt:
		return newError(ErrInternal, s.Token(), "This statement is not supported.")
	default:
		internalf(s.Token(), "unexpected statement %T", s)
	}
	return err
}

func (b *binder) expr(scope *Scope, e Expr) (Expr, error) {
	switch e := e.(type) {
	case *SymbolReference:
		if id, ok := scope.LookupVariable(e.Name); ok {
			e.Bound = id
			return e, nil
		}
		if scope.HasProcedure(e.Name) {
			call := &CallExpr{Name: e.Name}
			call.Tok = e.Tok
			return call, nil
		}
		return nil, newError(ErrSymbolNotFound, e.Tok, "The name %q was not found.", e.Name)

	case *DottedExpr:
		if ref, ok := e.Base.(*SymbolReference); ok && e.Suffixes[0].Kind == SuffixIndex {
			if _, isVar := scope.LookupVariable(ref.Name); !isVar && scope.HasProcedure(ref.Name) {
				call := &CallExpr{Name: ref.Name, Args: e.Suffixes[0].Args}
				call.Tok = ref.Tok
				if err := b.exprs(scope, call.Args); err != nil {
					return nil, err
				}
				if len(e.Suffixes) == 1 {
					return call, nil
				}
				e.Base = call
				e.Suffixes = e.Suffixes[1:]
			}
		}
		if err := b.exprInto(scope, &e.Base); err != nil {
			return nil, err
		}
		for _, s := range e.Suffixes {
			if err := b.exprs(scope, s.Args); err != nil {
				return nil, err
			}
		}
		return e, nil

	case *BinaryExpr:
		if err := b.exprInto(scope, &e.Left); err != nil {
			return nil, err
		}
		for _, s := range e.Suffixes {
			if err := b.exprInto(scope, &s.Right); err != nil {
				return nil, err
			}
		}
		return e, nil

	case *CallExpr:
		return e, b.exprs(scope, e.Args)
	case *ConvertExpr:
		return e, b.exprInto(scope, &e.Value)
	case *NotExpr:
		return e, b.exprInto(scope, &e.Value)
	case *ListLiteral:
		return e, b.exprs(scope, e.Elements)
	case *RecordLiteral:
		for _, f := range e.Fields {
			if err := b.exprInto(scope, &f.Value); err != nil {
				return nil, err
			}
		}
		return e, nil
	case *BooleanLiteral, *NumberLiteral, *StringLiteral, *NoExpr:
		return e, nil
	}
	internalf(e.Token(), "unexpected expression %T", e)
	return nil, nil
}
