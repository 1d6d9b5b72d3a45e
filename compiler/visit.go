package compiler

// ---------------------------------------------------------------------------
// Tree walking helpers shared by the semantic passes
// ---------------------------------------------------------------------------

// StatementExprs returns the expressions owned directly by s, not those of
// nested bodies.
func StatementExprs(s Stmt) []Expr {
	var out []Expr
	add := func(es ...Expr) {
		for _, e := range es {
			if e != nil {
				out = append(out, e)
			}
		}
	}
	switch s := s.(type) {
	case *AssignStmt:
		add(s.Target, s.Value)
	case *CallStmt:
		add(s.Args...)
	case *ConstStmt:
		add(s.Value)
	case *DimStmt:
		add(s.Value)
	case *DoStmt:
		add(s.Condition)
	case *ForStmt:
		add(s.From, s.To, s.Step)
	case *ForEachStmt:
		add(s.Source)
	case *IfStmt:
		add(s.Condition)
		for _, e := range s.ElseIfs {
			add(e.Condition)
		}
	case *SelectCaseStmt:
		add(s.Value)
		for _, c := range s.Cases {
			for _, v := range c.Values {
				add(v.Value, v.To)
			}
		}
	case *ThrowStmt:
		add(s.Code, s.Message)
	case *WhileStmt:
		add(s.Condition)
	case *PrintStmt:
		add(s.Values...)
	case *InputStmt:
		add(s.Target)
	case *ReturnStmt:
		add(s.Value)
	case *YieldStmt:
		add(s.Value, s.To)
	}
	return out
}

// WalkExpr calls fn for e and every nested expression, parents first.
func WalkExpr(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	switch e := e.(type) {
	case *BinaryExpr:
		WalkExpr(e.Left, fn)
		for _, s := range e.Suffixes {
			WalkExpr(s.Right, fn)
		}
	case *CallExpr:
		for _, a := range e.Args {
			WalkExpr(a, fn)
		}
	case *ListLiteral:
		for _, el := range e.Elements {
			WalkExpr(el, fn)
		}
	case *RecordLiteral:
		for _, f := range e.Fields {
			WalkExpr(f.Value, fn)
		}
	case *ConvertExpr:
		WalkExpr(e.Value, fn)
	case *DottedExpr:
		WalkExpr(e.Base, fn)
		for _, s := range e.Suffixes {
			for _, a := range s.Args {
				WalkExpr(a, fn)
			}
		}
	case *NotExpr:
		WalkExpr(e.Value, fn)
	}
}

// procedureTypeNodes returns every type expression written in proc: the
// parameter and return types, dim types, and convert and "no" targets.
func procedureTypeNodes(proc *Procedure) []*TypeNode {
	var out []*TypeNode
	for _, p := range proc.Parameters {
		out = append(out, p.Type)
	}
	if proc.Return != nil {
		out = append(out, proc.Return)
	}
	WalkStatements(proc.Body, func(s Stmt) bool {
		if t := ChildType(s); t != nil {
			out = append(out, t)
		}
		for _, e := range StatementExprs(s) {
			WalkExpr(e, func(e Expr) {
				switch e := e.(type) {
				case *ConvertExpr:
					out = append(out, e.Target)
				case *NoExpr:
					out = append(out, e.Target)
				}
			})
		}
		return true
	})
	return out
}

// walkTypeNode calls fn for t and its component types. Named records are
// not entered; their fields belong to the declaration.
func walkTypeNode(t *TypeNode, fn func(*TypeNode) error) error {
	if t == nil {
		return nil
	}
	if err := fn(t); err != nil {
		return err
	}
	for _, child := range []*TypeNode{t.Item, t.Key, t.Value} {
		if err := walkTypeNode(child, fn); err != nil {
			return err
		}
	}
	if t.Kind == KindRecord && t.RecordName == "" {
		for _, f := range t.Fields {
			if err := walkTypeNode(f.Type, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
