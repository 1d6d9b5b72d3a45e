package compiler

// ---------------------------------------------------------------------------
// Return-path analysis
// ---------------------------------------------------------------------------

// CheckReturns reports ControlReachesEndOfFunction when some path through
// a function's body can fall off the end without returning or throwing.
// Subs always pass.
func CheckReturns(proc *Procedure) error {
	if !proc.IsFunction() || bodyReturns(proc.Body) {
		return nil
	}
	tok := proc.Tok
	if proc.Body != nil && len(proc.Body.Statements) > 0 {
		tok = proc.Body.Statements[len(proc.Body.Statements)-1].Token()
	}
	return newError(ErrControlReachesEndOfFunction, tok,
		"The function %q can reach its end without returning a value.", proc.Name)
}

// bodyReturns reports whether every path through body ends in a return
// or a throw. An exit or continue ahead of the proving statement leaves
// the body by another route and defeats the proof.
func bodyReturns(body *Body) bool {
	if body == nil {
		return false
	}
	for _, s := range body.Statements {
		switch s.(type) {
		case *ExitStmt, *ContinueStmt:
			return false
		}
		if stmtReturns(s) {
			return true
		}
	}
	return false
}

func stmtReturns(s Stmt) bool {
	switch s := s.(type) {
	case *ReturnStmt, *ThrowStmt, *RethrowStmt:
		return true

	case *IfStmt:
		if s.Else == nil || !bodyReturns(s.Body) || !bodyReturns(s.Else) {
			return false
		}
		for _, e := range s.ElseIfs {
			if !bodyReturns(e.Body) {
				return false
			}
		}
		return true

	case *SelectCaseStmt:
		hasDefault := false
		for _, c := range s.Cases {
			if c.Values == nil {
				hasDefault = true
			}
			if !bodyReturns(c.Body) {
				return false
			}
		}
		return hasDefault

	case *DoStmt:
		return bodyReturns(s.Body) && !exitsTo(s.Body, s)

	case *TryStmt:
		return bodyReturns(s.Body) && bodyReturns(s.Catch)
	}
	return false
}

// exitsTo reports whether any exit statement nested in body leaves loop.
func exitsTo(body *Body, loop Stmt) bool {
	found := false
	WalkStatements(body, func(s Stmt) bool {
		if e, ok := s.(*ExitStmt); ok && e.Target == loop {
			found = true
		}
		return !found
	})
	return found
}
