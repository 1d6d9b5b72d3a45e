package compiler

// ---------------------------------------------------------------------------
// Local-variable and argument indexing
// ---------------------------------------------------------------------------

const maxSlots = 65535

// slotCounter hands out dense slots in the value and object spaces.
type slotCounter struct {
	values, objects int
}

func (c *slotCounter) next(isValue bool) int {
	if isValue {
		c.values++
		return c.values - 1
	}
	c.objects++
	return c.objects - 1
}

// IndexProcedure assigns argument slots to parameters and local slots to
// every declaring statement and statement temporary in a type-checked
// procedure.
func IndexProcedure(table *SymbolTable, proc *Procedure) error {
	var args slotCounter
	for _, p := range proc.Parameters {
		p.Index = args.next(p.Type.IsValueType())
		table.Get(p.ID).Slot = p.Index
	}
	if args.values > maxCallArguments || args.objects > maxCallArguments {
		return newError(ErrTooManyCallArguments, proc.Tok,
			"A procedure can take at most %d values and %d objects.", maxCallArguments, maxCallArguments)
	}
	proc.NumArgValues, proc.NumArgObjects = args.values, args.objects

	var locals slotCounter
	declare := func(id SymbolID) {
		sym := table.Get(id)
		sym.Slot = locals.next(sym.Type.IsValueType())
	}
	WalkStatements(proc.Body, func(s Stmt) bool {
		switch s := s.(type) {
		case *DimStmt:
			declare(s.ID)
		case *ConstStmt:
			declare(s.ID)
		case *DimCollectionStmt:
			declare(s.ID)
		case *ForStmt:
			declare(s.ID)
			s.TempValues = []int{locals.next(true), locals.next(true)}
		case *ForEachStmt:
			declare(s.ID)
			s.TempValues = []int{locals.next(true), locals.next(true)}
			s.TempObjects = []int{locals.next(false)}
		case *SelectCaseStmt:
			if s.Value.EvaluatedType().IsValueType() {
				s.TempValues = []int{locals.next(true)}
			} else {
				s.TempObjects = []int{locals.next(false)}
			}
		case *AssignStmt:
			if d, ok := s.Target.(*DottedExpr); ok {
				s.TempValues, s.TempObjects = dottedAssignTemps(d, &locals)
			}
		}
		return true
	})
	if locals.values > maxSlots || locals.objects > maxSlots {
		return newError(ErrTooManyLocalVariables, proc.Tok,
			"The procedure %q has more than %d local variables.", proc.Name, maxSlots)
	}
	proc.NumLocalValues, proc.NumLocalObjects = locals.values, locals.objects
	return nil
}

// dottedAssignTemps reserves one object temporary per container along the
// chain, followed by one temporary per index key.
func dottedAssignTemps(d *DottedExpr, locals *slotCounter) (values, objects []int) {
	for range d.Suffixes {
		objects = append(objects, locals.next(false))
	}
	for _, s := range d.Suffixes {
		if s.Kind != SuffixIndex {
			continue
		}
		if keyIsValue(s) {
			values = append(values, locals.next(true))
		} else {
			objects = append(objects, locals.next(false))
		}
	}
	return values, objects
}

// keyIsValue reports whether an index suffix's key lives in the value space.
func keyIsValue(s *DottedSuffix) bool {
	if s.Container.Kind == KindMap {
		return s.Container.Key.IsValueType()
	}
	return true
}
