package compiler

import "strings"

// ---------------------------------------------------------------------------
// Type checker
// ---------------------------------------------------------------------------

const (
	maxLiteralListElements = 65535
	maxCallArguments       = 255
)

type checker struct {
	table       *SymbolTable
	globals     *Scope
	proc        *Procedure
	loops       []Stmt
	collections []*DimCollectionStmt
	yields      map[*DimCollectionStmt]int
}

// CheckProcedure assigns an evaluated type to every expression in a bound
// procedure and validates its statements. Running it again on the same
// tree produces the same types.
func CheckProcedure(table *SymbolTable, globals *Scope, proc *Procedure) error {
	c := &checker{table: table, globals: globals, proc: proc, yields: make(map[*DimCollectionStmt]int)}
	return c.body(proc.Body)
}

func (c *checker) body(b *Body) error {
	if b == nil {
		return nil
	}
	for _, s := range b.Statements {
		if err := c.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func loopKindOf(s Stmt) (LoopKind, bool) {
	switch s.(type) {
	case *DoStmt:
		return LoopDo, true
	case *ForStmt, *ForEachStmt:
		return LoopFor, true
	case *WhileStmt:
		return LoopWhile, true
	}
	return 0, false
}

func (c *checker) loopBody(s Stmt, b *Body) error {
	c.loops = append(c.loops, s)
	defer func() { c.loops = c.loops[:len(c.loops)-1] }()
	return c.body(b)
}

func (c *checker) findLoop(kind LoopKind) Stmt {
	for i := len(c.loops) - 1; i >= 0; i-- {
		if k, _ := loopKindOf(c.loops[i]); k == kind {
			return c.loops[i]
		}
	}
	return nil
}

func (c *checker) expectType(e Expr, want TypeKind) error {
	t, err := c.expr(e)
	if err != nil {
		return err
	}
	if t.Kind != want {
		return newError(ErrTypeMismatch, e.Token(), "Expected %s, but found %s.", NewType(want), t)
	}
	return nil
}

func (c *checker) stmt(s Stmt) error {
	switch s := s.(type) {
	case *AssignStmt:
		return c.assign(s)

	case *CallStmt:
		if err := c.exprs(s.Args); err != nil {
			return err
		}
		target, _, err := c.resolveCall(s.Name, s.Args, s.Tok, false)
		s.Target = target
		return err

	case *ConstStmt:
		t, err := c.expr(s.Value)
		if err != nil {
			return err
		}
		c.table.Get(s.ID).Type = t
		return nil

	case *DimStmt:
		t := s.Type
		if s.Value != nil {
			vt, err := c.expr(s.Value)
			if err != nil {
				return err
			}
			if t == nil {
				t = vt
			} else if !CanImplicitlyConvert(vt, t) {
				return newError(ErrTypeMismatch, s.Value.Token(), "Cannot assign %s to %s.", vt, t)
			}
		}
		c.table.Get(s.ID).Type = t
		return nil

	case *DimCollectionStmt:
		s.Type = nil
		c.yields[s] = 0
		c.collections = append(c.collections, s)
		err := c.body(s.Body)
		c.collections = c.collections[:len(c.collections)-1]
		if err != nil {
			return err
		}
		if c.yields[s] == 0 {
			return newError(ErrNoYieldsInDimCollection, s.Tok, "This dim %s has no yield statements.", collectionWord(s.Kind))
		}
		c.table.Get(s.ID).Type = s.Type
		return nil

	case *YieldStmt:
		return c.yield(s)

	case *DoStmt:
		if err := c.loopBody(s, s.Body); err != nil {
			return err
		}
		return c.expectType(s.Condition, KindBoolean)

	case *ForStmt:
		for _, e := range []Expr{s.From, s.To, s.Step} {
			if e == nil {
				continue
			}
			if err := c.expectType(e, KindNumber); err != nil {
				return err
			}
		}
		c.table.Get(s.ID).Type = tNumber
		return c.loopBody(s, s.Body)

	case *ForEachStmt:
		t, err := c.expr(s.Source)
		if err != nil {
			return err
		}
		if t.Kind != KindList {
			return newError(ErrTypeMismatch, s.Source.Token(), "Expected a list, but found %s.", t)
		}
		c.table.Get(s.ID).Type = t.Item
		return c.loopBody(s, s.Body)

	case *IfStmt:
		if err := c.expectType(s.Condition, KindBoolean); err != nil {
			return err
		}
		if err := c.body(s.Body); err != nil {
			return err
		}
		for _, e := range s.ElseIfs {
			if err := c.expectType(e.Condition, KindBoolean); err != nil {
				return err
			}
			if err := c.body(e.Body); err != nil {
				return err
			}
		}
		return c.body(s.Else)

	case *SelectCaseStmt:
		return c.selectCase(s)

	case *WhileStmt:
		if err := c.expectType(s.Condition, KindBoolean); err != nil {
			return err
		}
		return c.loopBody(s, s.Body)

	case *TryStmt:
		if err := c.body(s.Body); err != nil {
			return err
		}
		return c.body(s.Catch)

	case *ThrowStmt:
		if s.Code != nil {
			if err := c.expectType(s.Code, KindNumber); err != nil {
				return err
			}
		}
		return c.expectType(s.Message, KindString)

	case *RethrowStmt:
		return nil

	case *ReturnStmt:
		if c.proc.IsFunction() {
			if s.Value == nil {
				return newError(ErrInvalidReturn, s.Tok, "This function must return a %s value.", c.proc.Return)
			}
			t, err := c.expr(s.Value)
			if err != nil {
				return err
			}
			if !CanImplicitlyConvert(t, c.proc.Return) {
				return newError(ErrInvalidReturn, s.Value.Token(), "Cannot return %s from a function returning %s.", t, c.proc.Return)
			}
			return nil
		}
		if s.Value != nil {
			return newError(ErrInvalidReturn, s.Tok, "A sub cannot return a value.")
		}
		return nil

	case *ExitStmt:
		if len(c.loops) == 0 {
			return newError(ErrExitOutsideLoop, s.Tok, "\"exit %s\" must be inside a loop.", strings.ToLower(s.Scope.String()))
		}
		if s.Target = c.findLoop(s.Scope); s.Target == nil {
			return newError(ErrExitTypeMismatch, s.Tok, "There is no enclosing %s loop.", s.Scope)
		}
		return nil

	case *ContinueStmt:
		if len(c.loops) == 0 {
			return newError(ErrContinueOutsideLoop, s.Tok, "\"continue %s\" must be inside a loop.", strings.ToLower(s.Scope.String()))
		}
		if s.Target = c.findLoop(s.Scope); s.Target == nil {
			return newError(ErrContinueTypeMismatch, s.Tok, "There is no enclosing %s loop.", s.Scope)
		}
		return nil

	case *PrintStmt:
		for _, v := range s.Values {
			t, err := c.expr(v)
			if err != nil {
				return err
			}
			if t.Kind != KindString && !CanExplicitlyConvert(t, tString) {
				return newError(ErrTypeMismatch, v.Token(), "Cannot print a value of type %s.", t)
			}
		}
		return nil

	case *InputStmt:
		ref, ok := s.Target.(*SymbolReference)
		if !ok {
			return newError(ErrInputTargetNotVariableName, s.Target.Token(), "The input target must be a variable name.")
		}
		t, err := c.expr(ref)
		if err != nil {
			return err
		}
		sym := c.table.Get(ref.Bound)
		if sym.IsConstant() || (t.Kind != KindString && t.Kind != KindNumber) {
			return newError(ErrInputTargetNotVariableName, ref.Tok, "The input target must be a String or Number variable.")
		}
		return nil

	case *GroupStmt, *JoinStmt, *SelectStmt:
		return newError(ErrInternal, s.Token(), "This statement is not supported.")
	}
	internalf(s.Token(), "unexpected statement %T", s)
	return nil
}

func collectionWord(k CollectionKind) string {
	switch k {
	case CollectionMap:
		return "map"
	case CollectionSet:
		return "set"
	}
	return "list"
}

func (c *checker) assign(s *AssignStmt) error {
	var base *SymbolReference
	switch t := s.Target.(type) {
	case *SymbolReference:
		base = t
	case *DottedExpr:
		base, _ = t.Base.(*SymbolReference)
	}
	if base == nil || c.table.Get(base.Bound).IsConstant() {
		return newError(ErrInvalidAssignmentTarget, s.Target.Token(), "This expression cannot be assigned to.")
	}
	targetType, err := c.expr(s.Target)
	if err != nil {
		return err
	}
	if d, ok := s.Target.(*DottedExpr); ok {
		for _, suffix := range d.Suffixes {
			if suffix.Kind == SuffixIndex && suffix.Container.Kind == KindString {
				return newError(ErrInvalidAssignmentTarget, suffix.Tok, "Characters of a string cannot be assigned to.")
			}
		}
	}
	vt, err := c.expr(s.Value)
	if err != nil {
		return err
	}
	if !CanImplicitlyConvert(vt, targetType) {
		return newError(ErrTypeMismatch, s.Value.Token(), "Cannot assign %s to %s.", vt, targetType)
	}
	return nil
}

func (c *checker) yield(s *YieldStmt) error {
	if len(c.collections) == 0 {
		return newError(ErrYieldOutsideDimCollection, s.Tok, "\"yield\" must be inside a dim list, dim map or dim set.")
	}
	coll := c.collections[len(c.collections)-1]
	s.Collection = coll
	c.yields[coll]++

	vt, err := c.expr(s.Value)
	if err != nil {
		return err
	}
	if coll.Kind == CollectionMap {
		if s.To == nil {
			return newError(ErrInvalidYieldType, s.Tok, "A dim map needs \"yield key to value\".")
		}
		tt, err := c.expr(s.To)
		if err != nil {
			return err
		}
		if coll.Type == nil {
			coll.Type = MapOf(vt, tt)
			return nil
		}
		if !CanImplicitlyConvert(vt, coll.Type.Key) || !CanImplicitlyConvert(tt, coll.Type.Value) {
			return newError(ErrInvalidYieldType, s.Tok, "Expected %s to %s, but found %s to %s.", coll.Type.Key, coll.Type.Value, vt, tt)
		}
		return nil
	}
	if s.To != nil {
		return newError(ErrInvalidYieldType, s.To.Token(), "Only a dim map can yield \"key to value\".")
	}
	if coll.Type == nil {
		if coll.Kind == CollectionSet {
			coll.Type = SetOf(vt)
		} else {
			coll.Type = ListOf(vt)
		}
		return nil
	}
	if !CanImplicitlyConvert(vt, coll.Type.Item) {
		return newError(ErrInvalidYieldType, s.Value.Token(), "Expected %s, but found %s.", coll.Type.Item, vt)
	}
	return nil
}

// isOrdered reports whether t supports < and case ranges. Booleans only
// compare for equality.
func isOrdered(t *TypeNode) bool {
	return (t.IsValueType() && t.Kind != KindBoolean) || t.Kind == KindString
}

func (c *checker) selectCase(s *SelectCaseStmt) error {
	vt, err := c.expr(s.Value)
	if err != nil {
		return err
	}
	defaults := 0
	for _, cs := range s.Cases {
		if cs.Values == nil {
			if defaults++; defaults > 1 {
				return newError(ErrMultipleSelectCaseDefaults, cs.Tok, "There can be only one \"case else\".")
			}
		}
		for _, v := range cs.Values {
			for _, e := range []Expr{v.Value, v.To} {
				if e == nil {
					continue
				}
				t, err := c.expr(e)
				if err != nil {
					return err
				}
				if !CanImplicitlyConvert(t, vt) {
					return newError(ErrTypeMismatch, e.Token(), "Expected %s, but found %s.", vt, t)
				}
			}
			if v.To != nil && !isOrdered(vt) {
				return newError(ErrTypeMismatch, v.To.Token(), "A range needs an ordered type, but found %s.", vt)
			}
		}
		if err := c.body(cs.Body); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (c *checker) exprs(list []Expr) error {
	for _, e := range list {
		if _, err := c.expr(e); err != nil {
			return err
		}
	}
	return nil
}

func (c *checker) expr(e Expr) (*TypeNode, error) {
	t, err := c.exprType(e)
	if err != nil {
		return nil, err
	}
	e.setEvaluatedType(t)
	return t, nil
}

func (c *checker) exprType(e Expr) (*TypeNode, error) {
	switch e := e.(type) {
	case *BooleanLiteral:
		return tBoolean, nil
	case *NumberLiteral:
		return tNumber, nil
	case *StringLiteral:
		return tString, nil

	case *ListLiteral:
		if len(e.Elements) == 0 {
			return nil, newError(ErrEmptyLiteralList, e.Tok, "A literal list needs at least one element.")
		}
		if len(e.Elements) > maxLiteralListElements {
			return nil, newError(ErrTooManyLiteralListElements, e.Tok, "A literal list can hold at most %d elements.", maxLiteralListElements)
		}
		var item *TypeNode
		for _, el := range e.Elements {
			t, err := c.expr(el)
			if err != nil {
				return nil, err
			}
			if item == nil {
				item = t
			} else if !CanImplicitlyConvert(t, item) {
				return nil, newError(ErrTypeMismatch, el.Token(), "Expected %s, but found %s.", item, t)
			}
		}
		return ListOf(item), nil

	case *RecordLiteral:
		fields := make([]*Parameter, len(e.Fields))
		for i, f := range e.Fields {
			if findField(fields[:i], f.Name) >= 0 {
				return nil, newError(ErrDuplicateSymbolName, f.Tok, "The field %q is already declared.", f.Name)
			}
			t, err := c.expr(f.Value)
			if err != nil {
				return nil, err
			}
			fields[i] = &Parameter{Name: f.Name, Type: t, Index: i}
		}
		return RecordOf(fields...), nil

	case *NoExpr:
		return OptionalOf(e.Target), nil

	case *NotExpr:
		if err := c.expectType(e.Value, KindBoolean); err != nil {
			return nil, err
		}
		return tBoolean, nil

	case *ConvertExpr:
		t, err := c.expr(e.Value)
		if err != nil {
			return nil, err
		}
		if !CanExplicitlyConvert(t, e.Target) {
			return nil, newError(ErrInvalidTypeConversion, e.Tok, "Cannot convert %s to %s.", t, e.Target)
		}
		return e.Target, nil

	case *SymbolReference:
		sym := c.table.Get(e.Bound)
		if sym.Type == nil {
			internalf(e.Tok, "symbol %q has no type", sym.Name)
		}
		return sym.Type, nil

	case *CallExpr:
		if err := c.exprs(e.Args); err != nil {
			return nil, err
		}
		target, t, err := c.resolveCall(e.Name, e.Args, e.Tok, true)
		e.Target = target
		return t, err

	case *BinaryExpr:
		return c.binary(e)

	case *DottedExpr:
		return c.dotted(e)
	}
	internalf(e.Token(), "unexpected expression %T", e)
	return nil, nil
}

func (c *checker) binary(e *BinaryExpr) (*TypeNode, error) {
	cur, err := c.expr(e.Left)
	if err != nil {
		return nil, err
	}
	for _, s := range e.Suffixes {
		rt, err := c.expr(s.Right)
		if err != nil {
			return nil, err
		}
		res := binaryResultType(s.Op, cur, rt)
		if res == nil {
			return nil, newError(ErrTypeMismatch, s.Tok, "The operator %q cannot be applied to %s and %s.", s.Op, cur, rt)
		}
		s.LeftType = cur
		s.Type = res
		cur = res
	}
	return cur, nil
}

func mutuallyConvertible(a, b *TypeNode) bool {
	return CanImplicitlyConvert(a, b) || CanImplicitlyConvert(b, a)
}

func isDateLike(t *TypeNode) bool {
	return t.Kind == KindDate || t.Kind == KindDateTime
}

// binaryResultType returns the type of "l op r", or nil if the operator
// does not apply.
func binaryResultType(op BinaryOperator, l, r *TypeNode) *TypeNode {
	switch op {
	case OpOr, OpAnd:
		if l.Kind == KindBoolean && r.Kind == KindBoolean {
			return tBoolean
		}
	case OpEquals, OpNotEquals:
		if mutuallyConvertible(l, r) {
			return tBoolean
		}
	case OpLessThan, OpLessThanEquals, OpGreaterThan, OpGreaterThanEquals:
		if EqualTypes(l, r) && isOrdered(l) {
			return tBoolean
		}
	case OpAdd:
		switch {
		case l.Kind == KindNumber && r.Kind == KindNumber:
			return tNumber
		case l.Kind == KindString && r.Kind == KindString:
			return tString
		case l.Kind == KindList && EqualTypes(l, r):
			return l
		case l.Kind == KindList && CanImplicitlyConvert(r, l.Item):
			return l
		case isDateLike(l) && r.Kind == KindTimeSpan:
			return l
		case l.Kind == KindTimeSpan && r.Kind == KindTimeSpan:
			return l
		}
	case OpSubtract:
		switch {
		case l.Kind == KindNumber && r.Kind == KindNumber:
			return tNumber
		case isDateLike(l) && r.Kind == KindTimeSpan:
			return l
		case l.Kind == KindTimeSpan && r.Kind == KindTimeSpan:
			return l
		}
	case OpMultiply, OpDivide, OpModulus, OpPower:
		if l.Kind == KindNumber && r.Kind == KindNumber {
			return tNumber
		}
	}
	return nil
}

func (c *checker) dotted(e *DottedExpr) (*TypeNode, error) {
	cur, err := c.expr(e.Base)
	if err != nil {
		return nil, err
	}
	for _, s := range e.Suffixes {
		s.Container = cur
		switch s.Kind {
		case SuffixMember:
			if cur.Kind != KindRecord && cur.Kind != KindDateTimeOffset {
				return nil, newError(ErrFieldNotFound, s.Tok, "%s has no field %q.", cur, s.Name)
			}
			fields := recordFields(cur)
			i := findField(fields, s.Name)
			if i < 0 {
				return nil, newError(ErrFieldNotFound, s.Tok, "%s has no field %q.", cur, s.Name)
			}
			s.FieldIndex, _ = fieldSlot(fields, i)
			cur = fields[i].Type

		case SuffixIndex:
			if err := c.exprs(s.Args); err != nil {
				return nil, err
			}
			switch cur.Kind {
			case KindList, KindString:
				if len(s.Args) > 1 {
					return nil, newError(ErrTooManyIndexArguments, s.Tok, "A list index takes one argument.")
				}
				if len(s.Args) == 0 || s.Args[0].EvaluatedType().Kind != KindNumber {
					return nil, newError(ErrInvalidListIndex, s.Tok, "A list index must be a Number.")
				}
				if cur.Kind == KindList {
					cur = cur.Item
				}
			case KindMap:
				if len(s.Args) != 1 {
					return nil, newError(ErrTooManyIndexArguments, s.Tok, "A map lookup takes one key.")
				}
				if kt := s.Args[0].EvaluatedType(); !CanImplicitlyConvert(kt, cur.Key) {
					return nil, newError(ErrTypeMismatch, s.Args[0].Token(), "Expected a %s key, but found %s.", cur.Key, kt)
				}
				cur = cur.Value
			default:
				return nil, newError(ErrTypeMismatch, s.Tok, "%s cannot be indexed.", cur)
			}
		}
		s.Type = cur
	}
	return cur, nil
}

// ---------------------------------------------------------------------------
// Call resolution
// ---------------------------------------------------------------------------

func argumentStorage(types []*TypeNode) (values, objects int) {
	for _, t := range types {
		if t.IsValueType() {
			values++
		} else {
			objects++
		}
	}
	return values, objects
}

// resolveCall picks the first user procedure, then the first built-in,
// whose parameters accept args. wantFunction selects between expression
// and statement position.
func (c *checker) resolveCall(name string, args []Expr, tok Token, wantFunction bool) (*CallTarget, *TypeNode, error) {
	argTypes := make([]*TypeNode, len(args))
	for i, a := range args {
		argTypes[i] = a.EvaluatedType()
	}
	if v, o := argumentStorage(argTypes); v > maxCallArguments || o > maxCallArguments {
		return nil, nil, newError(ErrTooManyCallArguments, tok, "A call can pass at most %d values and %d objects.", maxCallArguments, maxCallArguments)
	}

	procs, builtins := c.globals.LookupProcedures(name)
	var target *CallTarget
	var ret *TypeNode
	isFunction := false

	for _, p := range procs {
		if len(p.Parameters) != len(args) {
			continue
		}
		ok := true
		for i, param := range p.Parameters {
			if !CanImplicitlyConvert(argTypes[i], param.Type) {
				ok = false
				break
			}
		}
		if ok {
			target, ret, isFunction = &CallTarget{Procedure: p}, p.Return, p.IsFunction()
			break
		}
	}

	if target == nil {
		for _, b := range builtins {
			if len(b.Parameters) != len(args) {
				continue
			}
			var generics [2]*TypeNode
			ok := true
			for i, param := range b.Parameters {
				if !unifyType(param, argTypes[i], &generics) {
					ok = false
					break
				}
			}
			if ok {
				target = &CallTarget{Builtin: b, Generics: generics}
				ret, isFunction = substituteGenerics(b.Return, generics), b.IsFunction()
				break
			}
		}
	}

	if target == nil {
		if len(procs) == 0 && len(builtins) == 0 {
			return nil, nil, newError(ErrProcedureNotFound, tok, "The procedure %q was not found.", name)
		}
		return nil, nil, newError(ErrProcedureNotFound, tok, "No version of %q accepts these arguments.", name)
	}
	if wantFunction && !isFunction {
		return nil, nil, newError(ErrSubCalledAsFunction, tok, "%q is a sub and does not return a value.", name)
	}
	if !wantFunction && isFunction {
		return nil, nil, newError(ErrSubCalledAsFunction, tok, "%q is a function; its return value must be used.", name)
	}
	return target, ret, nil
}

// paramTypes returns the parameter types of a resolved call with generic
// placeholders substituted.
func (t *CallTarget) paramTypes() []*TypeNode {
	if t.Procedure != nil {
		out := make([]*TypeNode, len(t.Procedure.Parameters))
		for i, p := range t.Procedure.Parameters {
			out[i] = p.Type
		}
		return out
	}
	out := make([]*TypeNode, len(t.Builtin.Parameters))
	for i, p := range t.Builtin.Parameters {
		out[i] = substituteGenerics(p, t.Generics)
	}
	return out
}
