package wgsl

import (
	"fmt"

	"github.com/shaderlab/ssair/ir"
)

// emit wraps builder.Emit, additionally recording the result's type so a
// later reference (a `let` binding, a constructor argument) can recover it
// without re-deriving it from the AST.
func (l *Lowerer) emit(kind ir.InstructionKind, typ ir.TypeHandle) ir.ValueHandle {
	v := l.builder.Emit(kind)
	l.valueTypes[v] = typ
	return v
}

func (l *Lowerer) valueType(v ir.ValueHandle) ir.TypeHandle {
	if t, ok := l.valueTypes[v]; ok {
		return t
	}
	if c, ok := l.builder.Module().Constant(v); ok {
		return c.Type
	}
	if g, ok := l.builder.Module().Global(v); ok {
		return g.Type
	}
	return ir.NoID
}

func isOpaqueResourceType(module *ir.Module, handle ir.TypeHandle) bool {
	t, ok := module.Type(handle)
	if !ok {
		return false
	}
	switch t.Inner.(type) {
	case ir.SamplerType, ir.ImageType:
		return true
	default:
		return false
	}
}

// pointeeType returns the type InstLoad on a pointer of type handle would
// produce, or NoID if handle isn't a pointer.
func (l *Lowerer) pointeeType(handle ir.TypeHandle) ir.TypeHandle {
	t, ok := l.builder.Module().Type(handle)
	if !ok {
		return ir.NoID
	}
	ptr, ok := t.Inner.(ir.PointerType)
	if !ok {
		return ir.NoID
	}
	return ptr.Base
}

// lowerExpression lowers e to a value, inserting a Load if the expression
// names a pointer (an identifier bound to a `var`) in a context expecting
// its value.
func (l *Lowerer) lowerExpression(e Expr) ir.ValueHandle {
	switch n := e.(type) {
	case *Literal:
		return l.lowerLiteralConst(n)
	case *Ident:
		return l.lowerIdentValue(n)
	case *BinaryExpr:
		return l.lowerBinary(n)
	case *UnaryExpr:
		return l.lowerUnary(n)
	case *CallExpr:
		return l.lowerCall(n)
	case *ConstructExpr:
		return l.lowerConstruct(n)
	case *MemberExpr:
		return l.lowerMember(n)
	case *IndexExpr:
		return l.lowerIndex(n)
	case *BitcastExpr:
		return l.lowerBitcast(n)
	default:
		l.errf(e.Pos(), "unsupported expression %T", e)
		return ir.NoID
	}
}

func (l *Lowerer) lowerIdentValue(n *Ident) ir.ValueHandle {
	if loc, ok := l.locals[n.Name]; ok {
		l.usedLocals[n.Name] = true
		if loc.isPtr {
			return l.emit(ir.InstLoad{Pointer: loc.handle}, l.pointeeType(loc.typ))
		}
		return loc.handle
	}
	if h, ok := l.globals[n.Name]; ok {
		g, _ := l.builder.Module().Global(h)
		if g.Space == ir.SpaceUniformConstant {
			return h
		}
		return l.emit(ir.InstLoad{Pointer: h}, g.Type)
	}
	if h, ok := l.moduleConstants[n.Name]; ok {
		return h
	}
	l.errf(n.Span, "undefined identifier %q", n.Name)
	return ir.NoID
}

// lowerLValue resolves e to a pointer value suitable as InstStore's target.
func (l *Lowerer) lowerLValue(e Expr) (ir.ValueHandle, error) {
	switch n := e.(type) {
	case *Ident:
		if loc, ok := l.locals[n.Name]; ok {
			if !loc.isPtr {
				return ir.NoID, fmt.Errorf("cannot assign to %q: not a mutable variable", n.Name)
			}
			return loc.handle, nil
		}
		if h, ok := l.globals[n.Name]; ok {
			return h, nil
		}
		return ir.NoID, fmt.Errorf("undefined identifier %q", n.Name)
	case *MemberExpr:
		base, err := l.lowerLValue(n.Expr)
		if err != nil {
			return ir.NoID, err
		}
		baseTyp, err := l.lowerLValueTypeOnly(n.Expr)
		if err != nil {
			return ir.NoID, err
		}
		idx, ok := l.structMemberIndex(l.pointeeType(baseTyp), n.Member)
		if !ok {
			return ir.NoID, fmt.Errorf("no such member %q", n.Member)
		}
		resultTyp, _ := l.lowerLValueTypeOnly(n)
		return l.emit(ir.InstAccessIndex{Base: base, Index: idx}, resultTyp), nil
	case *IndexExpr:
		base, err := l.lowerLValue(n.Expr)
		if err != nil {
			return ir.NoID, err
		}
		index := l.lowerExpression(n.Index)
		resultTyp, _ := l.lowerLValueTypeOnly(n)
		return l.emit(ir.InstAccess{Base: base, Index: index}, resultTyp), nil
	default:
		return ir.NoID, fmt.Errorf("%T is not assignable", e)
	}
}

// lowerLValueTypeOnly resolves an lvalue's pointer TYPE without emitting
// any instructions, used when a member-access chain needs to know a
// member's index before it can build the access chain itself.
func (l *Lowerer) lowerLValueTypeOnly(e Expr) (ir.TypeHandle, error) {
	switch n := e.(type) {
	case *Ident:
		if loc, ok := l.locals[n.Name]; ok {
			return loc.typ, nil
		}
		if h, ok := l.globals[n.Name]; ok {
			return l.valueTypes[h], nil
		}
		return ir.NoID, fmt.Errorf("undefined identifier %q", n.Name)
	case *MemberExpr:
		baseTyp, err := l.lowerLValueTypeOnly(n.Expr)
		if err != nil {
			return ir.NoID, err
		}
		idx, ok := l.structMemberIndex(l.pointeeType(baseTyp), n.Member)
		if !ok {
			return ir.NoID, fmt.Errorf("no such member %q", n.Member)
		}
		st, _ := l.builder.Module().Type(l.pointeeType(baseTyp))
		space := l.spaceOf(baseTyp)
		memberType := st.Inner.(ir.StructType).Members[idx].Type
		return l.builder.InternType("", ir.PointerType{Base: memberType, Space: space}), nil
	case *IndexExpr:
		baseTyp, err := l.lowerLValueTypeOnly(n.Expr)
		if err != nil {
			return ir.NoID, err
		}
		t, _ := l.builder.Module().Type(l.pointeeType(baseTyp))
		space := l.spaceOf(baseTyp)
		switch inner := t.Inner.(type) {
		case ir.ArrayType:
			return l.builder.InternType("", ir.PointerType{Base: inner.Base, Space: space}), nil
		case ir.VectorType:
			return l.builder.InternType("", ir.PointerType{Base: l.builder.InternType("", inner.Scalar), Space: space}), nil
		default:
			return ir.NoID, fmt.Errorf("cannot index type %T", inner)
		}
	default:
		return ir.NoID, fmt.Errorf("%T is not assignable", e)
	}
}

func (l *Lowerer) spaceOf(ptrType ir.TypeHandle) ir.AddressSpace {
	t, ok := l.builder.Module().Type(ptrType)
	if !ok {
		return ir.SpaceFunction
	}
	if p, ok := t.Inner.(ir.PointerType); ok {
		return p.Space
	}
	return ir.SpaceFunction
}

func (l *Lowerer) structMemberIndex(structType ir.TypeHandle, name string) (uint32, bool) {
	t, ok := l.builder.Module().Type(structType)
	if !ok {
		return 0, false
	}
	st, ok := t.Inner.(ir.StructType)
	if !ok {
		return 0, false
	}
	for i, m := range st.Members {
		if m.Name == name {
			return uint32(i), true
		}
	}
	return 0, false
}

func (l *Lowerer) lowerBinary(n *BinaryExpr) ir.ValueHandle {
	left := l.lowerExpression(n.Left)
	right := l.lowerExpression(n.Right)
	op, ok := tokenToBinaryOp(n.Op)
	if !ok {
		l.errf(n.Span, "unsupported binary operator %s", n.Op)
		return ir.NoID
	}
	return l.emit(ir.InstBinary{Op: op, Left: left, Right: right}, l.inferBinaryType(op, left, right))
}

func (l *Lowerer) inferBinaryType(op ir.BinaryOperator, left, right ir.ValueHandle) ir.TypeHandle {
	switch op {
	case ir.BinaryEqual, ir.BinaryNotEqual, ir.BinaryLess, ir.BinaryLessEqual,
		ir.BinaryGreater, ir.BinaryGreaterEqual, ir.BinaryLogicalAnd, ir.BinaryLogicalOr:
		return l.types["bool"]
	case ir.BinaryMultiply:
		if t := l.matrixMultiplyType(left, right); t != ir.NoID {
			return t
		}
		fallthrough
	default:
		if t := l.valueType(left); t != ir.NoID {
			return t
		}
		return l.valueType(right)
	}
}

// matrixMultiplyType computes the WGSL result type of `*` when either
// operand is a matrix: mat*mat composes into a matrix whose column count
// comes from the right operand and whose row count comes from the left
// (mirroring linear-algebra composition, same rule GLSL/SPIR-V use), and
// mat*vec / vec*mat select the row or column vector type respectively.
// Returns NoID when neither operand is a matrix, so the caller falls back
// to its plain same-type-as-left rule (scalar/vector component-wise
// multiply, scalar*matrix is handled there too since it keeps the
// matrix's own type).
func (l *Lowerer) matrixMultiplyType(left, right ir.ValueHandle) ir.TypeHandle {
	lt, lok := l.builder.Module().Type(l.valueType(left))
	rt, rok := l.builder.Module().Type(l.valueType(right))
	if !lok || !rok {
		return ir.NoID
	}
	lm, lIsMat := lt.Inner.(ir.MatrixType)
	rm, rIsMat := rt.Inner.(ir.MatrixType)
	switch {
	case lIsMat && rIsMat:
		return l.builder.InternType("", ir.MatrixType{Columns: rm.Columns, Rows: lm.Rows, Scalar: lm.Scalar})
	case lIsMat:
		if _, rIsVec := rt.Inner.(ir.VectorType); rIsVec {
			return l.builder.InternType("", ir.VectorType{Size: lm.Rows, Scalar: lm.Scalar})
		}
	case rIsMat:
		if _, lIsVec := lt.Inner.(ir.VectorType); lIsVec {
			return l.builder.InternType("", ir.VectorType{Size: rm.Columns, Scalar: rm.Scalar})
		}
	}
	return ir.NoID
}

func (l *Lowerer) lowerUnary(n *UnaryExpr) ir.ValueHandle {
	operand := l.lowerExpression(n.Operand)
	op, ok := tokenToUnaryOp(n.Op)
	if !ok {
		l.errf(n.Span, "unsupported unary operator %s", n.Op)
		return ir.NoID
	}
	return l.emit(ir.InstUnary{Op: op, Value: operand}, l.valueType(operand))
}

func (l *Lowerer) lowerBitcast(n *BitcastExpr) ir.ValueHandle {
	value := l.lowerExpression(n.Expr)
	typ, err := l.resolveType(n.Type)
	if err != nil {
		l.errf(n.Span, "%v", err)
		return ir.NoID
	}
	resolved, _ := l.builder.Module().Type(typ)
	scalar, ok := resolved.Inner.(ir.ScalarType)
	if !ok {
		l.errf(n.Span, "bitcast target must be a scalar type")
		return ir.NoID
	}
	return l.emit(ir.InstBitcast{Value: value, Kind: scalar.Kind, Width: scalar.Width}, typ)
}

func (l *Lowerer) lowerMember(n *MemberExpr) ir.ValueHandle {
	baseType := l.exprStaticType(n.Expr)
	resolved, ok := l.builder.Module().Type(baseType)
	if ok {
		if vt, isVec := resolved.Inner.(ir.VectorType); isVec {
			pattern, size, ok := swizzlePattern(n.Member)
			if ok {
				base := l.lowerExpression(n.Expr)
				if size == 1 {
					idx := swizzleIndex(rune(n.Member[0]))
					return l.emit(ir.InstExtract{Composite: base, Index: uint32(idx)}, l.builder.InternType("", vt.Scalar))
				}
				resultType := l.builder.InternType("", ir.VectorType{Size: size, Scalar: vt.Scalar})
				return l.emit(ir.InstShuffle{Size: size, Vector: base, Pattern: pattern}, resultType)
			}
		}
	}
	// struct field access on a value (not addressed through a pointer)
	idx, ok := l.structMemberIndex(baseType, n.Member)
	if !ok {
		l.errf(n.Span, "no such member %q", n.Member)
		return ir.NoID
	}
	base := l.lowerExpression(n.Expr)
	st, _ := l.builder.Module().Type(baseType)
	memberType := st.Inner.(ir.StructType).Members[idx].Type
	return l.emit(ir.InstExtract{Composite: base, Index: idx}, memberType)
}

// exprStaticType derives the IR type of an arbitrary AST expression without
// emitting instructions for it, used only to decide whether a member
// access is a struct-field extract or a vector swizzle.
func (l *Lowerer) exprStaticType(e Expr) ir.TypeHandle {
	switch n := e.(type) {
	case *Ident:
		if loc, ok := l.locals[n.Name]; ok {
			if loc.isPtr {
				return l.pointeeType(loc.typ)
			}
			return loc.typ
		}
		if h, ok := l.globals[n.Name]; ok {
			g, _ := l.builder.Module().Global(h)
			return g.Type
		}
		if h, ok := l.moduleConstants[n.Name]; ok {
			if c, ok := l.builder.Module().Constant(h); ok {
				return c.Type
			}
		}
	case *MemberExpr:
		baseType := l.exprStaticType(n.Expr)
		if resolved, ok := l.builder.Module().Type(baseType); ok {
			if vt, isVec := resolved.Inner.(ir.VectorType); isVec {
				if _, size, ok := swizzlePattern(n.Member); ok && size > 1 {
					return l.builder.InternType("", ir.VectorType{Size: size, Scalar: vt.Scalar})
				}
				return l.builder.InternType("", vt.Scalar)
			}
		}
		if idx, ok := l.structMemberIndex(baseType, n.Member); ok {
			st, _ := l.builder.Module().Type(baseType)
			return st.Inner.(ir.StructType).Members[idx].Type
		}
	case *IndexExpr:
		baseType := l.exprStaticType(n.Expr)
		if t, ok := l.builder.Module().Type(baseType); ok {
			switch inner := t.Inner.(type) {
			case ir.ArrayType:
				return inner.Base
			case ir.VectorType:
				return l.builder.InternType("", inner.Scalar)
			}
		}
	}
	return ir.NoID
}

func swizzleIndex(r rune) ir.SwizzleComponent {
	switch r {
	case 'x', 'r':
		return ir.SwizzleX
	case 'y', 'g':
		return ir.SwizzleY
	case 'z', 'b':
		return ir.SwizzleZ
	default:
		return ir.SwizzleW
	}
}

func swizzlePattern(member string) ([4]ir.SwizzleComponent, ir.VectorSize, bool) {
	if len(member) < 1 || len(member) > 4 {
		return [4]ir.SwizzleComponent{}, 0, false
	}
	const valid = "xyzwrgba"
	var pattern [4]ir.SwizzleComponent
	for i, r := range member {
		found := false
		for _, v := range valid {
			if r == v {
				found = true
				break
			}
		}
		if !found {
			return pattern, 0, false
		}
		pattern[i] = swizzleIndex(r)
	}
	return pattern, ir.VectorSize(len(member)), true
}

func (l *Lowerer) lowerIndex(n *IndexExpr) ir.ValueHandle {
	baseType := l.exprStaticType(n.Expr)
	index := l.lowerExpression(n.Index)
	if lit, ok := n.Index.(*Literal); ok {
		if v, err := constUint32(lit); err == nil {
			base := l.lowerExpression(n.Expr)
			elemType := l.elementType(baseType)
			return l.emit(ir.InstExtract{Composite: base, Index: v}, elemType)
		}
	}
	base := l.lowerExpression(n.Expr)
	elemType := l.elementType(baseType)
	return l.emit(ir.InstExtractDynamic{Composite: base, Index: index}, elemType)
}

func (l *Lowerer) elementType(compositeType ir.TypeHandle) ir.TypeHandle {
	t, ok := l.builder.Module().Type(compositeType)
	if !ok {
		return ir.NoID
	}
	switch inner := t.Inner.(type) {
	case ir.ArrayType:
		return inner.Base
	case ir.VectorType:
		return l.builder.InternType("", inner.Scalar)
	default:
		return ir.NoID
	}
}
