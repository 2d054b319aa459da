package ir

import "fmt"

// Interner deduplicates types and scalar constants against a Module by
// structural key, so that two occurrences of `vec4<f32>` or the literal
// `1.0` anywhere in a shader resolve to the same ID. It owns the Module it
// interns into; Builder embeds one.
type Interner struct {
	module *Module

	typeKeys map[string]TypeHandle
	keyBuf   []byte

	scalarKeys map[scalarKey]ConstantHandle

	nextStructKey uint64
}

type scalarKey struct {
	kind  ScalarKind
	width uint8
	bits  uint64
}

// NewInterner creates an Interner bound to a fresh Module.
func NewInterner() *Interner {
	return &Interner{
		module:     NewModule(),
		typeKeys:   make(map[string]TypeHandle),
		scalarKeys: make(map[scalarKey]ConstantHandle),
	}
}

// NewInternerOverModule returns an Interner that mints any further types or
// scalar constants into an already-populated Module instead of a fresh one.
// Back ends use this to get Interner-style derived-type lookups (see
// TypeOf) over IR a front end already built; its dedup cache starts empty,
// so a derived type that happens to match one the front end already
// defined is re-minted rather than found — harmless, since every back end
// here maps IR type handles to its own output types one at a time anyway.
func NewInternerOverModule(m *Module) *Interner {
	return &Interner{
		module:     m,
		typeKeys:   make(map[string]TypeHandle),
		scalarKeys: make(map[scalarKey]ConstantHandle),
	}
}

// Module returns the Module this Interner populates.
func (in *Interner) Module() *Module { return in.module }

// InternType returns the existing TypeHandle for inner if an equal type was
// already interned, or defines a new one. name is carried for debug output
// and does not affect deduplication — `vec4<f32>` interns to the same
// handle whether or not a WGSL alias gave it a name.
func (in *Interner) InternType(name string, inner TypeInner) TypeHandle {
	key := in.normalizeType(inner)
	if handle, ok := in.typeKeys[key]; ok {
		return handle
	}
	handle := in.module.AllocID()
	in.module.defineType(handle, Type{Name: name, Inner: inner})
	in.typeKeys[key] = handle
	return handle
}

// InternScalar returns the ConstantHandle for the scalar literal (kind,
// bits), minting a new Constant the first time a given bit pattern is seen
// for that kind. Composite constants are never deduplicated this way —
// callers build them directly via Module's constant list through Builder.
func (in *Interner) InternScalar(typeHandle TypeHandle, kind ScalarKind, width uint8, bits uint64) ConstantHandle {
	key := scalarKey{kind: kind, width: width, bits: bits}
	if handle, ok := in.scalarKeys[key]; ok {
		return handle
	}
	handle := in.module.AllocID()
	in.module.defineConstant(handle, Constant{
		ID:    handle,
		Type:  typeHandle,
		Value: ScalarValue{Bits: bits, Kind: kind},
	})
	in.scalarKeys[key] = handle
	return handle
}

// DefineConstant mints a fresh, non-interned constant (composite, null, or
// a named override) and returns its handle.
func (in *Interner) DefineConstant(c Constant) ConstantHandle {
	handle := in.module.AllocID()
	c.ID = handle
	in.module.defineConstant(handle, c)
	return handle
}

// normalizeType builds a structural key for inner; two TypeInners with the
// same key are guaranteed interchangeable at every back-end. Scalars,
// vectors and matrices reuse a small scratch buffer since they dominate
// real shaders; composite shapes that reference other handles by index
// fall back to fmt.Sprintf since they are comparatively rare.
func (in *Interner) normalizeType(inner TypeInner) string {
	buf := in.keyBuf[:0]
	switch t := inner.(type) {
	case ScalarType:
		buf = append(buf, 'S', byte(t.Kind), t.Width)
	case VectorType:
		buf = append(buf, 'V', byte(t.Size), byte(t.Scalar.Kind), t.Scalar.Width)
	case MatrixType:
		buf = append(buf, 'M', byte(t.Columns), byte(t.Rows), byte(t.Scalar.Kind), t.Scalar.Width)
	case PointerType:
		buf = append(buf, 'P', byte(t.Space))
		buf = appendUint32(buf, uint32(t.Base))
	case AtomicType:
		buf = append(buf, 'A', byte(t.Scalar.Kind), t.Scalar.Width)
	case SamplerType:
		comparison := byte(0)
		if t.Comparison {
			comparison = 1
		}
		buf = append(buf, 'Z', comparison)
	case ArrayType:
		in.keyBuf = buf
		return in.normalizeArray(t)
	case StructType:
		// Struct identity is nominal, not structural: unlike every other
		// shape here, two structurally identical struct declarations are
		// still distinct types, so each call mints a fresh key rather than
		// deduplicating against prior struct types.
		in.keyBuf = buf
		in.nextStructKey++
		return fmt.Sprintf("T#%d", in.nextStructKey)
	case ImageType:
		in.keyBuf = buf
		return fmt.Sprintf("I%+v", t)
	default:
		in.keyBuf = buf
		return fmt.Sprintf("?%+v", inner)
	}
	in.keyBuf = buf
	return string(buf)
}

func (in *Interner) normalizeArray(t ArrayType) string {
	size := uint32(0)
	dynamic := byte(0)
	if t.Size.Constant != nil {
		size = *t.Size.Constant
	} else {
		dynamic = 1
	}
	return fmt.Sprintf("R%d:%d:%d:%d", t.Base, size, dynamic, t.Stride)
}

func appendUint32(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
