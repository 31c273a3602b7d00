package vm

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ImageVersion is bumped whenever the class image layout changes.
const ImageVersion = 1

// ClassImage is the serialized form of one compiled class. Its CBOR
// encoding is what a compile round produces as the artifact bytecode.
type ClassImage struct {
	Version      uint8         `cbor:"1,keyasint"`
	Name         string        `cbor:"2,keyasint"`
	Superclass   string        `cbor:"3,keyasint"`
	InstVars     []string      `cbor:"4,keyasint,omitempty"`
	ClassVars    []string      `cbor:"5,keyasint,omitempty"`
	Methods      []MethodImage `cbor:"6,keyasint,omitempty"`
	ClassMethods []MethodImage `cbor:"7,keyasint,omitempty"`
	Initializer  *MethodImage  `cbor:"8,keyasint,omitempty"`
	Unit         string        `cbor:"9,keyasint,omitempty"`
}

// MethodImage is one compiled method.
type MethodImage struct {
	Selector  string       `cbor:"1,keyasint"`
	NumArgs   int          `cbor:"2,keyasint"`
	NumTemps  int          `cbor:"3,keyasint"`
	Code      []byte       `cbor:"4,keyasint"`
	Literals  []Literal    `cbor:"5,keyasint,omitempty"`
	Globals   []string     `cbor:"6,keyasint,omitempty"`
	Selectors []string     `cbor:"7,keyasint,omitempty"`
	Blocks    []BlockImage `cbor:"8,keyasint,omitempty"`
	Lines     []LineMark   `cbor:"9,keyasint,omitempty"`
	Sig       Signature    `cbor:"10,keyasint"`
	Source    string       `cbor:"11,keyasint,omitempty"`
}

// BlockImage is one compiled block body.
type BlockImage struct {
	NumArgs  int        `cbor:"1,keyasint"`
	NumTemps int        `cbor:"2,keyasint"`
	Code     []byte     `cbor:"3,keyasint"`
	Lines    []LineMark `cbor:"4,keyasint,omitempty"`
}

// LiteralKind tags the variant held by a Literal.
type LiteralKind uint8

const (
	LitNil LiteralKind = iota
	LitTrue
	LitFalse
	LitInt
	LitFloat
	LitString
	LitSymbol
	LitChar
	LitArray
)

// Literal is a tagged constant from a method's literal frame.
type Literal struct {
	Kind  LiteralKind `cbor:"1,keyasint"`
	Int   int64       `cbor:"2,keyasint,omitempty"`
	Float float64     `cbor:"3,keyasint,omitempty"`
	Str   string      `cbor:"4,keyasint,omitempty"`
	Elems []Literal   `cbor:"5,keyasint,omitempty"`
}

var imageEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	imageEncMode = em
}

// EncodeImage serializes a class image to CBOR bytes.
func EncodeImage(img *ClassImage) ([]byte, error) {
	if img.Version == 0 {
		img.Version = ImageVersion
	}
	return imageEncMode.Marshal(img)
}

// DecodeImage deserializes a class image from CBOR bytes.
func DecodeImage(data []byte) (*ClassImage, error) {
	var img ClassImage
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("vm: unmarshal class image: %w", err)
	}
	if img.Version != ImageVersion {
		return nil, fmt.Errorf("vm: class image %q has version %d, want %d", img.Name, img.Version, ImageVersion)
	}
	if img.Name == "" {
		return nil, fmt.Errorf("vm: class image has no name")
	}
	if img.Superclass == img.Name {
		return nil, fmt.Errorf("vm: class %s cannot be its own superclass", img.Name)
	}
	methods := append(append([]MethodImage(nil), img.Methods...), img.ClassMethods...)
	if img.Initializer != nil {
		methods = append(methods, *img.Initializer)
	}
	for _, mi := range methods {
		if err := mi.verify(); err != nil {
			return nil, fmt.Errorf("vm: class %s: %w", img.Name, err)
		}
	}
	return &img, nil
}

func (mi *MethodImage) verify() error {
	if err := Verify(mi.Code); err != nil {
		return fmt.Errorf("%s: %w", mi.Selector, err)
	}
	for i, b := range mi.Blocks {
		if err := Verify(b.Code); err != nil {
			return fmt.Errorf("%s block %d: %w", mi.Selector, i, err)
		}
	}
	return nil
}

// LiteralOf converts a constant value into its image form.
func LiteralOf(v Value) (Literal, error) {
	switch x := v.(type) {
	case nil:
		return Literal{Kind: LitNil}, nil
	case bool:
		if x {
			return Literal{Kind: LitTrue}, nil
		}
		return Literal{Kind: LitFalse}, nil
	case int64:
		return Literal{Kind: LitInt, Int: x}, nil
	case float64:
		return Literal{Kind: LitFloat, Float: x}, nil
	case string:
		return Literal{Kind: LitString, Str: x}, nil
	case Symbol:
		return Literal{Kind: LitSymbol, Str: string(x)}, nil
	case Character:
		return Literal{Kind: LitChar, Int: int64(x)}, nil
	case *Array:
		elems := make([]Literal, len(x.Elems))
		for i, e := range x.Elems {
			lit, err := LiteralOf(e)
			if err != nil {
				return Literal{}, err
			}
			elems[i] = lit
		}
		return Literal{Kind: LitArray, Elems: elems}, nil
	}
	return Literal{}, fmt.Errorf("vm: %T cannot be a literal", v)
}

// Value converts a literal back into a runtime value. Array literals yield
// a fresh Array on every call.
func (l Literal) Value() Value {
	switch l.Kind {
	case LitTrue:
		return true
	case LitFalse:
		return false
	case LitInt:
		return l.Int
	case LitFloat:
		return l.Float
	case LitString:
		return l.Str
	case LitSymbol:
		return Symbol(l.Str)
	case LitChar:
		return Character(rune(l.Int))
	case LitArray:
		elems := make([]Value, len(l.Elems))
		for i, e := range l.Elems {
			elems[i] = e.Value()
		}
		return &Array{Elems: elems}
	}
	return nil
}

func (mi *MethodImage) method(cls *Class, classSide bool) *Method {
	m := &Method{
		Selector:  mi.Selector,
		Class:     cls,
		ClassSide: classSide,
		NumArgs:   mi.NumArgs,
		NumTemps:  mi.NumTemps,
		Code:      mi.Code,
		Globals:   mi.Globals,
		Selectors: mi.Selectors,
		Lines:     mi.Lines,
		Sig:       mi.Sig,
		Source:    mi.Source,
	}
	m.Literals = make([]Value, len(mi.Literals))
	for i, lit := range mi.Literals {
		m.Literals[i] = lit.Value()
	}
	m.Blocks = make([]*BlockCode, len(mi.Blocks))
	for i, bi := range mi.Blocks {
		m.Blocks[i] = &BlockCode{NumArgs: bi.NumArgs, NumTemps: bi.NumTemps, Code: bi.Code, Lines: bi.Lines}
	}
	return m
}
