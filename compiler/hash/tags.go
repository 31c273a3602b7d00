package hash

// HashVersion leads every serialized tree. Bump it whenever a tag or the
// field order of a node changes, since that changes every fingerprint.
const HashVersion byte = 3

// Node tags, grouped by kind. Values are part of the fingerprint format.
const (
	TagIntLiteral    byte = 0x01
	TagFloatLiteral  byte = 0x02
	TagStringLiteral byte = 0x03
	TagSymbolLiteral byte = 0x04
	TagCharLiteral   byte = 0x05
	TagBoolLiteral   byte = 0x06
	TagNilLiteral    byte = 0x07
	TagArrayLiteral  byte = 0x08
	TagDynamicArray  byte = 0x09

	TagSelfRef        byte = 0x10
	TagSuperRef       byte = 0x11
	TagLocalVarRef    byte = 0x12
	TagInstanceVarRef byte = 0x13
	TagClassVarRef    byte = 0x14
	TagGlobalRef      byte = 0x15

	TagUnaryMessage   byte = 0x20
	TagBinaryMessage  byte = 0x21
	TagKeywordMessage byte = 0x22
	TagCascade        byte = 0x23
	TagCascadeUnary   byte = 0x24
	TagCascadeBinary  byte = 0x25
	TagCascadeKeyword byte = 0x26

	TagAssignment byte = 0x30
	TagReturn     byte = 0x31
	TagExprStmt   byte = 0x32
	TagBlock      byte = 0x33

	TagPragma      byte = 0x40
	TagMethodDef   byte = 0x41
	TagClassVarDef byte = 0x42
	TagClassDef    byte = 0x43
	TagUnit        byte = 0x44
)
