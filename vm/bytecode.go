package vm

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Opcode is the first byte of an instruction.
type Opcode byte

const (
	OpNOP Opcode = 0x00
	OpPOP Opcode = 0x01
	OpDUP Opcode = 0x02

	OpPushNil     Opcode = 0x10
	OpPushTrue    Opcode = 0x11
	OpPushFalse   Opcode = 0x12
	OpPushSelf    Opcode = 0x13
	OpPushInt8    Opcode = 0x14 // value
	OpPushLiteral Opcode = 0x16 // literal index

	OpPushTemp      Opcode = 0x20 // depth, slot
	OpPushIvar      Opcode = 0x21 // index
	OpPushGlobal    Opcode = 0x22 // global index
	OpStoreTemp     Opcode = 0x23 // depth, slot
	OpStoreIvar     Opcode = 0x24 // index
	OpPushClassVar  Opcode = 0x28 // index in the defining class
	OpStoreClassVar Opcode = 0x29 // index in the defining class

	OpSend      Opcode = 0x30 // selector index, argc
	OpSendSuper Opcode = 0x31 // selector index, argc

	OpReturnTop      Opcode = 0x70 // from the method
	OpBlockReturn    Opcode = 0x73 // value of the block
	OpNonLocalReturn Opcode = 0x74 // from the block's home method

	OpCreateBlock Opcode = 0x80 // block index
	OpCreateArray Opcode = 0x90 // element count
)

// Operand kinds. u16 operands are little-endian.
const (
	argU8  = 'b'
	argI8  = 'i'
	argU16 = 'w'
)

type opDef struct {
	name   string
	layout string // one argU8, argI8 or argU16 per operand
}

var opDefs = map[Opcode]opDef{
	OpNOP: {"NOP", ""},
	OpPOP: {"POP", ""},
	OpDUP: {"DUP", ""},

	OpPushNil:     {"PUSH_NIL", ""},
	OpPushTrue:    {"PUSH_TRUE", ""},
	OpPushFalse:   {"PUSH_FALSE", ""},
	OpPushSelf:    {"PUSH_SELF", ""},
	OpPushInt8:    {"PUSH_INT8", "i"},
	OpPushLiteral: {"PUSH_LITERAL", "w"},

	OpPushTemp:      {"PUSH_TEMP", "bb"},
	OpPushIvar:      {"PUSH_IVAR", "b"},
	OpPushGlobal:    {"PUSH_GLOBAL", "w"},
	OpStoreTemp:     {"STORE_TEMP", "bb"},
	OpStoreIvar:     {"STORE_IVAR", "b"},
	OpPushClassVar:  {"PUSH_CLASSVAR", "b"},
	OpStoreClassVar: {"STORE_CLASSVAR", "b"},

	OpSend:      {"SEND", "wb"},
	OpSendSuper: {"SEND_SUPER", "wb"},

	OpReturnTop:      {"RETURN_TOP", ""},
	OpBlockReturn:    {"BLOCK_RETURN", ""},
	OpNonLocalReturn: {"NONLOCAL_RETURN", ""},

	OpCreateBlock: {"CREATE_BLOCK", "w"},
	OpCreateArray: {"CREATE_ARRAY", "b"},
}

func (op Opcode) String() string {
	if d, ok := opDefs[op]; ok {
		return d.name
	}
	return fmt.Sprintf("UNKNOWN_%02X", byte(op))
}

// Size is the encoded length of an instruction, opcode included. It is 1
// for unknown opcodes.
func (op Opcode) Size() int {
	n := 1
	for _, k := range opDefs[op].layout {
		if k == argU16 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// BytecodeBuilder appends instructions and keeps a line table so runtime
// errors can point back at the source.
type BytecodeBuilder struct {
	code     []byte
	lines    []LineMark
	lastLine int
}

func NewBytecodeBuilder() *BytecodeBuilder {
	return &BytecodeBuilder{code: make([]byte, 0, 64)}
}

func (b *BytecodeBuilder) Bytes() []byte     { return b.code }
func (b *BytecodeBuilder) Lines() []LineMark { return b.lines }
func (b *BytecodeBuilder) Len() int          { return len(b.code) }

// MarkLine records that what is emitted next comes from line. Repeated
// and non-positive lines are ignored.
func (b *BytecodeBuilder) MarkLine(line int) {
	if line > 0 && line != b.lastLine {
		b.lastLine = line
		b.lines = append(b.lines, LineMark{PC: len(b.code), Line: line})
	}
}

// put appends op and its operands encoded by the opcode's layout.
func (b *BytecodeBuilder) put(op Opcode, args ...int) {
	b.code = append(b.code, byte(op))
	for i, k := range opDefs[op].layout {
		if k == argU16 {
			b.code = binary.LittleEndian.AppendUint16(b.code, uint16(args[i]))
		} else {
			b.code = append(b.code, byte(args[i]))
		}
	}
}

func (b *BytecodeBuilder) Emit(op Opcode)                        { b.code = append(b.code, byte(op)) }
func (b *BytecodeBuilder) EmitByte(op Opcode, v byte)            { b.put(op, int(v)) }
func (b *BytecodeBuilder) EmitInt8(op Opcode, v int8)            { b.put(op, int(v)) }
func (b *BytecodeBuilder) EmitUint16(op Opcode, v uint16)        { b.put(op, int(v)) }
func (b *BytecodeBuilder) EmitTemp(op Opcode, depth, slot uint8) { b.put(op, int(depth), int(slot)) }

func (b *BytecodeBuilder) EmitSend(op Opcode, selector uint16, argc uint8) {
	b.put(op, int(selector), int(argc))
}

// Instruction is one decoded instruction.
type Instruction struct {
	PC   int
	Op   Opcode
	Args []int
}

// Decode reads the instruction at pc.
func Decode(code []byte, pc int) (Instruction, error) {
	if pc < 0 || pc >= len(code) {
		return Instruction{}, fmt.Errorf("vm: pc %d outside code of length %d", pc, len(code))
	}
	in := Instruction{PC: pc, Op: Opcode(code[pc])}
	d, ok := opDefs[in.Op]
	if !ok {
		return in, fmt.Errorf("vm: unknown opcode 0x%02X at %d", code[pc], pc)
	}
	if pc+in.Op.Size() > len(code) {
		return in, fmt.Errorf("vm: %s at %d is truncated", in.Op, pc)
	}
	at := pc + 1
	for _, k := range d.layout {
		switch k {
		case argU16:
			in.Args = append(in.Args, int(binary.LittleEndian.Uint16(code[at:])))
			at += 2
		case argI8:
			in.Args = append(in.Args, int(int8(code[at])))
			at++
		default:
			in.Args = append(in.Args, int(code[at]))
			at++
		}
	}
	return in, nil
}

func (in Instruction) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%04d  %s", in.PC, in.Op)
	switch in.Op {
	case OpPushTemp, OpStoreTemp:
		fmt.Fprintf(&sb, " %d@%d", in.Args[1], in.Args[0])
	case OpSend, OpSendSuper:
		fmt.Fprintf(&sb, " selector=%d argc=%d", in.Args[0], in.Args[1])
	default:
		for _, a := range in.Args {
			fmt.Fprintf(&sb, " %d", a)
		}
	}
	return sb.String()
}

// Verify checks that code is a sequence of whole, known instructions.
func Verify(code []byte) error {
	for pc := 0; pc < len(code); {
		in, err := Decode(code, pc)
		if err != nil {
			return err
		}
		pc += in.Op.Size()
	}
	return nil
}

// Disassemble lists code one instruction per line. An unknown opcode is
// shown by its byte and decoding resumes after it.
func Disassemble(code []byte) string {
	var lines []string
	for pc := 0; pc < len(code); {
		in, err := Decode(code, pc)
		switch {
		case err == nil:
			lines = append(lines, in.String())
		case opDefs[in.Op].name == "":
			lines = append(lines, fmt.Sprintf("%04d  %s", pc, in.Op))
		default:
			lines = append(lines, fmt.Sprintf("%04d  %s (truncated)", pc, in.Op))
		}
		pc += in.Op.Size()
	}
	return strings.Join(lines, "\n")
}
