// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package wasm

import "fmt"

// Opcode is the first byte of an instruction. Only the integer subset of
// the MVP instruction set plus the sign extension operators are known;
// floating point instructions are rejected as unsupported.
type Opcode byte

const (
	Unreachable   Opcode = 0x00
	Nop           Opcode = 0x01
	Block         Opcode = 0x02
	Loop          Opcode = 0x03
	If            Opcode = 0x04
	Else          Opcode = 0x05
	End           Opcode = 0x0b
	Br            Opcode = 0x0c
	BrIf          Opcode = 0x0d
	BrTable       Opcode = 0x0e
	Return        Opcode = 0x0f
	Call          Opcode = 0x10
	CallIndirect  Opcode = 0x11
	Drop          Opcode = 0x1a
	Select        Opcode = 0x1b
	LocalGet      Opcode = 0x20
	LocalSet      Opcode = 0x21
	LocalTee      Opcode = 0x22
	GlobalGet     Opcode = 0x23
	GlobalSet     Opcode = 0x24
	I32Load       Opcode = 0x28
	I64Load       Opcode = 0x29
	I32Load8S     Opcode = 0x2c
	I32Load8U     Opcode = 0x2d
	I32Load16S    Opcode = 0x2e
	I32Load16U    Opcode = 0x2f
	I64Load8S     Opcode = 0x30
	I64Load8U     Opcode = 0x31
	I64Load16S    Opcode = 0x32
	I64Load16U    Opcode = 0x33
	I64Load32S    Opcode = 0x34
	I64Load32U    Opcode = 0x35
	I32Store      Opcode = 0x36
	I64Store      Opcode = 0x37
	I32Store8     Opcode = 0x3a
	I32Store16    Opcode = 0x3b
	I64Store8     Opcode = 0x3c
	I64Store16    Opcode = 0x3d
	I64Store32    Opcode = 0x3e
	MemorySize    Opcode = 0x3f
	MemoryGrow    Opcode = 0x40
	I32Const      Opcode = 0x41
	I64Const      Opcode = 0x42
	I32Eqz        Opcode = 0x45
	I32Eq         Opcode = 0x46
	I32Ne         Opcode = 0x47
	I32LtS        Opcode = 0x48
	I32LtU        Opcode = 0x49
	I32GtS        Opcode = 0x4a
	I32GtU        Opcode = 0x4b
	I32LeS        Opcode = 0x4c
	I32LeU        Opcode = 0x4d
	I32GeS        Opcode = 0x4e
	I32GeU        Opcode = 0x4f
	I64Eqz        Opcode = 0x50
	I64Eq         Opcode = 0x51
	I64Ne         Opcode = 0x52
	I64LtS        Opcode = 0x53
	I64LtU        Opcode = 0x54
	I64GtS        Opcode = 0x55
	I64GtU        Opcode = 0x56
	I64LeS        Opcode = 0x57
	I64LeU        Opcode = 0x58
	I64GeS        Opcode = 0x59
	I64GeU        Opcode = 0x5a
	I32Clz        Opcode = 0x67
	I32Ctz        Opcode = 0x68
	I32Popcnt     Opcode = 0x69
	I32Add        Opcode = 0x6a
	I32Sub        Opcode = 0x6b
	I32Mul        Opcode = 0x6c
	I32DivS       Opcode = 0x6d
	I32DivU       Opcode = 0x6e
	I32RemS       Opcode = 0x6f
	I32RemU       Opcode = 0x70
	I32And        Opcode = 0x71
	I32Or         Opcode = 0x72
	I32Xor        Opcode = 0x73
	I32Shl        Opcode = 0x74
	I32ShrS       Opcode = 0x75
	I32ShrU       Opcode = 0x76
	I32Rotl       Opcode = 0x77
	I32Rotr       Opcode = 0x78
	I64Clz        Opcode = 0x79
	I64Ctz        Opcode = 0x7a
	I64Popcnt     Opcode = 0x7b
	I64Add        Opcode = 0x7c
	I64Sub        Opcode = 0x7d
	I64Mul        Opcode = 0x7e
	I64DivS       Opcode = 0x7f
	I64DivU       Opcode = 0x80
	I64RemS       Opcode = 0x81
	I64RemU       Opcode = 0x82
	I64And        Opcode = 0x83
	I64Or         Opcode = 0x84
	I64Xor        Opcode = 0x85
	I64Shl        Opcode = 0x86
	I64ShrS       Opcode = 0x87
	I64ShrU       Opcode = 0x88
	I64Rotl       Opcode = 0x89
	I64Rotr       Opcode = 0x8a
	I32WrapI64    Opcode = 0xa7
	I64ExtendI32S Opcode = 0xac
	I64ExtendI32U Opcode = 0xad
	I32Extend8S   Opcode = 0xc0
	I32Extend16S  Opcode = 0xc1
	I64Extend8S   Opcode = 0xc2
	I64Extend16S  Opcode = 0xc3
	I64Extend32S  Opcode = 0xc4
)

// Immediate classifies the immediate operands following an opcode.
type Immediate byte

const (
	ImmNone         Immediate = iota
	ImmBlockType              // < a single block type byte
	ImmIndex                  // < an unsigned LEB128 index
	ImmBrTable                // < a vector of label indices plus a default label
	ImmCallIndirect           // < a type index followed by a table index
	ImmMemArg                 // < alignment and offset
	ImmReserved               // < a single zero byte
	ImmI32                    // < a signed LEB128 32-bit constant
	ImmI64                    // < a signed LEB128 64-bit constant
)

type opcodeInfo struct {
	name      string
	immediate Immediate
}

var opcodes = [256]opcodeInfo{
	Unreachable:   {"unreachable", ImmNone},
	Nop:           {"nop", ImmNone},
	Block:         {"block", ImmBlockType},
	Loop:          {"loop", ImmBlockType},
	If:            {"if", ImmBlockType},
	Else:          {"else", ImmNone},
	End:           {"end", ImmNone},
	Br:            {"br", ImmIndex},
	BrIf:          {"br_if", ImmIndex},
	BrTable:       {"br_table", ImmBrTable},
	Return:        {"return", ImmNone},
	Call:          {"call", ImmIndex},
	CallIndirect:  {"call_indirect", ImmCallIndirect},
	Drop:          {"drop", ImmNone},
	Select:        {"select", ImmNone},
	LocalGet:      {"local.get", ImmIndex},
	LocalSet:      {"local.set", ImmIndex},
	LocalTee:      {"local.tee", ImmIndex},
	GlobalGet:     {"global.get", ImmIndex},
	GlobalSet:     {"global.set", ImmIndex},
	I32Load:       {"i32.load", ImmMemArg},
	I64Load:       {"i64.load", ImmMemArg},
	I32Load8S:     {"i32.load8_s", ImmMemArg},
	I32Load8U:     {"i32.load8_u", ImmMemArg},
	I32Load16S:    {"i32.load16_s", ImmMemArg},
	I32Load16U:    {"i32.load16_u", ImmMemArg},
	I64Load8S:     {"i64.load8_s", ImmMemArg},
	I64Load8U:     {"i64.load8_u", ImmMemArg},
	I64Load16S:    {"i64.load16_s", ImmMemArg},
	I64Load16U:    {"i64.load16_u", ImmMemArg},
	I64Load32S:    {"i64.load32_s", ImmMemArg},
	I64Load32U:    {"i64.load32_u", ImmMemArg},
	I32Store:      {"i32.store", ImmMemArg},
	I64Store:      {"i64.store", ImmMemArg},
	I32Store8:     {"i32.store8", ImmMemArg},
	I32Store16:    {"i32.store16", ImmMemArg},
	I64Store8:     {"i64.store8", ImmMemArg},
	I64Store16:    {"i64.store16", ImmMemArg},
	I64Store32:    {"i64.store32", ImmMemArg},
	MemorySize:    {"memory.size", ImmReserved},
	MemoryGrow:    {"memory.grow", ImmReserved},
	I32Const:      {"i32.const", ImmI32},
	I64Const:      {"i64.const", ImmI64},
	I32Eqz:        {"i32.eqz", ImmNone},
	I32Eq:         {"i32.eq", ImmNone},
	I32Ne:         {"i32.ne", ImmNone},
	I32LtS:        {"i32.lt_s", ImmNone},
	I32LtU:        {"i32.lt_u", ImmNone},
	I32GtS:        {"i32.gt_s", ImmNone},
	I32GtU:        {"i32.gt_u", ImmNone},
	I32LeS:        {"i32.le_s", ImmNone},
	I32LeU:        {"i32.le_u", ImmNone},
	I32GeS:        {"i32.ge_s", ImmNone},
	I32GeU:        {"i32.ge_u", ImmNone},
	I64Eqz:        {"i64.eqz", ImmNone},
	I64Eq:         {"i64.eq", ImmNone},
	I64Ne:         {"i64.ne", ImmNone},
	I64LtS:        {"i64.lt_s", ImmNone},
	I64LtU:        {"i64.lt_u", ImmNone},
	I64GtS:        {"i64.gt_s", ImmNone},
	I64GtU:        {"i64.gt_u", ImmNone},
	I64LeS:        {"i64.le_s", ImmNone},
	I64LeU:        {"i64.le_u", ImmNone},
	I64GeS:        {"i64.ge_s", ImmNone},
	I64GeU:        {"i64.ge_u", ImmNone},
	I32Clz:        {"i32.clz", ImmNone},
	I32Ctz:        {"i32.ctz", ImmNone},
	I32Popcnt:     {"i32.popcnt", ImmNone},
	I32Add:        {"i32.add", ImmNone},
	I32Sub:        {"i32.sub", ImmNone},
	I32Mul:        {"i32.mul", ImmNone},
	I32DivS:       {"i32.div_s", ImmNone},
	I32DivU:       {"i32.div_u", ImmNone},
	I32RemS:       {"i32.rem_s", ImmNone},
	I32RemU:       {"i32.rem_u", ImmNone},
	I32And:        {"i32.and", ImmNone},
	I32Or:         {"i32.or", ImmNone},
	I32Xor:        {"i32.xor", ImmNone},
	I32Shl:        {"i32.shl", ImmNone},
	I32ShrS:       {"i32.shr_s", ImmNone},
	I32ShrU:       {"i32.shr_u", ImmNone},
	I32Rotl:       {"i32.rotl", ImmNone},
	I32Rotr:       {"i32.rotr", ImmNone},
	I64Clz:        {"i64.clz", ImmNone},
	I64Ctz:        {"i64.ctz", ImmNone},
	I64Popcnt:     {"i64.popcnt", ImmNone},
	I64Add:        {"i64.add", ImmNone},
	I64Sub:        {"i64.sub", ImmNone},
	I64Mul:        {"i64.mul", ImmNone},
	I64DivS:       {"i64.div_s", ImmNone},
	I64DivU:       {"i64.div_u", ImmNone},
	I64RemS:       {"i64.rem_s", ImmNone},
	I64RemU:       {"i64.rem_u", ImmNone},
	I64And:        {"i64.and", ImmNone},
	I64Or:         {"i64.or", ImmNone},
	I64Xor:        {"i64.xor", ImmNone},
	I64Shl:        {"i64.shl", ImmNone},
	I64ShrS:       {"i64.shr_s", ImmNone},
	I64ShrU:       {"i64.shr_u", ImmNone},
	I64Rotl:       {"i64.rotl", ImmNone},
	I64Rotr:       {"i64.rotr", ImmNone},
	I32WrapI64:    {"i32.wrap_i64", ImmNone},
	I64ExtendI32S: {"i64.extend_i32_s", ImmNone},
	I64ExtendI32U: {"i64.extend_i32_u", ImmNone},
	I32Extend8S:   {"i32.extend8_s", ImmNone},
	I32Extend16S:  {"i32.extend16_s", ImmNone},
	I64Extend8S:   {"i64.extend8_s", ImmNone},
	I64Extend16S:  {"i64.extend16_s", ImmNone},
	I64Extend32S:  {"i64.extend32_s", ImmNone},
}

// IsValid reports whether the opcode is part of the supported instruction
// set.
func (op Opcode) IsValid() bool {
	return opcodes[op].name != ""
}

// Immediate returns the kind of the operands following the opcode.
func (op Opcode) Immediate() Immediate {
	return opcodes[op].immediate
}

func (op Opcode) String() string {
	if name := opcodes[op].name; name != "" {
		return name
	}
	return fmt.Sprintf("op(0x%02x)", byte(op))
}

// AccessSize returns the number of bytes accessed by a load or store
// instruction and 0 for all other instructions.
func (op Opcode) AccessSize() int {
	switch op {
	case I32Load8S, I32Load8U, I64Load8S, I64Load8U, I32Store8, I64Store8:
		return 1
	case I32Load16S, I32Load16U, I64Load16S, I64Load16U, I32Store16, I64Store16:
		return 2
	case I32Load, I64Load32S, I64Load32U, I32Store, I64Store32:
		return 4
	case I64Load, I64Store:
		return 8
	}
	return 0
}
