// Package arm encodes and decodes the few ARM instructions that are needed
// to redirect the entry point of a GBA image.
package arm

import "fmt"

// Condition is the condition field of an instruction.
type Condition uint32

// Condition codes.
const (
	EQ Condition = 0x0
	NE Condition = 0x1
	AL Condition = 0xE
)

// Register is a core register number.
type Register uint32

// Registers.
const (
	R0 Register = 0
	R1 Register = 1
	R2 Register = 2
	R3 Register = 3
	PC Register = 15
)

const (
	conditionShift = 28
	rnShift        = 16
	rdShift        = 12

	// PipelineOffset is the distance between an instruction and the value
	// of pc it observes.
	PipelineOffset = 8

	branchMask       = 0x0F000000
	branchOpcode     = 0x0A000000
	branchOffsetMask = 0x00FFFFFF

	loadPCRelative = 0x059F0000 // ldr rd, [pc, #+imm12]
	addPCImmediate = 0x028F0000 // add rd, pc, #imm8
	offset12Mask   = 0xFFF
)

// IsBranch returns whether instr is a B instruction.
func IsBranch(instr uint32) bool {
	return instr&branchMask == branchOpcode
}

// BranchTarget returns the absolute target of the branch instr located at
// address at. The offset field is used unsigned like the BIOS header entry
// point, which always branches forward.
func BranchTarget(instr, at uint32) uint32 {
	return (instr&branchOffsetMask)<<2 + at + PipelineOffset
}

// Branch returns an unconditional B instruction at address at that
// branches forward to target.
func Branch(at, target uint32) uint32 {
	offset := (target - (at + PipelineOffset)) >> 2
	return uint32(AL)<<conditionShift | branchOpcode | offset&branchOffsetMask
}

// LoadLiteral returns an ldr rd, [pc, #offset] instruction at address at
// that loads the word at address literal.
func LoadLiteral(cond Condition, rd Register, at, literal uint32) (uint32, error) {
	if literal < at+PipelineOffset || literal&3 != 0 {
		return 0, fmt.Errorf("literal 0x%X is not reachable from 0x%X", literal, at)
	}
	offset := literal - (at + PipelineOffset)
	if offset > offset12Mask {
		return 0, fmt.Errorf("literal 0x%X is out of range of 0x%X", literal, at)
	}
	return uint32(cond)<<conditionShift | loadPCRelative | uint32(rd)<<rdShift | offset, nil
}

// AddressOf returns an add rd, pc, #offset instruction at address at that
// computes the address target.
func AddressOf(rd Register, at, target uint32) (uint32, error) {
	if target < at+PipelineOffset {
		return 0, fmt.Errorf("target 0x%X is not reachable from 0x%X", target, at)
	}
	offset := target - (at + PipelineOffset)
	if offset > 0xFF {
		return 0, fmt.Errorf("target 0x%X is out of range of 0x%X", target, at)
	}
	return uint32(AL)<<conditionShift | addPCImmediate | uint32(rd)<<rdShift | offset, nil
}

// LoadRegister returns an ldr rd, [rn] instruction.
func LoadRegister(cond Condition, rd, rn Register) uint32 {
	return uint32(cond)<<conditionShift | 0x05900000 | uint32(rn)<<rnShift | uint32(rd)<<rdShift
}
