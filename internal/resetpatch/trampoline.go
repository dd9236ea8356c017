package resetpatch

import (
	"encoding/binary"

	"github.com/retroenv/retroflash/internal/arm"
	"github.com/retroenv/retroflash/internal/hw"
)

// Addresses used by the default trampoline.
const (
	irqVector     = StackLiteral // BIOS interrupt handler pointer
	hardResetCall = 0xEF260000   // swi 0x26
	keyInput      = 0x04000130   // KEYINPUT, active low
	resetKeys     = 0x30C        // L R Start Select
)

// Literal pool slots of the default trampoline, in word indexes.
const (
	literalIRQVector = 26 + iota
	literalChain
	literalModeRegister
	literalUnlockKey
	literalTokenAddress
	literalToken
	trampolineWords
)

// DefaultTrampoline returns the warm reset trampoline that is installed at
// the trampoline site. The patcher appends the original entry point
// directly after it.
//
// At boot the trampoline installs an interrupt hook and continues at the
// original entry point. The hook chains to the game's own interrupt handler,
// whose pointer was relocated by the literal rewrite, unless L, R, Start and
// Select are held. Then it maps SDRAM writable, stores the reset token,
// switches back to media mode and hard resets through the BIOS.
func DefaultTrampoline() []byte {
	words := make([]uint32, trampolineWords)
	at := func(i int) uint32 { return uint32(i * 4) }
	literal := func(i int, cond arm.Condition, rd arm.Register, slot int) {
		instr, err := arm.LoadLiteral(cond, rd, at(i), at(slot))
		if err != nil {
			panic(err)
		}
		words[i] = instr
	}

	// install the hook
	hook, err := arm.AddressOf(arm.R0, at(0), at(4))
	if err != nil {
		panic(err)
	}
	words[0] = hook
	literal(1, arm.AL, arm.R1, literalIRQVector)
	words[2] = 0xE5810000 // str r0, [r1]
	literal(3, arm.AL, arm.PC, trampolineWords)

	// hook: chain unless the reset keys are held, r0 is passed on unchanged
	words[4] = 0xE3A01301 // mov r1, #0x04000000
	words[5] = 0xE2811C01 // add r1, r1, #0x100
	words[6] = 0xE1D123B0 // ldrh r2, [r1, #0x30]
	words[7] = 0xE3120FC3 // tst r2, #0x30C
	literal(8, arm.NE, arm.R1, literalChain)
	words[9] = arm.LoadRegister(arm.NE, arm.PC, arm.R1)

	// store the reset token and return to the kernel
	literal(10, arm.AL, arm.R0, literalModeRegister)
	literal(11, arm.AL, arm.R1, literalUnlockKey)
	words[12] = 0xE1C010B0 // strh r1, [r0]
	words[13] = 0xE1C010B0
	words[14] = 0xE3A02000 | hw.ModeSramReadWrite // mov r2, #mode
	words[15] = 0xE1C020B0                        // strh r2, [r0]
	words[16] = 0xE1C020B0
	literal(17, arm.AL, arm.R3, literalTokenAddress)
	literal(18, arm.AL, arm.R2, literalToken)
	words[19] = 0xE5832000 // str r2, [r3]
	words[20] = 0xE1C010B0
	words[21] = 0xE1C010B0
	words[22] = 0xE3A02000 | hw.ModeMediaRead
	words[23] = 0xE1C020B0
	// executed from the prefetch queue after the mode switch
	words[24] = 0xE1C020B0
	words[25] = hardResetCall

	words[literalIRQVector] = irqVector
	words[literalChain] = RemappedLiteral
	words[literalModeRegister] = hw.ModeRegister
	words[literalUnlockKey] = 0xA55A
	words[literalTokenAddress] = hw.ResetTokenAddress
	words[literalToken] = hw.ResetToken

	code := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(code[i*4:], w)
	}
	return code
}
