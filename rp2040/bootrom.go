//go:build rp2040

package rp2040

import (
	"sync"
	"unsafe"
)

// call4 calls the C function fn with up to four arguments. Implemented in
// assembly.
func call4(fn, a0, a1, a2, a3 uintptr) uintptr

func romCode(a, b byte) uintptr { return uintptr(a) | uintptr(b)<<8 }

// lookup finds a function of the boot ROM by its two character code.
func lookup(code uintptr) uintptr {
	table := uintptr(*(*uint16)(unsafe.Pointer(uintptr(0x14))))
	fn := uintptr(*(*uint16)(unsafe.Pointer(uintptr(0x18))))
	return call4(fn, table, code, 0, 0)
}

// flashOp holds the boot ROM functions and arguments of one flash
// operation, read by flashTrampoline.
type flashOp struct {
	connect  uintptr
	exitXIP  uintptr
	op       uintptr
	flush    uintptr
	enterXIP uintptr
	args     [4]uintptr
}

// flashTrampoline runs a flash operation with XIP disabled. The code must not
// execute from flash, so it lives in this initialized variable in SRAM.
//
//	push {r4, lr}
//	cpsid i
//	mov  r4, r0
//	ldr  r3, [r4, #0];  blx r3     connect_internal_flash
//	ldr  r3, [r4, #4];  blx r3     flash_exit_xip
//	ldr  r0, [r4, #8];  mov r12, r0
//	ldr  r0, [r4, #20]; ldr r1, [r4, #24]
//	ldr  r2, [r4, #28]; ldr r3, [r4, #32]
//	blx  r12                       erase or program
//	ldr  r3, [r4, #12]; blx r3     flash_flush_cache
//	ldr  r3, [r4, #16]; blx r3     flash_enter_cmd_xip
//	cpsie i
//	pop  {r4, pc}
var flashTrampoline = [...]uint16{
	0xb510, 0xb672, 0x4604,
	0x6823, 0x4798,
	0x6863, 0x4798,
	0x68a0, 0x4684,
	0x6960, 0x69a1,
	0x69e2, 0x6a23,
	0x47e0,
	0x68e3, 0x4798,
	0x6923, 0x4798,
	0xb662,
	0xbd10,
}

var (
	romOnce sync.Once
	romOps  struct {
		connect, exitXIP, erase, program, flush, enterXIP uintptr
	}
	romMtx sync.Mutex
)

func initROM() {
	romOps.connect = lookup(romCode('I', 'F'))
	romOps.exitXIP = lookup(romCode('E', 'X'))
	romOps.erase = lookup(romCode('R', 'E'))
	romOps.program = lookup(romCode('R', 'P'))
	romOps.flush = lookup(romCode('F', 'C'))
	romOps.enterXIP = lookup(romCode('C', 'X'))
}

func runFlashOp(fn uintptr, args ...uintptr) {
	romMtx.Lock()
	defer romMtx.Unlock()

	op := flashOp{
		connect:  romOps.connect,
		exitXIP:  romOps.exitXIP,
		op:       fn,
		flush:    romOps.flush,
		enterXIP: romOps.enterXIP,
	}
	copy(op.args[:], args)
	code := uintptr(unsafe.Pointer(&flashTrampoline)) | 1 // thumb
	call4(code, uintptr(unsafe.Pointer(&op)), 0, 0, 0)
}

const (
	flashBlockSize = 1 << 16
	flashBlockCmd  = 0xd8
)

// FlashErase erases n bytes at offset off of the flash. Interrupts are
// disabled for the duration.
func FlashErase(off, n uint32) {
	romOnce.Do(initROM)
	runFlashOp(romOps.erase, uintptr(off), uintptr(n), flashBlockSize, flashBlockCmd)
}

// FlashProgram programs p at offset off of the flash. p must not reside in
// flash.
func FlashProgram(off uint32, p []byte) {
	romOnce.Do(initROM)
	runFlashOp(romOps.program, uintptr(off), uintptr(unsafe.Pointer(unsafe.SliceData(p))), uintptr(len(p)))
}
