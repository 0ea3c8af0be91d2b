package sim

import (
	"context"
	"errors"
	"log"

	lua "github.com/yuin/gopher-lua"

	"github.com/clktmr/sidecart/board"
	"github.com/clktmr/sidecart/configurator"
	"github.com/clktmr/sidecart/emul"
	"github.com/clktmr/sidecart/floppy"
	"github.com/clktmr/sidecart/gemdrive"
	"github.com/clktmr/sidecart/host"
	"github.com/clktmr/sidecart/rtc"
)

var errNoController = errors.New("sim: personality has no controller")

// tokenOffset returns the offset of the token in bank 1 for kind.
func tokenOffset(kind emul.Kind) int {
	switch kind {
	case emul.Floppy:
		return floppy.OffToken
	case emul.RTC:
		return rtc.OffToken
	case emul.GEMDrive:
		return gemdrive.OffToken
	}
	return configurator.OffToken
}

// runScript runs the Lua script at name against emu. The script sees the
// tables host, to send commands and read the cartridge ports, and cart, to
// operate the board.
func runScript(ctx context.Context, emu *emul.Emulator, fake *board.Fake, name string) error {
	L := lua.NewState()
	defer L.Close()
	L.SetContext(ctx)
	L.SetGlobal("host", L.SetFuncs(L.NewTable(), hostFuncs(emu)))
	L.SetGlobal("cart", L.SetFuncs(L.NewTable(), cartFuncs(emu, fake)))
	return L.DoFile(name)
}

// payload converts the arguments from index i on to words. Strings are
// sent NUL terminated and padded to words.
func payload(L *lua.LState, i int) []uint16 {
	var words []uint16
	for ; i <= L.GetTop(); i++ {
		switch v := L.Get(i).(type) {
		case lua.LString:
			words = append(words, host.String(string(v))...)
		case lua.LNumber:
			words = append(words, uint16(int64(v)))
		default:
			L.ArgError(i, "number or string expected")
		}
	}
	return words
}

func pushResult(L *lua.LState, err error) int {
	if err != nil {
		L.Push(lua.LFalse)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}

func hostFuncs(emu *emul.Emulator) map[string]lua.LGFunction {
	h := host.New(emu.Bus(), tokenOffset(emu.Kind), emu.Step)
	check := func(L *lua.LState) {
		if emu.Controller() == nil {
			L.RaiseError("%v", errNoController)
		}
	}
	return map[string]lua.LGFunction{
		"call": func(L *lua.LState) int {
			check(L)
			err := h.Call(uint16(L.CheckInt(1)), payload(L, 2)...)
			return pushResult(L, err)
		},
		"send": func(L *lua.LState) int {
			h.Send(uint16(L.CheckInt(1)), payload(L, 2)...)
			return 0
		},
		"wait": func(L *lua.LState) int {
			check(L)
			return pushResult(L, h.Wait())
		},
		"long": func(L *lua.LState) int {
			for _, w := range host.Long(uint32(L.CheckInt64(1))) {
				L.Push(lua.LNumber(w))
			}
			return 2
		},
		"read16": func(L *lua.LState) int {
			L.Push(lua.LNumber(h.Read16(L.CheckInt(1))))
			return 1
		},
		"read32": func(L *lua.LState) int {
			L.Push(lua.LNumber(h.Read32(L.CheckInt(1))))
			return 1
		},
		"readrom": func(L *lua.LState) int {
			L.Push(lua.LNumber(h.ReadROM(L.CheckInt(1))))
			return 1
		},
		"readstring": func(L *lua.LState) int {
			L.Push(lua.LString(h.ReadString(L.CheckInt(1), L.OptInt(2, 256))))
			return 1
		},
	}
}

func cartFuncs(emu *emul.Emulator, fake *board.Fake) map[string]lua.LGFunction {
	return map[string]lua.LGFunction{
		"kind": func(L *lua.LState) int {
			L.Push(lua.LString(emu.Kind.String()))
			return 1
		},
		"press": func(L *lua.LState) int {
			fake.Press(L.OptBool(1, true))
			return 0
		},
		"step": func(L *lua.LState) int {
			L.Push(lua.LBool(emu.Step()))
			return 1
		},
		"reboots": func(L *lua.LState) int {
			L.Push(lua.LNumber(fake.Reboots()))
			return 1
		},
		"log": func(L *lua.LState) int {
			log.Println(L.CheckString(1))
			return 0
		},
	}
}
