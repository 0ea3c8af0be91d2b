package gemdrive

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/clktmr/sidecart/device"
	"github.com/clktmr/sidecart/storage"
)

// Error is a GEMDOS error code. The host driver returns it unchanged to the
// calling program.
type Error int16

const (
	EOK    Error = 0
	EDRVNR Error = -2  // drive not ready
	EINVFN Error = -32 // invalid function
	EFILNF Error = -33 // file not found
	EPTHNF Error = -34 // path not found
	ENHNDL Error = -35 // no more handles
	EACCDN Error = -36 // access denied
	EIHNDL Error = -37 // invalid handle
	EDRIVE Error = -46 // invalid drive
	ENMFIL Error = -49 // no more files
	EINTRN Error = -65 // internal error
)

var errorNames = map[Error]string{
	EOK:    "no error",
	EDRVNR: "drive not ready",
	EINVFN: "invalid function",
	EFILNF: "file not found",
	EPTHNF: "path not found",
	ENHNDL: "no more handles",
	EACCDN: "access denied",
	EIHNDL: "invalid handle",
	EDRIVE: "invalid drive",
	ENMFIL: "no more files",
	EINTRN: "internal error",
}

func (e Error) Error() string {
	if s, ok := errorNames[e]; ok {
		return "gemdos: " + s
	}
	return fmt.Sprintf("gemdos: error %d", int16(e))
}

// Code translates err into the GEMDOS code the host expects.
func Code(err error) Error {
	if err == nil {
		return EOK
	}
	var e Error
	switch {
	case errors.As(err, &e):
		return e
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, device.ErrNotFound):
		return EFILNF
	case errors.Is(err, fs.ErrPermission), errors.Is(err, fs.ErrExist),
		errors.Is(err, storage.ErrNotEmpty), errors.Is(err, errors.ErrUnsupported),
		errors.Is(err, device.ErrAccessDenied), errors.Is(err, device.ErrInvalidArgument):
		return EACCDN
	case errors.Is(err, device.ErrNotReady):
		return EDRVNR
	}
	return EINTRN
}

// long returns the code as the host reads it from a long status slot.
func (e Error) long() uint32 {
	return uint32(int32(e))
}
