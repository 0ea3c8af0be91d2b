package gemdrive

import "fmt"

var callNames = map[uint16]string{
	0x00: "Pterm0", 0x01: "Cconin", 0x02: "Cconout", 0x03: "Cauxin",
	0x04: "Cauxout", 0x05: "Cprnout", 0x06: "Crawio", 0x07: "Crawcin",
	0x08: "Cnecin", 0x09: "Cconws", 0x0a: "Cconrs", 0x0b: "Cconis",
	0x0e: "Dsetdrv", 0x10: "Cconos", 0x11: "Cprnos", 0x12: "Cauxis",
	0x13: "Cauxos", 0x19: "Dgetdrv", 0x1a: "Fsetdta", 0x20: "Super",
	0x2a: "Tgetdate", 0x2b: "Tsetdate", 0x2c: "Tgettime", 0x2d: "Tsettime",
	0x2f: "Fgetdta", 0x30: "Sversion", 0x31: "Ptermres", 0x36: "Dfree",
	0x39: "Dcreate", 0x3a: "Ddelete", 0x3b: "Dsetpath", 0x3c: "Fcreate",
	0x3d: "Fopen", 0x3e: "Fclose", 0x3f: "Fread", 0x40: "Fwrite",
	0x41: "Fdelete", 0x42: "Fseek", 0x43: "Fattrib", 0x45: "Fdup",
	0x46: "Fforce", 0x47: "Dgetpath", 0x48: "Malloc", 0x49: "Mfree",
	0x4a: "Mshrink", 0x4b: "Pexec", 0x4c: "Pterm", 0x4e: "Fsfirst",
	0x4f: "Fsnext", 0x56: "Frename", 0x57: "Fdatime",
}

// callName returns the name of a GEMDOS function.
func callName(n uint16) string {
	if s, ok := callNames[n]; ok {
		return s
	}
	return fmt.Sprintf("GEMDOS %#02x", n)
}
