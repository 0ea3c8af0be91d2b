package gemdrive_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/clktmr/sidecart/bus"
	"github.com/clktmr/sidecart/gemdrive"
	"github.com/clktmr/sidecart/host"
	"github.com/clktmr/sidecart/ris"
	"github.com/clktmr/sidecart/storage"
)

type env struct {
	srv  *gemdrive.Server
	host *host.Computer
	dir  string // local folder of the drive
}

func setup(t *testing.T, files map[string][]byte) *env {
	root := t.TempDir()
	dir := filepath.Join(root, "hd")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for name, data := range files {
		name = filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(name, data, 0644); err != nil {
			t.Fatal(err)
		}
	}

	img := ris.New()
	srv := gemdrive.New(img, storage.Dir(root), gemdrive.Config{Root: "/hd"})
	if err := srv.Start(); err != nil {
		t.Fatal(err)
	}
	var clk host.Clock
	b, err := bus.Init(img, func(off uint32) {
		srv.Controller.Observe(uint16(off), clk.Now())
	}, bus.WithClock(clk.Now))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		b.Close()
		srv.Close()
	})
	h := host.New(b, gemdrive.OffToken, func() bool { return srv.Controller.Step(srv) })
	e := &env{srv, h, dir}
	e.call(t, gemdrive.Ping)
	if status := h.Read16(gemdrive.OffPingStatus); status != 1 {
		t.Fatalf("expected ping status 1, got %d", status)
	}
	return e
}

// call issues a command with the registers d3, d4 and d5 and an optional
// trailing argument.
func (e *env) call(t *testing.T, cmd uint16, args ...[]uint16) {
	t.Helper()
	var regs [3][]uint16
	for i := range regs {
		regs[i] = host.Register(0)
		if i < len(args) && args[i] != nil {
			regs[i] = args[i]
		}
	}
	words := host.Join(regs[0], regs[1], regs[2])
	for _, a := range args[min(len(args), 3):] {
		words = append(words, a...)
	}
	if err := e.host.Call(cmd, words...); err != nil {
		t.Fatal(err)
	}
}

func (e *env) status(off int) gemdrive.Error {
	return gemdrive.Error(int32(e.host.Read32(off)))
}

func (e *env) open(t *testing.T, name string, mode uint32) uint16 {
	t.Helper()
	e.call(t, gemdrive.Fopen, host.Register(mode), nil, nil, host.String(name))
	fd := e.host.Read32(gemdrive.OffFopenHandle)
	if int32(fd) < 0 {
		t.Fatalf("open %s: %v", name, gemdrive.Error(int32(fd)))
	}
	return uint16(fd)
}

func counting(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func TestFopen(t *testing.T) {
	e := setup(t, map[string][]byte{"test.txt": counting(200)})
	fd := e.open(t, "test.txt", 0)
	if fd != gemdrive.FirstFileDescriptor {
		t.Fatalf("expected fd %d, got %d", gemdrive.FirstFileDescriptor, fd)
	}
	if tok := e.host.Read32(gemdrive.OffToken); tok != e.host.Nonce() {
		t.Fatalf("expected token %#x, got %#x", e.host.Nonce(), tok)
	}

	// A second handle for the same file is the next free one
	if fd2 := e.open(t, `C:\TEST.TXT`, 0); fd2 != fd+1 {
		t.Fatalf("expected fd %d, got %d", fd+1, fd2)
	}
	e.call(t, gemdrive.Fclose, host.Register(uint32(fd)))
	if err := e.status(gemdrive.OffFcloseStatus); err != gemdrive.EOK {
		t.Fatalf("expected %v, got %v", gemdrive.EOK, err)
	}
	if fd3 := e.open(t, "test.txt", 0); fd3 != fd {
		t.Fatalf("expected reuse of fd %d, got %d", fd, fd3)
	}
}

func TestFopenErrors(t *testing.T) {
	tests := map[string]struct {
		name string
		mode uint32
		err  gemdrive.Error
	}{
		"missing":     {"none.txt", 0, gemdrive.EFILNF},
		"missingPath": {`\NODIR\TEST.TXT`, 0, gemdrive.EPTHNF},
		"badMode":     {"test.txt", 3, gemdrive.EACCDN},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			e := setup(t, map[string][]byte{"test.txt": nil})
			e.call(t, gemdrive.Fopen, host.Register(tc.mode), nil, nil, host.String(tc.name))
			if err := e.status(gemdrive.OffFopenHandle); err != tc.err {
				t.Fatalf("expected %v, got %v", tc.err, err)
			}
		})
	}
}

func TestReadBuff(t *testing.T) {
	data := counting(100)
	e := setup(t, map[string][]byte{"test.txt": data})
	fd := e.open(t, "test.txt", 0)

	e.call(t, gemdrive.ReadBuff, host.Register(uint32(fd)), host.Register(100), host.Register(100))
	if n := e.host.Read32(gemdrive.OffReadBytes); n != 100 {
		t.Fatalf("expected 100 bytes, got %d", n)
	}
	if got := e.host.ReadBytes(gemdrive.OffReadBuff, 100); !bytes.Equal(got, data) {
		t.Fatalf("expected %x, got %x", data, got)
	}

	// At the end of the file
	e.call(t, gemdrive.ReadBuff, host.Register(uint32(fd)), host.Register(100), host.Register(100))
	if n := e.host.Read32(gemdrive.OffReadBytes); n != 0 {
		t.Fatalf("expected 0 bytes, got %d", n)
	}
}

func TestReadLimit(t *testing.T) {
	data := counting(3 * gemdrive.MaxRead)
	e := setup(t, map[string][]byte{"big.dat": data})
	fd := e.open(t, "big.dat", 0)

	e.call(t, gemdrive.ReadBuff, host.Register(uint32(fd)), host.Register(10000), host.Register(10000))
	if n := e.host.Read32(gemdrive.OffReadBytes); n != gemdrive.MaxRead {
		t.Fatalf("expected %d bytes, got %d", gemdrive.MaxRead, n)
	}
	// The offset advanced by exactly the bytes returned
	e.call(t, gemdrive.Fseek, host.Register(uint32(fd)), host.Register(0), host.Register(1))
	if pos := e.host.Read32(gemdrive.OffFseekStatus); pos != gemdrive.MaxRead {
		t.Fatalf("expected offset %d, got %d", gemdrive.MaxRead, pos)
	}
	e.call(t, gemdrive.ReadBuff, host.Register(uint32(fd)), host.Register(16), host.Register(16))
	if got := e.host.ReadBytes(gemdrive.OffReadBuff, 16); !bytes.Equal(got, data[gemdrive.MaxRead:][:16]) {
		t.Fatalf("expected %x, got %x", data[gemdrive.MaxRead:][:16], got)
	}
}

func TestInvalidHandle(t *testing.T) {
	e := setup(t, nil)
	tests := map[string]struct {
		cmd uint16
		off int
	}{
		"read":  {gemdrive.ReadBuff, gemdrive.OffReadBytes},
		"write": {gemdrive.WriteBuff, gemdrive.OffWriteBytes},
		"close": {gemdrive.Fclose, gemdrive.OffFcloseStatus},
		"seek":  {gemdrive.Fseek, gemdrive.OffFseekStatus},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			e.call(t, tc.cmd, host.Register(gemdrive.FirstFileDescriptor+7), host.Register(4))
			if err := e.status(tc.off); err != gemdrive.EIHNDL {
				t.Fatalf("expected %v, got %v", gemdrive.EIHNDL, err)
			}
		})
	}
}

func TestWrite(t *testing.T) {
	e := setup(t, nil)
	e.call(t, gemdrive.Fcreate, nil, nil, nil, host.String("new.txt"))
	fd := uint16(e.host.Read32(gemdrive.OffFcreateHandle))
	if fd != gemdrive.FirstFileDescriptor {
		t.Fatalf("expected fd %d, got %d", gemdrive.FirstFileDescriptor, fd)
	}

	data := []byte("hello, world")
	for range 2 {
		e.call(t, gemdrive.WriteBuff, host.Register(uint32(fd)), host.Register(uint32(len(data))),
			host.Register(uint32(len(data))), host.Bytes(data), []uint16{host.Checksum(data)})
		if n := e.host.Read32(gemdrive.OffWriteBytes); n != uint32(len(data)) {
			t.Fatalf("expected %d bytes, got %d", len(data), n)
		}
		if chk := e.host.Read32(gemdrive.OffWriteChk); chk != uint32(host.Checksum(data)) {
			t.Fatalf("expected checksum %#x, got %#x", host.Checksum(data), chk)
		}
		e.call(t, gemdrive.WriteBuffCheck, host.Register(uint32(fd)), host.Register(uint32(len(data))))
		if err := e.status(gemdrive.OffWriteConfirmStatus); err != gemdrive.EOK {
			t.Fatalf("expected %v, got %v", gemdrive.EOK, err)
		}
	}
	e.call(t, gemdrive.Fclose, host.Register(uint32(fd)))

	got, err := os.ReadFile(filepath.Join(e.dir, "NEW.TXT"))
	if err != nil {
		got, err = os.ReadFile(filepath.Join(e.dir, "new.txt"))
	}
	if err != nil {
		t.Fatal(err)
	}
	if want := bytes.Repeat(data, 2); !bytes.Equal(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestWriteChecksum(t *testing.T) {
	e := setup(t, nil)
	e.call(t, gemdrive.Fcreate, nil, nil, nil, host.String("new.txt"))
	fd := uint16(e.host.Read32(gemdrive.OffFcreateHandle))

	data := []byte("data")
	nonce := uint32(0x11223344)
	e.host.Send(gemdrive.WriteBuff, host.Join(host.Long(nonce), host.Register(uint32(fd)),
		host.Register(4), host.Register(4), host.Bytes(data), []uint16{^host.Checksum(data)})...)
	e.srv.Controller.Step(e.srv)
	if tok := e.host.Read32(gemdrive.OffToken); tok == nonce {
		t.Fatalf("expected rejected token, got %#x", tok)
	}
	if fi, err := os.Stat(filepath.Join(e.dir, "new.txt")); err != nil || fi.Size() != 0 {
		t.Fatalf("expected empty file, got %v %v", fi, err)
	}
}

func TestWriteHostChecksum(t *testing.T) {
	e := setup(t, nil)
	e.call(t, gemdrive.Fcreate, nil, nil, nil, host.String("new.txt"))
	fd := uint16(e.host.Read32(gemdrive.OffFcreateHandle))

	data := []byte("odd")
	e.call(t, gemdrive.WriteBuff, host.Register(uint32(fd)), host.Register(uint32(len(data))),
		host.Register(uint32(len(data))), host.Bytes(data))
	if n := e.host.Read32(gemdrive.OffWriteBytes); n != uint32(len(data)) {
		t.Fatalf("expected %d bytes, got %d", len(data), n)
	}
	if chk := e.host.Read32(gemdrive.OffWriteChk); chk != uint32(host.Checksum(data)) {
		t.Fatalf("expected checksum %#x, got %#x", host.Checksum(data), chk)
	}
	e.call(t, gemdrive.Fclose, host.Register(uint32(fd)))
	if fi, err := os.Stat(filepath.Join(e.dir, "new.txt")); err != nil || fi.Size() != int64(len(data)) {
		t.Fatalf("expected %d bytes written, got %v %v", len(data), fi, err)
	}
}

func TestWriteReadOnly(t *testing.T) {
	e := setup(t, map[string][]byte{"test.txt": []byte("abcd")})
	fd := e.open(t, "test.txt", 0)
	data := []byte("xy")
	e.call(t, gemdrive.WriteBuff, host.Register(uint32(fd)), host.Register(2), host.Register(2),
		host.Bytes(data), []uint16{host.Checksum(data)})
	if err := e.status(gemdrive.OffWriteBytes); err != gemdrive.EACCDN {
		t.Fatalf("expected %v, got %v", gemdrive.EACCDN, err)
	}
}

func TestFsfirst(t *testing.T) {
	e := setup(t, map[string][]byte{
		"A.TXT":   []byte("a"),
		"B.DAT":   []byte("bb"),
		".hidden": nil,
	})
	const dta = 0x00012340
	e.call(t, gemdrive.Fsetdta, host.Register(dta))
	e.call(t, gemdrive.Fsfirst, host.Register(dta), host.Register(0x21), nil, host.String(`C:\*.*`))

	var names []string
	for {
		if found := int16(e.host.Read16(gemdrive.OffDTAFound)); found != 0 {
			if len(names) == 0 {
				t.Fatalf("expected a match, got %v", gemdrive.Error(found))
			}
			if gemdrive.Error(found) != gemdrive.ENMFIL {
				t.Fatalf("expected %v, got %v", gemdrive.ENMFIL, gemdrive.Error(found))
			}
			break
		}
		name := e.host.ReadString(gemdrive.OffDTATransfer+30, 14)
		names = append(names, name)
		attr := e.host.ReadBytes(gemdrive.OffDTATransfer+20, 2)[1]
		if attr != byte(storage.Archive) {
			t.Fatalf("%s: expected attributes %v, got %v", name, storage.Archive, storage.Attr(attr))
		}
		e.call(t, gemdrive.Fsnext, host.Register(dta))
	}
	if len(names) != 2 || names[0] != "A.TXT" || names[1] != "B.DAT" {
		t.Fatalf("expected [A.TXT B.DAT], got %v", names)
	}

	// The search state was released
	e.call(t, gemdrive.DTAExist, host.Register(dta))
	if addr := e.host.Read32(gemdrive.OffDTAExist); addr != 0 {
		t.Fatalf("expected released DTA, got %#x", addr)
	}
}

func TestFsfirstEntry(t *testing.T) {
	e := setup(t, map[string][]byte{"sub/longfilename.text": counting(300)})
	const dta = 0x4000
	e.call(t, gemdrive.Fsfirst, host.Register(dta), host.Register(0x10), nil, host.String(`\SUB\*.*`))
	if found := e.host.Read16(gemdrive.OffDTAFound); found != 0 {
		t.Fatalf("expected a match, got %v", gemdrive.Error(int16(found)))
	}
	if name := e.host.ReadString(gemdrive.OffDTATransfer+30, 14); name != "LONGFILE.TEX" {
		t.Fatalf("expected LONGFILE.TEX, got %s", name)
	}
	if size := e.host.Read32(gemdrive.OffDTATransfer + 26); size != 300 {
		t.Fatalf("expected size 300, got %d", size)
	}

	// The short name opens the file
	fd := e.open(t, `\SUB\LONGFILE.TEX`, 0)
	e.call(t, gemdrive.ReadBuff, host.Register(uint32(fd)), host.Register(4), host.Register(4))
	if got := e.host.ReadBytes(gemdrive.OffReadBuff, 4); !bytes.Equal(got, []byte{0, 1, 2, 3}) {
		t.Fatalf("expected 00010203, got %x", got)
	}
}

func TestFsfirstNotFound(t *testing.T) {
	e := setup(t, map[string][]byte{"A.TXT": nil})
	tests := map[string]struct {
		spec string
		err  gemdrive.Error
	}{
		"noMatch": {`\*.PRG`, gemdrive.EFILNF},
		"noPath":  {`\NODIR\*.*`, gemdrive.EPTHNF},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			e.call(t, gemdrive.Fsfirst, host.Register(0x100), host.Register(0x21), nil, host.String(tc.spec))
			if err := gemdrive.Error(int16(e.host.Read16(gemdrive.OffDTAFound))); err != tc.err {
				t.Fatalf("expected %v, got %v", tc.err, err)
			}
		})
	}
}

func TestDirectories(t *testing.T) {
	e := setup(t, nil)
	e.call(t, gemdrive.Dcreate, nil, nil, nil, host.String(`C:\FOLDER`))
	if err := e.status(gemdrive.OffDcreateStatus); err != gemdrive.EOK {
		t.Fatalf("expected %v, got %v", gemdrive.EOK, err)
	}
	if fi, err := os.Stat(filepath.Join(e.dir, "FOLDER")); err != nil || !fi.IsDir() {
		t.Fatalf("expected directory, got %v", err)
	}
	e.call(t, gemdrive.Dcreate, nil, nil, nil, host.String(`C:\FOLDER`))
	if err := e.status(gemdrive.OffDcreateStatus); err != gemdrive.EACCDN {
		t.Fatalf("expected %v, got %v", gemdrive.EACCDN, err)
	}

	e.call(t, gemdrive.Dsetpath, nil, nil, nil, host.String(`\FOLDER`))
	if err := e.status(gemdrive.OffSetDpathStatus); err != gemdrive.EOK {
		t.Fatalf("expected %v, got %v", gemdrive.EOK, err)
	}
	e.call(t, gemdrive.Dgetpath)
	if p := e.host.ReadString(gemdrive.OffDefaultPath, gemdrive.MaxPath); p != `\FOLDER` {
		t.Fatalf(`expected \FOLDER, got %s`, p)
	}

	// Relative to the default path
	e.call(t, gemdrive.Fcreate, nil, nil, nil, host.String("FILE.TXT"))
	fd := e.host.Read32(gemdrive.OffFcreateHandle)
	e.call(t, gemdrive.Fclose, host.Register(fd))
	if _, err := os.Stat(filepath.Join(e.dir, "FOLDER", "FILE.TXT")); err != nil {
		t.Fatal(err)
	}
	e.call(t, gemdrive.Ddelete, nil, nil, nil, host.String(`C:\FOLDER`))
	if err := e.status(gemdrive.OffDdeleteStatus); err != gemdrive.EACCDN {
		t.Fatalf("expected %v, got %v", gemdrive.EACCDN, err)
	}
	e.call(t, gemdrive.Fdelete, nil, nil, nil, host.String("FILE.TXT"))
	if err := e.status(gemdrive.OffFdeleteStatus); err != gemdrive.EOK {
		t.Fatalf("expected %v, got %v", gemdrive.EOK, err)
	}

	e.call(t, gemdrive.Dsetpath, nil, nil, nil, host.String(`\`))
	e.call(t, gemdrive.Ddelete, nil, nil, nil, host.String(`FOLDER`))
	if err := e.status(gemdrive.OffDdeleteStatus); err != gemdrive.EOK {
		t.Fatalf("expected %v, got %v", gemdrive.EOK, err)
	}
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty drive, got %v", entries)
	}
}

func TestDsetpathErrors(t *testing.T) {
	e := setup(t, nil)
	tests := map[string]struct {
		path string
		err  gemdrive.Error
	}{
		"otherDrive": {`A:\`, gemdrive.EDRIVE},
		"missing":    {`\NODIR`, gemdrive.EPTHNF},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			e.call(t, gemdrive.Dsetpath, nil, nil, nil, host.String(tc.path))
			if err := e.status(gemdrive.OffSetDpathStatus); err != tc.err {
				t.Fatalf("expected %v, got %v", tc.err, err)
			}
		})
	}
}

func TestFsetdta(t *testing.T) {
	e := setup(t, nil)
	const dta = 0x1000
	for range 2 {
		e.call(t, gemdrive.Fsetdta, host.Register(dta))
	}
	e.call(t, gemdrive.DTAExist, host.Register(dta))
	if addr := e.host.Read32(gemdrive.OffDTAExist); addr != dta {
		t.Fatalf("expected dta %#x, got %#x", dta, addr)
	}
	e.call(t, gemdrive.DTARelease, host.Register(dta))
	if n := e.host.Read32(gemdrive.OffDTARelease); n != 0 {
		t.Fatalf("expected a single slot for the address, got %d left", n)
	}
}

func TestDrivePath(t *testing.T) {
	e := setup(t, map[string][]byte{
		"ROOT.TXT":    counting(10),
		"SUB/SUB.TXT": counting(10),
	})
	e.call(t, gemdrive.Dsetpath, nil, nil, nil, host.String(`\SUB`))
	if err := e.status(gemdrive.OffSetDpathStatus); err != gemdrive.EOK {
		t.Fatalf("expected %v, got %v", gemdrive.EOK, err)
	}
	if fd := e.open(t, "C:ROOT.TXT", 0); fd != gemdrive.FirstFileDescriptor {
		t.Fatalf("expected fd %d, got %d", gemdrive.FirstFileDescriptor, fd)
	}
	e.open(t, "SUB.TXT", 0)
	e.call(t, gemdrive.Fopen, host.Register(0), nil, nil, host.String("C:SUB.TXT"))
	if err := e.status(gemdrive.OffFopenHandle); err != gemdrive.EFILNF {
		t.Fatalf("expected %v, got %v", gemdrive.EFILNF, err)
	}
}

func TestFrename(t *testing.T) {
	e := setup(t, map[string][]byte{"old.txt": []byte("x"), "taken.txt": nil})
	rename := func(from, to string) gemdrive.Error {
		src := host.String(from)
		src = append(src, make([]uint16, gemdrive.MaxPath/2-len(src))...)
		e.call(t, gemdrive.Frename, nil, nil, nil, src, host.String(to))
		return e.status(gemdrive.OffFrenameStatus)
	}
	if err := rename(`OLD.TXT`, `C:\NEW.TXT`); err != gemdrive.EOK {
		t.Fatalf("expected %v, got %v", gemdrive.EOK, err)
	}
	if _, err := os.Stat(filepath.Join(e.dir, "NEW.TXT")); err != nil {
		t.Fatal(err)
	}
	if err := rename(`NEW.TXT`, `TAKEN.TXT`); err != gemdrive.EACCDN {
		t.Fatalf("expected %v, got %v", gemdrive.EACCDN, err)
	}
	if err := rename(`MISSING.TXT`, `OTHER.TXT`); err != gemdrive.EFILNF {
		t.Fatalf("expected %v, got %v", gemdrive.EFILNF, err)
	}
	if err := rename(`C:\NEW.TXT`, `D:\NEW.TXT`); err != gemdrive.EPTHNF {
		t.Fatalf("expected %v, got %v", gemdrive.EPTHNF, err)
	}
}

func TestFattrib(t *testing.T) {
	e := setup(t, map[string][]byte{"file.txt": nil})
	e.call(t, gemdrive.Fattrib, host.Register(0), nil, nil, host.String("FILE.TXT"))
	if attr := storage.Attr(e.host.Read32(gemdrive.OffFattribStatus)); attr != storage.Archive {
		t.Fatalf("expected %v, got %v", storage.Archive, attr)
	}
	e.call(t, gemdrive.Fattrib, host.Register(1), host.Register(uint32(storage.ReadOnly)), nil, host.String("FILE.TXT"))
	e.call(t, gemdrive.Fattrib, host.Register(0), nil, nil, host.String("FILE.TXT"))
	if attr := storage.Attr(e.host.Read32(gemdrive.OffFattribStatus)); attr&storage.ReadOnly == 0 {
		t.Fatalf("expected read-only, got %v", attr)
	}
	e.call(t, gemdrive.Fattrib, host.Register(0), nil, nil, host.String("NONE.TXT"))
	if err := e.status(gemdrive.OffFattribStatus); err != gemdrive.EFILNF {
		t.Fatalf("expected %v, got %v", gemdrive.EFILNF, err)
	}
}

func TestFdatime(t *testing.T) {
	e := setup(t, map[string][]byte{"file.txt": nil})
	fd := e.open(t, "file.txt", 0)

	// 2024-05-17 13:45:30
	date := uint32(2024-1980)<<9 | 5<<5 | 17
	tod := uint32(13)<<11 | 45<<5 | 30/2
	e.call(t, gemdrive.Fdatime, host.Register(1), host.Register(uint32(fd)), host.Register(tod<<16|date))
	if err := e.status(gemdrive.OffFdatetimeStatus); err != gemdrive.EOK {
		t.Fatalf("expected %v, got %v", gemdrive.EOK, err)
	}
	fi, err := os.Stat(filepath.Join(e.dir, "file.txt"))
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2024, 5, 17, 13, 45, 30, 0, time.Local)
	if !fi.ModTime().Equal(want) {
		t.Fatalf("expected %v, got %v", want, fi.ModTime())
	}

	e.call(t, gemdrive.Fdatime, host.Register(0), host.Register(uint32(fd)))
	if d, tm := e.host.Read32(gemdrive.OffFdatetimeDate), e.host.Read32(gemdrive.OffFdatetimeTime); d != date || tm != tod {
		t.Fatalf("expected %#x %#x, got %#x %#x", date, tod, d, tm)
	}
}

func TestDfree(t *testing.T) {
	e := setup(t, map[string][]byte{"file.txt": counting(5000)})
	e.call(t, gemdrive.Dfree, host.Register(0))
	if err := e.status(gemdrive.OffDfreeStatus); err != gemdrive.EOK {
		t.Fatalf("expected %v, got %v", gemdrive.EOK, err)
	}
	free, total := e.host.Read32(gemdrive.OffDfreeStruct), e.host.Read32(gemdrive.OffDfreeStruct+4)
	if free == 0 || free >= total {
		t.Fatalf("expected 0 < free < total, got %d %d", free, total)
	}
	if size := e.host.Read32(gemdrive.OffDfreeStruct + 8); size != storage.SectorSize {
		t.Fatalf("expected sector size %d, got %d", storage.SectorSize, size)
	}
}

func TestPexec(t *testing.T) {
	e := setup(t, nil)
	e.call(t, gemdrive.Pexec, host.Register(3), host.Register(0x1000), host.Register(0x2000),
		host.Register(0x3000), host.Register(0x4000))
	if mode := e.host.Read16(gemdrive.OffPexecMode); mode != 3 {
		t.Fatalf("expected mode 3, got %d", mode)
	}
	if env := e.host.Read32(gemdrive.OffPexecEnvstr); env != 0x4000 {
		t.Fatalf("expected envstr 0x4000, got %#x", env)
	}

	hdr := []byte{0x60, 0x1a, 0, 0, 1, 0, 0, 0, 0, 16}
	e.call(t, gemdrive.SaveExecHeader, nil, nil, nil, host.Bytes(hdr))
	if got := e.host.ReadBytes(gemdrive.OffExecHeader, len(hdr)); !bytes.Equal(got, hdr) {
		t.Fatalf("expected %x, got %x", hdr, got)
	}
}

func TestSaveVectors(t *testing.T) {
	e := setup(t, nil)
	const xbra = ris.HostROM4 + 0x200
	e.call(t, gemdrive.SaveVectors, host.Long(0x00e01234), host.Register(xbra))
	if v := e.host.Read32(gemdrive.OffOldGemdosTrap); v != 0x00e01234 {
		t.Fatalf("expected %#x, got %#x", 0x00e01234, v)
	}
	if v := uint32(e.host.ReadROM(0x200))<<16 | uint32(e.host.ReadROM(0x202)); v != 0x00e01234 {
		t.Fatalf("expected patched vector %#x, got %#x", 0x00e01234, v)
	}
}

func TestSharedVars(t *testing.T) {
	e := setup(t, nil)
	if fd := e.host.Read32(gemdrive.OffSharedVars + 4*gemdrive.FirstFileDescriptorVar); fd != gemdrive.FirstFileDescriptor {
		t.Fatalf("expected %d, got %d", gemdrive.FirstFileDescriptor, fd)
	}
	if l := e.host.Read32(gemdrive.OffSharedVars + 4*gemdrive.DriveLetter); l != 'C' {
		t.Fatalf("expected %d, got %d", 'C', l)
	}
	e.call(t, gemdrive.ReentryLock)
	if trap := e.host.Read16(gemdrive.OffReentryTrap); trap != 0xffff {
		t.Fatalf("expected reentry trap set, got %#x", trap)
	}
	e.call(t, gemdrive.ReentryUnlock)
	if trap := e.host.Read16(gemdrive.OffReentryTrap); trap != 0 {
		t.Fatalf("expected reentry trap cleared, got %#x", trap)
	}
}
