package gemdrive

import (
	"io/fs"
	"path"
	"strings"
	"unicode"

	"github.com/clktmr/sidecart/storage"
)

// MaxPath is the size of path fields in the payload and the window.
const MaxPath = 128

// splitDrive strips a leading drive specifier like `C:`.
func splitDrive(name string) (drive byte, rest string) {
	if len(name) >= 2 && name[1] == ':' {
		return byte(unicode.ToUpper(rune(name[0]))), name[2:]
	}
	return 0, name
}

// hostPath converts a host path relative to the default path dpath into an
// absolute slash separated path inside the drive. A path with a drive
// specifier is always relative to the drive's root.
func hostPath(name, dpath string) string {
	drive, name := splitDrive(name)
	if drive == 0 && !strings.HasPrefix(name, `\`) && !strings.HasPrefix(name, "/") {
		name = dpath + `\` + name
	}
	return storage.Clean(strings.ReplaceAll(name, `\`, "/"))
}

// stPath converts a slash separated path to the host's notation.
func stPath(name string) string {
	return strings.ReplaceAll(name, "/", `\`)
}

// ShortName returns the 8.3 form of a file name as the host sees it:
// characters invalid on the host are replaced, the name is uppercased and
// base and extension are truncated.
func ShortName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r <= ' ', strings.ContainsRune(`"*+,/:;<=>?[\]|`, r):
			b.WriteByte('_')
		default:
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	s := b.String()
	base, ext := s, ""
	if i := strings.LastIndexByte(s, '.'); i > 0 {
		base, ext = s[:i], s[i+1:]
	}
	base = strings.ReplaceAll(base, ".", "_")
	base = truncate(base, 8)
	ext = truncate(ext, 3)
	if ext == "" {
		return base
	}
	return base + "." + ext
}

func truncate(s string, n int) string {
	i := 0
	for j := range s {
		if i == n {
			return s[:j]
		}
		i++
	}
	return s
}

// trimPattern adapts a host search pattern: a trailing `.*` matches names
// with and without extension.
func trimPattern(p string) string {
	p = strings.TrimRight(p, " ")
	p = strings.TrimLeft(p, `\/`)
	if strings.HasSuffix(p, ".*") {
		p = p[:len(p)-2]
	}
	if p == "" {
		p = "*"
	}
	return p
}

// match reports whether name matches pattern, case insensitive. Only the
// wildcards `*` and `?` are supported.
func match(pattern, name string) bool {
	p, n := []rune(strings.ToUpper(pattern)), []rune(strings.ToUpper(name))
	var pi, ni int
	star, mark := -1, 0
	for ni < len(n) {
		switch {
		case pi < len(p) && (p[pi] == '?' || p[pi] == n[ni]):
			pi++
			ni++
		case pi < len(p) && p[pi] == '*':
			star, mark = pi, ni
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			ni = mark
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}

// resolve maps a path as given by the host to an existing path in fsys. The
// host only knows uppercased 8.3 names, so each element is looked up
// case insensitive or by its short name. The last element may not exist, it
// is returned unchanged then. A missing intermediate directory results in
// EPTHNF.
func resolve(fsys storage.FS, name string) (string, error) {
	if _, err := fsys.Stat(name); err == nil {
		return name, nil
	}
	elems := strings.Split(strings.TrimPrefix(name, "/"), "/")
	dir := "/"
	for i, elem := range elems {
		found, err := lookup(fsys, dir, elem)
		last := i == len(elems)-1
		switch {
		case err != nil && !last:
			return "", EPTHNF
		case err != nil:
			found = elem
		}
		dir = path.Join(dir, found)
	}
	return dir, nil
}

func lookup(fsys storage.FS, dir, elem string) (string, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return "", err
	}
	short := strings.ToUpper(elem)
	for _, e := range entries {
		if strings.EqualFold(e.Name(), elem) {
			return e.Name(), nil
		}
	}
	for _, e := range entries {
		if ShortName(e.Name()) == short {
			return e.Name(), nil
		}
	}
	return "", fs.ErrNotExist
}

// isDir reports whether name is an existing directory.
func isDir(fsys storage.FS, name string) bool {
	fi, err := fsys.Stat(name)
	return err == nil && fi.IsDir()
}
