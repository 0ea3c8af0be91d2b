package sdimage

import (
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/clktmr/sidecart/storage"
)

const usageString = `SD card image utility.

Usage:

	%s [flags] <command> [arguments]

The commands are:

	create <image> <dir>	create a FAT32 image holding the files in dir
	ls <image> [dir]	list a directory of the image

`

var (
	flags = flag.NewFlagSet("sdimage", flag.ExitOnError)

	size  = flags.Int64("size", 64<<20, "size of a created image in bytes")
	label = flags.String("label", "SIDECART", "volume label of a created image")
)

func usage() {
	fmt.Fprintf(flags.Output(), usageString, "sdimage")
	flags.PrintDefaults()
}

func Main(args []string) {
	flags.Usage = usage
	flags.Parse(args[1:])

	if flags.NArg() < 2 {
		flags.Usage()
		os.Exit(1)
	}

	switch flags.Arg(0) {
	case "create":
		if flags.NArg() < 3 {
			flags.Usage()
			os.Exit(1)
		}
		img, err := storage.CreateImage(flags.Arg(1), *size, *label)
		if err != nil {
			log.Fatalln(err)
		}
		if err := populate(img, os.DirFS(flags.Arg(2))); err != nil {
			log.Fatalln(err)
		}
	case "ls":
		img, err := storage.OpenImage(flags.Arg(1))
		if err != nil {
			log.Fatalln(err)
		}
		dir := "/"
		if flags.NArg() > 2 {
			dir = flags.Arg(2)
		}
		fis, err := img.ReadDir(storage.Clean(dir))
		if err != nil {
			log.Fatalln(err)
		}
		for _, fi := range fis {
			name := fi.Name()
			if fi.IsDir() {
				name += "/"
			}
			fmt.Printf("%10d %s %s\n", fi.Size(), fi.ModTime().Format("2006-01-02 15:04"), name)
		}
	default:
		fmt.Fprintf(flags.Output(), "unknown command: %s\n", flags.Arg(0))
		flags.Usage()
		os.Exit(1)
	}
}

// populate copies all files of src into fsys. Hidden files are skipped.
func populate(fsys storage.FS, src fs.FS) error {
	return fs.WalkDir(src, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil || name == "." {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		dst := path.Join("/", filepath.ToSlash(name))
		if d.IsDir() {
			return fsys.Mkdir(dst)
		}
		data, err := fs.ReadFile(src, name)
		if err != nil {
			return err
		}
		log.Println(dst)
		return storage.WriteFile(fsys, dst, data)
	})
}
