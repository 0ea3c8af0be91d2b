// Copyright 2024 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uf2

import (
	"bufio"
	"bytes"
	"debug/elf"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"time"

	"github.com/buildkite/shellwords"

	"github.com/clktmr/sidecart/flash"
)

const usageString = `Firmware and ROM image to UF2 converter.

Usage: %s [flags] <file>

An ELF file is converted to a firmware image, any other file is treated as
ROM image and placed in the ROM region of the flash.

`

// flashBase is the address of the flash in the address space of the RP2040.
const flashBase = 0x1000_0000

var (
	flags = flag.NewFlagSet("uf2", flag.ExitOnError)

	infile string
	output = flags.String("o", "", "output file, input file with .uf2 suffix if empty")
	family = flags.String("family", "rp2040", "rp2040 | absolute | data")
	run    = flags.String("run", "", "Run the UF2 file with command, i.e. picotool load -x")
)

var (
	errNotFlash = errors.New("segment outside of flash")
	errROMSize  = errors.New("ROM image too large")
)

func usage() {
	fmt.Fprintf(flags.Output(), usageString, "uf2")
	flags.PrintDefaults()
}

// objcopy copies the loadable segments of src to dst at their physical
// address relative to the flash base.
func objcopy(dst io.WriterAt, src *elf.File) error {
	for _, p := range src.Progs {
		if p.Type != elf.PT_LOAD || p.Filesz == 0 {
			continue
		}
		if p.Paddr < flashBase || p.Paddr+p.Filesz > flashBase+flash.Size {
			return fmt.Errorf("%w: %#x", errNotFlash, p.Paddr)
		}
		data := make([]byte, p.Filesz)
		if _, err := p.ReadAt(data, 0); err != nil {
			return err
		}
		if _, err := dst.WriteAt(data, int64(p.Paddr-flashBase)); err != nil {
			return err
		}
	}
	return nil
}

type buffer []byte

func (b *buffer) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(*b) {
		*b = append(*b, make([]byte, end-len(*b))...)
	}
	return copy((*b)[off:], p), nil
}

// firmware returns the flash image of an ELF file.
func firmware(name string) ([]byte, error) {
	f, err := elf.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var b buffer
	if err := objcopy(&b, f); err != nil {
		return nil, fmt.Errorf("objcopy: %w", err)
	}
	return b, nil
}

// romImage reads a ROM image and removes the header of emulator dumps.
func romImage(name string) ([]byte, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	if n := len(data); (n == flash.ROMSize/2+4 || n == flash.ROMSize+4) && bytes.Equal(data[:4], []byte{0, 0, 0, 0}) {
		data = data[4:]
	}
	if len(data) > flash.ROMSize {
		return nil, fmt.Errorf("%w: %d bytes", errROMSize, len(data))
	}
	return data, nil
}

func isELF(name string) bool {
	f, err := elf.Open(name)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

func Main(args []string) {
	flags.Usage = usage
	flags.Parse(args[1:])

	if flags.NArg() == 1 {
		infile = flags.Arg(0)
	} else {
		flags.Usage()
		os.Exit(1)
	}

	fam, ok := families[*family]
	if !ok {
		log.Fatalf("uf2: unknown family %s", *family)
	}

	outfile := *output
	if outfile == "" {
		outfile, _ = strings.CutSuffix(infile, ".elf")
		outfile += ".uf2"
	}

	var (
		data []byte
		addr uint32 = flashBase
		err  error
	)
	if isELF(infile) {
		data, err = firmware(infile)
	} else {
		data, err = romImage(infile)
		addr += flash.ROMOffset
	}
	if err != nil {
		log.Fatalln(err)
	}

	out, err := os.Create(outfile)
	if err != nil {
		log.Fatalln(err)
	}
	if err := writeUF2(out, addr, fam, data); err != nil {
		log.Fatalln(err)
	}
	if err := out.Close(); err != nil {
		log.Fatalln(err)
	}

	if *run != "" {
		runUF2(*run, outfile)
	}
}

func runUF2(cmdpath, path string) {
	args, err := shellwords.Split(cmdpath)
	if err != nil {
		log.Fatal("run:", err)
	}
	args = append(args, path)
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stderr = os.Stderr
	processGroupEnable(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		log.Fatal("open stdout:", err)
	}

	sigintr := make(chan os.Signal, 1)
	signal.Notify(sigintr, os.Interrupt)

	err = cmd.Start()
	if err != nil {
		log.Fatal("start command:", err)
	}

	go func() {
		<-sigintr
		stdout.Close()
		err := processGroupKill(cmd)
		if err != nil {
			log.Println(err)
		}
	}()

	scanner := bufio.NewScanner(stdout)
	exiting := false
	code := 0
	for scanner.Scan() {
		log.Println(scanner.Text())
		if exiting {
			continue
		}
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "fatal error:"), strings.HasPrefix(line, "panic:"):
			fallthrough
		case line == "FAIL":
			code = 1
			fallthrough
		case line == "PASS":
			exiting = true
			go func() {
				// give panic() time to print the stacktrace
				time.Sleep(500 * time.Millisecond)
				stdout.Close()
				err := processGroupKill(cmd)
				if err != nil {
					log.Println(err)
				}
			}()
		}
	}
	cmd.Wait()
	os.Exit(code)
}
