//go:build rp2040

package main

import (
	"embedded/rtos"
	"os"
	"reflect"
	"runtime"
	"syscall"
	"testing"

	"github.com/clktmr/sidecart/machine"
	"github.com/clktmr/sidecart/rp2040"

	"github.com/clktmr/sidecart/test/board_test"
	"github.com/clktmr/sidecart/test/flash_test"
	"github.com/clktmr/sidecart/test/runtime_test"

	"github.com/embeddedgo/fs/termfs"
)

func init() {
	var err error

	console := termfs.NewLight("termfs", rp2040.UART0, machine.DefaultWriter)
	rtos.Mount(console, "/dev/console")
	os.Stdout, err = os.OpenFile("/dev/console", syscall.O_WRONLY, 0)
	if err != nil {
		panic(err)
	}
	os.Stderr = os.Stdout
}

func main() {
	os.Args = append(os.Args, "-test.v")
	os.Args = append(os.Args, "-test.bench=.")
	if !board_test.Interactive() {
		os.Args = append(os.Args, "-test.short")
	}
	testing.Main(
		matchAll,
		[]testing.InternalTest{
			newInternalTest(runtime_test.TestSleep),
			newInternalTest(runtime_test.TestTicker),
			newInternalTest(flash_test.TestInternal),
			newInternalTest(flash_test.TestConfig),
			newInternalTest(board_test.TestBlink),
			newInternalTest(board_test.TestButton),
		},
		[]testing.InternalBenchmark{
			newInternalBenchmark(runtime_test.BenchmarkSchedule),
			newInternalBenchmark(flash_test.BenchmarkRead),
			newInternalBenchmark(flash_test.BenchmarkWrite),
		}, nil,
	)
}

func matchAll(_ string, _ string) (bool, error) { return true, nil }

func newInternalTest(testFn func(*testing.T)) testing.InternalTest {
	return testing.InternalTest{
		runtime.FuncForPC(reflect.ValueOf(testFn).Pointer()).Name(),
		testFn,
	}
}

func newInternalBenchmark(testFn func(*testing.B)) testing.InternalBenchmark {
	return testing.InternalBenchmark{
		runtime.FuncForPC(reflect.ValueOf(testFn).Pointer()).Name(),
		testFn,
	}
}
