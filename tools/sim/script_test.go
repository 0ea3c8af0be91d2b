package sim

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/clktmr/sidecart/board"
	"github.com/clktmr/sidecart/bus"
	"github.com/clktmr/sidecart/config"
	"github.com/clktmr/sidecart/configurator"
	"github.com/clktmr/sidecart/emul"
	"github.com/clktmr/sidecart/flash"
	"github.com/clktmr/sidecart/host"
	"github.com/clktmr/sidecart/storage"
)

func TestRunScript(t *testing.T) {
	tests := map[string]struct {
		script string
		err    bool
	}{
		"save": {fmt.Sprintf(`
			assert(cart.kind() == "CONFIGURATOR")
			local ok, err = host.call(%d)
			assert(ok, err)
		`, configurator.SaveConfig), false},
		"list": {fmt.Sprintf(`
			assert(host.call(%d))
			assert(host.readrom(0) == 0x612e, "unexpected list")
		`, configurator.ListFloppies), false},
		"rejected": {fmt.Sprintf(`
			local ok = host.call(%d)
			assert(not ok, "network command accepted")
		`, configurator.LaunchScanNetworks), false},
		"failure": {`error("boom")`, true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.MkdirAll(filepath.Join(dir, "floppies"), 0755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(dir, "floppies", "a.st"), []byte{0}, 0644); err != nil {
				t.Fatal(err)
			}
			script := filepath.Join(t.TempDir(), "test.lua")
			if err := os.WriteFile(script, []byte(tc.script), 0644); err != nil {
				t.Fatal(err)
			}

			f := flash.NewMem(flash.Size)
			cfg := config.New(f)
			var fake board.Fake
			var clk host.Clock
			emu, err := emul.New(emul.Env{
				Config:     cfg,
				Flash:      f,
				FS:         storage.Dir(dir),
				Board:      fake.Board(),
				BusOptions: []bus.Option{bus.WithClock(clk.Now)},
			})
			if err != nil {
				t.Fatal(err)
			}
			defer emu.Close()

			err = runScript(context.Background(), emu, &fake, script)
			if (err != nil) != tc.err {
				t.Fatalf("expected error %v, got %v", tc.err, err)
			}
		})
	}
}
