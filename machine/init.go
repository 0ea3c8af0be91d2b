//go:build rp2040

package machine

import (
	"embedded/arch/cortexm/systim"

	"github.com/clktmr/sidecart/rp2040"
)

func init() {
	rp2040.SetupClock()
	rp2040.PrioritizeDMA()
	rp2040.Unreset(rp2040.ResetTimer | rp2040.ResetIOBank0 | rp2040.ResetPadsBank0)
	systim.Setup(2e6, rp2040.ClockSpeed, false)
	rp2040.UART0.Setup(Baud)
}
