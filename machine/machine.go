// Package machine brings up the RP2040 before the firmware runs: the system
// clock, the system timer and the debug console on UART0, which print,
// panic and the log package write to.
//
// Import it for its side effects.
package machine

// Baud is the speed of the debug console.
const Baud = 115200
