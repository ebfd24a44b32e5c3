// Package cartctl drives a motorized cart over its serial link.
//
// The cart controller takes one fixed ASCII frame carrying its whole
// commanded state:
//
//	*A0B70C0D50E0F0G0H0I0J0#
//
// and prints zero or more lines back. cartctl keeps that state, stages
// throttle changes through neutral, and always leaves the cart with zero
// throttle and centred steering when it exits.
//
// # Installation
//
//	go install github.com/gwillem/cartctl/cmd/cartctl@latest
//
// # Usage
//
// Pick the serial port once:
//
//	cartctl setup
//
// Then drive:
//
//	cartctl drive
//
// Without hardware, run a simulated cart on a virtual serial pair and drive
// that instead:
//
//	cartctl simulate --pair
//	cartctl drive --port /tmp/ttyCART0
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/cartctl: CLI with drive, setup, ports and simulate commands
//   - pkg/cart: State, flags, frame encoding and decoding
//   - pkg/link: Serial link, send-and-drain, configuration
//   - pkg/control: Control session and throttle staging
//   - pkg/console: Console command interpreter
//   - pkg/cartsim: Simulated cart controller
//   - pkg/logging: Logger setup
package cartctl
