// Package ll implements the core of a Bluetooth Low Energy Link Layer
// controller: the connection event engine and the Link Layer Control
// Procedure (LLCP) state machines that run on top of it.
//
// STATUS
//
// This package drives a single-threaded, interrupt-driven pipeline: a
// Ticker places master/slave connection events on a hardware (or
// simulated) timer, the role scheduler prepares each event and steps any
// due LLCP procedure, the connection event FSM runs one radio ISR
// TX/RX/TX chain, and slave timing recovery keeps the RX window tight
// across clock drift. Advertising/scan PDUs, the HCI transport to the
// host, the concrete radio register programming, and the host-side
// GATT/ATT/SMP/L2CAP stacks are all external collaborators — only their
// interfaces are modeled, in internal/radio and the Controller's RX/TX
// queue API.
//
// USAGE
//
// A controller is constructed from a Config and a radio.Radio facade
// (internal/radio/simradio ships a simulated one for tests):
//
//	cfg := ll.DefaultConfig()
//	ctrl := ll.NewController(cfg, simRadio, nil)
//	handle, status := ctrl.ConnectEnable(ll.ConnectionParams{
//		AccessAddress: aa, Interval: 24, Latency: 0, Timeout: 400,
//	})
//
// Received data and meta-events (connection complete, encryption change,
// length change, RSSI, termination) surface through RxGet/RxDequeue,
// mirroring how a controller hands these up to its HCI layer; this
// package stops at that boundary.
//
// REFERENCES
//
// The connection-event and LLCP design here favors one small owner
// struct, an internal/<subsystem> layout per concern, and plain structs
// in place of bitfields. It sits on the controller side of the air
// interface, not the host side of an HCI socket — GATT, ATT, and SMP are
// out of scope.
package ll
