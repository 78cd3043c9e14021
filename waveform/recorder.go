// Package waveform records and loads simulation value-change traces,
// grounded on the kernel's two output formats (spec.md §4.6): a VCD
// text dump and an FST-shaped compressed binary dump, plus a VCD
// loader for reading traces back in.
package waveform

import "github.com/Stateford/aion"

// Recorder abstracts waveform output so the kernel driver loop can
// target either format through the same interface. It mirrors
// aion.WaveformRecorder method-for-method; SimKernel.AttachRecorder
// accepts any Recorder without the kernel importing this package (this
// package imports aion for its value types and is imported by
// cmd/aionsim, not by the kernel).
type Recorder interface {
	RegisterSignal(id aion.SimSignalId, name string, width int) error
	BeginScope(name string) error
	EndScope() error
	RecordChange(timeFs uint64, id aion.SimSignalId, value aion.LogicVec) error
	Finalize() error
}
