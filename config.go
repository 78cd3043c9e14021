package aion

// WaveformFormat selects the on-disk shape of recorded waveform data.
type WaveformFormat int

const (
	// WaveformText is the VCD-shaped, human-readable change dump.
	WaveformText WaveformFormat = iota
	// WaveformBinary is the FST-shaped compressed binary change dump.
	WaveformBinary
)

func (f WaveformFormat) String() string {
	if f == WaveformBinary {
		return "binary"
	}
	return "text"
}

// SimConfig carries the kernel's configurable options, per spec.md §6.
type SimConfig struct {
	// TimeLimitFs is a hard cutoff in femtoseconds; nil means run to
	// natural termination.
	TimeLimitFs *uint64

	// RecordWaveform enables waveform recording at WaveformPath.
	RecordWaveform bool
	// WaveformPath is the output file path when RecordWaveform is true.
	WaveformPath string
	// WaveformFormat selects Text or Binary output.
	WaveformFormat WaveformFormat

	// DeltaCycleLimit bounds the number of delta cycles per instant;
	// exceeding it is a fatal KindModelExhaustion error (combinational
	// loop). Default 10,000.
	DeltaCycleLimit uint32

	// DefaultTimescaleFs is used when the front-end does not supply a
	// timescale. Default 1,000,000 fs (1 ns).
	DefaultTimescaleFs uint64
}

// DefaultSimConfig returns a SimConfig with the documented defaults.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		DeltaCycleLimit:    10000,
		DefaultTimescaleFs: FsPerNs,
	}
}
