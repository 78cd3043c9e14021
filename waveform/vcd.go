package waveform

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/Stateford/aion"
)

// VcdRecorder implements Recorder as an IEEE 1364 Value Change Dump:
// human-readable text viewable in GTKWave, Surfer, or similar tools.
// The format and its identifier-code scheme are grounded directly on
// original_source/crates/aion_sim/src/waveform.rs's VcdRecorder.
type VcdRecorder struct {
	w       io.Writer
	signals []vcdSignal
	nextID  uint32

	headerWritten bool
	haveTime      bool
	currentTimeFs uint64
}

type vcdSignal struct {
	id    aion.SimSignalId
	code  string
	width int
}

// NewVcdRecorder returns a VcdRecorder writing to w.
func NewVcdRecorder(w io.Writer) *VcdRecorder {
	return &VcdRecorder{w: w}
}

// makeIDCode generates a VCD identifier from a sequential index using
// printable ASCII starting at '!' (0x21); indices >= 94 wrap to a
// second character, exactly as the reference implementation does.
func makeIDCode(index uint32) string {
	var buf []byte
	idx := index
	for {
		buf = append(buf, byte('!')+byte(idx%94))
		idx /= 94
		if idx == 0 {
			break
		}
		idx--
	}
	return string(buf)
}

func formatVcdValue(v aion.LogicVec, width int) string {
	if width == 1 {
		return v.Get(0).String()
	}
	return "b" + v.String()
}

func (r *VcdRecorder) writeHeader() error {
	_, err := fmt.Fprint(r.w,
		"$date\n  Simulation date\n$end\n"+
			"$version\n  Aion HDL Simulator\n$end\n"+
			"$timescale\n  1fs\n$end\n")
	return err
}

// RegisterSignal declares a $var entry and assigns the signal its
// sequential VCD identifier code.
func (r *VcdRecorder) RegisterSignal(id aion.SimSignalId, name string, width int) error {
	code := makeIDCode(r.nextID)
	r.nextID++
	if _, err := fmt.Fprintf(r.w, "$var wire %d %s %s $end\n", width, code, name); err != nil {
		return err
	}
	r.signals = append(r.signals, vcdSignal{id: id, code: code, width: width})
	return nil
}

// BeginScope opens a $scope module block, writing the header first if
// this is the first call.
func (r *VcdRecorder) BeginScope(name string) error {
	if !r.headerWritten {
		if err := r.writeHeader(); err != nil {
			return err
		}
		r.headerWritten = true
	}
	_, err := fmt.Fprintf(r.w, "$scope module %s $end\n", name)
	return err
}

// EndScope closes the current scope.
func (r *VcdRecorder) EndScope() error {
	_, err := fmt.Fprint(r.w, "$upscope $end\n")
	return err
}

func (r *VcdRecorder) findSignal(id aion.SimSignalId) (*vcdSignal, bool) {
	for i := range r.signals {
		if r.signals[i].id == id {
			return &r.signals[i], true
		}
	}
	return nil, false
}

// RecordChange emits a timestamp line (if the time advanced since the
// last change) followed by the value-change line for id.
func (r *VcdRecorder) RecordChange(timeFs uint64, id aion.SimSignalId, value aion.LogicVec) error {
	if !r.headerWritten {
		if err := r.writeHeader(); err != nil {
			return err
		}
		r.headerWritten = true
	}
	if !r.haveTime || r.currentTimeFs != timeFs {
		if !r.haveTime {
			if _, err := fmt.Fprint(r.w, "$enddefinitions $end\n$dumpvars\n"); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(r.w, "#%d\n", timeFs); err != nil {
			return err
		}
		r.haveTime = true
		r.currentTimeFs = timeFs
	}

	sig, ok := r.findSignal(id)
	if !ok {
		return errors.Errorf("unregistered VCD signal %d", id)
	}
	val := formatVcdValue(value, sig.width)
	if sig.width == 1 {
		_, err := fmt.Fprintf(r.w, "%s%s\n", val, sig.code)
		return err
	}
	_, err := fmt.Fprintf(r.w, "%s %s\n", val, sig.code)
	return err
}

// Finalize writes the closing $enddefinitions when no change was ever
// recorded (an empty run still produces a valid VCD skeleton).
func (r *VcdRecorder) Finalize() error {
	if !r.haveTime {
		if !r.headerWritten {
			if err := r.writeHeader(); err != nil {
				return err
			}
			r.headerWritten = true
		}
		_, err := fmt.Fprint(r.w, "$enddefinitions $end\n")
		return err
	}
	return nil
}
