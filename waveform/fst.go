package waveform

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"

	"github.com/Stateford/aion"
)

// FST block type identifiers, per original_source/crates/aion_sim/src/fst.rs.
const (
	fstBlockHeader    = 0
	fstBlockVcData    = 1
	fstBlockGeometry  = 3
	fstBlockHierarchy = 4
)

const (
	fstTagScope   = 0xFE
	fstTagUpscope = 0xFF
	fstVarWire    = 0x05
	fstVarReg     = 0x04
	fstScopeModule = 0x03
)

type fstHierEntry struct {
	kind  byte // 0 = scope, 1 = upscope, 2 = var
	name  string
	width int
}

type fstChange struct {
	timeFs uint64
	index  uint32
	value  aion.LogicVec
}

// FstRecorder implements Recorder as the FST (Fast Signal Trace)
// compressed binary format used by GTKWave, buffering the whole run in
// memory and writing the four-block layout on Finalize since the
// header needs the total signal count and time range up front. Block
// and byte layout are grounded on original_source/crates/aion_sim/src/fst.rs.
type FstRecorder struct {
	w io.Writer

	signalIndex map[aion.SimSignalId]uint32
	nextIndex   uint32
	widths      []int
	hierarchy   []fstHierEntry
	changes     []fstChange

	hasChanges bool
	startFs    uint64
	endFs      uint64
}

// NewFstRecorder returns an FstRecorder writing to w on Finalize.
func NewFstRecorder(w io.Writer) *FstRecorder {
	return &FstRecorder{w: w, signalIndex: make(map[aion.SimSignalId]uint32)}
}

func (r *FstRecorder) RegisterSignal(id aion.SimSignalId, name string, width int) error {
	idx := r.nextIndex
	r.nextIndex++
	r.signalIndex[id] = idx
	r.widths = append(r.widths, width)
	r.hierarchy = append(r.hierarchy, fstHierEntry{kind: 2, name: name, width: width})
	return nil
}

func (r *FstRecorder) BeginScope(name string) error {
	r.hierarchy = append(r.hierarchy, fstHierEntry{kind: 0, name: name})
	return nil
}

func (r *FstRecorder) EndScope() error {
	r.hierarchy = append(r.hierarchy, fstHierEntry{kind: 1})
	return nil
}

func (r *FstRecorder) RecordChange(timeFs uint64, id aion.SimSignalId, value aion.LogicVec) error {
	idx, ok := r.signalIndex[id]
	if !ok {
		return errors.Errorf("unregistered FST signal %d", id)
	}
	if !r.hasChanges {
		r.startFs = timeFs
		r.hasChanges = true
	}
	r.endFs = timeFs
	r.changes = append(r.changes, fstChange{timeFs: timeFs, index: idx, value: value.Clone()})
	return nil
}

func (r *FstRecorder) Finalize() error {
	if err := r.writeHeaderBlock(); err != nil {
		return err
	}
	if err := r.writeVcDataBlock(); err != nil {
		return err
	}
	if err := r.writeGeometryBlock(); err != nil {
		return err
	}
	if err := r.writeHierarchyBlock(); err != nil {
		return err
	}
	return nil
}

// writeHeaderBlock writes the fixed 329-byte header payload: time
// range, endianness probe, counts, timescale, writer/date strings.
func (r *FstRecorder) writeHeaderBlock() error {
	payload := make([]byte, 329)
	binary.BigEndian.PutUint64(payload[0:8], r.startFs)
	binary.BigEndian.PutUint64(payload[8:16], r.endFs)
	binary.BigEndian.PutUint64(payload[16:24], math.Float64bits(math.E))
	binary.BigEndian.PutUint64(payload[24:32], 0)

	var scopeCount uint64
	for _, h := range r.hierarchy {
		if h.kind == 0 {
			scopeCount++
		}
	}
	binary.BigEndian.PutUint64(payload[32:40], scopeCount)
	binary.BigEndian.PutUint64(payload[40:48], uint64(r.nextIndex))
	binary.BigEndian.PutUint64(payload[48:56], uint64(r.nextIndex))
	var vcCount uint64
	if r.hasChanges {
		vcCount = 1
	}
	binary.BigEndian.PutUint64(payload[56:64], vcCount)
	var fsExponent int8 = -15
	payload[64] = byte(fsExponent) // femtosecond exponent

	writer := []byte("Aion HDL Simulator")
	copy(payload[65:65+len(writer)], writer)

	date := []byte(time.Unix(0, 0).UTC().Format("2006-01-02 15:04:05\n"))
	if len(date) > 25 {
		date = date[:25]
	}
	copy(payload[193:193+len(date)], date)

	payload[312] = 0 // file type: Verilog
	binary.BigEndian.PutUint64(payload[313:321], 0)

	return writeFstBlock(r.w, fstBlockHeader, payload)
}

func (r *FstRecorder) buildBitsArray() []byte {
	numVars := int(r.nextIndex)
	initial := make([]*aion.LogicVec, numVars)
	for i := range r.changes {
		c := &r.changes[i]
		if c.timeFs == r.startFs {
			initial[c.index] = &c.value
		}
	}
	var bits []byte
	for i, v := range initial {
		width := r.widths[i]
		if v == nil {
			for j := 0; j < width; j++ {
				bits = append(bits, 'x')
			}
			continue
		}
		for b := width - 1; b >= 0; b-- {
			bits = append(bits, logicByte(v.Get(b)))
		}
	}
	return bits
}

func logicByte(l aion.Logic) byte {
	switch l.String() {
	case "0":
		return '0'
	case "1":
		return '1'
	case "Z":
		return 'z'
	default:
		return 'x'
	}
}

func (r *FstRecorder) buildWavesAndPositions(uniqueTimes []uint64) ([]byte, []uint64) {
	numVars := int(r.nextIndex)
	timeIndex := make(map[uint64]uint64, len(uniqueTimes))
	for i, t := range uniqueTimes {
		timeIndex[t] = uint64(i)
	}

	perSignal := make([][]fstChange, numVars)
	for _, c := range r.changes {
		if c.timeFs == r.startFs {
			continue
		}
		if _, ok := timeIndex[c.timeFs]; ok {
			perSignal[c.index] = append(perSignal[c.index], c)
		}
	}

	var waves []byte
	positions := make([]uint64, numVars)
	for sigIdx, changes := range perSignal {
		if len(changes) == 0 {
			continue
		}
		positions[sigIdx] = uint64(len(waves)) + 1
		width := r.widths[sigIdx]

		var sigData []byte
		var prevIdx uint64
		for _, c := range changes {
			ti := timeIndex[c.timeFs]
			delta := ti - prevIdx
			prevIdx = ti
			if width == 1 {
				switch c.value.Get(0).String() {
				case "0":
					sigData = appendVarint(sigData, delta<<2)
				case "1":
					sigData = appendVarint(sigData, (delta<<2)|2)
				case "Z":
					sigData = appendVarint(sigData, (delta<<4)|3)
				default:
					sigData = appendVarint(sigData, (delta<<4)|1)
				}
			} else {
				sigData = appendVarint(sigData, (delta<<1)|1)
				for b := width - 1; b >= 0; b-- {
					sigData = append(sigData, logicByte(c.value.Get(b)))
				}
			}
		}
		waves = appendVarint(waves, 0)
		waves = append(waves, sigData...)
	}
	return waves, positions
}

func (r *FstRecorder) buildTimeTable(uniqueTimes []uint64) []byte {
	var buf []byte
	var prev uint64
	for _, t := range uniqueTimes {
		buf = appendVarint(buf, t-prev)
		prev = t
	}
	return buf
}

func (r *FstRecorder) writeVcDataBlock() error {
	if !r.hasChanges {
		return nil
	}

	uniqueTimes := make([]uint64, 0, len(r.changes))
	seen := make(map[uint64]bool)
	for _, c := range r.changes {
		if !seen[c.timeFs] {
			seen[c.timeFs] = true
			uniqueTimes = append(uniqueTimes, c.timeFs)
		}
	}
	sortUint64s(uniqueTimes)

	bitsRaw := r.buildBitsArray()
	bitsCompressed, err := compressZlib(bitsRaw)
	if err != nil {
		return err
	}

	wavesRaw, positions := r.buildWavesAndPositions(uniqueTimes)
	var wavesCompressed []byte
	if len(wavesRaw) > 0 {
		wavesCompressed, err = compressZlib(wavesRaw)
		if err != nil {
			return err
		}
	}

	var positionRaw []byte
	for _, p := range positions {
		positionRaw = appendVarint(positionRaw, p)
	}

	timeRaw := r.buildTimeTable(uniqueTimes)
	timeCompressed, err := compressZlib(timeRaw)
	if err != nil {
		return err
	}

	var payload []byte
	payload = appendUint64BE(payload, r.startFs)
	payload = appendUint64BE(payload, r.endFs)
	payload = appendUint64BE(payload, 0)

	payload = appendVarint(payload, uint64(len(bitsRaw)))
	payload = appendVarint(payload, uint64(len(bitsCompressed)))
	payload = appendVarint(payload, uint64(r.nextIndex))
	payload = append(payload, bitsCompressed...)

	payload = appendVarint(payload, uint64(r.nextIndex))
	payload = append(payload, 0x5A)
	payload = append(payload, wavesCompressed...)

	payload = append(payload, positionRaw...)
	payload = appendUint64BE(payload, uint64(len(positionRaw)))

	payload = append(payload, timeCompressed...)
	payload = appendUint64BE(payload, uint64(len(timeRaw)))
	payload = appendUint64BE(payload, uint64(len(timeCompressed)))
	payload = appendUint64BE(payload, uint64(len(uniqueTimes)))

	return writeFstBlock(r.w, fstBlockVcData, payload)
}

func (r *FstRecorder) writeGeometryBlock() error {
	var raw []byte
	for _, w := range r.widths {
		raw = appendVarint(raw, uint64(w))
	}
	compressed, err := compressZlib(raw)
	if err != nil {
		return err
	}
	var payload []byte
	payload = appendUint64BE(payload, uint64(len(raw)))
	payload = appendUint64BE(payload, uint64(len(r.widths)))
	payload = append(payload, compressed...)
	return writeFstBlock(r.w, fstBlockGeometry, payload)
}

func (r *FstRecorder) writeHierarchyBlock() error {
	var raw []byte
	for _, h := range r.hierarchy {
		switch h.kind {
		case 0:
			raw = append(raw, fstTagScope, fstScopeModule)
			raw = append(raw, []byte(h.name)...)
			raw = append(raw, 0, 0)
		case 1:
			raw = append(raw, fstTagUpscope)
		default:
			if h.width == 1 {
				raw = append(raw, fstVarWire)
			} else {
				raw = append(raw, fstVarReg)
			}
			raw = append(raw, 0)
			raw = append(raw, []byte(h.name)...)
			raw = append(raw, 0)
			raw = appendVarint(raw, uint64(h.width))
			raw = appendVarint(raw, 0)
		}
	}
	compressed, err := compressGzip(raw)
	if err != nil {
		return err
	}
	var payload []byte
	payload = appendUint64BE(payload, uint64(len(raw)))
	payload = append(payload, compressed...)
	return writeFstBlock(r.w, fstBlockHierarchy, payload)
}

func appendVarint(buf []byte, value uint64) []byte {
	for {
		b := byte(value & 0x7F)
		value >>= 7
		if value != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
		if value == 0 {
			break
		}
	}
	return buf
}

func appendUint64BE(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func compressZlib(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func compressGzip(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeFstBlock writes a block's type byte, section length (length
// field itself plus payload, per the FST spec), and payload.
func writeFstBlock(w io.Writer, blockType byte, payload []byte) error {
	if _, err := w.Write([]byte{blockType}); err != nil {
		return err
	}
	sectionLen := uint64(8 + len(payload))
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], sectionLen)
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func sortUint64s(s []uint64) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
