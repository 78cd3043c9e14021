package aion

import (
	"container/heap"

	"github.com/pkg/errors"
)

// timeEvent is a scheduled future wake-up: process Index becomes active
// again once the kernel's clock reaches Fs. Seq breaks ties between
// events scheduled at the same instant in FIFO order, giving the queue
// the stable (fs, insertion_seq) ordering spec.md §4.4 requires.
type timeEvent struct {
	fs   uint64
	seq  uint64
	proc int
	cont *Continuation
}

type eventQueue []timeEvent

func (q eventQueue) Len() int { return len(q) }
func (q eventQueue) Less(i, j int) bool {
	if q[i].fs != q[j].fs {
		return q[i].fs < q[j].fs
	}
	return q[i].seq < q[j].seq
}
func (q eventQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *eventQueue) Push(x interface{}) { *q = append(*q, x.(timeEvent)) }
func (q *eventQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// waiter is a process parked on StmtWait, to be woken when any of its
// sensitivity signals changes.
type waiter struct {
	proc    int
	cont    *Continuation
	signals []SimSignalId
}

// WaveformRecorder is the subset of waveform.Recorder the kernel needs
// to stream value changes during a run. It is declared locally (rather
// than importing package waveform, which itself imports aion) so any
// concrete recorder — waveform.VcdRecorder, waveform.FstRecorder, or a
// test double — satisfies it structurally.
type WaveformRecorder interface {
	RegisterSignal(id SimSignalId, name string, width int) error
	BeginScope(name string) error
	EndScope() error
	RecordChange(timeFs uint64, id SimSignalId, value LogicVec) error
	Finalize() error
}

// SignalSnapshot is a point-in-time read of one signal, returned by
// AllSignals.
type SignalSnapshot struct {
	ID    SimSignalId
	Name  string
	Width int
	Kind  SignalKind
	Value LogicVec
}

// SimResult is the outcome of a full Simulate call.
type SimResult struct {
	FinalTime         SimTime
	Finished          bool
	DisplayOutput     []string
	AssertionFailures []AssertionResult
	Diagnostics       []Diagnostic
	Signals           []SignalSnapshot
}

// SimKernel is the event-driven simulation kernel: a flattened design
// plus its mutable run state (clock, event queue, accumulated output).
// It exposes the public API surface of spec.md §6.
type SimKernel struct {
	state  *SimState
	config SimConfig

	now SimTime

	queue   eventQueue
	seq     uint64
	active  map[int]*Continuation
	waiters []waiter

	deltaCount uint32

	initialized bool
	finished    bool
	fatal       *SimError

	displayOutput     []string
	assertionFailures []AssertionResult
	diagnostics       []Diagnostic

	recorder WaveformRecorder
}

// NewSimKernel flattens design and returns a kernel ready for
// Initialize. config's zero value is valid; callers typically start
// from DefaultSimConfig.
func NewSimKernel(design *Design, config SimConfig) (*SimKernel, error) {
	st, err := Flatten(design)
	if err != nil {
		return nil, err
	}
	if config.DeltaCycleLimit == 0 {
		config.DeltaCycleLimit = DefaultSimConfig().DeltaCycleLimit
	}
	if config.DefaultTimescaleFs == 0 {
		config.DefaultTimescaleFs = DefaultSimConfig().DefaultTimescaleFs
	}
	k := &SimKernel{
		state:  st,
		config: config,
		active: make(map[int]*Continuation),
	}
	heap.Init(&k.queue)
	return k, nil
}

// Simulate is the one-shot convenience entry point: flatten, initialize
// and run design to completion (or config.TimeLimitFs), returning the
// accumulated result.
func Simulate(design *Design, config SimConfig) (*SimResult, error) {
	k, err := NewSimKernel(design, config)
	if err != nil {
		return nil, err
	}
	if err := k.Initialize(); err != nil {
		return nil, err
	}
	var limit uint64
	hasLimit := config.TimeLimitFs != nil
	if hasLimit {
		limit = *config.TimeLimitFs
	}
	for !k.IsFinished() && k.HasPendingEvents() {
		if hasLimit && k.now.Fs >= limit {
			break
		}
		if _, err := k.StepDelta(); err != nil {
			return nil, err
		}
	}
	return &SimResult{
		FinalTime:         k.now,
		Finished:          k.finished,
		DisplayOutput:     k.TakeDisplayOutput(),
		AssertionFailures: k.TakeAssertionFailures(),
		Diagnostics:       k.TakeDiagnostics(),
		Signals:           k.AllSignals(),
	}, nil
}

// AttachRecorder registers every flattened signal with rec under a
// single "top" scope, records each signal's current value as rec's
// time-zero sample, and stores rec so every subsequent commit streams
// its changed signals to it (spec.md §4.4 step 3.2: "record a waveform
// change at current_time" whenever previous != current). Call it after
// Initialize so the time-zero sample reflects post-elaboration values,
// not uninitialized defaults.
func (k *SimKernel) AttachRecorder(rec WaveformRecorder) error {
	if err := rec.BeginScope("top"); err != nil {
		return err
	}
	for _, fs := range k.state.Signals {
		if err := rec.RegisterSignal(fs.ID, fs.Name, fs.Width); err != nil {
			return err
		}
	}
	if err := rec.EndScope(); err != nil {
		return err
	}
	for _, fs := range k.state.Signals {
		if err := rec.RecordChange(k.now.Fs, fs.ID, fs.Current); err != nil {
			return err
		}
	}
	k.recorder = rec
	return nil
}

// Initialize runs every process once at time zero so initial values
// and continuous assignments propagate before the first StepDelta,
// then settles delta cycles at time zero exactly as StepDelta would
// (spec.md §4.1/§4.4's initialization phase).
func (k *SimKernel) Initialize() error {
	if k.initialized {
		return nil
	}
	k.initialized = true
	for i := range k.state.Processes {
		k.active[i] = nil
	}
	return k.drainActiveDeltas()
}

// StepDelta advances the simulation by exactly one delta cycle: if no
// process is currently active, it first jumps the clock to the next
// queued time event. It returns false when there is nothing left to
// do (no active processes and an empty event queue) or the kernel has
// already finished/hit a fatal error.
func (k *SimKernel) StepDelta() (bool, error) {
	if k.finished || k.fatal != nil {
		return false, k.fatal
	}
	if len(k.active) == 0 {
		if !k.advanceClock() {
			return false, nil
		}
	}
	if len(k.active) == 0 {
		return false, nil
	}
	if err := k.runDelta(); err != nil {
		k.fatal = asSimError(err, KindInternal)
		return false, k.fatal
	}
	return true, nil
}

// drainActiveDeltas repeatedly runs deltas at the current instant until
// the active set goes empty, enforcing config.DeltaCycleLimit.
func (k *SimKernel) drainActiveDeltas() error {
	for len(k.active) > 0 {
		if k.finished {
			return nil
		}
		if err := k.runDelta(); err != nil {
			k.fatal = asSimError(err, KindInternal)
			return k.fatal
		}
	}
	k.deltaCount = 0
	return nil
}

// advanceClock pops the next batch of time-based events (all sharing
// the earliest queued fs) into the active set and moves now.Fs/Delta
// to match, returning false if the queue was empty. The delta counter
// restarts only when time moves forward, so events re-queued at the
// current instant keep counting toward config.DeltaCycleLimit.
func (k *SimKernel) advanceClock() bool {
	if k.queue.Len() == 0 {
		return false
	}
	next := k.queue[0]
	if next.fs != k.now.Fs {
		k.deltaCount = 0
	}
	k.now = SimTime{Fs: next.fs, Delta: 0}
	for k.queue.Len() > 0 && k.queue[0].fs == next.fs {
		ev := heap.Pop(&k.queue).(timeEvent)
		k.active[ev.proc] = ev.cont
	}
	return true
}

// runDelta executes every currently active process once, commits the
// resulting driven values, and populates the active set for the next
// delta from whatever those commits newly wake.
func (k *SimKernel) runDelta() error {
	k.deltaCount++
	if k.deltaCount > k.config.DeltaCycleLimit {
		return newSimError(KindModelExhaustion, "exceeded delta cycle limit (%d) at %s: suspected combinational loop", k.config.DeltaCycleLimit, k.now)
	}

	todo := k.active
	k.active = make(map[int]*Continuation)

	var allUpdates []PendingUpdate
	for idx, cont := range todo {
		body := k.state.Processes[idx].Body
		if cont != nil {
			body = cont.Body
		}
		res := RunProcess(k.state, idx, k.now, body)
		k.displayOutput = append(k.displayOutput, res.Display...)
		for _, a := range res.Assertions {
			k.assertionFailures = append(k.assertionFailures, recordAssertion(a)...)
		}
		allUpdates = append(allUpdates, res.Updates...)

		switch res.Outcome {
		case ExecFinished:
			k.finished = true
		case ExecAssertionFailed:
			k.diagnostics = append(k.diagnostics, Diagnostic{
				Time: k.now, Kind: KindUserInput, Message: res.AssertionMessage,
			})
		case ExecSuspend:
			k.scheduleSuspension(idx, res)
		}
	}

	changed, err := k.commit(allUpdates)
	if err != nil {
		return err
	}
	if k.finished {
		k.active = make(map[int]*Continuation)
		return nil
	}
	k.wake(changed)
	return nil
}

func recordAssertion(a AssertionResult) []AssertionResult {
	if a.Passed {
		return nil
	}
	return []AssertionResult{a}
}

func (k *SimKernel) scheduleSuspension(idx int, res ExecResult) {
	if res.Continuation == nil || res.Indefinite {
		return
	}
	if len(res.WakeOnSignals) > 0 {
		k.waiters = append(k.waiters, waiter{proc: idx, cont: res.Continuation, signals: res.WakeOnSignals})
		return
	}
	heap.Push(&k.queue, timeEvent{fs: res.WakeAtFs, seq: k.nextSeq(), proc: idx, cont: res.Continuation})
}

func (k *SimKernel) nextSeq() uint64 {
	k.seq++
	return k.seq
}

// commit merges this delta's pending updates into each touched
// signal's driver map, re-resolves Current via resolveDrivers (spec.md
// §4.5), streams every changed signal to the attached recorder (if
// any) at the current instant, and returns the set of signals whose
// resolved value changed. A recorder error is kept as a KindWaveformIO
// diagnostic and detaches the recorder; the simulation goes on.
func (k *SimKernel) commit(updates []PendingUpdate) ([]SimSignalId, error) {
	touched := make(map[SimSignalId]bool)
	for _, u := range updates {
		fs := k.state.Signal(u.Signal)
		if fs == nil {
			continue
		}
		fs.Drivers[u.Process] = Driver{Value: u.Value, Strength: u.Strength}
		touched[u.Signal] = true
	}

	var changed []SimSignalId
	for sid := range touched {
		fs := k.state.Signal(sid)
		drivers := make([]Driver, 0, len(fs.Drivers))
		for _, d := range fs.Drivers {
			drivers = append(drivers, d)
		}
		resolved := resolveDrivers(drivers, fs.Width)
		if !resolved.Equal(fs.Current) {
			fs.Previous = fs.Current
			fs.Current = resolved
			changed = append(changed, sid)
			if k.recorder != nil {
				if err := k.recorder.RecordChange(k.now.Fs, sid, resolved); err != nil {
					k.diagnostics = append(k.diagnostics, Diagnostic{
						Time: k.now, Kind: KindWaveformIO, Message: errors.Wrap(err, "recording waveform change").Error(),
					})
					k.recorder = nil
				}
			}
		}
	}
	return changed, nil
}

// wake schedules every process sensitive to a changed signal (edge
// processes only when their specific edge actually occurred) to run in
// the next delta at the same instant, and releases any StmtWait
// waiters whose sensitivity list intersects the changed set. SensAll
// processes re-run on any change, except initial processes, which run
// once and then only resume from their own suspensions.
func (k *SimKernel) wake(changed []SimSignalId) {
	if len(changed) == 0 {
		return
	}
	for _, sid := range changed {
		for _, idx := range k.state.Sensitivity[sid] {
			if k.processWoken(idx, sid) {
				k.active[idx] = k.activeContinuation(idx)
			}
		}
		for i := 0; i < len(k.waiters); {
			w := k.waiters[i]
			if containsSignal(w.signals, sid) {
				k.active[w.proc] = w.cont
				k.waiters = append(k.waiters[:i], k.waiters[i+1:]...)
				continue
			}
			i++
		}
	}
	for idx, p := range k.state.Processes {
		if p.Sensitivity.Kind == SensAll && p.Kind != ProcInitial {
			k.active[idx] = nil
		}
	}
}

// activeContinuation returns nil (meaning "run from Body") unless idx
// is already scheduled with a saved continuation from a prior wake
// this same delta, in which case that continuation is preserved.
func (k *SimKernel) activeContinuation(idx int) *Continuation {
	if c, ok := k.active[idx]; ok {
		return c
	}
	return nil
}

func containsSignal(list []SimSignalId, sid SimSignalId) bool {
	for _, s := range list {
		if s == sid {
			return true
		}
	}
	return false
}

// processWoken applies the edge filter for SensEdgeList processes:
// a posedge/negedge process only wakes if the changed signal actually
// transitioned in that direction, not merely changed.
func (k *SimKernel) processWoken(idx int, sid SimSignalId) bool {
	p := k.state.Processes[idx]
	if p.Sensitivity.Kind != SensEdgeList {
		return true
	}
	fs := k.state.Signal(sid)
	for _, e := range p.Sensitivity.Edges {
		if e.Signal != sid {
			continue
		}
		if edgeOccurred(fs.Previous, fs.Current, e.Edge) {
			return true
		}
	}
	return false
}

func edgeOccurred(prev, cur LogicVec, edge Edge) bool {
	if prev.Width() == 0 || cur.Width() == 0 {
		return false
	}
	p, c := prev.Get(0), cur.Get(0)
	switch edge {
	case EdgePos:
		return p == Zero && c == One
	case EdgeNeg:
		return p == One && c == Zero
	default:
		return p != c
	}
}

// RunUntil advances the simulation until the clock reaches targetFs,
// the kernel finishes, or no events remain pending, whichever comes
// first, honoring config.TimeLimitFs as an additional hard cap.
func (k *SimKernel) RunUntil(targetFs uint64) error {
	if !k.initialized {
		if err := k.Initialize(); err != nil {
			return err
		}
	}
	for !k.IsFinished() {
		if k.now.Fs >= targetFs && len(k.active) == 0 {
			break
		}
		if k.config.TimeLimitFs != nil && k.now.Fs >= *k.config.TimeLimitFs {
			break
		}
		more, err := k.StepDelta()
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	return nil
}

// SignalValue returns the current value of the named flat signal.
func (k *SimKernel) SignalValue(name string) (LogicVec, bool) {
	sid, ok := k.state.NameIndex[name]
	if !ok {
		return LogicVec{}, false
	}
	return k.state.Signal(sid).Current, true
}

// AllSignals returns a snapshot of every flattened signal's current
// value, in allocation order.
func (k *SimKernel) AllSignals() []SignalSnapshot {
	out := make([]SignalSnapshot, len(k.state.Signals))
	for i, fs := range k.state.Signals {
		out[i] = SignalSnapshot{ID: fs.ID, Name: fs.Name, Width: fs.Width, Kind: fs.Kind, Value: fs.Current}
	}
	return out
}

// TakeDisplayOutput drains and returns every $display line produced
// since the last call.
func (k *SimKernel) TakeDisplayOutput() []string {
	out := k.displayOutput
	k.displayOutput = nil
	return out
}

// TakeAssertionFailures drains and returns every failed assertion
// recorded since the last call.
func (k *SimKernel) TakeAssertionFailures() []AssertionResult {
	out := k.assertionFailures
	k.assertionFailures = nil
	return out
}

// TakeDiagnostics drains and returns every recoverable diagnostic
// (failed assertions, waveform recorder errors) recorded since the last
// call.
func (k *SimKernel) TakeDiagnostics() []Diagnostic {
	out := k.diagnostics
	k.diagnostics = nil
	return out
}

// HasPendingEvents reports whether any process is active this instant
// or any future time event remains queued.
func (k *SimKernel) HasPendingEvents() bool {
	return len(k.active) > 0 || k.queue.Len() > 0
}

// IsFinished reports whether $finish has executed or a fatal error has
// latched the kernel.
func (k *SimKernel) IsFinished() bool {
	return k.finished || k.fatal != nil
}

// NextEventTimeFs returns the femtosecond of the next queued time
// event, or false if the queue is empty.
func (k *SimKernel) NextEventTimeFs() (uint64, bool) {
	if k.queue.Len() == 0 {
		return 0, false
	}
	return k.queue[0].fs, true
}

func asSimError(err error, fallback ErrorKind) *SimError {
	var se *SimError
	if errors.As(err, &se) {
		return se
	}
	return &SimError{Kind: fallback, Err: err}
}
