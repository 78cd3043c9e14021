package aion

// PendingUpdate is one signal write a process wants to apply. Updates
// are gathered for the whole process body before any of them commit
// (spec.md §4.3 "non-blocking" rule), so a process reading a signal it
// also assigns always sees the pre-update value within the same pass.
type PendingUpdate struct {
	Process  int
	Signal   SimSignalId
	Value    LogicVec
	Strength DriveStrength
}

// AssertionResult records the outcome of one assert/assume/cover check.
type AssertionResult struct {
	Time    SimTime
	Kind    AssertionKind
	Passed  bool
	Message string
}

// Continuation captures where a suspended process resumes. Body is the
// remaining statement to execute once woken; for a Forever loop or a
// mid-block suspension this is a synthetic StmtBlock built by the
// rewrite helpers below, not the original process body.
type Continuation struct {
	Body Statement
}

// ExecOutcome is the closed sum of ways a statement execution pass can
// end, mirroring spec.md §4.3's ExecResult.
type ExecOutcome int

const (
	ExecContinue ExecOutcome = iota
	ExecFinished
	ExecAssertionFailed
	ExecSuspend
)

// ExecResult is the result of running a process body to its next
// suspension point (or to completion).
type ExecResult struct {
	Outcome ExecOutcome

	// WakeAtFs and Continuation are set when Outcome == ExecSuspend and
	// the suspension is time-based (Delay/Forever). WakeOnSignals is set
	// instead when the suspension is a Wait with an explicit sensitivity
	// list; both are absent for an indefinite Wait (empty Signals),
	// which nothing in the kernel resumes.
	WakeAtFs      uint64
	WakeOnSignals []SimSignalId
	// Indefinite marks a Wait with no sensitivity list: nothing in the
	// kernel's event model can resume it automatically.
	Indefinite   bool
	Continuation *Continuation

	AssertionMessage string

	Updates    []PendingUpdate
	Display    []string
	Assertions []AssertionResult
}

// execContext threads the mutable accumulators of one executor pass.
type execContext struct {
	st       *SimState
	process  int
	now      SimTime
	updates  []PendingUpdate
	display  []string
	asserts  []AssertionResult
	finished bool

	// pending tracks the full-width value this pass has already staged
	// for a signal, so a later slice write in the same body composes
	// onto what an earlier statement just wrote rather than the stale
	// value from before this process ran (spec.md §8 "multiple slice
	// assignments ... collapse into one waveform record per delta,
	// whose value matches the overlay of all slices").
	pending map[SimSignalId]LogicVec
}

// RunProcess executes body (either a process's full Body, or a saved
// Continuation.Body from a prior suspension) against st, returning
// every pending update/display/assertion produced before the next
// suspension, $finish, or a failed assertion (spec.md §4.3).
func RunProcess(st *SimState, processIndex int, now SimTime, body Statement) ExecResult {
	ctx := &execContext{st: st, process: processIndex, now: now}
	outcome, susp := ctx.exec(body)

	res := ExecResult{
		Outcome:    outcome,
		Updates:    ctx.updates,
		Display:    ctx.display,
		Assertions: ctx.asserts,
	}
	if susp != nil {
		res.WakeAtFs = susp.wakeAtFs
		res.WakeOnSignals = susp.wakeOnSignals
		res.Indefinite = susp.indefinite
		res.Continuation = susp.cont
	}
	if outcome == ExecAssertionFailed {
		res.AssertionMessage = ctx.asserts[len(ctx.asserts)-1].Message
	}
	return res
}

// suspension describes why exec stopped early without finishing.
type suspension struct {
	wakeAtFs      uint64
	wakeOnSignals []SimSignalId
	indefinite    bool
	cont          *Continuation
}

// exec runs s to completion or to its first suspension point. The
// returned Statement (when non-nil, inside suspension.cont) is what
// must run on resume — for StmtBlock this is the suspended statement's
// own continuation followed by the tail of the block after it, so a
// mid-block wait resumes exactly where it left off rather than
// re-running from the top.
func (c *execContext) exec(s Statement) (ExecOutcome, *suspension) {
	switch v := s.(type) {
	case nil, StmtNop:
		return ExecContinue, nil

	case StmtAssign:
		val := Eval(v.Value, c.st)
		c.emit(v.Target, val)
		return ExecContinue, nil

	case StmtIf:
		truth, definite := logicIsTrue(Eval(v.Cond, c.st))
		if !definite {
			// Undefined branch condition: neither branch executes,
			// matching the reference evaluator's conservative policy
			// for X/Z in a control-flow position.
			return ExecContinue, nil
		}
		if truth {
			return c.exec(v.Then)
		}
		if v.Else != nil {
			return c.exec(v.Else)
		}
		return ExecContinue, nil

	case StmtCase:
		subject := Eval(v.Subject, c.st)
		for _, arm := range v.Arms {
			for _, pat := range arm.Patterns {
				if Eval(pat, c.st).Equal(subject) {
					return c.exec(arm.Body)
				}
			}
		}
		if v.Default != nil {
			return c.exec(v.Default)
		}
		return ExecContinue, nil

	case StmtBlock:
		for i, stmt := range v.Stmts {
			outcome, susp := c.exec(stmt)
			if susp != nil {
				if rest := v.Stmts[i+1:]; len(rest) > 0 {
					susp.cont = &Continuation{Body: StmtBlock{Stmts: append([]Statement{susp.cont.Body}, rest...)}}
				}
				return outcome, susp
			}
			if outcome != ExecContinue {
				return outcome, nil
			}
		}
		return ExecContinue, nil

	case StmtWait:
		if len(v.Signals) == 0 {
			return ExecSuspend, &suspension{indefinite: true, cont: &Continuation{Body: StmtNop{}}}
		}
		return ExecSuspend, &suspension{wakeOnSignals: v.Signals, cont: &Continuation{Body: StmtNop{}}}

	case StmtAssertion:
		return c.execAssertion(v)

	case StmtDisplay:
		args := make([]LogicVec, len(v.Args))
		for i, a := range v.Args {
			args[i] = Eval(a, c.st)
		}
		c.display = append(c.display, FormatDisplay(v.Format, args))
		return ExecContinue, nil

	case StmtFinish:
		c.finished = true
		return ExecFinished, nil

	case StmtDelay:
		return ExecSuspend, &suspension{wakeAtFs: c.now.Fs + v.DurationFs, cont: &Continuation{Body: v.Body}}

	case StmtForever:
		outcome, susp := c.exec(v.Body)
		if susp == nil {
			if outcome != ExecContinue {
				return outcome, nil
			}
			// A Forever body that never suspends is a zero-time
			// infinite loop; the scheduler enforces the delta-cycle
			// limit (spec.md §4.4), so iterate once per exec call
			// rather than looping here.
			return ExecSuspend, &suspension{wakeAtFs: c.now.Fs, cont: &Continuation{Body: v}}
		}
		susp.cont = &Continuation{Body: StmtBlock{Stmts: []Statement{susp.cont.Body, v}}}
		return outcome, susp

	default:
		return ExecContinue, nil
	}
}

func (c *execContext) execAssertion(v StmtAssertion) (ExecOutcome, *suspension) {
	truth, definite := logicIsTrue(Eval(v.Condition, c.st))
	// Only a definitely-false condition fails; an X/Z condition does not.
	passed := truth || !definite
	c.asserts = append(c.asserts, AssertionResult{
		Time: c.now, Kind: v.Kind, Passed: passed, Message: v.Message,
	})
	if v.Kind == AssertAssert && !passed {
		return ExecAssertionFailed, nil
	}
	return ExecContinue, nil
}

// emit resolves a possibly-compound target reference (whole signal,
// slice, or concatenation) into one or more PendingUpdates, rebuilding
// a full-width driven value for slice targets by overlaying the write
// onto the signal's last-driven value from this same process.
func (c *execContext) emit(target SignalRef, value LogicVec) {
	switch v := target.(type) {
	case RefSignal:
		c.pushUpdate(v.Signal, value.ZeroExtend(c.st.SignalWidth(v.Signal)))
	case RefSlice:
		fs := c.st.Signal(v.Signal)
		if fs == nil {
			return
		}
		base := fs.Current
		if d, ok := fs.Drivers[c.process]; ok {
			base = d.Value
		}
		if staged, ok := c.pending[v.Signal]; ok {
			base = staged
		}
		c.pushUpdate(v.Signal, overlaySlice(base, v.Hi, v.Lo, value))
	case RefConcat:
		lo := 0
		for i := len(v.Parts) - 1; i >= 0; i-- {
			w := RefWidth(v.Parts[i], c.st.SignalWidth)
			c.emit(v.Parts[i], value.Slice(lo+w-1, lo))
			lo += w
		}
	}
}

func (c *execContext) pushUpdate(sig SimSignalId, value LogicVec) {
	c.updates = append(c.updates, PendingUpdate{
		Process: c.process, Signal: sig, Value: value, Strength: Strong,
	})
	if c.pending == nil {
		c.pending = make(map[SimSignalId]LogicVec)
	}
	c.pending[sig] = value
}
