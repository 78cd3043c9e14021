package aion

import "testing"

func TestRunProcessSimpleAssign(t *testing.T) {
	st := newTestState(sig(0, "out", 4, AllX(4)))
	body := StmtAssign{Target: RefSignal{Signal: 0}, Value: ExprLiteral{Value: FromUint64(5, 4)}}
	res := RunProcess(st, 0, TimeZero, body)
	if res.Outcome != ExecContinue {
		t.Fatalf("outcome = %v, want ExecContinue", res.Outcome)
	}
	if len(res.Updates) != 1 || res.Updates[0].Signal != 0 {
		t.Fatalf("updates = %v, want one update to signal 0", res.Updates)
	}
	got, _ := res.Updates[0].Value.Uint64()
	if got != 5 {
		t.Fatalf("update value = %v, want 5", got)
	}
	if res.Updates[0].Strength != Strong {
		t.Fatalf("update strength = %s, want Strong", res.Updates[0].Strength)
	}
}

func TestRunProcessDelaySuspendsAndResumes(t *testing.T) {
	st := newTestState(sig(0, "out", 1, AllX(1)))
	body := StmtDelay{
		DurationFs: 10,
		Body:       StmtAssign{Target: RefSignal{Signal: 0}, Value: ExprLiteral{Value: FromBool(true)}},
	}
	res := RunProcess(st, 0, AtFs(5), body)
	if res.Outcome != ExecSuspend {
		t.Fatalf("outcome = %v, want ExecSuspend", res.Outcome)
	}
	if res.WakeAtFs != 15 {
		t.Fatalf("WakeAtFs = %d, want 15 (5 + 10)", res.WakeAtFs)
	}
	if res.Continuation == nil {
		t.Fatal("expected a continuation to resume into")
	}

	resume := RunProcess(st, 0, AtFs(15), res.Continuation.Body)
	if resume.Outcome != ExecContinue {
		t.Fatalf("resume outcome = %v, want ExecContinue", resume.Outcome)
	}
	if len(resume.Updates) != 1 {
		t.Fatalf("resume updates = %v, want one update", resume.Updates)
	}
}

func TestRunProcessMidBlockSuspendResumesAtNextStatement(t *testing.T) {
	st := newTestState(sig(0, "a", 1, AllX(1)), sig(1, "b", 1, AllX(1)))
	body := StmtBlock{Stmts: []Statement{
		StmtAssign{Target: RefSignal{Signal: 0}, Value: ExprLiteral{Value: FromBool(true)}},
		StmtDelay{DurationFs: 1, Body: StmtNop{}},
		StmtAssign{Target: RefSignal{Signal: 1}, Value: ExprLiteral{Value: FromBool(true)}},
	}}
	res := RunProcess(st, 0, TimeZero, body)
	if res.Outcome != ExecSuspend {
		t.Fatalf("outcome = %v, want ExecSuspend", res.Outcome)
	}
	if len(res.Updates) != 1 || res.Updates[0].Signal != 0 {
		t.Fatalf("updates before suspend = %v, want just signal 0", res.Updates)
	}

	resume := RunProcess(st, 0, AtFs(1), res.Continuation.Body)
	if len(resume.Updates) != 1 || resume.Updates[0].Signal != 1 {
		t.Fatalf("updates after resume = %v, want just signal 1", resume.Updates)
	}
}

func TestRunProcessWaitIndefiniteWithEmptySignals(t *testing.T) {
	st := newTestState()
	res := RunProcess(st, 0, TimeZero, StmtWait{})
	if res.Outcome != ExecSuspend || !res.Indefinite {
		t.Fatalf("empty StmtWait should suspend indefinitely, got outcome=%v indefinite=%v", res.Outcome, res.Indefinite)
	}
}

func TestRunProcessWaitOnSignalList(t *testing.T) {
	st := newTestState()
	res := RunProcess(st, 0, TimeZero, StmtWait{Signals: []SignalID{3}})
	if res.Outcome != ExecSuspend || res.Indefinite {
		t.Fatalf("StmtWait with a sensitivity list should not be Indefinite, got %v", res)
	}
	if len(res.WakeOnSignals) != 1 || res.WakeOnSignals[0] != 3 {
		t.Fatalf("WakeOnSignals = %v, want [3]", res.WakeOnSignals)
	}
}

func TestRunProcessForeverRewritesContinuation(t *testing.T) {
	st := newTestState(sig(0, "clk", 1, FromBool(false)))
	body := StmtForever{Body: StmtDelay{
		DurationFs: 5,
		Body:       StmtAssign{Target: RefSignal{Signal: 0}, Value: ExprUnary{Op: OpNot, Operand: ExprSignal{Ref: RefSignal{Signal: 0}}, Width: 1}},
	}}
	res := RunProcess(st, 0, TimeZero, body)
	if res.Outcome != ExecSuspend {
		t.Fatalf("outcome = %v, want ExecSuspend", res.Outcome)
	}
	blk, ok := res.Continuation.Body.(StmtBlock)
	if !ok || len(blk.Stmts) != 2 {
		t.Fatalf("continuation body = %#v, want StmtBlock{delay body, StmtForever}", res.Continuation.Body)
	}
	if _, ok := blk.Stmts[1].(StmtForever); !ok {
		t.Fatalf("continuation tail = %T, want StmtForever re-entering the loop", blk.Stmts[1])
	}
}

func TestRunProcessAssertionFailure(t *testing.T) {
	st := newTestState()
	res := RunProcess(st, 0, TimeZero, StmtAssertion{Kind: AssertAssert, Condition: ExprLiteral{Value: FromBool(false)}, Message: "bad"})
	if res.Outcome != ExecAssertionFailed {
		t.Fatalf("outcome = %v, want ExecAssertionFailed", res.Outcome)
	}
	if res.AssertionMessage != "bad" {
		t.Fatalf("AssertionMessage = %q, want %q", res.AssertionMessage, "bad")
	}
}

func TestRunProcessAssertionUndefinedConditionDoesNotFail(t *testing.T) {
	st := newTestState()
	res := RunProcess(st, 0, TimeZero, StmtAssertion{Kind: AssertAssert, Condition: ExprLiteral{Value: AllX(1)}})
	if res.Outcome != ExecContinue {
		t.Fatalf("outcome = %v, want ExecContinue (X condition is not definitely false)", res.Outcome)
	}
}

func TestRunProcessFinishStopsBlockButKeepsPriorUpdates(t *testing.T) {
	st := newTestState(sig(0, "a", 1, AllX(1)), sig(1, "b", 1, AllX(1)))
	body := StmtBlock{Stmts: []Statement{
		StmtAssign{Target: RefSignal{Signal: 0}, Value: ExprLiteral{Value: FromBool(true)}},
		StmtFinish{},
		StmtAssign{Target: RefSignal{Signal: 1}, Value: ExprLiteral{Value: FromBool(true)}},
	}}
	res := RunProcess(st, 0, TimeZero, body)
	if res.Outcome != ExecFinished {
		t.Fatalf("outcome = %v, want ExecFinished", res.Outcome)
	}
	if len(res.Updates) != 1 || res.Updates[0].Signal != 0 {
		t.Fatalf("updates = %v, want only the assignment before $finish", res.Updates)
	}
}

func TestEmitSliceOverlaysOntoLastDrivenValue(t *testing.T) {
	st := newTestState(sig(0, "bus", 4, FromUint64(0b1111, 4)))
	body := StmtAssign{Target: RefSlice{Signal: 0, Hi: 1, Lo: 0}, Value: ExprLiteral{Value: FromUint64(0b00, 2)}}
	res := RunProcess(st, 0, TimeZero, body)
	got, ok := res.Updates[0].Value.Uint64()
	if !ok || got != 0b1100 {
		t.Fatalf("slice-assigned update = %v, want 0b1100 (high bits preserved)", got)
	}
}

func TestDisplayStatementAccumulates(t *testing.T) {
	st := newTestState(sig(0, "x", 4, FromUint64(9, 4)))
	body := StmtDisplay{Format: "x=%d", Args: []Expr{ExprSignal{Ref: RefSignal{Signal: 0}}}}
	res := RunProcess(st, 0, TimeZero, body)
	if len(res.Display) != 1 || res.Display[0] != "x=9" {
		t.Fatalf("display = %v, want [\"x=9\"]", res.Display)
	}
}
