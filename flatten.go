package aion

// SimSignalId is a dense integer assigned by the flattener, stable for
// the lifetime of a SimState. It reuses the SignalID type: after
// flattening, every SignalRef embedded in a Statement/Expr has had its
// SignalID rewritten from a module-local id to this flat id.
type SimSignalId = SignalID

// FlatSignal is one flattened signal: its declared shape plus the
// mutable simulation state the scheduler and driver resolution read
// and write (current/previous value, accumulated drivers).
type FlatSignal struct {
	ID      SimSignalId
	Name    string // fully qualified, '.'-joined
	Width   int
	Kind    SignalKind
	Current LogicVec
	Previous LogicVec

	// Drivers maps an owning process index to the last value/strength
	// it drove this signal with. Entries persist across deltas per
	// spec.md §4.5 ("drivers that did not write keep their last
	// value"); only resolveDrivers reads this to compute Current.
	Drivers map[int]Driver
}

// SimProcess is a flattened process: its IR kind, sensitivity (already
// rewritten to flat signal ids) and statement body (same).
type SimProcess struct {
	Index       int
	Name        string
	Kind        ProcessKind
	Body        Statement
	Sensitivity Sensitivity
}

// SimState is the flattener's output: the complete, flat simulation
// model the kernel schedules over. It owns every FlatSignal and
// SimProcess; everything else (events, suspensions) refers to them by
// index.
type SimState struct {
	Signals   []*FlatSignal
	Processes []*SimProcess

	// Sensitivity maps a flat signal id to the indices of processes
	// that must be considered for re-execution when that signal
	// changes (the edge check, if any, happens at schedule time).
	Sensitivity map[SimSignalId][]int

	// NameIndex resolves a fully-qualified signal name back to its
	// flat id, for signal_value(name) queries.
	NameIndex map[string]SimSignalId

	nextID SimSignalId
}

// SignalWidth returns the width of a flat signal id, for use with
// RefWidth after flattening. Unknown ids report width 0.
func (s *SimState) SignalWidth(id SimSignalId) int {
	if int(id) < 0 || int(id) >= len(s.Signals) {
		return 0
	}
	return s.Signals[id].Width
}

// Signal returns the flat signal with the given id, or nil if unknown.
func (s *SimState) Signal(id SimSignalId) *FlatSignal {
	if int(id) < 0 || int(id) >= len(s.Signals) {
		return nil
	}
	return s.Signals[id]
}

func (s *SimState) alloc(name string, width int, kind SignalKind, init LogicVec) *FlatSignal {
	fs := &FlatSignal{
		ID:       s.nextID,
		Name:     name,
		Width:    width,
		Kind:     kind,
		Current:  init,
		Previous: init,
		Drivers:  make(map[int]Driver),
	}
	s.Signals = append(s.Signals, fs)
	s.NameIndex[name] = fs.ID
	s.nextID++
	return fs
}

// Flatten walks the elaborated design (spec.md §4.1) and produces a
// flat SimState: every local signal gets a fresh SimSignalId, and
// instance port connections that reference a whole signal unify the
// outer and inner ids directly (zero-copy wiring, grounded on
// chip.go/wiring.go's union-find-style id substitution in the teacher
// repo). Port connections to a slice, concatenation or constant cannot
// be unified this way; they fall back to a synthetic continuous
// assignment wiring the two independently allocated signals together.
func Flatten(d *Design) (*SimState, error) {
	top, err := d.TopModule()
	if err != nil {
		return nil, err
	}
	st := &SimState{
		Sensitivity: make(map[SimSignalId][]int),
		NameIndex:   make(map[string]SimSignalId),
	}
	visiting := make(map[ModuleID]bool)
	if err := flattenModule(st, d, top, "", nil, visiting); err != nil {
		return nil, err
	}
	buildSensitivity(st)
	return st, nil
}

// flattenModule recursively flattens m, which is instantiated under
// name prefix `scope` (empty for the top module). idMap maps m's
// local SignalIDs to already-allocated flat ids for signals that were
// unified with a parent port; signals not present in idMap are fresh
// to this instance and get newly allocated flat ids.
func flattenModule(st *SimState, d *Design, m *Module, scope string, idMap map[SignalID]SimSignalId, visiting map[ModuleID]bool) error {
	if visiting[m.ID] {
		return newSimError(KindInternal, "cycle in instance graph at module %d", m.ID)
	}
	visiting[m.ID] = true
	defer delete(visiting, m.ID)

	local := make(map[SignalID]SimSignalId, len(m.Signals))
	for k, v := range idMap {
		local[k] = v
	}

	for _, sig := range m.Signals {
		if _, ok := local[sig.ID]; ok {
			continue // unified with an outer signal by a port connection
		}
		qualified := sig.Name
		if scope != "" {
			qualified = scope + "." + sig.Name
		}
		init := defaultInit(sig)
		fs := st.alloc(qualified, sig.Width, sig.Kind, init)
		local[sig.ID] = fs.ID
	}

	for _, a := range m.Assignments {
		proc := &SimProcess{
			Kind: ProcCombinational,
			Body: StmtAssign{Target: rewriteRef(a.Target, local), Value: rewriteExpr(a.Value, local)},
			Sensitivity: Sensitivity{
				Kind:    SensSignalList,
				Signals: readSignals(a.Value),
			},
		}
		appendProcess(st, proc)
	}

	for _, p := range m.Processes {
		proc := &SimProcess{
			Name: p.Name,
			Kind: p.Kind,
			Body: rewriteStmt(p.Body, local),
			Sensitivity: rewriteSensitivity(p.Sensitivity, local),
		}
		appendProcess(st, proc)
	}

	for _, cell := range m.Cells {
		inst, ok := cell.Kind.(CellInstance)
		if !ok {
			if err := flattenBlackBox(st, cell, local); err != nil {
				return err
			}
			continue
		}
		child, ok := d.ModuleByID(inst.Module)
		if !ok {
			return ErrModuleNotFound(int(inst.Module))
		}
		childScope := cell.Name
		if scope != "" {
			childScope = scope + "." + cell.Name
		}
		childIDMap, extraAssigns, err := bindPorts(st, child, cell, local)
		if err != nil {
			return err
		}
		for _, a := range extraAssigns {
			appendProcess(st, a)
		}
		if err := flattenModule(st, d, child, childScope, childIDMap, visiting); err != nil {
			return err
		}
	}
	return nil
}

func appendProcess(st *SimState, p *SimProcess) {
	p.Index = len(st.Processes)
	st.Processes = append(st.Processes, p)
}

// defaultInit applies spec.md §4.1 step 2's defaulting rule.
func defaultInit(sig Signal) LogicVec {
	if sig.Init != nil {
		return sig.Init.Clone()
	}
	switch sig.Kind {
	case KindReg, KindLatch:
		return AllX(sig.Width)
	case KindConst:
		return AllZero(sig.Width)
	default:
		return AllZ(sig.Width)
	}
}

// bindPorts resolves a cell's port connections against the child
// module's port list. Whole-signal connections unify ids directly;
// anything else allocates a fresh id for the child port and returns a
// synthetic wiring assignment.
func bindPorts(st *SimState, child *Module, cell Cell, parentIDs map[SignalID]SimSignalId) (map[SignalID]SimSignalId, []*SimProcess, error) {
	childIDs := make(map[SignalID]SimSignalId, len(child.Ports))
	var extra []*SimProcess

	byName := make(map[string]Connection, len(cell.Connections))
	for _, c := range cell.Connections {
		byName[c.PortName] = c
	}

	for _, port := range child.Ports {
		conn, ok := byName[port.Name]
		if !ok {
			continue // unconnected port: child signal gets its own fresh id, default init
		}
		if whole, ok := conn.Signal.(RefSignal); ok {
			flat, ok := parentIDs[whole.Signal]
			if !ok {
				return nil, nil, newSimError(KindInternal, "unresolved parent signal for port %s", port.Name)
			}
			childIDs[port.Signal] = flat
			continue
		}

		portSig := findSignal(child, port.Signal)
		qualified := "$port." + cell.Name + "." + port.Name
		fs := st.alloc(qualified, portSig.Width, portSig.Kind, defaultInit(*portSig))
		childIDs[port.Signal] = fs.ID

		switch port.Direction {
		case DirIn:
			extra = append(extra, &SimProcess{
				Kind: ProcCombinational,
				Body: StmtAssign{
					Target: RefSignal{Signal: fs.ID},
					Value:  ExprSignal{Ref: rewriteRef(conn.Signal, parentIDs)},
				},
				Sensitivity: Sensitivity{Kind: SensSignalList, Signals: signalRefReads(rewriteRef(conn.Signal, parentIDs))},
			})
		default: // out, inout: drive the parent-side reference from the port
			extra = append(extra, &SimProcess{
				Kind: ProcCombinational,
				Body: StmtAssign{
					Target: rewriteRef(conn.Signal, parentIDs),
					Value:  ExprSignal{Ref: RefSignal{Signal: fs.ID}},
				},
				Sensitivity: Sensitivity{Kind: SensSignalList, Signals: []SignalID{fs.ID}},
			})
		}
	}
	return childIDs, extra, nil
}

func findSignal(m *Module, id SignalID) *Signal {
	for i := range m.Signals {
		if m.Signals[i].ID == id {
			return &m.Signals[i]
		}
	}
	return &Signal{ID: id, Width: 1, Kind: KindWire}
}

// flattenBlackBox surfaces an unresolved/unsupported cell per
// spec.md §4.1: its output connections resolve to all-X drivers.
func flattenBlackBox(st *SimState, cell Cell, parentIDs map[SignalID]SimSignalId) error {
	for _, conn := range cell.Connections {
		if conn.Direction == DirIn {
			continue
		}
		ref := rewriteRef(conn.Signal, parentIDs)
		w := RefWidth(ref, st.SignalWidth)
		appendProcess(st, &SimProcess{
			Kind:        ProcCombinational,
			Body:        StmtAssign{Target: ref, Value: ExprLiteral{Value: AllX(w)}},
			Sensitivity: Sensitivity{Kind: SensAll},
		})
	}
	return nil
}

func buildSensitivity(st *SimState) {
	for _, p := range st.Processes {
		switch p.Sensitivity.Kind {
		case SensSignalList:
			for _, sid := range p.Sensitivity.Signals {
				st.Sensitivity[sid] = append(st.Sensitivity[sid], p.Index)
			}
		case SensEdgeList:
			for _, e := range p.Sensitivity.Edges {
				st.Sensitivity[e.Signal] = append(st.Sensitivity[e.Signal], p.Index)
			}
		case SensAll:
			// SensAll processes other than initial ones are woken
			// explicitly by the scheduler whenever any signal changes
			// (spec.md §4.4 step 3); they
			// need no entry in the per-signal sensitivity index.
		}
	}
}

// --- id-rewriting (module-local SignalID -> flat SimSignalId) ---

func rewriteRef(r SignalRef, idMap map[SignalID]SimSignalId) SignalRef {
	switch v := r.(type) {
	case RefSignal:
		if flat, ok := idMap[v.Signal]; ok {
			return RefSignal{Signal: flat}
		}
		return v
	case RefSlice:
		flat := v.Signal
		if f, ok := idMap[v.Signal]; ok {
			flat = f
		}
		return RefSlice{Signal: flat, Hi: v.Hi, Lo: v.Lo}
	case RefConcat:
		parts := make([]SignalRef, len(v.Parts))
		for i, p := range v.Parts {
			parts[i] = rewriteRef(p, idMap)
		}
		return RefConcat{Parts: parts}
	case RefConst:
		return v
	default:
		return r
	}
}

func rewriteExpr(e Expr, idMap map[SignalID]SimSignalId) Expr {
	if e == nil {
		return nil
	}
	switch v := e.(type) {
	case ExprSignal:
		return ExprSignal{Ref: rewriteRef(v.Ref, idMap)}
	case ExprLiteral:
		return v
	case ExprUnary:
		return ExprUnary{Op: v.Op, Operand: rewriteExpr(v.Operand, idMap), Width: v.Width}
	case ExprBinary:
		return ExprBinary{Op: v.Op, LHS: rewriteExpr(v.LHS, idMap), RHS: rewriteExpr(v.RHS, idMap), Width: v.Width}
	case ExprTernary:
		return ExprTernary{Cond: rewriteExpr(v.Cond, idMap), TrueVal: rewriteExpr(v.TrueVal, idMap), FalseVal: rewriteExpr(v.FalseVal, idMap), Width: v.Width}
	case ExprFuncCall:
		args := make([]Expr, len(v.Args))
		for i, a := range v.Args {
			args[i] = rewriteExpr(a, idMap)
		}
		return ExprFuncCall{Name: v.Name, Args: args, Width: v.Width}
	case ExprConcat:
		parts := make([]Expr, len(v.Parts))
		for i, p := range v.Parts {
			parts[i] = rewriteExpr(p, idMap)
		}
		return ExprConcat{Parts: parts}
	case ExprRepeat:
		return ExprRepeat{Expr: rewriteExpr(v.Expr, idMap), Count: v.Count}
	case ExprIndex:
		return ExprIndex{Expr: rewriteExpr(v.Expr, idMap), Index: rewriteExpr(v.Index, idMap)}
	case ExprSlice:
		return ExprSlice{Expr: rewriteExpr(v.Expr, idMap), Hi: rewriteExpr(v.Hi, idMap), Lo: rewriteExpr(v.Lo, idMap)}
	default:
		return e
	}
}

func rewriteStmt(s Statement, idMap map[SignalID]SimSignalId) Statement {
	if s == nil {
		return nil
	}
	switch v := s.(type) {
	case StmtAssign:
		return StmtAssign{Target: rewriteRef(v.Target, idMap), Value: rewriteExpr(v.Value, idMap)}
	case StmtIf:
		var elseS Statement
		if v.Else != nil {
			elseS = rewriteStmt(v.Else, idMap)
		}
		return StmtIf{Cond: rewriteExpr(v.Cond, idMap), Then: rewriteStmt(v.Then, idMap), Else: elseS}
	case StmtCase:
		arms := make([]CaseArm, len(v.Arms))
		for i, a := range v.Arms {
			pats := make([]Expr, len(a.Patterns))
			for j, p := range a.Patterns {
				pats[j] = rewriteExpr(p, idMap)
			}
			arms[i] = CaseArm{Patterns: pats, Body: rewriteStmt(a.Body, idMap)}
		}
		var def Statement
		if v.Default != nil {
			def = rewriteStmt(v.Default, idMap)
		}
		return StmtCase{Subject: rewriteExpr(v.Subject, idMap), Arms: arms, Default: def}
	case StmtBlock:
		stmts := make([]Statement, len(v.Stmts))
		for i, c := range v.Stmts {
			stmts[i] = rewriteStmt(c, idMap)
		}
		return StmtBlock{Stmts: stmts}
	case StmtWait:
		sigs := make([]SignalID, len(v.Signals))
		for i, sid := range v.Signals {
			if f, ok := idMap[sid]; ok {
				sigs[i] = f
			} else {
				sigs[i] = sid
			}
		}
		return StmtWait{Signals: sigs}
	case StmtAssertion:
		return StmtAssertion{Kind: v.Kind, Condition: rewriteExpr(v.Condition, idMap), Message: v.Message}
	case StmtDisplay:
		args := make([]Expr, len(v.Args))
		for i, a := range v.Args {
			args[i] = rewriteExpr(a, idMap)
		}
		return StmtDisplay{Format: v.Format, Args: args}
	case StmtFinish:
		return v
	case StmtDelay:
		return StmtDelay{DurationFs: v.DurationFs, Body: rewriteStmt(v.Body, idMap)}
	case StmtForever:
		return StmtForever{Body: rewriteStmt(v.Body, idMap)}
	case StmtNop:
		return v
	default:
		return s
	}
}

func rewriteSensitivity(s Sensitivity, idMap map[SignalID]SimSignalId) Sensitivity {
	switch s.Kind {
	case SensEdgeList:
		edges := make([]EdgeSensitivity, len(s.Edges))
		for i, e := range s.Edges {
			flat := e.Signal
			if f, ok := idMap[e.Signal]; ok {
				flat = f
			}
			edges[i] = EdgeSensitivity{Signal: flat, Edge: e.Edge}
		}
		return Sensitivity{Kind: SensEdgeList, Edges: edges}
	case SensSignalList:
		sigs := make([]SignalID, len(s.Signals))
		for i, sid := range s.Signals {
			if f, ok := idMap[sid]; ok {
				sigs[i] = f
			} else {
				sigs[i] = sid
			}
		}
		return Sensitivity{Kind: SensSignalList, Signals: sigs}
	default:
		return Sensitivity{Kind: SensAll}
	}
}

// signalRefReads returns the signal ids read by a SignalRef (used to
// build a wiring assignment's sensitivity list).
func signalRefReads(r SignalRef) []SignalID {
	switch v := r.(type) {
	case RefSignal:
		return []SignalID{v.Signal}
	case RefSlice:
		return []SignalID{v.Signal}
	case RefConcat:
		var out []SignalID
		for _, p := range v.Parts {
			out = append(out, signalRefReads(p)...)
		}
		return out
	default:
		return nil
	}
}

// readSignals collects every signal id read by an expression, used to
// build the sensitivity list of a synthetic continuous-assignment
// process (spec.md §4.1 step 4).
func readSignals(e Expr) []SignalID {
	if e == nil {
		return nil
	}
	switch v := e.(type) {
	case ExprSignal:
		return signalRefReads(v.Ref)
	case ExprUnary:
		return readSignals(v.Operand)
	case ExprBinary:
		return append(readSignals(v.LHS), readSignals(v.RHS)...)
	case ExprTernary:
		out := readSignals(v.Cond)
		out = append(out, readSignals(v.TrueVal)...)
		out = append(out, readSignals(v.FalseVal)...)
		return out
	case ExprFuncCall:
		var out []SignalID
		for _, a := range v.Args {
			out = append(out, readSignals(a)...)
		}
		return out
	case ExprConcat:
		var out []SignalID
		for _, p := range v.Parts {
			out = append(out, readSignals(p)...)
		}
		return out
	case ExprRepeat:
		return readSignals(v.Expr)
	case ExprIndex:
		return append(readSignals(v.Expr), readSignals(v.Index)...)
	case ExprSlice:
		out := readSignals(v.Expr)
		out = append(out, readSignals(v.Hi)...)
		out = append(out, readSignals(v.Lo)...)
		return out
	default:
		return nil
	}
}
