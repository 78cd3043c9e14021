package aion

import "testing"

func TestFlattenSimpleModuleAllocatesFreshIds(t *testing.T) {
	a := Signal{ID: 0, Name: "a", Width: 4, Kind: KindReg}
	b := Signal{ID: 1, Name: "b", Width: 4, Kind: KindWire}
	m := Module{ID: 0, Name: "top", Signals: []Signal{a, b}}
	design := &Design{Modules: []Module{m}, Top: 0}

	st, err := Flatten(design)
	if err != nil {
		t.Fatal(err)
	}
	if len(st.Signals) != 2 {
		t.Fatalf("len(Signals) = %d, want 2", len(st.Signals))
	}
	if st.Signals[0].Name != "a" || st.Signals[1].Name != "b" {
		t.Fatalf("names = %q, %q, want a, b", st.Signals[0].Name, st.Signals[1].Name)
	}
	if st.NameIndex["a"] != st.Signals[0].ID || st.NameIndex["b"] != st.Signals[1].ID {
		t.Fatal("NameIndex not populated correctly")
	}
}

func TestFlattenDefaultInitPerKind(t *testing.T) {
	reg := Signal{ID: 0, Name: "r", Width: 3, Kind: KindReg}
	wire := Signal{ID: 1, Name: "w", Width: 3, Kind: KindWire}
	cst := Signal{ID: 2, Name: "c", Width: 3, Kind: KindConst}
	m := Module{ID: 0, Name: "top", Signals: []Signal{reg, wire, cst}}
	design := &Design{Modules: []Module{m}, Top: 0}

	st, err := Flatten(design)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Signal(st.NameIndex["r"]).Current.HasXZ() {
		t.Fatal("uninitialized reg should default to all-X")
	}
	if got, ok := st.Signal(st.NameIndex["c"]).Current.Uint64(); !ok || got != 0 {
		t.Fatal("uninitialized const should default to all-zero")
	}
	wv := st.Signal(st.NameIndex["w"]).Current
	for i := 0; i < wv.Width(); i++ {
		if wv.Get(i) != Z {
			t.Fatal("uninitialized wire should default to all-Z")
		}
	}
}

func TestFlattenExplicitInitOverridesDefault(t *testing.T) {
	init := FromUint64(5, 4)
	reg := Signal{ID: 0, Name: "r", Width: 4, Kind: KindReg, Init: &init}
	m := Module{ID: 0, Name: "top", Signals: []Signal{reg}}
	design := &Design{Modules: []Module{m}, Top: 0}

	st, err := Flatten(design)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := st.Signal(st.NameIndex["r"]).Current.Uint64()
	if !ok || got != 5 {
		t.Fatal("explicit Init should override the Reg default of all-X")
	}
}

// TestFlattenWholeSignalPortUnifiesIds checks that a whole-signal port
// connection on a child instance shares the parent's flat id rather
// than allocating a separate one (no synthetic wiring assignment).
func TestFlattenWholeSignalPortUnifiesIds(t *testing.T) {
	childIn := Signal{ID: 0, Name: "x", Width: 1, Kind: KindPort}
	child := Module{
		ID:      1,
		Name:    "child",
		Signals: []Signal{childIn},
		Ports:   []Port{{Name: "x", Direction: DirIn, Signal: 0}},
	}

	parentSig := Signal{ID: 0, Name: "a", Width: 1, Kind: KindReg, Init: zeroInit()}
	cell := Cell{
		ID:   0,
		Name: "inst",
		Kind: CellInstance{Module: 1},
		Connections: []Connection{
			{PortName: "x", Direction: DirIn, Signal: RefSignal{Signal: 0}},
		},
	}
	top := Module{ID: 0, Name: "top", Signals: []Signal{parentSig}, Cells: []Cell{cell}}
	design := &Design{Modules: []Module{top, child}, Top: 0}

	st, err := Flatten(design)
	if err != nil {
		t.Fatal(err)
	}
	// Whole-signal binding unifies ids: only the parent signal "a" is
	// allocated, no synthetic "$port.inst.x" wire.
	if len(st.Signals) != 1 {
		t.Fatalf("len(Signals) = %d, want 1 (unified port binding)", len(st.Signals))
	}
	if _, ok := st.NameIndex["$port.inst.x"]; ok {
		t.Fatal("whole-signal port binding should not allocate a synthetic port wire")
	}
}

// TestFlattenNonWholeSignalPortAllocatesSyntheticWiring checks that a
// non-whole-signal port connection (here, a constant) allocates a
// fresh child-side signal plus a wiring assignment process.
func TestFlattenNonWholeSignalPortAllocatesSyntheticWiring(t *testing.T) {
	childIn := Signal{ID: 0, Name: "x", Width: 1, Kind: KindPort}
	child := Module{
		ID:      1,
		Name:    "child",
		Signals: []Signal{childIn},
		Ports:   []Port{{Name: "x", Direction: DirIn, Signal: 0}},
	}
	cell := Cell{
		ID:   0,
		Name: "inst",
		Kind: CellInstance{Module: 1},
		Connections: []Connection{
			{PortName: "x", Direction: DirIn, Signal: RefConst{Value: FromBool(true)}},
		},
	}
	top := Module{ID: 0, Name: "top", Cells: []Cell{cell}}
	design := &Design{Modules: []Module{top, child}, Top: 0}

	st, err := Flatten(design)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := st.NameIndex["$port.inst.x"]; !ok {
		t.Fatal("a non-whole-signal port connection should allocate a synthetic port signal")
	}
	// The synthetic wiring assignment should be a process driving the
	// port's id from the constant, and thus evaluate to One after
	// Initialize's forced propagation pass.
	k, err := NewSimKernel(design, DefaultSimConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := k.Initialize(); err != nil {
		t.Fatal(err)
	}
	portID := st.NameIndex["$port.inst.x"]
	if k.state.Signal(portID).Current.Get(0) != One {
		t.Fatal("synthetic port wiring did not propagate the constant")
	}
}

func TestFlattenBlackBoxCellDrivesAllX(t *testing.T) {
	out := Signal{ID: 0, Name: "out", Width: 4, Kind: KindWire}
	cell := Cell{
		ID:   0,
		Name: "mystery",
		Kind: CellBlackBox{PortNames: []string{"out"}},
		Connections: []Connection{
			{PortName: "out", Direction: DirOut, Signal: RefSignal{Signal: 0}},
		},
	}
	m := Module{ID: 0, Name: "top", Signals: []Signal{out}, Cells: []Cell{cell}}
	design := &Design{Modules: []Module{m}, Top: 0}

	k, err := NewSimKernel(design, DefaultSimConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := k.Initialize(); err != nil {
		t.Fatal(err)
	}
	v, _ := k.SignalValue("out")
	if !v.HasXZ() {
		t.Fatalf("black-box output = %s, want all-X", v)
	}
}

func TestFlattenCycleInInstanceGraphErrors(t *testing.T) {
	cellA := Cell{ID: 0, Name: "b_inst", Kind: CellInstance{Module: 1}}
	moduleA := Module{ID: 0, Name: "a", Cells: []Cell{cellA}}
	cellB := Cell{ID: 0, Name: "a_inst", Kind: CellInstance{Module: 0}}
	moduleB := Module{ID: 1, Name: "b", Cells: []Cell{cellB}}
	design := &Design{Modules: []Module{moduleA, moduleB}, Top: 0}

	_, err := Flatten(design)
	if err == nil {
		t.Fatal("expected a cycle-in-instance-graph error")
	}
}

func TestFlattenUnknownTopModuleErrors(t *testing.T) {
	design := &Design{Modules: []Module{{ID: 0, Name: "a"}}, Top: 99}
	if _, err := Flatten(design); err == nil {
		t.Fatal("expected ErrNoTopModule for an unknown top id")
	}
}

func TestFlattenNestedScopeQualifiesNames(t *testing.T) {
	childSig := Signal{ID: 0, Name: "y", Width: 1, Kind: KindWire}
	child := Module{ID: 1, Name: "child", Signals: []Signal{childSig}}
	cell := Cell{ID: 0, Name: "inst", Kind: CellInstance{Module: 1}}
	top := Module{ID: 0, Name: "top", Cells: []Cell{cell}}
	design := &Design{Modules: []Module{top, child}, Top: 0}

	st, err := Flatten(design)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := st.NameIndex["inst.y"]; !ok {
		t.Fatal("nested instance signal should be qualified as \"inst.y\"")
	}
}
