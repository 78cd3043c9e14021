package aion

// This file defines the elaborated, language-independent IR the kernel
// consumes (spec.md §6). It is produced by a separate front-end (HDL
// lexer/parser/elaborator) that is out of this package's scope — the
// kernel only reads these values, never constructs a Design of its own
// beyond what tests need.

// SignalID identifies a signal within a single Module, before
// flattening. ModuleID, ProcessID and CellID are analogous per-module
// dense indices, following the arena-with-stable-index pattern the
// reference elaborator uses (aion_ir's Arena<K,V>).
type SignalID int
type ModuleID int
type ProcessID int
type CellID int

// SignalKind determines a signal's storage semantics.
type SignalKind int

const (
	KindWire SignalKind = iota
	KindReg
	KindLatch
	KindPort
	KindConst
)

// PortDirection is the direction of data flow at a module boundary.
type PortDirection int

const (
	DirIn PortDirection = iota
	DirOut
	DirInOut
)

// Port describes one entry in a module's external interface.
type Port struct {
	Name      string
	Direction PortDirection
	Signal    SignalID
}

// Signal is a named wire, register or latch declared within a module.
type Signal struct {
	ID    SignalID
	Name  string
	Width int
	Kind  SignalKind
	// Init is the declared initial/reset value, if any. When absent,
	// the flattener defaults per spec.md §4.1 step 2: Z for
	// unspecified wires, all-X for Reg/Latch, exact value for Const.
	Init *LogicVec
}

// SignalRef refers to a full signal, a bit-slice, a concatenation of
// references, or a constant value — used in connections, assignments
// and expressions.
type SignalRef interface {
	isSignalRef()
}

// RefSignal references an entire signal.
type RefSignal struct{ Signal SignalID }

func (RefSignal) isSignalRef() {}

// RefSlice references bits [Lo, Hi] (inclusive) of a signal.
type RefSlice struct {
	Signal SignalID
	Hi, Lo int
}

func (RefSlice) isSignalRef() {}

// RefConcat references a concatenation of sub-references, MSB-first.
type RefConcat struct{ Parts []SignalRef }

func (RefConcat) isSignalRef() {}

// RefConst references a literal constant value.
type RefConst struct{ Value LogicVec }

func (RefConst) isSignalRef() {}

// RefWidth returns the bit width a SignalRef denotes, given a way to
// look up the declared width of a (module-local or flat) signal id —
// *Module.SignalWidth before flattening, *SimState.SignalWidth after.
func RefWidth(r SignalRef, lookup func(SignalID) int) int {
	switch v := r.(type) {
	case RefSignal:
		return lookup(v.Signal)
	case RefSlice:
		return v.Hi - v.Lo + 1
	case RefConcat:
		w := 0
		for _, p := range v.Parts {
			w += RefWidth(p, lookup)
		}
		return w
	case RefConst:
		return v.Value.Width()
	default:
		return 0
	}
}

// UnaryOp is a unary expression operator.
type UnaryOp int

const (
	OpNot UnaryOp = iota // bitwise NOT
	OpNeg
	OpRedAnd
	OpRedOr
	OpRedXor
	OpLogicNot
)

// BinaryOp is a binary expression operator.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpLogicAnd
	OpLogicOr
)

// Expr is a pure expression in the behavioral IR. It is a closed sum
// type expressed as a sealed interface, the same shape Statement uses.
type Expr interface {
	isExpr()
}

// ExprSignal references a signal (or part of one).
type ExprSignal struct{ Ref SignalRef }

func (ExprSignal) isExpr() {}

// ExprLiteral is a literal constant value.
type ExprLiteral struct{ Value LogicVec }

func (ExprLiteral) isExpr() {}

// ExprUnary applies a unary operator, with Width the declared result
// width (fixed by the front-end; the evaluator never infers widths).
type ExprUnary struct {
	Op      UnaryOp
	Operand Expr
	Width   int
}

func (ExprUnary) isExpr() {}

// ExprBinary applies a binary operator.
type ExprBinary struct {
	Op    BinaryOp
	LHS   Expr
	RHS   Expr
	Width int
}

func (ExprBinary) isExpr() {}

// ExprTernary is `cond ? trueVal : falseVal`.
type ExprTernary struct {
	Cond     Expr
	TrueVal  Expr
	FalseVal Expr
	Width    int
}

func (ExprTernary) isExpr() {}

// ExprFuncCall is a call to a built-in function (e.g. $time).
type ExprFuncCall struct {
	Name  string
	Args  []Expr
	Width int
}

func (ExprFuncCall) isExpr() {}

// ExprConcat concatenates expressions MSB-first.
type ExprConcat struct{ Parts []Expr }

func (ExprConcat) isExpr() {}

// ExprRepeat repeats Expr Count times.
type ExprRepeat struct {
	Expr  Expr
	Count int
}

func (ExprRepeat) isExpr() {}

// ExprIndex is a single-bit index `expr[index]`.
type ExprIndex struct {
	Expr  Expr
	Index Expr
}

func (ExprIndex) isExpr() {}

// ExprSlice is a bit-range `expr[hi:lo]`.
type ExprSlice struct {
	Expr   Expr
	Hi, Lo Expr
}

func (ExprSlice) isExpr() {}

// AssertionKind distinguishes assert/assume/cover statements.
type AssertionKind int

const (
	AssertAssert AssertionKind = iota
	AssertAssume
	AssertCover
)

// Statement is a behavioral statement inside a process body. Like
// Expr, it is a closed sum type via a sealed interface.
type Statement interface {
	isStatement()
}

// StmtAssign is `target <= value`.
type StmtAssign struct {
	Target SignalRef
	Value  Expr
}

func (StmtAssign) isStatement() {}

// StmtIf is an if/else statement.
type StmtIf struct {
	Cond     Expr
	Then     Statement
	Else     Statement // nil if absent
}

func (StmtIf) isStatement() {}

// CaseArm is one arm of a StmtCase.
type CaseArm struct {
	Patterns []Expr
	Body     Statement
}

// StmtCase is a case/switch statement.
type StmtCase struct {
	Subject Expr
	Arms    []CaseArm
	Default Statement // nil if absent
}

func (StmtCase) isStatement() {}

// StmtBlock executes Stmts in order.
type StmtBlock struct{ Stmts []Statement }

func (StmtBlock) isStatement() {}

// StmtWait is a simulation-only sensitivity wait.
type StmtWait struct {
	// Signals is the sensitivity constraint; empty means wait
	// indefinitely (only resolvable by external stimulus).
	Signals []SignalID
}

func (StmtWait) isStatement() {}

// StmtAssertion checks Condition and records a failure if it is
// definitely false.
type StmtAssertion struct {
	Kind      AssertionKind
	Condition Expr
	Message   string
}

func (StmtAssertion) isStatement() {}

// StmtDisplay formats Args per Format and appends the result to the
// display output accumulator.
type StmtDisplay struct {
	Format string
	Args   []Expr
}

func (StmtDisplay) isStatement() {}

// StmtFinish sets the kernel's finished flag.
type StmtFinish struct{}

func (StmtFinish) isStatement() {}

// StmtDelay suspends the executing process for DurationFs femtoseconds
// before running Body.
type StmtDelay struct {
	DurationFs uint64
	Body       Statement
}

func (StmtDelay) isStatement() {}

// StmtForever repeats Body forever; Body must suspend on every pass
// or the process is a zero-time infinite loop (fatal, spec.md §4.3).
type StmtForever struct{ Body Statement }

func (StmtForever) isStatement() {}

// StmtNop is a no-op placeholder.
type StmtNop struct{}

func (StmtNop) isStatement() {}

// ProcessKind determines how a process participates in the schedule.
type ProcessKind int

const (
	ProcCombinational ProcessKind = iota
	ProcSequential
	ProcLatched
	ProcInitial
)

// Edge is a clock/signal transition qualifier.
type Edge int

const (
	EdgePos Edge = iota
	EdgeNeg
	EdgeBoth
)

// EdgeSensitivity pairs a signal with the edge that wakes a process.
type EdgeSensitivity struct {
	Signal SignalID
	Edge   Edge
}

// SensitivityKind distinguishes the three sensitivity-list shapes.
type SensitivityKind int

const (
	SensAll SensitivityKind = iota
	SensEdgeList
	SensSignalList
)

// Sensitivity is a process's sensitivity list.
type Sensitivity struct {
	Kind    SensitivityKind
	Edges   []EdgeSensitivity // used when Kind == SensEdgeList
	Signals []SignalID        // used when Kind == SensSignalList
}

// Process is a VHDL process / Verilog always block.
type Process struct {
	ID          ProcessID
	Name        string
	Kind        ProcessKind
	Body        Statement
	Sensitivity Sensitivity
}

// CellKind distinguishes a module instantiation from a primitive cell.
// The kernel treats any non-Instance cell it does not specifically
// model as a black box with X outputs (spec.md §4.1 "Failures").
type CellKind interface{ isCellKind() }

// CellInstance instantiates another module.
type CellInstance struct{ Module ModuleID }

func (CellInstance) isCellKind() {}

// CellBlackBox is an unresolved or unsupported primitive; its output
// ports resolve to all-X.
type CellBlackBox struct{ PortNames []string }

func (CellBlackBox) isCellKind() {}

// Connection binds a cell's port to a signal in the parent module.
type Connection struct {
	PortName  string
	Direction PortDirection
	Signal    SignalRef
}

// Cell is a primitive or a module instantiation within a module.
type Cell struct {
	ID          CellID
	Name        string
	Kind        CellKind
	Connections []Connection
}

// Assignment is a continuous/concurrent assignment outside any
// process (`assign target = value;`).
type Assignment struct {
	Target SignalRef
	Value  Expr
}

// Module is a single hardware module: ports, signals, cell
// instantiations, behavioral processes, and concurrent assignments.
type Module struct {
	ID          ModuleID
	Name        string
	Ports       []Port
	Signals     []Signal
	Cells       []Cell
	Processes   []Process
	Assignments []Assignment
}

// Design is the top-level elaborated container: all modules plus the
// identifier of the top-level module.
type Design struct {
	Modules []Module
	Top     ModuleID
}

// TopModule returns the design's top-level module.
func (d *Design) TopModule() (*Module, error) {
	for i := range d.Modules {
		if d.Modules[i].ID == d.Top {
			return &d.Modules[i], nil
		}
	}
	return nil, ErrNoTopModule
}

// ModuleByID looks up a module by ID within the design.
func (d *Design) ModuleByID(id ModuleID) (*Module, bool) {
	for i := range d.Modules {
		if d.Modules[i].ID == id {
			return &d.Modules[i], true
		}
	}
	return nil, false
}

// SignalWidth returns the declared width of a local signal id, for use
// with RefWidth before flattening.
func (m *Module) SignalWidth(id SignalID) int {
	for i := range m.Signals {
		if m.Signals[i].ID == id {
			return m.Signals[i].Width
		}
	}
	return 0
}
