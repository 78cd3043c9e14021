// Command aionsim is a small demo driver for the aion simulation
// kernel: it builds a two-bit synchronous counter, runs it under a
// SimConfig optionally overridden from a TOML file, and prints a
// colorized run summary. It is not a hardware description front end —
// the kernel consumes elaborated IR directly (spec.md §1 places
// textual parsing out of scope) — so the design here is built by hand,
// the same way the teacher's own cmd/main.go hand-builds its xor demo.
package main

import (
	"flag"
	"os"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/pterm/pterm"

	"github.com/Stateford/aion"
	"github.com/Stateford/aion/waveform"
)

func main() {
	if err := run(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a TOML SimConfig override")
	flag.Parse()

	cfg := aion.DefaultSimConfig()
	if *configPath != "" {
		loaded, err := loadConfig(*configPath)
		if err != nil {
			return errors.Wrap(err, "loading config")
		}
		cfg = loaded
	}

	design := counterDesign()

	kernel, err := aion.NewSimKernel(design, cfg)
	if err != nil {
		return errors.Wrap(err, "constructing kernel")
	}
	if err := kernel.Initialize(); err != nil {
		return errors.Wrap(err, "initializing kernel")
	}

	var rec aion.WaveformRecorder
	if cfg.RecordWaveform {
		waveFile, err := os.Create(cfg.WaveformPath)
		if err != nil {
			return errors.Wrap(err, "creating waveform file")
		}
		defer waveFile.Close()

		if cfg.WaveformFormat == aion.WaveformBinary {
			rec = waveform.NewFstRecorder(waveFile)
		} else {
			rec = waveform.NewVcdRecorder(waveFile)
		}
		if err := kernel.AttachRecorder(rec); err != nil {
			return errors.Wrap(err, "attaching waveform recorder")
		}
	}

	limit := uint64(20 * aion.FsPerNs)
	if cfg.TimeLimitFs != nil {
		limit = *cfg.TimeLimitFs
	}
	if err := kernel.RunUntil(limit); err != nil {
		return errors.Wrap(err, "running simulation")
	}

	if rec != nil {
		if err := rec.Finalize(); err != nil {
			return errors.Wrap(err, "finalizing waveform")
		}
	}

	printSummary(kernel)
	return nil
}

func loadConfig(path string) (aion.SimConfig, error) {
	cfg := aion.DefaultSimConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	var override struct {
		TimeLimitFs        *uint64 `toml:"time_limit_fs"`
		RecordWaveform     bool    `toml:"record_waveform"`
		WaveformPath       string  `toml:"waveform_path"`
		WaveformFormat     string  `toml:"waveform_format"`
		DeltaCycleLimit    uint32  `toml:"delta_cycle_limit"`
		DefaultTimescaleFs uint64  `toml:"default_timescale_fs"`
	}
	if err := toml.Unmarshal(data, &override); err != nil {
		return cfg, err
	}
	cfg.TimeLimitFs = override.TimeLimitFs
	cfg.RecordWaveform = override.RecordWaveform
	cfg.WaveformPath = override.WaveformPath
	if override.WaveformFormat == "binary" {
		cfg.WaveformFormat = aion.WaveformBinary
	}
	if override.DeltaCycleLimit != 0 {
		cfg.DeltaCycleLimit = override.DeltaCycleLimit
	}
	if override.DefaultTimescaleFs != 0 {
		cfg.DefaultTimescaleFs = override.DefaultTimescaleFs
	}
	return cfg, nil
}

func printSummary(k *aion.SimKernel) {
	pterm.DefaultHeader.Println("aion simulation run")

	rows := pterm.TableData{{"signal", "value"}}
	for _, s := range k.AllSignals() {
		rows = append(rows, []string{s.Name, s.Value.String()})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
		pterm.Warning.Printfln("could not render signal table: %v", err)
	}

	for _, line := range k.TakeDisplayOutput() {
		pterm.Info.Println(line)
	}

	failures := k.TakeAssertionFailures()
	if len(failures) == 0 {
		pterm.Success.Println("all assertions passed")
	} else {
		for _, f := range failures {
			pterm.Error.Printfln("assertion failed at %s: %s", f.Time, f.Message)
		}
	}

	for _, d := range k.TakeDiagnostics() {
		pterm.Warning.Printfln("%s: %s", d.Time, d.Message)
	}
}

// counterDesign builds a two-bit synchronous up-counter clocked on the
// posedge of clk, the smallest design that exercises a sequential
// process, a delay-driven clock generator, and a display statement.
func counterDesign() *aion.Design {
	clk, count := aion.SignalID(0), aion.SignalID(1)

	clkGen := aion.Process{
		ID:   0,
		Name: "clk_gen",
		Kind: aion.ProcInitial,
		Body: aion.StmtForever{
			Body: aion.StmtDelay{
				DurationFs: 5 * aion.FsPerNs,
				Body: aion.StmtBlock{Stmts: []aion.Statement{
					aion.StmtAssign{
						Target: aion.RefSignal{Signal: clk},
						Value: aion.ExprUnary{
							Op:      aion.OpNot,
							Operand: aion.ExprSignal{Ref: aion.RefSignal{Signal: clk}},
							Width:   1,
						},
					},
				}},
			},
		},
	}

	counter := aion.Process{
		ID:   1,
		Name: "counter",
		Kind: aion.ProcSequential,
		Sensitivity: aion.Sensitivity{
			Kind:  aion.SensEdgeList,
			Edges: []aion.EdgeSensitivity{{Signal: clk, Edge: aion.EdgePos}},
		},
		Body: aion.StmtBlock{Stmts: []aion.Statement{
			aion.StmtAssign{
				Target: aion.RefSignal{Signal: count},
				Value: aion.ExprBinary{
					Op:    aion.OpAdd,
					LHS:   aion.ExprSignal{Ref: aion.RefSignal{Signal: count}},
					RHS:   aion.ExprLiteral{Value: aion.FromUint64(1, 2)},
					Width: 2,
				},
			},
			aion.StmtDisplay{
				Format: "count = %d",
				Args:   []aion.Expr{aion.ExprSignal{Ref: aion.RefSignal{Signal: count}}},
			},
		}},
	}

	clkInit, countInit := aion.FromBool(false), aion.FromUint64(0, 2)
	m := aion.Module{
		ID:   0,
		Name: "counter2",
		Signals: []aion.Signal{
			{ID: clk, Name: "clk", Width: 1, Kind: aion.KindReg, Init: &clkInit},
			{ID: count, Name: "count", Width: 2, Kind: aion.KindReg, Init: &countInit},
		},
		Processes: []aion.Process{clkGen, counter},
	}
	return &aion.Design{Modules: []aion.Module{m}, Top: 0}
}
