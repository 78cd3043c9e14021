/*
Package aion is an event-driven digital hardware simulation kernel.

It consumes an elaborated, language-independent netlist (modules,
signals, cells, behavioral processes — see ir.go) and simulates it
under delta-cycle semantics: four-state logic with drive-strength
based multi-driver resolution, sensitivity-driven process scheduling,
and continuation-based suspension for procedural delay statements.

The kernel does not parse any hardware description language and does
not perform elaboration, synthesis, or place & route; it is the part
of the toolchain that runs an already-elaborated design and records
what happened.
*/
package aion
