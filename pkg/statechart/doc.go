/*
Package statechart compiles state declarations into an immutable chart and drives it.

A Chart is built once from domain.Declaration values: names are resolved into
indices of a flat arena and every broken reference is reported at build time.
A Machine owns the runtime side of one chart: the current leaf, the history of
every compound state, and the UI elements supplied by a ports.Binder.

Transitions are always full path swaps. SetState deselects every state from the
old leaf up to its root, then selects every state from the new leaf up to its
root. Selecting a state records it as its parent's most recent child, which is
what "recall(NAME)" requests follow.

	chart, err := statechart.Compile(decls)
	m := statechart.NewMachine(chart, binder)
	err = m.Initialize(ctx, "TCC")
	err = m.SetState(ctx, "recall(TRACKING)")
*/
package statechart
