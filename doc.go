/*
Package tops drives hierarchical statechart user interfaces and the polling
viewers of an observatory operations console.

A chart is a forest of named states. Compound states have children and usually
an initial child; leaves do not. Entering a state selects it together with all
its ancestors, records each one as the last active child of its parent, and
arms the triggers of every selected state. A request is either "NAME", which
descends through initial children, or "recall(NAME)", which descends through
the last active children instead.

# Usage

The Engine loads declarations from a directory (through Loam) or from any
ports.ChartLoader, compiles them and hands out machines and sessions.

	eng, err := tops.New("./console")
	if err != nil {
		log.Fatal(err)
	}

	doc := memory.NewDocumentFor(eng.Chart().Declarations())
	m, err := eng.Start(ctx, doc)
	if err != nil {
		log.Fatal(err)
	}
	if err := m.SetState(ctx, "recall(advanced)"); err != nil {
		log.Fatal(err)
	}
	fmt.Println(m.Current())

Sessions persisted across processes go through eng.Sessions(), which serializes
access per session and stores snapshots in the configured ports.SnapshotStore.

The log and archiver viewers live in pkg/viewer and talk to the feed endpoint
through pkg/feed.
*/
package tops
