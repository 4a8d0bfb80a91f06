/*
Package dsl provides a Go DSL for declaring statecharts in code.

States are declared by name, in any order, and references between them are
only resolved when the chart is built. Build reports every broken reference
at once instead of failing on the first one.

Example usage:

	b := dsl.New()

	b.Add("panel").Initial("overview").Doc("# Panel")
	b.Add("overview").Parent("panel").Trigger("details", "details")
	b.Add("details").Parent("panel").Trigger("back", "overview")
	b.Add("help").Trigger("return", "recall(panel)")

	chart, err := b.Build()
	if err != nil {
		log.Fatal(err)
	}
	// ... statechart.NewMachine(chart, binder)
*/
package dsl
