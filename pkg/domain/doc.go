/*
Package domain contains the core domain models of the tops statechart driver and feed viewers.

It defines the declarative description of a statechart, the requests that move
it between states, and the records exchanged with the feed endpoint. This
package is kept pure and free of I/O, rendering, or persistence concerns.

# Key Entities

  - Declaration: A single declared state (name, initial child, parent, triggers, docs).
  - Request: A transition request, either "enter" ("NAME") or "recall" ("recall(NAME)").
  - Snapshot: The persisted runtime view of a machine (current leaf and history).
  - LogRecord / Channel: Items returned by the feed endpoint.
*/
package domain
