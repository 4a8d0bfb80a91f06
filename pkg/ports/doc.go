/*
Package ports defines the driven ports (interfaces) of the tops statechart driver and viewers.

These interfaces decouple the core logic from external implementations, allowing
the machine to drive any rendering technology and the viewers to talk to any feed.

# Key Interfaces

  - Binder / Element / TriggerElement: Registration callback supplied by the embedding UI layer.
  - Navigator: Moves the user's view to a named state (the "reveal" key).
  - ChartLoader: Responsible for loading state declarations (e.g., from Loam or YAML).
  - SnapshotStore: Responsible for persisting machine snapshots per session.
  - DistributedLocker: Provides distributed locking for concurrent session access.
  - LogFeed / ChannelFeed: The log and archiver sides of the feed endpoint polled by the viewers.
*/
package ports
