// Package domain contains the core entities of the task aggregation system:
// external tasks fetched from upstream providers, and the locally-owned
// overlay annotations keyed to them.
//
// External tasks are owned by their providers and are read-only here; they are
// materialized on every fetch and never persisted. Overlays are owned by this
// system, persisted one row per (user, task key) in the remote overlay store,
// and never deleted. Rows for vanished tasks are kept with an external state
// of "missing".
package domain
