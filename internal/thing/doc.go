// Package thing provides the live property model for Gray Logic Things.
//
// A Thing is a named entity owning an ordered set of Properties. Each
// Property holds a cached numeric value plus immutable schema metadata.
// Things are never shared directly: every holder (update loops, HTTP
// handlers, the MQTT bridge) shares one *Handle, which enforces
// many-readers or one-writer access to the wrapped Thing.
//
// # Architecture
//
//	┌──────────────┐   Commit (exclusive)   ┌──────────────────────────┐
//	│ Update loop  │───────────────────────▶│ Handle                   │
//	└──────────────┘                        │  ┌────────────────────┐  │
//	┌──────────────┐   Read (shared)        │  │ Thing              │  │
//	│ HTTP / MQTT  │───────────────────────▶│  │  • Property "level"│  │
//	└──────────────┘                        │  └────────────────────┘  │
//	                                        └────────────┬─────────────┘
//	                                                     │ Notify (lock released)
//	                                                     ▼
//	                                              Notifier (non-blocking)
//
// # Locking Rules
//
//   - The write lock is held only for the single value assignment.
//   - Notifications are emitted after the write lock is released.
//   - A holder never acquires a second Handle while holding one.
//   - A panic while holding the write lock poisons the Handle; every later
//     Read or Write returns ErrLockPoisoned.
//
// # Exposition
//
// The Registry holds the exposed handles in either Single or Multiple mode.
// The mode is chosen at construction and cannot change.
package thing
