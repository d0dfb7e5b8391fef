// Package updater runs the periodic update loops that keep sensor-backed
// properties current.
//
// Each Loop owns one (thing, property) binding and cycles through:
//
//	Idle → AcquiringReading → Transforming → Committing → Notifying → Idle
//	                 │               │
//	                 └── fault ──────┴──▶ Idle (cycle skipped, nothing shared touched)
//
// Cycles start on a monotonic time.Ticker; a slow cycle drops the ticks it
// missed instead of queueing them. Cancellation is observed between cycles,
// after which the loop reports Terminating.
//
// A producer failure is recoverable: the cycle is skipped and counted. A
// poisoned handle is not: Run returns an error wrapping thing.ErrLockPoisoned
// and the process is expected to exit.
package updater
