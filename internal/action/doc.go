// Package action resolves action requests against a thing.
//
// A Generator decides whether a named action exists for a thing. The
// default generator, NoActions, recognises nothing, so every request is
// rejected as unsupported. A Registry adds kinds by name without touching
// the thing package or the handle.
//
// The Executor tracks accepted requests as Records with a bounded history
// and runs them in the background:
//
//	pending → running → completed
//	                  ↘ failed
package action
