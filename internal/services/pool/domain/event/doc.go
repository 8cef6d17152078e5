// Package event defines the pool journal: the envelope every committed change
// is recorded in, the payload of each event type, and the canonical hashing
// that chains a pool's events together.
//
// Payloads carry the amounts and shares needed to rebuild pool state from the
// journal alone; see the projection package for the fold.
package event
