// Package projection rebuilds pool read models from journal events alone.
//
// Replay is the proof that the journal carries every amount needed to
// reconstruct a pool: a view folded from events must agree with the stored
// pool, share records and vault balance.
package projection
