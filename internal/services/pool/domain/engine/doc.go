// Package engine is the entry point of the pool ledger.
//
// Each call runs as one atomic unit of work on a storage.Ledger. Calls that
// touch a pool first apply any pending deadline transition as a separate
// committed unit, then run the requested operation. Within a unit the engine
// appends the emitted events to the pool journal and checks the pool's
// accounting before commit. Transfers recorded by a committed unit are handed
// to the TransferSink afterwards.
package engine
