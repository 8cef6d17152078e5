// Package scenario runs YAML pool scenarios against an in-process engine
// driven by a virtual clock.
//
// A scenario names pools by alias, calls engine operations step by step and
// asserts statuses, balances, shares, transfers and error codes. After the
// last step every pool journal is verified and replayed, and the replayed
// view must agree with the ledger.
package scenario
