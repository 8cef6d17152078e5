// Package integrity seals journal events into a tamper-evident chain.
//
// Each event carries its content hash, the chain hash of its predecessor and
// its own chain hash. Chain hashes are signed with HMAC keys derived per pool
// from rotating root keys, so a verifier holding the keyring can detect edits,
// reordering and truncation inside a pool's journal.
package integrity
