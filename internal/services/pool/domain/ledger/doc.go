// Package ledger holds the vocabulary shared by every pool component: pool
// identifiers, ledger addresses, the pool lifecycle status, checked amount
// arithmetic and the error taxonomy.
//
// Amounts are unsigned 64-bit integers in the ledger's smallest unit. Every
// addition and multiplication on amounts goes through the checked helpers so
// overflow surfaces as ErrArithmeticOverflow instead of wrapping.
package ledger
