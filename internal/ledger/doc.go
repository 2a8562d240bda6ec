// Package ledger defines the ledger gateway consumed by the funding saga:
// account lookup, base fee estimation and transaction submission, together
// with the network definitions used to pick between the test and live
// Stellar networks. Concrete clients live in sub-packages.
package ledger
