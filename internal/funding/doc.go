// Package funding implements the avatar funding saga: it checks that the
// requesting user can pay, creates the avatar's ledger account when it does
// not exist yet, makes sure the avatar trusts the home asset and finally
// buys the home asset for the avatar with a path payment drawn from the
// user's account.
//
// Every step that submits a transaction is attempted at most once. A
// submission whose outcome is unknown ends the run with an error that asks
// for an alert, carrying the transaction hash for manual reconciliation.
package funding
