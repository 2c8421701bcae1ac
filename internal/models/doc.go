// Package models defines the core domain models for tripledger.
//
// # Models
//
//   - Trip: a participant's view of a shared group on the remote ledger
//   - User: local identity bound 1:1 to a remote-ledger user
//   - ExpenseRow: one participant's share of one expense, in the reporting currency
//   - RemoteExpense: an expense as the remote ledger reports it
//   - Submission: an expense entered by a user, before classification
//
// # Identity
//
// Expense rows are keyed by (expense id, participant). The expense id is either
// the id assigned by the remote ledger or a locally generated id carrying the
// LocalIDPrefix marker. Rows with a local id are personal: they never reach the
// remote ledger and remote-driven reconciliation never updates or deletes them.
//
// Participants and groups are referenced by their remote-ledger ids so that
// reconciliation needs no id translation.
//
// # Design Principles
//
//  1. Amounts are decimal.Decimal, never float64
//  2. Dates are calendar days (see Date)
//  3. Avoid circular references: use ID strings instead of pointers for relationships
package models
