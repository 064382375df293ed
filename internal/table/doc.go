// Package table implements the generational row storage the circuit runtime
// is built on.
//
// A Table is a dense slot array for one row kind. Rows are addressed by
// Handle, an (index, generation) pair: freed slots go onto a LIFO free list
// and are reused in O(1), and each reuse bumps the slot's generation so a
// Handle held across the reuse observably goes stale instead of silently
// naming the new occupant.
//
// Storage aggregates the Tables of one runtime under a shared transaction
// surface: Checkpoint/Commit/Rollback bracket a unit of mutation with an
// undo journal (cost proportional to rows touched), and Snapshot/Restore
// capture and reinstate the whole state for replay verification and tests.
package table
