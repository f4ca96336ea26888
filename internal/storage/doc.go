// Package storage keeps an append-only audit of alert delivery attempts.
//
// The audit is write-only from tokenwatch's point of view: the seen set is
// rebuilt empty on every start and is never loaded from here.
package storage
