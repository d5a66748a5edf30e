// Package storage defines the resource store contract shared by the
// storage adapters, together with its sentinel errors.
//
// Adapters (memory, postgres, sqlite) implement [Store]. Each single
// create, update or delete is atomic; an order is always written together
// with its items. The storagetest subpackage holds the conformance suite
// every adapter runs.
package storage
