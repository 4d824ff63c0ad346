// Package types defines the Store, Tx, and Validator interfaces, the attach
// configuration, and the standard error values for the mirror mapping engine.
// Implements: prd001-context-core (Config, Store, Validator, error types);
//
//	docs/ARCHITECTURE § Storage Boundary.
package types
