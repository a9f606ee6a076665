// Package testutil holds deterministic stand-ins used by tests in other
// packages.
package testutil
