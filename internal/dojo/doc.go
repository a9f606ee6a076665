// Package dojo is the boundary surface of the world client.
//
// Every result crossing it is encoded into the {type, value} form built by
// package codec. Listeners registered with OnSyncModelChange and
// OnEntityUpdated run in their own goroutine and return a Registration
// that can be cancelled. A listener skips malformed stream items and ends
// quietly when its stream closes.
package dojo
