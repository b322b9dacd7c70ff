// Package snapshot pauses a store.Container into a JSON snapshot plus overlay
// attributes on the view tree, and resumes an equivalent container from them.
//
// The payload is {"objs": [...], "subs": [...]}. Entries are addressed by
// base-36 index. Entries that somebody subscribes to come first so that
// subs[i] describes objs[i]. Strings starting with a control byte carry a
// special value; plain strings that happen to start with one are escaped.
//
// Inside objects and arrays ints, fractional float64s, booleans and null are
// written inline and every other child is a reference token. Other numeric
// types are number entries such as "\x0efloat64:2" or "\x0euint8:3", so the Go
// type survives a round trip.
//
//	7      entry 7
//	7!     entry 7 re-wrapped as a recursive store
//	7!2    entry 7 re-wrapped with explicit flags
//	#3     the element whose q:id is 3
package snapshot
