// Package layout computes expected C-like struct layouts and turns them
// into copy plans.
//
// A Go struct is projected onto WIT records and primitives so the same
// size, alignment and offset arithmetic used for canonical memory layouts
// can predict where each field should live. The prediction is a
// Descriptor. Verify compares it against the offsets the Go runtime
// reports; a struct whose descriptor does not match is never copied raw.
//
// Build turns a descriptor plus a per-field Class into a Plan: maximal runs
// of contiguous copyable fields become single region copies, and a packed
// struct whose fields are all copyable becomes one bulk copy.
//
// This package is internal to the transcoder.
package layout
