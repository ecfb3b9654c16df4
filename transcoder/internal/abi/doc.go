// Package abi provides internal memory arithmetic for the transcoder.
//
// It holds overflow-checked size math, alignment rounding, allocation
// limits, discriminant sizing and the host endianness check that gates
// every raw memory copy.
//
// This package is internal to the transcoder.
package abi
