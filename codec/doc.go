// Package codec implements the primitive byte codec of the savefile format.
//
// All integers and floats are fixed width and little-endian. A bool is a
// single byte where 1 means true. Strings and byte buffers are prefixed
// with their length as an 8-byte unsigned integer.
//
// A Serializer writes to any io.Writer and carries the protocol version the
// stream is being written with. A Deserializer reads from any io.Reader and
// carries both the version the stream was written with (the file version)
// and the version the program understands (the memory version). Neither
// buffers; wrap the sink or source with bufio when it is unbuffered.
//
// Both types own their sink or source for the duration of one top-level
// encode or decode and are not safe for concurrent use.
package codec
