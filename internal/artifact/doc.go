// Package artifact lowers a parsed program into a compact, aligned binary
// artifact and opens such artifacts into executable functions bound to an
// engine's kernel registry.
//
// Layout: an 8-byte header ("KILN", version, flags, two pad bytes) followed
// by sections. Every section starts on an 8-byte boundary with a 1-byte id,
// three pad bytes and a big-endian uint32 payload length.
package artifact
