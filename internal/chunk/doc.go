// Package chunk owns the RTMP chunk stream framing engine.
//
// Ownership boundary:
// - variable-length chunk header codec
// - frame reader (byte cursor -> chunks)
// - channel demuxer (chunks -> whole messages)
// - decoder (messages -> stream dispatch)
// - encoder (messages -> interleaved chunks)
package chunk
