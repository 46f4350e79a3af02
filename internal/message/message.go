// Package message owns the RTMP message datatype registry.
//
// Ownership boundary:
// - datatype constants
// - datatype classification (streamable, command)
package message

// RTMP message datatypes.
const (
	FrameSize           uint8 = 0x01
	BytesRead           uint8 = 0x03
	Control             uint8 = 0x04
	DownstreamBandwidth uint8 = 0x05
	UpstreamBandwidth   uint8 = 0x06
	AudioData           uint8 = 0x08
	VideoData           uint8 = 0x09
	DataAMF3            uint8 = 0x0f
	SharedObjectAMF3    uint8 = 0x10
	InvokeAMF3          uint8 = 0x11
	DataAMF0            uint8 = 0x12
	SharedObjectAMF0    uint8 = 0x13
	Invoke              uint8 = 0x14
)

// IsStreamable reports whether the datatype carries latency-sensitive media
// that must be emitted chunk by chunk instead of being reassembled.
func IsStreamable(datatype uint8) bool {
	return datatype == AudioData || datatype == VideoData
}

// IsCommandType reports whether the datatype is a protocol control message.
// Command types are encoded immediately on the control channel.
func IsCommandType(datatype uint8) bool {
	switch datatype {
	case FrameSize, BytesRead, Control, DownstreamBandwidth, UpstreamBandwidth:
		return true
	}
	return false
}
