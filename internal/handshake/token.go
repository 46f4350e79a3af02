package handshake

import (
	"encoding/binary"
	"fmt"
)

// PayloadLength is the size of a client token payload. A server token
// payload is two of these: its own block followed by the client echo.
const PayloadLength = 1536

// Minimum peer versions that support the digest-validated handshake.
// Versions compare as 4 independent big-endian bytes.
const (
	H264MinClient uint32 = 0x09007300 // 9.0.115.0
	H264MinServer uint32 = 0x03000101 // 3.0.1.1
)

var errEmptyPayload = &HandshakeError{Reason: "no digest available for an empty handshake"}

// HandshakeError reports an illegal state transition or a missing
// prerequisite in the token exchange.
type HandshakeError struct {
	Reason string
}

func (e *HandshakeError) Error() string {
	return "handshake: " + e.Reason
}

func handshakeErrorf(format string, args ...interface{}) error {
	return &HandshakeError{Reason: fmt.Sprintf(format, args...)}
}

// Token is the shared core of a handshake payload: peer uptime, peer
// version and the raw payload block (absent until generated or decoded).
type Token struct {
	Uptime  uint32
	Version uint32
	payload []byte
}

// Payload returns the raw payload, or nil when none has been generated or
// decoded yet.
func (t *Token) Payload() []byte {
	return t.payload
}

// SetPayload replaces the raw payload.
func (t *Token) SetPayload(p []byte) {
	t.payload = p
}

func (t *Token) prefix(buf []byte) {
	binary.BigEndian.PutUint32(buf[0:4], t.Uptime)
	binary.BigEndian.PutUint32(buf[4:8], t.Version)
}

// ClientToken is the handshake payload offered by the connecting peer.
type ClientToken struct {
	Token
}

func NewClientToken(uptime, version uint32) *ClientToken {
	return &ClientToken{Token: Token{Uptime: uptime, Version: version}}
}

// DigestCapable reports whether the peer version supports the
// digest-validated handshake.
func (t *ClientToken) DigestCapable() bool {
	return t.Version >= H264MinClient
}

// GeneratePayload builds the 1536-byte payload: uptime, version, random
// fill, and a spliced digest block when the version is digest-capable.
// Idempotent: a second call returns the same buffer.
func (t *ClientToken) GeneratePayload() []byte {
	if t.payload != nil {
		return t.payload
	}

	p := generateBytes(PayloadLength)
	t.prefix(p)

	if t.DigestCapable() {
		off := digestOffset(p)
		signed := make([]byte, 0, PayloadLength-digestLength)
		signed = append(signed, p[:off]...)
		signed = append(signed, p[off+digestLength:]...)
		copy(p[off:off+digestLength], digest(clientKey, signed))
	}

	t.payload = p
	return t.payload
}

// Digest returns the 32-byte digest the peer embedded in the payload. It
// reads, it does not validate: checking the value against the signed bytes
// is the negotiator's job. Nil for peers below the digest-capable minimum;
// HandshakeError when no payload is present.
func (t *ClientToken) Digest() ([]byte, error) {
	if t.payload == nil {
		return nil, errEmptyPayload
	}
	if !t.DigestCapable() {
		return nil, nil
	}
	off := digestOffset(t.payload)
	return t.payload[off : off+digestLength], nil
}

// ServerToken is the handshake payload answering a client token. The
// client reference is non-owning: the token never outlives its session.
type ServerToken struct {
	Token
	client *ClientToken

	digest    []byte
	digestSet bool
}

func NewServerToken(client *ClientToken, uptime, version uint32) *ServerToken {
	return &ServerToken{
		Token:  Token{Uptime: uptime, Version: version},
		client: client,
	}
}

// Client returns the client token this server token answers.
func (t *ServerToken) Client() *ClientToken {
	return t.client
}

// DigestCapable delegates to the associated client: a server only signs
// for peers that can validate.
func (t *ServerToken) DigestCapable() bool {
	return t.client != nil && t.client.DigestCapable() && t.Version >= H264MinServer
}

// GeneratePayload builds the 3072-byte payload: the server's own 1536-byte
// block (uptime, version, random fill, digest block in the trailing 32
// bytes when capability applies) followed by a byte-exact copy of the
// client payload. Idempotent.
func (t *ServerToken) GeneratePayload() ([]byte, error) {
	if t.payload != nil {
		return t.payload, nil
	}
	if t.client == nil || t.client.Payload() == nil {
		return nil, handshakeErrorf("client token is required before generating server token")
	}

	own := generateBytes(PayloadLength)
	t.prefix(own)

	clientPayload := t.client.Payload()

	if t.DigestCapable() {
		signed := make([]byte, 0, PayloadLength-digestLength+len(clientPayload))
		signed = append(signed, own[:PayloadLength-digestLength]...)
		signed = append(signed, clientPayload...)
		copy(own[PayloadLength-digestLength:], digest(serverKey, signed))
	}

	p := make([]byte, 0, PayloadLength+len(clientPayload))
	p = append(p, own...)
	p = append(p, clientPayload...)
	t.payload = p
	return t.payload, nil
}

// Digest returns this token's validation digest, keyed by the digest the
// client embedded. Computed once and cached: the cached value survives
// later payload mutation or clearing. Nil when the client is absent or not
// digest-capable; HandshakeError when no payload is present.
func (t *ServerToken) Digest() ([]byte, error) {
	if t.digestSet {
		return t.digest, nil
	}
	if t.client == nil {
		return nil, nil
	}
	clientDigest, err := t.client.Digest()
	if err != nil {
		return nil, err
	}
	if clientDigest == nil {
		return nil, nil
	}
	if t.payload == nil {
		return nil, errEmptyPayload
	}
	t.digest = digest(clientDigest, t.payload)
	t.digestSet = true
	return t.digest, nil
}

// DecodeClientToken parses a peer's 1536-byte handshake block.
func DecodeClientToken(b []byte) (*ClientToken, error) {
	if len(b) < PayloadLength {
		return nil, fmt.Errorf("%w: client token needs %d bytes, have %d",
			ErrShortToken, PayloadLength, len(b))
	}
	t := &ClientToken{}
	t.Uptime = binary.BigEndian.Uint32(b[0:4])
	t.Version = binary.BigEndian.Uint32(b[4:8])
	t.payload = append([]byte(nil), b[:PayloadLength]...)
	return t, nil
}

// DecodeServerToken parses a peer's server handshake block, associating it
// with the client token it answers.
func DecodeServerToken(client *ClientToken, b []byte) (*ServerToken, error) {
	if len(b) < 2*PayloadLength {
		return nil, fmt.Errorf("%w: server token needs %d bytes, have %d",
			ErrShortToken, 2*PayloadLength, len(b))
	}
	t := &ServerToken{client: client}
	t.Uptime = binary.BigEndian.Uint32(b[0:4])
	t.Version = binary.BigEndian.Uint32(b[4:8])
	t.payload = append([]byte(nil), b[:2*PayloadLength]...)
	return t, nil
}
