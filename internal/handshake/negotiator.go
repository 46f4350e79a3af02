package handshake

import (
	"bytes"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/ternio/rtmpcore/internal/logging"
	"github.com/ternio/rtmpcore/internal/observability"
)

// Scheme bytes leading each handshake payload on the wire.
const (
	SchemePlain  byte = 0x03
	SchemeDigest byte = 0x06
)

// Observer receives the terminal handshake outcome. Exactly one of the two
// callbacks fires, at most once.
type Observer interface {
	HandshakeSuccess()
	HandshakeFailure(err error)
}

// negotiator holds the state shared by both roles. DataReceived drives a
// role-specific parse step; parse errors are reported to the observer, never
// raised to the transport.
type negotiator struct {
	observer Observer
	w        io.Writer
	log      zerolog.Logger
	role     string

	started bool
	done    bool

	scheme            byte
	schemeSet         bool
	receivedScheme    byte
	receivedSchemeSet bool

	client *ClientToken
	server *ServerToken

	uptime  uint32
	version uint32

	buffer []byte
}

func (n *negotiator) reset() {
	n.done = false
	n.schemeSet = false
	n.receivedSchemeSet = false
	n.client = nil
	n.server = nil
	n.buffer = nil
}

func (n *negotiator) start(uptime, version uint32) error {
	if n.started {
		return handshakeErrorf("negotiator already started")
	}
	n.reset()
	n.started = true
	n.uptime = uptime
	n.version = version
	return nil
}

// take consumes exactly size bytes from the buffer, or reports that not
// enough have arrived yet.
func (n *negotiator) take(size int) ([]byte, bool) {
	if len(n.buffer) < size {
		return nil, false
	}
	b := n.buffer[:size]
	n.buffer = n.buffer[size:]
	return b, true
}

func (n *negotiator) takeScheme() (byte, bool, error) {
	b, ok := n.take(1)
	if !ok {
		return 0, false, nil
	}
	s := b[0]
	if s != SchemePlain && s != SchemeDigest {
		return 0, false, fmt.Errorf("%w: 0x%02x", ErrUnknownScheme, s)
	}
	return s, true, nil
}

func (n *negotiator) succeed() {
	n.done = true
	observability.RecordHandshake(n.role, "success")
	n.log.Debug().Msg("handshake complete")
	n.observer.HandshakeSuccess()
}

func (n *negotiator) fail(err error) {
	if n.done {
		return
	}
	n.done = true
	observability.RecordHandshake(n.role, "failure")
	n.log.Warn().Err(err).Msg("handshake failed")
	n.observer.HandshakeFailure(err)
}

// Drain returns any buffered bytes that arrived past the end of the
// handshake and releases them from the negotiator. The chunk stream begins
// with these bytes.
func (n *negotiator) Drain() []byte {
	b := n.buffer
	n.buffer = nil
	return b
}

// validateClientDigest checks the digest a digest-capable client embedded
// in its payload against the signed remainder.
func validateClientDigest(client *ClientToken) error {
	declared, err := client.Digest()
	if err != nil {
		return err
	}
	if declared == nil {
		return nil
	}
	p := client.Payload()
	off := digestOffset(p)
	signed := make([]byte, 0, len(p)-digestLength)
	signed = append(signed, p[:off]...)
	signed = append(signed, p[off+digestLength:]...)
	if !bytes.Equal(declared, digest(clientKey, signed)) {
		return handshakeErrorf("client digest validation failed")
	}
	return nil
}

// validateServerDigest checks the digest a digest-capable server embedded
// in the trailing block of its own half of the payload.
func validateServerDigest(server *ServerToken) error {
	if !server.DigestCapable() {
		return nil
	}
	p := server.Payload()
	clientPayload := server.Client().Payload()
	declared := p[PayloadLength-digestLength : PayloadLength]
	signed := make([]byte, 0, PayloadLength-digestLength+len(clientPayload))
	signed = append(signed, p[:PayloadLength-digestLength]...)
	signed = append(signed, clientPayload...)
	if !bytes.Equal(declared, digest(serverKey, signed)) {
		return handshakeErrorf("server digest validation failed")
	}
	return nil
}

// ServerNegotiator drives the answering side of the handshake: read the
// peer's scheme byte and token, answer with a combined payload, then
// validate the peer's echo of the server block.
type ServerNegotiator struct {
	negotiator
}

func NewServerNegotiator(observer Observer, w io.Writer) *ServerNegotiator {
	return &ServerNegotiator{negotiator: negotiator{
		observer: observer,
		w:        w,
		log:      logging.New("handshake.server"),
		role:     "server",
	}}
}

// Start arms the negotiator. The server stays silent until the client's
// token arrives.
func (n *ServerNegotiator) Start(uptime, version uint32) error {
	return n.start(uptime, version)
}

// GenerateToken builds the server token answering the received client
// token. Unset version selects the digest-capable default; a version below
// the supported minimum, or a legacy client, falls back to the plain
// exchange.
func (n *ServerNegotiator) GenerateToken() error {
	if !n.started {
		return handshakeErrorf("negotiator not started")
	}
	if n.client == nil {
		return handshakeErrorf("client token is required before generating server token")
	}

	version := n.version
	if version == 0 {
		version = H264MinServer
	}
	if version < H264MinServer || !n.client.DigestCapable() {
		version = 0
	}

	n.server = NewServerToken(n.client, n.uptime, version)
	if _, err := n.server.GeneratePayload(); err != nil {
		return err
	}
	return nil
}

// DataReceived consumes handshake bytes. It never returns an error to the
// transport: parse and validation failures terminate the handshake through
// the observer.
func (n *ServerNegotiator) DataReceived(b []byte) {
	if n.done {
		n.buffer = append(n.buffer, b...)
		return
	}
	if !n.started {
		n.fail(handshakeErrorf("data received before start"))
		return
	}
	n.buffer = append(n.buffer, b...)
	if err := n.parse(); err != nil {
		n.fail(err)
	}
}

func (n *ServerNegotiator) parse() error {
	if !n.receivedSchemeSet {
		s, ok, err := n.takeScheme()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		n.receivedScheme = s
		n.receivedSchemeSet = true
	}

	if n.client == nil {
		raw, ok := n.take(PayloadLength)
		if !ok {
			return nil
		}
		client, err := DecodeClientToken(raw)
		if err != nil {
			return err
		}
		if n.receivedScheme == SchemeDigest {
			if err := validateClientDigest(client); err != nil {
				return err
			}
		}
		n.client = client

		if err := n.GenerateToken(); err != nil {
			return err
		}
		n.scheme = n.receivedScheme
		n.schemeSet = true
		payload, err := n.server.GeneratePayload()
		if err != nil {
			return err
		}
		if _, err := n.w.Write(append([]byte{n.scheme}, payload...)); err != nil {
			return err
		}
	}

	if n.server == nil {
		return nil
	}

	echo, ok := n.take(PayloadLength)
	if !ok {
		return nil
	}
	if !bytes.Equal(echo, n.server.Payload()[:PayloadLength]) {
		return handshakeErrorf("handshake echo mismatch")
	}
	n.succeed()
	return nil
}

// ClientNegotiator drives the initiating side of the handshake: emit the
// client token on Start, validate the server's combined payload, then echo
// the server block back.
type ClientNegotiator struct {
	negotiator
}

func NewClientNegotiator(observer Observer, w io.Writer) *ClientNegotiator {
	return &ClientNegotiator{negotiator: negotiator{
		observer: observer,
		w:        w,
		log:      logging.New("handshake.client"),
		role:     "client",
	}}
}

// Start arms the negotiator and emits the scheme byte and client token.
func (n *ClientNegotiator) Start(uptime, version uint32) error {
	if err := n.start(uptime, version); err != nil {
		return err
	}
	if err := n.GenerateToken(); err != nil {
		return err
	}
	if n.client.DigestCapable() {
		n.scheme = SchemeDigest
	} else {
		n.scheme = SchemePlain
	}
	n.schemeSet = true
	_, err := n.w.Write(append([]byte{n.scheme}, n.client.GeneratePayload()...))
	return err
}

// GenerateToken builds the client token. Unset version selects the
// digest-capable default; a version below the supported minimum falls back
// to the plain exchange.
func (n *ClientNegotiator) GenerateToken() error {
	if !n.started {
		return handshakeErrorf("negotiator not started")
	}

	version := n.version
	if version == 0 {
		version = H264MinClient
	}
	if version < H264MinClient {
		version = 0
	}

	n.client = NewClientToken(n.uptime, version)
	n.client.GeneratePayload()
	return nil
}

// DataReceived consumes handshake bytes. It never returns an error to the
// transport: parse and validation failures terminate the handshake through
// the observer.
func (n *ClientNegotiator) DataReceived(b []byte) {
	if n.done {
		n.buffer = append(n.buffer, b...)
		return
	}
	if !n.started {
		n.fail(handshakeErrorf("data received before start"))
		return
	}
	n.buffer = append(n.buffer, b...)
	if err := n.parse(); err != nil {
		n.fail(err)
	}
}

func (n *ClientNegotiator) parse() error {
	if !n.receivedSchemeSet {
		s, ok, err := n.takeScheme()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		n.receivedScheme = s
		n.receivedSchemeSet = true
	}

	if n.server != nil {
		return nil
	}

	raw, ok := n.take(2 * PayloadLength)
	if !ok {
		return nil
	}
	server, err := DecodeServerToken(n.client, raw)
	if err != nil {
		return err
	}
	if !bytes.Equal(server.Payload()[PayloadLength:], n.client.Payload()) {
		return handshakeErrorf("handshake echo mismatch")
	}
	if n.receivedScheme == SchemeDigest {
		if err := validateServerDigest(server); err != nil {
			return err
		}
	}
	n.server = server

	if _, err := n.w.Write(server.Payload()[:PayloadLength]); err != nil {
		return err
	}
	n.succeed()
	return nil
}
