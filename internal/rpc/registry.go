package rpc

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ternio/rtmpcore/internal/logging"
	"github.com/ternio/rtmpcore/internal/observability"
)

// NoResult is the reserved call id meaning no response is expected.
const NoResult uint32 = 0

// Well-known response names a peer answers an invoke with.
const (
	ResponseResult = "_result"
	ResponseError  = "_error"
)

// ErrUnknownResponse resolves a pending call whose response carried a name
// that is neither a result nor an error. Stranding the caller forever would
// leak the registry entry, so the call fails instead.
var ErrUnknownResponse = errors.New("rpc: unrecognized response name")

// RemoteCallError carries the error payload a peer answered a call with.
type RemoteCallError struct {
	Value interface{}
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("rpc: remote call failed: %v", e.Value)
}

// Invoke is one remote call on the wire.
type Invoke struct {
	Name    string
	CallID  uint32
	Command interface{}
	Args    []interface{}
}

// MessageSender delivers an invoke to the peer.
type MessageSender interface {
	SendMessage(inv *Invoke) error
}

// PendingCall is an outstanding remote call awaiting its response. Done is
// closed exactly once, after Result or Err is set.
type PendingCall struct {
	Name    string
	Command interface{}
	Args    []interface{}

	Result interface{}
	Err    error
	Done   chan struct{}
}

func newPendingCall(name string, command interface{}, args []interface{}) *PendingCall {
	return &PendingCall{
		Name:    name,
		Command: command,
		Args:    args,
		Done:    make(chan struct{}),
	}
}

func (c *PendingCall) resolve(result interface{}, err error) {
	c.Result = result
	c.Err = err
	close(c.Done)
}

// Registry tracks outstanding calls by id. Ids are monotonic and never
// reused for the lifetime of the registry, even across discarded calls.
type Registry struct {
	lastCallID uint32
	active     map[uint32]*PendingCall
}

func NewRegistry() *Registry {
	return &Registry{active: make(map[uint32]*PendingCall)}
}

// IsCallActive reports whether a call id has been initiated and not yet
// finished or discarded.
func (r *Registry) IsCallActive(id uint32) bool {
	_, ok := r.active[id]
	return ok
}

// NextCallID reserves and returns the next call id.
func (r *Registry) NextCallID() uint32 {
	r.lastCallID++
	return r.lastCallID
}

// InitiateCall registers a pending call under a fresh id.
func (r *Registry) InitiateCall(call *PendingCall) uint32 {
	id := r.NextCallID()
	r.active[id] = call
	observability.RecordCall("initiated")
	observability.SetActiveCalls(len(r.active))
	return id
}

// FinishCall pops and returns the pending call for id, the success path.
func (r *Registry) FinishCall(id uint32) (*PendingCall, bool) {
	call, ok := r.active[id]
	if !ok {
		return nil, false
	}
	delete(r.active, id)
	observability.RecordCall("finished")
	observability.SetActiveCalls(len(r.active))
	return call, true
}

// DiscardCall pops and returns the pending call for id, the abort path.
// The id stays consumed.
func (r *Registry) DiscardCall(id uint32) (*PendingCall, bool) {
	call, ok := r.active[id]
	if !ok {
		return nil, false
	}
	delete(r.active, id)
	observability.RecordCall("discarded")
	observability.SetActiveCalls(len(r.active))
	return call, true
}

// ActiveCalls reports how many calls are outstanding.
func (r *Registry) ActiveCalls() int {
	return len(r.active)
}

// Caller layers the send and response-routing paths over a registry.
type Caller struct {
	*Registry
	sender MessageSender
	log    zerolog.Logger
}

func NewCaller(sender MessageSender) *Caller {
	return &Caller{
		Registry: NewRegistry(),
		sender:   sender,
		log:      logging.New("rpc"),
	}
}

// CallRemote sends a fire-and-forget invoke tagged with the no-result id.
// Nothing is registered.
func (c *Caller) CallRemote(name string, command interface{}, args ...interface{}) error {
	return c.sender.SendMessage(&Invoke{
		Name:    name,
		CallID:  NoResult,
		Command: command,
		Args:    args,
	})
}

// CallRemoteWithResult registers a call and sends the invoke under its id.
// A failed send discards the registration before the error returns, so no
// orphaned entry survives.
func (c *Caller) CallRemoteWithResult(name string, command interface{}, args ...interface{}) (*PendingCall, error) {
	call := newPendingCall(name, command, args)
	id := c.InitiateCall(call)
	err := c.sender.SendMessage(&Invoke{
		Name:    name,
		CallID:  id,
		Command: command,
		Args:    args,
	})
	if err != nil {
		c.DiscardCall(id)
		return nil, err
	}
	return call, nil
}

// HandleResponse routes an inbound response to the waiting call. Unknown
// ids are logged, never escalated: id 0 is an unsolicited notification,
// anything else an unmatched response.
func (c *Caller) HandleResponse(name string, callID uint32, result interface{}) {
	call, ok := c.FinishCall(callID)
	if !ok {
		if callID == NoResult {
			observability.RecordCall("unsolicited")
			c.log.Debug().Str("name", name).Msg("unsolicited notification")
			return
		}
		observability.RecordCall("unmatched")
		c.log.Warn().Str("name", name).Uint32("call_id", callID).Msg("unmatched response")
		return
	}

	switch name {
	case ResponseResult:
		call.resolve(result, nil)
	case ResponseError:
		call.resolve(nil, &RemoteCallError{Value: result})
	default:
		observability.RecordCall("unrecognized")
		c.log.Warn().Str("name", name).Uint32("call_id", callID).Msg("unrecognized response name")
		call.resolve(nil, fmt.Errorf("%w: %q", ErrUnknownResponse, name))
	}
}
