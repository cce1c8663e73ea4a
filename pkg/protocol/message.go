// Package protocol implements the Crowd Control SimpleTCP wire format:
// UTF-8 JSON objects, each terminated by a single NUL byte.
package protocol

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// RequestType identifies an inbound message from the controller.
// Values outside the known set are kept as-is so they can be ignored downstream.
type RequestType int

const (
	RequestTypeEffectTest   RequestType = 0x00
	RequestTypeEffectStart  RequestType = 0x01
	RequestTypeEffectStop   RequestType = 0x02
	RequestTypeGenericEvent RequestType = 0x10
	RequestTypeDataRequest  RequestType = 0x20
	RequestTypeRpcResponse  RequestType = 0xD0
	RequestTypePlayerInfo   RequestType = 0xE0
	RequestTypeLogin        RequestType = 0xF0
	RequestTypeGameUpdate   RequestType = 0xFD
	RequestTypeKeepAlive    RequestType = 0xFF
)

// Known reports whether rt is one of the request types defined by the protocol.
func (rt RequestType) Known() bool {
	switch rt {
	case RequestTypeEffectTest, RequestTypeEffectStart, RequestTypeEffectStop,
		RequestTypeGenericEvent, RequestTypeDataRequest, RequestTypeRpcResponse,
		RequestTypePlayerInfo, RequestTypeLogin, RequestTypeGameUpdate, RequestTypeKeepAlive:
		return true
	default:
		return false
	}
}

// String returns the string representation of RequestType
func (rt RequestType) String() string {
	switch rt {
	case RequestTypeEffectTest:
		return "EffectTest"
	case RequestTypeEffectStart:
		return "EffectStart"
	case RequestTypeEffectStop:
		return "EffectStop"
	case RequestTypeGenericEvent:
		return "GenericEvent"
	case RequestTypeDataRequest:
		return "DataRequest"
	case RequestTypeRpcResponse:
		return "RpcResponse"
	case RequestTypePlayerInfo:
		return "PlayerInfo"
	case RequestTypeLogin:
		return "Login"
	case RequestTypeGameUpdate:
		return "GameUpdate"
	case RequestTypeKeepAlive:
		return "KeepAlive"
	default:
		return fmt.Sprintf("Unknown(%d)", int(rt))
	}
}

// ResponseType identifies an outbound message sent to the controller.
type ResponseType int

const (
	ResponseTypeEffectRequest ResponseType = 0x00
	ResponseTypeEffectStatus  ResponseType = 0x01
	ResponseTypeGenericEvent  ResponseType = 0x10
	ResponseTypeLoadEvent     ResponseType = 0x18
	ResponseTypeSaveEvent     ResponseType = 0x19
	ResponseTypeDataResponse  ResponseType = 0x20
	ResponseTypeRpcRequest    ResponseType = 0xD0
	ResponseTypeLogin         ResponseType = 0xF0
	ResponseTypeLoginSuccess  ResponseType = 0xF1
	ResponseTypeGameUpdate    ResponseType = 0xFD
	ResponseTypeDisconnect    ResponseType = 0xFE
	ResponseTypeKeepAlive     ResponseType = 0xFF
)

// String returns the string representation of ResponseType
func (rt ResponseType) String() string {
	switch rt {
	case ResponseTypeEffectRequest:
		return "EffectRequest"
	case ResponseTypeEffectStatus:
		return "EffectStatus"
	case ResponseTypeGenericEvent:
		return "GenericEvent"
	case ResponseTypeLoadEvent:
		return "LoadEvent"
	case ResponseTypeSaveEvent:
		return "SaveEvent"
	case ResponseTypeDataResponse:
		return "DataResponse"
	case ResponseTypeRpcRequest:
		return "RpcRequest"
	case ResponseTypeLogin:
		return "Login"
	case ResponseTypeLoginSuccess:
		return "LoginSuccess"
	case ResponseTypeGameUpdate:
		return "GameUpdate"
	case ResponseTypeDisconnect:
		return "Disconnect"
	case ResponseTypeKeepAlive:
		return "KeepAlive"
	default:
		return fmt.Sprintf("Unknown(%d)", int(rt))
	}
}

// EffectStatus is the outcome reported for an effect request.
type EffectStatus int

const (
	// Effect instance messages.
	StatusSuccess     EffectStatus = 0x00
	StatusFailure     EffectStatus = 0x01 // failed to trigger, still available, viewer refunded
	StatusUnavailable EffectStatus = 0x02 // failed and unavailable for the rest of the game
	StatusRetry       EffectStatus = 0x03 // cannot be triggered right now, controller retries
	StatusQueue       EffectStatus = 0x04
	StatusRunning     EffectStatus = 0x05
	StatusPaused      EffectStatus = 0x06
	StatusResumed     EffectStatus = 0x07
	StatusFinished    EffectStatus = 0x08

	// Effect class messages.
	StatusVisible       EffectStatus = 0x80
	StatusNotVisible    EffectStatus = 0x81
	StatusSelectable    EffectStatus = 0x82
	StatusNotSelectable EffectStatus = 0x83

	// System status messages.
	StatusNotReady EffectStatus = 0xFF
)

// String returns the string representation of EffectStatus
func (s EffectStatus) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusFailure:
		return "Failure"
	case StatusUnavailable:
		return "Unavailable"
	case StatusRetry:
		return "Retry"
	case StatusQueue:
		return "Queue"
	case StatusRunning:
		return "Running"
	case StatusPaused:
		return "Paused"
	case StatusResumed:
		return "Resumed"
	case StatusFinished:
		return "Finished"
	case StatusVisible:
		return "Visible"
	case StatusNotVisible:
		return "NotVisible"
	case StatusSelectable:
		return "Selectable"
	case StatusNotSelectable:
		return "NotSelectable"
	case StatusNotReady:
		return "NotReady"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// GameStateReady is the state reported in a GameUpdate reply when the client accepts effects.
const GameStateReady = 1

// Request is a decoded controller message.
type Request struct {
	ID       int64
	Type     RequestType
	Code     string   // empty when absent
	Duration *float64 // nil when absent
	// Payload holds every field other than id, type, code and duration.
	Payload *structpb.Struct
}

// HasDuration reports whether the request carried a duration.
func (r *Request) HasDuration() bool {
	return r.Duration != nil
}

// Field returns a remaining payload field by name.
func (r *Request) Field(name string) (*structpb.Value, bool) {
	if r.Payload == nil {
		return nil, false
	}
	v, ok := r.Payload.GetFields()[name]
	return v, ok
}

// Response is a message sent back to the controller.
// Optional fields are omitted from the wire when nil.
type Response struct {
	ID       int64         `json:"id"`
	Type     ResponseType  `json:"type"`
	Status   *EffectStatus `json:"status,omitempty"`
	Duration *float64      `json:"duration,omitempty"`
	State    *int          `json:"state,omitempty"`
}

// NewEffectResponse builds the immediate reply to an effect request.
func NewEffectResponse(id int64, status EffectStatus) Response {
	return Response{
		ID:     id,
		Type:   ResponseTypeEffectRequest,
		Status: &status,
	}
}

// NewEffectStatus builds an unsolicited status update for a previously started effect.
func NewEffectStatus(id int64, status EffectStatus) Response {
	return Response{
		ID:     id,
		Type:   ResponseTypeEffectStatus,
		Status: &status,
	}
}

// NewGameUpdate builds the heartbeat reply to a GameUpdate request.
func NewGameUpdate(id int64, state int) Response {
	return Response{
		ID:    id,
		Type:  ResponseTypeGameUpdate,
		State: &state,
	}
}

// WithDuration returns a copy of r carrying d.
func (r Response) WithDuration(d float64) Response {
	r.Duration = &d
	return r
}
