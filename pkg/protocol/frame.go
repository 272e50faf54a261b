package protocol

import "encoding/json"

// Well-known field values on the Pico wire.
const (
	// SourceApp is the "frm" value for frames sent by the client.
	SourceApp = "app"

	// SourceController is the "frm" value for frames sent by the controller.
	SourceController = "mst"

	// ResultAck is the "res" value of a receipt acknowledgement.
	ResultAck = 99
)

// FrameKind classifies a decoded inbound frame.
type FrameKind int

const (
	// FrameKindUnknown is the zero value for an unclassified frame.
	FrameKindUnknown FrameKind = iota

	// FrameKindAck is a receipt confirmation (res=99 from the controller).
	// It confirms the controller saw the request; the result follows later.
	FrameKindAck

	// FrameKindResponse is a full response carrying the command result.
	FrameKindResponse
)

// String returns a human-readable name for the frame kind.
func (k FrameKind) String() string {
	switch k {
	case FrameKindAck:
		return "Ack"
	case FrameKindResponse:
		return "Response"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the kind is a defined value.
func (k FrameKind) IsValid() bool {
	return k == FrameKindAck || k == FrameKindResponse
}

// Command is an outgoing request before IDP assignment.
// Params carry command-specific fields and are merged into the frame as-is.
type Command struct {
	// Name is the command verb, e.g. "stato_sync".
	Name string

	// PIN is the device PIN code. Omitted from the frame when empty.
	PIN string

	// Params holds additional command fields.
	Params map[string]any
}

// Encode marshals the command into a wire frame carrying the given IDP.
// The frame always declares frm="app".
func Encode(cmd Command, idp int) ([]byte, error) {
	if cmd.Name == "" {
		return nil, ErrMissingCommand
	}

	m := make(map[string]any, len(cmd.Params)+4)
	for k, v := range cmd.Params {
		m[k] = v
	}
	m["cmd"] = cmd.Name
	m["frm"] = SourceApp
	m["idp"] = idp
	if cmd.PIN != "" {
		m["pin"] = cmd.PIN
	}

	return json.Marshal(m)
}

// ackFrame is the app-side receipt confirmation for a full response.
type ackFrame struct {
	IDP    int    `json:"idp"`
	Source string `json:"frm"`
	Result int    `json:"res"`
}

// EncodeAck builds the receipt confirmation the client sends back to the
// controller after receiving a full response for the given IDP.
func EncodeAck(idp int) []byte {
	b, _ := json.Marshal(ackFrame{IDP: idp, Source: SourceApp, Result: ResultAck})
	return b
}

// Frame is a decoded inbound datagram.
type Frame struct {
	// IDP is the echoed correlation identifier.
	IDP int

	// Kind classifies the frame as ACK or RESPONSE.
	Kind FrameKind

	// Command is the echoed command verb, when present.
	Command string

	// Source is the "frm" field value.
	Source string

	// Result is the "res" field value (0 when absent).
	Result int

	// Payload is the full decoded frame object.
	Payload map[string]any
}

// Decode parses a raw datagram into a Frame.
// Returns ErrMalformedFrame for non-JSON data and ErrMissingIDP for frames
// that carry no usable correlation identifier.
func Decode(data []byte) (*Frame, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, ErrMalformedFrame
	}

	idp, ok := intField(m, "idp")
	if !ok {
		return nil, ErrMissingIDP
	}

	res, _ := intField(m, "res")
	frm, _ := m["frm"].(string)
	cmd, _ := m["cmd"].(string)

	kind := FrameKindResponse
	if res == ResultAck && frm == SourceController {
		kind = FrameKindAck
	}

	return &Frame{
		IDP:     idp,
		Kind:    kind,
		Command: cmd,
		Source:  frm,
		Result:  res,
		Payload: m,
	}, nil
}

// intField extracts an integer field from a decoded JSON object.
// encoding/json decodes numbers as float64.
func intField(m map[string]any, key string) (int, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}
