package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	// plugin -> server
	TypeHello      = "HELLO"
	TypeRollout    = "ROLLOUT"
	TypeRecover    = "RECOVER"
	TypePreview    = "PREVIEW"
	TypeSave       = "SAVE"
	TypeLoad       = "LOAD"
	TypeResearch   = "RESEARCH"
	TypeQuery      = "QUERY"
	TypePlacement  = "PLACEMENT"
	TypeSetDisplay = "SET_DISPLAY"

	// server -> plugin
	TypeWelcome    = "WELCOME"
	TypeResult     = "RESULT"
	TypeEstimate   = "ESTIMATE"
	TypeSaveData   = "SAVE_DATA"
	TypeLoaded     = "LOADED"
	TypeCounters   = "COUNTERS"
	TypePlacementR = "PLACEMENT_RESULT"
	TypeAck        = "ACK"
	TypeError      = "ERROR"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	ReqID           string `json:"req_id,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// Decode parses a plugin request into its typed message. It returns
// ErrBadRequest-coded errors for unknown types and malformed bodies.
func Decode(b []byte) (any, error) {
	base, err := DecodeBase(b)
	if err != nil {
		return nil, &Error{Code: ErrBadRequest, Message: "malformed json"}
	}
	if base.ProtocolVersion != Version {
		return nil, &Error{Code: ErrProtoVersion, Message: "bad protocol_version", ReqID: base.ReqID}
	}
	var msg any
	switch base.Type {
	case TypeRollout:
		msg = &RolloutMsg{}
	case TypeRecover:
		msg = &RecoverMsg{}
	case TypePreview:
		msg = &PreviewMsg{}
	case TypeSave:
		msg = &SaveMsg{}
	case TypeLoad:
		msg = &LoadMsg{}
	case TypeResearch:
		msg = &ResearchMsg{}
	case TypeQuery:
		msg = &QueryMsg{}
	case TypePlacement:
		msg = &PlacementMsg{}
	case TypeSetDisplay:
		msg = &SetDisplayMsg{}
	default:
		return nil, &Error{Code: ErrBadRequest, Message: "unknown type: " + base.Type, ReqID: base.ReqID}
	}
	if err := json.Unmarshal(b, msg); err != nil {
		return nil, &Error{Code: ErrBadRequest, Message: err.Error(), ReqID: base.ReqID}
	}
	return msg, nil
}
