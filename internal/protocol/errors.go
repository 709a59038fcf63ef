package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Request layer.
	ErrBadRequest     = "E_BAD_REQUEST"
	ErrBadVessel      = "E_BAD_VESSEL"
	ErrMissingSection = "E_MISSING_SECTION"
	ErrBadSave        = "E_BAD_SAVE"
	ErrBusy           = "E_BUSY"
	ErrInternal       = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrBadRequest:      {},
	ErrBadVessel:       {},
	ErrMissingSection:  {},
	ErrBadSave:         {},
	ErrBusy:            {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// Error is a coded request failure. It doubles as the payload of ERROR.
type Error struct {
	Code    string
	Message string
	ReqID   string
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

func (e *Error) Msg() ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, ReqID: e.ReqID, Code: e.Code, Message: e.Message}
}
