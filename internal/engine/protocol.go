// Package engine provides the client side of the lexdesk engine protocol.
//
// The engine is a separate native process that owns all data: loaded
// dataframes, preprocessing pipelines and the ML runtime. The client talks
// to it over a local socket carrying newline-delimited JSON frames. Two
// frame flavors exist:
//
//   - Commands: request/response pairs correlated by an integer id.
//   - Events: unsolicited pushes identified by a channel name, with no
//     ordering guarantee relative to command responses.
package engine

import (
	"encoding/json"
	"fmt"
)

// Error is a structured command failure reported by the engine.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Engine error codes shared with the backend. The engine may emit codes
// outside this list; these are the ones the client branches on.
const (
	CodeFileNotFound       = "FILE_NOT_FOUND"
	CodeFileReadError      = "FILE_READ_ERROR"
	CodeFileParseError     = "FILE_PARSE_ERROR"
	CodeNoDataLoaded       = "NO_DATA_LOADED"
	CodeInvalidConfig      = "INVALID_CONFIG"
	CodeColumnNotFound     = "COLUMN_NOT_FOUND"
	CodeCancelled          = "CANCELLED"
	CodeAIClientError      = "AI_CLIENT_ERROR"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeMLNotInitialized   = "ML_NOT_INITIALIZED"
	CodeTrainingInProgress = "ML_TRAINING_IN_PROGRESS"
	CodeInvalidProvider    = "INVALID_PROVIDER"
	CodeInvalidAPIKey      = "INVALID_API_KEY"
	CodeUnknown            = "UNKNOWN_ERROR"
)

// request is a single command frame sent to the engine.
type request struct {
	ID   uint64      `json:"id"`
	Cmd  string      `json:"cmd"`
	Args interface{} `json:"args,omitempty"`
}

// frame is any single line received from the engine. Responses carry an id;
// events carry a channel name. The two are mutually exclusive.
type frame struct {
	ID      *uint64         `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	Event   string          `json:"event,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// encodeRequest serializes a request to a newline-terminated JSON line.
func encodeRequest(r *request) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// decodeFrame deserializes one line received from the engine.
func decodeFrame(data []byte) (*frame, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.ID == nil && f.Event == "" {
		return nil, fmt.Errorf("frame has neither id nor event")
	}
	return &f, nil
}
