// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wire implements the framed, JSON-RPC-shaped protocol nodes use
// to exchange requests, responses, and notifications, both locally (node
// to its own agents) and over the network (node to node).
package wire

import (
	"encoding/json"

	"github.com/luxfi/codec"
)

// ProtocolVersion is the current wire protocol version.
const ProtocolVersion = "2.0"

// Frame is the envelope for every message exchanged between nodes. Exactly
// one of (Method present / Result present / Error present) is meaningful
// depending on the frame's role:
//   - Request:      Method set, ID set, expects a Response
//   - Notification: Method set, ID omitted, no response expected
//   - Response:     ID set, Result XOR Error set
type Frame struct {
	Version string          `json:"jsonrpc"`
	ID      *string         `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// ErrorObject is the RPC error payload, shaped like JSON-RPC's error member.
type ErrorObject struct {
	Code    int32           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Batch is a sequence of frames sent and decoded as a single wire unit.
type Batch []Frame

// NewRequest builds a request Frame with params marshaled via the default codec.
func NewRequest(id, method string, params interface{}) (Frame, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Version: ProtocolVersion, ID: &id, Method: method, Params: raw}, nil
}

// NewNotification builds a notification Frame (no ID, no response expected).
func NewNotification(method string, params interface{}) (Frame, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Version: ProtocolVersion, Method: method, Params: raw}, nil
}

// NewResult builds a success response Frame correlated to id.
func NewResult(id string, result interface{}) (Frame, error) {
	raw, err := marshalParams(result)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Version: ProtocolVersion, ID: &id, Result: raw}, nil
}

// NewErrorResponse builds an error response Frame correlated to id.
func NewErrorResponse(id string, code int32, message string, data interface{}) (Frame, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := marshalParams(data)
		if err != nil {
			return Frame{}, err
		}
		raw = b
	}
	return Frame{
		Version: ProtocolVersion,
		ID:      &id,
		Error:   &ErrorObject{Code: code, Message: message, Data: raw},
	}, nil
}

// IsRequest reports whether f is a request (method + id both set).
func (f Frame) IsRequest() bool { return f.Method != "" && f.ID != nil }

// IsNotification reports whether f is a notification (method set, no id).
func (f Frame) IsNotification() bool { return f.Method != "" && f.ID == nil }

// IsResponse reports whether f is a response (no method, id set).
func (f Frame) IsResponse() bool { return f.Method == "" && f.ID != nil }

func marshalParams(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := codec.Codec.Marshal(codec.CurrentVersion, v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Encode serializes a single Frame.
func Encode(f Frame) ([]byte, error) {
	return json.Marshal(f)
}

// EncodeBatch serializes a batch of response frames as a single wire unit:
// a bare Frame when there is exactly one, a JSON array otherwise, mirroring
// the shape DecodeAny accepts on the way in.
func EncodeBatch(b Batch) ([]byte, error) {
	if len(b) == 1 {
		return Encode(b[0])
	}
	return json.Marshal(b)
}

// Decode parses a single Frame.
func Decode(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// DecodeAny parses data as either a single Frame or a Batch, returning the
// normalized batch form (len 1 for a single frame).
func DecodeAny(data []byte) (Batch, error) {
	trimmed := data
	for len(trimmed) > 0 && (trimmed[0] == ' ' || trimmed[0] == '\t' || trimmed[0] == '\n' || trimmed[0] == '\r') {
		trimmed = trimmed[1:]
	}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var batch Batch
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, err
		}
		return batch, nil
	}
	f, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return Batch{f}, nil
}
