// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

import "github.com/cockroachdb/errors"

// RPCError is an error carrying a wire-level error code, suitable for
// direct translation into an ErrorObject.
type RPCError struct {
	Code    int32
	Message string
}

func (e *RPCError) Error() string { return e.Message }

// Code32 returns the wire error code. ToErrorObject reads the Code field
// directly after errors.As, not this method.
func (e *RPCError) Code32() int32 { return e.Code }

// Standard JSON-RPC-shaped error codes, per the protocol's error table.
// Unknown local agent is MethodNotFound, not a distinct application code:
// there is nothing agent-specific about a missing route, so it gets the
// same code an unknown reserved method would.
const (
	CodeParseError     int32 = -32700
	CodeInvalidRequest int32 = -32600
	CodeMethodNotFound int32 = -32601
	CodeInvalidParams  int32 = -32602
	CodeInternalError  int32 = -32603

	// Application-specific codes, per the error table's [-32000,-32099] band.
	CodeUnknownPeer         int32 = -32001
	CodePeerTransportFailed int32 = -32002
	CodeBackpressure        int32 = -32003
)

var (
	// ErrParse indicates the peer sent bytes that could not be decoded as
	// a Frame or Batch.
	ErrParse = &RPCError{Code: CodeParseError, Message: "parse error"}
	// ErrInvalidRequest indicates a structurally invalid Frame (e.g.
	// missing method on a request).
	ErrInvalidRequest = &RPCError{Code: CodeInvalidRequest, Message: "invalid request"}
	// ErrMethodNotFound indicates no reserved method, local agent, or
	// forwarding target matched.
	ErrMethodNotFound = &RPCError{Code: CodeMethodNotFound, Message: "method not found"}
	// ErrInvalidParams indicates params failed a tool/resource/prompt
	// argument schema check.
	ErrInvalidParams = &RPCError{Code: CodeInvalidParams, Message: "invalid params"}
	// ErrInternal wraps any unexpected internal failure.
	ErrInternal = &RPCError{Code: CodeInternalError, Message: "internal error"}
	// ErrUnknownPeer indicates a forward targeted a node_id absent from
	// the peer registry.
	ErrUnknownPeer = &RPCError{Code: CodeUnknownPeer, Message: "unknown peer"}
	// ErrPeerTransportFailed indicates the outbound session to a peer was
	// torn down while a forwarded request was in flight on it.
	ErrPeerTransportFailed = &RPCError{Code: CodePeerTransportFailed, Message: "peer transport failed"}
	// ErrBackpressure indicates a session's bounded outbound queue was
	// full and the caller's frame was rejected rather than queued.
	ErrBackpressure = &RPCError{Code: CodeBackpressure, Message: "backpressure: outbound queue full"}
)

// ErrRequestTimeout indicates a forwarded call exceeded its
// deadline before a response arrived. It carries no wire error code of its
// own: the error table lists RequestTimeout as local-only, so a Frame that
// must represent one on the wire falls back to CodeInternalError.
var ErrRequestTimeout = errors.New("wire: request timed out")

// ToErrorObject converts any error into a wire ErrorObject, mapping known
// *RPCError values to their code and falling back to CodeInternalError.
func ToErrorObject(err error) *ErrorObject {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return &ErrorObject{Code: rpcErr.Code, Message: rpcErr.Message}
	}
	return &ErrorObject{Code: CodeInternalError, Message: err.Error()}
}
