// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package router

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/rpretzer/dawn/internal/agentrt"
	"github.com/rpretzer/dawn/internal/wire"
)

// HandleInbound is the single entry point for every Frame arriving on any
// session (or from the local-dispatch shortcut used by tests and CLI
// tools). sessionID identifies the inbound connection a Response for a
// Request must eventually go back out on; it is ignored for
// Notifications.
func (n *Node) HandleInbound(ctx context.Context, sessionID string, f wire.Frame) *wire.Frame {
	if f.IsResponse() {
		n.handleInboundResponse(f)
		return nil
	}
	if !f.IsRequest() && !f.IsNotification() {
		resp, _ := wire.NewErrorResponse("", wire.CodeInvalidRequest, "invalid request", nil)
		return &resp
	}

	method := wire.ParseMethod(f.Method)
	result, err := n.dispatch(ctx, sessionID, f.ID, method, f.Params)

	if f.IsNotification() {
		return nil
	}

	if err != nil {
		resp, _ := wire.NewErrorResponse(*f.ID, wire.ToErrorObject(err).Code, wire.ToErrorObject(err).Message, nil)
		return &resp
	}
	resp, buildErr := wire.NewResult(*f.ID, result)
	if buildErr != nil {
		resp, _ = wire.NewErrorResponse(*f.ID, wire.CodeInternalError, buildErr.Error(), nil)
	}
	return &resp
}

// dispatch routes a parsed Method to a reserved handler, a local agent, or
// a cross-mesh forward, per the three accepted method forms.
func (n *Node) dispatch(ctx context.Context, sessionID string, inboundID *string, method wire.Method, params json.RawMessage) (interface{}, error) {
	switch method.Kind {
	case wire.MethodReserved:
		return n.dispatchReserved(ctx, method, params)
	case wire.MethodLocal:
		return n.dispatchLocal(ctx, method, params)
	case wire.MethodForward:
		return n.dispatchForward(ctx, sessionID, inboundID, method, params)
	default:
		return nil, wire.ErrMethodNotFound
	}
}

func (n *Node) dispatchLocal(ctx context.Context, method wire.Method, params json.RawMessage) (interface{}, error) {
	n.localMu.RLock()
	agent, ok := n.localAgents[method.AgentID]
	n.localMu.RUnlock()
	if !ok {
		return nil, wire.ErrMethodNotFound
	}
	return invokeAgentOp(ctx, agent, method.Op, params)
}

// dispatchForward sends a request across the mesh to method.NodeID and
// arranges for its eventual Response to be rewritten back to the original
// caller's session and request ID.
func (n *Node) dispatchForward(ctx context.Context, sessionID string, inboundID *string, method wire.Method, params json.RawMessage) (interface{}, error) {
	if _, ok := n.Peers.Get(method.NodeID); !ok {
		return nil, wire.ErrUnknownPeer
	}

	outboundID := uuid.NewString()
	innerMethod := method.AgentID
	if method.Op != "" {
		innerMethod = method.AgentID + "/" + method.Op
	}
	req, err := wire.NewRequest(outboundID, innerMethod, json.RawMessage(params))
	if err != nil {
		return nil, err
	}
	payload, err := wire.Encode(req)
	if err != nil {
		return nil, err
	}

	ch := n.correlator.Register(outboundID, n.requestTimeout)
	n.trackForward(method.NodeID, outboundID)
	if inboundID != nil {
		n.forwardingMu.Lock()
		n.outboundRewrite[outboundID] = forwardRecord{inboundSession: sessionID, inboundID: *inboundID}
		n.forwardingMu.Unlock()
	}

	sentAt := time.Now()
	if err := n.sendFrame(ctx, method.NodeID, payload); err != nil {
		n.correlator.Cancel(outboundID)
		n.untrackForward(method.NodeID, outboundID)
		n.Peers.RecordFailure(method.NodeID)
		n.recordForwardFailure()
		return nil, wire.ErrPeerTransportFailed
	}

	select {
	case resp := <-ch:
		n.untrackForward(method.NodeID, outboundID)
		if resp.Error != nil && resp.Error.Code == wire.CodePeerTransportFailed {
			n.recordForwardFailure()
			return nil, &wire.RPCError{Code: resp.Error.Code, Message: resp.Error.Message}
		}
		if resp.Error != nil && resp.Error.Code == wire.CodeInternalError && resp.Error.Message == wire.ErrRequestTimeout.Error() {
			n.recordForwardFailure()
			return nil, wire.ErrRequestTimeout
		}
		n.Peers.RecordSuccess(method.NodeID)
		n.observeForwardLatencyMS(float64(time.Since(sentAt).Milliseconds()))
		if resp.Error != nil {
			return nil, &wire.RPCError{Code: resp.Error.Code, Message: resp.Error.Message}
		}
		var out interface{}
		if len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, &out); err != nil {
				return nil, err
			}
		}
		return out, nil
	case <-ctx.Done():
		n.correlator.Cancel(outboundID)
		n.untrackForward(method.NodeID, outboundID)
		n.recordForwardFailure()
		return nil, ctx.Err()
	}
}

// trackForward records outboundID as in flight to peerNodeID, so a session
// teardown can fail it immediately instead of leaving the caller waiting
// out the full request timeout.
func (n *Node) trackForward(peerNodeID, outboundID string) {
	n.forwardingMu.Lock()
	defer n.forwardingMu.Unlock()
	if n.forwardsByPeer[peerNodeID] == nil {
		n.forwardsByPeer[peerNodeID] = make(map[string]struct{})
	}
	n.forwardsByPeer[peerNodeID][outboundID] = struct{}{}
}

func (n *Node) untrackForward(peerNodeID, outboundID string) {
	n.forwardingMu.Lock()
	defer n.forwardingMu.Unlock()
	delete(n.forwardsByPeer[peerNodeID], outboundID)
	delete(n.outboundRewrite, outboundID)
}

// SessionClosed fails every forward currently in flight to peerNodeID with
// PeerTransportFailed, so a caller blocked in dispatchForward gets an
// immediate answer instead of waiting out the request timeout. Called by
// whatever owns the transport session once it observes the session die.
func (n *Node) SessionClosed(peerNodeID string) {
	n.forwardingMu.Lock()
	ids := n.forwardsByPeer[peerNodeID]
	delete(n.forwardsByPeer, peerNodeID)
	for id := range ids {
		delete(n.outboundRewrite, id)
	}
	n.forwardingMu.Unlock()

	if len(ids) == 0 {
		return
	}
	errObj := wire.ToErrorObject(wire.ErrPeerTransportFailed)
	for id := range ids {
		n.correlator.Fail(id, errObj)
	}
	n.Peers.RecordFailure(peerNodeID)
}

// handleInboundResponse completes a pending forward's correlator entry. The
// dispatchForward call waiting on that entry then returns the peer's result
// or error, and HandleInbound answers the original caller under the
// caller's own request ID; outboundRewrite is not consulted here.
func (n *Node) handleInboundResponse(f wire.Frame) {
	n.correlator.Complete(f)
}

// toolCallParams is the body of an "A/tools/call" request.
type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// resourceReadParams is the body of an "A/resources/read" request.
type resourceReadParams struct {
	URI string `json:"uri"`
}

// promptGetParams is the body of an "A/prompts/get" request.
type promptGetParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments"`
}

// chatMessageParams is the body of an "A/chat/message" request.
type chatMessageParams struct {
	Message string `json:"message"`
	RoomID  string `json:"room_id"`
}

// invokeAgentOp maps a method's op segment onto the agent's capability
// tables: "tools/list", "tools/call", "resources/list", "resources/read",
// "prompts/list", "prompts/get", and "chat/message" are the only op forms
// an agent answers; anything else is MethodNotFound.
func invokeAgentOp(ctx context.Context, agent *agentrt.Agent, op string, params json.RawMessage) (interface{}, error) {
	verb, action, _ := strings.Cut(op, "/")
	switch verb {
	case "tools":
		switch action {
		case "list":
			return map[string]interface{}{"tools": agent.ToolSpecs()}, nil
		case "call":
			var args toolCallParams
			if err := unmarshalParams(params, &args); err != nil {
				return nil, wire.ErrInvalidParams
			}
			if args.Name == "" {
				return nil, wire.ErrInvalidParams
			}
			result, err := agent.CallTool(ctx, args.Name, args.Arguments)
			if err != nil {
				return nil, mapAgentError(err)
			}
			return result, nil
		}
	case "resources":
		switch action {
		case "list":
			return map[string]interface{}{"resources": agent.ResourceSpecs()}, nil
		case "read":
			var args resourceReadParams
			if err := unmarshalParams(params, &args); err != nil {
				return nil, wire.ErrInvalidParams
			}
			if args.URI == "" {
				return nil, wire.ErrInvalidParams
			}
			result, err := agent.ReadResource(ctx, args.URI)
			if err != nil {
				return nil, mapAgentError(err)
			}
			return result, nil
		}
	case "prompts":
		switch action {
		case "list":
			return map[string]interface{}{"prompts": agent.PromptSpecs()}, nil
		case "get":
			var args promptGetParams
			if err := unmarshalParams(params, &args); err != nil {
				return nil, wire.ErrInvalidParams
			}
			rendered, err := agent.RenderPrompt(args.Name, args.Arguments)
			if err != nil {
				return nil, mapAgentError(err)
			}
			return map[string]interface{}{
				"messages": []agentrt.ChatMessage{{Role: "user", Content: rendered}},
			}, nil
		}
	case "chat":
		if action == "message" {
			var in chatMessageParams
			if err := unmarshalParams(params, &in); err != nil {
				return nil, wire.ErrInvalidParams
			}
			reply, err := agent.Converse(ctx, []agentrt.ChatMessage{{Role: "user", Content: in.Message}})
			if err != nil {
				return nil, mapAgentError(err)
			}
			return map[string]string{"agent_id": agent.ID, "content": reply.Content}, nil
		}
	}
	return nil, wire.ErrMethodNotFound
}

// mapAgentError translates an agentrt capability-lookup/validation failure
// onto its wire error code. A missing tool/resource/prompt name and a
// schema validation failure are both the caller's fault (-32602); chat
// unsupported by this agent is MethodNotFound, per the chat operation's
// documented fallback.
func mapAgentError(err error) error {
	switch {
	case errors.Is(err, agentrt.ErrArgsInvalid),
		errors.Is(err, agentrt.ErrUnknownTool),
		errors.Is(err, agentrt.ErrUnknownResource),
		errors.Is(err, agentrt.ErrUnknownPrompt):
		return wire.ErrInvalidParams
	case errors.Is(err, agentrt.ErrChatUnsupported):
		return wire.ErrMethodNotFound
	default:
		return err
	}
}

func unmarshalParams(params json.RawMessage, out interface{}) error {
	if len(params) == 0 {
		return nil
	}
	return json.Unmarshal(params, out)
}
