// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package agentrt hosts the agents a node runs locally: each agent's
// tool/resource/prompt/chat capability tables, JSON-schema validation of
// tool-call arguments, and named-placeholder prompt rendering.
package agentrt

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ToolHandler executes a tool call and returns its JSON-marshalable result.
type ToolHandler func(ctx context.Context, args json.RawMessage) (interface{}, error)

// ResourceHandler fetches a resource's content by URI.
type ResourceHandler func(ctx context.Context, uri string) (interface{}, error)

// ToolSpec describes one callable tool: its name, its JSON-schema argument
// contract, and the handler invoked once arguments validate.
type ToolSpec struct {
	Name        string
	Description string
	SchemaJSON  json.RawMessage
	Schema      *jsonschema.Schema
	Handler     ToolHandler
}

// ResourceSpec describes one fetchable resource.
type ResourceSpec struct {
	URI         string
	Name        string
	Description string
	MimeType    string
	Handler     ResourceHandler
}

// PromptSpec describes one prompt template, rendered by substituting
// "{{name}}"-style named placeholders from the caller-supplied arguments.
type PromptSpec struct {
	Name        string
	Description string
	Template    string
	ArgNames    []string
}

// ChatHandler answers a chat-style call with free-form conversational
// turns; agents that don't support chat leave this nil.
type ChatHandler func(ctx context.Context, messages []ChatMessage) (ChatMessage, error)

// ChatMessage is one turn of a chat exchange.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Agent is one locally hosted agent: its capability tables plus an
// optional chat handler.
type Agent struct {
	ID        string
	Name      string
	Tools     map[string]ToolSpec
	Resources map[string]ResourceSpec
	Prompts   map[string]PromptSpec
	Chat      ChatHandler
}

// NewAgent constructs an empty Agent ready to have capabilities registered.
func NewAgent(id, name string) *Agent {
	return &Agent{
		ID:        id,
		Name:      name,
		Tools:     make(map[string]ToolSpec),
		Resources: make(map[string]ResourceSpec),
		Prompts:   make(map[string]PromptSpec),
	}
}

// RegisterTool adds a tool, compiling its argument schema from a JSON
// Schema document. An empty schemaJSON skips validation (any args accepted).
func (a *Agent) RegisterTool(name, description string, schemaJSON []byte, handler ToolHandler) error {
	spec := ToolSpec{Name: name, Description: description, Handler: handler}
	if len(schemaJSON) > 0 {
		compiled, err := compileSchema(name, schemaJSON)
		if err != nil {
			return err
		}
		spec.Schema = compiled
		spec.SchemaJSON = json.RawMessage(schemaJSON)
	}
	a.Tools[name] = spec
	return nil
}

// RegisterResource adds a resource handler.
func (a *Agent) RegisterResource(uri, name, description, mimeType string, handler ResourceHandler) {
	a.Resources[uri] = ResourceSpec{URI: uri, Name: name, Description: description, MimeType: mimeType, Handler: handler}
}

// RegisterPrompt adds a named-placeholder prompt template.
func (a *Agent) RegisterPrompt(name, description, template string, argNames []string) {
	a.Prompts[name] = PromptSpec{Name: name, Description: description, Template: template, ArgNames: argNames}
}

func compileSchema(name string, schemaJSON []byte) (*jsonschema.Schema, error) {
	var doc interface{}
	if err := json.Unmarshal(schemaJSON, &doc); err != nil {
		return nil, errors.Wrapf(err, "agentrt: parse schema for tool %q", name)
	}
	compiler := jsonschema.NewCompiler()
	url := "mem://tools/" + name + ".json"
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, errors.Wrapf(err, "agentrt: add schema resource for tool %q", name)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, errors.Wrapf(err, "agentrt: compile schema for tool %q", name)
	}
	return schema, nil
}

// ErrUnknownTool, ErrUnknownResource, and ErrUnknownPrompt are returned
// when a capability lookup misses.
var (
	ErrUnknownTool     = errors.New("agentrt: unknown tool")
	ErrUnknownResource = errors.New("agentrt: unknown resource")
	ErrUnknownPrompt   = errors.New("agentrt: unknown prompt")
	ErrChatUnsupported = errors.New("agentrt: agent does not support chat")
	ErrArgsInvalid     = errors.New("agentrt: tool arguments failed schema validation")
)

// CallTool validates args against the tool's schema (if any) and invokes it.
func (a *Agent) CallTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	spec, ok := a.Tools[name]
	if !ok {
		return nil, ErrUnknownTool
	}
	if spec.Schema != nil {
		if err := validateArgs(spec.Schema, args); err != nil {
			return nil, errors.Mark(err, ErrArgsInvalid)
		}
	}
	return spec.Handler(ctx, args)
}

func validateArgs(schema *jsonschema.Schema, args json.RawMessage) error {
	var doc interface{}
	if len(args) == 0 {
		doc = map[string]interface{}{}
	} else if err := json.Unmarshal(args, &doc); err != nil {
		return err
	}
	return schema.Validate(doc)
}

// ToolSpecOut is the wire-facing shape of a ToolSpec, returned by
// "A/tools/list".
type ToolSpecOut struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// ToolSpecs returns the agent's tools in wire-list order.
func (a *Agent) ToolSpecs() []ToolSpecOut {
	out := make([]ToolSpecOut, 0, len(a.Tools))
	for _, t := range a.Tools {
		out = append(out, ToolSpecOut{Name: t.Name, Description: t.Description, InputSchema: t.SchemaJSON})
	}
	return out
}

// ResourceSpecOut is the wire-facing shape of a ResourceSpec, returned by
// "A/resources/list".
type ResourceSpecOut struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MimeType    string `json:"mime_type"`
}

// ResourceSpecs returns the agent's resources in wire-list order.
func (a *Agent) ResourceSpecs() []ResourceSpecOut {
	out := make([]ResourceSpecOut, 0, len(a.Resources))
	for _, r := range a.Resources {
		out = append(out, ResourceSpecOut{URI: r.URI, Name: r.Name, Description: r.Description, MimeType: r.MimeType})
	}
	return out
}

// PromptArgumentOut describes one named prompt argument, per PromptSpec's
// ordered argument list.
type PromptArgumentOut struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
}

// PromptSpecOut is the wire-facing shape of a PromptSpec, returned by
// "A/prompts/list".
type PromptSpecOut struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Arguments   []PromptArgumentOut `json:"arguments"`
}

// PromptSpecs returns the agent's prompts in wire-list order. Every
// declared ArgNames entry is reported required, since RegisterPrompt has
// no way to mark an argument optional.
func (a *Agent) PromptSpecs() []PromptSpecOut {
	out := make([]PromptSpecOut, 0, len(a.Prompts))
	for _, p := range a.Prompts {
		args := make([]PromptArgumentOut, len(p.ArgNames))
		for i, n := range p.ArgNames {
			args[i] = PromptArgumentOut{Name: n, Required: true}
		}
		out = append(out, PromptSpecOut{Name: p.Name, Description: p.Description, Arguments: args})
	}
	return out
}

// ReadResource fetches a resource's content by URI.
func (a *Agent) ReadResource(ctx context.Context, uri string) (interface{}, error) {
	spec, ok := a.Resources[uri]
	if !ok {
		return nil, ErrUnknownResource
	}
	return spec.Handler(ctx, uri)
}

// RenderPrompt substitutes named placeholders in a prompt template with
// caller-supplied argument values. Every name in the prompt's declared
// ArgNames is required; a missing one fails validation rather than
// rendering a template with an unfilled placeholder.
func (a *Agent) RenderPrompt(name string, args map[string]string) (string, error) {
	spec, ok := a.Prompts[name]
	if !ok {
		return "", ErrUnknownPrompt
	}
	for _, required := range spec.ArgNames {
		if _, ok := args[required]; !ok {
			return "", errors.Mark(errors.Newf("agentrt: missing required prompt argument %q", required), ErrArgsInvalid)
		}
	}
	return renderTemplate(spec.Template, args), nil
}

// Converse dispatches a chat turn to the agent's ChatHandler.
func (a *Agent) Converse(ctx context.Context, messages []ChatMessage) (ChatMessage, error) {
	if a.Chat == nil {
		return ChatMessage{}, ErrChatUnsupported
	}
	return a.Chat(ctx, messages)
}

// renderTemplate performs "{{name}}" substitution; unknown placeholders
// are left as-is rather than erroring, matching a permissive templating
// contract suited to best-effort prompt assembly.
func renderTemplate(template string, args map[string]string) string {
	var b strings.Builder
	rest := template
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			b.WriteString(rest)
			return b.String()
		}
		end := strings.Index(rest[start+2:], "}}")
		if end < 0 {
			b.WriteString(rest)
			return b.String()
		}
		end += start + 2
		key := rest[start+2 : end]
		b.WriteString(rest[:start])
		if val, ok := args[key]; ok {
			b.WriteString(val)
		} else {
			b.WriteString("{{" + key + "}}")
		}
		rest = rest[end+2:]
	}
}
