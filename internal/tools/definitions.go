// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// TOOL DEFINITION
// =============================================================================

// RunFunc executes a tool with decoded JSON arguments and returns its text
// output.
type RunFunc func(ctx context.Context, args map[string]any) (string, error)

// Tool represents an executable tool.
type Tool struct {
	// Name is the identifier the model uses to call the tool
	Name string

	// Description is sent to the model in the tool schema
	Description string

	// Parameters defines the tool's arguments
	Parameters []Parameter

	// Run performs the work
	Run RunFunc
}

// Parameter defines a single tool parameter.
type Parameter struct {
	Name string

	// Type is the JSON schema type ("string", "integer", "number", "boolean")
	Type string

	Required    bool
	Description string

	// Default is advertised to the model when set
	Default any

	// Enum lists allowed values for string parameters
	Enum []string
}

// Schema returns the JSON schema object describing the tool's arguments.
//
//	{
//	  "type": "object",
//	  "properties": {"query": {"type": "string", "description": "..."}},
//	  "required": ["query"]
//	}
func (t *Tool) Schema() map[string]any {
	properties := make(map[string]any, len(t.Parameters))
	required := make([]string, 0, len(t.Parameters))

	for _, p := range t.Parameters {
		prop := map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// Definition is the provider-neutral form of a tool advertised to a model.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// =============================================================================
// CALLS AND RESULTS
// =============================================================================

// Call is a tool invocation requested by the model.
type Call struct {
	// ID links the result back to the call. Providers that do not issue
	// ids get a generated one.
	ID string `json:"id"`

	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Result holds the outcome of a tool execution.
type Result struct {
	Success  bool
	Output   string
	Error    string
	Duration time.Duration
}

// Format renders the result as the tool message content sent back to the
// model.
func (r Result) Format(call Call) string {
	var sb strings.Builder

	if r.Success {
		fmt.Fprintf(&sb, "Tool '%s' (id: %s) completed successfully.\n", call.Name, call.ID)
		if r.Output != "" {
			sb.WriteString("\nOutput:\n")
			sb.WriteString(r.Output)
		} else {
			sb.WriteString("\n(no output)")
		}
	} else {
		fmt.Fprintf(&sb, "Tool '%s' (id: %s) failed.\n", call.Name, call.ID)
		if r.Error != "" {
			sb.WriteString("\nError:\n")
			sb.WriteString(r.Error)
		} else {
			sb.WriteString("\n(unknown error)")
		}
	}
	return sb.String()
}

// =============================================================================
// TOOL REGISTRY
// =============================================================================

// Registry holds the available tools in registration order. It is safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools []*Tool
	index map[string]*Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]*Tool)}
}

// Register adds a tool, replacing any tool with the same name in place.
func (r *Registry) Register(tool *Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[tool.Name]; ok {
		for i, t := range r.tools {
			if t.Name == tool.Name {
				r.tools[i] = tool
			}
		}
	} else {
		r.tools = append(r.tools, tool)
	}
	r.index[tool.Name] = tool
}

// Get retrieves a tool by name, or nil.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index[name]
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Definitions returns the schema of every tool in registration order.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, Definition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Schema(),
		})
	}
	return defs
}

// Execute runs the named tool. Unknown tools, missing required arguments,
// tool errors and panics all produce a failed Result rather than an error,
// so the model can see what went wrong and recover.
func (r *Registry) Execute(ctx context.Context, call Call) (res Result) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res = Result{Error: fmt.Sprintf("tool panicked: %v", p)}
		}
		res.Duration = time.Since(start)
	}()

	tool := r.Get(call.Name)
	if tool == nil {
		return Result{Error: fmt.Sprintf("unknown tool: %s", call.Name)}
	}
	for _, p := range tool.Parameters {
		if _, ok := call.Arguments[p.Name]; p.Required && !ok {
			return Result{Error: fmt.Sprintf("%s parameter is required", p.Name)}
		}
	}
	if err := ctx.Err(); err != nil {
		return Result{Error: err.Error()}
	}

	out, err := tool.Run(ctx, call.Arguments)
	if err != nil {
		return Result{Error: err.Error()}
	}
	return Result{Success: true, Output: out}
}

// =============================================================================
// PARAMETER HELPERS
// =============================================================================

// stringArg extracts a string argument with a default value.
func stringArg(args map[string]any, name, defaultVal string) string {
	if val, ok := args[name]; ok {
		if s, ok := val.(string); ok && s != "" {
			return s
		}
	}
	return defaultVal
}

// intArg extracts an integer argument. JSON numbers decode as float64.
func intArg(args map[string]any, name string, defaultVal int) int {
	if val, ok := args[name]; ok {
		switch v := val.(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return defaultVal
}
