// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

// Package prompts provides MCP prompt templates for interrupt triage
// workflows built on the agent's tools.
package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// PromptDef describes a prompt and the template it renders.
type PromptDef struct {
	// Name is the unique identifier for the prompt.
	Name string
	// Description is a human-readable description.
	Description string
	// Arguments defines the parameters the prompt accepts.
	Arguments []ArgumentDef
	// Template holds {{name}} placeholders, one per argument.
	Template string
}

// ArgumentDef defines a prompt argument.
type ArgumentDef struct {
	Name        string
	Description string
	Required    bool
	Default     string
}

// ToMCPPrompt converts a PromptDef to an mcp.Prompt.
func (p *PromptDef) ToMCPPrompt() mcp.Prompt {
	opts := []mcp.PromptOption{
		mcp.WithPromptDescription(p.Description),
	}
	for _, arg := range p.Arguments {
		argOpts := []mcp.ArgumentOption{mcp.ArgumentDescription(arg.Description)}
		if arg.Required {
			argOpts = append(argOpts, mcp.RequiredArgument())
		}
		opts = append(opts, mcp.WithArgument(arg.Name, argOpts...))
	}
	return mcp.NewPrompt(p.Name, opts...)
}

// RenderTemplate substitutes declared arguments into the template. Missing
// arguments take their default. Placeholders not declared as arguments are
// left as they are.
func (p *PromptDef) RenderTemplate(args map[string]string) string {
	pairs := make([]string, 0, 2*len(p.Arguments))
	for _, arg := range p.Arguments {
		value, ok := args[arg.Name]
		if !ok || value == "" {
			value = arg.Default
		}
		pairs = append(pairs, "{{"+arg.Name+"}}", value)
	}
	return strings.TrimSpace(strings.NewReplacer(pairs...).Replace(p.Template))
}

// BuildHandler returns a prompt handler rendering p as a single user message.
func (p *PromptDef) BuildHandler() server.PromptHandlerFunc {
	return func(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		for _, arg := range p.Arguments {
			if !arg.Required {
				continue
			}
			if v, ok := req.Params.Arguments[arg.Name]; !ok || v == "" {
				return nil, fmt.Errorf("missing required argument: %s", arg.Name)
			}
		}

		content := p.RenderTemplate(req.Params.Arguments)
		messages := []mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(content)),
		}
		return mcp.NewGetPromptResult(p.Description, messages), nil
	}
}

// Register adds every library prompt to s and returns their names.
func Register(s *server.MCPServer) []string {
	names := make([]string, 0, len(Library))
	for i := range Library {
		p := &Library[i]
		s.AddPrompt(p.ToMCPPrompt(), p.BuildHandler())
		names = append(names, p.Name)
	}
	return names
}
