// Package agent implements the conversation orchestrator: a two-round turn
// over a completion provider with function calling. Round one advertises the
// search tools and collects tool invocation requests; the requests are
// dispatched manually, their results folded back into the context, and round
// two synthesizes the final answer with no tools offered.
//
// The agent is stateless across turns. Conversation history always arrives
// with the request, so one instance serves any number of concurrent turns.
package agent

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/shopbot-ai/shopbot/internal/catalog"
)

// HistoryMessage is one prior exchange entry supplied by the caller.
// Role is "user" or "assistant".
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single conversational turn.
type Request struct {
	// Message is the user's text. Required.
	Message string

	// History is the prior conversation, oldest first. Mapped into the
	// model context verbatim, in order.
	History []HistoryMessage

	// Image is an optional raw image uploaded with this turn. It is shown
	// to the model and always overrides any image argument the model
	// produces for an image search.
	Image []byte
}

// Turn is the outcome of one request.
type Turn struct {
	// Reply is the assistant's answer text.
	Reply string

	// Products is nil when no tool ran this turn, and non-nil (possibly
	// empty) when at least one dispatch succeeded. When the model requests
	// several searches, the last successful invocation wins.
	Products []catalog.Product

	// ToolUsed names the operation behind Products, "" when none ran.
	ToolUsed string
}

// Agent orchestrates turns against a completion provider.
type Agent struct {
	g        *genkit.Genkit
	model    ai.Model
	registry *Registry
	tools    []ai.ToolRef
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// New creates an Agent. limiter may be nil to disable proactive rate
// limiting of provider calls.
func New(g *genkit.Genkit, model ai.Model, registry *Registry, tools []ai.ToolRef, limiter *rate.Limiter, logger *slog.Logger) (*Agent, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if len(tools) == 0 {
		return nil, fmt.Errorf("tool definitions are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		g:        g,
		model:    model,
		registry: registry,
		tools:    tools,
		limiter:  limiter,
		logger:   logger,
	}, nil
}

// Chat runs one turn and returns the complete outcome.
func (a *Agent) Chat(ctx context.Context, req Request) (*Turn, error) {
	return a.runTurn(ctx, req, nil)
}

// runTurn executes the two-round turn. When cb is non-nil, the answer
// synthesis round streams through it; the tool-selection round never does.
func (a *Agent) runTurn(ctx context.Context, req Request, cb ai.ModelStreamCallback) (*Turn, error) {
	if req.Message == "" {
		return nil, ErrEmptyMessage
	}

	messages := buildMessages(req)

	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	first, err := genkit.Generate(ctx, a.g,
		ai.WithModel(a.model),
		ai.WithSystem(systemPrompt),
		ai.WithMessages(messages...),
		ai.WithTools(a.tools...),
		ai.WithReturnToolRequests(true),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	requests := first.ToolRequests()
	if len(requests) == 0 {
		a.logger.Debug("turn answered without tools")
		return &Turn{Reply: first.Text()}, nil
	}

	messages = append(messages, first.Message)

	// Dispatch each request in the order the model emitted it. A failed
	// dispatch becomes an empty result for the model; only successful
	// invocations set the turn's products, last one winning. Every request
	// gets a tool message, even unrecognized ones: the provider rejects a
	// context that leaves a tool request unanswered.
	var (
		products []catalog.Product
		toolUsed string
	)
	for _, tr := range requests {
		op := Operation(tr.Name)
		items, err := a.registry.Dispatch(ctx, op, tr.Input, req.Image)
		rendered := noMatchesText
		if err != nil {
			a.logger.Warn("tool dispatch failed", "operation", tr.Name, "error", err)
		} else {
			rendered = renderProducts(items)
			products = items
			toolUsed = tr.Name
		}
		messages = append(messages, &ai.Message{
			Role: ai.RoleTool,
			Content: []*ai.Part{ai.NewToolResponsePart(&ai.ToolResponse{
				Name:   tr.Name,
				Ref:    tr.Ref,
				Output: rendered,
			})},
		})
	}

	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	opts := []ai.GenerateOption{
		ai.WithModel(a.model),
		ai.WithSystem(systemPrompt),
		ai.WithMessages(messages...),
	}
	if cb != nil {
		opts = append(opts, ai.WithStreaming(cb))
	}
	second, err := genkit.Generate(ctx, a.g, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	a.logger.Debug("turn completed",
		"tool_used", toolUsed,
		"products", len(products),
		"requests", len(requests))
	return &Turn{
		Reply:    second.Text(),
		Products: products,
		ToolUsed: toolUsed,
	}, nil
}

// wait applies the proactive provider rate limit.
func (a *Agent) wait(ctx context.Context) error {
	if a.limiter == nil {
		return nil
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}
	return nil
}

// buildMessages assembles the model context: caller history verbatim, then
// the new user message with the optional inline image.
func buildMessages(req Request) []*ai.Message {
	messages := make([]*ai.Message, 0, len(req.History)+1)
	for _, h := range req.History {
		switch h.Role {
		case "assistant":
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(h.Content)))
		default:
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(h.Content)))
		}
	}

	parts := []*ai.Part{ai.NewTextPart(req.Message)}
	if len(req.Image) > 0 {
		mime := http.DetectContentType(req.Image)
		uri := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(req.Image)
		parts = append(parts, ai.NewMediaPart(mime, uri))
	}
	messages = append(messages, ai.NewUserMessage(parts...))
	return messages
}
