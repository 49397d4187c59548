package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/shopbot-ai/shopbot/internal/catalog"
	"github.com/shopbot-ai/shopbot/internal/retrieval"
)

// Operation identifies a dispatchable tool. The set is closed: anything
// outside these two constants is rejected by Dispatch.
type Operation string

const (
	// OpTextSearch searches the catalog by query text.
	OpTextSearch Operation = "text-search"

	// OpImageSearch searches the catalog by image similarity.
	OpImageSearch Operation = "image-search"
)

// TextSearchArgs are the model-supplied arguments for OpTextSearch.
type TextSearchArgs struct {
	Query      string `json:"query" jsonschema:"description=What the customer is looking for, in their own words"`
	NumResults int    `json:"n_results,omitempty" jsonschema:"description=How many products to return (default 5)"`
}

// ImageSearchArgs are the model-supplied arguments for OpImageSearch. The
// image itself always comes from the turn, never from the model: whatever
// the model puts in Image is overwritten before dispatch.
type ImageSearchArgs struct {
	Image      string `json:"image,omitempty" jsonschema:"description=Ignored; the customer's uploaded image is used"`
	NumResults int    `json:"n_results,omitempty" jsonschema:"description=How many products to return (default 5)"`
}

// Searcher is the retrieval access the registry needs.
type Searcher interface {
	Search(ctx context.Context, m retrieval.Modality, q retrieval.Query, limit int) ([]catalog.Product, error)
}

// Registry dispatches tool invocation requests to the retrieval router.
// Arguments are decoded into typed structs and validated before anything
// runs; a request that does not parse is an error, never a guess.
type Registry struct {
	searcher     Searcher
	defaultLimit int
	maxLimit     int
	logger       *slog.Logger
}

// NewRegistry creates a Registry. defaultLimit applies when the model omits
// n_results; maxLimit caps what the model may ask for.
func NewRegistry(searcher Searcher, defaultLimit, maxLimit int, logger *slog.Logger) (*Registry, error) {
	if searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	if defaultLimit < 1 || maxLimit < defaultLimit {
		return nil, fmt.Errorf("invalid limits: default=%d max=%d", defaultLimit, maxLimit)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		searcher:     searcher,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		logger:       logger,
	}, nil
}

// Dispatch decodes raw arguments for op and runs the search. turnImage is
// the image uploaded with the turn; for OpImageSearch it unconditionally
// replaces whatever image argument the model produced.
//
// Every failure path returns an error; the orchestrator decides what a
// failed invocation means for the turn.
func (r *Registry) Dispatch(ctx context.Context, op Operation, raw any, turnImage []byte) ([]catalog.Product, error) {
	switch op {
	case OpTextSearch:
		var args TextSearchArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, fmt.Errorf("%s arguments: %w", op, err)
		}
		if args.Query == "" {
			return nil, fmt.Errorf("%s: query is required", op)
		}
		return r.searcher.Search(ctx, retrieval.ModalityText,
			retrieval.Query{Text: args.Query}, r.clampLimit(args.NumResults))

	case OpImageSearch:
		var args ImageSearchArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, fmt.Errorf("%s arguments: %w", op, err)
		}
		if len(turnImage) == 0 {
			return nil, fmt.Errorf("%s: no image supplied with this turn", op)
		}
		return r.searcher.Search(ctx, retrieval.ModalityImage,
			retrieval.Query{Image: turnImage}, r.clampLimit(args.NumResults))

	default:
		return nil, fmt.Errorf("unknown operation: %q", string(op))
	}
}

func (r *Registry) clampLimit(n int) int {
	if n < 1 {
		return r.defaultLimit
	}
	if n > r.maxLimit {
		return r.maxLimit
	}
	return n
}

// decodeArgs converts the provider-decoded argument value into a typed
// struct. Round-tripping through JSON rejects mismatched types instead of
// coercing them.
func decodeArgs(raw any, out any) error {
	if raw == nil {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("re-encoding arguments: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding arguments: %w", err)
	}
	return nil
}

// DefineTools registers both search tools with Genkit so their schemas are
// advertised to the model. Generation runs with tool requests returned, so
// these functions are not invoked during a turn; the direct implementations
// exist for ad-hoc execution through the Genkit registry.
func DefineTools(g *genkit.Genkit, reg *Registry) []ai.ToolRef {
	textTool := genkit.DefineTool(g, string(OpTextSearch),
		"Search the product catalog by a text description of what the customer wants.",
		func(ctx *ai.ToolContext, args TextSearchArgs) (string, error) {
			products, err := reg.Dispatch(ctx.Context, OpTextSearch, toolArgsValue(args), nil)
			if err != nil {
				return "", err
			}
			return renderProducts(products), nil
		})

	imageTool := genkit.DefineTool(g, string(OpImageSearch),
		"Search the product catalog for products visually similar to the customer's uploaded image.",
		func(_ *ai.ToolContext, _ ImageSearchArgs) (string, error) {
			return "", fmt.Errorf("%s requires the turn image and is dispatched by the orchestrator", OpImageSearch)
		})

	return []ai.ToolRef{textTool, imageTool}
}

// toolArgsValue round-trips a typed argument struct into the generic form
// Dispatch expects from the provider.
func toolArgsValue(args any) any {
	data, err := json.Marshal(args)
	if err != nil {
		return nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	return v
}
