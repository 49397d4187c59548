package agent

import (
	"context"
	"errors"
	"iter"

	"github.com/firebase/genkit/go/ai"

	"github.com/shopbot-ai/shopbot/internal/catalog"
)

// EventType discriminates stream events.
type EventType string

const (
	// EventContent carries an incremental piece of the answer.
	EventContent EventType = "content"

	// EventComplete terminates a successful stream and carries the turn's
	// products and tool attribution.
	EventComplete EventType = "complete"

	// EventError terminates a failed stream.
	EventError EventType = "error"
)

// Event is one element of a turn's delivery stream.
type Event struct {
	Type     EventType
	Content  string            // EventContent
	Products []catalog.Product // EventComplete
	ToolUsed string            // EventComplete
	Err      error             // EventError
}

// errStreamStopped aborts generation when the consumer stops iterating.
var errStreamStopped = errors.New("stream consumer stopped")

// ChatStream runs one turn and delivers it as a pull-driven event sequence:
// zero or more content events followed by exactly one terminal event,
// complete on success or error on failure. Nothing past the terminal event.
//
// Tool selection is never streamed; only the answer synthesis round arrives
// incrementally. When the model answers without tools, the whole reply is
// delivered as a single content event. If the consumer breaks out of the
// loop early, generation is aborted and no terminal event is produced.
func (a *Agent) ChatStream(ctx context.Context, req Request) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		var (
			stopped     bool
			sentContent bool
		)
		cb := func(_ context.Context, chunk *ai.ModelResponseChunk) error {
			text := chunk.Text()
			if text == "" {
				return nil
			}
			sentContent = true
			if !yield(Event{Type: EventContent, Content: text}) {
				stopped = true
				return errStreamStopped
			}
			return nil
		}

		turn, err := a.runTurn(ctx, req, cb)
		if stopped {
			return
		}
		if err != nil {
			a.logger.Error("streaming turn failed", "error", err)
			yield(Event{Type: EventError, Err: err})
			return
		}

		if !sentContent && turn.Reply != "" {
			if !yield(Event{Type: EventContent, Content: turn.Reply}) {
				return
			}
		}
		yield(Event{
			Type:     EventComplete,
			Products: turn.Products,
			ToolUsed: turn.ToolUsed,
		})
	}
}
