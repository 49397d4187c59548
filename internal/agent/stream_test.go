package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/ai"

	"github.com/shopbot-ai/shopbot/internal/catalog"
	"github.com/shopbot-ai/shopbot/internal/testutil"
)

func collect(t *testing.T, a *Agent, req Request) []Event {
	t.Helper()
	var events []Event
	for ev := range a.ChatStream(context.Background(), req) {
		events = append(events, ev)
	}
	return events
}

func TestChatStreamWithTools(t *testing.T) {
	mock := testutil.NewMockLLM("fallback")
	mock.AddToolResponse("lamp",
		[]*ai.ToolRequest{textSearchRequest("call-1", "desk lamp")},
		"The Desk Lamp is a great pick.")
	searcher := &fakeSearcher{products: []catalog.Product{{ID: "p1", Name: "Desk Lamp"}}}
	a := newTestAgent(t, mock, searcher)

	events := collect(t, a, Request{Message: "I need a lamp"})
	if len(events) < 2 {
		t.Fatalf("got %d events, want content plus terminal", len(events))
	}

	last := events[len(events)-1]
	if last.Type != EventComplete {
		t.Fatalf("terminal event = %q, want complete", last.Type)
	}
	if last.ToolUsed != string(OpTextSearch) {
		t.Errorf("terminal ToolUsed = %q, want %q", last.ToolUsed, OpTextSearch)
	}
	if len(last.Products) != 1 || last.Products[0].ID != "p1" {
		t.Errorf("terminal Products = %v, want [p1]", last.Products)
	}

	var reply string
	for _, ev := range events[:len(events)-1] {
		if ev.Type != EventContent {
			t.Fatalf("non-terminal event = %q, want content", ev.Type)
		}
		reply += ev.Content
	}
	if reply != "The Desk Lamp is a great pick." {
		t.Errorf("streamed reply = %q", reply)
	}

	// Only the answer synthesis round streams.
	calls := mock.Calls()
	if len(calls) != 2 {
		t.Fatalf("provider called %d times, want 2", len(calls))
	}
	if calls[0].Streamed {
		t.Error("tool selection round was streamed")
	}
	if !calls[1].Streamed {
		t.Error("answer synthesis round was not streamed")
	}
}

func TestChatStreamWithoutTools(t *testing.T) {
	mock := testutil.NewMockLLM("Happy to help!")
	a := newTestAgent(t, mock, &fakeSearcher{})

	events := collect(t, a, Request{Message: "hi"})
	if len(events) != 2 {
		t.Fatalf("got %d events, want [content complete]", len(events))
	}
	if events[0].Type != EventContent || events[0].Content != "Happy to help!" {
		t.Errorf("first event = %+v, want full reply as content", events[0])
	}
	if events[1].Type != EventComplete {
		t.Errorf("terminal event = %q, want complete", events[1].Type)
	}
	if events[1].Products != nil || events[1].ToolUsed != "" {
		t.Errorf("terminal = %+v, want no products and no tool", events[1])
	}
}

func TestChatStreamProviderErrorIsTerminal(t *testing.T) {
	mock := testutil.NewMockLLM("unused")
	mock.FailWith(errors.New("backend down"))
	a := newTestAgent(t, mock, &fakeSearcher{})

	events := collect(t, a, Request{Message: "hello"})
	if len(events) != 1 {
		t.Fatalf("got %d events, want exactly one error event", len(events))
	}
	if events[0].Type != EventError {
		t.Fatalf("event = %q, want error", events[0].Type)
	}
	if !errors.Is(events[0].Err, ErrProvider) {
		t.Errorf("event error = %v, want ErrProvider", events[0].Err)
	}
}

func TestChatStreamConsumerStopsEarly(t *testing.T) {
	mock := testutil.NewMockLLM("fallback")
	mock.AddToolResponse("lamp",
		[]*ai.ToolRequest{textSearchRequest("call-1", "desk lamp")},
		"The Desk Lamp is a great pick.")
	searcher := &fakeSearcher{products: []catalog.Product{{ID: "p1"}}}
	a := newTestAgent(t, mock, searcher)

	var seen int
	for range a.ChatStream(context.Background(), Request{Message: "lamp please"}) {
		seen++
		break
	}
	if seen != 1 {
		t.Errorf("consumed %d events before break, want 1", seen)
	}
}

func TestChatStreamSingleTerminalEvent(t *testing.T) {
	mock := testutil.NewMockLLM("All done.")
	a := newTestAgent(t, mock, &fakeSearcher{})

	events := collect(t, a, Request{Message: "thanks"})
	var terminals int
	for i, ev := range events {
		if ev.Type == EventComplete || ev.Type == EventError {
			terminals++
			if i != len(events)-1 {
				t.Errorf("terminal event at position %d of %d", i, len(events))
			}
		}
	}
	if terminals != 1 {
		t.Errorf("got %d terminal events, want exactly 1", terminals)
	}
}
