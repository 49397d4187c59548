package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/shopbot-ai/shopbot/internal/agent"
	"github.com/shopbot-ai/shopbot/internal/catalog"
)

// maxRequestBody caps the chat request body. Base64 images fit comfortably.
const maxRequestBody = 12 << 20 // 12 MiB

// chatRequest is the wire shape of a turn.
type chatRequest struct {
	Message string                 `json:"message"`
	History []agent.HistoryMessage `json:"history"`
	Image   string                 `json:"image,omitempty"` // base64-encoded
}

// chatResponse is the wire shape of a completed turn. Products is null when
// no tool ran and [] when a search matched nothing; ToolUsed is null when no
// tool ran.
type chatResponse struct {
	Message  string            `json:"message"`
	Products []catalog.Product `json:"products"`
	ToolUsed *string           `json:"tool_used"`
}

type chatHandler struct {
	chat   ChatService
	logger *slog.Logger
}

// decodeRequest reads and validates the request body into an agent request.
func (h *chatHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (agent.Request, error) {
	var body chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return agent.Request{}, fmt.Errorf("invalid request body: %w", err)
	}
	if body.Message == "" {
		return agent.Request{}, errors.New("message is required")
	}

	req := agent.Request{
		Message: body.Message,
		History: body.History,
	}
	if body.Image != "" {
		img, err := base64.StdEncoding.DecodeString(body.Image)
		if err != nil {
			return agent.Request{}, fmt.Errorf("invalid image encoding: %w", err)
		}
		req.Image = img
	}
	return req, nil
}

// send handles POST /chat: one whole turn, one JSON response.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), h.logger)
		return
	}

	turn, err := h.chat.Chat(r.Context(), req)
	if err != nil {
		h.logger.Error("chat turn failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to process message", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Message:  turn.Reply,
		Products: turn.Products,
		ToolUsed: toolUsedValue(turn.ToolUsed),
	}, h.logger)
}

// streamEvent is the wire shape of every stream event, one "data: <json>"
// line each; the stream ends with a literal "data: [DONE]" after the
// terminal event. All fields are always present: content events carry null
// products/tool_used, complete events an empty content, and error events
// put their generic message in content.
type streamEvent struct {
	Type     string            `json:"type"`
	Content  string            `json:"content"`
	Products []catalog.Product `json:"products"`
	ToolUsed *string           `json:"tool_used"`
}

// stream handles POST /chat/stream: the turn delivered as SSE.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), h.logger)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported", h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range h.chat.ChatStream(r.Context(), req) {
		switch ev.Type {
		case agent.EventContent:
			err = writeSSE(w, flusher, streamEvent{Type: "content", Content: ev.Content})
		case agent.EventComplete:
			err = writeSSE(w, flusher, streamEvent{
				Type:     "complete",
				Products: ev.Products,
				ToolUsed: toolUsedValue(ev.ToolUsed),
			})
		case agent.EventError:
			h.logger.Error("streaming turn failed", "error", ev.Err)
			err = writeSSE(w, flusher, streamEvent{Type: "error", Content: "failed to process message"})
		}
		if err != nil {
			// Client went away; nothing more to deliver.
			h.logger.Debug("writing stream event", "error", err)
			return
		}
	}

	if _, err := fmt.Fprint(w, "data: [DONE]\n\n"); err != nil {
		h.logger.Debug("writing stream terminator", "error", err)
		return
	}
	flusher.Flush()
}

// writeSSE writes one event as a "data: <json>" line and flushes it.
func writeSSE(w io.Writer, flusher http.Flusher, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding stream event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("writing stream event: %w", err)
	}
	flusher.Flush()
	return nil
}

func toolUsedValue(name string) *string {
	if name == "" {
		return nil
	}
	return &name
}
