package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/avollmer/chatrelay/internal/broadcast"
	"github.com/avollmer/chatrelay/internal/metrics"
	"github.com/avollmer/chatrelay/internal/registry"
	"github.com/avollmer/chatrelay/internal/translate"
)

const translateTimeout = 5 * time.Second

// Envelope kinds accepted from clients.
const (
	KindSetLanguage = "set_language"
	KindMessage     = "message"
)

// Envelope is the structured inbound frame. Frames that do not parse as an
// envelope are tolerated as plain chat text.
type Envelope struct {
	Type     string `json:"type"`
	Language string `json:"language,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Handler wires the registry, broadcaster, and optional translator into the
// per-connection lifecycle. A nil translator disables enrichment: every
// client receives the original text.
type Handler struct {
	registry    *registry.Registry
	broadcaster *broadcast.Broadcaster
	translator  translate.Translator
}

func NewHandler(reg *registry.Registry, b *broadcast.Broadcaster, translator translate.Translator) *Handler {
	return &Handler{
		registry:    reg,
		broadcaster: b,
		translator:  translator,
	}
}

// Open registers the connection, greets the new client directly, and
// announces the join to everyone (sender included; the client script does
// not locally echo). A displaced connection from a colliding client id is
// closed here since the registry no longer routes to it.
func (h *Handler) Open(clientID string, conn registry.Connection) {
	if displaced := h.registry.Connect(clientID, conn); displaced != nil {
		_ = displaced.Close()
	}

	h.broadcaster.SendDirect(clientID, fmt.Sprintf("System: Welcome, Client #%s", clientID))
	h.broadcaster.Broadcast(fmt.Sprintf("System: Client #%s joined the chat", clientID), broadcast.All())
}

// HandleFrame processes one inbound frame: either a preference update or a
// chat message to relay. It never blocks on enrichment.
func (h *Handler) HandleFrame(ctx context.Context, clientID string, payload []byte) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil || env.Type == "" {
		// Plain-text frame from a minimal client: relay verbatim.
		metrics.MessagesReceivedTotal.WithLabelValues(KindMessage).Inc()
		h.relay(ctx, clientID, string(payload))
		return
	}

	switch env.Type {
	case KindSetLanguage:
		metrics.MessagesReceivedTotal.WithLabelValues(KindSetLanguage).Inc()
		h.registry.SetPreference(clientID, env.Language)
		slog.Info("Client set language preference", "client_id", clientID, "language", env.Language)
	case KindMessage:
		metrics.MessagesReceivedTotal.WithLabelValues(KindMessage).Inc()
		h.relay(ctx, clientID, env.Text)
	default:
		metrics.MessagesReceivedTotal.WithLabelValues("unknown").Inc()
		slog.Debug("Ignoring frame with unknown type", "client_id", clientID, "type", env.Type)
	}
}

// Close removes the client and announces the leave to the remaining clients.
// Removal is connection-precise, and the notice is skipped when the entry is
// already gone (evicted, or displaced by a colliding connect), so a single
// departure is never announced twice and a stale teardown never removes a
// successor session under the same id.
func (h *Handler) Close(clientID string, conn registry.Connection) {
	if !h.registry.DisconnectConn(clientID, conn) {
		return
	}
	h.broadcaster.Broadcast(fmt.Sprintf("System: Client #%s left the chat", clientID), broadcast.All())
}

// relay fans a chat message out. Without a translator everyone receives the
// original. With one, clients that never set a preference receive the
// original immediately, and each preference group gets an asynchronously
// translated copy, falling back to the original text when translation fails.
// No ordering is guaranteed between enrichment-delayed messages and later
// untranslated ones.
func (h *Handler) relay(ctx context.Context, clientID, text string) {
	formatted := fmt.Sprintf("Client #%s: %s", clientID, text)

	if h.translator == nil {
		h.broadcaster.Broadcast(formatted, broadcast.All())
		return
	}

	languages := make(map[string]struct{})
	for _, e := range h.registry.Snapshot() {
		if e.Preference != "" {
			languages[e.Preference] = struct{}{}
		}
	}

	h.broadcaster.Broadcast(formatted, broadcast.Preference(""))

	for lang := range languages {
		go h.relayTranslated(ctx, clientID, text, formatted, lang)
	}
}

func (h *Handler) relayTranslated(ctx context.Context, clientID, text, fallback, lang string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), translateTimeout)
	defer cancel()

	msg := fallback
	translated, err := h.translator.Translate(ctx, text, lang)
	if err != nil {
		slog.Warn("Translation failed, delivering original text",
			"client_id", clientID, "language", lang, "error", err)
	} else {
		msg = fmt.Sprintf("Client #%s: %s", clientID, translated)
	}

	h.broadcaster.Broadcast(msg, broadcast.Preference(lang))
}
