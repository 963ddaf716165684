// Package slack implements the Slack channel via the Events API webhook.
// Supports: DM + channel messages, signed-request verification, mention gating.
package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/weave-logic-ai/clawft/internal/bus"
	"github.com/weave-logic-ai/clawft/internal/channels"
	"github.com/weave-logic-ai/clawft/internal/config"
)

const (
	defaultWebhookPort = 8089
	defaultWebhookPath = "/slack/events"
	maxTextLength      = 40000
	botInfoCacheTTL    = 10 * time.Minute
)

// Channel connects to Slack via the Events API (HTTP webhook).
type Channel struct {
	*channels.BaseChannel
	cfg            config.SlackConfig
	client         *slack.Client
	botUserID      string
	requireMention bool
	stopCh         chan struct{}
	httpServer     *http.Server
	dedup          sync.Map // event_id -> struct{}
}

// New creates a new Slack channel.
func New(cfg config.SlackConfig, msgBus *bus.MessageBus) (*Channel, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("slack bot_token is required")
	}
	if cfg.SigningSecret == "" {
		return nil, fmt.Errorf("slack signing_secret is required")
	}

	base := channels.NewBaseChannel("slack", msgBus, cfg.AllowFrom)
	base.ValidatePolicy(cfg.DMPolicy, cfg.GroupPolicy)

	return &Channel{
		BaseChannel:    base,
		cfg:            cfg,
		client:         slack.New(cfg.BotToken),
		requireMention: cfg.RequireMention,
		stopCh:         make(chan struct{}),
	}, nil
}

// Start probes the bot identity and begins serving the Events API webhook.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting slack bot")

	auth, err := c.client.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth.test failed: %w", err)
	}
	c.botUserID = auth.UserID
	slog.Info("slack bot connected", "bot_user_id", c.botUserID, "team", auth.Team)

	c.SetRunning(true)
	return c.startWebhook(ctx)
}

// Stop shuts down the webhook server.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping slack bot")
	close(c.stopCh)
	if c.httpServer != nil {
		c.httpServer.Close()
	}
	c.SetRunning(false)
	return nil
}

// Send delivers an outbound message to a Slack channel or DM.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("slack bot not running")
	}
	if msg.ChatID == "" {
		return fmt.Errorf("empty chat ID for slack send")
	}
	text := msg.Content
	if text == "" {
		return nil
	}

	for len(text) > 0 {
		chunk := text
		if len(chunk) > maxTextLength {
			cutAt := maxTextLength
			if idx := strings.LastIndex(text[:maxTextLength], "\n"); idx > maxTextLength/2 {
				cutAt = idx + 1
			}
			chunk = text[:cutAt]
			text = text[cutAt:]
		} else {
			text = ""
		}

		opts := []slack.MsgOption{slack.MsgOptionText(chunk, false)}
		if msg.ReplyTo != "" {
			opts = append(opts, slack.MsgOptionTS(msg.ReplyTo))
		}
		if _, _, err := c.client.PostMessageContext(ctx, msg.ChatID, opts...); err != nil {
			return fmt.Errorf("slack send: %w", err)
		}
	}
	return nil
}

func (c *Channel) startWebhook(ctx context.Context) error {
	port := c.cfg.WebhookPort
	if port <= 0 {
		port = defaultWebhookPort
	}
	path := c.cfg.WebhookPath
	if path == "" {
		path = defaultWebhookPath
	}

	slog.Info("slack: starting Events API webhook", "port", port, "path", path)

	mux := http.NewServeMux()
	mux.HandleFunc(path, c.handleWebhook(ctx))

	c.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		if err := c.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("slack webhook server error", "error", err)
		}
	}()

	slog.Info("slack webhook listening", "port", port)
	return nil
}

func (c *Channel) handleWebhook(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}

		sv, err := slack.NewSecretsVerifier(r.Header, c.cfg.SigningSecret)
		if err != nil {
			slog.Debug("slack: missing signature headers", "error", err)
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if _, err := sv.Write(body); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if err := sv.Ensure(); err != nil {
			slog.Warn("slack: signature verification failed", "error", err)
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}

		event, err := slackevents.ParseEvent(body, slackevents.OptionNoVerifyToken())
		if err != nil {
			slog.Debug("slack: parse event failed", "error", err)
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}

		switch event.Type {
		case slackevents.URLVerification:
			var challenge slackevents.ChallengeResponse
			if err := json.Unmarshal(body, &challenge); err != nil {
				http.Error(w, "invalid challenge payload", http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte(challenge.Challenge))
			return

		case slackevents.CallbackEvent:
			w.WriteHeader(http.StatusOK)
			c.handleCallbackEvent(ctx, &event)
			return

		default:
			w.WriteHeader(http.StatusOK)
		}
	}
}

func (c *Channel) handleCallbackEvent(ctx context.Context, event *slackevents.EventsAPIEvent) {
	if c.isDuplicate(event.InnerEvent.Data) {
		return
	}

	switch inner := event.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		c.handleMessageEvent(ctx, inner)
	case *slackevents.AppMentionEvent:
		c.handleAppMention(ctx, inner)
	}
}

func (c *Channel) handleMessageEvent(_ context.Context, ev *slackevents.MessageEvent) {
	if ev.User == "" || ev.User == c.botUserID {
		return // ignore bot's own messages and system messages
	}
	if ev.BotID != "" {
		return
	}
	if ev.SubType != "" {
		return // edits, joins, etc.
	}

	peerKind := "group"
	if strings.HasPrefix(ev.Channel, "D") {
		peerKind = "direct"
	}

	if peerKind == "group" && c.requireMention && !mentionsBot(ev.Text, c.botUserID) {
		return
	}
	if !c.CheckPolicy(peerKind, c.cfg.DMPolicy, c.cfg.GroupPolicy, ev.User) {
		return
	}

	metadata := map[string]string{"ts": ev.TimeStamp}
	c.HandleMessage(ev.User, ev.Channel, stripMention(ev.Text, c.botUserID), nil, metadata, peerKind)
}

func (c *Channel) handleAppMention(_ context.Context, ev *slackevents.AppMentionEvent) {
	if ev.User == "" || ev.User == c.botUserID {
		return
	}
	if !c.CheckPolicy("group", c.cfg.DMPolicy, c.cfg.GroupPolicy, ev.User) {
		return
	}

	metadata := map[string]string{"ts": ev.TimeStamp}
	c.HandleMessage(ev.User, ev.Channel, stripMention(ev.Text, c.botUserID), nil, metadata, "group")
}

// isDuplicate returns true if the inner event payload was already processed.
// Slack retries webhook deliveries on slow responses; dedup avoids double-replies.
func (c *Channel) isDuplicate(data interface{}) bool {
	key := fmt.Sprintf("%v", data)
	_, loaded := c.dedup.LoadOrStore(key, struct{}{})
	if !loaded {
		go func() {
			time.Sleep(5 * time.Minute)
			c.dedup.Delete(key)
		}()
	}
	return loaded
}

func mentionsBot(text, botUserID string) bool {
	if botUserID == "" {
		return false
	}
	return strings.Contains(text, "<@"+botUserID+">")
}

func stripMention(text, botUserID string) string {
	if botUserID == "" {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(strings.ReplaceAll(text, "<@"+botUserID+">", ""))
}

// Ensure Channel implements the channels.Channel interface at compile time.
var _ channels.Channel = (*Channel)(nil)
