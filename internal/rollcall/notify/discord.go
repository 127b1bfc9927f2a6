package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	colorSuccess = 0x00FF00
	colorFailure = 0xFF0000

	discordFooter     = "rollcall access control"
	discordTimeLayout = "2006-01-02 15:04:05"
)

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordFooterText struct {
	Text string `json:"text"`
}

type discordEmbed struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Color       int               `json:"color"`
	Timestamp   string            `json:"timestamp"`
	Fields      []discordField    `json:"fields"`
	Footer      discordFooterText `json:"footer"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

// DiscordSink posts an embed to a Discord webhook for every access,
// unknown-card and auto-sign-out notification.
type DiscordSink struct {
	url    string
	client *http.Client
	loc    *time.Location
}

func NewDiscordSink(webhookURL string, client *http.Client, loc *time.Location) *DiscordSink {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if loc == nil {
		loc = time.Local
	}
	return &DiscordSink{url: webhookURL, client: client, loc: loc}
}

func (s *DiscordSink) Name() string { return "discord" }

func (s *DiscordSink) Send(ctx context.Context, n Notification) error {
	if n.Kind == KindReady {
		return nil
	}

	body, err := json.Marshal(discordPayload{Embeds: []discordEmbed{s.embed(n)}})
	if err != nil {
		return fmt.Errorf("discord marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord post: %w", err)
	}
	defer resp.Body.Close()

	// Discord answers 204 No Content on success.
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord post: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	return nil
}

func (s *DiscordSink) embed(n Notification) discordEmbed {
	at := n.At.In(s.loc).Format(discordTimeLayout)
	action := eventLabel(n)

	var (
		description string
		color       int
		result      string
	)
	if n.Succeeded {
		description = fmt.Sprintf("✅ %s: **%s** %s.", at, n.Subject, eventVerb(n))
		color = colorSuccess
		result = "success"
	} else {
		description = fmt.Sprintf("❌ %s: **%s** %s failed.", at, n.Subject, action)
		color = colorFailure
		result = "failure"
	}

	fields := []discordField{
		{Name: "User", Value: n.Subject, Inline: true},
		{Name: "Time", Value: at, Inline: true},
		{Name: "Result", Value: result, Inline: true},
	}
	if card := n.Details["card_id"]; card != "" {
		fields = append(fields, discordField{Name: "Card", Value: card, Inline: true})
	}

	return discordEmbed{
		Title:       "Access event: " + action,
		Description: description,
		Color:       color,
		Timestamp:   n.At.UTC().Format(time.RFC3339),
		Fields:      fields,
		Footer:      discordFooterText{Text: discordFooter},
	}
}

func eventLabel(n Notification) string {
	switch n.Kind {
	case KindAccess:
		if n.Direction == "exit" {
			return "exit"
		}
		return "entry"
	case KindAutoSignOut:
		return "auto sign-out"
	case KindUnknownCard:
		return "access attempt"
	default:
		return string(n.Kind)
	}
}

func eventVerb(n Notification) string {
	switch n.Kind {
	case KindAccess:
		if n.Direction == "exit" {
			return "left"
		}
		return "entered"
	case KindAutoSignOut:
		return "was signed out automatically"
	default:
		return "checked in"
	}
}
