// Package messenger implements the Facebook Page channel: the Graph API
// send client and the webhook dispatcher the platform calls into.
package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNoAccessToken aborts deliveries before any call is attempted.
var ErrNoAccessToken = errors.New("messenger: page access token not configured")

// Sender sends messages through the Graph API /me/messages endpoint.
type Sender struct {
	accessToken string
	graphBase   string
	client      *http.Client
}

// NewSender creates a Graph API sender. graphBase defaults to the current
// Graph API version.
func NewSender(accessToken, graphBase string) *Sender {
	if graphBase == "" {
		graphBase = "https://graph.facebook.com/v19.0"
	}
	return &Sender{
		accessToken: accessToken,
		graphBase:   strings.TrimRight(graphBase, "/"),
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *Sender) Name() string { return "messenger" }

// Ready reports whether sends can be attempted at all.
func (s *Sender) Ready() error {
	if s.accessToken == "" {
		return ErrNoAccessToken
	}
	return nil
}

type sendRequest struct {
	Recipient recipient   `json:"recipient"`
	Message   sendMessage `json:"message"`
}

type recipient struct {
	ID string `json:"id"`
}

type sendMessage struct {
	Text       string      `json:"text,omitempty"`
	Attachment *attachment `json:"attachment,omitempty"`
}

type attachment struct {
	Type    string            `json:"type"`
	Payload attachmentPayload `json:"payload"`
}

type attachmentPayload struct {
	URL        string `json:"url"`
	IsReusable bool   `json:"is_reusable"`
}

// SendText delivers one plain-text message part.
func (s *Sender) SendText(ctx context.Context, recipientID, text string) error {
	return s.post(ctx, sendRequest{
		Recipient: recipient{ID: recipientID},
		Message:   sendMessage{Text: text},
	})
}

// SendImage delivers one reusable image attachment by URL.
func (s *Sender) SendImage(ctx context.Context, recipientID, imageURL string) error {
	return s.post(ctx, sendRequest{
		Recipient: recipient{ID: recipientID},
		Message: sendMessage{
			Attachment: &attachment{
				Type:    "image",
				Payload: attachmentPayload{URL: imageURL, IsReusable: true},
			},
		},
	})
}

func (s *Sender) post(ctx context.Context, payload sendRequest) error {
	if err := s.Ready(); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode send request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/me/messages?access_token=%s", s.graphBase, url.QueryEscape(s.accessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send message: graph api status %s: %s", resp.Status, snippet)
	}
	return nil
}
