// Package provider implements mail provider adapters.
package provider

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"mailfeed/ingestor/internal/ingest"
)

// GmailClient adapts the Gmail API to the ingest.Provider contract for a
// single authenticated mailbox.
type GmailClient struct {
	svc *gmail.Service
}

// NewGmailClient builds a Gmail client over the given token source. The
// token source is expected to refresh itself; the client never manages
// credentials beyond handing them to the API layer.
func NewGmailClient(ctx context.Context, ts oauth2.TokenSource) (*GmailClient, error) {
	svc, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return &GmailClient{svc: svc}, nil
}

// ListRecentMessageIDs returns the ids of up to max most-recent messages,
// newest first.
func (c *GmailClient) ListRecentMessageIDs(ctx context.Context, max int64) ([]string, error) {
	resp, err := c.svc.Users.Messages.List("me").MaxResults(max).Context(ctx).Do()
	if err != nil {
		return nil, wrapGmailError("failed to list messages", err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

// GetFullMessage fetches one message in full format and maps it to the
// provider-neutral representation.
func (c *GmailClient) GetFullMessage(ctx context.Context, id string) (*ingest.Message, error) {
	msg, err := c.svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, wrapGmailError(fmt.Sprintf("failed to get message %s", id), err)
	}
	return convertMessage(msg), nil
}

// convertMessage maps a Gmail message to the ingest representation.
// InternalDate 0 means the provider omitted it; it maps to "" so ordering
// treats the message as unknown.
func convertMessage(m *gmail.Message) *ingest.Message {
	out := &ingest.Message{
		ID:      m.Id,
		Snippet: m.Snippet,
	}
	if m.InternalDate != 0 {
		out.InternalDate = strconv.FormatInt(m.InternalDate, 10)
	}
	if m.Payload != nil {
		out.Headers = make([]ingest.Header, 0, len(m.Payload.Headers))
		for _, h := range m.Payload.Headers {
			out.Headers = append(out.Headers, ingest.Header{Name: h.Name, Value: h.Value})
		}
		payload := convertPart(m.Payload)
		out.Payload = &payload
	}
	return out
}

func convertPart(p *gmail.MessagePart) ingest.BodyPart {
	part := ingest.BodyPart{MimeType: p.MimeType}
	if p.Body != nil {
		part.Data = p.Body.Data
	}
	for _, sub := range p.Parts {
		part.Parts = append(part.Parts, convertPart(sub))
	}
	return part
}

// wrapGmailError annotates Gmail API failures with the HTTP status when
// one is available, so auth (401/403) and quota (429) causes stay visible
// upstream.
func wrapGmailError(msg string, err error) error {
	if apiErr, ok := err.(*googleapi.Error); ok {
		return fmt.Errorf("%s (status %d): %w", msg, apiErr.Code, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
