package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dekyc/apiserver/types"
)

// Channels carrying KYC events.
const (
	ChannelStatusChanged    = "kyc.status_changed"
	ChannelDocumentUploaded = "documents.uploaded"
	ChannelDocumentReviewed = "documents.reviewed"
)

// StatusChanged is published after an administrator approves or rejects a user.
type StatusChanged struct {
	UserID    string       `json:"user_id"`
	Name      string       `json:"name"`
	Email     string       `json:"email"`
	Previous  types.Status `json:"previous"`
	Status    types.Status `json:"status"`
	ChangedBy string       `json:"changed_by,omitempty"`
	ChangedAt time.Time    `json:"changed_at"`
}

// DocumentUploaded is published once a document is stored and recorded.
type DocumentUploaded struct {
	DocumentID string        `json:"document_id"`
	UserID     string        `json:"user_id"`
	Type       types.DocType `json:"type"`
	Filename   string        `json:"filename"`
	Size       int64         `json:"size"`
	SHA256     string        `json:"sha256"`
	UploadedAt time.Time     `json:"uploaded_at"`
}

// DocumentReviewed is published after an administrator verifies or rejects
// a document.
type DocumentReviewed struct {
	DocumentID string               `json:"document_id"`
	UserID     string               `json:"user_id"`
	Type       types.DocType        `json:"type"`
	Previous   types.DocumentStatus `json:"previous"`
	Status     types.DocumentStatus `json:"status"`
	ReviewedBy string               `json:"reviewed_by,omitempty"`
	ReviewedAt time.Time            `json:"reviewed_at"`
}

// Keyed is implemented by events that must stay ordered per key.
type Keyed interface {
	OrderingKey() string
}

// OrderingKey keeps status changes of one user in order.
func (e StatusChanged) OrderingKey() string { return e.UserID }

func (e DocumentUploaded) OrderingKey() string { return e.UserID }

func (e DocumentReviewed) OrderingKey() string { return e.UserID }

// PublishJSON encodes v as JSON and publishes it on channel. Events
// implementing Keyed carry their key in AttrOrderingKey.
func (m *MQ) PublishJSON(ctx context.Context, channel string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s event: %w", channel, err)
	}
	attrs := map[string]string{AttrContentType: "application/json"}
	if keyed, ok := v.(Keyed); ok && keyed.OrderingKey() != "" {
		attrs[AttrOrderingKey] = keyed.OrderingKey()
	}
	return m.Publish(ctx, channel, data, attrs)
}

// Decode unmarshals a JSON message body into T.
func Decode[T any](msg Message) (T, error) {
	var v T
	if err := json.Unmarshal(msg.Data, &v); err != nil {
		return v, fmt.Errorf("failed to decode message %s: %w", msg.ID, err)
	}
	return v, nil
}
