// Package publisher announces finished runs to downstream consumers.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
)

// ContentTypeJSON is the content-type attribute stamped on every message.
const ContentTypeJSON = "application/json"

// Publisher sends a JSON-encodable payload to a named topic and returns the
// message id.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Encode renders payload as the message body and attributes every publisher
// sends, so subscribers see the same wire form regardless of transport.
func Encode(payload any) ([]byte, map[string]string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal payload: %w", err)
	}
	return data, map[string]string{"content-type": ContentTypeJSON}, nil
}
