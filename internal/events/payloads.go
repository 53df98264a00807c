package events

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Payloads of the catalog events the application itself consumes. Publishers
// may send these structs or their JSON-shaped map equivalent.

type UserCreatedPayload struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

type ChallengeCompletedPayload struct {
	UserID      string  `json:"user_id"`
	ChallengeID string  `json:"challenge_id"`
	Title       string  `json:"title,omitempty"`
	Language    string  `json:"language,omitempty"`
	Submission  string  `json:"submission"`
	Score       float64 `json:"score"`
}

type FeedbackGeneratedPayload struct {
	UserID      string `json:"user_id"`
	ChallengeID string `json:"challenge_id"`
	Feedback    string `json:"feedback"`
	Model       string `json:"model"`
	Degraded    bool   `json:"degraded"`
}

// DecodePayload returns payload as T, converting generic maps such as
// those produced by decoding a JSON request body.
func DecodePayload[T any](payload any) (T, error) {
	var out T
	switch v := payload.(type) {
	case T:
		return v, nil
	case *T:
		if v != nil {
			return *v, nil
		}
		return out, fmt.Errorf("decode %T: nil payload", out)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(payload); err != nil {
		return out, fmt.Errorf("decode %T: %w", out, err)
	}
	return out, nil
}
