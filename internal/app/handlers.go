package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angeloszaimis/eventguard/internal/ai"
	"github.com/angeloszaimis/eventguard/internal/events"
)

const feedbackMaxTokens = 400

// RegisterDefaultHandlers wires the startup consumers: an audit log for
// every catalog event, a welcome log for new users and AI feedback for
// completed challenges.
func (a *App) RegisterDefaultHandlers() error {
	for _, t := range events.Catalog() {
		if _, err := a.bus.Register(t, a.audit); err != nil {
			return err
		}
	}
	if _, err := a.bus.Register(events.UserCreated, a.welcome); err != nil {
		return err
	}
	if _, err := a.bus.Register(events.ChallengeCompleted, a.generateFeedback); err != nil {
		return err
	}
	return nil
}

func (a *App) audit(_ context.Context, _ any, env events.Envelope) error {
	a.logger.Info("Domain event",
		"event_type", env.Type.String(),
		"event_id", env.ID,
		"sequence", env.Sequence)
	return nil
}

func (a *App) welcome(_ context.Context, payload any, _ events.Envelope) error {
	user, err := events.DecodePayload[events.UserCreatedPayload](payload)
	if err != nil {
		return err
	}
	a.logger.Info("Welcome new user", "user_id", user.UserID, "username", user.Username)
	return nil
}

// generateFeedback asks the guarded AI client to review a completed
// challenge and publishes the result as feedback.generated.
func (a *App) generateFeedback(ctx context.Context, payload any, _ events.Envelope) error {
	done, err := events.DecodePayload[events.ChallengeCompletedPayload](payload)
	if err != nil {
		return err
	}
	if done.ChallengeID == "" || done.UserID == "" {
		return errors.New("challenge.completed: user_id and challenge_id are required")
	}

	completion, err := a.ai.Complete(ctx, ai.CompletionRequest{
		Prompt:    feedbackPrompt(done),
		MaxTokens: feedbackMaxTokens,
	})
	if err != nil {
		return fmt.Errorf("generate feedback for %s: %w", done.ChallengeID, err)
	}

	return a.bus.Publish(ctx, events.FeedbackGenerated, events.FeedbackGeneratedPayload{
		UserID:      done.UserID,
		ChallengeID: done.ChallengeID,
		Feedback:    completion.Text,
		Model:       completion.Model,
		Degraded:    completion.Degraded,
	})
}

func feedbackPrompt(p events.ChallengeCompletedPayload) string {
	var b strings.Builder
	b.WriteString("Review this solution and give short, encouraging feedback.\n")
	if p.Title != "" {
		fmt.Fprintf(&b, "Challenge: %s\n", p.Title)
	}
	if p.Language != "" {
		fmt.Fprintf(&b, "Language: %s\n", p.Language)
	}
	fmt.Fprintf(&b, "Score: %.0f\n\n%s", p.Score, p.Submission)
	return b.String()
}
