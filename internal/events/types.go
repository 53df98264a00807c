package events

// Type is a namespaced, dot-separated event identifier such as "user.created".
// Two types are the same event when their strings are equal.
type Type string

// Catalog shared by publishers and handlers.
const (
	UserCreated         Type = "user.created"
	UserUpdated         Type = "user.updated"
	ChallengeCreated    Type = "challenge.created"
	ChallengeStarted    Type = "challenge.started"
	ChallengeCompleted  Type = "challenge.completed"
	SubmissionCreated   Type = "submission.created"
	SubmissionEvaluated Type = "submission.evaluated"
	FeedbackGenerated   Type = "feedback.generated"
	AIHealthChanged     Type = "ai.health_changed"
)

// Catalog lists every known event type in a stable order.
func Catalog() []Type {
	return []Type{
		UserCreated,
		UserUpdated,
		ChallengeCreated,
		ChallengeStarted,
		ChallengeCompleted,
		SubmissionCreated,
		SubmissionEvaluated,
		FeedbackGenerated,
		AIHealthChanged,
	}
}

func (t Type) String() string {
	return string(t)
}
