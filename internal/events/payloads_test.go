package events_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/eventguard/internal/events"
)

var _ = Describe("DecodePayload", func() {
	It("should pass typed payloads through", func() {
		in := events.UserCreatedPayload{UserID: "u1", Username: "ada"}

		out, err := events.DecodePayload[events.UserCreatedPayload](in)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(in))

		out, err = events.DecodePayload[events.UserCreatedPayload](&in)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(in))
	})

	It("should decode JSON-shaped maps by json tag", func() {
		out, err := events.DecodePayload[events.ChallengeCompletedPayload](map[string]any{
			"user_id":      "u1",
			"challenge_id": "c9",
			"submission":   "print(1)",
			"score":        float64(75),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(events.ChallengeCompletedPayload{
			UserID:      "u1",
			ChallengeID: "c9",
			Submission:  "print(1)",
			Score:       75,
		}))
	})

	It("should reject payloads of the wrong shape", func() {
		_, err := events.DecodePayload[events.ChallengeCompletedPayload]("not a map")
		Expect(err).To(HaveOccurred())
	})

	It("should reject a nil pointer", func() {
		var p *events.UserCreatedPayload
		_, err := events.DecodePayload[events.UserCreatedPayload](p)
		Expect(err).To(HaveOccurred())
	})
})
