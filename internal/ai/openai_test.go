package ai_test

import (
	"context"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/eventguard/config"
	"github.com/angeloszaimis/eventguard/internal/ai"
	"github.com/angeloszaimis/eventguard/internal/circuitbreaker"
)

var _ = Describe("OpenAIClient", func() {
	var (
		server  *httptest.Server
		status  int
		body    string
		lastURL string
		client  *ai.OpenAIClient
	)

	BeforeEach(func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lastURL = r.URL.Path
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			w.Write([]byte(body))
		}))
		client = ai.NewOpenAIClient(config.AIConfig{
			APIKey:         "sk-test",
			BaseURL:        server.URL + "/v1",
			Model:          "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
			SystemPrompt:   "coach",
		})
	})

	AfterEach(func() {
		server.Close()
	})

	It("should return the first choice of a chat completion", func() {
		status = http.StatusOK
		body = `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"Nice work"},"finish_reason":"stop"}]}`

		resp, err := client.Complete(context.Background(), ai.CompletionRequest{Prompt: "review"})
		Expect(err).NotTo(HaveOccurred())
		Expect(lastURL).To(Equal("/v1/chat/completions"))
		Expect(resp.Text).To(Equal("Nice work"))
		Expect(resp.FinishReason).To(Equal("stop"))
		Expect(client.Model()).To(Equal("gpt-4o-mini"))
	})

	It("should tag provider rate limits with their code", func() {
		status = http.StatusTooManyRequests
		body = `{"error":{"message":"Rate limit reached","type":"requests","param":null,"code":"rate_limit_exceeded"}}`

		_, err := client.Complete(context.Background(), ai.CompletionRequest{Prompt: "x"})
		Expect(err).To(HaveOccurred())
		Expect(circuitbreaker.ErrorCode(err)).To(Equal(ai.CodeRateLimited))
	})

	It("should fall back to the HTTP status when no code is given", func() {
		status = http.StatusInternalServerError
		body = `{"error":{"message":"The server had an error","type":"server_error","param":null,"code":null}}`

		_, err := client.Complete(context.Background(), ai.CompletionRequest{Prompt: "x"})
		Expect(circuitbreaker.ErrorCode(err)).To(Equal("http_500"))
	})

	It("should decode embeddings", func() {
		status = http.StatusOK
		body = `{"object":"list","model":"text-embedding-3-small",
			"data":[{"object":"embedding","index":0,"embedding":[0.5,0.25]}],
			"usage":{"prompt_tokens":1,"total_tokens":1}}`

		resp, err := client.Embed(context.Background(), ai.EmbeddingRequest{Inputs: []string{"hello"}})
		Expect(err).NotTo(HaveOccurred())
		Expect(lastURL).To(Equal("/v1/embeddings"))
		Expect(resp.Vectors).To(Equal([][]float32{{0.5, 0.25}}))
	})

	It("should ping by listing models", func() {
		status = http.StatusOK
		body = `{"object":"list","data":[]}`

		_, err := client.Ping(context.Background(), struct{}{})
		Expect(err).NotTo(HaveOccurred())
		Expect(lastURL).To(Equal("/v1/models"))
	})
})
