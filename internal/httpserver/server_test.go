package httpserver_test

import (
	"context"
	"io"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/eventguard/internal/httpserver"
	"github.com/angeloszaimis/eventguard/pkg/logger"
)

var noop = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

var _ = Describe("HTTP Server", func() {
	Context("server creation", func() {
		It("creates server with valid address", func() {
			srv, err := httpserver.New("localhost:9999", noop, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(srv.Addr()).To(Equal("localhost:9999"))
		})

		It("creates server with IP address", func() {
			srv, err := httpserver.New("127.0.0.1:9999", noop, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(srv).NotTo(BeNil())
		})

		It("handles port-only address", func() {
			srv, err := httpserver.New(":9999", noop, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(srv).NotTo(BeNil())
		})

		It("rejects invalid address", func() {
			srv, err := httpserver.New("invalid:host:port", noop, logger.Nop())
			Expect(err).To(HaveOccurred())
			Expect(srv).To(BeNil())
		})

		It("rejects a non-numeric port", func() {
			_, err := httpserver.New("localhost:http-alt", noop, logger.Nop())
			Expect(err).To(HaveOccurred())
		})
	})

	Context("server lifecycle", func() {
		It("serves requests until the context is cancelled", func() {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("test"))
			})
			srv, err := httpserver.New("127.0.0.1:19999", handler, logger.Nop())
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- srv.Run(ctx) }()

			var resp *http.Response
			Eventually(func() error {
				resp, err = http.Get("http://127.0.0.1:19999")
				return err
			}).Should(Succeed())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, _ := io.ReadAll(resp.Body)
			Expect(string(body)).To(Equal("test"))

			cancel()
			Eventually(done, 2*time.Second).Should(Receive(BeNil()))
		})

		It("shuts down gracefully", func() {
			srv, err := httpserver.New("127.0.0.1:19998", noop, logger.Nop())
			Expect(err).NotTo(HaveOccurred())

			go func() {
				srv.Start()
			}()
			time.Sleep(100 * time.Millisecond)

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			Expect(srv.Shutdown(ctx)).To(Succeed())
		})
	})
})
