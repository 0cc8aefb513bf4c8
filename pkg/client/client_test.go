package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fuhaigao/inference-server/pkg/client"
	"github.com/fuhaigao/inference-server/pkg/stream"
)

var _ = Describe("Client", func() {
	var (
		ctx     context.Context
		mux     *http.ServeMux
		srv     *httptest.Server
		c       *client.Client
		lastReq map[string]any
	)

	BeforeEach(func() {
		ctx = context.Background()
		lastReq = nil
		mux = http.NewServeMux()
		srv = httptest.NewServer(mux)
		DeferCleanup(srv.Close)
		c = client.New(srv.URL + "/")
	})

	decodeBody := func(r *http.Request) {
		defer GinkgoRecover()
		Expect(json.NewDecoder(r.Body).Decode(&lastReq)).To(Succeed())
	}

	Describe("OpenStream", func() {
		It("streams frames written across several flushes", func() {
			mux.HandleFunc("POST /generate_text_stream", func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				decodeBody(r)
				Expect(r.Header.Get("Accept")).To(Equal("text/event-stream"))

				w.Header().Set("Content-Type", "text/event-stream")
				flusher := w.(http.Flusher)
				for _, part := range []string{"data: Hel", "lo\n\ndata: W€", "\n\ndata: EOS\n\n"} {
					_, _ = io.WriteString(w, part)
					flusher.Flush()
				}
			})

			sess := stream.NewSession(stream.WithTransport(c), stream.WithMaxLength(12))
			st, err := sess.Run(ctx, "hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Output).To(Equal("HelloW€" + stream.DefaultEndMarker))
			Expect(lastReq).To(Equal(map[string]any{"prompt": "hello", "max_length": float64(12)}))
		})

		It("returns the status and an excerpt of a failed response", func() {
			mux.HandleFunc("POST /generate_text_stream", func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "model not loaded", http.StatusServiceUnavailable)
			})

			resp, err := c.OpenStream(ctx, stream.Request{Prompt: "x", MaxLength: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
			Expect(resp.Detail).To(Equal("model not loaded"))
			Expect(resp.Body).To(BeNil())
		})

		It("reports a success without a body as body unavailable", func() {
			mux.HandleFunc("POST /generate_text_stream", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			resp, err := c.OpenStream(ctx, stream.Request{Prompt: "x"})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Body).To(BeNil())

			st, err := stream.NewSession(stream.WithTransport(c)).Run(ctx, "x")
			Expect(err).To(MatchError(stream.ErrBodyUnavailable))
			Expect(st.Output).To(BeEmpty())
		})

		It("fails with a connection error when the server is gone", func() {
			srv.Close()

			_, err := stream.NewSession(stream.WithTransport(c)).Run(ctx, "x")
			Expect(err).To(MatchError(stream.ErrConnection))
		})

		It("fails with a protocol error when the body ends early", func() {
			mux.HandleFunc("POST /generate_text_stream", func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, "data: cut\n\ndata: sh")
			})

			st, err := stream.NewSession(stream.WithTransport(c)).Run(ctx, "x")
			Expect(err).To(MatchError(stream.ErrProtocol))
			Expect(st.Output).To(Equal("cut"))
		})

		It("reads small chunks when configured", func() {
			mux.HandleFunc("POST /generate_text_stream", func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, "data: 🚀🚀\n\ndata: EOS\n\n")
			})

			var deltas []string
			small := client.New(srv.URL, client.WithChunkSize(1))
			st, err := stream.NewSession(
				stream.WithTransport(small),
				stream.WithObserver(func(u stream.Update) {
					if u.Delta != "" {
						deltas = append(deltas, u.Delta)
					}
				}),
			).Run(ctx, "x")
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Output).To(Equal("🚀🚀" + stream.DefaultEndMarker))
			Expect(deltas).To(Equal([]string{"🚀🚀", stream.DefaultEndMarker}))
			Expect(st.Bytes).To(BeNumerically("==", len("data: 🚀🚀\n\ndata: EOS\n\n")))
		})
	})

	Describe("GenerateText", func() {
		It("returns the generated text", func() {
			mux.HandleFunc("POST /generate_text", func(w http.ResponseWriter, r *http.Request) {
				decodeBody(r)
				_ = json.NewEncoder(w).Encode(map[string]string{"generated_text": "once upon"})
			})

			text, err := c.GenerateText(ctx, "tell me", 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("once upon"))
			Expect(lastReq["max_length"]).To(BeNumerically("==", 5))
		})

		It("returns a StatusError for a failed response", func() {
			mux.HandleFunc("POST /generate_text", func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, `{"error":"prompt is empty"}`, http.StatusBadRequest)
			})

			_, err := c.GenerateText(ctx, "", 5)
			var serr *client.StatusError
			Expect(errors.As(err, &serr)).To(BeTrue())
			Expect(serr.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(serr.Body).To(ContainSubstring("prompt is empty"))
			Expect(serr.Error()).To(ContainSubstring("400"))
		})

		It("returns an error for a malformed body", func() {
			mux.HandleFunc("POST /generate_text", func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, "not json")
			})

			_, err := c.GenerateText(ctx, "x", 5)
			Expect(err).To(MatchError(ContainSubstring("decoding response")))
		})
	})

	Describe("FindSimilar", func() {
		It("returns the ranked results", func() {
			mux.HandleFunc("POST /find_similar", func(w http.ResponseWriter, r *http.Request) {
				decodeBody(r)
				_, _ = io.WriteString(w, `{"top_results":[{"item":"a cat","score":0.9},{"item":"a dog","score":0.5}]}`)
			})

			results, err := c.FindSimilar(ctx, "cat", 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(Equal([]client.TopResult{
				{Item: "a cat", Score: 0.9},
				{Item: "a dog", Score: 0.5},
			}))
			Expect(lastReq).To(Equal(map[string]any{"text": "cat", "num_results": float64(2)}))
		})
	})
})
