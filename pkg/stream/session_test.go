package stream_test

import (
	"context"
	"errors"
	"io"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fuhaigao/inference-server/pkg/stream"
)

const marker = stream.DefaultEndMarker

// feed drives a session through Apply with the given chunks and ends the
// stream if it is still open.
func feed(s *stream.Session, chunks ...[]byte) stream.State {
	Expect(s.Apply(stream.Submitted{Prompt: "hi"})).To(Succeed())
	Expect(s.Apply(stream.ResponseReceived{StatusCode: 200, HasBody: true})).To(Succeed())
	for _, c := range chunks {
		Expect(s.Apply(stream.ChunkReceived{Chunk: c})).To(Succeed())
	}
	Expect(s.Apply(stream.StreamEnded{})).To(Succeed())
	return s.State()
}

func feedStrings(s *stream.Session, chunks ...string) stream.State {
	bs := make([][]byte, 0, len(chunks))
	for _, c := range chunks {
		bs = append(bs, []byte(c))
	}
	return feed(s, bs...)
}

var _ = Describe("Session", func() {
	Describe("Apply", func() {
		It("accumulates data frames and appends the marker on the sentinel", func() {
			st := feedStrings(stream.NewSession(), "data: Hello\n\ndata: World\n\ndata: EOS\n\n")

			Expect(st.Status).To(Equal(stream.StatusSucceeded))
			Expect(st.Output).To(Equal("HelloWorld" + marker))
			Expect(st.Err).To(BeNil())
			Expect(st.Terminated).To(BeTrue())
			Expect(st.Frames).To(Equal(2))
			Expect(st.ID).NotTo(BeEmpty())
			Expect(st.CompletedAt).NotTo(BeZero())
		})

		It("skips malformed frames", func() {
			st := feedStrings(stream.NewSession(),
				"data: A\n\n: keep-alive\n\nevent: ping\n\n\n\ndata:B\n\ndata: B\n\ndata: EOS\n\n")

			Expect(st.Status).To(Equal(stream.StatusSucceeded))
			Expect(st.Output).To(Equal("AB" + marker))
		})

		It("ignores frames after the sentinel", func() {
			st := feedStrings(stream.NewSession(), "data: A\n\ndata: EOS\n\ndata: B\n\n", "data: C\n\n")

			Expect(st.Output).To(Equal("A" + marker))
		})

		It("keeps a payload that only contains the sentinel as a substring", func() {
			st := feedStrings(stream.NewSession(), "data: EOS \n\ndata:  EOS\n\ndata: EOS\n\n")

			Expect(st.Output).To(Equal("EOS  EOS" + marker))
		})

		It("uses a custom end marker", func() {
			st := feedStrings(stream.NewSession(stream.WithEndMarker(" <done>")), "data: x\n\ndata: EOS\n\n")

			Expect(st.Output).To(Equal("x <done>"))
		})

		Context("when the response is not a success", func() {
			It("fails with ServerError and empty output", func() {
				s := stream.NewSession()
				Expect(s.Apply(stream.Submitted{Prompt: "hi"})).To(Succeed())
				Expect(s.Apply(stream.ResponseReceived{
					StatusCode: 500,
					Status:     "500 Internal Server Error",
					Detail:     "boom",
					HasBody:    true,
				})).To(Succeed())

				st := s.State()
				Expect(st.Status).To(Equal(stream.StatusFailed))
				Expect(st.Output).To(BeEmpty())
				Expect(st.Err.Kind).To(Equal(stream.ServerError))
				Expect(st.Err.StatusCode).To(Equal(500))
				Expect(st.Err.Error()).To(ContainSubstring("boom"))
				Expect(errors.Is(s.Err(), stream.ErrServer)).To(BeTrue())
			})
		})

		It("fails with BodyUnavailable when a success has no body", func() {
			s := stream.NewSession()
			Expect(s.Apply(stream.Submitted{Prompt: "hi"})).To(Succeed())
			Expect(s.Apply(stream.ResponseReceived{StatusCode: 200})).To(Succeed())

			Expect(s.State().Status).To(Equal(stream.StatusFailed))
			Expect(s.State().Err.Kind).To(Equal(stream.BodyUnavailable))
		})

		It("fails with ConnectionError on a transport failure", func() {
			s := stream.NewSession()
			Expect(s.Apply(stream.Submitted{Prompt: "hi"})).To(Succeed())
			Expect(s.Apply(stream.TransportFailed{Err: errors.New("refused")})).To(Succeed())

			Expect(s.State().Err.Kind).To(Equal(stream.ConnectionError))
			Expect(errors.Is(s.Err(), stream.ErrConnection)).To(BeTrue())
			Expect(s.Err().Error()).To(ContainSubstring("refused"))
		})

		Context("when the stream ends without the sentinel", func() {
			It("fails with ProtocolError and keeps the output", func() {
				st := feedStrings(stream.NewSession(), "data: partial\n\n")

				Expect(st.Status).To(Equal(stream.StatusFailed))
				Expect(st.Err.Kind).To(Equal(stream.ProtocolError))
				Expect(st.Output).To(Equal("partial"))
			})

			It("mentions an unterminated frame", func() {
				st := feedStrings(stream.NewSession(), "data: a\n\ndata: b")

				Expect(st.Err.Kind).To(Equal(stream.ProtocolError))
				Expect(st.Err.Error()).To(ContainSubstring("mid-frame"))
				Expect(st.Output).To(Equal("a"))
			})

			It("succeeds without a marker when unterminated streams are allowed", func() {
				st := feedStrings(stream.NewSession(stream.WithAllowUnterminated(true)), "data: partial\n\n")

				Expect(st.Status).To(Equal(stream.StatusSucceeded))
				Expect(st.Output).To(Equal("partial"))
				Expect(st.Terminated).To(BeFalse())
			})
		})

		Context("with multi-byte characters", func() {
			body := []byte("data: €🚀é\n\ndata: EOS\n\n")

			It("reassembles a 3-byte character split 1/2 and 2/1", func() {
				euro := []byte("data: €\n\ndata: EOS\n\n")
				for _, cut := range []int{7, 8} {
					st := feed(stream.NewSession(), euro[:cut], euro[cut:])
					Expect(st.Output).To(Equal("€" + marker))
					Expect(st.Output).NotTo(ContainSubstring("�"))
				}
			})

			It("reassembles a 4-byte character fed byte by byte", func() {
				chunks := make([][]byte, 0, len(body))
				for i := range body {
					chunks = append(chunks, body[i:i+1])
				}
				st := feed(stream.NewSession(), chunks...)
				Expect(st.Status).To(Equal(stream.StatusSucceeded))
				Expect(st.Output).To(Equal("€🚀é" + marker))
			})

			It("fails with DecodeError on an invalid byte", func() {
				st := feed(stream.NewSession(), []byte("data: a\n\n"), []byte{'d', 0xff, '\n', '\n'})

				Expect(st.Status).To(Equal(stream.StatusFailed))
				Expect(st.Err.Kind).To(Equal(stream.DecodeError))
				Expect(st.Output).To(Equal("a"))
			})

			It("succeeds when invalid bytes follow the sentinel in the same chunk", func() {
				st := feedStrings(stream.NewSession(), "data: A\n\ndata: EOS\n\n\xff")

				Expect(st.Status).To(Equal(stream.StatusSucceeded))
				Expect(st.Output).To(Equal("A" + marker))
				Expect(st.Err).To(BeNil())
			})

			It("keeps data decoded before an invalid byte in the same chunk", func() {
				st := feedStrings(stream.NewSession(), "data: A\n\n\xff")

				Expect(st.Status).To(Equal(stream.StatusFailed))
				Expect(st.Err.Kind).To(Equal(stream.DecodeError))
				Expect(st.Output).To(Equal("A"))
			})

			It("fails with DecodeError on a character truncated by the end of the stream", func() {
				st := feed(stream.NewSession(), []byte("data: a\n\n"), []byte("data: \xe2\x82"))

				Expect(st.Err.Kind).To(Equal(stream.DecodeError))
				Expect(errors.Is(st.Err, stream.ErrDecode)).To(BeTrue())
			})
		})

		It("produces the same output for every split of the body", func() {
			body := []byte("data: Hé\n\n: ping\n\ndata: l€o\n\ndata: 🚀\n\ndata: EOS\n\n")
			want := "Hél€o🚀" + marker

			for i := 0; i <= len(body); i++ {
				for j := i; j <= len(body); j++ {
					st := feed(stream.NewSession(), body[:i], body[i:j], body[j:])
					Expect(st.Output).To(Equal(want), "split at %d/%d", i, j)
					Expect(st.Status).To(Equal(stream.StatusSucceeded))
				}
			}
		})

		Describe("terminal states", func() {
			It("ignores every event after success", func() {
				s := stream.NewSession()
				before := feedStrings(s, "data: A\n\ndata: EOS\n\n")

				Expect(s.Apply(stream.ChunkReceived{Chunk: []byte("data: B\n\n")})).To(Succeed())
				Expect(s.Apply(stream.StreamEnded{})).To(Succeed())
				Expect(s.Apply(stream.TransportFailed{Err: errors.New("late")})).To(Succeed())
				Expect(s.Apply(stream.ResponseReceived{StatusCode: 500})).To(Succeed())

				Expect(s.State()).To(Equal(before))
			})

			It("ignores every event after failure", func() {
				s := stream.NewSession()
				Expect(s.Apply(stream.Submitted{Prompt: "hi"})).To(Succeed())
				Expect(s.Apply(stream.ResponseReceived{StatusCode: 404})).To(Succeed())
				before := s.State()

				Expect(s.Apply(stream.ChunkReceived{Chunk: []byte("data: x\n\n")})).To(Succeed())
				Expect(s.Apply(stream.StreamEnded{})).To(Succeed())

				Expect(s.State()).To(Equal(before))
			})
		})

		Describe("submission", func() {
			It("rejects a blank prompt and stays idle", func() {
				s := stream.NewSession()
				Expect(s.Apply(stream.Submitted{Prompt: "  \n"})).To(MatchError(stream.ErrEmptyPrompt))
				Expect(s.State().Status).To(Equal(stream.StatusIdle))
				Expect(s.State().ID).To(BeEmpty())
			})

			It("rejects a second submission", func() {
				s := stream.NewSession()
				Expect(s.Apply(stream.Submitted{Prompt: "one"})).To(Succeed())
				Expect(s.Apply(stream.Submitted{Prompt: "two"})).To(MatchError(stream.ErrAlreadySubmitted))
				Expect(s.State().Prompt).To(Equal("one"))
			})

			It("rejects events that do not apply to the current status", func() {
				s := stream.NewSession()
				Expect(s.Apply(stream.ChunkReceived{Chunk: []byte("x")})).To(MatchError(stream.ErrUnexpectedEvent))

				Expect(s.Apply(stream.Submitted{Prompt: "hi"})).To(Succeed())
				Expect(s.Apply(stream.StreamEnded{})).To(MatchError(stream.ErrUnexpectedEvent))
				Expect(s.State().Status).To(Equal(stream.StatusRequesting))
			})
		})

		It("notifies observers in frame order", func() {
			var updates []stream.Update
			s := stream.NewSession(stream.WithObserver(func(u stream.Update) {
				updates = append(updates, u)
			}))
			feedStrings(s, "data: a\n\ndata: b", "\n\ndata: EOS\n\n")

			var deltas []string
			for _, u := range updates {
				if u.Delta != "" {
					deltas = append(deltas, u.Delta)
				}
			}
			Expect(deltas).To(Equal([]string{"a", "b", marker}))
			Expect(updates[0].Status).To(Equal(stream.StatusRequesting))
			Expect(updates[len(updates)-1].Status).To(Equal(stream.StatusSucceeded))
		})

		It("lets observers read the session state", func() {
			var s *stream.Session
			var seen []string
			s = stream.NewSession(stream.WithObserver(func(stream.Update) {
				seen = append(seen, s.State().Output)
			}))
			feedStrings(s, "data: a\n\ndata: EOS\n\n")

			Expect(seen).To(ContainElement("a"))
		})
	})

	Describe("Run", func() {
		var (
			ctx context.Context
			src *fakeSource
		)

		BeforeEach(func() {
			ctx = context.Background()
		})

		It("streams a response to success and closes the source", func() {
			src = newFakeSource("data: Hel", "lo\n\ndata: EOS\n\n")
			tr := &fakeTransport{resp: okResponse(src)}

			st, err := stream.NewSession(stream.WithTransport(tr), stream.WithMaxLength(7)).Run(ctx, "prompt")
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Output).To(Equal("Hello" + marker))
			Expect(src.Closed()).To(BeTrue())
			Expect(tr.requests).To(Equal([]stream.Request{{Prompt: "prompt", MaxLength: 7}}))
		})

		It("sends the default max length", func() {
			tr := &fakeTransport{resp: okResponse(newFakeSource("data: EOS\n\n"))}

			_, err := stream.NewSession(stream.WithTransport(tr)).Run(ctx, "p")
			Expect(err).NotTo(HaveOccurred())
			Expect(tr.requests[0].MaxLength).To(Equal(stream.DefaultMaxLength))
		})

		It("stops reading at the sentinel", func() {
			src = newFakeSource("data: a\n\ndata: EOS\n\n", "data: never\n\n")
			tr := &fakeTransport{resp: okResponse(src)}

			st, err := stream.NewSession(stream.WithTransport(tr)).Run(ctx, "p")
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Output).To(Equal("a" + marker))
			Expect(src.chunks).To(HaveLen(1))
			Expect(src.Closed()).To(BeTrue())
		})

		It("returns ErrNoTransport without a transport", func() {
			_, err := stream.NewSession().Run(ctx, "p")
			Expect(err).To(MatchError(stream.ErrNoTransport))
		})

		It("returns ErrEmptyPrompt for a blank prompt", func() {
			tr := &fakeTransport{}
			_, err := stream.NewSession(stream.WithTransport(tr)).Run(ctx, "")
			Expect(err).To(MatchError(stream.ErrEmptyPrompt))
			Expect(tr.requests).To(BeEmpty())
		})

		It("fails with ConnectionError when the request cannot be opened", func() {
			tr := &fakeTransport{err: errors.New("connection refused")}

			st, err := stream.NewSession(stream.WithTransport(tr)).Run(ctx, "p")
			Expect(err).To(MatchError(stream.ErrConnection))
			Expect(st.Status).To(Equal(stream.StatusFailed))
			Expect(st.Output).To(BeEmpty())
		})

		It("fails with ConnectionError when the transport returns no response", func() {
			tr := &fakeTransport{}

			st, err := stream.NewSession(stream.WithTransport(tr)).Run(ctx, "p")
			Expect(err).To(MatchError(stream.ErrConnection))
			Expect(err.Error()).To(ContainSubstring("no response"))
			Expect(st.Status).To(Equal(stream.StatusFailed))
			Expect(st.Err.Kind).To(Equal(stream.ConnectionError))
		})

		It("returns a typed error", func() {
			tr := &fakeTransport{resp: &stream.Response{StatusCode: 503, Status: "503 Service Unavailable"}}

			_, err := stream.NewSession(stream.WithTransport(tr)).Run(ctx, "p")
			var serr *stream.Error
			Expect(errors.As(err, &serr)).To(BeTrue())
			Expect(serr.Kind).To(Equal(stream.ServerError))
			Expect(serr.StatusCode).To(Equal(503))
		})

		It("closes the source when reading fails", func() {
			src = newFakeSource("data: a\n\n")
			src.err = io.ErrUnexpectedEOF
			tr := &fakeTransport{resp: okResponse(src)}

			st, err := stream.NewSession(stream.WithTransport(tr)).Run(ctx, "p")
			Expect(err).To(MatchError(stream.ErrConnection))
			Expect(errors.Is(err, io.ErrUnexpectedEOF)).To(BeTrue())
			Expect(st.Output).To(Equal("a"))
			Expect(src.Closed()).To(BeTrue())
		})

		It("closes the source on a protocol error", func() {
			src = newFakeSource("data: a\n\n")
			tr := &fakeTransport{resp: okResponse(src)}

			_, err := stream.NewSession(stream.WithTransport(tr)).Run(ctx, "p")
			Expect(err).To(MatchError(stream.ErrProtocol))
			Expect(src.Closed()).To(BeTrue())
		})

		It("fails with ConnectionError when the deadline expires", func() {
			src = newFakeSource("data: a\n\n")
			src.block = true
			tr := &fakeTransport{resp: okResponse(src)}

			dctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
			defer cancel()

			st, err := stream.NewSession(stream.WithTransport(tr)).Run(dctx, "p")
			Expect(err).To(MatchError(stream.ErrConnection))
			Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
			Expect(st.Output).To(Equal("a"))
			Expect(src.Closed()).To(BeTrue())
		})

		It("does not open the request when the context is already done", func() {
			tr := &fakeTransport{}
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			_, err := stream.NewSession(stream.WithTransport(tr)).Run(cctx, "p")
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(tr.requests).To(BeEmpty())
		})
	})
})
