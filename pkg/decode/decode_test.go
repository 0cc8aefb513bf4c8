package decode_test

import (
	"strings"
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fuhaigao/inference-server/pkg/decode"
)

// decodeAll feeds each chunk through a fresh decoder and returns the
// concatenated text, including the finalize flush.
func decodeAll(chunks ...[]byte) (string, error) {
	d := decode.NewDecoder()

	var out strings.Builder
	for _, c := range chunks {
		text, err := d.Decode(c)
		out.WriteString(text)
		if err != nil {
			return out.String(), err
		}
	}

	text, err := d.Finalize()
	out.WriteString(text)
	return out.String(), err
}

var _ = Describe("Decoder", func() {
	Describe("Decode", func() {
		It("passes ASCII through unchanged", func() {
			d := decode.NewDecoder()
			text, err := d.Decode([]byte("data: hello\n\n"))
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("data: hello\n\n"))
			Expect(d.Pending()).To(Equal(0))
		})

		It("returns nothing for an empty chunk", func() {
			d := decode.NewDecoder()
			text, err := d.Decode(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(BeEmpty())
		})

		It("holds back a 3-byte character split 1/2", func() {
			euro := []byte("€")
			d := decode.NewDecoder()

			text, err := d.Decode(euro[:1])
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(BeEmpty())
			Expect(d.Pending()).To(Equal(1))

			text, err = d.Decode(euro[1:])
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("€"))
			Expect(d.Pending()).To(Equal(0))
		})

		It("holds back a 3-byte character split 2/1", func() {
			euro := []byte("€")
			out, err := decodeAll(euro[:2], euro[2:])
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("€"))
		})

		It("reassembles a 4-byte character delivered one byte at a time", func() {
			emoji := []byte("🚀")
			d := decode.NewDecoder()

			var out strings.Builder
			for i := range emoji {
				text, err := d.Decode(emoji[i : i+1])
				Expect(err).NotTo(HaveOccurred())
				out.WriteString(text)
				if i < len(emoji)-1 {
					Expect(d.Pending()).To(Equal(i + 1))
				}
			}

			Expect(out.String()).To(Equal("🚀"))
			Expect(out.String()).NotTo(ContainSubstring(string(utf8.RuneError)))
		})

		It("emits the complete prefix and keeps only the partial tail", func() {
			raw := []byte("ab€")
			d := decode.NewDecoder()

			text, err := d.Decode(raw[:3])
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("ab"))
			Expect(d.Pending()).To(Equal(1))
		})

		It("does not retain a reference to the caller's chunk", func() {
			buf := []byte("x€")
			d := decode.NewDecoder()

			_, err := d.Decode(buf[:2])
			Expect(err).NotTo(HaveOccurred())

			// The caller reuses its read buffer.
			buf[1] = 'z'

			text, err := d.Decode([]byte("€")[1:])
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("€"))
		})

		It("produces the same text for every split offset", func() {
			raw := []byte("data: héllo wörld €uro 🚀\n\ndata: EOS\n\n")
			whole, err := decodeAll(raw)
			Expect(err).NotTo(HaveOccurred())
			Expect(whole).To(Equal(string(raw)))

			for i := 0; i <= len(raw); i++ {
				for j := i; j <= len(raw); j++ {
					out, err := decodeAll(raw[:i], raw[i:j], raw[j:])
					Expect(err).NotTo(HaveOccurred())
					Expect(out).To(Equal(whole), "split at %d,%d", i, j)
				}
			}
		})
	})

	Describe("errors", func() {
		It("rejects a byte that can never start a character", func() {
			d := decode.NewDecoder()
			_, err := d.Decode([]byte{'o', 'k', 0xff})
			Expect(err).To(MatchError(decode.ErrInvalidUTF8))
			Expect(err.Error()).To(ContainSubstring("offset 2"))
		})

		It("returns the text decoded before an invalid byte", func() {
			d := decode.NewDecoder()
			text, err := d.Decode([]byte("ab\xff"))
			Expect(text).To(Equal("ab"))
			Expect(err).To(MatchError(decode.ErrInvalidUTF8))

			text, again := d.Decode([]byte("cd"))
			Expect(text).To(BeEmpty())
			Expect(again).To(Equal(err))
		})

		It("keeps returning the same error after a failure", func() {
			d := decode.NewDecoder()
			_, first := d.Decode([]byte{0xc3, 0x28})
			Expect(first).To(HaveOccurred())

			_, err := d.Decode([]byte("fine"))
			Expect(err).To(Equal(first))

			_, err = d.Finalize()
			Expect(err).To(Equal(first))
		})

		It("rejects a character truncated by the end of the stream", func() {
			euro := []byte("€")
			out, err := decodeAll([]byte("ok"), euro[:2])
			Expect(out).To(Equal("ok"))
			Expect(err).To(MatchError(decode.ErrInvalidUTF8))
			Expect(err.Error()).To(ContainSubstring("truncated"))
		})
	})

	Describe("Finalize", func() {
		It("flushes nothing when no bytes are pending", func() {
			d := decode.NewDecoder()
			_, err := d.Decode([]byte("done"))
			Expect(err).NotTo(HaveOccurred())

			text, err := d.Finalize()
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(BeEmpty())
		})
	})
})
