package cliui_test

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fuhaigao/inference-server/pkg/cliui"
)

var _ = Describe("cliui", func() {
	Describe("Step", func() {
		It("returns the function's error and prints the message", func() {
			var buf bytes.Buffer
			boom := errors.New("boom")

			err := cliui.Step(&buf, "generating", func() error { return boom })
			Expect(err).To(MatchError(boom))
			Expect(buf.String()).To(ContainSubstring("generating"))
			Expect(buf.String()).To(HaveSuffix("\n"))
		})
	})

	Describe("Mark", func() {
		It("distinguishes success from failure", func() {
			Expect(cliui.Mark(nil)).To(Equal(cliui.SuccessMark))
			Expect(cliui.Mark(errors.New("x"))).To(Equal(cliui.FailMark))
		})
	})

	Describe("FormatDuration", func() {
		It("uses milliseconds below one second", func() {
			Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
		})

		It("uses seconds with one decimal above", func() {
			Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
		})
	})

	Describe("IsTerminal", func() {
		It("is false for in-memory writers", func() {
			Expect(cliui.IsTerminal(&bytes.Buffer{})).To(BeFalse())
		})
	})

	Describe("RenderMarkdown", func() {
		It("keeps the text of the document", func() {
			out, err := cliui.RenderMarkdown("# Title\n\nsome *text*")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("Title"))
			Expect(out).To(ContainSubstring("text"))
		})
	})
})
