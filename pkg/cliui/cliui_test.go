package cliui_test

import (
	"bytes"
	"errors"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/banter/pkg/cliui"
)

var _ = Describe("cliui", func() {
	Describe("Step", func() {
		It("returns the function's error and prints the message", func() {
			var buf bytes.Buffer
			boom := errors.New("boom")

			err := cliui.Step(&buf, "pinging redis", func() error { return boom })
			Expect(err).To(MatchError(boom))
			Expect(buf.String()).To(ContainSubstring("pinging redis"))
			Expect(buf.String()).To(ContainSubstring(cliui.FailMark))
		})

		It("marks success", func() {
			var buf bytes.Buffer
			Expect(cliui.Step(&buf, "ok", func() error { return nil })).To(Succeed())
			Expect(buf.String()).To(ContainSubstring(cliui.SuccessMark))
		})
	})

	Describe("FormatDuration", func() {
		It("uses milliseconds below a second", func() {
			Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
		})

		It("uses seconds otherwise", func() {
			Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
		})
	})

	Describe("WrapWidth", func() {
		It("defaults to 80 columns off a terminal", func() {
			f, err := os.CreateTemp(GinkgoT().TempDir(), "out")
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(f.Close)

			Expect(cliui.IsTerminal(f)).To(BeFalse())
			Expect(cliui.WrapWidth(f)).To(Equal(80))
		})
	})

	Describe("RenderMarkdown", func() {
		It("keeps the text", func() {
			out, err := cliui.RenderMarkdown("**hello** world", 40)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("hello"))
			Expect(out).To(ContainSubstring("world"))
		})
	})

	Describe("MaskSecret", func() {
		It("keeps only the last four characters", func() {
			Expect(cliui.MaskSecret("sk-abcdef1234")).To(Equal("****1234"))
			Expect(cliui.MaskSecret("abc")).To(Equal("****"))
			Expect(cliui.MaskSecret("")).To(Equal(""))
		})
	})
})
