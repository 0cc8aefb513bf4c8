// Package historytest holds the behavior every history.Driver must share.
package historytest

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fuhaigao/inference-server/pkg/history"
)

// NewRecord returns a succeeded stream record started at the given offset
// from a fixed base time.
func NewRecord(id string, offset time.Duration) *history.Record {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &history.Record{
		ID:          id,
		Mode:        history.ModeStream,
		Prompt:      "prompt " + id,
		Output:      "output " + id,
		MaxLength:   20,
		Status:      "succeeded",
		StartedAt:   base.Add(offset),
		CompletedAt: base.Add(offset + 250*time.Millisecond),
	}
}

// DescribeDriver registers the shared driver specs. newDriver is called
// before each spec and must return an empty driver.
func DescribeDriver(newDriver func() history.Driver) {
	Describe("history driver", func() {
		var (
			driver history.Driver
			ctx    context.Context
		)

		BeforeEach(func() {
			ctx = context.Background()
			driver = newDriver()
			DeferCleanup(driver.Close)
		})

		It("stores and retrieves a record", func() {
			rec := NewRecord("a", 0)
			rec.Output = "héllo 🚀\n[End of Stream]"
			Expect(driver.Put(ctx, rec)).To(Succeed())

			got, err := driver.Get(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal("a"))
			Expect(got.Mode).To(Equal(history.ModeStream))
			Expect(got.Prompt).To(Equal(rec.Prompt))
			Expect(got.Output).To(Equal(rec.Output))
			Expect(got.MaxLength).To(Equal(20))
			Expect(got.Status).To(Equal("succeeded"))
			Expect(got.StartedAt.Equal(rec.StartedAt)).To(BeTrue())
			Expect(got.CompletedAt.Equal(rec.CompletedAt)).To(BeTrue())
			Expect(got.Duration()).To(Equal(250 * time.Millisecond))
		})

		It("keeps the failure details", func() {
			rec := NewRecord("f", 0)
			rec.Status = "failed"
			rec.ErrorKind = "protocol_error"
			rec.Error = "protocol error: stream ended without sentinel"
			Expect(driver.Put(ctx, rec)).To(Succeed())

			got, err := driver.Get(ctx, "f")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ErrorKind).To(Equal("protocol_error"))
			Expect(got.Error).To(Equal(rec.Error))
		})

		It("returns NotFoundError for a missing record", func() {
			_, err := driver.Get(ctx, "missing")
			Expect(err).To(MatchError(history.ErrNotFound))
			Expect(err).To(BeAssignableToTypeOf(history.NotFoundError{}))
		})

		It("replaces a record with the same id", func() {
			rec := NewRecord("a", 0)
			Expect(driver.Put(ctx, rec)).To(Succeed())

			rec.Output = "changed"
			Expect(driver.Put(ctx, rec)).To(Succeed())

			got, err := driver.Get(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Output).To(Equal("changed"))

			all, err := driver.List(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
		})

		It("rejects records without an id", func() {
			Expect(driver.Put(ctx, &history.Record{})).NotTo(Succeed())
			Expect(driver.Put(ctx, nil)).NotTo(Succeed())
		})

		It("lists newest first and honours the limit", func() {
			for i := range 5 {
				Expect(driver.Put(ctx, NewRecord(fmt.Sprintf("r%d", i), time.Duration(i)*time.Minute))).To(Succeed())
			}

			all, err := driver.List(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			ids := make([]string, 0, len(all))
			for _, r := range all {
				ids = append(ids, r.ID)
			}
			Expect(ids).To(Equal([]string{"r4", "r3", "r2", "r1", "r0"}))

			some, err := driver.List(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(some).To(HaveLen(2))
			Expect(some[0].ID).To(Equal("r4"))
		})

		It("lists nothing when empty", func() {
			all, err := driver.List(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(BeEmpty())
		})
	})
}
