// Package cachetest holds the behaviour every cache.Store must share.
// Store test suites register it with DescribeStore.
package cachetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/banter/pkg/cache"
)

// Harness is a store under test plus a way to move its clock forward.
type Harness struct {
	Store   cache.Store
	Advance func(d time.Duration)
}

// DescribeStore registers the shared store specs. newHarness is called before
// each spec and must return an empty store.
func DescribeStore(name string, newHarness func() Harness) bool {
	return Describe(name+" store behaviour", func() {
		var (
			ctx   context.Context
			h     Harness
			store cache.Store
		)

		BeforeEach(func() {
			ctx = context.Background()
			h = newHarness()
			store = h.Store
		})

		AfterEach(func() {
			Expect(store.Close()).To(Succeed())
		})

		It("pings", func() {
			Expect(store.Ping(ctx)).To(Succeed())
		})

		Describe("string values", func() {
			It("returns ErrMiss for absent keys", func() {
				_, err := store.Get(ctx, "persona:nobody")
				Expect(err).To(MatchError(cache.ErrMiss))
			})

			It("stores and overwrites values", func() {
				Expect(store.SetWithTTL(ctx, "persona:u1", "STRICT", time.Hour)).To(Succeed())
				Expect(store.SetWithTTL(ctx, "persona:u1", "CASUAL", time.Hour)).To(Succeed())

				v, err := store.Get(ctx, "persona:u1")
				Expect(err).NotTo(HaveOccurred())
				Expect(v).To(Equal("CASUAL"))
			})

			It("expires values after their ttl", func() {
				Expect(store.SetWithTTL(ctx, "persona:u1", "STRICT", time.Hour)).To(Succeed())

				h.Advance(59 * time.Minute)
				_, err := store.Get(ctx, "persona:u1")
				Expect(err).NotTo(HaveOccurred())

				h.Advance(2 * time.Minute)
				_, err = store.Get(ctx, "persona:u1")
				Expect(err).To(MatchError(cache.ErrMiss))
			})
		})

		Describe("lists", func() {
			It("reads an absent list as empty", func() {
				vals, err := store.ReadRange(ctx, "conv:nobody", 0, -1)
				Expect(err).NotTo(HaveOccurred())
				Expect(vals).To(BeEmpty())
			})

			It("keeps insertion order", func() {
				for _, v := range []string{"a", "b", "c"} {
					Expect(store.AppendAndTrim(ctx, "conv:u1", v, 10, time.Hour)).To(Succeed())
				}

				vals, err := store.ReadRange(ctx, "conv:u1", 0, -1)
				Expect(err).NotTo(HaveOccurred())
				Expect(vals).To(Equal([]string{"a", "b", "c"}))

				tail, err := store.ReadRange(ctx, "conv:u1", -2, -1)
				Expect(err).NotTo(HaveOccurred())
				Expect(tail).To(Equal([]string{"b", "c"}))
			})

			It("keeps only the newest maxLen elements", func() {
				for i := range 7 {
					Expect(store.AppendAndTrim(ctx, "conv:u1", fmt.Sprint(i), 4, time.Hour)).To(Succeed())
				}

				vals, err := store.ReadRange(ctx, "conv:u1", 0, -1)
				Expect(err).NotTo(HaveOccurred())
				Expect(vals).To(Equal([]string{"3", "4", "5", "6"}))
			})

			It("never exceeds maxLen under concurrent appends", func() {
				var wg sync.WaitGroup
				for i := range 20 {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						defer GinkgoRecover()
						Expect(store.AppendAndTrim(ctx, "conv:u1", fmt.Sprint(i), 5, time.Hour)).To(Succeed())
					}(i)
				}
				wg.Wait()

				vals, err := store.ReadRange(ctx, "conv:u1", 0, -1)
				Expect(err).NotTo(HaveOccurred())
				Expect(vals).To(HaveLen(5))
			})

			It("rejects a non-positive maxLen", func() {
				err := store.AppendAndTrim(ctx, "conv:u1", "a", 0, time.Hour)
				Expect(err).To(MatchError(cache.ErrInvalidLength))
			})

			It("refreshes the ttl on every append", func() {
				Expect(store.AppendAndTrim(ctx, "conv:u1", "a", 10, time.Hour)).To(Succeed())
				h.Advance(50 * time.Minute)
				Expect(store.AppendAndTrim(ctx, "conv:u1", "b", 10, time.Hour)).To(Succeed())
				h.Advance(50 * time.Minute)

				vals, err := store.ReadRange(ctx, "conv:u1", 0, -1)
				Expect(err).NotTo(HaveOccurred())
				Expect(vals).To(Equal([]string{"a", "b"}))
			})

			It("drops the whole list once the ttl passes without writes", func() {
				Expect(store.AppendAndTrim(ctx, "conv:u1", "a", 10, time.Hour)).To(Succeed())
				h.Advance(time.Hour + time.Second)

				vals, err := store.ReadRange(ctx, "conv:u1", 0, -1)
				Expect(err).NotTo(HaveOccurred())
				Expect(vals).To(BeEmpty())
			})
		})

		Describe("Delete", func() {
			It("reports whether the key existed", func() {
				Expect(store.AppendAndTrim(ctx, "conv:u1", "a", 10, time.Hour)).To(Succeed())

				existed, err := store.Delete(ctx, "conv:u1")
				Expect(err).NotTo(HaveOccurred())
				Expect(existed).To(BeTrue())

				existed, err = store.Delete(ctx, "conv:u1")
				Expect(err).NotTo(HaveOccurred())
				Expect(existed).To(BeFalse())

				vals, err := store.ReadRange(ctx, "conv:u1", 0, -1)
				Expect(err).NotTo(HaveOccurred())
				Expect(vals).To(BeEmpty())
			})
		})
	})
}
