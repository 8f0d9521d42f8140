// Package storagetest holds the behaviour every storage.Driver must share.
// Driver test suites register it with DescribeDriver.
package storagetest

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/banter/pkg/persona"
	"github.com/papercomputeco/banter/pkg/storage"
)

// DescribeDriver registers the shared driver specs. newDriver is called
// before each spec and must return an empty store.
func DescribeDriver(name string, newDriver func(ctx context.Context) storage.Driver) bool {
	return Describe(name+" driver behaviour", func() {
		var (
			ctx    context.Context
			driver storage.Driver
		)

		BeforeEach(func() {
			ctx = context.Background()
			driver = newDriver(ctx)
		})

		AfterEach(func() {
			if driver != nil {
				Expect(driver.Close()).To(Succeed())
			}
		})

		It("pings", func() {
			Expect(driver.Ping(ctx)).To(Succeed())
		})

		Describe("Create", func() {
			It("creates a Neutral profile", func() {
				p, created, err := driver.Create(ctx, "@alice:example.org", "alice")
				Expect(err).NotTo(HaveOccurred())
				Expect(created).To(BeTrue())
				Expect(p.ID).NotTo(BeZero())
				Expect(p.ExternalID).To(Equal("@alice:example.org"))
				Expect(p.DisplayName).To(Equal("alice"))
				Expect(p.Persona).To(Equal(persona.Neutral))
				Expect(p.CreatedAt).NotTo(BeZero())
			})

			It("is idempotent and keeps the first display name", func() {
				first, created, err := driver.Create(ctx, "@alice:example.org", "alice")
				Expect(err).NotTo(HaveOccurred())
				Expect(created).To(BeTrue())

				second, created, err := driver.Create(ctx, "@alice:example.org", "Alice Again")
				Expect(err).NotTo(HaveOccurred())
				Expect(created).To(BeFalse())
				Expect(second.ID).To(Equal(first.ID))
				Expect(second.DisplayName).To(Equal("alice"))
			})

			It("survives concurrent registration of the same user", func() {
				var wg sync.WaitGroup
				ids := make([]int64, 8)
				for i := range ids {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						defer GinkgoRecover()
						p, _, err := driver.Create(ctx, "@race:example.org", "race")
						Expect(err).NotTo(HaveOccurred())
						ids[i] = p.ID
					}(i)
				}
				wg.Wait()

				for _, id := range ids {
					Expect(id).To(Equal(ids[0]))
				}
			})

			It("rejects an empty external id", func() {
				_, _, err := driver.Create(ctx, "", "nobody")
				Expect(err).To(HaveOccurred())
			})
		})

		Describe("FindByExternalID", func() {
			It("returns NotFoundError for unknown users", func() {
				_, err := driver.FindByExternalID(ctx, "@ghost:example.org")
				Expect(storage.IsNotFound(err)).To(BeTrue())
			})
		})

		Describe("UpdatePersona", func() {
			It("updates an existing profile", func() {
				_, _, err := driver.Create(ctx, "@bob:example.org", "bob")
				Expect(err).NotTo(HaveOccurred())

				Expect(driver.UpdatePersona(ctx, "@bob:example.org", persona.Strict)).To(Succeed())

				p, err := driver.FindByExternalID(ctx, "@bob:example.org")
				Expect(err).NotTo(HaveOccurred())
				Expect(p.Persona).To(Equal(persona.Strict))
				Expect(p.UpdatedAt).To(BeTemporally(">=", p.CreatedAt))
			})

			It("does not create missing profiles", func() {
				err := driver.UpdatePersona(ctx, "@ghost:example.org", persona.Casual)
				Expect(storage.IsNotFound(err)).To(BeTrue())

				_, err = driver.FindByExternalID(ctx, "@ghost:example.org")
				Expect(storage.IsNotFound(err)).To(BeTrue())
			})

			It("rejects values outside the enum", func() {
				_, _, err := driver.Create(ctx, "@bob:example.org", "bob")
				Expect(err).NotTo(HaveOccurred())

				err = driver.UpdatePersona(ctx, "@bob:example.org", persona.Persona(42))
				Expect(err).To(MatchError(persona.ErrUnknown))
			})
		})
	})
}
