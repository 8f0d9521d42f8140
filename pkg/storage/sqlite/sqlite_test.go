package sqlite_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/banter/pkg/persona"
	"github.com/papercomputeco/banter/pkg/storage"
	"github.com/papercomputeco/banter/pkg/storage/sqlite"
	"github.com/papercomputeco/banter/pkg/storage/storagetest"
)

var _ = storagetest.DescribeDriver("sqlite", func(ctx context.Context) storage.Driver {
	driver, err := sqlite.NewDriver(ctx, ":memory:")
	Expect(err).NotTo(HaveOccurred())
	return driver
})

var _ = Describe("NewDriver", func() {
	It("creates a file database that persists profiles across reopen", func() {
		ctx := context.Background()
		dbPath := filepath.Join(GinkgoT().TempDir(), "banter.sqlite")

		d, err := sqlite.NewDriver(ctx, dbPath)
		Expect(err).NotTo(HaveOccurred())

		_, err = os.Stat(dbPath)
		Expect(err).NotTo(HaveOccurred())

		_, _, err = d.Create(ctx, "@carol:example.org", "carol")
		Expect(err).NotTo(HaveOccurred())
		Expect(d.UpdatePersona(ctx, "@carol:example.org", persona.Casual)).To(Succeed())
		Expect(d.Close()).To(Succeed())

		reopened, err := sqlite.NewDriver(ctx, dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer reopened.Close()

		p, err := reopened.FindByExternalID(ctx, "@carol:example.org")
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Persona).To(Equal(persona.Casual))
		Expect(p.DisplayName).To(Equal("carol"))
	})

	It("treats unknown stored persona names as Neutral", func() {
		ctx := context.Background()
		d, err := sqlite.NewDriver(ctx, ":memory:")
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()

		_, err = d.DB.ExecContext(ctx,
			`INSERT INTO users (external_id, display_name, persona) VALUES ('@dave:example.org', 'dave', 'PIRATE')`)
		Expect(err).NotTo(HaveOccurred())

		p, err := d.FindByExternalID(ctx, "@dave:example.org")
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Persona).To(Equal(persona.Neutral))
	})
})
