package personacmder_test

import (
	"bytes"
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	bantercmder "github.com/papercomputeco/banter/cmd/banter"
	"github.com/papercomputeco/banter/cmd/banter/bootstrap"
	personacmder "github.com/papercomputeco/banter/cmd/banter/persona"
	"github.com/papercomputeco/banter/pkg/config"
)

var _ = Describe("NewPersonaCmd", func() {
	It("has get and set subcommands", func() {
		cmd := personacmder.NewPersonaCmd()
		names := make([]string, 0, 2)
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("get", "set"))
	})
})

var _ = Describe("Persona command execution", func() {
	const user = "@ada:example.org"
	var configDir string

	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		root := bantercmder.NewBanterCmd()
		root.SetArgs(append(append([]string{"persona"}, args...),
			"--config-dir", configDir, "--cache-provider", "memory"))
		root.SetOut(&out)
		err := root.Execute()
		return out.String(), err
	}

	BeforeEach(func() {
		configDir = GinkgoT().TempDir()
	})

	register := func() {
		cfg := config.NewDefaultConfig()
		cfg.Cache.Provider = "memory"
		orch, err := bootstrap.NewOrchestrator(context.Background(), bootstrap.Options{Config: cfg, ConfigDir: configDir})
		Expect(err).NotTo(HaveOccurred())
		_, err = orch.Register(context.Background(), user, "Ada")
		Expect(err).NotTo(HaveOccurred())
		Expect(orch.Close()).To(Succeed())
	}

	It("shows neutral for unknown users", func() {
		out, err := run("get", user)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("neutral"))
	})

	It("persists a new persona in the profile store", func() {
		register()

		out, err := run("set", user, "casual")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Casual / Friendly"))

		out, err = run("get", user)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("casual"))
	})

	It("refuses unregistered users", func() {
		_, err := run("set", user, "strict")
		Expect(err).To(MatchError(ContainSubstring("not registered")))
	})

	It("rejects unknown personas", func() {
		_, err := run("set", user, "pirate")
		Expect(err).To(MatchError(ContainSubstring("unknown persona")))
	})
})
