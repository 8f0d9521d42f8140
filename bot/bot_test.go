package bot_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/banter/bot"
	"github.com/papercomputeco/banter/pkg/dialogue"
	"github.com/papercomputeco/banter/pkg/llm"
	"github.com/papercomputeco/banter/pkg/persona"
	testutils "github.com/papercomputeco/banter/pkg/utils/test"
)

var _ = Describe("Bot", func() {
	const user = "@ada:example.org"

	var (
		ctx      context.Context
		profiles *testutils.CountingDriver
		kv       *testutils.FlakyCache
		backend  *testutils.StubCompleter
		orch     *dialogue.Orchestrator
		b        *bot.Bot
	)

	say := func(text string) []string {
		return b.Handle(ctx, bot.Message{
			UserID:      user,
			Text:        text,
			DisplayName: func(context.Context) string { return "Ada" },
		})
	}

	BeforeEach(func() {
		ctx = context.Background()
		profiles = testutils.NewCountingDriver()
		kv = testutils.NewFlakyCache()
		backend = testutils.NewStubCompleter("hello")

		var err error
		orch, err = dialogue.New(dialogue.Config{Profiles: profiles, Cache: kv, Backend: backend})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(orch.Close)

		b, err = bot.New(bot.Config{Dialogue: orch})
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires a dialogue", func() {
		_, err := bot.New(bot.Config{})
		Expect(err).To(HaveOccurred())
	})

	Describe("Parse", func() {
		It("splits the command name and arguments", func() {
			cmd, err := b.Parse("  !MODE casual  ")
			Expect(err).NotTo(HaveOccurred())
			Expect(cmd.Name).To(Equal("mode"))
			Expect(cmd.Args).To(Equal([]string{"casual"}))
		})

		It("treats plain text and a bare prefix as non-commands", func() {
			_, err := b.Parse("hello there")
			Expect(err).To(MatchError(bot.ErrNotACommand))
			_, err = b.Parse("!")
			Expect(err).To(MatchError(bot.ErrNotACommand))
		})
	})

	Describe("plain messages", func() {
		It("answers through the backend and records the exchange", func() {
			Expect(say("hi")).To(Equal([]string{"hello"}))

			transcript, err := orch.Transcript(ctx, user)
			Expect(err).NotTo(HaveOccurred())
			Expect(transcript).To(Equal([]llm.Turn{
				{Role: llm.RoleUser, Content: "hi"},
				{Role: llm.RoleAssistant, Content: "hello"},
			}))
		})

		It("apologises when the backend fails", func() {
			backend.Err = errors.New("rate limited")
			Expect(say("hi")).To(Equal([]string{bot.Apology}))
		})
	})

	Describe("!start", func() {
		It("greets and registers the user once", func() {
			Expect(say("!start")).To(Equal([]string{
				"Hello, Ada!\nWait a moment, I'm registering you.",
				bot.Registered,
			}))
			Expect(say("!start")).To(ContainElement(bot.Registered))

			p, err := profiles.FindByExternalID(ctx, user)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.DisplayName).To(Equal("Ada"))
			Expect(profiles.Calls("Create")).To(Equal(2))
		})

		It("falls back to the user id without a name resolver", func() {
			replies := b.Handle(ctx, bot.Message{UserID: user, Text: "!start"})
			Expect(replies[0]).To(ContainSubstring(user))
		})

		It("reports registration failures", func() {
			profiles.Fail("Create", testutils.ErrInjected)
			Expect(say("!start")).To(ContainElement(bot.SomethingWrong))
		})
	})

	Describe("!help", func() {
		It("lists every command", func() {
			replies := say("!help")
			Expect(replies).To(HaveLen(1))
			for _, name := range []string{"!start", "!help", "!reset", "!about", "!mode"} {
				Expect(replies[0]).To(ContainSubstring(name))
			}
		})
	})

	Describe("!reset", func() {
		It("forgets the transcript", func() {
			say("hi")
			Expect(say("!reset")).To(Equal([]string{bot.HistoryReset}))
			Expect(say("!reset")).To(Equal([]string{bot.NoHistory}))

			transcript, err := orch.Transcript(ctx, user)
			Expect(err).NotTo(HaveOccurred())
			Expect(transcript).To(BeEmpty())
		})

		It("reports cache failures", func() {
			kv.Fail("Delete", testutils.ErrInjected)
			Expect(say("!reset")).To(Equal([]string{bot.SomethingWrong}))
		})
	})

	Describe("!about", func() {
		It("describes the bot", func() {
			Expect(say("!about")[0]).To(ContainSubstring("banter"))
		})
	})

	Describe("!mode", func() {
		It("shows the current mode", func() {
			Expect(say("!mode")[0]).To(ContainSubstring(persona.Neutral.Label()))
		})

		It("changes the persona used for replies", func() {
			say("!start")
			Expect(say("!mode casual")).To(Equal([]string{"Mode set to Casual / Friendly."}))
			Expect(orch.Persona(ctx, user)).To(Equal(persona.Casual))

			say("hi")
			Expect(backend.Last()[0].Content).To(Equal(persona.Casual.Instruction()))
		})

		It("rejects unknown modes", func() {
			Expect(say("!mode pirate")[0]).To(ContainSubstring(`Unknown mode "pirate"`))
		})

		It("asks unregistered users to start first", func() {
			Expect(say("!mode strict")).To(Equal([]string{bot.NotRegistered}))
		})

		It("warns when only the durable store was updated", func() {
			say("!start")
			kv.Fail("SetWithTTL", testutils.ErrInjected)
			Expect(say("!mode strict")).To(Equal([]string{bot.ModeSavedLater}))
		})

		It("reports store failures", func() {
			say("!start")
			profiles.Fail("UpdatePersona", testutils.ErrInjected)
			Expect(say("!mode strict")).To(Equal([]string{bot.SomethingWrong}))
		})
	})

	It("rejects unknown commands", func() {
		Expect(say("!dance")).To(Equal([]string{bot.UnknownCommand}))
	})
})
