package conversation_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/banter/pkg/cache/inmemory"
	"github.com/papercomputeco/banter/pkg/conversation"
	"github.com/papercomputeco/banter/pkg/llm"
	"github.com/papercomputeco/banter/pkg/persona"
	testutils "github.com/papercomputeco/banter/pkg/utils/test"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var _ = Describe("ComposePrompt", func() {
	It("returns exactly one non-empty system turn per persona", func() {
		seen := map[string]persona.Persona{}
		for _, p := range persona.All() {
			prompt := conversation.ComposePrompt(p)
			Expect(prompt).To(HaveLen(1))
			Expect(prompt[0].Role).To(Equal(llm.RoleSystem))
			Expect(prompt[0].Content).NotTo(BeEmpty())
			Expect(prompt[0].Content).To(Equal(p.Instruction()))

			Expect(seen).NotTo(HaveKey(prompt[0].Content))
			seen[prompt[0].Content] = p
		}
	})

	It("is stable across calls", func() {
		Expect(conversation.ComposePrompt(persona.Strict)).To(Equal(conversation.ComposePrompt(persona.Strict)))
	})
})

var _ = Describe("Builder", func() {
	const user = "@alice:example.org"

	var (
		ctx     context.Context
		clk     *clock
		kv      *testutils.FlakyCache
		backend *testutils.StubCompleter
		builder *conversation.Builder
	)

	newBuilder := func(maxMessages int) *conversation.Builder {
		b, err := conversation.New(conversation.Config{
			Cache:       kv,
			Backend:     backend,
			MaxMessages: maxMessages,
		})
		Expect(err).NotTo(HaveOccurred())
		return b
	}

	BeforeEach(func() {
		ctx = context.Background()
		clk = &clock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
		kv = testutils.NewFlakyCache(inmemory.WithClock(clk.Now))
		backend = testutils.NewStubCompleter("hello")
		builder = newBuilder(0)
	})

	It("derives cache keys from the user id", func() {
		Expect(conversation.Key("42")).To(Equal("conv:42"))
	})

	It("requires a cache and a backend", func() {
		_, err := conversation.New(conversation.Config{Backend: backend})
		Expect(err).To(HaveOccurred())
		_, err = conversation.New(conversation.Config{Cache: kv})
		Expect(err).To(HaveOccurred())
	})

	Describe("HandleTurn", func() {
		It("replies and records the exchange for a fresh user", func() {
			reply, err := builder.HandleTurn(ctx, user, "hi", persona.Neutral)
			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(Equal("hello"))

			history, err := builder.History(ctx, user)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(Equal([]llm.Turn{
				{Role: llm.RoleUser, Content: "hi"},
				{Role: llm.RoleAssistant, Content: "hello"},
			}))
		})

		It("appends exactly two turns per exchange", func() {
			for i := range 3 {
				_, err := builder.HandleTurn(ctx, user, fmt.Sprintf("msg %d", i), persona.Casual)
				Expect(err).NotTo(HaveOccurred())

				history, err := builder.History(ctx, user)
				Expect(err).NotTo(HaveOccurred())
				Expect(history).To(HaveLen(2 * (i + 1)))
			}
		})

		It("sends the persona prompt followed by the transcript", func() {
			_, err := builder.HandleTurn(ctx, user, "first", persona.Strict)
			Expect(err).NotTo(HaveOccurred())
			_, err = builder.HandleTurn(ctx, user, "second", persona.Strict)
			Expect(err).NotTo(HaveOccurred())

			Expect(backend.Last()).To(Equal([]llm.Turn{
				{Role: llm.RoleSystem, Content: persona.Strict.Instruction()},
				{Role: llm.RoleUser, Content: "first"},
				{Role: llm.RoleAssistant, Content: "hello"},
				{Role: llm.RoleUser, Content: "second"},
			}))
		})

		It("keeps only the newest messages", func() {
			builder = newBuilder(4)
			for i := range 5 {
				_, err := builder.HandleTurn(ctx, user, fmt.Sprint(i), persona.Neutral)
				Expect(err).NotTo(HaveOccurred())
			}

			history, err := builder.History(ctx, user)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(Equal([]llm.Turn{
				{Role: llm.RoleUser, Content: "3"},
				{Role: llm.RoleAssistant, Content: "hello"},
				{Role: llm.RoleUser, Content: "4"},
				{Role: llm.RoleAssistant, Content: "hello"},
			}))
		})

		It("forgets the transcript after the ttl passes without writes", func() {
			_, err := builder.HandleTurn(ctx, user, "hi", persona.Neutral)
			Expect(err).NotTo(HaveOccurred())

			clk.Advance(conversation.DefaultTTL + time.Second)

			history, err := builder.History(ctx, user)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(BeEmpty())
		})

		It("falls back to the raw user turn when the cache is unavailable", func() {
			kv.Fail("AppendAndTrim", testutils.ErrInjected)
			kv.Fail("ReadRange", testutils.ErrInjected)

			reply, err := builder.HandleTurn(ctx, user, "hi", persona.Casual)
			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(Equal("hello"))

			Expect(backend.Last()).To(Equal([]llm.Turn{
				{Role: llm.RoleSystem, Content: persona.Casual.Instruction()},
				{Role: llm.RoleUser, Content: "hi"},
			}))
			Expect(kv.Calls("AppendAndTrim")).To(Equal(2))
		})

		It("returns a BackendError and keeps only the user turn when the backend fails", func() {
			backend.Err = errors.New("503 service unavailable")

			_, err := builder.HandleTurn(ctx, user, "hi", persona.Neutral)
			Expect(conversation.IsBackendError(err)).To(BeTrue())
			Expect(err).To(MatchError(backend.Err))
			Expect(backend.Calls()).To(Equal(1))

			history, err := builder.History(ctx, user)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(Equal([]llm.Turn{{Role: llm.RoleUser, Content: "hi"}}))
		})
	})

	Describe("History", func() {
		It("skips malformed entries", func() {
			Expect(kv.AppendAndTrim(ctx, conversation.Key(user), "not json", 10, time.Hour)).To(Succeed())
			Expect(kv.AppendAndTrim(ctx, conversation.Key(user), `{"role":"user","content":"ok"}`, 10, time.Hour)).To(Succeed())

			history, err := builder.History(ctx, user)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(Equal([]llm.Turn{{Role: llm.RoleUser, Content: "ok"}}))
		})

		It("surfaces read failures", func() {
			kv.Fail("ReadRange", testutils.ErrInjected)
			_, err := builder.History(ctx, user)
			Expect(err).To(MatchError(testutils.ErrInjected))
		})
	})

	Describe("Reset", func() {
		It("deletes the transcript", func() {
			_, err := builder.HandleTurn(ctx, user, "hi", persona.Neutral)
			Expect(err).NotTo(HaveOccurred())

			existed, err := builder.Reset(ctx, user)
			Expect(err).NotTo(HaveOccurred())
			Expect(existed).To(BeTrue())

			history, err := builder.History(ctx, user)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(BeEmpty())

			existed, err = builder.Reset(ctx, user)
			Expect(err).NotTo(HaveOccurred())
			Expect(existed).To(BeFalse())
		})
	})
})
