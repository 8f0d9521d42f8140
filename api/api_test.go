package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/banter/bot"
	"github.com/papercomputeco/banter/pkg/dialogue"
	"github.com/papercomputeco/banter/pkg/eventstream"
	"github.com/papercomputeco/banter/pkg/llm"
	"github.com/papercomputeco/banter/pkg/metrics"
	"github.com/papercomputeco/banter/pkg/persona"
	testutils "github.com/papercomputeco/banter/pkg/utils/test"
)

var _ = Describe("Server", func() {
	const user = "@ada:example.org"

	var (
		server   *Server
		orch     *dialogue.Orchestrator
		profiles *testutils.CountingDriver
		kv       *testutils.FlakyCache
		backend  *testutils.StubCompleter
		ctx      context.Context
	)

	userPath := func(suffix string) string {
		return "/v1/users/" + url.PathEscape(user) + suffix
	}

	do := func(method, path string, body any) *http.Response {
		var r io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			r = bytes.NewReader(data)
		}

		req, err := http.NewRequest(method, path, r)
		Expect(err).NotTo(HaveOccurred())
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := server.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	decode := func(resp *http.Response, into any) {
		data, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(data, into)).To(Succeed())
	}

	BeforeEach(func() {
		ctx = context.Background()
		profiles = testutils.NewCountingDriver()
		kv = testutils.NewFlakyCache()
		backend = testutils.NewStubCompleter("hello")
		m := metrics.New("banter_test")

		var err error
		orch, err = dialogue.New(dialogue.Config{
			Profiles: profiles,
			Cache:    kv,
			Backend:  backend,
			Metrics:  m,
		})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(orch.Close)

		server = NewServer(Config{ListenAddr: ":0", MetricsHandler: m.Handler()}, orch, nil)
	})

	Describe("GET /ping", func() {
		It("returns pong", func() {
			resp := do(http.MethodGet, "/ping", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var body string
			decode(resp, &body)
			Expect(body).To(Equal("pong"))
		})
	})

	Describe("POST /v1/users", func() {
		It("registers a user with the default persona", func() {
			resp := do(http.MethodPost, "/v1/users", RegisterRequest{ExternalID: user, DisplayName: "Ada"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var profile ProfileResponse
			decode(resp, &profile)
			Expect(profile).To(Equal(ProfileResponse{ExternalID: user, DisplayName: "Ada", Persona: "NEUTRAL"}))
		})

		It("is idempotent", func() {
			do(http.MethodPost, "/v1/users", RegisterRequest{ExternalID: user, DisplayName: "Ada"})
			resp := do(http.MethodPost, "/v1/users", RegisterRequest{ExternalID: user, DisplayName: "Ada L."})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var profile ProfileResponse
			decode(resp, &profile)
			Expect(profile.DisplayName).To(Equal("Ada"))
		})

		It("requires an external id", func() {
			resp := do(http.MethodPost, "/v1/users", RegisterRequest{DisplayName: "Ada"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("reports store failures", func() {
			profiles.Fail("Create", testutils.ErrInjected)
			resp := do(http.MethodPost, "/v1/users", RegisterRequest{ExternalID: user})
			Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))
		})
	})

	Describe("persona", func() {
		It("defaults to neutral for unknown users", func() {
			resp := do(http.MethodGet, userPath("/persona"), nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var body PersonaBody
			decode(resp, &body)
			Expect(body.Persona).To(Equal("NEUTRAL"))
		})

		It("updates a registered user's persona", func() {
			do(http.MethodPost, "/v1/users", RegisterRequest{ExternalID: user})

			resp := do(http.MethodPut, userPath("/persona"), PersonaBody{Persona: "casual"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusNoContent))
			Expect(orch.Persona(ctx, user)).To(Equal(persona.Casual))
		})

		It("returns 404 for unregistered users", func() {
			resp := do(http.MethodPut, userPath("/persona"), PersonaBody{Persona: "strict"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})

		It("returns 400 for unknown personas", func() {
			resp := do(http.MethodPut, userPath("/persona"), PersonaBody{Persona: "pirate"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns 502 when the cache was not updated", func() {
			do(http.MethodPost, "/v1/users", RegisterRequest{ExternalID: user})
			kv.Fail("SetWithTTL", testutils.ErrInjected)

			resp := do(http.MethodPut, userPath("/persona"), PersonaBody{Persona: "strict"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadGateway))
		})
	})

	Describe("messages and transcript", func() {
		It("answers and records the exchange", func() {
			resp := do(http.MethodPost, userPath("/messages"), MessageRequest{Text: "hi"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var reply MessageResponse
			decode(resp, &reply)
			Expect(reply.Reply).To(Equal("hello"))

			resp = do(http.MethodGet, userPath("/transcript"), nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var turns []llm.Turn
			decode(resp, &turns)
			Expect(turns).To(Equal([]llm.Turn{
				{Role: llm.RoleUser, Content: "hi"},
				{Role: llm.RoleAssistant, Content: "hello"},
			}))
		})

		It("returns an empty list for a fresh user", func() {
			resp := do(http.MethodGet, userPath("/transcript"), nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var turns []llm.Turn
			decode(resp, &turns)
			Expect(turns).To(BeEmpty())
		})

		It("rejects empty messages", func() {
			resp := do(http.MethodPost, userPath("/messages"), MessageRequest{Text: "  "})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("apologises with 502 when the backend fails", func() {
			backend.Err = errors.New("upstream down")
			resp := do(http.MethodPost, userPath("/messages"), MessageRequest{Text: "hi"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadGateway))

			var body ErrorResponse
			decode(resp, &body)
			Expect(body.Error).To(Equal(bot.Apology))
		})

		It("deletes the transcript", func() {
			do(http.MethodPost, userPath("/messages"), MessageRequest{Text: "hi"})

			resp := do(http.MethodDelete, userPath("/transcript"), nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusNoContent))

			turns, err := orch.Transcript(ctx, user)
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(BeEmpty())
		})

		It("reports transcript read failures", func() {
			kv.Fail("ReadRange", testutils.ErrInjected)
			resp := do(http.MethodGet, userPath("/transcript"), nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))
		})
	})

	Describe("GET /metrics", func() {
		It("exposes prometheus metrics", func() {
			do(http.MethodPost, userPath("/messages"), MessageRequest{Text: "hi"})

			resp := do(http.MethodGet, "/metrics", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("banter_test_turns_total"))
		})

		It("is not mounted without a handler", func() {
			server = NewServer(Config{}, orch, nil)
			resp := do(http.MethodGet, "/metrics", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})
	})
})

// gatedPublisher records exchange events but holds every publish until
// release is closed, so events are still queued after their requests return.
type gatedPublisher struct {
	release chan struct{}

	mu      sync.Mutex
	userIDs []string
}

func (g *gatedPublisher) PublishExchange(ctx context.Context, e *eventstream.ExchangeCompletedEvent) error {
	select {
	case <-g.release:
	case <-ctx.Done():
		return ctx.Err()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.userIDs = append(g.userIDs, e.UserID)
	return nil
}

func (g *gatedPublisher) Close() error { return nil }

func (g *gatedPublisher) recorded() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.userIDs...)
}

var _ = Describe("Server exchange events", func() {
	It("keeps each request's user id once the request buffer is reused", func() {
		publisher := &gatedPublisher{release: make(chan struct{})}

		orch, err := dialogue.New(dialogue.Config{
			Profiles:  testutils.NewCountingDriver(),
			Cache:     testutils.NewFlakyCache(),
			Backend:   testutils.NewStubCompleter("hello"),
			Publisher: publisher,
		})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(orch.Close)

		server := NewServer(Config{ListenAddr: ":0"}, orch, nil)

		post := func(id string) {
			data, err := json.Marshal(MessageRequest{Text: "hi"})
			Expect(err).NotTo(HaveOccurred())

			req, err := http.NewRequest(http.MethodPost, "/v1/users/"+id+"/messages", bytes.NewReader(data))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", "application/json")

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		}

		post("alice")
		for range 50 {
			post("zzzzz")
		}
		close(publisher.release)

		Eventually(publisher.recorded).Should(HaveLen(51))

		counts := map[string]int{}
		for _, id := range publisher.recorded() {
			counts[id]++
		}
		Expect(counts).To(Equal(map[string]int{"alice": 1, "zzzzz": 50}))
	})
})
