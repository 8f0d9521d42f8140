package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/banter/pkg/eventstream"
	"github.com/papercomputeco/banter/pkg/eventstream/worker"
	"github.com/papercomputeco/banter/pkg/persona"
)

// recordingPublisher records published events and can block until released.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.ExchangeCompletedEvent
	gate   chan struct{}
	err    error
}

func (r *recordingPublisher) PublishExchange(_ context.Context, e *eventstream.ExchangeCompletedEvent) error {
	if r.gate != nil {
		<-r.gate
	}
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newEvent(text string) *eventstream.ExchangeCompletedEvent {
	return eventstream.NewExchangeCompleted("@alice:example.org", persona.Neutral, text, "ok", 0)
}

var _ = Describe("Worker Pool", func() {
	It("requires a publisher", func() {
		_, err := worker.NewPool(&worker.Config{})
		Expect(err).To(HaveOccurred())
	})

	It("publishes every queued event before Close returns", func() {
		pub := &recordingPublisher{}
		wp, err := worker.NewPool(&worker.Config{Publisher: pub})
		Expect(err).NotTo(HaveOccurred())

		for range 10 {
			Expect(wp.Enqueue(newEvent("hi"))).To(BeTrue())
		}
		wp.Close()

		Expect(pub.count()).To(Equal(10))
	})

	It("drops events when the queue is full", func() {
		pub := &recordingPublisher{gate: make(chan struct{})}
		var dropped atomic.Int32
		wp, err := worker.NewPool(&worker.Config{
			Publisher:  pub,
			NumWorkers: 1,
			QueueSize:  1,
			OnDrop: func(*eventstream.ExchangeCompletedEvent) {
				dropped.Add(1)
			},
		})
		Expect(err).NotTo(HaveOccurred())

		accepted := 0
		for range 5 {
			if wp.Enqueue(newEvent("hi")) {
				accepted++
			}
		}

		// One event may be held by the blocked worker and one by the queue.
		Expect(accepted).To(BeNumerically("<=", 2))
		Expect(int(dropped.Load())).To(Equal(5 - accepted))

		close(pub.gate)
		wp.Close()
		Expect(pub.count()).To(Equal(accepted))
	})

	It("keeps going after publish failures", func() {
		pub := &recordingPublisher{err: errors.New("broker down")}
		wp, err := worker.NewPool(&worker.Config{Publisher: pub})
		Expect(err).NotTo(HaveOccurred())

		Expect(wp.Enqueue(newEvent("a"))).To(BeTrue())
		Expect(wp.Enqueue(newEvent("b"))).To(BeTrue())
		wp.Close()

		Expect(pub.count()).To(BeZero())
	})

	It("rejects events after Close and tolerates a second Close", func() {
		pub := &recordingPublisher{}
		wp, err := worker.NewPool(&worker.Config{Publisher: pub})
		Expect(err).NotTo(HaveOccurred())

		wp.Close()
		Expect(wp.Enqueue(newEvent("late"))).To(BeFalse())
		Expect(wp.Close).NotTo(Panic())
	})

	It("ignores nil events", func() {
		pub := &recordingPublisher{}
		wp, err := worker.NewPool(&worker.Config{Publisher: pub})
		Expect(err).NotTo(HaveOccurred())
		defer wp.Close()

		Expect(wp.Enqueue(nil)).To(BeFalse())
	})
})
