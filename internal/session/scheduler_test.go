package session_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/frahmantamala/access-management/internal/session"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type countingCleaner struct {
	calls   atomic.Int32
	timeout atomic.Int64
	err     error
}

func (c *countingCleaner) CleanupExpiredSessions(_ context.Context, timeout time.Duration) (int64, error) {
	c.calls.Add(1)
	c.timeout.Store(int64(timeout))
	return 0, c.err
}

var _ = Describe("Scheduler", func() {
	It("cleans up immediately and on every tick until cancelled", func() {
		cleaner := &countingCleaner{}
		scheduler := session.NewScheduler(cleaner, 10*time.Millisecond, time.Hour, quietLogger())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			scheduler.Run(ctx)
			close(done)
		}()

		Eventually(cleaner.calls.Load).Should(BeNumerically(">=", 3))
		Expect(time.Duration(cleaner.timeout.Load())).To(Equal(time.Hour))

		cancel()
		Eventually(done).Should(BeClosed())
	})

	It("keeps running after a failed pass", func() {
		cleaner := &countingCleaner{err: errors.New("db down")}
		scheduler := session.NewScheduler(cleaner, 10*time.Millisecond, time.Hour, quietLogger())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go scheduler.Run(ctx)

		Eventually(cleaner.calls.Load).Should(BeNumerically(">=", 2))
	})
})
