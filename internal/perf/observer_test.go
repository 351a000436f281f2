package perf

import (
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestObserver(t *testing.T) {
	Convey("Given an observer with a 100ms slow threshold", t, func() {
		clock := &stepClock{now: time.Unix(1000, 0)}
		obs := New(100 * time.Millisecond).WithClock(clock.Now)

		Convey("a completed operation is aggregated", func() {
			stop := obs.Start("submit")
			clock.Advance(20 * time.Millisecond)
			stop(OutcomeOK)

			stats := obs.Stats()["submit"]
			So(stats.Count, ShouldEqual, 1)
			So(stats.Errors, ShouldEqual, 0)
			So(stats.Slow, ShouldEqual, 0)
			So(stats.TotalDur, ShouldEqual, 20*time.Millisecond)
			So(stats.Avg(), ShouldEqual, 20*time.Millisecond)
		})

		Convey("errors and slow operations are counted separately", func() {
			stop := obs.Start("submit")
			clock.Advance(250 * time.Millisecond)
			stop(OutcomeError)

			stop = obs.Start("submit")
			clock.Advance(10 * time.Millisecond)
			stop(OutcomeOK)

			stats := obs.Stats()["submit"]
			So(stats.Count, ShouldEqual, 2)
			So(stats.Errors, ShouldEqual, 1)
			So(stats.Slow, ShouldEqual, 1)
			So(stats.MaxDur, ShouldEqual, 250*time.Millisecond)
			So(stats.Avg(), ShouldEqual, 130*time.Millisecond)
		})

		Convey("operations are tracked per class", func() {
			obs.Start("submit")(OutcomeOK)
			obs.Start("leaderboard_rank")(OutcomeCacheHit)
			obs.Start("leaderboard_rank")(OutcomeCacheMiss)

			stats := obs.Stats()
			So(stats["submit"].Count, ShouldEqual, 1)
			So(stats["leaderboard_rank"].Count, ShouldEqual, 2)
		})

		Convey("Stats returns a copy, not live aggregates", func() {
			obs.Start("submit")(OutcomeOK)
			snapshot := obs.Stats()
			obs.Start("submit")(OutcomeOK)
			So(snapshot["submit"].Count, ShouldEqual, 1)
			So(obs.Stats()["submit"].Count, ShouldEqual, 2)
		})

		Convey("the prometheus handler exposes the counters", func() {
			stop := obs.Start("submit")
			clock.Advance(time.Millisecond)
			stop("accepted")

			rec := httptest.NewRecorder()
			obs.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
			body, err := io.ReadAll(rec.Body)
			So(err, ShouldBeNil)
			So(string(body), ShouldContainSubstring, "mentalmaze_quiz_operations_total")
			So(string(body), ShouldContainSubstring, `outcome="accepted"`)
		})
	})

	Convey("A non-positive threshold falls back to the default", t, func() {
		obs := New(0)
		So(obs.slowThreshold, ShouldEqual, defaultSlowThreshold)
	})
}

func TestObserverConcurrentUse(t *testing.T) {
	obs := New(time.Second)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				obs.Start("submit")(OutcomeOK)
			}
		}()
	}
	wg.Wait()
	if got := obs.Stats()["submit"].Count; got != 3200 {
		t.Fatalf("expected 3200 recorded operations, got %d", got)
	}
}

func TestOpStatsAvgEmpty(t *testing.T) {
	var s OpStats
	if s.Avg() != 0 {
		t.Fatal("empty stats should average to zero")
	}
}
