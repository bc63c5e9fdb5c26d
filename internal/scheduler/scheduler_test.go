package scheduler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/okian/fleetledger/internal/adapters/kvstore"
	"github.com/okian/fleetledger/internal/scheduler"
	"github.com/okian/fleetledger/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	_ = logger.InitWithFormat(logger.FormatText, io.Discard)
	os.Exit(m.Run())
}

type countingResetter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *countingResetter) ResetDaily(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return 3, r.err
}

func (r *countingResetter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

type timers struct {
	mu  sync.Mutex
	all []*fakeTimer
}

func (ts *timers) afterFunc(d time.Duration, f func()) scheduler.Timer {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	ts.all = append(ts.all, t)
	return t
}

func (ts *timers) last() *fakeTimer {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.all[len(ts.all)-1]
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func TestNextMidnight(t *testing.T) {
	Convey("Given instants around midnight and DST", t, func() {
		ny, err := time.LoadLocation("America/New_York")
		So(err, ShouldBeNil)

		Convey("Then the next local midnight is the start of tomorrow", func() {
			now := time.Date(2026, 3, 4, 23, 59, 0, 0, time.UTC)
			So(scheduler.NextMidnight(now, time.UTC).Equal(time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)), ShouldBeTrue)
		})

		Convey("And month ends roll over", func() {
			now := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)
			So(scheduler.NextMidnight(now, time.UTC).Format(time.RFC3339), ShouldEqual, "2026-02-01T00:00:00Z")
		})

		Convey("And a DST day is 23 hours long", func() {
			now := time.Date(2026, 3, 8, 0, 0, 0, 0, ny)
			next := scheduler.NextMidnight(now, ny)
			So(next.Sub(now), ShouldEqual, 23*time.Hour)
			So(next.Format("2006-01-02 15:04"), ShouldEqual, "2026-03-09 00:00")
		})
	})
}

func TestScheduler(t *testing.T) {
	ctx := context.Background()

	Convey("Given a scheduler with a fake timer", t, func() {
		kv := kvstore.NewMemoryStore()
		r := &countingResetter{}
		ts := &timers{}
		clk := &clock{t: time.Date(2026, 3, 4, 22, 0, 0, 0, time.UTC)}
		s := scheduler.New(r, kv,
			scheduler.WithClock(clk.now),
			scheduler.WithLocation(time.UTC),
			scheduler.WithAfterFunc(ts.afterFunc),
		)
		So(s.State(), ShouldEqual, scheduler.Idle)

		Convey("When started on first boot", func() {
			So(s.Start(ctx), ShouldBeNil)

			Convey("Then it resets, writes the marker and arms for midnight", func() {
				So(r.count(), ShouldEqual, 1)
				raw, err := kv.Get(ctx, scheduler.MarkerKey)
				So(err, ShouldBeNil)
				So(string(raw), ShouldEqual, `"2026-03-04"`)
				So(s.State(), ShouldEqual, scheduler.Armed)
				So(ts.last().d, ShouldEqual, 2*time.Hour)
				So(s.Next().Equal(time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)), ShouldBeTrue)
			})

			Convey("And starting again is rejected", func() {
				So(errors.Is(s.Start(ctx), scheduler.ErrAlreadyStarted), ShouldBeTrue)
			})

			Convey("And when the timer fires it resets and re-arms", func() {
				clk.set(time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))
				ts.last().f()

				So(r.count(), ShouldEqual, 2)
				raw, _ := kv.Get(ctx, scheduler.MarkerKey)
				So(string(raw), ShouldEqual, `"2026-03-05"`)
				So(s.State(), ShouldEqual, scheduler.Armed)
				So(ts.last().d, ShouldEqual, 24*time.Hour)
			})

			Convey("And Stop cancels the timer without firing", func() {
				pending := ts.last()
				s.Stop()
				So(pending.stopped, ShouldBeTrue)
				So(s.State(), ShouldEqual, scheduler.Stopped)

				pending.f()
				So(r.count(), ShouldEqual, 1)
			})
		})

		Convey("When today's reset already happened", func() {
			So(kv.Put(ctx, scheduler.MarkerKey, []byte(`"2026-03-04"`)), ShouldBeNil)
			So(s.Start(ctx), ShouldBeNil)

			Convey("Then no catch-up reset runs", func() {
				So(r.count(), ShouldEqual, 0)
				So(s.State(), ShouldEqual, scheduler.Armed)
			})
		})

		Convey("When the last reset was on an earlier day", func() {
			So(kv.Put(ctx, scheduler.MarkerKey, []byte(`"2026-03-01"`)), ShouldBeNil)
			So(s.Start(ctx), ShouldBeNil)

			Convey("Then it catches up immediately", func() {
				So(r.count(), ShouldEqual, 1)
			})
		})

		Convey("When the marker is not valid JSON", func() {
			So(kv.Put(ctx, scheduler.MarkerKey, []byte("2026-03-04")), ShouldBeNil)
			So(s.Start(ctx), ShouldBeNil)

			Convey("Then it resets and rewrites the marker as JSON", func() {
				So(r.count(), ShouldEqual, 1)
				raw, err := kv.Get(ctx, scheduler.MarkerKey)
				So(err, ShouldBeNil)
				So(string(raw), ShouldEqual, `"2026-03-04"`)
			})
		})

		Convey("When the reset fails", func() {
			r.err = errors.New("directory unavailable")
			So(s.Start(ctx), ShouldBeNil)

			Convey("Then the marker is not written and the scheduler still arms", func() {
				_, err := kv.Get(ctx, scheduler.MarkerKey)
				So(errors.Is(err, kvstore.ErrNotFound), ShouldBeTrue)
				So(s.State(), ShouldEqual, scheduler.Armed)
			})
		})

		Convey("When the start context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			So(s.Start(cctx), ShouldBeNil)
			cancel()

			Convey("Then the scheduler stops", func() {
				deadline := time.Now().Add(time.Second)
				for s.State() != scheduler.Stopped && time.Now().Before(deadline) {
					time.Sleep(5 * time.Millisecond)
				}
				So(s.State(), ShouldEqual, scheduler.Stopped)
			})
		})
	})
}

// jsonOnlyStore rejects values that are not valid JSON, like a JSONB column.
type jsonOnlyStore struct {
	kvstore.Store
}

func (s jsonOnlyStore) Put(ctx context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("invalid input syntax for type json: %q", value)
	}
	return s.Store.Put(ctx, key, value)
}

func TestSameDayRestartOnJSONStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store that only accepts JSON values", t, func() {
		kv := jsonOnlyStore{Store: kvstore.NewMemoryStore()}
		r := &countingResetter{}
		clk := &clock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
		boot := func() {
			ts := &timers{}
			s := scheduler.New(r, kv,
				scheduler.WithClock(clk.now),
				scheduler.WithLocation(time.UTC),
				scheduler.WithAfterFunc(ts.afterFunc),
			)
			So(s.Start(ctx), ShouldBeNil)
			s.Stop()
		}

		Convey("When the process boots twice on the same day", func() {
			boot()
			clk.set(time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC))
			boot()

			Convey("Then only the first boot resets", func() {
				So(r.count(), ShouldEqual, 1)
				raw, err := kv.Get(ctx, scheduler.MarkerKey)
				So(err, ShouldBeNil)
				So(json.Valid(raw), ShouldBeTrue)
			})
		})

		Convey("When the next day boots", func() {
			boot()
			clk.set(time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC))
			boot()

			Convey("Then it catches up once more", func() {
				So(r.count(), ShouldEqual, 2)
			})
		})
	})
}

func TestStateString(t *testing.T) {
	Convey("Given the states", t, func() {
		So(scheduler.Idle.String(), ShouldEqual, "idle")
		So(scheduler.Armed.String(), ShouldEqual, "armed")
		So(scheduler.Firing.String(), ShouldEqual, "firing")
		So(scheduler.Stopped.String(), ShouldEqual, "stopped")
	})
}
