package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/okian/fleetledger/internal/adapters/http/api"
	"github.com/okian/fleetledger/internal/adapters/repository"
	service "github.com/okian/fleetledger/internal/app"
	"github.com/okian/fleetledger/internal/domain/model"
	"github.com/okian/fleetledger/internal/ledger"
	"github.com/okian/fleetledger/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	_ = logger.InitWithFormat(logger.FormatText, io.Discard)
	os.Exit(m.Run())
}

type mockDeps struct {
	drivers  map[string]model.Driver
	events   []model.EarningEvent
	tracking bool
	mode     model.FleetMode
	drifts   []ledger.Drift
	from, to time.Time
}

func newMockDeps() *mockDeps {
	return &mockDeps{
		drivers:  map[string]model.Driver{"d-1": {ID: "d-1", Name: "Ana", Status: model.DriverActive}},
		tracking: true,
		mode:     model.FleetTrip,
	}
}

func (m *mockDeps) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true, "events": len(m.events)}
}

func (m *mockDeps) Drivers() ([]model.Driver, error) {
	out := make([]model.Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		out = append(out, d)
	}
	return out, nil
}

func (m *mockDeps) Driver(id string) (model.Driver, error) {
	d, ok := m.drivers[id]
	if !ok {
		return model.Driver{}, fmt.Errorf("%w: %s", service.ErrDriverNotFound, id)
	}
	return d, nil
}

func (m *mockDeps) DriverEarnings(id string) ([]model.EarningEvent, error) {
	if _, err := m.Driver(id); err != nil {
		return nil, err
	}
	return m.events, nil
}

func (m *mockDeps) DriverPerformance(id string) ([]model.PerformanceEntry, error) {
	if _, err := m.Driver(id); err != nil {
		return nil, err
	}
	return []model.PerformanceEntry{{Date: "2026-03-14", Score: 33, TripsToday: 1, EarningsToday: 62}}, nil
}

func (m *mockDeps) Summary(string) (ledger.Summary, error) {
	return ledger.Summary{Trip: 62, Total: 62}, nil
}

func (m *mockDeps) EarningsForPeriod(from, to time.Time, _ string) ([]model.EarningEvent, error) {
	m.from, m.to = from, to
	return m.events, nil
}

func (m *mockDeps) Leaderboard(_ context.Context, n int) ([]repository.Entry, error) {
	if n < 1 {
		return nil, repository.ErrInvalidLimit
	}
	return []repository.Entry{{Rank: 1, DriverID: "d-1", Earnings: 62}}, nil
}

func (m *mockDeps) DriverRank(_ context.Context, id string) (repository.Entry, error) {
	if _, err := m.Driver(id); err != nil {
		return repository.Entry{}, err
	}
	return repository.Entry{Rank: 1, DriverID: id, Earnings: 62}, nil
}

func (m *mockDeps) record(id string, amount float64, typ model.EventType) (*model.EarningEvent, error) {
	if _, err := m.Driver(id); err != nil {
		return nil, err
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: %q", ledger.ErrInvalidType, typ)
	}
	if !m.tracking {
		return nil, nil
	}
	ev := model.EarningEvent{ID: fmt.Sprintf("earn-%d", len(m.events)+1), DriverID: id, Amount: amount, Type: typ}
	m.events = append(m.events, ev)
	return &ev, nil
}

func (m *mockDeps) RecordEarning(_ context.Context, id string, amount float64, typ model.EventType, _ model.Details) (*model.EarningEvent, error) {
	return m.record(id, amount, typ)
}

func (m *mockDeps) RecordTrip(_ context.Context, id string, km, minutes float64, _, _ string) (*model.EarningEvent, error) {
	if m.mode != model.FleetTrip {
		return nil, ledger.ErrModeMismatch
	}
	return m.record(id, ledger.Fare(km, minutes), model.EventTrip)
}

func (m *mockDeps) RecordRental(_ context.Context, id, _ string, days int) (*model.EarningEvent, error) {
	if m.mode != model.FleetRental {
		return nil, ledger.ErrModeMismatch
	}
	return m.record(id, ledger.Rent(days), model.EventRental)
}

func (m *mockDeps) SetTracking(on bool) error {
	m.tracking = on
	return nil
}

func (m *mockDeps) Reconcile(context.Context) ([]ledger.Drift, error) {
	if m.drifts == nil {
		return []ledger.Drift{}, nil
	}
	return m.drifts, nil
}

func (m *mockDeps) ArchiveDay(context.Context, string) (string, error) {
	return "", ledger.ErrArchiveDisabled
}

func (m *mockDeps) Simulate(context.Context) (int, error) {
	return 0, ledger.ErrSimulationDisabled
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Reads(t *testing.T) {
	Convey("Given the API router over a mock service", t, func() {
		deps := newMockDeps()
		h := api.NewServer(deps, nil).Router()

		Convey("When GET /healthz", func() {
			rec := do(h, http.MethodGet, "/healthz", "")

			Convey("Then it reports ok", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, `"status":"ok"`)
			})
		})

		Convey("When GET /metrics", func() {
			rec := do(h, http.MethodGet, "/metrics", "")

			Convey("Then the registry is served", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When GET /openapi.yaml", func() {
			rec := do(h, http.MethodGet, "/openapi.yaml", "")

			Convey("Then the API document is served", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "/drivers/{id}/performance")
			})
		})

		Convey("When GET /stats", func() {
			rec := do(h, http.MethodGet, "/stats", "")

			Convey("Then the provider's stats are encoded", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var stats map[string]any
				So(json.Unmarshal(rec.Body.Bytes(), &stats), ShouldBeNil)
				So(stats["started"], ShouldEqual, true)
			})
		})

		Convey("When GET /drivers/{id}/performance for a known driver", func() {
			rec := do(h, http.MethodGet, "/drivers/d-1/performance", "")

			Convey("Then the history is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var history []model.PerformanceEntry
				So(json.Unmarshal(rec.Body.Bytes(), &history), ShouldBeNil)
				So(len(history), ShouldEqual, 1)
				So(history[0].Score, ShouldEqual, 33)
			})
		})

		Convey("When GET /drivers/{id}/earnings for an unknown driver", func() {
			rec := do(h, http.MethodGet, "/drivers/ghost/earnings", "")

			Convey("Then it is 404", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
				So(rec.Body.String(), ShouldContainSubstring, `"code":"not_found"`)
			})
		})

		Convey("When GET /leaderboard", func() {
			rec := do(h, http.MethodGet, "/leaderboard?n=5", "")

			Convey("Then ranked entries are returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var top []repository.Entry
				So(json.Unmarshal(rec.Body.Bytes(), &top), ShouldBeNil)
				So(top[0].DriverID, ShouldEqual, "d-1")
				So(top[0].Rank, ShouldEqual, 1)
			})

			Convey("And bad limits are 400", func() {
				So(do(h, http.MethodGet, "/leaderboard?n=ten", "").Code, ShouldEqual, http.StatusBadRequest)
				So(do(h, http.MethodGet, "/leaderboard?n=0", "").Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When GET /drivers/{id}/rank", func() {
			So(do(h, http.MethodGet, "/drivers/d-1/rank", "").Code, ShouldEqual, http.StatusOK)
			So(do(h, http.MethodGet, "/drivers/ghost/rank", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When GET /earnings/summary", func() {
			rec := do(h, http.MethodGet, "/earnings/summary?driver_id=d-1", "")

			Convey("Then totals by type are returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var sum ledger.Summary
				So(json.Unmarshal(rec.Body.Bytes(), &sum), ShouldBeNil)
				So(sum.Total, ShouldEqual, 62)
			})
		})

		Convey("When GET /earnings with a valid period", func() {
			rec := do(h, http.MethodGet, "/earnings?from=2026-03-14T00:00:00Z&to=2026-03-14T23:59:59Z", "")

			Convey("Then the bounds are passed through", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(deps.from.Equal(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)), ShouldBeTrue)
				So(deps.to.Equal(time.Date(2026, 3, 14, 23, 59, 59, 0, time.UTC)), ShouldBeTrue)
			})
		})

		Convey("When GET /earnings with bad bounds", func() {
			Convey("Then missing, malformed and reversed bounds are 400", func() {
				So(do(h, http.MethodGet, "/earnings?to=2026-03-14T00:00:00Z", "").Code, ShouldEqual, http.StatusBadRequest)
				So(do(h, http.MethodGet, "/earnings?from=yesterday&to=2026-03-14T00:00:00Z", "").Code, ShouldEqual, http.StatusBadRequest)
				So(do(h, http.MethodGet, "/earnings?from=2026-03-15T00:00:00Z&to=2026-03-14T00:00:00Z", "").Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestRouter_Writes(t *testing.T) {
	Convey("Given the API router over a mock trip-mode service", t, func() {
		deps := newMockDeps()
		h := api.NewServer(deps, []string{"https://ops.example.com"}).Router()

		Convey("When POST /trips", func() {
			rec := do(h, http.MethodPost, "/trips", `{"driver_id":"d-1","distance_km":15,"duration_min":25}`)

			Convey("Then the event is created with the priced fare", func() {
				So(rec.Code, ShouldEqual, http.StatusCreated)
				So(len(deps.events), ShouldEqual, 1)
				So(deps.events[0].Amount, ShouldEqual, 62)
			})
		})

		Convey("When POST /rentals in trip mode", func() {
			rec := do(h, http.MethodPost, "/rentals", `{"driver_id":"d-1","days":7}`)

			Convey("Then it is a conflict", func() {
				So(rec.Code, ShouldEqual, http.StatusConflict)
				So(rec.Body.String(), ShouldContainSubstring, "mode_mismatch")
			})
		})

		Convey("When POST /earnings with an unknown type", func() {
			rec := do(h, http.MethodPost, "/earnings", `{"driver_id":"d-1","amount":5,"type":"refund"}`)

			Convey("Then it is 400", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When POST /earnings without a driver or with unknown fields", func() {
			Convey("Then both are 400", func() {
				So(do(h, http.MethodPost, "/earnings", `{"amount":5,"type":"bonus"}`).Code, ShouldEqual, http.StatusBadRequest)
				So(do(h, http.MethodPost, "/earnings", `{"driver_id":"d-1","tip":5}`).Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When tracking is paused and a bonus is posted", func() {
			So(do(h, http.MethodPost, "/tracking", `{"enabled":false}`).Code, ShouldEqual, http.StatusOK)
			rec := do(h, http.MethodPost, "/earnings", `{"driver_id":"d-1","amount":20,"type":"bonus"}`)

			Convey("Then it is accepted but not recorded", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)
				So(rec.Body.String(), ShouldContainSubstring, `"recorded":false`)
				So(deps.events, ShouldBeEmpty)
			})
		})

		Convey("When POST /reconcile finds drift", func() {
			deps.drifts = []ledger.Drift{{DriverID: "d-1", Field: ledger.FieldEarnings, Snapshot: 70, Ledger: 62}}
			rec := do(h, http.MethodPost, "/reconcile", "")

			Convey("Then the drift is reported", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, `"consistent":false`)
				So(rec.Body.String(), ShouldContainSubstring, `"field":"earnings"`)
			})
		})

		Convey("When disabled features are invoked", func() {
			Convey("Then simulate and archive are conflicts", func() {
				So(do(h, http.MethodPost, "/simulate", "").Code, ShouldEqual, http.StatusConflict)
				So(do(h, http.MethodPost, "/archive/2026-03-14", "").Code, ShouldEqual, http.StatusConflict)
			})
		})

		Convey("When a preflight request comes from an allowed origin", func() {
			req := httptest.NewRequest(http.MethodOptions, "/trips", nil)
			req.Header.Set("Origin", "https://ops.example.com")
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			Convey("Then the origin is echoed", func() {
				So(rec.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "https://ops.example.com")
			})
		})
	})
}

func TestRouter_Service(t *testing.T) {
	ctx := context.Background()

	Convey("Given the API router over a real service", t, func() {
		svc := service.New(service.WithSyncNotifications())
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		So(svc.SeedDrivers(ctx, []model.Driver{{ID: "d-1", Name: "Ana", Status: model.DriverActive}}), ShouldBeNil)
		h := api.NewServer(svc, nil).Router()

		Convey("When a trip is posted and the driver read back", func() {
			So(do(h, http.MethodPost, "/trips", `{"driver_id":"d-1","distance_km":15,"duration_min":25}`).Code, ShouldEqual, http.StatusCreated)
			rec := do(h, http.MethodGet, "/drivers/d-1", "")

			Convey("Then the aggregates reflect the trip", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var d model.Driver
				So(json.Unmarshal(rec.Body.Bytes(), &d), ShouldBeNil)
				So(d.Earnings, ShouldEqual, 62)
				So(d.TripsToday, ShouldEqual, 1)
				So(d.PerformanceScore, ShouldEqual, 33)
			})

			Convey("And reconciliation finds no drift", func() {
				rec := do(h, http.MethodPost, "/reconcile", "")
				So(rec.Body.String(), ShouldContainSubstring, `"consistent":true`)
			})
		})
	})
}
