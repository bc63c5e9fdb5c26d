package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/fleetledger/internal/adapters/kvstore"
	"github.com/okian/fleetledger/internal/adapters/notifier"
	app "github.com/okian/fleetledger/internal/app"
	"github.com/okian/fleetledger/internal/config"
	"github.com/okian/fleetledger/internal/domain/model"
	"github.com/okian/fleetledger/pkg/logger"
)

func TestMain(m *testing.M) {
	_ = logger.InitWithFormat(logger.FormatText, io.Discard)
	os.Exit(m.Run())
}

func TestWiring(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given the default configuration", t, func() {
		cfg := config.New()

		convey.Convey("When the file backend is opened", func() {
			cfg.StoreDir = t.TempDir()
			store, err := openStore(ctx, cfg)

			convey.Convey("Then a file store is returned", func() {
				convey.So(err, convey.ShouldBeNil)
				_, ok := store.(*kvstore.FileStore)
				convey.So(ok, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When an unknown backend is configured", func() {
			cfg.StoreBackend = "etcd"
			_, err := openStore(ctx, cfg)

			convey.Convey("Then it is rejected", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When no brokers are configured", func() {
			center, closeFn, err := buildCenter(cfg, logger.Get())

			convey.Convey("Then notifications are only logged", func() {
				convey.So(err, convey.ShouldBeNil)
				_, ok := center.(*notifier.Log)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(closeFn(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When brokers are configured", func() {
			cfg.KafkaBrokers = "localhost:9092"
			center, closeFn, err := buildCenter(cfg, logger.Get())

			convey.Convey("Then the log and Kafka centers fan out", func() {
				convey.So(err, convey.ShouldBeNil)
				fan, ok := center.(notifier.Fanout)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(len(fan), convey.ShouldEqual, 2)
				convey.So(closeFn(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the service is built from it", func() {
			cfg.StoreBackend = config.StoreMemory
			cfg.FleetMode = config.FleetModeRental
			store, err := openStore(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			opts, err := serviceOptions(cfg, store, notifier.NewMemory(), logger.Get())
			convey.So(err, convey.ShouldBeNil)

			svc := app.New(append(opts, app.WithSyncNotifications())...)
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer svc.Stop()

			convey.Convey("Then it runs in the configured mode", func() {
				convey.So(svc.GetStats()["mode"], convey.ShouldEqual, "rental")
			})
		})
	})
}

func TestSeed(t *testing.T) {
	convey.Convey("Given a seed document", t, func() {
		convey.Convey("When it lists drivers without a status", func() {
			drivers, err := decodeSeed(strings.NewReader(`[{"id":"d-1","name":"Ana","contractId":"C-1"},{"id":"d-2","name":"Ben","status":"offline"}]`))

			convey.Convey("Then they default to active", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(drivers), convey.ShouldEqual, 2)
				convey.So(drivers[0].Status, convey.ShouldEqual, model.DriverActive)
				convey.So(drivers[0].ContractID, convey.ShouldEqual, "C-1")
				convey.So(drivers[1].Status, convey.ShouldEqual, model.DriverOffline)
			})
		})

		convey.Convey("When the file is read from disk", func() {
			path := filepath.Join(t.TempDir(), "drivers.json")
			convey.So(os.WriteFile(path, []byte(`[{"id":"d-9","name":"Zed"}]`), 0o600), convey.ShouldBeNil)
			drivers, err := loadSeed(path)

			convey.Convey("Then it decodes", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(drivers[0].ID, convey.ShouldEqual, "d-9")
			})
		})

		convey.Convey("When the document is malformed", func() {
			_, err := decodeSeed(strings.NewReader(`{"id":"d-1"}`))

			convey.Convey("Then it fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}
