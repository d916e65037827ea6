package main

import (
	"context"
	"net/http"
	"testing"

	"github.com/avian-io/roost/internal/adapters/http/api"
	app "github.com/avian-io/roost/internal/app"
	"github.com/avian-io/roost/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestMainWiring(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When loading configuration from the environment", func() {
			t.Setenv("ROOST_DATABASE_URL", "postgres://localhost/roost")
			t.Setenv("ROOST_ADDR", ":8080")
			t.Setenv("ROOST_QUEUE_SIZE", "1000")
			t.Setenv("ROOST_WORKER_COUNT", "4")

			convey.Convey("Then configuration should be loadable", func() {
				ctx := context.Background()
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When creating the service", func() {
			convey.Convey("Then default options should apply", func() {
				svc := app.New()
				convey.So(svc, convey.ShouldNotBeNil)
			})

			convey.Convey("And custom options should apply", func() {
				svc := app.New(
					app.WithWorkerCount(8),
					app.WithQueueSize(2000),
					app.WithDedupeSize(1000),
				)
				convey.So(svc, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When registering the HTTP routes", func() {
			svc := app.New()
			mux := http.NewServeMux()
			srv := api.NewServer(svc, nil, svc, 100)

			convey.Convey("Then registration should not panic", func() {
				convey.So(func() { srv.Register(mux) }, convey.ShouldNotPanic)
			})
		})
	})
}
