package logger_test

import (
	"context"
	"testing"

	"github.com/avian-io/roost/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLogger(t *testing.T) {
	Convey("Given an initialized global logger", t, func() {
		So(logger.Init(), ShouldBeNil)

		Convey("When fetching the global logger", func() {
			l := logger.Get()

			Convey("Then it should not be nil", func() {
				So(l, ShouldNotBeNil)
			})

			Convey("And logging should not panic", func() {
				So(func() {
					l.Info(context.Background(), "hello",
						logger.String("k", "v"),
						logger.Int("n", 1),
						logger.Float64("f", 1.5),
						logger.Bool("b", true),
					)
				}, ShouldNotPanic)
			})
		})

		Convey("When creating a named logger", func() {
			l := logger.Named("ingest")

			Convey("Then it should log without panicking", func() {
				So(func() { l.Debug(context.Background(), "scoped") }, ShouldNotPanic)
			})
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given the global level setter", t, func() {
		So(logger.Init(), ShouldBeNil)

		Convey("When setting known levels", func() {
			for _, lvl := range []string{"debug", "info", "WARN", "warning", "error", ""} {
				So(logger.SetLevelString(lvl), ShouldBeNil)
			}
		})

		Convey("When setting an unknown level", func() {
			So(logger.SetLevelString("loud"), ShouldNotBeNil)
		})
	})
}
