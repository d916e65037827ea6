package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.registry, ShouldEqual, registry)
			})
		})

		Convey("When overriding the namespace", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithNamespace("aviary"), WithRegistry(registry))

			Convey("Then the namespace should be applied", func() {
				So(manager.namespace, ShouldEqual, "aviary")
			})
		})

		Convey("When applying empty option values", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace(""),
				WithRegistry(nil),
				WithRegistry(registry),
			)

			Convey("Then defaults should survive", func() {
				So(manager.namespace, ShouldEqual, "roost")
				So(manager.registry, ShouldEqual, registry)
			})
		})
	})
}

func TestGlobalHelpers(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording through package helpers", func() {
			Convey("Then none of them should panic", func() {
				So(func() {
					RecordHTTPRequest("leaderboard", "GET", "200")
					RecordHTTPRequestDuration("leaderboard", "GET", 12.5)
					RecordTelemetryIngested()
					RecordTelemetryRejected()
					RecordIngestDuplicate()
					RecordInferenceAttempt("gemini-2.5-pro", "success")
					RecordInferenceLatency(420)
					RecordFallbackDepth(2)
					RecordInferenceError("upstream")
					RecordEmptyResponse()
					RecordModelNotFoundSkip()
					RecordImageFetch("url")
					RecordImagesPruned(3)
					RecordImageFetchError()
					RecordLeaderboardBuild(8, 20)
					UpdateQueueSize(10)
					UpdateQueueCapacity(1000)
					RecordQueueEnqueueError()
					RecordWorkerError()
					RecordWorkerLatency(3)
				}, ShouldNotPanic)
			})
		})

		Convey("When fetching the registry", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
