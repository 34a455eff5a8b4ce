package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then collectors are registered under the default namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.playsAccrued.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "playstats_groups_plays_accrued_total")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("bot"),
				WithSubsystem("stats"),
				WithHistogramBuckets([]float64{1, 5, 10}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then names and labels follow the options", func() {
				manager.trackedGroups.Set(3)
				So(testutil.ToFloat64(manager.trackedGroups), ShouldEqual, 3)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(families, ShouldNotBeEmpty)
				So(families[0].GetName(), ShouldStartWith, "bot_stats_")
				So(families[0].GetMetric()[0].GetLabel()[0].GetName(), ShouldEqual, "env")
			})
		})
	})
}

func TestRecordingFunctions(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording accrual metrics", func() {
			before := testutil.ToFloat64(globalManager.playsAccrued)
			RecordPlayAccrued()
			RecordAccrualFailure("history")
			RecordHistoryAppend()
			RecordEventDuplicate()
			RecordAdminIncrement()
			RecordLeaderboardQuery("top")
			UpdateTrackedGroups(7)

			Convey("Then the counters move", func() {
				So(testutil.ToFloat64(globalManager.playsAccrued), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.trackedGroups), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.accrualFailures.WithLabelValues("history")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When recording infrastructure metrics", func() {
			So(func() {
				RecordStorageLatency("memory", "increment", 0.5)
				RecordStorageError("postgres", "get")
				UpdateQueueCapacity(10)
				UpdateQueueSize(2)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError("queue_full")
				UpdateWorkerCount(4)
				RecordWorkerProcessingLatency(1)
				RecordKafkaMessage("accepted")
				RecordHTTPRequest("leaderboard", "GET", "200")
				RecordHTTPRequestDuration("leaderboard", "GET", "200", 3)
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(12)
			}, ShouldNotPanic)

			Convey("Then Gather reports them", func() {
				values, err := Gather()
				So(err, ShouldBeNil)
				So(values["playstats_groups_queue_capacity"], ShouldEqual, 10)
				So(values["playstats_groups_worker_count"], ShouldEqual, 4)
			})
		})
	})
}
