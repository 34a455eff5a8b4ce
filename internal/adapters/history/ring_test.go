package history_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/playstats/internal/adapters/history"
	"github.com/okian/playstats/internal/adapters/repository"
	"github.com/okian/playstats/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func record(group model.GroupID, title string, at time.Time) model.PlayRecord {
	return model.PlayRecord{ID: title, GroupID: group, UserID: 1, SongTitle: title, PlayedAt: at}
}

func recent(h *history.Ring, group model.GroupID, limit int) []model.PlayRecord {
	list, err := h.Recent(context.Background(), group, limit)
	if err != nil {
		panic(err)
	}
	return list
}

func TestRing(t *testing.T) {
	Convey("Given a ring recorder capped at 3 records per group", t, func() {
		ctx := context.Background()
		h := history.NewRing(3)
		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

		Convey("When appending fewer records than the cap", func() {
			So(h.Append(ctx, record(-1, "a", base)), ShouldBeNil)
			So(h.Append(ctx, record(-1, "b", base.Add(time.Second))), ShouldBeNil)

			Convey("Then all are returned newest first", func() {
				got := recent(h, -1, 0)
				So(len(got), ShouldEqual, 2)
				So(got[0].SongTitle, ShouldEqual, "b")
				So(got[1].SongTitle, ShouldEqual, "a")
			})
		})

		Convey("When appending past the cap", func() {
			for i, title := range []string{"a", "b", "c", "d", "e"} {
				So(h.Append(ctx, record(-1, title, base.Add(time.Duration(i)*time.Second))), ShouldBeNil)
			}
			So(h.Append(ctx, record(-2, "other", base)), ShouldBeNil)

			Convey("Then only the newest records of that group remain", func() {
				got := recent(h, -1, 10)
				titles := []string{got[0].SongTitle, got[1].SongTitle, got[2].SongTitle}
				So(titles, ShouldResemble, []string{"e", "d", "c"})
				So(recent(h, -1, 1)[0].SongTitle, ShouldEqual, "e")
				So(len(recent(h, -2, 0)), ShouldEqual, 1)
				So(recent(h, -3, 0), ShouldBeNil)
				So(h.Total(), ShouldEqual, 6)
			})
		})

		Convey("When the recorder is offline", func() {
			h.SetAvailable(false)
			err := h.Append(ctx, record(-1, "a", base))

			Convey("Then append fails as storage unavailable and stores nothing", func() {
				So(errors.Is(err, repository.ErrStorageUnavailable), ShouldBeTrue)
				_, err := h.Recent(ctx, -1, 0)
				So(errors.Is(err, repository.ErrStorageUnavailable), ShouldBeTrue)
				h.SetAvailable(true)
				So(recent(h, -1, 0), ShouldBeNil)
			})
		})

		Convey("When the group is invalid", func() {
			err := h.Append(ctx, record(0, "a", base))
			So(errors.Is(err, repository.ErrInvalidArgument), ShouldBeTrue)
		})

		Convey("When appending concurrently", func() {
			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_ = h.Append(ctx, record(-9, "x", base))
				}()
			}
			wg.Wait()

			Convey("Then the cap still holds", func() {
				So(len(recent(h, -9, 0)), ShouldEqual, 3)
				So(h.Total(), ShouldEqual, 50)
			})
		})
	})

	Convey("Given a non-positive cap", t, func() {
		h := history.NewRing(0)
		for i := 0; i < 150; i++ {
			_ = h.Append(context.Background(), record(1, "x", time.Now()))
		}
		So(len(recent(h, 1, 0)), ShouldEqual, 100)
	})

	Convey("Given the nop recorder", t, func() {
		var r history.Recorder = history.Nop{}
		So(r.Append(context.Background(), model.PlayRecord{}), ShouldBeNil)
	})
}
