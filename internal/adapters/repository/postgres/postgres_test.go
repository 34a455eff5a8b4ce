package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/playstats/internal/adapters/repository"
	"github.com/okian/playstats/internal/domain/model"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	db := sqlx.NewDb(raw, "postgres")
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func expectSetup(mock sqlmock.Sqlmock) {
	for _, q := range []string{
		"CREATE SCHEMA IF NOT EXISTS playstats",
		"CREATE TABLE IF NOT EXISTS playstats.group_counters",
		"CREATE INDEX IF NOT EXISTS group_counters_rank",
		"CREATE TABLE IF NOT EXISTS playstats.plays",
		"CREATE INDEX IF NOT EXISTS plays_group_played",
	} {
		mock.ExpectExec(regexp.QuoteMeta(q)).WillReturnResult(sqlmock.NewResult(0, 0))
	}
}

func TestStore(t *testing.T) {
	Convey("Given a postgres store on a mocked connection", t, func() {
		db, mock := newMock(t)
		store, err := NewStore(db, DefaultNamespace)
		So(err, ShouldBeNil)
		ctx := context.Background()
		incr := regexp.QuoteMeta("INSERT INTO playstats.group_counters AS c")

		Convey("When incrementing an existing group", func() {
			mock.ExpectQuery(incr).
				WithArgs(int64(-100)).
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
			n, err := store.Increment(ctx, -100)

			Convey("Then the upserted count is returned", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 3)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When the counters table does not exist yet", func() {
			mock.ExpectQuery(incr).WillReturnError(&pq.Error{Code: "42P01"})
			expectSetup(mock)
			mock.ExpectQuery(incr).
				WithArgs(int64(7)).
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
			n, err := store.Increment(ctx, 7)

			Convey("Then the schema is created and the upsert retried", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When the connection is gone", func() {
			mock.ExpectQuery(incr).WillReturnError(sql.ErrConnDone)
			_, err := store.Increment(ctx, 7)

			Convey("Then the failure is storage unavailable", func() {
				So(errors.Is(err, repository.ErrStorageUnavailable), ShouldBeTrue)
				So(errors.Is(err, sql.ErrConnDone), ShouldBeTrue)
			})
		})

		Convey("When the group id is zero", func() {
			_, err := store.Increment(ctx, 0)

			Convey("Then no statement is sent", func() {
				So(errors.Is(err, repository.ErrInvalidArgument), ShouldBeTrue)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When reading a group that never played", func() {
			mock.ExpectQuery(`FROM\s+playstats\.group_counters\s+WHERE\s+group_id`).
				WithArgs(int64(55)).
				WillReturnError(sql.ErrNoRows)
			n, err := store.Get(ctx, 55)

			Convey("Then the count is zero", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
			})
		})

		Convey("When listing the top two groups", func() {
			mock.ExpectQuery(`ORDER BY\s+count DESC, group_id ASC\s+LIMIT`).
				WithArgs(2).
				WillReturnRows(sqlmock.NewRows([]string{"group_id", "count"}).
					AddRow(int64(-2), int64(9)).
					AddRow(int64(-1), int64(5)))
			list, err := store.Ordered(ctx, 2)

			Convey("Then rows come back in database order", func() {
				So(err, ShouldBeNil)
				So(list, ShouldResemble, []model.GroupCounter{
					{GroupID: -2, Count: 9},
					{GroupID: -1, Count: 5},
				})
			})
		})

		Convey("When taking a snapshot", func() {
			mock.ExpectQuery(`ORDER BY\s+count DESC, group_id ASC`).
				WithoutArgs().
				WillReturnRows(sqlmock.NewRows([]string{"group_id", "count"}).AddRow(int64(4), int64(1)))
			list, err := store.Snapshot(ctx)
			So(err, ShouldBeNil)
			So(list, ShouldResemble, []model.GroupCounter{{GroupID: 4, Count: 1}})
		})
	})

	Convey("Given a namespace that is not an identifier", t, func() {
		db, _ := newMock(t)
		_, err := NewStore(db, "x; DROP TABLE y")
		So(errors.Is(err, repository.ErrInvalidArgument), ShouldBeTrue)
	})
}

func TestHistory(t *testing.T) {
	Convey("Given a postgres history on a mocked connection", t, func() {
		db, mock := newMock(t)
		h, err := NewHistory(db, DefaultNamespace)
		So(err, ShouldBeNil)
		ctx := context.Background()
		at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		rec := model.PlayRecord{ID: "r1", GroupID: -9, UserID: 42, SongTitle: "Intro", PlayedAt: at}

		Convey("When appending a record", func() {
			mock.ExpectExec(regexp.QuoteMeta("INSERT INTO playstats.plays")).
				WithArgs("r1", int64(-9), int64(42), "Intro", at).
				WillReturnResult(sqlmock.NewResult(0, 1))

			So(h.Append(ctx, rec), ShouldBeNil)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("When the insert fails", func() {
			mock.ExpectExec(regexp.QuoteMeta("INSERT INTO playstats.plays")).
				WillReturnError(errors.New("connection reset"))

			err := h.Append(ctx, rec)
			So(errors.Is(err, repository.ErrStorageUnavailable), ShouldBeTrue)
		})

		Convey("When listing recent plays without a limit", func() {
			mock.ExpectQuery(`FROM\s+playstats\.plays`).
				WithArgs(int64(-9), defaultRecentLimit).
				WillReturnRows(sqlmock.NewRows([]string{"id", "group_id", "user_id", "song_title", "played_at"}).
					AddRow("r1", int64(-9), int64(42), "Intro", at))

			list, err := h.Recent(ctx, -9, 0)
			So(err, ShouldBeNil)
			So(list, ShouldResemble, []model.PlayRecord{rec})
		})
	})
}
