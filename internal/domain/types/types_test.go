package types_test

import (
	"encoding/json"
	"testing"

	types "github.com/okian/playstats/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEntryJSON(t *testing.T) {
	Convey("Given a leaderboard entry", t, func() {
		entry := types.Entry{Rank: 1, GroupID: -100, Count: 9}

		Convey("When encoding it", func() {
			b, err := json.Marshal(entry)

			Convey("Then it uses the API field names", func() {
				So(err, ShouldBeNil)
				So(string(b), ShouldEqual, `{"rank":1,"group_id":-100,"count":9}`)
			})
		})
	})

	Convey("Given a group count", t, func() {
		b, err := json.Marshal(types.GroupCount{GroupID: 3, Count: 0})
		So(err, ShouldBeNil)
		So(string(b), ShouldEqual, `{"group_id":3,"count":0}`)
	})
}
