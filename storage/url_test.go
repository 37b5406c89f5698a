package storage

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestPublicURL(t *testing.T) {
	Convey("Given a public base URL", t, func() {
		base := "http://cdn.local:9000/beatflow"

		Convey("relative object paths join onto the base", func() {
			So(PublicURL(base, "audio/abc.mp3"), ShouldEqual, "http://cdn.local:9000/beatflow/audio/abc.mp3")
		})

		Convey("absolute URLs pass through untouched", func() {
			So(PublicURL(base, "https://elsewhere.example/x.mp3"), ShouldEqual, "https://elsewhere.example/x.mp3")
		})

		Convey("typed helpers prefix their directories", func() {
			So(AudioURL(base, "abc.mp3"), ShouldEqual, "http://cdn.local:9000/beatflow/audio/abc.mp3")
			So(CoverURL(base, "abc.jpg"), ShouldEqual, "http://cdn.local:9000/beatflow/covers/abc.jpg")
			So(AvatarURL(base, "u.png"), ShouldEqual, "http://cdn.local:9000/beatflow/avatars/u.png")
		})
	})
}
