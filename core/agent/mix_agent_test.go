package agent

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"BeatFlow/core/workspace"
)

func TestMixAgent(t *testing.T) {
	Convey("Given the built-in mix agent", t, func() {
		a := NewMixAgent(0)

		Convey("a session with no overlay lanes suggests recording one", func() {
			notes, err := a.Suggest(context.Background(), MixRequest{
				ProjectTitle: "Demo",
				Tracks:       []workspace.Track{{Kind: workspace.KindBeat, Source: "beat.mp3"}},
			})
			So(err, ShouldBeNil)
			So(notes, ShouldContainSubstring, "Demo")
			So(notes, ShouldContainSubstring, "Record or import")
		})

		Convey("a hot lane gets a headroom warning", func() {
			notes, err := a.Suggest(context.Background(), MixRequest{
				BPM: 140,
				Tracks: []workspace.Track{
					{Kind: workspace.KindBeat, Source: "beat.mp3", Volume: 70},
					{Kind: workspace.KindVocal, Name: "Lead", Source: "v.mp3", Volume: 95},
				},
			})
			So(err, ShouldBeNil)
			So(notes, ShouldContainSubstring, "Lead")
			So(notes, ShouldContainSubstring, "140 BPM")
		})

		Convey("cancellation during the analysis window is honored", func() {
			slow := NewMixAgent(time.Second)
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := slow.Suggest(ctx, MixRequest{})
			So(err, ShouldEqual, context.Canceled)
		})
	})
}
