package player

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"BeatFlow/core/media"
	"BeatFlow/model"
)

func testTracks(n int) []model.Track {
	tracks := make([]model.Track, 0, n)
	names := []string{"Midnight Drive", "Cold Summer", "Neon Trap", "Low Tide", "Glass City"}
	for i := 0; i < n; i++ {
		tracks = append(tracks, model.Track{
			ID:           names[i%len(names)],
			Title:        names[i%len(names)],
			ProducerName: "prod",
			AudioURL:     "http://cdn.local/audio/" + names[i%len(names)] + ".mp3",
		})
	}
	return tracks
}

func newTestEngine(n int) (*Engine, *media.SimElement) {
	elem := media.NewSimElement()
	eng := NewEngine(Options{
		Element: elem,
		Rand:    rand.New(rand.NewSource(1)),
	})
	eng.SetPlaylist(testTracks(n))
	return eng, elem
}

func TestTransport(t *testing.T) {
	Convey("Given an engine with a three track playlist", t, func() {
		eng, elem := newTestEngine(3)

		Convey("PlayTrack enters Loading and requests element playback", func() {
			err := eng.PlayTrack(1)
			So(err, ShouldBeNil)

			snap := eng.Snapshot()
			So(snap.State, ShouldEqual, StateLoading)
			So(snap.CurrentIndex, ShouldEqual, 1)
			So(snap.Activated, ShouldBeTrue)
			So(elem.PlayCount(), ShouldEqual, 1)
			So(elem.Src(), ShouldEqual, "http://cdn.local/audio/Cold Summer.mp3")

			Convey("and becomes Playing once the element is ready", func() {
				elem.CompleteLoad(180)
				snap := eng.Snapshot()
				So(snap.State, ShouldEqual, StatePlaying)
				So(snap.IsPlaying, ShouldBeTrue)
				So(snap.Duration, ShouldEqual, 180)
			})
		})

		Convey("PlayTrack with an out-of-range index changes nothing", func() {
			before := eng.Snapshot()
			So(eng.PlayTrack(7), ShouldEqual, ErrIndexOutOfRange)
			So(eng.PlayTrack(-1), ShouldEqual, ErrIndexOutOfRange)
			after := eng.Snapshot()
			So(after.State, ShouldEqual, before.State)
			So(after.CurrentIndex, ShouldEqual, before.CurrentIndex)
			So(elem.PlayCount(), ShouldEqual, 0)
		})

		Convey("TogglePlay pauses and resumes without losing the cursor", func() {
			So(eng.PlayTrack(0), ShouldBeNil)
			elem.CompleteLoad(120)
			So(eng.Snapshot().IsPlaying, ShouldBeTrue)

			So(eng.TogglePlay(), ShouldBeNil)
			snap := eng.Snapshot()
			So(snap.State, ShouldEqual, StatePaused)
			So(snap.IsPlaying, ShouldBeFalse)
			So(snap.CurrentIndex, ShouldEqual, 0)
			So(elem.PauseCount(), ShouldEqual, 1)

			So(eng.TogglePlay(), ShouldBeNil)
			So(eng.Snapshot().State, ShouldEqual, StatePlaying)
		})

		Convey("TogglePlay without a current track is rejected", func() {
			So(eng.TogglePlay(), ShouldEqual, ErrNoCurrentTrack)
		})
	})
}

func TestPreviousThreshold(t *testing.T) {
	Convey("Given a playing track", t, func() {
		eng, elem := newTestEngine(3)
		So(eng.PlayTrack(1), ShouldBeNil)
		elem.CompleteLoad(200)

		Convey("PlayPrevious past three seconds restarts the same track", func() {
			elem.AdvanceTo(3.5)
			So(eng.PlayPrevious(), ShouldBeNil)

			snap := eng.Snapshot()
			So(snap.CurrentIndex, ShouldEqual, 1)
			So(snap.Position, ShouldEqual, 0)
			So(snap.IsPlaying, ShouldBeTrue)
			So(elem.LastSeek(), ShouldEqual, 0)
			So(elem.LoadCount(), ShouldEqual, 1)
		})

		Convey("PlayPrevious within three seconds steps back", func() {
			elem.AdvanceTo(2.0)
			So(eng.PlayPrevious(), ShouldBeNil)
			So(eng.Snapshot().CurrentIndex, ShouldEqual, 0)
		})

		Convey("PlayPrevious at the head wraps to the tail", func() {
			So(eng.PlayTrack(0), ShouldBeNil)
			elem.CompleteLoad(200)
			elem.AdvanceTo(1.0)
			So(eng.PlayPrevious(), ShouldBeNil)
			So(eng.Snapshot().CurrentIndex, ShouldEqual, 2)
		})
	})
}

func TestNextAndShuffle(t *testing.T) {
	Convey("Given a five track playlist", t, func() {
		eng, elem := newTestEngine(5)
		So(eng.PlayTrack(2), ShouldBeNil)
		elem.CompleteLoad(100)

		Convey("PlayNext in sequential mode advances and wraps", func() {
			So(eng.PlayNext(), ShouldBeNil)
			So(eng.Snapshot().CurrentIndex, ShouldEqual, 3)
			So(eng.PlayNext(), ShouldBeNil)
			So(eng.Snapshot().CurrentIndex, ShouldEqual, 4)
			So(eng.PlayNext(), ShouldBeNil)
			So(eng.Snapshot().CurrentIndex, ShouldEqual, 0)
		})

		Convey("PlayNext in shuffle mode never lands on the current index", func() {
			eng.ToggleShuffle()
			for i := 0; i < 50; i++ {
				before := eng.Snapshot().CurrentIndex
				So(eng.PlayNext(), ShouldBeNil)
				So(eng.Snapshot().CurrentIndex, ShouldNotEqual, before)
			}
		})

		Convey("PlayNext in shuffle mode on a single track is a no-op", func() {
			single, selem := newTestEngine(1)
			So(single.PlayTrack(0), ShouldBeNil)
			selem.CompleteLoad(60)
			single.ToggleShuffle()
			So(single.PlayNext(), ShouldBeNil)
			So(single.Snapshot().CurrentIndex, ShouldEqual, 0)
			So(selem.LoadCount(), ShouldEqual, 1)
		})

		Convey("PlayNext on an empty playlist is rejected", func() {
			empty := NewEngine(Options{Element: media.NewSimElement()})
			So(empty.PlayNext(), ShouldEqual, ErrEmptyPlaylist)
		})
	})
}

func TestVolumeAndMute(t *testing.T) {
	Convey("Given an engine", t, func() {
		eng, elem := newTestEngine(1)

		Convey("mute does not disturb the stored volume", func() {
			eng.SetVolume(55)
			eng.ToggleMute()

			snap := eng.Snapshot()
			So(snap.Muted, ShouldBeTrue)
			So(snap.Volume, ShouldEqual, 55)
			So(elem.Muted(), ShouldBeTrue)
			So(elem.Volume(), ShouldEqual, 0.55)

			eng.ToggleMute()
			So(eng.Snapshot().Muted, ShouldBeFalse)
			So(eng.Snapshot().Volume, ShouldEqual, 55)
		})

		Convey("setting an audible volume clears mute", func() {
			eng.ToggleMute()
			So(eng.Snapshot().Muted, ShouldBeTrue)

			eng.SetVolume(30)
			snap := eng.Snapshot()
			So(snap.Muted, ShouldBeFalse)
			So(snap.Volume, ShouldEqual, 30)
			So(elem.Muted(), ShouldBeFalse)
		})

		Convey("setting volume to zero keeps mute as it was", func() {
			eng.ToggleMute()
			eng.SetVolume(0)
			So(eng.Snapshot().Muted, ShouldBeTrue)
			So(eng.Snapshot().Volume, ShouldEqual, 0)
		})

		Convey("volume is clamped to 0-100", func() {
			eng.SetVolume(250)
			So(eng.Snapshot().Volume, ShouldEqual, 100)
			eng.SetVolume(-5)
			So(eng.Snapshot().Volume, ShouldEqual, 0)
		})
	})
}

func TestSeek(t *testing.T) {
	Convey("Given a playing track", t, func() {
		eng, elem := newTestEngine(1)
		So(eng.PlayTrack(0), ShouldBeNil)
		elem.CompleteLoad(240)

		Convey("SeekTo updates the reported position optimistically", func() {
			So(eng.SeekTo(90.5), ShouldBeNil)
			So(eng.Snapshot().Position, ShouldEqual, 90.5)
			So(elem.LastSeek(), ShouldEqual, 90.5)
		})

		Convey("non-finite positions are rejected", func() {
			So(eng.SeekTo(math.NaN()), ShouldEqual, ErrSeekNotFinite)
			So(eng.SeekTo(math.Inf(1)), ShouldEqual, ErrSeekNotFinite)
			So(eng.Snapshot().Position, ShouldEqual, 0)
		})

		Convey("negative positions clamp to zero", func() {
			So(eng.SeekTo(-10), ShouldBeNil)
			So(eng.Snapshot().Position, ShouldEqual, 0)
		})
	})
}

func TestEndOfTrackPolicy(t *testing.T) {
	Convey("Given a three track playlist", t, func() {
		eng, elem := newTestEngine(3)

		Convey("with repeat off, ended advances then goes idle at the tail", func() {
			So(eng.PlayTrack(0), ShouldBeNil)
			elem.CompleteLoad(10)
			elem.End()
			snap := eng.Snapshot()
			So(snap.CurrentIndex, ShouldEqual, 1)
			So(snap.State, ShouldEqual, StateLoading)

			So(eng.PlayTrack(2), ShouldBeNil)
			elem.CompleteLoad(10)
			elem.End()
			snap = eng.Snapshot()
			So(snap.CurrentIndex, ShouldEqual, 2)
			So(snap.State, ShouldEqual, StateIdle)
			So(snap.IsPlaying, ShouldBeFalse)
		})

		Convey("with repeat all, ended wraps from the tail to the head", func() {
			eng.CycleRepeat() // all
			So(eng.PlayTrack(2), ShouldBeNil)
			elem.CompleteLoad(10)
			elem.End()
			So(eng.Snapshot().CurrentIndex, ShouldEqual, 0)
		})

		Convey("with repeat one, ended restarts the same track", func() {
			eng.CycleRepeat() // all
			eng.CycleRepeat() // one
			So(eng.PlayTrack(1), ShouldBeNil)
			elem.CompleteLoad(10)
			elem.End()

			snap := eng.Snapshot()
			So(snap.CurrentIndex, ShouldEqual, 1)
			So(snap.IsPlaying, ShouldBeTrue)
			So(snap.Position, ShouldEqual, 0)
			So(elem.LoadCount(), ShouldEqual, 1)
		})

		Convey("CycleRepeat steps none, all, one, none", func() {
			So(eng.CycleRepeat(), ShouldEqual, RepeatAll)
			So(eng.CycleRepeat(), ShouldEqual, RepeatOne)
			So(eng.CycleRepeat(), ShouldEqual, RepeatNone)
		})
	})
}

func TestStaleEventsIgnored(t *testing.T) {
	Convey("Given a track switch with a play request still in flight", t, func() {
		eng, elem := newTestEngine(2)
		So(eng.PlayTrack(0), ShouldBeNil)
		oldGen := elem.Gen()

		So(eng.PlayTrack(1), ShouldBeNil)
		elem.CompleteLoad(90)
		So(eng.Snapshot().State, ShouldEqual, StatePlaying)

		Convey("a failed result for the old source does not flip state", func() {
			elem.PlayResultAs(oldGen, errors.New("NotAllowedError"))
			snap := eng.Snapshot()
			So(snap.State, ShouldEqual, StatePlaying)
			So(snap.Error, ShouldBeEmpty)
		})

		Convey("a failed result for the current source pauses with the error", func() {
			elem.PlayResult(errors.New("decode failed"))
			snap := eng.Snapshot()
			So(snap.State, ShouldEqual, StatePaused)
			So(snap.IsPlaying, ShouldBeFalse)
			So(snap.Error, ShouldContainSubstring, "decode failed")
		})
	})
}

func TestPipelineFailures(t *testing.T) {
	Convey("Given a loading track", t, func() {
		var reported error
		elem := media.NewSimElement()
		eng := NewEngine(Options{
			Element:     elem,
			LoadTimeout: 20 * time.Millisecond,
			OnError:     func(err error) { reported = err },
		})
		eng.SetPlaylist(testTracks(1))
		So(eng.PlayTrack(0), ShouldBeNil)

		Convey("a pipeline error pauses and surfaces the error", func() {
			elem.Fail(errors.New("network down"))
			snap := eng.Snapshot()
			So(snap.State, ShouldEqual, StatePaused)
			So(snap.Error, ShouldContainSubstring, "network down")
			So(reported, ShouldNotBeNil)
		})

		Convey("the load watchdog fires when the source never becomes ready", func() {
			time.Sleep(60 * time.Millisecond)
			snap := eng.Snapshot()
			So(snap.State, ShouldEqual, StatePaused)
			So(snap.Error, ShouldContainSubstring, "timed out")
		})

		Convey("the watchdog is disarmed once the source is ready", func() {
			elem.CompleteLoad(100)
			time.Sleep(60 * time.Millisecond)
			So(eng.Snapshot().State, ShouldEqual, StatePlaying)
			So(reported, ShouldBeNil)
		})
	})
}

func TestActivationAndHide(t *testing.T) {
	Convey("Given an engine", t, func() {
		eng, elem := newTestEngine(2)

		Convey("activation is sticky across pause and stop", func() {
			So(eng.Snapshot().Activated, ShouldBeFalse)
			So(eng.PlayTrack(0), ShouldBeNil)
			elem.CompleteLoad(50)
			So(eng.Snapshot().Activated, ShouldBeTrue)

			So(eng.TogglePlay(), ShouldBeNil)
			So(eng.Snapshot().Activated, ShouldBeTrue)

			eng.Stop()
			So(eng.Snapshot().Activated, ShouldBeTrue)
		})

		Convey("Hide clears activation and rewinds", func() {
			So(eng.PlayTrack(0), ShouldBeNil)
			elem.CompleteLoad(50)
			elem.AdvanceTo(12)

			eng.Hide()
			snap := eng.Snapshot()
			So(snap.Activated, ShouldBeFalse)
			So(snap.IsPlaying, ShouldBeFalse)
			So(snap.Position, ShouldEqual, 0)
		})

		Convey("SetMinimized only touches the surface flag", func() {
			So(eng.PlayTrack(0), ShouldBeNil)
			elem.CompleteLoad(50)
			eng.SetMinimized(true)
			snap := eng.Snapshot()
			So(snap.Minimized, ShouldBeTrue)
			So(snap.IsPlaying, ShouldBeTrue)
		})
	})
}
