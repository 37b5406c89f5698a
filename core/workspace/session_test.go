package workspace

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"BeatFlow/core/media"
)

// simFactory hands out SimElements and remembers them in creation order.
type simFactory struct {
	elems []*media.SimElement
}

func (f *simFactory) new() media.Element {
	e := media.NewSimElement()
	f.elems = append(f.elems, e)
	return e
}

func newTestSession() (*Session, *simFactory) {
	f := &simFactory{}
	s := NewSession(Options{Factory: f.new})
	s.SetBeatSource("http://cdn.local/audio/beat.mp3", 120)
	return s, f
}

func TestTrackManagement(t *testing.T) {
	Convey("Given a fresh session", t, func() {
		s, _ := newTestSession()

		Convey("it starts with only the beat lane", func() {
			snap := s.Snapshot()
			So(snap.Tracks, ShouldHaveLength, 1)
			So(snap.Tracks[0].Kind, ShouldEqual, KindBeat)
			So(snap.Duration, ShouldEqual, 120)
		})

		Convey("overlay lanes can be added and removed", func() {
			id := s.AddTrack("Vocals")
			So(s.Snapshot().Tracks, ShouldHaveLength, 2)

			So(s.RemoveTrack(id), ShouldBeNil)
			So(s.Snapshot().Tracks, ShouldHaveLength, 1)
		})

		Convey("the beat lane cannot be removed or rebound", func() {
			beatID := s.Snapshot().Tracks[0].ID
			So(s.RemoveTrack(beatID), ShouldEqual, ErrBeatTrack)
			So(s.LoadAudio(beatID, "http://cdn.local/audio/other.mp3"), ShouldEqual, ErrBeatTrackSource)
		})

		Convey("unknown lane ids are rejected", func() {
			So(s.RemoveTrack("nope"), ShouldEqual, ErrTrackNotFound)
			So(s.SetVolume("nope", 50), ShouldEqual, ErrTrackNotFound)
			So(s.ToggleSolo("nope"), ShouldEqual, ErrTrackNotFound)
		})
	})
}

func TestLazyElements(t *testing.T) {
	Convey("Given a session with a bound overlay lane", t, func() {
		s, f := newTestSession()
		id := s.AddTrack("Vocals")
		So(s.LoadAudio(id, "http://cdn.local/audio/take1.mp3"), ShouldBeNil)

		Convey("no element exists before the first play", func() {
			So(f.elems, ShouldBeEmpty)
		})

		Convey("Play constructs one element per playable lane", func() {
			So(s.Play(), ShouldBeNil)
			So(f.elems, ShouldHaveLength, 2)
			So(f.elems[0].Src(), ShouldEqual, "http://cdn.local/audio/beat.mp3")
			So(f.elems[1].Src(), ShouldEqual, "http://cdn.local/audio/take1.mp3")
			So(f.elems[0].PlayCount(), ShouldEqual, 1)
			So(f.elems[1].PlayCount(), ShouldEqual, 1)

			Convey("a second play reuses the existing elements", func() {
				s.Pause()
				So(s.Play(), ShouldBeNil)
				So(f.elems, ShouldHaveLength, 2)
			})
		})

		Convey("muted lanes are skipped when play starts", func() {
			So(s.ToggleMute(id), ShouldBeNil)
			So(s.Play(), ShouldBeNil)
			So(f.elems, ShouldHaveLength, 1)
		})

		Convey("Play with nothing audible is rejected", func() {
			beatID := s.Snapshot().Tracks[0].ID
			So(s.ToggleMute(beatID), ShouldBeNil)
			So(s.ToggleMute(id), ShouldBeNil)
			So(s.Play(), ShouldEqual, ErrNoPlayableTracks)
			So(s.Snapshot().IsPlaying, ShouldBeFalse)
		})
	})
}

func TestSoloOverlay(t *testing.T) {
	Convey("Given two playing lanes where lane A is muted", t, func() {
		s, f := newTestSession()
		a := s.AddTrack("A")
		b := s.AddTrack("B")
		So(s.LoadAudio(a, "http://cdn.local/audio/a.mp3"), ShouldBeNil)
		So(s.LoadAudio(b, "http://cdn.local/audio/b.mp3"), ShouldBeNil)
		So(s.ToggleMute(a), ShouldBeNil)
		So(s.Play(), ShouldBeNil) // beat + B start; A is muted

		beatElem := f.elems[0]
		bElem := f.elems[1]

		Convey("soloing B silences the beat lane without touching flags", func() {
			So(s.ToggleSolo(b), ShouldBeNil)

			So(beatElem.Muted(), ShouldBeTrue)
			So(bElem.Muted(), ShouldBeFalse)

			snap := s.Snapshot()
			for _, tr := range snap.Tracks {
				switch tr.ID {
				case a:
					So(tr.Muted, ShouldBeTrue)
					So(tr.Solo, ShouldBeFalse)
				case b:
					So(tr.Solo, ShouldBeTrue)
				default:
					So(tr.Muted, ShouldBeFalse)
				}
			}

			Convey("un-soloing restores each lane's own mute flag", func() {
				So(s.ToggleSolo(b), ShouldBeNil)
				So(beatElem.Muted(), ShouldBeFalse)
				So(bElem.Muted(), ShouldBeFalse)

				snap := s.Snapshot()
				for _, tr := range snap.Tracks {
					if tr.ID == a {
						So(tr.Muted, ShouldBeTrue)
					}
					So(tr.Solo, ShouldBeFalse)
				}
			})

			Convey("soloing another lane supersedes the first solo", func() {
				beatID := s.Snapshot().Tracks[0].ID
				So(s.ToggleSolo(beatID), ShouldBeNil)

				snap := s.Snapshot()
				for _, tr := range snap.Tracks {
					So(tr.Solo, ShouldEqual, tr.ID == beatID)
				}
				So(beatElem.Muted(), ShouldBeFalse)
				So(bElem.Muted(), ShouldBeTrue)
			})
		})
	})
}

func TestMixerControls(t *testing.T) {
	Convey("Given a playing lane", t, func() {
		s, f := newTestSession()
		So(s.Play(), ShouldBeNil)
		beatID := s.Snapshot().Tracks[0].ID
		elem := f.elems[0]

		Convey("volume maps 0-100 onto the element's 0-1 scale", func() {
			So(s.SetVolume(beatID, 40), ShouldBeNil)
			So(elem.Volume(), ShouldEqual, 0.4)
			So(s.SetVolume(beatID, 300), ShouldBeNil)
			So(elem.Volume(), ShouldEqual, 1.0)
		})

		Convey("pan clamps to the slider range and maps onto -1..1", func() {
			So(s.SetPan(beatID, -25), ShouldBeNil)
			So(elem.Pan(), ShouldEqual, -0.5)
			So(s.SetPan(beatID, 999), ShouldBeNil)
			So(elem.Pan(), ShouldEqual, 1.0)
		})
	})
}

func TestSynchronizedTransport(t *testing.T) {
	Convey("Given two playing lanes", t, func() {
		s, f := newTestSession()
		id := s.AddTrack("Vocals")
		So(s.LoadAudio(id, "http://cdn.local/audio/v.mp3"), ShouldBeNil)
		So(s.Play(), ShouldBeNil)
		beat, vocal := f.elems[0], f.elems[1]
		beat.CompleteLoad(120)
		vocal.CompleteLoad(90)

		Convey("the timeline clock mirrors the beat lane only", func() {
			beat.AdvanceTo(10)
			vocal.AdvanceTo(55)
			snap := s.Snapshot()
			So(snap.Position, ShouldEqual, 10)
			So(snap.Duration, ShouldEqual, 120)
		})

		Convey("Pause halts every lane and keeps positions", func() {
			beat.AdvanceTo(30)
			s.Pause()
			So(beat.PauseCount(), ShouldEqual, 1)
			So(vocal.PauseCount(), ShouldEqual, 1)
			So(s.Snapshot().IsPlaying, ShouldBeFalse)
			So(s.Snapshot().Position, ShouldEqual, 30)
		})

		Convey("Stop rewinds every lane to zero", func() {
			beat.AdvanceTo(30)
			s.Stop()
			So(beat.LastSeek(), ShouldEqual, 0)
			So(vocal.LastSeek(), ShouldEqual, 0)
			So(s.Snapshot().Position, ShouldEqual, 0)
		})

		Convey("playback finishes when every started lane has ended", func() {
			var finished bool
			s.onFinished = func() { finished = true }

			vocal.End()
			So(s.Snapshot().IsPlaying, ShouldBeTrue)
			So(finished, ShouldBeFalse)

			beat.End()
			So(s.Snapshot().IsPlaying, ShouldBeFalse)
			So(finished, ShouldBeTrue)

			Convey("a duplicate ended event does not double count", func() {
				beat.End()
				So(s.Snapshot().IsPlaying, ShouldBeFalse)
			})
		})
	})
}

func TestTimeline(t *testing.T) {
	Convey("Given a session", t, func() {
		s, _ := newTestSession()

		Convey("zoom steps by five within its bounds", func() {
			base := s.Zoom()
			So(s.ZoomIn(), ShouldEqual, base+5)
			So(s.ZoomOut(), ShouldEqual, base)

			for i := 0; i < 20; i++ {
				s.ZoomOut()
			}
			So(s.Zoom(), ShouldEqual, 5)

			for i := 0; i < 20; i++ {
				s.ZoomIn()
			}
			So(s.Zoom(), ShouldEqual, 50)
		})

		Convey("clip geometry scales with zoom and falls back on width", func() {
			beatID := s.Snapshot().Tracks[0].ID
			left, width, err := s.ClipGeometry(beatID)
			So(err, ShouldBeNil)
			So(left, ShouldEqual, 0)
			So(width, ShouldEqual, 120*float64(s.Zoom()))

			id := s.AddTrack("V")
			So(s.LoadAudio(id, "http://cdn.local/audio/v.mp3"), ShouldBeNil)
			_, width, err = s.ClipGeometry(id)
			So(err, ShouldBeNil)
			So(width, ShouldEqual, 30*float64(s.Zoom())) // duration unknown
		})
	})
}

func TestClipDrag(t *testing.T) {
	Convey("Given a lane with audio at zoom 10", t, func() {
		s, _ := newTestSession()
		id := s.AddTrack("V")
		So(s.LoadAudio(id, "http://cdn.local/audio/v.mp3"), ShouldBeNil)
		So(s.Zoom(), ShouldEqual, 10)

		Convey("dragging converts pixels to seconds at the current zoom", func() {
			So(s.BeginDrag(id, 100), ShouldBeNil)
			s.DragTo(125) // +25px at 10px/s = +2.5s
			s.EndDrag()

			tr, ok := s.TrackByID(id)
			So(ok, ShouldBeTrue)
			So(tr.StartTime, ShouldEqual, 2.5)
		})

		Convey("positions round to a tenth of a second", func() {
			So(s.BeginDrag(id, 0), ShouldBeNil)
			s.DragTo(13) // 1.3s exactly at 10px/s
			s.EndDrag()
			tr, _ := s.TrackByID(id)
			So(tr.StartTime, ShouldEqual, 1.3)

			So(s.BeginDrag(id, 0), ShouldBeNil)
			s.DragTo(1) // 0.1s
			s.EndDrag()
			tr, _ = s.TrackByID(id)
			So(tr.StartTime, ShouldEqual, 1.4)
		})

		Convey("dragging left of the origin clamps at zero", func() {
			So(s.BeginDrag(id, 200), ShouldBeNil)
			s.DragTo(0)
			s.EndDrag()
			tr, _ := s.TrackByID(id)
			So(tr.StartTime, ShouldEqual, 0)
		})

		Convey("lanes without audio cannot be dragged", func() {
			empty := s.AddTrack("Empty")
			So(s.BeginDrag(empty, 0), ShouldEqual, ErrTrackWithoutAudio)
		})

		Convey("DragTo without an active drag is ignored", func() {
			s.DragTo(500)
			tr, _ := s.TrackByID(id)
			So(tr.StartTime, ShouldEqual, 0)
		})
	})
}

func TestLifecycle(t *testing.T) {
	Convey("Given a playing session", t, func() {
		s, f := newTestSession()
		So(s.Play(), ShouldBeNil)
		elem := f.elems[0]

		Convey("Cleanup releases elements and is idempotent", func() {
			s.Cleanup()
			So(elem.Closed(), ShouldBeTrue)
			So(elem.CloseCount(), ShouldEqual, 1)
			So(s.Snapshot().IsPlaying, ShouldBeFalse)

			s.Cleanup()
			So(elem.CloseCount(), ShouldEqual, 1)

			Convey("and play is refused afterwards", func() {
				So(s.Play(), ShouldEqual, ErrSessionClosed)
			})
		})

		Convey("hiding the surface pauses playback", func() {
			s.HandleVisibilityHidden()
			So(s.Snapshot().IsPlaying, ShouldBeFalse)
			So(elem.PauseCount(), ShouldEqual, 1)

			s.HandleVisibilityHidden()
			So(elem.PauseCount(), ShouldEqual, 1)
		})

		Convey("navigation is guarded while playing", func() {
			So(s.CanNavigate(), ShouldBeFalse)
			s.Pause()
			So(s.CanNavigate(), ShouldBeTrue)
		})
	})
}
