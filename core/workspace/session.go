package workspace

import (
	"errors"
	"math"
	"sync"

	"github.com/google/uuid"

	"BeatFlow/core/media"
	"BeatFlow/logger"
)

// 工作台多轨会话：每条音轨持有独立的音频元素,0 号轨固定为项目节拍,
// 其余为用户叠加的人声/乐器轨。元素按需懒创建,Play 时才分配。

const (
	// KindBeat is the fixed reference track bound to the project's beat.
	KindBeat = "beat"
	// KindVocal is a user-added overlay track.
	KindVocal = "vocal"

	zoomStep = 5

	// clipFallbackWidth: seconds of timeline width used for a clip whose
	// duration is not yet known.
	clipFallbackWidth = 30.0

	panRange = 50 // pan slider spans -50 (left) to +50 (right)
)

var (
	ErrTrackNotFound     = errors.New("track not found")
	ErrLastTrack         = errors.New("cannot remove the last track")
	ErrBeatTrack         = errors.New("the beat track cannot be removed")
	ErrBeatTrackSource   = errors.New("the beat track source cannot be replaced")
	ErrNoPlayableTracks  = errors.New("no tracks with audio to play")
	ErrSessionClosed     = errors.New("session is closed")
	ErrTrackWithoutAudio = errors.New("track has no audio bound")
)

// Track is one lane in the session.
type Track struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Kind      string  `json:"kind"`
	Source    string  `json:"source,omitempty"`
	Volume    int     `json:"volume"` // 0-100
	Pan       int     `json:"pan"`    // -50 (left) to +50 (right)
	Muted     bool    `json:"muted"`
	Solo      bool    `json:"solo"`
	StartTime float64 `json:"startTime"` // timeline offset, seconds
	Duration  float64 `json:"duration"`

	elem    media.Element
	gen     uint64
	started bool
	ended   bool
}

// Snapshot is an immutable view of session state.
type Snapshot struct {
	Tracks    []Track `json:"tracks"`
	IsPlaying bool    `json:"isPlaying"`
	Position  float64 `json:"position"`
	Duration  float64 `json:"duration"`
	Zoom      int     `json:"zoom"` // pixels per second
}

// Options configures a new Session.
type Options struct {
	Factory       media.Factory
	BeatName      string // display name of track 0
	DefaultVolume int    // initial lane volume; 0 means 100
	ZoomMin       int    // 0 means 5
	ZoomMax       int    // 0 means 50
	OnChange      func(Snapshot)
	OnFinished    func() // all started tracks ran to completion
}

// Session owns the track list, the shared timeline, and playback
// synchronization across the per-track elements.
type Session struct {
	mu      sync.Mutex
	factory media.Factory

	tracks  []*Track
	playing bool

	position float64 // mirrors track 0's clock
	duration float64 // track 0's duration

	zoom    int
	zoomMin int
	zoomMax int

	startedCount int
	endedCount   int

	drag struct {
		active    bool
		trackID   string
		originX   float64
		baseStart float64
	}

	defaultVolume int
	gen           uint64
	closed        bool

	onChange   func(Snapshot)
	onFinished func()
}

// NewSession creates a session seeded with the beat track at lane 0.
func NewSession(opts Options) *Session {
	vol := opts.DefaultVolume
	if vol <= 0 || vol > 100 {
		vol = 100
	}
	zmin, zmax := opts.ZoomMin, opts.ZoomMax
	if zmin <= 0 {
		zmin = 5
	}
	if zmax <= 0 {
		zmax = 50
	}
	name := opts.BeatName
	if name == "" {
		name = "Project Beat"
	}

	s := &Session{
		factory:       opts.Factory,
		zoom:          zmin + zoomStep,
		zoomMin:       zmin,
		zoomMax:       zmax,
		defaultVolume: vol,
		onChange:      opts.OnChange,
		onFinished:    opts.OnFinished,
	}
	if s.zoom > zmax {
		s.zoom = zmax
	}
	s.tracks = append(s.tracks, &Track{
		ID:     uuid.New().String(),
		Name:   name,
		Kind:   KindBeat,
		Volume: vol,
	})
	return s
}

// --- track management ----------------------------------------------------

// SetBeatSource binds the project's beat audio to track 0. The duration
// may be zero when unknown; it is refined once metadata loads.
func (s *Session) SetBeatSource(src string, duration float64) {
	s.mu.Lock()
	beat := s.tracks[0]
	beat.Source = src
	if duration > 0 {
		beat.Duration = duration
		s.duration = duration
	}
	snap, cb := s.changedLocked()
	s.mu.Unlock()
	notify(cb, snap)
}

// AddTrack appends a new empty overlay lane and returns its id.
func (s *Session) AddTrack(name string) string {
	s.mu.Lock()
	if name == "" {
		name = "New Track"
	}
	t := &Track{
		ID:     uuid.New().String(),
		Name:   name,
		Kind:   KindVocal,
		Volume: s.defaultVolume,
	}
	s.tracks = append(s.tracks, t)
	logger.Info("添加音轨", logger.String("trackId", t.ID), logger.String("name", name))
	snap, cb := s.changedLocked()
	s.mu.Unlock()
	notify(cb, snap)
	return t.ID
}

// RemoveTrack deletes an overlay lane. The beat lane and the last
// remaining lane are protected.
func (s *Session) RemoveTrack(id string) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return ErrTrackNotFound
	}
	if idx == 0 {
		s.mu.Unlock()
		return ErrBeatTrack
	}
	if len(s.tracks) <= 1 {
		s.mu.Unlock()
		return ErrLastTrack
	}

	t := s.tracks[idx]
	s.releaseLocked(t)
	s.tracks = append(s.tracks[:idx], s.tracks[idx+1:]...)
	logger.Info("删除音轨", logger.String("trackId", id))
	snap, cb := s.changedLocked()
	s.mu.Unlock()
	notify(cb, snap)
	return nil
}

// LoadAudio binds a source to an overlay lane. Track 0 is fixed to the
// project beat and cannot be rebound here.
func (s *Session) LoadAudio(id, src string) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return ErrTrackNotFound
	}
	if idx == 0 {
		s.mu.Unlock()
		return ErrBeatTrackSource
	}

	t := s.tracks[idx]
	// 换源时释放旧元素,下次播放重新懒创建
	s.releaseLocked(t)
	t.Source = src
	t.Duration = 0
	t.StartTime = 0
	snap, cb := s.changedLocked()
	s.mu.Unlock()
	notify(cb, snap)
	return nil
}

func (s *Session) indexLocked(id string) int {
	for i, t := range s.tracks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// --- mixing --------------------------------------------------------------

// SetVolume sets a lane's volume on a 0-100 scale.
func (s *Session) SetVolume(id string, v int) error {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return ErrTrackNotFound
	}
	t := s.tracks[idx]
	t.Volume = v
	if t.elem != nil {
		t.elem.SetVolume(float64(v) / 100)
	}
	snap, cb := s.changedLocked()
	s.mu.Unlock()
	notify(cb, snap)
	return nil
}

// SetPan sets a lane's stereo position, clamped to the slider range.
func (s *Session) SetPan(id string, pan int) error {
	if pan < -panRange {
		pan = -panRange
	}
	if pan > panRange {
		pan = panRange
	}
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return ErrTrackNotFound
	}
	t := s.tracks[idx]
	t.Pan = pan
	if t.elem != nil {
		t.elem.SetPan(float64(pan) / panRange)
	}
	snap, cb := s.changedLocked()
	s.mu.Unlock()
	notify(cb, snap)
	return nil
}

// ToggleMute flips a lane's own mute flag. While a solo is active the
// flag is stored but the audible state stays governed by the solo
// overlay.
func (s *Session) ToggleMute(id string) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return ErrTrackNotFound
	}
	s.tracks[idx].Muted = !s.tracks[idx].Muted
	s.applyMuteOverlayLocked()
	snap, cb := s.changedLocked()
	s.mu.Unlock()
	notify(cb, snap)
	return nil
}

// ToggleSolo flips solo on a lane. At most one lane is soloed: enabling
// solo on one lane clears it on the others. Disabling solo restores each
// lane's own mute flag.
func (s *Session) ToggleSolo(id string) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return ErrTrackNotFound
	}
	target := s.tracks[idx]
	enable := !target.Solo
	for _, t := range s.tracks {
		t.Solo = enable && t == target
	}
	s.applyMuteOverlayLocked()
	snap, cb := s.changedLocked()
	s.mu.Unlock()
	notify(cb, snap)
	return nil
}

// applyMuteOverlayLocked pushes the audible mute state to every bound
// element. Solo acts as an overlay: it silences the other lanes without
// rewriting their stored mute flags.
func (s *Session) applyMuteOverlayLocked() {
	soloed := s.soloedLocked()
	for _, t := range s.tracks {
		if t.elem == nil {
			continue
		}
		t.elem.SetMuted(s.effectiveMuted(t, soloed))
	}
}

func (s *Session) soloedLocked() *Track {
	for _, t := range s.tracks {
		if t.Solo {
			return t
		}
	}
	return nil
}

func (s *Session) effectiveMuted(t *Track, soloed *Track) bool {
	if soloed != nil && soloed != t {
		return true
	}
	return t.Muted
}

// --- transport -----------------------------------------------------------

// Play starts every lane that has audio and is not muted, creating
// elements lazily. Start is best effort: lanes begin as they become
// ready rather than waiting on the slowest one.
func (s *Session) Play() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}

	soloed := s.soloedLocked()
	var startable []*Track
	for _, t := range s.tracks {
		t.ended = false
		t.started = false
		if t.Source != "" && !t.Muted {
			startable = append(startable, t)
		}
	}
	if len(startable) == 0 {
		s.mu.Unlock()
		return ErrNoPlayableTracks
	}

	for _, t := range startable {
		if t.elem == nil {
			s.bindElementLocked(t)
		}
		t.elem.SetVolume(float64(t.Volume) / 100)
		t.elem.SetPan(float64(t.Pan) / panRange)
		t.elem.SetMuted(s.effectiveMuted(t, soloed))
		t.elem.Play()
		t.started = true
	}
	s.startedCount = len(startable)
	s.endedCount = 0
	s.playing = true
	logger.Info("工作台开始播放", logger.Int("tracks", len(startable)))
	snap, cb := s.changedLocked()
	s.mu.Unlock()
	notify(cb, snap)
	return nil
}

// bindElementLocked lazily constructs and wires a lane's element.
func (s *Session) bindElementLocked(t *Track) {
	elem := s.factory()
	s.gen++
	t.gen = s.gen
	t.elem = elem

	id := t.ID
	elem.Bind(func(ev media.Event) {
		s.handleTrackEvent(id, ev)
	})
	elem.Load(t.gen, t.Source)
}

// Pause halts every bound lane without moving the playheads.
func (s *Session) Pause() {
	s.mu.Lock()
	for _, t := range s.tracks {
		if t.elem != nil {
			t.elem.Pause()
		}
	}
	s.playing = false
	snap, cb := s.changedLocked()
	s.mu.Unlock()
	notify(cb, snap)
}

// Stop halts every bound lane and rewinds them all to zero.
func (s *Session) Stop() {
	s.mu.Lock()
	s.stopLocked()
	snap, cb := s.changedLocked()
	s.mu.Unlock()
	notify(cb, snap)
}

func (s *Session) stopLocked() {
	for _, t := range s.tracks {
		if t.elem != nil {
			t.elem.Pause()
			t.elem.Seek(0)
		}
		t.started = false
		t.ended = false
	}
	s.playing = false
	s.position = 0
	s.startedCount = 0
	s.endedCount = 0
}

// --- timeline ------------------------------------------------------------

// ZoomIn widens the timeline by one step, up to the maximum.
func (s *Session) ZoomIn() int {
	return s.adjustZoom(zoomStep)
}

// ZoomOut narrows the timeline by one step, down to the minimum.
func (s *Session) ZoomOut() int {
	return s.adjustZoom(-zoomStep)
}

func (s *Session) adjustZoom(delta int) int {
	s.mu.Lock()
	z := s.zoom + delta
	if z < s.zoomMin {
		z = s.zoomMin
	}
	if z > s.zoomMax {
		z = s.zoomMax
	}
	s.zoom = z
	snap, cb := s.changedLocked()
	s.mu.Unlock()
	notify(cb, snap)
	return z
}

// Zoom returns the current pixels-per-second scale.
func (s *Session) Zoom() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zoom
}

// ClipGeometry maps a lane's clip into timeline pixels: offset from the
// left edge and width. Unknown durations get a fixed placeholder width.
func (s *Session) ClipGeometry(id string) (left, width float64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return 0, 0, ErrTrackNotFound
	}
	t := s.tracks[idx]
	dur := t.Duration
	if dur <= 0 {
		dur = clipFallbackWidth
	}
	return t.StartTime * float64(s.zoom), dur * float64(s.zoom), nil
}

// BeginDrag starts repositioning a clip from the given pointer x. Lanes
// without audio have no clip to drag.
func (s *Session) BeginDrag(id string, pointerX float64) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return ErrTrackNotFound
	}
	t := s.tracks[idx]
	if t.Source == "" {
		s.mu.Unlock()
		return ErrTrackWithoutAudio
	}
	s.drag.active = true
	s.drag.trackID = id
	s.drag.originX = pointerX
	s.drag.baseStart = t.StartTime
	s.mu.Unlock()
	return nil
}

// DragTo moves the dragged clip. Pixel delta converts to seconds at the
// current zoom; the result rounds to a tenth of a second and never goes
// negative.
func (s *Session) DragTo(pointerX float64) {
	s.mu.Lock()
	if !s.drag.active {
		s.mu.Unlock()
		return
	}
	idx := s.indexLocked(s.drag.trackID)
	if idx < 0 {
		s.drag.active = false
		s.mu.Unlock()
		return
	}
	deltaSec := (pointerX - s.drag.originX) / float64(s.zoom)
	start := s.drag.baseStart + deltaSec
	if start < 0 {
		start = 0
	}
	s.tracks[idx].StartTime = math.Round(start*10) / 10
	snap, cb := s.changedLocked()
	s.mu.Unlock()
	notify(cb, snap)
}

// EndDrag finishes the reposition gesture.
func (s *Session) EndDrag() {
	s.mu.Lock()
	s.drag.active = false
	s.drag.trackID = ""
	s.mu.Unlock()
}

// --- element events ------------------------------------------------------

func (s *Session) handleTrackEvent(trackID string, ev media.Event) {
	s.mu.Lock()
	idx := s.indexLocked(trackID)
	if idx < 0 || s.closed {
		s.mu.Unlock()
		return
	}
	t := s.tracks[idx]
	if t.elem == nil || ev.Gen != t.gen {
		s.mu.Unlock()
		return
	}

	finished := false
	switch ev.Kind {
	case media.EventLoadedMetadata:
		t.Duration = ev.Duration
		if idx == 0 {
			s.duration = ev.Duration
		}
	case media.EventTimeUpdate:
		// 0 号轨是时间线时钟
		if idx == 0 {
			s.position = ev.Position
		}
	case media.EventEnded:
		if t.started && !t.ended {
			t.ended = true
			s.endedCount++
			if s.startedCount > 0 && s.endedCount == s.startedCount {
				s.playing = false
				finished = true
			}
		}
	case media.EventError:
		logger.Error("工作台音轨错误",
			logger.String("trackId", trackID),
			logger.ErrorField(ev.Err))
	case media.EventPlayResult:
		// 尽力而为的合播:单轨失败不回滚其它轨
		if ev.Err != nil {
			logger.Warn("音轨启动失败",
				logger.String("trackId", trackID),
				logger.ErrorField(ev.Err))
		}
	}

	snap, cb := s.changedLocked()
	finCb := s.onFinished
	s.mu.Unlock()

	notify(cb, snap)
	if finished && finCb != nil {
		finCb()
	}
}

// --- lifecycle -----------------------------------------------------------

// Cleanup releases every bound element. Idempotent; the session stays
// inspectable afterwards but cannot play.
func (s *Session) Cleanup() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, t := range s.tracks {
		s.releaseLocked(t)
	}
	s.playing = false
	s.position = 0
	s.mu.Unlock()
	logger.Info("工作台会话已释放")
}

func (s *Session) releaseLocked(t *Track) {
	if t.elem == nil {
		return
	}
	t.elem.Pause()
	t.elem.Seek(0)
	_ = t.elem.Close()
	t.elem = nil
	t.started = false
	t.ended = false
}

// HandleVisibilityHidden pauses playback when the surface goes to the
// background.
func (s *Session) HandleVisibilityHidden() {
	s.mu.Lock()
	playing := s.playing
	s.mu.Unlock()
	if playing {
		s.Pause()
	}
}

// CanNavigate reports whether leaving the workspace needs confirmation.
// While playing, the caller should confirm and then Cleanup.
func (s *Session) CanNavigate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.playing
}

// --- observation ---------------------------------------------------------

// Snapshot returns a consistent copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	tracks := make([]Track, len(s.tracks))
	for i, t := range s.tracks {
		tracks[i] = *t
		tracks[i].elem = nil
	}
	return Snapshot{
		Tracks:    tracks,
		IsPlaying: s.playing,
		Position:  s.position,
		Duration:  s.duration,
		Zoom:      s.zoom,
	}
}

// TrackByID returns a copy of the lane with the given id.
func (s *Session) TrackByID(id string) (Track, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return Track{}, false
	}
	t := *s.tracks[idx]
	t.elem = nil
	return t, true
}

func (s *Session) changedLocked() (Snapshot, func(Snapshot)) {
	return s.snapshotLocked(), s.onChange
}

func notify(cb func(Snapshot), snap Snapshot) {
	if cb != nil {
		cb(snap)
	}
}
