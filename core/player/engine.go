package player

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"BeatFlow/core/media"
	"BeatFlow/logger"
	"BeatFlow/model"
)

// 播放内核：单活动音轨 + 播放队列的状态机。所有公开方法都可以并发调用,
// 元素事件通过 handleEvent 回流。

// State is the transport state of the engine.
type State string

const (
	StateIdle    State = "idle"    // no source bound, or playlist ran out
	StateLoading State = "loading" // source bound, not yet playable
	StatePlaying State = "playing"
	StatePaused  State = "paused"
)

// RepeatMode controls end-of-track behavior.
type RepeatMode string

const (
	RepeatNone RepeatMode = "none"
	RepeatAll  RepeatMode = "all"
	RepeatOne  RepeatMode = "one"
)

var (
	ErrEmptyPlaylist   = errors.New("playlist is empty")
	ErrIndexOutOfRange = errors.New("track index out of range")
	ErrNoSource        = errors.New("track has no audio source")
	ErrSeekNotFinite   = errors.New("seek position is not finite")
	ErrLoadTimeout     = errors.New("track load timed out")
	ErrNoCurrentTrack  = errors.New("no current track")
)

// prevRestartThreshold: past this many seconds into a track, "previous"
// restarts the current track instead of moving back in the playlist.
const prevRestartThreshold = 3.0

// Snapshot is an immutable view of engine state for subscribers and the
// wire layer.
type Snapshot struct {
	State        State         `json:"state"`
	Playlist     []model.Track `json:"playlist"`
	CurrentIndex int           `json:"currentIndex"`
	HasCurrent   bool          `json:"hasCurrent"`
	IsPlaying    bool          `json:"isPlaying"`
	Position     float64       `json:"position"`
	Duration     float64       `json:"duration"`
	Buffered     float64       `json:"buffered"`
	Volume       int           `json:"volume"`
	Muted        bool          `json:"muted"`
	Repeat       RepeatMode    `json:"repeat"`
	Shuffle      bool          `json:"shuffle"`
	Minimized    bool          `json:"minimized"`
	Activated    bool          `json:"activated"`
	Error        string        `json:"error,omitempty"`
}

// Options configures a new Engine.
type Options struct {
	Element     media.Element
	LoadTimeout time.Duration // 0 disables the load watchdog
	Volume      int           // initial volume 0-100; 0 means use default 70
	Rand        *rand.Rand    // shuffle source; nil uses a time-seeded one
	OnChange    func(Snapshot)
	OnError     func(error)
}

// Engine owns exactly one element and the playlist cursor over it.
type Engine struct {
	mu   sync.Mutex
	elem media.Element

	playlist   []model.Track
	current    int
	hasCurrent bool

	state         State
	playing       bool
	playRequested bool
	ready         bool
	position      float64
	duration      float64
	buffered      float64

	volume  int
	muted   bool
	repeat  RepeatMode
	shuffle bool

	minimized bool
	activated bool
	lastErr   error

	gen       uint64
	loadTimer *time.Timer
	timeout   time.Duration
	rnd       *rand.Rand

	onChange func(Snapshot)
	onError  func(error)
	closed   bool
}

// NewEngine creates an engine bound to the given element.
func NewEngine(opts Options) *Engine {
	vol := opts.Volume
	if vol <= 0 || vol > 100 {
		vol = 70
	}
	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	e := &Engine{
		elem:     opts.Element,
		state:    StateIdle,
		current:  0,
		volume:   vol,
		repeat:   RepeatNone,
		timeout:  opts.LoadTimeout,
		rnd:      rnd,
		onChange: opts.OnChange,
		onError:  opts.OnError,
	}
	e.elem.Bind(e.handleEvent)
	e.elem.SetVolume(float64(vol) / 100)
	return e
}

// Close stops playback and releases the element. Safe to call twice.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.stopLoadTimerLocked()
	e.elem.Pause()
	_ = e.elem.Close()
	e.mu.Unlock()
}

// --- playlist ------------------------------------------------------------

// SetPlaylist replaces the playlist wholesale. The cursor is kept when it
// still points inside the new list; otherwise it resets to the head.
// Replacing with an empty list is a no-op.
func (e *Engine) SetPlaylist(tracks []model.Track) {
	if len(tracks) == 0 {
		logger.Debug("忽略空的播放列表替换")
		return
	}
	e.mu.Lock()
	e.playlist = append([]model.Track(nil), tracks...)
	if !e.hasCurrent || e.current >= len(e.playlist) {
		e.current = 0
	}
	snap, cb := e.changedLocked()
	e.mu.Unlock()
	notify(cb, snap)
}

// Append adds tracks to the tail of the playlist without touching the
// cursor or transport state.
func (e *Engine) Append(tracks ...model.Track) {
	e.mu.Lock()
	e.playlist = append(e.playlist, tracks...)
	snap, cb := e.changedLocked()
	e.mu.Unlock()
	notify(cb, snap)
}

// Playlist returns a copy of the current playlist.
func (e *Engine) Playlist() []model.Track {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.Track(nil), e.playlist...)
}

// --- transport -----------------------------------------------------------

// PlayTrack selects the track at index and starts it from the beginning.
// Out-of-range indexes are rejected with no state change.
func (e *Engine) PlayTrack(index int) error {
	e.mu.Lock()
	if index < 0 || index >= len(e.playlist) {
		e.mu.Unlock()
		logger.Warn("播放请求的索引越界",
			logger.Int("index", index),
			logger.Int("playlistLen", len(e.playlist)))
		return ErrIndexOutOfRange
	}
	err := e.startTrackLocked(index)
	snap, cb := e.changedLocked()
	e.mu.Unlock()
	notify(cb, snap)
	return err
}

// startTrackLocked binds the element to playlist[index] and requests
// playback. Caller holds e.mu and has validated index.
func (e *Engine) startTrackLocked(index int) error {
	t := e.playlist[index]
	if t.AudioURL == "" {
		logger.Warn("音轨缺少音频地址", logger.String("trackId", t.ID))
		e.lastErr = ErrNoSource
		return ErrNoSource
	}

	e.current = index
	e.hasCurrent = true
	e.activated = true
	e.playRequested = true
	e.playing = false
	e.ready = false
	e.position = 0
	e.duration = 0
	e.buffered = 0
	e.lastErr = nil
	e.state = StateLoading

	e.gen++
	e.elem.Load(e.gen, t.AudioURL)
	e.elem.SetVolume(float64(e.volume) / 100)
	e.elem.SetMuted(e.muted)
	e.elem.Play()
	e.armLoadTimerLocked(e.gen)

	logger.Info("开始播放音轨",
		logger.String("trackId", t.ID),
		logger.String("title", t.Title),
		logger.Int("index", index))
	return nil
}

// TogglePlay flips between playing and paused for the current track. With
// a current track but no bound source yet it behaves like PlayTrack on
// the cursor.
func (e *Engine) TogglePlay() error {
	e.mu.Lock()
	if !e.hasCurrent {
		e.mu.Unlock()
		return ErrNoCurrentTrack
	}

	var err error
	switch {
	case e.playing || (e.playRequested && e.state == StateLoading):
		e.elem.Pause()
		e.playing = false
		e.playRequested = false
		e.state = StatePaused
	case e.state == StateIdle:
		err = e.startTrackLocked(e.current)
	default:
		e.playRequested = true
		e.activated = true
		e.elem.Play()
		if e.ready {
			e.playing = true
			e.state = StatePlaying
		} else {
			e.state = StateLoading
			e.armLoadTimerLocked(e.gen)
		}
	}
	snap, cb := e.changedLocked()
	e.mu.Unlock()
	notify(cb, snap)
	return err
}

// PlayNext advances the cursor. Sequential mode wraps to the head;
// shuffle mode picks uniformly among the other tracks and is a no-op on
// a single-track playlist.
func (e *Engine) PlayNext() error {
	e.mu.Lock()
	if len(e.playlist) == 0 {
		e.mu.Unlock()
		return ErrEmptyPlaylist
	}
	next, ok := e.nextIndexLocked()
	if !ok {
		e.mu.Unlock()
		return nil
	}
	err := e.startTrackLocked(next)
	snap, cb := e.changedLocked()
	e.mu.Unlock()
	notify(cb, snap)
	return err
}

func (e *Engine) nextIndexLocked() (int, bool) {
	n := len(e.playlist)
	if e.shuffle {
		if n <= 1 {
			return 0, false
		}
		next := e.rnd.Intn(n - 1)
		if next >= e.current {
			next++
		}
		return next, true
	}
	return (e.current + 1) % n, true
}

// PlayPrevious restarts the current track when more than three seconds
// in; otherwise it steps back, wrapping from the head to the tail.
func (e *Engine) PlayPrevious() error {
	e.mu.Lock()
	if len(e.playlist) == 0 {
		e.mu.Unlock()
		return ErrEmptyPlaylist
	}

	var err error
	if e.position > prevRestartThreshold {
		e.elem.Seek(0)
		e.position = 0
	} else {
		prev := e.current - 1
		if prev < 0 {
			prev = len(e.playlist) - 1
		}
		err = e.startTrackLocked(prev)
	}
	snap, cb := e.changedLocked()
	e.mu.Unlock()
	notify(cb, snap)
	return err
}

// Stop pauses and rewinds the current track without clearing the cursor.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopLoadTimerLocked()
	e.elem.Pause()
	e.elem.Seek(0)
	e.playing = false
	e.playRequested = false
	e.position = 0
	if e.hasCurrent {
		e.state = StatePaused
	} else {
		e.state = StateIdle
	}
	snap, cb := e.changedLocked()
	e.mu.Unlock()
	notify(cb, snap)
}

// Hide stops playback and clears the sticky activation flag, so the
// player surface disappears until the next explicit play request.
func (e *Engine) Hide() {
	e.mu.Lock()
	e.stopLoadTimerLocked()
	e.elem.Pause()
	e.elem.Seek(0)
	e.playing = false
	e.playRequested = false
	e.position = 0
	e.activated = false
	if e.hasCurrent {
		e.state = StatePaused
	} else {
		e.state = StateIdle
	}
	snap, cb := e.changedLocked()
	e.mu.Unlock()
	notify(cb, snap)
}

// SetMinimized switches between the full and the compact player surface.
func (e *Engine) SetMinimized(min bool) {
	e.mu.Lock()
	e.minimized = min
	snap, cb := e.changedLocked()
	e.mu.Unlock()
	notify(cb, snap)
}

// --- audio parameters ----------------------------------------------------

// SetVolume sets the volume on a 0-100 scale. Any audible volume clears
// mute; mute itself never changes the stored volume.
func (e *Engine) SetVolume(v int) {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	e.mu.Lock()
	e.volume = v
	e.elem.SetVolume(float64(v) / 100)
	if v > 0 && e.muted {
		e.muted = false
		e.elem.SetMuted(false)
	}
	snap, cb := e.changedLocked()
	e.mu.Unlock()
	notify(cb, snap)
}

// ToggleMute flips mute without touching the stored volume.
func (e *Engine) ToggleMute() {
	e.mu.Lock()
	e.muted = !e.muted
	e.elem.SetMuted(e.muted)
	snap, cb := e.changedLocked()
	e.mu.Unlock()
	notify(cb, snap)
}

// SeekTo jumps to an absolute position. The reported position updates
// optimistically; the element corrects it on the next time update.
// Non-finite values are rejected.
func (e *Engine) SeekTo(seconds float64) error {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return ErrSeekNotFinite
	}
	if seconds < 0 {
		seconds = 0
	}
	e.mu.Lock()
	if !e.hasCurrent {
		e.mu.Unlock()
		return ErrNoCurrentTrack
	}
	e.elem.Seek(seconds)
	e.position = seconds
	snap, cb := e.changedLocked()
	e.mu.Unlock()
	notify(cb, snap)
	return nil
}

// CycleRepeat steps none -> all -> one -> none.
func (e *Engine) CycleRepeat() RepeatMode {
	e.mu.Lock()
	switch e.repeat {
	case RepeatNone:
		e.repeat = RepeatAll
	case RepeatAll:
		e.repeat = RepeatOne
	default:
		e.repeat = RepeatNone
	}
	mode := e.repeat
	snap, cb := e.changedLocked()
	e.mu.Unlock()
	notify(cb, snap)
	return mode
}

// ToggleShuffle flips shuffle mode.
func (e *Engine) ToggleShuffle() bool {
	e.mu.Lock()
	e.shuffle = !e.shuffle
	on := e.shuffle
	snap, cb := e.changedLocked()
	e.mu.Unlock()
	notify(cb, snap)
	return on
}

// --- element events ------------------------------------------------------

func (e *Engine) handleEvent(ev media.Event) {
	e.mu.Lock()
	if e.closed || ev.Gen != e.gen {
		// 过期事件：源已经切换,静默丢弃
		e.mu.Unlock()
		return
	}

	var surfaced error
	switch ev.Kind {
	case media.EventLoadedMetadata:
		e.duration = ev.Duration
	case media.EventTimeUpdate:
		e.position = ev.Position
		if ev.Duration > 0 {
			e.duration = ev.Duration
		}
	case media.EventProgress:
		e.buffered = ev.Buffered
	case media.EventCanPlay:
		e.ready = true
		e.stopLoadTimerLocked()
		if e.playRequested {
			e.playing = true
			e.state = StatePlaying
		} else if e.state == StateLoading {
			e.state = StatePaused
		}
	case media.EventWaiting:
		if e.playing {
			e.playing = false
			e.ready = false
			e.state = StateLoading
		}
	case media.EventEnded:
		surfaced = e.handleEndedLocked()
	case media.EventError:
		surfaced = e.failLocked(ev.Err)
	case media.EventPlayResult:
		if ev.Err != nil {
			surfaced = e.failLocked(ev.Err)
		}
	}

	snap, cb := e.changedLocked()
	errCb := e.onError
	e.mu.Unlock()

	notify(cb, snap)
	if surfaced != nil && errCb != nil {
		errCb(surfaced)
	}
}

// handleEndedLocked applies the end-of-track policy: repeat-one restarts,
// otherwise advance unless this was the tail with repeat off.
func (e *Engine) handleEndedLocked() error {
	e.position = e.duration

	switch {
	case e.repeat == RepeatOne:
		e.elem.Seek(0)
		e.position = 0
		e.elem.Play()
		e.playRequested = true
		e.playing = true
		e.state = StatePlaying
		return nil
	case e.repeat == RepeatAll || e.current < len(e.playlist)-1:
		next, ok := e.nextIndexLocked()
		if !ok {
			break
		}
		return e.startTrackLocked(next)
	}

	// Playlist exhausted: go idle, position retained at the end.
	e.playing = false
	e.playRequested = false
	e.ready = false
	e.state = StateIdle
	logger.Info("播放队列结束", logger.Int("index", e.current))
	return nil
}

// failLocked converts a pipeline failure into an observable paused state.
func (e *Engine) failLocked(err error) error {
	e.stopLoadTimerLocked()
	e.lastErr = err
	e.playing = false
	e.playRequested = false
	e.ready = false
	e.state = StatePaused
	e.elem.Pause()
	logger.Error("音频管线错误", logger.ErrorField(err))
	return err
}

// --- load watchdog -------------------------------------------------------

func (e *Engine) armLoadTimerLocked(gen uint64) {
	e.stopLoadTimerLocked()
	if e.timeout <= 0 {
		return
	}
	e.loadTimer = time.AfterFunc(e.timeout, func() {
		e.loadTimedOut(gen)
	})
}

func (e *Engine) stopLoadTimerLocked() {
	if e.loadTimer != nil {
		e.loadTimer.Stop()
		e.loadTimer = nil
	}
}

func (e *Engine) loadTimedOut(gen uint64) {
	e.mu.Lock()
	if e.closed || gen != e.gen || e.ready || e.state != StateLoading {
		e.mu.Unlock()
		return
	}
	surfaced := e.failLocked(ErrLoadTimeout)
	snap, cb := e.changedLocked()
	errCb := e.onError
	e.mu.Unlock()

	notify(cb, snap)
	if errCb != nil {
		errCb(surfaced)
	}
}

// --- observation ---------------------------------------------------------

// Snapshot returns a consistent copy of the full engine state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	s := Snapshot{
		State:        e.state,
		Playlist:     append([]model.Track(nil), e.playlist...),
		CurrentIndex: e.current,
		HasCurrent:   e.hasCurrent,
		IsPlaying:    e.playing,
		Position:     e.position,
		Duration:     e.duration,
		Buffered:     e.buffered,
		Volume:       e.volume,
		Muted:        e.muted,
		Repeat:       e.repeat,
		Shuffle:      e.shuffle,
		Minimized:    e.minimized,
		Activated:    e.activated,
	}
	if e.lastErr != nil {
		s.Error = e.lastErr.Error()
	}
	return s
}

// Current returns the track under the cursor, if any.
func (e *Engine) Current() (model.Track, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.hasCurrent || e.current >= len(e.playlist) {
		return model.Track{}, false
	}
	return e.playlist[e.current], true
}

func (e *Engine) changedLocked() (Snapshot, func(Snapshot)) {
	return e.snapshotLocked(), e.onChange
}

func notify(cb func(Snapshot), snap Snapshot) {
	if cb != nil {
		cb(snap)
	}
}
