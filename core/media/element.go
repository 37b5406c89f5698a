package media

// 音频元素抽象：播放内核只面向这个接口。浏览器端的 <audio> 元素通过
// WebSocket 桥接实现它，测试和无头场景使用 SimElement。

// EventKind identifies an asynchronous media pipeline event.
type EventKind string

const (
	EventLoadedMetadata EventKind = "loadedmetadata" // duration became known
	EventTimeUpdate     EventKind = "timeupdate"     // playback position progressed
	EventProgress       EventKind = "progress"       // buffered amount changed
	EventCanPlay        EventKind = "canplay"        // enough data to start/resume
	EventWaiting        EventKind = "waiting"        // buffering starved
	EventEnded          EventKind = "ended"          // end of stream
	EventError          EventKind = "error"          // mid-playback pipeline failure
	EventPlayResult     EventKind = "playresult"     // resolution of a pending play request
)

// Event is a single media pipeline notification. Gen echoes the load
// generation the event belongs to; consumers drop events whose generation
// no longer matches the current source, which is what keeps a stale
// pending play request from flipping state for a no-longer-current track.
type Event struct {
	Kind     EventKind
	Gen      uint64
	Position float64 // seconds
	Duration float64 // seconds
	Buffered float64 // seconds
	Err      error   // set for EventError and failed EventPlayResult
}

// Handler consumes element events. Handlers are invoked from whatever
// goroutine delivers the underlying pipeline event; implementations must
// never invoke the handler synchronously from inside a command call, so
// callers may issue commands while holding their own locks.
type Handler func(Event)

// Element wraps a single audio output. Commands are fire-and-forget: all
// results come back through the bound Handler as Events. Close is
// idempotent and must never fail loudly; teardown frequently runs during
// page unload where nothing can recover anyway.
type Element interface {
	// Load replaces the current source. The generation tags every event
	// the element emits until the next Load.
	Load(gen uint64, src string)
	Play()
	Pause()
	Seek(seconds float64)
	SetVolume(v float64) // 0.0 - 1.0
	SetMuted(muted bool)
	SetPan(p float64) // -1.0 (left) - 1.0 (right), best effort
	Bind(h Handler)
	Close() error
}

// Factory constructs elements on demand. The workspace session creates
// elements lazily on first play, never at track creation time.
type Factory func() Element
