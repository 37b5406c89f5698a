package media

import "sync"

// SimElement 是一个确定性的内存音频元素：命令只记录状态，事件由调用方
// 手动驱动。用于测试和无浏览器场景。
type SimElement struct {
	mu      sync.Mutex
	handler Handler

	gen    uint64
	src    string
	pos    float64
	dur    float64
	volume float64
	muted  bool
	pan    float64
	closed bool

	loadCount  int
	playCount  int
	pauseCount int
	closeCount int
	lastSeek   float64
}

// NewSimElement creates an element with no source bound.
func NewSimElement() *SimElement {
	return &SimElement{volume: 1.0}
}

func (e *SimElement) Bind(h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = h
}

func (e *SimElement) Load(gen uint64, src string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen = gen
	e.src = src
	e.pos = 0
	e.dur = 0
	e.loadCount++
}

func (e *SimElement) Play()  { e.count(&e.playCount) }
func (e *SimElement) Pause() { e.count(&e.pauseCount) }

func (e *SimElement) Seek(seconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pos = seconds
	e.lastSeek = seconds
}

func (e *SimElement) SetVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = v
}

func (e *SimElement) SetMuted(muted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.muted = muted
}

func (e *SimElement) SetPan(p float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pan = p
}

func (e *SimElement) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.closeCount++
	return nil
}

func (e *SimElement) count(c *int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	*c++
}

// --- event drivers -------------------------------------------------------
// 事件驱动方法：由测试/模拟时钟调用，从调用方的 goroutine 触发 handler。

// CompleteLoad reports metadata and readiness for the current source.
func (e *SimElement) CompleteLoad(duration float64) {
	e.mu.Lock()
	e.dur = duration
	gen := e.gen
	e.mu.Unlock()
	e.emit(Event{Kind: EventLoadedMetadata, Gen: gen, Duration: duration})
	e.emit(Event{Kind: EventCanPlay, Gen: gen, Duration: duration})
}

// PlayResult resolves the pending play request; err != nil means the
// request was rejected.
func (e *SimElement) PlayResult(err error) {
	e.emit(Event{Kind: EventPlayResult, Gen: e.currentGen(), Err: err})
}

// PlayResultAs resolves a play request against an explicit generation,
// for exercising stale results after the source changed underneath.
func (e *SimElement) PlayResultAs(gen uint64, err error) {
	e.emit(Event{Kind: EventPlayResult, Gen: gen, Err: err})
}

// AdvanceTo moves the playhead and reports a time update.
func (e *SimElement) AdvanceTo(pos float64) {
	e.mu.Lock()
	e.pos = pos
	gen := e.gen
	dur := e.dur
	e.mu.Unlock()
	e.emit(Event{Kind: EventTimeUpdate, Gen: gen, Position: pos, Duration: dur})
}

// Buffer reports buffered progress.
func (e *SimElement) Buffer(seconds float64) {
	e.emit(Event{Kind: EventProgress, Gen: e.currentGen(), Buffered: seconds})
}

// Starve reports a buffering underrun.
func (e *SimElement) Starve() {
	e.emit(Event{Kind: EventWaiting, Gen: e.currentGen()})
}

// Resume reports that enough data is buffered to continue.
func (e *SimElement) Resume() {
	e.emit(Event{Kind: EventCanPlay, Gen: e.currentGen()})
}

// End moves the playhead to the end of the stream and reports ended.
func (e *SimElement) End() {
	e.mu.Lock()
	e.pos = e.dur
	gen := e.gen
	pos := e.pos
	dur := e.dur
	e.mu.Unlock()
	e.emit(Event{Kind: EventEnded, Gen: gen, Position: pos, Duration: dur})
}

// Fail reports a pipeline error.
func (e *SimElement) Fail(err error) {
	e.emit(Event{Kind: EventError, Gen: e.currentGen(), Err: err})
}

func (e *SimElement) currentGen() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen
}

func (e *SimElement) emit(ev Event) {
	e.mu.Lock()
	h := e.handler
	e.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

// --- inspection ----------------------------------------------------------

func (e *SimElement) Src() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.src
}

func (e *SimElement) Gen() uint64 { return e.currentGen() }

func (e *SimElement) Position() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pos
}

func (e *SimElement) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

func (e *SimElement) Muted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muted
}

func (e *SimElement) Pan() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pan
}

func (e *SimElement) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *SimElement) PlayCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playCount
}

func (e *SimElement) PauseCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pauseCount
}

func (e *SimElement) CloseCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closeCount
}

func (e *SimElement) LoadCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadCount
}

func (e *SimElement) LastSeek() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSeek
}
