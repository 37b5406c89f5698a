package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"BeatFlow/core/media"
	"BeatFlow/logger"
)

// 实时桥接:播放内核运行在服务端,浏览器只托管 <audio> 元素。
// 服务端通过 element 指令驱动客户端元素,客户端把媒体事件回传。

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsReadLimit  = 16384
)

// wsMessage is the envelope for both directions of the bridge.
type wsMessage struct {
	Type    string          `json:"type"`              // command | media | state | element | ping | pong | error
	Action  string          `json:"action,omitempty"`  // command name
	Target  string          `json:"target,omitempty"`  // element id ("player" or a track id)
	Payload json.RawMessage `json:"payload,omitempty"` // action arguments / state body
	Kind    string          `json:"kind,omitempty"`    // media event kind
	Gen     uint64          `json:"gen,omitempty"`
	Pos     float64         `json:"position,omitempty"`
	Dur     float64         `json:"duration,omitempty"`
	Buf     float64         `json:"buffered,omitempty"`
	Err     string          `json:"error,omitempty"`
	Ts      int64           `json:"timestamp,omitempty"`
}

// wsClient is one connected browser session.
type wsClient struct {
	conn   *websocket.Conn
	send   chan []byte
	userID string
	name   string

	closeOnce sync.Once
}

func newWSClient(conn *websocket.Conn, userID, name string) *wsClient {
	return &wsClient{
		conn:   conn,
		send:   make(chan []byte, 64),
		userID: userID,
		name:   name,
	}
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// enqueue drops the message when the send buffer is full rather than
// blocking the playback core.
func (c *wsClient) enqueue(msg *wsMessage) {
	msg.Ts = time.Now().UnixMilli()
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	defer func() {
		// 连接关闭后 send 已关,丢弃而不是崩溃
		_ = recover()
	}()
	select {
	case c.send <- data:
	default:
		logger.Warn("websocket send buffer full, dropping message",
			logger.String("user", c.userID),
			logger.String("type", msg.Type))
	}
}

// readPump 读取消息循环
func (c *wsClient) readPump(handler func(msg *wsMessage), onClose func()) {
	defer func() {
		onClose()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(wsReadLimit)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error",
					logger.ErrorField(err),
					logger.String("user", c.userID))
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Warn("invalid websocket message", logger.ErrorField(err))
			continue
		}

		if msg.Type == "ping" {
			c.enqueue(&wsMessage{Type: "pong"})
			continue
		}
		handler(&msg)
	}
}

// writePump 写入消息循环
func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// 合并发送队列中的消息
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// remoteElement drives one audio element living in the connected
// browser. Commands go out as element messages; the connection handler
// feeds reported media events back through deliver.
type remoteElement struct {
	client *wsClient
	target string

	mu      sync.Mutex
	handler media.Handler
	closed  bool
}

func newRemoteElement(client *wsClient, target string) *remoteElement {
	return &remoteElement{client: client, target: target}
}

func (r *remoteElement) Bind(h media.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = h
}

func (r *remoteElement) command(msg *wsMessage) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return
	}
	msg.Type = "element"
	msg.Target = r.target
	r.client.enqueue(msg)
}

func (r *remoteElement) Load(gen uint64, src string) {
	payload, _ := json.Marshal(map[string]string{"src": src})
	r.command(&wsMessage{Action: "load", Gen: gen, Payload: payload})
}

func (r *remoteElement) Play()  { r.command(&wsMessage{Action: "play"}) }
func (r *remoteElement) Pause() { r.command(&wsMessage{Action: "pause"}) }

func (r *remoteElement) Seek(seconds float64) {
	r.command(&wsMessage{Action: "seek", Pos: seconds})
}

func (r *remoteElement) SetVolume(v float64) {
	payload, _ := json.Marshal(map[string]float64{"value": v})
	r.command(&wsMessage{Action: "volume", Payload: payload})
}

func (r *remoteElement) SetMuted(muted bool) {
	payload, _ := json.Marshal(map[string]bool{"value": muted})
	r.command(&wsMessage{Action: "muted", Payload: payload})
}

func (r *remoteElement) SetPan(p float64) {
	payload, _ := json.Marshal(map[string]float64{"value": p})
	r.command(&wsMessage{Action: "pan", Payload: payload})
}

func (r *remoteElement) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()
	r.client.enqueue(&wsMessage{Type: "element", Target: r.target, Action: "dispose"})
	return nil
}

// deliver translates a reported media message into an element event.
func (r *remoteElement) deliver(msg *wsMessage) {
	r.mu.Lock()
	h := r.handler
	closed := r.closed
	r.mu.Unlock()
	if h == nil || closed {
		return
	}

	ev := media.Event{
		Kind:     media.EventKind(msg.Kind),
		Gen:      msg.Gen,
		Position: msg.Pos,
		Duration: msg.Dur,
		Buffered: msg.Buf,
	}
	if msg.Err != "" {
		ev.Err = &mediaError{message: msg.Err}
	}
	h(ev)
}

// mediaError wraps an error string reported by the browser element.
type mediaError struct {
	message string
}

func (e *mediaError) Error() string { return e.message }
