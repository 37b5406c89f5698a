package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"BeatFlow/cache"
	"BeatFlow/core/auth"
	"BeatFlow/core/player"
	"BeatFlow/logger"
	"BeatFlow/model"
)

// PlayerSocketHandler runs one playback engine per connection. The
// browser hosts a single audio element; every transport decision lives
// here. The saved queue is restored on connect and persisted on close.
func (h *APIHandler) PlayerSocketHandler(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.ParseToken(r.URL.Query().Get("token"))
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Invalid or missing token")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	client := newWSClient(conn, claims.UserID, claims.Name)
	elem := newRemoteElement(client, "player")

	engine := player.NewEngine(player.Options{
		Element:     elem,
		LoadTimeout: h.cfg.PlayerLoadTimeout,
		Volume:      h.cfg.DefaultVolume,
		OnChange: func(snap player.Snapshot) {
			payload, err := json.Marshal(snap)
			if err != nil {
				return
			}
			client.enqueue(&wsMessage{Type: "state", Payload: payload})
		},
	})

	// 恢复上次的播放队列
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	if tracks, err := cache.GetQueue(ctx, claims.UserID); err == nil && len(tracks) > 0 {
		engine.SetPlaylist(tracks)
	}
	cancel()

	go client.writePump()
	logger.Info("播放器连接建立", logger.String("user", claims.UserID))

	client.readPump(func(msg *wsMessage) {
		switch msg.Type {
		case "media":
			elem.deliver(msg)
		case "command":
			h.handlePlayerCommand(client, engine, msg)
		}
	}, func() {
		h.persistQueue(claims.UserID, engine)
		engine.Close()
		client.close()
		logger.Info("播放器连接断开", logger.String("user", claims.UserID))
	})
}

func (h *APIHandler) handlePlayerCommand(client *wsClient, engine *player.Engine, msg *wsMessage) {
	var err error
	switch msg.Action {
	case "setPlaylist":
		var tracks []model.Track
		if jsonErr := json.Unmarshal(msg.Payload, &tracks); jsonErr != nil {
			client.enqueue(&wsMessage{Type: "error", Err: "invalid playlist payload"})
			return
		}
		engine.SetPlaylist(tracks)
	case "append":
		var tracks []model.Track
		if jsonErr := json.Unmarshal(msg.Payload, &tracks); jsonErr != nil {
			client.enqueue(&wsMessage{Type: "error", Err: "invalid tracks payload"})
			return
		}
		engine.Append(tracks...)
	case "playTrack":
		var p struct {
			Index int `json:"index"`
		}
		if jsonErr := json.Unmarshal(msg.Payload, &p); jsonErr != nil {
			client.enqueue(&wsMessage{Type: "error", Err: "invalid index payload"})
			return
		}
		err = engine.PlayTrack(p.Index)
	case "toggle":
		err = engine.TogglePlay()
	case "next":
		err = engine.PlayNext()
	case "previous":
		err = engine.PlayPrevious()
	case "seek":
		err = engine.SeekTo(msg.Pos)
	case "volume":
		var p struct {
			Value int `json:"value"`
		}
		if jsonErr := json.Unmarshal(msg.Payload, &p); jsonErr != nil {
			return
		}
		engine.SetVolume(p.Value)
	case "mute":
		engine.ToggleMute()
	case "repeat":
		engine.CycleRepeat()
	case "shuffle":
		engine.ToggleShuffle()
	case "minimize":
		var p struct {
			Value bool `json:"value"`
		}
		if jsonErr := json.Unmarshal(msg.Payload, &p); jsonErr != nil {
			return
		}
		engine.SetMinimized(p.Value)
	case "stop":
		engine.Stop()
	case "hide":
		engine.Hide()
	default:
		client.enqueue(&wsMessage{Type: "error", Err: "unknown command: " + msg.Action})
		return
	}

	if err != nil {
		client.enqueue(&wsMessage{Type: "error", Err: err.Error()})
	}
}

// persistQueue snapshots the playlist back into Redis so the next
// session resumes where this one left off.
func (h *APIHandler) persistQueue(userID string, engine *player.Engine) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tracks := engine.Playlist()
	if len(tracks) == 0 {
		return
	}
	if err := cache.SaveQueue(ctx, userID, tracks); err != nil {
		logger.Warn("保存播放队列失败", logger.String("user", userID), logger.ErrorField(err))
	}
}
