package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"BeatFlow/core/auth"
	"BeatFlow/core/media"
	"BeatFlow/core/workspace"
	"BeatFlow/logger"
	"BeatFlow/storage"
)

// elementTable routes reported media events to the per-track remote
// elements a workspace session creates lazily.
type elementTable struct {
	mu    sync.Mutex
	elems map[string]*remoteElement
}

func newElementTable() *elementTable {
	return &elementTable{elems: make(map[string]*remoteElement)}
}

func (t *elementTable) factory(client *wsClient) media.Factory {
	return func() media.Element {
		id := uuid.New().String()
		elem := newRemoteElement(client, id)
		t.mu.Lock()
		t.elems[id] = elem
		t.mu.Unlock()
		return elem
	}
}

func (t *elementTable) deliver(msg *wsMessage) {
	t.mu.Lock()
	elem := t.elems[msg.Target]
	t.mu.Unlock()
	if elem != nil {
		elem.deliver(msg)
	}
}

// WorkspaceSocketHandler runs one multi-track session per connection,
// scoped to a project the user owns. Lane elements live in the browser;
// mixing and transport state live here.
func (h *APIHandler) WorkspaceSocketHandler(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.ParseToken(r.URL.Query().Get("token"))
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Invalid or missing token")
		return
	}

	projectID := mux.Vars(r)["project_id"]
	project, err := h.projectRepo.GetByID(projectID)
	if err != nil || project == nil || project.UserID != claims.UserID {
		respondWithError(w, http.StatusNotFound, "Project not found")
		return
	}
	beat, err := h.beatRepo.GetBeatByID(project.BeatID)
	if err != nil || beat == nil {
		respondWithError(w, http.StatusNotFound, "Project beat not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	client := newWSClient(conn, claims.UserID, claims.Name)
	table := newElementTable()

	session := workspace.NewSession(workspace.Options{
		Factory:  table.factory(client),
		BeatName: beat.Title,
		ZoomMin:  h.cfg.ZoomMin,
		ZoomMax:  h.cfg.ZoomMax,
		OnChange: func(snap workspace.Snapshot) {
			payload, err := json.Marshal(snap)
			if err != nil {
				return
			}
			client.enqueue(&wsMessage{Type: "state", Payload: payload})
		},
		OnFinished: func() {
			client.enqueue(&wsMessage{Type: "event", Action: "finished"})
		},
	})
	session.SetBeatSource(storage.AudioURL(h.cfg.MinioPublicURL, beat.AudioPath), float64(beat.Duration))

	// 在线状态心跳
	presenceCtx, stopPresence := context.WithCancel(context.Background())
	go h.trackPresence(presenceCtx, projectID, claims.UserID)

	go client.writePump()
	logger.Info("工作台连接建立",
		logger.String("user", claims.UserID),
		logger.String("project", projectID))

	client.readPump(func(msg *wsMessage) {
		switch msg.Type {
		case "media":
			table.deliver(msg)
		case "command":
			h.handleWorkspaceCommand(client, session, msg)
		}
	}, func() {
		stopPresence()
		h.removePresence(projectID, claims.UserID)
		session.Cleanup()
		client.close()
		logger.Info("工作台连接断开",
			logger.String("user", claims.UserID),
			logger.String("project", projectID))
	})
}

func (h *APIHandler) handleWorkspaceCommand(client *wsClient, session *workspace.Session, msg *wsMessage) {
	var trackArg struct {
		ID    string  `json:"id"`
		Name  string  `json:"name"`
		Src   string  `json:"src"`
		Value int     `json:"value"`
		X     float64 `json:"x"`
	}
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &trackArg); err != nil {
			client.enqueue(&wsMessage{Type: "error", Err: "invalid command payload"})
			return
		}
	}

	var err error
	switch msg.Action {
	case "addTrack":
		id := session.AddTrack(trackArg.Name)
		payload, _ := json.Marshal(map[string]string{"id": id})
		client.enqueue(&wsMessage{Type: "event", Action: "trackAdded", Payload: payload})
	case "removeTrack":
		err = session.RemoveTrack(trackArg.ID)
	case "loadAudio":
		err = session.LoadAudio(trackArg.ID, trackArg.Src)
	case "volume":
		err = session.SetVolume(trackArg.ID, trackArg.Value)
	case "pan":
		err = session.SetPan(trackArg.ID, trackArg.Value)
	case "mute":
		err = session.ToggleMute(trackArg.ID)
	case "solo":
		err = session.ToggleSolo(trackArg.ID)
	case "play":
		err = session.Play()
	case "pause":
		session.Pause()
	case "stop":
		session.Stop()
	case "zoomIn":
		session.ZoomIn()
	case "zoomOut":
		session.ZoomOut()
	case "beginDrag":
		err = session.BeginDrag(trackArg.ID, trackArg.X)
	case "dragTo":
		session.DragTo(trackArg.X)
	case "endDrag":
		session.EndDrag()
	case "visibilityHidden":
		session.HandleVisibilityHidden()
	case "canNavigate":
		payload, _ := json.Marshal(map[string]bool{"canNavigate": session.CanNavigate()})
		client.enqueue(&wsMessage{Type: "event", Action: "canNavigate", Payload: payload})
	case "cleanup":
		session.Cleanup()
	default:
		client.enqueue(&wsMessage{Type: "error", Err: "unknown command: " + msg.Action})
		return
	}

	if err != nil {
		client.enqueue(&wsMessage{Type: "error", Err: err.Error()})
	}
}

// trackPresence keeps the project's presence entry alive while the
// connection lasts.
func (h *APIHandler) trackPresence(ctx context.Context, projectID, userID string) {
	update := func() {
		opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := h.workspaceCache.UpdatePresence(opCtx, projectID, userID); err != nil {
			logger.Warn("更新在线状态失败", logger.ErrorField(err))
		}
	}
	update()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}

func (h *APIHandler) removePresence(projectID, userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.workspaceCache.RemovePresence(ctx, projectID, userID); err != nil {
		logger.Warn("清除在线状态失败", logger.ErrorField(err))
	}
}
