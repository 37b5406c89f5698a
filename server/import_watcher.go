package server

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"BeatFlow/config"
	"BeatFlow/logger"
	"BeatFlow/storage"
)

// 本地导入目录:放进该目录的音频文件自动上传到对象存储,
// 工作台可以把它们作为音轨素材加载。

// ImportWatcher mirrors a local drop directory into object storage.
type ImportWatcher struct {
	cfg *config.Config

	mu      sync.Mutex
	imports map[string]time.Time // object path -> import time
	watcher *fsnotify.Watcher
}

// NewImportWatcher creates a watcher over cfg.ImportWatchDir.
func NewImportWatcher(cfg *config.Config) *ImportWatcher {
	return &ImportWatcher{
		cfg:     cfg,
		imports: make(map[string]time.Time),
	}
}

// Start begins watching. Existing files are imported first, then new
// writes as they settle. Runs until the context is canceled.
func (iw *ImportWatcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(iw.cfg.ImportWatchDir, 0755); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	iw.watcher = watcher
	if err := watcher.Add(iw.cfg.ImportWatchDir); err != nil {
		watcher.Close()
		return err
	}

	// 先导入已有文件
	if entries, err := os.ReadDir(iw.cfg.ImportWatchDir); err == nil {
		for _, entry := range entries {
			if !entry.IsDir() {
				iw.importFile(ctx, filepath.Join(iw.cfg.ImportWatchDir, entry.Name()))
			}
		}
	}

	go iw.loop(ctx)
	logger.Info("导入目录监听启动", logger.String("dir", iw.cfg.ImportWatchDir))
	return nil
}

func (iw *ImportWatcher) loop(ctx context.Context) {
	defer iw.watcher.Close()

	// 写入事件去抖:等文件写完再导入
	pending := make(map[string]*time.Timer)
	var mu sync.Mutex

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-iw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			path := event.Name
			mu.Lock()
			if t, exists := pending[path]; exists {
				t.Stop()
			}
			pending[path] = time.AfterFunc(2*time.Second, func() {
				mu.Lock()
				delete(pending, path)
				mu.Unlock()
				iw.importFile(ctx, path)
			})
			mu.Unlock()
		case err, ok := <-iw.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("导入目录监听错误", logger.ErrorField(err))
		}
	}
}

func (iw *ImportWatcher) importFile(ctx context.Context, path string) {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := audioExtensions[ext]; !ok {
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return
	}
	file, err := os.Open(path)
	if err != nil {
		logger.Warn("打开导入文件失败", logger.String("path", path), logger.ErrorField(err))
		return
	}
	defer file.Close()

	objectPath := "imports/" + filepath.Base(path)
	opCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	if err := storage.UploadObject(opCtx, iw.cfg, objectPath, file, info.Size(), audioExtensions[ext]); err != nil {
		logger.Error("上传导入文件失败", logger.String("path", path), logger.ErrorField(err))
		return
	}

	iw.mu.Lock()
	iw.imports[objectPath] = time.Now()
	iw.mu.Unlock()
	logger.Info("导入音频素材", logger.String("object", objectPath))
}

// importEntry is one available workspace import.
type importEntry struct {
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	ImportedAt time.Time `json:"importedAt"`
}

// List returns the imported assets, newest first.
func (iw *ImportWatcher) List() []importEntry {
	iw.mu.Lock()
	defer iw.mu.Unlock()

	entries := make([]importEntry, 0, len(iw.imports))
	for objectPath, at := range iw.imports {
		entries = append(entries, importEntry{
			Name:       filepath.Base(objectPath),
			URL:        storage.PublicURL(iw.cfg.MinioPublicURL, objectPath),
			ImportedAt: at,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ImportedAt.After(entries[j].ImportedAt)
	})
	return entries
}

// ListImportsHandler returns audio assets available to workspace lanes.
func (h *APIHandler) ListImportsHandler(iw *ImportWatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := GetUserIDFromContext(r.Context()); err != nil {
			respondWithError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		respondWithJSON(w, http.StatusOK, iw.List())
	}
}
