package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"imgshrink-go/internal/compressor"
	"imgshrink-go/internal/config"
	"imgshrink-go/internal/inspector"
	"imgshrink-go/internal/report"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type Server struct {
	cfg        *config.Config
	log        *logrus.Logger
	router     *mux.Router
	httpServer *http.Server
	wsUpgrader websocket.Upgrader
	wsClients  map[*websocket.Conn]bool
	wsMutex    sync.Mutex

	// Current operation state
	operationMutex sync.RWMutex
	isRunning      bool
	currentReport  *report.Report
	lastError      string
	runs           sync.WaitGroup

	// runCtx lives as long as the server; Stop cancels it to abort a run.
	runCtx    context.Context
	cancelRun context.CancelFunc
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type InspectRequest struct {
	Paths []string `json:"paths"`
}

type CompressRequest struct {
	Directory string `json:"directory"`
	DryRun    bool   `json:"dry_run"`
}

type DirectoryInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	IsDirectory  bool   `json:"is_directory"`
	IsImage      bool   `json:"is_image"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewServer(cfg *config.Config, log *logrus.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		log:       log,
		router:    mux.NewRouter(),
		wsClients: make(map[*websocket.Conn]bool),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins in development
			},
		},
	}

	s.runCtx, s.cancelRun = context.WithCancel(context.Background())

	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/inspect", s.handleInspect).Methods("POST")
	api.HandleFunc("/compress", s.handleCompress).Methods("POST")
	api.HandleFunc("/report", s.handleReport).Methods("GET")
	api.HandleFunc("/directories", s.handleListDirectories).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.log.Infof("Starting web server on http://localhost%s", addr)
	return s.httpServer.ListenAndServe()
}

// Stop cancels an in-flight run, shuts the HTTP server down and waits for
// the run to unwind.
func (s *Server) Stop(ctx context.Context) error {
	s.cancelRun()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.operationMutex.RLock()
	running := s.isRunning
	rep := s.currentReport
	lastError := s.lastError
	s.operationMutex.RUnlock()

	data := map[string]interface{}{
		"running": running,
	}
	if rep != nil {
		data["summary"] = rep.Summary()
		data["totals"] = rep.Totals()
	}
	if lastError != "" {
		data["last_error"] = lastError
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    data,
	})
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	var req InspectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Paths) == 0 {
		req.Paths = s.cfg.Inspect.Paths
	}

	var out bytes.Buffer
	files, err := inspector.New(&out, s.log).Inspect(req.Paths)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	lines := make([]string, 0, len(files))
	for _, f := range files {
		lines = append(lines, f.Line())
	}
	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"files": files,
			"lines": lines,
		},
	})
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	var req CompressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Directory == "" {
		req.Directory = s.cfg.Compress.Directory
	}

	if info, err := os.Stat(req.Directory); err != nil || !info.IsDir() {
		s.writeError(w, "Directory does not exist", http.StatusBadRequest)
		return
	}

	s.operationMutex.Lock()
	if s.isRunning {
		s.operationMutex.Unlock()
		s.writeError(w, "Operation already in progress", http.StatusConflict)
		return
	}
	s.isRunning = true
	s.currentReport = nil
	s.lastError = ""
	s.operationMutex.Unlock()

	s.runs.Add(1)
	go s.runCompressAsync(req)

	s.writeJSON(w, APIResponse{
		Success: true,
		Message: "Compression started",
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	s.operationMutex.RLock()
	rep := s.currentReport
	s.operationMutex.RUnlock()

	if rep == nil {
		s.writeJSON(w, APIResponse{
			Success: true,
			Data:    nil,
		})
		return
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    rep.Snapshot(),
	})
}

func (s *Server) handleListDirectories(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		path = "."
	}

	// Security check - prevent directory traversal
	path = filepath.Clean(path)
	if strings.Contains(path, "..") {
		s.writeError(w, "Invalid path", http.StatusBadRequest)
		return
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to read directory: %v", err), http.StatusInternalServerError)
		return
	}

	directories := make([]DirectoryInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}

		directories = append(directories, DirectoryInfo{
			Path:         filepath.Join(path, entry.Name()),
			Name:         entry.Name(),
			IsDirectory:  entry.IsDir(),
			IsImage:      !entry.IsDir() && s.cfg.IsImageExtension(filepath.Ext(entry.Name())),
			Size:         info.Size(),
			ModifiedTime: info.ModTime().Format(time.RFC3339),
		})
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    directories,
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.wsMutex.Lock()
	s.wsClients[conn] = true
	s.wsMutex.Unlock()

	s.log.Debug("WebSocket client connected")

	defer func() {
		s.wsMutex.Lock()
		delete(s.wsClients, conn)
		s.wsMutex.Unlock()
		s.log.Debug("WebSocket client disconnected")
	}()

	// Keep connection alive
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) runCompressAsync(req CompressRequest) {
	defer s.runs.Done()

	cfg := s.cfg.Compress
	cfg.Directory = req.Directory
	cfg.DryRun = cfg.DryRun || req.DryRun

	s.broadcastWSMessage("compress_started", map[string]interface{}{
		"directory": req.Directory,
		"dry_run":   cfg.DryRun,
	})

	rep, err := s.compress(cfg)

	s.operationMutex.Lock()
	s.isRunning = false
	s.currentReport = rep
	if err != nil {
		s.lastError = err.Error()
	}
	s.operationMutex.Unlock()

	data := map[string]interface{}{}
	if rep != nil {
		data["summary"] = rep.Summary()
		data["totals"] = rep.Totals()
	}
	switch {
	case errors.Is(err, context.Canceled):
		s.log.Warnf("Compression of %s stopped: server shutting down", req.Directory)
		data["error"] = err.Error()
	case err != nil:
		s.log.Errorf("Compression of %s failed: %v", req.Directory, err)
		data["error"] = err.Error()
	}
	s.broadcastWSMessage("compress_completed", data)
}

func (s *Server) compress(cfg config.CompressConfig) (*report.Report, error) {
	opts, closeOpts, err := compressor.OptionsFromConfig(cfg, s.log)
	if err != nil {
		return nil, err
	}
	defer closeOpts()

	opts = append(opts, compressor.WithHooks(compressor.Hooks{
		OnStart: func(rep *report.Report) {
			s.operationMutex.Lock()
			s.currentReport = rep
			s.operationMutex.Unlock()
		},
		OnResult: func(res report.Result) {
			s.broadcastWSMessage("file_compressed", res)
		},
		OnFailure: func(fe *compressor.FileError) {
			s.broadcastWSMessage("file_failed", map[string]interface{}{
				"filename": fe.Filename,
				"kind":     fe.Kind,
				"error":    fe.Error(),
			})
		},
	}))

	// per-file lines go to the log, the report carries the rest
	out := s.log.WriterLevel(logrus.InfoLevel)
	defer out.Close()

	c := compressor.NewDefaultCompressor(out, s.log, opts...)
	return c.Compress(s.runCtx, compressor.ParamsFromConfig(cfg))
}

func (s *Server) broadcastWSMessage(messageType string, data interface{}) {
	message := WSMessage{
		Type: messageType,
		Data: data,
	}

	msgBytes, err := json.Marshal(message)
	if err != nil {
		s.log.Errorf("Failed to marshal WebSocket message: %v", err)
		return
	}

	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()

	for conn := range s.wsClients {
		if err := conn.WriteMessage(websocket.TextMessage, msgBytes); err != nil {
			s.log.Errorf("Failed to write WebSocket message: %v", err)
			delete(s.wsClients, conn)
			conn.Close()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error:   message,
	})
}
