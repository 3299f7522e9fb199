package server

import (
	"bufio"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xhad/hragent/internal/models"
	"github.com/xhad/hragent/pkg/rag"
)

const serviceName = "HR Resume Analysis RAG Agent"

//go:embed templates/index.html
var templates embed.FS

var indexTemplate = template.Must(template.ParseFS(templates, "templates/index.html"))

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

// Service is the part of rag.Service the HTTP layer drives.
type Service interface {
	UpdateVectorStore(ctx context.Context, path string) (*models.UpdateResult, error)
	Ask(ctx context.Context, question string) (*models.Answer, error)
	AskStream(ctx context.Context, question string, onChunk func(string) error) (*models.Answer, error)
}

type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

type Config struct {
	Port         string
	MaxBodyBytes int64
	// Streaming sends websocket answers token by token.
	Streaming bool
	// Metrics is mounted on /metrics when set.
	Metrics http.Handler
	Logger  *zap.Logger
}

type Server struct {
	config  Config
	service Service
	router  *mux.Router
	logger  *zap.Logger
}

func New(config Config, service Service) *Server {
	if config.Port == "" {
		config.Port = "5000"
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = 16 << 20
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	s := &Server{
		config:  config,
		service: service,
		logger:  config.Logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	s.router = mux.NewRouter()
	s.router.Use(s.loggingMiddleware, s.limitBodyMiddleware)

	s.router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	s.router.HandleFunc("/update_vectorstore", s.handleUpdate).Methods(http.MethodPost)
	s.router.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.handleWebSocket)
	if s.config.Metrics != nil {
		s.router.Handle("/metrics", s.config.Metrics).Methods(http.MethodGet)
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.config.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

type indexPage struct {
	Messages []models.Flash
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderIndex(w, http.StatusOK, nil)
}

func (s *Server) renderIndex(w http.ResponseWriter, status int, messages []models.Flash) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := indexTemplate.Execute(w, indexPage{Messages: messages}); err != nil {
		s.logger.Error("failed to render index", zap.Error(err))
	}
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var path string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			FilePath string `json:"file_path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
			return
		}
		path = body.FilePath
	} else {
		path = r.FormValue("file_path")
	}

	result, err := s.service.UpdateVectorStore(r.Context(), path)
	if result == nil {
		result = &models.UpdateResult{}
	}
	status := http.StatusOK
	if err != nil {
		s.logger.Error("update error", zap.String("path", path), zap.Error(err))
		status = http.StatusInternalServerError
		if errors.Is(err, rag.ErrInvalidPath) || errors.Is(err, rag.ErrNoDocuments) {
			status = http.StatusBadRequest
		}
		if len(result.Messages) == 0 {
			result.Messages = append(result.Messages, models.Flash{Category: "error", Message: "Error: " + err.Error()})
		}
	}

	if wantsJSON(r) {
		writeJSON(w, status, result)
		return
	}
	// The page is re-rendered in place, so the flash messages survive
	// without a session.
	s.renderIndex(w, http.StatusOK, result.Messages)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No question provided"})
		return
	}

	answer, err := s.service.Ask(r.Context(), body.Question)
	if err != nil {
		status, msg := chatError(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("chat error", zap.Error(err))
		}
		writeJSON(w, status, map[string]string{"error": msg})
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": serviceName})
}

// handleWebSocket serves chat and index updates over one connection.
// Messages are handled in order; a new question waits for the previous
// answer to finish.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ws := &wsConn{conn: conn, logger: s.logger}
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("error reading message", zap.Error(err))
			}
			return
		}
		s.handleMessage(r.Context(), ws, msg)
	}
}

func (s *Server) handleMessage(ctx context.Context, ws *wsConn, msg Message) {
	switch msg.Type {
	case "update":
		ws.send(Message{Type: "status", Content: "Updating vector store..."})
		result, err := s.service.UpdateVectorStore(ctx, msg.Content)
		if result != nil {
			for _, m := range result.Messages {
				ws.send(Message{Type: "status", Content: m.Message, Data: m.Category})
			}
		}
		if err != nil {
			ws.send(Message{Type: "error", Content: err.Error()})
		}
	case "question", "":
		ws.send(Message{Type: "status", Content: "Searching documents..."})

		var (
			answer *models.Answer
			err    error
		)
		if s.config.Streaming {
			answer, err = s.service.AskStream(ctx, msg.Content, func(chunk string) error {
				return ws.send(Message{Type: "stream", Content: chunk})
			})
		} else {
			answer, err = s.service.Ask(ctx, msg.Content)
		}
		if err != nil {
			_, text := chatError(err)
			ws.send(Message{Type: "error", Content: text})
			return
		}
		ws.send(Message{Type: "response", Content: answer.HTML})
		ws.send(Message{Type: "sources", Data: answer.Sources})
	default:
		ws.send(Message{Type: "error", Content: fmt.Sprintf("unknown message type %q", msg.Type)})
	}
}

type wsConn struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	logger *zap.Logger
}

func (c *wsConn) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		c.logger.Warn("error sending message", zap.Error(err))
		return err
	}
	return nil
}

func chatError(err error) (int, string) {
	switch {
	case errors.Is(err, rag.ErrEmptyQuestion):
		return http.StatusBadRequest, "No question provided"
	case errors.Is(err, rag.ErrStoreUnavailable):
		return http.StatusBadRequest, "Vector store not available. Please update first."
	default:
		return http.StatusInternalServerError, "Error: " + err.Error()
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("HTTP request processed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) limitBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
		next.ServeHTTP(w, r)
	})
}
