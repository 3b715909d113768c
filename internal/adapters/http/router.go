package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/document-chat/internal/config"
	"github.com/kirillkom/document-chat/internal/core/domain"
	"github.com/kirillkom/document-chat/internal/core/ports"
	"github.com/kirillkom/document-chat/internal/observability/metrics"
)

const (
	serviceName = "api"

	// multipartOverhead covers boundaries and part headers around the file body.
	multipartOverhead = 1 << 20

	uploadSuccessMessage = "Document uploaded successfully"
	healthMessage        = "Document chat backend is running"
)

type Router struct {
	ingestor ports.DocumentIngestor
	chat     ports.DocumentChatService
	sessions ports.SessionReader
	metrics  *metrics.HTTPServerMetrics

	maxUploadBytes     int64
	rateLimitRPS       float64
	rateLimitBurst     int
	maxInFlight        int
	backpressureWait   time.Duration
	corsAllowedOrigins []string
}

func NewRouter(
	cfg config.Config,
	ingestor ports.DocumentIngestor,
	chat ports.DocumentChatService,
	sessions ports.SessionReader,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 25 << 20
	}
	return &Router{
		ingestor:           ingestor,
		chat:               chat,
		sessions:           sessions,
		metrics:            httpMetrics,
		maxUploadBytes:     maxUpload,
		rateLimitRPS:       cfg.APIRateLimitRPS,
		rateLimitBurst:     cfg.APIRateLimitBurst,
		maxInFlight:        cfg.APIMaxInFlight,
		backpressureWait:   cfg.APIBackpressureWait(),
		corsAllowedOrigins: cfg.CORSAllowedOrigins,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", rt.health)
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/upload", rt.uploadDocument)
	mux.HandleFunc("/chat", rt.chatWithDocument)
	mux.HandleFunc("/v1/sessions/", rt.getSessionByID)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.maxInFlight, rt.backpressureWait)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = corsMiddleware(handler, rt.corsAllowedOrigins)
	handler = requestIDMiddleware(handler)
	return recoverMiddleware(handler)
}

func (rt *Router) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "message": healthMessage})
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type uploadResponse struct {
	SessionID string `json:"session_id"`
	Filename  string `json:"filename"`
	Message   string `json:"message"`
	Warning   string `json:"warning,omitempty"`
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes+multipartOverhead)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rt.recordIngestRejected("")
			writeError(w, http.StatusBadRequest, "File too large")
			return
		}
		rt.recordIngestRejected("")
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	if strings.TrimSpace(fileHeader.Filename) == "" {
		rt.recordIngestRejected("")
		writeError(w, http.StatusBadRequest, "No file selected")
		return
	}

	result, err := rt.ingestor.Ingest(r.Context(), fileHeader.Filename, file)
	if err != nil {
		format, _ := domain.FormatFromFilename(fileHeader.Filename)
		rt.recordIngestRejected(string(format))
		switch {
		case domain.IsKind(err, domain.ErrUnsupportedFormat):
			writeError(w, http.StatusBadRequest, "Unsupported file type")
		case domain.IsKind(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, mapErrorToHTTPStatus(err), "Error processing document: "+err.Error())
		}
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordIngest(serviceName, string(result.Format), result.ExtractionOK, result.ContentChars)
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		SessionID: result.SessionID,
		Filename:  result.Filename,
		Message:   uploadSuccessMessage,
		Warning:   result.Warning,
	})
}

func (rt *Router) chatWithDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req domain.Query
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	start := time.Now()
	answer, err := rt.chat.Ask(r.Context(), req)
	if err != nil {
		switch {
		case domain.IsKind(err, domain.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, "Session not found")
		case domain.IsKind(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, mapErrorToHTTPStatus(err), "Error getting response: "+err.Error())
		}
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordChatAnswer(serviceName, string(answer.Outcome), answer.IsRelated, time.Since(start))
	}
	writeJSON(w, http.StatusOK, answer)
}

type sessionResponse struct {
	ID           string        `json:"id"`
	Filename     string        `json:"filename"`
	Format       domain.Format `json:"format"`
	ExtractionOK bool          `json:"extraction_ok"`
	Warning      string        `json:"warning,omitempty"`
	ContentChars int           `json:"content_chars"`
	Summary      string        `json:"summary"`
	CreatedAt    time.Time     `json:"created_at"`
}

func (rt *Router) getSessionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	session, err := rt.sessions.GetSession(r.Context(), id)
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		if status == http.StatusNotFound {
			writeError(w, status, "Session not found")
			return
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		ID:           session.ID,
		Filename:     session.Filename,
		Format:       session.Format,
		ExtractionOK: session.ExtractionOK,
		Warning:      session.Warning,
		ContentChars: len([]rune(session.Content)),
		Summary:      session.Summary,
		CreatedAt:    session.CreatedAt,
	})
}

func (rt *Router) recordIngestRejected(format string) {
	if rt.metrics != nil {
		rt.metrics.RecordIngestRejected(serviceName, format)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
