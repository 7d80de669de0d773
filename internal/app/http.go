package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"taskflow/api/internal/auth"
	"taskflow/api/internal/logger"
	"taskflow/api/internal/util"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	logger     logger.Logger
	metrics    http.Handler
}

// NewHTTPServer wires the service to HTTP. gatherer may be nil, in which
// case /metrics is not served.
func NewHTTPServer(service *Service, corsOrigin string, gatherer prometheus.Gatherer, log logger.Logger) *HTTPServer {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	s := &HTTPServer{service: service, corsOrigin: corsOrigin, logger: log}
	if gatherer != nil {
		s.metrics = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	handler := s.withMiddleware(http.HandlerFunc(s.handle))
	handler = cors.New(cors.Options{
		AllowedOrigins: corsOrigins(s.corsOrigin),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
	}).Handler(handler)
	return otelhttp.NewHandler(handler, "taskflow-api")
}

func corsOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/metrics" && s.metrics != nil {
		s.metrics.ServeHTTP(w, r)
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, CodeNotFound, "Not found", nil)
		return
	}
	parts = parts[1:]

	switch parts[0] {
	case "workspaces":
		s.handleWorkspaces(w, r, session, parts)
	case "boards":
		s.handleBoards(w, r, session, parts)
	case "lists":
		s.handleLists(w, r, session, parts)
	case "cards":
		s.handleCards(w, r, session, parts)
	default:
		writeError(w, http.StatusNotFound, CodeNotFound, "Not found", nil)
	}
}

func (s *HTTPServer) handleWorkspaces(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 1 && r.Method == http.MethodPost {
		var body struct {
			Name string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateWorkspace(r.Context(), session.UserID, body.Name)
		respond(w, http.StatusCreated, payload, err)
		return
	}
	if len(parts) < 2 {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}
	workspaceID := parts[1]

	if len(parts) == 2 && r.Method == http.MethodDelete {
		err := s.service.SoftDeleteWorkspace(r.Context(), session.UserID, workspaceID)
		respond(w, http.StatusOK, map[string]any{"ok": true, "workspaceId": workspaceID}, err)
		return
	}

	if len(parts) == 3 && parts[2] == "members" && r.Method == http.MethodPost {
		var body struct {
			UserID string `json:"userId"`
			Role   string `json:"role"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.AddWorkspaceMember(r.Context(), session.UserID, workspaceID, body.UserID, body.Role)
		respond(w, http.StatusOK, payload, err)
		return
	}

	if len(parts) == 3 && parts[2] == "restore" && r.Method == http.MethodPost {
		payload, err := s.service.RestoreWorkspace(r.Context(), session.UserID, workspaceID)
		respond(w, http.StatusOK, payload, err)
		return
	}

	if len(parts) == 4 && parts[2] == "members" {
		userID := parts[3]
		switch r.Method {
		case http.MethodPatch:
			var body struct {
				Role string `json:"role"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.UpdateWorkspaceMemberRole(r.Context(), session.UserID, workspaceID, userID, body.Role)
			respond(w, http.StatusOK, payload, err)
		case http.MethodDelete:
			payload, err := s.service.RemoveWorkspaceMember(r.Context(), session.UserID, workspaceID, userID)
			respond(w, http.StatusOK, payload, err)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) == 3 && parts[2] == "boards" && r.Method == http.MethodPost {
		var body struct {
			Title string `json:"title"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateBoard(r.Context(), session.UserID, workspaceID, body.Title)
		respond(w, http.StatusCreated, payload, err)
		return
	}

	if len(parts) == 3 && parts[2] == "presence" && r.Method == http.MethodGet {
		payload, err := s.service.OnlineUsers(r.Context(), session.UserID, workspaceID)
		respond(w, http.StatusOK, payload, err)
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) handleBoards(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) < 3 {
		writeError(w, http.StatusNotFound, CodeNotFound, "Not found", nil)
		return
	}
	boardID := parts[1]

	if len(parts) == 3 && parts[2] == "members" && r.Method == http.MethodPost {
		var body struct {
			UserID string `json:"userId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.AddBoardMember(r.Context(), session.UserID, boardID, body.UserID)
		respond(w, http.StatusOK, payload, err)
		return
	}

	if len(parts) == 4 && parts[2] == "members" && r.Method == http.MethodDelete {
		payload, err := s.service.RemoveBoardMember(r.Context(), session.UserID, boardID, parts[3])
		respond(w, http.StatusOK, payload, err)
		return
	}

	if len(parts) == 3 && parts[2] == "cards" && r.Method == http.MethodGet {
		payload, err := s.service.ListBoardCards(r.Context(), session.UserID, boardID)
		respond(w, http.StatusOK, payload, err)
		return
	}

	if len(parts) == 3 && parts[2] == "lists" {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.GetBoardLists(r.Context(), session.UserID, boardID)
			respond(w, http.StatusOK, payload, err)
		case http.MethodPost:
			var body CreateListInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.CreateList(r.Context(), session.UserID, boardID, body)
			respond(w, http.StatusCreated, payload, err)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) == 4 && parts[2] == "lists" && parts[3] == "reorder" && r.Method == http.MethodPost {
		var body struct {
			ListID string `json:"listId"`
			ReorderInput
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		body.ItemID = body.ListID
		payload, err := s.service.ReorderLists(r.Context(), session.UserID, boardID, body.ReorderInput)
		respond(w, http.StatusOK, payload, err)
		return
	}

	if len(parts) == 3 && parts[2] == "activity" && r.Method == http.MethodGet {
		limit, ok := queryInt(w, r, "limit")
		if !ok {
			return
		}
		payload, err := s.service.BoardActivity(r.Context(), session.UserID, boardID, limit)
		respond(w, http.StatusOK, payload, err)
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) handleLists(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) < 2 {
		writeError(w, http.StatusNotFound, CodeNotFound, "Not found", nil)
		return
	}
	listID := parts[1]

	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.GetList(r.Context(), session.UserID, listID)
			respond(w, http.StatusOK, payload, err)
		case http.MethodPatch:
			var body UpdateListInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.UpdateList(r.Context(), session.UserID, listID, body)
			respond(w, http.StatusOK, payload, err)
		case http.MethodDelete:
			payload, err := s.service.DeleteList(r.Context(), session.UserID, listID)
			respond(w, http.StatusOK, payload, err)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) == 3 && r.Method == http.MethodPost {
		switch parts[2] {
		case "state":
			var body struct {
				Action string `json:"action"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.SetListState(r.Context(), session.UserID, listID, body.Action)
			respond(w, http.StatusOK, payload, err)
			return
		case "move":
			var body struct {
				TargetBoardID string `json:"targetBoardId"`
				MoveInput
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			body.TargetID = body.TargetBoardID
			payload, err := s.service.MoveListToBoard(r.Context(), session.UserID, listID, body.MoveInput)
			respond(w, http.StatusOK, payload, err)
			return
		case "clear":
			payload, err := s.service.ClearList(r.Context(), session.UserID, listID)
			respond(w, http.StatusOK, payload, err)
			return
		case "position":
			var body struct {
				NewPosition     *int   `json:"newPosition"`
				ExpectedVersion *int64 `json:"expectedVersion"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.MoveListWithin(r.Context(), session.UserID, listID, body.NewPosition, body.ExpectedVersion)
			respond(w, http.StatusOK, payload, err)
			return
		}
	}

	if len(parts) == 3 && parts[2] == "cards" {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.ListCards(r.Context(), session.UserID, listID)
			respond(w, http.StatusOK, payload, err)
		case http.MethodPost:
			var body CreateCardInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.CreateCard(r.Context(), session.UserID, listID, body)
			respond(w, http.StatusCreated, payload, err)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) == 4 && parts[2] == "cards" && parts[3] == "reorder" && r.Method == http.MethodPost {
		var body struct {
			CardID string `json:"cardId"`
			ReorderInput
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		body.ItemID = body.CardID
		payload, err := s.service.ReorderCards(r.Context(), session.UserID, listID, body.ReorderInput)
		respond(w, http.StatusOK, payload, err)
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		writeError(w, http.StatusInternalServerError, CodeInternal, "Session lookup failed", nil)
		return Session{}, false
	}
	return session, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = util.NewID("")
		}
		r = r.WithContext(logger.WithRequestID(r.Context(), requestID))

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		writer.Header().Set("X-Request-ID", requestID)
		writer.Header().Set("Cache-Control", "no-store")
		writer.Header().Set("Content-Type", "application/json")

		next.ServeHTTP(writer, r)

		s.logger.InfoWithContext(r.Context(), "http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", writer.status),
			zap.Int64("duration_ms", time.Since(started).Milliseconds()),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func respond(w http.ResponseWriter, status int, payload any, err error) {
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, status, map[string]any{"data": payload})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) || errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, CodeValidation, name+" must be an integer", nil)
		return 0, false
	}
	return parsed, true
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, CodeInternal, "Server error", nil
}
