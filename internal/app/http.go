package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"todolists/api/internal/auth"
	"todolists/api/internal/authpw"
	"todolists/api/internal/store"
	"todolists/api/internal/todolist"
)

type HTTPServer struct {
	service    *Service
	logger     *zap.Logger
	metrics    *Metrics
	corsOrigin string
}

func NewHTTPServer(service *Service, logger *zap.Logger, metrics *Metrics, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, logger: logger.Named("http"), metrics: metrics, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/metrics" && s.metrics != nil {
		s.metrics.Handler().ServeHTTP(w, r)
		return
	}

	// Auth routes (no session required)
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signup" {
		s.handleAuthSignUp(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signin" {
		s.handleAuthSignIn(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		s.handleSessionInfo(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/refresh" {
		s.handleSessionRefresh(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/logout" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = decodeBody(r, &body)
		if err := s.service.Logout(r.Context(), body.RefreshToken); err != nil {
			s.logger.Warn("logout", zap.Error(err))
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	r = r.WithContext(auth.WithIdentity(r.Context(), auth.Identity{
		UserID: session.UserID,
		Name:   session.UserName,
		Role:   session.Role,
	}))

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		limit := 0
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
				return
			}
			limit = parsed
		}
		payload, err := s.service.Search(r.Context(), r.URL.Query().Get("q"), limit)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) >= 2 && parts[0] == "api" && parts[1] == "todolists" {
		s.handleTodolists(w, r, parts[2:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ready := true
	checks := map[string]any{}
	for name, err := range s.service.Checks(ctx) {
		if err != nil {
			ready = false
			checks[name] = map[string]any{"status": "error", "error": err.Error()}
			continue
		}
		checks[name] = map[string]any{"status": "ok"}
	}

	status, statusCode := "ready", http.StatusOK
	if !ready {
		status, statusCode = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, map[string]any{
		"ok":     ready,
		"status": status,
		"checks": checks,
	})
}

type itemBody struct {
	ID          string `json:"_id" validate:"max=64"`
	Description string `json:"description" validate:"max=2000"`
	DueDate     string `json:"due_date" validate:"max=64"`
	AssignedTo  string `json:"assigned_to" validate:"max=200"`
	Completed   bool   `json:"completed"`
}

func (b itemBody) toItem() store.Item {
	return store.Item{
		ID:          strings.TrimSpace(b.ID),
		Description: b.Description,
		DueDate:     b.DueDate,
		AssignedTo:  b.AssignedTo,
		Completed:   b.Completed,
	}
}

func toItems(bodies []itemBody) []store.Item {
	items := make([]store.Item, 0, len(bodies))
	for _, body := range bodies {
		items = append(items, body.toItem())
	}
	return items
}

// handleTodolists serves /api/todolists and everything below it; parts is
// the path after that prefix.
func (s *HTTPServer) handleTodolists(w http.ResponseWriter, r *http.Request, parts []string) {
	ctx := r.Context()

	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"todolists": s.service.GetAllTodos(ctx)})
		case http.MethodPost:
			var body struct {
				Name  string     `json:"name" validate:"required,max=200"`
				Owner string     `json:"owner" validate:"max=64"`
				Items []itemBody `json:"items" validate:"dive"`
			}
			if !decodeAndValidate(w, r, &body) {
				return
			}
			result, err := s.service.AddTodolist(ctx, AddTodolistInput{
				Name:  body.Name,
				Owner: body.Owner,
				Items: toItems(body.Items),
			})
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, result)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	listID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			list, found := s.service.GetTodoByID(ctx, listID)
			if !found {
				writeJSON(w, http.StatusOK, map[string]any{})
				return
			}
			writeJSON(w, http.StatusOK, list)
		case http.MethodDelete:
			writeJSON(w, http.StatusOK, map[string]any{"ok": s.service.DeleteTodolist(ctx, listID)})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	switch {
	case r.Method == http.MethodPut && len(parts) == 3 && parts[1] == "fields":
		var body struct {
			Value string `json:"value" validate:"max=200"`
		}
		if !decodeAndValidate(w, r, &body) {
			return
		}
		value, err := s.service.UpdateTodolistField(ctx, listID, parts[2], body.Value)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"value": value})

	case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "items":
		var body struct {
			Item  itemBody `json:"item"`
			Index *int     `json:"index"`
		}
		if !decodeAndValidate(w, r, &body) {
			return
		}
		index := -1
		if body.Index != nil {
			index = *body.Index
		}
		result, err := s.service.AddItem(ctx, listID, body.Item.toItem(), index)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case r.Method == http.MethodDelete && len(parts) == 3 && parts[1] == "items":
		s.writeItems(w, func() (ItemsResult, error) {
			return s.service.DeleteItem(ctx, listID, parts[2])
		})

	case r.Method == http.MethodPut && len(parts) == 5 && parts[1] == "items" && parts[3] == "fields":
		var body struct {
			Value string `json:"value" validate:"max=2000"`
			Flag  bool   `json:"flag"`
		}
		if !decodeAndValidate(w, r, &body) {
			return
		}
		s.writeItems(w, func() (ItemsResult, error) {
			return s.service.UpdateItemField(ctx, listID, parts[2], parts[4], body.Value, body.Flag)
		})

	case r.Method == http.MethodPost && len(parts) == 4 && parts[1] == "items" && parts[3] == "move":
		var body struct {
			Direction int `json:"direction" validate:"required,oneof=-1 1"`
		}
		if !decodeAndValidate(w, r, &body) {
			return
		}
		s.writeItems(w, func() (ItemsResult, error) {
			return s.service.ReorderItems(ctx, listID, parts[2], todolist.Move(body.Direction))
		})

	case r.Method == http.MethodPost && len(parts) == 3 && parts[1] == "sort":
		key, err := todolist.ParseKey(parts[2])
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), map[string]any{"key": parts[2]})
			return
		}
		s.writeItems(w, func() (ItemsResult, error) {
			return s.service.SortItems(ctx, listID, key)
		})

	case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "restore":
		var body struct {
			Order []string `json:"order" validate:"required,dive,required"`
		}
		if !decodeAndValidate(w, r, &body) {
			return
		}
		s.writeItems(w, func() (ItemsResult, error) {
			return s.service.RestoreOrder(ctx, listID, body.Order)
		})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) writeItems(w http.ResponseWriter, run func() (ItemsResult, error)) {
	result, err := run()
	if err != nil {
		writeMappedError(w, err)
		return
	}
	if result.Items == nil {
		result.Items = []store.Item{}
	}
	writeJSON(w, http.StatusOK, result)
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
		s.logger.Error("session lookup", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return session, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.metrics.observeRequest(r.Method, writer.status)
		s.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", writer.status),
			zap.Duration("duration", time.Since(started)),
		)
	})
}

type requestIDKey struct{}

// RequestID returns the id the middleware attached to ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
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

func writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

// decodeAndValidate writes the error response itself and reports whether
// the handler should continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := decodeBody(r, target); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return false
	}
	if err := validateBody(target); err != nil {
		writeMappedError(w, err)
		return false
	}
	return true
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
	switch {
	case errors.Is(err, ErrListNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	case errors.Is(err, authpw.ErrEmailTaken):
		return http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil
	case errors.Is(err, authpw.ErrWeakPassword),
		errors.Is(err, authpw.ErrInvalidEmail),
		errors.Is(err, authpw.ErrMissingFields):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
