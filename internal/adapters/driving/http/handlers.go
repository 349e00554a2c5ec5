package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/swaggo/swag"

	// Registers the OpenAPI document served at /swagger/doc.json.
	_ "github.com/custodia-labs/sercha-connect/internal/adapters/driving/http/docs"
	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driving"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"authorization state already used"`
	Code  string `json:"code,omitempty" example:"state_replay"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// ReadyResponse reports backend health
// @Description Readiness status with per-backend detail
type ReadyResponse struct {
	Status string            `json:"status" example:"ready"`
	Checks map[string]string `json:"checks"`
}

// AuthorizeRequest is the optional body of an authorize call
// @Description Options for starting authorization
type AuthorizeRequest struct {
	WantsPKCE bool `json:"wants_pkce" example:"true"`
}

// ConnectionResponse summarizes a freshly stored connection
// @Description Connection created by a completed authorization
type ConnectionResponse struct {
	Platform    domain.Platform         `json:"platform" example:"spotify"`
	Status      domain.ConnectionStatus `json:"status" example:"connected"`
	Scopes      []string                `json:"scopes,omitempty"`
	ExpiresAt   *time.Time              `json:"expires_at,omitempty"`
	ConnectedAt time.Time               `json:"connected_at"`
}

// BorrowRequest names the user whose token a service wants
// @Description Token borrow request from an internal service
type BorrowRequest struct {
	UserID string `json:"user_id" example:"b3f1c2d4-5e6f-7a8b-9c0d-1e2f3a4b5c6d"`
}

// RecordSyncRequest reports a sync outcome
// @Description Sync outcome reported by an extraction job
type RecordSyncRequest struct {
	UserID string            `json:"user_id" example:"b3f1c2d4-5e6f-7a8b-9c0d-1e2f3a4b5c6d"`
	Status domain.SyncStatus `json:"status" example:"success"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the connection store and, when configured, Redis
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := ReadyResponse{Status: "ready", Checks: map[string]string{}}
	code := http.StatusOK

	check := func(name string, p Pinger) {
		if p == nil {
			return
		}
		if err := p.Ping(r.Context()); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "unavailable"
			code = http.StatusServiceUnavailable
			return
		}
		resp.Checks[name] = "ok"
	}
	check("store", s.db)
	check("redis", s.cache)

	writeJSON(w, code, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

func (s *Server) handleSwaggerDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "api documentation unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

// Provider endpoints

// handleListProviders godoc
// @Summary      List providers
// @Description  Lists the platforms that can be connected
// @Tags         Providers
// @Produce      json
// @Success      200  {array}   driving.ProviderSummary
// @Router       /providers [get]
func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.connections.Providers())
}

// Connection endpoints

// handleGetConnections godoc
// @Summary      Connection status
// @Description  Per-platform status for the authenticated user. Only platforms with a stored connection appear.
// @Tags         Connections
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]domain.StatusView
// @Failure      401  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /connections [get]
func (s *Server) handleGetConnections(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	view, err := s.connections.GetConnectionStatus(r.Context(), authCtx.UserID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleAuthorize godoc
// @Summary      Start authorization
// @Description  Issues single-use state and returns the provider consent URL. Reconnects an existing connection.
// @Tags         Connections
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        platform  path      string            true   "Platform key"
// @Param        request   body      AuthorizeRequest  false  "Options"
// @Success      200       {object}  driving.BeginAuthorizationResponse
// @Failure      400       {object}  ErrorResponse
// @Failure      404       {object}  ErrorResponse  "Unknown provider"
// @Router       /connections/{platform}/authorize [post]
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req AuthorizeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	resp, err := s.connections.BeginAuthorization(r.Context(), driving.BeginAuthorizationRequest{
		UserID:    authCtx.UserID,
		Platform:  domain.Platform(r.PathValue("platform")),
		WantsPKCE: req.WantsPKCE,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleOAuthCallback godoc
// @Summary      OAuth callback
// @Description  Receives the provider redirect, consumes the state and stores the connection
// @Tags         Connections
// @Produce      json
// @Param        code               query     string  false  "Authorization code"
// @Param        state              query     string  true   "State token"
// @Param        error              query     string  false  "Provider error"
// @Param        error_description  query     string  false  "Provider error detail"
// @Success      200  {object}  ConnectionResponse
// @Success      302  "Redirect to the configured frontend"
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse  "State already used"
// @Failure      502  {object}  ErrorResponse  "Token exchange failed"
// @Router       /oauth/callback [get]
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	conn, err := s.connections.CompleteAuthorization(r.Context(), driving.CompleteAuthorizationRequest{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	})

	if s.callbackRedirect != "" {
		s.redirectAfterCallback(w, r, conn, err)
		return
	}
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ConnectionResponse{
		Platform:    conn.Platform,
		Status:      conn.Status,
		Scopes:      conn.Scopes,
		ExpiresAt:   conn.TokenExpiresAt,
		ConnectedAt: conn.ConnectedAt,
	})
}

func (s *Server) redirectAfterCallback(w http.ResponseWriter, r *http.Request, conn *domain.PlatformConnection, err error) {
	target, perr := url.Parse(s.callbackRedirect)
	if perr != nil {
		writeError(w, http.StatusInternalServerError, "invalid callback redirect")
		return
	}
	q := target.Query()
	if err != nil {
		_, code := classify(err)
		q.Set("status", "error")
		q.Set("error", code)
	} else {
		q.Set("status", "connected")
		q.Set("platform", string(conn.Platform))
	}
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

// handleDisconnect godoc
// @Summary      Disconnect platform
// @Description  Revokes the grant where supported and deletes the connection. Succeeds when no connection exists.
// @Tags         Connections
// @Security     BearerAuth
// @Param        platform  path  string  true  "Platform key"
// @Success      204
// @Failure      401  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /connections/{platform} [delete]
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := s.connections.Disconnect(r.Context(), authCtx.UserID, domain.Platform(r.PathValue("platform"))); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleBorrowToken godoc
// @Summary      Borrow access token
// @Description  Returns a fresh plaintext access token for a user's platform. Service role only.
// @Tags         Internal
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        platform  path      string         true  "Platform key"
// @Param        request   body      BorrowRequest  true  "Owner"
// @Success      200       {object}  driving.BorrowedToken
// @Failure      403       {object}  ErrorResponse
// @Failure      409       {object}  ErrorResponse  "User must reauthorize, or a concurrent update won"
// @Failure      503       {object}  ErrorResponse  "Provider unavailable"
// @Router       /connections/{platform}/token [post]
func (s *Server) handleBorrowToken(w http.ResponseWriter, r *http.Request) {
	var req BorrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tok, err := s.connections.BorrowAccessToken(r.Context(), req.UserID, domain.Platform(r.PathValue("platform")))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, tok)
}

// handleRecordSync godoc
// @Summary      Record sync outcome
// @Description  Stores the result of a data extraction run. Service role only.
// @Tags         Internal
// @Accept       json
// @Security     BearerAuth
// @Param        platform  path  string             true  "Platform key"
// @Param        request   body  RecordSyncRequest  true  "Outcome"
// @Success      204
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /connections/{platform}/sync [post]
func (s *Server) handleRecordSync(w http.ResponseWriter, r *http.Request) {
	var req RecordSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.connections.RecordSync(r.Context(), req.UserID, domain.Platform(r.PathValue("platform")), req.Status); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// classify maps a service error to an HTTP status and a stable code.
func classify(err error) (int, string) {
	var oauthErr *driving.OAuthError
	if errors.As(err, &oauthErr) {
		return http.StatusBadRequest, oauthErr.Code
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrUnknownProvider):
		return http.StatusNotFound, "unknown_provider"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrStateReplay):
		return http.StatusConflict, "state_replay"
	case errors.Is(err, domain.ErrStateExpired):
		return http.StatusBadRequest, "state_expired"
	case errors.Is(err, domain.ErrStateNotFound):
		return http.StatusBadRequest, "state_not_found"
	case errors.Is(err, domain.ErrStateTampered):
		return http.StatusBadRequest, "state_tampered"
	case errors.Is(err, domain.ErrNeedsReauth):
		return http.StatusConflict, "needs_reauth"
	case errors.Is(err, domain.ErrProviderUnavailable):
		return http.StatusServiceUnavailable, "provider_unavailable"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrTokenExchange):
		return http.StatusBadGateway, "token_exchange_failed"
	case errors.Is(err, domain.ErrRefreshFailed):
		return http.StatusBadGateway, "refresh_failed"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	}
	return http.StatusInternalServerError, "internal"
}

// writeDomainError writes err with its mapped status. Internal errors are
// logged and hidden from the caller.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		msg = "internal server error"
	}
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
