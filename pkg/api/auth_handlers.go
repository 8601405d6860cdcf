package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/canopysoft/atrium/pkg/audit"
	"github.com/canopysoft/atrium/pkg/httputil"
	"github.com/canopysoft/atrium/pkg/middleware"
	"github.com/canopysoft/atrium/pkg/observability"
	"github.com/canopysoft/atrium/pkg/principal"
	"github.com/canopysoft/atrium/pkg/roles"
	"github.com/canopysoft/atrium/pkg/session"
	"github.com/canopysoft/atrium/pkg/sso"
)

const (
	sessionCookie = "atrium_session"
	stateCookie   = "atrium_oauth_state"
)

// IdentityExchanger is the part of the SSO provider the handlers need
type IdentityExchanger interface {
	InitiateLogin(w http.ResponseWriter, r *http.Request, state string)
	HandleCallback(ctx context.Context, code string) (*sso.Identity, error)
}

// UserDirectory maps identity provider subjects to stable user ids and
// recorded role assignments
type UserDirectory interface {
	EnsureUser(ctx context.Context, subject, email, name string, tenantID *string) (int64, error)
	AssignedRoles(ctx context.Context, userID int64) ([]int64, error)
}

// RoleFinder looks up roles by name within a tenant scope
type RoleFinder interface {
	GetByName(ctx context.Context, name string, tenantID *string) (*roles.Role, error)
}

// AuthHandlers handles the SSO login flow and session lifecycle
type AuthHandlers struct {
	provider IdentityExchanger
	sessions *session.Store
	users    UserDirectory
	roles    RoleFinder
	auditor  audit.Logger
	logger   *observability.Logger
}

// NewAuthHandlers creates a new AuthHandlers
func NewAuthHandlers(provider IdentityExchanger, sessions *session.Store, users UserDirectory, roleFinder RoleFinder, auditor audit.Logger, logger *observability.Logger) *AuthHandlers {
	return &AuthHandlers{
		provider: provider,
		sessions: sessions,
		users:    users,
		roles:    roleFinder,
		auditor:  auditor,
		logger:   logger,
	}
}

// RegisterRoutes registers authentication routes
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/login", h.Login).Methods("GET")
	router.HandleFunc("/auth/callback", h.Callback).Methods("GET")
	router.HandleFunc("/auth/logout", h.Logout).Methods("POST")
	router.HandleFunc("/auth/me", h.Me).Methods("GET")
}

// Login starts the OIDC authorization code flow
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	state, err := randomState()
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	h.provider.InitiateLogin(w, r, state)
}

// Callback completes the code flow: verifies state, exchanges the code,
// maps the asserted identity to a principal and opens a session
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stateParam := r.URL.Query().Get("state")
	cookie, err := r.Cookie(stateCookie)
	if err != nil || stateParam == "" || cookie.Value != stateParam {
		h.auditFailure(ctx, r, "state mismatch")
		httputil.WriteBadRequest(w, "invalid oauth state")
		return
	}
	clearCookie(w, stateCookie, "/auth")

	code := r.URL.Query().Get("code")
	if code == "" {
		h.auditFailure(ctx, r, "missing code")
		httputil.WriteBadRequest(w, "missing authorization code")
		return
	}

	identity, err := h.provider.HandleCallback(ctx, code)
	if err != nil {
		h.logger.WithError(err).Warn("SSO callback failed")
		h.auditFailure(ctx, r, err.Error())
		httputil.WriteUnauthorized(w, "authentication failed")
		return
	}

	p, err := h.buildPrincipal(ctx, identity)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	sess, err := h.sessions.Create(ctx, p)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	event := audit.NewEvent(ctx, audit.EventTypeAuthLogin, audit.EventStatusSuccess)
	event.UserID = &p.UserID
	event.TenantID = p.TenantID
	event.IPAddress = r.RemoteAddr
	event.Message = identity.Email
	h.auditor.Log(ctx, event)

	http.Redirect(w, r, "/", http.StatusFound)
}

// Logout deletes the server-side session and clears the cookie
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookie)
	if err == nil && cookie.Value != "" {
		if err := h.sessions.Delete(r.Context(), cookie.Value); err != nil {
			h.logger.WithError(err).Warn("failed to delete session")
		}
	}
	clearCookie(w, sessionCookie, "/")

	if p, ok := middleware.PrincipalFromRequest(r); ok && p != nil {
		event := audit.NewEvent(r.Context(), audit.EventTypeAuthLogout, audit.EventStatusSuccess)
		event.UserID = &p.UserID
		event.TenantID = p.TenantID
		h.auditor.Log(r.Context(), event)
	}
	httputil.WriteNoContent(w)
}

// Me returns the authenticated principal
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromRequest(r)
	if !ok || p == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	httputil.WriteSuccess(w, p)
}

// buildPrincipal turns a verified identity into a principal. Role names the
// provider asserts are resolved within the identity's tenant scope first,
// then against system roles; unknown names are skipped. Recorded role
// assignments from the directory are merged in.
func (h *AuthHandlers) buildPrincipal(ctx context.Context, identity *sso.Identity) (*principal.Principal, error) {
	userID, err := h.users.EnsureUser(ctx, identity.Subject, identity.Email, identity.Name, identity.TenantRef)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{})
	var roleIDs []int64
	add := func(id int64) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			roleIDs = append(roleIDs, id)
		}
	}

	for _, name := range identity.RoleNames {
		role, err := h.lookupRole(ctx, name, identity.TenantRef)
		if err != nil {
			var notFound *roles.NotFoundError
			if errors.As(err, &notFound) {
				h.logger.WithField("role", name).Debug("asserted role not found, skipping")
				continue
			}
			return nil, err
		}
		add(role.ID)
	}

	assigned, err := h.users.AssignedRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, id := range assigned {
		add(id)
	}

	return &principal.Principal{
		UserID:   userID,
		Email:    identity.Email,
		TenantID: identity.TenantRef,
		RoleIDs:  roleIDs,
	}, nil
}

func (h *AuthHandlers) lookupRole(ctx context.Context, name string, tenantID *string) (*roles.Role, error) {
	if tenantID != nil {
		role, err := h.roles.GetByName(ctx, name, tenantID)
		if err == nil {
			return role, nil
		}
		var notFound *roles.NotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}
	return h.roles.GetByName(ctx, name, nil)
}

func (h *AuthHandlers) auditFailure(ctx context.Context, r *http.Request, reason string) {
	event := audit.NewEvent(ctx, audit.EventTypeAuthLoginFailed, audit.EventStatusFailure)
	event.IPAddress = r.RemoteAddr
	event.Message = reason
	h.auditor.Log(ctx, event)
}

func clearCookie(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
	})
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
