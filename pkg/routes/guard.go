package routes

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/canopysoft/atrium/pkg/contextkeys"
	"github.com/canopysoft/atrium/pkg/httputil"
	"github.com/canopysoft/atrium/pkg/principal"
)

// Guard returns mux middleware that authorizes every request path against
// the engine. Browser navigations are redirected to the access-denied page
// on either denial outcome; API callers get a status code instead, with
// 404 reserved for unknown paths so route probing reveals nothing extra.
func Guard(engine *Engine) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, _ := r.Context().Value(contextkeys.PrincipalKey).(*principal.Principal)

			decision, err := engine.Authorize(r.Context(), p, r.URL.Path)
			if err != nil {
				httputil.WriteInternalError(w, err)
				return
			}
			if decision.Allowed() {
				next.ServeHTTP(w, r)
				return
			}

			if wantsJSON(r) {
				if decision.Outcome == OutcomeNotFound {
					httputil.WriteNotFound(w, "no such route")
				} else {
					httputil.WriteForbidden(w, "access denied")
				}
				return
			}
			http.Redirect(w, r, decision.Redirect, http.StatusFound)
		})
	}
}

func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
