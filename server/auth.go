package server

import (
	"errors"
	"net/http"

	"github.com/hazyhaar/jobclip/kit"
	"github.com/hazyhaar/jobclip/store"
)

// requireAuth enforces HTTP Basic credentials against the account table and
// stamps the caller's identity into the request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="jobclip"`)
			writeError(w, 401, errors.New("authentication required"))
			return
		}
		user, err := s.st.Authenticate(r.Context(), username, password)
		if err != nil {
			if errors.Is(err, store.ErrBadCredentials) {
				writeError(w, 401, store.ErrBadCredentials)
				return
			}
			writeError(w, 500, err)
			return
		}

		ctx := kit.WithUserID(r.Context(), user.ID)
		ctx = kit.WithUsername(ctx, user.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
