package handlers

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ibrbtv/backend/internal/middleware"
)

const (
	adminLoginPath   = "/admin/login"
	adminLandingPath = "/admin/videos"
)

// PageGate guards the admin page routes of the front-end bundle: visitors
// without a valid session are sent to the login page and signed-in admins
// skip it.
type PageGate struct {
	Verifier middleware.TokenVerifier
	Pages    http.Handler
}

func (g PageGate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := path.Clean("/" + r.URL.Path)

	if p == adminLoginPath || p == "/admin" || strings.HasPrefix(p, "/admin/") {
		authenticated := false
		if g.Verifier != nil {
			_, err := g.Verifier.Verify(middleware.AccessToken(r))
			authenticated = err == nil
		}

		switch {
		case p == adminLoginPath && authenticated:
			http.Redirect(w, r, adminLandingPath, http.StatusSeeOther)
			return
		case p != adminLoginPath && !authenticated:
			http.Redirect(w, r, adminLoginPath, http.StatusSeeOther)
			return
		}
	}

	if g.Pages == nil {
		http.NotFound(w, r)
		return
	}
	g.Pages.ServeHTTP(w, r)
}

// SinglePageApp serves files from dir and falls back to index.html for
// client-side routes.
func SinglePageApp(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w, http.MethodGet, http.MethodHead)
			return
		}
		name := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
		if info, err := os.Stat(name); err != nil || info.IsDir() {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		files.ServeHTTP(w, r)
	})
}
