package httpapi

import (
	"fmt"
	"net/http"
	"runtime/debug"
)

// handleVersion serves the supplemented GET /version: the build's module
// version string, the same mechanism cmd/tamago/main.go's moduleVersion()
// uses (runtime/debug.ReadBuildInfo).
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		status(w, http.StatusMethodNotAllowed)
		return
	}

	version := "(unknown)"
	if info, ok := debug.ReadBuildInfo(); ok {
		version = info.Main.Version
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, version)
}
