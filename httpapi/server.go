// Package httpapi implements the HTTP control surface: one handler per
// route on a plain http.ServeMux, content types set explicitly per
// response, and chunked streaming for large bodies via io.CopyBuffer
// instead of building the whole response in memory.
//
// Grounded on example/web_server.go's net/http + gvisor wiring and on
// google-periph/experimental/cmd/periph-web/web_handlers.go's
// handler-per-route convention (one function per URI, an explicit method
// check at the top of each, an empty-bodied status code for the error
// path).
package httpapi

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/kim1fw/memcard/cell"
	"github.com/kim1fw/memcard/config"
	"github.com/kim1fw/memcard/fdc"
	"github.com/kim1fw/memcard/imd"
	"github.com/kim1fw/memcard/sdcard"
)

// defaultMutexTimeout bounds how long a handler waits for the controller
// mutex before giving up and returning HTTP 500.
const defaultMutexTimeout = 2 * time.Second

// Server holds every collaborator a handler might need and the registered
// mux. It owns no goroutines of its own; callers run it via http.Server.
type Server struct {
	Store      *cell.Store
	Manager    *imd.Manager
	Controller *fdc.Controller
	FS         sdcard.FS
	Config     *config.Config
	ConfigPath string

	MutexTimeout time.Duration

	Mux *http.ServeMux

	Logger *log.Logger
}

// NewServer builds a Server and registers every handler route, plus two
// supplemented diagnostics (GET /sd/mnt/status, GET /version).
func NewServer(store *cell.Store, mgr *imd.Manager, ctl *fdc.Controller, fs sdcard.FS, cfg *config.Config, configPath string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		Store:        store,
		Manager:      mgr,
		Controller:   ctl,
		FS:           fs,
		Config:       cfg,
		ConfigPath:   configPath,
		MutexTimeout: defaultMutexTimeout,
		Mux:          http.NewServeMux(),
		Logger:       logger,
	}

	s.Mux.HandleFunc("/ramrom/range", s.handleRamromRange)
	s.Mux.HandleFunc("/ramrom/range/data", s.handleRamromRangeData)
	s.Mux.HandleFunc("/ramrom/range/enable", s.handleRamromAttr(cell.OpEnable))
	s.Mux.HandleFunc("/ramrom/range/disable", s.handleRamromAttr(cell.OpDisable))
	s.Mux.HandleFunc("/ramrom/range/setram", s.handleRamromAttr(cell.OpSetRAM))
	s.Mux.HandleFunc("/ramrom/range/setrom", s.handleRamromAttr(cell.OpSetROM))
	s.Mux.HandleFunc("/ramrom/video", s.handleRamromVideo)
	s.Mux.HandleFunc("/ramrom/restore", s.handleRamromRestore)

	s.Mux.HandleFunc("/sd", s.handleSDDir)
	s.Mux.HandleFunc("/sd/dir", s.handleSDDir)
	s.Mux.HandleFunc("/sd/file", s.handleSDFile)
	s.Mux.HandleFunc("/sd/mnt", s.handleSDMnt)
	s.Mux.HandleFunc("/sd/mnt/save", s.handleSDMntSave)
	s.Mux.HandleFunc("/sd/mnt/status", s.handleSDMntStatus)

	s.Mux.HandleFunc("/version", s.handleVersion)

	return s
}

// ServeHTTP lets Server itself be handed to http.Server directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Mux.ServeHTTP(w, r)
}

// lockController acquires the controller mutex with the server's timeout.
// Every handler that writes cells of the store or changes images or
// mounts through the imd.Manager must hold it. Callers must call the returned
// unlock func (a no-op on failure).
func (s *Server) lockController(ctx context.Context) (unlock func(), err error) {
	if err := s.Controller.Lock(ctx, s.MutexTimeout); err != nil {
		return func() {}, err
	}
	return s.Controller.Unlock, nil
}

// status writes code with an empty body. Every status handlers return
// carries an empty body except 409, which conflict below covers.
func status(w http.ResponseWriter, code int) {
	w.WriteHeader(code)
}

// conflict writes HTTP 409 with a human-readable reason phrase, the only
// status that carries a body.
func conflict(w http.ResponseWriter, reason string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusConflict)
	w.Write([]byte(reason))
}
