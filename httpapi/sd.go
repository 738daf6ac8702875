package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/kim1fw/memcard/config"
	"github.com/kim1fw/memcard/imd"
)

// handleSDDir serves GET /sd and GET /sd/dir: stream the file list, one
// line per file.
func (s *Server) handleSDDir(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		status(w, http.StatusMethodNotAllowed)
		return
	}

	entries, err := s.FS.ReadDir("/")
	if err != nil {
		status(w, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)

	for _, e := range entries {
		fmt.Fprintf(w, "%s\n", e.Name())
	}
}

// handleSDFile serves GET/POST/PATCH/DELETE /sd/file.
func (s *Server) handleSDFile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.getSDFile(w, r)
	case http.MethodPost:
		s.postSDFile(w, r)
	case http.MethodPatch:
		s.patchSDFile(w, r)
	case http.MethodDelete:
		s.deleteSDFile(w, r)
	default:
		status(w, http.StatusMethodNotAllowed)
	}
}

// getSDFile downloads fname, refusing if the image is mounted anywhere.
func (s *Server) getSDFile(w http.ResponseWriter, r *http.Request) {
	fname := r.URL.Query().Get("fname")
	if fname == "" {
		status(w, http.StatusBadRequest)
		return
	}
	if s.Manager.MountedName(fname) {
		conflict(w, "Image mounted")
		return
	}

	f, err := s.FS.Open(fname, false)
	if err != nil {
		status(w, http.StatusNotFound)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)

	buf := make([]byte, 4096)
	io.CopyBuffer(w, f, buf)
}

// postSDFile uploads the request body to fname, or (when nfname is
// present) copies fname to nfname instead, honoring owrite.
func (s *Server) postSDFile(w http.ResponseWriter, r *http.Request) {
	fname := r.URL.Query().Get("fname")
	if fname == "" {
		status(w, http.StatusBadRequest)
		return
	}

	if nfname := r.URL.Query().Get("nfname"); nfname != "" {
		overwrite := r.URL.Query().Get("owrite") != ""
		unlock, lerr := s.lockController(r.Context())
		if lerr != nil {
			status(w, http.StatusInternalServerError)
			return
		}
		defer unlock()
		if err := s.Manager.Copy(fname, nfname, overwrite); err != nil {
			s.writeImdErr(w, err)
			return
		}
		status(w, http.StatusNoContent)
		return
	}

	f, err := s.FS.Open(fname, true)
	if err != nil {
		status(w, http.StatusInternalServerError)
		return
	}
	defer f.Close()

	if err := f.Truncate(0); err != nil {
		status(w, http.StatusInternalServerError)
		return
	}

	buf := make([]byte, 4096)
	if _, err := io.CopyBuffer(f, r.Body, buf); err != nil {
		status(w, http.StatusInternalServerError)
		return
	}
	if err := f.Sync(); err != nil {
		status(w, http.StatusInsufficientStorage)
		return
	}

	if r.URL.Query().Get("verify") == "1" {
		// Supplemented feature: surface a checksum of the freshly-written
		// image so the caller can sanity-check it before mounting.
		if _, err := f.Seek(0, io.SeekStart); err == nil {
			if disk, err := imd.Parse(f, fname, true); err == nil {
				if sum, err := disk.Checksum(); err == nil {
					w.Header().Set("X-Checksum", strconv.FormatUint(uint64(sum), 16))
				}
				disk.Close()
			}
		}
	}

	status(w, http.StatusNoContent)
}

func (s *Server) patchSDFile(w http.ResponseWriter, r *http.Request) {
	fname := r.URL.Query().Get("fname")
	nfname := r.URL.Query().Get("nfname")
	if fname == "" || nfname == "" {
		status(w, http.StatusBadRequest)
		return
	}
	unlock, lerr := s.lockController(r.Context())
	if lerr != nil {
		status(w, http.StatusInternalServerError)
		return
	}
	defer unlock()
	if err := s.Manager.Rename(fname, nfname); err != nil {
		s.writeImdErr(w, err)
		return
	}
	status(w, http.StatusNoContent)
}

func (s *Server) deleteSDFile(w http.ResponseWriter, r *http.Request) {
	fname := r.URL.Query().Get("fname")
	if fname == "" {
		status(w, http.StatusBadRequest)
		return
	}
	unlock, lerr := s.lockController(r.Context())
	if lerr != nil {
		status(w, http.StatusInternalServerError)
		return
	}
	defer unlock()
	if err := s.Manager.Erase(fname); err != nil {
		s.writeImdErr(w, err)
		return
	}
	status(w, http.StatusNoContent)
}

// handleSDMnt serves GET (list), POST (mount), DELETE (unmount) /sd/mnt.
func (s *Server) handleSDMnt(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.getSDMnt(w, r)
	case http.MethodPost:
		s.postSDMnt(w, r)
	case http.MethodDelete:
		s.deleteSDMnt(w, r)
	default:
		status(w, http.StatusMethodNotAllowed)
	}
}

func (s *Server) getSDMnt(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	for drive, d := range s.Manager.Drives() {
		fmt.Fprintf(w, "%d %s %t\n", drive, d.Name, d.ReadOnly)
	}
}

func (s *Server) postSDMnt(w http.ResponseWriter, r *http.Request) {
	img := r.URL.Query().Get("img")
	driveStr := r.URL.Query().Get("drive")
	ro := r.URL.Query().Get("ro") != ""

	drive, err := strconv.Atoi(driveStr)
	if err != nil || img == "" {
		status(w, http.StatusBadRequest)
		return
	}

	unlock, err := s.lockController(r.Context())
	if err != nil {
		status(w, http.StatusInternalServerError)
		return
	}
	defer unlock()

	if err := s.Manager.Mount(drive, img, ro); err != nil {
		s.writeImdErr(w, err)
		return
	}
	status(w, http.StatusNoContent)
}

func (s *Server) deleteSDMnt(w http.ResponseWriter, r *http.Request) {
	driveStr := r.URL.Query().Get("drive")
	drive, err := strconv.Atoi(driveStr)
	if err != nil {
		status(w, http.StatusBadRequest)
		return
	}

	unlock, lerr := s.lockController(r.Context())
	if lerr != nil {
		status(w, http.StatusInternalServerError)
		return
	}
	defer unlock()

	if err := s.Manager.Unmount(drive); err != nil {
		s.writeImdErr(w, err)
		return
	}
	status(w, http.StatusNoContent)
}

// handleSDMntSave persists the current drive mounts into the config blob
// and saves it to disk.
func (s *Server) handleSDMntSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		status(w, http.StatusMethodNotAllowed)
		return
	}

	s.Config.Drives = [config.NumDrives]config.DriveConfig{}
	for drive, d := range s.Manager.Drives() {
		if drive < 0 || drive >= config.NumDrives {
			continue
		}
		s.Config.Drives[drive] = config.DriveConfig{ImageName: d.Name, ReadOnly: d.ReadOnly}
	}

	if err := config.Save(s.ConfigPath, s.Config); err != nil {
		status(w, http.StatusInternalServerError)
		return
	}
	status(w, http.StatusNoContent)
}

// handleSDMntStatus is a supplemented diagnostic: a live MSR/HSR-derived
// snapshot as a plain-text line.
func (s *Server) handleSDMntStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		status(w, http.StatusMethodNotAllowed)
		return
	}

	snap := s.Controller.Status()
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "drive=%d track=%d head=0 busy=%t\n", snap.Drive, snap.Cylinder, snap.Busy)
}

// writeImdErr maps imd's mount-lifecycle sentinel errors onto the
// handlers' status code taxonomy.
func (s *Server) writeImdErr(w http.ResponseWriter, err error) {
	switch err {
	case imd.ErrImgMounted:
		conflict(w, "Image mounted")
	case imd.ErrDrvMounted:
		conflict(w, "Drive mounted")
	case imd.ErrNotFound:
		status(w, http.StatusNotFound)
	case imd.ErrImgName:
		status(w, http.StatusBadRequest)
	case imd.ErrImgInvalid:
		status(w, 499)
	default:
		status(w, http.StatusInternalServerError)
	}
}
