package httpapi

import (
	"bufio"
	"encoding/binary"
	"io"
	"net/http"
	"strconv"

	"github.com/kim1fw/memcard/cell"
)

// parseHexParam reads name from the query string as a hex integer, the
// wire format start/count use.
func parseHexParam(r *http.Request, name string) (uint64, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(v, 16, 32)
	if err != nil {
		return 0, false
	}
	return n, true
}

// cellRangeReader streams the low data byte of [start, start+count) cells
// one at a time, so GET /ramrom/range never buffers the whole range into
// one allocation.
type cellRangeReader struct {
	store *cell.Store
	addr  uint32
	end   uint32
}

func (cr *cellRangeReader) Read(p []byte) (int, error) {
	if cr.addr >= cr.end {
		return 0, io.EOF
	}
	n := 0
	for n < len(p) && cr.addr < cr.end {
		p[n] = byte(cr.store.ReadCell(uint16(cr.addr)))
		n++
		cr.addr++
	}
	return n, nil
}

// handleRamromRange serves GET (stream raw bytes) and PATCH (overwrite
// raw 16-bit words, attribute bits included) for /ramrom/range.
func (s *Server) handleRamromRange(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.getRamromRange(w, r)
	case http.MethodPatch:
		s.patchRamromRange(w, r)
	default:
		status(w, http.StatusMethodNotAllowed)
	}
}

func (s *Server) getRamromRange(w http.ResponseWriter, r *http.Request) {
	start, ok := parseHexParam(r, "start")
	if !ok {
		status(w, http.StatusBadRequest)
		return
	}
	count, ok := parseHexParam(r, "count")
	if !ok {
		status(w, http.StatusBadRequest)
		return
	}
	if start >= cell.NumCells || start+count > cell.NumCells {
		status(w, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)

	rd := &cellRangeReader{store: s.Store, addr: uint32(start), end: uint32(start + count)}
	buf := make([]byte, 4096)
	io.CopyBuffer(w, rd, buf)
}

func (s *Server) patchRamromRange(w http.ResponseWriter, r *http.Request) {
	start, ok := parseHexParam(r, "start")
	if !ok || start >= cell.NumCells {
		status(w, http.StatusBadRequest)
		return
	}

	unlock, err := s.lockController(r.Context())
	if err != nil {
		status(w, http.StatusInternalServerError)
		return
	}
	defer unlock()

	br := bufio.NewReaderSize(r.Body, 4096)
	addr := uint32(start)
	word := make([]byte, 2) // big-endian on the wire, matching WriteRaw16's word shape
	for {
		if _, err := io.ReadFull(br, word); err != nil {
			break
		}
		if addr >= cell.NumCells {
			break
		}
		s.Store.WriteRaw16(uint16(addr), binary.BigEndian.Uint16(word))
		addr++
	}

	status(w, http.StatusNoContent)
}

// handleRamromRangeData serves PATCH /ramrom/range/data: overwrite only
// the low data byte of cells in [start, start+len(body)).
func (s *Server) handleRamromRangeData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		status(w, http.StatusMethodNotAllowed)
		return
	}

	start, ok := parseHexParam(r, "start")
	if !ok || start >= cell.NumCells {
		status(w, http.StatusBadRequest)
		return
	}

	unlock, err := s.lockController(r.Context())
	if err != nil {
		status(w, http.StatusInternalServerError)
		return
	}
	defer unlock()

	br := bufio.NewReaderSize(r.Body, 4096)
	addr := uint32(start)
	buf := make([]byte, 4096)
	for {
		n, err := br.Read(buf)
		for i := 0; i < n && addr < cell.NumCells; i++ {
			word := s.Store.ReadCell(uint16(addr))
			s.Store.WriteRaw16(uint16(addr), (word &^ 0x00FF) | uint16(buf[i]))
			addr++
		}
		if err != nil {
			break
		}
	}

	status(w, http.StatusNoContent)
}

// handleRamromAttr returns a handler for PATCH
// /ramrom/range/{enable,disable,setram,setrom}: flip op over [start,
// start+count).
func (s *Server) handleRamromAttr(op cell.RangeOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			status(w, http.StatusMethodNotAllowed)
			return
		}

		start, ok := parseHexParam(r, "start")
		if !ok || start >= cell.NumCells {
			status(w, http.StatusBadRequest)
			return
		}
		count, ok := parseHexParam(r, "count")
		if !ok {
			status(w, http.StatusBadRequest)
			return
		}

		unlock, err := s.lockController(r.Context())
		if err != nil {
			status(w, http.StatusInternalServerError)
			return
		}
		defer unlock()

		s.Store.RangeOp(uint16(start), int(count), op, 0)
		status(w, http.StatusNoContent)
	}
}

// handleRamromVideo serves GET/PUT /ramrom/video: the video-framebuffer
// base address, 2 KiB-aligned inside [0x2000, 0xDFFF].
func (s *Server) handleRamromVideo(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(strconv.FormatUint(uint64(s.Config.VideoBase), 16)))
	case http.MethodPut:
		addr, ok := parseHexParam(r, "address")
		if !ok {
			status(w, http.StatusBadRequest)
			return
		}
		if addr%0x0800 != 0 || addr < 0x2000 || addr > 0xDFFF {
			status(w, http.StatusBadRequest)
			return
		}
		s.Config.VideoBase = uint16(addr)
		status(w, http.StatusNoContent)
	default:
		status(w, http.StatusMethodNotAllowed)
	}
}

// handleRamromRestore serves PUT /ramrom/restore: reload the persisted
// default memory map into the live cell store.
func (s *Server) handleRamromRestore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		status(w, http.StatusMethodNotAllowed)
		return
	}

	unlock, err := s.lockController(r.Context())
	if err != nil {
		status(w, http.StatusInternalServerError)
		return
	}
	defer unlock()

	s.Store.CopyDefaultMap(&s.Config.MemoryMap)
	status(w, http.StatusNoContent)
}
