package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/nfnt/resize"
	gocache "github.com/patrickmn/go-cache"

	"github.com/visiona/framecast/internal/capture"
)

// handleSnapshot answers one request with one freshly captured frame:
// 200 with the JPEG on success, 404 on an unavailable frame, 503 when the
// device does not answer within the configured deadline. An optional
// ?width= query downscales the image. Encoded results are cached for a
// short TTL so request bursts do not each hit the device.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	width := 0
	if q := r.URL.Query().Get("width"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 || n > 8192 {
			http.Error(w, "width must be a positive integer", http.StatusBadRequest)
			return
		}
		width = n
	}

	cacheKey := "snapshot:" + strconv.Itoa(width)
	if cached, found := s.snapshots.Get(cacheKey); found {
		writeJPEG(w, cached.([]byte))
		return
	}

	frame, err := s.captureWithDeadline(r)
	switch {
	case err == nil:
	case errors.Is(err, capture.ErrUnavailable):
		http.Error(w, fmt.Sprintf("camera frame not available: %v", err), http.StatusNotFound)
		return
	default:
		http.Error(w, fmt.Sprintf("snapshot timed out: %v", err), http.StatusServiceUnavailable)
		return
	}

	data := frame.Data
	if width > 0 {
		data, err = scaleJPEG(data, uint(width))
		if err != nil {
			slog.Warn("server: snapshot resize failed", "width", width, "error", err)
			http.Error(w, "snapshot resize failed", http.StatusInternalServerError)
			return
		}
	}

	s.snapshots.Set(cacheKey, data, gocache.DefaultExpiration)
	writeJPEG(w, data)
}

// captureWithDeadline runs the blocking read off the request path and
// gives up at the configured timeout or on client disconnect. The read
// itself cannot be interrupted; a late result is simply dropped.
func (s *Server) captureWithDeadline(r *http.Request) (capture.Frame, error) {
	type result struct {
		frame capture.Frame
		err   error
	}

	ch := make(chan result, 1)
	go func() {
		frame, err := s.src.Frame()
		ch <- result{frame, err}
	}()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.SnapshotTimeout())
	defer cancel()

	select {
	case res := <-ch:
		return res.frame, res.err
	case <-ctx.Done():
		return capture.Frame{}, ctx.Err()
	}
}

func writeJPEG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(data)
}

// scaleJPEG decodes, downscales to the requested width preserving aspect
// ratio, and re-encodes.
func scaleJPEG(data []byte, width uint) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	scaled := resize.Resize(width, 0, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}
