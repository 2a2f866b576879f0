package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/visiona/framecast/internal/broadcast"
)

const streamBoundary = "frame"

// handleVideo serves the live stream as multipart/x-mixed-replace. The
// response stays open until the client disconnects or the pump terminates;
// a terminal capture failure is reported as one final text part instead of
// an unannounced hang.
func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	id := uuid.New().String()
	sub, err := s.bus.Subscribe(id)
	if err != nil {
		// Pump already terminated: refuse with a diagnostic rather than an
		// empty stream.
		http.Error(w, fmt.Sprintf("stream unavailable: %v", s.bus.Cause()), http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	slog.Debug("server: stream subscriber connected", "subscriber", id, "remote", r.RemoteAddr)
	defer slog.Debug("server: stream subscriber gone", "subscriber", id)

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+streamBoundary)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "close")

	ctx := r.Context()
	for {
		frame, err := sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Terminal pump failure: one last diagnostic part, then end.
			if errors.Is(err, broadcast.ErrPumpStopped) {
				writeTextPart(w, fmt.Sprintf("stream ended: %v", err))
				flusher.Flush()
			}
			return
		}

		if err := writeImagePart(w, frame.Data); err != nil {
			return
		}
		flusher.Flush()
	}
}

func writeImagePart(w http.ResponseWriter, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\n\r\n", streamBoundary); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}

func writeTextPart(w http.ResponseWriter, msg string) {
	fmt.Fprintf(w, "--%s\r\nContent-Type: text/plain\r\n\r\n%s\r\n--%s--\r\n", streamBoundary, msg, streamBoundary)
}
