package preview

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/porter/internal/capture"
)

// StreamHandler serves MJPEG frames from the camera. Each viewer session
// holds the Preview camera claim for its lifetime, so tracking can revoke
// the stream when it needs the camera.
type StreamHandler struct {
	camera  capture.Camera
	arbiter *capture.Arbiter
}

// NewStreamHandler creates a new StreamHandler with the given camera and
// ownership arbiter.
func NewStreamHandler(camera capture.Camera, arbiter *capture.Arbiter) *StreamHandler {
	return &StreamHandler{camera: camera, arbiter: arbiter}
}

// ServeHTTP streams MJPEG frames to the connected client.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.arbiter.Acquire(capture.OwnerPreview); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{
			"error": err.Error(),
		})
		return
	}
	defer h.arbiter.Release(capture.OwnerPreview)

	if !h.camera.IsOpen() {
		if err := h.camera.Open(); err != nil {
			http.Error(w, "Failed to open camera", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for {
		select {
		case <-r.Context().Done():
			return
		default:
		}

		// Tracking revoked the claim: stop streaming so it can take
		// the camera.
		if h.arbiter.Revoked(capture.OwnerPreview) {
			return
		}

		frame, err := h.camera.ReadFrame()
		if err != nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		// Encode as JPEG
		buf, err := gocv.IMEncode(".jpg", *frame)
		frame.Close()
		if err != nil {
			continue
		}

		// Write MJPEG frame
		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", buf.Len())
		w.Write(buf.GetBytes())
		fmt.Fprintf(w, "\r\n")
		buf.Close()

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}

		time.Sleep(66 * time.Millisecond) // ~15 FPS
	}
}
