// Package asset stores floor plan reference drawings uploaded as background
// images for duct layout tracing.
package asset

import (
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/ductline/ductline/backend-go/internal/typeid"
)

const maxUploadSize = 10 << 20 // 10MB

// UploadResponse is returned from the upload endpoint.
type UploadResponse struct {
	ID     string  `json:"id"`
	URL    string  `json:"url"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Scale  float64 `json:"scale"` // world units per pixel
	Name   string  `json:"name"`
}

// Handler serves floor plan upload and retrieval endpoints.
type Handler struct {
	dir string // directory to store drawing files
}

// NewHandler creates a handler that stores drawings in dir.
func NewHandler(dir string) *Handler {
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Error("create drawing dir", "error", err, "dir", dir)
	}
	return &Handler{dir: dir}
}

// Upload handles POST /drawings/upload (multipart form with a "file" field
// and an optional "scale" field giving world units per pixel).
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "file too large (max 10MB)", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/png") && !strings.HasPrefix(contentType, "image/jpeg") {
		http.Error(w, "only PNG and JPEG floor plans are supported", http.StatusBadRequest)
		return
	}

	// Uncalibrated plans default to one world unit per pixel.
	scale := 1.0
	if s := r.FormValue("scale"); s != "" {
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil || parsed <= 0 {
			http.Error(w, "scale must be a positive number", http.StatusBadRequest)
			return
		}
		scale = parsed
	}

	// Decode to get dimensions; JPEGs are re-encoded as PNG so the client
	// always traces over a lossless image.
	img, _, err := image.Decode(file)
	if err != nil {
		http.Error(w, "invalid image: "+err.Error(), http.StatusBadRequest)
		return
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	drawingID := typeid.NewDrawingID()
	filename := drawingID + ".png"
	filePath := filepath.Join(h.dir, filename)

	out, err := os.Create(filePath)
	if err != nil {
		slog.Error("create drawing file", "error", err)
		http.Error(w, "failed to save file", http.StatusInternalServerError)
		return
	}
	defer out.Close()

	if err := png.Encode(out, img); err != nil {
		slog.Error("encode png", "error", err)
		os.Remove(filePath)
		http.Error(w, "failed to encode image", http.StatusInternalServerError)
		return
	}

	resp := UploadResponse{
		ID:     drawingID,
		URL:    fmt.Sprintf("/drawings/%s", filename),
		Width:  width,
		Height: height,
		Scale:  scale,
		Name:   header.Filename,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// Serve returns an http.Handler that serves stored drawings with caching headers.
func (h *Handler) Serve() http.Handler {
	fs := http.FileServer(http.Dir(h.dir))
	return http.StripPrefix("/drawings/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drawing IDs are unique, so files are immutable
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		fs.ServeHTTP(w, r)
	}))
}

// Remove handles DELETE /drawings/{drawingId}.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	drawingID := mux.Vars(r)["drawingId"]
	// Reject anything that is not a drawing id before it touches a path.
	if err := typeid.Validate(drawingID, typeid.PrefixDrawing); err != nil {
		http.Error(w, "invalid drawing id", http.StatusBadRequest)
		return
	}
	if err := h.Delete(drawingID); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete removes a drawing file from disk.
func (h *Handler) Delete(drawingID string) error {
	path := filepath.Join(h.dir, drawingID+".png")
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("drawing not found: %s", drawingID)
	}
	return nil
}
