package asset

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/drawings/upload", h.Upload).Methods("POST")
	r.HandleFunc("/drawings/{drawingId}", h.Remove).Methods("DELETE")
	r.PathPrefix("/drawings/").Handler(h.Serve()).Methods("GET")
	return r
}

func TestUploadAndDeleteDrawing(t *testing.T) {
	h := NewHandler(t.TempDir())
	r := newRouter(h)

	// CreateFormFile marks the part application/octet-stream, which the
	// content-type check rejects; exercise Upload through a crafted part.
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{`form-data; name="file"; filename="plan.png"`}
	hdr["Content-Type"] = []string{"image/png"}
	part, err := w.CreatePart(hdr)
	require.NoError(t, err)
	require.NoError(t, png.Encode(part, image.NewRGBA(image.Rect(0, 0, 4, 3))))
	require.NoError(t, w.WriteField("scale", "0.5"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/drawings/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Width)
	assert.Equal(t, 3, resp.Height)
	assert.Equal(t, 0.5, resp.Scale)
	assert.Equal(t, "plan.png", resp.Name)
	assert.Contains(t, resp.URL, resp.ID)

	// The stored file is served back.
	getReq := httptest.NewRequest(http.MethodGet, resp.URL, nil)
	getRec := httptest.NewRecorder()
	r.ServeHTTP(getRec, getReq)
	assert.Equal(t, http.StatusOK, getRec.Code)

	// Delete removes it; a second delete reports not found.
	delReq := httptest.NewRequest(http.MethodDelete, "/drawings/"+resp.ID, nil)
	delRec := httptest.NewRecorder()
	r.ServeHTTP(delRec, delReq)
	assert.Equal(t, http.StatusNoContent, delRec.Code)

	delRec = httptest.NewRecorder()
	r.ServeHTTP(delRec, httptest.NewRequest(http.MethodDelete, "/drawings/"+resp.ID, nil))
	assert.Equal(t, http.StatusNotFound, delRec.Code)
}

func TestDeleteRejectsNonDrawingID(t *testing.T) {
	h := NewHandler(t.TempDir())
	r := newRouter(h)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/drawings/notanid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadRejectsBadScale(t *testing.T) {
	h := NewHandler(t.TempDir())
	r := newRouter(h)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{`form-data; name="file"; filename="plan.png"`}
	hdr["Content-Type"] = []string{"image/png"}
	part, err := w.CreatePart(hdr)
	require.NoError(t, err)
	require.NoError(t, png.Encode(part, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	require.NoError(t, w.WriteField("scale", "-1"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/drawings/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
