package handlers

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/caption-sync/backend/internal/storage"
)

// OutputFetcher retrieves rendered output files from the render service.
type OutputFetcher interface {
	FetchOutput(ctx context.Context, outputFilename string) (io.ReadCloser, error)
}

// VideoHandler serves locally stored uploads and proxies rendered
// outputs from the render service.
type VideoHandler struct {
	uploadPath string
	outputs    OutputFetcher
}

func NewVideoHandler(uploadPath string, outputs OutputFetcher) *VideoHandler {
	return &VideoHandler{uploadPath: uploadPath, outputs: outputs}
}

// ServeVideo streams an uploaded video with range support.
func (h *VideoHandler) ServeVideo(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	full, err := storage.Resolve(h.uploadPath, name)
	if err != nil {
		jsonError(w, "invalid path", http.StatusForbidden)
		return
	}
	if _, err := os.Stat(full); os.IsNotExist(err) {
		jsonError(w, "video not found", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, full)
}

// ServeDownload streams a rendered output (burned-in video) from the
// render service through to the client.
func (h *VideoHandler) ServeDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		jsonError(w, "output name required", http.StatusBadRequest)
		return
	}

	body, err := h.outputs.FetchOutput(r.Context(), name)
	if err != nil {
		jsonError(w, "rendered output not available: "+err.Error(), http.StatusBadGateway)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	io.Copy(w, body)
}
