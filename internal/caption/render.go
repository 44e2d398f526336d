package caption

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/caption-sync/backend/internal/transcript"
)

// Renderer talks to the remote rendering service: subtitle burn-in,
// transcript document generation, and retrieval of rendered outputs.
type Renderer struct {
	baseURL    string
	httpClient *http.Client
}

func NewRenderer(baseURL string) *Renderer {
	return &Renderer{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Minute, // burn-in re-encodes the whole video
		},
	}
}

type renderRequest struct {
	Filename string                `json:"filename"`
	Segments transcript.Transcript `json:"segments"`
}

type burnInResponse struct {
	OutputFilename string `json:"output_filename"`
}

// BurnIn asks the renderer to composite the segments into the video and
// returns the server-side name of the rendered output.
func (c *Renderer) BurnIn(ctx context.Context, filename string, segments transcript.Transcript) (string, error) {
	body, err := c.post(ctx, "/burnin", renderRequest{Filename: filename, Segments: segments})
	if err != nil {
		return "", err
	}

	var result burnInResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode burn-in response: %w", err)
	}
	if result.OutputFilename == "" {
		return "", fmt.Errorf("burn-in response missing output filename")
	}
	return result.OutputFilename, nil
}

// RenderDocument asks the renderer for a downloadable transcript document
// and returns the raw blob.
func (c *Renderer) RenderDocument(ctx context.Context, filename string, segments transcript.Transcript) ([]byte, error) {
	return c.post(ctx, "/document", renderRequest{Filename: filename, Segments: segments})
}

// FetchOutput streams a previously rendered output file.
func (c *Renderer) FetchOutput(ctx context.Context, outputFilename string) (io.ReadCloser, error) {
	reqURL := c.baseURL + "/outputs/" + url.PathEscape(outputFilename)
	httpReq, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch output: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("render service error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp.Body, nil
}

func (c *Renderer) post(ctx context.Context, path string, req renderRequest) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	log.Printf("[caption] render %s for %s (%d segments)", path, req.Filename, len(req.Segments))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("render request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("render service error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
