package caption

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caption-sync/backend/internal/transcript"
)

// ErrNoSpeech is the domain-level failure for a transcription that came
// back empty. It is distinct from transport errors: the service answered,
// there was just nothing to transcribe.
var ErrNoSpeech = errors.New("no speech detected")

// Transcriber talks to the remote speech-recognition service.
type Transcriber struct {
	baseURL    string
	httpClient *http.Client
}

func NewTranscriber(baseURL string) *Transcriber {
	return &Transcriber{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Minute, // transcription can be very long
		},
	}
}

// TranscribeResult is the transcription service's response. Filename is
// the service-side handle later translation and render calls refer to.
type TranscribeResult struct {
	Filename string                `json:"filename"`
	Segments transcript.Transcript `json:"segments"`
}

// Transcribe uploads the video file and returns the time-coded segments.
func (c *Transcriber) Transcribe(ctx context.Context, filePath string) (*TranscribeResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}
	defer file.Close()

	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("copy video data: %w", err)
	}
	writer.Close()

	url := c.baseURL + "/transcribe"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	log.Printf("[caption] transcribing %s via %s", filepath.Base(filePath), url)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("transcribe request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcribe service error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result TranscribeResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode transcribe response: %w", err)
	}
	if len(result.Segments) == 0 {
		return nil, ErrNoSpeech
	}

	result.Segments = transcript.Normalize(result.Segments)
	return &result, nil
}
