package caption

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/caption-sync/backend/internal/transcript"
)

// Translator talks to the remote machine-translation service. Requests
// reference the filename returned by a prior transcription; responses are
// index-aligned in timing to the original segments.
type Translator struct {
	baseURL    string
	httpClient *http.Client
}

func NewTranslator(baseURL string) *Translator {
	return &Translator{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
	}
}

type translateRequest struct {
	Filename string `json:"filename"`
	Language string `json:"language"`
}

type translateResponse struct {
	Segments transcript.Transcript `json:"segments"`
}

// Translate fetches the transcript for filename translated into language.
func (c *Translator) Translate(ctx context.Context, filename, language string) (transcript.Transcript, error) {
	payload, err := json.Marshal(translateRequest{Filename: filename, Language: language})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/translate"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	log.Printf("[caption] translating %s to %s", filename, language)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("translate request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("translate service error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result translateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode translate response: %w", err)
	}

	return transcript.Normalize(result.Segments), nil
}
