package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
)

// GeminiService asks the browser-automation runner to generate media for
// a prompt. The runner drives the browser on its own; from here it is a
// single blocking HTTP call bounded by the caller's deadline, which is
// minutes-scale since generation is slow.
type GeminiService struct {
	runnerURL string
	client    *http.Client
}

func NewGeminiService(runnerURL string) *GeminiService {
	return &GeminiService{runnerURL: runnerURL, client: &http.Client{}}
}

type generateRequest struct {
	Prompt      string `json:"prompt"`
	ContentType string `json:"content_type"`
}

type generateResponse struct {
	FilePath string `json:"file_path"`
	Error    string `json:"error"`
}

// Generate returns the local path of the produced media file. The runner
// shares a volume with this process and writes its downloads there.
func (g *GeminiService) Generate(ctx context.Context, prompt, contentType string) (string, error) {
	payload, err := json.Marshal(generateRequest{Prompt: prompt, ContentType: contentType})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.runnerURL+"/generate", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("content generation request failed: %w", err)
	}
	defer resp.Body.Close()

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode generation response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || result.Error != "" {
		if result.Error == "" {
			result.Error = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("content generation failed: %s", result.Error)
	}

	if result.FilePath == "" {
		return "", fmt.Errorf("content generation returned no file")
	}
	if _, err := os.Stat(result.FilePath); err != nil {
		return "", fmt.Errorf("generated file is missing: %w", err)
	}

	return result.FilePath, nil
}
