// File: internal/llmclient/ollama.go
// Description: Streaming Ollama client. Assembles the NDJSON response stream
// into one string, retrying transient failures with exponential backoff.

package llmclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formscout/internal/config"
)

var (
	// ErrBackendUnavailable signals that the backend failed its liveness
	// probe. Callers should switch to their deterministic fallback.
	ErrBackendUnavailable = errors.New("text generation backend is unavailable")
	// ErrGenerationFailed wraps any terminal generation failure after
	// retries are exhausted.
	ErrGenerationFailed = errors.New("text generation failed")
)

// OllamaClient talks to a local or remote Ollama server over its streaming
// HTTP API.
type OllamaClient struct {
	endpoint   string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
	config     config.LLMConfig

	// backoffFactory is swappable so tests do not sit through real delays.
	backoffFactory func() backoff.BackOff

	probeOnce sync.Once
	probeOK   bool
}

// -- Ollama API request/response structures (internal to this file) --

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaStreamChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewOllamaClient initializes the client. The endpoint is not contacted
// until the first Available or Generate call.
func NewOllamaClient(cfg config.LLMConfig, logger *zap.Logger) (*OllamaClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("ollama endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama model name is required")
	}
	return &OllamaClient{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		model:    cfg.Model,
		config:   cfg,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		logger: logger.Named("llm_client.ollama"),
		backoffFactory: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = cfg.RetryDelay
			b.MaxInterval = 30 * time.Second
			b.MaxElapsedTime = 2 * time.Minute
			return backoff.WithMaxRetries(b, uint64(max(cfg.MaxRetries, 0)))
		},
	}, nil
}

// Available probes GET /api/tags once and memoizes the outcome for the
// client's lifetime. A backend that was down at startup stays treated as
// down; restarting the run picks it back up.
func (c *OllamaClient) Available(ctx context.Context) bool {
	c.probeOnce.Do(func() {
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.endpoint+"/api/tags", nil)
		if err != nil {
			return
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Warn("Ollama liveness probe failed", zap.String("endpoint", c.endpoint), zap.Error(err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			c.logger.Warn("Ollama liveness probe returned non-OK status", zap.Int("status", resp.StatusCode))
			return
		}

		var tags ollamaTagsResponse
		if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
			c.logger.Warn("Ollama tags response is not valid JSON", zap.Error(err))
			return
		}
		c.probeOK = true

		if !c.hasModel(tags) {
			// Ollama pulls on demand for some setups, so a missing tag is
			// worth a warning but not a hard failure.
			c.logger.Warn("Configured model not present in Ollama tags",
				zap.String("model", c.model))
		}
	})
	return c.probeOK
}

func (c *OllamaClient) hasModel(tags ollamaTagsResponse) bool {
	for _, m := range tags.Models {
		if m.Name == c.model || strings.SplitN(m.Name, ":", 2)[0] == c.model {
			return true
		}
	}
	return false
}

// Generate sends one prompt and returns the assembled stream text. Transient
// failures (network errors, 5xx, 429) are retried with exponential backoff;
// anything else aborts immediately.
func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	if !c.Available(ctx) {
		return "", ErrBackendUnavailable
	}

	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: true,
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to marshal request payload: %w", ErrGenerationFailed, err)
	}

	var responseContent string

	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/generate", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")

		startTime := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			c.logger.Warn("Network error during LLM request, retrying...", zap.Error(err))
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return c.handleAPIError(resp)
		}

		text, err := c.consumeStream(ctx, resp.Body)
		if err != nil {
			return err
		}

		c.logger.Info("LLM generation complete (Ollama)",
			zap.Duration("duration", time.Since(startTime)),
			zap.Int("response_chars", len(text)),
		)
		responseContent = text
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(c.backoffFactory(), ctx)); err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	return responseContent, nil
}

// consumeStream reads NDJSON chunks until the server signals done. A stream
// that stalls longer than the configured stream timeout is abandoned and the
// attempt counts as transient.
func (c *OllamaClient) consumeStream(ctx context.Context, r io.Reader) (string, error) {
	streamCtx := ctx
	if c.config.StreamTimeout > 0 {
		var cancel context.CancelFunc
		streamCtx, cancel = context.WithTimeout(ctx, c.config.StreamTimeout)
		defer cancel()
	}

	type scanResult struct {
		text string
		err  error
	}
	resultCh := make(chan scanResult, 1)

	go func() {
		var sb strings.Builder
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var chunk ollamaStreamChunk
			if err := json.Unmarshal(line, &chunk); err != nil {
				resultCh <- scanResult{err: backoff.Permanent(fmt.Errorf("failed to decode stream chunk: %w", err))}
				return
			}
			if chunk.Error != "" {
				resultCh <- scanResult{err: backoff.Permanent(fmt.Errorf("ollama reported error: %s", chunk.Error))}
				return
			}
			sb.WriteString(chunk.Response)
			if chunk.Done {
				resultCh <- scanResult{text: sb.String()}
				return
			}
		}
		if err := scanner.Err(); err != nil {
			resultCh <- scanResult{err: fmt.Errorf("stream read failed: %w", err)}
			return
		}
		// Stream ended without a done marker; treat as transient.
		resultCh <- scanResult{err: fmt.Errorf("stream ended before completion signal")}
	}()

	select {
	case res := <-resultCh:
		return res.text, res.err
	case <-streamCtx.Done():
		c.logger.Warn("LLM stream stalled, abandoning attempt",
			zap.Duration("timeout", c.config.StreamTimeout))
		return "", fmt.Errorf("stream timed out: %w", streamCtx.Err())
	}
}

func (c *OllamaClient) handleAPIError(resp *http.Response) error {
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	c.logger.Error("Ollama API returned error status",
		zap.Int("status", resp.StatusCode),
		zap.String("response", string(respBody)))
	err := fmt.Errorf("ollama API error: status %d, body: %s", resp.StatusCode, string(respBody))

	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return err // Transient, retry.
	default:
		return backoff.Permanent(err)
	}
}
