// Package upstream wraps the HTTP collaborators the chat engine depends on:
// the RAG knowledge service, the historical-experience search, the web-search
// service, the LLM generation endpoint, and the learning-submission endpoint.
// Every method issues exactly one outbound call with an explicit timeout and
// never retries; retry policy, if any, belongs to the caller.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/af-corp/chatcenter/internal/config"
)

// Client calls the upstream collaborators.
type Client struct {
	cfg    config.UpstreamConfig
	client *http.Client
}

func NewClient(cfg config.UpstreamConfig) *Client {
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        32,
				MaxIdleConnsPerHost: 32,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
	}
}

// searchHit is one result from the RAG search endpoint.
type searchHit struct {
	Text     string `json:"text"`
	Metadata struct {
		Source string `json:"source"`
	} `json:"metadata"`
}

// SearchKnowledge queries the RAG knowledge service and returns the hits
// joined into a source-annotated text block. An empty result is ("", nil),
// distinct from a failed call.
func (c *Client) SearchKnowledge(ctx context.Context, query string, topK int) (string, error) {
	return c.search(ctx, "rag", query, topK)
}

// SearchExperience queries the same search endpoint with the configured
// experience suffix appended to the query.
func (c *Client) SearchExperience(ctx context.Context, query string, topK int) (string, error) {
	return c.search(ctx, "experience", query+" "+c.cfg.ExperienceSuffix, topK)
}

func (c *Client) search(ctx context.Context, service, query string, topK int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.SearchTimeout)
	defer cancel()

	u := c.cfg.RAGBaseURL + "/search?query=" + url.QueryEscape(query) +
		"&top_k=" + strconv.Itoa(topK)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("create search request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", classify(service, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classify(service, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &UnavailableError{Service: service,
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body))}
	}

	var hits []searchHit
	if err := json.Unmarshal(body, &hits); err != nil {
		return "", &UnavailableError{Service: service,
			Err: fmt.Errorf("malformed body: %w", err)}
	}

	var b strings.Builder
	for i, hit := range hits {
		if hit.Text == "" {
			continue
		}
		if i > 0 {
			b.WriteString("\n")
		}
		if hit.Metadata.Source != "" {
			b.WriteString("[" + hit.Metadata.Source + "] ")
		}
		b.WriteString(hit.Text)
	}
	return b.String(), nil
}

// WebSearch calls the search-and-scrape collaborator. Its response body is an
// opaque text blob blended into the prompt verbatim by the assembler.
func (c *Client) WebSearch(ctx context.Context, query string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.SearchTimeout)
	defer cancel()

	u := c.cfg.WebSearchBaseURL + "/search?query=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("create web search request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", classify("websearch", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classify("websearch", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &UnavailableError{Service: "websearch",
			Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return string(body), nil
}

type generateRequestBody struct {
	Model   string                `json:"model"`
	Prompt  string                `json:"prompt"`
	Stream  bool                  `json:"stream"`
	Options config.GenerationOpts `json:"options"`
}

type generateResponseBody struct {
	Response string `json:"response"`
}

// Generate calls the LLM generation endpoint. The returned string may be
// empty or whitespace; mapping that to the fallback text is the generator's
// job, not the client's.
func (c *Client) Generate(ctx context.Context, prompt, model string, opts config.GenerationOpts) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.GenerateTimeout)
	defer cancel()

	data, err := json.Marshal(generateRequestBody{
		Model:   model,
		Prompt:  prompt,
		Stream:  false,
		Options: opts,
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.LLMBaseURL+"/generate", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", classify("llm", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classify("llm", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &UnavailableError{Service: "llm",
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body))}
	}

	var genResp generateResponseBody
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", &UnavailableError{Service: "llm",
			Err: fmt.Errorf("malformed body: %w", err)}
	}
	return genResp.Response, nil
}

// LearningSample is one exchange submitted to the learning endpoint.
type LearningSample struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
	Response  string `json:"response"`
	Model     string `json:"model"`
}

// SubmitLearning posts one training sample. Best-effort; the background
// worker logs and continues on failure.
func (c *Client) SubmitLearning(ctx context.Context, sample LearningSample) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.SearchTimeout)
	defer cancel()

	data, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("marshal learning sample: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.LearningBaseURL+"/submit", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create learning request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return classify("learning", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UnavailableError{Service: "learning",
			Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return nil
}
