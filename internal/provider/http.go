package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	pickWordPrompt = `You are the game master for a word guessing game. Your job is to select a single random secret word for the game. This word should be common and well known. It should not be obscure or difficult to spell.

Respond only with the secret word, do not include any other text.`

	cluesPromptFmt = `You are a clue generator for a word guessing game. Your task is to provide a set of 2-3 clues for a given secret word.

Secret Word: %s

Provide clues that are helpful but not too obvious, enabling a code breaker to guess the word with some thought. Never use the secret word itself.
The clues should be short and easy to understand.
Return the clues as JSON of the form {"clues": ["...", "..."]}.`
)

// HTTPClient talks to a generative-language REST endpoint
// (POST {BaseURL}/v1beta/models/{Model}:generateContent?key={APIKey}).
type HTTPClient struct {
	BaseURL string
	APIKey  string
	Model   string
	HTTP    *http.Client
}

// NewHTTP builds an HTTPClient with a per-call timeout.
func NewHTTP(baseURL, apiKey, model string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// generateReq/Res mirror the subset of the generateContent schema we use.
type part struct {
	Text string `json:"text"`
}
type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}
type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}
type generateReq struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}
type generateRes struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// PickWord asks the model for one secret word.
func (c *HTTPClient) PickWord(ctx context.Context) (string, error) {
	text, err := c.generate(ctx, pickWordPrompt, generationConfig{Temperature: 1.2})
	if err != nil {
		return "", err
	}
	return cleanWord(text)
}

// GenerateClues asks the model for clues and filters out giveaways.
func (c *HTTPClient) GenerateClues(ctx context.Context, word string) ([]string, error) {
	prompt := fmt.Sprintf(cluesPromptFmt, word)
	text, err := c.generate(ctx, prompt, generationConfig{Temperature: 0.9, ResponseMIMEType: "application/json"})
	if err != nil {
		return nil, err
	}
	var body struct {
		Clues []string `json:"clues"`
	}
	if err := json.Unmarshal([]byte(stripFence(text)), &body); err != nil {
		return nil, fmt.Errorf("%w: decode clues: %v", ErrUnavailable, err)
	}
	return cleanClues(word, body.Clues)
}

// generate performs one generateContent call and returns the first
// candidate's concatenated text.
func (c *HTTPClient) generate(ctx context.Context, prompt string, cfg generationConfig) (string, error) {
	payload, err := json.Marshal(generateReq{
		Contents:         []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: cfg,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", ErrUnavailable, err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.BaseURL, url.PathEscape(c.Model), url.QueryEscape(c.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	res, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	log.Debug().Str("model", c.Model).Int("status", res.StatusCode).Dur("took", time.Since(start)).Msg("provider call")

	if res.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 256))
		return "", fmt.Errorf("%w: status %d: %s", ErrUnavailable, res.StatusCode, strings.TrimSpace(string(snippet)))
	}
	var out generateRes
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if len(out.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", ErrUnavailable)
	}
	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("%w: empty text", ErrUnavailable)
	}
	return text, nil
}

// stripFence removes a ```json ... ``` wrapper some models add.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
