// apps/go-server/internal/provider/provider.go
//
// Word/clue provider clients.
//
// A Client picks a common secret word and writes 2–3 short clues for a word.
// Two implementations:
//   - HTTPClient: a generative-language REST service (see http.go).
//   - LocalClient: the embedded vocabulary in the words package.
//
// Every failure is reported as ErrUnavailable (wrapped with detail). Clients
// hold no state and never retry; retries and fallbacks belong to the round
// factory.

package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/robalobadob/duodecoder/apps/go-server/internal/words"
)

// ErrUnavailable means the provider failed or returned unusable text.
var ErrUnavailable = errors.New("provider unavailable")

const (
	minClues = 2
	maxClues = 3
)

// Client is the provider contract used by the round factory.
type Client interface {
	// PickWord returns one common, unambiguous word.
	PickWord(ctx context.Context) (string, error)
	// GenerateClues returns 2–3 short clues for word, none containing it.
	GenerateClues(ctx context.Context, word string) ([]string, error)
}

// cleanWord trims a model reply down to a single bare word.
func cleanWord(text string) (string, error) {
	w := strings.TrimSpace(text)
	w = strings.Trim(w, "\"'`.!,;:*")
	w = strings.TrimSpace(w)
	if w == "" {
		return "", fmt.Errorf("%w: empty word", ErrUnavailable)
	}
	if strings.ContainsAny(w, " \t\n") {
		return "", fmt.Errorf("%w: %q is not a single word", ErrUnavailable, w)
	}
	return w, nil
}

// cleanClues drops blank clues and giveaways, caps the list at three and
// fails if fewer than two remain.
func cleanClues(word string, raw []string) ([]string, error) {
	lw := strings.ToLower(word)
	out := make([]string, 0, maxClues)
	for _, c := range raw {
		c = strings.TrimSpace(c)
		if c == "" || strings.Contains(strings.ToLower(c), lw) {
			continue
		}
		out = append(out, c)
		if len(out) == maxClues {
			break
		}
	}
	if len(out) < minClues {
		return nil, fmt.Errorf("%w: %d usable clues for %q", ErrUnavailable, len(out), word)
	}
	return out, nil
}

// LocalClient serves words and clues from the embedded vocabulary.
type LocalClient struct{}

// NewLocal returns a LocalClient, loading the vocabulary if needed.
func NewLocal() (*LocalClient, error) {
	if err := words.Init(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &LocalClient{}, nil
}

// PickWord returns a random vocabulary word.
func (LocalClient) PickWord(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if words.Stats() == 0 {
		return "", fmt.Errorf("%w: empty vocabulary", ErrUnavailable)
	}
	return words.RandomWord(), nil
}

// GenerateClues looks the word up in the vocabulary.
func (LocalClient) GenerateClues(ctx context.Context, word string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	clues, ok := words.CluesFor(word)
	if !ok {
		return nil, fmt.Errorf("%w: no clues for %q", ErrUnavailable, word)
	}
	return cleanClues(word, clues)
}
