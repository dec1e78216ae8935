// apps/go-server/internal/words/words.go
//
// Offline vocabulary: common words, each with a few short clues.
//
// Responsibilities:
//   - Load the vocabulary from a file named by WORDS_FILE, or fall back to the
//     embedded assets/words.txt.
//   - Serve random words, clue lookups, and distinct samples (decoy top-ups).
//
// File format, one entry per line ('#' starts a comment):
//   word|clue|clue[|clue]
// Entries with fewer than two clues, or a clue containing the word itself,
// are skipped.
//
// Initialization is run once (sync.Once).

package words

import (
	"bufio"
	"crypto/rand"
	"errors"
	"math/big"
	"os"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/robalobadob/duodecoder/apps/go-server/assets"
)

// Entry is one vocabulary word and its clues.
type Entry struct {
	Word  string
	Clues []string
}

const (
	minClues = 2
	maxClues = 3
)

var (
	initOnce   sync.Once
	entries    []Entry
	byWord     map[string]Entry // keyed by lowercase word
	initialErr error
)

// Init loads the vocabulary exactly once.
// Returns an error if no usable entry was found.
func Init() error {
	initOnce.Do(func() {
		var lines []string
		var err error
		if path := os.Getenv("WORDS_FILE"); path != "" {
			lines, err = readLines(path)
		} else {
			lines, err = assets.VocabularyLines()
		}
		if err != nil {
			initialErr = err
			return
		}
		load(lines)
		if len(entries) == 0 {
			initialErr = errors.New("words: vocabulary is empty")
		}
	})
	return initialErr
}

// load replaces the vocabulary with the parsed lines.
func load(lines []string) {
	entries = entries[:0]
	byWord = make(map[string]Entry, len(lines))
	for _, line := range lines {
		e, ok := parseLine(line)
		if !ok {
			continue
		}
		key := strings.ToLower(e.Word)
		if _, dup := byWord[key]; dup {
			continue
		}
		byWord[key] = e
		entries = append(entries, e)
	}
}

// parseLine turns "word|clue|clue" into an Entry.
func parseLine(line string) (Entry, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Entry{}, false
	}
	parts := lo.Map(strings.Split(line, "|"), func(s string, _ int) string { return strings.TrimSpace(s) })
	word := parts[0]
	if word == "" {
		return Entry{}, false
	}
	clues := lo.Filter(parts[1:], func(c string, _ int) bool {
		return c != "" && !strings.Contains(strings.ToLower(c), strings.ToLower(word))
	})
	if len(clues) < minClues {
		return Entry{}, false
	}
	if len(clues) > maxClues {
		clues = clues[:maxClues]
	}
	return Entry{Word: word, Clues: clues}, true
}

// readLines loads a vocabulary file.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	return out, sc.Err()
}

// randIndex returns a crypto-random index in [0, n).
func randIndex(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

// RandomWord returns a random vocabulary word.
// If the vocabulary is not loaded or empty, falls back to "Apple".
func RandomWord() string {
	if len(entries) == 0 {
		return "Apple"
	}
	return entries[randIndex(len(entries))].Word
}

// CluesFor returns the clues for word (case-insensitive).
func CluesFor(word string) ([]string, bool) {
	e, ok := byWord[strings.ToLower(strings.TrimSpace(word))]
	if !ok {
		return nil, false
	}
	return append([]string(nil), e.Clues...), true
}

// Has reports whether word is in the vocabulary.
func Has(word string) bool {
	_, ok := byWord[strings.ToLower(strings.TrimSpace(word))]
	return ok
}

// Sample returns up to n distinct random words, skipping any that match
// exclude case-insensitively.
func Sample(n int, exclude ...string) []string {
	skip := lo.SliceToMap(exclude, func(w string) (string, struct{}) { return strings.ToLower(w), struct{}{} })
	pool := lo.FilterMap(entries, func(e Entry, _ int) (string, bool) {
		_, excluded := skip[strings.ToLower(e.Word)]
		return e.Word, !excluded
	})
	// Partial Fisher–Yates: only the first n slots need settling.
	for i := 0; i < n && i < len(pool); i++ {
		j := i + randIndex(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	if n < len(pool) {
		pool = pool[:n]
	}
	return pool
}

// Stats returns the number of loaded entries.
func Stats() int {
	return len(entries)
}
