package assets

import (
	"bufio"
	"embed"
	"io/fs"
	"strings"
)

//go:embed words.txt sql/*.sql
var FS embed.FS

// Migrations exposes the embedded sql/ directory rooted at its contents.
func Migrations() fs.FS {
	sub, err := fs.Sub(FS, "sql")
	if err != nil {
		panic(err) // embedded path is fixed at compile time
	}
	return sub
}

func readLines(name string) ([]string, error) {
	f, err := FS.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		out = append(out, s)
	}
	return out, sc.Err()
}

// VocabularyLines returns the raw "word|clue|clue" lines of words.txt.
func VocabularyLines() ([]string, error) {
	return readLines("words.txt")
}
