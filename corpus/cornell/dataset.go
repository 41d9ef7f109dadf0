// Package cornell reads the Cornell Movie-Dialogs corpus and extracts the
// conversations side characters have with a film's leads.
package cornell

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
)

// Corpus file names inside the data directory.
const (
	TitlesFile        = "movie_titles_metadata.tsv"
	CharactersFile    = "movie_characters_metadata.tsv"
	LinesFile         = "movie_lines.tsv"
	ConversationsFile = "movie_conversations.tsv"
)

var (
	genrePattern  = regexp.MustCompile(`'([^']+)'`)
	lineIDPattern = regexp.MustCompile(`L\d+`)
)

// Movie is one row of the titles file.
type Movie struct {
	ID     string
	Title  string
	Genres []string
}

// CastMember is a character with a known credit position.
type CastMember struct {
	ID        string
	Name      string
	MovieID   string
	CreditPos int
}

// Line is one utterance.
type Line struct {
	ID          string
	CharacterID string
	MovieID     string
	Speaker     string
	Text        string
}

// Exchange is one conversation between two characters, lines in order.
type Exchange struct {
	First   string
	Second  string
	MovieID string
	LineIDs []string
}

// Dataset is the parsed corpus.
type Dataset struct {
	Movies    map[string]Movie
	Cast      map[string]CastMember
	Lines     map[string]Line
	Exchanges []Exchange
}

// Load parses the four corpus files in dir. Rows that are too short, and
// characters without a numeric credit position, are skipped.
func Load(dir string, logger *zap.Logger) (*Dataset, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("cornell")

	ds := &Dataset{}
	steps := []struct {
		file string
		read func(io.Reader) (int, error)
	}{
		{TitlesFile, func(r io.Reader) (n int, err error) { ds.Movies, n, err = ReadMovies(r); return }},
		{CharactersFile, func(r io.Reader) (n int, err error) { ds.Cast, n, err = ReadCast(r); return }},
		{LinesFile, func(r io.Reader) (n int, err error) { ds.Lines, n, err = ReadLines(r); return }},
		{ConversationsFile, func(r io.Reader) (n int, err error) { ds.Exchanges, n, err = ReadExchanges(r); return }},
	}
	for _, step := range steps {
		skipped, err := readFile(filepath.Join(dir, step.file), step.read)
		if err != nil {
			return nil, err
		}
		if skipped > 0 {
			logger.Warn("skipped rows", zap.String("file", step.file), zap.Int("rows", skipped))
		}
	}

	logger.Info("corpus loaded",
		zap.Int("movies", len(ds.Movies)),
		zap.Int("cast", len(ds.Cast)),
		zap.Int("lines", len(ds.Lines)),
		zap.Int("exchanges", len(ds.Exchanges)))
	return ds, nil
}

// The corpus is Latin-1 encoded.
func readFile(path string, read func(io.Reader) (int, error)) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	skipped, err := read(charmap.ISO8859_1.NewDecoder().Reader(f))
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return skipped, nil
}

// ReadMovies parses the titles file. Genres are listed like
// "['comedy' 'romance']".
func ReadMovies(r io.Reader) (map[string]Movie, int, error) {
	movies := make(map[string]Movie)
	skipped, err := eachRow(r, 6, func(f []string) bool {
		var genres []string
		for _, m := range genrePattern.FindAllStringSubmatch(f[5], -1) {
			genres = append(genres, m[1])
		}
		movies[f[0]] = Movie{ID: f[0], Title: f[1], Genres: genres}
		return true
	})
	return movies, skipped, err
}

// ReadCast parses the characters file, dropping unknown ("?") credits.
func ReadCast(r io.Reader) (map[string]CastMember, int, error) {
	cast := make(map[string]CastMember)
	skipped, err := eachRow(r, 6, func(f []string) bool {
		pos, err := strconv.Atoi(strings.TrimSpace(f[5]))
		if err != nil {
			return false
		}
		cast[f[0]] = CastMember{ID: f[0], Name: f[1], MovieID: f[2], CreditPos: pos}
		return true
	})
	return cast, skipped, err
}

// ReadLines parses the lines file. Tabs inside the text are kept.
func ReadLines(r io.Reader) (map[string]Line, int, error) {
	lines := make(map[string]Line)
	skipped, err := eachRow(r, 5, func(f []string) bool {
		lines[f[0]] = Line{
			ID:          f[0],
			CharacterID: f[1],
			MovieID:     f[2],
			Speaker:     f[3],
			Text:        unquote(strings.Join(f[4:], "\t")),
		}
		return true
	})
	return lines, skipped, err
}

// ReadExchanges parses the conversations file. Line ids are listed like
// "['L194' 'L195']".
func ReadExchanges(r io.Reader) ([]Exchange, int, error) {
	var exchanges []Exchange
	skipped, err := eachRow(r, 4, func(f []string) bool {
		ids := lineIDPattern.FindAllString(f[3], -1)
		if len(ids) == 0 {
			return false
		}
		exchanges = append(exchanges, Exchange{First: f[0], Second: f[1], MovieID: f[2], LineIDs: ids})
		return true
	})
	return exchanges, skipped, err
}

// eachRow splits r into tab-separated rows and calls fn on each row with at
// least minFields fields. It returns how many rows were short or rejected.
func eachRow(r io.Reader, minFields int, fn func([]string) bool) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	skipped := 0
	for scanner.Scan() {
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) < minFields {
			skipped++
			continue
		}
		for i := range fields[:minFields-1] {
			fields[i] = unquote(fields[i])
		}
		if !fn(fields) {
			skipped++
		}
	}
	return skipped, scanner.Err()
}

// unquote strips CSV-style quoting from a field.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return strings.ReplaceAll(s, `""`, `"`)
}
