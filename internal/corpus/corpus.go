package corpus

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"
)

// VerseUnit is one addressable verse of source text.
type VerseUnit struct {
	Book    string `json:"book"`
	Chapter int    `json:"chapter"`
	Verse   int    `json:"verse"`
	Text    string `json:"text"`
}

// Reference returns the display form "{book} {chapter}:{verse}".
func (v VerseUnit) Reference() string {
	return fmt.Sprintf("%s %d:%d", v.Book, v.Chapter, v.Verse)
}

// Document is the normalized-corpus artifact written by the prepare step.
// Analysis paragraphs feed encoder fine-tuning and are never indexed.
type Document struct {
	BibleVerses        []VerseUnit `json:"bible_verses"`
	AnalysisParagraphs []string    `json:"analysis_paragraphs"`
}

// Stats summarises an ingestion pass.
type Stats struct {
	Verses     int
	Paragraphs int
	Malformed  int
	Duplicates int
}

// CleanText strips control characters and punctuation outside
// . , ; : ( ) [ ] { }, collapses whitespace runs to single spaces and
// trims. Applying it to already-cleaned text is a no-op.
func CleanText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || allowedPunct(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		}
	}
	return b.String()
}

func allowedPunct(r rune) bool {
	switch r {
	case '.', ',', ';', ':', '(', ')', '[', ']', '{', '}':
		return true
	}
	return false
}

// SplitParagraphs breaks commentary text on blank-line boundaries and
// cleans each paragraph. Whitespace-only paragraphs are discarded.
func SplitParagraphs(text string) []string {
	var out []string
	for _, p := range splitOnBlankLines(text) {
		cleaned := CleanText(p)
		if cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}

func splitOnBlankLines(text string) []string {
	var paras []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			paras = append(paras, strings.Join(cur, " "))
			cur = nil
		}
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return paras
}

// ParseVerseRows reads delimited rows of the form
//
//	book,chapter,verse,"text"
//
// where book is an integer book id or a book name. Rows with a field
// count other than 4, a non-positive chapter or verse, or a duplicate
// (book, chapter, verse) reference are dropped; counts are reported in
// the returned stats.
func ParseVerseRows(r io.Reader) ([]VerseUnit, Stats, error) {
	var (
		verses []VerseUnit
		stats  Stats
		seen   = make(map[string]struct{})
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		unit, ok := parseVerseRow(line)
		if !ok {
			stats.Malformed++
			continue
		}

		key := unit.Reference()
		if _, dup := seen[key]; dup {
			stats.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		verses = append(verses, unit)
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("reading verse rows: %w", err)
	}

	stats.Verses = len(verses)
	return verses, stats, nil
}

func parseVerseRow(line string) (VerseUnit, bool) {
	parts := strings.SplitN(line, ",", 4)
	if len(parts) != 4 {
		return VerseUnit{}, false
	}

	book := resolveBook(strings.TrimSpace(parts[0]))
	if book == "" {
		return VerseUnit{}, false
	}

	chapter, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || chapter <= 0 {
		return VerseUnit{}, false
	}
	verse, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil || verse <= 0 {
		return VerseUnit{}, false
	}

	text := CleanText(strings.Trim(strings.TrimSpace(parts[3]), `"`))
	if text == "" {
		return VerseUnit{}, false
	}

	return VerseUnit{Book: book, Chapter: chapter, Verse: verse, Text: text}, true
}

// resolveBook maps an integer book id to its canonical name, or accepts
// a name directly.
func resolveBook(field string) string {
	if id, err := strconv.Atoi(field); err == nil {
		return BookName(id)
	}
	return CleanText(field)
}

// Normalize runs the full ingestion pass: verse rows plus free-text
// commentary into one normalized corpus document.
func Normalize(verseRows io.Reader, analysisText io.Reader) (*Document, Stats, error) {
	verses, stats, err := ParseVerseRows(verseRows)
	if err != nil {
		return nil, stats, err
	}

	raw, err := io.ReadAll(analysisText)
	if err != nil {
		return nil, stats, fmt.Errorf("reading analysis text: %w", err)
	}
	paragraphs := SplitParagraphs(string(raw))
	stats.Paragraphs = len(paragraphs)

	if stats.Malformed > 0 || stats.Duplicates > 0 {
		log.Warn().
			Int("malformed", stats.Malformed).
			Int("duplicates", stats.Duplicates).
			Msg("Dropped verse rows during ingestion")
	}

	return &Document{BibleVerses: verses, AnalysisParagraphs: paragraphs}, stats, nil
}
