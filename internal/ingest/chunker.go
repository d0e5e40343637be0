// ABOUTME: Chunker splits document text into overlapping, paragraph-aligned chunks
// ABOUTME: Oversized paragraphs fall back to sentence boundaries
package ingest

import (
	"maps"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/harper/finrag/internal/models"
)

// Chunking defaults
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 200

	// minParagraphLength drops headers, page furniture and other fragments
	minParagraphLength = 50
)

var (
	paragraphBreak = regexp.MustCompile(`\n[ \t]*\n+`)
	pageFooter     = regexp.MustCompile(`(?i)page \d+ of \d+`)
)

// Chunker sizes are measured in characters (runes)
type Chunker struct {
	Size    int
	Overlap int
}

// NewChunker returns a chunker, substituting defaults for invalid settings
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = 0
		}
	}
	return &Chunker{Size: size, Overlap: overlap}
}

// Chunk splits text and attaches a copy of metadata to every chunk.
// Paragraphs accumulate until the next would exceed Size; the following
// chunk then starts with the last Overlap characters of the previous one.
func (c *Chunker) Chunk(text string, metadata map[string]string) []models.ChunkInput {
	var (
		chunks  []models.ChunkInput
		current string
	)
	emit := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		chunks = append(chunks, models.ChunkInput{Text: s, Metadata: maps.Clone(metadata)})
	}

	for _, para := range splitParagraphs(text) {
		paraLen := runeLen(para)

		switch {
		case paraLen > c.Size:
			emit(current)
			current = ""

			var pending string
			for _, sent := range splitSentences(para) {
				if runeLen(pending)+runeLen(sent) <= c.Size {
					pending += sent + " "
					continue
				}
				emit(pending)
				pending = sent + " "
			}
			current = strings.TrimSpace(pending)

		case runeLen(current)+paraLen > c.Size:
			emit(current)
			if c.Overlap > 0 && current != "" {
				current = tail(current, c.Overlap) + "\n\n" + para
			} else {
				current = para
			}

		case current == "":
			current = para

		default:
			current += "\n\n" + para
		}
	}
	emit(current)
	return chunks
}

// splitParagraphs separates on blank lines, cleans each paragraph and
// drops short fragments
func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = pageFooter.ReplaceAllString(text, "")

	var result []string
	for _, para := range paragraphBreak.Split(text, -1) {
		para = cleanText(para)
		if runeLen(para) > minParagraphLength {
			result = append(result, para)
		}
	}
	return result
}

// cleanText collapses whitespace and drops characters outside letters,
// digits and basic punctuation
func cleanText(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return ' '
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_':
			return r
		case strings.ContainsRune(".,!?-:;()$%", r):
			return r
		default:
			return -1
		}
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// splitSentences splits after '.', '!' or '?' when followed by whitespace
func splitSentences(text string) []string {
	var (
		result []string
		start  int
	)
	runes := []rune(text)
	for i := 0; i < len(runes)-1; i++ {
		if strings.ContainsRune(".!?", runes[i]) && unicode.IsSpace(runes[i+1]) {
			if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
				result = append(result, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		result = append(result, s)
	}
	return result
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// tail returns the last n runes of s
func tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
