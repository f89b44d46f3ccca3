package chunking

import (
	"strings"
)

// DefaultMaxChunkChars caps a chunk's content length.
const DefaultMaxChunkChars = 2000

// piece is an intermediate content slice produced by the splitter.
type piece struct {
	SectionTitle string
	Content      string
}

// split turns markdown-ish document content into ordered content pieces.
// Headings open a new section; paragraphs accumulate into a piece until it
// would exceed maxChars. The splitter is deterministic: same content, same
// pieces.
func split(content string, maxChars int) []piece {
	if maxChars <= 0 {
		maxChars = DefaultMaxChunkChars
	}

	var pieces []piece
	section := ""
	var buf strings.Builder

	flush := func() {
		text := strings.TrimSpace(buf.String())
		if text != "" {
			pieces = append(pieces, piece{SectionTitle: section, Content: text})
		}
		buf.Reset()
	}

	for _, para := range paragraphs(content) {
		if title, ok := headingTitle(para); ok {
			flush()
			section = title
			continue
		}

		for _, part := range splitOversized(para, maxChars) {
			if buf.Len() > 0 && buf.Len()+len(part)+2 > maxChars {
				flush()
			}
			if buf.Len() > 0 {
				buf.WriteString("\n\n")
			}
			buf.WriteString(part)
		}
	}
	flush()

	return pieces
}

// paragraphs splits content on blank lines, trimming each block.
func paragraphs(content string) []string {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	blocks := strings.Split(normalized, "\n\n")

	out := make([]string, 0, len(blocks))
	for _, b := range blocks {
		b = strings.TrimSpace(b)
		if b != "" {
			out = append(out, b)
		}
	}
	return out
}

// headingTitle reports whether a paragraph is a lone markdown heading and
// returns its title text.
func headingTitle(para string) (string, bool) {
	if strings.ContainsRune(para, '\n') {
		return "", false
	}
	trimmed := strings.TrimLeft(para, "#")
	if trimmed == para || len(para)-len(trimmed) > 6 {
		return "", false
	}
	title := strings.TrimSpace(trimmed)
	if title == "" {
		return "", false
	}
	return title, true
}

// splitOversized cuts a paragraph longer than maxChars into word-boundary
// parts, each at most maxChars long.
func splitOversized(para string, maxChars int) []string {
	if len(para) <= maxChars {
		return []string{para}
	}

	var parts []string
	words := strings.Fields(para)
	var buf strings.Builder
	for _, w := range words {
		if buf.Len() > 0 && buf.Len()+len(w)+1 > maxChars {
			parts = append(parts, buf.String())
			buf.Reset()
		}
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		// A single word longer than maxChars gets cut mid-word.
		for len(w) > maxChars {
			parts = append(parts, w[:maxChars])
			w = w[maxChars:]
		}
		buf.WriteString(w)
	}
	if buf.Len() > 0 {
		parts = append(parts, buf.String())
	}
	return parts
}

func wordCount(s string) int { return len(strings.Fields(s)) }
