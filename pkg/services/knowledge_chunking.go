package services

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// KnowledgeChunkSize is the maximum length of a knowledge chunk, in characters.
const KnowledgeChunkSize = 2000

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// ChunkText splits text into chunks of at most size characters. It packs whole
// paragraphs where it can, then sentences (ending in 。 . ! or ?), and cuts
// anything longer at size.
func ChunkText(text string, size int) []string {
	if size <= 0 {
		size = KnowledgeChunkSize
	}

	var c chunker
	c.size = size
	for _, para := range paragraphBreak.Split(strings.TrimSpace(text), -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if runeLen(para) <= size {
			c.add(para, "\n\n")
			continue
		}
		for _, sentence := range splitSentences(para) {
			if runeLen(sentence) <= size {
				c.add(sentence, " ")
				continue
			}
			for _, piece := range hardCut(sentence, size) {
				c.add(piece, "")
			}
		}
	}
	return c.finish()
}

type chunker struct {
	size    int
	current strings.Builder
	chunks  []string
}

// add appends piece to the current chunk joined by sep, starting a new chunk
// when it would not fit.
func (c *chunker) add(piece, sep string) {
	if c.current.Len() > 0 && runeLen(c.current.String())+runeLen(sep)+runeLen(piece) > c.size {
		c.flush()
	}
	if c.current.Len() > 0 {
		c.current.WriteString(sep)
	}
	c.current.WriteString(piece)
}

func (c *chunker) flush() {
	if s := strings.TrimSpace(c.current.String()); s != "" {
		c.chunks = append(c.chunks, s)
	}
	c.current.Reset()
}

func (c *chunker) finish() []string {
	c.flush()
	return c.chunks
}

// splitSentences splits after each sentence terminator, keeping it with its sentence.
func splitSentences(text string) []string {
	var (
		sentences []string
		start     int
	)
	for i, r := range text {
		switch r {
		case '。', '.', '!', '?':
			end := i + utf8.RuneLen(r)
			if s := strings.TrimSpace(text[start:end]); s != "" {
				sentences = append(sentences, s)
			}
			start = end
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func hardCut(text string, size int) []string {
	runes := []rune(text)
	pieces := make([]string, 0, len(runes)/size+1)
	for len(runes) > size {
		pieces = append(pieces, string(runes[:size]))
		runes = runes[size:]
	}
	if len(runes) > 0 {
		pieces = append(pieces, string(runes))
	}
	return pieces
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
