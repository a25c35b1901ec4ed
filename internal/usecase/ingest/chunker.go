package ingest

import (
	"strings"
	"unicode/utf8"
)

// boundary preference order when splitting. A boundary is only taken when it
// falls past the midpoint of the window; otherwise the cut would produce a
// fragment far below the target size.
var sentenceEnders = []rune{'.', '!', '?', '\n'}

// splitText splits text into segments of at most size characters (runes, not
// bytes). Cuts prefer paragraph breaks, then sentence enders, then whitespace,
// and fall back to a hard cut at the limit. Segments never overlap and every
// input character lands in exactly one window; returned segments are trimmed
// and never empty.
func splitText(text string, size int) []string {
	if size <= 0 {
		size = 1
	}

	var out []string
	runes := []rune(text)

	for len(runes) > 0 {
		if len(runes) <= size {
			appendSegment(&out, string(runes))
			break
		}

		window := runes[:size]
		cut := findBoundary(window)

		appendSegment(&out, string(runes[:cut]))
		runes = runes[cut:]
	}
	return out
}

// findBoundary picks the cut position within the window: after the last
// paragraph break, else after the last sentence ender, else after the last
// space. Boundaries in the first half of the window are ignored. Returns the
// window length when no usable boundary exists (hard cut).
func findBoundary(window []rune) int {
	min := len(window) / 2

	if i := lastIndexRunes(window, []rune("\n\n")); i > min {
		return i + 2
	}

	for i := len(window) - 1; i > min; i-- {
		for _, e := range sentenceEnders {
			if window[i] == e {
				return i + 1
			}
		}
	}

	for i := len(window) - 1; i > min; i-- {
		if window[i] == ' ' || window[i] == '\t' {
			return i + 1
		}
	}

	return len(window)
}

func lastIndexRunes(haystack, needle []rune) int {
outer:
	for i := len(haystack) - len(needle); i >= 0; i-- {
		for j, r := range needle {
			if haystack[i+j] != r {
				continue outer
			}
		}
		return i
	}
	return -1
}

func appendSegment(out *[]string, segment string) {
	trimmed := strings.TrimSpace(segment)
	if trimmed != "" && utf8.ValidString(trimmed) {
		*out = append(*out, trimmed)
	}
}
