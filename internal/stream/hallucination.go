package stream

import "strings"

// defaultDenylist holds spurious phrases whisper-family models emit over
// silence or noise: boilerplate closing remarks, caption credits, and
// audio-absence markers. Matching is case-insensitive substring.
var defaultDenylist = []string{
	"[blank_audio]",
	"thank you for watching",
	"thanks for watching",
	"please subscribe",
	"subtitles by",
	"subscribe to my channel",
	"www.amara.org",
}

// stageDirectionKeywords mark bracketed spans like "[music]" or "(applause)"
// as non-speech, but only when the whole string is one bracketed span.
var stageDirectionKeywords = []string{
	"music", "noise", "silence", "applause", "laughter", "inaudible",
}

// HallucinationFilter rejects known-spurious model output before it reaches
// the merger.
type HallucinationFilter struct {
	denylist []string
}

// NewHallucinationFilter builds a filter from the configured denylist; an
// empty list falls back to the built-in one.
func NewHallucinationFilter(denylist []string) *HallucinationFilter {
	list := denylist
	if len(list) == 0 {
		list = defaultDenylist
	}
	lowered := make([]string, 0, len(list))
	for _, phrase := range list {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase != "" {
			lowered = append(lowered, phrase)
		}
	}
	return &HallucinationFilter{denylist: lowered}
}

// IsHallucination reports whether text is a known spurious output.
func (f *HallucinationFilter) IsHallucination(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}

	lowered := strings.ToLower(trimmed)
	for _, phrase := range f.denylist {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}

	if isStageDirection(trimmed) {
		return true
	}

	return isDegenerateRepetition(trimmed)
}

// isStageDirection matches strings that consist entirely of one bracketed or
// parenthesized span whose content names non-speech audio. Genuine speech
// that merely contains brackets is not rejected.
func isStageDirection(text string) bool {
	runes := []rune(text)
	if len(runes) < 3 {
		return false
	}

	var closing rune
	switch runes[0] {
	case '[':
		closing = ']'
	case '(':
		closing = ')'
	case '（':
		closing = '）'
	case '【':
		closing = '】'
	default:
		return false
	}
	if runes[len(runes)-1] != closing {
		return false
	}
	inner := string(runes[1 : len(runes)-1])
	// A closing bracket inside means the span ends early; the string is not
	// a single bracketed span.
	if strings.ContainsRune(inner, closing) {
		return false
	}

	inner = strings.ToLower(inner)
	for _, keyword := range stageDirectionKeywords {
		if strings.Contains(inner, keyword) {
			return true
		}
	}
	return false
}

// isDegenerateRepetition detects pathologically repetitive output: a short
// pattern repeating 3+ times and covering at least half the text.
func isDegenerateRepetition(text string) bool {
	runes := []rune(text)
	n := len(runes)
	if n < 6 {
		return false
	}
	for patLen := 1; patLen <= n/3; patLen++ {
		pattern := string(runes[:patLen])
		repeats := 1
		pos := patLen
		for pos+patLen <= n && string(runes[pos:pos+patLen]) == pattern {
			repeats++
			pos += patLen
		}
		if repeats >= 3 && repeats*patLen*2 >= n {
			return true
		}
	}
	return false
}
