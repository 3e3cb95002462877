// Package stream implements the streaming transcription core: the periodic
// inference scheduler, the fragment merger, the silence-driven utterance
// state machine, and the hallucination filter.
package stream

import "strings"

// MergeOptions control how successive overlapping fragments are reconciled.
type MergeOptions struct {
	// CJK disables the space separator for languages without whitespace word
	// boundaries.
	CJK bool
	// FavorLatest adopts the incoming transcript when it neither extends nor
	// overlaps the accumulated text but is at least as long, treating it as
	// a re-read of the full window. The default keeps the accumulated text
	// and concatenates.
	FavorLatest bool
}

// Merge reconciles previously accumulated utterance text with a new partial
// transcript. Sliding-window inference means successive fragments overlap the
// audio of earlier ones, so naive concatenation would duplicate words; the
// suffix/prefix overlap search removes duplication without word-boundary
// knowledge. Pure function, no shared state.
func Merge(existing, incoming string, opts MergeOptions) string {
	existing = strings.TrimSpace(existing)
	incoming = strings.TrimSpace(incoming)

	if existing == "" {
		return incoming
	}
	if incoming == "" || incoming == existing {
		return existing
	}
	// A fragment that starts with everything heard so far derives from a
	// newer, fuller window and supersedes the accumulated text.
	if strings.HasPrefix(incoming, existing) {
		return incoming
	}
	// A fragment fully contained in the accumulated text carries no new
	// information.
	if strings.Contains(existing, incoming) {
		return existing
	}

	// Longest suffix-of-existing / prefix-of-incoming overlap, rune-level,
	// scanned from the largest possible length down so ties resolve toward
	// the longest overlap.
	er := []rune(existing)
	ir := []rune(incoming)
	max := len(er)
	if len(ir) < max {
		max = len(ir)
	}
	for n := max; n >= 1; n-- {
		if string(er[len(er)-n:]) == string(ir[:n]) {
			return existing + string(ir[n:])
		}
	}

	// No overlap: either the engine re-read the window and diverged, or a
	// genuinely new span of speech arrived.
	if opts.FavorLatest && len(ir) >= len(er) {
		return incoming
	}
	sep := " "
	if opts.CJK {
		sep = ""
	}
	return existing + sep + incoming
}

// IsCJKLanguage reports whether the language hint belongs to the configured
// CJK family, matching either exactly or on the primary subtag ("zh-TW"
// matches "zh").
func IsCJKLanguage(lang string, cjk []string) bool {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return false
	}
	primary := lang
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		primary = lang[:i]
	}
	for _, candidate := range cjk {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		if candidate == lang || candidate == primary {
			return true
		}
	}
	return false
}
