package speech

import (
	"strings"

	"github.com/samber/lo"

	"coachcam/internal/ports"
)

// SelectVoice picks a voice for locale: an exact regional match first, then
// a voice of the same language family, then the first available voice.
func SelectVoice(voices []ports.Voice, locale string) (ports.Voice, bool) {
	if len(voices) == 0 {
		return ports.Voice{}, false
	}

	want := normalizeTag(locale)
	if voice, ok := lo.Find(voices, func(v ports.Voice) bool {
		return normalizeTag(v.Language) == want
	}); ok {
		return voice, true
	}

	family := primarySubtag(want)
	if voice, ok := lo.Find(voices, func(v ports.Voice) bool {
		return primarySubtag(normalizeTag(v.Language)) == family
	}); ok {
		return voice, true
	}

	return voices[0], true
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(tag), "_", "-"))
}

func primarySubtag(tag string) string {
	primary, _, _ := strings.Cut(tag, "-")
	return primary
}
