package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// candidateLanguages is deliberately small: the publisher allowlist only
// carries Korean and English outlets, and a narrow set keeps detection fast.
var candidateLanguages = []lingua.Language{
	lingua.Korean,
	lingua.English,
	lingua.Japanese,
	lingua.Chinese,
}

// DetectISO6391 returns the two-letter language code of text, or "" when the
// sample is too short or detection is inconclusive.
func DetectISO6391(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return ""
	}

	letterCount := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letterCount++
		}
	}
	if letterCount < 6 {
		return ""
	}

	language, exists := getDetector().DetectLanguageOf(sample)
	if !exists {
		return ""
	}

	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	return code
}

// IsReportable reports whether text is in a language the pipeline handles.
func IsReportable(text string) bool {
	switch DetectISO6391(text) {
	case "ko", "en":
		return true
	case "":
		// Short titles defeat detection; let later stages judge them.
		return true
	default:
		return false
	}
}

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(candidateLanguages...).
			WithPreloadedLanguageModels().
			Build()
	})
	return detector
}
