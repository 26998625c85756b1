// Package langdetect guesses the language of transcribed text.
package langdetect

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pemistahl/lingua-go"
)

// Languages Whisper users most commonly dictate in. Restricting the set
// keeps the detector small and short phrases stable.
var supported = []lingua.Language{
	lingua.English,
	lingua.Portuguese,
	lingua.Spanish,
	lingua.French,
	lingua.German,
	lingua.Italian,
	lingua.Dutch,
	lingua.Russian,
	lingua.Chinese,
	lingua.Japanese,
	lingua.Korean,
}

// minRunes below which detection is not attempted.
const minRunes = 3

var (
	once     sync.Once
	detector lingua.LanguageDetector
)

func get() lingua.LanguageDetector {
	once.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(supported...).
			WithMinimumRelativeDistance(0.1).
			Build()
	})
	return detector
}

// Detect returns the ISO-639-1 code and English name of text's language,
// or empty strings when unsure.
func Detect(text string) (code, name string) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < minRunes {
		return "", ""
	}

	lang, ok := get().DetectLanguageOf(text)
	if !ok {
		return "", ""
	}
	return strings.ToLower(lang.IsoCode639_1().String()), lang.String()
}

// Detector adapts Detect to the pipeline's LanguageDetector.
type Detector struct{}

func (Detector) Detect(text string) (string, bool) {
	code, _ := Detect(text)
	return code, code != ""
}
