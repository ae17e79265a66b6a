// Package voices maps narration languages and voice types to speech
// synthesis voice IDs.
package voices

import (
	"strings"

	"golang.org/x/text/language"
)

// DefaultLanguage is used when a request carries no language code.
const DefaultLanguage = "en-US"

// voice IDs per canonical language tag and voice type.
var catalog = map[string]map[string]string{
	"en-US": {
		"male":    "Matthew",
		"female":  "Joanna",
		"neutral": "Ivy",
	},
	"es-ES": {
		"male":    "Andrés",
		"female":  "Conchita",
		"neutral": "Mia",
	},
}

// supported lists catalog languages in matcher preference order.
var supported = []string{"en-US", "es-ES"}

var matcher = language.NewMatcher([]language.Tag{
	language.MustParse("en-US"),
	language.MustParse("es-ES"),
})

// NormalizeLanguage canonicalizes a BCP 47 language code against the
// supported catalog. Unknown or unparseable codes fall back to
// DefaultLanguage.
func NormalizeLanguage(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return DefaultLanguage
	}
	tag, err := language.Parse(code)
	if err != nil {
		return DefaultLanguage
	}
	_, index, confidence := matcher.Match(tag)
	if confidence == language.No {
		return DefaultLanguage
	}
	return supported[index]
}

// Resolve returns the voice ID for a language code and voice type. An empty
// type defaults to "female"; any unrecognized type falls back to the neutral
// voice, so resolution never fails.
func Resolve(languageCode, voiceType string) string {
	options := catalog[NormalizeLanguage(languageCode)]
	voiceType = strings.ToLower(strings.TrimSpace(voiceType))
	switch voiceType {
	case "":
		voiceType = "female"
	case "child":
		voiceType = "neutral"
	}
	voice, ok := options[voiceType]
	if !ok {
		return options["neutral"]
	}
	return voice
}
