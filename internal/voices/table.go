// Package voices maps a listener's target language to a provider voice
// identifier for speech synthesis.
package voices

import (
	"strings"

	"github.com/sermoncast/sermoncast/internal/shared"
)

const fallbackVoice = "en-US-JennyNeural"

type key struct {
	gender   shared.Gender
	language string
}

// byGenderLanguage pairs the broadcaster's gender with the listener's
// language so a translated sermon keeps a voice matching the speaker.
var byGenderLanguage = map[key]string{
	{shared.GenderMale, "en"}: "en-US-GuyNeural",
	{shared.GenderMale, "es"}: "es-ES-AlvaroNeural",
	{shared.GenderMale, "pt"}: "pt-BR-AntonioNeural",
	{shared.GenderMale, "fr"}: "fr-FR-HenriNeural",
	{shared.GenderMale, "de"}: "de-DE-ConradNeural",
	{shared.GenderMale, "it"}: "it-IT-DiegoNeural",
	{shared.GenderMale, "zh"}: "zh-CN-YunxiNeural",
	{shared.GenderMale, "ko"}: "ko-KR-InJoonNeural",
	{shared.GenderMale, "hi"}: "hi-IN-MadhurNeural",
	{shared.GenderMale, "sw"}: "sw-KE-RafikiNeural",

	{shared.GenderFemale, "en"}: "en-US-JennyNeural",
	{shared.GenderFemale, "es"}: "es-ES-ElviraNeural",
	{shared.GenderFemale, "pt"}: "pt-BR-FranciscaNeural",
	{shared.GenderFemale, "fr"}: "fr-FR-DeniseNeural",
	{shared.GenderFemale, "de"}: "de-DE-KatjaNeural",
	{shared.GenderFemale, "it"}: "it-IT-ElsaNeural",
	{shared.GenderFemale, "zh"}: "zh-CN-XiaoxiaoNeural",
	{shared.GenderFemale, "ko"}: "ko-KR-SunHiNeural",
	{shared.GenderFemale, "hi"}: "hi-IN-SwaraNeural",
	{shared.GenderFemale, "sw"}: "sw-KE-ZuriNeural",
}

// defaults is the per-language fallback when no broadcaster-matched
// voice can be resolved.
var defaults = map[string]string{
	"en": "en-US-JennyNeural",
	"es": "es-ES-ElviraNeural",
	"pt": "pt-BR-FranciscaNeural",
	"fr": "fr-FR-DeniseNeural",
	"de": "de-DE-KatjaNeural",
	"it": "it-IT-ElsaNeural",
	"zh": "zh-CN-XiaoxiaoNeural",
	"ko": "ko-KR-SunHiNeural",
	"hi": "hi-IN-SwaraNeural",
	"sw": "sw-KE-ZuriNeural",
}

// Resolve picks a voice for the listener's language. When the listener is
// hearing a translation (target differs from the broadcast's source
// language) and the broadcaster's gender is known, the gender-matched voice
// wins; otherwise the per-language default applies.
func Resolve(targetLang, sourceLang string, gender shared.Gender) string {
	lang := baseLang(targetLang)

	if gender != "" && baseLang(sourceLang) != lang {
		if id, ok := byGenderLanguage[key{gender, lang}]; ok {
			return id
		}
	}

	if id, ok := defaults[lang]; ok {
		return id
	}
	return fallbackVoice
}

// Languages lists the language codes the default table covers.
func Languages() []string {
	out := make([]string, 0, len(defaults))
	for lang := range defaults {
		out = append(out, lang)
	}
	return out
}

func baseLang(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(code, "-_"); i > 0 {
		return code[:i]
	}
	return code
}
