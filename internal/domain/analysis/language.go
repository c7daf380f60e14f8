package analysis

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// commonTags are the languages recognized by English or native name. BCP 47
// codes for any other language are accepted as well.
var commonTags = []language.Tag{
	language.English, language.Spanish, language.French, language.German,
	language.Italian, language.Portuguese, language.Dutch, language.Russian,
	language.Ukrainian, language.Polish, language.Czech, language.Swedish,
	language.Norwegian, language.Danish, language.Finnish, language.Greek,
	language.Turkish, language.Arabic, language.Hebrew, language.Persian,
	language.Hindi, language.Bengali, language.Urdu, language.Tamil,
	language.Chinese, language.Japanese, language.Korean, language.Vietnamese,
	language.Thai, language.Indonesian, language.Malay, language.Swahili,
	language.Romanian, language.Hungarian, language.Filipino,
}

var namedTags = buildNameIndex()

func buildNameIndex() map[string]language.Tag {
	names := display.English.Languages()
	index := make(map[string]language.Tag, len(commonTags)*2)
	for _, tag := range commonTags {
		if n := names.Name(tag); n != "" {
			index[strings.ToLower(n)] = tag
		}
		if n := display.Self.Name(tag); n != "" {
			index[strings.ToLower(n)] = tag
		}
	}
	return index
}

// Language is a normalized output language.
type Language struct {
	// Name is the English display name used in prompts, or the caller's raw
	// input when it could not be recognized.
	Name string
	Tag  language.Tag
	// Known is false when the input matched neither a name nor a BCP 47 code.
	Known bool
}

// IsEnglish reports whether no translation stage is needed.
func (l Language) IsEnglish() bool {
	if !l.Known {
		return false
	}
	base, _ := l.Tag.Base()
	english, _ := language.English.Base()
	return base == english
}

// ParseLanguage normalizes a caller-supplied language such as "Spanish",
// "español", "es" or "pt-BR". Empty input means English.
func ParseLanguage(s string) Language {
	s = strings.TrimSpace(s)
	if s == "" {
		return Language{Name: "English", Tag: language.English, Known: true}
	}

	if tag, ok := namedTags[strings.ToLower(s)]; ok {
		return Language{Name: display.English.Languages().Name(tag), Tag: tag, Known: true}
	}

	if tag, err := language.Parse(s); err == nil {
		if name := display.English.Languages().Name(tag); name != "" {
			return Language{Name: name, Tag: tag, Known: true}
		}
	}

	return Language{Name: s, Tag: language.Und}
}

// LanguageInfo describes one language offered to callers.
type LanguageInfo struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Native string `json:"native"`
}

// SupportedLanguages lists the languages recognized by name, English first.
func SupportedLanguages() []LanguageInfo {
	names := display.English.Languages()
	out := make([]LanguageInfo, 0, len(commonTags))
	for _, tag := range commonTags {
		base, _ := tag.Base()
		out = append(out, LanguageInfo{
			Code:   base.String(),
			Name:   names.Name(tag),
			Native: display.Self.Name(tag),
		})
	}
	return out
}
