package caltime

import (
	"strings"
	"sync"

	"github.com/go-playground/locales"
	"github.com/go-playground/locales/de"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/es"
	"github.com/go-playground/locales/fr"
	"github.com/go-playground/locales/it"
	"github.com/go-playground/locales/ja"
	"github.com/go-playground/locales/ko"
	"github.com/go-playground/locales/nl"
	"github.com/go-playground/locales/pt"
	"github.com/go-playground/locales/ru"
	"github.com/go-playground/locales/zh"
	"golang.org/x/text/language"
)

// English must stay first: it is the matcher's fallback.
var supportedLocales = []struct {
	tag language.Tag
	new func() locales.Translator
}{
	{language.English, en.New},
	{language.German, de.New},
	{language.French, fr.New},
	{language.Spanish, es.New},
	{language.Italian, it.New},
	{language.Portuguese, pt.New},
	{language.Dutch, nl.New},
	{language.Japanese, ja.New},
	{language.Korean, ko.New},
	{language.Chinese, zh.New},
	{language.Russian, ru.New},
}

// One translator per supported locale, shared by every caller.
var (
	localeOnce  sync.Once
	localeMatch language.Matcher
	translators []locales.Translator
)

func initLocales() {
	localeOnce.Do(func() {
		tags := make([]language.Tag, 0, len(supportedLocales))
		translators = make([]locales.Translator, 0, len(supportedLocales))
		for _, l := range supportedLocales {
			tags = append(tags, l.tag)
			translators = append(translators, l.new())
		}
		localeMatch = language.NewMatcher(tags)
	})
}

// translatorFor picks the closest supported translator for a locale
// identifier such as "en-US", "de_DE" or "ko". Unknown identifiers fall back
// to English.
func translatorFor(locale string) locales.Translator {
	initLocales()
	tag, err := language.Parse(strings.ReplaceAll(strings.TrimSpace(locale), "_", "-"))
	if err != nil {
		return translators[0]
	}
	if _, idx, conf := localeMatch.Match(tag); conf != language.No {
		return translators[idx]
	}
	return translators[0]
}

// LocaleName reports which supported locale a locale identifier resolves to.
func LocaleName(locale string) string {
	return translatorFor(locale).Locale()
}
