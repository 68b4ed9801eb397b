package service

import (
	"fmt"

	"github.com/msomdec/color-hunt/internal/domain"
)

// DefaultLanguage is used when a message is missing in the requested language.
const DefaultLanguage = "en"

var messages = map[string]map[string]string{
	"en": {
		"collage.title":     "My %s Hunt",
		"progress.header":   "%s (%s) on %s",
		"progress.count":    "%d/%d photos, %d%%",
		"progress.next":     "next position: %d",
		"progress.full":     "all positions filled, ready to complete",
		"progress.done":     "completed",
		"history.empty":     "no completed collages yet",
		"history.more":      "more results available",
		"color.assigned":    "today's color is %s (%s)",
		"collage.saved":     "collage saved to %s",
		"session.none":      "no active hunt, run start first",
		"session.cancelled": "capture cancelled",
	},
	"ko": {
		"collage.title":   "나의 %s 컬러 헌트",
		"progress.header": "%s (%s) · %s",
		"progress.count":  "%d/%d장, %d%%",
		"progress.next":   "다음 위치: %d",
		"progress.full":   "모든 사진을 찍었어요. 콜라주를 완성하세요",
		"progress.done":   "완료",
		"history.empty":   "완성된 콜라주가 없습니다",
		"history.more":    "더 많은 결과가 있습니다",
		"color.assigned":  "오늘의 컬러는 %s (%s)",
		"collage.saved":   "콜라주를 %s 에 저장했습니다",
		"session.none":    "진행 중인 헌트가 없습니다. 먼저 start 를 실행하세요",
	},
}

// Translator looks up user-facing strings. Missing messages fall back to
// the default language and then to the key itself.
type Translator struct {
	lang string
}

// NewTranslator creates a Translator for lang. Unknown languages behave
// like the default language.
func NewTranslator(lang string) *Translator {
	return &Translator{lang: lang}
}

// Language returns the requested language.
func (t *Translator) Language() string {
	return t.lang
}

// T returns the message for key formatted with args.
func (t *Translator) T(key string, args ...any) string {
	format, ok := messages[t.lang][key]
	if !ok {
		format, ok = messages[DefaultLanguage][key]
	}
	if !ok {
		return key
	}
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// ColorName returns the color's display name in the translator's language.
func (t *Translator) ColorName(c domain.Color) string {
	if t.lang == "ko" && c.Korean != "" {
		return c.Korean
	}
	if c.English != "" {
		return c.English
	}
	return c.Name
}
