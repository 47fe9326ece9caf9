// Package i18n picks a message printer for CLI output so that counters
// are grouped the way the user's locale expects.
package i18n

import (
	"os"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultLang is the fallback language
var DefaultLang = language.English

// SupportedLangs are the languages we support
var SupportedLangs = []language.Tag{
	language.English,
	language.German,
}

var matcher = language.NewMatcher(SupportedLangs)

// MatchLanguage returns the best supported match for a locale or
// Accept-Language style string.
func MatchLanguage(accept string) language.Tag {
	tags, _, _ := language.ParseAcceptLanguage(accept)
	tag, _, _ := matcher.Match(tags...)
	return tag
}

// NewPrinter returns a message printer for the given language
func NewPrinter(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag)
}

// LocaleFromEnv returns the language named by LC_ALL or LANG, stripped of
// its encoding suffix. The result is empty when neither is set.
func LocaleFromEnv() string {
	lang := os.Getenv("LC_ALL")
	if lang == "" {
		lang = os.Getenv("LANG")
	}
	if i := strings.IndexAny(lang, ".@"); i != -1 {
		lang = lang[:i]
	}
	if lang == "C" || lang == "POSIX" {
		return ""
	}
	return strings.ReplaceAll(lang, "_", "-")
}

// NewCLIPrinter returns a printer for the system's locale.
func NewCLIPrinter() *message.Printer {
	lang := LocaleFromEnv()
	if lang == "" {
		return message.NewPrinter(DefaultLang)
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return message.NewPrinter(MatchLanguage(lang))
	}
	tag, _, _ = matcher.Match(tag)
	return message.NewPrinter(tag)
}

// Count formats a counter with locale digit grouping.
func Count(p *message.Printer, n uint64) string {
	return p.Sprintf("%d", n)
}

// Bytes formats a byte counter in binary units.
func Bytes(p *message.Printer, n uint64) string {
	const unit = 1024
	if n < unit {
		return p.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit && exp < 5; m /= unit {
		div *= unit
		exp++
	}
	return p.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
