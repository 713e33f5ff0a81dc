// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package i18n provides translated UI strings through an explicit Localizer.
package i18n

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Fallback is the language used for missing keys.
const Fallback = "en"

// supported lists the bundled languages in display order.
var supported = []string{"en", "es", "fr", "de", "ar", "zh", "hi", "ru", "pt", "ja"}

// ErrUnsupportedLanguage is returned by SetLanguage for unknown codes.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Languages returns the supported two-letter codes in display order.
func Languages() []string {
	out := make([]string, len(supported))
	copy(out, supported)
	return out
}

// =============================================================================
// LOCALIZER
// =============================================================================

// Localizer translates keys for the active language. Components receive it
// explicitly; there is no package-level instance.
type Localizer struct {
	mu      sync.RWMutex
	lang    string
	bundles map[string]map[string]string
	matcher language.Matcher
}

// New loads every bundled locale and activates lang. An empty lang selects
// the fallback.
func New(lang string) (*Localizer, error) {
	bundles := make(map[string]map[string]string, len(supported))
	tags := make([]language.Tag, 0, len(supported))
	for _, code := range supported {
		b, err := loadBundle(code)
		if err != nil {
			return nil, err
		}
		bundles[code] = b
		tags = append(tags, language.MustParse(code))
	}

	l := &Localizer{
		lang:    Fallback,
		bundles: bundles,
		matcher: language.NewMatcher(tags),
	}
	if lang != "" {
		if err := l.SetLanguage(lang); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// MustNew is New for static inputs; it panics on error.
func MustNew(lang string) *Localizer {
	l, err := New(lang)
	if err != nil {
		panic(err)
	}
	return l
}

// T translates key in the active language, falling back to English and then
// to the key itself.
func (l *Localizer) T(key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if s, ok := l.bundles[l.lang][key]; ok {
		return s
	}
	if s, ok := l.bundles[Fallback][key]; ok {
		return s
	}
	return key
}

// Language returns the active two-letter code.
func (l *Localizer) Language() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lang
}

// SetLanguage swaps the active bundle. Region and script subtags are
// ignored, so "pt-BR" selects "pt". Unknown languages return
// ErrUnsupportedLanguage and leave the active language unchanged.
func (l *Localizer) SetLanguage(code string) error {
	base, err := Normalize(code)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.bundles[base]; !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
	}
	l.lang = base
	return nil
}

// Next switches to the language after the active one, wrapping around, and
// returns it.
func (l *Localizer) Next() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, code := range supported {
		if code == l.lang {
			l.lang = supported[(i+1)%len(supported)]
			return l.lang
		}
	}
	l.lang = Fallback
	return l.lang
}

// Match picks the best supported language for the given locale strings,
// such as the value of $LANG. It returns the fallback when nothing matches.
func (l *Localizer) Match(locales ...string) string {
	var tags []language.Tag
	for _, loc := range locales {
		if tag, err := language.Parse(posixToBCP47(loc)); err == nil {
			tags = append(tags, tag)
		}
	}
	if len(tags) == 0 {
		return Fallback
	}
	_, idx, conf := l.matcher.Match(tags...)
	if conf == language.No {
		return Fallback
	}
	return supported[idx]
}

// Normalize reduces a language code to its two-letter base.
func Normalize(code string) (string, error) {
	tag, err := language.Parse(posixToBCP47(code))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
	}
	base, _ := tag.Base()
	return base.String(), nil
}

// posixToBCP47 turns "en_US.UTF-8" into "en-US".
func posixToBCP47(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".@"); i >= 0 {
		s = s[:i]
	}
	return strings.ReplaceAll(s, "_", "-")
}

// =============================================================================
// BUNDLE LOADING
// =============================================================================

func loadBundle(code string) (map[string]string, error) {
	data, err := localeFS.ReadFile(path.Join("locales", code+".json"))
	if err != nil {
		return nil, fmt.Errorf("read locale %s: %w", code, err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode locale %s: %w", code, err)
	}
	out := make(map[string]string)
	flatten("", raw, out)
	return out, nil
}

// flatten turns nested objects into dotted keys.
func flatten(prefix string, in map[string]any, out map[string]string) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case string:
			out[key] = val
		case map[string]any:
			flatten(key, val, out)
		}
	}
}
