// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package i18n

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsToEnglish(t *testing.T) {
	l, err := New("")
	require.NoError(t, err)

	require.Equal(t, "en", l.Language())
	require.Equal(t, "Hello! I'm your AI assistant. How can I help you today?", l.T(KeyGreeting))
	require.Equal(t, "Sorry, I encountered an error. Please try again.", l.T(KeyApology))
}

func TestAllBundlesHaveEveryEnglishKey(t *testing.T) {
	l := MustNew("en")
	for _, code := range Languages() {
		t.Run(code, func(t *testing.T) {
			for key := range l.bundles[Fallback] {
				_, ok := l.bundles[code][key]
				require.Truef(t, ok, "%s missing %s", code, key)
			}
		})
	}
}

func TestSetLanguage(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{code: "es", want: "es"},
		{code: "pt-BR", want: "pt"},
		{code: "zh-Hans", want: "zh"},
		{code: "ja_JP.UTF-8", want: "ja"},
		{code: "AR", want: "ar"},
	}

	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			l := MustNew("en")
			require.NoError(t, l.SetLanguage(tc.code))
			require.Equal(t, tc.want, l.Language())
		})
	}
}

func TestSetLanguage_UnsupportedKeepsCurrent(t *testing.T) {
	l := MustNew("fr")

	err := l.SetLanguage("ko")
	require.ErrorIs(t, err, ErrUnsupportedLanguage)
	require.Equal(t, "fr", l.Language())

	err = l.SetLanguage("not a language!")
	require.ErrorIs(t, err, ErrUnsupportedLanguage)
	require.Equal(t, "fr", l.Language())
}

func TestT_Fallbacks(t *testing.T) {
	l := MustNew("de")
	l.bundles["de"] = map[string]string{KeySend: "Nachricht senden"}

	require.Equal(t, "Nachricht senden", l.T(KeySend))
	require.Equal(t, "Chat Assistant", l.T(KeyTitle), "missing key falls back to English")
	require.Equal(t, "no.such.key", l.T("no.such.key"))
}

func TestNext_Cycles(t *testing.T) {
	l := MustNew("ja")
	require.Equal(t, "en", l.Next())
	require.Equal(t, "es", l.Next())
}

func TestMatch(t *testing.T) {
	l := MustNew("en")

	require.Equal(t, "de", l.Match("de_AT.UTF-8"))
	require.Equal(t, "en", l.Match(""))
	require.Equal(t, "fr", l.Match("xx", "fr-CA"))
}

func TestLanguagesReturnsCopy(t *testing.T) {
	langs := Languages()
	require.Len(t, langs, 10)
	langs[0] = "xx"
	require.Equal(t, "en", Languages()[0])
}
