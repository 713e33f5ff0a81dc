// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
)

// =============================================================================
// CODE HIGHLIGHTING
// =============================================================================

// highlightFences highlights fenced code blocks in a reply and leaves the
// rest of the text as is. An unclosed fence is highlighted to the end.
func highlightFences(text string, highlight func(code, lang string) string) string {
	lines := strings.Split(text, "\n")
	var out []string
	var code []string
	var lang string
	inFence := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			if inFence {
				out = append(out, strings.TrimRight(highlight(strings.Join(code, "\n"), lang), "\n"))
				code, lang, inFence = nil, "", false
			} else {
				lang = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
				inFence = true
			}
			continue
		}
		if inFence {
			code = append(code, line)
		} else {
			out = append(out, line)
		}
	}
	if inFence && len(code) > 0 {
		out = append(out, strings.TrimRight(highlight(strings.Join(code, "\n"), lang), "\n"))
	}
	return strings.Join(out, "\n")
}

// highlightCode renders code with ANSI colors using chroma.
func highlightCode(code, lang string) string {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}

// plainCode indents code without colors, for non-terminal output.
func plainCode(code, _ string) string {
	lines := strings.Split(code, "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}
