// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/completion"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/i18n"
	"github.com/jeranaias/parley/internal/logging"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/session"
	"github.com/jeranaias/parley/internal/storage"
)

// =============================================================================
// ARGUMENT PARSING
// =============================================================================

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		argv    []string
		cmd     Command
		check   func(t *testing.T, a Args)
		wantErr error
	}{
		{name: "default is tui", argv: nil, cmd: CmdTUI},
		{name: "plain selects chat", argv: []string{"--plain"}, cmd: CmdChat},
		{name: "tui with plain", argv: []string{"tui", "--plain"}, cmd: CmdChat},
		{
			name: "ask joins words",
			argv: []string{"ask", "what", "is", "go"},
			cmd:  CmdAsk,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "what is go", a.Query)
			},
		},
		{
			name: "global flags anywhere",
			argv: []string{"--lang", "es", "chat", "--mode=stub", "--no-dictation"},
			cmd:  CmdChat,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "es", a.Lang)
				assert.Equal(t, "stub", a.Mode)
				assert.True(t, a.NoDictation)
				assert.Empty(t, a.Raw)
			},
		},
		{
			name: "subcommand args kept in order",
			argv: []string{"history", "list", "--limit", "5", "--json"},
			cmd:  CmdHistory,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, []string{"list", "--limit", "5"}, a.Raw)
				assert.True(t, a.JSON)
			},
		},
		{name: "server alias", argv: []string{"server", "--addr", ":9000"}, cmd: CmdServe},
		{name: "sessions alias", argv: []string{"sessions"}, cmd: CmdHistory},
		{name: "version flag", argv: []string{"--version"}, cmd: CmdVersion},
		{name: "help flag", argv: []string{"-h"}, cmd: CmdHelp},
		{name: "unknown command", argv: []string{"bogus"}, cmd: CmdHelp, wantErr: ErrUnknownCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args, err := ParseArgs(tt.argv)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cmd, cmd)
			if tt.check != nil {
				tt.check(t, args)
			}
		})
	}
}

func TestParseArgs_Errors(t *testing.T) {
	_, _, err := ParseArgs([]string{"ask"})
	require.Error(t, err)

	_, _, err = ParseArgs([]string{"ask", "  "})
	require.Error(t, err)

	_, _, err = ParseArgs([]string{"chat", "--config"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--config")
}

func TestArgParser(t *testing.T) {
	p := NewArgParser([]string{"export", "3f2a", "--format", "json", "--output=/tmp/out", "--force", "--dry=false"})

	assert.Equal(t, "export", p.Subcommand())
	assert.Equal(t, "3f2a", p.Positional(1))
	assert.Equal(t, "", p.Positional(5))
	assert.Equal(t, 2, p.PositionalCount())
	assert.Equal(t, "json", p.Flag("format"))
	assert.Equal(t, "/tmp/out", p.Flag("--output"))
	assert.True(t, p.BoolFlag("force"))
	assert.False(t, p.BoolFlag("dry"))
	assert.Equal(t, "md", p.FlagOrDefault("missing", "md"))
	assert.Equal(t, 20, p.FlagIntOrDefault("format", 20))
	assert.Nil(t, p.PositionalFrom(2))
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "tui", CmdTUI.String())
	assert.Equal(t, "history", CmdHistory.String())
	assert.Equal(t, "help", Command(99).String())
}

// =============================================================================
// FLAGS AND OUTPUT
// =============================================================================

func TestApplyFlags(t *testing.T) {
	cfg := config.Default()
	err := applyFlags(cfg, Args{
		Mode:        "stub",
		Endpoint:    "http://localhost:9999",
		Lang:        "fr",
		Addr:        "127.0.0.1:9000",
		NoDictation: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "stub", cfg.Completion.Mode)
	assert.Equal(t, "http://localhost:9999", cfg.Completion.Endpoint)
	assert.Equal(t, "fr", cfg.UI.Language)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.False(t, cfg.Dictation.Enabled)
}

func TestApplyFlags_Invalid(t *testing.T) {
	err := applyFlags(config.Default(), Args{Mode: "telepathy"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "completion.mode")

	err = applyFlags(config.Default(), Args{Lang: "xx"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ui.language")
}

func TestServerConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Production = true
	cfg.Server.StubDelayMs = 0

	sc := serverConfig(cfg)
	assert.Equal(t, "127.0.0.1:8787", sc.Addr)
	assert.True(t, sc.Production)
	assert.Zero(t, sc.StubDelay)
	assert.Equal(t, 20, sc.RateBurst)
	assert.Equal(t, int64(1<<20), sc.MaxBodyBytes)
}

func TestHighlightFences(t *testing.T) {
	in := "Here you go:\n```go\nfmt.Println(\"hi\")\n```\nDone."
	got := highlightFences(in, plainCode)
	assert.Equal(t, "Here you go:\n    fmt.Println(\"hi\")\nDone.", got)

	var langs []string
	highlightFences("```python\nx = 1\n```\n```\ny\n", func(code, lang string) string {
		langs = append(langs, lang)
		return code
	})
	assert.Equal(t, []string{"python", ""}, langs)

	assert.Equal(t, "no code", highlightFences("no code", plainCode))
}

func TestHighlightCode(t *testing.T) {
	out := highlightCode("package main", "go")
	assert.Contains(t, out, "package")
	assert.Contains(t, out, "\x1b[")
}

func TestJSONResponse(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONError("ask", errors.New("boom")).Write(&buf))

	var resp JSONResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "ask", resp.Command)
	assert.Equal(t, "boom", resp.Error)
}

// =============================================================================
// ASK
// =============================================================================

func TestRunAsk_Plain(t *testing.T) {
	var buf bytes.Buffer
	err := runAsk(context.Background(), completion.NewStub(0), completion.ModeStub, "en",
		Args{Query: "hello"}, &buf, func(s string) string { return s })
	require.NoError(t, err)
	assert.Equal(t, completion.StubReply("hello")+"\n", buf.String())
}

func TestRunAsk_JSON(t *testing.T) {
	var buf bytes.Buffer
	err := runAsk(context.Background(), completion.NewStub(0), completion.ModeStub, "es",
		Args{Query: "hola", JSON: true}, &buf, nil)
	require.NoError(t, err)

	var resp struct {
		Success bool    `json:"success"`
		Data    AskData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "hola", resp.Data.Question)
	assert.Equal(t, completion.StubReply("hola"), resp.Data.Answer)
	assert.Equal(t, "stub", resp.Data.Mode)
	assert.Equal(t, "es", resp.Data.Language)
}

func TestRunAsk_Failure(t *testing.T) {
	failing := completion.Func(func(context.Context, []model.ChatMessage) (string, error) {
		return "", errors.New("upstream down")
	})

	var buf bytes.Buffer
	err := runAsk(context.Background(), failing, completion.ModeProxy, "en", Args{Query: "q", JSON: true}, &buf, nil)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "upstream down")
}

// =============================================================================
// LINE MODE
// =============================================================================

// scriptedReader replays lines, then reports EOF.
type scriptedReader struct {
	lines   []string
	prompts []string
}

func (r *scriptedReader) Prompt(p string) (string, error) {
	r.prompts = append(r.prompts, p)
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

// recordingService echoes the last user message and records prompts.
type recordingService struct {
	mu      sync.Mutex
	prompts []string
}

func (s *recordingService) Complete(_ context.Context, history []model.ChatMessage) (string, error) {
	last := history[len(history)-1].Content
	s.mu.Lock()
	s.prompts = append(s.prompts, last)
	s.mu.Unlock()
	return "echo: " + last, nil
}

func newTestController(svc completion.Service) *session.Controller {
	return session.New(svc, i18n.MustNew("en"), session.WithLogger(logging.Discard()))
}

func TestRunREPL_Exchange(t *testing.T) {
	svc := &recordingService{}
	sess := newTestController(svc)
	defer sess.Close()

	in := &scriptedReader{lines: []string{"hello there", "   ", "/quit", "never read"}}
	var out bytes.Buffer
	require.NoError(t, runREPL(context.Background(), sess, in, &out, plainCode))

	assert.Equal(t, []string{"hello there"}, svc.prompts)
	assert.Contains(t, out.String(), "echo: hello there")
	assert.Contains(t, out.String(), "Hello! I'm your AI assistant.")
	assert.Equal(t, []string{"never read"}, in.lines)
	assert.Equal(t, 3, sess.Log().Len())
}

func TestRunREPL_Continuation(t *testing.T) {
	svc := &recordingService{}
	sess := newTestController(svc)
	defer sess.Close()

	in := &scriptedReader{lines: []string{"line one\\", "line two"}}
	var out bytes.Buffer
	require.NoError(t, runREPL(context.Background(), sess, in, &out, plainCode))

	require.Len(t, svc.prompts, 1)
	assert.Equal(t, "line one\nline two", svc.prompts[0])
	assert.Equal(t, []string{"you> ", "...> ", "you> "}, in.prompts)
}

func TestRunREPL_SlashCommands(t *testing.T) {
	sess := newTestController(&recordingService{})
	defer sess.Close()

	in := &scriptedReader{lines: []string{"/lang es", "/lang xx", "/help", "/nope"}}
	var out bytes.Buffer
	require.NoError(t, runREPL(context.Background(), sess, in, &out, plainCode))

	assert.Equal(t, "es", sess.Localizer().Language())
	assert.Contains(t, out.String(), "Unknown command: /nope")
	assert.Contains(t, out.String(), "/quit")
	assert.Equal(t, 1, sess.Log().Len())
}

// =============================================================================
// HISTORY
// =============================================================================

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func archiveSession(t *testing.T, store *storage.Store, user, reply string) string {
	t.Helper()
	log := model.NewSessionLog("Hello!")
	log.Append(model.RoleUser, user)
	log.Append(model.RoleAssistant, reply)
	require.NoError(t, store.Archive(context.Background(), log, "en"))
	return log.ID()
}

func TestRunHistory_ListAndSearch(t *testing.T) {
	store := newTestStore(t)
	archiveSession(t, store, "How do goroutines work?", "They are lightweight threads.")
	archiveSession(t, store, "Best pizza topping?", "Basil.")
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, runHistory(ctx, store, Args{Raw: []string{"list"}}, &buf))
	assert.Contains(t, buf.String(), "How do goroutines work?")
	assert.Contains(t, buf.String(), "Best pizza topping?")

	buf.Reset()
	require.NoError(t, runHistory(ctx, store, Args{Raw: []string{"search", "goroutines"}, JSON: true}, &buf))
	var resp struct {
		Data []storage.SessionMeta `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, 3, resp.Data[0].MessageCount)

	buf.Reset()
	require.NoError(t, runHistory(ctx, store, Args{Raw: []string{"search", "nothing-matches"}}, &buf))
	assert.Contains(t, buf.String(), "No sessions found.")

	require.Error(t, runHistory(ctx, store, Args{Raw: []string{"search"}}, &buf))
}

func TestRunHistory_ShowExportDelete(t *testing.T) {
	store := newTestStore(t)
	id := archiveSession(t, store, "What is Go?", "A programming language.")
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, runHistory(ctx, store, Args{Raw: []string{"show", id[:8]}}, &buf))
	assert.Contains(t, buf.String(), "### You")
	assert.Contains(t, buf.String(), "A programming language.")

	dir := t.TempDir()
	buf.Reset()
	require.NoError(t, runHistory(ctx, store, Args{Raw: []string{"export", id, "--format", "json", "--output", dir}}, &buf))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".json"))

	buf.Reset()
	require.NoError(t, runHistory(ctx, store, Args{Raw: []string{"delete", id}}, &buf))
	assert.Contains(t, buf.String(), "Deleted session "+id)

	err = runHistory(ctx, store, Args{Raw: []string{"show", id}}, &buf)
	require.ErrorIs(t, err, storage.ErrSessionNotFound)
}

func TestRunHistory_Usage(t *testing.T) {
	store := newTestStore(t)
	var buf bytes.Buffer

	require.Error(t, runHistory(context.Background(), store, Args{Raw: []string{"show"}}, &buf))
	require.Error(t, runHistory(context.Background(), store, Args{Raw: []string{"frobnicate"}}, &buf))
	require.Error(t, runHistory(context.Background(), store, Args{Raw: []string{"export", "x", "--format", "html"}}, &buf))
}

// =============================================================================
// CONFIG
// =============================================================================

func TestRunConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := config.Default()
	cfg.OpenRouter.APIKey = "sk-secret"
	var buf bytes.Buffer

	require.NoError(t, runConfig(cfg, path, Args{Raw: []string{"path"}}, &buf))
	assert.Equal(t, path+"\n", buf.String())

	buf.Reset()
	require.NoError(t, runConfig(cfg, path, Args{Raw: []string{"show"}}, &buf))
	assert.Contains(t, buf.String(), "[REDACTED]")
	assert.NotContains(t, buf.String(), "sk-secret")

	buf.Reset()
	require.NoError(t, runConfig(cfg, path, Args{Raw: []string{"get", "completion.mode"}}, &buf))
	assert.Equal(t, "auto\n", buf.String())

	require.NoError(t, runConfig(cfg, path, Args{Raw: []string{"init"}}, &buf))
	require.Error(t, runConfig(cfg, path, Args{Raw: []string{"init"}}, &buf))
	require.NoError(t, runConfig(cfg, path, Args{Raw: []string{"init", "--force"}}, &buf))

	require.NoError(t, runConfig(cfg, path, Args{Raw: []string{"set", "ui.language", "de"}}, &buf))
	assert.Equal(t, "de", cfg.UI.Language)

	saved, err := config.LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "de", saved.UI.Language)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-secret")
}

func TestRunConfig_SetInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	var buf bytes.Buffer

	require.Error(t, runConfig(config.Default(), path, Args{Raw: []string{"set", "ui.language", "xx"}}, &buf))
	require.Error(t, runConfig(config.Default(), path, Args{Raw: []string{"set", "ui.nope", "1"}}, &buf))
	require.Error(t, runConfig(config.Default(), path, Args{Raw: []string{"set", "ui.language"}}, &buf))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRunREPL_Retry(t *testing.T) {
	var calls int
	flaky := completion.Func(func(_ context.Context, history []model.ChatMessage) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("upstream down")
		}
		return "got: " + history[len(history)-1].Content, nil
	})
	sess := newTestController(flaky)
	defer sess.Close()

	in := &scriptedReader{lines: []string{"/retry", "ping", "/retry"}}
	var out bytes.Buffer
	require.NoError(t, runREPL(context.Background(), sess, in, &out, plainCode))

	assert.Contains(t, out.String(), "Nothing to retry yet.")
	assert.Contains(t, out.String(), "got: ping")
	assert.Equal(t, 2, calls)
	assert.Equal(t, 5, sess.Log().Len())
	assert.Equal(t, "got: ping", sess.Log().Last().Content)
}
