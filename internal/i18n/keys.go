// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package i18n

// Translation keys.
const (
	KeyTitle       = "app.title"
	KeyLanguage    = "app.language"
	KeyPlaceholder = "chat.placeholder"
	KeyGreeting    = "chat.greeting"
	KeyApology     = "chat.error"
	KeyThinking    = "chat.thinking"
	KeyListening   = "chat.listening"
	KeySend        = "chat.send"
	KeyTyping      = "chat.typing"
	KeyYou         = "chat.you"
	KeyAssistant   = "chat.assistant"

	KeyMicStart       = "mic.start"
	KeyMicStop        = "mic.stop"
	KeyMicUnsupported = "mic.unsupported"

	KeyPermissionDenied = "dictation.permission_denied"
	KeyNoMicrophone     = "dictation.no_microphone"
	KeyUnsupported      = "dictation.unsupported"
	KeyStartFailed      = "dictation.start_failed"

	KeyStatusReady   = "status.ready"
	KeyStatusPending = "status.pending"

	KeyExportSaved = "export.saved"
)
