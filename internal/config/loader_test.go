package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRules = `
formats:
  short:
    question_count: 5
    time_per_question: 60s
    question_type: mixed
  coding:
    question_count: 1
    time_per_question: 10m
    question_type: coding
    description: одна задача на программирование
  empty:
    question_count: 0
    time_per_question: 30s
    question_type: behavioral
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRules(t *testing.T) {
	rules, err := LoadRules(writeFile(t, "rules.yaml", sampleRules))
	require.NoError(t, err)

	assert.Equal(t, []string{"coding", "empty", "short"}, rules.Names())

	short, ok := rules.Lookup("short")
	require.True(t, ok)
	assert.Equal(t, 5, short.QuestionCount)
	assert.Equal(t, 60*time.Second, short.TimePerQuestion)
	assert.Equal(t, QuestionMixed, short.QuestionType)

	coding, ok := rules.Lookup("coding")
	require.True(t, ok)
	assert.Equal(t, 10*time.Minute, coding.TimePerQuestion)
	assert.Equal(t, "одна задача на программирование", coding.Description)

	empty, ok := rules.Lookup("empty")
	require.True(t, ok)
	assert.Zero(t, empty.QuestionCount)

	_, ok = rules.Lookup("missing")
	assert.False(t, ok)
}

func TestParseRulesRejectsMalformedFormats(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no formats", "formats: {}\n"},
		{"missing count", "formats:\n  a:\n    time_per_question: 1m\n    question_type: mixed\n"},
		{"negative count", "formats:\n  a:\n    question_count: -1\n    time_per_question: 1m\n    question_type: mixed\n"},
		{"missing duration", "formats:\n  a:\n    question_count: 2\n    question_type: mixed\n"},
		{"bad duration", "formats:\n  a:\n    question_count: 2\n    time_per_question: soon\n    question_type: mixed\n"},
		{"zero duration", "formats:\n  a:\n    question_count: 2\n    time_per_question: 0s\n    question_type: mixed\n"},
		{"missing type", "formats:\n  a:\n    question_count: 2\n    time_per_question: 1m\n"},
		{"unknown type", "formats:\n  a:\n    question_count: 2\n    time_per_question: 1m\n    question_type: trivia\n"},
		{"not yaml", "formats: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRules([]byte(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRuleSet)
		})
	}
}

func TestLoadSettingsFormats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"toml", "settings.toml", "storage_mode = \"sqlite\"\ndatabase_uri = \"engine.db\"\nanswer_grace = \"10s\"\n"},
		{"yaml", "settings.yaml", "storage_mode: sqlite\ndatabase_uri: engine.db\nanswer_grace: 10s\n"},
		{"json", "settings.json", `{"storage_mode":"sqlite","database_uri":"engine.db","answer_grace":"10s"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings, err := LoadSettings(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)
			assert.Equal(t, StorageSQLite, settings.StorageMode)
			assert.Equal(t, "engine.db", settings.DatabaseURI)
			assert.Equal(t, 10*time.Second, settings.Grace())
			assert.Equal(t, ProviderAuto, settings.LLMProvider, "defaults survive partial documents")
			assert.Equal(t, SearchDuckDuckGo, settings.InternetSearch)
		})
	}
}

func TestLoadSettingsRejectsUnknownKeys(t *testing.T) {
	_, err := LoadSettings(writeFile(t, "settings.toml", "storage_mode = \"memory\"\ncolour = \"red\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour")

	_, err = LoadSettings(writeFile(t, "settings.json", `{"colour":"red"}`))
	require.Error(t, err)
}

func TestSettingsValidateCollectsAllProblems(t *testing.T) {
	s := DefaultSettings()
	s.StorageMode = "postgres"
	s.InternetSearch = "altavista"
	s.AnswerGrace = "later"

	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database_uri")
	assert.Contains(t, err.Error(), "altavista")
	assert.Contains(t, err.Error(), "answer_grace")
}

func TestLoadSettingsEmptyPathGivesDefaults(t *testing.T) {
	settings, err := LoadSettings("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), *settings)
	assert.Equal(t, 5*time.Second, settings.Grace())
}

func TestResolveProvider(t *testing.T) {
	tests := []struct {
		name      string
		cfg       LLMConfig
		requested string
		want      string
	}{
		{"explicit wins", LLMConfig{OpenAIKey: "k"}, ProviderOllama, ProviderOllama},
		{"openai key", LLMConfig{OpenAIKey: "k", GoogleKey: "g"}, ProviderAuto, ProviderOpenAI},
		{"anthropic key", LLMConfig{AnthropicKey: "k"}, ProviderAuto, ProviderAnthropic},
		{"google key", LLMConfig{GoogleKey: "g"}, "", ProviderGemini},
		{"local fallback", LLMConfig{}, ProviderAuto, ProviderOllama},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.ResolveProvider(tt.requested))
		})
	}
}

func TestGetModelInfo(t *testing.T) {
	cfg := LLMConfig{MaxTokens: 1500, Temperature: 0.2}
	assert.Equal(t, map[string]any{
		"model":       "gpt-4o-mini",
		"max_tokens":  1500,
		"temperature": 0.2,
		"provider":    ProviderOpenAI,
	}, cfg.GetModelInfo(ProviderOpenAI, "gpt-4o-mini"))
}

func TestLoadAppConfigAllowedOrigins(t *testing.T) {
	t.Setenv("WS_ALLOWED_ORIGINS", "https://app.example.com, ,https://admin.example.com")
	cfg := LoadAppConfig()
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.Server.AllowedOrigins)

	t.Setenv("WS_ALLOWED_ORIGINS", "")
	assert.Empty(t, LoadAppConfig().Server.AllowedOrigins)
}
