package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrInvalidRuleSet возвращается, если документ правил поврежден
var ErrInvalidRuleSet = errors.New("некорректный набор правил")

// LoadRules загружает набор правил из YAML файла
func LoadRules(filename string) (*RuleSet, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла %s: %w", filename, err)
	}

	return ParseRules(data)
}

// ParseRules разбирает и проверяет документ правил
func ParseRules(data []byte) (*RuleSet, error) {
	var doc rulesDocument
	err := yaml.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка парсинга YAML: %w", ErrInvalidRuleSet, err)
	}

	if len(doc.Formats) == 0 {
		return nil, fmt.Errorf("%w: не задано ни одного формата", ErrInvalidRuleSet)
	}

	formats := make([]Format, 0, len(doc.Formats))
	for name, raw := range doc.Formats {
		format, err := validateFormat(name, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRuleSet, err)
		}
		formats = append(formats, format)
	}

	return NewRuleSet(formats...), nil
}

// validateFormat проверяет корректность одной записи правил.
// Нулевое число вопросов допускается: формат загрузится, но start его отклонит.
func validateFormat(name string, raw rawFormat) (Format, error) {
	if strings.TrimSpace(name) == "" {
		return Format{}, fmt.Errorf("имя формата не может быть пустым")
	}

	if raw.QuestionCount == nil {
		return Format{}, fmt.Errorf("формат %s: не задано question_count", name)
	}
	if *raw.QuestionCount < 0 {
		return Format{}, fmt.Errorf("формат %s: question_count не может быть отрицательным", name)
	}

	if raw.TimePerQuestion == nil {
		return Format{}, fmt.Errorf("формат %s: не задано time_per_question", name)
	}
	timeout, err := time.ParseDuration(*raw.TimePerQuestion)
	if err != nil {
		return Format{}, fmt.Errorf("формат %s: некорректное time_per_question %q: %w", name, *raw.TimePerQuestion, err)
	}
	if timeout <= 0 {
		return Format{}, fmt.Errorf("формат %s: time_per_question должно быть больше 0", name)
	}

	if raw.QuestionType == nil {
		return Format{}, fmt.Errorf("формат %s: не задано question_type", name)
	}
	qt := QuestionType(*raw.QuestionType)
	if !qt.Valid() {
		return Format{}, fmt.Errorf("формат %s: неизвестный question_type %q", name, *raw.QuestionType)
	}

	return Format{
		Name:            name,
		QuestionCount:   *raw.QuestionCount,
		TimePerQuestion: timeout,
		QuestionType:    qt,
		Description:     raw.Description,
	}, nil
}

// LoadSettings загружает настройки из TOML, YAML или JSON файла.
// Пустой путь означает настройки по умолчанию.
func LoadSettings(filename string) (*Settings, error) {
	settings := DefaultSettings()
	if filename == "" {
		return &settings, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла %s: %w", filename, err)
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".toml":
		meta, err := toml.Decode(string(data), &settings)
		if err != nil {
			return nil, fmt.Errorf("ошибка парсинга TOML: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("неизвестные ключи в %s: %s", filename, strings.Join(keys, ", "))
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&settings); err != nil {
			return nil, fmt.Errorf("ошибка парсинга YAML: %w", err)
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&settings); err != nil {
			return nil, fmt.Errorf("ошибка парсинга JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("неподдерживаемый формат настроек: %s", filename)
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("ошибка валидации настроек: %w", err)
	}

	return &settings, nil
}

// Validate проверяет настройки и собирает все найденные проблемы
func (s *Settings) Validate() error {
	var errs []error

	switch s.StorageMode {
	case StorageMemory:
	case StorageSQLite, StoragePostgres, StorageMongo:
		if s.DatabaseURI == "" {
			errs = append(errs, fmt.Errorf("database_uri обязателен для storage_mode %q", s.StorageMode))
		}
	default:
		errs = append(errs, fmt.Errorf("неизвестный storage_mode %q", s.StorageMode))
	}

	switch s.LLMProvider {
	case ProviderAuto, ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderOllama, ProviderScripted:
	default:
		errs = append(errs, fmt.Errorf("неизвестный llm_provider %q", s.LLMProvider))
	}

	switch s.InternetSearch {
	case SearchDuckDuckGo, SearchBing:
	default:
		errs = append(errs, fmt.Errorf("неизвестный internet_search %q", s.InternetSearch))
	}

	if d, err := time.ParseDuration(s.AnswerGrace); err != nil {
		errs = append(errs, fmt.Errorf("некорректный answer_grace %q: %w", s.AnswerGrace, err))
	} else if d < 0 {
		errs = append(errs, fmt.Errorf("answer_grace не может быть отрицательным"))
	}

	switch strings.ToLower(s.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("неизвестный log_level %q", s.LogLevel))
	}

	return errors.Join(errs...)
}
