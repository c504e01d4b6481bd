package config

import (
	"sort"
	"time"
)

// QuestionType задает характер вопросов формата
type QuestionType string

const (
	QuestionBehavioral QuestionType = "behavioral"
	QuestionCoding     QuestionType = "coding"
	QuestionMixed      QuestionType = "mixed"
)

// Valid сообщает, известен ли тип вопросов
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionBehavioral, QuestionCoding, QuestionMixed:
		return true
	}
	return false
}

// Format представляет одну запись набора правил
type Format struct {
	Name            string
	QuestionCount   int
	TimePerQuestion time.Duration
	QuestionType    QuestionType
	Description     string
}

// RuleSet неизменяемый каталог форматов интервью.
// После загрузки безопасен для конкурентного чтения без блокировок.
type RuleSet struct {
	formats map[string]Format
}

// NewRuleSet собирает набор правил из уже проверенных форматов
func NewRuleSet(formats ...Format) *RuleSet {
	rs := &RuleSet{formats: make(map[string]Format, len(formats))}
	for _, f := range formats {
		rs.formats[f.Name] = f
	}
	return rs
}

// Lookup возвращает формат по имени
func (r *RuleSet) Lookup(name string) (Format, bool) {
	f, ok := r.formats[name]
	return f, ok
}

// Names возвращает отсортированный список имен форматов
func (r *RuleSet) Names() []string {
	names := make([]string, 0, len(r.formats))
	for name := range r.formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *RuleSet) Len() int {
	return len(r.formats)
}

// rulesDocument повторяет структуру YAML файла правил.
// Указатели позволяют отличить отсутствующее поле от нулевого значения.
type rulesDocument struct {
	Formats map[string]rawFormat `yaml:"formats"`
}

type rawFormat struct {
	QuestionCount   *int    `yaml:"question_count"`
	TimePerQuestion *string `yaml:"time_per_question"`
	QuestionType    *string `yaml:"question_type"`
	Description     string  `yaml:"description"`
}

// Settings описывает документ настроек процесса
type Settings struct {
	LLMModelName   string `toml:"llm_model_name" yaml:"llm_model_name" json:"llm_model_name"`
	LLMProvider    string `toml:"llm_provider" yaml:"llm_provider" json:"llm_provider"`
	StorageMode    string `toml:"storage_mode" yaml:"storage_mode" json:"storage_mode"`
	DatabaseURI    string `toml:"database_uri" yaml:"database_uri" json:"database_uri"`
	InternetSearch string `toml:"internet_search" yaml:"internet_search" json:"internet_search"`
	AnswerGrace    string `toml:"answer_grace" yaml:"answer_grace" json:"answer_grace"`
	LogLevel       string `toml:"log_level" yaml:"log_level" json:"log_level"`
	ResultsDir     string `toml:"results_dir" yaml:"results_dir" json:"results_dir"`
	ReportsDir     string `toml:"reports_dir" yaml:"reports_dir" json:"reports_dir"`
}

const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"

	SearchDuckDuckGo = "duckduckgo"
	SearchBing       = "bing"

	ProviderAuto      = "auto"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderOllama    = "ollama"
	ProviderScripted  = "scripted"
)

// DefaultSettings возвращает настройки по умолчанию
func DefaultSettings() Settings {
	return Settings{
		LLMProvider:    ProviderAuto,
		StorageMode:    StorageMemory,
		InternetSearch: SearchDuckDuckGo,
		AnswerGrace:    "5s",
		LogLevel:       "info",
		ResultsDir:     "results",
		ReportsDir:     "reports",
	}
}

// Grace возвращает допуск к дедлайну ответа.
// Значение уже проверено в Validate, поэтому ошибка разбора дает ноль.
func (s *Settings) Grace() time.Duration {
	d, err := time.ParseDuration(s.AnswerGrace)
	if err != nil {
		return 0
	}
	return d
}
