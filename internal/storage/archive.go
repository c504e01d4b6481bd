package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Archive хранит итоговые результаты интервью в JSON файлах
type Archive struct {
	dir string
}

func NewArchive(dir string) *Archive {
	if dir == "" {
		dir = "results"
	}
	return &Archive{dir: dir}
}

// NewInterviewResult собирает архивную выгрузку из состояния сессии
func NewInterviewResult(s *Session) *InterviewResult {
	result := &InterviewResult{
		InterviewID: s.ID,
		FormatName:  s.FormatName,
		Timestamp:   s.UpdatedAt.UTC().Format(time.RFC3339),
		Candidate:   s.Candidate,
		Evaluation:  s.Evaluation,
		Answers:     make([]QA, 0, len(s.Answers)),
	}
	for _, a := range s.Answers {
		result.Answers = append(result.Answers, QA{
			Question: a.Question,
			Answer:   a.Answer,
			TimedOut: a.TimedOut,
		})
	}
	return result
}

// SaveResult сохраняет результат интервью в JSON файл и возвращает путь к нему
func (a *Archive) SaveResult(result *InterviewResult) (string, error) {
	// Создаем директорию если её нет
	err := os.MkdirAll(a.dir, 0755)
	if err != nil {
		return "", fmt.Errorf("ошибка создания директории %s: %w", a.dir, err)
	}

	path := a.path(result.InterviewID)

	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("ошибка сериализации результата: %w", err)
	}

	// Пишем во временный файл и переименовываем, чтобы не оставить половину записи
	tmp := path + ".tmp"
	err = os.WriteFile(tmp, jsonData, 0644)
	if err != nil {
		return "", fmt.Errorf("ошибка записи файла %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("ошибка записи файла %s: %w", path, err)
	}

	return path, nil
}

// LoadResult загружает результат интервью из JSON файла
func (a *Archive) LoadResult(interviewID string) (*InterviewResult, error) {
	path := a.path(interviewID)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла %s: %w", path, err)
	}

	var result InterviewResult
	err = json.Unmarshal(data, &result)
	if err != nil {
		return nil, fmt.Errorf("ошибка десериализации JSON: %w", err)
	}

	return &result, nil
}

// ListResults возвращает ID всех сохраненных интервью
func (a *Archive) ListResults() ([]string, error) {
	if _, err := os.Stat(a.dir); os.IsNotExist(err) {
		return []string{}, nil
	}

	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения директории %s: %w", a.dir, err)
	}

	results := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		if id, ok := strings.CutPrefix(strings.TrimSuffix(name, ".json"), "interview_"); ok {
			results = append(results, id)
		}
	}

	return results, nil
}

func (a *Archive) path(interviewID string) string {
	return filepath.Join(a.dir, fmt.Sprintf("interview_%s.json", interviewID))
}
