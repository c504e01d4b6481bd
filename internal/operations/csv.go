package operations

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"
)

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9_\-]+`)

var reportHeader = []string{"index", "question", "question_type", "answer", "timed_out", "rating", "feedback"}

// CSVReportOperation выгружает ответы и оценки по каждому вопросу в CSV.
// Параметры: name (имя файла без расширения), dir (переопределяет каталог).
type CSVReportOperation struct {
	Dir string
}

func (c *CSVReportOperation) Handle(_ context.Context, spec Spec, report *Report) (string, error) {
	dir := c.Dir
	if d := spec.String("dir"); d != "" {
		dir = d
	}
	if dir == "" {
		dir = "reports"
	}

	name := unsafeFileChars.ReplaceAllString(spec.String("name"), "_")
	if name == "" {
		name = "interview_" + unsafeFileChars.ReplaceAllString(report.SessionID, "_")
	}
	stamp := report.CompletedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.csv", name, stamp.UTC().Format("20060102T150405")))

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("ошибка создания директории %s: %w", dir, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("ошибка создания файла %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(reportHeader); err != nil {
		return "", fmt.Errorf("ошибка записи CSV: %w", err)
	}
	for i, a := range report.Answers {
		var rating, feedback string
		if report.Evaluation != nil && i < len(report.Evaluation.Reviews) {
			rating = report.Evaluation.Reviews[i].Rating
			feedback = report.Evaluation.Reviews[i].Feedback
		}
		record := []string{
			strconv.Itoa(i + 1),
			a.Question,
			a.QuestionType,
			a.Answer,
			strconv.FormatBool(a.TimedOut),
			rating,
			feedback,
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("ошибка записи CSV: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("ошибка записи CSV: %w", err)
	}

	return fmt.Sprintf("CSV отчет создан: %s (%d строк)", path, len(report.Answers)), nil
}
