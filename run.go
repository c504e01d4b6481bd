package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"interview-engine/internal/interview"
	"interview-engine/internal/storage"
)

var (
	questionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	promptStyle   = lipgloss.NewStyle().Bold(true)
)

// console оформление интерактивного режима. Без терминала стили не применяются.
type console struct {
	out   io.Writer
	width int
	plain bool
}

func newConsole(out io.Writer) *console {
	c := &console{out: out, width: 80, plain: true}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		c.plain = false
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 20 {
			c.width = w - 2
		}
	}
	return c
}

func (c *console) render(style lipgloss.Style, text string) string {
	text = wordwrap.String(text, c.width)
	if c.plain {
		return text
	}
	return style.Render(text)
}

func (c *console) println(style lipgloss.Style, text string) {
	fmt.Fprintln(c.out, c.render(style, text))
}

func (c *console) question(turn interview.Turn) {
	c.println(headerStyle, fmt.Sprintf("\nВопрос %d", turn.QuestionIndex+1))
	c.println(questionStyle, turn.Message)
	if turn.Deadline != nil {
		c.println(mutedStyle, fmt.Sprintf("Ответить до %s", turn.Deadline.Local().Format("15:04:05")))
	}
}

func (c *console) evaluation(eval *storage.Evaluation) {
	if eval == nil {
		c.println(noticeStyle, "Оценка недоступна.")
		return
	}
	c.println(headerStyle, "\nОценка интервью")
	if eval.Verdict != "" {
		c.println(nameStyle, "Вердикт: "+eval.Verdict)
	}
	c.println(lipgloss.NewStyle(), eval.Summary)
	for i, r := range eval.Reviews {
		c.println(nameStyle, fmt.Sprintf("%d. %s [%s]", i+1, r.Question, r.Rating))
		c.println(mutedStyle, r.Feedback)
	}
	if m := eval.Metrics; m != nil {
		c.println(lipgloss.NewStyle(), fmt.Sprintf("Уверенность: %s\nПаттерны ответов: %s\nЯсность и полнота: %s",
			m.Confidence, m.AnsweringPatterns, m.ClarityAndCompletenessWithinTime))
	}
}

func runCmd(opts *globalOptions) *cobra.Command {
	var name, role, companies string
	cmd := &cobra.Command{
		Use:   "run <format>",
		Short: "Пройти интервью в терминале",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				candidate := storage.Candidate{Name: name, Role: role, Companies: splitList(companies)}
				return runInterview(ctx, a.engine, args[0], candidate, cmd.InOrStdin(), newConsole(cmd.OutOrStdout()))
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "имя кандидата")
	cmd.Flags().StringVar(&role, "role", "", "целевая роль")
	cmd.Flags().StringVar(&companies, "companies", "", "компании через запятую")
	return cmd
}

// runInterview читает ответы построчно. Команды: /end завершает досрочно, /abort прерывает.
func runInterview(ctx context.Context, engine *interview.Engine, format string, candidate storage.Candidate, in io.Reader, c *console) error {
	turn, err := engine.Start(ctx, format, interview.WithCandidate(candidate))
	if err != nil {
		return err
	}
	cfg := turn.Config
	c.println(mutedStyle, fmt.Sprintf("Интервью %s, формат %s. Команды: /end, /abort", cfg.SessionID, cfg.FormatName))
	c.question(turn)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Fprint(c.out, c.render(promptStyle, "> "))
		if !scanner.Scan() {
			break
		}
		answer := strings.TrimSpace(scanner.Text())

		switch answer {
		case "/abort":
			if _, err := engine.Abort(ctx, cfg); err != nil {
				return err
			}
			c.println(noticeStyle, "Интервью прервано.")
			return nil
		case "/end":
			return finishInterview(ctx, engine, cfg, c)
		}

		started := time.Now()
		turn, err = engine.Next(ctx, cfg, answer)
		if err != nil {
			return err
		}
		if turn.TimedOut {
			c.println(noticeStyle, interview.TimeoutNotice)
		}
		if turn.Finished() {
			return finishInterview(ctx, engine, cfg, c)
		}
		c.println(mutedStyle, fmt.Sprintf("(следующий вопрос за %s)", time.Since(started).Round(time.Millisecond)))
		c.question(interview.Turn{
			Config:        turn.Config,
			Message:       strings.TrimPrefix(turn.Message, interview.TimeoutNotice+"\n\n"),
			QuestionIndex: turn.QuestionIndex,
			Deadline:      turn.Deadline,
		})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	// Ввод закончился раньше вопросов: завершаем с тем, что есть
	return finishInterview(ctx, engine, cfg, c)
}

func finishInterview(ctx context.Context, engine *interview.Engine, cfg interview.Config, c *console) error {
	c.println(mutedStyle, "Готовлю оценку...")
	res, err := engine.End(ctx, cfg, nil)
	if err != nil {
		return err
	}
	c.evaluation(res.Evaluation)
	return nil
}
