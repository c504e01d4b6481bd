package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"interview-engine/internal/httpapi"
	"interview-engine/internal/interview"
	"interview-engine/internal/operations"
	"interview-engine/internal/storage"
	"interview-engine/internal/telegram"
)

// withApp собирает зависимости, выполняет fn и закрывает хранилище
func withApp(cmd *cobra.Command, opts *globalOptions, fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, opts, cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func sessionArg(id string) interview.Config {
	return interview.Config{SessionID: id}
}

func serveCmd(opts *globalOptions) *cobra.Command {
	var telegramFormat string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "HTTP API и Telegram бот",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				server := httpapi.NewServer(a.engine, a.metrics, a.cfg.Server, a.logger)

				background := []func(context.Context){func(ctx context.Context) {
					a.engine.RunTimerSweep(ctx, time.Hour)
				}}
				if a.bot != nil {
					handler := telegram.NewHandler(a.bot, a.engine, telegram.HandlerConfig{
						DefaultFormat: telegramFormat,
						EndOperations: []operations.Spec{{"type": "archive"}, {"type": "report"}},
					}, a.logger)

					background = append(background, handler.RunCleanup, func(ctx context.Context) {
						a.logger.Info("Telegram бот запущен")
						if err := a.bot.StartPolling(ctx, handler.HandleUpdate); err != nil {
							a.logger.Error("ошибка Telegram бота", "error", err)
						}
					})
				} else {
					a.logger.Info("TELEGRAM_BOT_TOKEN не установлен, бот отключен")
				}

				return runWithBackground(ctx, server.ListenAndServe, background...)
			})
		},
	}
	cmd.Flags().StringVar(&telegramFormat, "telegram-format", "", "формат по умолчанию для /start в Telegram")
	return cmd
}

// runWithBackground запускает фоновые задачи на время run и дожидается их.
// Выход run, в том числе с ошибкой, отменяет контекст фоновых задач.
func runWithBackground(ctx context.Context, run func(context.Context) error, background ...func(context.Context)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, task := range background {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task(ctx)
		}()
	}

	err := run(ctx)
	cancel()
	wg.Wait()
	return err
}

func startCmd(opts *globalOptions) *cobra.Command {
	var candidate storage.Candidate
	var companies string
	cmd := &cobra.Command{
		Use:   "start <format>",
		Short: "Начать интервью и получить первый вопрос",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			candidate.Companies = splitList(companies)
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				turn, err := a.engine.Start(ctx, args[0], interview.WithCandidate(candidate))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), turn)
			})
		},
	}
	cmd.Flags().StringVar(&candidate.Name, "name", "", "имя кандидата")
	cmd.Flags().StringVar(&candidate.Role, "role", "", "целевая роль")
	cmd.Flags().StringVar(&companies, "companies", "", "компании через запятую")
	return cmd
}

func nextCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "next <session-id> <answer>",
		Short: "Ответить на текущий вопрос",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				turn, err := a.engine.Next(ctx, sessionArg(args[0]), strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), turn)
			})
		},
	}
}

func endCmd(opts *globalOptions) *cobra.Command {
	var opsPath string
	cmd := &cobra.Command{
		Use:   "end <session-id>",
		Short: "Завершить интервью, получить оценку и выполнить операции",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := readOperations(opsPath)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				res, err := a.engine.End(ctx, sessionArg(args[0]), ops)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&opsPath, "ops", "", "JSON файл со списком операций")
	return cmd
}

func statusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <session-id>",
		Short: "Показать состояние сессии",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				view, err := a.engine.Status(ctx, sessionArg(args[0]))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), view)
			})
		},
	}
}

func abortCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "abort <session-id>",
		Short: "Прервать интервью без оценки",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				view, err := a.engine.Abort(ctx, sessionArg(args[0]))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), view)
			})
		},
	}
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	nameStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

func formatsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "Список форматов интервью",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(_ context.Context, a *app) error {
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, headerStyle.Render("Форматы интервью"))
				for _, f := range a.engine.Formats() {
					line := fmt.Sprintf("%s  %d вопр. по %s, %s", nameStyle.Render(f.Name), f.QuestionCount, f.TimePerQuestion, f.QuestionType)
					if f.Description != "" {
						line += "  " + mutedStyle.Render(f.Description)
					}
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}
}

func resultsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "results [session-id]",
		Short: "Архив результатов: список или один результат",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(_ context.Context, a *app) error {
				if len(args) == 1 {
					result, err := a.archive.LoadResult(args[0])
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), result)
				}

				ids, err := a.archive.ListResults()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, headerStyle.Render("Результаты интервью"))
				if len(ids) == 0 {
					fmt.Fprintln(out, mutedStyle.Render("архив пуст"))
					return nil
				}
				for _, id := range ids {
					result, err := a.archive.LoadResult(id)
					if err != nil {
						fmt.Fprintf(out, "%s  %s\n", nameStyle.Render(id), mutedStyle.Render(err.Error()))
						continue
					}
					verdict := "-"
					if result.Evaluation != nil && result.Evaluation.Verdict != "" {
						verdict = result.Evaluation.Verdict
					}
					fmt.Fprintf(out, "%s  %s  %d отв.  %s\n", nameStyle.Render(id), result.FormatName,
						len(result.Answers), mutedStyle.Render(result.Timestamp+" "+verdict))
				}
				return nil
			})
		},
	}
}

func readOperations(path string) ([]operations.Spec, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла операций: %w", err)
	}
	var ops []operations.Spec
	if err := json.Unmarshal(data, &ops); err != nil {
		return nil, fmt.Errorf("ошибка парсинга операций %s: %w", path, err)
	}
	return ops, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
