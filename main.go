// Command interview-engine проводит технические интервью по формату из набора правил:
// HTTP API, Telegram бот и интерактивный режим в терминале.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

type globalOptions struct {
	settingsPath string
	rulesPath    string
	envPath      string
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "interview-engine",
		Short:         "Движок технических интервью",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.settingsPath, "settings", "", "файл настроек (.toml, .yaml, .json)")
	root.PersistentFlags().StringVar(&opts.rulesPath, "rules", "config/rules.yaml", "файл форматов интервью")
	root.PersistentFlags().StringVar(&opts.envPath, "env", ".env", "файл переменных окружения")

	root.AddCommand(
		serveCmd(opts),
		startCmd(opts),
		nextCmd(opts),
		endCmd(opts),
		statusCmd(opts),
		abortCmd(opts),
		formatsCmd(opts),
		resultsCmd(opts),
		runCmd(opts),
	)
	return root
}
