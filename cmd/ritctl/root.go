package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "ritctl",
	Short:         "Operations tool for the adaptive assessment service",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute запускает корневую команду
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (overrides CONFIG_PATH env var)")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(simulateCmd)
}

// resolveConfigPath возвращает путь к конфигурации: флаг --config, затем CONFIG_PATH, затем значение по умолчанию
func resolveConfigPath(cmd *cobra.Command) string {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return p
	}
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config/config.yaml"
}
