package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/history-map/internal/application/handlers"
	"github.com/ersonp/history-map/internal/domain/ports"
	"github.com/ersonp/history-map/internal/infrastructure/config"
	"github.com/ersonp/history-map/internal/infrastructure/relationaldb/sqlite"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the histmap state directory",
		Long:  "Creates the state directory with a default config.yaml and the local cache database.",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	home, err := config.ResolveHome(globalHome)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(home, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	initHandler := handlers.NewInitHandler(func(cfg config.SQLiteConfig) (ports.WorkspaceCache, error) {
		return sqlite.NewRepository(cfg)
	})

	result, err := initHandler.Handle(cmd.Context(), home)
	if err != nil {
		return err
	}

	fmt.Printf("Created %s\n", result.ConfigPath)
	fmt.Printf("Created %s\n", result.CachePath)
	fmt.Println("histmap initialized. Run 'histmap login' to connect your GitHub account.")
	return nil
}
