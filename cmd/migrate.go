package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/interview-worker/internal/logger"
	"github.com/spigell/interview-worker/internal/storage/gormstore"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Run: func(_ *cobra.Command, _ []string) {
		migrate()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func migrate() {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil || config.Database == nil {
		logger.Fatal("database config is required")
	}

	store, err := gormstore.Open(config.Database.Driver, config.Database.DSN, logger)
	if err != nil {
		logger.Fatal("opening the database", zap.Error(err))
	}
	defer store.Close()

	if err := store.Migrate(context.Background()); err != nil {
		logger.Fatal("migrating the database", zap.Error(err))
	}

	logger.Info("database schema is up to date", zap.String("driver", config.Database.Driver))
}
