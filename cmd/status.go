package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/api"
	"github.com/spigell/cv-ranker/internal/logger"
	"github.com/spigell/cv-ranker/internal/orchestrator"
)

var statusCmd = &cobra.Command{
	Use:   "status TASK_ID",
	Short: "Print the status of a job from the configured job store",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		status(args[0])
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func status(id string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if backend := strings.ToLower(config.Store.Backend); backend == "" || backend == "memory" {
		logger.Warn("memory job store only knows jobs of the current process",
			zap.String("hint", "set store.backend to sqlite"),
		)
	}

	jobs, err := newJobStore(config.Store)
	if err != nil {
		logger.Fatal("opening job store", zap.Error(err))
	}
	defer jobs.Close()

	job, err := orchestrator.New(orchestrator.Config{}, orchestrator.Deps{Store: jobs, Logger: logger}).Status(ctx, id)
	if err != nil {
		logger.Fatal("reading job status", zap.Error(err))
	}

	out, _ := json.MarshalIndent(api.NewResultResponse(job), "", "  ")
	fmt.Println(string(out))
}
