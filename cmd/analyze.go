package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/export"
	"github.com/spigell/cv-ranker/internal/intake"
	"github.com/spigell/cv-ranker/internal/logger"
	"github.com/spigell/cv-ranker/internal/models"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "Proceed?",
	Items: []string{PromptYes, PromptNo},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze resume.pdf resume.pdf [...]",
	Short: "Analyze local resumes against a job description and print the ranked report",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		analyze(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().String("job-description", "", "job description text")
	analyzeCmd.Flags().StringP("job-description-file", "f", "", "file with the job description")
	analyzeCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before analysis")
	analyzeCmd.Flags().StringP("xlsx", "o", "", "also write the report to this xlsx file")
	analyzeCmd.Flags().Duration("timeout", 30*time.Minute, "maximum time to wait for the batch")
}

// analyze runs one batch in-process and prints the report to stdout.
func analyze(cmd *cobra.Command, paths []string) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config == nil {
		logger.Fatal("config is required")
	}

	logger.Info("starting the cv-ranker", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if err := analyzeBatch(context.Background(), cmd, config, logger, paths); err != nil {
		if errors.Is(err, errExit) {
			return
		}
		logger.Fatal("exiting", zap.Error(err))
	}
}

func analyzeBatch(ctx context.Context, cmd *cobra.Command, config *Config, logger *zap.Logger, paths []string) error {
	jobDescription, err := resolveJobDescription(cmd)
	if err != nil {
		return err
	}

	uploads, err := readUploads(paths)
	if err != nil {
		return err
	}

	p, err := buildPipeline(ctx, config, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(context.Background()); err != nil {
			logger.Warn("closing pipeline", zap.Error(err))
		}
	}()

	logger.Info("resumes to analyze", zap.Int("count", len(uploads)))

	if cmd.Flag("auto-approve").Value.String() == "false" {
		_, action, err := prompt.Run()
		if err != nil {
			return err
		}
		if action == PromptNo {
			logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return errExit
		}
	}

	refs, err := p.intake.Stage(ctx, uploads)
	if err != nil {
		return fmt.Errorf("staging resumes: %w", err)
	}

	id, err := p.orchestrator.Submit(ctx, refs, jobDescription)
	if err != nil {
		p.intake.Release(ctx, refs)
		return fmt.Errorf("submitting batch: %w", err)
	}

	logger.Info("batch submitted", zap.String("job_id", id), zap.Int("documents", len(refs)))

	timeout, _ := cmd.Flags().GetDuration("timeout")
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := p.orchestrator.Wait(waitCtx, id); err != nil {
		return fmt.Errorf("waiting for job %s: %w", id, err)
	}

	job, err := p.orchestrator.Status(ctx, id)
	if err != nil {
		return err
	}

	if job.State != models.JobSucceeded || job.Report == nil {
		return fmt.Errorf("job %s finished as %s: %s", id, job.State, job.FailureReason)
	}

	out, err := json.MarshalIndent(job.Report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	fmt.Println(string(out))

	if xlsx, _ := cmd.Flags().GetString("xlsx"); xlsx != "" {
		path, err := export.ToExcel(*job.Report, xlsx)
		if err != nil {
			return err
		}
		logger.Info("report written", zap.String("filename", path))
	}

	return nil
}

func resolveJobDescription(cmd *cobra.Command) (string, error) {
	text, _ := cmd.Flags().GetString("job-description")
	file, _ := cmd.Flags().GetString("job-description-file")

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read job description file: %w", err)
		}
		text = string(data)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("job description is required (use --job-description or --job-description-file)")
	}
	return text, nil
}

func readUploads(paths []string) ([]intake.Upload, error) {
	uploads := make([]intake.Upload, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read resume: %w", err)
		}
		uploads = append(uploads, intake.Upload{Filename: filepath.Base(path), Content: content})
	}
	return uploads, nil
}

// redacted returns a copy of config that is safe to log.
func redacted(config *Config) Config {
	out := *config
	if out.AI.Gemini.APIKey != "" {
		out.AI.Gemini.APIKey = "***"
	}
	if out.Storage.MinIO.SecretKey != "" {
		out.Storage.MinIO.SecretKey = "***"
	}
	return out
}
