package vertex

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/spigell/cv-ranker/internal/logger"
	"github.com/spigell/cv-ranker/internal/metrics"
	"github.com/spigell/cv-ranker/internal/utils"
)

const (
	Provider = "vertex"

	defaultModel      = "gemini-2.5-flash"
	defaultLocation   = "us-central1"
	defaultMaxRetries = 3
	baseRetryDelay    = 2 * time.Second
)

var wait = utils.WaitFor

type contentModel interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type Options struct {
	Project           string
	Location          string
	Model             string
	MaxRetries        int
	RequestsPerMinute int
	Logger            *zap.Logger
	Metrics           *metrics.Metrics
}

// Generator sends prompts to a Gemini model hosted on Vertex AI.
type Generator struct {
	client     *genai.Client
	model      contentModel
	modelName  string
	maxRetries int
	limiter    *rate.Limiter
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewGenerator creates a Vertex AI client using application default credentials.
func NewGenerator(ctx context.Context, opts Options) (*Generator, error) {
	project := strings.TrimSpace(opts.Project)
	if project == "" {
		return nil, errors.New("vertex project is required")
	}

	location := strings.TrimSpace(opts.Location)
	if location == "" {
		location = defaultLocation
	}

	client, err := genai.NewClient(ctx, project, location)
	if err != nil {
		return nil, fmt.Errorf("create vertex ai client: %w", err)
	}

	name := strings.TrimSpace(opts.Model)
	if name == "" {
		name = defaultModel
	}

	model := client.GenerativeModel(name)
	model.SetTemperature(0.2)
	model.SetTopK(40)
	model.SetTopP(0.95)
	model.SetMaxOutputTokens(4096)

	g := newGenerator(model, name, opts)
	g.client = client
	return g, nil
}

func newGenerator(model contentModel, name string, opts Options) *Generator {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	var limiter *rate.Limiter
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}

	return &Generator{
		model:      model,
		modelName:  name,
		maxRetries: maxRetries,
		limiter:    limiter,
		logger:     logger.WithCommonFields(opts.Logger, Provider, name),
		metrics:    opts.Metrics,
	}
}

// GenerateContent sends the prompt and returns the text of the first candidate.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	for attempt := 1; ; attempt++ {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("wait for request slot: %w", err)
			}
		}

		g.metrics.Inc(metrics.LLMRequests)
		output, err := g.generateOnce(ctx, prompt)
		if err == nil {
			return output, nil
		}

		if !isTemporary(err) || attempt >= g.maxRetries {
			return "", err
		}

		delay := utils.Backoff(baseRetryDelay, 2, attempt)
		g.logger.Warn("vertex request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		g.metrics.Inc(metrics.LLMRequestsRetried)

		if err := wait(ctx, delay); err != nil {
			return "", fmt.Errorf("wait before retry: %w", err)
		}
	}
}

func (g *Generator) generateOnce(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no response candidates returned")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}

	output := strings.TrimSpace(b.String())
	if output == "" {
		return "", errors.New("vertex ai returned empty response")
	}

	return output, nil
}

func isTemporary(err error) bool {
	switch status.Code(errors.Unwrap(err)) {
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.Aborted:
		return true
	}
	return false
}

func (g *Generator) Model() string {
	return g.modelName
}

func (g *Generator) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
