// Package inference derives skills for one source unit with a Gemini model.
package inference

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/muhammadolammi/skillmatchworker/internal/logger"
	"github.com/muhammadolammi/skillmatchworker/internal/models"
	"github.com/muhammadolammi/skillmatchworker/internal/retry"
)

const defaultMaxLogLength = 200

type Options struct {
	// Backend names the completer in logs.
	Backend      string
	Attempts     int
	Backoff      time.Duration
	Timeout      time.Duration
	MaxLogLength int
}

type Inferer struct {
	completer Completer
	opts      Options
	logger    *zap.Logger
}

func NewInferer(completer Completer, opts Options, log *zap.Logger) *Inferer {
	if opts.Attempts <= 0 {
		opts.Attempts = 2
	}
	if opts.Backoff <= 0 {
		opts.Backoff = retry.DefaultBackoff
	}
	if opts.MaxLogLength <= 0 {
		opts.MaxLogLength = defaultMaxLogLength
	}
	return &Inferer{
		completer: completer,
		opts:      opts,
		logger:    logger.OrNop(log).With(zap.String(logger.FieldBackend, opts.Backend)),
	}
}

// InferSkills returns an error only when the model could not be reached;
// unreadable answers produce an empty list.
func (i *Inferer) InferSkills(ctx context.Context, bundle models.SignalBundle) ([]models.DerivedSkill, error) {
	prompt := BuildPrompt(bundle)
	log := i.logger.With(zap.String(logger.FieldUnit, bundle.Unit.FullName))
	log.Debug("inference request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, i.opts.MaxLogLength)),
	)

	raw, err := retry.Do(ctx, i.opts.Attempts, i.opts.Backoff, func(ctx context.Context) (string, error) {
		if i.opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, i.opts.Timeout)
			defer cancel()
		}
		return i.completer.Complete(ctx, prompt)
	})
	if err != nil {
		return nil, fmt.Errorf("infer skills: %w", err)
	}

	log.Debug("inference response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, i.opts.MaxLogLength)),
	)

	skills := ParseSkills(raw)
	if len(skills) == 0 {
		log.Warn("no skills parsed", zap.String("response_preview", logger.TruncateForLog(raw, i.opts.MaxLogLength)))
	}
	return skills, nil
}
