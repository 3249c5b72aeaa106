package syllabus

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/trackademic/core"
)

// Invoker calls the completion provider with a bounded retry policy.
type Invoker struct {
	provider       Completer
	logger         core.Logger
	maxAttempts    int
	backoffBase    time.Duration
	attemptTimeout time.Duration
	cleanupTimeout time.Duration
}

func NewInvoker(provider Completer, conf *core.Config, logger core.Logger) *Invoker {
	inv := &Invoker{
		provider:       provider,
		logger:         logger,
		maxAttempts:    conf.Syllabus.MaxAttempts,
		backoffBase:    conf.Syllabus.BackoffBase,
		attemptTimeout: conf.Syllabus.AttemptTimeout,
		cleanupTimeout: conf.Syllabus.CleanupTimeout,
	}
	if inv.maxAttempts < 1 {
		inv.maxAttempts = 1
	}
	if inv.cleanupTimeout <= 0 {
		inv.cleanupTimeout = 15 * time.Second
	}
	return inv
}

// Backoff is the wait after the failed attempt number `attempt` (1-based): 2^attempt * base.
func (inv *Invoker) Backoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * inv.backoffBase
}

// Invoke returns the provider's generated text for the payload.
// PDFs go through a provider-side upload when the provider is a FileStore; that file is deleted on every exit path.
func (inv *Invoker) Invoke(ctx context.Context, p *Payload, prompt string) (string, error) {
	req := CompletionRequest{
		Mode:      p.Mode,
		Prompt:    prompt,
		MediaType: p.MediaType,
		FileName:  p.FileName,
	}
	switch p.Mode {
	case ModeVision:
		req.Data, req.Base64 = p.Data, p.Base64
	case ModePDF:
		store, ok := inv.provider.(FileStore)
		if !ok {
			req.Data = p.Data
			break
		}
		var ref string
		err := inv.retry(ctx, "upload", func(ctx context.Context) error {
			var err error
			ref, err = store.UploadFile(ctx, p.FileName, p.MediaType, p.Data)
			return err
		})
		if err != nil {
			return "", err
		}
		inv.logger.Info("provider file uploaded", "provider", inv.provider.Name(), "file", ref)
		defer inv.cleanup(ctx, store, ref)
		req.FileRef = ref
	}

	var text string
	err := inv.retry(ctx, "complete", func(ctx context.Context) error {
		var err error
		text, err = inv.provider.Complete(ctx, req)
		return err
	})
	return text, err
}

// Ask sends a prompt with no attached document.
func (inv *Invoker) Ask(ctx context.Context, prompt string) (string, error) {
	return inv.Invoke(ctx, &Payload{Mode: ModeText}, prompt)
}

// cleanup deletes an uploaded file, even when ctx is already cancelled. Failures are only logged.
func (inv *Invoker) cleanup(ctx context.Context, store FileStore, ref string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), inv.cleanupTimeout)
	defer cancel()
	if err := store.DeleteFile(cctx, ref); err != nil {
		inv.logger.Warn("failed to delete provider file", "provider", inv.provider.Name(), "file", ref, err)
		return
	}
	inv.logger.Debug("provider file deleted", "provider", inv.provider.Name(), "file", ref)
}

// retry runs call up to maxAttempts times, waiting Backoff(attempt) between overloaded attempts.
// The wait is a timer select, so it only suspends this call and ends early when ctx is done.
func (inv *Invoker) retry(ctx context.Context, op string, call func(ctx context.Context) error) error {
	provider := inv.provider.Name()
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return internalError(errors.Wrap(err, "request cancelled"))
		}

		start := time.Now()
		err := inv.attempt(ctx, call)
		if err == nil {
			inv.logger.Info("provider call succeeded", "provider", provider, "op", op, "attempt", attempt, "took", time.Since(start).String())
			return nil
		}

		class := classify(err)
		if class == classOther && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			class = classOverloaded // attempt timeout
		}
		inv.logger.Warn("provider call failed", "provider", provider, "op", op, "attempt", attempt,
			"max_attempts", inv.maxAttempts, "class", class.String(), err)

		if ctx.Err() != nil {
			return internalError(errors.Wrap(ctx.Err(), "request cancelled"))
		}

		switch class {
		case classRateLimited:
			return &Error{
				Kind:    KindRateLimited,
				Message: fmt.Sprintf("%s API rate limit exceeded. Please try again later.", providerTitle(provider)),
				Details: providerDetail(err),
				Err:     err,
			}
		case classOverloaded:
			if attempt >= inv.maxAttempts {
				return unavailable(provider, err)
			}
		case classServer:
			return unavailable(provider, err)
		default:
			return internalError(errors.Wrapf(err, "%s %s", provider, op))
		}

		delay := inv.Backoff(attempt)
		inv.logger.Info(fmt.Sprintf("provider overloaded, retrying in %s", delay), "provider", provider, "op", op,
			"attempt", attempt, "max_attempts", inv.maxAttempts)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return internalError(errors.Wrap(ctx.Err(), "request cancelled during backoff"))
		}
	}
}

func (inv *Invoker) attempt(ctx context.Context, call func(ctx context.Context) error) error {
	if inv.attemptTimeout <= 0 {
		return call(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, inv.attemptTimeout)
	defer cancel()
	return call(actx)
}

func unavailable(provider string, err error) *Error {
	return &Error{
		Kind:    KindProviderUnavailable,
		Message: fmt.Sprintf("%s API is currently experiencing issues. Please try again.", providerTitle(provider)),
		Details: providerDetail(err),
		Err:     err,
	}
}

func providerTitle(name string) string {
	switch name {
	case "openai":
		return "OpenAI"
	case "gemini":
		return "Gemini"
	case "":
		return "AI provider"
	}
	return name
}
