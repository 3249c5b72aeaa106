// Package llm selects the configured completion provider.
package llm

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/trackademic/core"
	"github.com/trezcool/trackademic/core/syllabus"
	"github.com/trezcool/trackademic/services/llm/gemini"
	"github.com/trezcool/trackademic/services/llm/openai"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// NewProvider returns the provider named by conf.LLM.Provider.
// The Gemini provider only reads PDFs from Cloud Storage when a bucket is configured.
func NewProvider(ctx context.Context, conf *core.Config, logger core.Logger) (syllabus.Completer, error) {
	switch conf.LLM.Provider {
	case ProviderOpenAI, "":
		c, err := openai.NewClient(conf, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ProviderGemini:
		if conf.LLM.GeminiBucket != "" {
			c, err := gemini.NewFileClient(ctx, conf, logger)
			if err != nil {
				return nil, err
			}
			return c, nil
		}
		c, err := gemini.NewClient(ctx, conf, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, errors.Errorf("llm: unknown provider %q", conf.LLM.Provider)
	}
}
