package videos

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ibrbtv/backend/internal/logging"
)

// FallbackProvider tries each provider in order and returns the first title.
type FallbackProvider struct {
	Providers []Provider
}

// NewFallbackProvider drops nil providers from the chain.
func NewFallbackProvider(providers ...Provider) *FallbackProvider {
	chain := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			chain = append(chain, p)
		}
	}
	return &FallbackProvider{Providers: chain}
}

// Lookup implements Provider.
func (f *FallbackProvider) Lookup(ctx context.Context, url string) (Metadata, error) {
	if f == nil || len(f.Providers) == 0 {
		return Metadata{}, ErrProviderUnavailable
	}

	var errs []error
	for idx, provider := range f.Providers {
		meta, err := provider.Lookup(ctx, url)
		if err == nil && meta.Title != "" {
			return meta, nil
		}
		if err == nil {
			err = errors.New("provider returned empty title")
		}
		logging.FromContext(ctx).Warn("title provider failed", slog.Int("provider", idx), slog.String("url", url), slog.Any("error", err))
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return Metadata{}, errors.Join(errs...)
}
