package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/oasrouter/internal/dispatch"
	"github.com/mark3labs/oasrouter/internal/mock"
	"github.com/mark3labs/oasrouter/internal/spec"
)

// loadAPI loads cfg.Input and applies the tag filters.
func loadAPI(ctx context.Context, cfg *Config) (*spec.API, error) {
	doc, err := spec.Load(ctx, cfg.Input,
		spec.WithHTTPTimeout(cfg.FetchTimeout),
		spec.WithMaxRetries(cfg.FetchRetries),
	)
	if err != nil {
		var se *spec.SpecError
		if errors.As(err, &se) {
			msg := fmt.Sprintf("spec: %s", se.Message)
			if se.Location != "" {
				msg = fmt.Sprintf("%s\nLocation: %s", msg, se.Location)
			}
			if se.JSONPointer != "" {
				msg = fmt.Sprintf("%s\nPointer: %s", msg, se.JSONPointer)
			}
			return nil, newUsageError(msg)
		}
		return nil, err
	}

	api, err := spec.BuildAPI(ctx, doc,
		spec.WithIncludeTags(cfg.IncludeTags),
		spec.WithExcludeTags(cfg.ExcludeTags),
	)
	if err != nil {
		return nil, fmt.Errorf("build model: %w", err)
	}
	return api, nil
}

// newMockDispatcher binds example-backed handlers and the configured
// credentials to api.
func newMockDispatcher(cfg *Config, api *spec.API, logger *slog.Logger, extra ...dispatch.Option) (*dispatch.Dispatcher, error) {
	policy, err := cfg.unboundPolicy()
	if err != nil {
		return nil, err
	}
	shared, err := readSchemas(cfg.Schemas)
	if err != nil {
		return nil, err
	}
	opts := []dispatch.Option{
		dispatch.WithLogger(logger),
		dispatch.WithUnboundPolicy(policy),
		dispatch.WithSchemas(shared...),
	}
	opts = append(opts, extra...)

	d, err := dispatch.New(api, mock.Handlers(api), mock.SecurityHandlers(api, cfg.Credentials), opts...)
	if err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}
	return d, nil
}

func readSchemas(paths []string) ([]any, error) {
	out := make([]any, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, newUsageError(fmt.Sprintf("read schema %q: %v", p, err))
		}
		out = append(out, data)
	}
	return out, nil
}

func printPlan(outDir string, count int, relPaths []string) {
	fmt.Fprintf(os.Stdout, "Planned writes to %s (%d files):\n", outDir, count)
	for _, p := range relPaths {
		fmt.Fprintf(os.Stdout, "- %s\n", p)
	}
}

func wrapOutputError(err error, outDir string) error {
	// Provide clearer guidance for common FS failures.
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") || strings.Contains(lower, "rename") || strings.Contains(lower, "output directory") {
		return newUsageError(fmt.Sprintf("output error for %s: %s\nHint: choose a different --out or use --force when appropriate.", outDir, msg))
	}
	return err
}

func absPath(p string) string {
	if ap, err := filepath.Abs(p); err == nil {
		return ap
	}
	return p
}
