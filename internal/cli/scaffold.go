package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/oasrouter/internal/scaffold"
)

var scaffoldRunner = runScaffold

func newScaffoldCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scaffold",
		Short: "Emit a Go package of handler stubs for an API description",
		Long: "Emit one handler stub per operationId and one check per security scheme, " +
			"bound into the maps dispatch.New expects.",
		Example: strings.TrimSpace(`  oasrouter scaffold --input openapi.yaml --out ./internal/api --module example.com/svc
  oasrouter scaffold --input openapi.yaml --out ./internal/api --dry-run`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Out == "" {
				return newUsageError("scaffold: --out is required (set via flag or config file)")
			}
			return scaffoldRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("input", "", "Path or URL to the OpenAPI document")
	flags.StringSlice("include-tags", nil, "Only include operations with these tags")
	flags.StringSlice("exclude-tags", nil, "Exclude operations with these tags")
	flags.Duration("fetch-timeout", 0, "Timeout per HTTP request when --input is a URL (default 10s)")
	flags.Int("fetch-retries", 0, "Attempts per URL on transient failures (default 3)")
	flags.String("out", "", "Output directory")
	flags.String("package", "", "Go package name (derived from the API title when omitted)")
	flags.String("module", "", "Module path that hosts the dispatch and security packages")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("force", false, "Overwrite existing output when set")

	return cmd
}

func runScaffold(ctx context.Context, cfg *Config) error {
	api, err := loadAPI(ctx, cfg)
	if err != nil {
		return err
	}
	absOut := absPath(cfg.Out)
	res, err := scaffold.Emit(ctx, api, scaffold.Options{
		OutDir:  cfg.Out,
		Package: cfg.Package,
		Module:  cfg.Module,
		Force:   cfg.Force,
		DryRun:  cfg.DryRun,
	})
	if err != nil {
		return wrapOutputError(err, absOut)
	}
	if cfg.DryRun {
		paths := make([]string, 0, len(res.Planned))
		for _, p := range res.Planned {
			paths = append(paths, p.RelPath)
		}
		printPlan(absOut, len(res.Planned), paths)
	}
	return nil
}
