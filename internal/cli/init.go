package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// InitConfig captures the options for the init command.
type InitConfig struct {
	OutputPath string
	Force      bool
	Verbose    bool
}

var initRunner = runInit

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a sample oasrouter configuration file",
		Long:  "Write a commented oasrouter configuration file that documents available options.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				return err
			}
			cfg := &InitConfig{
				OutputPath: out,
				Force:      force,
				Verbose:    verbose,
			}
			return initRunner(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("out", "oasrouter.yaml", "Where to write the sample config file")
	cmd.Flags().Bool("force", false, "Overwrite the target file if it already exists")

	return cmd
}

func runInit(ctx context.Context, cfg *InitConfig) error {
	_ = ctx

	out := strings.TrimSpace(cfg.OutputPath)
	if out == "" {
		out = "oasrouter.yaml"
	}
	absPath, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("init: resolve output path: %w", err)
	}

	if st, err := os.Stat(absPath); err == nil && !cfg.Force {
		if st.Mode().IsRegular() {
			return newUsageError(fmt.Sprintf("init: %q already exists (use --force to overwrite)", absPath))
		}
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return newUsageError(fmt.Sprintf("init: cannot create parent directory: %v", err))
	}

	content := strings.TrimSpace(sampleConfigYAML) + "\n"

	// Atomic write via temp + rename
	tmp := absPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return newUsageError(fmt.Sprintf("init: cannot write temp file: %v\nHint: choose a different --out or check directory permissions.", err))
	}
	if err := os.Rename(tmp, absPath); err != nil {
		_ = os.Remove(tmp)
		return newUsageError(fmt.Sprintf("init: cannot place file at %s: %v", absPath, err))
	}
	fmt.Fprintf(os.Stdout, "Wrote sample config to %s\n", absPath)
	return nil
}

// sampleConfigYAML is a commented example config documenting available options.
const sampleConfigYAML = `# oasrouter configuration (YAML)
# All fields are optional. Command-line flags override config values.
# The same keys work in JSON, or in TOML when the file ends in .toml.

# Path or URL to the OpenAPI 3 document (http/https or local file).
# input: ./openapi.yaml

# Remote inputs: timeout per request and attempts on transient failures.
# fetchTimeout: 10s
# fetchRetries: 3

# Only include operations with these tags (comma-separated or list).
# includeTags: [public,read]

# Exclude operations with these tags (comma-separated or list).
# excludeTags: [internal]

# Shared JSON schema documents the API references by $id.
# schemas: [./schemas/common.json]

# Operations without a handler: skip (log and leave unrouted) or reject.
# unbound: skip

# serve: listen address and router (gin|echo).
# addr: ":8080"
# router: gin

# serve: accepted credentials per security scheme. For http schemes the key is
# the text after the auth scheme ("Bearer <key>"), for apiKey schemes the key
# itself. The value becomes the principal handed to handlers; null maps to
# {credential: <key>}.
# credentials:
#   Bearer:
#     Jane: {name: Jane, role: admin}
#   ApiKey:
#     k-123: null

# serve: expose Prometheus metrics on /metrics.
# metrics: false

# serve: print OpenTelemetry spans to stderr.
# trace: false

# check: fail when security schemes lack credentials.
# strict: false

# scaffold: output directory, package name and module hosting internal/dispatch.
# out: ./internal/api
# package: api
# module: github.com/mark3labs/oasrouter

# scaffold: preview planned outputs without writing files.
# dryRun: false

# scaffold: overwrite a non-empty output directory.
# force: false

# Enable verbose logging.
# verbose: false
`
