// Package cli implements the findexec command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/idelchi/findexec/internal/findexec"
)

// EnvPrefix prefixes environment variables that override flags.
const EnvPrefix = "FINDEXEC"

// Output formats.
const (
	OutputText  = "text"
	OutputJSON  = "json"
	OutputTable = "table"
)

// CLI represents the command-line interface.
type CLI struct {
	version string
	env     findexec.Env
}

// New creates a new CLI instance with the given version.
func New(version string) CLI {
	return CLI{version: version}
}

// aliases maps alternative flag names onto their canonical name.
//
//nolint:gochecknoglobals // Config constant
var aliases = map[string]string{
	"exclude-owner": "exclude-user",
}

// Command builds the root command.
//
//nolint:funlen // Flag definitions
func (c CLI) Command() *cobra.Command {
	cfg := viper.New()

	cmd := &cobra.Command{
		Use:   "findexec [flags] target",
		Short: "List ELF binaries in a directory and group them by owner",
		Long: heredoc.Doc(`
			findexec lists ELF files in the target directory and groups them by the
			user that owns them, reporting the number of files and their total size.

			Entries are visited breadth-first. Symbolic links are never followed.
			Files and directories whose name contains the --exclude substring are
			skipped, as are entries owned by any --exclude-user.

			Every flag can also be set in a config file (--config) or through a
			FINDEXEC_<FLAG> environment variable, e.g. FINDEXEC_RECURSIVELY=true.
		`),
		Example: heredoc.Doc(`
			findexec /usr/bin
			findexec -r --exclude test --exclude-user root -o json /opt
		`),
		Version:       c.version,
		Args:          withUsage(cobra.ExactArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			options, err := optionsFrom(cfg, args[0])
			if err != nil {
				return err
			}

			return c.logic(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), options)
		},
	}

	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(cmd, err)
	})

	flags := cmd.Flags()
	flags.SortFlags = false
	flags.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		if canonical, ok := aliases[name]; ok {
			name = canonical
		}

		return pflag.NormalizedName(name)
	})

	flags.BoolP("recursively", "r", false, "Recursively list the directory")
	flags.String("exclude", "", "Exclude files and directories whose name contains this string")
	flags.StringSlice("exclude-user", nil, "Exclude files owned by these users (alias --exclude-owner)")
	flags.StringP("output", "o", OutputText, "Output format: text, json or table")
	flags.String("strategy", findexec.StrategyELF, "Classification strategy: elf, exec or elf+exec")
	flags.Bool("parallel", false, "Walk directories concurrently (same result order)")
	flags.Bool("keep-unresolved", false, "Keep owners without a username, labelled by uid")
	flags.String("log-level", "warn", "Diagnostic log level: debug, info, warn or error")
	flags.String("config", "", "Config file (yaml, json or toml)")

	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		return bindConfig(cfg, cmd.Flags())
	}

	return cmd
}

// usageError appends the usage text to a command-line error.
func usageError(cmd *cobra.Command, err error) error {
	return fmt.Errorf("%w\n\n%s", err, strings.TrimRight(cmd.UsageString(), "\n"))
}

// withUsage wraps an argument validator so failures carry the usage text.
func withUsage(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return usageError(cmd, err)
		}

		return nil
	}
}

// bindConfig layers config file and environment values under the flags.
func bindConfig(cfg *viper.Viper, flags *pflag.FlagSet) error {
	if err := cfg.BindPFlags(flags); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	for alias, canonical := range aliases {
		cfg.RegisterAlias(alias, canonical)
	}

	cfg.SetEnvPrefix(EnvPrefix)
	cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	cfg.AutomaticEnv()

	if path := cfg.GetString("config"); path != "" {
		cfg.SetConfigFile(path)

		if err := cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %q: %w", path, err)
		}
	}

	return nil
}

// optionsFrom validates the merged configuration.
func optionsFrom(cfg *viper.Viper, target string) (findexec.Options, error) {
	options := findexec.Options{
		Path:           target,
		Recursive:      cfg.GetBool("recursively"),
		Exclude:        cfg.GetString("exclude"),
		ExcludeUsers:   cfg.GetStringSlice("exclude-user"),
		Strategy:       strings.ToLower(cfg.GetString("strategy")),
		Parallel:       cfg.GetBool("parallel"),
		KeepUnresolved: cfg.GetBool("keep-unresolved"),
		Output:         strings.ToLower(cfg.GetString("output")),
		LogLevel:       cfg.GetString("log-level"),
	}

	if options.Output == "" {
		options.Output = OutputText
	}

	allowedOutputs := []string{OutputText, OutputJSON, OutputTable}
	if !slices.Contains(allowedOutputs, options.Output) {
		return options, fmt.Errorf("invalid output format %q: must be one of %v", options.Output, allowedOutputs)
	}

	if !slices.Contains(findexec.Strategies(), options.Strategy) {
		return options, fmt.Errorf("invalid strategy %q: must be one of %v", options.Strategy, findexec.Strategies())
	}

	return options, nil
}

// Execute runs the CLI with the process arguments. Interrupts cancel the walk.
func (c CLI) Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return c.Command().ExecuteContext(ctx)
}
