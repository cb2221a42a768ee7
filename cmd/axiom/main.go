// AXIOM is a smart-home assistant bridge for Home Assistant.
//
// It turns natural-language prompts into device service calls, web
// search answers, and calculations, using a local language model to
// plan the actions. Configuration is loaded from a YAML file found
// automatically (see [config.DefaultSearchPaths]) plus add-on
// environment variables.
//
// Usage:
//
//	axiom serve                Start the HTTP API and MQTT bridges
//	axiom ask <prompt>         Run one prompt through the pipeline
//	axiom remember <text>      Store a long-term memory
//	axiom sort <file>          File a photo or document
//	axiom version              Print version and build information
//	axiom -o json version      Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Brent1981/AIProject/internal/buildinfo"
	"github.com/Brent1981/AIProject/internal/config"
)

// main only builds the OS-level environment and hands off to run, so
// the whole command lifecycle can be driven from tests.
func main() {
	if err := run(context.Background(), os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run executes the CLI with injected stdio and arguments.
func run(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

type globalFlags struct {
	configPath string
	output     string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:           "axiom",
		Short:         "AXIOM - smart-home assistant bridge for Home Assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if flags.output != "text" && flags.output != "json" {
				return fmt.Errorf("unknown output format: %q (expected text or json)", flags.output)
			}
			return config.LoadDotEnv(".env")
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config file (default: auto-discover)")
	root.PersistentFlags().StringVarP(&flags.output, "output", "o", "text", "output format: text or json")

	root.AddCommand(
		newServeCmd(&flags, stdout),
		newAskCmd(&flags, stdout),
		newRememberCmd(&flags, stdout),
		newSortCmd(&flags, stdout),
		newVersionCmd(&flags, stdout),
	)
	return root
}

func newVersionCmd(flags *globalFlags, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runVersion(stdout, flags.output)
		},
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// loadConfig finds and loads the config file. With no explicit path
// and no file in the search paths, the built-in defaults plus
// environment overrides are used, which is how the add-on runs.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		if explicit != "" {
			return nil, "", err
		}
		cfg := config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, "", err
		}
		return cfg, "(defaults)", nil
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	return cfg, cfgPath, nil
}

// configuredLogger builds the logger for cfg. Validate has already
// rejected unknown levels, so the parse error is unreachable.
func configuredLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level, _ := config.ParseLogLevel(cfg.LogLevel)
	return config.NewLogger(w, level, strings.ToLower(cfg.LogFormat))
}
