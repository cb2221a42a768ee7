package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// withApp loads the config, builds the pipeline without metrics, and
// runs fn. Logs go to stderr so stdout carries only the result.
func withApp(ctx context.Context, flags *globalFlags, stderr io.Writer, fn func(*app) error) error {
	cfg, cfgPath, err := loadConfig(flags.configPath)
	if err != nil {
		return err
	}
	logger := configuredLogger(stderr, cfg)
	logger.Debug("config loaded", "path", cfgPath)

	a, err := newApp(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}()
	return fn(a)
}

func newAskCmd(flags *globalFlags, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Run one prompt through the pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			return withApp(cmd.Context(), flags, cmd.ErrOrStderr(), func(a *app) error {
				reply := a.orchestrator.Process(cmd.Context(), prompt, "")
				return printResult(stdout, flags.output, reply, map[string]string{"response": reply})
			})
		},
	}
}

func newRememberCmd(flags *globalFlags, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "remember <text>",
		Short: "Store a long-term memory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			return withApp(cmd.Context(), flags, cmd.ErrOrStderr(), func(a *app) error {
				reply := a.memory.Remember(cmd.Context(), text)
				return printResult(stdout, flags.output, reply, map[string]string{"response": reply})
			})
		},
	}
}

func newSortCmd(flags *globalFlags, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "sort <file>...",
		Short: "File photos and documents into the dated folder tree",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), flags, cmd.ErrOrStderr(), func(a *app) error {
				if a.sorter == nil {
					return errFileSorterDisabled
				}
				var failed int
				for _, path := range args {
					res, err := a.sorter.Process(cmd.Context(), path)
					if err != nil {
						a.logger.Error("sort failed", "path", path, "error", err)
						failed++
						continue
					}
					if err := printResult(stdout, flags.output, res.Source+" -> "+res.Destination, res); err != nil {
						return err
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d files could not be sorted", failed, len(args))
				}
				return nil
			})
		},
	}
}

// printResult writes text, or v as JSON when the output format is json.
func printResult(w io.Writer, outputFmt, text string, v any) error {
	if outputFmt == "json" {
		return json.NewEncoder(w).Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
