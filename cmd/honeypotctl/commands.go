// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/honeypot/cmd/honeypotctl/config"
	"github.com/AleutianAI/honeypot/pkg/logging"
	"github.com/AleutianAI/honeypot/pkg/ux"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

// EnvLogLevel sets the log level when --log-level is absent.
const EnvLogLevel = "HONEYPOT_LOG_LEVEL"

// cli holds flag values and the outcome of the executed command.
type cli struct {
	configPath string
	logLevel   string
	workDir    string
	output     string

	stdout io.Writer
	stderr io.Writer

	logger   *logging.Logger
	exitCode int
}

func newCLI(stdout, stderr io.Writer) *cli {
	return &cli{stdout: stdout, stderr: stderr}
}

// rootCommand wires the command tree.
func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "honeypotctl",
		Short: "Bootstrap and launch the Agentic Honeypot API",
		Long: `honeypotctl checks for python3 and ollama, makes sure the llama3 model
is pulled, prepares the virtual environment, installs dependencies, seeds
.env from .env.example and launches the API server.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := c.logLevel
			if level == "" {
				level = os.Getenv(EnvLogLevel)
			}
			if level == "" {
				level = "WARN"
			}
			c.logger = logging.New(logging.Config{
				Level:   logging.ParseLevel(level),
				Service: "honeypotctl",
				Output:  c.stderr,
			})
			slog.SetDefault(c.logger.Slog())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Close()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBootstrap(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "config file (default honeypotctl.yaml, or $"+config.EnvConfigPath+")")
	pf.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error (default warn, or $"+EnvLogLevel+")")
	pf.StringVar(&c.workDir, "workdir", "", "project root holding requirements.txt and .env.example (default current directory)")
	pf.StringVar(&c.output, "output", "", "output mode: styled, plain, machine (default auto, or $"+ux.EnvOutputMode+")")

	root.AddCommand(c.diagnoseCommand(), c.configCommand(), c.versionCommand())
	return root
}

func (c *cli) diagnoseCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Report bootstrap preconditions without changing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, workDir, err := c.loadConfig()
			if err != nil {
				return err
			}
			if err := os.Chdir(workDir); err != nil {
				return fmt.Errorf("cannot enter %s: %w", workDir, err)
			}

			pm := NewDefaultProcessManager()
			printer := c.printer(c.stdout)
			d := NewDiagnoser(cfg, NewDefaultToolChecker(pm), func(runner string) ModelInventory {
				return InventoryFor(cfg.ModelRunner, runner, pm, printer, io.Discard, io.Discard)
			})
			report := d.Run(cmd.Context())

			if asJSON {
				if err := report.WriteJSON(c.stdout); err != nil {
					return err
				}
			} else {
				report.Render(printer)
			}
			if !report.Healthy() {
				c.exitCode = ExitCodeFailure
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "write the report as JSON")
	return cmd
}

func (c *cli) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the honeypotctl configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.resolve(config.ResolvePath(c.configPath))
			if err := config.WriteDefault(path, force); err != nil {
				if errors.Is(err, config.ErrConfigExists) {
					return fmt.Errorf("%w (use --force to overwrite)", err)
				}
				return err
			}
			c.printer(c.stdout).Success("Wrote " + path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := c.loadConfig()
			if err != nil {
				return err
			}
			p := c.printer(c.stdout)
			p.Line(fmt.Sprintf("interpreter:   %s (>= %s)", cfg.Interpreter.Command, cfg.Interpreter.MinVersion))
			p.Line(fmt.Sprintf("model_runner:  %s [%s]", cfg.ModelRunner.Command, cfg.ModelRunner.Mode))
			p.Line(fmt.Sprintf("model:         %s", cfg.Model.Name))
			p.Line(fmt.Sprintf("isolation:     %s", cfg.Isolation.Dir))
			p.Line(fmt.Sprintf("dependencies:  %s", cfg.Dependencies.Manifest))
			p.Line(fmt.Sprintf("settings:      %s <- %s", cfg.Settings.File, cfg.Settings.Template))
			p.Line(fmt.Sprintf("server:        %s %s on %s", cfg.Server.Runner, cfg.Server.Entrypoint, cfg.Server.ListenAddress()))
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

func (c *cli) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the honeypotctl version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(c.stdout, "honeypotctl "+Version)
		},
	}
}

// runBootstrap is the default command.
func (c *cli) runBootstrap(ctx context.Context) error {
	cfg, workDir, err := c.loadConfig()
	if err != nil {
		return err
	}

	b := NewBootstrapper(cfg, BootstrapDeps{
		Printer: c.printer(c.stdout),
		Stdout:  c.stdout,
		Stderr:  c.stderr,
		WorkDir: workDir,
	})
	res, err := b.Run(ctx)
	c.exitCode = res.ExitCode
	return err
}

// loadConfig resolves the work dir and reads the config file from it.
func (c *cli) loadConfig() (config.BootstrapConfig, string, error) {
	workDir, err := c.absWorkDir()
	if err != nil {
		return config.BootstrapConfig{}, "", err
	}
	path := c.resolve(config.ResolvePath(c.configPath))
	cfg, found, err := config.Load(path)
	if err != nil {
		return cfg, workDir, err
	}
	slog.Debug("Configuration loaded", "path", path, "from_file", found)
	return cfg, workDir, nil
}

func (c *cli) absWorkDir() (string, error) {
	dir := c.workDir
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("invalid --workdir %q: %w", c.workDir, err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("--workdir %q is not a directory", c.workDir)
	}
	return abs, nil
}

// resolve interprets a relative config path against --workdir.
func (c *cli) resolve(path string) string {
	if c.workDir == "" {
		return path
	}
	return resolvePath(c.workDir, path)
}

func (c *cli) printer(w io.Writer) *ux.Printer {
	if c.output != "" {
		return ux.NewPrinterWithMode(w, ux.ParseMode(c.output))
	}
	return ux.NewPrinter(w)
}

// reportError renders err on stderr.
func (c *cli) reportError(err error) {
	p := c.printer(c.stderr)
	var be *BootstrapError
	if errors.As(err, &be) {
		p.ErrorBox(be.Type.String(), strings.Split(be.FullError(), "\n")...)
		return
	}
	p.Error(err.Error())
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	c := newCLI(stdout, stderr)
	root := c.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		c.reportError(err)
		if c.exitCode == 0 {
			c.exitCode = ExitCodeFailure
		}
	}
	return c.exitCode
}
