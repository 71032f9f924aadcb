package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/marcelocantos/minish/internal/audit"
	"github.com/marcelocantos/minish/internal/builtin"
	"github.com/marcelocantos/minish/internal/cli"
	"github.com/marcelocantos/minish/internal/config"
	"github.com/marcelocantos/minish/internal/executor"
	"github.com/marcelocantos/minish/internal/logging"
	"github.com/marcelocantos/minish/internal/session"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// Interrupt cancels the context; children see the signal from the
	// terminal themselves.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	status := 0
	root := newRootCmd(&status)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "minish: %v\n", err)
		return cli.StatusSyntax
	}
	return status
}

type options struct {
	command     string
	configPath  string
	interactive bool
}

func newRootCmd(status *int) *cobra.Command {
	var opts options

	root := &cobra.Command{
		Use:   "minish [script]",
		Short: "a small shell: ; & && || | and redirections over real processes",
		Long: `minish reads command lines, builds a command tree for each and runs it.

With -c it runs a single line. Otherwise it reads lines from the script file
or from standard input, prompting when -i is given or stdin is a terminal.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			*status = runShell(cmd.Context(), opts, args)
			return nil
		},
	}
	root.Flags().StringVarP(&opts.command, "command", "c", "", "run `LINE` and exit with its status")
	root.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "prompt before each line")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.config/minish/config.yaml)")
	root.MarkFlagsMutuallyExclusive("command", "interactive")

	root.AddCommand(&cobra.Command{
		Use:   "audit <verify|show|tail> [n]",
		Short: "verify or show the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			*status = cli.RunAudit(cmd.OutOrStdout(), cfg.Audit.Path, args)
			return nil
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "builtins",
		Short: "list built-in commands",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			*status = cli.RunBuiltins(newRegistry(), cmd.OutOrStdout())
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "syntax [builtin]",
		Short: "describe the command language",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			*status = cli.RunSyntax(newRegistry(), cmd.OutOrStdout(), args)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "minish %s\n", version)
		},
	})
	return root
}

func runShell(ctx context.Context, opts options, args []string) int {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "minish: config: %v\n", err)
		return 1
	}

	logCfg, err := logging.FromSettings(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "minish: config: %v\n", err)
		return 1
	}
	log := logging.New(logCfg)

	var auditLog *audit.Logger
	if cfg.Audit.Enabled {
		auditLog, err = audit.NewLogger(cfg.Audit.Path)
		if err != nil {
			// Continue without audit logging.
			log.Warn("audit disabled", "path", cfg.Audit.Path, "err", err)
			auditLog = nil
		}
	}

	s, err := session.New(os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "minish: %v\n", err)
		return 1
	}

	runner := cli.NewRunner(executor.New(newRegistry(), log), s, auditLog, log)
	log.Debug("session started", "id", runner.ID(), "dir", s.Dir())

	if opts.command != "" {
		return runner.RunLine(ctx, opts.command)
	}

	var in io.Reader = os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "minish: %v\n", err)
			return 127
		}
		defer f.Close()
		in = f
	} else if isTerminal(os.Stdin) {
		opts.interactive = true
	}
	if opts.interactive {
		runner.Prompt = cfg.Shell.Prompt
	}
	return runner.RunScript(ctx, in)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

func newRegistry() *builtin.Registry {
	reg := builtin.NewRegistry()
	builtin.RegisterAll(reg)
	return reg
}

func isTerminal(f *os.File) bool {
	_, err := unix.IoctlGetWinsize(int(f.Fd()), unix.TIOCGWINSZ)
	return err == nil
}
