package main

import (
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wnxd/composer/elf"
)

type globalParams struct {
	force   bool
	verbose bool
	log     *zap.Logger
}

func (g *globalParams) elfOptions() []elf.Option {
	if g.force {
		return []elf.Option{elf.WithForce()}
	}
	return nil
}

func newRootCommand() *cobra.Command {
	g := &globalParams{log: zap.NewNop()}
	cmd := &cobra.Command{
		Use:           "composer",
		Short:         "Inspect and patch ELF files and process memory",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			g.log = newLogger(g.verbose, cmd.ErrOrStderr())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = g.log.Sync()
		},
	}
	flags := cmd.PersistentFlags()
	flags.BoolVar(&g.force, "force", false, "open files whose magic is not \\x7fELF")
	flags.BoolVarP(&g.verbose, "verbose", "v", false, "log debug output to stderr")

	cmd.AddCommand(elfCommands(g)...)
	cmd.AddCommand(processCommands(g)...)
	return cmd
}

// newLogger logs warnings and errors, or everything in development format
// when verbose is set.
func newLogger(verbose bool, w io.Writer) *zap.Logger {
	level := zapcore.WarnLevel
	enc := zap.NewProductionEncoderConfig()
	if verbose {
		level = zapcore.DebugLevel
		enc = zap.NewDevelopmentEncoderConfig()
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), level)
	return zap.New(core)
}
