package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wnxd/composer/process"
)

func processCommands(g *globalParams) []*cobra.Command {
	var cmds []*cobra.Command
	var procRoot string
	var stop bool
	open := func(arg string) (*process.Memory, error) {
		pid, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid pid %q", arg)
		}
		g.log.Debug("open process", zap.Int("pid", pid), zap.String("proc", procRoot))
		return process.Open(pid, process.WithProcRoot(procRoot))
	}
	withProcRoot := func(cmd *cobra.Command) *cobra.Command {
		cmd.Flags().StringVar(&procRoot, "proc", "/proc", "procfs mount point")
		return cmd
	}
	withStop := func(cmd *cobra.Command) *cobra.Command {
		cmd.Flags().BoolVar(&stop, "stop", false, "ptrace-attach to the process while reading")
		return cmd
	}
	// attach stops m when --stop is set and returns the matching release.
	attach := func(m *process.Memory) (func(), error) {
		if !stop {
			return func() {}, nil
		}
		if err := m.Attach(); err != nil {
			return nil, err
		}
		return func() {
			if err := m.Detach(); err != nil {
				g.log.Error("detach", zap.Int("pid", m.PID()), zap.Error(err))
			}
		}, nil
	}
	// warn logs every error collected from chunks that could not be read.
	warn := func(err error) {
		for _, e := range multierr.Errors(err) {
			g.log.Warn("skipped chunk", zap.Error(e))
		}
	}

	cmds = append(cmds, withProcRoot(&cobra.Command{
		Use:   "maps PID",
		Short: "List the memory regions of a process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := open(args[0])
			if err != nil {
				return err
			}
			maps, err := m.Maps()
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout(), "NR", "START", "END", "SIZE", "PERMS", "OFFSET", "DEV", "INODE", "PATH")
			for i, mp := range maps {
				t.Append([]string{
					fmt.Sprint(i), hexv(mp.Start), hexv(mp.End), humanize.IBytes(mp.Size()), mp.Perms,
					hexv(uint64(mp.Offset)), mp.Dev, fmt.Sprint(mp.Inode), mp.Pathname,
				})
			}
			t.Render()
			return nil
		},
	}))

	{
		var out string
		cmd := withStop(withProcRoot(&cobra.Command{
			Use:   "dump PID",
			Short: "Write every readable region of a process to stdout or a file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := open(args[0])
				if err != nil {
					return err
				}
				release, err := attach(m)
				if err != nil {
					return err
				}
				defer release()
				var w io.Writer = cmd.OutOrStdout()
				if out != "" {
					f, err := os.Create(out)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				n, err := m.Dump(w)
				warn(err)
				g.log.Info("dump", zap.Int("pid", m.PID()), zap.String("bytes", humanize.IBytes(uint64(n))))
				if n == 0 && err != nil {
					return err
				}
				return nil
			},
		}))
		cmd.Flags().StringVarP(&out, "output", "o", "", "write to this file instead of stdout")
		cmds = append(cmds, cmd)
	}

	{
		var isHex bool
		cmd := withStop(withProcRoot(&cobra.Command{
			Use:   "search PID PATTERN",
			Short: "Find every occurrence of a byte string in process memory",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				pattern := []byte(args[1])
				if isHex {
					p, err := (&payload{hex: args[1]}).load()
					if err != nil {
						return err
					}
					pattern = p
				}
				m, err := open(args[0])
				if err != nil {
					return err
				}
				release, err := attach(m)
				if err != nil {
					return err
				}
				defer release()
				matches, err := m.Search(pattern)
				warn(err)
				for _, match := range matches {
					fmt.Fprintf(cmd.OutOrStdout(), "found in chunk %d at offset %s (%s)\n", match.Chunk, hexv(uint64(match.Offset)), hexv(match.Addr))
				}
				return nil
			},
		}))
		cmd.Flags().BoolVar(&isHex, "hex", false, "PATTERN is hex digits")
		cmds = append(cmds, cmd)
	}

	return cmds
}
