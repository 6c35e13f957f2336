package main

import (
	stdelf "debug/elf"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wnxd/composer/elf"
)

func elfCommands(g *globalParams) []*cobra.Command {
	var cmds []*cobra.Command
	open := func(path string) (*elf.File, error) {
		g.log.Debug("open", zap.String("path", path), zap.Bool("force", g.force))
		return elf.Open(path, g.elfOptions()...)
	}

	cmds = append(cmds, &cobra.Command{
		Use:   "header FILE",
		Short: "Print the file header",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := open(args[0])
			if err != nil {
				return err
			}
			ident, err := f.Header().Ident().Bytes()
			if err != nil {
				return err
			}
			values, err := f.Header().Fields()
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout(), "FIELD", "VALUE")
			t.Append([]string{"e_ident", fmt.Sprintf("% x", ident[:])})
			for _, v := range values {
				t.Append([]string{v.Name, hexv(v.Value)})
			}
			t.Render()
			return nil
		},
	})

	cmds = append(cmds, &cobra.Command{
		Use:   "sections FILE",
		Short: "List section headers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := open(args[0])
			if err != nil {
				return err
			}
			shdrs, err := f.SectionHeaders()
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout(), "NR", "NAME", "TYPE", "ADDR", "OFFSET", "SIZE", "ENTSIZE")
			for _, sh := range shdrs {
				name, err := sh.Name()
				if err != nil {
					g.log.Warn("section name", zap.Int("index", sh.Index()), zap.Error(err))
				}
				values, err := sh.Fields()
				if err != nil {
					return err
				}
				v := byName(values)
				t.Append([]string{
					fmt.Sprint(sh.Index()), name, stdelf.SectionType(v["sh_type"]).String(),
					hexv(v["sh_addr"]), hexv(v["sh_offset"]), humanize.IBytes(v["sh_size"]), hexv(v["sh_entsize"]),
				})
			}
			t.Render()
			return nil
		},
	})

	cmds = append(cmds, &cobra.Command{
		Use:   "segments FILE",
		Short: "List program headers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := open(args[0])
			if err != nil {
				return err
			}
			phdrs, err := f.ProgramHeaders()
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout(), "NR", "TYPE", "FLAGS", "OFFSET", "VADDR", "FILESZ", "MEMSZ", "ALIGN")
			for _, ph := range phdrs {
				values, err := ph.Fields()
				if err != nil {
					return err
				}
				v := byName(values)
				t.Append([]string{
					fmt.Sprint(ph.Index()), stdelf.ProgType(v["p_type"]).String(), stdelf.ProgFlag(v["p_flags"]).String(),
					hexv(v["p_offset"]), hexv(v["p_vaddr"]), humanize.IBytes(v["p_filesz"]), humanize.IBytes(v["p_memsz"]), hexv(v["p_align"]),
				})
			}
			t.Render()
			return nil
		},
	})

	cmds = append(cmds, &cobra.Command{
		Use:   "symbols FILE",
		Short: "List the entries of every symbol table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := open(args[0])
			if err != nil {
				return err
			}
			secs, err := f.Sections()
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout(), "TABLE", "NR", "VALUE", "SIZE", "BIND", "TYPE", "SHNDX", "NAME")
			for _, sec := range secs {
				typ, err := sec.Header().Get(elf.ShType)
				if err != nil {
					return err
				}
				if typ != uint64(elf.SHT_SYMTAB) && typ != uint64(elf.SHT_DYNSYM) {
					continue
				}
				table, _ := sec.Name()
				syms, err := sec.Symbols()
				if err != nil {
					g.log.Warn("symbol table", zap.String("section", table), zap.Error(err))
					continue
				}
				for _, sym := range syms {
					values, err := sym.Fields()
					if err != nil {
						return err
					}
					v := byName(values)
					name, err := sym.LinkedName()
					if err != nil {
						g.log.Warn("symbol name", zap.String("section", table), zap.Int("index", sym.Index()), zap.Error(err))
					}
					info := uint8(v["st_info"])
					t.Append([]string{
						table, fmt.Sprint(sym.Index()), hexv(v["st_value"]), fmt.Sprint(v["st_size"]),
						stdelf.ST_BIND(info).String(), stdelf.ST_TYPE(info).String(), fmt.Sprint(v["st_shndx"]), name,
					})
				}
			}
			t.Render()
			return nil
		},
	})

	cmds = append(cmds, &cobra.Command{
		Use:   "get FILE RECORD FIELD",
		Short: "Print one field",
		Long:  recordHelp,
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := open(args[0])
			if err != nil {
				return err
			}
			r, err := parseRecord(args[1])
			if err != nil {
				return err
			}
			v, err := r.get(f, args[2])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hexv(v))
			return nil
		},
	})

	cmds = append(cmds, &cobra.Command{
		Use:   "set FILE RECORD FIELD VALUE",
		Short: "Write one field",
		Long:  recordHelp,
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := open(args[0])
			if err != nil {
				return err
			}
			r, err := parseRecord(args[1])
			if err != nil {
				return err
			}
			v, err := parseUint(args[3])
			if err != nil {
				return err
			}
			g.log.Info("set", zap.String("record", args[1]), zap.String("field", args[2]), zap.Uint64("value", v))
			return r.set(f, args[2], v)
		},
	})

	{
		var p payload
		cmd := &cobra.Command{
			Use:   "insert FILE OFFSET",
			Short: "Splice bytes into the file, shifting the rest; header offsets are not updated",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				off, data, err := offsetAndPayload(args[1], &p)
				if err != nil {
					return err
				}
				f, err := open(args[0])
				if err != nil {
					return err
				}
				g.log.Info("insert", zap.Int64("offset", off), zap.Int("bytes", len(data)))
				return f.InsertAt(off, data)
			},
		}
		p.register(cmd.Flags())
		cmds = append(cmds, cmd)
	}

	{
		var p payload
		cmd := &cobra.Command{
			Use:   "overwrite FILE OFFSET",
			Short: "Replace bytes in place",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				off, data, err := offsetAndPayload(args[1], &p)
				if err != nil {
					return err
				}
				f, err := open(args[0])
				if err != nil {
					return err
				}
				g.log.Info("overwrite", zap.Int64("offset", off), zap.Int("bytes", len(data)))
				return f.OverwriteAt(off, data)
			},
		}
		p.register(cmd.Flags())
		cmds = append(cmds, cmd)
	}

	{
		var p payload
		var base string
		cmd := &cobra.Command{
			Use:   "inject FILE",
			Short: "Turn the last PT_NOTE segment into a loadable segment that runs the payload",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				data, err := p.load()
				if err != nil {
					return err
				}
				addr, err := parseUint(base)
				if err != nil {
					return err
				}
				f, err := open(args[0])
				if err != nil {
					return err
				}
				var entry uint64
				err = f.Batch(func(s *elf.Session) error {
					ph, err := s.LoadNote(data, addr)
					if err != nil {
						return err
					}
					g.log.Info("inject", zap.Int("segment", ph.Index()), zap.Int("bytes", len(data)))
					entry, err = s.Header().Get(elf.EEntry)
					return err
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "entry point is now %s\n", hexv(entry))
				return nil
			},
		}
		p.register(cmd.Flags())
		cmd.Flags().StringVar(&base, "base", "0", "virtual address of the new segment's page; 0 places it after the last PT_LOAD")
		cmds = append(cmds, cmd)
	}

	return cmds
}

func offsetAndPayload(s string, p *payload) (int64, []byte, error) {
	off, err := parseInt(s)
	if err != nil {
		return 0, nil, err
	}
	data, err := p.load()
	return off, data, err
}

func byName(values []elf.FieldValue) map[string]uint64 {
	m := make(map[string]uint64, len(values))
	for _, v := range values {
		m[v.Name] = v.Value
	}
	return m
}

const recordHelp = `RECORD selects the record holding FIELD:
  header          the file header
  section:N       section header N
  segment:N       program header N
  symbol:S:N      entry N of the symbol table in section S`

type record struct {
	kind        string
	table, slot int
}

func parseRecord(s string) (r record, err error) {
	parts := strings.Split(s, ":")
	r.kind = parts[0]
	switch {
	case r.kind == "header" && len(parts) == 1:
		return r, nil
	case (r.kind == "section" || r.kind == "segment") && len(parts) == 2:
		r.slot, err = parseIndex(parts[1])
		return r, err
	case r.kind == "symbol" && len(parts) == 3:
		if r.table, err = parseIndex(parts[1]); err != nil {
			return r, err
		}
		r.slot, err = parseIndex(parts[2])
		return r, err
	}
	return r, fmt.Errorf("invalid record %q", s)
}

func (r record) symbol(f *elf.File) (elf.Symbol, error) {
	sec, err := f.Section(r.table)
	if err != nil {
		return elf.Symbol{}, err
	}
	syms, err := sec.Symbols()
	if err != nil {
		return elf.Symbol{}, err
	}
	if r.slot >= len(syms) {
		return elf.Symbol{}, fmt.Errorf("section %d has %d symbols", r.table, len(syms))
	}
	return syms[r.slot], nil
}

func (r record) get(f *elf.File, field string) (uint64, error) {
	switch r.kind {
	case "header":
		return f.Header().Get(elf.HeaderField(field))
	case "section":
		sec, err := f.Section(r.slot)
		if err != nil {
			return 0, err
		}
		return sec.Header().Get(elf.SectionField(field))
	case "segment":
		seg, err := f.Segment(r.slot)
		if err != nil {
			return 0, err
		}
		return seg.Header().Get(elf.ProgramField(field))
	}
	sym, err := r.symbol(f)
	if err != nil {
		return 0, err
	}
	return sym.Get(elf.SymbolField(field))
}

func (r record) set(f *elf.File, field string, v uint64) error {
	switch r.kind {
	case "header":
		return f.Header().Set(elf.HeaderField(field), v)
	case "section":
		sec, err := f.Section(r.slot)
		if err != nil {
			return err
		}
		return sec.Header().Set(elf.SectionField(field), v)
	case "segment":
		seg, err := f.Segment(r.slot)
		if err != nil {
			return err
		}
		return seg.Header().Set(elf.ProgramField(field), v)
	}
	sym, err := r.symbol(f)
	if err != nil {
		return err
	}
	return sym.Set(elf.SymbolField(field), v)
}
