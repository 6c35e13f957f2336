package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/pflag"
)

func parseUint(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

func parseInt(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

func parseIndex(s string) (int, error) {
	v, err := strconv.ParseUint(s, 0, 31)
	if err != nil {
		return 0, fmt.Errorf("invalid index %q", s)
	}
	return int(v), nil
}

// payload is the byte source shared by insert, overwrite and inject.
type payload struct {
	hex  string
	from string
}

func (p *payload) register(flags *pflag.FlagSet) {
	flags.StringVar(&p.hex, "hex", "", "payload as hex digits")
	flags.StringVar(&p.from, "from", "", "read the payload from this file")
}

func (p *payload) load() ([]byte, error) {
	switch {
	case p.hex != "" && p.from != "":
		return nil, errors.New("--hex and --from are mutually exclusive")
	case p.hex != "":
		data, err := hex.DecodeString(strings.ReplaceAll(p.hex, " ", ""))
		if err != nil {
			return nil, fmt.Errorf("--hex: %w", err)
		}
		return data, nil
	case p.from != "":
		return os.ReadFile(p.from)
	}
	return nil, errors.New("one of --hex or --from is required")
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoFormatHeaders(false)
	t.SetAutoWrapText(false)
	t.SetBorder(false)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	return t
}

func hexv(v uint64) string {
	return "0x" + strconv.FormatUint(v, 16)
}
