package elf

import (
	"github.com/wnxd/composer/internal/fault"
	"github.com/wnxd/composer/internal/layout"
)

// LoadNote turns the last PT_NOTE program header into an executable PT_LOAD
// that maps payload, appended at end of file, and points e_entry at it. The
// segment lands in the page of base; base 0 picks the first page after the
// highest PT_LOAD.
func (img image) LoadNote(payload []byte, base uint64) (ph ProgramHeader, err error) {
	err = use(img.src, true, func(c conn) error {
		phnum, err := c.header(EPhnum)
		if err != nil {
			return err
		}
		note, end := -1, uint64(0)
		for i := 0; i < int(phnum); i++ {
			v, err := c.ReadField(layout.KindProgramHeader, string(PType), layout.Index{Slot: i})
			if err != nil {
				return err
			}
			switch v {
			case uint64(PT_NOTE):
				note = i
			case uint64(PT_LOAD):
				vaddr, err := c.ReadField(layout.KindProgramHeader, string(PVaddr), layout.Index{Slot: i})
				if err != nil {
					return err
				}
				memsz, err := c.ReadField(layout.KindProgramHeader, string(PMemsz), layout.Index{Slot: i})
				if err != nil {
					return err
				}
				end = max(end, vaddr+memsz)
			}
		}
		if note == -1 {
			return fault.NotFound("PT_NOTE program header")
		}
		if base == 0 {
			base = Align(end, pageSize)
		}
		size, err := c.size()
		if err != nil {
			return err
		}
		vaddr := base - base%pageSize + uint64(size)%pageSize
		idx := layout.Index{Slot: note}
		fields := []struct {
			name ProgramField
			v    uint64
		}{
			{PType, uint64(PT_LOAD)},
			{PFlags, uint64(PF_X | PF_R)},
			{POffset, uint64(size)},
			{PVaddr, vaddr},
			{PFilesz, uint64(len(payload))},
			{PMemsz, uint64(len(payload))},
			{PAlign, pageSize},
		}
		// every value must fit before the first byte changes
		for _, f := range fields {
			if err = c.CheckField(layout.KindProgramHeader, string(f.name), f.v); err != nil {
				return err
			}
		}
		if err = c.CheckField(layout.KindFileHeader, string(EEntry), vaddr); err != nil {
			return err
		}
		for _, f := range fields {
			if err = c.WriteField(layout.KindProgramHeader, string(f.name), idx, f.v); err != nil {
				return err
			}
		}
		if _, err = c.h.WriteAt(payload, size); err != nil {
			return err
		}
		ph = newProgramHeader(img.src, note)
		return c.WriteField(layout.KindFileHeader, string(EEntry), layout.Index{}, vaddr)
	})
	return
}
