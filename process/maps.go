package process

import (
	"fmt"
	"strings"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

// Map is one line of /proc/<pid>/maps.
type Map struct {
	Start, End uint64
	Perms      string
	Offset     int64
	Dev        string
	Inode      uint64
	Pathname   string
}

func (m Map) Size() uint64 {
	return m.End - m.Start
}

func (m Map) Prot() Prot {
	var p Prot
	if len(m.Perms) < 3 {
		return p
	}
	if m.Perms[0] == 'r' {
		p |= PROT_READ
	}
	if m.Perms[1] == 'w' {
		p |= PROT_WRITE
	}
	if m.Perms[2] == 'x' {
		p |= PROT_EXEC
	}
	return p
}

func (m Map) Shared() bool {
	return len(m.Perms) == 4 && m.Perms[3] == 's'
}

func (m Map) String() string {
	return fmt.Sprintf("%x-%x %s %08x %s %d %s", m.Start, m.End, m.Perms, m.Offset, m.Dev, m.Inode, m.Pathname)
}

func newMap(pm *procfs.ProcMap) Map {
	return Map{
		Start:    uint64(pm.StartAddr),
		End:      uint64(pm.EndAddr),
		Perms:    permToString(pm.Perms),
		Offset:   pm.Offset,
		Dev:      fmt.Sprintf("%02x:%02x", unix.Major(pm.Dev), unix.Minor(pm.Dev)),
		Inode:    pm.Inode,
		Pathname: pm.Pathname,
	}
}

// permToString renders perms the way the maps file spells them, e.g. "r-xp".
func permToString(perms *procfs.ProcMapPermissions) string {
	if perms == nil {
		return "----"
	}
	var b strings.Builder
	flag := func(set bool, c byte) {
		if set {
			b.WriteByte(c)
		} else {
			b.WriteByte('-')
		}
	}
	flag(perms.Read, 'r')
	flag(perms.Write, 'w')
	flag(perms.Execute, 'x')
	switch {
	case perms.Shared:
		b.WriteByte('s')
	case perms.Private:
		b.WriteByte('p')
	}
	return b.String()
}
