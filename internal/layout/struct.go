package layout

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"reflect"

	"github.com/modern-go/reflect2"
)

type Kind int

const (
	KindFileHeader Kind = iota
	KindSectionHeader
	KindProgramHeader
	KindSymbol
	numKinds
)

func (k Kind) String() string {
	switch k {
	case KindFileHeader:
		return "FileHeader"
	case KindSectionHeader:
		return "SectionHeader"
	case KindProgramHeader:
		return "ProgramHeader"
	case KindSymbol:
		return "Symbol"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Field locates one scalar member inside a record.
type Field struct {
	Name   string
	Offset int
	Width  int
	field  reflect2.StructField
}

// Struct describes the on-disk layout of one record kind for one ELF class.
type Struct struct {
	Kind   Kind
	Class  elf.Class
	Size   int
	typ    reflect2.StructType
	fields []Field
	index  map[string]int
}

var structs = map[elf.Class]*[numKinds]*Struct{
	elf.ELFCLASS32: new([numKinds]*Struct),
	elf.ELFCLASS64: new([numKinds]*Struct),
}

func init() {
	register(elf.ELFCLASS32, KindFileHeader, header32{}, elf.Header32{})
	register(elf.ELFCLASS32, KindSectionHeader, section32{}, elf.Section32{})
	register(elf.ELFCLASS32, KindProgramHeader, prog32{}, elf.Prog32{})
	register(elf.ELFCLASS32, KindSymbol, sym32{}, elf.Sym32{})
	register(elf.ELFCLASS64, KindFileHeader, header64{}, elf.Header64{})
	register(elf.ELFCLASS64, KindSectionHeader, section64{}, elf.Section64{})
	register(elf.ELFCLASS64, KindProgramHeader, prog64{}, elf.Prog64{})
	register(elf.ELFCLASS64, KindSymbol, sym64{}, elf.Sym64{})
}

func register(class elf.Class, kind Kind, layout, reference any) {
	typ := reflect2.TypeOf(layout).(reflect2.StructType)
	s := &Struct{
		Kind:  kind,
		Class: class,
		Size:  int(typ.Type1().Size()),
		typ:   typ,
		index: make(map[string]int, typ.NumField()),
	}
	if want := binary.Size(reference); want != s.Size {
		panic(fmt.Sprintf("layout: %v %s is %d bytes, want %d", class, kind, s.Size, want))
	}
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.Type().Kind() == reflect.Array {
			continue
		}
		s.index[field.Tag().Get("elf")] = len(s.fields)
		s.fields = append(s.fields, Field{
			Name:   field.Tag().Get("elf"),
			Offset: int(field.Offset()),
			Width:  int(field.Type().Type1().Size()),
			field:  field,
		})
	}
	structs[class][kind] = s
}

// Lookup returns the descriptor for kind in the given class. Any class other
// than ELFCLASS32 uses the 64-bit layouts.
func Lookup(class elf.Class, kind Kind) *Struct {
	if class != elf.ELFCLASS32 {
		class = elf.ELFCLASS64
	}
	return structs[class][kind]
}

func (s *Struct) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

func (s *Struct) Fields() []Field {
	return s.fields
}

// Names lists the recognised field names of kind in declaration order of the 64-bit layout.
func Names(kind Kind) []string {
	fields := Lookup(elf.ELFCLASS64, kind).fields
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

func (f Field) decode(order binary.ByteOrder, b []byte) uint64 {
	switch f.Width {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(order.Uint16(b))
	case 4:
		return uint64(order.Uint32(b))
	}
	return order.Uint64(b)
}

func (f Field) encode(order binary.ByteOrder, b []byte, v uint64) bool {
	if f.Width < 8 && v>>(8*f.Width) != 0 {
		return false
	}
	switch f.Width {
	case 1:
		b[0] = byte(v)
	case 2:
		order.PutUint16(b, uint16(v))
	case 4:
		order.PutUint32(b, uint32(v))
	default:
		order.PutUint64(b, v)
	}
	return true
}

func (f Field) get(obj any) uint64 {
	switch p := f.field.Get(obj).(type) {
	case *uint8:
		return uint64(*p)
	case *uint16:
		return uint64(*p)
	case *uint32:
		return uint64(*p)
	case *uint64:
		return *p
	}
	panic("layout: unsupported field type " + f.field.Type().String())
}
