package process

type Prot int

const (
	PROT_NONE Prot = 0
	PROT_READ Prot = 1 << (iota - 1)
	PROT_WRITE
	PROT_EXEC

	PROT_ALL = PROT_READ | PROT_WRITE | PROT_EXEC
)

func (p Prot) String() string {
	b := []byte("---")
	for i, c := range []struct {
		bit Prot
		ch  byte
	}{
		{PROT_READ, 'r'},
		{PROT_WRITE, 'w'},
		{PROT_EXEC, 'x'},
	} {
		if p&c.bit != 0 {
			b[i] = c.ch
		}
	}
	return string(b)
}
