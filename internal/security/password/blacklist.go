package password

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Blacklist es inmutable después de cargarse; no necesita lock.
type Blacklist struct {
	entries map[string]struct{}
}

// LoadBlacklist lee una contraseña por línea. Las líneas con # se ignoran.
// Un path vacío devuelve una lista vacía.
func LoadBlacklist(path string) (*Blacklist, error) {
	if strings.TrimSpace(path) == "" {
		return &Blacklist{entries: map[string]struct{}{}}, nil
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadBlacklist(f)
}

func ReadBlacklist(r io.Reader) (*Blacklist, error) {
	bl := &Blacklist{entries: map[string]struct{}{}}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		s := normalize(sc.Text())
		if s != "" && !strings.HasPrefix(s, "#") {
			bl.entries[s] = struct{}{}
		}
	}
	return bl, sc.Err()
}

func (b *Blacklist) Contains(pwd string) bool {
	if b == nil {
		return false
	}
	_, ok := b.entries[normalize(pwd)]
	return ok
}

func (b *Blacklist) Len() int {
	if b == nil {
		return 0
	}
	return len(b.entries)
}

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
