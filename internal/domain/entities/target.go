package entities

import "fmt"

// BuildTarget is one (os, arch) cross-compilation output
type BuildTarget struct {
	OS     string
	Arch   string
	Triple string // compiler target triple, e.g. x86_64-unknown-linux-gnu
}

// Key identifies the target by its (os, arch) pair
func (t BuildTarget) Key() string {
	return fmt.Sprintf("%s-%s", t.OS, t.Arch)
}

// CompilerTriple returns Triple, or the os-arch key when no triple is configured
func (t BuildTarget) CompilerTriple() string {
	if t.Triple != "" {
		return t.Triple
	}
	return t.Key()
}

func (t BuildTarget) String() string {
	return t.Key()
}
