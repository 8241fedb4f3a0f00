package findexec

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Strategy names accepted by NewClassifier.
const (
	StrategyELF     = "elf"
	StrategyExec    = "exec"
	StrategyELFExec = "elf+exec"
)

// elfMagic is the signature at offsets 1-3 of every ELF file.
var elfMagic = []byte{0x45, 0x4C, 0x46} //nolint:gochecknoglobals // Constant byte signature

// Classifier decides whether a regular file counts as an executable binary.
type Classifier interface {
	Match(path string, info fs.FileInfo) bool
}

// ELFClassifier sniffs the ELF magic bytes from the head of the file.
type ELFClassifier struct {
	Fs afero.Fs
	// Log receives open and read failures at debug level.
	Log zerolog.Logger
}

// Match reports whether bytes 1-3 of the file read "ELF". Byte 0 is not checked.
// Files that cannot be opened or are shorter than 4 bytes never match.
func (c ELFClassifier) Match(path string, _ fs.FileInfo) bool {
	f, err := c.Fs.Open(path)
	if err != nil {
		c.Log.Debug().Str("path", path).Err(err).Msg("cannot open file")

		return false
	}
	defer f.Close()

	head := make([]byte, 4)
	if _, err := io.ReadFull(f, head); err != nil {
		c.Log.Debug().Str("path", path).Err(err).Msg("cannot read file header")

		return false
	}

	return bytes.Equal(head[1:], elfMagic)
}

// ExecBitClassifier matches files with the owner-execute permission bit set.
type ExecBitClassifier struct{}

// Match reports whether the owner-execute bit is set.
func (ExecBitClassifier) Match(_ string, info fs.FileInfo) bool {
	return info != nil && info.Mode().Perm()&0o100 != 0
}

// AllOf matches when every wrapped classifier matches.
type AllOf []Classifier

// Match evaluates classifiers in order and stops at the first miss.
func (a AllOf) Match(path string, info fs.FileInfo) bool {
	for _, c := range a {
		if !c.Match(path, info) {
			return false
		}
	}

	return len(a) > 0
}

// NewClassifier returns the classifier for a strategy name. An empty name selects elf.
func NewClassifier(strategy string, fsys afero.Fs, log zerolog.Logger) (Classifier, error) {
	elf := ELFClassifier{Fs: fsys, Log: log}

	switch strings.ToLower(strategy) {
	case "", StrategyELF:
		return elf, nil
	case StrategyExec:
		return ExecBitClassifier{}, nil
	case StrategyELFExec:
		// Check the mode first so the file is only opened for candidates.
		return AllOf{ExecBitClassifier{}, elf}, nil
	default:
		return nil, fmt.Errorf("unknown classification strategy %q: must be one of %v", strategy, Strategies())
	}
}

// Strategies lists the accepted strategy names.
func Strategies() []string {
	return []string{StrategyELF, StrategyExec, StrategyELFExec}
}
