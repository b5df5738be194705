package iojson

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// FileReader decodes a T from the file named by its flag, or from stdin when
// the flag is unset and stdin is not a terminal.
type FileReader[T any] struct {
	name  string
	usage string

	fileFlagValue string
}

// NewFileReader creates a reader bound to a string flag with the given name.
// The flag always has the -f alias.
func NewFileReader[T any](name, usage string) *FileReader[T] {
	return &FileReader[T]{name: name, usage: usage}
}

func (fr *FileReader[T]) Flag() *cli.StringFlag {
	name, usage := fr.name, fr.usage
	if name == "" {
		name = "file"
	}
	if usage == "" {
		usage = "path to JSON file (reads from stdin if not provided)"
	}

	return &cli.StringFlag{
		Name:        name,
		Aliases:     []string{"f"},
		Usage:       usage,
		Destination: &fr.fileFlagValue,
	}
}

// Read decodes from the flagged file or os.Stdin.
func (fr *FileReader[T]) Read() (T, error) {
	return fr.ReadFrom(os.Stdin, term.IsTerminal(int(os.Stdin.Fd())))
}

// ReadFrom decodes from the flagged file, falling back to stdin. An
// interactive stdin is rejected rather than blocking on it.
func (fr *FileReader[T]) ReadFrom(stdin io.Reader, interactive bool) (T, error) {
	var reader io.Reader
	var input T

	if fr.fileFlagValue != "" {
		f, err := os.Open(fr.fileFlagValue)
		if err != nil {
			return input, fmt.Errorf("open file: %w", err)
		}
		defer func() { _ = f.Close() }()
		reader = f
	} else {
		if interactive {
			return input, fmt.Errorf("no input provided (stdin is a terminal); use -f flag or pipe JSON input")
		}
		reader = stdin
	}

	if err := json.NewDecoder(reader).Decode(&input); err != nil {
		return input, fmt.Errorf("decode JSON: %w", err)
	}

	return input, nil
}
