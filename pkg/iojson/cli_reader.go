package iojson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// ErrTerminalInput is returned when stdin is requested but is a terminal.
var ErrTerminalInput = errors.New("no input provided (stdin is a terminal); pass a file path or pipe JSON input")

// FileReader decodes a JSON document named by a --file flag. The value "-"
// reads stdin.
type FileReader[T any] struct {
	path string

	// Stdin overrides os.Stdin.
	Stdin *os.File
}

func (fr *FileReader[T]) Flag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:        "file",
		Aliases:     []string{"f"},
		Usage:       "read the JSON document from a file ('-' for stdin)",
		Destination: &fr.path,
	}
}

// Set reports whether the flag was given.
func (fr *FileReader[T]) Set() bool {
	return fr.path != ""
}

func (fr *FileReader[T]) Read() (T, error) {
	var input T

	var reader io.Reader
	if fr.path == "-" {
		stdin := fr.Stdin
		if stdin == nil {
			stdin = os.Stdin
		}
		if term.IsTerminal(int(stdin.Fd())) {
			return input, ErrTerminalInput
		}
		reader = stdin
	} else {
		f, err := os.Open(fr.path)
		if err != nil {
			return input, fmt.Errorf("open file: %w", err)
		}
		defer func() { _ = f.Close() }()
		reader = f
	}

	if err := json.NewDecoder(reader).Decode(&input); err != nil {
		return input, fmt.Errorf("decode JSON: %w", err)
	}

	return input, nil
}
