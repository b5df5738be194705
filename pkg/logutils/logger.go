// Package logutils builds the process logger.
package logutils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// New returns a logger at the given level.
//
// When file is set, JSON lines are appended to it. Otherwise logs go to
// stderr so they never mix with command output on stdout; a terminal gets
// the human readable console format.
//
// The level parameter can be one of: debug, info, warn, error, fatal.
func New(level string, file string) (zerolog.Logger, func(), error) {
	closer := func() {}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, closer, err
	}

	var writer io.Writer
	if file != "" {
		logsDir := filepath.Dir(file)
		if err := os.MkdirAll(logsDir, 0o755); err != nil {
			return zerolog.Logger{}, closer, fmt.Errorf("create logs dir: %w", err)
		}

		osFile, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Logger{}, closer, err
		}
		closer = func() { _ = osFile.Close() }
		writer = osFile
	} else {
		writer = Console(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())))
	}

	l := zerolog.New(writer).
		With().
		Timestamp().
		Logger().
		Level(lvl)

	return l, closer, nil
}

// Console wraps w in a zerolog console writer, colored when tty is set.
func Console(w io.Writer, tty bool) io.Writer {
	return zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    !tty,
		TimeFormat: time.Kitchen,
	}
}
