package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// palette holds the colors used for status output.
type palette struct {
	ok     *color.Color
	warn   *color.Color
	fail   *color.Color
	method *color.Color
	path   *color.Color
	dim    *color.Color
}

func newPalette(enabled bool) *palette {
	p := &palette{
		ok:     color.New(color.FgGreen, color.Bold),
		warn:   color.New(color.FgYellow),
		fail:   color.New(color.FgRed, color.Bold),
		method: color.New(color.FgBlue, color.Bold),
		path:   color.New(color.FgCyan),
		dim:    color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.ok, p.warn, p.fail, p.method, p.path, p.dim} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// colorEnabled reports whether w is a terminal and color was not turned off.
func colorEnabled(w io.Writer, noColor bool) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// newLogger returns the text logger used for diagnostics on stderr.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
