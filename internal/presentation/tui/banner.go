package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the ASCII art banner for Scenaria.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text, color string
	}{
		{`  ___                        _       `, "#818cf8"},
		{` / __| __ ___ _ _  __ _ _ _ (_)__ _  `, "#a78bfa"},
		{` \__ \/ _/ -_) ' \/ _' | '_|| / _' | `, "#c084fc"},
		{` |___/\__\___|_||_\__,_|_|  |_\__,_| `, "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
