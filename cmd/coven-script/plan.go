// ABOUTME: Stage plan printed by the check command
// ABOUTME: Lists each stage's step count and the resolved named delays

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/2389/coven-script/internal/config"
	"github.com/2389/coven-script/internal/script"
	"github.com/2389/coven-script/internal/stage"
)

func writePlan(out io.Writer, cfg *config.Config, sc *script.Script) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tSTEPS\tNOTE")
	for _, st := range stage.All() {
		steps, _ := sc.Steps(st)
		note := ""
		switch {
		case st.IsPassThrough():
			note = "pass-through"
		case st.IsTerminal():
			note = "finalizes"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", st, len(steps), note)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DELAY\tDURATION")
	for _, name := range cfg.DelayNames() {
		fmt.Fprintf(w, "%s\t%s\n", name, cfg.Delays[name])
	}
	return w.Flush()
}
