// ABOUTME: Admin subcommands operating on a conversation store
// ABOUTME: Prints tables with tabwriter and colors headings with fatih/color

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/coven-script/internal/stage"
	"github.com/2389/coven-script/internal/store"
)

const defaultLimit = 50

type admin struct {
	store store.Store
	out   io.Writer
}

func (a *admin) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "list", "ls":
		limit, err := parseLimit(args)
		if err != nil {
			return err
		}
		return a.list(ctx, limit)
	case "show":
		id, err := requireID(cmd, args)
		if err != nil {
			return err
		}
		return a.show(ctx, id)
	case "history":
		id, err := requireID(cmd, args)
		if err != nil {
			return err
		}
		limit, err := parseLimit(args[1:])
		if err != nil {
			return err
		}
		return a.history(ctx, id, limit)
	case "set-stage":
		if len(args) < 2 {
			return errors.New("usage: set-stage <id> <stage>")
		}
		return a.setStage(ctx, args[0], args[1])
	case "unmark":
		if len(args) < 2 {
			return errors.New("usage: unmark <id> <stage>")
		}
		return a.unmark(ctx, args[0], args[1])
	case "reset":
		id, err := requireID(cmd, args)
		if err != nil {
			return err
		}
		return a.reset(ctx, id)
	case "finalize":
		id, err := requireID(cmd, args)
		if err != nil {
			return err
		}
		return a.finalize(ctx, id)
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func requireID(cmd string, args []string) (string, error) {
	if len(args) == 0 || args[0] == "" {
		return "", fmt.Errorf("usage: %s <conversation-id>", cmd)
	}
	return args[0], nil
}

func parseLimit(args []string) (int, error) {
	limit := defaultLimit
	for i := 0; i < len(args); i++ {
		if args[i] != "--limit" && args[i] != "-n" {
			continue
		}
		if i+1 >= len(args) {
			return 0, errors.New("--limit needs a value")
		}
		n, err := strconv.Atoi(args[i+1])
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid limit %q", args[i+1])
		}
		limit = n
		i++
	}
	return limit, nil
}

func stageLabel(c *store.Conversation) string {
	if !c.HasStage {
		return "-"
	}
	return c.Stage.String()
}

func (a *admin) list(ctx context.Context, limit int) error {
	convs, err := a.store.List(ctx, limit)
	if err != nil {
		return fmt.Errorf("listing conversations: %w", err)
	}

	if len(convs) == 0 {
		fmt.Fprintln(a.out, "(no conversations)")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTAGE\tDISPATCHED\tFINALIZED\tUPDATED")
	for _, c := range convs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%s\n",
			c.ID, stageLabel(c), len(c.Dispatched), c.Finalized, c.UpdatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func (a *admin) show(ctx context.Context, id string) error {
	c, err := a.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("conversation %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("loading conversation: %w", err)
	}

	cyan := color.New(color.FgCyan)
	cyan.Fprintf(a.out, "Conversation %s\n", c.ID)

	dispatched := make([]string, len(c.Dispatched))
	for i, st := range c.Dispatched {
		dispatched[i] = st.String()
	}
	if len(dispatched) == 0 {
		dispatched = []string{"-"}
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  Stage:\t%s\n", stageLabel(c))
	fmt.Fprintf(w, "  Dispatched:\t%s\n", strings.Join(dispatched, ", "))
	fmt.Fprintf(w, "  Finalized:\t%t\n", c.Finalized)
	fmt.Fprintf(w, "  Updated:\t%s\n", c.UpdatedAt.Format(time.RFC3339))
	return w.Flush()
}

func (a *admin) history(ctx context.Context, id string, limit int) error {
	recs, err := a.store.ListDispatches(ctx, id, limit)
	if err != nil {
		return fmt.Errorf("listing dispatches: %w", err)
	}
	if len(recs) == 0 {
		fmt.Fprintln(a.out, "(no dispatches)")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "AT\tSTAGE\tOUTCOME\tERROR")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.At.Format(time.RFC3339), r.Stage, r.Outcome, r.Error)
	}
	return w.Flush()
}

func (a *admin) setStage(ctx context.Context, id, name string) error {
	st, err := stage.Parse(name)
	if err != nil {
		return err
	}
	if err := a.store.SetStage(ctx, id, st); err != nil {
		return fmt.Errorf("setting stage: %w", err)
	}
	color.New(color.FgGreen).Fprintf(a.out, "✓ %s moved to %s\n", id, st)
	return nil
}

// unmark clears one stage's guard so the next inbound message replays it.
func (a *admin) unmark(ctx context.Context, id, name string) error {
	st, err := stage.Parse(name)
	if err != nil {
		return err
	}
	if err := a.store.Unmark(ctx, id, st); err != nil {
		return fmt.Errorf("clearing guard: %w", err)
	}
	color.New(color.FgGreen).Fprintf(a.out, "✓ %s: %s guard cleared\n", id, st)
	return nil
}

func (a *admin) reset(ctx context.Context, id string) error {
	if err := a.store.Reset(ctx, id); err != nil {
		return fmt.Errorf("resetting: %w", err)
	}
	color.New(color.FgGreen).Fprintf(a.out, "✓ %s reset\n", id)
	return nil
}

func (a *admin) finalize(ctx context.Context, id string) error {
	if err := a.store.Finalize(ctx, id); err != nil {
		return fmt.Errorf("finalizing: %w", err)
	}
	color.New(color.FgGreen).Fprintf(a.out, "✓ %s finalized\n", id)
	return nil
}
