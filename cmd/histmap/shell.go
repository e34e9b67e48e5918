package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ersonp/history-map/internal/application/handlers"
	"github.com/ersonp/history-map/internal/domain/services"
	"github.com/ersonp/history-map/internal/infrastructure/metrics"
)

type shellFlags struct {
	metricsAddr string
}

func newShellCmd() *cobra.Command {
	var flags shellFlags

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive mode with automatic sync",
		Long: "Keeps the collection open and writes changes to the gist after a quiet period " +
			"(sync.debounce in config.yaml). Type 'help' for commands.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides metrics.addr)")

	return cmd
}

type shellState struct {
	ws  *handlers.Workspace
	in  *bufio.Scanner
	out io.Writer
}

func runShell(cmd *cobra.Command, flags shellFlags) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	return withDeps(ctx, depsOptions{restore: true, metrics: true}, func(d *Deps) error {
		addr := d.Config.Metrics.Addr
		if flags.metricsAddr != "" {
			addr = flags.metricsAddr
		}
		if addr != "" {
			srv := metrics.NewServer(addr, d.Metrics)
			go func() {
				if err := srv.Serve(ctx); err != nil {
					d.Logger.Warn("metrics server stopped", "error", err)
				}
			}()
			fmt.Printf("Serving metrics on %s/metrics\n", addr)
		}

		s := &shellState{
			ws:  d.Workspace,
			in:  bufio.NewScanner(stdin),
			out: color.Output,
		}
		err := s.runInputLoop(ctx)

		if ferr := d.Workspace.Flush(context.WithoutCancel(ctx)); ferr != nil {
			return errors.Join(err, fmt.Errorf("writing pending changes: %w", ferr))
		}
		return err
	})
}

func (s *shellState) runInputLoop(ctx context.Context) error {
	fmt.Fprintln(s.out, "histmap interactive mode. Type 'help' for commands, 'quit' to exit.")
	if !s.ws.Status().LoggedIn {
		fmt.Fprintln(s.out, "Not logged in; use 'login <token>'.")
	}
	fmt.Fprintln(s.out)

	for {
		fmt.Fprint(s.out, "> ")
		if !s.in.Scan() {
			break
		}
		if ctx.Err() != nil {
			return nil
		}

		cmd, arg, _ := strings.Cut(strings.TrimSpace(s.in.Text()), " ")
		arg = strings.TrimSpace(arg)
		if cmd == "" {
			continue
		}

		exit, err := s.handleCommand(ctx, strings.ToLower(cmd), arg)
		if err != nil {
			fmt.Fprintf(s.out, "%s %v\n", color.RedString("Error:"), err)
		}
		if exit {
			return nil
		}
	}

	return s.in.Err()
}

// handleCommand runs one shell command. Returns true to exit.
func (s *shellState) handleCommand(ctx context.Context, cmd, arg string) (bool, error) {
	switch cmd {
	case "quit", "exit":
		return s.handleQuit(), nil
	case "help":
		s.showHelp()
	case "login":
		profile, err := s.ws.Login(ctx, arg)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "Logged in as %s, %d events.\n", profile.DisplayName(), s.ws.Status().Events)
	case "logout":
		return false, s.ws.Logout(ctx)
	case "status":
		printStatus(s.out, s.ws.Status())
	case "list", "ls":
		groups, err := s.ws.Timeline(arg)
		if err != nil {
			return false, err
		}
		if len(groups) == 0 {
			fmt.Fprintln(s.out, "No events found.")
			return false, nil
		}
		printTimeline(s.out, groups, true)
	case "show":
		e, err := s.ws.Get(arg)
		if err != nil {
			return false, err
		}
		_ = s.ws.Select(e.ID)
		printEvent(s.out, e)
	case "names":
		text := arg
		if text == "" {
			fmt.Fprintln(s.out, "Enter event names, one per line. Empty line to finish.")
			text = s.readBlock(func(line string) bool { return strings.TrimSpace(line) == "" })
		}
		fmt.Fprintln(s.out, "Identifying events...")
		return false, s.openReview(s.ws.AnalyzeNames(ctx, text))
	case "search":
		fmt.Fprintln(s.out, "Searching...")
		return false, s.openReview(s.ws.Search(ctx, arg))
	case "manual":
		fmt.Fprintln(s.out, "Enter field::value records separated by '--'. A single '.' line finishes.")
		text := s.readBlock(func(line string) bool { return strings.TrimSpace(line) == "." })
		return false, s.openReview(s.ws.ImportManual(text))
	case "review":
		return false, s.openReview(s.ws.Review())
	case "toggle":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return false, fmt.Errorf("usage: toggle <number>")
		}
		return false, s.openReview(nil, s.ws.ToggleCandidate(n-1))
	case "pick":
		r, err := s.ws.Review()
		if err != nil {
			return false, err
		}
		indices, err := parseSelection(arg, r.Len())
		if err != nil {
			return false, err
		}
		return false, s.openReview(nil, s.ws.SelectCandidates(indices))
	case "confirm":
		r, err := s.ws.Review()
		if err != nil {
			return false, err
		}
		added, err := s.ws.ConfirmReview(ctx)
		if err != nil {
			return false, err
		}
		printAdded(s.out, r.Source, len(r.Selected()), added)
	case "discard":
		s.ws.DiscardReview()
		fmt.Fprintln(s.out, "Review discarded.")
	case "delete", "rm":
		return false, s.handleDelete(ctx, arg)
	case "sync":
		if err := reportSyncErr(s.ws.Sync(ctx)); err != nil {
			return false, err
		}
		if s.ws.Status().Sync.State == services.StateClean {
			fmt.Fprintln(s.out, "Synchronized.")
		}
	default:
		return false, fmt.Errorf("unknown command %q (type 'help')", cmd)
	}
	return false, nil
}

// openReview prints the review after a staging call. A nil review with a
// nil error re-reads the current one.
func (s *shellState) openReview(r *services.Review, err error) error {
	if err != nil {
		return err
	}
	if r == nil {
		if r, err = s.ws.Review(); err != nil {
			return err
		}
	}
	printReview(s.out, r)
	fmt.Fprintln(s.out, "Use 'toggle N', 'pick 1,3', then 'confirm' or 'discard'.")
	return nil
}

func (s *shellState) readBlock(done func(string) bool) string {
	var b strings.Builder
	for {
		fmt.Fprint(s.out, "... ")
		if !s.in.Scan() {
			break
		}
		line := s.in.Text()
		if done(line) {
			break
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// handleDelete removes one event after a y/N answer; "-f" skips the question.
func (s *shellState) handleDelete(ctx context.Context, arg string) error {
	force := false
	id := ""
	for _, f := range strings.Fields(arg) {
		switch {
		case f == "-f" || f == "--force":
			force = true
		case id == "":
			id = f
		default:
			return fmt.Errorf("usage: delete [-f] <id>")
		}
	}
	if id == "" {
		return fmt.Errorf("usage: delete [-f] <id>")
	}

	e, err := s.ws.Get(id)
	if err != nil {
		return err
	}
	if !force {
		fmt.Fprintf(s.out, "Delete %q (%s)? [y/N] ", e.Title, e.DateStr)
		if !s.in.Scan() {
			return nil
		}
		answer := strings.ToLower(strings.TrimSpace(s.in.Text()))
		if answer != "y" && answer != "yes" {
			fmt.Fprintln(s.out, "Cancelled.")
			return nil
		}
	}

	if _, err := s.ws.DeleteEvent(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Deleted %q. Changes are written after a quiet period.\n", e.Title)
	return nil
}

func (s *shellState) handleQuit() bool {
	if _, err := s.ws.Review(); err == nil {
		fmt.Fprintln(s.out, "Warning: the open review will be lost. Type 'quit' again to confirm.")
		fmt.Fprint(s.out, "> ")
		if s.in.Scan() && strings.ToLower(strings.TrimSpace(s.in.Text())) == "quit" {
			fmt.Fprintln(s.out, "Goodbye!")
			return true
		}
		return false
	}
	fmt.Fprintln(s.out, "Goodbye!")
	return true
}

func (s *shellState) showHelp() {
	fmt.Fprintln(s.out, "Commands:")
	fmt.Fprintln(s.out, "  login <token>   - Connect a GitHub account")
	fmt.Fprintln(s.out, "  logout          - Forget the account and local events")
	fmt.Fprintln(s.out, "  status          - Show account and sync status")
	fmt.Fprintln(s.out, "  list [text]     - Show the timeline, optionally filtered")
	fmt.Fprintln(s.out, "  show <id>       - Show one event")
	fmt.Fprintln(s.out, "  names [name]    - Look up events by name")
	fmt.Fprintln(s.out, "  search <query>  - Find events about a topic")
	fmt.Fprintln(s.out, "  manual          - Enter field::value records")
	fmt.Fprintln(s.out, "  review          - Show the open review")
	fmt.Fprintln(s.out, "  toggle <n>      - Flip one candidate")
	fmt.Fprintln(s.out, "  pick <list>     - Keep only these candidates, e.g. 1,3,5-7")
	fmt.Fprintln(s.out, "  confirm         - Add the selected candidates")
	fmt.Fprintln(s.out, "  discard         - Drop the open review")
	fmt.Fprintln(s.out, "  delete [-f] <id> - Delete an event (asks first unless -f)")
	fmt.Fprintln(s.out, "  sync            - Write changes now")
	fmt.Fprintln(s.out, "  quit            - Exit, writing pending changes")
}
