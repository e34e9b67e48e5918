package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/ersonp/history-map/internal/application/handlers"
	"github.com/ersonp/history-map/internal/domain/entities"
	"github.com/ersonp/history-map/internal/domain/services"
)

// tokenEnv supplies the login token non-interactively.
const tokenEnv = "GITHUB_TOKEN"

func newLoginCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Connect a GitHub account",
		Long: "Verifies a GitHub personal access token with gist scope, finds or creates the events gist " +
			"and loads its events. The token is read from --token, $GITHUB_TOKEN or stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, token)
		},
	}

	cmd.Flags().StringVarP(&token, "token", "t", "", "GitHub personal access token")

	return cmd
}

func runLogin(cmd *cobra.Command, token string) error {
	if token == "" {
		token = os.Getenv(tokenEnv)
	}
	if token == "" {
		fmt.Print("GitHub token: ")
		line, err := stdin.ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading token: %w", err)
		}
		token = line
	}

	ctx := cmd.Context()
	return withDeps(ctx, depsOptions{}, func(d *Deps) error {
		profile, err := d.Workspace.Login(ctx, token)
		if err != nil {
			return err
		}
		st := d.Workspace.Status()
		fmt.Printf("Logged in as %s. %d events loaded from gist %s.\n",
			color.New(color.Bold).Sprint(profile.DisplayName()), st.Events, st.GistID)
		return nil
	})
}

func newLogoutCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved token and local events",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, depsOptions{restore: true}, func(d *Deps) error {
				st := d.Workspace.Status()
				if !st.LoggedIn {
					fmt.Println("Not logged in.")
					return nil
				}
				if st.Sync.State != services.StateClean && !force {
					prompt := "There are changes not yet written to the gist. Log out anyway?"
					if !confirmAction(prompt) {
						fmt.Println("Cancelled.")
						return nil
					}
				}
				if err := d.Workspace.Logout(ctx); err != nil {
					return err
				}
				fmt.Println("Logged out.")
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show account and sync status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), depsOptions{restore: true}, func(d *Deps) error {
				printStatus(color.Output, d.Workspace.Status())
				return nil
			})
		},
	}
}

func printStatus(w io.Writer, st handlers.Status) {
	if !st.LoggedIn {
		fmt.Fprintln(w, "Not logged in. Run 'histmap login'.")
		return
	}

	tbl := uitable.New()
	tbl.MaxColWidth = 60
	if st.Profile != nil {
		tbl.AddRow("Account:", st.Profile.DisplayName())
	}
	tbl.AddRow("Gist:", st.GistID)
	tbl.AddRow("Events:", st.Events)
	tbl.AddRow("Sync:", syncLabel(st.Sync))
	if !st.Sync.LastSynced.IsZero() {
		tbl.AddRow("Last synced:", st.Sync.LastSynced.Format(time.RFC3339))
	}
	if st.Sync.LastError != nil {
		tbl.AddRow("Last error:", color.RedString(st.Sync.LastError.Error()))
	}
	_, _ = fmt.Fprintln(w, tbl)
}

func syncLabel(s services.SyncStatus) string {
	switch s.State {
	case services.StateClean:
		return color.GreenString("up to date")
	case services.StateSyncing:
		return color.CyanString("syncing")
	default:
		label := "unsynced changes"
		if s.Scheduled {
			label += " (write scheduled)"
		}
		return color.YellowString(label)
	}
}

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [event-id]",
		Short: "Show recent local actions",
		Long:  "Show recent local actions, or every action recorded for one event.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, depsOptions{}, func(d *Deps) error {
				var entries []entities.AuditEntry
				var err error
				if len(args) == 1 {
					entries, err = d.Workspace.EventHistory(ctx, args[0])
				} else {
					entries, err = d.Workspace.RecentActions(ctx, limit)
				}
				if err != nil {
					return fmt.Errorf("reading journal: %w", err)
				}
				if len(entries) == 0 {
					fmt.Println("No actions recorded.")
					return nil
				}

				tbl := uitable.New()
				tbl.MaxColWidth = 50
				tbl.AddRow("TIME", "ACTION", "EVENT", "DETAILS")
				for _, e := range entries {
					tbl.AddRow(e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Action, e.EventID, formatDetails(e.Details))
				}
				_, _ = fmt.Fprintln(color.Output, tbl)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", DefaultHistoryLimit, "Maximum number of entries to display")

	return cmd
}

func formatDetails(details map[string]any) string {
	if v, ok := details["title"]; ok {
		return fmt.Sprint(v)
	}
	if v, ok := details["error"]; ok {
		return fmt.Sprint(v)
	}
	if v, ok := details["events"]; ok {
		return fmt.Sprintf("%v events", v)
	}
	return ""
}

// reportSyncErr turns sync sentinels into friendly output.
func reportSyncErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, services.ErrNothingToSync):
		fmt.Println("Already up to date.")
		return nil
	case errors.Is(err, services.ErrSyncInProgress):
		fmt.Println("A sync is already running.")
		return nil
	default:
		return err
	}
}

func confirmAction(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	response, _ := stdin.ReadString('\n') // Error ignored: EOF/error treated as "no"
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
