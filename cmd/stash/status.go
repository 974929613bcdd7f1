package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/stash/internal/entry"
	"go.klb.dev/stash/internal/hub"
	"go.klb.dev/stash/internal/rpc"
)

func newStatusCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon state and connected watchers",
		Long: `Displays the daemon's history size, shortcut, input permission, and every
client currently watching the history.

The request goes to the local socket unless --host names a TCP listener.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runStatus(cmd.Context(), v) },
	}

	cmd.Flags().Bool("json", false, "output raw JSON")
	addClientFlags(cmd)

	return cmd
}

func runStatus(ctx context.Context, v *viper.Viper) error {
	c, closeConn, transport, err := dial(v)
	if err != nil {
		return err
	}
	defer closeConn()

	resp, err := c.Status(ctx)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}

	if v.GetBool("json") {
		enc, _ := json.MarshalIndent(entry.OKResponse(resp), "", "  ")
		fmt.Println(string(enc))
		return nil
	}

	printStatus(resp, v.GetString("source"), transport)
	return nil
}

func printStatus(resp *rpc.StatusResponse, mySource, transport string) {
	w := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Version:\t%s\n", resp.Version)
	fmt.Fprintf(w, "Transport:\t%s\n", transport)
	fmt.Fprintf(w, "Entries:\t%d\n", resp.Entries)
	if resp.LatestEntry > 0 {
		fmt.Fprintf(w, "Last capture:\t%s\n", fmtAge(time.UnixMilli(resp.LatestEntry)))
	}
	hotkey := resp.Hotkey
	if hotkey == "" {
		hotkey = "not registered"
	}
	fmt.Fprintf(w, "Shortcut:\t%s\n", hotkey)
	fmt.Fprintf(w, "Panel:\t%s\n", map[bool]string{true: "open", false: "closed"}[resp.PanelVisible])
	fmt.Fprintf(w, "Auto-paste:\t%s\n", map[bool]string{true: "enabled", false: "disabled (no input permission)"}[resp.InputPermitted])
	if resp.Fingerprint != "" {
		fmt.Fprintf(w, "TLS key:\t%s\n", resp.Fingerprint)
	}
	fmt.Fprintln(w)
	_ = w.Flush()

	if len(resp.Watchers) == 0 {
		fmt.Println("No watchers connected.")
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "\tSOURCE\tADDR\tCONNECTED\tLAST EVENT\tACCEPTS\n")
	_, _ = fmt.Fprintf(tw, "\t------\t----\t---------\t----------\t-------\n")
	for _, p := range resp.Watchers {
		marker := ""
		if p.Source == mySource {
			marker = "*"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			marker, p.Source, p.Addr, tsAge(p.ConnectedAt), tsAge(p.LastSeen), accepts(p),
		)
	}
	_ = tw.Flush()
}

func accepts(p hub.PeerInfo) string {
	if len(p.Accepts) == 0 {
		return "*"
	}
	tags := make([]string, len(p.Accepts))
	for i, t := range p.Accepts {
		tags[i] = string(t)
	}
	return strings.Join(tags, ",")
}

func tsAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return fmtAge(t)
}

func fmtAge(t time.Time) string {
	age := time.Since(t).Round(time.Second)
	if age < time.Minute {
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	}
	if age < time.Hour {
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	}
	return t.Format("15:04:05")
}
