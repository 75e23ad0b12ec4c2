package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ssod/cmd/internal/app"
	"ssod/cmd/internal/auth/account"
	"ssod/cmd/internal/rpc"
	"ssod/cmd/security/token"
)

// openStores loads config and connects the configured backends. Logs go to stderr.
func openStores(ctx context.Context) (*app.Stores, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	log := app.NewLoggerTo(os.Stderr, cfg.LogLevel, cfg.LogFormat, cfg.LogColor)
	return app.OpenStores(ctx, cfg, log)
}

func accountsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List stored accounts (direct store access)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stores, err := openStores(cmd.Context())
			if err != nil {
				return err
			}
			defer stores.Close()

			all, err := stores.Repo.ListAll(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeAccountsJSON(cmd.OutOrStdout(), all)
			}
			return writeAccountsTable(cmd.OutOrStdout(), all)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print accounts as JSON, session tokens included")
	return cmd
}

func writeAccountsJSON(w io.Writer, all []account.Account) error {
	out := make([]rpc.AccountPayload, 0, len(all))
	for _, a := range all {
		out = append(out, rpc.FromAccount(a))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// writeAccountsTable prints one row per account; tokens are shown as fingerprints.
func writeAccountsTable(w io.Writer, all []account.Account) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ACTIVE\tMAIL\tGUID\tTOKEN\tIMAGE")
	for _, a := range all {
		active := ""
		if a.IsActive {
			active = "*"
		}
		img := "-"
		if a.ProfileImage != nil {
			img = *a.ProfileImage
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", active, a.Mail, a.GUID, token.Fingerprint(a.SessionToken), img)
	}
	return tw.Flush()
}
