package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Purge credential cache entries with no stored account, then print them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stores, err := openStores(cmd.Context())
			if err != nil {
				return err
			}
			defer stores.Close()

			purged, err := stores.Cache.ReconcileWith(cmd.Context(), stores.Repo)
			for _, mail := range purged {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), mail)
			}
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "purged %d entries\n", len(purged))
			return nil
		},
	}
}
