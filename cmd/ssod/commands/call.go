package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ssod/cmd/internal/app"
	"ssod/cmd/internal/rpc"
)

func callCmd() *cobra.Command {
	var (
		url     string
		origin  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "call <method> [args...]",
		Short: "Issue one RPC call to a running service and print the frames it answers with",
		Long: strings.Join([]string{
			"Methods and arguments:",
			"  login|register|fetch_token <mail> <password>",
			"  logout|switch_account <guid>",
			"  fetch_account_info <guid> <session_token>",
			"  logout_all | get_active_account | get_all_accounts",
		}, "\n"),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			method := args[0]
			payload, err := callPayload(method, args[1:])
			if err != nil {
				return err
			}

			if url == "" {
				url = app.RPCURL(app.EnvString("SSO_HTTP_ADDR", "127.0.0.1:8765"))
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			c, err := rpc.Dial(ctx, url, &rpc.DialOptions{Origin: origin})
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			out, err := c.Call(ctx, method, payload)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return err
			}
			if out.Result != nil && !out.Result.Success {
				return fmt.Errorf("%s: %s", out.Result.Code, out.Result.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "gateway URL (default derived from SSO_HTTP_ADDR)")
	cmd.Flags().StringVar(&origin, "origin", "", "Origin header to send")
	cmd.Flags().DurationVar(&timeout, "timeout", 35*time.Second, "overall call timeout")
	return cmd
}

// callPayload maps positional CLI arguments to the method's payload.
func callPayload(method string, args []string) (any, error) {
	want := func(names ...string) error {
		if len(args) != len(names) {
			return fmt.Errorf("%s expects %d argument(s): %s", method, len(names), strings.Join(names, " "))
		}
		return nil
	}

	switch method {
	case rpc.MethodLogin, rpc.MethodRegister, rpc.MethodFetchToken:
		if err := want("<mail>", "<password>"); err != nil {
			return nil, err
		}
		return rpc.CredentialsPayload{Mail: args[0], Password: args[1]}, nil

	case rpc.MethodLogout, rpc.MethodSwitchAccount:
		if err := want("<guid>"); err != nil {
			return nil, err
		}
		return rpc.GUIDPayload{GUID: args[0]}, nil

	case rpc.MethodFetchAccountInfo:
		if err := want("<guid>", "<session_token>"); err != nil {
			return nil, err
		}
		return rpc.AccountInfoPayload{GUID: args[0], SessionToken: args[1]}, nil

	case rpc.MethodLogoutAll, rpc.MethodGetActiveAccount, rpc.MethodGetAllAccounts:
		if err := want(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	return nil, fmt.Errorf("unknown method %q (one of: %s)", method, strings.Join(rpc.Methods, ", "))
}
