package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	accountdomain "memodams/backend/internal/account/domain"
)

func newAccountCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "account", Short: "Create and list accounts"}
	cmd.AddCommand(newAccountCreateCommand(opts), newAccountListCommand(opts))
	return cmd
}

type accountView struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	Admin         bool   `json:"admin"`
	Status        string `json:"status"`
}

func toAccountView(a *accountdomain.Account) accountView {
	return accountView{ID: a.ID, Email: a.Email, Name: a.Name, EmailVerified: a.EmailVerified, Admin: a.Admin, Status: string(a.Status)}
}

func newAccountCreateCommand(opts *RootOptions) *cobra.Command {
	var (
		email, name   string
		passwordStdin bool
		verified      bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account with a password",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readSecret(cmd, "Password: ", passwordStdin)
			if err != nil {
				return err
			}
			return opts.withEnv(cmd, func(ctx context.Context, env *Env) error {
				acct, err := env.Auth.SignUp(ctx, email, password, name)
				if err != nil {
					return err
				}
				if verified {
					if err := env.Accounts.SetEmailVerified(ctx, acct.ID); err != nil {
						return err
					}
					acct.EmailVerified = true
				}
				view := toAccountView(acct)
				return opts.print(cmd.OutOrStdout(), view, func(w io.Writer) {
					fmt.Fprintf(w, "created %s (%s) email_verified=%v\n", view.Email, view.ID, view.EmailVerified)
				})
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	cmd.Flags().BoolVar(&verified, "verified", false, "mark the email as verified without sending a link")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newAccountListCommand(opts *RootOptions) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnv(cmd, func(ctx context.Context, env *Env) error {
				list, err := env.Gate.ListAccounts(ctx, limit, offset)
				if err != nil {
					return err
				}
				views := make([]accountView, 0, len(list))
				for _, a := range list {
					views = append(views, toAccountView(a))
				}
				return opts.print(cmd.OutOrStdout(), views, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tEMAIL\tVERIFIED\tADMIN\tSTATUS")
					for _, v := range views {
						fmt.Fprintf(tw, "%s\t%s\t%v\t%v\t%s\n", v.ID, v.Email, v.EmailVerified, v.Admin, v.Status)
					}
					tw.Flush()
				})
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}
