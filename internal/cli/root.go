// Package cli implements memoctl, the operator tool for accounts, admin grants and devices.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Opener builds the services a command needs. Commands call it lazily so --help works
// without a database.
type Opener func(ctx context.Context) (*Env, error)

// RootOptions holds global flags.
type RootOptions struct {
	Format string // "json" | "text"
	open   Opener
}

var validFormats = []string{"text", "json"}

// NewRootCommand creates the memoctl root command.
func NewRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{open: open}
	cmd := &cobra.Command{
		Use:           "memoctl",
		Short:         "memoctl manages memodams accounts, admins and devices",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range validFormats {
				if f == opts.Format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newAccountCommand(opts))
	cmd.AddCommand(newAdminCommand(opts))
	cmd.AddCommand(newDevicesCommand(opts))
	return cmd
}

// withEnv opens the services, runs fn, and closes them.
func (o *RootOptions) withEnv(cmd *cobra.Command, fn func(ctx context.Context, env *Env) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	env, err := o.open(ctx)
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(ctx, env)
}

// print writes v as indented JSON, or calls text for the text format.
func (o *RootOptions) print(w io.Writer, v any, text func(io.Writer)) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}
