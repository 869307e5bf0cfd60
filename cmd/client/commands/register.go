package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atinyakov/doafavor/internal/validation"
)

func registerCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Create an account with a username, email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			in, err := a.prompter.Registration()
			if err != nil {
				return err
			}

			out, err := a.orch.Register(cmd.Context(), in)
			var failure *validation.Failure
			if errors.As(err, &failure) {
				for _, r := range failure.Results {
					fmt.Fprintln(cmd.OutOrStdout(), r.Message)
				}
				return errNotSignedIn
			}
			if err != nil {
				return err
			}
			return done(out)
		},
	}
}
