package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atinyakov/doafavor/internal/validation"
)

func loginCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in with your password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			label := "Email"
			if a.cfg.Lookup == "username" {
				label = "Username"
			}
			in, err := a.prompter.Login(label)
			if err != nil {
				return err
			}

			out, err := a.orch.Login(cmd.Context(), in)
			if errors.Is(err, validation.ErrInvalidInput) {
				fmt.Fprintln(cmd.OutOrStdout(), validation.MsgLoginFieldsMissing)
				return errNotSignedIn
			}
			if err != nil {
				return err
			}
			return done(out)
		},
	}
}
