package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atinyakov/doafavor/internal/models"
)

func signInCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:       "signin <google|facebook>",
		Short:     "Sign in with a federated identity provider",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(models.Google), string(models.Facebook)},
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := models.Provider(args[0])
			if !provider.Valid() {
				return fmt.Errorf("unknown provider %q", args[0])
			}
			return done(current().orch.SignIn(cmd.Context(), provider))
		},
	}
}
