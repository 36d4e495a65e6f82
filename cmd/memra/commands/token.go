package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marshallshelly/memra/internal/config"
	"github.com/marshallshelly/memra/internal/models"
	"github.com/marshallshelly/memra/pkg/builder"
	"github.com/marshallshelly/memra/pkg/registry"
	"github.com/marshallshelly/memra/pkg/runtime"
)

var tokenUserID int64

var tokenCmd = &cobra.Command{
	Use:   "token [username]",
	Short: "Issue a bearer token for a user",
	Long: `Issue a signed bearer token with the active key. The user is looked up by
username, or given directly with --id.`,
	Example: `  memra token ada
  memra token --id 7`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := cfg.Auth.JWT()
		if err != nil {
			return config.ConfigError("loading auth keys", err)
		}

		id := tokenUserID
		switch {
		case len(args) == 1 && id != 0:
			return config.GeneralError("token", errors.New("give a username or --id, not both"))
		case len(args) == 1:
			id, err = lookupUser(cmd, args[0])
			if err != nil {
				return err
			}
		case id == 0:
			return config.GeneralError("token", errors.New("a username or --id is required"))
		}

		token, err := j.Issue(id)
		if err != nil {
			return config.GeneralError("signing token", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Int64Var(&tokenUserID, "id", 0, "user id to sign without a lookup")
}

func lookupUser(cmd *cobra.Command, username string) (int64, error) {
	ctx := cmd.Context()

	reg, err := models.Registry()
	if err != nil {
		return 0, config.SchemaError("building registry", err)
	}
	users, err := registry.Of[models.User](reg)
	if err != nil {
		return 0, config.SchemaError("resolving users", err)
	}
	st, err := builder.FindByColumn(users, "username")
	if err != nil {
		return 0, config.SchemaError("building lookup", err)
	}

	db, err := connect(ctx)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	u, err := runtime.QueryOne[models.User](ctx, db.SQL(), users, st.SQL, username)
	if errors.Is(err, runtime.ErrNotFound) {
		return 0, config.GeneralError("token", fmt.Errorf("no user named %q", username))
	}
	if err != nil {
		return 0, config.GeneralError("looking up user", err)
	}
	id, ok := u.Key()
	if !ok {
		return 0, config.GeneralError("token", fmt.Errorf("user %q has no id", username))
	}
	return id, nil
}
