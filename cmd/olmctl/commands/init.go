package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"olmcore/account"
	"olmcore/entropy"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a new local account and pickle it to disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("a --passphrase is required to protect the pickle")
			}
			a, err := account.Create(entropy.System())
			if err != nil {
				return fmt.Errorf("creating account: %w", err)
			}
			blob, err := a.Pickle([]byte(passphrase))
			if err != nil {
				return fmt.Errorf("pickling account: %w", err)
			}
			if err := os.WriteFile(accountPath(), []byte(blob), 0o600); err != nil {
				return fmt.Errorf("writing pickle: %w", err)
			}
			log.WithField("path", accountPath()).Info("account created")
			return nil
		},
	}
}
