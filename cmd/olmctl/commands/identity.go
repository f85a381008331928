package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"olmcore/account"
)

func loadAccount() (*account.Account, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("a --passphrase is required to unlock the pickle")
	}
	blob, err := os.ReadFile(accountPath())
	if err != nil {
		return nil, fmt.Errorf("reading pickle: %w", err)
	}
	a, err := account.Unpickle([]byte(passphrase), string(blob))
	if err != nil {
		return nil, fmt.Errorf("unpickling account: %w", err)
	}
	return a, nil
}

func identityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "identity",
		Short: "Print this account's identity keys as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadAccount()
			if err != nil {
				return err
			}
			raw, err := a.IdentityKeysJSON()
			if err != nil {
				return fmt.Errorf("marshaling identity keys: %w", err)
			}
			fmt.Println(string(raw))
			return nil
		},
	}
}
