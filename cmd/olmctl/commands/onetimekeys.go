package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"olmcore/entropy"
)

func oneTimeKeysCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "generate-one-time-keys",
		Short: "Generate fresh one-time keys and re-pickle the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadAccount()
			if err != nil {
				return err
			}
			if err := a.GenerateOneTimeKeys(count, entropy.System()); err != nil {
				return fmt.Errorf("generating one-time keys: %w", err)
			}
			blob, err := a.Pickle([]byte(passphrase))
			if err != nil {
				return fmt.Errorf("pickling account: %w", err)
			}
			if err := os.WriteFile(accountPath(), []byte(blob), 0o600); err != nil {
				return fmt.Errorf("writing pickle: %w", err)
			}
			raw, err := a.OneTimeKeysJSON()
			if err != nil {
				return fmt.Errorf("marshaling one-time keys: %w", err)
			}
			fmt.Println(string(raw))
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 10, "number of one-time keys to generate")
	return cmd
}
