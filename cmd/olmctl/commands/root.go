// Package commands wires the olmctl CLI: local account management over the
// account/pickle packages, driven by cobra the way wbd2023-Ciphera's
// cmd/ciphera/commands/root.go wires its own identity CLI. Unlike the core
// crypto packages, this layer is allowed to touch the filesystem and log.
package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	homeDir    string
	passphrase string

	log *logrus.Logger
)

// Execute builds and runs the root olmctl command.
func Execute(logger *logrus.Logger) error {
	log = logger

	root := &cobra.Command{
		Use:   "olmctl",
		Short: "Local Olm/Megolm account management",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if homeDir == "" {
				h, err := os.UserHomeDir()
				if err != nil {
					return fmt.Errorf("resolving home directory: %w", err)
				}
				homeDir = filepath.Join(h, ".olmctl")
			}
			if err := os.MkdirAll(homeDir, 0o700); err != nil {
				return fmt.Errorf("creating state dir: %w", err)
			}
			// olmctl.env in the state dir may pin a passphrase for
			// non-interactive use; real passphrases still win via --passphrase.
			_ = godotenv.Load(filepath.Join(homeDir, "olmctl.env"))
			if passphrase == "" {
				passphrase = os.Getenv("OLMCTL_PASSPHRASE")
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&homeDir, "home", "", "state directory (default: $HOME/.olmctl)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "pickle passphrase")

	root.AddCommand(
		initCmd(),
		identityCmd(),
		oneTimeKeysCmd(),
		versionCmd(),
	)

	return root.Execute()
}

func accountPath() string {
	return filepath.Join(homeDir, "account.pickle")
}
