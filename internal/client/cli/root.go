// Package cli implements the whisper terminal client: identity management,
// key directory calls and the interactive chat loop.
package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/avelkaya/whisperline/internal/client/keystore"
	"github.com/avelkaya/whisperline/internal/client/relay"
)

var (
	home       string
	passphrase string
	relayURL   string

	store     *keystore.Keystore
	dirClient *relay.HTTPClient
)

func Execute() error {
	root := &cobra.Command{
		Use:   "whisper",
		Short: "End-to-end encrypted messaging CLI",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".whisperline")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}

			store = keystore.New(home)
			dirClient = relay.NewHTTP(relayURL)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.whisperline)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the identity")
	root.PersistentFlags().StringVar(&relayURL, "relay", "http://127.0.0.1:8080", "relay base URL")

	root.AddCommand(initCmd(), registerCmd(), fingerprintCmd(), chatCmd())
	return root.Execute()
}

// getPassphrase returns the -p flag value, or prompts on the terminal when
// the flag is empty. The caller should wipe the returned slice.
func getPassphrase() ([]byte, error) {
	if passphrase != "" {
		return []byte(passphrase), nil
	}
	return GetPassword(os.Stdout)
}
