package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avelkaya/whisperline/internal/common"
	"github.com/avelkaya/whisperline/internal/cryptox"
)

func registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register [username]",
		Short: "Publish your public key to the relay directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := args[0]

			pass, err := getPassphrase()
			if err != nil {
				return err
			}
			defer common.WipeByteArray(pass)

			priv, err := store.Load(pass)
			if err != nil {
				return err
			}

			pubPEM, err := cryptox.EncodePublicKeyPEM(&priv.PublicKey)
			if err != nil {
				return err
			}

			fp, err := dirClient.RegisterKey(username, pubPEM)
			if err != nil {
				return err
			}

			fmt.Printf("Registered %s with relay.\nFingerprint: %s\n", username, fp)
			return nil
		},
	}
}
