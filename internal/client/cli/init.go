package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avelkaya/whisperline/internal/common"
	"github.com/avelkaya/whisperline/internal/cryptox"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Generate an identity keypair and store it sealed on disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			if store.Exists() {
				return fmt.Errorf("identity already exists in %s", home)
			}

			pass, err := getPassphrase()
			if err != nil {
				return err
			}
			defer common.WipeByteArray(pass)

			priv, err := cryptox.GenerateIdentity()
			if err != nil {
				return err
			}
			if err := store.Save(pass, priv); err != nil {
				return err
			}

			pubPEM, err := cryptox.EncodePublicKeyPEM(&priv.PublicKey)
			if err != nil {
				return err
			}
			fmt.Printf("Identity created.\nFingerprint: %s\n", cryptox.Fingerprint(pubPEM))
			return nil
		},
	}
}
