package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avelkaya/whisperline/internal/common"
	"github.com/avelkaya/whisperline/internal/cryptox"
)

func fingerprintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fingerprint [peer]",
		Short: "Print your identity fingerprint, or a peer's from the directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				_, fp, err := dirClient.FetchKey(args[0])
				if err != nil {
					return err
				}
				fmt.Printf("Fingerprint (%s): %s\n", args[0], fp)
				return nil
			}

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
			fmt.Printf("Fingerprint: %s\n", cryptox.Fingerprint(pubPEM))
			return nil
		},
	}
	return cmd
}
