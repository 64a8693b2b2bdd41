package cli

import (
	"bufio"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/avelkaya/whisperline/internal/client/relay"
	"github.com/avelkaya/whisperline/internal/common"
	"github.com/avelkaya/whisperline/internal/cryptox"
	"github.com/avelkaya/whisperline/internal/wire"
)

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat [username] [peer]",
		Short: "Open an encrypted conversation with a peer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, peer := args[0], args[1]

			pass, err := getPassphrase()
			if err != nil {
				return err
			}
			defer common.WipeByteArray(pass)

			priv, err := store.Load(pass)
			if err != nil {
				return err
			}

			peerPEM, peerFP, err := dirClient.FetchKey(peer)
			if err != nil {
				return err
			}
			peerKey, err := cryptox.DecodePublicKeyPEM(peerPEM)
			if err != nil {
				return err
			}
			fmt.Printf("Peer %s fingerprint: %s\n", peer, peerFP)

			chat, err := relay.DialChat(cmd.Context(), relayURL, username)
			if err != nil {
				return err
			}
			defer chat.Close()

			go receiveLoop(chat, username, peer, priv)

			fmt.Println("Connected. Type a message and press Enter ('/quit' to leave)")
			scanner := bufio.NewScanner(os.Stdin)

			for {
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if line == "/quit" {
					fmt.Println("Bye!")
					return nil
				}

				sealed, err := cryptox.SealMessage([]byte(line), peerKey, &priv.PublicKey)
				if err != nil {
					fmt.Println("encrypt failed:", err)
					continue
				}

				pkt := wire.Packet{
					From:          username,
					To:            peer,
					IVB64:         sealed.IVB64,
					CiphertextB64: sealed.CiphertextB64,
					EncKeyToB64:   sealed.KeyToB64,
					EncKeyFromB64: sealed.KeyFromB64,
				}
				if err := chat.Send(pkt); err != nil {
					return fmt.Errorf("connection lost: %w", err)
				}
			}
			return nil
		},
	}
}

// receiveLoop prints the history batch and live packets of the conversation,
// and tracks the peer's presence.
func receiveLoop(chat *relay.ChatClient, me, peer string, priv *rsa.PrivateKey) {
	peerOnline := false

	for {
		f, err := chat.Next()
		if err != nil {
			return
		}

		switch f.Event {
		case wire.EventHistoryPackets:
			var packets []wire.Packet
			if err := json.Unmarshal(f.Data, &packets); err != nil {
				continue
			}
			for _, pkt := range packets {
				printPacket(pkt, me, peer, priv)
			}

		case wire.EventNewPacket:
			var pkt wire.Packet
			if err := json.Unmarshal(f.Data, &pkt); err != nil {
				continue
			}
			printPacket(pkt, me, peer, priv)

		case wire.EventUsers:
			var users []string
			if err := json.Unmarshal(f.Data, &users); err != nil {
				continue
			}
			online := slices.Contains(users, peer)
			if online != peerOnline {
				peerOnline = online
				if online {
					fmt.Printf("(%s is online)\n", peer)
				} else {
					fmt.Printf("(%s went offline)\n", peer)
				}
			}
		}
	}
}

// printPacket decrypts and prints one packet if it belongs to the open
// conversation. The sender opens the copy wrapped under its own key.
func printPacket(pkt wire.Packet, me, peer string, priv *rsa.PrivateKey) {
	mine := pkt.From == me && pkt.To == peer
	theirs := pkt.From == peer && pkt.To == me
	if !mine && !theirs {
		return
	}

	wrapped := pkt.EncKeyToB64
	if mine {
		wrapped = pkt.EncKeyFromB64
	}

	text, err := cryptox.OpenMessage(pkt.IVB64, pkt.CiphertextB64, wrapped, priv)
	if err != nil {
		fmt.Printf("[%s] <unreadable message>\n", pkt.From)
		return
	}
	fmt.Printf("[%s] %s: %s\n", pkt.CreatedAt, pkt.From, text)
}
