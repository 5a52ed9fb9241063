package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/xiaot623/estatehub/internal/protocol"
	"github.com/xiaot623/estatehub/internal/transport/ws"
)

func newChatCmd() *cobra.Command {
	var (
		addr   string
		userID string
		roomID string
		apiKey string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Join a chat room over the live relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" || roomID == "" {
				return fmt.Errorf("--user and --room are required")
			}
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Connecting to %s...\n", addr)
			client, err := ws.Dial(addr)
			if err != nil {
				return fmt.Errorf("failed to connect: %w", err)
			}
			defer client.Close()

			if err := client.Hello(userID, apiKey); err != nil {
				return err
			}
			if err := client.Join(roomID); err != nil {
				return err
			}
			fmt.Fprintf(out, "Connected as %s to room %s.\n", userID, roomID)
			fmt.Fprintln(out, "Type a message and press Enter to send. /quit to exit.")

			go printFrames(out, client)

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				input := strings.TrimSpace(scanner.Text())
				if input == "" {
					continue
				}
				if input == "/quit" {
					fmt.Fprintln(out, "Bye!")
					return nil
				}
				if err := client.Send(roomID, input); err != nil {
					return fmt.Errorf("send: %w", err)
				}
			}
			return scanner.Err()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "ws://localhost:8080/ws", "Relay WebSocket address")
	cmd.Flags().StringVar(&userID, "user", "", "User ID to chat as")
	cmd.Flags().StringVar(&roomID, "room", "", "Room ID to join")
	cmd.Flags().StringVar(&apiKey, "api-key", os.Getenv("RELAY_API_KEY"), "Relay API key")
	return cmd
}

// printFrames prints server frames until the connection closes.
func printFrames(out io.Writer, client *ws.Client) {
	for {
		typ, data, err := client.Next()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				fmt.Fprintf(out, "read error: %v\n", err)
			}
			return
		}

		if typ == protocol.TypeMessage {
			var msg protocol.ChatMessage
			if err := json.Unmarshal(data, &msg); err == nil && msg.Message != nil {
				fmt.Fprintf(out, "[%s] %s\n", msg.Message.SenderID, msg.Message.Text)
				continue
			}
		}
		fmt.Fprintf(out, "[%s] %s\n", typ, string(data))
	}
}
