package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

const tapDialTimeout = 2 * time.Second

var tapCmd = &cobra.Command{
	Use:   "tap",
	Short: "talk to a running instance over the text tap socket",
}

var tapListCmd = &cobra.Command{
	Use:   "list",
	Short: "print the pane count",
	RunE: func(cmd *cobra.Command, args []string) error {
		reply, err := tapRequest(map[string]any{"type": "list_panes"})
		if err != nil {
			return err
		}
		fmt.Printf("panes: %d\n", gjson.Get(reply, "pane_count").Int())
		return nil
	},
}

var tapSendCmd = &cobra.Command{
	Use:   "send <pane> <text>",
	Short: "inject input into one pane",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var pane int
		if _, err := fmt.Sscanf(args[0], "%d", &pane); err != nil || pane < 0 {
			return fmt.Errorf("invalid pane index %q", args[0])
		}
		reply, err := tapRequest(map[string]any{
			"type": "send",
			"pane": pane,
			"text": args[1] + "\r",
		})
		if err != nil {
			return err
		}
		return checkTapReply(reply)
	},
}

var tapSendAllCmd = &cobra.Command{
	Use:   "send-all <text>",
	Short: "inject input into every pane",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reply, err := tapRequest(map[string]any{
			"type": "send_all",
			"text": args[0] + "\r",
		})
		if err != nil {
			return err
		}
		return checkTapReply(reply)
	},
}

func init() {
	tapCmd.AddCommand(tapListCmd, tapSendCmd, tapSendAllCmd, tapWatchCmd)
	rootCmd.AddCommand(tapCmd)
}

// tapRequest dials the socket, writes one request line, and returns the
// reply line.
func tapRequest(req map[string]any) (string, error) {
	conn, err := net.DialTimeout("unix", flagSocket, tapDialTimeout)
	if err != nil {
		return "", fmt.Errorf("dialing %s: %w", flagSocket, err)
	}
	defer conn.Close()

	enc, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	if _, err := conn.Write(append(enc, '\n')); err != nil {
		return "", err
	}

	_ = conn.SetReadDeadline(time.Now().Add(tapDialTimeout))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading reply: %w", err)
	}
	return line, nil
}

func checkTapReply(reply string) error {
	if e := gjson.Get(reply, "error"); e.Exists() {
		return fmt.Errorf("tap error: %s", e.String())
	}
	fmt.Println(gjson.Get(reply, "status").String())
	return nil
}
