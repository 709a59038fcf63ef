package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"scrapyard.dev/internal/protocol"
	"scrapyard.dev/internal/vessel"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type clientFlags struct {
	url     string
	name    string
	funds   float64
	factor  float64
	slot    string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	var f clientFlags
	root := &cobra.Command{
		Use:           "scrapyard-client",
		Short:         "Send one ledger request to a running server and print the reply",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&f.url, "url", "ws://127.0.0.1:8080/v1/ws", "ws url")
	pf.StringVar(&f.name, "name", "scrapyard-client", "client name sent in HELLO")
	pf.Float64Var(&f.funds, "funds", 0, "treasury balance to report in HELLO")
	pf.DurationVar(&f.timeout, "timeout", 10*time.Second, "reply timeout")

	vesselCmd := func(use, typ string) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <vessel.json>",
			Short: "Send " + typ + " for a vessel snapshot file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := readVessel(args[0])
				if err != nil {
					return err
				}
				msg := map[string]any{"type": typ, "vessel": v}
				if typ == protocol.TypeRecover && f.factor > 0 {
					msg["factor"] = f.factor
				}
				return roundTrip(cmd, f, msg)
			},
		}
	}
	recoverCmd := vesselCmd("recover", protocol.TypeRecover)
	recoverCmd.Flags().Float64Var(&f.factor, "factor", 0, "recovery factor in (0,1]; 0 derives it from the landing site")

	saveCmd := &cobra.Command{
		Use:   "save",
		Short: "Ask the server to encode and persist its ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return roundTrip(cmd, f, map[string]any{"type": protocol.TypeSave, "slot": f.slot})
		},
	}
	saveCmd.Flags().StringVar(&f.slot, "slot", "default", "save slot")

	root.AddCommand(
		vesselCmd("rollout", protocol.TypeRollout),
		recoverCmd,
		vesselCmd("preview", protocol.TypePreview),
		saveCmd,
	)
	return root
}

func readVessel(path string) (*vessel.Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var v vessel.Snapshot
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &v, nil
}

func roundTrip(cmd *cobra.Command, f clientFlags, msg map[string]any) error {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	conn, _, err := websocket.DefaultDialer.Dial(f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(f.timeout))

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      f.name,
		Funds:           f.funds,
		MaxQueue:        8,
	}
	if err := conn.WriteJSON(hello); err != nil {
		return fmt.Errorf("send HELLO: %w", err)
	}
	var welcome protocol.WelcomeMsg
	if err := readTyped(conn, protocol.TypeWelcome, &welcome); err != nil {
		return err
	}
	logger.Info("WELCOME",
		zap.String("session", welcome.SessionID),
		zap.Bool("recover_resources", welcome.RecoverResources),
		zap.Int("parts", welcome.Catalogs.Parts.Count),
	)

	reqID := uuid.NewString()
	msg["protocol_version"] = protocol.Version
	msg["req_id"] = reqID
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send %v: %w", msg["type"], err)
	}
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		base, err := protocol.DecodeBase(raw)
		if err != nil || base.ReqID != reqID {
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(raw))
		if base.Type == protocol.TypeError {
			return fmt.Errorf("server rejected request")
		}
		return nil
	}
}

func readTyped(conn *websocket.Conn, typ string, out any) error {
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read %s: %w", typ, err)
	}
	base, err := protocol.DecodeBase(raw)
	if err != nil {
		return err
	}
	if base.Type != typ {
		return fmt.Errorf("expected %s, got %s: %s", typ, base.Type, raw)
	}
	return json.Unmarshal(raw, out)
}
