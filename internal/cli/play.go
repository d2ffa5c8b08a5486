package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

// playOptions selects how the play command enters a match
type playOptions struct {
	Username string
	Variant  string
	Create   bool
	Join     string
	Rejoin   string
	Until    []string
}

func newPlayCmd() *cobra.Command {
	var opts playOptions

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Join a match over the websocket and print its events",
		Long: `Connect to the server's websocket endpoint, register, and enter a match.

By default the player joins matchmaking for the chosen variant. Use --create to
open a room and print its code, --join to take a seat in a room, or --rejoin to
reclaim a seat after losing a connection.

Events are printed as they arrive until one of the --until events is seen.
Press Ctrl+C to disconnect.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Username == "" {
				return fmt.Errorf("--username is required")
			}
			wsURL, err := client.WebSocketURL()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return runPlay(ctx, wsURL, opts, NewOutput(cfg.Output, cmd.OutOrStdout()))
		},
	}

	cmd.Flags().StringVarP(&opts.Username, "username", "u", "", "Username to register as")
	cmd.Flags().StringVar(&opts.Variant, "variant", "classic", "Game variant: classic, chaos, speedrun")
	cmd.Flags().BoolVar(&opts.Create, "create", false, "Create a private room instead of matchmaking")
	cmd.Flags().StringVar(&opts.Join, "join", "", "Join the room with this code")
	cmd.Flags().StringVar(&opts.Rejoin, "rejoin", "", "Reclaim a seat in the room with this code")
	cmd.Flags().StringSliceVar(&opts.Until, "until", []string{"match-complete", "room-closed"}, "Stop after any of these events")
	cmd.MarkFlagsMutuallyExclusive("create", "join", "rejoin")

	return cmd
}

func runPlay(ctx context.Context, wsURL string, opts playOptions, out *Output) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	// Unblock pending reads when the context ends
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	p := &playSession{conn: conn, out: out, seen: make(map[string]bool)}

	if _, err := p.request("register", map[string]any{"username": opts.Username}); err != nil {
		return p.orCancelled(ctx, err)
	}

	var result json.RawMessage
	switch {
	case opts.Create:
		result, err = p.request("create-room", map[string]any{"variant": opts.Variant})
	case opts.Join != "":
		result, err = p.request("join-room", map[string]any{"roomCode": opts.Join})
	case opts.Rejoin != "":
		result, err = p.request("rejoin-room", map[string]any{"roomCode": opts.Rejoin})
	default:
		result, err = p.request("find-match", map[string]any{"variant": opts.Variant})
	}
	if err != nil {
		return p.orCancelled(ctx, err)
	}
	out.Print(Event{Type: "joined", Payload: result})

	until := make(map[string]bool, len(opts.Until))
	for _, t := range opts.Until {
		until[strings.TrimSpace(t)] = true
	}
	for t := range p.seen {
		if until[t] {
			return nil
		}
	}

	for {
		ev, err := p.read()
		if err != nil {
			return p.orCancelled(ctx, err)
		}
		out.Print(ev)
		if until[ev.Type] {
			return nil
		}
	}
}

// playSession tracks request IDs on one websocket connection
type playSession struct {
	conn   *websocket.Conn
	out    *Output
	nextID int
	// seen holds the event types printed while waiting for acks
	seen map[string]bool
}

type ackPayload struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  *APIError       `json:"error"`
}

// request sends one message and waits for its ack. Events that arrive first
// are printed.
func (p *playSession) request(msgType string, payload any) (json.RawMessage, error) {
	p.nextID++
	id := strconv.Itoa(p.nextID)
	msg := map[string]any{"type": msgType, "id": p.nextID, "payload": payload}
	if err := p.conn.WriteJSON(msg); err != nil {
		return nil, fmt.Errorf("send %s: %w", msgType, err)
	}

	for {
		ev, err := p.read()
		if err != nil {
			return nil, err
		}
		if ev.Type != "ack" || string(ev.ID) != id {
			p.out.Print(ev)
			p.seen[ev.Type] = true
			continue
		}

		var ack ackPayload
		if err := json.Unmarshal(ev.Payload, &ack); err != nil {
			return nil, fmt.Errorf("malformed ack: %w", err)
		}
		if !ack.OK {
			if ack.Error != nil {
				return nil, fmt.Errorf("%s failed: %s", msgType, ack.Error.String())
			}
			return nil, fmt.Errorf("%s failed", msgType)
		}
		return ack.Result, nil
	}
}

func (p *playSession) read() (Event, error) {
	var ev Event
	if err := p.conn.ReadJSON(&ev); err != nil {
		return Event{}, fmt.Errorf("read: %w", err)
	}
	return ev, nil
}

// orCancelled hides the read error caused by closing the connection on cancel
func (p *playSession) orCancelled(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		p.out.PrintMessage("Disconnected")
		return nil
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return fmt.Errorf("server closed the connection: %w", err)
	}
	return err
}
