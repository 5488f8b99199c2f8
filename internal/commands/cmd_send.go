package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/herald/internal/auth"
	"github.com/colonyops/herald/internal/core/notify"
	"github.com/colonyops/herald/internal/core/styles"
	"github.com/colonyops/herald/internal/printer"
	"github.com/colonyops/herald/internal/server"
	"github.com/colonyops/herald/pkg/iojson"
)

type SendCmd struct {
	flags *Flags

	to          string
	message     string
	typ         string
	description string
	id          string
	timeout     time.Duration
	jsonOut     bool
	file        iojson.FileReader[server.PublishRequest]

	client *http.Client
}

// NewSendCmd creates a new send command
func NewSendCmd(flags *Flags) *SendCmd {
	return &SendCmd{flags: flags}
}

// Register adds the send command to the application
func (cmd *SendCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "send",
		Usage:     "Publish a notification through the events server",
		UsageText: "herald send [options] [message]",
		Description: `Publishes one event to the server's /api/events endpoint.

The message may be given with --message or as positional arguments. When it
is omitted, an interactive form prompts for the event fields.

A complete request body ({"to": ..., "payload": {...}}) can be read with
--file; pass '-' to read it from stdin. Extra payload fields are delivered
as is.

An empty --to broadcasts the event to every user.`,
		Flags: []cli.Flag{
			cmd.file.Flag(),
			&cli.StringFlag{
				Name:        "to",
				Usage:       "recipient user id (empty broadcasts)",
				Destination: &cmd.to,
			},
			&cli.StringFlag{
				Name:        "message",
				Aliases:     []string{"m"},
				Usage:       "notification message",
				Destination: &cmd.message,
			},
			&cli.StringFlag{
				Name:        "type",
				Aliases:     []string{"t"},
				Usage:       "notification type (" + typeList() + ")",
				Value:       string(notify.TypeInfo),
				Destination: &cmd.typ,
			},
			&cli.StringFlag{
				Name:        "description",
				Aliases:     []string{"d"},
				Usage:       "longer markdown description",
				Destination: &cmd.description,
			},
			&cli.StringFlag{
				Name:        "id",
				Usage:       "event id (generated by the server when empty)",
				Destination: &cmd.id,
			},
			&cli.DurationFlag{
				Name:        "timeout",
				Usage:       "request timeout",
				Value:       10 * time.Second,
				Destination: &cmd.timeout,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print the server response as JSON",
				Destination: &cmd.jsonOut,
			},
		},
		Action: cmd.run,
	})

	return app
}

func typeList() string {
	types := notify.Types()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

func (cmd *SendCmd) run(ctx context.Context, c *cli.Command) error {
	req, err := cmd.request(c)
	if err != nil {
		return err
	}

	token, err := auth.LoadToken(cmd.flags.Token, cmd.flags.Config.TokenFile())
	if err != nil {
		return err
	}
	if token == "" {
		return auth.ErrNoCredential
	}

	resp, err := cmd.publish(ctx, token, req)
	if err != nil {
		if cmd.jsonOut {
			_ = iojson.WriteError(c.Root().ErrWriter, err.Error(), nil)
			return cli.Exit("", 1)
		}
		return err
	}

	if cmd.jsonOut {
		return iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, resp)
	}

	printer.Ctx(ctx).Successf("published %s to %s (%d connected)", resp.Event.ID, resp.Recipient, resp.Delivered)
	return nil
}

// request assembles the publish body from --file, flags or the form.
func (cmd *SendCmd) request(c *cli.Command) (server.PublishRequest, error) {
	if cmd.file.Set() {
		req, err := cmd.file.Read()
		if err != nil {
			return req, err
		}
		if cmd.to != "" {
			req.To = cmd.to
		}
		if req.Payload.Type == "" {
			req.Payload.Type = string(notify.TypeInfo)
		}
		if err := validateMessage(req.Payload.Message); err != nil {
			return req, err
		}
		return req, validateType(req.Payload.Type)
	}

	if cmd.message == "" && c.Args().Present() {
		cmd.message = strings.Join(c.Args().Slice(), " ")
	}
	if cmd.message == "" {
		if err := cmd.runForm(); err != nil {
			return server.PublishRequest{}, err
		}
	}

	if err := validateType(cmd.typ); err != nil {
		return server.PublishRequest{}, err
	}

	return server.PublishRequest{
		To: cmd.to,
		Payload: notify.Payload{
			ID:          cmd.id,
			Message:     cmd.message,
			Type:        cmd.typ,
			Description: cmd.description,
		},
	}, nil
}

func (cmd *SendCmd) runForm() error {
	options := make([]huh.Option[string], 0, len(notify.Types()))
	for _, t := range notify.Types() {
		options = append(options, huh.NewOption(string(t), string(t)))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Message").
				Description("Shown in the toast and the panel").
				Validate(validateMessage).
				Value(&cmd.message),
			huh.NewSelect[string]().
				Title("Type").
				Options(options...).
				Value(&cmd.typ),
			huh.NewText().
				Title("Description").
				Description("Optional markdown shown in the detail pane").
				Value(&cmd.description),
			huh.NewInput().
				Title("Recipient").
				Description("User id; leave empty to broadcast").
				Value(&cmd.to),
		),
	).WithTheme(styles.FormTheme()).Run()
}

func validateType(typ string) error {
	if !notify.Type(typ).IsValid() {
		return fmt.Errorf("unknown type %q, expected one of: %s", typ, typeList())
	}
	return nil
}

func validateMessage(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("message is required")
	}
	return nil
}

func (cmd *SendCmd) publish(ctx context.Context, token string, body server.PublishRequest) (*server.PublishResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}

	endpoint := strings.TrimSuffix(cmd.flags.Config.Server.URL, "/") + server.EventsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	client := cmd.client
	if client == nil {
		client = &http.Client{Timeout: cmd.timeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("publish event: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("publish event: %s (status %d)", apiErr.Error, resp.StatusCode)
	}

	var out server.PublishResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}
