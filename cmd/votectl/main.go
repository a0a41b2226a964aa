package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hilthontt/votehub/internal/client"
	"github.com/hilthontt/votehub/internal/domain"
	"github.com/hilthontt/votehub/internal/infrastructure/ws"
	"github.com/urfave/cli/v3"
)

const defaultServer = "ws://localhost:8080/api/ws"

var (
	nameFlag = &cli.StringFlag{
		Name:     "name",
		Aliases:  []string{"n"},
		Usage:    "display name in the room",
		Required: true,
		Sources:  cli.EnvVars("VOTEHUB_NAME"),
	}
	tokenFlag = &cli.StringFlag{
		Name:    "token",
		Usage:   "creator token returned by create",
		Sources: cli.EnvVars("VOTEHUB_CREATOR_TOKEN"),
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "votectl",
		Usage: "drive a votehub room from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Value:   defaultServer,
				Usage:   "websocket endpoint of the votehub server",
				Sources: cli.EnvVars("VOTEHUB_WS_URL"),
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 10 * time.Second,
				Usage: "how long to wait for the server on one-shot commands",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "create a room and print its code and creator token",
				Flags: []cli.Flag{
					nameFlag,
					&cli.StringFlag{Name: "topic", Aliases: []string{"t"}, Usage: "what the room votes on"},
					&cli.IntFlag{Name: "timer", Usage: "auto-stop voting after this many seconds, 0 for none"},
				},
				Action: createAction,
			},
			{
				Name:      "watch",
				Usage:     "join a room and stream its state until interrupted",
				ArgsUsage: "CODE",
				Flags:     []cli.Flag{nameFlag, tokenFlag},
				Action:    watchAction,
			},
			{
				Name:      "vote",
				Usage:     "vote for an option",
				ArgsUsage: "CODE OPTION",
				Flags:     []cli.Flag{nameFlag},
				Action: oneShot(2, func(c *client.Client, name string, args []string) (func(*domain.Room) bool, error) {
					option := args[1]
					return func(r *domain.Room) bool {
						opt := r.FindOption(option)
						return (opt != nil && opt.HasVoter(name)) || !r.IsVotingActive
					}, c.Vote(option)
				}),
			},
			{
				Name:      "option",
				Usage:     "add an option to the ballot",
				ArgsUsage: "CODE NAME",
				Flags:     []cli.Flag{nameFlag},
				Action: oneShot(2, func(c *client.Client, _ string, args []string) (func(*domain.Room) bool, error) {
					name := strings.TrimSpace(args[1])
					return func(r *domain.Room) bool {
						return r.FindOption(name) != nil || !r.IsVotingActive
					}, c.AddOption(name)
				}),
			},
			{
				Name:      "say",
				Usage:     "send a chat message",
				ArgsUsage: "CODE MESSAGE",
				Flags:     []cli.Flag{nameFlag},
				Action: oneShot(2, func(c *client.Client, _ string, args []string) (func(*domain.Room) bool, error) {
					return nil, c.SendText(strings.Join(args[1:], " "))
				}),
			},
			{
				Name:      "stop",
				Usage:     "close voting and print the winner (creator only)",
				ArgsUsage: "CODE",
				Flags:     []cli.Flag{nameFlag, tokenFlag},
				Action: oneShot(1, func(c *client.Client, _ string, _ []string) (func(*domain.Room) bool, error) {
					return func(r *domain.Room) bool { return !r.IsVotingActive }, c.StopVoting()
				}),
			},
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "votectl:", err)
		os.Exit(1)
	}
}

func createAction(ctx context.Context, cmd *cli.Command) error {
	ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	c, err := client.Dial(ctx, cmd.String("server"), nil)
	if err != nil {
		return err
	}
	defer c.Close()

	created, err := c.CreateRoom(ctx, cmd.String("name"), cmd.String("topic"), cmd.Int("timer"))
	if err != nil {
		return err
	}

	fmt.Printf("room:  %s\ntoken: %s\n", created.RoomCode, created.CreatorToken)
	return nil
}

func watchAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() < 1 {
		return cli.Exit("usage: votectl watch CODE", 2)
	}

	c, err := client.Dial(ctx, cmd.String("server"), nil)
	if err != nil {
		return err
	}
	defer c.Close()

	room, err := c.Join(ctx, cmd.Args().First(), cmd.String("name"), cmd.String("token"))
	if err != nil {
		return err
	}
	printRoom(room)

	for {
		ev, err := c.Next(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return err
		}

		switch {
		case ev.Err() != nil:
			fmt.Fprintln(os.Stderr, "error:", ev.Err())
		case ev.Type == ws.MessageReceivedEvent:
			fmt.Printf("> %s\n", ev.Data)
		default:
			if room, err := ev.Room(); err == nil {
				printRoom(room)
			}
		}
	}
}

// oneShot joins the room named by the first argument, runs do and waits
// until the returned predicate sees a matching state. A nil predicate
// returns right after sending.
func oneShot(nargs int, do func(c *client.Client, name string, args []string) (func(*domain.Room) bool, error)) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		args := cmd.Args().Slice()
		if len(args) < nargs {
			return cli.Exit(fmt.Sprintf("usage: votectl %s %s", cmd.Name, cmd.ArgsUsage), 2)
		}

		ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
		defer cancel()

		c, err := client.Dial(ctx, cmd.String("server"), nil)
		if err != nil {
			return err
		}
		defer c.Close()

		name := strings.TrimSpace(cmd.String("name"))
		if _, err := c.Join(ctx, args[0], name, cmd.String("token")); err != nil {
			return err
		}

		done, err := do(c, name, args)
		if err != nil || done == nil {
			return err
		}

		room, err := c.WaitForRoom(ctx, done)
		if err != nil {
			return err
		}
		printRoom(room)
		return nil
	}
}

func printRoom(r *domain.Room) {
	status := "voting open"
	if !r.IsVotingActive {
		status = "winner: " + r.Winner
	} else if r.VotingEndsAt != nil {
		status += fmt.Sprintf(" (ends in %s)", time.Until(*r.VotingEndsAt).Round(time.Second))
	}

	fmt.Printf("[%s] %s  v%d  %s\n", r.Code, r.Topic, r.Version, status)
	for _, o := range r.Options {
		fmt.Printf("  %-20s %3d  %s\n", o.Name, o.Votes, strings.Join(o.Voters, ", "))
	}
	fmt.Printf("  users: %s\n", strings.Join(r.Users, ", "))
	if len(r.TypingUsers) > 0 {
		fmt.Printf("  typing: %s\n", strings.Join(r.TypingUsers, ", "))
	}
}
