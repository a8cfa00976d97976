package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/SoCo-NP/SoCo/internal/client"
	"github.com/SoCo-NP/SoCo/pkg/protocol"
	"github.com/SoCo-NP/SoCo/pkg/types"
)

var (
	ErrConnectionLost = errors.New("connection to relay lost")
	ErrNoAnswer       = errors.New("no compile lock answer from relay")
	ErrNoWelcome      = errors.New("relay did not welcome us")
)

// --- Global Command Variables ---
var (
	dialTimeout   time.Duration
	answerTimeout time.Duration
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "soco-cli",
		Short: "Headless client for the SoCo relay",
		Long: `soco-cli joins a SoCo relay without an editor. It can print the
classroom traffic, send a question to the professors or take a compile lock.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().DurationVar(&dialTimeout, "dial-timeout", 5*time.Second, "timeout for connecting to the relay")

	watchCmd := &cobra.Command{
		Use:   "watch <host> <port> <nick> [role]",
		Short: "Join and print every message until interrupted",
		Args:  cobra.RangeArgs(3, 4),
		RunE:  runWatch,
	}

	askCmd := &cobra.Command{
		Use:   "ask <host> <port> <nick> <question...>",
		Short: "Send a question to the professors and exit",
		Args:  cobra.MinimumNArgs(4),
		RunE:  runAsk,
	}

	compileCmd := &cobra.Command{
		Use:   "compile <host> <port> <nick> <path>",
		Short: "Request the compile lock for a path, report the outcome and release it",
		Args:  cobra.ExactArgs(4),
		RunE:  runCompile,
	}
	root.PersistentFlags().DurationVar(&answerTimeout, "timeout", 5*time.Second, "how long to wait for the relay's answers")

	root.AddCommand(watchCmd, askCmd, compileCmd)
	return root
}

// target is the relay address and identity shared by every subcommand
type target struct {
	host string
	port int
	nick string
}

func parseTarget(args []string) (target, error) {
	port, err := strconv.Atoi(args[1])
	if err != nil || port < 1 || port > 65535 {
		return target{}, fmt.Errorf("invalid port %q", args[1])
	}
	if err := types.ValidateNickname(args[2]); err != nil {
		return target{}, err
	}
	return target{host: args[0], port: port, nick: args[2]}, nil
}

// connect joins the relay; the returned channel closes when the server drops us
func connect(ctx context.Context, tg target, role types.Role, h client.Handler) (*client.Session, <-chan struct{}, error) {
	lost := make(chan struct{})
	var once sync.Once
	s, err := client.New(h, client.Options{
		DialTimeout:  dialTimeout,
		OnDisconnect: func(error) { once.Do(func() { close(lost) }) },
	})
	if err != nil {
		return nil, nil, err
	}
	if err := s.Connect(ctx, tg.host, tg.port, tg.nick, role); err != nil {
		return nil, nil, err
	}
	return s, lost, nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	tg, err := parseTarget(args)
	if err != nil {
		return err
	}
	role := types.DefaultRole
	if len(args) == 4 {
		role = types.ParseRole(args[3])
	}

	out := cmd.OutOrStdout()
	s, lost, err := connect(cmd.Context(), tg, role, client.HandlerFunc(func(msg protocol.Message) {
		fmt.Fprintln(out, formatMessage(msg))
	}))
	if err != nil {
		return err
	}
	defer s.Disconnect()

	select {
	case <-cmd.Context().Done():
		return nil
	case <-lost:
		return ErrConnectionLost
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	tg, err := parseTarget(args)
	if err != nil {
		return err
	}
	question := strings.Join(args[3:], " ")

	welcome := make(chan protocol.Message, 1)
	s, lost, err := connect(cmd.Context(), tg, types.RoleStudent, client.HandlerFunc(func(msg protocol.Message) {
		if _, ok := msg.(protocol.Info); ok {
			offer(welcome, msg)
		}
	}))
	if err != nil {
		return err
	}
	defer s.Disconnect()

	// the welcome proves the relay registered us, so the question is not
	// read from an anonymous connection
	select {
	case <-welcome:
	case <-lost:
		return ErrConnectionLost
	case <-time.After(answerTimeout):
		return ErrNoWelcome
	case <-cmd.Context().Done():
		return cmd.Context().Err()
	}

	if err := s.SendQuestion(question); err != nil {
		return fmt.Errorf("send question: %w", err)
	}
	if err := leave(cmd.Context(), s); err != nil {
		return fmt.Errorf("send question: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Question sent as %s\n", tg.nick)
	return nil
}

// leave half-closes so the relay reads everything sent before the socket goes
// away; a plain close with unread input would reset the connection instead
func leave(ctx context.Context, s *client.Session) error {
	ctx, cancel := context.WithTimeout(ctx, answerTimeout)
	defer cancel()
	return s.Leave(ctx)
}

func runCompile(cmd *cobra.Command, args []string) error {
	tg, err := parseTarget(args)
	if err != nil {
		return err
	}
	path := types.VirtualPath(args[3])
	if err := path.Validate(); err != nil {
		return err
	}

	// grants are broadcast, so only the one naming us for this path counts
	answers := make(chan protocol.Message, 1)
	handler := client.HandlerFunc(func(msg protocol.Message) {
		switch m := msg.(type) {
		case protocol.CompileGranted:
			if m.Path == path && m.Nickname == tg.nick {
				offer(answers, m)
			}
		case protocol.CompileDenied:
			if m.Path == path {
				offer(answers, m)
			}
		}
	})

	s, lost, err := connect(cmd.Context(), tg, types.RoleStudent, handler)
	if err != nil {
		return err
	}
	defer s.Disconnect()

	if err := s.RequestCompile(path); err != nil {
		return fmt.Errorf("request compile lock: %w", err)
	}

	out := cmd.OutOrStdout()
	select {
	case msg := <-answers:
		if denied, ok := msg.(protocol.CompileDenied); ok {
			fmt.Fprintf(out, "Compile lock for %s denied: held by %s\n", path, denied.Holder)
			return nil
		}
		fmt.Fprintf(out, "Compile lock for %s granted\n", path)
		if err := s.ReleaseCompile(path); err != nil {
			return fmt.Errorf("release compile lock: %w", err)
		}
		if err := leave(cmd.Context(), s); err != nil {
			return fmt.Errorf("release compile lock: %w", err)
		}
		fmt.Fprintf(out, "Compile lock for %s released\n", path)
		return nil
	case <-lost:
		return ErrConnectionLost
	case <-time.After(answerTimeout):
		return ErrNoAnswer
	case <-cmd.Context().Done():
		return cmd.Context().Err()
	}
}

func offer(ch chan<- protocol.Message, m protocol.Message) {
	select {
	case ch <- m:
	default:
	}
}

// formatMessage renders one message as a terminal line
func formatMessage(msg protocol.Message) string {
	switch m := msg.(type) {
	case protocol.Info:
		return "[info] " + m.Text
	case protocol.RoleInfo:
		return fmt.Sprintf("[role] %s is %s", m.Nickname, m.Role)
	case protocol.Edit:
		return fmt.Sprintf("[edit] %s (%d bytes)", m.Path, len(m.Text))
	case protocol.Cursor:
		return fmt.Sprintf("[cursor] %s %s dot=%d mark=%d", m.Nickname, m.Path, m.Dot, m.Mark)
	case protocol.Viewport:
		return fmt.Sprintf("[viewport] %s line %d", m.Path, m.Line)
	case protocol.Laser:
		if m.Hidden() {
			return fmt.Sprintf("[laser] %s hidden", m.Path)
		}
		return fmt.Sprintf("[laser] %s x=%d y=%d", m.Path, m.X, m.Y)
	case protocol.Question:
		return fmt.Sprintf("[question] %s: %s", m.Student, m.Text)
	case protocol.CompileGranted:
		return fmt.Sprintf("[compile] %s locked by %s", m.Path, m.Nickname)
	case protocol.CompileDenied:
		return fmt.Sprintf("[compile] %s denied, held by %s", m.Path, m.Holder)
	case protocol.CompileRelease:
		return fmt.Sprintf("[compile] %s released by %s", m.Path, m.Nickname)
	case protocol.CompileOut:
		return fmt.Sprintf("[compile] %s> %s", m.Nickname, m.Line)
	case protocol.CompileEnd:
		return fmt.Sprintf("[compile] %s finished %s with exit code %d", m.Nickname, m.Path, m.ExitCode)
	default:
		line, err := protocol.Encode(msg)
		if err != nil {
			return fmt.Sprintf("[%s]", msg.Tag())
		}
		return line
	}
}
