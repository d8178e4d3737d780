package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shinewash/teamchat/internal/client"
)

var (
	serverURL string
	email     string
	password  string
)

func main() {
	root := &cobra.Command{
		Use:   "teamchat",
		Short: "Terminal client for the worker team chat",
		RunE:  run,
	}
	root.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "teamchatd base URL")
	root.Flags().StringVar(&email, "email", "", "account email")
	root.Flags().StringVar(&password, "password", "", "account password")
	root.MarkFlagRequired("email")
	root.MarkFlagRequired("password")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	token, me, err := client.Login(ctx, nil, serverURL, email, password)
	if err != nil {
		return err
	}

	sess := client.NewSession(client.Config{
		BaseURL:  serverURL,
		Token:    token,
		UserType: me.Role,
		OnMessage: func(m client.Message) {
			if m.Sender.ID == me.ID {
				return // our own echo; already on screen
			}
			printMessage(m)
		},
		OnNotice: func(n client.Notice) {
			switch n.Kind {
			case client.NoticeAuthError:
				fmt.Printf("! authentication failed: %s\n", n.Message)
			case client.NoticeDisconnected:
				fmt.Printf("! %s\n", n.Message)
			}
			os.Exit(1)
		},
	})
	if err := sess.Open(ctx); err != nil {
		return err
	}
	defer sess.Close()

	fmt.Printf("connected to %q as %s (%s)\n", sess.ChatName(), me.Name, me.Role)
	for _, m := range sess.Messages() {
		printMessage(m)
	}
	fmt.Println(`commands: /who /typing /history /upload <path> /read <id> /quit`)

	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := command(ctx, sess, line); quit {
				return nil
			}
			continue
		}
		sess.TypingSignal()
		if err := sess.SendText(line); err != nil {
			fmt.Printf("! send failed: %v\n", err)
		}
	}
	return sc.Err()
}

func command(ctx context.Context, sess *client.Session, line string) (quit bool) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit":
		return true
	case "/who":
		online := sess.Online()
		fmt.Printf("%d online:\n", len(online))
		for _, u := range online {
			fmt.Printf("  %s (%s)\n", u.Name, u.Role)
		}
	case "/typing":
		names := sess.TypingNames()
		if len(names) == 0 {
			fmt.Println("nobody is typing")
		} else {
			fmt.Printf("typing: %s\n", strings.Join(names, ", "))
		}
	case "/history":
		for _, m := range sess.Messages() {
			printMessage(m)
		}
	case "/upload":
		if len(fields) < 2 {
			fmt.Println("usage: /upload <path>")
			return
		}
		path := fields[1]
		f, err := os.Open(path)
		if err != nil {
			fmt.Printf("! %v\n", err)
			return
		}
		defer f.Close()
		st, err := f.Stat()
		if err != nil {
			fmt.Printf("! %v\n", err)
			return
		}
		if err := sess.SendAttachment(ctx, st.Name(), st.Size(), f); err != nil {
			fmt.Printf("! upload failed: %v\n", err)
			return
		}
		fmt.Printf("uploaded %s\n", st.Name())
	case "/read":
		if len(fields) < 2 {
			fmt.Println("usage: /read <message id>")
			return
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			fmt.Println("usage: /read <message id>")
			return
		}
		if err := sess.MarkRead(id); err != nil {
			fmt.Printf("! %v\n", err)
		}
	default:
		fmt.Printf("unknown command %s\n", fields[0])
	}
	return false
}

func printMessage(m client.Message) {
	when := m.SentAt.Local().Format("15:04")
	switch m.Kind {
	case client.KindImage, client.KindFile:
		name := m.Content
		if m.Attachment != nil {
			name = m.Attachment.Name
			fmt.Printf("[%s] %s sent %s (%s)\n", when, m.Sender.Name, name, m.Attachment.URL)
			return
		}
		fmt.Printf("[%s] %s sent %s\n", when, m.Sender.Name, name)
	default:
		marker := ""
		if m.Pending() {
			marker = " (sending...)"
		}
		fmt.Printf("[%s] %s: %s%s\n", when, m.Sender.Name, m.Content, marker)
	}
}
