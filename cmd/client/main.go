package main

import (
	"bufio"
	"chatwire/client"
	"chatwire/domain"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerURL string `env:"CHATWIRE_SERVER_URL,default=http://localhost:8080"`
	LogLevel  string `env:"LOG_LEVEL,default=error"`
	// Colours enables colorized output for better readability.
	Colours bool `env:"CHATWIRE_COLOURS,default=true"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run handles configuration loading, sign-in and the interactive loop.
// This pattern ensures clean resource management and error propagation.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	// A local .env file is a convenience, not a requirement.
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := client.NewSyncStore(config.ServerURL, log)
	sess := &session{
		store:    store,
		colours:  config.Colours,
		contacts: make(map[string]domain.Identity),
	}

	// 3. Sign in. The store keeps the session token for every later call.
	in := bufio.NewReader(os.Stdin)
	if err := sess.signIn(ctx, in); err != nil {
		return exitRuntime, err
	}

	// 4. Open the push connection so presence and messages stream in live.
	if err := store.Connect(ctx); err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerURL, err)
	}
	// Defer ensures the connection is closed even if the loop fails later.
	defer func() {
		log.Info("Closing connection...")
		store.Disconnect()
	}()

	fmt.Println(sess.paint(fmt.Sprintf(">>> Connected to %s! (Ctrl+C or /quit to leave)...",
		config.ServerURL), color.FgGreen))

	if err := sess.refreshContacts(ctx); err != nil {
		log.Warn("Could not load contacts", "error", err)
	}
	sess.printContacts()
	printHelp()

	// 5. Incoming pushes print from their own goroutine, the terminal stays
	// free for typing.
	go sess.follow(ctx)

	// 6. Command loop. Stdin is read on a side goroutine so Ctrl+C still
	// wins the select below.
	lines := make(chan string)
	go func() {
		defer close(lines)
		for {
			line, err := in.ReadString('\n')
			if err != nil {
				return
			}
			lines <- strings.TrimSpace(line)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping client...")
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			if line == "" {
				continue
			}
			if line == "/quit" {
				return exitOK, nil
			}
			if err := sess.handle(ctx, line); err != nil {
				fmt.Println(sess.paint(err.Error(), color.FgRed))
			}
		}
	}
}

// session couples the sync store with terminal rendering state.
type session struct {
	store   *client.SyncStore
	colours bool

	mu       sync.Mutex
	contacts map[string]domain.Identity // keyed by identity ID

	// Owned by the follow goroutine, rendering never races with itself.
	printed    int
	shownPeer  string
	lastOnline []string
}

// signIn loops until the server accepts a login or a registration.
func (s *session) signIn(ctx context.Context, in *bufio.Reader) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		choice, err := readLine(in, "login or register? [l/r]: ")
		if err != nil {
			return err
		}
		switch strings.ToLower(choice) {
		case "l", "login":
			email, err := readLine(in, "email: ")
			if err != nil {
				return err
			}
			password, err := readLine(in, "password: ")
			if err != nil {
				return err
			}
			if err := s.store.Login(ctx, email, password); err != nil {
				fmt.Println(s.paint(err.Error(), color.FgRed))
				continue
			}
		case "r", "register":
			name, err := readLine(in, "display name: ")
			if err != nil {
				return err
			}
			email, err := readLine(in, "email: ")
			if err != nil {
				return err
			}
			password, err := readLine(in, "password: ")
			if err != nil {
				return err
			}
			if err := s.store.Register(ctx, name, email, password); err != nil {
				fmt.Println(s.paint(err.Error(), color.FgRed))
				continue
			}
		default:
			continue
		}
		header := fmt.Sprintf("  ====== signed in as %s ======", shorten(s.store.SelfID()))
		fmt.Println(s.paint(header, color.BgBlack, color.FgGreen))
		return nil
	}
}

// handle runs one typed line. Bare text goes to the open conversation, slash
// commands steer the session.
func (s *session) handle(ctx context.Context, line string) error {
	if !strings.HasPrefix(line, "/") {
		peer := s.store.SelectedPeer()
		if peer == "" {
			return errors.New("no conversation open, use /chat <name>")
		}
		_, err := s.store.Send(ctx, peer, line, "")
		return err
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/help":
		printHelp()
	case "/contacts":
		if err := s.refreshContacts(ctx); err != nil {
			return err
		}
		s.printContacts()
	case "/chat":
		if arg == "" {
			return errors.New("usage: /chat <name>")
		}
		if _, err := s.store.SelectConversation(ctx, s.resolve(arg)); err != nil {
			return err
		}
	case "/image":
		if arg == "" {
			return errors.New("usage: /image <path>")
		}
		peer := s.store.SelectedPeer()
		if peer == "" {
			return errors.New("no conversation open, use /chat <name>")
		}
		ref, err := s.store.UploadImage(ctx, arg)
		if err != nil {
			return err
		}
		_, err = s.store.Send(ctx, peer, "", ref)
		return err
	case "/avatar":
		if arg == "" {
			return errors.New("usage: /avatar <path>")
		}
		ref, err := s.store.UploadImage(ctx, arg)
		if err != nil {
			return err
		}
		return s.store.SetAvatar(ctx, ref)
	case "/search":
		if arg == "" {
			return errors.New("usage: /search <query>")
		}
		hits, err := s.store.Search(ctx, s.store.SelectedPeer(), arg)
		if err != nil {
			return err
		}
		s.printHits(hits)
	default:
		return fmt.Errorf("unknown command %s", cmd)
	}
	return nil
}

// resolve maps a typed name to a contact ID. Unmatched input is passed
// through as-is so peers can always be reached by raw ID.
func (s *session) resolve(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.contacts {
		if strings.EqualFold(c.DisplayName, name) {
			return c.ID
		}
	}
	return name
}

func (s *session) refreshContacts(ctx context.Context) error {
	contacts, err := s.store.Contacts(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.contacts = lo.SliceToMap(contacts, func(c domain.Identity) (string, domain.Identity) {
		return c.ID, c
	})
	s.mu.Unlock()
	return nil
}

// printContacts renders the contact list as a table.
func (s *session) printContacts() {
	s.mu.Lock()
	contacts := lo.Values(s.contacts)
	s.mu.Unlock()
	if len(contacts) == 0 {
		fmt.Println("No contacts yet. They appear once other users register.")
		return
	}
	sort.Slice(contacts, func(i, j int) bool {
		return contacts[i].DisplayName < contacts[j].DisplayName
	})
	online := s.store.Online()

	table := newTable()
	table.SetHeader([]string{"Contact", "Status", "Avatar", "Id"})
	for _, c := range contacts {
		status := "offline"
		if lo.Contains(online, c.ID) {
			status = s.paint("online", color.FgGreen)
		}
		table.Append([]string{c.DisplayName, status, c.AvatarRef, shorten(c.ID)})
	}
	table.Render()
}

// printHits renders search results, best match first as the server returns
// them.
func (s *session) printHits(hits []client.SearchHit) {
	if len(hits) == 0 {
		fmt.Println("No matches.")
		return
	}
	table := newTable()
	table.SetHeader([]string{"From", "Text", "Score"})
	for _, h := range hits {
		table.Append([]string{s.nameOf(h.SenderID), h.Text, fmt.Sprintf("%.2f", h.Score)})
	}
	table.Render()
}

// follow prints transcript and presence changes as they stream in. It owns
// the rendering counters, so no lock covers them.
func (s *session) follow(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.store.Updates():
			s.render()
		}
	}
}

func (s *session) render() {
	if peer := s.store.SelectedPeer(); peer != s.shownPeer {
		s.shownPeer = peer
		s.printed = 0
		header := fmt.Sprintf("  ====== %s ======", s.nameOf(peer))
		fmt.Println(s.paint(header, color.BgBlack, color.FgGreen))
	}

	transcript := s.store.Transcript()
	if len(transcript) < s.printed {
		s.printed = 0
	}
	for _, msg := range transcript[s.printed:] {
		fmt.Println(s.formatMessage(msg))
	}
	s.printed = len(transcript)

	s.reportPresence()
}

// reportPresence prints joins and leaves since the previous frame.
func (s *session) reportPresence() {
	online := s.store.Online()
	self := s.store.SelfID()
	for _, id := range online {
		if id != self && !lo.Contains(s.lastOnline, id) {
			fmt.Println(s.paint(fmt.Sprintf("* %s is online", s.nameOf(id)), color.FgYellow))
		}
	}
	for _, id := range s.lastOnline {
		if id != self && !lo.Contains(online, id) {
			fmt.Println(s.paint(fmt.Sprintf("* %s went offline", s.nameOf(id)), color.FgYellow))
		}
	}
	s.lastOnline = online
}

// formatMessage lays out one transcript line, own messages in green.
func (s *session) formatMessage(msg domain.Message) string {
	body := msg.Text
	if msg.ImageRef != "" {
		if body != "" {
			body += " "
		}
		body += fmt.Sprintf("[image %s]", msg.ImageRef)
	}
	line := fmt.Sprintf("[%s] %s: %s",
		msg.CreatedAt.Format(time.TimeOnly), s.nameOf(msg.SenderID), body)
	if msg.SenderID == s.store.SelfID() {
		return s.paint(line, color.FgGreen)
	}
	return s.paint(line, color.FgCyan)
}

// nameOf prefers the display name, falling back to a shortened ID for peers
// missing from the contact cache.
func (s *session) nameOf(id string) string {
	if id == s.store.SelfID() {
		return "me"
	}
	s.mu.Lock()
	c, ok := s.contacts[id]
	s.mu.Unlock()
	if ok {
		return c.DisplayName
	}
	return shorten(id)
}

// paint applies terminal colours when enabled.
func (s *session) paint(text string, styles ...color.Color) string {
	if !s.colours {
		return text
	}
	return color.New(styles...).Render(text)
}

// newTable configures a borderless table that reads well in a terminal log.
func newTable() *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func readLine(in *bufio.Reader, prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := in.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func shorten(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func printHelp() {
	fmt.Println(`Commands:
  /contacts          refresh and list contacts
  /chat <name>       open the conversation with a contact
  /search <query>    full-text search, scoped to the open conversation
  /image <path>      send a local image to the open conversation
  /avatar <path>     upload a local image and make it your avatar
  /help              show this help
  /quit              leave
Anything else is sent as a message to the open conversation.`)
}
