package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Jaypalsingh1/sovereignshare/internal/config"
	"github.com/Jaypalsingh1/sovereignshare/internal/files"
	"github.com/Jaypalsingh1/sovereignshare/internal/identity"
	"github.com/Jaypalsingh1/sovereignshare/internal/session"
	"github.com/Jaypalsingh1/sovereignshare/internal/signaling"
	"github.com/Jaypalsingh1/sovereignshare/internal/transfer"
	"github.com/Jaypalsingh1/sovereignshare/internal/ui"
)

const registerTimeout = 10 * time.Second

// connectionContext bundles everything a command needs once the relay
// connection is up.
type connectionContext struct {
	Client  *signaling.Client
	Handler *signaling.Handler
	Machine *session.Machine
	Config  *config.Config
	Local   string
}

func loadConfig(opts config.Options) (*config.Config, error) {
	return config.Load(opts)
}

func newConnectionContext(cfg *config.Config) (*connectionContext, error) {
	client := signaling.NewClient(cfg.RelayURL)
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("connect to relay: %w", err)
	}

	handler := signaling.NewHandler(client)
	go handler.Start()

	return &connectionContext{
		Client:  client,
		Handler: handler,
		Config:  cfg,
	}, nil
}

func (c *connectionContext) Close() {
	if c.Machine != nil {
		c.Machine.Close(nil)
	}
	if c.Client != nil {
		c.Client.Close()
	}
	if c.Handler != nil {
		c.Handler.Close()
	}
}

// register asserts a fresh identity with the relay and waits for the
// acknowledgment.
func (c *connectionContext) register() error {
	id := identity.New()
	if err := c.Client.Register(id, transfer.ClientTypeCLI); err != nil {
		return err
	}

	select {
	case ack := <-c.Handler.RegisterAck:
		c.Local = ack.Identity
		return nil
	case errMsg := <-c.Handler.Err:
		return fmt.Errorf("relay rejected registration: %s", errMsg)
	case <-c.Handler.Disconnected:
		return session.ErrConnectionLost
	case <-time.After(registerTimeout):
		return fmt.Errorf("timed out waiting for registration ack")
	}
}

// buildMachine constructs the session machine once an identity is held.
func (c *connectionContext) buildMachine() {
	c.Machine = session.New(session.Config{
		Local:      c.Local,
		ClientType: transfer.ClientTypeCLI,
		Signals:    c.Client,
		NewLink:    session.NewLinkFactory(c.Config),
	})
}

// pumpSignals feeds relay traffic into the session machine until the
// relay connection drops.
func (c *connectionContext) pumpSignals() {
	deliver := c.Handler.Deliver
	deliveryErr := c.Handler.DeliveryError
	peerLeft := c.Handler.PeerLeft
	superseded := c.Handler.Superseded

	for {
		select {
		case d, ok := <-deliver:
			if !ok {
				deliver = nil
				continue
			}
			c.Machine.HandleDeliver(d)
		case de, ok := <-deliveryErr:
			if !ok {
				deliveryErr = nil
				continue
			}
			c.Machine.HandleDeliveryError(de)
		case pl, ok := <-peerLeft:
			if !ok {
				peerLeft = nil
				continue
			}
			c.Machine.HandlePeerLeft(pl)
		case s, ok := <-superseded:
			if !ok {
				superseded = nil
				continue
			}
			c.Machine.HandleSuperseded(s)
		case <-c.Handler.Disconnected:
			c.Machine.Close(session.ErrConnectionLost)
			return
		}
	}
}

// sessionStats accumulates what the end-of-session summary reports.
// The send goroutine and the main loop both touch it.
type sessionStats struct {
	mu            sync.Mutex
	startedAt     time.Time
	chatMessages  int
	filesSent     int
	filesReceived int
	bytesSent     int64
	bytesReceived int64
}

func (s *sessionStats) addChat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatMessages++
}

func (s *sessionStats) addSent(bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filesSent++
	s.bytesSent += bytes
}

func (s *sessionStats) addReceived(bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filesReceived++
	s.bytesReceived += bytes
}

func (s *sessionStats) summary(peer string) ui.SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ui.SessionSummary{
		Peer:          peer,
		Duration:      time.Since(s.startedAt),
		ChatMessages:  s.chatMessages,
		FilesSent:     s.filesSent,
		FilesReceived: s.filesReceived,
		BytesSent:     s.bytesSent,
		BytesReceived: s.bytesReceived,
	}
}

// liveSession is the per-connection state of the interactive loop,
// built when the direct channel opens and torn down when it closes.
type liveSession struct {
	peer       string
	sender     *transfer.Sender
	receiver   *transfer.Receiver
	transcript transfer.Transcript
	stats      sessionStats

	sendBusy bool
	sendDone chan struct{}

	recvView *ui.TransferView
}

func newLiveSession(ctx *connectionContext, peer string) *liveSession {
	codec := transfer.Negotiate(transfer.ClientTypeCLI, ctx.Machine.PeerClientType())

	live := &liveSession{peer: peer}
	live.stats.startedAt = time.Now()
	live.sender = transfer.NewSender(ctx.Machine, codec, nil)

	save := func(name, mimeType string, data []byte) (string, error) {
		return files.Save(ctx.Config.DownloadDir, name, data)
	}
	live.receiver = transfer.NewReceiver(codec, save, transfer.ReceiverHooks{
		OnChat: func(f transfer.ChatFrame) {
			live.stats.addChat()
			live.transcript.Add(transfer.ChatEntry{From: peer, Text: f.Text, At: time.Now()})
			fmt.Printf("%s %s %s\n", ui.IconChat, ui.PeerStyle.Render(peer+":"), f.Text)
		},
		OnFileInfo: func(f transfer.FileInfoFrame) {
			live.recvView = ui.NewTransferView(ui.DirectionReceive, f.FileName, f.FileSize)
			live.recvView.Start()
		},
		OnProgress: func(p transfer.Progress) {
			if live.recvView != nil {
				live.recvView.Progress(p.SentBytes)
			}
		},
		OnFileDone: func(info transfer.FileInfoFrame, savedPath string) {
			if live.recvView != nil {
				live.recvView.Done()
				live.recvView = nil
			}
			live.stats.addReceived(info.FileSize)
			ui.PrintSuccessf("Received %s (%s) -> %s", info.FileName, files.FormatSize(info.FileSize), savedPath)
		},
		OnFailure: func(err error) {
			if live.recvView != nil {
				live.recvView.Fail(err.Error())
				live.recvView = nil
			} else {
				ui.PrintError(err.Error())
			}
		},
	}, nil)

	return live
}

// startSend validates the path and streams the file from its own
// goroutine so chat and inbound frames keep flowing.
func (l *liveSession) startSend(path string) {
	if l.sendBusy {
		ui.PrintWarning("A file send is already in progress")
		return
	}

	info, err := files.Validate(path)
	if err != nil {
		ui.PrintError(err.Error())
		return
	}

	l.sendBusy = true
	l.sendDone = make(chan struct{})

	view := ui.NewTransferView(ui.DirectionSend, info.Name, info.Size)
	view.Start()

	go func() {
		defer close(l.sendDone)

		err := l.sender.SendFile(context.Background(), info, func(p transfer.Progress) {
			view.Progress(p.SentBytes)
		})
		if err != nil {
			view.Fail(err.Error())
			return
		}
		view.Done()
		l.stats.addSent(info.Size)
		ui.PrintSuccessf("Sent %s (%s)", info.Name, files.FormatSize(info.Size))
	}()
}

func (l *liveSession) finishSend() {
	if l.sendBusy {
		<-l.sendDone
		l.sendBusy = false
	}
}

// readLines feeds stdin lines into a channel, closed on EOF.
func readLines() <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

func printSessionHelp() {
	fmt.Println(ui.MutedStyle.Render("  /send <path>   send a file"))
	fmt.Println(ui.MutedStyle.Render("  /accept        accept an incoming session offer"))
	fmt.Println(ui.MutedStyle.Render("  /reject        reject an incoming session offer"))
	fmt.Println(ui.MutedStyle.Render("  /history       show the chat transcript"))
	fmt.Println(ui.MutedStyle.Render("  /quit          end the session and exit"))
	fmt.Println(ui.MutedStyle.Render("  anything else is sent as chat"))
}

// runSession drives the interactive loop: session lifecycle events,
// inbound frames, and user input. When resume is true the loop goes
// back to waiting for offers after a session ends instead of exiting.
func runSession(ctx *connectionContext, resume bool) error {
	lines := readLines()

	var live *liveSession
	quitting := false

	for {
		select {
		case ev, ok := <-ctx.Machine.Events():
			if !ok {
				return nil
			}
			switch ev.Kind {
			case session.EventIncomingOffer:
				fmt.Printf("%s %s wants to connect. Type %s or %s\n",
					ui.IconPeer,
					ui.PeerStyle.Render(ev.From),
					ui.BoldStyle.Render("/accept"),
					ui.BoldStyle.Render("/reject"))

			case session.EventConnected:
				live = newLiveSession(ctx, ev.From)
				ui.PrintSuccessf("Connected to %s. Direct channel open (%s framing).",
					ui.PeerStyle.Render(ev.From), transfer.Negotiate(transfer.ClientTypeCLI, ctx.Machine.PeerClientType()).Name())
				printSessionHelp()

			case session.EventClosed:
				if live != nil {
					live.finishSend()
				}
				if ev.Err != nil {
					ui.PrintWarningf("Session ended: %v", ev.Err)
				} else {
					ui.PrintInfo("Session ended")
				}
				if live != nil {
					ui.RenderSessionSummary(live.stats.summary(live.peer))
					live = nil
				}
				if quitting || !resume {
					return nil
				}
				ctx.Machine.Reset()
				fmt.Printf("%s Waiting for the next peer...\n", ui.IconWaiting)
			}

		case data, ok := <-ctx.Machine.Frames():
			if !ok {
				return nil
			}
			if live != nil {
				// Failures are surfaced through the receiver hooks.
				_ = live.receiver.HandleRaw(data)
			}

		case line, ok := <-lines:
			if !ok {
				// stdin closed; treat it as /quit.
				lines = nil
				quitting = true
				ctx.Machine.Close(nil)
				continue
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if handleCommand(ctx, live, line, &quitting) {
				continue
			}
			// Plain text is chat.
			if live == nil {
				ui.PrintWarning("Not connected yet; nothing sent")
				continue
			}
			if err := live.sender.SendChat(line); err != nil {
				ui.PrintError(err.Error())
				continue
			}
			live.stats.addChat()
			live.transcript.Add(transfer.ChatEntry{From: ctx.Local, Text: line, At: time.Now(), Local: true})
			fmt.Printf("%s %s %s\n", ui.IconChat, ui.SelfStyle.Render("you:"), line)
		}
	}
}

// handleCommand interprets slash commands; it reports whether line was
// one.
func handleCommand(ctx *connectionContext, live *liveSession, line string, quitting *bool) bool {
	if !strings.HasPrefix(line, "/") {
		return false
	}

	cmd, rest, _ := strings.Cut(line, " ")
	switch cmd {
	case "/accept":
		if err := ctx.Machine.Accept(); err != nil {
			ui.PrintError(err.Error())
		}
	case "/reject":
		if err := ctx.Machine.Reject(); err != nil {
			ui.PrintError(err.Error())
		}
	case "/send":
		path := strings.TrimSpace(rest)
		if path == "" {
			ui.PrintWarning("Usage: /send <path>")
			break
		}
		if live == nil {
			ui.PrintWarning("Not connected yet")
			break
		}
		live.startSend(path)
	case "/history":
		if live == nil {
			ui.PrintWarning("Not connected yet")
			break
		}
		entries := live.transcript.Entries()
		rows := make([]ui.TranscriptRow, len(entries))
		for i, e := range entries {
			rows[i] = ui.TranscriptRow{At: e.At, From: e.From, Text: e.Text, Local: e.Local}
		}
		ui.RenderTranscript(rows)
	case "/quit":
		*quitting = true
		ctx.Machine.Close(nil)
	case "/help":
		printSessionHelp()
	default:
		ui.PrintWarningf("Unknown command %s", cmd)
	}
	return true
}
