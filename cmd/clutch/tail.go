package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/clutchchat/clutch/internal/models"
	"github.com/clutchchat/clutch/internal/protocol"
	"github.com/clutchchat/clutch/internal/session"
	"github.com/clutchchat/clutch/internal/timeline"
	"github.com/clutchchat/clutch/internal/transport"
	"github.com/clutchchat/clutch/internal/typing"
)

var (
	flagServer  string
	flagChannel string
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Stream a channel's timeline; stdin lines become messages",
	RunE:  runTail,
}

func init() {
	tailCmd.Flags().StringVar(&flagServer, "server", "", "server ID")
	tailCmd.Flags().StringVar(&flagChannel, "channel", "", "channel ID or name")
	_ = tailCmd.MarkFlagRequired("server")
	_ = tailCmd.MarkFlagRequired("channel")
}

func runTail(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache, err := openCache()
	if err != nil {
		return err
	}
	defer cache.Close()

	client, err := newClient(cache)
	if err != nil {
		return err
	}
	token := client.Token()
	if token == "" {
		return fmt.Errorf("not logged in; run clutch login first")
	}

	tl := timeline.New()
	tr := transport.New(cfg.API.WSURL, transport.Options{
		Reconnect:   cfg.Reconnect.Enabled,
		MaxInterval: cfg.MaxBackoff(),
	})
	relay := typing.NewRelay(tr, cfg.TypingInterval())
	sess := session.New(tr, client, tl, session.Options{
		HistoryLimit: cfg.Chat.HistoryLimit,
		Cache:        cache,
		Relay:        relay,
	})
	tr.OnFrame(sess.HandleFrame)
	tr.OnStateChange(sess.HandleStateChange)
	relay.OnTyping(func(channelID, userID string) {
		log.Debug().Str("channel", channelID).Str("user", userID).Msg("typing")
	})

	if err := tr.Connect(ctx, token); err != nil {
		return err
	}
	defer tr.Disconnect()

	if err := sess.RefreshChannels(ctx, flagServer); err != nil {
		return fmt.Errorf("refresh channels: %w", err)
	}
	ch, ok := findChannel(sess.Channels(), flagChannel)
	if !ok {
		return fmt.Errorf("channel %q not found in server %s", flagChannel, flagServer)
	}

	pr := newPrinter(tl, os.Stdout)
	// Runs after the session's handler on the same read pump, so the
	// timeline is already updated when this fires.
	tr.OnFrame(func(f protocol.Frame) {
		if f.Type == protocol.TypeMessage {
			pr.redraw()
		}
	})

	sess.SetCurrentChannel(ctx, ch)
	sess.Wait()
	pr.redraw()
	log.Info().Str("channel", ch.Name).Msg("streaming; Ctrl-C to quit")

	go readInput(ctx, tr, relay, ch.ID)

	<-ctx.Done()
	sess.Wait()
	return nil
}

func readInput(ctx context.Context, tr *transport.Transport, relay *typing.Relay, channelID string) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		relay.Typing(channelID)
		frame := protocol.SendMessage(channelID, line, uuid.NewString())
		if err := tr.Send(frame); err != nil {
			log.Warn().Err(err).Msg("message not sent")
		}
	}
}

func findChannel(channels []models.Channel, idOrName string) (models.Channel, bool) {
	for _, ch := range channels {
		if ch.ID == idOrName || ch.Name == idOrName {
			return ch, true
		}
	}
	return models.Channel{}, false
}

// printer re-exposes the timeline after every mutation; printed tracks which
// messages are already on screen. The read pump and the main goroutine both
// redraw, so the map and the writer stay behind the mutex.
type printer struct {
	mu      sync.Mutex
	tl      *timeline.Timeline
	printed map[string]bool
	out     io.Writer
}

func newPrinter(tl *timeline.Timeline, out io.Writer) *printer {
	return &printer{
		tl:      tl,
		printed: make(map[string]bool),
		out:     out,
	}
}

func (p *printer) redraw() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.tl.Messages() {
		if p.printed[m.ID] {
			continue
		}
		p.printed[m.ID] = true
		fmt.Fprintln(p.out, formatMessage(m))
	}
}

func formatMessage(m models.Message) string {
	ts := m.CreatedAt.Local().Format("15:04:05")
	line := fmt.Sprintf("[%s] %s: %s", ts, m.UserID, m.Content)
	if len(m.Attachments) > 0 {
		line += fmt.Sprintf(" (+%d attachments)", len(m.Attachments))
	}
	return line
}
