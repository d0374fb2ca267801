package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/pterm/pterm"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/kuhhandel-server/internal/bot"
	"github.com/DoyleJ11/kuhhandel-server/pkg/types"
)

func main() {
	if len(os.Args) < 2 || len(os.Args) > 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <ws-url> [name]\n", os.Args[0])
		os.Exit(1)
	}
	url := os.Args[1]
	name := fmt.Sprintf("bot-%04d", rand.Intn(10000))
	if len(os.Args) == 3 {
		name = os.Args[2]
	}

	// Create a new slog handler with the default PTerm logger
	logger := slog.New(pterm.NewSlogHandler(&pterm.DefaultLogger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := play(ctx, url, name, logger); err != nil {
		logger.Error("bot stopped", "error", err)
		os.Exit(1)
	}
}

func play(ctx context.Context, url, name string, logger *slog.Logger) error {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(1 << 20)

	pterm.Info.Printfln("Connected to %s as %s", url, name)
	b := bot.New(name, rand.New(rand.NewSource(time.Now().UnixNano())))
	out := make(chan bot.Reply, 16)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(out)
		for !b.Over() {
			var f bot.Frame
			if err := wsjson.Read(gctx, conn, &f); err != nil {
				return fmt.Errorf("read: %w", err)
			}
			logger.Debug("frame", "type", f.Type, "payload", string(f.Payload))
			switch f.Type {
			case types.TypeMessage, types.TypeError:
				pterm.Info.Println(string(f.Payload))
			}
			for _, r := range b.Handle(f) {
				select {
				case out <- r:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		}
		return nil
	})
	g.Go(func() error {
		for r := range out {
			wctx, cancel := context.WithTimeout(gctx, 3*time.Second)
			err := wsjson.Write(wctx, conn, r)
			cancel()
			if err != nil {
				return fmt.Errorf("write: %w", err)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if scores := b.Scores(); scores != nil {
		pterm.Success.Printfln("Game over: %s", scores)
	}
	return conn.Close(websocket.StatusNormalClosure, "bye")
}
