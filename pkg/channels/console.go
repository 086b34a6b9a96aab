package channels

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/PyuraMazo/galgame-box/pkg/bus"
	"github.com/PyuraMazo/galgame-box/pkg/logger"
)

// ConsoleChannel is the local line-oriented adapter used for development and
// the console subcommand. Rendered images land in the temp directory and
// their paths are printed.
type ConsoleChannel struct {
	*BaseChannel
	rl *readline.Instance
}

func NewConsoleChannel(b bus.Broker) *ConsoleChannel {
	return &ConsoleChannel{BaseChannel: NewBaseChannel("console", b)}
}

func (c *ConsoleChannel) Start(ctx context.Context) error {
	rl, err := readline.New("galbox> ")
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	c.rl = rl
	c.setRunning(true)

	go func() {
		defer rl.Close()
		for {
			line, err := rl.Readline()
			if err != nil {
				// ^C clears the line, ^D ends the adapter
				if err == readline.ErrInterrupt {
					continue
				}
				c.setRunning(false)
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			c.HandleMessage("local", "console", line, nil, nil)
		}
	}()
	return nil
}

func (c *ConsoleChannel) Stop(ctx context.Context) error {
	c.setRunning(false)
	if c.rl != nil {
		c.rl.Close()
	}
	return nil
}

func (c *ConsoleChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	switch msg.Kind {
	case bus.OutImage:
		if len(msg.ImageBytes) > 0 {
			path := filepath.Join(os.TempDir(), fmt.Sprintf("galbox-%d.jpg", time.Now().UnixNano()))
			if err := os.WriteFile(path, msg.ImageBytes, 0644); err != nil {
				return err
			}
			fmt.Println("[image] " + path)
			return nil
		}
		fmt.Println("[image] " + msg.ImageRef)
	case bus.OutNodes:
		for i, n := range msg.Nodes {
			fmt.Printf("--- %d ---\n%s\n", i+1, n.Text)
		}
	default:
		fmt.Println(msg.Content)
	}

	logger.DebugC("console", "reply delivered")
	return nil
}
