package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"github.com/livetiming/lt-go/pkg/state"
	"github.com/livetiming/lt-go/pkg/topic"
)

// console is the interactive session inspector.
type console struct {
	rl        *readline.Instance
	closeOnce sync.Once
}

func newConsole() (*console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "lt> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("help"),
			readline.PcItem("status"),
			readline.PcItem("topics"),
			readline.PcItem("state", topicCompleter()...),
			readline.PcItem("stats"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &console{rl: rl}, nil
}

func topicCompleter() []readline.PrefixCompleterInterface {
	all := topic.All()
	items := make([]readline.PrefixCompleterInterface, len(all))
	for i, t := range all {
		items[i] = readline.PcItem(t.String())
	}
	return items
}

// Stdout returns a writer that coordinates with the prompt.
func (c *console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Stderr returns a writer that coordinates with the prompt.
func (c *console) Stderr() io.Writer {
	return c.rl.Stderr()
}

// Close releases the terminal.
func (c *console) Close() {
	c.closeOnce.Do(func() { _ = c.rl.Close() })
}

// Run reads commands until quit, EOF or ctx ends. quit calls stop.
func (c *console) Run(ctx context.Context, src source, stop func()) {
	go func() {
		<-ctx.Done()
		c.Close()
	}()

	out := c.rl.Stdout()
	c.printHelp(out)

	for {
		line, err := c.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			if ctx.Err() == nil {
				fmt.Fprintln(out, "Exiting...")
				stop()
			}
			return
		}
		if quit := c.exec(out, src, line); quit {
			fmt.Fprintln(out, "Exiting...")
			stop()
			return
		}
	}
}

// exec runs one command line and reports whether the user asked to quit.
func (c *console) exec(out io.Writer, src source, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp(out)
	case "status":
		fmt.Fprintf(out, "Status: %s\n", src.Status())
	case "topics", "ls":
		cmdTopics(out, src)
	case "state", "s":
		cmdState(out, src, args)
	case "stats":
		for _, s := range src.Stats() {
			fmt.Fprintf(out, "  %-18s %v\n", s.name+":", s.value)
		}
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (c *console) printHelp(out io.Writer) {
	fmt.Fprintln(out, `
Live-timing console:
    status           - Show connection state
    topics           - List topics with a value
    state <topic>    - Print the merged value of a topic
    stats            - Show counters
    help             - Show this help
    quit             - Stop and exit`)
}

func cmdTopics(out io.Writer, src source) {
	snap := src.Snapshot()
	topics := snap.Topics()
	if len(topics) == 0 {
		fmt.Fprintln(out, "No topic has a value yet")
		return
	}
	fmt.Fprintf(out, "Topics (%d):\n", len(topics))
	for _, t := range topics {
		fmt.Fprintf(out, "  %-24s %s\n", t, describe(t, snap[t]))
	}
}

func cmdState(out io.Writer, src source, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(out, "Usage: state <topic>")
		return
	}
	t, err := topic.Parse(args[0])
	if err != nil {
		fmt.Fprintf(out, "%v\n", err)
		return
	}
	v, ok := src.Snapshot().Get(t)
	if !ok {
		fmt.Fprintf(out, "%s has no value yet\n", t)
		return
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(out, "Cannot print %s: %v\n", t, err)
		return
	}
	fmt.Fprintln(out, string(data))
}

// describe summarises a value in one line.
func describe(t topic.Topic, v state.Value) string {
	switch p := state.DecodePayload(t, v).(type) {
	case state.TrackStatus:
		return fmt.Sprintf("%s (%s)", p.Message, p.Status)
	case state.LapCount:
		return fmt.Sprintf("lap %d/%d", p.CurrentLap, p.TotalLaps)
	case state.RaceControlMessages:
		return fmt.Sprintf("%d messages", len(p.Messages))
	case state.SessionStatus:
		return p.Status
	case state.Heartbeat:
		return p.Utc.Format("15:04:05")
	}
	switch x := v.(type) {
	case map[string]any:
		return fmt.Sprintf("%d keys", len(x))
	case []any:
		return fmt.Sprintf("%d items", len(x))
	case string:
		return fmt.Sprintf("%d bytes", len(x))
	default:
		return fmt.Sprintf("%v", x)
	}
}
