package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"jobscout-engine/internal/jobcsv"
)

// Command runs an external scraper process. The search parameters are written
// to its stdin as JSON and the process must print the export CSV on stdout.
// A non-zero exit status is a failed search.
type Command struct {
	Argv []string
	Env  []string
	Log  *slog.Logger
}

func NewCommand(argv []string, env []string, log *slog.Logger) *Command {
	if log == nil {
		log = slog.Default()
	}
	return &Command{Argv: argv, Env: env, Log: log}
}

func (c *Command) Name() string { return "command" }

func (c *Command) Scrape(ctx context.Context, p Params) ([]any, error) {
	if len(c.Argv) == 0 {
		return nil, errors.New("scraper command is empty")
	}
	in, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...)
	cmd.Env = append(cmd.Environ(), c.Env...)
	cmd.Stdin = bytes.NewReader(in)
	cmd.WaitDelay = 2 * time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, fmt.Errorf("scraper process: %w: %s", err, tail(stderr.String(), 512))
	}
	c.Log.Debug("scraper process finished", "dur_ms", time.Since(start).Milliseconds(), "bytes", stdout.Len())

	rows, err := jobcsv.ReadRows(&stdout)
	if err != nil {
		return nil, fmt.Errorf("parse scraper output: %w", err)
	}
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "…" + s[len(s)-n:]
}
