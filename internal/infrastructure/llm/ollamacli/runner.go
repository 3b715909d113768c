// Package ollamacli drives a local model through the `ollama run` command line.
package ollamacli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"unicode/utf8"
)

const maxStderrInError = 512

// Runner executes `<path> run <model> <prompt>` and returns captured stdout.
// The process is killed when ctx is done.
type Runner struct {
	path  string
	model string

	commandContext func(ctx context.Context, name string, args ...string) *exec.Cmd
}

func New(path, model string) *Runner {
	if strings.TrimSpace(path) == "" {
		path = "ollama"
	}
	return &Runner{
		path:           path,
		model:          model,
		commandContext: exec.CommandContext,
	}
}

func (r *Runner) Generate(ctx context.Context, prompt string) (string, error) {
	cmd := r.commandContext(ctx, r.path, "run", r.model, prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("ollama run: %w", ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("ollama run exited with code %d: %s", exitErr.ExitCode(), tail(stderr.String()))
		}
		return "", fmt.Errorf("ollama run: %w", err)
	}

	return strings.TrimSpace(strings.ToValidUTF8(stdout.String(), "")), nil
}

// tail keeps the last maxStderrInError bytes of s, cut on a rune boundary.
func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxStderrInError {
		return strings.ToValidUTF8(s, "")
	}
	start := len(s) - maxStderrInError
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return strings.ToValidUTF8(s[start:], "")
}
