// Package editor resolves and spawns the user's text editor for
// interactive note editing.
package editor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// ErrNoEditor is returned when no usable editor can be found.
var ErrNoEditor = errors.New("no editor found (set editor in config, $EDITOR, or install vi/nano)")

// Resolve picks an editor binary. Priority: preferred (from config) →
// $EDITOR → vi → nano.
func Resolve(preferred string) (string, error) {
	candidates := []string{preferred, os.Getenv("EDITOR"), "vi", "nano"}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if _, err := exec.LookPath(c); err == nil {
			return c, nil
		}
	}
	return "", ErrNoEditor
}

// Open spawns the editor on path with the terminal attached and waits
// for it to exit.
func Open(ctx context.Context, editorBin, path string) error {
	cmd := exec.CommandContext(ctx, editorBin, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("editor %s: %w", editorBin, err)
	}
	return nil
}
