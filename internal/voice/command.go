package voice

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// CommandSynthesizer speaks through an external program such as
// "espeak-ng -v pt-br -a {volume}". The text is the last argument;
// {volume} expands to 0-200 and {lang} to the locale.
type CommandSynthesizer struct {
	Command string
}

var _ Synthesizer = (*CommandSynthesizer)(nil)

func (c *CommandSynthesizer) Speak(ctx context.Context, u Utterance) error {
	args, err := c.args(u)
	if err != nil {
		return err
	}
	out, err := exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("run %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (c *CommandSynthesizer) args(u Utterance) ([]string, error) {
	parts := strings.Fields(c.Command)
	if len(parts) == 0 {
		return nil, fmt.Errorf("voice command is empty")
	}
	r := strings.NewReplacer(
		"{volume}", strconv.Itoa(int(u.Volume*200)),
		"{lang}", u.Locale,
	)
	for i, p := range parts {
		parts[i] = r.Replace(p)
	}
	return append(parts, u.Text), nil
}
