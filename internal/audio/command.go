package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"
)

// DefaultPlayerCommand streams s16le PCM from stdin to the speakers with ffplay.
// ffplay takes -ch_layout rather than ffmpeg's -ac.
const DefaultPlayerCommand = "ffplay -hide_banner -loglevel error -nostats -nodisp -autoexit " +
	"-f s16le -ch_layout {channel_layout} -ar {sample_rate} -i -"

const stopTimeout = 2 * time.Second

// CommandDevice plays buffers by piping s16le PCM into an external player process.
// The {sample_rate} and {channel_layout} placeholders in the command are expanded
// for each context.
type CommandDevice struct {
	args   []string
	logger *slog.Logger
}

// NewCommandDevice parses command with shell quoting rules.
func NewCommandDevice(command string, logger *slog.Logger) (*CommandDevice, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse player command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("player command empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandDevice{args: args, logger: logger.With(slog.String("component", "player"))}, nil
}

// Open implements Device.
func (d *CommandDevice) Open(sampleRate, channels int) (Context, error) {
	return &commandContext{
		args:   expandArgs(d.args, sampleRate, channels),
		logger: d.logger,
	}, nil
}

func expandArgs(args []string, sampleRate, channels int) []string {
	var layout string
	switch channels {
	case 1:
		layout = "mono"
	case 2:
		layout = "stereo"
	default:
		layout = strconv.Itoa(channels) + "c"
	}
	r := strings.NewReplacer(
		"{sample_rate}", strconv.Itoa(sampleRate),
		"{channel_layout}", layout,
		"{channels}", strconv.Itoa(channels),
	)
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = r.Replace(a)
	}
	return out
}

type commandContext struct {
	args   []string
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

func (c *commandContext) Start(buf *Buffer) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errContextClosed
	}

	cmd := exec.Command(c.args[0], c.args[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return nil, err
	}
	c.logger.Debug("player started", slog.Int("pid", cmd.Process.Pid), slog.Duration("duration", buf.Duration()))

	h := &processHandle{cmd: cmd, done: make(chan struct{})}
	pcm := buf.PCM16()
	go func() {
		defer close(h.done)
		if _, err := stdin.Write(pcm); err != nil {
			c.logger.Debug("player stdin write", slog.String("error", err.Error()))
		}
		_ = stdin.Close()
		if err := cmd.Wait(); err != nil {
			c.logger.Debug("player exited", slog.String("error", err.Error()))
		}
	}()
	return h, nil
}

func (c *commandContext) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

type processHandle struct {
	cmd  *exec.Cmd
	done chan struct{}
}

func (h *processHandle) Done() <-chan struct{} { return h.done }

// Stop kills the player and waits up to stopTimeout for it to exit, so the
// audio device is free before the next session opens it.
func (h *processHandle) Stop() error {
	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	select {
	case <-h.done:
		return nil
	case <-time.After(stopTimeout):
		return fmt.Errorf("player pid %d did not exit within %s", h.cmd.Process.Pid, stopTimeout)
	}
}
