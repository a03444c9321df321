package audio

import (
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func TestNewCommandDevice(t *testing.T) {
	if _, err := NewCommandDevice("", nil); err == nil {
		t.Error("NewCommandDevice(\"\") succeeded, want error")
	}
	if _, err := NewCommandDevice(`ffplay "unterminated`, nil); err == nil {
		t.Error("NewCommandDevice with unbalanced quote succeeded, want error")
	}
	if _, err := NewCommandDevice(DefaultPlayerCommand, nil); err != nil {
		t.Errorf("NewCommandDevice(default): %v", err)
	}
}

func TestExpandArgs(t *testing.T) {
	d, err := NewCommandDevice(DefaultPlayerCommand, nil)
	if err != nil {
		t.Fatalf("NewCommandDevice: %v", err)
	}
	got := strings.Join(expandArgs(d.args, 24000, 1), " ")
	for _, want := range []string{"-ar 24000", "-ch_layout mono", "-f s16le", "-i -"} {
		if !strings.Contains(got, want) {
			t.Errorf("expanded args %q missing %q", got, want)
		}
	}
	if strings.Contains(got, "{") {
		t.Errorf("expanded args still contain placeholders: %q", got)
	}
	if got := expandArgs([]string{"{channel_layout}"}, 48000, 2)[0]; got != "stereo" {
		t.Errorf("channel layout for 2 channels = %q, want stereo", got)
	}
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func testBuffer(t *testing.T) *Buffer {
	t.Helper()
	buf, err := DecodePCM16(make([]byte, 4800), SampleRate, Channels)
	if err != nil {
		t.Fatalf("DecodePCM16: %v", err)
	}
	return buf
}

func TestCommandDevicePlaysToCompletion(t *testing.T) {
	requireShell(t)
	d, err := NewCommandDevice(`sh -c "cat > /dev/null"`, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewCommandDevice: %v", err)
	}
	ctx, err := d.Open(SampleRate, Channels)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ctx.Close()

	h, err := ctx.Start(testBuffer(t))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("player did not exit after stdin closed")
	}
	if err := h.Stop(); err != nil {
		t.Errorf("Stop after exit = %v, want nil", err)
	}
}

func TestCommandDeviceStop(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	d, err := NewCommandDevice("sleep 30", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewCommandDevice: %v", err)
	}
	ctx, err := d.Open(SampleRate, Channels)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	h, err := ctx.Start(testBuffer(t))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	// Stop returns only once the player has exited.
	select {
	case <-h.Done():
	default:
		t.Fatal("Stop returned while the player was still running")
	}
	if err := h.Stop(); err != nil {
		t.Errorf("second Stop = %v, want nil", err)
	}

	_ = ctx.Close()
	if _, err := ctx.Start(testBuffer(t)); err == nil {
		t.Error("Start on closed context succeeded, want error")
	}
}
