package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strconv"
)

// FFmpegInputArgs returns the ffmpeg arguments that capture the default (or
// named) microphone as mono s16le at sampleRate on stdout.
func FFmpegInputArgs(goos, input string, sampleRate int) ([]string, error) {
	var format string
	switch goos {
	case "darwin":
		format = "avfoundation"
		if input == "" {
			input = ":0"
		}
	case "linux":
		format = "pulse"
		if input == "" {
			input = "default"
		}
	default:
		return nil, fmt.Errorf("mic capture is not implemented for %s; supported platforms: darwin, linux", goos)
	}
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", format, "-i", input,
		"-ac", "1", "-ar", strconv.Itoa(sampleRate),
		"-f", "s16le", "-",
	}, nil
}

// FFplayOutputArgs returns the ffplay arguments that play mono s16le at
// sampleRate from stdin.
func FFplayOutputArgs(sampleRate int) []string {
	return []string{
		"-nodisp",
		"-autoexit",
		"-loglevel", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", "1",
		"-i", "pipe:0",
	}
}

// FFmpegInput opens the microphone through an ffmpeg child process.
func FFmpegInput(input string, sampleRate int) ReaderOpener {
	return func(ctx context.Context) (io.ReadCloser, error) {
		if _, err := exec.LookPath("ffmpeg"); err != nil {
			return nil, errors.New("ffmpeg is required for mic capture (install ffmpeg and ensure it is in PATH)")
		}
		args, err := FFmpegInputArgs(runtime.GOOS, input, sampleRate)
		if err != nil {
			return nil, err
		}

		cmd := exec.CommandContext(ctx, "ffmpeg", args...)
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("open ffmpeg stdout: %w", err)
		}
		cmd.Stderr = io.Discard
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start ffmpeg mic capture: %w", err)
		}
		return &processReader{cmd: cmd, ReadCloser: stdout}, nil
	}
}

// FFplayOutput opens the speaker through an ffplay child process.
func FFplayOutput(sampleRate int) WriterOpener {
	return func(ctx context.Context) (io.WriteCloser, error) {
		if _, err := exec.LookPath("ffplay"); err != nil {
			return nil, errors.New("ffplay is required for playback (install ffmpeg/ffplay and ensure it is in PATH)")
		}

		cmd := exec.CommandContext(ctx, "ffplay", FFplayOutputArgs(sampleRate)...)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("open ffplay stdin: %w", err)
		}
		cmd.Stdout = io.Discard
		cmd.Stderr = io.Discard
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start ffplay: %w", err)
		}
		return &processWriter{cmd: cmd, WriteCloser: stdin}, nil
	}
}

type processReader struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (p *processReader) Close() error {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	_ = p.cmd.Wait()
	return nil
}

type processWriter struct {
	io.WriteCloser
	cmd *exec.Cmd
}

// Close kills the player immediately so buffered audio is dropped.
func (p *processWriter) Close() error {
	_ = p.WriteCloser.Close()
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	_ = p.cmd.Wait()
	return nil
}
