package device

import (
	"os"
	"reflect"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"default", Config{}, false},
		{"ffmpeg", Config{Backend: BackendFFmpeg}, false},
		{"memory", Config{Backend: BackendMemory}, false},
		{"unknown", Config{Backend: "alsa"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateConfig(tt.config); (err != nil) != tt.wantErr {
				t.Errorf("ValidateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewConfigFromEnv(t *testing.T) {
	os.Setenv("AUDIO_BACKEND", "memory")
	os.Setenv("AUDIO_INPUT_DEVICE", "hw:1")
	defer os.Unsetenv("AUDIO_BACKEND")
	defer os.Unsetenv("AUDIO_INPUT_DEVICE")

	config := NewConfigFromEnv()
	if config.Backend != "memory" || config.InputDevice != "hw:1" {
		t.Errorf("Unexpected config %+v", config)
	}
}

func TestDevices(t *testing.T) {
	logger := zaptest.NewLogger(t)

	capture, output, err := Devices(Config{Backend: BackendMemory}, NewRegistry(), logger)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := capture.(*MemoryCapture); !ok {
		t.Errorf("Expected MemoryCapture, got %T", capture)
	}
	if _, ok := output.(*MemoryOutput); !ok {
		t.Errorf("Expected MemoryOutput, got %T", output)
	}

	capture, output, err = Devices(Config{}, NewRegistry(), logger)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := capture.(*StreamCapture); !ok {
		t.Errorf("Expected StreamCapture, got %T", capture)
	}
	if _, ok := output.(*StreamOutput); !ok {
		t.Errorf("Expected StreamOutput, got %T", output)
	}

	if _, _, err := Devices(Config{Backend: "alsa"}, NewRegistry(), logger); err == nil {
		t.Error("Expected error for unknown backend")
	}
}

func TestFFmpegInputArgs(t *testing.T) {
	tests := []struct {
		goos    string
		input   string
		want    []string
		wantErr bool
	}{
		{
			goos: "linux",
			want: []string{"-hide_banner", "-loglevel", "error", "-f", "pulse", "-i", "default",
				"-ac", "1", "-ar", "16000", "-f", "s16le", "-"},
		},
		{
			goos:  "darwin",
			input: ":1",
			want: []string{"-hide_banner", "-loglevel", "error", "-f", "avfoundation", "-i", ":1",
				"-ac", "1", "-ar", "16000", "-f", "s16le", "-"},
		},
		{goos: "windows", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			got, err := FFmpegInputArgs(tt.goos, tt.input, 16000)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FFmpegInputArgs() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FFmpegInputArgs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFFplayOutputArgs(t *testing.T) {
	args := FFplayOutputArgs(24000)
	want := []string{"-nodisp", "-autoexit", "-loglevel", "error", "-f", "s16le", "-ar", "24000", "-ac", "1", "-i", "pipe:0"}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("FFplayOutputArgs() = %v, want %v", args, want)
	}
}
