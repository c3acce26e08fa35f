package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
douyin:
  cookie: "ttwid=test"
signer:
  sdk_path: "/opt/danmaku/sdk.js"
`

func TestLoadAndValidate_Minimal(t *testing.T) {
	cfg, err := LoadAndValidate(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}

	if cfg.Server.Port != DefaultPort {
		t.Errorf("server.port = %d, want default %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Douyin.EnterURL != DefaultEnterURL {
		t.Errorf("douyin.enter_url = %s, want default", cfg.Douyin.EnterURL)
	}
	if cfg.Douyin.PushURL != DefaultPushURL {
		t.Errorf("douyin.push_url = %s, want default", cfg.Douyin.PushURL)
	}
	if cfg.Session.HeartbeatInterval != DefaultHeartbeatInterval {
		t.Errorf("heartbeat_interval = %s, want default", cfg.Session.HeartbeatInterval)
	}
	if cfg.Buffers.GlobalSize != DefaultGlobalBufferSize || cfg.Buffers.RoomSize != DefaultRoomBufferSize {
		t.Errorf("buffer sizes = %d/%d, want defaults", cfg.Buffers.GlobalSize, cfg.Buffers.RoomSize)
	}
}

func TestLoadAndValidate_ExplicitValues(t *testing.T) {
	cfg, err := LoadAndValidate(writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
douyin:
  cookie: "ttwid=test"
  user_agent: "custom-agent"
signer:
  sdk_path: "/tmp/sdk.js"
  max_attempts: 3
session:
  heartbeat_interval: 5s
buffers:
  global_size: 500
  room_size: 50
state:
  path: "/var/lib/danmaku/rooms.yaml"
`))
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("server = %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Douyin.UserAgent != "custom-agent" {
		t.Errorf("user_agent = %s", cfg.Douyin.UserAgent)
	}
	if cfg.Signer.MaxAttempts != 3 {
		t.Errorf("max_attempts = %d", cfg.Signer.MaxAttempts)
	}
	if cfg.Session.HeartbeatInterval != 5*time.Second {
		t.Errorf("heartbeat_interval = %s", cfg.Session.HeartbeatInterval)
	}
	if cfg.Buffers.GlobalSize != 500 || cfg.Buffers.RoomSize != 50 {
		t.Errorf("buffers = %d/%d", cfg.Buffers.GlobalSize, cfg.Buffers.RoomSize)
	}
	if cfg.State.Path != "/var/lib/danmaku/rooms.yaml" {
		t.Errorf("state.path = %s", cfg.State.Path)
	}
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_DANMAKU_COOKIE", "ttwid=from-env")

	cfg, err := Load(writeConfig(t, `
douyin:
  cookie: "${TEST_DANMAKU_COOKIE}"
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Douyin.Cookie != "ttwid=from-env" {
		t.Errorf("cookie = %s, want expanded value", cfg.Douyin.Cookie)
	}
}

func TestLoadWithDefaults_EnvOverlay(t *testing.T) {
	t.Setenv("DANMAKU_PORT", "9191")
	t.Setenv("DANMAKU_SDK_PATH", "/env/sdk.js")

	cfg, err := LoadWithDefaults(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("port = %d, want env override 9191", cfg.Server.Port)
	}
	if cfg.Signer.SDKPath != "/env/sdk.js" {
		t.Errorf("sdk_path = %s, want env override", cfg.Signer.SDKPath)
	}
}

func TestLoadAndValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantSub string
	}{
		{
			name: "missing cookie",
			content: `
signer:
  sdk_path: "/tmp/sdk.js"
`,
			wantSub: "douyin.cookie",
		},
		{
			name: "bad port",
			content: `
server:
  port: 99999
douyin:
  cookie: "x"
signer:
  sdk_path: "/tmp/sdk.js"
`,
			wantSub: "server.port",
		},
		{
			name: "bad push url",
			content: `
douyin:
  cookie: "x"
  push_url: "http://not-a-ws-url"
signer:
  sdk_path: "/tmp/sdk.js"
`,
			wantSub: "push_url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadAndValidate(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantSub)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRoomFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "rooms.yaml")

	in := &RoomFile{
		Filter: "^hi",
		Rooms: []RoomInfo{
			{RoomID: "100", WebRID: "web-100", Title: "room one", Owner: "alice"},
			{RoomID: "200", WebRID: "web-200"},
		},
	}
	if err := SaveRoomFile(path, in); err != nil {
		t.Fatalf("SaveRoomFile failed: %v", err)
	}

	out, err := LoadRoomFile(path)
	if err != nil {
		t.Fatalf("LoadRoomFile failed: %v", err)
	}
	if out.Filter != "^hi" {
		t.Errorf("filter = %s, want ^hi", out.Filter)
	}
	if len(out.Rooms) != 2 || out.Rooms[0].RoomID != "100" || out.Rooms[1].WebRID != "web-200" {
		t.Errorf("rooms = %+v", out.Rooms)
	}
}

func TestLoadRoomFile_MissingIsEmpty(t *testing.T) {
	rf, err := LoadRoomFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadRoomFile failed: %v", err)
	}
	if rf.Filter != "" || len(rf.Rooms) != 0 {
		t.Errorf("expected empty state, got %+v", rf)
	}
}
