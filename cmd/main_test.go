package main

import (
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaudioproject/webapiclient/internal/auth"
	"github.com/xaudioproject/webapiclient/internal/mockserver"
)

func writeConfig(t *testing.T, dir, wsURL, secret string) string {
	t.Helper()

	input := filepath.Join(dir, "input.pcm")
	require.NoError(t, os.WriteFile(input, make([]byte, 40000), 0o600))

	cfg := fmt.Sprintf(`{
		"audio": {"input": %q, "output": %q, "from": "zh-CN", "to": "en-US", "sample-rate": 16000},
		"xap": {"appid": "app-1", "appsecret": %q},
		"ws": {"url": %q}
	}`, input, filepath.Join(dir, "output.wav"), secret, wsURL)

	path := filepath.Join(dir, "configuration.json")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func startLoopback(t *testing.T) string {
	t.Helper()
	srv := mockserver.NewServer(auth.Credentials{AppID: "app-1", AppSecret: "secret-1"}, zap.NewNop())
	httpServer := httptest.NewServer(mockserver.NewEcho(srv))
	t.Cleanup(httpServer.Close)
	return "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws"
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	opts := &options{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args)
	err := cmd.Execute()
	if opts.logger != nil {
		opts.logger.Sync()
	}
	return err
}

func TestTranslate_WritesReceivedAudio(t *testing.T) {
	dir := t.TempDir()
	configPath := writeConfig(t, dir, startLoopback(t), "secret-1")

	err := execute(t, "--config", configPath, "--env-file", filepath.Join(dir, "absent.env"))
	require.NoError(t, err)

	wav, err := os.ReadFile(filepath.Join(dir, "output.wav"))
	require.NoError(t, err)
	assert.Len(t, wav, 44+40000)
}

func TestTranslate_TransportError(t *testing.T) {
	dir := t.TempDir()
	configPath := writeConfig(t, dir, startLoopback(t), "wrong-secret")

	err := execute(t, "--config", configPath, "--env-file", "")
	assert.Error(t, err)
}

func TestTranslate_MissingConfig(t *testing.T) {
	err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.json"), "--env-file", "")
	assert.Error(t, err)
}
