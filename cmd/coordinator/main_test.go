package main

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dreamware/worldgate/internal/config"
)

type testGateway struct {
	*gateway
	base string // http://host:port
	ws   string // ws://host:port/
}

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worldgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))
	return path
}

func loadConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.LoadAndValidate(writeConfig(t, yaml))
	require.NoError(t, err)
	return cfg
}

func startGateway(t *testing.T, cfg *config.Config) *testGateway {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	g, err := newGateway(ctx, cfg, zap.NewNop(), nil)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- g.run(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("gateway did not stop")
		}
	})

	addr := ln.Addr().String()
	tg := &testGateway{gateway: g, base: "http://" + addr, ws: "ws://" + addr + "/"}
	require.Eventually(t, func() bool {
		resp, err := http.Get(tg.base + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)
	return tg
}

func (tg *testGateway) join(t *testing.T) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(tg.ws, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func (tg *testGateway) statusBody(t *testing.T) string {
	t.Helper()
	resp, err := http.Get(tg.base + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

type message struct {
	Type    string `json:"type"`
	World   any    `json:"world"`
	ID      string `json:"id"`
	Players int    `json:"players"`
	Total   int    `json:"total"`
}

// readUntil reads messages until one of type kind arrives.
func readUntil(t *testing.T, ws *websocket.Conn, kind string, match func(message) bool) message {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg message
		require.NoError(t, ws.ReadJSON(&msg))
		if msg.Type == kind && (match == nil || match(msg)) {
			return msg
		}
	}
}

func TestGatewayFirstFit(t *testing.T) {
	cfg := loadConfig(t, `
nb_worlds: 2
nb_players_per_world: 1
metrics_enabled: false
`)
	tg := startGateway(t, cfg)
	assert.Equal(t, "[0,0]", tg.statusBody(t))

	first := tg.join(t)
	welcome := readUntil(t, first, "welcome", nil)
	assert.Equal(t, "world1", welcome.World)
	assert.NotEmpty(t, welcome.ID)

	second := tg.join(t)
	welcome = readUntil(t, second, "welcome", nil)
	assert.Equal(t, "world2", welcome.World)
	assert.Equal(t, "[1,1]", tg.statusBody(t))

	// Every seat is taken: the third session is closed with the reason.
	third := tg.join(t)
	_ = third.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := third.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, "no world capacity available", closeErr.Text)
	assert.Equal(t, "[1,1]", tg.statusBody(t))

	// Leaving frees the seat for the next player.
	_ = first.Close()
	require.Eventually(t, func() bool { return tg.statusBody(t) == "[0,1]" }, 5*time.Second, 10*time.Millisecond)

	again := tg.join(t)
	welcome = readUntil(t, again, "welcome", nil)
	assert.Equal(t, "world1", welcome.World)
}

func TestGatewayMetricsInMemory(t *testing.T) {
	cfg := loadConfig(t, `
server_name: gw-test
nb_worlds: 3
nb_players_per_world: 10
metrics_enabled: true
sync_interval: 20ms
`)
	tg := startGateway(t, cfg)
	require.NotNil(t, tg.backend)
	require.Eventually(t, tg.backend.IsReady, 5*time.Second, 10*time.Millisecond)

	// Only the first world is open.
	require.NoError(t, tg.backend.SetOpenWorldCount(context.Background(), "gw-test", 1))

	a := tg.join(t)
	readUntil(t, a, "welcome", nil)
	b := tg.join(t)
	readUntil(t, b, "welcome", nil)
	assert.Equal(t, "[2,0,0]", tg.statusBody(t))

	// The aggregator publishes the counters and pushes the total back.
	readUntil(t, a, "population", func(m message) bool { return m.Total == 2 })

	total, err := tg.backend.TotalPlayers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	distribution, err := tg.backend.WorldDistribution(context.Background(), "gw-test")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0, 0}, distribution)

	// Opening every world spreads new players to the least loaded one.
	require.NoError(t, tg.backend.SetOpenWorldCount(context.Background(), "gw-test", 3))
	c := tg.join(t)
	welcome := readUntil(t, c, "welcome", nil)
	assert.Equal(t, "world2", welcome.World)
}

func TestGatewayMetricsEndpoint(t *testing.T) {
	cfg := loadConfig(t, "nb_worlds: 1\nnb_players_per_world: 1\n")
	tg := startGateway(t, cfg)

	ws := tg.join(t)
	readUntil(t, ws, "welcome", nil)

	scrape := func() string {
		resp, err := http.Get(tg.base + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(body)
	}

	// The accepted counter is bumped after the welcome is written.
	require.Eventually(t, func() bool {
		return strings.Contains(scrape(), `worldgate_assignment_total{result="accepted",world="world1"} 1`)
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, scrape(), `worldgate_world_players{world="world1"} 1`)
}

func TestNewGatewayBadMap(t *testing.T) {
	cfg := loadConfig(t, "map_filepath: /does/not/exist.json\n")
	_, err := newGateway(context.Background(), cfg, zap.NewNop(), nil)
	assert.Error(t, err)
}

func TestStatusCommand(t *testing.T) {
	cfg := loadConfig(t, "nb_worlds: 3\nnb_players_per_world: 2\n")
	tg := startGateway(t, cfg)
	ws := tg.join(t)
	readUntil(t, ws, "welcome", nil)

	out := runCommand(t, "status", "--addr", strings.TrimPrefix(tg.base, "http://"))
	assert.Contains(t, out, "[1 0 0]")
	assert.Contains(t, out, "1 players")

	out = runCommand(t, "status", "--json", "--addr", tg.base)
	var decoded struct {
		Worlds []int `json:"worlds"`
	}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &decoded))
	assert.Equal(t, []int{1, 0, 0}, decoded.Worlds)
}

func TestStatusCommandUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	rootCmd.SetArgs([]string{"status", "--addr", addr})
	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)
	t.Cleanup(resetFlags)

	assert.Error(t, rootCmd.Execute())
}

func TestOpenWorldsCommandValidation(t *testing.T) {
	t.Cleanup(resetFlags)
	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)

	rootCmd.SetArgs([]string{"open-worlds", "--", "-2"})
	assert.Error(t, rootCmd.Execute(), "negative count")

	path := writeConfig(t, "server_name: solo\n")
	rootCmd.SetArgs([]string{"open-worlds", "2", "--config", path})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats_url")
}

func TestServeCommandWithoutConfig(t *testing.T) {
	t.Cleanup(resetFlags)
	t.Setenv(config.EnvConfigPath, "")
	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)

	missing := filepath.Join(t.TempDir(), "missing.yaml")
	rootCmd.SetArgs([]string{"serve", missing, "--default-config", missing})
	err := rootCmd.Execute()
	assert.ErrorIs(t, err, config.ErrConfigMissing)
}

func runCommand(t *testing.T, args ...string) string {
	t.Helper()
	resetFlags()
	t.Cleanup(resetFlags)

	var out strings.Builder
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

// resetFlags clears flag values the package-level commands keep between runs.
func resetFlags() {
	statusAddrs = nil
	statusConfig = ""
	statusJSON = false
	openWorldsConfig = config.DefaultPath
	openWorldsServer = ""
	defaultConfigPath = config.DefaultPath
	embeddedNATS = false
	for _, c := range []*cobra.Command{statusCmd, openWorldsCmd, serveCmd} {
		c.Flags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
	}
}
