package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	"imgurcomments/internal/imgurtest"
	"imgurcomments/pkg/auth"
	"imgurcomments/pkg/config"
	"imgurcomments/pkg/imgur"
)

func TestWriteComments(t *testing.T) {
	comments := []imgur.Comment{
		{ID: 2, ImageID: "abc", Text: "<b>newer</b>", Datetime: 1100},
		{ID: 1, ImageID: "abc", Text: "older", Datetime: 1000},
	}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeComments(&buf, comments, "json"))

		assert.Contains(t, buf.String(), `"comment": "<b>newer</b>"`)
		var decoded []imgur.Comment
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, comments, decoded)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeComments(&buf, comments, "yaml"))

		var decoded []imgur.Comment
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, comments, decoded)
		assert.Contains(t, buf.String(), "image_id: abc")
	})

	t.Run("empty history is an empty array", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeComments(&buf, nil, ""))
		assert.Equal(t, "[]\n", buf.String())
	})

	t.Run("unknown format", func(t *testing.T) {
		err := writeComments(&bytes.Buffer{}, comments, "xml")
		assert.Error(t, err)
	})
}

func TestIsAccountID(t *testing.T) {
	assert.True(t, isAccountID("1234"))
	assert.False(t, isAccountID(""))
	assert.False(t, isAccountID("someone"))
	assert.False(t, isAccountID("12a4"))
}

func TestChangedFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("client-id", "", "")
	cmd.Flags().Int("page-size", 0, "")
	cmd.Flags().Bool("no-cache", false, "")
	cmd.Flags().String("cache-dir", "", "")
	cmd.Flags().String("unrelated", "", "")

	require.NoError(t, cmd.ParseFlags([]string{"--client-id", "abc123def", "--page-size", "25", "--no-cache", "--unrelated", "x"}))

	flags := changedFlags(cmd)
	assert.Equal(t, map[string]interface{}{
		"client-id": "abc123def",
		"page-size": 25,
		"no-cache":  true,
	}, flags)
}

func TestResolveClientID(t *testing.T) {
	manager, store := auth.NewMockManager()
	require.NoError(t, store.Store(&auth.Credential{Name: auth.DefaultName, ClientID: "stored-default", LastModified: time.Now()}))
	require.NoError(t, store.Store(&auth.Credential{Name: "backup", ClientID: "stored-backup", LastModified: time.Now()}))

	tests := []struct {
		name       string
		flagID     string
		credential string
		configID   string
		manager    *auth.Manager
		want       string
		wantErr    bool
	}{
		{name: "flag wins", flagID: "from-flag", credential: "backup", configID: "from-config", manager: manager, want: "from-flag"},
		{name: "named credential", credential: "backup", configID: "from-config", manager: manager, want: "stored-backup"},
		{name: "config or environment", configID: "from-config", manager: manager, want: "from-config"},
		{name: "stored default", manager: manager, want: "stored-default"},
		{name: "unknown credential", credential: "missing", manager: manager, wantErr: true},
		{name: "nothing configured", manager: auth.NewManagerWithStores(), wantErr: true},
		{name: "no store available", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clientID, credentialName = tt.flagID, tt.credential
			t.Cleanup(func() { clientID, credentialName = "", "" })

			cfg := config.DefaultConfig()
			cfg.Imgur.ClientID = tt.configID

			got, err := resolveClientID(cfg, tt.manager)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDumpCommand(t *testing.T) {
	server := imgurtest.NewMockImgurServer()
	defer server.Close()
	server.AddAccount("someone", 1234, imgurtest.Comments(3, 2000))
	server.RequireClientID("abc123def")
	keyring.MockInit()

	home := t.TempDir()
	cacheDir := filepath.Join(home, "cache")
	out := filepath.Join(home, "out.json")

	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("IMGURCOMMENTS_PASSPHRASE", "test-passphrase")
	t.Setenv("IMGURCOMMENTS_BASE_URL", server.URL())
	t.Setenv("IMGURCOMMENTS_CLIENT_ID", "abc123def")
	t.Setenv("IMGURCOMMENTS_CACHE_DIR", cacheDir)

	rootCmd.SetArgs([]string{"dump", "someone", "--output", out, "--quiet"})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var dumped []imgur.Comment
	require.NoError(t, json.Unmarshal(data, &dumped))
	require.Len(t, dumped, 3)
	assert.Greater(t, dumped[0].Datetime, dumped[2].Datetime)

	cached, err := os.ReadFile(filepath.Join(cacheDir, "1234.json"))
	require.NoError(t, err)
	var history []imgur.Comment
	require.NoError(t, json.Unmarshal(cached, &history))
	assert.Equal(t, dumped, history)
}
