package jailconf

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truenas/iocage-list/command"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newLoader(t *testing.T) *Loader {
	t.Helper()
	loader, err := NewLoader()
	require.NoError(t, err)
	return loader
}

func TestSwitchUnmarshal(t *testing.T) {
	tests := []struct {
		input string
		want  Switch
	}{
		{`"on"`, Switch{On: true, Set: true}},
		{`"off"`, Switch{On: false, Set: true}},
		{`"yes"`, Switch{On: true, Set: true}},
		{`"no"`, Switch{On: false, Set: true}},
		{`1`, Switch{On: true, Set: true}},
		{`0`, Switch{On: false, Set: true}},
		{`true`, Switch{On: true, Set: true}},
		{`null`, Switch{}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var s Switch
			require.NoError(t, json.Unmarshal([]byte(tt.input), &s))
			assert.Equal(t, tt.want, s)
		})
	}

	var s Switch
	assert.Error(t, json.Unmarshal([]byte(`"maybe"`), &s))
}

func TestSwitchMarshal(t *testing.T) {
	data, err := json.Marshal(Switch{On: true, Set: true})
	require.NoError(t, err)
	assert.Equal(t, `"on"`, string(data))
}

func TestFirstInterface(t *testing.T) {
	assert.Equal(t, "vnet0", Config{Interfaces: "vnet0:bridge0,vnet1:bridge1"}.FirstInterface())
	assert.Equal(t, "em0", Config{Interfaces: "em0"}.FirstInterface())
}

func TestLoaderLoad(t *testing.T) {
	mountpoint := t.TempDir()
	writeFile(t, Path(mountpoint), `{
		"host_hostuuid": "web",
		"ip4_addr": "vnet0|10.0.0.5/24",
		"dhcp": 0,
		"boot": "on",
		"type": "jail",
		"release": "13.2-RELEASE-p4",
		"basejail": "yes",
		"notes": "ignored"
	}`)

	result := newLoader(t).Load(mountpoint)
	require.Equal(t, StatusOK, result.Status, "reason: %v", result.Reason)
	assert.Equal(t, "web", result.Config.HostUUID)
	assert.Equal(t, "vnet0|10.0.0.5/24", result.Config.IP4Addr)
	assert.Equal(t, "none", result.Config.IP6Addr)
	assert.False(t, result.Config.DHCP.On)
	assert.True(t, result.Config.Boot.On)
	assert.True(t, result.Config.Basejail.On)
	assert.Equal(t, "vnet0:bridge0", result.Config.Interfaces)
	assert.Equal(t, "13.2-RELEASE-p4", result.Config.Release)
}

func TestLoaderMissingFile(t *testing.T) {
	result := newLoader(t).Load(t.TempDir())
	assert.Equal(t, StatusCorrupt, result.Status)
	assert.True(t, result.Missing())
	assert.True(t, errors.Is(result.Reason, ErrMissing))
}

func TestLoaderCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "truncated json", content: `{"host_hostuuid": "web", "ip4_addr": `},
		{name: "missing identity", content: `{"ip4_addr": "none"}`},
		{name: "empty identity", content: `{"host_hostuuid": ""}`},
		{name: "wrong type", content: `{"host_hostuuid": "web", "release": 13}`},
		{name: "bad switch", content: `{"host_hostuuid": "web", "dhcp": "sometimes"}`},
		{name: "not an object", content: `["web"]`},
	}

	loader := newLoader(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mountpoint := t.TempDir()
			writeFile(t, Path(mountpoint), tt.content)

			result := loader.Load(mountpoint)
			assert.Equal(t, StatusCorrupt, result.Status)
			assert.Error(t, result.Reason)
			assert.False(t, result.Missing())
			assert.Equal(t, "CORRUPT", result.Status.String())
		})
	}
}

func TestLoadPortal(t *testing.T) {
	mountpoint := t.TempDir()

	_, err := LoadPortal(mountpoint)
	assert.ErrorIs(t, err, ErrNoPortal)

	writeFile(t, filepath.Join(mountpoint, "plugin", "ui.json"), `{
		// admin UI
		"adminportal": "http://%%IP%%:%%PORT%%/",
		"adminportal_placeholders": {"%%PORT%%": "config.port",},
	}`)

	portal, err := LoadPortal(mountpoint)
	require.NoError(t, err)
	assert.Equal(t, "http://%%IP%%:%%PORT%%/", portal.AdminPortal)
	assert.Equal(t, map[string]string{"%%PORT%%": "config.port"}, portal.Placeholders)
}

func TestLoadPortalWithoutURL(t *testing.T) {
	mountpoint := t.TempDir()
	writeFile(t, filepath.Join(mountpoint, "plugin", "ui.json"), `{"version": 2}`)

	_, err := LoadPortal(mountpoint)
	assert.ErrorIs(t, err, ErrNoPortal)
}

func TestSettingsLookup(t *testing.T) {
	mountpoint := t.TempDir()
	writeFile(t, filepath.Join(mountpoint, "plugin", "settings.json"), `{
		"config": {"port": 8443, "host": "files.local", "tls": {"on": true}}
	}`)
	settings := NewSettings(command.NewFakeRunner(), "")
	ctx := context.Background()

	value, err := settings.Get(ctx, "files", mountpoint, []string{"config", "port"})
	require.NoError(t, err)
	assert.Equal(t, "8443", value)

	value, err = settings.Get(ctx, "files", mountpoint, []string{"config", "host"})
	require.NoError(t, err)
	assert.Equal(t, "files.local", value)

	value, err = settings.Get(ctx, "files", mountpoint, []string{"config", "tls"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"on": true}`, value)

	_, err = settings.Get(ctx, "files", mountpoint, []string{"config", "missing"})
	assert.ErrorIs(t, err, ErrPropertyNotFound)

	_, err = settings.Get(ctx, "files", mountpoint, []string{"config", "port", "deeper"})
	assert.ErrorIs(t, err, ErrPropertyNotFound)

	_, err = settings.Get(ctx, "files", t.TempDir(), []string{"config"})
	assert.ErrorIs(t, err, ErrPropertyNotFound)
}

func TestSettingsServiceget(t *testing.T) {
	mountpoint := t.TempDir()
	writeFile(t, filepath.Join(mountpoint, "plugin", "settings.json"),
		`{"serviceget": "/usr/local/bin/nextcloudget"}`)

	runner := command.NewFakeRunner().
		On("jexec ioc-cloud_example /usr/local/bin/nextcloudget config.port", "8080\n")
	settings := NewSettings(runner, "jexec")
	ctx := context.Background()

	value, err := settings.Get(ctx, "cloud.example", mountpoint, []string{"config", "port"})
	require.NoError(t, err)
	assert.Equal(t, "8080", value)
	assert.Equal(t, 1, runner.Count("jexec ioc-cloud_example /usr/local/bin/nextcloudget config.port"))

	_, err = settings.Get(ctx, "cloud.example", mountpoint, []string{"config", "admin"})
	var cmdErr *command.Error
	assert.ErrorAs(t, err, &cmdErr)
}
