package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truenas/iocage-list/reconcile"
)

var records = []reconcile.Record{
	{Identity: "web", Type: "jail", RunState: reconcile.RunUp, FullRelease: "13.2-RELEASE-p4", ConfigState: reconcile.ConfigOK},
	{Identity: "db", Type: "jail", RunState: reconcile.RunDown, FullRelease: "13.2-RELEASE-p4", ConfigState: reconcile.ConfigOK},
	{Identity: "cloud", Type: "pluginv2", RunState: reconcile.RunUp, FullRelease: "14.0-RELEASE", ConfigState: reconcile.ConfigOK},
	{Identity: "broken", Type: "N/A", RunState: reconcile.RunCorruptUnknown, FullRelease: "N/A", ConfigState: reconcile.ConfigCorrupt},
}

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg, records)

	count, err := testutil.GatherAndCount(reg, "iocage_jail_up")
	require.NoError(t, err)
	assert.Equal(t, 3, count, "corrupt jails have no up gauge")

	count, err = testutil.GatherAndCount(reg, "iocage_jails")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestWriteTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iocage.prom")
	require.NoError(t, WriteTextfile(path, records))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, `iocage_jail_up{name="web",release="13.2-RELEASE-p4"} 1`)
	assert.Contains(t, text, `iocage_jail_up{name="db",release="13.2-RELEASE-p4"} 0`)
	assert.Contains(t, text, `iocage_jails{state="up",type="jail"} 1`)
	assert.Contains(t, text, `iocage_jails{state="CORRUPT",type="N/A"} 1`)
	assert.Contains(t, text, `iocage_jails_corrupt 1`)
	assert.NotContains(t, text, `name="broken"`)
}
