package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShortenIdentity(t *testing.T) {
	tests := []struct {
		name     string
		identity string
		want     string
	}{
		{name: "canonical uuid", identity: "a1b2c3d4-e5f6-4789-abcd-0123456789ab", want: "a1b2c3d4"},
		{name: "compact uuid", identity: "A1B2C3D4E5F64789ABCD0123456789AB", want: "a1b2c3d4"},
		{name: "braced uuid", identity: "{a1b2c3d4-e5f6-4789-abcd-0123456789ab}", want: "a1b2c3d4"},
		{name: "named jail", identity: "web", want: "web"},
		{name: "long name", identity: "database-primary-01", want: "database-primary-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShortenIdentity(tt.identity))
		})
	}
}

func TestNormalizeIPv4(t *testing.T) {
	tests := []struct {
		raw       string
		wantFull  string
		wantShort string
	}{
		{raw: "none", wantFull: "-", wantShort: "-"},
		{raw: "vnet0|10.0.0.5/24", wantFull: "vnet0|10.0.0.5/24", wantShort: "10.0.0.5"},
		{raw: "vnet0|10.0.0.5/24,vnet1|10.0.1.5/24", wantFull: "vnet0|10.0.0.5/24,vnet1|10.0.1.5/24", wantShort: "10.0.0.5,10.0.1.5"},
		{raw: "em0|192.168.1.4", wantFull: "em0|192.168.1.4", wantShort: "192.168.1.4"},
		{raw: "10.0.0.5", wantFull: "10.0.0.5", wantShort: "10.0.0.5"},
		{raw: "N/A", wantFull: "N/A", wantShort: "N/A"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			full, short := NormalizeIPv4(tt.raw)
			assert.Equal(t, tt.wantFull, full)
			assert.Equal(t, tt.wantShort, short)
		})
	}
}

func TestNormalizeIP6(t *testing.T) {
	assert.Equal(t, "-", NormalizeIP6("none"))
	assert.Equal(t, "vnet0|fd00::5/64", NormalizeIP6("vnet0|fd00::5/64"))
}

func TestNormalizeRelease(t *testing.T) {
	tests := []struct {
		raw       string
		wantFull  string
		wantShort string
	}{
		{raw: "13.2-RELEASE-p4", wantFull: "13.2-RELEASE-p4", wantShort: "13.2-RELEASE"},
		{raw: "13.2-RELEASE", wantFull: "13.2-RELEASE", wantShort: "13.2-RELEASE"},
		{raw: "14.0-STABLE", wantFull: "14.0-STABLE", wantShort: "14.0-STABLE"},
		{raw: "12.0--HBSD", wantFull: "12-STABLE-HBSD", wantShort: "12-STABLE"},
		{raw: "N/A", wantFull: "N/A", wantShort: "N/A"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			full, short := NormalizeRelease(tt.raw)
			assert.Equal(t, tt.wantFull, full)
			assert.Equal(t, tt.wantShort, short)
		})
	}
}

func TestParseTemplateOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   string
	}{
		{origin: "tank/iocage/templates/tpl/root@web", want: "tpl"},
		{origin: "tank/iocage/jails/base/root@clone", want: "base"},
		{origin: "tank/iocage/releases/13.2-RELEASE/root@web", want: "-"},
		{origin: "tank/iocage/releases/14.0-STABLE/root@web", want: "-"},
		{origin: "-", want: "-"},
		{origin: "", want: "-"},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTemplateOrigin(tt.origin))
		})
	}
}

func TestPortalAddress(t *testing.T) {
	assert.Equal(t, "10.0.0.5", PortalAddress("vnet0|10.0.0.5/24"))
	assert.Equal(t, "192.168.1.20", PortalAddress("epair0b|192.168.1.20"))
	assert.Equal(t, "10.0.0.5", PortalAddress("10.0.0.5"))
	assert.Equal(t, "DHCP", PortalAddress("DHCP (not running)"))
	assert.Equal(t, "DHCP", PortalAddress("DHCP - Network Issue:boom"))
}

func TestJailInterface(t *testing.T) {
	assert.Equal(t, "epair0b", jailInterface("vnet0"))
	assert.Equal(t, "epair1b", jailInterface("vnet1"))
	assert.Equal(t, "em0", jailInterface("em0"))
	assert.Equal(t, "vnet", jailInterface("vnet"))
}

func TestViewFull(t *testing.T) {
	assert.True(t, ViewFull.Full())
	assert.True(t, ViewPlugin.Full())
	assert.False(t, ViewShort.Full())
	assert.False(t, ViewQuick.Full())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindContainer, KindOf("jail"))
	assert.Equal(t, KindPluginV2, KindOf("pluginv2"))
	assert.Equal(t, KindUnknown, KindOf("vm"))
	assert.True(t, KindPlugin.IsPlugin())
	assert.False(t, KindTemplate.IsPlugin())
}
