package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/truenas/iocage-list/jailconf"
)

// Display forms of a DHCP-configured jail whose address was not read.
const (
	dhcpShort        = "DHCP"
	dhcpNotRunning   = "DHCP (not running)"
	dhcpRequiresRoot = "DHCP (running -- address requires root)"
)

// resolveDHCP replaces the IPv4 columns of a DHCP jail. The lease is only
// readable from inside a running jail, which needs privileges.
func (e *Engine) resolveDHCP(ctx context.Context, rec *Record, conf jailconf.Config) {
	rec.IP4Short = dhcpShort
	switch {
	case rec.Corrupt() || rec.RunState != RunUp:
		rec.IP4Full = dhcpNotRunning
	case !e.caps.Elevated:
		rec.IP4Full = dhcpRequiresRoot
	default:
		iface := jailInterface(conf.FirstInterface())
		addr, err := e.probe.InterfaceAddress(ctx, rec.Identity, iface)
		if err != nil {
			e.logger.Warn("cannot read DHCP lease",
				zap.String("identity", rec.Identity), zap.String("interface", iface), zap.Error(err))
			rec.IP4Short = dhcpShort + "(Network Issue)"
			rec.IP4Full = fmt.Sprintf("DHCP - Network Issue:%v", err)
			return
		}
		rec.IP4Full = iface + "|" + addr
	}
}
