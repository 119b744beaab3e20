package reconcile

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/truenas/iocage-list/command"
	"github.com/truenas/iocage-list/jailconf"
)

const portalRequiresRoot = "Admin Portal requires root"

// resolvePortal expands a plugin's admin portal URL. Placeholders are
// substituted in token order. A placeholder whose lookup fails leaves the
// token in place, except when the plugin's own tooling failed: then the
// whole URL is replaced by its output, or a notice when that output is
// not visible to the caller.
func (e *Engine) resolvePortal(ctx context.Context, rec Record) string {
	portal, err := jailconf.LoadPortal(rec.Mountpoint)
	if err != nil {
		if !errors.Is(err, jailconf.ErrNoPortal) {
			e.logger.Warn("cannot read admin portal", zap.String("identity", rec.Identity), zap.Error(err))
		}
		return None
	}

	url := strings.ReplaceAll(portal.AdminPortal, jailconf.IPToken, PortalAddress(rec.IP4Full))
	if e.plugins == nil {
		return url
	}

	tokens := make([]string, 0, len(portal.Placeholders))
	for token := range portal.Placeholders {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	for _, token := range tokens {
		prop := portal.Placeholders[token]
		value, err := e.plugins.Get(ctx, rec.Identity, rec.Mountpoint, strings.Split(prop, "."))
		if err != nil {
			var cmdErr *command.Error
			if errors.As(err, &cmdErr) {
				if e.caps.Elevated {
					return strings.Join(cmdErr.Output, " ")
				}
				return portalRequiresRoot
			}
			e.logger.Debug("admin portal placeholder unresolved",
				zap.String("identity", rec.Identity), zap.String("placeholder", token), zap.Error(err))
			continue
		}
		url = strings.ReplaceAll(url, token, value)
	}
	return url
}
