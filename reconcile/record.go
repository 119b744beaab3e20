// Package reconcile merges the three sources of truth about a jail (its
// dataset, its config.json and the kernel jail table) into one Record per
// jail.
package reconcile

import "github.com/truenas/iocage-list/jailconf"

// View selects how much detail a listing carries.
type View string

const (
	ViewShort  View = "short"
	ViewFull   View = "full"
	ViewPlugin View = "plugin"
	ViewQuick  View = "quick"
)

// Full reports whether identities are shown untruncated and every column
// is produced.
func (v View) Full() bool {
	return v == ViewFull || v == ViewPlugin
}

// ConfigState tells whether config.json could be used.
type ConfigState string

const (
	ConfigOK      ConfigState = "OK"
	ConfigCorrupt ConfigState = "CORRUPT"
)

// RunState is the jail's kernel state as shown in the STATE column.
type RunState string

const (
	RunUp   RunState = "up"
	RunDown RunState = "down"
	// RunCorruptUnknown is used when the configuration is corrupt and the
	// kernel was never asked.
	RunCorruptUnknown RunState = "CORRUPT"
)

// Kind classifies a jail by its configured type.
type Kind string

const (
	KindContainer Kind = "jail"
	KindTemplate  Kind = "template"
	KindPlugin    Kind = "plugin"
	KindPluginV2  Kind = "pluginv2"
	KindUnknown   Kind = jailconf.NotAvailable
)

// KindOf maps the config.json "type" value to a Kind.
func KindOf(t string) Kind {
	switch Kind(t) {
	case KindContainer, KindTemplate, KindPlugin, KindPluginV2:
		return Kind(t)
	}
	return KindUnknown
}

// IsPlugin is true for both plugin generations.
func (k Kind) IsPlugin() bool {
	return k == KindPlugin || k == KindPluginV2
}

// None is the placeholder shown for absent values.
const None = "-"

// Record is the reconciled view of one jail. It is built once per listing
// and never modified afterwards.
type Record struct {
	Identity        string      `json:"identity"`
	DisplayIdentity string      `json:"name"`
	Mountpoint      string      `json:"mountpoint"`
	ConfigState     ConfigState `json:"config_state"`
	CorruptReason   string      `json:"corrupt_reason,omitempty"`
	Kind            Kind        `json:"kind"`
	Type            string      `json:"type"`
	Boot            string      `json:"boot"`
	FullRelease     string      `json:"release"`
	ShortRelease    string      `json:"short_release"`
	IP4Full         string      `json:"ip4"`
	IP4Short        string      `json:"ip4_short"`
	IP6             string      `json:"ip6"`
	DHCP            bool        `json:"dhcp"`
	RunState        RunState    `json:"state"`
	JID             string      `json:"jid"`
	TemplateOrigin  string      `json:"template"`
	AdminPortal     string      `json:"admin_portal,omitempty"`
}

// Corrupt reports whether the record was built from placeholders.
func (r Record) Corrupt() bool {
	return r.ConfigState == ConfigCorrupt
}
