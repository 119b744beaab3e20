// Package jailconf loads the per-jail configuration iocage keeps in
// <mountpoint>/config.json, and the plugin files next to it.
package jailconf

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Switch is an on/off property. iocage has written these as "on"/"off",
// "yes"/"no", 0/1 and booleans over its history; all are accepted.
type Switch struct {
	On  bool
	Set bool
}

func (s *Switch) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case nil:
		*s = Switch{}
		return nil
	case bool:
		*s = Switch{On: v, Set: true}
		return nil
	case float64:
		*s = Switch{On: v != 0, Set: true}
		return nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "on", "yes", "true", "1":
			*s = Switch{On: true, Set: true}
			return nil
		case "off", "no", "false", "0", "":
			*s = Switch{On: false, Set: true}
			return nil
		}
	}
	return fmt.Errorf("not an on/off value: %s", string(data))
}

func (s Switch) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.OnOff())
}

// OnOff renders the switch the way `iocage get` does.
func (s Switch) OnOff() string {
	if s.On {
		return "on"
	}
	return "off"
}

// Config is the subset of config.json the listing reads. Keys missing
// from the file keep the defaults set by Defaults.
type Config struct {
	// HostUUID is the jail identity: a UUID or a user-chosen name.
	HostUUID string `json:"host_hostuuid"`
	// IP4Addr is "none" or a comma list of "iface|addr/prefix".
	IP4Addr string `json:"ip4_addr"`
	// IP6Addr has the same shape as IP4Addr.
	IP6Addr    string `json:"ip6_addr"`
	DHCP       Switch `json:"dhcp"`
	Boot       Switch `json:"boot"`
	Type       string `json:"type"`
	Release    string `json:"release"`
	Interfaces string `json:"interfaces"`
	Basejail   Switch `json:"basejail"`
}

// Defaults returns the values used for keys absent from config.json.
func Defaults() Config {
	return Config{
		IP4Addr:    "none",
		IP6Addr:    "none",
		Type:       "jail",
		Release:    NotAvailable,
		Interfaces: "vnet0:bridge0",
	}
}

// NotAvailable fills every configuration-derived column of a corrupt jail.
const NotAvailable = "N/A"

// FirstInterface returns the jail-side name of the first interface pair,
// e.g. "vnet0" for "vnet0:bridge0,vnet1:bridge1".
func (c Config) FirstInterface() string {
	first, _, _ := strings.Cut(c.Interfaces, ",")
	name, _, _ := strings.Cut(first, ":")
	return strings.TrimSpace(name)
}
