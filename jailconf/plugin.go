package jailconf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/truenas/iocage-list/command"
	"github.com/truenas/iocage-list/probe"
)

var (
	// ErrNoPortal means the plugin does not declare an admin portal.
	ErrNoPortal = errors.New("plugin has no admin portal")

	// ErrPropertyNotFound means a plugin property path does not resolve.
	ErrPropertyNotFound = errors.New("plugin property not found")
)

// IPToken is replaced by the jail address in an admin portal template.
const IPToken = "%%IP%%"

// Portal is the admin portal section of plugin/ui.json.
type Portal struct {
	// AdminPortal is a URL template containing IPToken.
	AdminPortal string `json:"adminportal"`
	// Placeholders maps a literal token in AdminPortal to a dotted
	// plugin property path.
	Placeholders map[string]string `json:"adminportal_placeholders"`
}

// LoadPortal reads <mountpoint>/plugin/ui.json. Plugin authors write these
// by hand, so comments and trailing commas are tolerated.
func LoadPortal(mountpoint string) (Portal, error) {
	path := filepath.Join(mountpoint, "plugin", "ui.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Portal{}, ErrNoPortal
		}
		return Portal{}, fmt.Errorf("read %s: %w", path, err)
	}

	var portal Portal
	if err := json.Unmarshal(jsonc.ToJSON(data), &portal); err != nil {
		return Portal{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if portal.AdminPortal == "" {
		return Portal{}, ErrNoPortal
	}
	return portal, nil
}

// PluginProperties resolves dotted property paths for a plugin jail.
// Implementations return ErrPropertyNotFound for paths that do not exist
// and *command.Error when the plugin's own tooling failed.
type PluginProperties interface {
	Get(ctx context.Context, identity, mountpoint string, path []string) (string, error)
}

// Settings reads plugin/settings.json. When it names a serviceget
// command the property is asked from the running plugin, otherwise it is
// looked up in the settings document itself.
type Settings struct {
	runner command.Runner
	jexec  string
}

func NewSettings(runner command.Runner, jexec string) *Settings {
	if jexec == "" {
		jexec = "jexec"
	}
	return &Settings{runner: runner, jexec: jexec}
}

func (s *Settings) Get(ctx context.Context, identity, mountpoint string, path []string) (string, error) {
	doc, err := loadSettings(mountpoint)
	if err != nil {
		return "", err
	}

	if serviceget, ok := doc["serviceget"].(string); ok && serviceget != "" {
		out, err := s.runner.Run(ctx, s.jexec, probe.JailName(identity), serviceget, strings.Join(path, "."))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(out)), nil
	}

	return lookup(doc, path)
}

func loadSettings(mountpoint string) (map[string]interface{}, error) {
	path := filepath.Join(mountpoint, "plugin", "settings.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrPropertyNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

func lookup(doc map[string]interface{}, path []string) (string, error) {
	var current interface{} = doc
	for _, key := range path {
		m, ok := current.(map[string]interface{})
		if !ok {
			return "", fmt.Errorf("%s: %w", strings.Join(path, "."), ErrPropertyNotFound)
		}
		if current, ok = m[key]; !ok {
			return "", fmt.Errorf("%s: %w", strings.Join(path, "."), ErrPropertyNotFound)
		}
	}

	switch v := current.(type) {
	case string:
		return v, nil
	case nil:
		return "", nil
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return fmt.Sprint(current), nil
}
