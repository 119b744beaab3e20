package jailconf

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrMissing marks a corrupt result caused by an absent config.json.
var ErrMissing = errors.New("configuration file is missing")

// Status tells whether a configuration could be used.
type Status int

const (
	StatusOK Status = iota
	StatusCorrupt
)

func (s Status) String() string {
	if s == StatusCorrupt {
		return "CORRUPT"
	}
	return "OK"
}

// Result is the outcome of loading one jail's configuration. Config is
// only meaningful when Status is StatusOK; Reason is only set when it is
// StatusCorrupt.
type Result struct {
	Status Status
	Config Config
	Reason error
}

// Missing reports whether the result is corrupt because the file is absent.
func (r Result) Missing() bool {
	return r.Status == StatusCorrupt && errors.Is(r.Reason, ErrMissing)
}

const configSchema = `{
  "type": "object",
  "required": ["host_hostuuid"],
  "properties": {
    "host_hostuuid": {"type": "string", "minLength": 1},
    "ip4_addr":      {"type": "string"},
    "ip6_addr":      {"type": "string"},
    "release":       {"type": "string"},
    "type":          {"type": "string"},
    "interfaces":    {"type": "string"},
    "dhcp":          {"type": ["string", "integer", "boolean"]},
    "boot":          {"type": ["string", "integer", "boolean"]},
    "basejail":      {"type": ["string", "integer", "boolean"]}
  }
}`

// Loader reads and validates config.json files.
type Loader struct {
	schema *gojsonschema.Schema
}

// NewLoader compiles the configuration schema.
func NewLoader() (*Loader, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(configSchema))
	if err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}
	return &Loader{schema: schema}, nil
}

// Path returns where a jail's configuration lives.
func Path(mountpoint string) string {
	return filepath.Join(mountpoint, "config.json")
}

// Load never fails: every problem is reported as a corrupt Result.
func (l *Loader) Load(mountpoint string) Result {
	data, err := os.ReadFile(Path(mountpoint))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return corrupt(fmt.Errorf("%s: %w", Path(mountpoint), ErrMissing))
		}
		return corrupt(fmt.Errorf("read %s: %w", Path(mountpoint), err))
	}
	return l.Parse(data)
}

// Parse validates and decodes config.json contents.
func (l *Loader) Parse(data []byte) Result {
	validation, err := l.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return corrupt(fmt.Errorf("parse config: %w", err))
	}
	if !validation.Valid() {
		problems := make([]string, 0, len(validation.Errors()))
		for _, e := range validation.Errors() {
			problems = append(problems, e.String())
		}
		return corrupt(fmt.Errorf("invalid config: %s", strings.Join(problems, "; ")))
	}

	conf := Defaults()
	if err := json.Unmarshal(data, &conf); err != nil {
		return corrupt(fmt.Errorf("decode config: %w", err))
	}
	return Result{Status: StatusOK, Config: conf}
}

func corrupt(reason error) Result {
	return Result{Status: StatusCorrupt, Reason: reason}
}
