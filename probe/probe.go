// Package probe asks the running kernel about jails: whether one is
// running and which address an interface inside it holds.
package probe

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/truenas/iocage-list/command"
)

// State is the outcome of a kernel registry query.
type State int

const (
	StateDown State = iota
	StateUp
	StateError
)

func (s State) String() string {
	switch s {
	case StateUp:
		return "up"
	case StateError:
		return "error"
	}
	return "down"
}

// Result is Up with a JID, Down, or Error with the failure.
type Result struct {
	State State
	JID   string
	Err   error
}

func Up(jid string) Result { return Result{State: StateUp, JID: jid} }

func Down() Result { return Result{State: StateDown, JID: "-"} }

func Failed(err error) Result { return Result{State: StateError, JID: "-", Err: err} }

// Running is true only for an Up result.
func (r Result) Running() bool { return r.State == StateUp }

// Probe is the capability the reconciler needs from the host.
type Probe interface {
	// Registry looks the jail up in the kernel jail table.
	Registry(ctx context.Context, identity string) Result
	// InterfaceAddress returns the inet address of iface inside the jail.
	InterfaceAddress(ctx context.Context, identity, iface string) (string, error)
}

// JailName is the kernel name iocage gives a jail: dots are not allowed
// there, so they become underscores.
func JailName(identity string) string {
	return "ioc-" + strings.ReplaceAll(identity, ".", "_")
}

// Exec implements Probe with jls(8) and jexec(8).
type Exec struct {
	runner command.Runner
	jls    string
	jexec  string
}

// NewExec returns a probe using the given binaries; empty names fall back
// to "jls" and "jexec".
func NewExec(runner command.Runner, jls, jexec string) *Exec {
	if jls == "" {
		jls = "jls"
	}
	if jexec == "" {
		jexec = "jexec"
	}
	return &Exec{runner: runner, jls: jls, jexec: jexec}
}

func (p *Exec) Registry(ctx context.Context, identity string) Result {
	out, err := p.runner.Run(ctx, p.jls, "-j", JailName(identity))
	if err != nil {
		if command.ExitCode(err) > 0 {
			return Down()
		}
		return Failed(err)
	}

	// The header is "JID IP Address Hostname Path"; the JID is the
	// first field after it.
	fields := strings.Fields(string(out))
	if len(fields) < 6 {
		return Failed(fmt.Errorf("unexpected jls output for %s: %q", JailName(identity), string(out)))
	}
	return Up(fields[5])
}

func (p *Exec) InterfaceAddress(ctx context.Context, identity, iface string) (string, error) {
	out, err := p.runner.Run(ctx, p.jexec, JailName(identity), "ifconfig", iface, "inet")
	if err != nil {
		return "", err
	}
	return parseInet(out)
}

// parseInet takes the address from the third line of `ifconfig <if> inet`,
// which is the first inet line after the flags and options lines.
func parseInet(out []byte) (string, error) {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) < 3 {
		return "", fmt.Errorf("no inet line in ifconfig output")
	}
	fields := strings.Fields(lines[2])
	if len(fields) < 2 {
		return "", fmt.Errorf("malformed inet line %q", lines[2])
	}
	return fields[1], nil
}
