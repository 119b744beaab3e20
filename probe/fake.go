package probe

import (
	"context"
	"errors"
	"sync"
)

// Fake is an in-memory Probe. Jails absent from Running are down.
type Fake struct {
	mu        sync.Mutex
	Running   map[string]string
	Addresses map[string]string
	Errors    map[string]error
	Broken    map[string]error
	calls     map[string]int
}

func NewFake() *Fake {
	return &Fake{
		Running:   make(map[string]string),
		Addresses: make(map[string]string),
		Errors:    make(map[string]error),
		Broken:    make(map[string]error),
		calls:     make(map[string]int),
	}
}

// Start marks identity as running with jid.
func (f *Fake) Start(identity, jid string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Running[identity] = jid
	return f
}

// Address sets the inet address InterfaceAddress returns for identity.
func (f *Fake) Address(identity, addr string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Addresses[identity] = addr
	return f
}

// Fail makes InterfaceAddress fail for identity.
func (f *Fake) Fail(identity string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[identity] = err
	return f
}

// Break makes Registry report a probe failure for identity.
func (f *Fake) Break(identity string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Broken[identity] = err
	return f
}

// Calls returns how many probes of any kind identity received.
func (f *Fake) Calls(identity string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[identity]
}

func (f *Fake) Registry(ctx context.Context, identity string) Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[identity]++
	if err, ok := f.Broken[identity]; ok {
		return Failed(err)
	}
	if jid, ok := f.Running[identity]; ok {
		return Up(jid)
	}
	return Down()
}

func (f *Fake) InterfaceAddress(ctx context.Context, identity, iface string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[identity]++
	if err, ok := f.Errors[identity]; ok {
		return "", err
	}
	if addr, ok := f.Addresses[identity]; ok {
		return addr, nil
	}
	return "", errors.New("interface has no inet address")
}
