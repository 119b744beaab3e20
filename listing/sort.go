// Package listing orders reconciled records, projects them onto the
// columns of a view and renders the result.
package listing

import (
	"cmp"
	"net/netip"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/truenas/iocage-list/reconcile"
)

// ListKind groups the sort keys valid for one kind of listing.
type ListKind string

const (
	ListFull    ListKind = "list-full"
	ListShort   ListKind = "list-short"
	ListRelease ListKind = "list-release"
	ListQuick   ListKind = "list-quick"
)

// KindFor returns the sort key group used by a view.
func KindFor(view reconcile.View) ListKind {
	switch view {
	case reconcile.ViewFull, reconcile.ViewPlugin:
		return ListFull
	case reconcile.ViewQuick:
		return ListQuick
	}
	return ListShort
}

// Key extracts a column from a record and orders two of its values.
type Key struct {
	Name    string
	Value   func(reconcile.Record) string
	Compare func(a, b string) int
}

// KeyResolver maps sort key names to keys, per listing kind.
type KeyResolver struct {
	keys     map[ListKind]map[string]Key
	defaults map[ListKind]string
	logger   *zap.Logger
}

// NewKeyResolver returns a resolver holding the built-in keys.
func NewKeyResolver(logger *zap.Logger) *KeyResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &KeyResolver{
		keys: make(map[ListKind]map[string]Key),
		defaults: map[ListKind]string{
			ListFull:    "name",
			ListShort:   "name",
			ListQuick:   "name",
			ListRelease: "release",
		},
		logger: logger,
	}

	name := Key{Name: "name", Value: func(rec reconcile.Record) string { return rec.DisplayIdentity }, Compare: NaturalCompare}
	uuid := name
	uuid.Name = "uuid"
	jid := Key{Name: "jid", Value: func(rec reconcile.Record) string { return rec.JID }, Compare: compareJID}
	state := Key{Name: "state", Value: func(rec reconcile.Record) string { return string(rec.RunState) }, Compare: strings.Compare}

	for _, k := range []Key{
		jid, name, uuid, state,
		{Name: "boot", Value: func(rec reconcile.Record) string { return rec.Boot }, Compare: strings.Compare},
		{Name: "type", Value: func(rec reconcile.Record) string { return rec.Type }, Compare: strings.Compare},
		{Name: "release", Value: func(rec reconcile.Record) string { return rec.FullRelease }, Compare: CompareRelease},
		{Name: "ip4", Value: func(rec reconcile.Record) string { return rec.IP4Full }, Compare: compareAddress},
		{Name: "ip6", Value: func(rec reconcile.Record) string { return rec.IP6 }, Compare: compareAddress},
		{Name: "template", Value: func(rec reconcile.Record) string { return rec.TemplateOrigin }, Compare: NaturalCompare},
		{Name: "portal", Value: func(rec reconcile.Record) string { return rec.AdminPortal }, Compare: strings.Compare},
	} {
		r.Register(ListFull, k)
	}

	for _, k := range []Key{
		jid, name, uuid, state,
		{Name: "release", Value: func(rec reconcile.Record) string { return rec.ShortRelease }, Compare: CompareRelease},
		{Name: "ip4", Value: func(rec reconcile.Record) string { return rec.IP4Short }, Compare: compareAddress},
	} {
		r.Register(ListShort, k)
	}

	for _, k := range []Key{
		name, uuid,
		{Name: "ip4", Value: func(rec reconcile.Record) string { return rec.IP4Full }, Compare: compareAddress},
	} {
		r.Register(ListQuick, k)
	}

	r.Register(ListRelease, Key{Name: "release", Value: func(rec reconcile.Record) string { return rec.FullRelease }, Compare: CompareRelease})
	r.Register(ListRelease, name)

	return r
}

// Register adds or replaces a key for a listing kind.
func (r *KeyResolver) Register(kind ListKind, key Key) {
	if r.keys[kind] == nil {
		r.keys[kind] = make(map[string]Key)
	}
	r.keys[kind][key.Name] = key
}

// Resolve returns the named key. An empty name selects the kind's default;
// an unknown one falls back to it with a warning.
func (r *KeyResolver) Resolve(kind ListKind, name string) Key {
	keys := r.keys[kind]
	if key, ok := keys[name]; ok {
		return key
	}
	fallback := r.defaults[kind]
	if fallback == "" {
		fallback = "name"
	}
	if name != "" {
		r.logger.Warn("unknown sort key, sorting by "+fallback,
			zap.String("key", name), zap.String("list", string(kind)))
	}
	return keys[fallback]
}

// Sort orders records in place by the named key. Equal values keep their
// input order.
func (r *KeyResolver) Sort(kind ListKind, name string, records []reconcile.Record) {
	key := r.Resolve(kind, name)
	if key.Value == nil {
		return
	}
	slices.SortStableFunc(records, func(a, b reconcile.Record) int {
		return key.Compare(key.Value(a), key.Value(b))
	})
}

// NaturalCompare orders strings with embedded numbers by numeric value, so
// "jail2" sorts before "jail10".
func NaturalCompare(a, b string) int {
	for a != "" && b != "" {
		var ca, cb string
		ca, a = nextChunk(a)
		cb, b = nextChunk(b)
		if c := compareChunk(ca, cb); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(a), len(b))
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// nextChunk splits off the leading run of digits or non-digits.
func nextChunk(s string) (chunk, rest string) {
	digits := isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == digits {
		i++
	}
	return s[:i], s[i:]
}

func compareChunk(a, b string) int {
	da, db := isDigit(a[0]), isDigit(b[0])
	switch {
	case da && db:
		a = strings.TrimLeft(a, "0")
		b = strings.TrimLeft(b, "0")
		if c := cmp.Compare(len(a), len(b)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	case da:
		return -1
	case db:
		return 1
	}
	return strings.Compare(a, b)
}

// CompareRelease orders release names by version. Values that do not
// start with a version number (N/A, -) sort last.
func CompareRelease(a, b string) int {
	va, vb := a != "" && isDigit(a[0]), b != "" && isDigit(b[0])
	if va != vb {
		if va {
			return -1
		}
		return 1
	}
	return NaturalCompare(a, b)
}

// compareJID orders running jails by numeric JID ahead of stopped ones.
func compareJID(a, b string) int {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return cmp.Compare(na, nb)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}

// compareAddress orders address columns by their first address. Columns
// holding no address (-, DHCP, N/A) sort last.
func compareAddress(a, b string) int {
	aa, okA := firstAddress(a)
	ab, okB := firstAddress(b)
	switch {
	case okA && okB:
		return aa.Compare(ab)
	case okA:
		return -1
	case okB:
		return 1
	}
	return strings.Compare(a, b)
}

func firstAddress(column string) (netip.Addr, bool) {
	item, _, _ := strings.Cut(column, ",")
	if _, tagged, ok := strings.Cut(item, "|"); ok {
		item = tagged
	}
	item, _, _ = strings.Cut(item, "/")
	addr, err := netip.ParseAddr(strings.TrimSpace(item))
	return addr, err == nil
}
