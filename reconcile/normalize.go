package reconcile

import (
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ShortenIdentity returns the first 8 characters of the canonical form of
// a UUID identity. Named jails are returned unchanged.
func ShortenIdentity(identity string) string {
	u, err := uuid.Parse(identity)
	if err != nil {
		return identity
	}
	return u.String()[:8]
}

// NormalizeIPv4 turns an ip4_addr value ("none" or "iface|addr/prefix,...")
// into its full and short display forms. Values without interface tags
// are shown as-is in both.
func NormalizeIPv4(raw string) (full, short string) {
	if raw == "none" {
		return None, None
	}

	items := strings.Split(raw, ",")
	addrs := make([]string, 0, len(items))
	for _, item := range items {
		_, tagged, ok := strings.Cut(item, "|")
		if !ok {
			return raw, raw
		}
		addr, _, _ := strings.Cut(tagged, "|")
		addr, _, _ = strings.Cut(addr, "/")
		addrs = append(addrs, addr)
	}
	return raw, strings.Join(addrs, ",")
}

// NormalizeIP6 maps "none" to the placeholder.
func NormalizeIP6(raw string) string {
	if raw == "none" {
		return None
	}
	return raw
}

const hardenedMarker = "HBSD"

var hardenedSeparator = regexp.MustCompile(`\W\w.`)

// NormalizeRelease returns the full and short display forms of a release.
func NormalizeRelease(raw string) (full, short string) {
	if strings.Contains(raw, hardenedMarker) {
		return normalizeHardenedRelease(raw)
	}
	return normalizeFreeBSDRelease(raw)
}

// HardenedBSD names its branches differently; rewrite them onto the
// FreeBSD "-STABLE" shape and drop the vendor suffix for the short form.
func normalizeHardenedRelease(raw string) (full, short string) {
	full = hardenedSeparator.ReplaceAllString(raw, "-")
	full = strings.ReplaceAll(full, "--SD", "-STABLE-"+hardenedMarker)
	return full, strings.TrimSuffix(full, "-"+hardenedMarker)
}

// "13.2-RELEASE-p4" is shown as "13.2-RELEASE".
func normalizeFreeBSDRelease(raw string) (full, short string) {
	parts := strings.Split(raw, "-")
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return raw, strings.Join(parts, "-")
}

// ParseTemplateOrigin extracts the template name from the origin of a
// jail's root dataset ("pool/iocage/templates/tpl/root@jail" → "tpl").
// Clones of fetched releases are not templates and give None.
func ParseTemplateOrigin(origin string) string {
	if origin == "" || origin == None {
		return None
	}

	source := origin
	if i := strings.LastIndex(source, "/root@"); i >= 0 {
		source = source[:i]
	}
	name := path.Base(source)

	lower := strings.ToLower(name)
	if strings.Contains(lower, "release") || strings.Contains(lower, "stable") {
		return None
	}
	return name
}

// PortalAddress picks the address substituted into an admin portal URL
// from the full IPv4 column.
func PortalAddress(ip4Full string) string {
	if strings.Contains(ip4Full, "DHCP") {
		return "DHCP"
	}
	ip := ip4Full
	if _, tagged, ok := strings.Cut(ip4Full, "|"); ok {
		ip = tagged
	}
	ip, _, _ = strings.Cut(ip, "/")
	return ip
}

// jailInterface maps a host-side vnet name to the epair end visible
// inside the jail (vnet0 → epair0b). iocage pairs every vnetN with
// epairN, so a jail whose first interface is vnet1 reads its lease from
// epair1b rather than from an interface it does not have.
func jailInterface(iface string) string {
	if n, ok := strings.CutPrefix(iface, "vnet"); ok && n != "" {
		return "epair" + n + "b"
	}
	return iface
}
