package listing

import (
	"slices"

	"github.com/truenas/iocage-list/reconcile"
)

// BasesHeader is the only column of a base image listing.
const BasesHeader = "Bases fetched"

// IndexHeaders are the columns of an identity index listing.
var IndexHeaders = []string{"NAME", "MOUNTPOINT"}

// Headers returns the column names of a view.
func Headers(view reconcile.View) []string {
	switch view {
	case reconcile.ViewFull:
		return []string{"JID", "NAME", "BOOT", "STATE", "TYPE", "RELEASE", "IP4", "IP6", "TEMPLATE"}
	case reconcile.ViewPlugin:
		return []string{"JID", "NAME", "BOOT", "STATE", "TYPE", "RELEASE", "IP4", "IP6", "TEMPLATE", "PORTAL"}
	case reconcile.ViewQuick:
		return []string{"NAME", "IP4"}
	}
	return []string{"JID", "NAME", "STATE", "RELEASE", "IP4"}
}

// Project selects the columns of a view from each record, in order.
func Project(view reconcile.View, records []reconcile.Record) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, projectRecord(view, r))
	}
	return rows
}

func projectRecord(view reconcile.View, r reconcile.Record) []string {
	switch view {
	case reconcile.ViewFull:
		return []string{r.JID, r.DisplayIdentity, r.Boot, string(r.RunState), r.Type,
			r.FullRelease, r.IP4Full, r.IP6, r.TemplateOrigin}
	case reconcile.ViewPlugin:
		return []string{r.JID, r.DisplayIdentity, r.Boot, string(r.RunState), r.Type,
			r.FullRelease, r.IP4Full, r.IP6, r.TemplateOrigin, r.AdminPortal}
	case reconcile.ViewQuick:
		return []string{r.DisplayIdentity, r.IP4Full}
	}
	return []string{r.JID, r.DisplayIdentity, string(r.RunState), r.ShortRelease, r.IP4Short}
}

// SortBases orders base image names by release version.
func SortBases(resolver *KeyResolver, names []string) []string {
	records := make([]reconcile.Record, len(names))
	for i, name := range names {
		records[i] = reconcile.Record{DisplayIdentity: name, FullRelease: name}
	}
	resolver.Sort(ListRelease, "release", records)

	sorted := make([]string, len(records))
	for i, r := range records {
		sorted[i] = r.DisplayIdentity
	}
	return sorted
}

// IndexRows flattens an identity → mountpoint map into rows ordered by
// identity.
func IndexRows(mountpoints map[string]string) [][]string {
	names := make([]string, 0, len(mountpoints))
	for name := range mountpoints {
		names = append(names, name)
	}
	slices.SortFunc(names, NaturalCompare)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, mountpoints[name]})
	}
	return rows
}
