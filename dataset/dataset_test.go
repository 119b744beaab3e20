package dataset

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/truenas/iocage-list/command"
	"github.com/truenas/iocage-list/truenas"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "jails root", input: "tank/iocage/jails"},
		{name: "dotted release", input: "tank/iocage/releases/13.2-RELEASE"},
		{name: "empty", input: "", wantErr: "dataset name cannot be empty"},
		{name: "pool only", input: "tank", wantErr: "dataset name must include pool name (e.g., 'pool/dataset')"},
		{name: "leading slash", input: "/tank/iocage", wantErr: "dataset name cannot start or end with /"},
		{name: "consecutive slashes", input: "tank//iocage", wantErr: "dataset name cannot contain consecutive slashes"},
		{name: "space", input: "tank/io cage", wantErr: "dataset name contains invalid characters (only alphanumeric, /, _, ., :, - allowed)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("")
	require.NoError(t, err)
	assert.Equal(t, CategoryAll, c)

	c, err = ParseCategory("template")
	require.NoError(t, err)
	assert.Equal(t, CategoryTemplate, c)

	_, err = ParseCategory("plugins")
	assert.Error(t, err)
}

func TestEnumeratorRoots(t *testing.T) {
	e := NewEnumerator(NewMemoryStore(), "tank", "")
	assert.Equal(t, "tank/iocage/jails", e.Root(CategoryAll))
	assert.Equal(t, "tank/iocage/jails", e.Root(CategoryBasejail))
	assert.Equal(t, "tank/iocage/templates", e.Root(CategoryTemplate))
	assert.Equal(t, "tank/iocage/releases", e.Root(CategoryBase))
}

func TestEnumeratorListMissingRoot(t *testing.T) {
	e := NewEnumerator(NewMemoryStore(), "tank", "iocage")

	_, err := e.List(context.Background(), CategoryAll)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEnumeration))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestEnumeratorListInvalidPool(t *testing.T) {
	e := NewEnumerator(NewMemoryStore(), "", "iocage")

	_, err := e.List(context.Background(), CategoryAll)
	assert.ErrorIs(t, err, ErrEnumeration)
}

func indexStore() *MemoryStore {
	return NewMemoryStore().
		Add("tank/iocage/jails", "/mnt/tank/iocage/jails").
		Add("tank/iocage/jails/web", "/mnt/tank/iocage/jails/web").
		Add("tank/iocage/jails/web/root", "/mnt/tank/iocage/jails/web/root").
		Add("tank/iocage/jails/db", "/mnt/tank/iocage/jails/db").
		Add("tank/iocage/templates", "/mnt/tank/iocage/templates").
		Add("tank/iocage/templates/base-tpl", "/mnt/tank/iocage/templates/base-tpl").
		Add("tank/iocage/templates/web", "/mnt/tank/iocage/templates/web")
}

func TestEnumeratorIndex(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	e := NewEnumerator(indexStore(), "tank", "iocage", WithLogger(zap.New(core)))

	index, err := e.Index(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"web":      "/mnt/tank/iocage/templates/web",
		"db":       "/mnt/tank/iocage/jails/db",
		"base-tpl": "/mnt/tank/iocage/templates/base-tpl",
	}, index.Mountpoints)
	assert.Equal(t, []Collision{{
		Identity: "web",
		Previous: "/mnt/tank/iocage/jails/web",
		Current:  "/mnt/tank/iocage/templates/web",
	}}, index.Collisions)
	assert.Equal(t, 1, logs.FilterMessage("identity collision in uuid index").Len())
}

func TestEnumeratorIndexStrict(t *testing.T) {
	e := NewEnumerator(indexStore(), "tank", "iocage", WithStrictIndex(true))

	_, err := e.Index(context.Background())
	assert.ErrorIs(t, err, ErrIdentityConflict)
}

func TestZFSStoreChildren(t *testing.T) {
	runner := command.NewFakeRunner().On(
		"zfs list -H -t filesystem -o name,mountpoint -d 1 tank/iocage/jails",
		"tank/iocage/jails\t/mnt/tank/iocage/jails\n"+
			"tank/iocage/jails@daily\t-\n"+
			"tank/iocage/jails/web\t/mnt/tank/iocage/jails/web\n"+
			"tank/iocage/jails/db\t/mnt/tank/iocage/jails/db\n")
	store := NewZFSStore(runner, "")

	children, err := store.Children(context.Background(), "tank/iocage/jails")
	require.NoError(t, err)
	assert.Equal(t, []Dataset{
		{Name: "tank/iocage/jails/web", Mountpoint: "/mnt/tank/iocage/jails/web"},
		{Name: "tank/iocage/jails/db", Mountpoint: "/mnt/tank/iocage/jails/db"},
	}, children)
	assert.Equal(t, "web", children[0].Base())
}

func TestZFSStoreMissingDataset(t *testing.T) {
	runner := command.NewFakeRunner().Fail(
		"zfs list -H -t filesystem -o name,mountpoint -d 1 tank/iocage/jails",
		&command.Error{ExitCode: 1, Output: []string{"cannot open 'tank/iocage/jails': dataset does not exist"}})
	store := NewZFSStore(runner, "zfs")

	_, err := store.Children(context.Background(), "tank/iocage/jails")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestZFSStoreProperty(t *testing.T) {
	runner := command.NewFakeRunner().
		On("zfs get -H -o value origin tank/iocage/jails/web/root", "tank/iocage/templates/tpl/root@web\n").
		On("zfs get -H -o value origin tank/iocage/jails/db/root", "-\n")
	store := NewZFSStore(runner, "")

	origin, err := store.Property(context.Background(), "tank/iocage/jails/web/root", "origin")
	require.NoError(t, err)
	assert.Equal(t, "tank/iocage/templates/tpl/root@web", origin)

	origin, err = store.Property(context.Background(), "tank/iocage/jails/db/root", "origin")
	require.NoError(t, err)
	assert.Empty(t, origin)
}

type fakeQuerier struct {
	rows []truenas.Dataset
	err  error
}

func (f *fakeQuerier) QueryDatasets(filters []interface{}) ([]truenas.Dataset, error) {
	if f.err != nil {
		return nil, f.err
	}
	filter := filters[0].([]interface{})
	op, value := filter[1].(string), filter[2].(string)

	var out []truenas.Dataset
	for _, row := range f.rows {
		switch op {
		case "=":
			if row.ID == value {
				out = append(out, row)
			}
		case "^":
			if len(row.ID) >= len(value) && row.ID[:len(value)] == value {
				out = append(out, row)
			}
		}
	}
	return out, nil
}

func TestMiddlewareStore(t *testing.T) {
	querier := &fakeQuerier{rows: []truenas.Dataset{
		{ID: "tank/iocage/jails", Mountpoint: "/mnt/tank/iocage/jails"},
		{ID: "tank/iocage/jails/web", Mountpoint: "/mnt/tank/iocage/jails/web"},
		{ID: "tank/iocage/jails/web/root", Mountpoint: "/mnt/tank/iocage/jails/web/root",
			Origin: &truenas.PropertyValue{Value: "tank/iocage/releases/13.2-RELEASE/root@web"}},
		{ID: "tank/iocage/jails/db", Mountpoint: "/mnt/tank/iocage/jails/db"},
	}}
	store := NewMiddlewareStore(querier)
	ctx := context.Background()

	children, err := store.Children(ctx, "tank/iocage/jails")
	require.NoError(t, err)
	assert.Equal(t, []Dataset{
		{Name: "tank/iocage/jails/web", Mountpoint: "/mnt/tank/iocage/jails/web"},
		{Name: "tank/iocage/jails/db", Mountpoint: "/mnt/tank/iocage/jails/db"},
	}, children)

	origin, err := store.Property(ctx, "tank/iocage/jails/web/root", "origin")
	require.NoError(t, err)
	assert.Equal(t, "tank/iocage/releases/13.2-RELEASE/root@web", origin)

	origin, err = store.Property(ctx, "tank/iocage/jails/db", "origin")
	require.NoError(t, err)
	assert.Empty(t, origin)

	_, err = store.Children(ctx, "tank/iocage/templates")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Property(ctx, "tank/iocage/jails/db", "compression")
	assert.Error(t, err)
}

func TestMiddlewareStoreQueryError(t *testing.T) {
	store := NewMiddlewareStore(&fakeQuerier{err: errors.New("socket closed")})

	_, err := store.Children(context.Background(), "tank/iocage/jails")
	assert.ErrorContains(t, err, "socket closed")
}
