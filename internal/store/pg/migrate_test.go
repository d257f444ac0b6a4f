package pg

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	migrations "github.com/dropDatabas3/stagegate/migrations/postgres"
)

func TestListMigrations_Order(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0002_b_up.sql":   {Data: []byte("b")},
		"m/0001_a_up.sql":   {Data: []byte("a")},
		"m/0001_a_down.sql": {Data: []byte("-a")},
		"m/0002_b_down.sql": {Data: []byte("-b")},
		"m/README.md":       {Data: []byte("x")},
	}

	up, err := ListMigrations(fsys, "m", Up, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"m/0001_a_up.sql", "m/0002_b_up.sql"}, up)

	down, err := ListMigrations(fsys, "m", Down, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"m/0002_b_down.sql"}, down)
}

func TestEmbeddedMigrations(t *testing.T) {
	up, err := ListMigrations(migrations.FS, migrations.Dir, Up, 0)
	require.NoError(t, err)
	require.NotEmpty(t, up)
	down, err := ListMigrations(migrations.FS, migrations.Dir, Down, 0)
	require.NoError(t, err)
	require.Len(t, down, len(up))
}
