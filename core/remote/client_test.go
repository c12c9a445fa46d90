package remote

import (
	"context"
	"testing"
	"time"

	"leobook/core/schema"
	"leobook/core/syncerr"

	"github.com/DATA-DOG/go-sqlmock"
	driver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newMockClient(t *testing.T) (*SQL, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(gormmysql.New(gormmysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	return NewSQL(gdb, schema.NewRegistry(), zap.NewNop()), mock
}

func predictionRow(fixture string, ts time.Time) schema.Row {
	row := schema.Row{
		"fixture_id": fixture,
		"market":     "1X2",
		"prediction": "home",
		"confidence": "0.8",
		"status":     "pending",
	}
	row.SetLastUpdated(ts)
	return row
}

func TestSQL_Push_Upserts(t *testing.T) {
	client, mock := newMockClient(t)
	ts := time.Now().UTC()

	cs := &schema.ChangeSet{
		Table:   "predictions",
		Upserts: []schema.Row{predictionRow("F1", ts)},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `predictions`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, client.Push(context.Background(), cs))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQL_Push_Deletes(t *testing.T) {
	client, mock := newMockClient(t)

	cs := &schema.ChangeSet{
		Table:   "predictions",
		Deletes: []string{"F1", "F2"},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `predictions` WHERE `fixture_id` IN").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, client.Push(context.Background(), cs))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQL_Push_CompositeKeyDeletes(t *testing.T) {
	client, mock := newMockClient(t)

	cs := &schema.ChangeSet{
		Table:   "standings",
		Deletes: []string{"L1|T1"},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `standings` WHERE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, client.Push(context.Background(), cs))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQL_Push_EmptyChangeSetMakesNoCalls(t *testing.T) {
	client, mock := newMockClient(t)

	cs := &schema.ChangeSet{Table: "predictions"}
	require.NoError(t, client.Push(context.Background(), cs))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQL_Push_ClassifiesSchemaMismatch(t *testing.T) {
	client, mock := newMockClient(t)
	ts := time.Now().UTC()

	cs := &schema.ChangeSet{
		Table:   "predictions",
		Upserts: []schema.Row{predictionRow("F1", ts)},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `predictions`").
		WillReturnError(&driver.MySQLError{Number: 1146, Message: "Table 'leobook.predictions' doesn't exist"})
	mock.ExpectRollback()

	err := client.Push(context.Background(), cs)
	assert.ErrorIs(t, err, syncerr.ErrSchemaMismatch)
}

func TestSQL_Push_ClassifiesUnavailable(t *testing.T) {
	client, mock := newMockClient(t)
	ts := time.Now().UTC()

	cs := &schema.ChangeSet{
		Table:   "predictions",
		Upserts: []schema.Row{predictionRow("F1", ts)},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `predictions`").
		WillReturnError(&driver.MySQLError{Number: 1040, Message: "Too many connections"})
	mock.ExpectRollback()

	err := client.Push(context.Background(), cs)
	assert.ErrorIs(t, err, syncerr.ErrRemoteUnavailable)
}

func TestSQL_Pull(t *testing.T) {
	client, mock := newMockClient(t)
	ts := time.Date(2026, 3, 14, 15, 9, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"team_id", "team_name", "region", "team_crest", "last_updated"}).
		AddRow("T1", "Alpha FC", "England", "https://img/crest.png", ts).
		AddRow("T2", "Beta FC", "Spain", nil, ts)

	mock.ExpectQuery("SELECT \\* FROM `teams`").WillReturnRows(rows)

	out, err := client.Pull(context.Background(), "teams")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Alpha FC", out[0]["team_name"])

	got, err := out[0].LastUpdated()
	require.NoError(t, err)
	assert.True(t, got.Equal(ts))
}

func TestSQL_Pull_SkipsMalformedRemoteRow(t *testing.T) {
	client, mock := newMockClient(t)
	ts := time.Now().UTC()

	// Second row lacks a primary key and must be dropped, not fatal.
	rows := sqlmock.NewRows([]string{"team_id", "team_name", "last_updated"}).
		AddRow("T1", "Alpha FC", ts).
		AddRow(nil, "Ghost FC", ts)

	mock.ExpectQuery("SELECT \\* FROM `teams`").WillReturnRows(rows)

	out, err := client.Pull(context.Background(), "teams")
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestSQL_EnsureSchema(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS `standings`").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, client.EnsureSchema(context.Background(), "standings"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTableDDL(t *testing.T) {
	reg := schema.NewRegistry()
	tbl, err := reg.Lookup("standings")
	require.NoError(t, err)

	ddl := createTableDDL(tbl)
	assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS `standings`")
	assert.Contains(t, ddl, "`league_id` VARCHAR(191) NOT NULL")
	assert.Contains(t, ddl, "`points` BIGINT NULL")
	assert.Contains(t, ddl, "`last_updated` DATETIME(3) NOT NULL")
	assert.Contains(t, ddl, "PRIMARY KEY (`league_id`, `team_id`)")
}
