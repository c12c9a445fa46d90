package remote

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"leobook/core/schema"
	"leobook/core/syncerr"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Client is the thin transport against the cloud store. Push applies one
// table's ChangeSet, Pull reads a full table (the remote supports no delta
// pull), EnsureSchema provisions the table idempotently.
type Client interface {
	Push(ctx context.Context, cs *schema.ChangeSet) error
	Pull(ctx context.Context, table string) ([]schema.Row, error)
	EnsureSchema(ctx context.Context, table string) error
}

// SQL implements Client over a GORM MySQL connection.
type SQL struct {
	db  *gorm.DB
	reg *schema.Registry
	log *zap.Logger
}

// NewSQL creates the SQL-backed remote client. A nil db is allowed: the
// engine starts local-only when the cloud store is unreachable, and every
// call then reports RemoteUnavailable until a restart reconnects.
func NewSQL(db *gorm.DB, reg *schema.Registry, log *zap.Logger) *SQL {
	return &SQL{db: db, reg: reg, log: log}
}

func (c *SQL) conn() (*gorm.DB, error) {
	if c.db == nil {
		return nil, fmt.Errorf("%w: no database connection", syncerr.ErrRemoteUnavailable)
	}
	return c.db, nil
}

// Push applies the ChangeSet in one transaction. Upsert conflicts on the
// primary key are resolved by full-row overwrite of the mirrored columns;
// deletes remove the remote rows outright.
func (c *SQL) Push(ctx context.Context, cs *schema.ChangeSet) error {
	tbl, err := c.reg.Lookup(cs.Table)
	if err != nil {
		return err
	}
	if cs.Empty() {
		return nil
	}
	db, err := c.conn()
	if err != nil {
		return err
	}

	values := make([]map[string]any, 0, len(cs.Upserts))
	for _, row := range cs.Upserts {
		v, err := tbl.Coerce(row)
		if err != nil {
			// The detector already drops malformed rows; reaching this
			// point means a caller bypassed it.
			return err
		}
		values = append(values, v)
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(values) > 0 {
			conflictCols := make([]clause.Column, 0, len(tbl.PrimaryKey))
			for _, pk := range tbl.PrimaryKey {
				conflictCols = append(conflictCols, clause.Column{Name: pk})
			}
			res := tx.Table(cs.Table).
				Clauses(clause.OnConflict{
					Columns:   conflictCols,
					DoUpdates: clause.AssignmentColumns(updateColumns(tbl)),
				}).
				Create(values)
			if res.Error != nil {
				return res.Error
			}
		}
		return c.deleteKeys(tx, tbl, cs.Deletes)
	})
	if err != nil {
		return c.classify(cs.Table, err)
	}
	return nil
}

func (c *SQL) deleteKeys(tx *gorm.DB, tbl *schema.Table, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if len(tbl.PrimaryKey) == 1 {
		res := tx.Table(tbl.Name).
			Where(fmt.Sprintf("`%s` IN ?", tbl.PrimaryKey[0]), keys).
			Delete(nil)
		return res.Error
	}
	// Composite keys delete one at a time; only the standings table carries
	// one and its delete volume is tiny.
	for _, key := range keys {
		cols, err := tbl.KeyColumns(key)
		if err != nil {
			return err
		}
		where := make(map[string]any, len(cols))
		for col, v := range cols {
			where[col] = v
		}
		if res := tx.Table(tbl.Name).Where(where).Delete(nil); res.Error != nil {
			return res.Error
		}
	}
	return nil
}

// Pull reads the full remote table. Rows that fail the codec on the way
// back are skipped with a warning rather than failing the pull.
func (c *SQL) Pull(ctx context.Context, table string) ([]schema.Row, error) {
	tbl, err := c.reg.Lookup(table)
	if err != nil {
		return nil, err
	}

	db, err := c.conn()
	if err != nil {
		return nil, err
	}

	var records []map[string]any
	if err := db.WithContext(ctx).Table(table).Find(&records).Error; err != nil {
		return nil, c.classify(table, err)
	}

	rows := make([]schema.Row, 0, len(records))
	for _, rec := range records {
		row, err := tbl.FromValues(rec)
		if err != nil {
			c.log.Warn("Dropping malformed remote row",
				zap.String("table", table), zap.Error(err))
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// EnsureSchema provisions the remote table if it does not exist. It is safe
// to call unconditionally on every startup merge and on schema mismatch.
func (c *SQL) EnsureSchema(ctx context.Context, table string) error {
	tbl, err := c.reg.Lookup(table)
	if err != nil {
		return err
	}
	db, err := c.conn()
	if err != nil {
		return err
	}
	if err := db.WithContext(ctx).Exec(createTableDDL(tbl)).Error; err != nil {
		return c.classify(table, err)
	}
	return nil
}

// updateColumns lists the columns overwritten on primary-key conflict:
// every mirrored non-key column plus last_updated.
func updateColumns(tbl *schema.Table) []string {
	cols := make([]string, 0, len(tbl.Columns)+1)
	for _, col := range tbl.Columns {
		if keyColumn(tbl, col.Name) {
			continue
		}
		cols = append(cols, col.Name)
	}
	cols = append(cols, schema.ColLastUpdated)
	sort.Strings(cols)
	return cols
}

func keyColumn(tbl *schema.Table, name string) bool {
	for _, pk := range tbl.PrimaryKey {
		if pk == name {
			return true
		}
	}
	return false
}

// createTableDDL renders the CREATE TABLE IF NOT EXISTS statement for a
// table from its registry schema.
func createTableDDL(tbl *schema.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS `%s` (", tbl.Name)

	for _, pk := range tbl.PrimaryKey {
		fmt.Fprintf(&b, "`%s` VARCHAR(191) NOT NULL, ", pk)
	}
	for _, col := range tbl.Columns {
		if keyColumn(tbl, col.Name) {
			continue
		}
		fmt.Fprintf(&b, "`%s` %s NULL, ", col.Name, sqlType(col.Type))
	}
	fmt.Fprintf(&b, "`%s` DATETIME(3) NOT NULL, ", schema.ColLastUpdated)

	quoted := make([]string, 0, len(tbl.PrimaryKey))
	for _, pk := range tbl.PrimaryKey {
		quoted = append(quoted, fmt.Sprintf("`%s`", pk))
	}
	fmt.Fprintf(&b, "PRIMARY KEY (%s))", strings.Join(quoted, ", "))
	return b.String()
}

func sqlType(t schema.ColumnType) string {
	switch t {
	case schema.TypeInteger:
		return "BIGINT"
	case schema.TypeReal:
		return "DOUBLE"
	case schema.TypeBoolean:
		return "TINYINT(1)"
	case schema.TypeTimestamp:
		return "DATETIME(3)"
	default:
		return "TEXT"
	}
}
