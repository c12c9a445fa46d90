package database

import (
	"fmt"
	"strings"

	"leobook/core/schema"

	"gorm.io/gorm"
)

// ColumnInfo matches one row of SHOW COLUMNS output.
type ColumnInfo struct {
	Field   string
	Type    string
	Null    string
	Key     string
	Default *string
	Extra   string
}

// TableColumns retrieves the column definitions for a table. A table that
// does not exist returns a MySQL 1146 error, which the caller classifies.
func TableColumns(db *gorm.DB, tableName string) ([]ColumnInfo, error) {
	var columns []ColumnInfo
	err := db.Raw(fmt.Sprintf("SHOW COLUMNS FROM `%s`", tableName)).Scan(&columns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get columns for table %s: %w", tableName, err)
	}
	for i := range columns {
		columns[i].Type = strings.ToLower(columns[i].Type)
		columns[i].Field = strings.ToLower(columns[i].Field)
	}
	return columns, nil
}

// MissingColumns compares a remote table against its registry definition
// and returns the expected columns the remote does not have. Surplus remote
// columns are ignored: the dashboard may carry its own derived fields.
func MissingColumns(db *gorm.DB, tbl *schema.Table) ([]string, error) {
	columns, err := TableColumns(db, tbl.Name)
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool, len(columns))
	for _, col := range columns {
		present[col.Field] = true
	}

	var missing []string
	expected := append(append([]string{}, tbl.PrimaryKey...), tbl.ColumnNames()...)
	for _, name := range expected {
		if !present[strings.ToLower(name)] {
			missing = append(missing, name)
		}
	}
	return missing, nil
}
