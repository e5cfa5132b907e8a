package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type probe struct {
	ID   int64
	Name string
}

func TestOperationName(t *testing.T) {
	assert.Equal(t, "db.select", operationName("  select * from zones"))
	assert.Equal(t, "db.insert", operationName("INSERT INTO check_ins"))
	assert.Equal(t, "db.query", operationName("PRAGMA foreign_keys"))
	assert.Equal(t, "db.unknown", operationName(""))
}

func TestSanitizeSQL(t *testing.T) {
	assert.Equal(t, `SELECT * FROM users WHERE name = '?'`, sanitizeSQL(`SELECT * FROM users WHERE name = 'alice'`))
}

func TestPluginDoesNotBreakQueries(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:otel_plugin?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, WithDefaultOTELPlugin(db, "cityclaim-test"))
	require.NoError(t, db.AutoMigrate(&probe{}))

	require.NoError(t, db.Create(&probe{ID: 1, Name: "a"}).Error)

	var got probe
	require.NoError(t, db.First(&got, 1).Error)
	assert.Equal(t, "a", got.Name)

	err = db.First(&got, 2).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
