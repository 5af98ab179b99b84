package database

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS presentations").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, CreateSchema(db))

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS presentations").WillReturnError(errors.New("boom"))
	err = CreateSchema(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create schema")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnectRejectsEmptyDSN(t *testing.T) {
	_, err := Connect("")
	assert.Error(t, err)
}
