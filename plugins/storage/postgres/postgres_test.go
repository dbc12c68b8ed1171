package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dpup/taskhub/errors"
	"github.com/dpup/taskhub/plugins/storage"
	"github.com/dpup/taskhub/plugins/storage/storagetests"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("PG_TEST_DSN")
	if dsn == "" {
		t.Skip("PostgreSQL tests skipped. Set PG_TEST_DSN env var to enable.")
	}

	storagetests.Run(t, func() storage.Store {
		testDB, err := sql.Open("postgres", dsn)
		if err != nil {
			t.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}

		// Each test starts with a clean slate.
		_, err = testDB.Exec(`
			DROP SCHEMA IF EXISTS test_schema CASCADE;
			CREATE SCHEMA test_schema;
		`)
		if err != nil {
			testDB.Close()
			t.Fatalf("Failed to reset test schema: %v", err)
		}
		testDB.Close()

		return New(dsn, WithSchema("test_schema"))
	})
}

func TestOptions(t *testing.T) {
	t.Run("WithPrefix", func(t *testing.T) {
		s := &store{prefix: "taskhub_"}
		WithPrefix("custom_")(s)
		assert.Equal(t, "custom_", s.prefix)
	})

	t.Run("WithSchema", func(t *testing.T) {
		s := &store{schema: "public"}
		WithSchema("custom_schema")(s)
		assert.Equal(t, "custom_schema", s.schema)
	})

	t.Run("WithAutoCreateTables", func(t *testing.T) {
		s := &store{autoCreateTables: true}
		WithAutoCreateTables(false)(s)
		assert.False(t, s.autoCreateTables)
	})
}

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name     string
		input    error
		expected error
	}{
		{
			name:     "NilError",
			input:    nil,
			expected: nil,
		},
		{
			name:     "ErrNoRows",
			input:    sql.ErrNoRows,
			expected: storage.ErrNotFound,
		},
		{
			name:     "UniqueViolation",
			input:    &pq.Error{Code: "23505"},
			expected: storage.ErrAlreadyExists,
		},
		{
			name:     "UniqueConstraintMessage",
			input:    errors.New("violates unique constraint"),
			expected: storage.ErrAlreadyExists,
		},
		{
			name:     "NotNullConstraintMessage",
			input:    errors.New("violates not-null constraint"),
			expected: storage.ErrInvalidModel,
		},
		{
			name:     "NoRowsMessage",
			input:    errors.New("no rows in result set"),
			expected: storage.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := translateError(tt.input)
			if tt.expected == nil {
				assert.NoError(t, result)
			} else {
				require.Error(t, result)
				assert.ErrorIs(t, result, tt.expected)
			}
		})
	}
}

type TestModel struct {
	ID string `json:"id"`
}

func (m TestModel) PK() string {
	return m.ID
}

func TestTableName(t *testing.T) {
	s := &store{
		prefix: "test_",
		schema: "custom_schema",
		tables: map[string]bool{},
	}

	t.Run("DefaultTable", func(t *testing.T) {
		tableName, isDefault := s.tableName(TestModel{ID: "1"})
		assert.True(t, isDefault)
		assert.Equal(t, "custom_schema.test_default", tableName)
	})

	t.Run("DedicatedTable", func(t *testing.T) {
		s.tables[storage.Name(TestModel{})] = true
		tableName, isDefault := s.tableName(TestModel{ID: "1"})
		assert.False(t, isDefault)
		assert.Equal(t, "custom_schema.test_"+storage.Name(TestModel{}), tableName)
	})
}

// Helper to create a mock store
func newMockStore(t *testing.T) (*store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	s := &store{
		db:               db,
		prefix:           "test_",
		schema:           "public",
		tables:           map[string]bool{},
		autoCreateTables: false,
	}
	return s, mock
}

func TestCreateWithMock(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	t.Run("CreateSuccess", func(t *testing.T) {
		model := TestModel{ID: "1"}
		data, _ := json.Marshal(model)

		mock.ExpectBegin()
		mock.ExpectPrepare("INSERT INTO").
			ExpectExec().
			WithArgs("1", storage.Name(model), data).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := s.Create(context.Background(), model)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("CreateConflict", func(t *testing.T) {
		model := TestModel{ID: "1"}
		data, _ := json.Marshal(model)

		mock.ExpectBegin()
		mock.ExpectPrepare("INSERT INTO").
			ExpectExec().
			WithArgs("1", storage.Name(model), data).
			WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()

		err := s.Create(context.Background(), model)
		require.Error(t, err)
		require.ErrorIs(t, err, storage.ErrAlreadyExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReadWithMock(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	t.Run("ReadSuccess", func(t *testing.T) {
		model := TestModel{ID: "1"}
		data, _ := json.Marshal(model)

		mock.ExpectQuery("SELECT value FROM").
			WithArgs("1", storage.Name(TestModel{})).
			WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(data))

		var result TestModel
		err := s.Read(context.Background(), "1", &result)
		require.NoError(t, err)
		assert.Equal(t, "1", result.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ReadNotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT value FROM").
			WithArgs("1", storage.Name(TestModel{})).
			WillReturnError(sql.ErrNoRows)

		var result TestModel
		err := s.Read(context.Background(), "1", &result)
		require.Error(t, err)
		require.ErrorIs(t, err, storage.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ReadNilModel", func(t *testing.T) {
		var result *TestModel
		err := s.Read(context.Background(), "1", result)
		require.Error(t, err)
		assert.ErrorIs(t, err, storage.ErrNilModel)
	})
}

func TestUpdateWithMock(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	t.Run("UpdateSuccess", func(t *testing.T) {
		model := TestModel{ID: "1"}
		data, _ := json.Marshal(model)

		mock.ExpectBegin()
		mock.ExpectPrepare("UPDATE").
			ExpectExec().
			WithArgs(data, "1", storage.Name(model)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := s.Update(context.Background(), model)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("UpdateNotFound", func(t *testing.T) {
		model := TestModel{ID: "1"}
		data, _ := json.Marshal(model)

		mock.ExpectBegin()
		mock.ExpectPrepare("UPDATE").
			ExpectExec().
			WithArgs(data, "1", storage.Name(model)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := s.Update(context.Background(), model)
		require.Error(t, err)
		require.ErrorIs(t, err, storage.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpsertWithMock(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	model := TestModel{ID: "1"}
	data, _ := json.Marshal(model)

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO").
		ExpectExec().
		WithArgs("1", storage.Name(model), data).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := s.Upsert(context.Background(), model)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteWithMock(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	t.Run("DeleteSuccess", func(t *testing.T) {
		mock.ExpectPrepare("DELETE FROM").
			ExpectExec().
			WithArgs("1", storage.Name(TestModel{})).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := s.Delete(context.Background(), TestModel{ID: "1"})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DeleteNotFound", func(t *testing.T) {
		mock.ExpectPrepare("DELETE FROM").
			ExpectExec().
			WithArgs("1", storage.Name(TestModel{})).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := s.Delete(context.Background(), TestModel{ID: "1"})
		require.Error(t, err)
		require.ErrorIs(t, err, storage.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
