// Package storagetests provides common acceptance tests for storage.Store
// implementations.
package storagetests

import (
	"context"
	"testing"

	"github.com/dpup/taskhub/plugins/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Priority int

const (
	PriorityNone     Priority = 1
	PriorityLow      Priority = 2
	PriorityMedium   Priority = 3
	PriorityHigh     Priority = 4
	PriorityUrgent   Priority = 5
	PriorityCritical Priority = 6
)

type Task struct {
	ID       string
	Title    string
	Priority Priority
	Estimate *int // Ptr fields allow filtering on zero values.
}

func (t Task) PK() string {
	return t.ID
}

type Label struct {
	ID   string
	Name string
}

func (l Label) PK() string {
	return l.ID
}

type BadModel struct {
	ID    string
	Cycle *BadModel
}

func (b BadModel) PK() string {
	return b.ID
}

func pint(i int) *int {
	return &i
}

//nolint:funlen // This is a test helper.
func Run(t *testing.T, newStore func() storage.Store) {
	t.Run("TestCreateReadRoundTrip", func(t *testing.T) {
		triage := Task{
			ID:       "1",
			Title:    "Triage inbox",
			Priority: PriorityLow,
		}
		deploy := Task{
			ID:       "2",
			Title:    "Deploy release",
			Priority: PriorityHigh,
		}

		triage2 := Task{}
		deploy2 := Task{}

		store := newStore()
		err := store.Create(context.Background(), triage, deploy)
		require.NoError(t, err, "unexpected error putting records")

		err = store.Read(context.Background(), "1", &triage2)
		require.NoError(t, err, "unexpected error getting task")
		assert.Equal(t, triage, triage2)

		err = store.Read(context.Background(), "2", &deploy2)
		require.NoError(t, err, "unexpected error getting task")
		assert.Equal(t, deploy, deploy2)
	})

	t.Run("TestCreateConflict", func(t *testing.T) {
		triage := Task{
			ID:       "1",
			Title:    "Triage inbox",
			Priority: PriorityLow,
		}
		dupe := Task{
			ID:       "1",
			Title:    "Triage inbox",
			Priority: PriorityUrgent,
		}

		store := newStore()
		err := store.Create(context.Background(), triage)
		require.NoError(t, err, "unexpected error putting records")

		err = store.Create(context.Background(), dupe)
		require.ErrorIs(t, err, storage.ErrAlreadyExists, "expected conflict error")
	})

	t.Run("TestCreateBadModel", func(t *testing.T) {
		bm := BadModel{ID: "XXX"}
		bm.Cycle = &bm

		store := newStore()
		err := store.Create(context.Background(), bm)
		require.ErrorIs(t, err, storage.ErrInvalidModel, "expected invalid model error")
	})

	t.Run("TestReadNotFound", func(t *testing.T) {
		store := newStore()
		err := store.Read(context.Background(), "1", &Task{})
		require.ErrorIs(t, err, storage.ErrNotFound)

		err = store.Create(context.Background(), &Task{ID: "1", Title: "Triage inbox"})
		require.NoError(t, err, "unexpected error creating records")

		err = store.Read(context.Background(), "2", &Task{})
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("TestReadWithNilPointer", func(t *testing.T) {
		triage := Task{
			ID:       "1",
			Title:    "Triage inbox",
			Priority: PriorityLow,
		}

		var dst *Task

		store := newStore()
		err := store.Create(context.Background(), triage)
		require.NoError(t, err, "unexpected error putting records")

		err = store.Read(context.Background(), "1", dst)
		require.ErrorIs(t, err, storage.ErrNilModel, "expected nil model error")
	})

	t.Run("TestUpdate", func(t *testing.T) {
		triage := Task{
			ID:       "1",
			Title:    "Triage inbox",
			Priority: PriorityLow,
		}

		triage2 := Task{}

		store := newStore()
		err := store.Create(context.Background(), triage)
		require.NoError(t, err, "unexpected error putting records")

		err = store.Read(context.Background(), "1", &triage2)
		require.NoError(t, err, "unexpected error getting task")
		assert.Equal(t, triage, triage2)

		triage.Priority = PriorityUrgent
		err = store.Update(context.Background(), triage)
		require.NoError(t, err, "unexpected error updating task")

		err = store.Read(context.Background(), "1", &triage2)
		require.NoError(t, err, "unexpected error getting task")
		assert.Equal(t, triage, triage2)
	})

	t.Run("TestUpdateNotExists", func(t *testing.T) {
		triage := Task{
			ID:       "1",
			Title:    "Triage inbox",
			Priority: PriorityLow,
		}

		store := newStore()
		err := store.Update(context.Background(), triage)
		require.ErrorIs(t, err, storage.ErrNotFound, "expected not found error")
	})

	t.Run("TestUpdateBadModel", func(t *testing.T) {
		bm := BadModel{ID: "XXX"}
		bm.Cycle = &bm

		store := newStore()
		err := store.Update(context.Background(), bm)
		require.ErrorIs(t, err, storage.ErrInvalidModel, "expected invalid model error")
	})

	t.Run("TestUpsert", func(t *testing.T) {
		triage := Task{
			ID:       "1",
			Title:    "Triage inbox",
			Priority: PriorityLow,
		}

		triage2 := Task{}
		deploy2 := Task{}

		store := newStore()
		err := store.Create(context.Background(), triage)
		require.NoError(t, err, "unexpected error putting records")

		triage.Priority = PriorityUrgent
		deploy := Task{ID: "2", Title: "Deploy release", Priority: PriorityHigh}
		err = store.Upsert(context.Background(), triage, deploy)
		require.NoError(t, err, "unexpected error upserting tasks")

		err = store.Read(context.Background(), "1", &triage2)
		require.NoError(t, err, "unexpected error getting task")
		assert.Equal(t, triage, triage2)

		err = store.Read(context.Background(), "2", &deploy2)
		require.NoError(t, err, "unexpected error getting task")
		assert.Equal(t, deploy, deploy2)
	})

	t.Run("TestUpsertBadModel", func(t *testing.T) {
		bm := BadModel{ID: "XXX"}
		bm.Cycle = &bm

		store := newStore()
		err := store.Upsert(context.Background(), bm)
		require.ErrorIs(t, err, storage.ErrInvalidModel, "expected invalid model error")
	})

	t.Run("TestDelete", func(t *testing.T) {
		store := newStore()
		err := store.Create(context.Background(), &Task{ID: "4", Title: "Prune backlog"})
		require.NoError(t, err)

		exists, err := store.Exists(context.Background(), "4", &Task{})
		assert.True(t, exists)
		require.NoError(t, err)

		err = store.Delete(context.Background(), &Task{ID: "4"})
		require.NoError(t, err)

		exists, err = store.Exists(context.Background(), "4", &Task{})
		assert.False(t, exists)
		require.NoError(t, err)

		err = store.Delete(context.Background(), &Task{ID: "4"})
		require.ErrorIs(t, err, storage.ErrNotFound, "expected not found error")
	})

	t.Run("TestListErrorCases", func(t *testing.T) {
		store := newStore()

		out := []Task{}

		tests := []struct {
			name    string
			models  any
			filter  storage.Model
			wantErr error
		}{
			{"Ok", &out, Task{}, nil},
			{"Not a slice", Task{}, Task{}, storage.ErrSliceRequired},
			{"Not a pointer", out, Task{}, storage.ErrSliceRequired},
			{"Mismatched type", &out, Label{}, storage.ErrTypeMismatch},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := store.List(context.Background(), tt.models, tt.filter)
				require.ErrorIs(t, err, tt.wantErr, "store.List() error = %v, wantErr %v", err, tt.wantErr)
			})
		}
	})

	t.Run("TestList", func(t *testing.T) {
		store := newStore()
		err := store.Create(context.Background(),
			Task{"1", "Triage inbox", PriorityLow, nil},
			Task{"2", "Deploy release", PriorityHigh, nil},
			Task{"3", "Review design", PriorityMedium, nil},
		)
		require.NoError(t, err)

		actual := []Task{}
		err = store.List(context.Background(), &actual, Task{})
		require.NoError(t, err)

		expected := []Task{
			{"1", "Triage inbox", PriorityLow, nil},
			{"2", "Deploy release", PriorityHigh, nil},
			{"3", "Review design", PriorityMedium, nil},
		}

		assert.Equal(t, expected, actual)
	})

	t.Run("TestListFilter", func(t *testing.T) {
		store := newStore()
		err := store.Create(context.Background(),
			Task{"1", "Triage inbox", PriorityLow, nil},
			Task{"2", "Deploy release", PriorityHigh, nil},
			Task{"3", "Review design", PriorityMedium, nil},
			Task{"4", "Rotate keys", PriorityUrgent, nil},
			Task{"5", "Write changelog", PriorityLow, nil},
			Task{"6", "Fix login flake", PriorityUrgent, nil},
			Task{"7", "Update deps", PriorityNone, nil},
			Task{"8", "Patch CVE", PriorityUrgent, nil},
		)
		require.NoError(t, err)

		actual := []Task{}
		err = store.List(context.Background(), &actual, Task{Priority: PriorityLow})
		require.NoError(t, err)

		expected := []Task{
			{"1", "Triage inbox", PriorityLow, nil},
			{"5", "Write changelog", PriorityLow, nil},
		}

		assert.Equal(t, expected, actual)
	})

	t.Run("TestListFilterZero", func(t *testing.T) {
		store := newStore()
		err := store.Create(context.Background(),
			Task{"1", "Triage inbox", PriorityLow, pint(4)},
			Task{"2", "Deploy release", PriorityHigh, pint(3)},
			Task{"3", "Review design", PriorityMedium, pint(0)},
			Task{"4", "Rotate keys", PriorityUrgent, pint(0)},
			Task{"5", "Write changelog", PriorityLow, nil},
		)
		require.NoError(t, err)

		actual := []Task{}
		err = store.List(context.Background(), &actual, Task{Estimate: pint(0)})
		require.NoError(t, err)

		expected := []Task{
			{"3", "Review design", PriorityMedium, pint(0)},
			{"4", "Rotate keys", PriorityUrgent, pint(0)},
		}

		assert.Equal(t, expected, actual)
	})

	t.Run("TestExists", func(t *testing.T) {
		store := newStore()
		exists, err := store.Exists(context.Background(), "3", &Task{})
		assert.False(t, exists)
		require.NoError(t, err)

		err = store.Create(context.Background(), &Task{ID: "3", Title: "Review design"})
		require.NoError(t, err)

		exists, err = store.Exists(context.Background(), "3", &Task{})
		assert.True(t, exists)
		require.NoError(t, err)
	})
}
