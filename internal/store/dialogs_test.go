// ABOUTME: Tests for the document-backed DialogStore
// ABOUTME: Covers index reconciliation, persistence, corrupt state recovery and locking

package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDialogStore(t *testing.T) (*DocumentStore, *MemoryConfigStore) {
	t.Helper()
	backend := NewMemoryConfigStore()
	return NewDocumentStore(context.Background(), backend, nil), backend
}

func insertDialog(t *testing.T, s *DocumentStore, id, userID string, createdAt time.Time) *Dialog {
	t.Helper()
	d, created, err := s.CreateForUser(context.Background(), userID, func(current *Dialog) (*Dialog, error) {
		return NewDialog(id, userID, "name-"+userID, "+700", "", nil, createdAt), nil
	})
	require.NoError(t, err)
	require.True(t, created)
	return d
}

func acceptDialog(t *testing.T, s *DocumentStore, id, operatorID string) *Dialog {
	t.Helper()
	d, err := s.UpdateDialog(context.Background(), id, func(d *Dialog) error {
		_, err := d.Accept(operatorID, time.Now())
		return err
	})
	require.NoError(t, err)
	return d
}

func TestDocumentStore_CreateRegistersUserIndex(t *testing.T) {
	s, backend := newTestDialogStore(t)
	ctx := context.Background()

	insertDialog(t, s, "d-1", "u-1", time.Now())

	id, err := s.UserDialogID(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "d-1", id)

	ops, err := s.OperatorDialogIDs(ctx, "op-1")
	require.NoError(t, err)
	assert.Empty(t, ops, "creation must not touch the operator index")
	assert.Equal(t, 1, backend.Saves())
}

func TestDocumentStore_CreateForUserSeesCurrent(t *testing.T) {
	s, _ := newTestDialogStore(t)
	insertDialog(t, s, "d-1", "u-1", time.Now())

	var seen *Dialog
	d, created, err := s.CreateForUser(context.Background(), "u-1", func(current *Dialog) (*Dialog, error) {
		seen = current
		return nil, nil
	})
	require.NoError(t, err)
	assert.False(t, created)
	require.NotNil(t, seen)
	assert.Equal(t, "d-1", seen.ID)
	assert.Equal(t, "d-1", d.ID)
}

func TestDocumentStore_CreateForUserRejectsMismatchAndDuplicate(t *testing.T) {
	s, _ := newTestDialogStore(t)
	ctx := context.Background()
	insertDialog(t, s, "d-1", "u-1", time.Now())

	_, _, err := s.CreateForUser(ctx, "u-2", func(*Dialog) (*Dialog, error) {
		return NewDialog("d-2", "u-3", "", "", "", nil, time.Now()), nil
	})
	assert.ErrorIs(t, err, ErrUserMismatch)

	_, _, err = s.CreateForUser(ctx, "u-2", func(*Dialog) (*Dialog, error) {
		return NewDialog("d-1", "u-2", "", "", "", nil, time.Now()), nil
	})
	assert.ErrorIs(t, err, ErrDuplicateDialog)
}

func TestDocumentStore_AcceptAddsOperatorIndex(t *testing.T) {
	s, _ := newTestDialogStore(t)
	ctx := context.Background()
	insertDialog(t, s, "d-1", "u-1", time.Now())

	d := acceptDialog(t, s, "d-1", "op-1")
	assert.Equal(t, StatusActive, d.Status)

	ops, err := s.OperatorDialogIDs(ctx, "op-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"d-1"}, ops)

	// Idempotent accept does not duplicate the index entry
	acceptDialog(t, s, "d-1", "op-1")
	ops, _ = s.OperatorDialogIDs(ctx, "op-1")
	assert.Equal(t, []string{"d-1"}, ops)
}

func TestDocumentStore_CloseClearsBothIndexes(t *testing.T) {
	s, _ := newTestDialogStore(t)
	ctx := context.Background()
	insertDialog(t, s, "d-1", "u-1", time.Now())
	acceptDialog(t, s, "d-1", "op-1")

	d, err := s.UpdateDialog(ctx, "d-1", func(d *Dialog) error {
		return d.Close(time.Now())
	})
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, d.Status)

	id, _ := s.UserDialogID(ctx, "u-1")
	assert.Empty(t, id)
	ops, _ := s.OperatorDialogIDs(ctx, "op-1")
	assert.Empty(t, ops)

	// Record is retained for history
	got, err := s.GetDialog(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, got.Status)
}

func TestDocumentStore_CloseLeavesNewerUserPointer(t *testing.T) {
	backend := NewMemoryConfigStore()
	doc := NewDocument()
	old := NewDialog("d-old", "u-1", "", "", "", nil, time.Unix(1, 0))
	newer := NewDialog("d-new", "u-1", "", "", "", nil, time.Unix(2, 0))
	doc.Dialogs[old.ID] = old
	doc.Dialogs[newer.ID] = newer
	doc.UserActiveDialogs["u-1"] = "d-new"
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	backend.Put(DocumentDialogs, data)

	s := NewDocumentStore(context.Background(), backend, nil)
	_, err = s.UpdateDialog(context.Background(), "d-old", func(d *Dialog) error {
		return d.Close(time.Now())
	})
	require.NoError(t, err)

	id, _ := s.UserDialogID(context.Background(), "u-1")
	assert.Equal(t, "d-new", id)
}

func TestDocumentStore_UpdateUnknownDialog(t *testing.T) {
	s, _ := newTestDialogStore(t)
	called := false
	_, err := s.UpdateDialog(context.Background(), "missing", func(*Dialog) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, called)
}

func TestDocumentStore_UpdateErrorDoesNotPersist(t *testing.T) {
	s, backend := newTestDialogStore(t)
	insertDialog(t, s, "d-1", "u-1", time.Now())
	saves := backend.Saves()

	boom := errors.New("boom")
	_, err := s.UpdateDialog(context.Background(), "d-1", func(d *Dialog) error {
		d.Status = StatusClosed
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, saves, backend.Saves())

	got, _ := s.GetDialog(context.Background(), "d-1")
	assert.Equal(t, StatusPending, got.Status)
}

func TestDocumentStore_SaveFailureRollsBack(t *testing.T) {
	s, backend := newTestDialogStore(t)
	ctx := context.Background()
	insertDialog(t, s, "d-1", "u-1", time.Now())

	backend.SaveErr = errors.New("disk full")
	_, err := s.UpdateDialog(ctx, "d-1", func(d *Dialog) error {
		return d.Close(time.Now())
	})
	require.Error(t, err)

	got, _ := s.GetDialog(ctx, "d-1")
	assert.Equal(t, StatusPending, got.Status)
	id, _ := s.UserDialogID(ctx, "u-1")
	assert.Equal(t, "d-1", id)

	_, created, err := s.CreateForUser(ctx, "u-2", func(*Dialog) (*Dialog, error) {
		return NewDialog("d-2", "u-2", "", "", "", nil, time.Now()), nil
	})
	require.Error(t, err)
	assert.False(t, created)
	_, err = s.GetDialog(ctx, "d-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDocumentStore_ReturnsCopies(t *testing.T) {
	s, _ := newTestDialogStore(t)
	ctx := context.Background()
	insertDialog(t, s, "d-1", "u-1", time.Now())

	got, err := s.GetDialog(ctx, "d-1")
	require.NoError(t, err)
	got.Status = StatusClosed
	got.Messages = append(got.Messages, DialogMessage{Text: "sneaky"})

	again, _ := s.GetDialog(ctx, "d-1")
	assert.Equal(t, StatusPending, again.Status)
	assert.Empty(t, again.Messages)
}

func TestDocumentStore_ListDialogsFiltersAndOrders(t *testing.T) {
	s, _ := newTestDialogStore(t)
	ctx := context.Background()
	insertDialog(t, s, "d-b", "u-2", time.Unix(200, 0))
	insertDialog(t, s, "d-a", "u-1", time.Unix(100, 0))
	insertDialog(t, s, "d-c", "u-3", time.Unix(300, 0))
	acceptDialog(t, s, "d-c", "op-1")

	pending, err := s.ListDialogs(ctx, StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "d-a", pending[0].ID)
	assert.Equal(t, "d-b", pending[1].ID)

	all, err := s.ListDialogs(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDocumentStore_PersistsAcrossReopen(t *testing.T) {
	s, backend := newTestDialogStore(t)
	ctx := context.Background()
	insertDialog(t, s, "d-1", "u-1", time.Unix(100, 0))
	acceptDialog(t, s, "d-1", "op-1")
	_, err := s.UpdateDialog(ctx, "d-1", func(d *Dialog) error {
		d.Append(SenderUser, "hello", time.Unix(150, 0))
		return nil
	})
	require.NoError(t, err)

	reopened := NewDocumentStore(ctx, backend, nil)
	got, err := reopened.GetDialog(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)
	assert.Equal(t, "op-1", got.OperatorID)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, SenderUser, got.Messages[0].Sender)

	ops, _ := reopened.OperatorDialogIDs(ctx, "op-1")
	assert.Equal(t, []string{"d-1"}, ops)
}

func TestDocumentStore_CorruptDocumentStartsEmpty(t *testing.T) {
	backend := NewMemoryConfigStore()
	backend.Put(DocumentDialogs, []byte("{not json"))

	s := NewDocumentStore(context.Background(), backend, nil)
	all, err := s.ListDialogs(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, all)

	// Still usable after recovery
	insertDialog(t, s, "d-1", "u-1", time.Now())
}

func TestDocumentStore_ConcurrentAcceptFirstWins(t *testing.T) {
	s, _ := newTestDialogStore(t)
	ctx := context.Background()
	insertDialog(t, s, "d-1", "u-1", time.Now())

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := range 20 {
		op := "op-" + string(rune('a'+i))
		wg.Go(func() {
			var changed bool
			_, err := s.UpdateDialog(ctx, "d-1", func(d *Dialog) error {
				var err error
				changed, err = d.Accept(op, time.Now())
				return err
			})
			if err == nil && changed {
				wins.Add(1)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	got, _ := s.GetDialog(ctx, "d-1")
	ops, _ := s.OperatorDialogIDs(ctx, got.OperatorID)
	assert.Equal(t, []string{"d-1"}, ops)
	assert.Equal(t, 0, s.locks.size(), "all key locks released")
}

func TestDocumentStore_ConcurrentCreateOneOpenPerUser(t *testing.T) {
	s, _ := newTestDialogStore(t)
	ctx := context.Background()

	var created atomic.Int32
	var wg sync.WaitGroup
	for i := range 10 {
		id := "d-" + string(rune('a'+i))
		wg.Go(func() {
			_, ok, err := s.CreateForUser(ctx, "u-1", func(current *Dialog) (*Dialog, error) {
				if current != nil && current.Status.IsOpen() {
					return nil, nil
				}
				return NewDialog(id, "u-1", "", "", "", nil, time.Now()), nil
			})
			if err == nil && ok {
				created.Add(1)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	pending, _ := s.ListDialogs(ctx, StatusPending)
	assert.Len(t, pending, 1)
}
