package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/walletd/pkg/contextkeys"
)

const orgID = "5a0c2b44-1f3e-4d7a-9b61-7e2d4c8f0a93"

func TestNewEventTakesIdentityFromContext(t *testing.T) {
	ctx := contextkeys.WithActor(context.Background(), "admin-7", "super_admin")
	ctx = contextkeys.WithRequestID(ctx, "req-1")

	e := NewEvent(ctx, ActionConfigUpdate, ResourceTypeConfig, "pricing_per_hour")
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, "admin-7", e.ActorID)
	assert.Equal(t, "req-1", e.RequestID)
	assert.True(t, e.Action.Valid())
	assert.False(t, Action("WALLET_TRANSFER").Valid())
}

func TestMemoryLoggerSearch(t *testing.T) {
	l := NewMemoryLogger()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, action := range []Action{ActionWalletCredit, ActionWalletDebit, ActionWalletCredit} {
		require.NoError(t, l.Log(ctx, &Event{
			Action:         action,
			ActorID:        "admin",
			OrganizationID: orgID,
			Timestamp:      base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, l.Log(ctx, &Event{Action: ActionConfigUpdate, ActorID: "admin", Timestamp: base}))

	all, err := l.Search(ctx, SearchFilter{OrganizationID: orgID})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, base.Add(2*time.Minute), all[0].Timestamp)

	credits, err := l.Search(ctx, SearchFilter{Action: ActionWalletCredit, Limit: 1})
	require.NoError(t, err)
	require.Len(t, credits, 1)
	assert.NotEmpty(t, credits[0].ID)

	start := base.Add(30 * time.Second)
	later, err := l.Search(ctx, SearchFilter{StartTime: &start})
	require.NoError(t, err)
	assert.Len(t, later, 2)
}

func TestDBLoggerLog(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	l, err := NewDBLogger(db)
	require.NoError(t, err)

	event := &Event{
		Action:         ActionWalletDebit,
		ActorID:        "admin",
		OrganizationID: orgID,
		ResourceType:   ResourceTypeWallet,
		ResourceID:     orgID,
		Changes: &ChangeDetails{
			Before: map[string]any{"balance": 500},
			After:  map[string]any{"balance": 300},
		},
	}

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "WALLET_DEBIT", "admin", orgID,
			"wallet", orgID, nil, nil, []byte(`{"before":{"balance":500},"after":{"balance":300}}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, l.Log(context.Background(), event))
	assert.NotEmpty(t, event.ID)
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = NewDBLogger(nil)
	assert.Error(t, err)
}

func TestDBLoggerSearch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	l, err := NewDBLogger(db)
	require.NoError(t, err)
	now := time.Now()

	mock.ExpectQuery("FROM audit_logs WHERE organization_id = \\$1 AND action = \\$2 ORDER BY timestamp DESC LIMIT \\$3").
		WithArgs(orgID, "CONFIG_UPDATE", DefaultSearchLimit).
		WillReturnRows(sqlmock.NewRows([]string{"id", "timestamp", "action", "actor_id", "organization_id",
			"resource_type", "resource_id", "request_id", "message", "changes"}).
			AddRow("e1", now, "CONFIG_UPDATE", "admin", orgID, "config", "pricing_per_hour", nil, nil,
				[]byte(`{"before":{"rate_per_hour":200},"after":{"rate_per_hour":300}}`)))

	events, err := l.Search(context.Background(), SearchFilter{OrganizationID: orgID, Action: ActionConfigUpdate})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ResourceTypeConfig, events[0].ResourceType)
	require.NotNil(t, events[0].Changes)
	assert.Equal(t, float64(300), events[0].Changes.After["rate_per_hour"])
	assert.NoError(t, mock.ExpectationsWereMet())

	events, err = l.Search(context.Background(), SearchFilter{OrganizationID: "not-a-uuid"})
	require.NoError(t, err)
	assert.Empty(t, events)
}

type failingLogger struct{ NoOpLogger }

func (failingLogger) Log(context.Context, *Event) error { return errors.New("sink down") }

func TestMultiLogger(t *testing.T) {
	mem := NewMemoryLogger()
	logger, hook := test.NewNullLogger()
	m := NewMultiLogger(mem, NewLogrusLogger(logger), failingLogger{})
	ctx := context.Background()

	err := m.Log(ctx, &Event{Action: ActionOrganizationCreate, ActorID: "admin", OrganizationID: orgID, Message: "Organization created"})
	assert.EqualError(t, err, "sink down")

	events, err := m.Search(ctx, SearchFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)

	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, "Organization created", entry.Message)
	assert.Equal(t, ActionOrganizationCreate, entry.Data["action"])
	assert.Equal(t, events[0].ID, entry.Data["audit_id"], "all sinks see the same id")

	assert.NoError(t, m.Close())
}
