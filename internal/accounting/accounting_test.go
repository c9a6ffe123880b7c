package accounting

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSettings struct {
	mock.Mock
}

func (m *MockSettings) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

type MockSyncer struct {
	mock.Mock
}

func (m *MockSyncer) Sync(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SyncResult), args.Error(1)
}

func TestSettingsRepository_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSettingsRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(`SELECT value FROM settings WHERE key = \$1`).
			WithArgs(TokenSettingKey).
			WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("tok-123"))

		v, err := repo.Get(ctx, TokenSettingKey)
		assert.NoError(t, err)
		assert.Equal(t, "tok-123", v)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(`SELECT value FROM settings`).WillReturnError(sql.ErrNoRows)

		_, err := repo.Get(ctx, TokenSettingKey)
		assert.ErrorIs(t, err, ErrSettingNotFound)
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectQuery(`SELECT value FROM settings`).WillReturnError(errors.New("db error"))

		_, err := repo.Get(ctx, TokenSettingKey)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrSettingNotFound)
	})
}

func TestHTTPSyncer_Sync(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		var got SyncRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_, _ = w.Write([]byte(`{"synced": 1, "skipped": 0}`))
		}))
		defer srv.Close()

		settings := new(MockSettings)
		settings.On("Get", ctx, TokenSettingKey).Return("tok-123", nil)
		s := NewHTTPSyncer(srv.URL, settings, srv.Client())

		res, err := s.Sync(ctx, SyncRequest{Scope: ScopeOrder, OrderID: "ord-1"})

		require.NoError(t, err)
		assert.Equal(t, 1, res.Synced)
		assert.Equal(t, SyncRequest{Scope: ScopeOrder, OrderID: "ord-1"}, got)
	})

	t.Run("TokenReadEveryRun", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		settings := new(MockSettings)
		settings.On("Get", ctx, TokenSettingKey).Return("tok-123", nil)
		s := NewHTTPSyncer(srv.URL, settings, srv.Client())

		_, err := s.Sync(ctx, SyncRequest{Scope: ScopeAll})
		require.NoError(t, err)
		_, err = s.Sync(ctx, SyncRequest{Scope: ScopeAll})
		require.NoError(t, err)

		settings.AssertNumberOfCalls(t, "Get", 2)
	})

	t.Run("UpstreamError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "ledger locked", http.StatusBadGateway)
		}))
		defer srv.Close()

		settings := new(MockSettings)
		settings.On("Get", ctx, TokenSettingKey).Return("tok-123", nil)
		s := NewHTTPSyncer(srv.URL, settings, srv.Client())

		_, err := s.Sync(ctx, SyncRequest{Scope: ScopeAll})

		assert.ErrorContains(t, err, "unexpected status 502")
	})

	t.Run("MissingToken", func(t *testing.T) {
		settings := new(MockSettings)
		settings.On("Get", ctx, TokenSettingKey).Return("", ErrSettingNotFound)
		s := NewHTTPSyncer("http://accounting.invalid/sync", settings, nil)

		_, err := s.Sync(ctx, SyncRequest{Scope: ScopeAll})

		assert.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("NoURL", func(t *testing.T) {
		s := NewHTTPSyncer("", new(MockSettings), nil)

		_, err := s.Sync(ctx, SyncRequest{Scope: ScopeAll})

		assert.ErrorIs(t, err, ErrNotConfigured)
	})
}

func TestTrigger(t *testing.T) {
	ctx := context.Background()
	orderID := uuid.New()

	t.Run("SyncOrder", func(t *testing.T) {
		syncer := new(MockSyncer)
		syncer.On("Sync", ctx, SyncRequest{Scope: ScopeOrder, OrderID: orderID.String()}).Return(&SyncResult{Synced: 1}, nil)

		assert.NoError(t, NewTrigger(syncer).SyncOrder(ctx, orderID))
		syncer.AssertExpectations(t)
	})

	t.Run("SyncOrderError", func(t *testing.T) {
		syncer := new(MockSyncer)
		syncer.On("Sync", ctx, mock.Anything).Return(nil, errors.New("timeout"))

		assert.Error(t, NewTrigger(syncer).SyncOrder(ctx, orderID))
	})

	t.Run("SyncAll", func(t *testing.T) {
		syncer := new(MockSyncer)
		syncer.On("Sync", ctx, SyncRequest{Scope: ScopeAll}).Return(&SyncResult{Synced: 4, Skipped: 1}, nil)

		res, err := NewTrigger(syncer).SyncAll(ctx)

		require.NoError(t, err)
		assert.Equal(t, 4, res.Synced)
	})
}

type stubManual struct {
	res *SyncResult
	err error
}

func (s stubManual) SyncAll(context.Context) (*SyncResult, error) {
	return s.res, s.err
}

func TestHandler_Sync(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		rr := httptest.NewRecorder()
		NewHandler(stubManual{res: &SyncResult{Synced: 3}}).Sync(rr, httptest.NewRequest(http.MethodPost, "/api/admin/accounting/sync", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"synced":3`)
	})

	t.Run("Failure", func(t *testing.T) {
		rr := httptest.NewRecorder()
		NewHandler(stubManual{err: errors.New("boom")}).Sync(rr, httptest.NewRequest(http.MethodPost, "/api/admin/accounting/sync", nil))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), "boom")
	})

	t.Run("NotConfigured", func(t *testing.T) {
		rr := httptest.NewRecorder()
		NewHandler(stubManual{err: ErrNotConfigured}).Sync(rr, httptest.NewRequest(http.MethodPost, "/api/admin/accounting/sync", nil))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Contains(t, rr.Body.String(), "not configured")
	})
}
