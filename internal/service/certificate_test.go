package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mir00r/giftcert-router/internal/domain"
	"github.com/mir00r/giftcert-router/internal/errors"
	"github.com/mir00r/giftcert-router/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSelector hands out a fixed connection or error
type stubSelector struct {
	conn  *domain.Connection
	err   error
	calls int
}

func (s *stubSelector) Select(ctx context.Context) (*domain.Connection, error) {
	s.calls++
	return s.conn, s.err
}

func newMockConnection(t *testing.T) (*domain.Connection, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return &domain.Connection{Handle: db, Role: domain.RolePrimary, TargetWithoutCredentials: "host=db1"}, mock
}

func newCertificateService(selector domain.ConnectionSelector, driver string) *CertificateService {
	return NewCertificateService(selector, domain.ProbeConfig{Driver: driver, QueryTimeout: time.Second}, NewMetrics(), logger.NewNop())
}

func TestGetBalances_MapsBackCallerSpelling(t *testing.T) {
	conn, mock := newMockConnection(t)
	svc := newCertificateService(&stubSelector{conn: conn}, "postgres")

	mock.ExpectQuery(regexp.QuoteMeta(postgresBalanceQuery)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"barcode", "sum"}).
			AddRow("AAO11111111", "150.50").
			AddRow("BBB22222222", "20"))
	mock.ExpectClose()

	result, err := svc.GetBalances(context.Background(), []string{"aao11111111", "BBB22222222", "AAO11111111"})
	require.NoError(t, err)
	require.Len(t, result, 2)

	assert.Equal(t, "aao11111111", result[0].Barcode)
	assert.True(t, decimal.RequireFromString("150.50").Equal(result[0].Sum))
	assert.Equal(t, "BBB22222222", result[1].Barcode)
	assert.True(t, decimal.NewFromInt(20).Equal(result[1].Sum))

	assert.NoError(t, mock.ExpectationsWereMet(), "connection is closed after the lookup")
}

func TestGetBalances_EmptyResult(t *testing.T) {
	conn, mock := newMockConnection(t)
	svc := newCertificateService(&stubSelector{conn: conn}, "postgres")

	mock.ExpectQuery(regexp.QuoteMeta(postgresBalanceQuery)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"barcode", "sum"}))
	mock.ExpectClose()

	result, err := svc.GetBalances(context.Background(), []string{"AAO11111111"})
	require.NoError(t, err)
	assert.Empty(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBalances_MySQLPlaceholders(t *testing.T) {
	conn, mock := newMockConnection(t)
	svc := newCertificateService(&stubSelector{conn: conn}, "mysql")

	query, args := svc.balanceQuery([]string{"AAO11111111", "BBB22222222"})
	assert.Contains(t, query, "IN (?, ?)")
	assert.Len(t, args, 2)

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs("AAO11111111", "BBB22222222").
		WillReturnRows(sqlmock.NewRows([]string{"barcode", "sum"}).AddRow("AAO11111111", 10.25))
	mock.ExpectClose()

	result, err := svc.GetBalances(context.Background(), []string{"AAO11111111", "BBB22222222"})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "10.25", result[0].Sum.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBalances_SelectorErrorPropagates(t *testing.T) {
	selector := &stubSelector{err: errors.NewNoConnectionError(2)}
	svc := newCertificateService(selector, "postgres")

	_, err := svc.GetBalances(context.Background(), []string{"AAO11111111"})
	assert.ErrorIs(t, err, errors.ErrNoConnection)
	assert.Equal(t, 1, selector.calls)
}

func TestGetBalances_QueryErrorIsWrapped(t *testing.T) {
	conn, mock := newMockConnection(t)
	svc := newCertificateService(&stubSelector{conn: conn}, "postgres")

	mock.ExpectQuery(regexp.QuoteMeta(postgresBalanceQuery)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnError(fmt.Errorf("relation does not exist"))
	mock.ExpectClose()

	_, err := svc.GetBalances(context.Background(), []string{"AAO11111111"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeQueryFailed, errors.GetErrorCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBalances_UsesRequestContext(t *testing.T) {
	conn, mock := newMockConnection(t)
	svc := newCertificateService(&stubSelector{conn: conn}, "postgres")

	mock.ExpectQuery(regexp.QuoteMeta(postgresBalanceQuery)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"barcode", "sum"}))
	mock.ExpectClose()

	ctx := domain.WithRequestContext(context.Background(), &domain.RequestContext{RequestID: "req-1", Path: "/api/giftcert", Method: "GET"})
	_, err := svc.GetBalances(ctx, []string{"AAO11111111"})
	require.NoError(t, err)
}

var _ domain.Handle = (*sql.DB)(nil)

func TestCertificateBalance_MarshalJSONWritesNumber(t *testing.T) {
	require.False(t, decimal.MarshalJSONWithoutQuotes, "package default is quoted")

	body, err := json.Marshal([]CertificateBalance{
		{Barcode: "ABC12345678", Sum: decimal.RequireFromString("12.50")},
		{Barcode: "XYZ12345678", Sum: decimal.NewFromInt(3)},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"barcode":"ABC12345678","sum":12.5},{"barcode":"XYZ12345678","sum":3}]`, string(body))
}
