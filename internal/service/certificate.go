package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/mir00r/giftcert-router/internal/domain"
	"github.com/mir00r/giftcert-router/internal/errors"
	"github.com/mir00r/giftcert-router/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const postgresBalanceQuery = `SELECT c.barcode, SUM(b.amount)
FROM certificates c
JOIN certificate_balances b ON b.certificate_id = c.id
WHERE c.barcode = ANY($1) AND c.active
GROUP BY c.id, c.barcode
HAVING SUM(b.amount) > 0`

const mysqlBalanceQuery = `SELECT c.barcode, SUM(b.amount)
FROM certificates c
JOIN certificate_balances b ON b.certificate_id = c.id
WHERE c.barcode IN (%s) AND c.active
GROUP BY c.id, c.barcode
HAVING SUM(b.amount) > 0`

// CertificateBalance is the remaining amount of one active certificate
type CertificateBalance struct {
	Barcode string          `json:"barcode"`
	Sum     decimal.Decimal `json:"sum"`
}

// MarshalJSON renders Sum as a JSON number whatever the decimal package
// defaults are
func (b CertificateBalance) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Barcode string      `json:"barcode"`
		Sum     json.Number `json:"sum"`
	}{
		Barcode: b.Barcode,
		Sum:     json.Number(b.Sum.String()),
	})
}

// CertificateService answers balance lookups over a freshly selected
// connection per call
type CertificateService struct {
	selector     domain.ConnectionSelector
	driver       string
	queryTimeout time.Duration
	metrics      *Metrics
	logger       *logger.Logger
}

// NewCertificateService creates the lookup service
func NewCertificateService(selector domain.ConnectionSelector, config domain.ProbeConfig, metrics *Metrics, log *logger.Logger) *CertificateService {
	if config.QueryTimeout <= 0 {
		config.QueryTimeout = 5 * time.Second
	}
	if config.Driver == "" {
		config.Driver = "postgres"
	}
	return &CertificateService{
		selector:     selector,
		driver:       config.Driver,
		queryTimeout: config.QueryTimeout,
		metrics:      metrics,
		logger:       log.WithField("component", "certificates"),
	}
}

// GetBalances returns the balances of the active certificates among
// barcodes. Lookup is case-insensitive; each result carries the barcode as
// the caller spelled it. Certificates without a positive balance are omitted.
func (s *CertificateService) GetBalances(ctx context.Context, barcodes []string) ([]CertificateBalance, error) {
	spelling := make(map[string]string, len(barcodes))
	normalized := make([]string, 0, len(barcodes))
	for _, barcode := range barcodes {
		upper := strings.ToUpper(barcode)
		if _, seen := spelling[upper]; seen {
			continue
		}
		spelling[upper] = barcode
		normalized = append(normalized, upper)
	}

	log := s.requestLogger(ctx).WithField("barcodes", len(normalized))

	selectStart := time.Now()
	conn, err := s.selector.Select(ctx)
	selectElapsed := time.Since(selectStart)
	if err != nil {
		s.metrics.RecordLookup("no_connection")
		log.WithFields(logrus.Fields{
			"status":            "error",
			"load_balancing_ms": selectElapsed.Milliseconds(),
		}).WithError(err).Error("Certificate lookup failed")
		return nil, err
	}
	defer conn.Close()

	log = log.WithFields(logrus.Fields{
		"target":            conn.TargetWithoutCredentials,
		"load_balancing_ms": selectElapsed.Milliseconds(),
	})

	queryStart := time.Now()
	result, err := s.query(ctx, conn, normalized, spelling)
	log = log.WithField("sql_ms", time.Since(queryStart).Milliseconds())
	if err != nil {
		s.metrics.RecordLookup("query_error")
		log.WithField("status", "error").WithError(err).Error("Certificate lookup failed")
		return nil, err
	}

	s.metrics.RecordLookup("ok")
	log.WithFields(logrus.Fields{
		"status":  "ok",
		"results": len(result),
	}).Info("Certificate lookup completed")
	return result, nil
}

func (s *CertificateService) query(ctx context.Context, conn *domain.Connection, barcodes []string, spelling map[string]string) ([]CertificateBalance, error) {
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	query, args := s.balanceQuery(barcodes)
	rows, err := conn.Handle.QueryContext(queryCtx, query, args...)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeQueryFailed, "certificates", "balance query failed")
	}
	defer rows.Close()

	result := make([]CertificateBalance, 0, len(barcodes))
	for rows.Next() {
		var barcode string
		var sum decimal.Decimal
		if err := rows.Scan(&barcode, &sum); err != nil {
			return nil, errors.WrapError(err, errors.ErrCodeQueryFailed, "certificates", "failed to scan balance")
		}
		if original, ok := spelling[strings.ToUpper(barcode)]; ok {
			barcode = original
		}
		result = append(result, CertificateBalance{Barcode: barcode, Sum: sum})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeQueryFailed, "certificates", "balance query failed")
	}

	return result, nil
}

// balanceQuery returns the dialect specific query and its arguments
func (s *CertificateService) balanceQuery(barcodes []string) (string, []interface{}) {
	if s.driver == "mysql" {
		placeholders := make([]string, len(barcodes))
		args := make([]interface{}, len(barcodes))
		for i, barcode := range barcodes {
			placeholders[i] = "?"
			args[i] = barcode
		}
		return fmt.Sprintf(mysqlBalanceQuery, strings.Join(placeholders, ", ")), args
	}
	return postgresBalanceQuery, []interface{}{pq.Array(barcodes)}
}

func (s *CertificateService) requestLogger(ctx context.Context) *logger.Logger {
	rc, ok := domain.RequestContextFrom(ctx)
	if !ok {
		return s.logger
	}
	return s.logger.WithFields(logrus.Fields{
		"request_id": rc.RequestID,
		"path":       fmt.Sprintf("%s(%s)", rc.Path, rc.Method),
		"host":       rc.Host,
		"user":       rc.User,
		"referer":    rc.Referer,
		"user_agent": rc.UserAgent,
		"remote_ip":  rc.RemoteAddr,
	})
}
