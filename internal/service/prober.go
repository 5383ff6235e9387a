package service

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/mir00r/giftcert-router/internal/domain"
	"github.com/mir00r/giftcert-router/internal/errors"
)

// OpenFunc opens a database handle. sql.Open satisfies it.
type OpenFunc func(driver, dsn string) (*sql.DB, error)

// SQLProber checks replica liveness by running a role specific query
// over a fresh single-connection handle
type SQLProber struct {
	driver  string
	timeout time.Duration
	queries map[domain.ReplicaRole]string
	open    OpenFunc
}

// NewSQLProber creates a prober from the database configuration
func NewSQLProber(config domain.ProbeConfig) (*SQLProber, error) {
	queries, err := config.RoleQueries()
	if err != nil {
		return nil, err
	}
	if config.Driver == "" {
		config.Driver = "postgres"
	}
	if config.Timeout <= 0 {
		config.Timeout = time.Second
	}

	return &SQLProber{
		driver:  config.Driver,
		timeout: config.Timeout,
		queries: queries,
		open:    sql.Open,
	}, nil
}

// WithOpener replaces the function used to open handles
func (p *SQLProber) WithOpener(open OpenFunc) *SQLProber {
	p.open = open
	return p
}

// Probe opens replica.Target and runs its liveness query. On success the
// open handle is returned and the caller owns it. On failure nothing is
// left open.
func (p *SQLProber) Probe(ctx context.Context, replica domain.ReplicaState) (domain.Handle, error) {
	query, ok := p.queries[replica.Role]
	if !ok {
		return nil, errors.NewProbeError(replica.TargetWithoutCredentials,
			fmt.Errorf("no probe query for role %s", replica.Role))
	}

	db, err := p.open(p.driver, replica.Target)
	if err != nil {
		return nil, errors.NewProbeError(replica.TargetWithoutCredentials, fmt.Errorf("open: %w", scrubCause(err, replica)))
	}
	db.SetMaxOpenConns(1)

	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	rows, err := db.QueryContext(probeCtx, query)
	if err != nil {
		db.Close()
		return nil, errors.NewProbeError(replica.TargetWithoutCredentials, fmt.Errorf("liveness query: %w", scrubCause(err, replica)))
	}
	if err := rows.Close(); err != nil {
		db.Close()
		return nil, errors.NewProbeError(replica.TargetWithoutCredentials, fmt.Errorf("liveness query: %w", scrubCause(err, replica)))
	}

	return db, nil
}

// scrubbedError keeps the cause for errors.Is while hiding its text
type scrubbedError struct {
	msg   string
	cause error
}

func (e *scrubbedError) Error() string { return e.msg }
func (e *scrubbedError) Unwrap() error { return e.cause }

// scrubCause rewrites driver errors that quote the raw target, such as the
// *url.Error lib/pq returns for an unparseable URL
func scrubCause(err error, replica domain.ReplicaState) error {
	msg := err.Error()

	var urlErr *url.Error
	if stderrors.As(err, &urlErr) {
		safe := fmt.Sprintf("%s %q: %v", urlErr.Op, replica.TargetWithoutCredentials, urlErr.Err)
		msg = strings.ReplaceAll(msg, urlErr.Error(), safe)
	}
	if replica.Target != "" && replica.Target != replica.TargetWithoutCredentials {
		msg = strings.ReplaceAll(msg, strconv.Quote(replica.Target), strconv.Quote(replica.TargetWithoutCredentials))
		msg = strings.ReplaceAll(msg, replica.Target, replica.TargetWithoutCredentials)
	}

	return &scrubbedError{msg: msg, cause: err}
}
