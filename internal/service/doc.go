/*
Package service implements the application layer of the gift-certificate router.

Key Components:

FailoverSelector:
Hands out one verified database connection per call. Replicas come from a
domain.ReplicaRegistry and are checked by a domain.Prober before use.

	prober, err := service.NewSQLProber(cfg.Database)
	if err != nil {
		return err
	}
	selector := service.NewFailoverSelector(registry, prober, log,
		service.WithMetrics(metrics),
	)

	conn, err := selector.Select(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

SQLProber:
Opens a single-connection *sql.DB and runs the liveness query of the
replica's role under a short timeout. Both lib/pq and go-sql-driver/mysql
are registered.

CertificateService:
Looks up certificate balances over a freshly selected connection:

	balances, err := certificates.GetBalances(ctx, []string{"AAO11111111"})

ScrubCredentials:
Removes user names and passwords from connection targets before they are
logged.

Metrics:
Prometheus collectors for probes, selections and lookups on a private
registry, exposed through Metrics.Handler.
*/
package service
