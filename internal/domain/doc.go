/*
Package domain contains the core types of the replica router.

A ReplicaConfig is one configured database: a connection target, a relative
priority and a role. The role picks the liveness query that is run before a
connection is handed out:

	main            the writable primary
	replica_full    a fully synchronized replica
	replica_tables  a replica carrying only the lookup tables

Selection happens in two modes. In WeightedMode a single draw in [0, 100)
falls into the cumulative priority bucket of one candidate:

	replicas: db1 (70), db2 (30)
	draw 50 -> db1, draw 80 -> db2

If no weighted candidate answers, the call switches to ExhaustiveMode and
tries every replica that has not failed yet, in configuration order,
regardless of priority. Priority 0 replicas are only reachable this way.

A successful selection yields a Connection that the caller owns and must
close. TargetWithoutCredentials is for logs only and is never used to
connect.
*/
package domain
