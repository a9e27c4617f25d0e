// Package repositories implements [models.IdentityRepository] storage backends.
//
// Key Implementations:
//   - [SQLiteRepository] : default single-file store, schema managed by the shared migration runner
//   - [PostgresRepository] : sqlx on lib/pq for shared deployments
//   - [RedisRepository] : one JSON document per identity plus an id set, for key-value deployments
//
// Every backend returns [shared.ErrIdentityNotFound] from Get when the id is absent,
// and applies SaveTokens and SaveProgress as single atomic writes of their field subset.
package repositories
