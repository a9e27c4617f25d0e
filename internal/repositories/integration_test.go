//go:build integration

package repositories

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/desertthunder/trackwatch/internal/models"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := OpenPostgres(s.ctx, connStr)
	s.Require().NoError(err)
	s.db = db

	s.Require().NoError(NewPostgresRepository(db).EnsureSchema(s.ctx))
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) TestContract() {
	testRepositoryContract(s.T(), func(t *testing.T) models.IdentityRepository {
		_, err := s.db.ExecContext(s.ctx, "DELETE FROM identities")
		s.Require().NoError(err)
		return NewPostgresRepository(s.db)
	})
}

func (s *PostgresIntegrationSuite) TestEnsureSchema_Idempotent() {
	s.NoError(NewPostgresRepository(s.db).EnsureSchema(s.ctx))
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

type RedisIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *tcredis.RedisContainer
	client    *redis.Client
	runs      int
}

func (s *RedisIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := tcredis.Run(s.ctx, "redis:7-alpine")
	s.Require().NoError(err)
	s.container = container

	uri, err := container.ConnectionString(s.ctx)
	s.Require().NoError(err)

	opts, err := redis.ParseURL(uri)
	s.Require().NoError(err)

	client, err := OpenRedis(s.ctx, opts.Addr, opts.Password, opts.DB)
	s.Require().NoError(err)
	s.client = client
}

func (s *RedisIntegrationSuite) TearDownSuite() {
	if s.client != nil {
		s.client.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *RedisIntegrationSuite) TestContract() {
	testRepositoryContract(s.T(), func(t *testing.T) models.IdentityRepository {
		s.runs++
		return NewRedisRepository(s.client, fmt.Sprintf("test%d", s.runs))
	})
}

func (s *RedisIntegrationSuite) TestConcurrentPartialUpdates() {
	repo := NewRedisRepository(s.client, "concurrent")
	s.Require().NoError(repo.Upsert(s.ctx, newIdentity("alice")))

	added := time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC)
	expires := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	done := make(chan error, 2)
	go func() { done <- repo.SaveTokens(s.ctx, "alice", "new-access", "new-refresh", expires) }()
	go func() { done <- repo.SaveProgress(s.ctx, "alice", `"v2"`, &added) }()
	s.NoError(<-done)
	s.NoError(<-done)

	got, err := repo.Get(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal("new-access", got.AccessToken)
	s.Equal(`"v2"`, got.ETag)
	s.Require().NotNil(got.LastAdded)
	s.True(got.LastAdded.Equal(added))
}

func TestRedisIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RedisIntegrationSuite))
}
