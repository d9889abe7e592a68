// Package tenant maps a user identity to the organization that owns its
// movements.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a user belongs to no organization.
var ErrNotFound = errors.New("organization not found for user")

// Resolver resolves a user identity to an organization id.
type Resolver interface {
	Resolve(ctx context.Context, userIdentity string) (int64, error)
}

// Querier is the pool subset used by PostgresResolver.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresResolver reads memberships from the organization_members table.
type PostgresResolver struct {
	db Querier
}

func NewPostgresResolver(db Querier) *PostgresResolver {
	return &PostgresResolver{db: db}
}

func (r *PostgresResolver) Resolve(ctx context.Context, userIdentity string) (int64, error) {
	query := `
		SELECT organization_id
		FROM organization_members
		WHERE user_identity = $1
	`

	var orgID int64
	err := r.db.QueryRow(ctx, query, userIdentity).Scan(&orgID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, userIdentity)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve organization: %w", err)
	}
	return orgID, nil
}

// CachedResolver keeps resolved organization ids in Redis. Cache failures
// fall through to the wrapped resolver.
type CachedResolver struct {
	next   Resolver
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

// NewCachedResolver wraps next with a Redis cache entry per user.
func NewCachedResolver(next Resolver, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedResolver{
		next:   next,
		client: client,
		ttl:    ttl,
		prefix: "tenant:",
		logger: logger,
	}
}

func (r *CachedResolver) Resolve(ctx context.Context, userIdentity string) (int64, error) {
	key := r.prefix + userIdentity

	val, err := r.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if orgID, perr := strconv.ParseInt(val, 10, 64); perr == nil {
			return orgID, nil
		}
		r.logger.Warn("discarding malformed tenant cache entry", "key", key, "value", val)
	case !errors.Is(err, redis.Nil):
		r.logger.Warn("tenant cache read failed", "error", err)
	}

	orgID, err := r.next.Resolve(ctx, userIdentity)
	if err != nil {
		return 0, err
	}

	if err := r.client.Set(ctx, key, strconv.FormatInt(orgID, 10), r.ttl).Err(); err != nil {
		r.logger.Warn("tenant cache write failed", "error", err)
	}
	return orgID, nil
}

// StaticResolver resolves every identity to the same organization.
type StaticResolver int64

func (s StaticResolver) Resolve(_ context.Context, userIdentity string) (int64, error) {
	if strings.TrimSpace(userIdentity) == "" || s <= 0 {
		return 0, ErrNotFound
	}
	return int64(s), nil
}
