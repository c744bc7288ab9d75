package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/decorstore/cachekit/logger"
	"github.com/decorstore/cachekit/redact"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// BreakerConfig tunes the circuit breaker guarding redis calls.
type BreakerConfig struct {
	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval after which closed-state counts are reset. Zero never resets.
	Interval time.Duration
	// Timeout spent open before probing again.
	Timeout time.Duration
	// ConsecutiveFailures that trip the breaker.
	ConsecutiveFailures uint32
}

// DefaultBreakerConfig returns the breaker configuration used by NewConnector.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// ConnectorOption configures a Connector.
type ConnectorOption func(*connectorConfig)

type connectorConfig struct {
	breaker BreakerConfig
}

// WithBreaker overrides the circuit breaker configuration.
func WithBreaker(b BreakerConfig) ConnectorOption {
	return func(c *connectorConfig) { c.breaker = b }
}

// Connector is the process-wide handle to redis. It is safe for concurrent use and
// is meant to be created once at startup, shared by every facade, and closed on
// shutdown.
type Connector struct {
	client   *redis.Client
	endpoint string
	breaker  *gobreaker.CircuitBreaker
	timeout  time.Duration
	owned    bool
	once     sync.Once
	logger   logger.Logger
}

// NewConnector builds a redis client from settings.RedisConnectionString, which may
// be a redis:// URL or a plain host:port address. A non-zero RedisDatabase and
// RedisTimeoutMs override what the URL carries. An unreachable server is logged, not returned: the
// facade degrades to misses until redis comes back.
func NewConnector(ctx context.Context, settings Settings, log logger.Logger, opts ...ConnectorOption) (*Connector, error) {
	if settings.RedisConnectionString == "" {
		return nil, errors.New("cache: redis connection string is empty")
	}
	ropts, err := parseConnectionString(settings.RedisConnectionString)
	if err != nil {
		return nil, err
	}
	if settings.RedisDatabase > 0 {
		ropts.DB = settings.RedisDatabase
	}
	if timeout := settings.RedisTimeout(); timeout > 0 {
		ropts.DialTimeout = timeout
		ropts.ReadTimeout = timeout
		ropts.WriteTimeout = timeout
	}
	c := newConnector(redis.NewClient(ropts), settings, log, opts)
	c.owned = true
	c.endpoint = redact.ConnectionString(settings.RedisConnectionString)
	if err := c.Ping(ctx); err != nil {
		c.logger.Warn("redis at %s is not reachable yet: %s", c.endpoint, err)
	} else {
		c.logger.Debug("connected to redis at %s db=%d", c.endpoint, ropts.DB)
	}
	return c, nil
}

// NewConnectorFromClient wraps a client the caller already owns. Close does not
// close the client.
func NewConnectorFromClient(client *redis.Client, settings Settings, log logger.Logger, opts ...ConnectorOption) *Connector {
	return newConnector(client, settings, log, opts)
}

func newConnector(client *redis.Client, settings Settings, log logger.Logger, opts []ConnectorOption) *Connector {
	cfg := connectorConfig{breaker: DefaultBreakerConfig()}
	for _, opt := range opts {
		opt(&cfg)
	}
	log = log.WithPrefix("[redis]")
	threshold := cfg.breaker.ConsecutiveFailures
	if threshold == 0 {
		threshold = 1
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis",
		MaxRequests: cfg.breaker.MaxRequests,
		Interval:    cfg.breaker.Interval,
		Timeout:     cfg.breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("circuit breaker %s changed from %s to %s", name, from, to)
		},
		IsSuccessful: isBreakerSuccess,
	})
	return &Connector{
		client:   client,
		endpoint: client.Options().Addr,
		breaker:  breaker,
		timeout:  settings.RedisTimeout(),
		logger:   log,
	}
}

// isBreakerSuccess keeps misses and caller cancellations from counting as failures.
func isBreakerSuccess(err error) bool {
	return err == nil || errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled)
}

func parseConnectionString(conn string) (*redis.Options, error) {
	if strings.Contains(conn, "://") {
		opts, err := redis.ParseURL(conn)
		if err != nil {
			return nil, errors.Wrap(err, "cache: parsing redis url")
		}
		return opts, nil
	}
	return &redis.Options{Addr: conn}, nil
}

// Client returns the underlying redis client.
func (c *Connector) Client() *redis.Client {
	return c.client
}

// Endpoint returns the server address with any credentials masked.
func (c *Connector) Endpoint() string {
	return c.endpoint
}

// State returns the circuit breaker state, e.g. "closed" or "open".
func (c *Connector) State() string {
	return c.breaker.State().String()
}

// Ping checks that redis answers.
func (c *Connector) Ping(ctx context.Context) error {
	return c.do(ctx, func(ctx context.Context) error {
		return c.client.Ping(ctx).Err()
	})
}

// Close releases the client if the connector created it.
func (c *Connector) Close() error {
	var err error
	c.once.Do(func() {
		if c.owned {
			err = c.client.Close()
		}
	})
	return err
}

func (c *Connector) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, c.timeout)
}

// do runs fn through the breaker with the per-operation timeout applied.
func (c *Connector) do(ctx context.Context, fn func(ctx context.Context) error) error {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, fn(qctx)
	})
	return err
}
