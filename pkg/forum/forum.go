// Package forum holds the topic lifecycle, moderation, engagement and
// notification rules of the discussion board, plus the sqlc-generated
// queries they run on.
package forum

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/imeyer/tforum/pkg/forum"

const (
	DefaultPageSize         = 25
	DefaultPopularThreshold = 5
)

// Forum bundles the components that make up the board.
type Forum struct {
	Topics        *Topics
	Moderation    *Moderator
	Engagement    *Registry
	Notifications *Resolver
	Settings      *Settings
}

type options struct {
	now              func() time.Time
	pageSize         int32
	popularThreshold int64
	tracer           trace.Tracer
}

type Option func(*options)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithPageSize(n int32) Option {
	return func(o *options) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

// WithPopularThreshold sets how many favorites make a topic popular.
func WithPopularThreshold(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.popularThreshold = n
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// core is the state every component shares.
type core struct {
	db       TxBeginner
	store    Store
	logger   *slog.Logger
	settings *Settings
	authz    Authorizer
	opts     options
}

func NewForum(db TxBeginner, store Store, logger *slog.Logger, opts ...Option) *Forum {
	o := options{
		now:              time.Now,
		pageSize:         DefaultPageSize,
		popularThreshold: DefaultPopularThreshold,
		tracer:           otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(&o)
	}

	settings := &Settings{store: store, logger: logger, now: o.now}
	c := &core{
		db:       db,
		store:    store,
		logger:   logger,
		settings: settings,
		opts:     o,
	}

	resolver := &Resolver{core: c}
	return &Forum{
		Topics:        &Topics{core: c, resolver: resolver},
		Moderation:    &Moderator{core: c},
		Engagement:    &Registry{core: c},
		Notifications: resolver,
		Settings:      settings,
	}
}

// authorize loads the per-request policy and runs the Authorizer.
func (c *core) authorize(ctx context.Context, actor Actor, op Operation, topic *Topic) (Decision, error) {
	p, err := c.settings.Policy(ctx)
	if err != nil {
		return Decision{}, err
	}
	return c.decide(ctx, actor, op, topic, p)
}

// decide runs the Authorizer against an already loaded policy.
func (c *core) decide(ctx context.Context, actor Actor, op Operation, topic *Topic, p Policy) (Decision, error) {
	d := c.authz.Authorize(actor, op, topic, p)
	if !d.Allowed {
		c.logger.DebugContext(ctx, "authorization denied",
			slog.String("op", string(op)),
			slog.String("role", d.Role.String()),
			slog.String("reason", string(d.Reason)),
			slog.Int64("actor_id", actor.ID))
	}
	return d, d.Err()
}

func (c *core) topic(ctx context.Context, q Store, id int64) (Topic, error) {
	t, err := q.GetTopic(ctx, id)
	if err != nil {
		return Topic{}, notFound("topic", id, err)
	}
	return t, nil
}

func (c *core) now() time.Time {
	return c.opts.now()
}
