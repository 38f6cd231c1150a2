package photoauth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/photoshare/photoauth/internal/dispatch"
	"github.com/photoshare/photoauth/jwt"
	"github.com/photoshare/photoauth/password"
	"github.com/photoshare/photoauth/session"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/semaphore"
)

// Builder assembles an Engine. A Builder can be built once.
type Builder struct {
	config  Config
	store   UserStore
	redis   redis.UniversalClient
	backend session.Backend

	mailer    Mailer
	auditSink AuditSink
	logger    *slog.Logger

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.store = store
	return b
}

// WithRedis selects a Redis cache backend. The caller keeps ownership of
// client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCacheBackend selects an arbitrary cache backend. It takes precedence
// over WithRedis.
func (b *Builder) WithCacheBackend(backend session.Backend) *Builder {
	b.backend = backend
	return b
}

func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine. Without a cache
// backend or Redis client an in-process LRU backend is used.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("user store required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	// -------- CACHE --------
	backend := b.backend
	if backend == nil && b.redis != nil {
		backend = session.NewRedisBackend(b.redis)
	}
	if backend == nil {
		backend = session.NewMemoryBackend(cfg.Cache.MemorySize, cfg.Cache.TTL)
	}
	encoding, err := session.ParseEncoding(cfg.Cache.Encoding)
	if err != nil {
		return nil, err
	}

	// -------- CREDENTIALS --------
	hasher, err := newHasher(cfg.Password)
	if err != nil {
		return nil, err
	}

	method, err := jwt.ParseSigningMethod(cfg.JWT.SigningMethod)
	if err != nil {
		return nil, err
	}
	jm, err := jwt.NewManager(jwt.Config{
		SigningMethod: method,
		PrivateKey:    cloneBytes(cfg.JWT.Secret),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
		Now:           cfg.JWT.Now,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:   cloneConfig(cfg),
		store:    b.store,
		backend:  backend,
		cache:    session.NewCache(backend, session.CacheConfig{Prefix: cfg.Cache.Prefix, Encoding: encoding}),
		jwt:      jm,
		hasher:   hasher,
		hashSem:  semaphore.NewWeighted(cfg.Password.MaxConcurrent),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		metrics:  NewMetrics(cfg.Metrics),
		logger:   logger,
	}

	// -------- ASYNC DELIVERY --------
	mailer := b.mailer
	if mailer == nil {
		mailer = discardMailer{logger: logger}
	}
	engine.mail = dispatch.New(dispatch.Config{
		BufferSize: cfg.Mail.QueueSize,
		DropIfFull: cfg.Mail.DropIfFull,
	}, func(ctx context.Context, m VerificationMail) error {
		ctx, cancel := context.WithTimeout(ctx, cfg.Mail.SendTimeout)
		defer cancel()
		return mailer.SendVerification(ctx, m)
	}, func(m VerificationMail, err error) {
		logger.Warn("photoauth: verification mail delivery failed", "email", m.Email, "error", err)
	})

	if cfg.Audit.Enabled {
		sink := b.auditSink
		if sink == nil {
			sink = NoOpSink{}
		}
		engine.audit = dispatch.New(dispatch.Config{
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, func(ctx context.Context, ev AuditEvent) error {
			sink.Emit(ctx, ev)
			return nil
		}, nil)
	}

	engine.flows = engine.buildFlowDeps()

	b.built = true

	return engine, nil
}

func newHasher(cfg PasswordConfig) (*password.Multi, error) {
	primary := password.AlgorithmArgon2id
	if cfg.Algorithm == string(password.AlgorithmBcrypt) {
		primary = password.AlgorithmBcrypt
	}

	hashers := make(map[password.Algorithm]password.Hasher, 2)

	bc, err := password.NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	hashers[password.AlgorithmBcrypt] = bc

	argon, err := password.NewArgon2(password.Config{
		Memory:      cfg.Memory,
		Time:        cfg.Time,
		Parallelism: cfg.Parallelism,
		SaltLength:  cfg.SaltLength,
		KeyLength:   cfg.KeyLength,
	})
	switch {
	case err == nil:
		hashers[password.AlgorithmArgon2id] = argon
	case primary == password.AlgorithmArgon2id:
		return nil, err
	}

	return password.NewMulti(primary, hashers)
}

type discardMailer struct {
	logger *slog.Logger
}

func (m discardMailer) SendVerification(_ context.Context, mail VerificationMail) error {
	m.logger.Warn("photoauth: no mailer configured, verification mail discarded", "email", mail.Email)
	return nil
}
