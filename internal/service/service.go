package service

import (
	"context"
	"strings"
	"time"

	"stockledger/internal/cache"
	"stockledger/internal/lock"
	"stockledger/internal/logging"
	"stockledger/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const moduleName = "service"

// sideEffectTimeout bounds work that runs after the caller's write has
// committed, such as alert reconciliation.
const sideEffectTimeout = 5 * time.Second

type Service struct {
	store      repository.Store
	locker     lock.Locker
	alertCount cache.Counter
	logger     *logrus.Logger
	now        func() time.Time
	newID      func() string
}

type Option func(*Service)

func WithLocker(l lock.Locker) Option {
	return func(s *Service) { s.locker = l }
}

func WithAlertCountCache(c cache.Counter) Option {
	return func(s *Service) { s.alertCount = c }
}

func WithLogger(l *logrus.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		locker: lock.NewLocal(),
		logger: logging.Discard(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// detached keeps request values but survives the request's cancellation.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
}

func (s *Service) logError(funcName, context string, data any, err error) {
	logging.LogError(s.logger, moduleName, funcName, context, data, err)
}

func normalizeNullable(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
