package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/calendar-federation/internal/application"
	"github.com/example/calendar-federation/internal/candidate"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator(),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator()
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// SessionServiceDeps captures dependencies for constructing a session service.
type SessionServiceDeps struct {
	Sessions    application.SessionStore
	Holds       application.HoldStore
	Resolver    application.AvailabilityResolver
	Calendar    application.CalendarWriter
	Generator   candidate.Generator
	IDGenerator func(prefix string) string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewSessionService builds a session service using the supplied dependencies
// combined with the factory defaults.
func (f *ServiceFactory) NewSessionService(deps SessionServiceDeps) *application.SessionService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewSessionServiceWithLogger(
		deps.Sessions,
		deps.Holds,
		deps.Resolver,
		deps.Calendar,
		deps.Generator,
		idGen,
		now,
		deps.Logger,
	)
}

// GroupServiceDeps captures dependencies for constructing a group service.
type GroupServiceDeps struct {
	Stores      application.StoreRouter
	Registry    application.GroupDirectory
	Generator   candidate.Generator
	HoldExpiry  time.Duration
	IDGenerator func(prefix string) string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewGroupService builds a group service using the supplied dependencies.
func (f *ServiceFactory) NewGroupService(deps GroupServiceDeps) *application.GroupService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewGroupServiceWithLogger(
		deps.Stores,
		deps.Registry,
		deps.Generator,
		deps.HoldExpiry,
		idGen,
		now,
		deps.Logger,
	)
}

// UserServiceDeps captures dependencies for constructing a user service.
type UserServiceDeps struct {
	Users       application.UserStore
	IDGenerator func(prefix string) string
	Now         func() time.Time
}

// NewUserService builds a user service using the supplied dependencies.
func (f *ServiceFactory) NewUserService(deps UserServiceDeps) *application.UserService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewUserService(deps.Users, idGen, now)
}

// AuthServiceDeps captures dependencies for constructing an auth service.
type AuthServiceDeps struct {
	Credentials    application.CredentialStore
	Sessions       application.AuthSessionStore
	PasswordVerify application.PasswordVerifier
	TokenGenerator func() string
	IDGenerator    func(prefix string) string
	Now            func() time.Time
	SessionTTL     time.Duration
	Logger         *slog.Logger
}

// NewAuthService builds an auth service using the supplied dependencies.
func (f *ServiceFactory) NewAuthService(deps AuthServiceDeps) *application.AuthService {
	token := deps.TokenGenerator
	if token == nil {
		token = f.IDGenerator.SequenceFunc("tok")
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewAuthServiceWithLogger(
		deps.Credentials,
		deps.Sessions,
		deps.PasswordVerify,
		token,
		idGen,
		now,
		deps.SessionTTL,
		deps.Logger,
	)
}

// CalendarServiceDeps captures dependencies for constructing a calendar service.
type CalendarServiceDeps struct {
	Stores      application.CalendarStoreRouter
	IDGenerator func(prefix string) string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewCalendarService builds a calendar service using the supplied dependencies.
func (f *ServiceFactory) NewCalendarService(deps CalendarServiceDeps) *application.CalendarService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewCalendarServiceWithLogger(
		deps.Stores,
		idGen,
		now,
		deps.Logger,
	)
}
