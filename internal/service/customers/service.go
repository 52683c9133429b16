package customers

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/younes-bami/hrcut-app/internal/apperr"
	"github.com/younes-bami/hrcut-app/internal/auth"
	"github.com/younes-bami/hrcut-app/internal/metrics"
	"github.com/younes-bami/hrcut-app/internal/model"
	"github.com/younes-bami/hrcut-app/internal/repository"
	"github.com/younes-bami/hrcut-app/internal/util"
)

const component = "CustomerService"

const (
	msgNotFound           = "Customer not found"
	msgInvalidCredentials = "Invalid credentials"
	msgNotOwner           = "You can only modify your own profile"
)

// EventPublisher receives customer lifecycle events after a successful write.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.CustomerEvent) error
}

// Auditor records login attempts.
type Auditor interface {
	Record(ctx context.Context, a model.LoginAttempt) error
}

// TokenIssuer mints session tokens on login.
type TokenIssuer interface {
	Issue(subjectID, username string, scopes, permissions []string) (string, error)
}

type Options struct {
	LoginScopes      []string
	LoginPermissions []string
}

// Service implements customer business operations. Ownership of mutations is
// checked here, never in the transport layer.
type Service struct {
	repo   repository.CustomersRepository
	hasher auth.PasswordHasher
	tokens TokenIssuer
	events EventPublisher
	audit  Auditor
	log    *zap.Logger
	opts   Options
	now    func() time.Time
}

// New constructs the customer service. events and audit may be nil.
func New(
	repo repository.CustomersRepository,
	hasher auth.PasswordHasher,
	tokens TokenIssuer,
	events EventPublisher,
	audit Auditor,
	log *zap.Logger,
	opts Options,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
		events: events,
		audit:  audit,
		log:    log.Named("customers"),
		opts:   opts,
		now:    time.Now,
	}
}

type sourceKey struct{}

// WithSource tags ctx with the intake path (http, queue, seed) reported in events.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

func sourceFrom(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return "http"
}

func (s *Service) FindByUsername(ctx context.Context, username string) (*model.Customer, error) {
	c, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}
	return c, nil
}

func (s *Service) FindByID(ctx context.Context, id string) (*model.Customer, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}
	return c, nil
}

// Create persists a customer without credentials (HTTP create and queue intake).
func (s *Service) Create(ctx context.Context, in model.CreateCustomerInput) (c *model.Customer, err error) {
	defer s.observe("create", &err)

	if err := s.checkUnique(ctx, in.Email, in.Username, ""); err != nil {
		return nil, err
	}
	return s.insert(ctx, in, "")
}

// Register is Create plus a bcrypt hash of the supplied password.
func (s *Service) Register(ctx context.Context, in model.RegisterCustomerInput) (c *model.Customer, err error) {
	defer s.observe("register", &err)

	if in.Password == "" {
		return nil, apperr.InvalidInput(component, "password is required")
	}
	if err := s.checkUnique(ctx, in.Email, in.Username, ""); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Internal(component, err)
	}
	return s.insert(ctx, in.CreateCustomerInput, hash)
}

// insert relies on the store's unique keys to catch races past checkUnique.
func (s *Service) insert(ctx context.Context, in model.CreateCustomerInput, passwordHash string) (*model.Customer, error) {
	now := s.now().UTC()
	c := &model.Customer{
		ID:                   util.NewID(),
		AuthUserID:           in.AuthUserID,
		Username:             in.Username,
		PasswordHash:         passwordHash,
		FirstName:            in.FirstName,
		LastName:             in.LastName,
		Email:                in.Email,
		PhoneNumber:          util.NormalizePhone(in.PhoneNumber),
		ServicesInterestedIn: []string{},
		BookingHistory:       []string{},
		Reviews:              []string{},
		Ratings:              []float64{},
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.repo.Insert(ctx, c); err != nil {
		return nil, s.mapStoreErr(err)
	}

	s.log.Info("customer created",
		zap.String("id", c.ID),
		zap.String("username", c.Username),
		zap.String("source", sourceFrom(ctx)))
	s.publish(ctx, model.CustomerCreated, c)
	return c, nil
}

// ownedBy reports whether the token subject owns c. Locally issued tokens carry
// the customer id; tokens from the auth service carry the id stored in
// authUserId.
func ownedBy(c *model.Customer, subjectID string) bool {
	if subjectID == "" {
		return false
	}
	return c.ID == subjectID || c.AuthUserID == subjectID
}

// ResolveCaller returns the customer owned by the token subject.
func (s *Service) ResolveCaller(ctx context.Context, subjectID string) (*model.Customer, error) {
	if subjectID == "" {
		return nil, apperr.NotFound(component, msgNotFound)
	}
	c, err := s.repo.GetByID(ctx, subjectID)
	if errors.Is(err, repository.ErrNotFound) {
		c, err = s.repo.GetByAuthUserID(ctx, subjectID)
	}
	if err != nil {
		return nil, s.mapStoreErr(err)
	}
	return c, nil
}

// Update applies a partial patch to the customer identified by id. callerID is
// the authenticated subject and must own the record; nothing is written otherwise.
func (s *Service) Update(ctx context.Context, id, callerID string, patch model.UpdateCustomerInput) (c *model.Customer, err error) {
	defer s.observe("update", &err)

	current, err := s.repo.GetByID(ctx, id)
	switch {
	case errors.Is(err, repository.ErrNotFound) && callerID != "" && callerID == id:
		return nil, s.mapStoreErr(err)
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return nil, s.mapStoreErr(err)
	case err != nil || !ownedBy(current, callerID):
		s.log.Warn("update rejected: not owner", zap.String("target", id), zap.String("subject", callerID))
		return nil, apperr.Forbidden(component, msgNotOwner)
	}
	if patch.Empty() {
		return current, nil
	}

	next := *current
	applyPatch(&next, patch)

	if next.Email != current.Email {
		if err := s.ensureFree(ctx, s.repo.GetByEmail, next.Email, id, "Email already exists"); err != nil {
			return nil, err
		}
	}
	if next.Username != current.Username {
		if err := s.ensureFree(ctx, s.repo.GetByUsername, next.Username, id, "Username already exists"); err != nil {
			return nil, err
		}
	}
	if next.PhoneNumber != current.PhoneNumber {
		if err := s.ensureFree(ctx, s.repo.GetByPhone, next.PhoneNumber, id, "Phone number already exists"); err != nil {
			return nil, err
		}
	}

	next.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, &next); err != nil {
		return nil, s.mapStoreErr(err)
	}

	s.publish(ctx, model.CustomerUpdated, &next)
	return &next, nil
}

func applyPatch(c *model.Customer, p model.UpdateCustomerInput) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&c.Username, p.Username)
	set(&c.FirstName, p.FirstName)
	set(&c.LastName, p.LastName)
	set(&c.Email, p.Email)
	set(&c.ProfilePicture, p.ProfilePicture)
	set(&c.Bio, p.Bio)
	set(&c.Location, p.Location)
	set(&c.PreferredHairdresserID, p.PreferredHairdresserID)
	if p.PhoneNumber != nil {
		c.PhoneNumber = util.NormalizePhone(*p.PhoneNumber)
	}
}

// Login checks the credentials and returns a signed session token. Unknown
// usernames and wrong passwords produce the same error.
func (s *Service) Login(ctx context.Context, in model.LoginInput, remoteIP string) (token string, err error) {
	defer s.observe("login", &err)

	attempt := model.LoginAttempt{
		Username:  in.Username,
		Outcome:   model.LoginRejected,
		RemoteIP:  remoteIP,
		CreatedAt: s.now().UTC(),
	}
	defer func() { s.record(ctx, attempt) }()

	c, err := s.repo.GetByUsername(ctx, in.Username)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return "", apperr.Unauthorized(component, msgInvalidCredentials)
	case err != nil:
		return "", apperr.Internal(component, err)
	}
	attempt.SubjectID = c.ID

	if c.PasswordHash == "" {
		return "", apperr.Unauthorized(component, msgInvalidCredentials)
	}
	if err := s.hasher.Compare(c.PasswordHash, in.Password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.log.Error("password compare failed", zap.String("subject", c.ID), zap.Error(err))
		}
		return "", apperr.Unauthorized(component, msgInvalidCredentials)
	}

	if s.tokens == nil {
		return "", apperr.Internal(component, errors.New("token issuing is not configured"))
	}
	token, err = s.tokens.Issue(c.ID, c.Username, s.opts.LoginScopes, s.opts.LoginPermissions)
	if err != nil {
		return "", apperr.Internal(component, err)
	}
	attempt.Outcome = model.LoginSucceeded
	return token, nil
}

// checkUnique reports the first taken field, email before username.
func (s *Service) checkUnique(ctx context.Context, email, username, skipID string) error {
	if err := s.ensureFree(ctx, s.repo.GetByEmail, email, skipID, "Email already exists"); err != nil {
		return err
	}
	return s.ensureFree(ctx, s.repo.GetByUsername, username, skipID, "Username already exists")
}

func (s *Service) ensureFree(
	ctx context.Context,
	lookup func(context.Context, string) (*model.Customer, error),
	value, skipID, msg string,
) error {
	existing, err := lookup(ctx, value)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil
	case err != nil:
		return apperr.Internal(component, err)
	case existing.ID == skipID:
		return nil
	}
	return apperr.Conflict(component, msg)
}

// mapStoreErr keeps NotFound, turns store-level duplicates into Conflict and
// hides everything else behind Internal.
func (s *Service) mapStoreErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound(component, msgNotFound)
	case errors.Is(err, repository.ErrDuplicate):
		field := repository.DuplicateField(err)
		if field == "" {
			field = "record"
		}
		return apperr.Conflict(component, strings.ToUpper(field[:1])+field[1:]+" already exists")
	default:
		return apperr.Internal(component, err)
	}
}

func (s *Service) publish(ctx context.Context, typ model.CustomerEventType, c *model.Customer) {
	if s.events == nil {
		return
	}
	ev := model.CustomerEvent{
		Type:       typ,
		CustomerID: c.ID,
		Username:   c.Username,
		Email:      c.Email,
		Source:     sourceFrom(ctx),
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("publish customer event failed",
			zap.String("type", string(typ)),
			zap.String("id", c.ID),
			zap.Error(err))
	}
}

func (s *Service) record(ctx context.Context, a model.LoginAttempt) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, a); err != nil {
		s.log.Warn("record login attempt failed", zap.String("username", a.Username), zap.Error(err))
	}
}

func (s *Service) observe(op string, err *error) {
	result := "ok"
	if *err != nil {
		result = apperr.KindOf(*err).String()
	}
	metrics.CustomerOps.WithLabelValues(op, result).Inc()
}
