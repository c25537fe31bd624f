package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/giygas/medisearch/entities"
	"github.com/giygas/medisearch/interfaces"
	"github.com/giygas/medisearch/logging"
	"github.com/giygas/medisearch/storage"
	"github.com/giygas/medisearch/validation"
)

// Compile-time check to ensure LocalProvider implements IdentityService
var _ interfaces.IdentityService = (*LocalProvider)(nil)

// AccountStore is the persistence LocalProvider needs. *storage.Store
// implements it.
type AccountStore interface {
	CreateAccount(ctx context.Context, account storage.Account) error
	AccountByEmail(ctx context.Context, email string) (storage.Account, error)
	AccountByUID(ctx context.Context, uid string) (storage.Account, error)
	SaveSession(ctx context.Context, uid string) error
	LoadSession(ctx context.Context) (string, error)
	ClearSession(ctx context.Context) error
}

// LocalProvider is a self-hosted identity service. Passwords are stored as
// bcrypt hashes and the signed-in account survives restarts.
type LocalProvider struct {
	*notifier

	store       AccountStore
	cost        int
	now         func() time.Time
	restoreOnce sync.Once
}

// NewLocalProvider creates a provider over store. cost is the bcrypt cost.
func NewLocalProvider(store AccountStore, cost int) *LocalProvider {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &LocalProvider{
		notifier: newNotifier(),
		store:    store,
		cost:     cost,
		now:      time.Now,
	}
}

// Subscribe registers onChange. The first call restores the persisted session
// in the background; listeners hear the result as their first notification.
func (p *LocalProvider) Subscribe(onChange func(*entities.Identity)) func() {
	unsubscribe := p.subscribe(onChange)
	p.restoreOnce.Do(func() {
		go p.restore(context.Background())
	})
	return unsubscribe
}

func (p *LocalProvider) restore(ctx context.Context) {
	uid, err := p.store.LoadSession(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logging.Error("Failed to restore session", "error", err)
		}
		p.setInitial(nil)
		return
	}

	account, err := p.store.AccountByUID(ctx, uid)
	if err != nil {
		logging.Warn("Persisted session has no account, signing out", "uid", uid, "error", err)
		_ = p.store.ClearSession(ctx)
		p.setInitial(nil)
		return
	}

	logging.Info("Session restored", "uid", account.UID)
	p.setInitial(toIdentity(account))
}

// SignUp creates an account and signs it in
func (p *LocalProvider) SignUp(ctx context.Context, email, password string) (*entities.Identity, error) {
	const op = "sign up"
	email = normalizeEmail(email)

	if validation.ValidateEmail(email) != nil {
		return nil, fail(op, ReasonInvalidEmail, nil)
	}
	if validation.ValidatePassword(password) != nil {
		return nil, fail(op, ReasonWeakPassword, nil)
	}

	if _, err := p.store.AccountByEmail(ctx, email); err == nil {
		return nil, fail(op, ReasonEmailInUse, nil)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fail(op, ReasonOther, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, fail(op, ReasonOther, err)
	}

	account := storage.Account{
		UID:          uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    p.now().UTC(),
	}
	if err := p.store.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			return nil, fail(op, ReasonEmailInUse, err)
		}
		return nil, fail(op, ReasonOther, err)
	}

	return p.establish(ctx, op, account)
}

// SignIn checks the password and signs the account in
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*entities.Identity, error) {
	const op = "sign in"
	email = normalizeEmail(email)

	if validation.ValidateEmail(email) != nil {
		return nil, fail(op, ReasonInvalidEmail, nil)
	}

	account, err := p.store.AccountByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fail(op, ReasonUserNotFound, nil)
	}
	if err != nil {
		return nil, fail(op, ReasonOther, err)
	}

	if err := bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, fail(op, ReasonWrongPassword, nil)
		}
		return nil, fail(op, ReasonOther, err)
	}

	return p.establish(ctx, op, account)
}

func (p *LocalProvider) establish(ctx context.Context, op string, account storage.Account) (*entities.Identity, error) {
	if err := p.store.SaveSession(ctx, account.UID); err != nil {
		return nil, fail(op, ReasonOther, err)
	}

	identity := toIdentity(account)
	p.set(identity)
	return identity, nil
}

// SignOut forgets the persisted session
func (p *LocalProvider) SignOut(ctx context.Context) error {
	if err := p.store.ClearSession(ctx); err != nil {
		return fail("sign out", ReasonOther, err)
	}
	p.set(nil)
	return nil
}

func toIdentity(account storage.Account) *entities.Identity {
	return &entities.Identity{UID: account.UID, Email: account.Email, CreatedAt: account.CreatedAt}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
