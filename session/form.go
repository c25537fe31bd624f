package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/giygas/medisearch/entities"
	"github.com/giygas/medisearch/identity"
	"github.com/giygas/medisearch/interfaces"
	"github.com/giygas/medisearch/logging"
	"github.com/giygas/medisearch/metrics"
	"github.com/giygas/medisearch/validation"
)

// NoticeDuration is how long a success notice stays visible
const NoticeDuration = 3 * time.Second

// ErrSubmitting is returned by Submit while a submission is in flight
var ErrSubmitting = errors.New("a submission is already in progress")

// Mode selects between signing in and creating an account
type Mode int

const (
	ModeSignIn Mode = iota
	ModeSignUp
)

func (m Mode) String() string {
	if m == ModeSignUp {
		return "signUp"
	}
	return "signIn"
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseMode accepts "signIn" and "signUp"; empty means signIn
func ParseMode(value string) (Mode, error) {
	switch value {
	case "", "signIn":
		return ModeSignIn, nil
	case "signUp":
		return ModeSignUp, nil
	default:
		return ModeSignIn, fmt.Errorf("unknown mode %q", value)
	}
}

// User-facing messages for identity failures
const (
	MessageEmailInUse    = "This email is already in use."
	MessageInvalidEmail  = "Please enter a valid email address."
	MessageWeakPassword  = "Password should be at least 6 characters."
	MessageUserNotFound  = "No account found with this email."
	MessageWrongPassword = "Incorrect password. Please try again."
	MessageOther         = "An error occurred. Please try again."

	NoticeSignedUp = "Account created successfully!"
	NoticeSignedIn = "Logged in successfully!"
)

// MessageFor maps an identity failure reason to its user-facing message
func MessageFor(reason identity.Reason) string {
	switch reason {
	case identity.ReasonEmailInUse:
		return MessageEmailInUse
	case identity.ReasonInvalidEmail:
		return MessageInvalidEmail
	case identity.ReasonWeakPassword:
		return MessageWeakPassword
	case identity.ReasonUserNotFound:
		return MessageUserNotFound
	case identity.ReasonWrongPassword:
		return MessageWrongPassword
	default:
		return MessageOther
	}
}

// Authenticator is what the form submits to. *Gate implements it.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*entities.Identity, error)
	SignUp(ctx context.Context, email, password string) (*entities.Identity, error)
}

// FormView is a snapshot of the form for the presentation layer
type FormView struct {
	Email        string            `json:"email"`
	Password     string            `json:"-"`
	Mode         Mode              `json:"mode"`
	Errors       map[string]string `json:"errors,omitempty"`
	ServiceError string            `json:"service_error,omitempty"`
	Notice       string            `json:"notice,omitempty"`
	Submitting   bool              `json:"submitting"`
}

// FormOption configures a Form
type FormOption func(*Form)

// WithAfterFunc replaces time.AfterFunc for the notice timer. The returned
// function cancels the timer.
func WithAfterFunc(afterFunc func(time.Duration, func()) (stop func() bool)) FormOption {
	return func(f *Form) {
		f.afterFunc = afterFunc
	}
}

// WithValidator replaces the default credential validator
func WithValidator(v interfaces.CredentialValidator) FormOption {
	return func(f *Form) {
		f.validator = v
	}
}

// Form is the sign-in / sign-up submission
type Form struct {
	auth      Authenticator
	validator interfaces.CredentialValidator
	afterFunc func(time.Duration, func()) func() bool

	mu          sync.Mutex
	email       string
	password    string
	mode        Mode
	emailErr    error
	passwordErr error
	serviceErr  string
	notice      string
	noticeSeq   uint64
	stopNotice  func() bool
	submitting  bool
}

// NewForm creates an empty sign-in form submitting to auth
func NewForm(auth Authenticator, opts ...FormOption) *Form {
	f := &Form{
		auth:      auth,
		validator: validation.NewCredentialValidator(),
		afterFunc: func(d time.Duration, fn func()) func() bool {
			return time.AfterFunc(d, fn).Stop
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// live hides the "required" variant while the user is typing
func live(err error) error {
	if validation.IsRequired(err) {
		return nil
	}
	return err
}

// SetEmail updates the email and re-validates it
func (f *Form) SetEmail(email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.email = email
	f.emailErr = live(f.validator.ValidateEmail(email))
}

// SetPassword updates the password and re-validates it
func (f *Form) SetPassword(password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.password = password
	f.passwordErr = live(f.validator.ValidatePassword(password))
}

// ToggleMode switches between sign-in and sign-up and clears every error
func (f *Form) ToggleMode() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mode == ModeSignIn {
		f.mode = ModeSignUp
	} else {
		f.mode = ModeSignIn
	}
	f.emailErr, f.passwordErr, f.serviceErr = nil, nil, ""
}

// SetMode switches to mode, toggling only when it differs
func (f *Form) SetMode(mode Mode) {
	f.mu.Lock()
	same := f.mode == mode
	f.mu.Unlock()
	if !same {
		f.ToggleMode()
	}
}

// DismissNotice hides the success notice before its timer fires
func (f *Form) DismissNotice() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearNotice()
}

func (f *Form) clearNotice() {
	f.noticeSeq++
	f.notice = ""
	if f.stopNotice != nil {
		f.stopNotice()
		f.stopNotice = nil
	}
}

// View returns a snapshot of the form
func (f *Form) View() FormView {
	f.mu.Lock()
	defer f.mu.Unlock()

	view := FormView{
		Email:        f.email,
		Password:     f.password,
		Mode:         f.mode,
		ServiceError: f.serviceErr,
		Notice:       f.notice,
		Submitting:   f.submitting,
	}
	for _, err := range []error{f.emailErr, f.passwordErr} {
		var fe *validation.FieldError
		if errors.As(err, &fe) {
			if view.Errors == nil {
				view.Errors = make(map[string]string, 2)
			}
			view.Errors[fe.Field] = fe.Message
		}
	}
	return view
}

// Submit validates the fields and, when they are valid, signs in or signs
// up. A validation failure returns a *validation.FieldError and sends
// nothing. An identity failure sets the mapped message and keeps the fields.
// On success both fields are cleared and a notice is shown for
// NoticeDuration.
func (f *Form) Submit(ctx context.Context) (*entities.Identity, error) {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return nil, ErrSubmitting
	}

	f.emailErr = f.validator.ValidateEmail(f.email)
	f.passwordErr = f.validator.ValidatePassword(f.password)
	f.serviceErr = ""
	mode, email, password := f.mode, f.email, f.password

	if err := errors.Join(f.emailErr, f.passwordErr); err != nil {
		first := f.emailErr
		if first == nil {
			first = f.passwordErr
		}
		f.mu.Unlock()
		metrics.AuthAttemptsTotal.WithLabelValues(mode.String(), "invalid").Inc()
		return nil, first
	}

	f.submitting = true
	f.clearNotice()
	f.mu.Unlock()

	var (
		signedIn *entities.Identity
		err      error
	)
	if mode == ModeSignUp {
		signedIn, err = f.auth.SignUp(ctx, email, password)
	} else {
		signedIn, err = f.auth.SignIn(ctx, email, password)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false

	if err != nil {
		reason := identity.ReasonOf(err)
		f.serviceErr = MessageFor(reason)
		metrics.AuthAttemptsTotal.WithLabelValues(mode.String(), reason.String()).Inc()
		if reason == identity.ReasonOther {
			logging.Error("Authentication failed", "mode", mode.String(), "error", err)
		} else {
			logging.Debug("Authentication rejected", "mode", mode.String(), "reason", reason.String())
		}
		return nil, err
	}

	metrics.AuthAttemptsTotal.WithLabelValues(mode.String(), "success").Inc()
	f.email, f.password = "", ""
	f.emailErr, f.passwordErr = nil, nil

	if mode == ModeSignUp {
		f.notice = NoticeSignedUp
	} else {
		f.notice = NoticeSignedIn
	}
	seq := f.noticeSeq
	f.stopNotice = f.afterFunc(NoticeDuration, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.noticeSeq == seq {
			f.notice = ""
			f.stopNotice = nil
		}
	})

	return signedIn, nil
}
