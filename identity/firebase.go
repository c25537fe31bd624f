package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/giygas/medisearch/entities"
	"github.com/giygas/medisearch/interfaces"
	"github.com/giygas/medisearch/logging"
)

// DefaultFirebaseEndpoint is the Identity Toolkit REST base URL
const DefaultFirebaseEndpoint = "https://identitytoolkit.googleapis.com/v1"

// Compile-time check to ensure FirebaseProvider implements IdentityService
var _ interfaces.IdentityService = (*FirebaseProvider)(nil)

// FirebaseProvider signs in against Firebase Authentication with email and
// password. The session is kept in memory, so every start is signed out.
type FirebaseProvider struct {
	*notifier

	apiKey   string
	endpoint string
	client   *http.Client
}

// FirebaseOption configures a FirebaseProvider
type FirebaseOption func(*FirebaseProvider)

// WithEndpoint overrides the REST base URL, e.g. for the auth emulator
func WithEndpoint(endpoint string) FirebaseOption {
	return func(p *FirebaseProvider) {
		p.endpoint = strings.TrimRight(endpoint, "/")
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(client *http.Client) FirebaseOption {
	return func(p *FirebaseProvider) {
		p.client = client
	}
}

// NewFirebaseProvider creates a provider for the project owning apiKey
func NewFirebaseProvider(apiKey string, opts ...FirebaseOption) *FirebaseProvider {
	p := &FirebaseProvider{
		notifier: newNotifier(),
		apiKey:   apiKey,
		endpoint: DefaultFirebaseEndpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}

	// Nothing to restore
	p.setInitial(nil)
	return p
}

// Subscribe registers onChange; the first notification is the current identity
func (p *FirebaseProvider) Subscribe(onChange func(*entities.Identity)) func() {
	return p.subscribe(onChange)
}

// SignUp creates an account (accounts:signUp)
func (p *FirebaseProvider) SignUp(ctx context.Context, email, password string) (*entities.Identity, error) {
	return p.authenticate(ctx, "sign up", "accounts:signUp", email, password)
}

// SignIn signs in with a password (accounts:signInWithPassword)
func (p *FirebaseProvider) SignIn(ctx context.Context, email, password string) (*entities.Identity, error) {
	return p.authenticate(ctx, "sign in", "accounts:signInWithPassword", email, password)
}

// SignOut drops the in-memory session
func (p *FirebaseProvider) SignOut(ctx context.Context) error {
	p.set(nil)
	return nil
}

type credentialsRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type authResponse struct {
	LocalID string `json:"localId"`
	Email   string `json:"email"`
	IDToken string `json:"idToken"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *FirebaseProvider) authenticate(ctx context.Context, op, method, email, password string) (*entities.Identity, error) {
	body, err := json.Marshal(credentialsRequest{Email: email, Password: password, ReturnSecureToken: true})
	if err != nil {
		return nil, fail(op, ReasonOther, err)
	}

	target := fmt.Sprintf("%s/%s?key=%s", p.endpoint, method, url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, fail(op, ReasonOther, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fail(op, ReasonOther, err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fail(op, ReasonOther, err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		if err := json.Unmarshal(payload, &apiErr); err != nil || apiErr.Error.Message == "" {
			return nil, fail(op, ReasonOther, fmt.Errorf("unexpected status %d", resp.StatusCode))
		}
		reason := reasonFromCode(apiErr.Error.Message)
		logging.Debug("Firebase rejected credentials", "op", op, "code", apiErr.Error.Message)
		return nil, fail(op, reason, fmt.Errorf("%s", apiErr.Error.Message))
	}

	var auth authResponse
	if err := json.Unmarshal(payload, &auth); err != nil {
		return nil, fail(op, ReasonOther, fmt.Errorf("failed to decode response: %w", err))
	}
	if auth.LocalID == "" {
		return nil, fail(op, ReasonOther, fmt.Errorf("response has no localId"))
	}

	if auth.Email == "" {
		auth.Email = email
	}
	identity := &entities.Identity{UID: auth.LocalID, Email: auth.Email, CreatedAt: time.Now().UTC()}
	p.set(identity)
	return identity, nil
}

// reasonFromCode maps an Identity Toolkit error message such as
// "WEAK_PASSWORD : Password should be at least 6 characters" to a Reason.
func reasonFromCode(message string) Reason {
	code, _, _ := strings.Cut(message, " ")
	switch code {
	case "EMAIL_EXISTS":
		return ReasonEmailInUse
	case "INVALID_EMAIL", "MISSING_EMAIL":
		return ReasonInvalidEmail
	case "WEAK_PASSWORD", "MISSING_PASSWORD":
		return ReasonWeakPassword
	case "EMAIL_NOT_FOUND":
		return ReasonUserNotFound
	case "INVALID_PASSWORD":
		return ReasonWrongPassword
	default:
		return ReasonOther
	}
}
