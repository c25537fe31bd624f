// Package interfaces defines core abstractions for the MediSearch service
// to improve testability, maintainability, and separation of concerns.
package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/giygas/medisearch/entities"
)

// CatalogQualityReport summarises problems found in a catalogue snapshot
type CatalogQualityReport struct {
	DuplicateIDs          []string
	RecordsWithoutName    int
	RecordsWithoutBrand   int
	RecordsFixedLowercase int // Records whose lowercase fields were recomputed
}

// CatalogStore is the read-only catalogue the search engine and the detail
// view query. Implementations return catalog.ErrNotFound from GetByID for a
// missing record and wrap every other failure in a *catalog.QueryError.
type CatalogStore interface {
	// RangeQuery returns the records whose field value v satisfies
	// lower <= v < upper, ordered by v.
	RangeQuery(ctx context.Context, field entities.CatalogField, lower, upper string) ([]entities.MedicineRecord, error)

	// GetByID returns the record with the given document id
	GetByID(ctx context.Context, id string) (entities.MedicineRecord, error)

	// QueryByField returns the records whose field equals value
	QueryByField(ctx context.Context, field entities.CatalogField, value string) ([]entities.MedicineRecord, error)
}

// CatalogDataStore is an in-process catalogue that can be refreshed with
// atomic swaps for zero-downtime updates.
type CatalogDataStore interface {
	CatalogStore

	GetRecords() []entities.MedicineRecord
	GetLastUpdated() time.Time
	IsUpdating() bool

	UpdateData(records []entities.MedicineRecord, report *CatalogQualityReport)
	GetQualityReport() *CatalogQualityReport
	BeginUpdate() bool
	EndUpdate()
}

// CatalogLoader produces catalogue snapshots from a seed source. The report
// describes the seed as read, before records were cleaned.
type CatalogLoader interface {
	LoadCatalog(ctx context.Context) ([]entities.MedicineRecord, *CatalogQualityReport, error)
}

// IdentityService reports and changes who is signed in.
type IdentityService interface {
	// Subscribe registers a listener for session changes. The listener is
	// called once with the current identity (nil when nobody is signed in)
	// and again after every change. The returned function unsubscribes.
	Subscribe(onChange func(*entities.Identity)) (unsubscribe func())

	SignIn(ctx context.Context, email, password string) (*entities.Identity, error)
	SignUp(ctx context.Context, email, password string) (*entities.Identity, error)
	SignOut(ctx context.Context) error
}

// PreferenceStore persists small UI preferences
type PreferenceStore interface {
	GetBool(ctx context.Context, key string) (bool, error)
	SetBool(ctx context.Context, key string, value bool) error
}

// Recognizer turns one spoken utterance into text. Platforms without speech
// support provide no Recognizer.
type Recognizer interface {
	Recognize(ctx context.Context) (string, error)
}

// Scheduler defines the contract for job scheduling and health monitoring.
type Scheduler interface {
	// Lifecycle management
	Start() error
	Stop()
}

// CredentialValidator checks sign-in form fields before anything is sent to
// the identity service. A nil error means the field is valid.
type CredentialValidator interface {
	ValidateEmail(email string) error
	ValidatePassword(password string) error
}

// HTTPHandler defines the contract for HTTP request handlers.
type HTTPHandler interface {
	// Public region
	AuthView(w http.ResponseWriter, r *http.Request)
	SubmitAuth(w http.ResponseWriter, r *http.Request)

	// Protected region
	Home(w http.ResponseWriter, r *http.Request)
	Search(w http.ResponseWriter, r *http.Request)
	SearchInput(w http.ResponseWriter, r *http.Request)
	VoiceSearch(w http.ResponseWriter, r *http.Request)
	CurrentSearch(w http.ResponseWriter, r *http.Request)
	MedicineDetail(w http.ResponseWriter, r *http.Request)
	SignOut(w http.ResponseWriter, r *http.Request)

	// Ungated
	GetTheme(w http.ResponseWriter, r *http.Request)
	SetTheme(w http.ResponseWriter, r *http.Request)
	HealthCheck(w http.ResponseWriter, r *http.Request)
}

// HealthChecker defines the contract for health check functionality.
type HealthChecker interface {
	// HealthCheck returns the status label, details and HTTP status code
	HealthCheck() (status string, details map[string]any, httpStatus int)

	// CalculateNextUpdate returns the next scheduled catalogue refresh
	CalculateNextUpdate() time.Time
}
