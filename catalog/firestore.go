package catalog

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/giygas/medisearch/entities"
	"github.com/giygas/medisearch/interfaces"
	"github.com/giygas/medisearch/logging"
)

// DefaultCollection is the collection holding medicine documents
const DefaultCollection = "categories"

// Compile-time check to ensure FirestoreStore implements CatalogStore
var _ interfaces.CatalogStore = (*FirestoreStore)(nil)

// FirestoreStore reads the catalogue from a Firestore collection.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// FirestoreConfig selects the project, collection and credentials
type FirestoreConfig struct {
	ProjectID       string
	Collection      string
	CredentialsFile string
}

// NewFirestoreStore opens a Firestore client for the configured project
func NewFirestoreStore(ctx context.Context, cfg FirestoreConfig) (*FirestoreStore, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	collection := cfg.Collection
	if collection == "" {
		collection = DefaultCollection
	}

	logging.Info("Firestore catalog ready", "project", cfg.ProjectID, "collection", collection)
	return &FirestoreStore{client: client, collection: collection}, nil
}

// Close releases the underlying client
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// RangeQuery runs lower <= field < upper ordered by field
func (s *FirestoreStore) RangeQuery(ctx context.Context, field entities.CatalogField, lower, upper string) ([]entities.MedicineRecord, error) {
	path := string(field)
	q := s.client.Collection(s.collection).
		Where(path, ">=", lower).
		Where(path, "<", upper).
		OrderBy(path, firestore.Asc)

	records, err := s.collect(q.Documents(ctx))
	if err != nil {
		return nil, &QueryError{Op: "range query", Field: field, Err: err}
	}
	return records, nil
}

// GetByID fetches one document
func (s *FirestoreStore) GetByID(ctx context.Context, id string) (entities.MedicineRecord, error) {
	snap, err := s.client.Collection(s.collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return entities.MedicineRecord{}, ErrNotFound
		}
		return entities.MedicineRecord{}, &QueryError{Op: "get", Err: err}
	}

	record, err := decodeSnapshot(snap)
	if err != nil {
		return entities.MedicineRecord{}, &QueryError{Op: "get", Err: err}
	}
	return record, nil
}

// QueryByField returns the documents whose field equals value
func (s *FirestoreStore) QueryByField(ctx context.Context, field entities.CatalogField, value string) ([]entities.MedicineRecord, error) {
	q := s.client.Collection(s.collection).Where(string(field), "==", value)

	records, err := s.collect(q.Documents(ctx))
	if err != nil {
		return nil, &QueryError{Op: "field query", Field: field, Err: err}
	}
	return records, nil
}

func (s *FirestoreStore) collect(iter *firestore.DocumentIterator) ([]entities.MedicineRecord, error) {
	docs, err := iter.GetAll()
	if err != nil {
		return nil, err
	}

	records := make([]entities.MedicineRecord, 0, len(docs))
	for _, doc := range docs {
		record, err := decodeSnapshot(doc)
		if err != nil {
			logging.Warn("Skipping undecodable catalog document", "id", doc.Ref.ID, "error", err)
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func decodeSnapshot(snap *firestore.DocumentSnapshot) (entities.MedicineRecord, error) {
	var record entities.MedicineRecord
	if err := snap.DataTo(&record); err != nil {
		return entities.MedicineRecord{}, fmt.Errorf("document %s: %w", snap.Ref.ID, err)
	}
	record.ID = snap.Ref.ID
	return record, nil
}
