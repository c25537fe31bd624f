// Package entities holds the records shared by the catalogue, search and
// session packages.
package entities

// CatalogField names a queryable field of a catalogue document.
type CatalogField string

const (
	FieldNameLowercase  CatalogField = "name_lowercase"
	FieldBrandLowercase CatalogField = "medicine_brand_lowercase"
	FieldBrand          CatalogField = "Brand"
)

// MedicineRecord is a catalogue document. The lowercase fields are written by
// the data producer and only read here.
type MedicineRecord struct {
	ID             string `json:"id" yaml:"id" firestore:"-"`
	Name           string `json:"name" yaml:"name" firestore:"name"`
	NameLowercase  string `json:"name_lowercase" yaml:"name_lowercase" firestore:"name_lowercase"`
	Brand          string `json:"Brand" yaml:"brand" firestore:"Brand"`
	BrandLowercase string `json:"medicine_brand_lowercase" yaml:"medicine_brand_lowercase" firestore:"medicine_brand_lowercase"`
	Composition    string `json:"Composition" yaml:"composition" firestore:"Composition"`
	Description    string `json:"description" yaml:"description" firestore:"description"`
	DoseIndication string `json:"Dose_Indication" yaml:"dose_indication" firestore:"Dose_Indication"`
	Image          string `json:"image,omitempty" yaml:"image,omitempty" firestore:"image,omitempty"`
}

// FieldValue returns the value of a queryable field.
func (m MedicineRecord) FieldValue(field CatalogField) string {
	switch field {
	case FieldNameLowercase:
		return m.NameLowercase
	case FieldBrandLowercase:
		return m.BrandLowercase
	case FieldBrand:
		return m.Brand
	}
	return ""
}
