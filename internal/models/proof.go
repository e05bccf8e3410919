// Package models defines the data shared by the verification pipeline:
// proof assets, submission and poll states, and record-store rows.
package models

// ProofKind identifies one of the two evidence images of a donation.
type ProofKind string

const (
	ProofPrescription ProofKind = "PRESCRIPTION"
	ProofBloodBag     ProofKind = "BLOOD_BAG"
)

// ProofKinds lists the kinds in submission order.
var ProofKinds = [...]ProofKind{ProofPrescription, ProofBloodBag}

// Category is the object-storage prefix for the kind.
func (k ProofKind) Category() string {
	switch k {
	case ProofPrescription:
		return "prescriptions"
	case ProofBloodBag:
		return "bags"
	default:
		return "proofs"
	}
}

// Valid reports whether k is one of the known kinds.
func (k ProofKind) Valid() bool {
	return k == ProofPrescription || k == ProofBloodBag
}

// ProofAsset is one evidence image as it moves through compression and upload.
type ProofAsset struct {
	Kind              ProofKind
	RawBytes          []byte
	MimeType          string
	OriginalSizeBytes int64

	// Set after successful compression.
	CompressedBytes    []byte
	CompressedMimeType string

	// Set after successful upload; cleared when the attempt fails.
	ObjectPath    string
	PublicLocator string
}

// Compressed reports whether the asset is ready to upload.
func (a *ProofAsset) Compressed() bool {
	return a != nil && len(a.CompressedBytes) > 0
}

// Uploaded reports whether the asset's object exists in storage.
func (a *ProofAsset) Uploaded() bool {
	return a != nil && a.ObjectPath != ""
}

// ClearUpload forgets the upload of a failed attempt, keeping the user's
// selection and its compressed bytes.
func (a *ProofAsset) ClearUpload() {
	a.ObjectPath = ""
	a.PublicLocator = ""
}

// Clone returns a copy that does not share the path/locator fields. Byte
// slices are shared; they are never mutated after being set.
func (a *ProofAsset) Clone() *ProofAsset {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}
