package models

import "time"

// RecordType classifies a vault record.
type RecordType string

const (
	TypeNote          RecordType = "note"
	TypeFile          RecordType = "file"
	TypeMedicalRecord RecordType = "medical_record"
	TypePreference    RecordType = "preference"
	TypeMeasurement   RecordType = "measurement"
	TypeOther         RecordType = "other"
)

// Valid reports whether t is a known record type.
func (t RecordType) Valid() bool {
	switch t {
	case TypeNote, TypeFile, TypeMedicalRecord, TypePreference, TypeMeasurement, TypeOther:
		return true
	}
	return false
}

// RecordSource says where a record originated.
type RecordSource string

const (
	SourceManual      RecordSource = "manual"
	SourceEpic        RecordSource = "epic"
	SourceFitbit      RecordSource = "fitbit"
	SourceAppleHealth RecordSource = "apple_health"
	SourceImport      RecordSource = "import"
)

// Valid reports whether s is a known record source.
func (s RecordSource) Valid() bool {
	switch s {
	case SourceManual, SourceEpic, SourceFitbit, SourceAppleHealth, SourceImport:
		return true
	}
	return false
}

// Record is the stored, encrypted form of a vault item. Title is kept in
// plaintext for search; ContentEncrypted and MetadataEncrypted are AES-GCM
// blobs as produced by cryptox.Encrypt. DeletedAt marks soft deletion:
// normal API paths never remove the row.
type Record struct {
	ID                string
	IdentityID        string
	Type              RecordType
	Source            RecordSource
	SourceID          string
	Title             string
	ContentEncrypted  string
	MetadataEncrypted string
	FilePath          string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         *time.Time
}

// DecryptedRecord is the per-request plaintext view returned to callers.
// It exists only in memory on the request path.
type DecryptedRecord struct {
	ID        string         `json:"id"`
	Type      RecordType     `json:"type"`
	Source    RecordSource   `json:"source"`
	SourceID  string         `json:"source_id,omitempty"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Tags      []string       `json:"tags"`
	FilePath  string         `json:"file_path,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
