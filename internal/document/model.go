package document

import "time"

// Document is the metadata of an uploaded file. The payload is stored
// alongside it, sealed, and never serialized to clients.
type Document struct {
	ID          string    `json:"id" bson:"_id"`
	RecordID    string    `json:"recordId,omitempty" bson:"record_id,omitempty"`
	PatientID   string    `json:"patientId" bson:"patient_id"`
	Name        string    `json:"documentName" bson:"name"`
	Type        string    `json:"documentType" bson:"type"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	Filename    string    `json:"filename" bson:"filename"`
	ContentType string    `json:"contentType" bson:"content_type"`
	Size        int64     `json:"size" bson:"size"`
	UploadedBy  string    `json:"uploadedBy" bson:"uploaded_by"`
	UploadDate  time.Time `json:"uploadDate" bson:"upload_date"`
}

type UploadInput struct {
	PatientID   string
	RecordID    string
	Name        string
	Type        string
	Description string
	Filename    string
	Data        []byte
}
