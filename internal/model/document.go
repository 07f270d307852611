package model

import "time"

// DocumentType distinguishes the two extraction schemas.
type DocumentType string

const (
	DocumentTypeQuote         DocumentType = "Quote"
	DocumentTypePolicyWording DocumentType = "PolicyWording"
)

// DocumentReference identifies an uploaded document in blob storage.
// Immutable once created.
type DocumentReference struct {
	ID          string       `json:"document_id"`
	Filename    string       `json:"filename"`
	StoragePath string       `json:"storage_path"`
	MimeType    string       `json:"mime_type"`
	SizeBytes   int64        `json:"size_bytes"`
	CarrierName string       `json:"carrier_name,omitempty"`
	Type        DocumentType `json:"document_type"`
}

// ExtractionStatus is the terminal state of a single document extraction.
type ExtractionStatus string

const (
	ExtractionStatusSuccess ExtractionStatus = "success"
	ExtractionStatusFailed  ExtractionStatus = "failed"
)

// ExtractionResult holds the structured payload extracted from one document.
// Created once per (document, prompt-version) pair and cached indefinitely
// by fingerprint; two results with equal fingerprints carry identical payloads.
type ExtractionResult struct {
	DocumentID  string           `json:"document_id"`
	RequestID   string           `json:"request_id,omitempty"`
	Filename    string           `json:"filename"`
	CarrierName string           `json:"carrier_name,omitempty"`
	Type        DocumentType     `json:"document_type"`
	Status      ExtractionStatus `json:"status"`
	Payload     map[string]any   `json:"structured_payload,omitempty"`
	ErrorReason string           `json:"error_reason,omitempty"`
	Cached      bool             `json:"cached"`
	Fingerprint string           `json:"fingerprint"`
	Usage       TokenUsage       `json:"usage,omitzero"`
	CreatedAt   time.Time        `json:"created_at,omitzero"`
}

// FailedDocument records a per-document extraction failure surfaced to the
// caller alongside the successful results.
type FailedDocument struct {
	DocumentID string       `json:"document_id"`
	Filename   string       `json:"filename"`
	Type       DocumentType `json:"document_type"`
	Carrier    string       `json:"carrier,omitempty"`
	Reason     string       `json:"reason,omitempty"`
}
