package document

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// MaxContentSize is the maximum document content size in bytes.
const MaxContentSize = 1 << 20 // 1MB

// Domain is the knowledge domain a document belongs to.
type Domain string

// Knowledge domains served by the platform.
const (
	DomainPlantDiseases    Domain = "plant_diseases"
	DomainPestManagement   Domain = "pest_management"
	DomainSoilHealth       Domain = "soil_health"
	DomainIrrigation       Domain = "irrigation"
	DomainHarvestHandling  Domain = "harvest_handling"
	DomainFarmingPractices Domain = "farming_practices"
)

// IsValid reports whether d is a known knowledge domain.
func (d Domain) IsValid() bool {
	switch d {
	case DomainPlantDiseases, DomainPestManagement, DomainSoilHealth,
		DomainIrrigation, DomainHarvestHandling, DomainFarmingPractices:
		return true
	}
	return false
}

// Metadata holds descriptive document attributes.
type Metadata struct {
	Author string   `json:"author,omitempty"`
	Source string   `json:"source,omitempty"`
	Region string   `json:"region,omitempty"`
	Tags   []string `json:"tags,omitempty"`
}

// SourceFile describes the uploaded file a version's content was extracted from.
type SourceFile struct {
	Filename             string  `json:"filename"`
	FileType             string  `json:"file_type"`
	SizeBytes            int64   `json:"size_bytes"`
	ExtractionMethod     string  `json:"extraction_method,omitempty"`
	ExtractionConfidence float64 `json:"extraction_confidence,omitempty"`
	PageCount            int     `json:"page_count,omitempty"`
}

// Document is one immutable version of a knowledge document. Edits never
// mutate a stored version's content; they produce the next version.
type Document struct {
	DocumentID    string      `json:"document_id"`
	Version       int         `json:"version"`
	Title         string      `json:"title"`
	Domain        Domain      `json:"domain"`
	Content       string      `json:"content"`
	Status        Status      `json:"status"`
	Metadata      Metadata    `json:"metadata"`
	SourceFile    *SourceFile `json:"source_file,omitempty"`
	ChangeSummary string      `json:"change_summary,omitempty"`
	ContentHash   string      `json:"content_hash,omitempty"`
	Namespace     string      `json:"namespace,omitempty"`
	VectorIDs     []string    `json:"vector_ids,omitempty"`
	ChunkCount    int         `json:"chunk_count,omitempty"`
	CreatedAt     int64       `json:"created_at"` // unix millis
	UpdatedAt     int64       `json:"updated_at"` // unix millis
}

// New validates and creates version 1 of a new document in draft state.
// Content may be empty pending extraction.
func New(documentID, title string, domain Domain, content string) (Document, error) {
	if documentID == "" {
		return Document{}, fmt.Errorf("document ID is required")
	}
	if len(documentID) > 256 {
		return Document{}, fmt.Errorf("document ID too long (max 256)")
	}
	if !idRegex.MatchString(documentID) {
		return Document{}, fmt.Errorf("document ID must be alphanumeric with underscores and hyphens")
	}
	if title == "" {
		return Document{}, fmt.Errorf("title is required")
	}
	if !domain.IsValid() {
		return Document{}, fmt.Errorf("unknown domain %q", domain)
	}
	if len(content) > MaxContentSize {
		return Document{}, fmt.Errorf("content too large (max %d bytes)", MaxContentSize)
	}

	return Document{
		DocumentID:  documentID,
		Version:     1,
		Title:       title,
		Domain:      domain,
		Content:     content,
		Status:      StatusDraft,
		ContentHash: Hash(content),
	}, nil
}

// NextVersion copies d into a new draft version with version = d.Version+1.
// Derived vectorization fields are reset; the copy gets its own lifecycle.
func (d Document) NextVersion(changeSummary string) Document {
	next := d
	next.Version = d.Version + 1
	next.Status = StatusDraft
	next.ChangeSummary = changeSummary
	next.VectorIDs = nil
	next.Namespace = ""
	next.ChunkCount = 0
	next.CreatedAt = 0
	next.UpdatedAt = 0
	return next
}

// VectorNamespace returns the vector index partition for this version.
func (d Document) VectorNamespace() string {
	return fmt.Sprintf("%s-v%d", d.DocumentID, d.Version)
}

// Hash returns the deterministic content digest used for staleness checks.
func Hash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
