package knowledge

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status tracks a file-ingestion request through its pipeline stages (§9).
// Transitions are one-way and never skip a stage, mirroring the original's
// KnowledgeStatus enum.
type Status string

const (
	StatusReceived   Status = "RECEIVED"
	StatusPersisting Status = "PERSISTING"
	StatusPreparing  Status = "PREPARING"
	StatusEmbedding  Status = "EMBEDDING"
	StatusEmbedded   Status = "EMBEDDED"
	StatusFailed     Status = "FAILED"
)

// Category restricts an upload to one of the two curated sample namespaces --
// generate()'s "botwaf" namespace is never a valid upload target.
type Category string

const (
	CategoryNormal    Category = "NORMAL"
	CategoryMalicious Category = "MALICIOUS"
)

// Namespace returns the Namespace c's documents are embedded into.
func (c Category) Namespace() Namespace {
	if c == CategoryMalicious {
		return NamespaceMalicious
	}
	return NamespaceNormal
}

// UploadInfo describes one file-ingestion request and tracks its progress,
// mirroring the original's KnowledgeUploadInfo (id, name, labels, category,
// lines, status, description, create_at/create_by).
type UploadInfo struct {
	ID          string
	Name        string
	Labels      map[string]string
	Category    Category
	Lines       int
	Status      Status
	Description string
	CreatedAt   int64
	CreatedBy   string
}

// NewUploadInfo builds an UploadInfo in the RECEIVED status, with a random
// id: a UUIDv4 with its dashes removed.
func NewUploadInfo(name string, category Category, labels map[string]string) *UploadInfo {
	return &UploadInfo{
		ID:        strings.ReplaceAll(uuid.NewString(), "-", ""),
		Name:      name,
		Labels:    labels,
		Category:  category,
		Status:    StatusReceived,
		CreatedAt: time.Now().UnixMilli(),
	}
}
