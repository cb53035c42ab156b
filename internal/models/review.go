package models

import "time"

// JournalEntryReview is the approval gate in front of an entry. There is one
// review per entry; revisions cycle it back to pending.
type JournalEntryReview struct {
	ID                uint                 `gorm:"primaryKey" json:"id"`
	TenantID          string               `gorm:"size:64;not null;uniqueIndex:idx_reviews_tenant_entry;index:idx_reviews_tenant_status" json:"tenant_id"`
	EntryID           uint                 `gorm:"not null;uniqueIndex:idx_reviews_tenant_entry" json:"entry_id"`
	ReviewerID        *uint                `gorm:"index" json:"reviewer_id"`
	Status            string               `gorm:"size:20;not null;index:idx_reviews_tenant_status" json:"status"`
	Comments          string               `gorm:"type:text" json:"comments"`
	RequiredDocuments []string             `gorm:"type:text;serializer:json" json:"required_documents"`
	MissingDocuments  []string             `gorm:"type:text;serializer:json" json:"missing_documents"`
	Documents         []SupportingDocument `gorm:"type:text;serializer:json" json:"documents"`
	Checklist         map[string]bool      `gorm:"type:text;serializer:json" json:"checklist"`
	Revision          int                  `gorm:"not null" json:"revision"`
	DecidedBy         *uint                `json:"decided_by"`
	DecidedAt         *time.Time           `json:"decided_at"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`

	// Associations
	Entry  *JournalEntry `gorm:"foreignKey:EntryID" json:"entry,omitempty"`
	Events []ReviewEvent `gorm:"foreignKey:ReviewID" json:"events,omitempty"`
}

// TableName specifies the table name for JournalEntryReview
func (JournalEntryReview) TableName() string {
	return "journal_entry_reviews"
}

// MayApprove returns true if the review can be approved. Outstanding
// documents block approval.
func (r *JournalEntryReview) MayApprove() bool {
	return r.Status == ReviewStatusPending && len(r.MissingDocuments) == 0
}

// MayReject returns true if the review can be rejected
func (r *JournalEntryReview) MayReject() bool {
	return r.Status == ReviewStatusPending
}

// MayRequestRevision returns true if the review can be sent back
func (r *JournalEntryReview) MayRequestRevision() bool {
	return r.Status == ReviewStatusPending
}

// MayResubmit returns true if a revised entry can go back to pending
func (r *JournalEntryReview) MayResubmit() bool {
	return r.Status == ReviewStatusNeedsRevision
}

// AddMissingDocuments merges docs into the missing list without dropping
// anything reported by earlier revisions.
func (r *JournalEntryReview) AddMissingDocuments(docs ...string) {
	seen := make(map[string]bool, len(r.MissingDocuments))
	for _, d := range r.MissingDocuments {
		seen[d] = true
	}
	for _, d := range docs {
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		r.MissingDocuments = append(r.MissingDocuments, d)
	}
}

// ResolveDocument removes docType from the missing list
func (r *JournalEntryReview) ResolveDocument(docType string) {
	kept := r.MissingDocuments[:0]
	for _, d := range r.MissingDocuments {
		if d != docType {
			kept = append(kept, d)
		}
	}
	r.MissingDocuments = kept
}

// SupportingDocument is a file attached to a review
type SupportingDocument struct {
	Type        string    `json:"type"`
	Filename    string    `json:"filename"`
	StorageKey  string    `json:"storage_key"`
	ContentType string    `json:"content_type"`
	UploadedBy  uint      `json:"uploaded_by"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// ReviewEvent is one recorded transition of a review
type ReviewEvent struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	TenantID         string    `gorm:"size:64;not null;index" json:"tenant_id"`
	ReviewID         uint      `gorm:"not null;index" json:"review_id"`
	Action           string    `gorm:"size:30;not null" json:"action"`
	FromStatus       string    `gorm:"size:20;not null" json:"from_status"`
	ToStatus         string    `gorm:"size:20;not null" json:"to_status"`
	ReviewerID       uint      `gorm:"not null" json:"reviewer_id"`
	Comments         string    `gorm:"type:text" json:"comments"`
	MissingDocuments []string  `gorm:"type:text;serializer:json" json:"missing_documents"`
	CreatedAt        time.Time `json:"created_at"`
}

// TableName specifies the table name for ReviewEvent
func (ReviewEvent) TableName() string {
	return "journal_entry_review_events"
}

// Review event actions
const (
	ReviewActionOpened           = "opened"
	ReviewActionApproved         = "approved"
	ReviewActionRejected         = "rejected"
	ReviewActionRevisionRequired = "revision_requested"
	ReviewActionResubmitted      = "resubmitted"
	ReviewActionAssigned         = "assigned"
	ReviewActionDocumentAttached = "document_attached"
)
