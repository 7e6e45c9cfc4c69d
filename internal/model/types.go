package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a transaction. PENDING is the only
// non-terminal state: the first verdict applied wins and later verdicts
// are no-ops.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Terminal reports whether no further status transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// Transaction is the authoritative record owned by the transaction store.
type Transaction struct {
	ID                      string          `json:"id"`
	TransactionExternalID   string          `json:"transactionExternalId"`
	AccountExternalIDDebit  string          `json:"accountExternalIdDebit"`
	AccountExternalIDCredit string          `json:"accountExternalIdCredit"`
	TransferTypeID          int             `json:"transferTypeId"`
	Value                   decimal.Decimal `json:"value"`
	Status                  Status          `json:"status"`
	CreatedAt               time.Time       `json:"createdAt"`
	UpdatedAt               time.Time       `json:"updatedAt"`
}

// Verdict is the antifraud decision carried on the verdict topic.
type Verdict string

const (
	VerdictApproved Verdict = "approved"
	VerdictRejected Verdict = "rejected"
)

// ToStatus maps a verdict to the transaction status it produces.
func (v Verdict) ToStatus() (Status, error) {
	switch v {
	case VerdictApproved:
		return StatusApproved, nil
	case VerdictRejected:
		return StatusRejected, nil
	default:
		return "", fmt.Errorf("unknown verdict %q", string(v))
	}
}

const (
	// ChangeOpCreate is the only change-event operation the pipeline acts on.
	ChangeOpCreate = "c"
)

// ChangeEvent is a row-creation message on the change topic. It carries a
// full transaction snapshot plus the operation and source-table tags.
// Value stays raw because capture tooling serializes numerics either as
// JSON numbers or as strings; coercion happens in DecimalValue.
type ChangeEvent struct {
	ID                      string          `json:"id,omitempty"`
	TransactionExternalID   string          `json:"transactionExternalId"`
	AccountExternalIDDebit  string          `json:"accountExternalIdDebit,omitempty"`
	AccountExternalIDCredit string          `json:"accountExternalIdCredit,omitempty"`
	TransferTypeID          int             `json:"transferTypeId"`
	Value                   json.RawMessage `json:"value,omitempty"`
	Status                  Status          `json:"status,omitempty"`
	CreatedAt               string          `json:"createdAt,omitempty"`
	Op                      string          `json:"__op"`
	Table                   string          `json:"__table,omitempty"`
	SourceTsMs              int64           `json:"__source_ts_ms,omitempty"`
}

// HasValue reports whether the event carries a value field at all.
func (ev *ChangeEvent) HasValue() bool {
	return len(ev.Value) > 0 && string(ev.Value) != "null"
}

// DecimalValue coerces the raw value field, accepting both JSON numbers
// and numeric strings.
func (ev *ChangeEvent) DecimalValue() (decimal.Decimal, error) {
	raw := strings.Trim(strings.TrimSpace(string(ev.Value)), `"`)
	return decimal.NewFromString(raw)
}

// VerdictEvent is the minimal message on the verdict topic. It carries no
// snapshot fields on purpose: consumers must merge it against existing
// state instead of treating it as authoritative.
type VerdictEvent struct {
	TransactionExternalID string  `json:"transactionExternalId"`
	Status                Verdict `json:"status"`
}

// TypeInfo and StatusInfo are the nested objects of the read projection.
type TypeInfo struct {
	Name string `json:"name"`
}

type StatusInfo struct {
	Name Status `json:"name"`
}

// TransactionProjection is the read-side shape served by the API and held
// in the cache. All fields are pointers so a partial fact (a status-only
// verdict merge, or a snapshot without a verdict) marshals sparsely and
// merges without clobbering fields it does not carry.
type TransactionProjection struct {
	TransactionExternalID *string          `json:"transactionExternalId,omitempty"`
	TransactionType       *TypeInfo        `json:"transactionType,omitempty"`
	TransactionStatus     *StatusInfo      `json:"transactionStatus,omitempty"`
	Value                 *decimal.Decimal `json:"value,omitempty"`
	CreatedAt             *time.Time       `json:"createdAt,omitempty"`
}

// ProjectTransaction builds the full read projection of a stored transaction.
func ProjectTransaction(tx *Transaction) *TransactionProjection {
	id := tx.TransactionExternalID
	value := tx.Value
	createdAt := tx.CreatedAt
	return &TransactionProjection{
		TransactionExternalID: &id,
		TransactionType:       &TypeInfo{Name: TypeName(tx.TransferTypeID)},
		TransactionStatus:     &StatusInfo{Name: tx.Status},
		Value:                 &value,
		CreatedAt:             &createdAt,
	}
}

// TypeName renders the display name for a transfer type identifier.
func TypeName(transferTypeID int) string {
	return fmt.Sprintf("Type %d", transferTypeID)
}

// MergeInto overlays the present fields of partial over dst, leaving absent
// fields of partial untouched. It implements the field-wise cache merge: a
// later partial fact never erases what an earlier fact established.
//
// The status field additionally mirrors the lifecycle guard: a decided
// entry is never taken back to PENDING by an out-of-order creation
// snapshot.
func (p *TransactionProjection) MergeInto(dst *TransactionProjection) {
	if p.TransactionExternalID != nil {
		dst.TransactionExternalID = p.TransactionExternalID
	}
	if p.TransactionType != nil {
		dst.TransactionType = p.TransactionType
	}
	if p.TransactionStatus != nil {
		decided := dst.TransactionStatus != nil && dst.TransactionStatus.Name.Terminal()
		if !decided || p.TransactionStatus.Name.Terminal() {
			dst.TransactionStatus = p.TransactionStatus
		}
	}
	if p.Value != nil {
		dst.Value = p.Value
	}
	if p.CreatedAt != nil {
		dst.CreatedAt = p.CreatedAt
	}
}
