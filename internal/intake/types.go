package intake

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Caller-facing messages. These are the only strings ever returned to the form.
const (
	MessageMissingField = "An error occurred, email or status missing from request"
	MessageInvalidEmail = "Invalid Email"
	MessageRegistered   = "User successfully registered"
	MessageAlready      = "Your Email is already registered"
	MessageRetryLater   = "An error occurred, please try again later."
)

// ListRef identifies a mailing list. Forms post list ids either as numbers or
// as strings, so both are accepted; numeric refs are re-encoded as numbers.
type ListRef string

// UnmarshalJSON accepts a JSON string or number.
func (l *ListRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode list ref: %w", err)
		}
		*l = ListRef(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode list ref: %w", err)
	}
	*l = ListRef(n.String())
	return nil
}

// MarshalJSON emits a number when the ref is an integer id, a string otherwise.
func (l ListRef) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(l), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(l) {
		return []byte(l), nil
	}
	return json.Marshal(string(l))
}

// SubscriberRequest is the untrusted payload posted by the upstream form.
type SubscriberRequest struct {
	Email  string    `json:"email"`
	Status string    `json:"status"`
	Name   string    `json:"name,omitempty"`
	Lists  []ListRef `json:"lists,omitempty"`
}

// Subscriber is the canonical record forwarded downstream. Lists is nil when
// the request carried none and is sent as JSON null; an explicit empty list
// stays empty.
type Subscriber struct {
	Email  string    `json:"email"`
	Status string    `json:"status"`
	Name   string    `json:"name"`
	Lists  []ListRef `json:"lists"`
}

// ForwardResult enumerates what the subscription backend said.
type ForwardResult int

// Forward results.
const (
	ForwardRegistered ForwardResult = iota
	ForwardAlreadyRegistered
	ForwardFailed
)

func (r ForwardResult) String() string {
	switch r {
	case ForwardRegistered:
		return "registered"
	case ForwardAlreadyRegistered:
		return "already_registered"
	case ForwardFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ForwardOutcome is produced exactly once per pipeline run. BackendID may be
// empty for Registered because listmonk does not always echo the record; Err
// is set only for Failed.
type ForwardOutcome struct {
	Result    ForwardResult
	BackendID string
	Err       error
}

// Registered builds a successful outcome.
func Registered(backendID string) ForwardOutcome {
	return ForwardOutcome{Result: ForwardRegistered, BackendID: backendID}
}

// AlreadyRegistered builds a conflict outcome.
func AlreadyRegistered() ForwardOutcome {
	return ForwardOutcome{Result: ForwardAlreadyRegistered}
}

// Failed builds a failure outcome carrying the reason.
func Failed(err error) ForwardOutcome {
	return ForwardOutcome{Result: ForwardFailed, Err: err}
}

// BackupRecord is the secondary copy of an accepted subscriber.
type BackupRecord struct {
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Lists      []ListRef `json:"lists"`
	InsertedAt time.Time `json:"inserted_at"`
}

// NewBackupRecord derives a record from a registered subscriber.
func NewBackupRecord(sub Subscriber, at time.Time) BackupRecord {
	var lists []ListRef
	if sub.Lists != nil {
		lists = append([]ListRef{}, sub.Lists...)
	}
	return BackupRecord{
		Email:      sub.Email,
		Name:       sub.Name,
		Status:     sub.Status,
		Lists:      lists,
		InsertedAt: at,
	}
}

// Key is the dedup key used by every backup store.
func (r BackupRecord) Key() string {
	return NormalizeEmail(r.Email)
}

// UnknownTotal marks a receipt whose count query failed after the write.
const UnknownTotal int64 = -1

// BackupReceipt reports what a backup call did. Total is informational only:
// when counting fails the record is still stored, Total is UnknownTotal and
// TotalErr says why.
type BackupReceipt struct {
	AlreadyPresent bool
	Total          int64
	TotalErr       error
}

// NewBackupReceipt builds a receipt from a finished write and its follow-up
// count. A count error never turns the write into a failure.
func NewBackupReceipt(alreadyPresent bool, total int64, countErr error) BackupReceipt {
	if countErr != nil {
		return BackupReceipt{AlreadyPresent: alreadyPresent, Total: UnknownTotal, TotalErr: countErr}
	}
	return BackupReceipt{AlreadyPresent: alreadyPresent, Total: total}
}

// TotalKnown reports whether Total holds a real count.
func (r BackupReceipt) TotalKnown() bool {
	return r.TotalErr == nil && r.Total >= 0
}

// EventKind classifies a notification.
type EventKind string

// Notification kinds.
const (
	EventSuccess EventKind = "success"
	EventError   EventKind = "error"
)

// Pipeline stages named in error notifications.
const (
	StageForward = "forward"
	StageBackup  = "backup"
)

// NotificationEvent is an ephemeral operational message.
type NotificationEvent struct {
	Kind    EventKind `json:"kind"`
	Stage   string    `json:"stage,omitempty"`
	Message string    `json:"message"`
}

// Response is the body returned to the form.
type Response struct {
	Message string `json:"response_message"`
}

// NormalizeEmail lowercases and trims an address for comparisons.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ObfuscateEmail keeps only the local part so shared channels never carry a
// full address.
func ObfuscateEmail(email string) string {
	local, _, found := strings.Cut(email, "@")
	if !found || local == "" {
		return "***"
	}
	return local
}
