package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Uncategorized is the bucket name used when a transaction carries no category.
const Uncategorized = "Uncategorized"

// Canonical labels for transaction kinds in exported files and mirrors.
const (
	LabelCredit = "Credit"
	LabelDebit  = "Debit"
)

const (
	// Both is only valid for categories: the category applies to either kind.
	Both   Kind = 0
	Credit Kind = 1
	Debit  Kind = 2
)

const dateLayout = "2006-01-02"

type (
	// Kind is the direction of a transaction. Credit increases the balance,
	// Debit decreases it.
	Kind int

	Date struct {
		time.Time
	}

	// CategoryRef is the category snapshot stored on a transaction. Name is
	// captured at write time and is not rewritten when the category changes.
	CategoryRef struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name"`
	}

	Transaction struct {
		ID          string      `json:"id"`
		OccurredOn  Date        `json:"occurredOn"`
		RecordedAt  time.Time   `json:"recordedAt"`
		Kind        Kind        `json:"kind"`
		Title       string      `json:"title"`
		Description string      `json:"description"`
		Amount      Money       `json:"amount"`
		Category    CategoryRef `json:"category"`
		ImageRef    string      `json:"imageRef,omitempty"`
	}

	Category struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Kind  Kind   `json:"kind"`
		Icon  string `json:"icon"`
		Color string `json:"color"`
	}

	User struct {
		ID           string
		Email        string
		PasswordHash string
		CreatedAt    time.Time
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidKind      = errors.New("invalid kind")
	ErrEmptyTitle       = errors.New("empty title")
	ErrTitleTooLong     = errors.New("title too long (max 200 characters)")
	ErrNegativeAmount   = errors.New("amount must not be negative")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrAmountPrecision  = errors.New("amount has more significant digits than a spreadsheet number can hold")
	ErrEmptyName        = errors.New("empty category name")
	ErrInvalidColor     = errors.New("invalid color (expected #rrggbb)")
	ErrKindMismatch     = errors.New("category does not apply to transaction kind")
	ErrUnknownKindLabel = errors.New("unknown type label")
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// String returns the lowercase wire name of the kind.
func (k Kind) String() string {
	switch k {
	case Credit:
		return "credit"
	case Debit:
		return "debit"
	case Both:
		return "both"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Label returns the canonical export label ("Credit" or "Debit").
func (k Kind) Label() string {
	if k == Credit {
		return LabelCredit
	}
	return LabelDebit
}

// ParseKind accepts the wire names and the legacy numeric codes (1, 2, 0).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "credit", "1":
		return Credit, nil
	case "debit", "2":
		return Debit, nil
	case "both", "0":
		return Both, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// ParseKindLabel is strict: only the canonical labels are accepted.
func ParseKindLabel(s string) (Kind, error) {
	switch strings.TrimSpace(s) {
	case LabelCredit:
		return Credit, nil
	case LabelDebit:
		return Debit, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKindLabel, s)
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// IsTransactionKind reports whether k is usable on a transaction.
func (k Kind) IsTransactionKind() bool {
	return k == Credit || k == Debit
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a yyyy-MM-dd string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

// String formats the date as yyyy-MM-dd.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, string(b))
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	v, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// DisplayName returns the snapshot name or Uncategorized.
func (c CategoryRef) DisplayName() string {
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	return Uncategorized
}

// Signed returns the amount with the sign implied by the kind.
func (t Transaction) Signed() Money {
	if t.Kind == Credit {
		return t.Amount
	}
	return Money{Decimal: t.Amount.Neg()}
}

func (t Transaction) Validate() error {
	if err := t.OccurredOn.Validate(); err != nil {
		return err
	}
	if !t.Kind.IsTransactionKind() {
		return fmt.Errorf("%w: %s", ErrInvalidKind, t.Kind)
	}
	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTitle
	}
	if len(t.Title) > 200 {
		return ErrTitleTooLong
	}
	return t.Amount.Validate()
}

// WithDefaults fills the icon and color the way the category form does.
func (c Category) WithDefaults() Category {
	if strings.TrimSpace(c.Icon) == "" {
		c.Icon = "tag"
	}
	if strings.TrimSpace(c.Color) == "" {
		c.Color = "#000000"
	}
	return c
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	switch c.Kind {
	case Credit, Debit, Both:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidKind, c.Kind)
	}
	if c.Color != "" && !colorPattern.MatchString(c.Color) {
		return ErrInvalidColor
	}
	return nil
}

// AppliesTo reports whether the category may be chosen for a transaction of kind k.
func (c Category) AppliesTo(k Kind) bool {
	return c.Kind == Both || c.Kind == k
}

// Ref returns the snapshot to store on a transaction.
func (c Category) Ref() CategoryRef {
	return CategoryRef{ID: c.ID, Name: c.Name}
}
