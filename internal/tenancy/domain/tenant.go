package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxTenantNameLength bounds tenant display names, in runes.
const MaxTenantNameLength = 120

var (
	ErrEmptyName    = errors.New("name must not be empty")
	ErrNameTooLong  = errors.New("name is too long")
	ErrInvalidSlug  = errors.New("slug must be 3-63 lowercase letters, digits or hyphens")
	ErrEmptyPatch   = errors.New("patch has no fields")
	ErrMissingOwner = errors.New("owner user id must not be empty")
	ErrInvalidEmail = errors.New("invalid email address")
	ErrInvalidRole  = errors.New("role must be user or admin")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{1,61}[a-z0-9])$`)

// Tenant is a customer organization ("gabinete"). Active is the only signal
// tenant-scoped access checks read and is changed only by toggling.
type Tenant struct {
	ID          string
	Name        string
	Slug        string    // optional
	Active      bool
	OwnerUserID string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TenantPatch is a partial update. Nil fields are left alone. Active is
// deliberately absent.
type TenantPatch struct {
	Name        *string
	Slug        *string
	OwnerUserID *string
}

func (p TenantPatch) IsEmpty() bool {
	return p.Name == nil && p.Slug == nil && p.OwnerUserID == nil
}

// Normalize trims every set field and validates it.
func (p TenantPatch) Normalize() (TenantPatch, error) {
	if p.IsEmpty() {
		return p, ErrEmptyPatch
	}

	var out TenantPatch
	if p.Name != nil {
		name, err := NormalizeTenantName(*p.Name)
		if err != nil {
			return p, err
		}
		out.Name = &name
	}
	if p.Slug != nil {
		slug, err := NormalizeSlug(*p.Slug)
		if err != nil {
			return p, err
		}
		out.Slug = &slug
	}
	if p.OwnerUserID != nil {
		owner := strings.TrimSpace(*p.OwnerUserID)
		if owner == "" {
			return p, ErrMissingOwner
		}
		out.OwnerUserID = &owner
	}
	return out, nil
}

// NormalizeTenantName trims name and rejects empty or over-long values.
func NormalizeTenantName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	if utf8.RuneCountInString(name) > MaxTenantNameLength {
		return "", ErrNameTooLong
	}
	return name, nil
}

// NormalizeSlug lowercases and validates a slug. The empty string clears it.
func NormalizeSlug(slug string) (string, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return "", nil
	}
	if !slugPattern.MatchString(slug) {
		return "", ErrInvalidSlug
	}
	return slug, nil
}
