package domain

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// MaxGalleryImages caps the gallery on submission
const MaxGalleryImages = 5

// Image roles
const (
	ImageRolePortrait = "portrait"
	ImageRoleGallery  = "gallery"
)

// GalleryImage is one stored image of an obituary
type GalleryImage struct {
	URL        string `json:"url"`
	StorageKey string `json:"storage_key,omitempty"`
	Role       string `json:"role"`
}

// ErrImageSource marks a gallery image the owner is not allowed to reference
var ErrImageSource = errors.New("image source not allowed")

// UploadKeyPrefix is the bucket prefix holding a user's uploaded images
func UploadKeyPrefix(userID string) string {
	return "uploads/" + userID + "/"
}

// CheckSource verifies img may be read on behalf of ownerID. A storage key must
// name an object under the owner's upload prefix; a URL must be absolute http(s).
func (img GalleryImage) CheckSource(ownerID string) error {
	if img.StorageKey != "" {
		if err := checkStorageKey(img.StorageKey, ownerID); err != nil {
			return err
		}
	}
	if img.URL != "" {
		if err := CheckImageURL(img.URL); err != nil {
			return err
		}
	}
	return nil
}

func checkStorageKey(key, ownerID string) error {
	if ownerID == "" || strings.ContainsAny(ownerID, "/\\") {
		return fmt.Errorf("%w: storage key %q", ErrImageSource, key)
	}
	if strings.Contains(key, "\\") || path.Clean(key) != key || !strings.HasPrefix(key, UploadKeyPrefix(ownerID)) {
		return fmt.Errorf("%w: storage key %q is not one of your uploads", ErrImageSource, key)
	}
	return nil
}

// CheckImageURL accepts absolute http and https URLs without credentials
func CheckImageURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" || u.User != nil {
		return fmt.Errorf("%w: url %q must be an absolute http(s) address", ErrImageSource, raw)
	}
	return nil
}

// Obituary is the central memorial record
type Obituary struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID string `gorm:"size:64;not null;index" json:"owner_id"`

	FullName    string     `gorm:"size:200;not null" json:"full_name"`
	DateOfBirth *time.Time `gorm:"type:date" json:"date_of_birth,omitempty"`
	DateOfDeath *time.Time `gorm:"type:date" json:"date_of_death,omitempty"`
	LifeStory   string     `gorm:"type:text" json:"life_story"`
	Epitaph     string     `gorm:"size:500" json:"epitaph,omitempty"`

	PortraitURL        string                          `gorm:"size:1000" json:"portrait_url,omitempty"`
	PortraitStorageKey string                          `gorm:"size:500" json:"portrait_storage_key,omitempty"`
	Gallery            datatypes.JSONSlice[GalleryImage] `json:"gallery"`

	VenueName    string     `gorm:"size:200" json:"venue_name,omitempty"`
	VenueAddress string     `gorm:"size:500" json:"venue_address,omitempty"`
	ServiceTime  *time.Time `json:"service_time,omitempty"`
	StreamURL    string     `gorm:"size:1000" json:"stream_url,omitempty"`

	SubmitterName     string `gorm:"size:200" json:"submitter_name,omitempty"`
	ContactEmail      string `gorm:"size:255" json:"contact_email,omitempty"`
	ContactPhone      string `gorm:"size:50" json:"contact_phone,omitempty"`
	ContactPreference string `gorm:"size:20" json:"contact_preference,omitempty"`

	Paid             bool   `gorm:"not null" json:"paid"`
	PaymentReference string `gorm:"size:100" json:"payment_reference,omitempty"`
	AllowTributes    bool   `gorm:"not null" json:"allow_tributes"`

	Status          ObituaryStatus `gorm:"size:20;not null;default:pending;index" json:"status"`
	RejectionReason string         `gorm:"size:1000" json:"rejection_reason,omitempty"`
	ApprovedBy      string         `gorm:"size:64" json:"approved_by,omitempty"`

	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	PublishedAt    *time.Time `gorm:"index" json:"published_at,omitempty"`
	MemorializedAt *time.Time `gorm:"index" json:"memorialized_at,omitempty"`
	ArchivedAt     *time.Time `json:"archived_at,omitempty"`
	RejectedAt     *time.Time `json:"rejected_at,omitempty"`

	AppreciationMessage   string     `gorm:"type:text" json:"appreciation_message,omitempty"`
	AppreciationUpdatedAt *time.Time `json:"appreciation_updated_at,omitempty"`
}

// TableName returns the table name
func (Obituary) TableName() string {
	return "obituaries"
}

// LifecycleBase is the reference for the memorialize and appreciation windows
func (o *Obituary) LifecycleBase() time.Time {
	if o.PublishedAt != nil {
		return *o.PublishedAt
	}
	return o.CreatedAt
}

// ExportReference is the latest of memorialized_at, published_at and created_at
func (o *Obituary) ExportReference() time.Time {
	ref := o.CreatedAt
	if o.PublishedAt != nil && o.PublishedAt.After(ref) {
		ref = *o.PublishedAt
	}
	if o.MemorializedAt != nil && o.MemorializedAt.After(ref) {
		ref = *o.MemorializedAt
	}
	return ref
}

// RenewalBase is the date the renewal notice is counted from
func (o *Obituary) RenewalBase() time.Time {
	if o.Status == StatusMemorialized && o.MemorializedAt != nil {
		return *o.MemorializedAt
	}
	return o.LifecycleBase()
}

// IsOwnedBy reports whether userID submitted the record
func (o *Obituary) IsOwnedBy(userID string) bool {
	return userID != "" && o.OwnerID == userID
}

// Public returns a copy without contact, payment and moderation details
func (o *Obituary) Public() *Obituary {
	cp := *o
	cp.ContactEmail = ""
	cp.ContactPhone = ""
	cp.ContactPreference = ""
	cp.PaymentReference = ""
	cp.RejectionReason = ""
	cp.ApprovedBy = ""
	cp.PortraitStorageKey = ""
	gallery := make(datatypes.JSONSlice[GalleryImage], len(o.Gallery))
	for i, img := range o.Gallery {
		gallery[i] = GalleryImage{URL: img.URL, Role: img.Role}
	}
	cp.Gallery = gallery
	return &cp
}

// SubmitObituaryRequest is the submission form
type SubmitObituaryRequest struct {
	FullName    string `json:"full_name" binding:"required,notblank,max=200"`
	DateOfBirth string `json:"date_of_birth"`
	DateOfDeath string `json:"date_of_death"`
	// DateOfPassing is the legacy alias of date_of_death
	DateOfPassing string `json:"date_of_passing"`
	LifeStory     string `json:"life_story" binding:"max=20000"`
	Epitaph       string `json:"epitaph" binding:"max=500"`

	PortraitURL        string `json:"portrait_url" binding:"omitempty,url"`
	PortraitStorageKey string `json:"portrait_storage_key"`
	// PhotoURL is the legacy alias of portrait_url
	PhotoURL string         `json:"photo_url" binding:"omitempty,url"`
	Gallery  []GalleryImage `json:"gallery" binding:"max=5,dive"`

	VenueName    string     `json:"venue_name" binding:"max=200"`
	VenueAddress string     `json:"venue_address" binding:"max=500"`
	ServiceTime  *time.Time `json:"service_time"`
	StreamURL    string     `json:"stream_url" binding:"omitempty,url"`

	SubmitterName     string `json:"submitter_name" binding:"max=200"`
	ContactEmail      string `json:"contact_email" binding:"omitempty,email"`
	ContactPhone      string `json:"contact_phone" binding:"max=50"`
	ContactPreference string `json:"contact_preference" binding:"omitempty,oneof=email phone sms none"`

	AllowTributes *bool `json:"allow_tributes"`
}

const dateLayout = "2006-01-02"

// Normalize trims the form, folds legacy aliases and builds the record.
// It is the only place alias fields are read.
func (r *SubmitObituaryRequest) Normalize(ownerID string) (*Obituary, error) {
	deathRaw := strings.TrimSpace(r.DateOfDeath)
	if deathRaw == "" {
		deathRaw = strings.TrimSpace(r.DateOfPassing)
	}
	portrait := strings.TrimSpace(r.PortraitURL)
	if portrait == "" {
		portrait = strings.TrimSpace(r.PhotoURL)
	}
	if portrait != "" {
		if err := CheckImageURL(portrait); err != nil {
			return nil, fmt.Errorf("portrait_url: %w", err)
		}
	}

	birth, err := parseDate(r.DateOfBirth)
	if err != nil {
		return nil, fmt.Errorf("date_of_birth: %w", err)
	}
	death, err := parseDate(deathRaw)
	if err != nil {
		return nil, fmt.Errorf("date_of_death: %w", err)
	}
	if birth != nil && death != nil && death.Before(*birth) {
		return nil, fmt.Errorf("date_of_death is before date_of_birth")
	}

	if len(r.Gallery) > MaxGalleryImages {
		return nil, fmt.Errorf("gallery accepts at most %d images", MaxGalleryImages)
	}
	gallery := make(datatypes.JSONSlice[GalleryImage], 0, len(r.Gallery))
	for i, img := range r.Gallery {
		rawURL := strings.TrimSpace(img.URL)
		key := strings.TrimSpace(img.StorageKey)
		if rawURL == "" && key == "" {
			return nil, fmt.Errorf("gallery[%d]: url or storage_key is required", i)
		}
		clean := GalleryImage{URL: rawURL, StorageKey: key, Role: ImageRoleGallery}
		if err := clean.CheckSource(ownerID); err != nil {
			return nil, fmt.Errorf("gallery[%d]: %w", i, err)
		}
		gallery = append(gallery, clean)
	}

	allowTributes := true
	if r.AllowTributes != nil {
		allowTributes = *r.AllowTributes
	}

	return &Obituary{
		OwnerID:            ownerID,
		FullName:           strings.TrimSpace(r.FullName),
		DateOfBirth:        birth,
		DateOfDeath:        death,
		LifeStory:          strings.TrimSpace(r.LifeStory),
		Epitaph:            strings.TrimSpace(r.Epitaph),
		PortraitURL:        portrait,
		PortraitStorageKey: strings.TrimSpace(r.PortraitStorageKey),
		Gallery:            gallery,
		VenueName:          strings.TrimSpace(r.VenueName),
		VenueAddress:       strings.TrimSpace(r.VenueAddress),
		ServiceTime:        r.ServiceTime,
		StreamURL:          strings.TrimSpace(r.StreamURL),
		SubmitterName:      strings.TrimSpace(r.SubmitterName),
		ContactEmail:       strings.TrimSpace(r.ContactEmail),
		ContactPhone:       strings.TrimSpace(r.ContactPhone),
		ContactPreference:  r.ContactPreference,
		AllowTributes:      allowTributes,
		Status:             StatusPending,
	}, nil
}

func parseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		// legacy rows carry full timestamps
		t, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("expected YYYY-MM-DD, got %q", raw)
		}
	}
	return &t, nil
}

// RejectRequest is the body of the reject action
type RejectRequest struct {
	Reason string `json:"reason"`
}

// PaymentRequest is the body of the payment toggle
type PaymentRequest struct {
	Paid             *bool  `json:"paid" binding:"required"`
	PaymentReference string `json:"payment_reference" binding:"max=100"`
}

// AppreciationRequest is the body of the appreciation message mutation
type AppreciationRequest struct {
	Message string `json:"message" binding:"required"`
}

// ObituaryStats counts records per status
type ObituaryStats struct {
	Total    int64                    `json:"total"`
	ByStatus map[ObituaryStatus]int64 `json:"by_status"`
	Unpaid   int64                    `json:"unpaid"`
}
