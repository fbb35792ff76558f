// Package depot defines the domain types shared by every layer of the
// service: users, file records, share links, and the error model the
// HTTP layer translates to status codes.
package depot

import "time"

// Role classifies a user account.
type Role string

const (
	// RoleAdmin can manage every user, file, and share.
	RoleAdmin Role = "admin"

	// RoleUser can manage only their own files and shares.
	RoleUser Role = "user"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Admin reports whether the role grants administrative access.
func (r Role) Admin() bool {
	return r == RoleAdmin
}

// User is an account that can authenticate and own files.
type User struct {
	// ID is the immutable UUID assigned at registration
	ID string

	// Email is the login identifier, stored lowercase and unique
	// case-insensitively across all accounts
	Email string

	// Username is the display name shown in listings
	Username string

	// PasswordHash is the bcrypt hash of the login password.
	// Never serialized to API responses.
	PasswordHash string

	// Role determines administrative access
	Role Role

	// QuotaBytes caps the total size of the user's stored files.
	// Zero means unlimited.
	QuotaBytes int64

	// Active gates authentication; deactivated accounts keep their
	// files but cannot log in
	Active bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// File is the metadata record for one stored object.
//
// The bytes live in the blob store under ObjectKey; everything else about
// the file lives here.
type File struct {
	// ID is the immutable UUID assigned at upload
	ID string

	// OwnerID is the uploading user's ID
	OwnerID string

	// Filename is the display name, mutable via rename
	Filename string

	// Folder is the logical location inside the owner's tree.
	// Always a clean absolute path ("/" for the root).
	Folder string

	// Size is the content length in bytes
	Size int64

	// ContentType is the sniffed MIME type of the content
	ContentType string

	// MD5 is the lowercase hex digest of the content, computed
	// during upload
	MD5 string

	// ObjectKey locates the bytes in the blob store.
	// Format: YYYY/MM/DD/<md5(owner-email)[:8]>/<uuid><ext>
	ObjectKey string

	// DownloadCount counts successful downloads, including downloads
	// through share links
	DownloadCount int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ShareType selects how a share link is protected.
type ShareType string

const (
	// SharePublic links are open to anyone holding the URL
	SharePublic ShareType = "public"

	// ShareWithPassword links require a 4-digit access code
	ShareWithPassword ShareType = "with_password"
)

// Valid reports whether the share type is one of the known values.
func (t ShareType) Valid() bool {
	return t == SharePublic || t == ShareWithPassword
}

// Share is a public link to a single file.
//
// A file has at most one share row. Recreating a share while the old one
// is still live updates the row in place so the published URL stays valid.
type Share struct {
	// ID is the share UUID that appears in the public URL
	ID string

	// FileID is the shared file; unique across all share rows
	FileID string

	// OwnerID is the sharing user's ID
	OwnerID string

	// Type selects public or code-protected access
	Type ShareType

	// CodeHash is the bcrypt hash of the 4-digit access code.
	// Empty for public shares. The plaintext code is returned exactly
	// once, in the response that set it.
	CodeHash string

	// ExpiresAt ends the share's life; nil means permanent
	ExpiresAt *time.Time

	// AccessCount counts successful public downloads
	AccessCount int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the share has passed its expiry at the given
// instant. Permanent shares never expire.
func (s *Share) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// RequiresCode reports whether public access must present the access code.
func (s *Share) RequiresCode() bool {
	return s.Type == ShareWithPassword
}
