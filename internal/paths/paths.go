// Package paths maps between storage object paths, Firestore document paths and document keys.
//
// Every location is rooted at a namespace (the "artifacts" partition in production):
//
//	{namespace}/{tenantId}/users/{userId}/uploads/{documentKey}    object storage
//	{namespace}/{tenantId}/users/{userId}/documents/{documentKey}  status records
//	{namespace}/{tenantId}/users/{userId}/policies/{id}            policy records
package paths

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Ge9Nico/SWYM/internal/models"
)

const (
	usersSegment     = "users"
	uploadsSegment   = "uploads"
	documentsSegment = "documents"
	policiesSegment  = "policies"
)

// ResolveUpload decomposes an object path of the form
// {namespace}/{tenantId}/users/{userId}/uploads/{fileName}. ok is false for any
// other path, which callers treat as "not a user upload" rather than as an error.
func ResolveUpload(namespace, objectPath string) (ref models.DocumentRef, ok bool) {
	parts := strings.Split(objectPath, "/")
	if len(parts) != 6 {
		return models.DocumentRef{}, false
	}
	if parts[0] != namespace || parts[2] != usersSegment || parts[4] != uploadsSegment {
		return models.DocumentRef{}, false
	}
	for _, p := range []string{parts[1], parts[3], parts[5]} {
		if p == "" {
			return models.DocumentRef{}, false
		}
	}
	return models.DocumentRef{
		Owner: models.Owner{TenantID: parts[1], UserID: parts[3]},
		Key:   parts[5],
	}, true
}

// UploadObject is the storage object path for ref.
func UploadObject(namespace string, ref models.DocumentRef) string {
	return fmt.Sprintf("%s/%s", userRoot(namespace, ref.Owner, uploadsSegment), ref.Key)
}

// StatusDocument is the Firestore document path of ref's StatusRecord.
func StatusDocument(namespace string, ref models.DocumentRef) string {
	return fmt.Sprintf("%s/%s", DocumentsCollection(namespace, ref.Owner), ref.Key)
}

// DocumentsCollection is the Firestore collection holding owner's StatusRecords.
func DocumentsCollection(namespace string, owner models.Owner) string {
	return userRoot(namespace, owner, documentsSegment)
}

// PoliciesCollection is the Firestore collection holding owner's PolicyRecords.
func PoliciesCollection(namespace string, owner models.Owner) string {
	return userRoot(namespace, owner, policiesSegment)
}

func userRoot(namespace string, owner models.Owner, leaf string) string {
	return strings.Join([]string{namespace, owner.TenantID, usersSegment, owner.UserID, leaf}, "/")
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9.]`)

// NewDocumentKey derives the key for a new upload: the upload time in unix milliseconds, a dash,
// and the file name with every character outside [a-zA-Z0-9.] replaced by an underscore.
// Repeated uploads of one file name therefore get distinct keys.
func NewDocumentKey(uploadedAt time.Time, fileName string) string {
	return fmt.Sprintf("%d-%s", uploadedAt.UnixMilli(), unsafeKeyChars.ReplaceAllString(fileName, "_"))
}
