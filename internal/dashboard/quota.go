package dashboard

import (
	"errors"
	"fmt"

	"github.com/Ge9Nico/SWYM/internal/models"
)

const (
	GuestLimit     = 1
	PermanentLimit = 3
)

var (
	// ErrQuotaExceeded is matched by every *QuotaError.
	ErrQuotaExceeded = errors.New("upload quota exceeded")
	// ErrNotReady is returned for uploads attempted before both feeds delivered a snapshot.
	ErrNotReady = errors.New("dashboard has not loaded yet")
)

// UpgradePrompt is shown instead of the file picker when the quota gate blocks an upload.
type UpgradePrompt struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Action  string `json:"action"`
}

var (
	GuestPrompt = UpgradePrompt{
		Title:   "Add More Documents",
		Message: "Create a free account to save this analysis and add up to 3 documents.",
		Action:  "Create Free Account",
	}
	PremiumPrompt = UpgradePrompt{
		Title:   "Go Premium",
		Message: "Upgrade to Premium to analyze unlimited documents and unlock advanced features.",
		Action:  "Upgrade Now",
	}
)

// QuotaDecision is the outcome of the quota gate for one identity.
type QuotaDecision struct {
	Allowed bool           `json:"allowed"`
	Count   int            `json:"count"`
	Limit   int            `json:"limit"`
	Prompt  *UpgradePrompt `json:"prompt,omitempty"`
}

// QuotaError carries the decision that blocked an upload.
type QuotaError struct {
	Decision QuotaDecision
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: %d of %d documents used", ErrQuotaExceeded, e.Decision.Count, e.Decision.Limit)
}

func (e *QuotaError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// LimitFor returns the number of documents id may own.
func LimitFor(id models.Identity) int {
	if id.IsGuest {
		return GuestLimit
	}
	return PermanentLimit
}

// CheckQuota counts every StatusRecord the identity owns, whatever its status, so in-flight
// and failed uploads use up quota too.
func CheckQuota(id models.Identity, docs []models.StatusRecord) QuotaDecision {
	d := QuotaDecision{Count: len(docs), Limit: LimitFor(id)}
	d.Allowed = d.Count < d.Limit
	if !d.Allowed {
		prompt := PremiumPrompt
		if id.IsGuest {
			prompt = GuestPrompt
		}
		d.Prompt = &prompt
	}
	return d
}
