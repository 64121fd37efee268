package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/marcus/mb/internal/apiclient"
	"github.com/marcus/mb/internal/archive"
	"github.com/marcus/mb/internal/models"
	"github.com/marcus/mb/internal/session"
)

// Kind classifies a failure for user-facing reporting.
type Kind string

const (
	KindNone         Kind = ""
	KindValidation   Kind = "validation"
	KindSlugConflict Kind = "slug_conflict"
	KindArchive      Kind = "archive"
	KindRateLimited  Kind = "rate_limited"
	KindAuth         Kind = "auth"
	KindBusy         Kind = "busy"
	KindCanceled     Kind = "canceled"
	KindGeneric      Kind = "error"
)

// Classify maps an error to its Kind. A nil error is KindNone.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, models.ErrInvalidSlug),
		errors.Is(err, models.ErrInvalidName),
		errors.Is(err, models.ErrInvalidFolder):
		return KindValidation
	case errors.Is(err, apiclient.ErrSlugInUse):
		return KindSlugConflict
	case errors.Is(err, archive.ErrArchive):
		return KindArchive
	case errors.Is(err, apiclient.ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrSyncInProgress):
		return KindBusy
	case errors.Is(err, session.ErrInvalidSession),
		errors.Is(err, apiclient.ErrUnauthorized):
		return KindAuth
	default:
		return KindGeneric
	}
}

const (
	msgSlugInUse   = "That slug's already in use. Please try again with a different slug."
	msgInvalidAuth = "Markbase token invalid - unable to fetch/create projects. Run `mb auth login`."
	msgGeneric     = "An error occurred. Please contact support on " + models.DashboardURL + ". Run with --verbose for details."
)

// Describe returns the message shown to the user for err. The raw error
// text is never included except for validation failures, whose reason is
// the message. slug may be empty when the operation had none.
func Describe(err error, slug string) string {
	switch Classify(err) {
	case KindNone:
		return ""
	case KindValidation:
		var ve *models.ValidationError
		if errors.As(err, &ve) {
			return fmt.Sprintf("Project %s %s.", ve.Field, ve.Reason)
		}
		return err.Error()
	case KindSlugConflict:
		return msgSlugInUse
	case KindArchive:
		return fmt.Sprintf("Error zipping files for %s. Check the folder exists and is readable, then retry.", orProject(slug))
	case KindRateLimited:
		return fmt.Sprintf("Failed to sync %s: projects can be synced once per hour (free) or once per minute (premium). Try again later.", orProject(slug))
	case KindAuth:
		return msgInvalidAuth
	case KindBusy:
		return "A sync is already running. Wait for it to finish."
	case KindCanceled:
		return "Cancelled."
	default:
		return msgGeneric
	}
}

func orProject(slug string) string {
	if slug == "" {
		return "project"
	}
	return slug
}
