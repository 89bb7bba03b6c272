package errors

import (
	stderrors "errors"

	"github.com/waymark-rpg/waymark/internal/platform/errors/i18n"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultLocale is the default locale for error messages.
const DefaultLocale = "en-US"

// HandleError converts domain errors to gRPC status for client responses.
// The user-facing message comes from the i18n catalog for the requested
// locale, resolved through language matching with an en-US fallback.
func HandleError(err error, locale string) error {
	if err == nil {
		return nil
	}

	var domainErr *Error
	if stderrors.As(err, &domainErr) {
		catalog := i18n.GetCatalog(locale)
		userMessage := catalog.Format(string(domainErr.Code), domainErr.Metadata)
		return domainErr.ToGRPCStatus(catalog.Locale(), userMessage)
	}

	// Unknown error, return internal with a generic message
	return status.Error(codes.Internal, "an unexpected error occurred")
}

// MetadataOf extracts metadata from err, walking the wrap chain.
// Returns nil when err carries no domain error or no metadata.
func MetadataOf(err error) map[string]string {
	var domainErr *Error
	if stderrors.As(err, &domainErr) {
		return domainErr.Metadata
	}
	return nil
}
