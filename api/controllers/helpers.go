package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

func requireUser(ctx context.Context) (uuid.UUID, error) {
	userID := middleware.UserIDFromContext(ctx)
	if userID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return userID, nil
}

func requireCartSession(ctx context.Context) (string, error) {
	session := middleware.CartSessionFromContext(ctx)
	if session == "" {
		return "", pkgerrors.New(pkgerrors.CodeInternal, "cart session missing")
	}
	return session, nil
}

// writeFailure sends browsers to details.redirect when the error carries one and
// otherwise writes the JSON error envelope.
func writeFailure(w http.ResponseWriter, r *http.Request, logg *logger.Logger, err error) {
	if responses.WantsHTML(r) {
		if location := pkgerrors.RedirectOf(err); location != "" {
			responses.Redirect(w, r, location)
			return
		}
	}
	responses.WriteError(r.Context(), logg, w, err)
}

func unavailable(name string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable")
}

func paginationParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}
