package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pratik-mahalle/assetwatch/internal/pkg/errors"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/logger"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/utils"
)

// maxBodyBytes caps JSON request bodies
const maxBodyBytes = 1 << 20

// decodeJSON reads a single JSON object from the request body, rejecting unknown fields
func decodeJSON(r *http.Request, dst interface{}) *errors.AppError {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return errors.BadRequest("Request body is required")
		}
		return errors.BadRequest(fmt.Sprintf("Invalid request body: %v", err))
	}
	return nil
}

// writeServiceError maps a service error to its HTTP response, logging unexpected ones
func writeServiceError(w http.ResponseWriter, log *logger.Logger, err error, fallback string) {
	appErr := errors.As(err, fallback)
	if appErr.StatusCode >= http.StatusInternalServerError {
		log.ErrorWithErr(err, fallback)
	}
	utils.WriteError(w, appErr)
}
