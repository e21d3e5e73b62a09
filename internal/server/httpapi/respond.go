package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/akarpov91/vaultd/internal/common"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeError maps service errors to HTTP status codes. Internal details are
// never sent to the client; the sentinel's message is.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := common.ErrInternal.Error()

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			status = m.status
			message = m.err.Error()
			break
		}
	}

	writeJSON(w, status, errorResponse{Error: message})
}

var errorMappings = []struct {
	err    error
	status int
}{
	{common.ErrNotFound, http.StatusNotFound},
	{common.ErrConflict, http.StatusConflict},
	{common.ErrValidation, http.StatusBadRequest},
	{common.ErrInvalidState, http.StatusBadRequest},
	{common.ErrMalformedToken, http.StatusBadRequest},
	{common.ErrMissingClaims, http.StatusBadRequest},
	{common.ErrTokenExpired, http.StatusUnauthorized},
	{common.ErrInvalidToken, http.StatusUnauthorized},
	{common.ErrRefreshTokenExpired, http.StatusUnauthorized},
	{common.ErrUnauthorized, http.StatusUnauthorized},
	{common.ErrTokenExchange, http.StatusUnauthorized},
	{common.ErrIDTokenValidation, http.StatusUnauthorized},
	{common.ErrUpstreamTimeout, http.StatusGatewayTimeout},
}
