package middleware

import (
	"net/http"

	apperrors "github.com/balancepro/studio-server/internal/errors"
	"github.com/balancepro/studio-server/internal/httputil"
)

func writeError(w http.ResponseWriter, status int, message string) {
	httputil.WriteErrorWithStatus(w, status, apperrors.New(apperrors.ErrCodeValidation, message))
}
