package http

import (
	"net/http"
	"strings"

	"github.com/cartify/cartify/pkg/httputil"
)

// ContentTypeJSON rejects write requests whose body is not JSON.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hasBody := r.ContentLength > 0 || r.Method == http.MethodPost
		if hasBody && !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
				Error: &httputil.ErrorResponse{
					Code:    "UNSUPPORTED_MEDIA_TYPE",
					Message: "Content-Type must be application/json",
				},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
