package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"interview-engine/internal/interview"
)

const (
	codeInvalidRequest = "invalid_request"
	codeUnauthorized   = "unauthorized"
	codeNotFound       = "not_found"
	codeFinished       = "session_finished"
	codeConflict       = "concurrent_update"
	codeUnknownFormat  = "unknown_format"
	codeInvalidFormat  = "invalid_format"
	codeGenerator      = "generator_error"
	codeStore          = "store_error"
	codeInternal       = "internal_error"
)

var errInvalidRequest = errors.New("некорректный запрос")

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiErrorResponse struct {
	Error apiError `json:"error"`
}

// mapError переводит ошибку движка в HTTP статус и код
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, errInvalidRequest):
		return http.StatusBadRequest, codeInvalidRequest
	case errors.Is(err, interview.ErrSessionNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, interview.ErrSessionAlreadyFinished),
		errors.Is(err, interview.ErrInterviewAlreadyFinished):
		return http.StatusConflict, codeFinished
	case errors.Is(err, interview.ErrConcurrentUpdate):
		return http.StatusConflict, codeConflict
	case errors.Is(err, interview.ErrUnknownFormat):
		return http.StatusUnprocessableEntity, codeUnknownFormat
	case errors.Is(err, interview.ErrInvalidFormat):
		return http.StatusUnprocessableEntity, codeInvalidFormat
	case errors.Is(err, interview.ErrGenerator):
		return http.StatusBadGateway, codeGenerator
	case errors.Is(err, interview.ErrStore):
		return http.StatusServiceUnavailable, codeStore
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, code := mapError(err)
	writeError(w, status, code, err.Error())
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiErrorResponse{Error: apiError{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSONBody читает ровно один JSON объект. Пустое тело допустимо, если allowEmpty.
func decodeJSONBody(r *http.Request, dst any, allowEmpty bool) error {
	if r.Body == nil {
		if allowEmpty {
			return nil
		}
		return fmt.Errorf("%w: тело запроса обязательно", errInvalidRequest)
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			return fmt.Errorf("%w: тело запроса больше %d байт", errInvalidRequest, maxBytesErr.Limit)
		case errors.Is(err, io.EOF):
			if allowEmpty {
				return nil
			}
			return fmt.Errorf("%w: тело запроса обязательно", errInvalidRequest)
		default:
			return fmt.Errorf("%w: некорректный JSON: %v", errInvalidRequest, err)
		}
	}

	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: тело должно содержать один JSON объект", errInvalidRequest)
	}
	return nil
}
