package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"

	"github.com/agrifed/agrifed/coordinator"
	"github.com/agrifed/agrifed/pkg/fl"
	"github.com/agrifed/agrifed/pkg/modelstore"
	"github.com/agrifed/agrifed/pkg/storage"
)

const (
	OffsetKey = "offset"
	LimitKey  = "limit"
	DefOffset = 0
	DefLimit  = 100

	ContentType = "application/json"
)

func EncodeResponse(_ context.Context, w http.ResponseWriter, response any) error {
	if ar, ok := response.(supermq.Response); ok {
		for k, v := range ar.Headers() {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", ContentType)
		w.WriteHeader(ar.Code())

		if ar.Empty() {
			return nil
		}
	}

	return json.NewEncoder(w).Encode(response)
}

func EncodeError(_ context.Context, err error, w http.ResponseWriter) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(statusOf(err))

	body := map[string]string{
		"error":  err.Error(),
		"reason": ReasonOf(err),
	}
	if encErr := json.NewEncoder(w).Encode(body); encErr != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, apiutil.ErrValidation),
		errors.Is(err, apiutil.ErrMissingID),
		errors.Is(err, apiutil.ErrLimitSize),
		errors.Is(err, apiutil.ErrInvalidIDFormat),
		errors.Is(err, apiutil.ErrInvalidQueryParams),
		errors.Is(err, storage.ErrEmptyKey),
		errors.Is(err, fl.ErrUnnamedParam),
		errors.Is(err, fl.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, apiutil.ErrUnsupportedContentType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, coordinator.ErrNotRegistered),
		errors.Is(err, coordinator.ErrRoundNotActive),
		errors.Is(err, modelstore.ErrNoModel),
		errors.Is(err, modelstore.ErrVersionNotFound),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, coordinator.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, coordinator.ErrCapacity),
		errors.Is(err, coordinator.ErrStale),
		errors.Is(err, coordinator.ErrRoundInProgress):
		return http.StatusConflict
	case errors.Is(err, coordinator.ErrNotEnoughClients):
		return http.StatusPreconditionFailed
	case errors.Is(err, fl.ErrSchemaMismatch):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ReasonOf maps a rejection to its short machine-readable code.
func ReasonOf(err error) string {
	switch {
	case errors.Is(err, coordinator.ErrCapacity):
		return "Capacity"
	case errors.Is(err, coordinator.ErrNotRegistered):
		return "NotRegistered"
	case errors.Is(err, coordinator.ErrNotParticipant):
		return "NotParticipant"
	case errors.Is(err, coordinator.ErrStale):
		return "Stale"
	case errors.Is(err, coordinator.ErrRoundNotActive):
		return "RoundNotActive"
	case errors.Is(err, coordinator.ErrRoundInProgress):
		return "RoundInProgress"
	case errors.Is(err, coordinator.ErrNotEnoughClients):
		return "NotEnoughClients"
	case errors.Is(err, fl.ErrSchemaMismatch):
		return "SchemaMismatch"
	case errors.Is(err, fl.ErrEmptyInput):
		return "EmptyInput"
	case errors.Is(err, fl.ErrUnnamedParam):
		return "UnnamedParameters"
	case errors.Is(err, apiutil.ErrValidation),
		errors.Is(err, apiutil.ErrMissingID),
		errors.Is(err, apiutil.ErrLimitSize),
		errors.Is(err, apiutil.ErrInvalidIDFormat),
		errors.Is(err, apiutil.ErrInvalidQueryParams),
		errors.Is(err, apiutil.ErrUnsupportedContentType):
		return "Validation"
	default:
		return "Internal"
	}
}
