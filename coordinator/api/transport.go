package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/agrifed/agrifed/coordinator"
	"github.com/agrifed/agrifed/pkg/api"
)

const svcName = "coordinator"

// MakeHandler wires the coordinator service into an HTTP handler.
func MakeHandler(svc coordinator.Service, logger *slog.Logger, instanceID string) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(apiutil.LoggingErrorEncoder(logger, api.EncodeError)),
	}

	mux.Route("/clients", func(r chi.Router) {
		r.Post("/", otelhttp.NewHandler(kithttp.NewServer(
			registerClientEndpoint(svc),
			decodeRegisterClientReq,
			api.EncodeResponse,
			opts...,
		), "register-client").ServeHTTP)

		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listClientsEndpoint(svc),
			decodeListReq,
			api.EncodeResponse,
			opts...,
		), "list-clients").ServeHTTP)

		r.Get("/{clientID}", otelhttp.NewHandler(kithttp.NewServer(
			getClientEndpoint(svc),
			decodeClientReq,
			api.EncodeResponse,
			opts...,
		), "get-client").ServeHTTP)

		r.Post("/{clientID}/heartbeat", otelhttp.NewHandler(kithttp.NewServer(
			heartbeatEndpoint(svc),
			decodeHeartbeatReq,
			api.EncodeResponse,
			opts...,
		), "heartbeat").ServeHTTP)
	})

	mux.Route("/rounds", func(r chi.Router) {
		r.Post("/open", otelhttp.NewHandler(kithttp.NewServer(
			openRoundEndpoint(svc),
			decodeEmptyReq,
			api.EncodeResponse,
			opts...,
		), "open-round").ServeHTTP)

		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listRoundsEndpoint(svc),
			decodeListReq,
			api.EncodeResponse,
			opts...,
		), "list-rounds").ServeHTTP)

		r.Get("/{roundID}", otelhttp.NewHandler(kithttp.NewServer(
			getRoundEndpoint(svc),
			decodeRoundReq,
			api.EncodeResponse,
			opts...,
		), "get-round").ServeHTTP)

		r.Post("/{roundID}/submissions", otelhttp.NewHandler(kithttp.NewServer(
			submitEndpoint(svc),
			decodeSubmitReq,
			api.EncodeResponse,
			opts...,
		), "submit").ServeHTTP)
	})

	mux.Route("/model", func(r chi.Router) {
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			globalModelEndpoint(svc),
			decodeEmptyReq,
			api.EncodeResponse,
			opts...,
		), "global-model").ServeHTTP)

		r.Get("/versions/{version}", otelhttp.NewHandler(kithttp.NewServer(
			modelVersionEndpoint(svc),
			decodeModelVersionReq,
			api.EncodeResponse,
			opts...,
		), "model-version").ServeHTTP)
	})

	mux.Get("/status", otelhttp.NewHandler(kithttp.NewServer(
		statusEndpoint(svc),
		decodeEmptyReq,
		api.EncodeResponse,
		opts...,
	), "status").ServeHTTP)

	mux.Get("/health", supermq.Health(svcName, instanceID))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func decodeRegisterClientReq(_ context.Context, r *http.Request) (any, error) {
	if err := checkContentType(r); err != nil {
		return nil, err
	}

	var req registerClientReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, apiutil.ErrValidation
	}

	return req, nil
}

func decodeHeartbeatReq(_ context.Context, r *http.Request) (any, error) {
	if err := checkContentType(r); err != nil {
		return nil, err
	}

	req := heartbeatReq{clientID: chi.URLParam(r, "clientID")}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, apiutil.ErrValidation
	}

	return req, nil
}

func decodeClientReq(_ context.Context, r *http.Request) (any, error) {
	return clientReq{clientID: chi.URLParam(r, "clientID")}, nil
}

func decodeRoundReq(_ context.Context, r *http.Request) (any, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "roundID"), 10, 64)
	if err != nil {
		return nil, apiutil.ErrInvalidIDFormat
	}

	return roundReq{roundID: id}, nil
}

func decodeSubmitReq(_ context.Context, r *http.Request) (any, error) {
	if err := checkContentType(r); err != nil {
		return nil, err
	}

	id, err := strconv.ParseUint(chi.URLParam(r, "roundID"), 10, 64)
	if err != nil {
		return nil, apiutil.ErrInvalidIDFormat
	}

	req := submitReq{roundID: id}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, apiutil.ErrValidation
	}

	return req, nil
}

func decodeModelVersionReq(_ context.Context, r *http.Request) (any, error) {
	version, err := strconv.ParseUint(chi.URLParam(r, "version"), 10, 64)
	if err != nil {
		return nil, apiutil.ErrInvalidIDFormat
	}

	return modelVersionReq{version: version}, nil
}

func decodeListReq(_ context.Context, r *http.Request) (any, error) {
	offset, err := apiutil.ReadNumQuery[uint64](r, api.OffsetKey, api.DefOffset)
	if err != nil {
		return nil, err
	}
	limit, err := apiutil.ReadNumQuery[uint64](r, api.LimitKey, api.DefLimit)
	if err != nil {
		return nil, err
	}

	return listReq{offset: offset, limit: limit}, nil
}

func decodeEmptyReq(_ context.Context, _ *http.Request) (any, error) {
	return nil, nil
}

func checkContentType(r *http.Request) error {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return apiutil.ErrUnsupportedContentType
	}

	return nil
}
