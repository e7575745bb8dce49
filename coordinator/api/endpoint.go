package api

import (
	"context"
	"time"

	"github.com/go-kit/kit/endpoint"

	"github.com/agrifed/agrifed/client"
	"github.com/agrifed/agrifed/coordinator"
	"github.com/agrifed/agrifed/pkg/fl"
)

func registerClientEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(registerClientReq)
		if err := req.validate(); err != nil {
			return nil, err
		}

		c, err := svc.RegisterClient(ctx, client.Client{
			ID:          req.ClientID,
			Name:        req.Name,
			Location:    req.Location,
			DatasetSize: req.DatasetSize,
			ModelType:   req.ModelType,
		})
		if err != nil {
			return nil, err
		}

		return clientRes{Client: c, created: true}, nil
	}
}

func heartbeatEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(heartbeatReq)
		if err := req.validate(); err != nil {
			return nil, err
		}

		status := client.Active
		if req.Status != "" {
			status, _ = client.ParseStatus(req.Status)
		}

		poll, err := svc.Heartbeat(ctx, req.clientID, status, req.ModelVersion)
		if err != nil {
			return nil, err
		}

		return pollRes{Poll: poll}, nil
	}
}

func getClientEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(clientReq)
		if err := req.validate(); err != nil {
			return nil, err
		}

		c, err := svc.GetClient(ctx, req.clientID)
		if err != nil {
			return nil, err
		}

		return clientRes{Client: c}, nil
	}
}

func listClientsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(listReq)
		if err := req.validate(); err != nil {
			return nil, err
		}

		page, err := svc.ListClients(ctx, req.offset, req.limit)
		if err != nil {
			return nil, err
		}

		return listClientsRes{Page: page}, nil
	}
}

func openRoundEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		r, err := svc.OpenRound(ctx)
		if err != nil {
			return nil, err
		}

		return roundRes{Round: r, created: true}, nil
	}
}

func getRoundEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(roundReq)
		if err := req.validate(); err != nil {
			return nil, err
		}

		r, err := svc.GetRound(ctx, req.roundID)
		if err != nil {
			return nil, err
		}

		return roundRes{Round: r}, nil
	}
}

func listRoundsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(listReq)
		if err := req.validate(); err != nil {
			return nil, err
		}

		page, err := svc.ListRounds(ctx, req.offset, req.limit)
		if err != nil {
			return nil, err
		}

		return listRoundsRes{Page: page}, nil
	}
}

func submitEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(submitReq)
		if err := req.validate(); err != nil {
			return nil, err
		}

		sub := fl.Submission{
			RoundID:     req.roundID,
			ClientID:    req.ClientID,
			Params:      req.params,
			DatasetSize: req.DatasetSize,
			Metrics:     req.Metrics,
			ReceivedAt:  time.Now(),
		}
		if err := svc.Submit(ctx, sub); err != nil {
			return nil, err
		}

		return submitRes{Accepted: true, RoundID: req.roundID}, nil
	}
}

func globalModelEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		model, err := svc.GlobalModel(ctx)
		if err != nil {
			return nil, err
		}

		return modelRes{GlobalModel: model}, nil
	}
}

func modelVersionEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(modelVersionReq)
		if err := req.validate(); err != nil {
			return nil, err
		}

		model, err := svc.ModelVersion(ctx, req.version)
		if err != nil {
			return nil, err
		}

		return modelRes{GlobalModel: model}, nil
	}
}

func statusEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		summary, err := svc.Status(ctx)
		if err != nil {
			return nil, err
		}

		return statusRes{Summary: summary}, nil
	}
}
