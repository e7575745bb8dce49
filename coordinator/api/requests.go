package api

import (
	apiutil "github.com/absmach/supermq/api/http/util"

	"github.com/agrifed/agrifed/client"
	"github.com/agrifed/agrifed/pkg/fl"
)

type registerClientReq struct {
	ClientID    string `json:"client_id"`
	Name        string `json:"name"`
	Location    string `json:"location"`
	DatasetSize uint64 `json:"dataset_size"`
	ModelType   string `json:"model_type"`
}

func (req registerClientReq) validate() error {
	if req.ClientID == "" {
		return apiutil.ErrMissingID
	}
	if req.DatasetSize == 0 {
		return apiutil.ErrValidation
	}

	return nil
}

type heartbeatReq struct {
	clientID     string
	Status       string `json:"status"`
	ModelVersion uint64 `json:"model_version"`
}

func (req heartbeatReq) validate() error {
	if req.clientID == "" {
		return apiutil.ErrMissingID
	}
	if req.Status != "" {
		if _, ok := client.ParseStatus(req.Status); !ok {
			return apiutil.ErrValidation
		}
	}

	return nil
}

type clientReq struct {
	clientID string
}

func (req clientReq) validate() error {
	if req.clientID == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type roundReq struct {
	roundID uint64
}

func (req roundReq) validate() error {
	if req.roundID == 0 {
		return apiutil.ErrMissingID
	}

	return nil
}

type listReq struct {
	offset uint64
	limit  uint64
}

func (req listReq) validate() error {
	if req.limit == 0 || req.limit > 1000 {
		return apiutil.ErrLimitSize
	}

	return nil
}

type submitReq struct {
	roundID     uint64
	ClientID    string             `json:"client_id"`
	Parameters  map[string]any     `json:"parameters"`
	DatasetSize uint64             `json:"dataset_size"`
	Metrics     map[string]float64 `json:"metrics"`

	params fl.Params
}

func (req *submitReq) validate() error {
	if req.ClientID == "" {
		return apiutil.ErrMissingID
	}
	if req.roundID == 0 {
		return apiutil.ErrMissingID
	}

	params, err := fl.ParseParams(req.Parameters)
	if err != nil {
		return err
	}
	req.params = params

	return nil
}

type modelVersionReq struct {
	version uint64
}

func (req modelVersionReq) validate() error {
	if req.version == 0 {
		return apiutil.ErrMissingID
	}

	return nil
}
