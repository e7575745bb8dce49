package sdk

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/agrifed/agrifed/client"
	"github.com/agrifed/agrifed/coordinator"
	"github.com/agrifed/agrifed/pkg/fl"
	"github.com/agrifed/agrifed/round"
)

const CTJSON string = "application/json"

// Registration is the payload for registering or refreshing a client.
type Registration struct {
	ClientID    string `json:"client_id"`
	Name        string `json:"name,omitempty"`
	Location    string `json:"location,omitempty"`
	DatasetSize uint64 `json:"dataset_size"`
	ModelType   string `json:"model_type,omitempty"`
}

// Heartbeat is the payload sent on every liveness poll.
type Heartbeat struct {
	Status       string `json:"status,omitempty"`
	ModelVersion uint64 `json:"model_version"`
}

// Update is one round's trained parameters.
type Update struct {
	ClientID    string             `json:"client_id"`
	Parameters  fl.Params          `json:"parameters"`
	DatasetSize uint64             `json:"dataset_size"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
}

// Error is a coordinator rejection decoded from the response body.
type Error struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
	Reason     string `json:"reason"`
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("coordinator rejected request (%s): %s", e.Reason, e.Message)
	}

	return fmt.Sprintf("unexpected response code %d: %s", e.StatusCode, e.Message)
}

type SDK interface {
	// Register creates a client record or refreshes an existing one.
	//
	// example:
	//  c, _ := sdk.Register(sdk.Registration{ClientID: "farm-12", DatasetSize: 150})
	//  fmt.Println(c)
	Register(reg Registration) (client.Client, error)

	// SendHeartbeat refreshes the client's liveness and returns the
	// coordinator's view of what the client should do next.
	//
	// example:
	//  poll, _ := sdk.SendHeartbeat("farm-12", sdk.Heartbeat{Status: "active"})
	//  fmt.Println(poll.IsParticipant)
	SendHeartbeat(clientID string, hb Heartbeat) (coordinator.Poll, error)

	// GetClient gets a client by id.
	GetClient(clientID string) (client.Client, error)

	// ListClients lists registered clients.
	ListClients(offset, limit uint64) (client.Page, error)

	// OpenRound asks the coordinator to open a round now instead of
	// waiting for the scheduler cadence.
	OpenRound() (round.Round, error)

	// GetRound gets a round by id.
	GetRound(roundID uint64) (round.Round, error)

	// ListRounds lists rounds, newest last.
	ListRounds(offset, limit uint64) (round.Page, error)

	// Submit uploads one round's trained parameters.
	//
	// example:
	//  err := sdk.Submit(3, sdk.Update{ClientID: "farm-12", Parameters: params, DatasetSize: 150})
	Submit(roundID uint64, update Update) error

	// GlobalModel fetches the current published model.
	GlobalModel() (fl.GlobalModel, error)

	// ModelVersion fetches one historical model version.
	ModelVersion(version uint64) (fl.GlobalModel, error)

	// Status fetches the coordinator summary.
	Status() (coordinator.Summary, error)
}

type agriSDK struct {
	coordinatorURL string
	client         *http.Client
}

type Config struct {
	CoordinatorURL  string
	TLSVerification bool
}

func NewSDK(cfg Config) SDK {
	return &agriSDK{
		coordinatorURL: cfg.CoordinatorURL,
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: !cfg.TLSVerification,
				},
			},
		},
	}
}

func (sdk *agriSDK) Register(reg Registration) (client.Client, error) {
	data, err := json.Marshal(reg)
	if err != nil {
		return client.Client{}, err
	}

	body, err := sdk.processRequest(http.MethodPost, sdk.coordinatorURL+"/clients", data, http.StatusCreated)
	if err != nil {
		return client.Client{}, err
	}

	var c client.Client
	if err := json.Unmarshal(body, &c); err != nil {
		return client.Client{}, err
	}

	return c, nil
}

func (sdk *agriSDK) SendHeartbeat(clientID string, hb Heartbeat) (coordinator.Poll, error) {
	data, err := json.Marshal(hb)
	if err != nil {
		return coordinator.Poll{}, err
	}

	url := fmt.Sprintf("%s/clients/%s/heartbeat", sdk.coordinatorURL, clientID)
	body, err := sdk.processRequest(http.MethodPost, url, data, http.StatusOK)
	if err != nil {
		return coordinator.Poll{}, err
	}

	var poll coordinator.Poll
	if err := json.Unmarshal(body, &poll); err != nil {
		return coordinator.Poll{}, err
	}

	return poll, nil
}

func (sdk *agriSDK) GetClient(clientID string) (client.Client, error) {
	url := fmt.Sprintf("%s/clients/%s", sdk.coordinatorURL, clientID)
	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return client.Client{}, err
	}

	var c client.Client
	if err := json.Unmarshal(body, &c); err != nil {
		return client.Client{}, err
	}

	return c, nil
}

func (sdk *agriSDK) ListClients(offset, limit uint64) (client.Page, error) {
	url := fmt.Sprintf("%s/clients?offset=%d&limit=%d", sdk.coordinatorURL, offset, limit)
	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return client.Page{}, err
	}

	var page client.Page
	if err := json.Unmarshal(body, &page); err != nil {
		return client.Page{}, err
	}

	return page, nil
}

func (sdk *agriSDK) OpenRound() (round.Round, error) {
	body, err := sdk.processRequest(http.MethodPost, sdk.coordinatorURL+"/rounds/open", nil, http.StatusCreated)
	if err != nil {
		return round.Round{}, err
	}

	var r round.Round
	if err := json.Unmarshal(body, &r); err != nil {
		return round.Round{}, err
	}

	return r, nil
}

func (sdk *agriSDK) GetRound(roundID uint64) (round.Round, error) {
	url := fmt.Sprintf("%s/rounds/%d", sdk.coordinatorURL, roundID)
	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return round.Round{}, err
	}

	var r round.Round
	if err := json.Unmarshal(body, &r); err != nil {
		return round.Round{}, err
	}

	return r, nil
}

func (sdk *agriSDK) ListRounds(offset, limit uint64) (round.Page, error) {
	url := fmt.Sprintf("%s/rounds?offset=%d&limit=%d", sdk.coordinatorURL, offset, limit)
	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return round.Page{}, err
	}

	var page round.Page
	if err := json.Unmarshal(body, &page); err != nil {
		return round.Page{}, err
	}

	return page, nil
}

func (sdk *agriSDK) Submit(roundID uint64, update Update) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/rounds/%d/submissions", sdk.coordinatorURL, roundID)
	if _, err := sdk.processRequest(http.MethodPost, url, data, http.StatusAccepted); err != nil {
		return err
	}

	return nil
}

func (sdk *agriSDK) GlobalModel() (fl.GlobalModel, error) {
	body, err := sdk.processRequest(http.MethodGet, sdk.coordinatorURL+"/model", nil, http.StatusOK)
	if err != nil {
		return fl.GlobalModel{}, err
	}

	var model fl.GlobalModel
	if err := json.Unmarshal(body, &model); err != nil {
		return fl.GlobalModel{}, err
	}

	return model, nil
}

func (sdk *agriSDK) ModelVersion(version uint64) (fl.GlobalModel, error) {
	url := fmt.Sprintf("%s/model/versions/%d", sdk.coordinatorURL, version)
	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return fl.GlobalModel{}, err
	}

	var model fl.GlobalModel
	if err := json.Unmarshal(body, &model); err != nil {
		return fl.GlobalModel{}, err
	}

	return model, nil
}

func (sdk *agriSDK) Status() (coordinator.Summary, error) {
	body, err := sdk.processRequest(http.MethodGet, sdk.coordinatorURL+"/status", nil, http.StatusOK)
	if err != nil {
		return coordinator.Summary{}, err
	}

	var summary coordinator.Summary
	if err := json.Unmarshal(body, &summary); err != nil {
		return coordinator.Summary{}, err
	}

	return summary, nil
}

func (sdk *agriSDK) processRequest(method, reqURL string, data []byte, expectedRespCode int) ([]byte, error) {
	req, err := http.NewRequest(method, reqURL, bytes.NewReader(data))
	if err != nil {
		return []byte{}, err
	}

	req.Header.Add("Content-Type", CTJSON)

	resp, err := sdk.client.Do(req)
	if err != nil {
		return []byte{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return []byte{}, err
	}

	if resp.StatusCode != expectedRespCode {
		sdkErr := &Error{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(body, sdkErr); err != nil || sdkErr.Message == "" {
			sdkErr.Message = string(body)
		}

		return []byte{}, sdkErr
	}

	return body, nil
}
