package api

import (
	"net/http"

	"github.com/absmach/supermq"

	"github.com/agrifed/agrifed/client"
	"github.com/agrifed/agrifed/coordinator"
	"github.com/agrifed/agrifed/pkg/fl"
	"github.com/agrifed/agrifed/round"
)

var (
	_ supermq.Response = (*clientRes)(nil)
	_ supermq.Response = (*pollRes)(nil)
	_ supermq.Response = (*listClientsRes)(nil)
	_ supermq.Response = (*roundRes)(nil)
	_ supermq.Response = (*listRoundsRes)(nil)
	_ supermq.Response = (*submitRes)(nil)
	_ supermq.Response = (*modelRes)(nil)
	_ supermq.Response = (*statusRes)(nil)
)

type clientRes struct {
	client.Client
	created bool
}

func (res clientRes) Code() int {
	if res.created {
		return http.StatusCreated
	}

	return http.StatusOK
}

func (res clientRes) Headers() map[string]string {
	return map[string]string{}
}

func (res clientRes) Empty() bool {
	return false
}

type pollRes struct {
	coordinator.Poll
}

func (res pollRes) Code() int {
	return http.StatusOK
}

func (res pollRes) Headers() map[string]string {
	return map[string]string{}
}

func (res pollRes) Empty() bool {
	return false
}

type listClientsRes struct {
	client.Page
}

func (res listClientsRes) Code() int {
	return http.StatusOK
}

func (res listClientsRes) Headers() map[string]string {
	return map[string]string{}
}

func (res listClientsRes) Empty() bool {
	return false
}

type roundRes struct {
	round.Round
	created bool
}

func (res roundRes) Code() int {
	if res.created {
		return http.StatusCreated
	}

	return http.StatusOK
}

func (res roundRes) Headers() map[string]string {
	return map[string]string{}
}

func (res roundRes) Empty() bool {
	return false
}

type listRoundsRes struct {
	round.Page
}

func (res listRoundsRes) Code() int {
	return http.StatusOK
}

func (res listRoundsRes) Headers() map[string]string {
	return map[string]string{}
}

func (res listRoundsRes) Empty() bool {
	return false
}

type submitRes struct {
	Accepted bool   `json:"accepted"`
	RoundID  uint64 `json:"round_id"`
}

func (res submitRes) Code() int {
	return http.StatusAccepted
}

func (res submitRes) Headers() map[string]string {
	return map[string]string{}
}

func (res submitRes) Empty() bool {
	return false
}

type modelRes struct {
	fl.GlobalModel
}

func (res modelRes) Code() int {
	return http.StatusOK
}

func (res modelRes) Headers() map[string]string {
	return map[string]string{}
}

func (res modelRes) Empty() bool {
	return false
}

type statusRes struct {
	coordinator.Summary
}

func (res statusRes) Code() int {
	return http.StatusOK
}

func (res statusRes) Headers() map[string]string {
	return map[string]string{}
}

func (res statusRes) Empty() bool {
	return false
}
