package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/gateway-sim/internal/model"
)

// --- Request types ---

type LoginAppRequest struct {
	UserName  string `json:"userName"`
	Password  string `json:"password"`
	DeviceID  string `json:"deviceId"`
	AppID     string `json:"appId"`
	VerifyKey string `json:"verifyKey"`
}

type LoginKeyRequest struct {
	UserName string `json:"userName"`
	APIKey   string `json:"apiKey"`
}

type SearchAccountRequest struct {
	OnlyActiveAccounts bool `json:"onlyActiveAccounts"`
}

type SearchContractRequest struct {
	SearchText string `json:"searchText"`
	Live       bool   `json:"live"`
}

type SearchContractByIDRequest struct {
	ContractID string `json:"contractId"`
}

type ListAvailableContractRequest struct {
	Live bool `json:"live"`
}

type SearchOrderRequest struct {
	AccountID      int64      `json:"accountId"`
	StartTimestamp *time.Time `json:"startTimestamp"`
	EndTimestamp   *time.Time `json:"endTimestamp"`
}

type SearchOpenOrderRequest struct {
	AccountID int64 `json:"accountId"`
}

type PlaceOrderRequest struct {
	AccountID  int64            `json:"accountId"`
	ContractID string           `json:"contractId"`
	Type       model.OrderType  `json:"type"`
	Side       model.OrderSide  `json:"side"`
	Size       int              `json:"size"`
	LimitPrice *decimal.Decimal `json:"limitPrice"`
	StopPrice  *decimal.Decimal `json:"stopPrice"`
	CustomTag  string           `json:"customTag"`
}

type CancelOrderRequest struct {
	AccountID int64 `json:"accountId"`
	OrderID   int64 `json:"orderId"`
}

type ModifyOrderRequest struct {
	AccountID  int64            `json:"accountId"`
	OrderID    int64            `json:"orderId"`
	Size       *int             `json:"size"`
	LimitPrice *decimal.Decimal `json:"limitPrice"`
	StopPrice  *decimal.Decimal `json:"stopPrice"`
}

type SearchPositionRequest struct {
	AccountID int64 `json:"accountId"`
}

type ClosePositionRequest struct {
	AccountID  int64  `json:"accountId"`
	ContractID string `json:"contractId"`
}

type PartialClosePositionRequest struct {
	AccountID  int64  `json:"accountId"`
	ContractID string `json:"contractId"`
	Size       int    `json:"size"`
}

type SearchTradeRequest struct {
	AccountID      int64      `json:"accountId"`
	StartTimestamp *time.Time `json:"startTimestamp"`
	EndTimestamp   *time.Time `json:"endTimestamp"`
}

type RetrieveBarRequest struct {
	ContractID        string        `json:"contractId"`
	Live              bool          `json:"live"`
	StartTime         time.Time     `json:"startTime"`
	EndTime           time.Time     `json:"endTime"`
	Unit              model.BarUnit `json:"unit"`
	UnitNumber        int           `json:"unitNumber"`
	Limit             int           `json:"limit"`
	IncludePartialBar bool          `json:"includePartialBar"`
}

// --- Response types ---

// Result is the envelope shared by every response. Failed requests are
// answered with a bare Result; list payloads are always arrays on success.
type Result struct {
	Success      bool   `json:"success"`
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

type SearchAccountResponse struct {
	Result
	Accounts []model.Account `json:"accounts"`
}

type SearchContractResponse struct {
	Result
	Contracts []model.Contract `json:"contracts"`
}

type SearchContractByIDResponse struct {
	Result
	Contract *model.Contract `json:"contract,omitempty"`
}

type SearchOrderResponse struct {
	Result
	Orders []model.Order `json:"orders"`
}

type PlaceOrderResponse struct {
	Result
	OrderID int64 `json:"orderId,omitempty"`
}

type SearchPositionResponse struct {
	Result
	Positions []model.Position `json:"positions"`
}

type SearchTradeResponse struct {
	Result
	Trades []model.Trade `json:"trades"`
}

type RetrieveBarResponse struct {
	Result
	Bars []model.Bar `json:"bars"`
}

type LoginResponse struct {
	Result
	Token string `json:"token,omitempty"`
}

type ValidateResponse struct {
	Result
	NewToken string `json:"newToken,omitempty"`
}
