package repository

import (
	"context"
	"fmt"
	"time"

	"ChainPilot/internal/domain/models"
	domrepo "ChainPilot/internal/domain/repository"
	xhttp "ChainPilot/pkg/http"
)

// LiveExecutor executes swaps through the swap-engine HTTP API.
type LiveExecutor struct {
	client  *xhttp.Client
	baseURL string
}

// NewLiveExecutor creates a live trade executor.
func NewLiveExecutor(client *xhttp.Client, baseURL string) domrepo.TradeExecutor {
	return &LiveExecutor{client: client, baseURL: baseURL}
}

type swapRequest struct {
	Side        string  `json:"side"`
	Token       string  `json:"token"`
	AmountSOL   float64 `json:"amount_sol"`
	SlippageBps int     `json:"slippage_bps"`
}

type swapResponse struct {
	TxSignature string  `json:"tx_signature"`
	FillPrice   float64 `json:"fill_price"`
	FilledAt    int64   `json:"filled_at"` // ms
}

type quoteResponse struct {
	Price float64 `json:"price"`
}

func (e *LiveExecutor) ExecuteBuy(ctx context.Context, token string, amountSOL float64, slippageBps int) (models.Fill, error) {
	return e.swap(ctx, "buy", token, amountSOL, slippageBps)
}

func (e *LiveExecutor) ExecuteSell(ctx context.Context, token string, amountSOL float64, slippageBps int) (models.Fill, error) {
	return e.swap(ctx, "sell", token, amountSOL, slippageBps)
}

func (e *LiveExecutor) swap(ctx context.Context, side, token string, amountSOL float64, slippageBps int) (models.Fill, error) {
	var resp swapResponse
	err := e.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    e.baseURL + "/v1/swap",
		Body: swapRequest{
			Side:        side,
			Token:       token,
			AmountSOL:   amountSOL,
			SlippageBps: slippageBps,
		},
	}, &resp)
	if err != nil {
		return models.Fill{}, fmt.Errorf("swap %s %s: %w", side, token, err)
	}
	return models.Fill{
		TxSignature: resp.TxSignature,
		Token:       token,
		AmountSOL:   amountSOL,
		FillPrice:   resp.FillPrice,
		FilledAt:    time.UnixMilli(resp.FilledAt),
	}, nil
}

// Quote fetches an indicative route price from the swap engine.
func (e *LiveExecutor) Quote(ctx context.Context, token string, amountSOL float64) (float64, error) {
	var resp quoteResponse
	err := e.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    e.baseURL + "/v1/quote",
		QueryParams: map[string][]string{
			"token":      {token},
			"amount_sol": {fmt.Sprintf("%f", amountSOL)},
		},
	}, &resp)
	if err != nil {
		return 0, fmt.Errorf("quote %s: %w", token, err)
	}
	return resp.Price, nil
}
