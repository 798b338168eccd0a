package repository

import (
	"context"
	"fmt"
	"time"

	"ChainPilot/internal/domain/models"
	domrepo "ChainPilot/internal/domain/repository"
	xhttp "ChainPilot/pkg/http"
)

// MonitorAPI is the HTTP client for the wallet-monitor service. It backs the
// reputation cache and supplies cluster and token-safety lookups. These
// endpoints are collaborators: this client trusts their results as given.
type MonitorAPI struct {
	client    *xhttp.Client
	baseURL   string
	authToken string
}

// NewMonitorAPI creates a monitor API client.
func NewMonitorAPI(client *xhttp.Client, baseURL, authToken string) *MonitorAPI {
	return &MonitorAPI{client: client, baseURL: baseURL, authToken: authToken}
}

func (m *MonitorAPI) headers() map[string]string {
	if m.authToken == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + m.authToken}
}

type reputationResponse struct {
	Address         string  `json:"address"`
	Monitored       bool    `json:"monitored"`
	Blacklisted     bool    `json:"blacklisted"`
	ReputationScore float64 `json:"reputation_score"`
}

// GetReputation implements repository.WalletStore.
func (m *MonitorAPI) GetReputation(ctx context.Context, address string) (models.ReputationEntry, error) {
	var resp reputationResponse
	err := m.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     m.baseURL + "/v1/wallets/" + address + "/reputation",
		Headers: m.headers(),
	}, &resp)
	if err != nil {
		return models.ReputationEntry{}, fmt.Errorf("get reputation %s: %w", address, err)
	}
	return models.ReputationEntry{
		Address:         resp.Address,
		IsMonitored:     resp.Monitored,
		IsBlacklisted:   resp.Blacklisted,
		ReputationScore: resp.ReputationScore,
		CachedAt:        time.Now(),
	}, nil
}

type clusterResponse struct {
	ClusterID           string  `json:"cluster_id"`
	Leader              bool    `json:"leader"`
	AmplificationFactor float64 `json:"amplification_factor"`
}

// GetClusterInfo implements repository.ClusterService.
func (m *MonitorAPI) GetClusterInfo(ctx context.Context, address string) (models.ClusterInfo, error) {
	var resp clusterResponse
	err := m.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     m.baseURL + "/v1/wallets/" + address + "/cluster",
		Headers: m.headers(),
	}, &resp)
	if err != nil {
		return models.ClusterInfo{}, fmt.Errorf("get cluster %s: %w", address, err)
	}
	info := models.ClusterInfo{
		ClusterID:           resp.ClusterID,
		IsLeader:            resp.Leader,
		AmplificationFactor: resp.AmplificationFactor,
	}
	if info.AmplificationFactor < 1 {
		info.AmplificationFactor = 1
	}
	return info, nil
}

type safetyResponse struct {
	Safe   bool   `json:"safe"`
	Reason string `json:"reason"`
}

// Evaluate implements repository.TokenSafety.
func (m *MonitorAPI) Evaluate(ctx context.Context, token string) (models.TokenSafetyResult, error) {
	var resp safetyResponse
	err := m.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     m.baseURL + "/v1/tokens/" + token + "/safety",
		Headers: m.headers(),
	}, &resp)
	if err != nil {
		return models.TokenSafetyResult{}, fmt.Errorf("token safety %s: %w", token, err)
	}
	return models.TokenSafetyResult{Safe: resp.Safe, RejectReason: resp.Reason}, nil
}

var (
	_ domrepo.WalletStore    = (*MonitorAPI)(nil)
	_ domrepo.ClusterService = (*MonitorAPI)(nil)
	_ domrepo.TokenSafety    = (*MonitorAPI)(nil)
)
