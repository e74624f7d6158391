package treasury

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client executes approved transfers against the ledger service.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type transferRequest struct {
	SourceAccount string            `json:"sourceAccount"`
	TargetID      string            `json:"targetId"`
	Amount        uint64            `json:"amount"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type transferResponse struct {
	Ref string `json:"ref"`
	Err string `json:"err,omitempty"`
}

func (c *Client) Execute(ctx context.Context, guildID, targetID string, amount uint64, metadata map[string]string) (string, error) {
	url := fmt.Sprintf("%s/v1/transfers", c.baseURL)

	payload := transferRequest{
		SourceAccount: ResolveAccount(guildID, metadata["group"]),
		TargetID:      targetID,
		Amount:        amount,
		Metadata:      metadata,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out transferResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ledger returned status %d", resp.StatusCode)
	}

	if resp.StatusCode != http.StatusCreated {
		if out.Err != "" {
			return "", fmt.Errorf("ledger: %s", out.Err)
		}
		return "", fmt.Errorf("ledger returned status %d", resp.StatusCode)
	}
	return out.Ref, nil
}
