package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"learningpulse/pkg/domain"
)

// DefaultRemoteURL is the public DummyJSON API.
const DefaultRemoteURL = "https://dummyjson.com"

// RemoteClient logs in against a DummyJSON-compatible auth endpoint.
type RemoteClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewRemoteClient(baseURL string, timeout time.Duration) *RemoteClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultRemoteURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type remoteLoginResponse struct {
	ID          any    `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	AccessToken string `json:"accessToken"`
	Token       string `json:"token"`
}

func (c *RemoteClient) Login(ctx context.Context, username, password string) (domain.User, error) {
	payload, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return domain.User{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(payload))
	if err != nil {
		return domain.User{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnauthorized:
		return domain.User{}, ErrInvalidCredentials
	case resp.StatusCode >= 500:
		return domain.User{}, fmt.Errorf("%w: %s", ErrNetworkFailure, resp.Status)
	case resp.StatusCode >= 400:
		return domain.User{}, fmt.Errorf("%w: %s", ErrInvalidResponse, resp.Status)
	}

	var body remoteLoginResponse
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	token := body.AccessToken
	if token == "" {
		token = body.Token
	}
	if token == "" {
		return domain.User{}, ErrInvalidResponse
	}
	id := body.Username
	switch v := body.ID.(type) {
	case json.Number:
		id = v.String()
	case string:
		if v != "" {
			id = v
		}
	}
	return domain.User{
		ID:       id,
		Name:     strings.TrimSpace(body.FirstName + " " + body.LastName),
		Email:    body.Email,
		Username: body.Username,
		Token:    token,
	}, nil
}
