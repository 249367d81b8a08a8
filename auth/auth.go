package auth

import (
	"context"
	"net/http"
)

type Authenticator interface {
	GetHTTPClient(ctx context.Context) (*http.Client, error)
}

type Config struct {
	CredentialsPath string
	Scopes          []string
	// Subject impersonates a Workspace user through domain-wide delegation.
	Subject string
}
