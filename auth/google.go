package auth

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
)

// ServiceAccountAuthenticator signs requests with a service-account key.
// No user interaction or token cache is involved.
type ServiceAccountAuthenticator struct {
	config *jwt.Config
}

func NewServiceAccountAuthenticator(cfg Config) (*ServiceAccountAuthenticator, error) {
	b, err := os.ReadFile(cfg.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials: %w", err)
	}

	config, err := google.JWTConfigFromJSON(b, cfg.Scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service account credentials: %w", err)
	}
	if cfg.Subject != "" {
		config.Subject = cfg.Subject
	}

	return &ServiceAccountAuthenticator{config: config}, nil
}

func (s *ServiceAccountAuthenticator) GetHTTPClient(ctx context.Context) (*http.Client, error) {
	return oauth2.NewClient(ctx, s.config.TokenSource(ctx)), nil
}

// Email is the service account identity, useful when sharing the Drive
// folder with it.
func (s *ServiceAccountAuthenticator) Email() string {
	return s.config.Email
}
