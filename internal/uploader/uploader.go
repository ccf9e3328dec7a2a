// Package uploader is the HTTP client for the analysis service: it
// submits a scan result, authenticates with the configured bearer
// token, and classifies failures as retryable or fatal.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/fossas/broker/domain"
	"github.com/fossas/broker/internal/brokererr"
	"github.com/fossas/broker/internal/secret"
)

// Metadata identifies the submitter and target for an upload, on top
// of the scanned reference itself. Broker identifies itself as the
// submitter, distinct from the analyzer CLI.
type Metadata struct {
	IntegrationID string
	Reference     domain.Reference
	Team          string
	Title         string
}

// Uploader submits analysis artifacts to the FOSSA endpoint.
type Uploader struct {
	endpoint        string
	integrationKey  secret.String
	http            *http.Client
	maxElapsedTime  time.Duration
	initialInterval time.Duration
}

// New returns an Uploader authenticated with integrationKey against
// endpoint.
func New(endpoint string, integrationKey secret.String) *Uploader {
	return &Uploader{
		endpoint:        strings.TrimRight(endpoint, "/"),
		integrationKey:  integrationKey,
		http:            &http.Client{Timeout: 30 * time.Second},
		maxElapsedTime:  2 * time.Minute,
		initialInterval: 2 * time.Second,
	}
}

// Upload submits artifact for meta, retrying on a transport-classified
// error with exponential backoff and jitter up to a capped elapsed
// time. It returns the final classified error if every attempt fails.
func (u *Uploader) Upload(ctx context.Context, meta Metadata, artifact domain.AnalysisArtifact) error {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = u.initialInterval
	expBackoff.MaxElapsedTime = u.maxElapsedTime

	var lastErr error
	op := func() error {
		err := u.attempt(ctx, meta, artifact)
		if err == nil {
			return nil
		}
		lastErr = err
		if brokererr.Is(err, brokererr.KindTransport) {
			return err // retryable: backoff.Retry will call op again
		}
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(op, backoff.WithContext(expBackoff, ctx)); err != nil {
		if lastErr != nil {
			return lastErr
		}
		return err
	}
	return nil
}

type uploadRequest struct {
	IntegrationID string `json:"integration_id"`
	Kind          string `json:"kind"`
	Name          string `json:"name"`
	Revision      string `json:"revision"`
	Team          string `json:"team,omitempty"`
	Title         string `json:"title,omitempty"`
	Artifact      []byte `json:"artifact"`
	Submitter     string `json:"submitter"`
}

func (u *Uploader) attempt(ctx context.Context, meta Metadata, artifact domain.AnalysisArtifact) error {
	body, err := json.Marshal(uploadRequest{
		IntegrationID: meta.IntegrationID,
		Kind:          string(meta.Reference.Kind),
		Name:          meta.Reference.Name,
		Revision:      meta.Reference.Revision,
		Team:          meta.Team,
		Title:         meta.Title,
		Artifact:      artifact.Raw,
		Submitter:     "broker",
	})
	if err != nil {
		return brokererr.New(brokererr.KindStorage, "uploader.encode", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint+"/api/scans", bytes.NewReader(body))
	if err != nil {
		return brokererr.New(brokererr.KindTransport, "uploader.build_request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+u.integrationKey.Reveal())

	resp, err := u.http.Do(req)
	if err != nil {
		return brokererr.New(brokererr.KindTransport, "uploader.request", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return classifyStatus(resp.StatusCode, respBody)
}

// classifyStatus maps a response status to a failure kind: 5xx and
// connect/timeout are retryable; 401/403/422 and other 4xx are fatal.
func classifyStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	msg := fmt.Errorf("analysis service returned %d: %s", status, string(body))
	switch {
	case status >= 500:
		return brokererr.New(brokererr.KindTransport, "uploader.status", msg)
	case status == 401 || status == 403 || status == 422:
		return brokererr.New(brokererr.KindAuth, "uploader.status", msg)
	default:
		return brokererr.New(brokererr.KindFatal, "uploader.status", msg)
	}
}
