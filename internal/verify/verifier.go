// Package verify consults the external bot-challenge oracle before a first
// admission. The core only learns "allowed" vs "blocked"; when the oracle is
// unreachable the service fails open upstream.
package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/datecast/backend/internal/domain"
)

// Verifier is the pass/fail oracle consulted before create — never before
// revise, which is gated by the update token alone.
type Verifier interface {
	// Verify returns nil when the submission is allowed, an error wrapping
	// domain.ErrValidation when the challenge was rejected, and an error
	// wrapping domain.ErrVerificationUnavailable when the oracle could not
	// be reached (callers fail open on that one).
	Verify(ctx context.Context, challengeToken, remoteIP string) error
}

// AllowAll admits every submission. Used when no challenge endpoint is
// configured (development, tests).
type AllowAll struct{}

func (AllowAll) Verify(context.Context, string, string) error { return nil }

// ChallengeVerifier posts challenge tokens to a Turnstile-compatible
// siteverify endpoint over HTTP with a bounded timeout.
type ChallengeVerifier struct {
	endpoint string
	secret   string
	client   *http.Client
}

// NewChallengeVerifier constructs a verifier against the given siteverify
// endpoint. timeout bounds the whole verification round trip; an expired
// timeout surfaces as domain.ErrVerificationUnavailable, not as a rejection.
func NewChallengeVerifier(endpoint, secret string, timeout time.Duration) *ChallengeVerifier {
	return &ChallengeVerifier{
		endpoint: endpoint,
		secret:   secret,
		client:   &http.Client{Timeout: timeout},
	}
}

// siteverifyResponse is the subset of the oracle's response body we care about.
type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify posts the token and submitter IP to the oracle.
func (v *ChallengeVerifier) Verify(ctx context.Context, challengeToken, remoteIP string) error {
	form := url.Values{
		"secret":   {v.secret},
		"response": {challengeToken},
		"remoteip": {remoteIP},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("verify.ChallengeVerifier.Verify: %w: %v", domain.ErrVerificationUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("verify.ChallengeVerifier.Verify: %w: %v", domain.ErrVerificationUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("verify.ChallengeVerifier.Verify: %w: oracle returned status %d", domain.ErrVerificationUnavailable, resp.StatusCode)
	}

	var body siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("verify.ChallengeVerifier.Verify: %w: decode response: %v", domain.ErrVerificationUnavailable, err)
	}

	if !body.Success {
		return fmt.Errorf("verify.ChallengeVerifier.Verify: %w", domain.Validationf("challenge rejected (%s)", strings.Join(body.ErrorCodes, ",")))
	}
	return nil
}
