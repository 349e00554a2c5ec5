package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driving"
)

// TokenBorrower is the part of driving.ConnectionService a token source needs.
type TokenBorrower interface {
	BorrowAccessToken(ctx context.Context, userID string, platform domain.Platform) (*driving.BorrowedToken, error)
}

// borrowedTokenSource lends tokens for one user and platform.
type borrowedTokenSource struct {
	ctx      context.Context
	borrower TokenBorrower
	userID   string
	platform domain.Platform
}

// NewTokenSource returns an oauth2.TokenSource for API clients built on
// x/oauth2. Tokens are reused until shortly before expiry, then borrowed
// again, which refreshes the connection when needed.
func NewTokenSource(ctx context.Context, borrower TokenBorrower, userID string, platform domain.Platform) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, &borrowedTokenSource{
		ctx:      ctx,
		borrower: borrower,
		userID:   userID,
		platform: platform,
	})
}

// Token implements oauth2.TokenSource.
func (s *borrowedTokenSource) Token() (*oauth2.Token, error) {
	borrowed, err := s.borrower.BorrowAccessToken(s.ctx, s.userID, s.platform)
	if err != nil {
		return nil, fmt.Errorf("borrow %s token: %w", s.platform, err)
	}

	tok := &oauth2.Token{
		AccessToken: borrowed.AccessToken,
		TokenType:   borrowed.TokenType,
	}
	if borrowed.ExpiresAt != nil {
		tok.Expiry = *borrowed.ExpiresAt
	}
	return tok, nil
}
