package core

import (
	"strconv"
	"strings"
	"time"
)

// ChallengeTTL is how long an issued challenge stays acceptable. The message
// text below states the same duration.
const ChallengeTTL = 15 * time.Minute

// ChallengeParams are the inputs of a challenge message
type ChallengeParams struct {
	Banner    string
	Domain    string
	UserID    string
	PublicKey string
	Nonce     string
	IssuedAt  time.Time
}

// BuildChallengeMessage renders the text a wallet signs. The layout is fixed so
// the exact bytes can be matched again at verification.
func BuildChallengeMessage(p ChallengeParams) string {
	lines := []string{
		p.Banner,
		"",
		"Please sign this message to verify wallet ownership.",
		"This signature will not trigger any blockchain transaction or cost any gas fees.",
		"",
		"Domain: " + p.Domain,
		"User ID: " + p.UserID,
		"Wallet: " + p.PublicKey,
		"Nonce: " + p.Nonce,
		"Timestamp: " + strconv.FormatInt(p.IssuedAt.UnixMilli(), 10),
		"",
		"This request will expire in 15 minutes.",
	}
	return strings.Join(lines, "\n")
}
