package ports

import (
	"time"

	"github.com/layer-3/walletlink/core"
)

// Tokenizer converts between callers and bearer access tokens
type Tokenizer interface {
	CallerToAccessToken(caller core.Caller, ttl time.Duration) (string, error)
	AccessTokenToCaller(token string) (*core.Caller, error)
}
