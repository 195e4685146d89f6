package api

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

const (
	apiKeyHeader = "X-API-Key"
	callerCtxKey = "caller"
)

var (
	errUnauthenticated = errors.New("unauthenticated")
	errCallerMismatch  = errors.New("caller does not match api key")
)

// credential binds the digest of an API key to the holder it acts for.
type credential struct {
	digest [sha256.Size]byte
	holder common.Address
}

func newCredentials(keys map[string]common.Address) []credential {
	creds := make([]credential, 0, len(keys))
	for key, holder := range keys {
		if key == "" {
			continue
		}
		creds = append(creds, credential{digest: sha256.Sum256([]byte(key)), holder: holder})
	}
	return creds
}

// holderFor compares against every credential so timing does not reveal
// which key matched.
func (s *Server) holderFor(key string) (common.Address, bool) {
	digest := sha256.Sum256([]byte(key))
	var holder common.Address
	found := false
	for _, cred := range s.credentials {
		if subtle.ConstantTimeCompare(digest[:], cred.digest[:]) == 1 {
			holder, found = cred.holder, true
		}
	}
	return holder, found
}

// authenticate guards mutating routes. A valid X-API-Key sets the caller;
// requests without one are rejected unless the server runs unauthenticated.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(apiKeyHeader))
		if key == "" {
			if s.cfg.AllowUnauthenticated {
				c.Next()
				return
			}
			writeError(c, fmt.Errorf("missing %s header: %w", apiKeyHeader, errUnauthenticated))
			c.Abort()
			return
		}

		holder, ok := s.holderFor(key)
		if !ok {
			writeError(c, fmt.Errorf("unknown api key: %w", errUnauthenticated))
			c.Abort()
			return
		}
		c.Set(callerCtxKey, holder)
		c.Next()
	}
}

// resolveCaller returns the account a request acts for. With an API key the
// optional body caller must name the key's holder.
func resolveCaller(c *gin.Context, claimed string) (common.Address, error) {
	claimed = strings.TrimSpace(claimed)
	if value, ok := c.Get(callerCtxKey); ok {
		holder := value.(common.Address)
		if claimed == "" {
			return holder, nil
		}
		address, err := parseAddress("caller", claimed)
		if err != nil {
			return common.Address{}, err
		}
		if address != holder {
			return common.Address{}, fmt.Errorf("caller %s, key holder %s: %w", address.Hex(), holder.Hex(), errCallerMismatch)
		}
		return holder, nil
	}
	if claimed == "" {
		return common.Address{}, fmt.Errorf("caller is required: %w", errBadRequest)
	}
	return parseAddress("caller", claimed)
}
