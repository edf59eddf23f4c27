package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/4abishai/secura/internal/domain"
)

// DefaultHTTPTimeout bounds directory requests when no client is supplied.
const DefaultHTTPTimeout = 10 * time.Second

// userKey is the directory's JSON representation of a user's public key.
type userKey struct {
	Username  domain.Username     `json:"username"`
	PublicKey domain.X25519Public `json:"publicKey"`
}

// HTTP is the directory client: it maps usernames to public identity keys.
type HTTP struct {
	Base string
	HTTP *http.Client
}

// NewHTTP returns a directory client for base (for example
// "http://localhost:8080").
func NewHTTP(base string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &HTTP{
		Base: strings.TrimRight(base, "/"),
		HTTP: &http.Client{Timeout: timeout},
	}
}

// FetchPublicKey returns username's current public key. A 404 maps to
// domain.ErrUnknownPeer.
func (c *HTTP) FetchPublicKey(ctx context.Context, username domain.Username) (domain.X25519Public, error) {
	var out userKey
	if err := c.getJSON(ctx, "/users/"+url.PathEscape(username.String()), &out); err != nil {
		return domain.X25519Public{}, err
	}
	if out.PublicKey.IsZero() {
		return domain.X25519Public{}, fmt.Errorf("directory: empty key for %s", username)
	}
	return out.PublicKey, nil
}

// PublishPublicKey stores pub as username's current key.
func (c *HTTP) PublishPublicKey(ctx context.Context, username domain.Username, pub domain.X25519Public) error {
	return c.put(ctx, "/users/"+url.PathEscape(username.String()), userKey{Username: username, PublicKey: pub})
}

func (c *HTTP) put(ctx context.Context, path string, in any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.Base+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("directory put %s: %s", path, resp.Status)
	}
	return nil
}

func (c *HTTP) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", domain.ErrUnknownPeer, strings.TrimPrefix(path, "/users/"))
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("directory get %s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Compile-time assertion that HTTP implements domain.Directory.
var _ domain.Directory = (*HTTP)(nil)
