package yandex

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Morwran/yagpt"

	"voice-relay/internal/domain"
)

// Model is the only model the yagpt client requests.
const Model = yagpt.YaModelLite

const (
	// IAM tokens live up to 12h; Yandex asks callers to renew them hourly.
	tokenRefreshInterval = time.Hour
	tokenExpiryMargin    = 5 * time.Minute
)

type mintFunc func(ctx context.Context) (*yagpt.IamTokenResponse, error)

// Client speaks the YandexGPT completion protocol.
type Client struct {
	ya   yagpt.YaGPTFace
	mint mintFunc
	now  func() time.Time

	mu        sync.Mutex
	token     string
	refreshAt time.Time
}

// NewClient binds the client to folderID and exchanges the OAuth token for a
// first IAM token. Later tokens are minted as the current one ages out.
func NewClient(oauthToken, folderID string) (*Client, error) {
	if strings.TrimSpace(oauthToken) == "" {
		return nil, errors.New("yandex: oauth token must not be empty")
	}
	if strings.TrimSpace(folderID) == "" {
		return nil, errors.New("yandex: folder id must not be empty")
	}

	iam, err := yagpt.NewYaIam(oauthToken)
	if err != nil {
		return nil, fmt.Errorf("yandex: init iam: %w", err)
	}
	ya, err := yagpt.NewYagpt(folderID)
	if err != nil {
		return nil, fmt.Errorf("yandex: init yagpt: %w", err)
	}
	c := newClient(ya, iam.CreateWithCtx)
	if _, err := c.iamToken(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

func newClient(ya yagpt.YaGPTFace, mint mintFunc) *Client {
	return &Client{ya: ya, mint: mint, now: time.Now}
}

// Complete returns the first alternative produced for the transcript.
func (c *Client) Complete(ctx context.Context, system string, turns []domain.Turn) (string, error) {
	token, err := c.iamToken(ctx)
	if err != nil {
		return "", err
	}
	resp, err := c.ya.CompletionWithCtx(ctx, token, toMessages(system, turns))
	if err != nil {
		return "", fmt.Errorf("yandex: completion failed: %w", err)
	}
	if resp == nil || len(resp.Alternatives) == 0 {
		return "", fmt.Errorf("yandex: empty response: %w", domain.ErrMalformedCompletion)
	}
	text := resp.Alternatives[0].Message.Content
	if text == "" {
		return "", fmt.Errorf("yandex: empty alternative: %w", domain.ErrMalformedCompletion)
	}
	return text, nil
}

// iamToken returns the cached IAM token, minting a new one once the cached
// token is due for renewal.
func (c *Client) iamToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.token != "" && now.Before(c.refreshAt) {
		return c.token, nil
	}
	resp, err := c.mint(ctx)
	if err != nil {
		return "", fmt.Errorf("yandex: create iam token: %w", err)
	}
	if resp == nil || resp.IamToken == "" {
		return "", errors.New("yandex: create iam token: empty token")
	}
	c.token = resp.IamToken
	c.refreshAt = refreshDeadline(now, resp.ExpiresAt)
	return c.token, nil
}

func refreshDeadline(now, expiresAt time.Time) time.Time {
	at := now.Add(tokenRefreshInterval)
	if expiresAt.IsZero() {
		return at
	}
	if limit := expiresAt.Add(-tokenExpiryMargin); limit.Before(at) {
		return limit
	}
	return at
}

func toMessages(system string, turns []domain.Turn) []yagpt.Message {
	msgs := make([]yagpt.Message, 0, len(turns)+1)
	if system != "" {
		msgs = append(msgs, yagpt.Message{Role: "system", Content: system})
	}
	for _, t := range turns {
		switch t.Role {
		case domain.RoleUser:
			msgs = append(msgs, yagpt.Message{Role: "user", Content: t.Content})
		case domain.RoleAssistant:
			msgs = append(msgs, yagpt.Message{Role: "assistant", Content: t.Content})
		}
	}
	return msgs
}
