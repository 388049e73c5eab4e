package push

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"lchat/logger"
	"lchat/tools/errs"
)

const fcmScope = "https://www.googleapis.com/auth/firebase.messaging"

// ServiceAccount is the subset of a Google service account file the client
// needs to mint OAuth access tokens.
type ServiceAccount struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

func LoadServiceAccount(path string) (*ServiceAccount, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read service account")
	}
	var sa ServiceAccount
	if err := json.Unmarshal(raw, &sa); err != nil {
		return nil, errors.Wrap(err, "parse service account")
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return nil, errors.New("service account missing client_email or private_key")
	}
	return &sa, nil
}

// Client sends data messages through the FCM HTTP v1 API. Access tokens are
// minted from a signed RS256 assertion and cached until shortly before
// expiry; a 401 from the send endpoint forces one refresh and retry.
type Client struct {
	http     *http.Client
	sendURL  string
	tokenURL string
	email    string
	key      *rsa.PrivateKey

	mu    sync.Mutex
	token string
	exp   time.Time
}

func NewClient(sa *ServiceAccount, sendURL, tokenURL string) (*Client, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(sa.PrivateKey))
	if err != nil {
		return nil, errors.Wrap(err, "parse service account key")
	}
	return &Client{
		http:     &http.Client{Timeout: 15 * time.Second},
		sendURL:  sendURL,
		tokenURL: tokenURL,
		email:    sa.ClientEmail,
		key:      key,
	}, nil
}

// Send pushes one data message, splitting the body across several FCM
// messages when it exceeds the payload cap.
func (c *Client) Send(ctx context.Context, deviceToken, msgType, title string, body any, messageID string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "marshal push body")
	}
	for _, part := range SplitPayload(payload, messageID) {
		data := map[string]string{
			"type":       msgType,
			"title":      title,
			"messageId":  part.MessageID,
			"partNumber": strconv.Itoa(part.PartNumber),
			"totalParts": strconv.Itoa(part.TotalParts),
			"data":       part.Data,
		}
		if err := c.sendOne(ctx, deviceToken, data); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) sendOne(ctx context.Context, deviceToken string, data map[string]string) error {
	status, err := c.post(ctx, deviceToken, data, false)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		logger.Info("fcm access token rejected, refreshing")
		status, err = c.post(ctx, deviceToken, data, true)
		if err != nil {
			return err
		}
	}
	if status != http.StatusOK {
		return errs.ErrPushTransport.WrapMsg("status " + strconv.Itoa(status))
	}
	return nil
}

func (c *Client) post(ctx context.Context, deviceToken string, data map[string]string, forceRefresh bool) (int, error) {
	access, err := c.accessToken(ctx, forceRefresh)
	if err != nil {
		return 0, err
	}
	msg := map[string]any{
		"message": map[string]any{
			"token":   deviceToken,
			"data":    data,
			"android": map[string]any{"priority": "high"},
		},
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return 0, errors.Wrap(err, "marshal fcm message")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sendURL, bytes.NewReader(raw))
	if err != nil {
		return 0, errors.Wrap(err, "build fcm request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+access)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "fcm request")
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, nil
}

// accessToken returns a cached token, minting a fresh one when missing,
// near expiry, or when force is set.
func (c *Client) accessToken(ctx context.Context, force bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !force && c.token != "" && time.Now().Before(c.exp.Add(-time.Minute)) {
		return c.token, nil
	}

	now := time.Now()
	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   c.email,
		"scope": fcmScope,
		"aud":   c.tokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}).SignedString(c.key)
	if err != nil {
		return "", errors.Wrap(err, "sign oauth assertion")
	}

	form := url.Values{
		"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Wrap(err, "build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "token request")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", errs.ErrPushAuth.WrapMsg("status " + strconv.Itoa(resp.StatusCode))
	}
	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "decode token response")
	}
	if out.AccessToken == "" {
		return "", errors.New("empty access token")
	}
	c.token = out.AccessToken
	c.exp = now.Add(time.Duration(out.ExpiresIn) * time.Second)
	return c.token, nil
}
