// Package melcloud implements a client for the MELCloud HVAC cloud service:
// session login, device enumeration, device state retrieval and the
// read-modify-write temperature set operation.
package melcloud

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

const (
	// ServerURL is the production MELCloud endpoint.
	ServerURL = "https://app.melcloud.com/Mitsubishi.Wifi.Client"

	appVersion       = "1.19.1.1"
	sessionKeyHeader = "X-MitsContextKey"
	defaultTimeout   = 30 * time.Second
)

// Client talks to the MELCloud API. It holds the session key obtained by Login
// and a cache of the devices found by the last successful ListDevices call.
//
// Login and ListDevices are assumed not to be called concurrently with
// themselves; all other methods are safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger

	lock       sync.RWMutex
	sessionKey string
	devices    []Device
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the http.Client used for all requests, e.g. to add
// an instrumented round-tripper.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBaseURL points the client at a different server. Used in tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// New creates a Client for the production MELCloud service.
func New(logger *slog.Logger, options ...Option) *Client {
	c := Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    ServerURL,
		logger:     logger,
	}
	for _, option := range options {
		option(&c)
	}
	return &c
}

type loginRequest struct {
	Email      string `json:"Email"`
	Password   string `json:"Password"`
	Language   int    `json:"Language"`
	AppVersion string `json:"AppVersion"`
	Persist    bool   `json:"Persist"`
}

type loginResponse struct {
	ErrorId      any    `json:"ErrorId"`
	ErrorMessage string `json:"ErrorMessage"`
	LoginData    struct {
		ContextKey string `json:"ContextKey"`
	} `json:"LoginData"`
}

// Login authenticates with the service and stores the returned session key.
// The session only transitions to authenticated on success; any failure leaves
// the previous session state untouched.
func (c *Client) Login(ctx context.Context, email, password string) error {
	body, err := json.Marshal(loginRequest{
		Email:      email,
		Password:   password,
		AppVersion: appVersion,
		Persist:    true,
	})
	if err != nil {
		return c.fail(newError(CategoryUnknown, "failed to encode login request: "+err.Error(), err))
	}

	var response loginResponse
	if apiErr := c.call(ctx, http.MethodPost, "/Login/ClientLogin", nil, body, "", &response); apiErr != nil {
		return c.fail(apiErr)
	}

	if response.ErrorId != nil {
		return c.fail(newError(CategoryAPI, "melcloud login failed: "+response.ErrorMessage, nil))
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	c.sessionKey = response.LoginData.ContextKey
	return nil
}

// LoggedIn reports whether a session key is held.
func (c *Client) LoggedIn() bool {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.sessionKey != ""
}

// ListDevices enumerates all devices on the account, flattening the returned
// building hierarchy. On success the device cache is replaced wholesale.
func (c *Client) ListDevices(ctx context.Context) ([]Device, error) {
	key, err := c.session()
	if err != nil {
		return nil, err
	}

	var buildings []building
	if apiErr := c.call(ctx, http.MethodGet, "/User/ListDevices", nil, nil, key, &buildings); apiErr != nil {
		return nil, c.fail(apiErr)
	}

	devices := flatten(buildings)

	c.lock.Lock()
	defer c.lock.Unlock()
	c.devices = devices
	return devices, nil
}

// GetDeviceByID looks up a device in the cache filled by the last successful
// ListDevices call. It performs no I/O.
func (c *Client) GetDeviceByID(id int) (Device, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	for _, device := range c.devices {
		if device.ID == id {
			return device, true
		}
	}
	return Device{}, false
}

// Devices returns a copy of the cached device list.
func (c *Client) Devices() []Device {
	c.lock.RLock()
	defer c.lock.RUnlock()
	devices := make([]Device, len(c.devices))
	copy(devices, c.devices)
	return devices
}

// GetDeviceState fetches the current telemetry document for a device.
func (c *Client) GetDeviceState(ctx context.Context, deviceID, buildingID int) (DeviceState, error) {
	key, err := c.session()
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("id", strconv.Itoa(deviceID))
	query.Set("buildingID", strconv.Itoa(buildingID))

	var state DeviceState
	if apiErr := c.call(ctx, http.MethodGet, "/Device/Get", query, nil, key, &state); apiErr != nil {
		return nil, c.fail(apiErr)
	}
	return state, nil
}

// SetDeviceTemperature sets the device's target temperature. The mutation
// endpoint requires the full state document, so the freshest state is read
// first and re-submitted with only the temperature fields overwritten; if the
// read fails, no write is attempted.
func (c *Client) SetDeviceTemperature(ctx context.Context, deviceID, buildingID int, targetTemperature float64) error {
	state, err := c.GetDeviceState(ctx, deviceID, buildingID)
	if err != nil {
		return err
	}

	state.setTargetTemperature(targetTemperature)
	state["DeviceID"] = float64(deviceID)
	state["BuildingID"] = float64(buildingID)

	body, err := json.Marshal(state)
	if err != nil {
		return c.fail(newError(CategoryUnknown, "failed to encode device state: "+err.Error(), err))
	}

	key, err := c.session()
	if err != nil {
		return err
	}
	if apiErr := c.call(ctx, http.MethodPost, "/Device/SetAta", nil, body, key, nil); apiErr != nil {
		return c.fail(apiErr)
	}
	return nil
}

// session returns the current session key, or ErrNotLoggedIn. The check is
// synchronous: no request goes out without a session.
func (c *Client) session() (string, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	if c.sessionKey == "" {
		return "", ErrNotLoggedIn
	}
	return c.sessionKey, nil
}

// call performs a single request/response exchange and decodes the JSON body
// into response (when non-nil). It returns a typed error for transport
// failures, non-2xx statuses and undecodable bodies.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body []byte, sessionKey string, response any) *Error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return newError(CategoryUnknown, "failed to create request: "+err.Error(), err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionKey != "" {
		req.Header.Set(sessionKeyHeader, sessionKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return statusError(resp.StatusCode)
	}

	if response == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err = json.NewDecoder(resp.Body).Decode(response); err != nil {
		return statusError(resp.StatusCode)
	}
	return nil
}

// fail logs the error before surfacing it. Auth precondition failures are
// never passed here: they signal a caller bug, not an operational problem.
func (c *Client) fail(err *Error) error {
	c.logger.Error(err.Message, slog.String("category", err.Category.String()), slog.Any("err", err.Err))
	return err
}
