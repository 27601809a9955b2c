package melcloud_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/clambin/melcloud-monitor/internal/melcloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "foo@example.com"
	testPassword = "some-password"
	testKey      = "context-key-1234"
)

// melcloudServer fakes the MELCloud API endpoints used by the client.
type melcloudServer struct {
	requests []string
	state    map[string]any
	lastSet  map[string]any
}

func (s *melcloudServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)

	switch r.URL.Path {
	case "/Login/ClientLogin":
		var body struct {
			Email    string `json:"Email"`
			Password string `json:"Password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Email != testEmail || body.Password != testPassword {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"ErrorId":      1,
				"ErrorMessage": "Incorrect email or password",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ErrorId":   nil,
			"LoginData": map[string]any{"ContextKey": testKey},
		})
	case "/User/ListDevices":
		if !s.authenticated(w, r) {
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{
				"ID": 123,
				"Structure": map[string]any{
					"Devices": []map[string]any{
						{"DeviceID": 456, "DeviceName": "Test Device"},
					},
					"Floors": []map[string]any{
						{
							"Areas": []map[string]any{
								// same device listed again under a floor area
								{"Devices": []map[string]any{{"DeviceID": 456, "DeviceName": "Test Device"}}},
							},
						},
					},
				},
			},
		})
	case "/Device/Get":
		if !s.authenticated(w, r) {
			return
		}
		_ = json.NewEncoder(w).Encode(s.state)
	case "/Device/SetAta":
		if !s.authenticated(w, r) {
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&s.lastSet)
		w.WriteHeader(http.StatusOK)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *melcloudServer) authenticated(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("X-MitsContextKey") != testKey {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func newTestClient(t *testing.T) (*melcloud.Client, *melcloudServer) {
	t.Helper()
	server := melcloudServer{
		state: map[string]any{
			"DeviceID":        456.0,
			"Power":           true,
			"RoomTemperature": 19.5,
			"SetTemperature":  20.0,
			"EffectiveFlags":  0.0,
			"WeatherForecast": "sunny", // a field the client does not know
		},
	}
	ts := httptest.NewServer(&server)
	t.Cleanup(ts.Close)

	client := melcloud.New(slog.New(slog.DiscardHandler), melcloud.WithBaseURL(ts.URL))
	return client, &server
}

func login(t *testing.T, client *melcloud.Client) {
	t.Helper()
	require.NoError(t, client.Login(t.Context(), testEmail, testPassword))
}

func TestClient_Login(t *testing.T) {
	client, _ := newTestClient(t)

	assert.False(t, client.LoggedIn())
	require.NoError(t, client.Login(t.Context(), testEmail, testPassword))
	assert.True(t, client.LoggedIn())
}

func TestClient_Login_rejected(t *testing.T) {
	client, _ := newTestClient(t)

	err := client.Login(t.Context(), testEmail, "wrong-password")
	require.Error(t, err)
	assert.Equal(t, "melcloud login failed: Incorrect email or password", err.Error())

	var clientErr *melcloud.Error
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, melcloud.CategoryAPI, clientErr.Category)
	assert.False(t, client.LoggedIn())
}

func TestClient_Login_serverError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(ts.Close)

	client := melcloud.New(slog.New(slog.DiscardHandler), melcloud.WithBaseURL(ts.URL))
	err := client.Login(t.Context(), testEmail, testPassword)
	require.Error(t, err)
	assert.Equal(t, "API error: 500 Internal Server Error", err.Error())
	assert.False(t, client.LoggedIn())
}

func TestClient_Login_transportError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()

	client := melcloud.New(slog.New(slog.DiscardHandler), melcloud.WithBaseURL(ts.URL))
	err := client.Login(t.Context(), testEmail, testPassword)
	require.Error(t, err)

	var clientErr *melcloud.Error
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, melcloud.CategoryNetwork, clientErr.Category)
	assert.Contains(t, err.Error(), "API request error: ")
}

func TestClient_notLoggedIn(t *testing.T) {
	var requests atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
	}))
	t.Cleanup(ts.Close)

	client := melcloud.New(slog.New(slog.DiscardHandler), melcloud.WithBaseURL(ts.URL))

	_, err := client.ListDevices(t.Context())
	assert.ErrorIs(t, err, melcloud.ErrNotLoggedIn)

	_, err = client.GetDeviceState(t.Context(), 456, 123)
	assert.ErrorIs(t, err, melcloud.ErrNotLoggedIn)

	err = client.SetDeviceTemperature(t.Context(), 456, 123, 21)
	assert.ErrorIs(t, err, melcloud.ErrNotLoggedIn)

	assert.Equal(t, "Not logged in", err.Error())
	assert.Zero(t, requests.Load(), "no request may be issued without a session")
}

func TestClient_ListDevices(t *testing.T) {
	client, _ := newTestClient(t)
	login(t, client)

	devices, err := client.ListDevices(t.Context())
	require.NoError(t, err)
	require.Len(t, devices, 1, "duplicate floor/area entries must be dropped")
	assert.Equal(t, melcloud.Device{ID: 456, Name: "Test Device", BuildingID: 123}, devices[0])
}

func TestClient_GetDeviceByID(t *testing.T) {
	client, _ := newTestClient(t)
	login(t, client)

	_, found := client.GetDeviceByID(456)
	assert.False(t, found, "cache is empty before the first enumeration")

	_, err := client.ListDevices(t.Context())
	require.NoError(t, err)

	device, found := client.GetDeviceByID(456)
	require.True(t, found)
	assert.Equal(t, "Test Device", device.Name)
	assert.Equal(t, 123, device.BuildingID)

	_, found = client.GetDeviceByID(999)
	assert.False(t, found)
}

func TestClient_GetDeviceState(t *testing.T) {
	client, _ := newTestClient(t)
	login(t, client)

	state, err := client.GetDeviceState(t.Context(), 456, 123)
	require.NoError(t, err)

	room, ok := state.RoomTemperature()
	require.True(t, ok)
	assert.Equal(t, 19.5, room)
	target, ok := state.TargetTemperature()
	require.True(t, ok)
	assert.Equal(t, 20.0, target)
	assert.True(t, state.Power())
	assert.Equal(t, 456, state.DeviceID())
}

func TestClient_GetDeviceState_serverError(t *testing.T) {
	// login works, but the state endpoint is down
	client := newFailingClient(t, nil)

	_, err := client.GetDeviceState(t.Context(), 456, 123)
	require.Error(t, err)
	assert.Equal(t, "API error: 500 Internal Server Error", err.Error())
}

func TestClient_SetDeviceTemperature(t *testing.T) {
	client, server := newTestClient(t)
	login(t, client)

	require.NoError(t, client.SetDeviceTemperature(t.Context(), 456, 123, 21.5))

	// exactly one read followed by one write
	require.Equal(t, []string{
		"POST /Login/ClientLogin",
		"GET /Device/Get",
		"POST /Device/SetAta",
	}, server.requests)

	require.NotNil(t, server.lastSet)
	assert.Equal(t, 21.5, server.lastSet["SetTemperature"])
	assert.Equal(t, true, server.lastSet["HasPendingCommand"])
	flags, ok := server.lastSet["EffectiveFlags"].(float64)
	require.True(t, ok)
	assert.NotZero(t, int64(flags)&0x04, "target temperature flag must be set")
	// the full document is re-submitted, including fields the client doesn't understand
	assert.Equal(t, "sunny", server.lastSet["WeatherForecast"])
	assert.Equal(t, 19.5, server.lastSet["RoomTemperature"])
}

func TestClient_SetDeviceTemperature_readFails(t *testing.T) {
	var posts atomic.Int32
	client := newFailingClient(t, &posts)

	err := client.SetDeviceTemperature(t.Context(), 456, 123, 21.5)
	require.Error(t, err)
	assert.Equal(t, "API error: 500 Internal Server Error", err.Error())
	assert.Zero(t, posts.Load(), "the write must not be attempted when the read fails")
}

// newFailingClient returns a logged-in client whose server fails every device
// endpoint with a 500. posts, when non-nil, counts POST requests outside the
// login endpoint.
func newFailingClient(t *testing.T, posts *atomic.Int32) *melcloud.Client {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/Login/ClientLogin" {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"ErrorId":   nil,
				"LoginData": map[string]any{"ContextKey": testKey},
			})
			return
		}
		if posts != nil && r.Method == http.MethodPost {
			posts.Add(1)
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(ts.Close)

	client := melcloud.New(slog.New(slog.DiscardHandler), melcloud.WithBaseURL(ts.URL))
	require.NoError(t, client.Login(t.Context(), testEmail, testPassword))
	return client
}
