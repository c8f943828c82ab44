package e2e

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
)

type BaseHTTPSuite struct {
	suite.Suite
	Config Config
	client *http.Client
	token  string
}

// envelope mirrors the API answer, Data stays raw for the caller to decode.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SetupSuite loads the environment configuration and logs in as the bootstrapped admin
func (s *BaseHTTPSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerAddr == "" {
		s.T().Skip("E2E_SERVER_ADDR is not set")
	}
	s.client = &http.Client{Timeout: 10 * time.Second}

	var login struct {
		Token string `json:"token"`
	}
	status := s.Call(s.T(), "Login as admin", http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"email": s.Config.AdminEmail, "password": s.Config.AdminPassword}, &login)
	s.Require().Equal(http.StatusOK, status)
	s.Require().NotEmpty(login.Token)
	s.token = login.Token
}

// Authenticated calls the API with the admin token.
func (s *BaseHTTPSuite) Authenticated(name, method, path string, body, out any) int {
	return s.Call(s.T(), name, method, path, s.token, body, out)
}

// Call performs one request with logging, colours and JSON debugging, out receives the data field.
func (s *BaseHTTPSuite) Call(t *testing.T, name, method, path, token string, body, out any) int {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		s.Require().NoError(err)
	}
	req, err := http.NewRequest(method, "http://"+s.Config.ServerAddr+path, bytes.NewReader(payload))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	res, err := s.client.Do(req)
	s.Require().NoError(err, "request to %s failed", path)
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	s.Require().NoError(err)

	logBuilder := strings.Builder{}
	fmt.Fprintf(&logBuilder, "HTTP %s %s [%d] in %v", method, path, res.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		fmt.Fprintf(&logBuilder, "\nREQUEST:\n%s\nRESPONSE:\n%s", payload, raw)
	}
	t.Log(logBuilder.String())

	if out != nil && len(raw) > 0 {
		var env envelope
		s.Require().NoError(json.Unmarshal(raw, &env))
		if env.Success && len(env.Data) > 0 {
			s.Require().NoError(json.Unmarshal(env.Data, out))
		}
	}
	return res.StatusCode
}
