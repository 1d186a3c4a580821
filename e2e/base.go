package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"

	"chatwire/client"
)

// BaseChatSuite drives sync stores against a deployed gateway.
type BaseChatSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseChatSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerURL == "" {
		s.T().Skip("E2E_SERVER_URL is not set, no gateway to run against")
	}
}

// NewUser registers a fresh identity and returns its sync store. Random
// emails keep reruns against a persistent server independent of each other.
func (s *BaseChatSuite) NewUser(t *testing.T, displayName string) *client.SyncStore {
	// 1. Print a colorized header for the sign-up step in logs
	header := fmt.Sprintf("  ====== %s joins ======", displayName)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)

	store := client.NewSyncStore(s.Config.ServerURL, logs.GetLoggerFromString("error"))
	email := fmt.Sprintf("%s-%s@e2e.local", strings.ToLower(displayName), uuid.NewString()[:8])

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.Require().NoError(store.Register(ctx, displayName, email, "ComplexPass123!"))
	t.Cleanup(store.Disconnect)
	return store
}

// Dump logs a payload as indented JSON if E2E_DEBUG_JSON is enabled
func (s *BaseChatSuite) Dump(label string, payload any) {
	if !s.Config.DebugJSON {
		return
	}
	raw, err := json.MarshalIndent(payload, "", "  ")
	s.Require().NoError(err)
	s.T().Logf("%s:\n%s", label, raw)
}
