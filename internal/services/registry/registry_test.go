package registry

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/paddleduel/internal/dependencies/mocks"
	"github.com/mcoot/paddleduel/internal/model"
	"github.com/mcoot/paddleduel/internal/storage/memory"
	"github.com/mcoot/paddleduel/internal/testutil"
)

type RegistrySuite struct {
	suite.Suite
	storage  *memory.Storage
	clock    *mocks.MockClock
	registry *Registry
	ctx      context.Context
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.registry = New(s.storage, s.clock, DefaultConfig(), nil, testutil.NopLogger())
	s.ctx = context.Background()
}

// Validation tests

func (s *RegistrySuite) TestValidateUsername() {
	cases := []struct {
		name  string
		input any
		want  string
		ok    bool
	}{
		{"plain", "alice", "alice", true},
		{"trimmed", "  bob_99  ", "bob_99", true},
		{"hyphen", "a-b", "a-b", true},
		{"max length", strings.Repeat("x", 20), strings.Repeat("x", 20), true},
		{"nil", nil, "", false},
		{"not a string", 42, "", false},
		{"blank", "   ", "", false},
		{"too short after trim", " ab ", "", false},
		{"too long", strings.Repeat("x", 21), "", false},
		{"space inside", "al ice", "", false},
		{"punctuation", "alice!", "", false},
		{"unicode", "élodie", "", false},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			got, err := ValidateUsername(tc.input)
			if tc.ok {
				s.Require().NoError(err)
				s.Equal(tc.want, got)
			} else {
				s.ErrorIs(err, model.ErrValidation)
			}
		})
	}
}

// Register tests

func (s *RegistrySuite) TestRegisterCreatesProfile() {
	player, err := s.registry.Register(s.ctx, "conn-1", " alice ")
	s.Require().NoError(err)

	s.Equal(model.ConnectionID("conn-1"), player.ConnectionID)
	s.Equal("alice", player.Username)
	s.NotEmpty(player.PlayerID)

	profile, err := s.storage.GetProfileByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(player.PlayerID, profile.ID)
}

func (s *RegistrySuite) TestRegisterReusesProfileForSameUsername() {
	first, err := s.registry.Register(s.ctx, "conn-1", "alice")
	s.Require().NoError(err)

	s.clock.Advance(time.Minute)
	second, err := s.registry.Register(s.ctx, "conn-2", "alice")
	s.Require().NoError(err)

	s.Equal(first.PlayerID, second.PlayerID)

	profile, err := s.storage.GetProfileByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.True(profile.LastSeenAt.Equal(s.clock.Now()))
}

func (s *RegistrySuite) TestRegisterBindsConnection() {
	_, err := s.registry.Register(s.ctx, "conn-1", "alice")
	s.Require().NoError(err)

	player, err := s.registry.Get("conn-1")
	s.Require().NoError(err)
	s.Equal("alice", player.Username)
	s.Equal(1, s.registry.Count())
}

func (s *RegistrySuite) TestReRegisterReplacesBinding() {
	_, err := s.registry.Register(s.ctx, "conn-1", "alice")
	s.Require().NoError(err)
	_, err = s.registry.Register(s.ctx, "conn-1", "alicia")
	s.Require().NoError(err)

	player, err := s.registry.Get("conn-1")
	s.Require().NoError(err)
	s.Equal("alicia", player.Username)
	s.Equal(1, s.registry.Count())
}

func (s *RegistrySuite) TestInvalidUsernameDoesNotBind() {
	_, err := s.registry.Register(s.ctx, "conn-1", "x")
	s.ErrorIs(err, model.ErrValidation)

	_, err = s.registry.Get("conn-1")
	s.ErrorIs(err, model.ErrNotRegistered)
}

func (s *RegistrySuite) TestGetUnregistered() {
	_, err := s.registry.Get("nobody")
	s.ErrorIs(err, model.ErrNotRegistered)
}

func (s *RegistrySuite) TestUnregister() {
	_, err := s.registry.Register(s.ctx, "conn-1", "alice")
	s.Require().NoError(err)

	s.registry.Unregister("conn-1")

	_, err = s.registry.Get("conn-1")
	s.ErrorIs(err, model.ErrNotRegistered)
	s.Equal(0, s.registry.Count())
}

// Rate limit tests

func (s *RegistrySuite) TestFourthAttemptWithinWindowIsRateLimited() {
	for i := 0; i < 3; i++ {
		_, err := s.registry.Register(s.ctx, "conn-1", "no")
		s.ErrorIs(err, model.ErrValidation)
	}

	// Limit is checked before validation, so even a valid name is refused
	_, err := s.registry.Register(s.ctx, "conn-1", "alice")
	s.ErrorIs(err, model.ErrRateLimited)
}

func (s *RegistrySuite) TestRateLimitIsPerConnection() {
	for i := 0; i < 3; i++ {
		_, _ = s.registry.Register(s.ctx, "conn-1", "alice")
	}

	_, err := s.registry.Register(s.ctx, "conn-2", "bob")
	s.Require().NoError(err)
}

func (s *RegistrySuite) TestRateLimitWindowSlides() {
	for i := 0; i < 3; i++ {
		_, err := s.registry.Register(s.ctx, "conn-1", "alice")
		s.Require().NoError(err)
		s.clock.Advance(2 * time.Second)
	}

	// First attempt was at t=0; at t=6s all three are still inside the window
	_, err := s.registry.Register(s.ctx, "conn-1", "alice")
	s.ErrorIs(err, model.ErrRateLimited)

	// At t=10.001s the first attempt has left the window
	s.clock.Advance(4*time.Second + time.Millisecond)
	_, err = s.registry.Register(s.ctx, "conn-1", "alice")
	s.Require().NoError(err)
}

func (s *RegistrySuite) TestUnregisterResetsRateLimit() {
	for i := 0; i < 3; i++ {
		_, _ = s.registry.Register(s.ctx, "conn-1", "alice")
	}
	s.registry.Unregister("conn-1")

	_, err := s.registry.Register(s.ctx, "conn-1", "alice")
	s.Require().NoError(err)
}
