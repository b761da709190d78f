package service_registry

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingService struct {
	name     string
	log      *[]string
	startErr error
	stopErr  error
}

func (s *recordingService) Start() error {
	if s.startErr != nil {
		return s.startErr
	}
	*s.log = append(*s.log, "start "+s.name)
	return nil
}

func (s *recordingService) Stop() error {
	*s.log = append(*s.log, "stop "+s.name)
	return s.stopErr
}

// TestServiceRegistry_Order tests start in registration order and stop in reverse.
func TestServiceRegistry_Order(t *testing.T) {
	var log []string
	sr := NewServiceRegistry(zerolog.Nop())
	sr.RegisterService("store", &recordingService{name: "store", log: &log})
	sr.RegisterService("hub", &recordingService{name: "hub", log: &log})
	sr.RegisterService("hub", &recordingService{name: "duplicate", log: &log})

	assert.Equal(t, []string{"store", "hub"}, sr.Services())
	require.NoError(t, sr.StartServices())
	require.NoError(t, sr.StopServices())
	assert.Equal(t, []string{"start store", "start hub", "stop hub", "stop store"}, log)
}

// TestServiceRegistry_StartRollback tests that started services are stopped when a later one fails.
func TestServiceRegistry_StartRollback(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	sr := NewServiceRegistry(zerolog.Nop())
	sr.RegisterService("a", &recordingService{name: "a", log: &log})
	sr.RegisterService("b", &recordingService{name: "b", log: &log})
	sr.RegisterService("c", &recordingService{name: "c", log: &log, startErr: boom})

	err := sr.StartServices()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, log)
	assert.NoError(t, sr.StopServices())
}

// TestServiceRegistry_StopErrors tests that stop failures are joined.
func TestServiceRegistry_StopErrors(t *testing.T) {
	var log []string
	first, second := errors.New("first"), errors.New("second")
	sr := NewServiceRegistry(zerolog.Nop())
	sr.RegisterService("a", &recordingService{name: "a", log: &log, stopErr: first})
	sr.RegisterService("b", &recordingService{name: "b", log: &log, stopErr: second})

	require.NoError(t, sr.StartServices())
	err := sr.StopServices()
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
}

// TestServiceRegistry_RegisterServices tests that disabled definitions are skipped and constructor errors surface.
func TestServiceRegistry_RegisterServices(t *testing.T) {
	var log []string
	sr := NewServiceRegistry(zerolog.Nop())
	err := sr.RegisterServices([]Definition{
		{Name: "a", Enabled: true, Constructor: func() (Service, error) { return &recordingService{name: "a", log: &log}, nil }},
		{Name: "b", Enabled: false, Constructor: func() (Service, error) { t.Fatal("disabled constructor called"); return nil, nil }},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, sr.Services())

	err = sr.RegisterServices([]Definition{
		{Name: "c", Enabled: true, Constructor: func() (Service, error) { return nil, errors.New("bad config") }},
	})
	assert.EqualError(t, err, "failed to create c service: bad config")
}
