package mcpserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turbopuffer/turbogrep/internal/search"
)

func TestNewServer_RejectsNilOrchestrator(t *testing.T) {
	_, err := NewServer(nil, nil)
	assert.Error(t, err)
}

func TestNewServer_NilLoggerDefaultsToSlogDefault(t *testing.T) {
	srv, err := NewServer(&search.Orchestrator{}, nil)
	require.NoError(t, err)
	require.NotNil(t, srv.logger)
}

func TestHandleSearchCode_EmptyQueryRejected(t *testing.T) {
	srv, err := NewServer(&search.Orchestrator{}, nil)
	require.NoError(t, err)

	_, _, err = srv.handleSearchCode(context.Background(), nil, SearchCodeInput{})
	assert.Error(t, err)
}

func TestHandleSearchCode_RejectsUnresolvableDirectory(t *testing.T) {
	srv, err := NewServer(&search.Orchestrator{}, nil)
	require.NoError(t, err)

	// project.NamespaceAndDir fails on a directory that doesn't exist,
	// short-circuiting before the call ever reaches the orchestrator's
	// (here unconfigured) Synchronizer.
	_, _, err = srv.handleSearchCode(context.Background(), nil, SearchCodeInput{
		Query:     "hello",
		Directory: t.TempDir() + "/does-not-exist",
	})
	assert.Error(t, err)
}
