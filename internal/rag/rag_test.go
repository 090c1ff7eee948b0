// ABOUTME: Tests for the knowledge augmenter covering search formatting and failure paths
// ABOUTME: Runs against a fake pool leaser and fake transport session

package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/toolgate/internal/config"
	"github.com/2389/toolgate/internal/errkind"
	"github.com/2389/toolgate/internal/pool"
	"github.com/2389/toolgate/internal/transport"
)

type fakeSearchSession struct {
	result   string
	callErr  error
	lastTool string
	lastArgs map[string]any
}

func (f *fakeSearchSession) Initialize(ctx context.Context) error { return nil }

func (f *fakeSearchSession) ListTools(ctx context.Context) ([]transport.ToolDef, error) {
	return nil, nil
}

func (f *fakeSearchSession) Call(ctx context.Context, tool string, args map[string]any) (string, error) {
	f.lastTool = tool
	f.lastArgs = args
	return f.result, f.callErr
}

func (f *fakeSearchSession) Close() error { return nil }

type fakeLeaser struct {
	sess       *fakeSearchSession
	leaseErr   error
	returned   bool
	returnWith error
}

func (f *fakeLeaser) Lease(ctx context.Context, server string) (*pool.Session, error) {
	if f.leaseErr != nil {
		return nil, f.leaseErr
	}
	return &pool.Session{ID: "s1", Server: server, Transport: f.sess}, nil
}

func (f *fakeLeaser) Return(server string, sess *pool.Session, callErr error) {
	f.returned = true
	f.returnWith = callErr
}

func testSettings() config.AugmenterSettings {
	return config.AugmenterSettings{
		Enabled:             true,
		Server:              "rag-knowledge-base",
		Tool:                "search_knowledge",
		MaxResults:          3,
		SimilarityThreshold: 0.7,
	}
}

func TestRetrieveFormatsResults(t *testing.T) {
	leaser := &fakeLeaser{sess: &fakeSearchSession{
		result: `{"success":true,"results":[
			{"document_title":"Setup Guide","content":"Install the binary first.","similarity_score":0.91},
			{"document_title":"FAQ","content":"Restart fixes most things.","similarity_score":0.74}
		]}`,
	}}
	a := NewKnowledgeAugmenter(leaser, testSettings(), nil)

	got, err := a.Retrieve(context.Background(), "how do I set this up")
	require.NoError(t, err)
	assert.Contains(t, got, "[Setup Guide] (similarity 0.91)")
	assert.Contains(t, got, "Install the binary first.")
	assert.Contains(t, got, "[FAQ] (similarity 0.74)")
	assert.True(t, leaser.returned)
	assert.NoError(t, leaser.returnWith)

	assert.Equal(t, "search_knowledge", leaser.sess.lastTool)
	assert.Equal(t, "semantic", leaser.sess.lastArgs["search_type"])
	assert.Equal(t, 3, leaser.sess.lastArgs["max_results"])
	assert.Equal(t, 0.7, leaser.sess.lastArgs["similarity_threshold"])
}

func TestRetrieveTruncatesLongSnippets(t *testing.T) {
	long := make([]byte, 800)
	for i := range long {
		long[i] = 'x'
	}
	leaser := &fakeLeaser{sess: &fakeSearchSession{
		result: `{"success":true,"results":[{"document_title":"Long","content":"` + string(long) + `","similarity_score":0.8}]}`,
	}}
	a := NewKnowledgeAugmenter(leaser, testSettings(), nil)

	got, err := a.Retrieve(context.Background(), "anything")
	require.NoError(t, err)
	assert.Contains(t, got, string(long[:snippetLimit])+"...")
	assert.NotContains(t, got, string(long[:snippetLimit+1]))
}

func TestRetrieveNoResults(t *testing.T) {
	leaser := &fakeLeaser{sess: &fakeSearchSession{result: `{"success":true,"results":[]}`}}
	a := NewKnowledgeAugmenter(leaser, testSettings(), nil)

	got, err := a.Retrieve(context.Background(), "nothing matches")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRetrieveBackendReportsFailure(t *testing.T) {
	leaser := &fakeLeaser{sess: &fakeSearchSession{result: `{"success":false}`}}
	a := NewKnowledgeAugmenter(leaser, testSettings(), nil)

	got, err := a.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRetrieveCallErrorReturnsSessionWithOutcome(t *testing.T) {
	leaser := &fakeLeaser{sess: &fakeSearchSession{callErr: errors.New("search blew up")}}
	a := NewKnowledgeAugmenter(leaser, testSettings(), nil)

	_, err := a.Retrieve(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, errkind.ToolExecution, errkind.KindOf(err))
	assert.True(t, leaser.returned)
	assert.Error(t, leaser.returnWith)
}

func TestRetrieveLeaseFailure(t *testing.T) {
	leaser := &fakeLeaser{leaseErr: errkind.New(errkind.PoolExhausted, "at capacity")}
	a := NewKnowledgeAugmenter(leaser, testSettings(), nil)

	_, err := a.Retrieve(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, errkind.PoolExhausted, errkind.KindOf(err))
	assert.False(t, leaser.returned)
}

func TestRetrieveGarbageResult(t *testing.T) {
	leaser := &fakeLeaser{sess: &fakeSearchSession{result: "not json at all"}}
	a := NewKnowledgeAugmenter(leaser, testSettings(), nil)

	_, err := a.Retrieve(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, errkind.ToolExecution, errkind.KindOf(err))
}
