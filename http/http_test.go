package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"

	"github.com/convoycd/convoy"
	"github.com/convoycd/convoy/api"
	"github.com/convoycd/convoy/history"
	"github.com/convoycd/convoy/scheduler"
)

type stubService struct {
	runErr     error
	approveErr error
	approved   []string
	lastSpec   api.RunSpec
}

func (s *stubService) Run(_ context.Context, spec api.RunSpec) (scheduler.Result, error) {
	s.lastSpec = spec
	if s.runErr != nil {
		return scheduler.Result{}, s.runErr
	}
	return scheduler.Result{ID: "run-1", Ref: spec.Ref, Status: convoy.RunSuccess}, nil
}

func (s *stubService) Approve(_ context.Context, job string) error {
	if s.approveErr != nil {
		return s.approveErr
	}
	s.approved = append(s.approved, job)
	return nil
}

func (s *stubService) Status(context.Context) (api.Status, error) {
	return api.Status{Active: true}, nil
}

func (s *stubService) History(context.Context) ([]history.Event, error) {
	return []history.Event{{RunID: "run-1", Type: history.EventRunStarted}}, nil
}

func (s *stubService) Ping(context.Context) error { return nil }

func newTestPair(svc api.Service) (*Client, *httptest.Server) {
	handler := NewHandler(svc, NewRouter(), log.NewNopLogger())
	server := httptest.NewServer(handler)
	return NewClient(http.DefaultClient, server.URL), server
}

func TestRoundtripRun(t *testing.T) {
	svc := &stubService{}
	client, server := newTestPair(svc)
	defer server.Close()

	res, err := client.Run(context.Background(), api.RunSpec{
		Revision: "abc", Ref: "master", RefKind: convoy.RefKindBranch, Actor: "dev",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != convoy.RunSuccess || res.Ref != "master" {
		t.Errorf("result %+v", res)
	}
	if svc.lastSpec.Revision != "abc" || svc.lastSpec.Actor != "dev" {
		t.Errorf("spec did not survive the wire: %+v", svc.lastSpec)
	}
}

func TestRoundtripErrors(t *testing.T) {
	svc := &stubService{runErr: api.ErrRunInProgress}
	client, server := newTestPair(svc)
	defer server.Close()

	_, err := client.Run(context.Background(), api.RunSpec{Revision: "abc", Ref: "master"})
	remoteErr, ok := err.(*RemoteError)
	if !ok {
		t.Fatalf("expected *RemoteError, got %T: %v", err, err)
	}
	if remoteErr.Code != http.StatusConflict {
		t.Errorf("code %d, want 409", remoteErr.Code)
	}

	svc.runErr = convoy.Errorf("bad kind")
	_, err = client.Run(context.Background(), api.RunSpec{Revision: "abc", Ref: "master"})
	if re, ok := err.(*RemoteError); !ok || re.Code != http.StatusBadRequest {
		t.Errorf("config error should be 400, got %v", err)
	}
}

func TestRoundtripApproveStatusHistoryPing(t *testing.T) {
	svc := &stubService{}
	client, server := newTestPair(svc)
	defer server.Close()
	ctx := context.Background()

	assert.NoError(t, client.Approve(ctx, "deploy-production"))
	assert.Equal(t, []string{"deploy-production"}, svc.approved)

	status, err := client.Status(ctx)
	assert.NoError(t, err)
	assert.True(t, status.Active)

	events, err := client.History(ctx)
	assert.NoError(t, err)
	if assert.Len(t, events, 1) {
		assert.Equal(t, history.EventRunStarted, events[0].Type)
	}

	assert.NoError(t, client.Ping(ctx))
}
