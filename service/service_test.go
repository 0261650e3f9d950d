//go:build windows

package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/sys/windows/svc"
)

type fakeEngine struct {
	mu       sync.Mutex
	startErr error
	started  bool
	closed   bool
}

func (f *fakeEngine) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return f.startErr
}

func (f *fakeEngine) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func TestServiceStateToString(t *testing.T) {
	cases := []struct {
		in   svc.State
		want string
	}{
		{svc.Stopped, "Stopped"},
		{svc.StartPending, "Start Pending"},
		{svc.StopPending, "Stop Pending"},
		{svc.Running, "Running"},
		{svc.ContinuePending, "Continue Pending"},
		{svc.PausePending, "Pause Pending"},
		{svc.Paused, "Paused"},
		{svc.State(12345), "Unknown (12345)"},
	}
	for _, tc := range cases {
		got := serviceStateToString(tc.in)
		if got != tc.want {
			t.Fatalf("serviceStateToString(%v) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestExecute_StartThenStop_SendsExpectedStatusesAndReturns(t *testing.T) {
	reqCh := make(chan svc.ChangeRequest, 4)
	statusCh := make(chan svc.Status, 8)

	eng := &fakeEngine{}
	s := &MediaWatchService{Name: "mediawatch-test", Engine: eng}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Execute(nil, reqCh, statusCh)
	}()

	// 1) StartPending should be first
	select {
	case st := <-statusCh:
		if st.State != svc.StartPending {
			t.Fatalf("expected StartPending first, got %v", st.State)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for StartPending")
	}

	// 2) Running should follow with Stop/Shutdown accepted
	select {
	case st := <-statusCh:
		if st.State != svc.Running {
			t.Fatalf("expected Running, got %v", st.State)
		}
		if st.Accepts&(svc.AcceptStop|svc.AcceptShutdown) != (svc.AcceptStop | svc.AcceptShutdown) {
			t.Fatalf("expected to accept Stop+Shutdown, got %+v", st.Accepts)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for Running")
	}

	// 3) Send Stop request; expect StopPending, then Execute returns
	reqCh <- svc.ChangeRequest{Cmd: svc.Stop}

	select {
	case st := <-statusCh:
		if st.State != svc.StopPending {
			t.Fatalf("expected StopPending after Stop, got %v", st.State)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for StopPending")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Execute did not return after Stop")
	}

	eng.mu.Lock()
	defer eng.mu.Unlock()
	if !eng.started || !eng.closed {
		t.Fatalf("expected engine started and closed, got %+v", eng)
	}
}

func TestExecute_Interrogate_EchoesCurrentStatus(t *testing.T) {
	reqCh := make(chan svc.ChangeRequest, 2)
	statusCh := make(chan svc.Status, 8)

	s := &MediaWatchService{Name: "mediawatch-test", Engine: &fakeEngine{}}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Execute(nil, reqCh, statusCh)
	}()

	// Drain StartPending and Running
	for i := 0; i < 2; i++ {
		select {
		case <-statusCh:
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for initial statuses")
		}
	}

	reqCh <- svc.ChangeRequest{Cmd: svc.Interrogate, CurrentStatus: svc.Status{State: svc.Running}}

	select {
	case st := <-statusCh:
		if st.State != svc.Running {
			t.Fatalf("expected echo of Running, got %v", st.State)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for Interrogate echo")
	}

	reqCh <- svc.ChangeRequest{Cmd: svc.Stop}
	select {
	case <-statusCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for StopPending")
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Execute did not return after Stop")
	}
}

func TestExecute_EngineStartFailure(t *testing.T) {
	reqCh := make(chan svc.ChangeRequest)
	statusCh := make(chan svc.Status, 4)

	s := &MediaWatchService{Name: "mediawatch-test", Engine: &fakeEngine{startErr: errors.New("no database")}}

	_, code := s.Execute(nil, reqCh, statusCh)
	if code == 0 {
		t.Fatal("expected non-zero exit code when the engine can't start")
	}
}
