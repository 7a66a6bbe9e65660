package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pion/logging"

	"duocall/native/internal/domain"
)

// fakeSignaler records sends for verification.
type fakeSignaler struct {
	mu          sync.Mutex
	descs       []domain.SessionDescription
	descFroms   []string
	cands       []domain.Candidate
	candRoles   []domain.Role
	closeCalled bool
}

func (f *fakeSignaler) Connect() error { return nil }

func (f *fakeSignaler) SendDescription(desc domain.SessionDescription, from string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.descs = append(f.descs, desc)
	f.descFroms = append(f.descFroms, from)
}

func (f *fakeSignaler) SendCandidate(c domain.Candidate, from string, role domain.Role) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cands = append(f.cands, c)
	f.candRoles = append(f.candRoles, role)
}

func (f *fakeSignaler) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalled = true
}

func (f *fakeSignaler) sentDescs() []domain.SessionDescription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SessionDescription(nil), f.descs...)
}

func (f *fakeSignaler) sentCands() []domain.Candidate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Candidate(nil), f.cands...)
}

func newTestController(t *testing.T) (*Controller, *fakeTransport, *fakeSignaler) {
	t.Helper()
	ft := &fakeTransport{}
	fs := &fakeSignaler{}
	ctl := New(ft, logging.NewDefaultLoggerFactory())
	ctl.SetSignaler(fs)
	ctl.Start()
	t.Cleanup(ctl.EndSession)
	return ctl, ft, fs
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSelfEcho_Discarded(t *testing.T) {
	ctl, ft, _ := newTestController(t)

	ctl.OnDescriptionReceived(offerDesc("echo"), ctl.ID())
	ctl.OnCandidateReceived(cand("candidate:echo"), ctl.ID(), domain.RoleInitiator)

	// Give the loop time to (incorrectly) process anything.
	time.Sleep(50 * time.Millisecond)

	if got := ft.remoteDescs(); len(got) != 0 {
		t.Errorf("remote = %v, self-echoed offer must be discarded", got)
	}
	if got := ft.createdKinds(); len(got) != 0 {
		t.Errorf("created = %v, self-echo must cause no transition", got)
	}
	if got := ft.addedCandidates(); len(got) != 0 {
		t.Errorf("applied = %v, self-echoed candidate must be discarded", got)
	}
}

func TestCall_SendsGeneratedOffer(t *testing.T) {
	ctl, ft, fs := newTestController(t)

	ctl.Call()
	waitFor(t, "offer requested", func() bool {
		kinds := ft.createdKinds()
		return len(kinds) == 1 && kinds[0] == domain.KindOffer
	})

	ft.fireLocalDescription(offerDesc("o1"), nil)
	waitFor(t, "offer sent over relay", func() bool {
		descs := fs.sentDescs()
		return len(descs) == 1 && descs[0].SDP == "o1"
	})

	fs.mu.Lock()
	from := fs.descFroms[0]
	fs.mu.Unlock()
	if from != ctl.ID() {
		t.Errorf("sent from %s, want the local identity %s", from, ctl.ID())
	}
}

func TestRemoteOffer_DrivesResponderFlow(t *testing.T) {
	ctl, ft, fs := newTestController(t)

	ctl.OnDescriptionReceived(offerDesc("o1"), "peer-1")
	waitFor(t, "remote offer applied and answer requested", func() bool {
		return len(ft.remoteDescs()) == 1 && len(ft.createdKinds()) == 1
	})
	if kinds := ft.createdKinds(); kinds[0] != domain.KindAnswer {
		t.Fatalf("created = %v, want [answer]", kinds)
	}

	ft.fireLocalDescription(answerDesc("a1"), nil)
	waitFor(t, "answer sent over relay", func() bool {
		descs := fs.sentDescs()
		return len(descs) == 1 && descs[0].Kind == domain.KindAnswer
	})
}

func TestRemoteCandidate_BufferedUntilConnected(t *testing.T) {
	ctl, ft, _ := newTestController(t)

	// Candidate arrives before any description: must be held back.
	ctl.OnCandidateReceived(cand("candidate:1"), "peer-1", domain.RoleInitiator)
	time.Sleep(50 * time.Millisecond)
	if got := ft.addedCandidates(); len(got) != 0 {
		t.Fatalf("applied = %v, want buffering before connect", got)
	}

	// Responder flow to Connected.
	ctl.OnDescriptionReceived(offerDesc("o1"), "peer-1")
	waitFor(t, "answer requested", func() bool { return len(ft.createdKinds()) == 1 })
	ft.fireLocalDescription(answerDesc("a1"), nil)

	waitFor(t, "buffered candidate drained", func() bool {
		got := ft.addedCandidates()
		return len(got) == 1 && got[0].Candidate == "candidate:1"
	})

	// After connect, candidates pass straight through.
	ctl.OnCandidateReceived(cand("candidate:2"), "peer-1", domain.RoleInitiator)
	waitFor(t, "late candidate applied", func() bool {
		return len(ft.addedCandidates()) == 2
	})
}

func TestLocalCandidate_ForwardedWithIdentity(t *testing.T) {
	ctl, ft, fs := newTestController(t)

	ctl.Call()
	waitFor(t, "offer requested", func() bool { return len(ft.createdKinds()) == 1 })

	ft.fireLocalCandidate(domain.Candidate{SDPMid: "0", Candidate: "candidate:local"})
	waitFor(t, "candidate sent over relay", func() bool {
		return len(fs.sentCands()) == 1
	})

	got := fs.sentCands()[0]
	if got.Origin != ctl.ID() {
		t.Errorf("origin = %s, want local identity", got.Origin)
	}
	fs.mu.Lock()
	role := fs.candRoles[0]
	fs.mu.Unlock()
	if role != domain.RoleInitiator {
		t.Errorf("role = %s, want initiator tag", role)
	}
}

func TestTransportFailure_SurfacedOnce(t *testing.T) {
	ctl, ft, _ := newTestController(t)

	ctl.Call()
	waitFor(t, "offer requested", func() bool { return len(ft.createdKinds()) == 1 })

	ft.fireLocalDescription(domain.SessionDescription{}, errors.New("engine gone"))

	select {
	case err := <-ctl.Failures():
		var te *domain.TransportError
		if !errors.As(err, &te) {
			t.Errorf("surfaced %v, want a TransportError", err)
		}
	case <-time.After(time.Second):
		t.Fatal("no failure surfaced")
	}
}

func TestChannelFailure_SurfacedAsFatal(t *testing.T) {
	ctl, _, _ := newTestController(t)

	ctl.OnChannelFailure(errors.New("relay is gone"))

	select {
	case err := <-ctl.Failures():
		if err == nil {
			t.Error("surfaced nil error")
		}
	case <-time.After(time.Second):
		t.Fatal("no failure surfaced")
	}
}

func TestEndSession_IdempotentAndSafeBeforeConnect(t *testing.T) {
	ft := &fakeTransport{}
	fs := &fakeSignaler{}
	ctl := New(ft, logging.NewDefaultLoggerFactory())
	ctl.SetSignaler(fs)
	ctl.Start()

	// Never connected; must still tear down cleanly, twice.
	ctl.EndSession()
	ctl.EndSession()

	if !ft.isClosed() {
		t.Error("transport not released")
	}
	fs.mu.Lock()
	closed := fs.closeCalled
	fs.mu.Unlock()
	if !closed {
		t.Error("signaler not stopped")
	}

	// Events after teardown are silently dropped.
	ctl.OnDescriptionReceived(offerDesc("late"), "peer-1")
	time.Sleep(50 * time.Millisecond)
	if got := ft.remoteDescs(); len(got) != 0 {
		t.Errorf("remote = %v, post-teardown events must be discarded", got)
	}
}
