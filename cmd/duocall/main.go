package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/pion/logging"
	pion "github.com/pion/webrtc/v4"

	"duocall/native/internal/api"
	"duocall/native/internal/config"
	"duocall/native/internal/domain"
	"duocall/native/internal/session"
	sigclient "duocall/native/internal/signal"
	"duocall/native/internal/webrtc"
)

const helpText = `duocall - Two-party audio/video call over WebRTC

Usage:
  duocall [options]

Both participants join the same room through the signaling relay. The side
started with -call sends the offer; the other side waits and answers. If
both sides call at once, the tie is broken deterministically and the call
still connects.

Environment Variables:
  DUOCALL_ROOM        Room name (required)
  DUOCALL_API         Rendezvous API base URL
  DUOCALL_SIGNAL_URL  Direct signaling relay URL (bypasses the API)
  DUOCALL_TOKEN       Bearer token for the rendezvous API
  DUOCALL_STUN        STUN server (default: stun:stun.l.google.com:19302)
  DUOCALL_LOG_LEVEL   trace|debug|info|warn|error (default: info)

Options:
  -call       Start the call (otherwise wait for the peer's offer)
  -h, --help  Show this help message
`

func main() {
	call := flag.Bool("call", false, "start the call as initiator")
	flag.Usage = func() { fmt.Print(helpText) }
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "duocall: %v\n", err)
		os.Exit(1)
	}

	lf := logging.NewDefaultLoggerFactory()
	lf.DefaultLogLevel = cfg.LogLevel
	log := lf.NewLogger("main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		log.Infof("received %s, shutting down", s)
		cancel()
	}()

	// Step 1: Obtain the room ticket (signaling endpoint + ICE servers).
	ticket, err := fetchTicket(cfg)
	if err != nil {
		log.Errorf("room ticket: %v", err)
		os.Exit(1)
	}
	log.Infof("room %s via %s", ticket.Room, ticket.SignalServer)

	// Step 2: Create the media transport.
	peer, err := webrtc.NewPeer(ticket.ICEServers, lf)
	if err != nil {
		log.Errorf("create peer: %v", err)
		os.Exit(1)
	}

	// Step 3: Create the session controller.
	ctl := session.New(peer, lf)

	// Step 4: Create the relay client with the controller as handler, then
	// complete the circular dependency.
	sc := sigclient.NewClient(ticket, ctl.ID(), ctl, lf)
	ctl.SetSignaler(sc)

	// Step 5: Hand remote tracks to the (stub) rendering layer.
	ctl.SetRemoteMediaSink(func(m domain.RemoteMedia) {
		log.Infof("remote %s track (%s)", m.Kind, m.Codec)
		if track, ok := m.Track.(*pion.TrackRemote); ok {
			go drainTrack(track)
		}
	})

	// Step 6: Start the event loop and connect to the relay.
	ctl.Start()
	if err := sc.Connect(); err != nil {
		log.Errorf("signal connect: %v", err)
		os.Exit(1)
	}

	// Step 7: Place the call, or wait for the peer's offer.
	if *call {
		log.Infof("calling room %s as %s", ticket.Room, ctl.ID())
		ctl.Call()
	} else {
		log.Infof("waiting in room %s as %s", ticket.Room, ctl.ID())
	}

	select {
	case <-ctx.Done():
	case err := <-ctl.Failures():
		log.Errorf("session failed: %v", err)
	}

	ctl.EndSession()
	log.Infof("done")
}

func fetchTicket(cfg *config.Config) (*domain.RoomTicket, error) {
	if cfg.SignalURL != "" {
		return &domain.RoomTicket{
			Room:         cfg.Room,
			SignalServer: cfg.SignalURL,
			ICEServers:   []domain.ICEServer{{URL: cfg.StunURL}},
		}, nil
	}
	return api.NewClient(cfg.APIURL, cfg.Token).FetchRoomTicket(cfg.Room)
}

// drainTrack keeps RTP flowing on a remote track. Rendering lives outside
// this binary; without a reader the track would stall.
func drainTrack(track *pion.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := track.Read(buf); err != nil {
			return
		}
	}
}
