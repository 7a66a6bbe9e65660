// Package webrtc implements the media transport on top of a Pion
// PeerConnection.
package webrtc

import (
	"fmt"
	"strings"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/nack"
	"github.com/pion/logging"
	pion "github.com/pion/webrtc/v4"

	"duocall/native/internal/domain"
)

// Peer wraps a Pion PeerConnection behind the domain.Transport contract.
// Description operations run on a single worker goroutine in call order, so
// "set remote offer, then create answer" sequences stay sequenced; results
// come back on the registered callbacks.
type Peer struct {
	pc  *pion.PeerConnection
	log logging.LeveledLogger

	ops  chan func()
	done chan struct{}

	onLocalDesc      func(domain.SessionDescription, error)
	onRemoteDescDone func(error)
	onCandidate      func(domain.Candidate)
	onMedia          func(domain.RemoteMedia)
}

// NewPeer creates a PeerConnection with H264 video, Opus audio, a NACK
// responder and bidirectional transceivers for one call.
func NewPeer(iceServers []domain.ICEServer, lf logging.LoggerFactory) (*Peer, error) {
	m := &pion.MediaEngine{}

	h264Codec := pion.RTPCodecParameters{
		RTPCodecCapability: pion.RTPCodecCapability{
			MimeType:    pion.MimeTypeH264,
			ClockRate:   90000,
			SDPFmtpLine: "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f",
		},
		PayloadType: 102,
	}
	if err := m.RegisterCodec(h264Codec, pion.RTPCodecTypeVideo); err != nil {
		return nil, fmt.Errorf("register H264: %w", err)
	}

	opusCodec := pion.RTPCodecParameters{
		RTPCodecCapability: pion.RTPCodecCapability{
			MimeType:  pion.MimeTypeOpus,
			ClockRate: 48000,
			Channels:  2,
		},
		PayloadType: 111,
	}
	if err := m.RegisterCodec(opusCodec, pion.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("register Opus: %w", err)
	}

	i := &interceptor.Registry{}
	responderFactory, err := nack.NewResponderInterceptor()
	if err != nil {
		return nil, fmt.Errorf("create nack responder: %w", err)
	}
	i.Add(responderFactory)

	api := pion.NewAPI(
		pion.WithMediaEngine(m),
		pion.WithInterceptorRegistry(i),
	)

	var servers []pion.ICEServer
	for _, s := range iceServers {
		servers = append(servers, pion.ICEServer{
			URLs:       []string{s.URL},
			Username:   s.Username,
			Credential: s.Credential,
		})
	}

	pc, err := api.NewPeerConnection(pion.Configuration{
		ICEServers:   servers,
		BundlePolicy: pion.BundlePolicyMaxBundle,
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	log := lf.NewLogger("transport")

	p := &Peer{
		pc:               pc,
		log:              log,
		ops:              make(chan func(), 16),
		done:             make(chan struct{}),
		onLocalDesc:      func(domain.SessionDescription, error) {},
		onRemoteDescDone: func(error) {},
		onCandidate:      func(domain.Candidate) {},
		onMedia:          func(domain.RemoteMedia) {},
	}

	for _, kind := range []pion.RTPCodecType{pion.RTPCodecTypeAudio, pion.RTPCodecTypeVideo} {
		_, err := pc.AddTransceiverFromKind(kind, pion.RTPTransceiverInit{
			Direction: pion.RTPTransceiverDirectionSendrecv,
		})
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("add %s transceiver: %w", kind, err)
		}
	}

	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			log.Infof("ICE gathering complete")
			return
		}
		init := c.ToJSON()
		if isLoopback(init.Candidate) {
			log.Debugf("filtering loopback ICE candidate")
			return
		}
		cand := domain.Candidate{Candidate: init.Candidate}
		if init.SDPMid != nil {
			cand.SDPMid = *init.SDPMid
		}
		if init.SDPMLineIndex != nil {
			cand.SDPMLineIndex = int(*init.SDPMLineIndex)
		}
		p.onCandidate(cand)
	})

	pc.OnTrack(func(track *pion.TrackRemote, receiver *pion.RTPReceiver) {
		codec := track.Codec()
		log.Infof("remote track: kind=%s codec=%s", track.Kind(), codec.MimeType)
		p.onMedia(domain.RemoteMedia{
			Kind:  track.Kind().String(),
			Codec: codec.MimeType,
			Track: track,
		})
	})

	pc.OnICEConnectionStateChange(func(state pion.ICEConnectionState) {
		log.Infof("ICE connection state: %s", state)
	})
	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		log.Infof("peer connection state: %s", state)
	})

	go p.worker()
	return p, nil
}

func (p *Peer) OnLocalDescription(fn func(domain.SessionDescription, error)) { p.onLocalDesc = fn }
func (p *Peer) OnRemoteDescriptionDone(fn func(error))                       { p.onRemoteDescDone = fn }
func (p *Peer) OnLocalCandidate(fn func(domain.Candidate))                   { p.onCandidate = fn }
func (p *Peer) OnRemoteMedia(fn func(domain.RemoteMedia))                    { p.onMedia = fn }

// CreateLocalDescription generates an offer or answer and applies it as the
// local description before reporting, so the ready callback always means the
// transport is using it.
func (p *Peer) CreateLocalDescription(kind domain.DescriptionKind) {
	p.enqueue(func() {
		var (
			desc pion.SessionDescription
			err  error
		)
		if kind == domain.KindOffer {
			desc, err = p.pc.CreateOffer(nil)
		} else {
			desc, err = p.pc.CreateAnswer(nil)
		}
		if err == nil {
			err = p.pc.SetLocalDescription(desc)
		}
		if err != nil {
			p.onLocalDesc(domain.SessionDescription{}, fmt.Errorf("create %s: %w", kind, err))
			return
		}
		p.log.Debugf("local %s set", kind)
		p.onLocalDesc(domain.SessionDescription{Kind: kind, SDP: desc.SDP}, nil)
	})
}

// SetRemoteDescription applies the peer's description. When an offer lands
// while our own offer is pending locally (glare, after the negotiator chose
// to yield), the pending local offer is rolled back first.
func (p *Peer) SetRemoteDescription(desc domain.SessionDescription) {
	p.enqueue(func() {
		if desc.Kind == domain.KindOffer && p.pc.SignalingState() == pion.SignalingStateHaveLocalOffer {
			p.log.Infof("rolling back pending local offer")
			if err := p.pc.SetLocalDescription(pion.SessionDescription{Type: pion.SDPTypeRollback}); err != nil {
				p.onRemoteDescDone(fmt.Errorf("rollback local offer: %w", err))
				return
			}
		}

		sdpType := pion.SDPTypeOffer
		if desc.Kind == domain.KindAnswer {
			sdpType = pion.SDPTypeAnswer
		}
		err := p.pc.SetRemoteDescription(pion.SessionDescription{Type: sdpType, SDP: desc.SDP})
		if err != nil {
			p.onRemoteDescDone(fmt.Errorf("set remote %s: %w", desc.Kind, err))
			return
		}
		p.log.Debugf("remote %s set", desc.Kind)
		p.onRemoteDescDone(nil)
	})
}

// AddRemoteCandidate adds an ICE candidate. Failures are logged and dropped:
// by the time candidates flow the descriptions are in place, and a bad or
// duplicate candidate must not kill the session.
func (p *Peer) AddRemoteCandidate(c domain.Candidate) {
	p.enqueue(func() {
		mLineIndex := uint16(c.SDPMLineIndex)
		init := pion.ICECandidateInit{
			Candidate:     c.Candidate,
			SDPMid:        &c.SDPMid,
			SDPMLineIndex: &mLineIndex,
		}
		if err := p.pc.AddICECandidate(init); err != nil {
			p.log.Warnf("add ICE candidate: %v", err)
			return
		}
		p.log.Debugf("remote ICE candidate added")
	})
}

// Close stops the worker and releases the PeerConnection. Idempotent.
func (p *Peer) Close() {
	select {
	case <-p.done:
		return
	default:
		close(p.done)
	}
	if err := p.pc.Close(); err != nil {
		p.log.Warnf("close peer connection: %v", err)
	}
}

func (p *Peer) worker() {
	for {
		select {
		case fn := <-p.ops:
			fn()
		case <-p.done:
			return
		}
	}
}

func (p *Peer) enqueue(fn func()) {
	select {
	case <-p.done:
	case p.ops <- fn:
	}
}

func isLoopback(candidate string) bool {
	return strings.Contains(candidate, "127.0.0.1") || strings.Contains(candidate, "::1 ")
}
