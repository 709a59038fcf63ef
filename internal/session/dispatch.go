package session

import (
	"errors"

	"go.uber.org/zap"

	"scrapyard.dev/internal/cfgnode"
	"scrapyard.dev/internal/ledger"
	"scrapyard.dev/internal/protocol"
	"scrapyard.dev/internal/settlement"
)

func (s *Session) dispatch(env Envelope) any {
	switch m := env.Msg.(type) {
	case *protocol.HelloMsg:
		return s.hello(m)
	case *protocol.RolloutMsg:
		res, err := s.Rollout(&m.Vessel)
		if err != nil {
			return badVessel(m.ReqID, err)
		}
		return s.resultMsg(m.ReqID, res)
	case *protocol.RecoverMsg:
		if m.Factor != nil && (*m.Factor <= 0 || *m.Factor > 1) {
			return &protocol.Error{Code: protocol.ErrBadRequest, Message: "factor must be in (0,1]", ReqID: m.ReqID}
		}
		res, err := s.Recover(&m.Vessel, m.Factor)
		if err != nil {
			return badVessel(m.ReqID, err)
		}
		return s.resultMsg(m.ReqID, res)
	case *protocol.PreviewMsg:
		est, err := s.Preview(&m.Vessel)
		if err != nil {
			return badVessel(m.ReqID, err)
		}
		return protocol.EstimateMsg{Type: protocol.TypeEstimate, ProtocolVersion: protocol.Version, ReqID: m.ReqID, Estimate: est}
	case *protocol.SaveMsg:
		text := s.Save(m.Slot)
		return protocol.SaveDataMsg{Type: protocol.TypeSaveData, ProtocolVersion: protocol.Version, ReqID: m.ReqID, Node: string(text)}
	case *protocol.LoadMsg:
		return s.load(m)
	case *protocol.ResearchMsg:
		s.SetResearch(m.Unlocked)
		return ack(m.ReqID)
	case *protocol.QueryMsg:
		return protocol.CountersMsg{Type: protocol.TypeCounters, ProtocolVersion: protocol.Version, ReqID: m.ReqID, Entries: s.Counters(m.Vessel, m.Names)}
	case *protocol.PlacementMsg:
		p, err := s.Placement(&m.Vessel, m.HeldRoot)
		if err != nil {
			return badVessel(m.ReqID, err)
		}
		return protocol.PlacementResultMsg{Type: protocol.TypePlacementR, ProtocolVersion: protocol.Version, ReqID: m.ReqID, Placement: p}
	case *protocol.SetDisplayMsg:
		if err := s.SetResourceDisplay(m.Mode); err != nil {
			return &protocol.Error{Code: protocol.ErrBadRequest, Message: err.Error(), ReqID: m.ReqID}
		}
		return ack(m.ReqID)
	case stateRequest:
		return s.State()
	default:
		s.log.Warn("unexpected message", zap.String("conn", env.ConnID))
		return &protocol.Error{Code: protocol.ErrInternal, Message: "unexpected message"}
	}
}

func (s *Session) hello(m *protocol.HelloMsg) protocol.WelcomeMsg {
	if f, ok := s.treasury.(interface{ Set(float64) }); ok {
		f.Set(m.Funds)
	}
	if m.Research != nil {
		s.SetResearch(m.Research)
	}
	s.log.Info("client attached", zap.String("client", m.ClientName))
	return protocol.WelcomeMsg{
		Type:             protocol.TypeWelcome,
		ProtocolVersion:  protocol.Version,
		SessionID:        s.id,
		RecoverResources: s.tun.RecoverResources,
		ResourceDisplay:  s.ResourceDisplay(),
		Catalogs: protocol.CatalogDigests{
			Parts:     protocol.DigestRef{Digest: s.cats.Parts.Digest, Count: len(s.cats.Parts.Names)},
			Resources: protocol.DigestRef{Digest: s.cats.Resources.Digest, Count: len(s.cats.Resources.Names)},
		},
	}
}

func (s *Session) load(m *protocol.LoadMsg) any {
	root, err := cfgnode.ParseString(m.Node)
	if err != nil {
		return &protocol.Error{Code: protocol.ErrBadSave, Message: err.Error(), ReqID: m.ReqID}
	}
	st, err := s.Load(root)
	if err != nil {
		var missing *ledger.MissingSectionError
		if errors.As(err, &missing) {
			return &protocol.Error{Code: protocol.ErrMissingSection, Message: err.Error(), ReqID: m.ReqID}
		}
		return &protocol.Error{Code: protocol.ErrInternal, Message: err.Error(), ReqID: m.ReqID}
	}
	return protocol.LoadedMsg{
		Type: protocol.TypeLoaded, ProtocolVersion: protocol.Version, ReqID: m.ReqID,
		Parts: st.Parts, Resources: st.Resources, Dropped: st.Dropped,
	}
}

func (s *Session) resultMsg(reqID string, res settlement.Result) protocol.ResultMsg {
	bal, _ := s.Balance()
	return protocol.ResultMsg{Type: protocol.TypeResult, ProtocolVersion: protocol.Version, ReqID: reqID, Result: res, Balance: bal}
}

func badVessel(reqID string, err error) *protocol.Error {
	return &protocol.Error{Code: protocol.ErrBadVessel, Message: err.Error(), ReqID: reqID}
}

func ack(reqID string) protocol.AckMsg {
	return protocol.AckMsg{Type: protocol.TypeAck, ProtocolVersion: protocol.Version, ReqID: reqID}
}
