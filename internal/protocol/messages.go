package protocol

import (
	"scrapyard.dev/internal/display"
	"scrapyard.dev/internal/gate"
	"scrapyard.dev/internal/settlement"
	"scrapyard.dev/internal/vessel"
)

// HELLO (plugin -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
	// Funds is the host treasury balance at connect time.
	Funds    float64  `json:"funds,omitempty"`
	Research []string `json:"research,omitempty"`
	MaxQueue int      `json:"max_queue,omitempty"`
}

// WELCOME (server -> plugin)
type WelcomeMsg struct {
	Type             string         `json:"type"`
	ProtocolVersion  string         `json:"protocol_version"`
	SessionID        string         `json:"session_id"`
	RecoverResources bool           `json:"recover_resources"`
	ResourceDisplay  string         `json:"resource_display"`
	Catalogs         CatalogDigests `json:"catalogs"`
}

type CatalogDigests struct {
	Parts     DigestRef `json:"parts"`
	Resources DigestRef `json:"resources"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

type RolloutMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	ReqID           string          `json:"req_id"`
	Vessel          vessel.Snapshot `json:"vessel"`
}

// RecoverMsg settles a recovered vessel. Without Factor the factor comes
// from the recovery curve and the vessel's landing spot.
type RecoverMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	ReqID           string          `json:"req_id"`
	Vessel          vessel.Snapshot `json:"vessel"`
	Factor          *float64        `json:"factor,omitempty"`
}

type PreviewMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	ReqID           string          `json:"req_id"`
	Vessel          vessel.Snapshot `json:"vessel"`
}

type SaveMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	// Slot names the save game; used for the on-disk copy.
	Slot string `json:"slot,omitempty"`
}

// LoadMsg carries the host's save node in text form.
type LoadMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	Node            string `json:"node"`
}

type ResearchMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	ReqID           string   `json:"req_id"`
	Unlocked        []string `json:"unlocked"`
}

// QueryMsg asks for part list counters. Vessel is what is currently being
// assembled, if anything.
type QueryMsg struct {
	Type            string           `json:"type"`
	ProtocolVersion string           `json:"protocol_version"`
	ReqID           string           `json:"req_id"`
	Vessel          *vessel.Snapshot `json:"vessel,omitempty"`
	Names           []string         `json:"names"`
}

type PlacementMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	ReqID           string          `json:"req_id"`
	Vessel          vessel.Snapshot `json:"vessel"`
	HeldRoot        int             `json:"held_root"`
}

type SetDisplayMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	Mode            string `json:"mode"`
}

type ResultMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	ReqID           string            `json:"req_id"`
	Result          settlement.Result `json:"result"`
	Balance         float64           `json:"balance"`
}

type EstimateMsg struct {
	Type            string              `json:"type"`
	ProtocolVersion string              `json:"protocol_version"`
	ReqID           string              `json:"req_id"`
	Estimate        settlement.Estimate `json:"estimate"`
}

type SaveDataMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	Node            string `json:"node"`
}

type LoadedMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	Parts           int    `json:"parts"`
	Resources       int    `json:"resources"`
	Dropped         int    `json:"dropped"`
}

// Entry is one part list line.
type Entry struct {
	Name         string           `json:"name"`
	Visible      bool             `json:"visible"`
	Experimental bool             `json:"experimental,omitempty"`
	Text         string           `json:"text"`
	Counter      *display.Counter `json:"counter,omitempty"`
}

type CountersMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	ReqID           string  `json:"req_id"`
	Entries         []Entry `json:"entries"`
}

type PlacementResultMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	ReqID           string         `json:"req_id"`
	Placement       gate.Placement `json:"placement"`
}

type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}
