// Package status holds the shipment status and manifest stage vocabulary
// shared by every part of the tracker.
package status

import (
	"fmt"
	"strings"

	"github.com/mftcargo/tracker/internal/shared"
)

// Code identifies a point in the Turkey to Germany route.
type Code string

const (
	Received       Code = "RECEIVED"
	CentralDepotTR Code = "CENTRAL_DEPOT_TR"
	CustomsTR      Code = "CUSTOMS_TR"
	Transit        Code = "TRANSIT"
	Bulgaria       Code = "BULGARIA"
	Romania        Code = "ROMANIA"
	Croatia        Code = "CROATIA"
	Slovenia       Code = "SLOVENIA"
	Austria        Code = "AUSTRIA"
	CustomsDE      Code = "CUSTOMS_DE"
	CentralDepotDE Code = "CENTRAL_DEPOT_DE"
	DepotReceived  Code = "DEPOT_RECEIVED"
	OutForDelivery Code = "OUT_FOR_DELIVERY"
	Delivered      Code = "DELIVERED"
)

type entry struct {
	code  Code
	label string
	stage bool
}

// vocabulary is ordered along the intended flow; rank is the slice index.
var vocabulary = []entry{
	{Received, "Kargo Teslim Alındı", false},
	{CentralDepotTR, "İstanbul Merkez Depo", false},
	{CustomsTR, "Türkiye Gümrük Kapısı", true},
	{Transit, "Yolda", false},
	{Bulgaria, "Bulgaristan", true},
	{Romania, "Romanya", true},
	{Croatia, "Hırvatistan", true},
	{Slovenia, "Slovenya", true},
	{Austria, "Avusturya", true},
	{CustomsDE, "Almanya Gümrük Kapısı", true},
	{CentralDepotDE, "Almanya Merkez Depo", true},
	{DepotReceived, "Depoda", false},
	{OutForDelivery, "Dağıtımda", true},
	{Delivered, "Teslim Edildi", true},
}

var index = func() map[Code]int {
	m := make(map[Code]int, len(vocabulary))
	for i, e := range vocabulary {
		m[e.code] = i
	}
	return m
}()

// Parse normalises raw and checks it against the vocabulary.
func Parse(raw string) (Code, error) {
	c := Code(strings.ToUpper(strings.TrimSpace(raw)))
	if !c.IsValid() {
		return "", fmt.Errorf("%w: unknown status %q", shared.ErrValidation, raw)
	}
	return c, nil
}

// ParseStage is Parse restricted to codes a manifest may carry as its stage.
func ParseStage(raw string) (Code, error) {
	c, err := Parse(raw)
	if err != nil {
		return "", err
	}
	if !c.IsStage() {
		return "", fmt.Errorf("%w: %s is not a manifest stage", shared.ErrValidation, c)
	}
	return c, nil
}

// IsValid reports whether c is part of the vocabulary.
func (c Code) IsValid() bool {
	_, ok := index[c]
	return ok
}

// IsStage reports whether a manifest can be moved to c.
func (c Code) IsStage() bool {
	i, ok := index[c]
	return ok && vocabulary[i].stage
}

// Label returns the display label, or the raw code when unknown.
func (c Code) Label() string {
	if i, ok := index[c]; ok {
		return vocabulary[i].label
	}
	return string(c)
}

// Rank is the position along the intended flow, -1 when unknown.
func (c Code) Rank() int {
	if i, ok := index[c]; ok {
		return i
	}
	return -1
}

func (c Code) String() string {
	return string(c)
}

// Option is a code/label pair for pickers.
type Option struct {
	Code  Code   `json:"code"`
	Label string `json:"label"`
}

// All lists every status in flow order.
func All() []Option {
	out := make([]Option, 0, len(vocabulary))
	for _, e := range vocabulary {
		out = append(out, Option{Code: e.code, Label: e.label})
	}
	return out
}

// Stages lists the manifest stages in flow order.
func Stages() []Option {
	out := make([]Option, 0, len(vocabulary))
	for _, e := range vocabulary {
		if e.stage {
			out = append(out, Option{Code: e.code, Label: e.label})
		}
	}
	return out
}

// ManifestStatus is the lifecycle of a truck load.
type ManifestStatus string

const (
	ManifestOpen   ManifestStatus = "OPEN"
	ManifestClosed ManifestStatus = "CLOSED"
)

// IsValid reports whether s is OPEN or CLOSED.
func (s ManifestStatus) IsValid() bool {
	return s == ManifestOpen || s == ManifestClosed
}

// Label returns the display label.
func (s ManifestStatus) Label() string {
	switch s {
	case ManifestOpen:
		return "Hazırlanıyor"
	case ManifestClosed:
		return "Kapandı"
	}
	return string(s)
}

// ParseManifestStatus normalises and validates raw.
func ParseManifestStatus(raw string) (ManifestStatus, error) {
	s := ManifestStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", fmt.Errorf("%w: unknown manifest status %q", shared.ErrValidation, raw)
	}
	return s, nil
}
