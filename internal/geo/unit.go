// Package geo owns the administrative boundary hierarchy for Kota Mataram and
// answers containment, listing, and coverage-attribution queries against it.
package geo

import (
	"strings"

	"github.com/twpayne/go-geom"
)

// Level identifies one tier of the administrative hierarchy.
type Level int

const (
	LevelDistrict Level = iota // kecamatan
	LevelKelurahan
	LevelLingkungan
	LevelRT // smallest statistical unit (SLS)
)

func (l Level) String() string {
	switch l {
	case LevelDistrict:
		return "kecamatan"
	case LevelKelurahan:
		return "kelurahan"
	case LevelLingkungan:
		return "lingkungan"
	case LevelRT:
		return "rt"
	default:
		return "unknown"
	}
}

// lingkunganMarker is the token separating the RT part from the Lingkungan
// part in compound SLS labels ("RT 001 LINGKUNGAN KARANG BARU").
const lingkunganMarker = " LINGKUNGAN "

// AdministrativeUnit is one SLS polygon feature with its hierarchy context.
type AdministrativeUnit struct {
	District     string // nmkec, upper case
	DistrictCode string // kdkec, may be empty
	Kelurahan    string // nmdesa
	SLSLabel     string // raw nmsls
	Geometry     *geom.MultiPolygon
}

// RT returns the RT part of the unit's SLS label.
func (u *AdministrativeUnit) RT() string {
	rt, _ := DecomposeLabel(u.SLSLabel)
	return rt
}

// Lingkungan returns the Lingkungan part of the unit's SLS label.
func (u *AdministrativeUnit) Lingkungan() string {
	_, ling := DecomposeLabel(u.SLSLabel)
	return ling
}

// DecomposeLabel splits a raw SLS label into its RT part and Lingkungan part.
// Labels containing the marker split around it: "RT 001 LINGKUNGAN KARANG BARU"
// yields ("RT 001", "KARANG BARU"). Labels without the marker (e.g. "SAWAH")
// act as both their own RT and Lingkungan.
func DecomposeLabel(raw string) (rtPart, lingkunganPart string) {
	trimmed := strings.TrimSpace(raw)
	if before, after, found := strings.Cut(trimmed, lingkunganMarker); found {
		rt := strings.TrimSpace(before)
		ling := strings.TrimSpace(after)
		if rt != "" && ling != "" {
			return rt, ling
		}
	}
	return trimmed, trimmed
}

// JoinLabel reconstructs an SLS label from its decomposed parts. When the two
// parts are equal the label is the part itself (unit without a named
// neighborhood).
func JoinLabel(rtPart, lingkunganPart string) string {
	if rtPart == lingkunganPart {
		return rtPart
	}
	return rtPart + lingkunganMarker + lingkunganPart
}

// NormalizeDistrict maps a mixed-case district name to the nmkec value used in
// the boundary source.
func NormalizeDistrict(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
