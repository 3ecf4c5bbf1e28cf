// Package parking detects parking lot candidates from classified imagery and
// estimates their retribution revenue from capacity and tariff heuristics.
package parking

import (
	"math"

	"github.com/bkd-mataram/padscan/internal/detect"
)

// Tariffs bundles the parking revenue parameters: hourly tariff per vehicle
// type, and utilization plus operating hours per parking type.
type Tariffs struct {
	HourlyIDR   map[string]int64   // motor, mobil, bus
	Utilization map[string]float64 // by parking type
	HoursPerDay map[string]int     // by parking type
}

const (
	usableShare  = 0.7 // circulation lanes excluded
	motorShare   = 0.6
	mobilShare   = 0.4
	motorSlotM2  = 2.0
	mobilSlotM2  = 12.5
	workdaysPerM = 26 // revenue-collecting days per month
)

// ClassifyType buckets a lot into a parking type by area alone. Field surveys
// refine this; the bucket mainly picks the utilization and hours assumptions.
func ClassifyType(areaM2 float64) string {
	switch {
	case areaM2 < 200:
		return "umum"
	case areaM2 < 500:
		return "perkantoran"
	case areaM2 < 1000:
		return "pasar"
	default:
		return "mall"
	}
}

// EstimateCapacity splits a lot's usable area into motor and mobil slots.
// Slot counts truncate toward zero: a fractional slot parks nothing.
func EstimateCapacity(areaM2 float64) detect.Capacity {
	usable := areaM2 * usableShare
	motor := int(usable * motorShare / motorSlotM2)
	mobil := int(usable * mobilShare / mobilSlotM2)
	return detect.Capacity{Motor: motor, Mobil: mobil, Total: motor + mobil}
}

// EstimateRevenue computes daily, monthly, and annual revenue for a lot of the
// given area and type.
func EstimateRevenue(areaM2 float64, parkingType string, t Tariffs) (daily, monthly, annual int64) {
	cap := EstimateCapacity(areaM2)

	util, ok := t.Utilization[parkingType]
	if !ok {
		util = 0.5
	}
	hours, ok := t.HoursPerDay[parkingType]
	if !ok {
		hours = 10
	}

	motorDay := float64(cap.Motor) * util * float64(t.HourlyIDR["motor"]) * float64(hours)
	mobilDay := float64(cap.Mobil) * util * float64(t.HourlyIDR["mobil"]) * float64(hours)

	daily = int64(math.Round(motorDay + mobilDay))
	monthly = daily * workdaysPerM
	annual = monthly * 12
	return daily, monthly, annual
}
