// Package imagery defines the contract with the external satellite
// classification service and the deterministic synthetic fallback used when no
// usable scene is available.
package imagery

// Dynamic World land cover class codes.
var landCoverNames = map[int]string{
	0: "water",
	1: "trees",
	2: "grass",
	3: "flooded_vegetation",
	4: "crops",
	5: "shrub_and_scrub",
	6: "built",
	7: "bare",
	8: "snow_and_ice",
}

// simplified collapses the Dynamic World taxonomy to the classes the tax
// heuristics distinguish.
var simplified = map[string]string{
	"water":              "water",
	"trees":              "vegetation",
	"grass":              "vegetation",
	"flooded_vegetation": "vegetation",
	"crops":              "crops",
	"shrub_and_scrub":    "vegetation",
	"built":              "built",
	"bare":               "bare",
	"snow_and_ice":       "bare",
}

// ClassName resolves a land cover class code to its name, "unknown" when the
// code is not part of the taxonomy.
func ClassName(code int) string {
	if n, ok := landCoverNames[code]; ok {
		return n
	}
	return "unknown"
}

// Simplify maps a land cover class name to the reduced taxonomy used for tax
// assessment.
func Simplify(name string) string {
	if s, ok := simplified[name]; ok {
		return s
	}
	return "unknown"
}
