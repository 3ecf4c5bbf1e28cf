package geo

// District describes one kecamatan of Kota Mataram: its reference point for
// imagery queries, search radius, NJOP tariff zone, and BPS codes.
type District struct {
	Name     string
	Code     string // kdkec
	NMKec    string // nmkec as written in the boundary source
	Lat, Lon float64
	RadiusM  int
	NJOPZone string
}

// Districts lists the six kecamatan of Kota Mataram in BPS code order.
var Districts = []District{
	{Name: "Ampenan", Code: "010", NMKec: "AMPENAN", Lat: -8.5833, Lon: 116.0942, RadiusM: 2000, NJOPZone: "semi_pusat"},
	{Name: "Cakranegara", Code: "020", NMKec: "CAKRANEGARA", Lat: -8.5833, Lon: 116.1167, RadiusM: 2000, NJOPZone: "pusat_kota"},
	{Name: "Mataram", Code: "030", NMKec: "MATARAM", Lat: -8.5667, Lon: 116.1167, RadiusM: 2000, NJOPZone: "pusat_kota"},
	{Name: "Selaparang", Code: "040", NMKec: "SELAPARANG", Lat: -8.5833, Lon: 116.1333, RadiusM: 2000, NJOPZone: "semi_pusat"},
	{Name: "Sekarbela", Code: "050", NMKec: "SEKARBELA", Lat: -8.5667, Lon: 116.0833, RadiusM: 2000, NJOPZone: "pinggiran"},
	{Name: "Sandubaya", Code: "060", NMKec: "SANDUBAYA", Lat: -8.5500, Lon: 116.1333, RadiusM: 2000, NJOPZone: "pinggiran"},
}

// DistrictByName resolves a district by its display name or nmkec value,
// case-insensitively. The second return is false when the name is unknown.
func DistrictByName(name string) (District, bool) {
	norm := NormalizeDistrict(name)
	for _, d := range Districts {
		if d.NMKec == norm {
			return d, true
		}
	}
	return District{}, false
}

// DistrictNames returns the display names of all districts in code order.
func DistrictNames() []string {
	names := make([]string, len(Districts))
	for i, d := range Districts {
		names[i] = d.Name
	}
	return names
}
