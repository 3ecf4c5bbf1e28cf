package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/bkd-mataram/padscan/internal/detect"
	"github.com/bkd-mataram/padscan/internal/streets"
)

func TestWriteStreets(t *testing.T) {
	rows := []streets.Row{{
		Name:       "Jalan Pejanggik",
		SLS:        "RT 001 LINGKUNGAN KARANG BARU",
		Lingkungan: "KARANG BARU",
		Kelurahan:  "BINTARO",
		Coverage:   "97.2% (RT)",
		Lat:        -8.5833,
		Lon:        116.1167,
		GoogleMaps: "https://www.google.com/maps?q=-8.5833,116.1167",
		MatchaPro:  "https://cek-posisi-v2.streamlit.app/?coords=@-8.5833,116.1167",
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteStreets(&buf, rows))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)

	sheet, ok := f.Sheet["Jalan dan Gang"]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 2)

	assert.Equal(t, "Nama Jalan dan Gang", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "Jalan Pejanggik", sheet.Rows[1].Cells[0].String())
	assert.Equal(t, "RT 001 LINGKUNGAN KARANG BARU", sheet.Rows[1].Cells[1].String())
	assert.Equal(t, "97.2% (RT)", sheet.Rows[1].Cells[4].String())
	assert.Equal(t, "https://www.google.com/maps?q=-8.5833,116.1167", sheet.Rows[1].Cells[7].String())
}

func TestWriteDetections(t *testing.T) {
	set := detect.NewSet([]detect.Detection{
		&detect.Parking{
			Base: detect.Base{
				ID: "PKR-001", Lat: -8.58, Lon: 116.11, AreaM2: 1000,
				Source: detect.SourceSatellite, District: "CAKRANEGARA",
				Validation: &detect.Validation{Verified: true, Confidence: 0.9},
			},
			Type:          "mall",
			Capacity:      detect.Capacity{Motor: 210, Mobil: 22, Total: 232},
			RevenueAnnual: 1389024000,
		},
		&detect.LandChange{
			Base: detect.Base{
				ID: "LND-001", AreaM2: 500, Source: detect.SourceSynthetic,
			},
			FromClass:    "vegetation",
			ToClass:      "built",
			Zone:         "semi_pusat",
			AnnualTaxIDR: 2000000,
		},
	})

	var buf bytes.Buffer
	require.NoError(t, WriteDetections(&buf, set))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)

	det, ok := f.Sheet["Deteksi"]
	require.True(t, ok)
	require.Len(t, det.Rows, 3)
	assert.Equal(t, "PKR-001", det.Rows[1].Cells[0].String())
	assert.Equal(t, "parkir mall, 232 slot", det.Rows[1].Cells[2].String())
	assert.Equal(t, "Ya (AI 0.90)", det.Rows[1].Cells[10].String())
	assert.Equal(t, "vegetation ke built (semi_pusat)", det.Rows[2].Cells[2].String())
	assert.Equal(t, "Belum", det.Rows[2].Cells[10].String())

	sum, ok := f.Sheet["Ringkasan"]
	require.True(t, ok)

	var metrics []string
	for _, r := range sum.Rows[1:] {
		metrics = append(metrics, r.Cells[0].String())
	}
	assert.Contains(t, metrics, "Jumlah Deteksi")
	// The synthetic land change taints the whole set.
	assert.Contains(t, metrics, "Catatan")
}
