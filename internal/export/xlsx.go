// Package export writes the analysis outputs the tax office circulates:
// street reference tables and detection worksheets, as XLSX workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/bkd-mataram/padscan/internal/detect"
	"github.com/bkd-mataram/padscan/internal/revenue"
	"github.com/bkd-mataram/padscan/internal/streets"
)

var streetHeader = []string{
	"Nama Jalan dan Gang", "SLS", "Lingkungan", "Kelurahan", "Coverage",
	"Latitude", "Longitude", "Google Maps Link", "MatchaPro Link",
}

// WriteStreets writes the street reference table as one worksheet.
func WriteStreets(w io.Writer, rows []streets.Row) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Jalan dan Gang")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	addHeader(sheet, streetHeader)
	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetString(r.Name)
		row.AddCell().SetString(r.SLS)
		row.AddCell().SetString(r.Lingkungan)
		row.AddCell().SetString(r.Kelurahan)
		row.AddCell().SetString(r.Coverage)
		row.AddCell().SetFloatWithFormat(r.Lat, "0.000000")
		row.AddCell().SetFloatWithFormat(r.Lon, "0.000000")
		row.AddCell().SetString(r.GoogleMaps)
		row.AddCell().SetString(r.MatchaPro)
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write workbook")
	}
	return nil
}

var detectionHeader = []string{
	"ID", "Kategori", "Detail", "Luas (m2)", "Latitude", "Longitude",
	"Kecamatan", "Kelurahan", "SLS", "Sumber", "Terverifikasi", "Estimasi Tahunan",
}

// WriteDetections writes every detection in the set to one worksheet, with a
// second sheet holding the revenue rollup.
func WriteDetections(w io.Writer, set *detect.Set) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Deteksi")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	addHeader(sheet, detectionHeader)
	for _, d := range set.All() {
		m := d.Meta()
		row := sheet.AddRow()
		row.AddCell().SetString(m.ID)
		row.AddCell().SetString(string(revenue.CategoryOf(d)))
		row.AddCell().SetString(detail(d))
		row.AddCell().SetFloatWithFormat(m.AreaM2, "0.0")
		row.AddCell().SetFloatWithFormat(m.Lat, "0.000000")
		row.AddCell().SetFloatWithFormat(m.Lon, "0.000000")
		row.AddCell().SetString(m.District)
		row.AddCell().SetString(m.Kelurahan)
		row.AddCell().SetString(m.SLSLabel)
		row.AddCell().SetString(string(m.Source))
		row.AddCell().SetString(verifiedLabel(m))
		row.AddCell().SetString(revenue.FormatIDR(d.AnnualRevenue()))
	}

	if err := addSummarySheet(f, set); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write workbook")
	}
	return nil
}

func addSummarySheet(f *xlsx.File, set *detect.Set) error {
	sheet, err := f.AddSheet("Ringkasan")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}

	addHeader(sheet, []string{"Metrik", "Nilai"})
	all := revenue.Aggregate(set, nil)
	verified := revenue.AggregateVerified(set, nil)

	kv := func(k, v string) {
		row := sheet.AddRow()
		row.AddCell().SetString(k)
		row.AddCell().SetString(v)
	}
	kv("Jumlah Deteksi", fmt.Sprintf("%d", all.Count))
	kv("Total Luas (m2)", fmt.Sprintf("%.1f", all.TotalAreaM2))
	kv("Estimasi Tahunan", revenue.FormatIDR(all.TotalAnnualIDR))
	kv("Deteksi Terverifikasi", fmt.Sprintf("%d", verified.Count))
	kv("Estimasi Terverifikasi", revenue.FormatIDR(verified.TotalAnnualIDR))
	if all.Synthetic {
		kv("Catatan", "Berisi data simulasi (mode demo)")
	}
	return nil
}

func detail(d detect.Detection) string {
	switch t := d.(type) {
	case *detect.Parking:
		return fmt.Sprintf("parkir %s, %d slot", t.Type, t.Capacity.Total)
	case *detect.LandChange:
		return fmt.Sprintf("%s ke %s (%s)", t.FromClass, t.ToClass, t.Zone)
	case *detect.BuildingChange:
		return fmt.Sprintf("bangunan +%.0f m2", t.AreaAfterM2-t.AreaBeforeM2)
	default:
		return ""
	}
}

func verifiedLabel(m *detect.Base) string {
	switch {
	case m.Source == detect.SourcePOI:
		return "Ya (POI)"
	case m.Validation != nil && m.Validation.Verified:
		return fmt.Sprintf("Ya (AI %.2f)", m.Validation.Confidence)
	case m.Validation != nil:
		return fmt.Sprintf("Tidak (AI %.2f)", m.Validation.Confidence)
	default:
		return "Belum"
	}
}

func addHeader(sheet *xlsx.Sheet, cols []string) {
	row := sheet.AddRow()
	for _, c := range cols {
		cell := row.AddCell()
		cell.SetString(c)
		style := xlsx.NewStyle()
		style.Font.Bold = true
		cell.SetStyle(style)
	}
}
