package runconfig

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/airbusgeo/godal"
)

var authorityRe = regexp.MustCompile(`AUTHORITY\[\s*"EPSG"\s*,\s*"?(\d+)"?\s*\]`)

// epsgFromWKT pulls the outermost EPSG authority code out of a WKT
// projection string (the last AUTHORITY node describes the full CRS).
func epsgFromWKT(wkt string) (int, error) {
	matches := authorityRe.FindAllStringSubmatch(wkt, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("no EPSG authority in projection %q", wkt)
	}
	return strconv.Atoi(matches[len(matches)-1][1])
}

// DEMEpsg opens the DEM with GDAL and returns its EPSG code, rejecting DEMs
// that GDAL cannot read or whose projection is out of the valid EPSG range.
func DEMEpsg(path string) (int, error) {
	ds, err := godal.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%s cannot be opened by GDAL: %v", path, err)
	}
	defer ds.Close()

	epsg, err := epsgFromWKT(ds.Projection())
	if err != nil {
		return 0, fmt.Errorf("failed to read DEM projection: %v", err)
	}
	if epsg < 1024 || epsg > 32767 {
		return 0, fmt.Errorf("DEM epsg of %d out of bounds", epsg)
	}
	return epsg, nil
}

// DEMRing returns the DEM footprint as a closed corner ring in the DEM CRS.
// Only meaningful for geographic DEMs, where the ring is lon/lat.
func DEMRing(path string) ([][2]float64, error) {
	ds, err := godal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s cannot be opened by GDAL: %v", path, err)
	}
	defer ds.Close()

	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, fmt.Errorf("failed to read DEM geotransform: %v", err)
	}
	st := ds.Structure()
	x0, y0 := gt[0], gt[3]
	x1 := gt[0] + gt[1]*float64(st.SizeX)
	y1 := gt[3] + gt[5]*float64(st.SizeY)
	return [][2]float64{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}, nil
}
