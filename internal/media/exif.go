package media

import (
	"bytes"
	"strconv"

	"github.com/rwcarlsen/goexif/exif"
)

// exifWhitelist lists the human-readable tags surfaced in metadata. Binary
// blobs (thumbnails, maker notes) stay out.
var exifWhitelist = []exif.FieldName{
	exif.Make,
	exif.Model,
	exif.Software,
	exif.DateTime,
	exif.DateTimeOriginal,
	exif.DateTimeDigitized,
	exif.ExposureTime,
	exif.FNumber,
	exif.ISOSpeedRatings,
	exif.FocalLength,
	exif.LensModel,
	exif.Orientation,
	exif.Flash,
	exif.WhiteBalance,
}

// ExtractEXIF returns whitelisted EXIF tags from the original upload bytes.
// EXIF is best-effort: a missing or unparseable EXIF segment (PNG uploads in
// particular) yields nil, never an error.
func ExtractEXIF(data []byte) map[string]string {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}

	out := make(map[string]string)
	for _, name := range exifWhitelist {
		tag, err := x.Get(name)
		if err != nil {
			continue
		}
		if s, err := tag.StringVal(); err == nil {
			out[string(name)] = s
			continue
		}
		out[string(name)] = tag.String()
	}

	if lat, long, err := x.LatLong(); err == nil {
		out["GPSLatitude"] = strconv.FormatFloat(lat, 'f', 6, 64)
		out["GPSLongitude"] = strconv.FormatFloat(long, 'f', 6, 64)
	}

	if len(out) == 0 {
		return nil
	}
	return out
}
