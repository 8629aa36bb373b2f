package services

// TransformMode says how the pipeline treats a MIME type.
type TransformMode int

const (
	// ModeRaster decodes, bounds and re-encodes the image.
	ModeRaster TransformMode = iota
	// ModeAnimated stores bytes unchanged but still reports dimensions.
	ModeAnimated
	// ModePassthrough stores bytes unchanged without dimensions.
	ModePassthrough
)

// MediaType is an entry of the fixed MIME table. Storage extensions come
// from here and never from client-supplied filenames.
type MediaType struct {
	MimeType  string
	Extension string
	Mode      TransformMode
}

var mediaTypes = map[string]MediaType{
	"image/jpeg":      {MimeType: "image/jpeg", Extension: ".jpg", Mode: ModeRaster},
	"image/png":       {MimeType: "image/png", Extension: ".png", Mode: ModeRaster},
	"image/webp":      {MimeType: "image/webp", Extension: ".webp", Mode: ModeRaster},
	"image/gif":       {MimeType: "image/gif", Extension: ".gif", Mode: ModeAnimated},
	"video/mp4":       {MimeType: "video/mp4", Extension: ".mp4", Mode: ModePassthrough},
	"video/webm":      {MimeType: "video/webm", Extension: ".webm", Mode: ModePassthrough},
	"video/quicktime": {MimeType: "video/quicktime", Extension: ".mov", Mode: ModePassthrough},
}

// LookupMediaType returns the table entry for mimeType.
func LookupMediaType(mimeType string) (MediaType, bool) {
	mt, ok := mediaTypes[mimeType]
	return mt, ok
}

// ExtensionFor returns the storage extension for mimeType, or ".bin".
func ExtensionFor(mimeType string) string {
	if mt, ok := mediaTypes[mimeType]; ok {
		return mt.Extension
	}
	return ".bin"
}
