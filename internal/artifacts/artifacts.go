// Package artifacts hosts predicted structure files somewhere a 3D viewer can
// fetch them from, and builds the viewer links.
package artifacts

import (
	"context"
	"errors"
	"net/url"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("boltzchat/artifacts")

// ErrNoURL is returned when the host accepted an upload but reported no
// retrievable address for it.
var ErrNoURL = errors.New("artifact host returned no url")

// Publisher uploads one file and returns a publicly readable URL for it.
type Publisher interface {
	Publish(ctx context.Context, filename, content string) (string, error)
}

// MolstarViewer is the base of the Mol* web viewer.
const MolstarViewer = "https://molstar.org/viewer/"

// MolstarURL links the Mol* viewer to a hosted structure file of the given
// format (mmcif, pdb, ...).
func MolstarURL(rawURL, format string) string {
	return MolstarViewer + "?structure-url=" + url.QueryEscape(rawURL) +
		"&structure-url-format=" + url.QueryEscape(format)
}
