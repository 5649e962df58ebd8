package archive

import (
	"github.com/sirupsen/logrus"
)

//Option is an Archive option
type Option interface {
	apply(*Archive)
}

//OptSegmentBytes sets the number of device bytes stored per remote object
type OptSegmentBytes int64

func (size OptSegmentBytes) apply(a *Archive) {
	a.segmentBytes = int64(size)
}

//OptConcurUpload sets how many segments may be uploaded at once; this has
// memory usage implications (uploads * segment size)
type OptConcurUpload uint

func (count OptConcurUpload) apply(a *Archive) {
	a.concurUpload = uint(count)
}

//OptCompress sets the codec segments are stored with
type OptCompress Codec

func (codec OptCompress) apply(a *Archive) {
	a.codec = Codec(codec)
}

//OptNoMetadataSupport instructs an Archive to reject configurations that require
// the store to support item metadata (ex. compression)
type OptNoMetadataSupport bool

func (noMeta OptNoMetadataSupport) apply(a *Archive) {
	a.noMetadata = bool(noMeta)
}

//OptLogger sets the logger segment transfers are reported to
type OptLogger struct {
	logrus.FieldLogger
}

func (opt OptLogger) apply(a *Archive) {
	if opt.FieldLogger != nil {
		a.logger = opt.FieldLogger
	}
}
