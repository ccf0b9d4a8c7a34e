package vision

import (
	"gocv.io/x/gocv"
)

// QRDetector detects and decodes QR codes using the OpenCV detector.
type QRDetector struct {
	detector gocv.QRCodeDetector
}

// NewQRDetector creates a QRDetector.
func NewQRDetector() *QRDetector {
	return &QRDetector{detector: gocv.NewQRCodeDetector()}
}

// Detect runs multi-code detection on the frame. Markers whose payload
// fails to decode are returned with an empty Payload so the caller can
// still use their geometry.
func (d *QRDetector) Detect(frame *gocv.Mat) ([]Candidate, error) {
	var decoded []string
	points := gocv.NewMat()
	defer points.Close()
	codes := []gocv.Mat{}

	found := d.detector.DetectAndDecodeMulti(*frame, &decoded, &points, &codes)
	for i := range codes {
		codes[i].Close()
	}
	if !found || points.Rows() == 0 {
		return nil, nil
	}

	candidates := make([]Candidate, 0, points.Rows())
	for i := 0; i < points.Rows(); i++ {
		var c Candidate
		if i < len(decoded) {
			c.Payload = decoded[i]
		}
		for j := 0; j < 4; j++ {
			v := points.GetVecfAt(i, j)
			c.Corners[j] = Point{X: float64(v[0]), Y: float64(v[1])}
		}
		candidates = append(candidates, c)
	}

	return candidates, nil
}

// Close releases the underlying OpenCV detector.
func (d *QRDetector) Close() error {
	d.detector.Close()
	return nil
}
