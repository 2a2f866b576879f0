package capture

import (
	"fmt"
	"strconv"

	"gocv.io/x/gocv"
)

// gocvBackend reads raw frames through OpenCV and encodes them to JPEG.
// The Mat is reused across reads; Source guarantees single-threaded access.
type gocvBackend struct {
	cap *gocv.VideoCapture
	img gocv.Mat
}

// openGoCV opens a capture device by identifier: an all-digits identifier
// selects a local device index, anything else is treated as a stream URL
// (RTSP, HTTP, or a file path).
func openGoCV(cfg CameraConfig) (backend, error) {
	var (
		vc  *gocv.VideoCapture
		err error
	)

	if idx, convErr := strconv.Atoi(cfg.Source); convErr == nil {
		if idx < 0 {
			return nil, fmt.Errorf("device index must be non-negative, got %d", idx)
		}
		vc, err = gocv.VideoCaptureDevice(idx)
	} else {
		vc, err = gocv.VideoCaptureFile(cfg.Source)
	}
	if err != nil {
		return nil, err
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("device did not open")
	}

	if cfg.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	}
	if cfg.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}

	return &gocvBackend{
		cap: vc,
		img: gocv.NewMat(),
	}, nil
}

func (b *gocvBackend) read() ([]byte, error) {
	if ok := b.cap.Read(&b.img); !ok || b.img.Empty() {
		return nil, fmt.Errorf("device read failed")
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, b.img)
	if err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	defer buf.Close()

	// The native buffer is freed on Close, copy out of it.
	encoded := buf.GetBytes()
	data := make([]byte, len(encoded))
	copy(data, encoded)

	return data, nil
}

func (b *gocvBackend) close() error {
	b.img.Close()
	return b.cap.Close()
}
