// Package capture provides camera capture and exclusive camera
// ownership arbitration using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings.
const (
	DefaultFPS    = 30
	DefaultWidth  = 640
	DefaultHeight = 480

	// MinFPS and MaxFPS bound SetFPS requests.
	MinFPS = 5
	MaxFPS = 60

	// maxReopenAttempts bounds recovery from a failed frame read
	// before the error is surfaced to the caller.
	maxReopenAttempts = 3
)

// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
var ErrCameraNotOpen = errors.New("camera is not open")

// Intrinsics holds the pinhole camera model used for undistortion.
type Intrinsics struct {
	Fx, Fy float64
	Cx, Cy float64
	Dist   []float64
}

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// Options configures a device camera.
type Options struct {
	DeviceID  int
	Width     int
	Height    int
	FPS       int
	Undistort bool
	Intrinsic Intrinsics
}

// cameraImpl manages video capture from a camera device using GoCV.
type cameraImpl struct {
	opts    Options
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
	fps     int

	// Precomputed rectify maps, built lazily on the first frame.
	map1, map2 gocv.Mat
	mapsReady  bool
}

// NewCamera creates a new Camera for the given device options.
func NewCamera(opts Options) Camera {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	return &cameraImpl{
		opts: opts,
		fps:  clampFPS(opts.FPS),
	}
}

// Open opens the camera for capturing frames. MJPG and a single-frame
// buffer keep latency low on the Pi's USB camera.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openLocked()
}

func (c *cameraImpl) openLocked() error {
	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.opts.DeviceID)
	if err != nil {
		return fmt.Errorf("open camera device %d: %w", c.opts.DeviceID, err)
	}

	capture.Set(gocv.VideoCaptureFOURCC, capture.ToCodec("MJPG"))
	capture.Set(gocv.VideoCaptureFrameWidth, float64(c.opts.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(c.opts.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(c.fps))
	capture.Set(gocv.VideoCaptureBufferSize, 1)

	c.capture = capture
	c.running = true

	log.Printf("Camera %d opened: %dx%d @ %d fps", c.opts.DeviceID, c.opts.Width, c.opts.Height, c.fps)
	return nil
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mapsReady {
		c.map1.Close()
		c.map2.Close()
		c.mapsReady = false
	}

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame from the camera, reopening the device
// a bounded number of times when reads fail. The caller is responsible
// for closing the returned Mat.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	for attempt := 0; ; attempt++ {
		mat := gocv.NewMat()
		ok := c.capture.Read(&mat)
		if ok && !mat.Empty() {
			if c.opts.Undistort {
				c.undistortLocked(&mat)
			}
			return &mat, nil
		}
		mat.Close()

		if attempt >= maxReopenAttempts {
			return nil, fmt.Errorf("failed to read frame after %d reopen attempts", attempt)
		}

		log.Printf("Camera read failed, reopening device %d (attempt %d)", c.opts.DeviceID, attempt+1)
		c.capture.Close()
		c.capture = nil
		c.running = false
		if err := c.openLocked(); err != nil {
			return nil, err
		}
	}
}

// undistortLocked remaps the frame through precomputed rectify maps.
func (c *cameraImpl) undistortLocked(mat *gocv.Mat) {
	if !c.mapsReady {
		k := intrinsicsMat(c.opts.Intrinsic)
		defer k.Close()
		dist := distMat(c.opts.Intrinsic.Dist)
		defer dist.Close()
		r := gocv.NewMat()
		defer r.Close()

		c.map1 = gocv.NewMat()
		c.map2 = gocv.NewMat()
		size := image.Pt(mat.Cols(), mat.Rows())
		gocv.InitUndistortRectifyMap(k, dist, r, k, size, int(gocv.MatTypeCV32F), c.map1, c.map2)
		c.mapsReady = true
	}

	rectified := gocv.NewMat()
	gocv.Remap(*mat, &rectified, &c.map1, &c.map2, gocv.InterpolationLinear, gocv.BorderConstant, color.RGBA{})
	mat.Close()
	*mat = rectified
}

// SetFPS sets the frames per second for capture, clamped to [5, 60].
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = clampFPS(fps)

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(c.fps))
	}
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}

func clampFPS(fps int) int {
	if fps < MinFPS {
		return MinFPS
	}
	if fps > MaxFPS {
		return MaxFPS
	}
	return fps
}

func intrinsicsMat(in Intrinsics) gocv.Mat {
	k := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	k.SetDoubleAt(0, 0, in.Fx)
	k.SetDoubleAt(1, 1, in.Fy)
	k.SetDoubleAt(0, 2, in.Cx)
	k.SetDoubleAt(1, 2, in.Cy)
	k.SetDoubleAt(2, 2, 1)
	return k
}

func distMat(coeffs []float64) gocv.Mat {
	if len(coeffs) == 0 {
		coeffs = make([]float64, 5)
	}
	d := gocv.NewMatWithSize(1, len(coeffs), gocv.MatTypeCV64F)
	for i, v := range coeffs {
		d.SetDoubleAt(0, i, v)
	}
	return d
}
