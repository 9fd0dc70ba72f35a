package detection

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"go.uber.org/zap"
)

// CameraCapture grabs single JPEG frames from the local camera via ffmpeg.
// No cgo vision stack is linked into the binary; the heavy inference lives
// in the sidecar.
type CameraCapture struct {
	Device string
}

func NewCameraCapture(device string) *CameraCapture {
	if device == "" {
		device = "/dev/video0"
	}
	return &CameraCapture{Device: device}
}

// Available reports whether the camera device can plausibly be opened.
// Never returns an error; any failure means false.
func (c *CameraCapture) Available(ctx context.Context) bool {
	switch runtime.GOOS {
	case "linux":
		// v4l2 exposes the camera as a character device.
		info, err := os.Stat(c.Device)
		if err != nil {
			return false
		}
		if info.Mode()&os.ModeCharDevice == 0 {
			return false
		}
		return true
	case "darwin", "windows":
		// No device node to stat; a bounded capture attempt is the probe.
		_, err := c.CaptureFrame(ctx)
		return err == nil
	default:
		return false
	}
}

// CaptureFrame captures one frame and returns it as JPEG bytes.
func (c *CameraCapture) CaptureFrame(ctx context.Context) ([]byte, error) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.CommandContext(ctx, "ffmpeg",
			"-f", "v4l2",
			"-video_size", "640x480",
			"-i", c.Device,
			"-vframes", "1",
			"-f", "image2pipe",
			"-vcodec", "mjpeg",
			"-q:v", "2",
			"-")
	case "darwin":
		cmd = exec.CommandContext(ctx, "ffmpeg",
			"-f", "avfoundation",
			"-video_size", "640x480",
			"-framerate", "30",
			"-i", "0",
			"-vframes", "1",
			"-f", "image2pipe",
			"-vcodec", "mjpeg",
			"-q:v", "2",
			"-")
	case "windows":
		cmd = exec.CommandContext(ctx, "ffmpeg",
			"-f", "dshow",
			"-video_size", "640x480",
			"-i", "video=\"USB Camera\"",
			"-vframes", "1",
			"-f", "image2pipe",
			"-vcodec", "mjpeg",
			"-q:v", "2",
			"-")
	default:
		return nil, fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	output, err := cmd.Output()
	if err != nil {
		zap.L().Debug("Frame capture failed", zap.String("device", c.Device), zap.Error(err))
		return nil, fmt.Errorf("failed to capture frame: %w", err)
	}
	if len(output) == 0 {
		return nil, fmt.Errorf("no frame data captured")
	}

	return output, nil
}
