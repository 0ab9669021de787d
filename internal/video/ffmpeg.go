package video

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// FFmpegSource decodes video files with the ffmpeg binary, reading
// frames as an MJPEG pipe so the module stays free of codec bindings.
type FFmpegSource struct {
	// FFmpegPath and FFprobePath override the binaries resolved from
	// PATH. Empty means "ffmpeg" / "ffprobe".
	FFmpegPath  string
	FFprobePath string

	logger *slog.Logger
}

// NewFFmpegSource creates a frame source backed by the ffmpeg binary.
func NewFFmpegSource() *FFmpegSource {
	return &FFmpegSource{
		logger: slog.Default().With("component", "video_source"),
	}
}

// Open validates the path, probes the frame rate and starts an ffmpeg
// process decoding the file into an MJPEG stream.
func (s *FFmpegSource) Open(ctx context.Context, path string) (Stream, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrVideoSource, path, err)
	}

	fps := s.probeFrameRate(ctx, path)

	ffmpeg := s.FFmpegPath
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "2",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, ffmpeg, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrVideoSource, err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: starting ffmpeg: %v", ErrVideoSource, err)
	}

	s.logger.Debug("Opened video source", "path", path, "fps", fps, "pid", cmd.Process.Pid)

	return &ffmpegStream{
		cmd:    cmd,
		reader: bufio.NewReaderSize(stdout, 1<<20),
		stderr: &stderr,
		fps:    fps,
	}, nil
}

// probeFrameRate asks ffprobe for the video stream frame rate. Falls
// back to 25 fps when probing fails, which only skews timestamps, never
// frame ordering.
func (s *FFmpegSource) probeFrameRate(ctx context.Context, path string) float64 {
	ffprobe := s.FFprobePath
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}

	out, err := exec.CommandContext(ctx, ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=r_frame_rate",
		"-of", "default=nokey=1:noprint_wrappers=1",
		path,
	).Output()
	if err != nil {
		s.logger.Warn("ffprobe failed, assuming 25 fps", "path", path, "error", err)
		return 25
	}

	fps, err := ParseFrameRate(strings.TrimSpace(string(out)))
	if err != nil {
		s.logger.Warn("Unparseable frame rate, assuming 25 fps", "path", path, "value", strings.TrimSpace(string(out)))
		return 25
	}
	return fps
}

// ParseFrameRate parses an ffprobe rational frame rate such as "24/1"
// or "30000/1001", also accepting a plain decimal.
func ParseFrameRate(v string) (float64, error) {
	if num, den, ok := strings.Cut(v, "/"); ok {
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid frame rate %q: %w", v, err)
		}
		d, err := strconv.ParseFloat(den, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid frame rate %q: %w", v, err)
		}
		if d == 0 || n <= 0 {
			return 0, fmt.Errorf("invalid frame rate %q", v)
		}
		return n / d, nil
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid frame rate %q", v)
	}
	return f, nil
}

// ffmpegStream reads successive JPEG images from the ffmpeg stdout pipe.
type ffmpegStream struct {
	cmd    *exec.Cmd
	reader *bufio.Reader
	stderr *bytes.Buffer
	fps    float64
	next   int
	closed bool
}

// Next decodes the next frame. Returns io.EOF when the video is
// exhausted.
func (st *ffmpegStream) Next() (*Frame, error) {
	data, err := readJPEG(st.reader)
	if err != nil {
		if err == io.EOF {
			if st.closed {
				return nil, io.EOF
			}
			// The pipe is exhausted; only a clean decoder exit makes
			// this a real end-of-video. A corrupt or truncated file
			// kills ffmpeg mid-stream, and that must not look like a
			// completed run.
			st.closed = true
			waitErr := st.cmd.Wait()
			msg := strings.TrimSpace(st.stderr.String())
			if waitErr != nil || msg != "" {
				if msg == "" {
					msg = waitErr.Error()
				}
				return nil, fmt.Errorf("%w: decoder exited after %d frames: %s", ErrVideoSource, st.next, msg)
			}
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: reading frame %d: %v", ErrVideoSource, st.next, err)
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding frame %d: %v", ErrVideoSource, st.next, err)
	}

	frame := &Frame{
		Number:    st.next,
		Timestamp: float64(st.next) / st.fps,
		Image:     img,
	}
	st.next++
	return frame, nil
}

// Close terminates the decoder process if it is still running.
func (st *ffmpegStream) Close() error {
	if st.closed {
		return nil
	}
	st.closed = true
	if st.cmd.Process != nil {
		_ = st.cmd.Process.Kill()
	}
	_ = st.cmd.Wait()
	return nil
}

// readJPEG extracts one complete JPEG image (SOI through EOI) from the
// reader. MJPEG is a plain concatenation of JPEG images, so scanning for
// the 0xFFD8 ... 0xFFD9 markers is sufficient for ffmpeg output.
func readJPEG(r *bufio.Reader) ([]byte, error) {
	// Seek start-of-image.
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != 0xFF {
			continue
		}
		b2, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b2 == 0xD8 {
			break
		}
	}

	buf := []byte{0xFF, 0xD8}
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		buf = append(buf, b)
		if b == 0xFF {
			b2, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			buf = append(buf, b2)
			if b2 == 0xD9 {
				return buf, nil
			}
		}
	}
}
