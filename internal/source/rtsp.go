package source

import (
	"fmt"
	"time"

	"github.com/bluenviron/gortsplib/v4"
	"github.com/bluenviron/gortsplib/v4/pkg/base"

	"github.com/jal-drishti/streamd/internal/logger"
)

// RTSPProbe describes a remote RTSP stream before the decoder attaches to it.
type RTSPProbe struct {
	MediaCount int
	Formats    []string
}

// ProbeRTSP connects to an RTSP endpoint and issues a DESCRIBE, verifying the
// stream is reachable and reporting its media formats. The actual decode is
// still delegated to the ffmpeg source; probing first gives a fast, precise
// error when the camera is misconfigured instead of an opaque decoder exit.
func ProbeRTSP(rtspURL string, timeout time.Duration, log *logger.Logger) (*RTSPProbe, error) {
	u, err := base.ParseURL(rtspURL)
	if err != nil {
		return nil, fmt.Errorf("invalid RTSP URL: %w", err)
	}

	client := &gortsplib.Client{
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	defer client.Close()

	desc, _, err := client.Describe(u)
	if err != nil {
		return nil, fmt.Errorf("failed to describe RTSP stream: %w", err)
	}

	probe := &RTSPProbe{MediaCount: len(desc.Medias)}
	for _, media := range desc.Medias {
		for _, forma := range media.Formats {
			probe.Formats = append(probe.Formats, forma.Codec())
		}
	}

	log.Info("RTSP stream described",
		"url", rtspURL,
		"medias", probe.MediaCount,
		"formats", probe.Formats,
	)
	return probe, nil
}

// NewRTSPSource probes an RTSP endpoint and returns an ffmpeg-backed source
// reading from it.
func NewRTSPSource(rtspURL string, width, height int, timeout time.Duration, log *logger.Logger) (*FileSource, error) {
	if _, err := ProbeRTSP(rtspURL, timeout, log); err != nil {
		return nil, err
	}

	return &FileSource{
		logger: log,
		input:  rtspURL,
		kind:   inputRTSP,
		width:  width,
		height: height,
	}, nil
}
