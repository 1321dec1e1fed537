package config

import (
	"fmt"
	"strings"
)

var validSourceTypes = map[string]bool{
	"file":      true,
	"webcam":    true,
	"rtsp":      true,
	"push":      true,
	"synthetic": true,
}

var validAIModes = map[string]bool{
	"remote": true,
	"sim":    true,
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	var errs []string

	if c.Stream.TargetFPS < 1 || c.Stream.TargetFPS > 60 {
		errs = append(errs, fmt.Sprintf("stream.target_fps must be between 1 and 60, got %d", c.Stream.TargetFPS))
	}
	if !validSourceTypes[c.Stream.Source.Type] {
		errs = append(errs, fmt.Sprintf("stream.source.type %q is not one of file, webcam, rtsp, push, synthetic", c.Stream.Source.Type))
	}
	if c.Stream.Source.Type == "rtsp" && c.Stream.Source.RTSPURL == "" {
		errs = append(errs, "stream.source.rtsp_url is required when source type is rtsp")
	}
	if c.Stream.Source.Width <= 0 || c.Stream.Source.Height <= 0 {
		errs = append(errs, "stream.source.width and height must be positive")
	}
	if c.Stream.SourceBufferCapacity < 1 {
		errs = append(errs, "stream.source_buffer_capacity must be at least 1")
	}
	if c.Stream.RecoveryInterval <= 0 {
		errs = append(errs, "stream.recovery_interval must be positive")
	}

	if !validAIModes[c.AI.Mode] {
		errs = append(errs, fmt.Sprintf("ai.mode %q is not one of remote, sim", c.AI.Mode))
	}
	if c.AI.JPEGQuality < 1 || c.AI.JPEGQuality > 100 {
		errs = append(errs, fmt.Sprintf("ai.jpeg_quality must be between 1 and 100, got %d", c.AI.JPEGQuality))
	}

	if c.Web.Port < 1 || c.Web.Port > 65535 {
		errs = append(errs, fmt.Sprintf("web.port must be a valid port, got %d", c.Web.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}
