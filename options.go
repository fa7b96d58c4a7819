package fileconv

import "log/slog"

// Option configures a FileConv instance.
type Option func(*FileConv)

// WithLogger sets the logger used for fallback diagnostics and batch events
// (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(fc *FileConv) {
		if l != nil {
			fc.logger = l
		}
	}
}

// WithMediaRuntime shares a transcoding runtime between FileConv instances.
// Without it, New creates one backed by the ffmpeg binary found on the host.
func WithMediaRuntime(rt *MediaRuntime) Option {
	return func(fc *FileConv) {
		fc.media = rt
	}
}

// WithStrict switches the dispatcher from passthrough fallback to reporting
// converter errors in Result.Err.
func WithStrict(strict bool) Option {
	return func(fc *FileConv) {
		if strict {
			fc.policy = PolicyPropagate
		} else {
			fc.policy = PolicyPassthrough
		}
	}
}

// WithImageQuality sets the lossy encode quality in (0,1] (default: 0.95).
func WithImageQuality(q float64) Option {
	return func(fc *FileConv) {
		if q > 0 && q <= 1 {
			fc.imageQuality = q
		}
	}
}

// WithKeepDataURIs configures whether to keep full data URIs in text
// extracted from HTML (default: false, which truncates them to
// data:mime/type;base64...).
func WithKeepDataURIs(keep bool) Option {
	return func(fc *FileConv) {
		fc.keepDataURIs = keep
	}
}
