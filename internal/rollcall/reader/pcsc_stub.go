//go:build !pcsc

package reader

import (
	"context"

	"go.uber.org/zap"
)

// PCSCSource is unavailable in this build.
type PCSCSource struct{}

func NewPCSCSource(string, *zap.Logger) (*PCSCSource, error) {
	return nil, ErrPCSCUnavailable
}

func (*PCSCSource) Poll(context.Context) Reading { return Failed(ErrPCSCUnavailable) }

func (*PCSCSource) Close() error { return nil }
