package savefile

import (
	"go.uber.org/zap"

	"github.com/wippyai/savefile/abi"
	"github.com/wippyai/savefile/linker"
	"github.com/wippyai/savefile/transcoder"
)

// SetLogger configures the logger of every savefile package.
// Call it once at startup, before saving, loading or linking.
func SetLogger(l *zap.Logger) {
	transcoder.SetLogger(l.Named("transcoder"))
	abi.SetLogger(l.Named("abi"))
	linker.SetLogger(l.Named("linker"))
}
